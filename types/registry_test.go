package types

import "testing"

func TestRegistryScalarDeduplication(t *testing.T) {
	r := NewRegistry()

	f32a := r.GetOrCreate(Type{Inner: Scalar{Kind: ScalarFloat, Width: 32}})
	f32b := r.GetOrCreate(Type{Inner: Scalar{Kind: ScalarFloat, Width: 32}})

	if f32a != f32b {
		t.Errorf("expected same handle for identical scalar types, got %d and %d", f32a, f32b)
	}
	if r.Count() != 1 {
		t.Errorf("expected 1 type, got %d", r.Count())
	}
}

func TestRegistryDifferentScalars(t *testing.T) {
	r := NewRegistry()

	f32 := r.GetOrCreate(Type{Inner: Scalar{Kind: ScalarFloat, Width: 32}})
	i32 := r.GetOrCreate(Type{Inner: Scalar{Kind: ScalarSint, Width: 32}})
	u32 := r.GetOrCreate(Type{Inner: Scalar{Kind: ScalarUint, Width: 32}})
	f16 := r.GetOrCreate(Type{Inner: Scalar{Kind: ScalarFloat, Width: 16}})

	handles := []Handle{f32, i32, u32, f16}
	for i := range handles {
		for j := i + 1; j < len(handles); j++ {
			if handles[i] == handles[j] {
				t.Errorf("expected distinct handles, got %d == %d", handles[i], handles[j])
			}
		}
	}
	if r.Count() != 4 {
		t.Errorf("expected 4 types, got %d", r.Count())
	}
}

func TestRegistryVectorDeduplication(t *testing.T) {
	r := NewRegistry()
	f32 := Scalar{Kind: ScalarFloat, Width: 32}

	v1 := r.GetOrCreate(Type{Inner: Vector{Length: 4, Element: &f32}})
	v2 := r.GetOrCreate(Type{Inner: Vector{Length: 4, Element: &f32}})

	if v1 != v2 {
		t.Errorf("expected same handle for identical vector types, got %d and %d", v1, v2)
	}
	if r.Count() != 1 {
		t.Errorf("expected 1 type, got %d", r.Count())
	}
}

func TestRegistryStructFieldOrderMatters(t *testing.T) {
	r := NewRegistry()
	f32 := Type{Inner: Scalar{Kind: ScalarFloat, Width: 32}}
	i32 := Type{Inner: Scalar{Kind: ScalarSint, Width: 32}}

	a := r.GetOrCreate(Type{Inner: Struct{Fields: []Field{{"x", f32}, {"y", i32}}}})
	b := r.GetOrCreate(Type{Inner: Struct{Fields: []Field{{"y", i32}, {"x", f32}}}})

	if a == b {
		t.Errorf("expected field order to distinguish struct types")
	}
}

func TestResolveScalars(t *testing.T) {
	cases := map[string]Scalar{
		"f32": {ScalarFloat, 32}, "i32": {ScalarSint, 32}, "u32": {ScalarUint, 32},
		"f16": {ScalarFloat, 16}, "f64": {ScalarFloat, 64},
		"i16": {ScalarSint, 16}, "i64": {ScalarSint, 64},
		"u8": {ScalarUint, 8}, "u16": {ScalarUint, 16}, "u64": {ScalarUint, 64},
	}
	for name, want := range cases {
		got, err := Resolve(name)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", name, err)
		}
		s, ok := got.Inner.(Scalar)
		if !ok || s != want {
			t.Errorf("Resolve(%q) = %#v, want %#v", name, got.Inner, want)
		}
	}
}

func TestResolveVectorsAndMatrices(t *testing.T) {
	v, err := Resolve("vec3")
	if err != nil {
		t.Fatal(err)
	}
	vec, ok := v.Inner.(Vector)
	if !ok || vec.Length != 3 || vec.Element.Kind != ScalarFloat {
		t.Errorf("Resolve(vec3) = %#v", v.Inner)
	}

	iv, err := Resolve("ivec2")
	if err != nil {
		t.Fatal(err)
	}
	ivec := iv.Inner.(Vector)
	if ivec.Element.Kind != ScalarSint {
		t.Errorf("Resolve(ivec2) element kind = %v, want sint", ivec.Element.Kind)
	}

	m, err := Resolve("mat4x3")
	if err != nil {
		t.Fatal(err)
	}
	mat, ok := m.Inner.(Matrix)
	if !ok || mat.Cols != 4 || mat.Rows != 3 {
		t.Errorf("Resolve(mat4x3) = %#v", m.Inner)
	}
}

func TestResolveArrayAndStruct(t *testing.T) {
	a, err := Resolve("Array(3, f32)")
	if err != nil {
		t.Fatal(err)
	}
	arr, ok := a.Inner.(Array)
	if !ok || arr.Size.Kind != ArrayConcrete || arr.Size.N != 3 {
		t.Errorf("Resolve(Array(3, f32)) = %#v", a.Inner)
	}

	abstractArr, err := Resolve("Array(f32)")
	if err != nil {
		t.Fatal(err)
	}
	if !IsAbstract(abstractArr) {
		t.Errorf("expected Array(f32) to be abstract")
	}

	s, err := Resolve("Struct(x=f32, y=vec3)")
	if err != nil {
		t.Fatal(err)
	}
	st, ok := s.Inner.(Struct)
	if !ok || len(st.Fields) != 2 || st.Fields[0].Name != "x" || st.Fields[1].Name != "y" {
		t.Errorf("Resolve(Struct(...)) = %#v", s.Inner)
	}
}

func TestResolveUnknownType(t *testing.T) {
	_, err := Resolve("notatype")
	var uerr *UnknownTypeError
	if err == nil {
		t.Fatal("expected error for unknown type")
	}
	if !errorsAs(err, &uerr) {
		t.Errorf("expected UnknownTypeError, got %T", err)
	}
}

func errorsAs(err error, target **UnknownTypeError) bool {
	if e, ok := err.(*UnknownTypeError); ok {
		*target = e
		return true
	}
	return false
}

func TestIsAbstractVector(t *testing.T) {
	v := Type{Inner: Vector{Length: 3, Element: nil}}
	if !IsAbstract(v) {
		t.Errorf("expected abstract vector without subtype to be abstract")
	}
	f32 := Scalar{Kind: ScalarFloat, Width: 32}
	concrete := Type{Inner: Vector{Length: 3, Element: &f32}}
	if IsAbstract(concrete) {
		t.Errorf("expected concrete vector to not be abstract")
	}
}
