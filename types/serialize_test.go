package types

import "testing"

func TestParseTypeStringRoundTrip(t *testing.T) {
	f32 := Scalar{Kind: ScalarFloat, Width: 32}
	cases := []Type{
		{Inner: Void{}},
		{Inner: f32},
		{Inner: Scalar{Kind: ScalarUint, Width: 8}},
		{Inner: Vector{Length: 4, Element: &f32}},
		{Inner: Matrix{Cols: 3, Rows: 3, Element: f32}},
		{Inner: Array{Element: Type{Inner: f32}, Size: ArraySize{Kind: ArrayConcrete, N: 4}}},
		{Inner: Array{Element: Type{Inner: f32}, Size: ArraySize{Kind: ArrayUnsized}}},
		{Inner: Struct{Fields: []Field{{Name: "pos", Type: Type{Inner: Vector{Length: 3, Element: &f32}}}}}},
	}
	for _, want := range cases {
		s := want.String()
		got, err := ParseTypeString(s)
		if err != nil {
			t.Fatalf("ParseTypeString(%q): %v", s, err)
		}
		if !Equal(got, want) {
			t.Errorf("round-trip mismatch for %q: got %s, want %s", s, got, want)
		}
	}
}

func TestParseTypeStringAbstractVector(t *testing.T) {
	s := "vec3<abstract>"
	got, err := ParseTypeString(s)
	if err != nil {
		t.Fatalf("ParseTypeString: %v", err)
	}
	if !IsAbstract(got) {
		t.Errorf("expected abstract vector, got %s", got)
	}
}

func TestParseTypeStringRejectsGarbage(t *testing.T) {
	if _, err := ParseTypeString("not a type"); err == nil {
		t.Error("expected error for unparseable string")
	}
}
