package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Registry deduplicates Types by structure, the way the back end's id pool
// deduplicates SPIR-V types and constants: two Resolve/GetOrCreate calls
// that build the same shape return the same Handle.
type Registry struct {
	types []Type
	byKey map[string]Handle
}

// Handle is an index into a Registry.
type Handle int

// NewRegistry creates an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{
		byKey: make(map[string]Handle, 16),
	}
}

// GetOrCreate returns the Handle for t, registering it if this is the
// first time this exact structure has been seen.
func (r *Registry) GetOrCreate(t Type) Handle {
	key := r.key(t.Inner)
	if h, ok := r.byKey[key]; ok {
		return h
	}
	h := Handle(len(r.types))
	r.types = append(r.types, t)
	r.byKey[key] = h
	return h
}

// Lookup returns the Type registered under h.
func (r *Registry) Lookup(h Handle) (Type, bool) {
	if int(h) < 0 || int(h) >= len(r.types) {
		return Type{}, false
	}
	return r.types[h], true
}

// Count returns the number of distinct registered types.
func (r *Registry) Count() int { return len(r.types) }

func (r *Registry) key(inner Inner) string {
	return key(inner)
}

// UnknownTypeError is returned by Resolve for an unrecognized type name.
type UnknownTypeError struct {
	Name string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown type: %q", e.Name)
}

// AbstractTypeError is returned wherever a concrete type was required but
// an abstract one (unresolved vector subtype or array length) was found.
type AbstractTypeError struct {
	Type Type
}

func (e *AbstractTypeError) Error() string {
	return fmt.Sprintf("abstract type used where concrete required: %s", e.Type)
}

var scalarNames = map[string]Scalar{
	"f16": {ScalarFloat, 16}, "f32": {ScalarFloat, 32}, "f64": {ScalarFloat, 64},
	"i16": {ScalarSint, 16}, "i32": {ScalarSint, 32}, "i64": {ScalarSint, 64},
	"u8": {ScalarUint, 8}, "u16": {ScalarUint, 16}, "u32": {ScalarUint, 32}, "u64": {ScalarUint, 64},
}

// Resolve parses the string form of a type used in annotations and SIR
// resource declarations: scalar names (f32, i32, u8, ...), vector names
// (vec2..vec4 float, ivec2..ivec4 signed, uvec2..uvec4 unsigned), matrix
// names (matCxR, float only), Array(N, T) / Array(T) for an abstract
// array, and Struct(name=T, ...).
func Resolve(name string) (Type, error) {
	name = strings.TrimSpace(name)

	if s, ok := scalarNames[name]; ok {
		return Type{Inner: s}, nil
	}

	if strings.HasPrefix(name, "Array(") && strings.HasSuffix(name, ")") {
		return resolveArray(name[len("Array(") : len(name)-1])
	}
	if strings.HasPrefix(name, "Struct(") && strings.HasSuffix(name, ")") {
		return resolveStruct(name[len("Struct(") : len(name)-1])
	}

	if t, ok := resolveVector(name); ok {
		return t, nil
	}
	if t, ok := resolveMatrix(name); ok {
		return t, nil
	}

	return Type{}, &UnknownTypeError{Name: name}
}

func resolveVector(name string) (Type, bool) {
	prefix, rest := "", name
	kind := ScalarFloat
	switch {
	case strings.HasPrefix(name, "ivec"):
		prefix, kind, rest = "ivec", ScalarSint, name[4:]
	case strings.HasPrefix(name, "uvec"):
		prefix, kind, rest = "uvec", ScalarUint, name[4:]
	case strings.HasPrefix(name, "vec"):
		prefix, kind, rest = "vec", ScalarFloat, name[3:]
	default:
		return Type{}, false
	}
	_ = prefix
	n, err := strconv.Atoi(rest)
	if err != nil || n < 2 || n > 4 {
		return Type{}, false
	}
	width := uint8(32)
	elem := Scalar{Kind: kind, Width: width}
	return Type{Inner: Vector{Length: uint8(n), Element: &elem}}, true
}

func resolveMatrix(name string) (Type, bool) {
	if !strings.HasPrefix(name, "mat") {
		return Type{}, false
	}
	rest := name[3:]
	cIdx := strings.IndexByte(rest, 'x')
	if cIdx < 0 {
		return Type{}, false
	}
	cols, err1 := strconv.Atoi(rest[:cIdx])
	rows, err2 := strconv.Atoi(rest[cIdx+1:])
	if err1 != nil || err2 != nil || cols < 2 || cols > 4 || rows < 2 || rows > 4 {
		return Type{}, false
	}
	return Type{Inner: Matrix{
		Cols: uint8(cols), Rows: uint8(rows),
		Element: Scalar{Kind: ScalarFloat, Width: 32},
	}}, true
}

// splitTopLevel splits s on commas that are not nested inside parens or
// angle brackets.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(', '<':
			depth++
		case ')', '>':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func resolveArray(inner string) (Type, error) {
	parts := splitTopLevel(inner)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	switch len(parts) {
	case 1:
		// Array(T): abstract, no length.
		elem, err := Resolve(parts[0])
		if err != nil {
			return Type{}, err
		}
		return Type{Inner: Array{Element: elem, Size: ArraySize{Kind: ArrayAbstract}}}, nil
	case 2:
		elem, err := Resolve(parts[1])
		if err != nil {
			return Type{}, err
		}
		if parts[0] == "unsized" {
			return Type{Inner: Array{Element: elem, Size: ArraySize{Kind: ArrayUnsized}}}, nil
		}
		n, err := strconv.Atoi(parts[0])
		if err != nil || n < 0 {
			return Type{}, fmt.Errorf("invalid array length %q", parts[0])
		}
		return Type{Inner: Array{Element: elem, Size: ArraySize{Kind: ArrayConcrete, N: uint32(n)}}}, nil
	default:
		return Type{}, fmt.Errorf("malformed Array(...) type: %q", inner)
	}
}

func resolveStruct(inner string) (Type, error) {
	inner = strings.TrimSpace(inner)
	if inner == "" {
		return Type{Inner: Struct{}}, nil
	}
	parts := splitTopLevel(inner)
	fields := make([]Field, 0, len(parts))
	for _, part := range parts {
		eq := strings.IndexByte(part, '=')
		if eq < 0 {
			return Type{}, fmt.Errorf("malformed struct field %q (expected name=Type)", part)
		}
		name := strings.TrimSpace(part[:eq])
		typeName := strings.TrimSpace(part[eq+1:])
		ft, err := Resolve(typeName)
		if err != nil {
			return Type{}, err
		}
		fields = append(fields, Field{Name: name, Type: ft})
	}
	return Type{Inner: Struct{Fields: fields}}, nil
}

// BroadcastKind returns the scalar kind that t1 ⊕ t2 should use for
// arithmetic dispatch: the element kind of whichever operand is not a bare
// scalar, preferring t1 when both carry one. It is an error for the two
// operands to disagree on element kind; callers should verify equality
// before calling this helper.
func BroadcastKind(t1, t2 Type) (ScalarKind, error) {
	k1, ok1 := scalarKindOf(t1)
	k2, ok2 := scalarKindOf(t2)
	switch {
	case ok1:
		return k1, nil
	case ok2:
		return k2, nil
	default:
		return 0, fmt.Errorf("broadcast_kind: neither %s nor %s is numeric", t1, t2)
	}
}

func scalarKindOf(t Type) (ScalarKind, bool) {
	switch inner := t.Inner.(type) {
	case Scalar:
		return inner.Kind, true
	case Vector:
		if inner.Element == nil {
			return 0, false
		}
		return inner.Element.Kind, true
	case Matrix:
		return inner.Element.Kind, true
	default:
		return 0, false
	}
}
