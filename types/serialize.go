package types

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseTypeString is the inverse of Type.String(): it reconstructs a Type
// from the rendered form the front end stores verbatim in a resource()
// instruction's subtype argument (sir.Arg only carries the closed
// int/float/bool/string/list vocabulary of spec §3, so a Type crossing
// that boundary must round-trip through its string form). Unlike
// Resolve, which parses the source language's annotation surface syntax
// (bare "vec4", "mat3x3", 32-bit only), ParseTypeString is exact: it
// reproduces whatever Type.String() produced, including element width
// and struct field shape.
func ParseTypeString(s string) (Type, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "void":
		return Type{Inner: Void{}}, nil
	case "bool":
		return Type{Inner: Bool{}}, nil
	case "f16", "f32", "f64", "i16", "i32", "i64", "u8", "u16", "u32", "u64":
		return parseScalarName(s)
	}

	switch {
	case strings.HasPrefix(s, "vec") && strings.Contains(s, "<"):
		return parseVectorString(s)
	case strings.HasPrefix(s, "mat") && strings.Contains(s, "<"):
		return parseMatrixString(s)
	case strings.HasPrefix(s, "array<") && strings.HasSuffix(s, ">"):
		return parseArrayString(s)
	case strings.HasPrefix(s, "Struct(") && strings.HasSuffix(s, ")"):
		var fields []Field
		if inner := strings.TrimSpace(s[len("Struct(") : len(s)-1]); inner != "" {
			for _, part := range splitTopLevel(inner) {
				eq := strings.IndexByte(part, '=')
				if eq < 0 {
					return Type{}, fmt.Errorf("types: malformed struct field %q", part)
				}
				ft, err := ParseTypeString(part[eq+1:])
				if err != nil {
					return Type{}, err
				}
				fields = append(fields, Field{Name: strings.TrimSpace(part[:eq]), Type: ft})
			}
		}
		return Type{Inner: Struct{Fields: fields}}, nil
	}
	return Type{}, fmt.Errorf("types: cannot parse type string %q", s)
}

func parseScalarName(name string) (Type, error) {
	kind := name[0]
	width, err := strconv.Atoi(name[1:])
	if err != nil {
		return Type{}, fmt.Errorf("types: malformed scalar name %q", name)
	}
	switch kind {
	case 'f':
		return Type{Inner: Scalar{Kind: ScalarFloat, Width: uint8(width)}}, nil
	case 'i':
		return Type{Inner: Scalar{Kind: ScalarSint, Width: uint8(width)}}, nil
	case 'u':
		return Type{Inner: Scalar{Kind: ScalarUint, Width: uint8(width)}}, nil
	default:
		return Type{}, fmt.Errorf("types: malformed scalar name %q", name)
	}
}

func parseVectorString(s string) (Type, error) {
	open := strings.IndexByte(s, '<')
	length, err := strconv.Atoi(s[3:open])
	if err != nil {
		return Type{}, fmt.Errorf("types: malformed vector string %q", s)
	}
	inner := s[open+1 : len(s)-1]
	if inner == "abstract" {
		return Type{Inner: Vector{Length: uint8(length)}}, nil
	}
	elem, err := ParseTypeString(inner)
	if err != nil {
		return Type{}, err
	}
	scalar, ok := elem.Inner.(Scalar)
	if !ok {
		return Type{}, fmt.Errorf("types: vector element %q is not a scalar", inner)
	}
	return Type{Inner: Vector{Length: uint8(length), Element: &scalar}}, nil
}

func parseMatrixString(s string) (Type, error) {
	rest := s[3:]
	x := strings.IndexByte(rest, 'x')
	open := strings.IndexByte(rest, '<')
	if x < 0 || open < 0 || x > open {
		return Type{}, fmt.Errorf("types: malformed matrix string %q", s)
	}
	cols, err1 := strconv.Atoi(rest[:x])
	rows, err2 := strconv.Atoi(rest[x+1 : open])
	if err1 != nil || err2 != nil {
		return Type{}, fmt.Errorf("types: malformed matrix string %q", s)
	}
	inner := rest[open+1 : len(rest)-1]
	elem, err := ParseTypeString(inner)
	if err != nil {
		return Type{}, err
	}
	scalar, ok := elem.Inner.(Scalar)
	if !ok {
		return Type{}, fmt.Errorf("types: matrix element %q is not a scalar", inner)
	}
	return Type{Inner: Matrix{Cols: uint8(cols), Rows: uint8(rows), Element: scalar}}, nil
}

func parseArrayString(s string) (Type, error) {
	inner := s[len("array<") : len(s)-1]
	parts := splitTopLevel(inner)
	elem, err := ParseTypeString(strings.TrimSpace(parts[0]))
	if err != nil {
		return Type{}, err
	}
	switch len(parts) {
	case 1:
		return Type{Inner: Array{Element: elem, Size: ArraySize{Kind: ArrayUnsized}}}, nil
	case 2:
		size := strings.TrimSpace(parts[1])
		if size == "abstract" {
			return Type{Inner: Array{Element: elem, Size: ArraySize{Kind: ArrayAbstract}}}, nil
		}
		n, err := strconv.Atoi(size)
		if err != nil {
			return Type{}, fmt.Errorf("types: malformed array length %q", size)
		}
		return Type{Inner: Array{Element: elem, Size: ArraySize{Kind: ArrayConcrete, N: uint32(n)}}}, nil
	default:
		return Type{}, fmt.Errorf("types: malformed array string %q", s)
	}
}
