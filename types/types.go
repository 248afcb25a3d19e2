// Package types models the scalar/vector/matrix/array/struct type
// vocabulary shared by the front end (user annotations, resource
// declarations) and the back end (SPIR-V type emission).
//
// A Type is a tagged variant over Void, Scalar, Vector, Matrix, Array and
// Struct. Equality is structural: two Types built independently from the
// same shape compare equal via Equal, and hash identically via Registry.
package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Type is a tagged variant over the concrete shader type kinds.
type Type struct {
	Inner Inner
}

// Inner is implemented by every concrete type kind.
type Inner interface {
	typeInner()
}

// Void is the empty type, used for functions with no return value.
type Void struct{}

func (Void) typeInner() {}

// ScalarKind distinguishes signed integer, unsigned integer and floating
// point scalars.
type ScalarKind uint8

const (
	ScalarSint ScalarKind = iota
	ScalarUint
	ScalarFloat
)

func (k ScalarKind) String() string {
	switch k {
	case ScalarSint:
		return "sint"
	case ScalarUint:
		return "uint"
	case ScalarFloat:
		return "float"
	default:
		return "unknown"
	}
}

// Scalar is a numeric leaf type. Width is in bits and must be one of
// 8/16/32/64; the combination of Kind and Width is further constrained by
// SPIR-V validity (e.g. there is no signed 8-bit scalar in the source
// language's vocabulary — only u8).
type Scalar struct {
	Kind  ScalarKind
	Width uint8
}

func (Scalar) typeInner() {}

// Bool is the result type of compare and the operand/result type of the
// short-circuit logical operators. It never appears in a user annotation
// or a resource subtype; the back end produces and consumes it internally
// for condition values (OpBranchConditional, OpSelect, OpLogicalAnd/Or).
type Bool struct{}

func (Bool) typeInner() {}

// Vector is a fixed-length SIMD tuple of scalars. Length is 2, 3 or 4.
// A Vector with a nil Element is abstract: it names a length without
// committing to an element type, legal only in parametric annotation
// positions, never in the back end.
type Vector struct {
	Length  uint8
	Element *Scalar
}

func (Vector) typeInner() {}

// Matrix is a Cols x Rows grid of float columns. Cols and Rows are each
// 2, 3 or 4.
type Matrix struct {
	Cols, Rows uint8
	Element    Scalar // must carry ScalarFloat
}

func (Matrix) typeInner() {}

// ArraySizeKind distinguishes a compile-time-constant array length from a
// runtime-sized ("unsized") array and from the abstract marker used by
// parametric annotations.
type ArraySizeKind uint8

const (
	ArrayConcrete ArraySizeKind = iota
	ArrayUnsized
	ArrayAbstract
)

// ArraySize carries the array's length discriminator and, when
// Kind==ArrayConcrete, the length itself.
type ArraySize struct {
	Kind ArraySizeKind
	N    uint32
}

// Array is a homogeneous sequence. An Array whose Size.Kind is
// ArrayAbstract names only the element type, not a length, and is legal
// only in parametric annotation positions.
type Array struct {
	Element Type
	Size    ArraySize
}

func (Array) typeInner() {}

// Field is a single named, ordered struct member.
type Field struct {
	Name string
	Type Type
}

// Struct is an ordered sequence of named fields.
type Struct struct {
	Fields []Field
}

func (Struct) typeInner() {}

// IsAbstract reports whether t is a parametric form that is legal in a
// user annotation but must be rejected before it reaches the back end.
func IsAbstract(t Type) bool {
	switch inner := t.Inner.(type) {
	case Vector:
		return inner.Element == nil
	case Array:
		return inner.Size.Kind == ArrayAbstract || IsAbstract(inner.Element)
	default:
		return false
	}
}

// FieldsOf returns the ordered field list of t if t is a Struct, and false
// otherwise.
func FieldsOf(t Type) ([]Field, bool) {
	s, ok := t.Inner.(Struct)
	if !ok {
		return nil, false
	}
	return s.Fields, true
}

// ElementOf returns the element type of a Vector, Matrix or Array, and
// false for any other kind.
func ElementOf(t Type) (Type, bool) {
	switch inner := t.Inner.(type) {
	case Vector:
		if inner.Element == nil {
			return Type{}, false
		}
		return Type{Inner: *inner.Element}, true
	case Matrix:
		return Type{Inner: inner.Element}, true
	case Array:
		return inner.Element, true
	default:
		return Type{}, false
	}
}

// LengthOf returns the vector length or matrix column count of t.
func LengthOf(t Type) (int, bool) {
	switch inner := t.Inner.(type) {
	case Vector:
		return int(inner.Length), true
	case Matrix:
		return int(inner.Cols), true
	default:
		return 0, false
	}
}

// RowsOf returns the matrix row count of t.
func RowsOf(t Type) (int, bool) {
	m, ok := t.Inner.(Matrix)
	if !ok {
		return 0, false
	}
	return int(m.Rows), true
}

// Equal reports whether a and b have the same structure.
func Equal(a, b Type) bool {
	return key(a.Inner) == key(b.Inner)
}

// key builds the structural string used both by Equal and by Registry's
// deduplication map: two Inners with the same shape produce the same key.
func key(inner Inner) string {
	switch t := inner.(type) {
	case Void:
		return "void"
	case Bool:
		return "bool"
	case Scalar:
		return "scalar:" + strconv.Itoa(int(t.Kind)) + ":" + strconv.Itoa(int(t.Width))
	case Vector:
		if t.Element == nil {
			return "vec:" + strconv.Itoa(int(t.Length)) + ":abstract"
		}
		return "vec:" + strconv.Itoa(int(t.Length)) + ":" + key(*t.Element)
	case Matrix:
		return "mat:" + strconv.Itoa(int(t.Cols)) + "x" + strconv.Itoa(int(t.Rows)) + ":" + key(t.Element)
	case Array:
		var sizeKey string
		switch t.Size.Kind {
		case ArrayConcrete:
			sizeKey = strconv.FormatUint(uint64(t.Size.N), 10)
		case ArrayUnsized:
			sizeKey = "unsized"
		default:
			sizeKey = "abstract"
		}
		return "array:" + sizeKey + ":" + key(t.Element.Inner)
	case Struct:
		var sb strings.Builder
		fmt.Fprintf(&sb, "struct:%d", len(t.Fields))
		for _, f := range t.Fields {
			fmt.Fprintf(&sb, ":m(%s,%s)", f.Name, key(f.Type.Inner))
		}
		return sb.String()
	default:
		return fmt.Sprintf("unknown:%T", inner)
	}
}

// String renders a human-readable name, used in error messages.
func (t Type) String() string {
	switch inner := t.Inner.(type) {
	case Void:
		return "void"
	case Bool:
		return "bool"
	case Scalar:
		return scalarName(inner)
	case Vector:
		if inner.Element == nil {
			return fmt.Sprintf("vec%d<abstract>", inner.Length)
		}
		return fmt.Sprintf("vec%d<%s>", inner.Length, scalarName(*inner.Element))
	case Matrix:
		return fmt.Sprintf("mat%dx%d<%s>", inner.Cols, inner.Rows, scalarName(inner.Element))
	case Array:
		elem := Type{Inner: inner.Element.Inner}
		switch inner.Size.Kind {
		case ArrayConcrete:
			return fmt.Sprintf("array<%s,%d>", elem, inner.Size.N)
		case ArrayUnsized:
			return fmt.Sprintf("array<%s>", elem)
		default:
			return fmt.Sprintf("array<%s,abstract>", elem)
		}
	case Struct:
		var sb strings.Builder
		sb.WriteString("Struct(")
		for i, f := range inner.Fields {
			if i > 0 {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, "%s=%s", f.Name, f.Type)
		}
		sb.WriteString(")")
		return sb.String()
	default:
		return "?"
	}
}

func scalarName(s Scalar) string {
	switch s.Kind {
	case ScalarFloat:
		return fmt.Sprintf("f%d", s.Width)
	case ScalarSint:
		return fmt.Sprintf("i%d", s.Width)
	default:
		return fmt.Sprintf("u%d", s.Width)
	}
}
