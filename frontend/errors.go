package frontend

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorKind is the closed taxonomy of §7.
type ErrorKind string

const (
	UnsupportedSourceOp   ErrorKind = "UnsupportedSourceOp"
	UnsupportedConstant   ErrorKind = "UnsupportedConstant"
	UnannotatedArgument   ErrorKind = "UnannotatedArgument"
	BadResourceAnnotation ErrorKind = "BadResourceAnnotation"
	DuplicateSlot         ErrorKind = "DuplicateSlot"
	UnknownBuiltin        ErrorKind = "UnknownBuiltin"
	TypeMismatch          ErrorKind = "TypeMismatch"
	AbstractType          ErrorKind = "AbstractType"
	InvalidSwizzle        ErrorKind = "InvalidSwizzle"
	IllegalStoreTarget    ErrorKind = "IllegalStoreTarget"
	UnresolvedControlFlow ErrorKind = "UnresolvedControlFlow"
	UnknownIntrinsic      ErrorKind = "UnknownIntrinsic"
	ShapeMismatch         ErrorKind = "ShapeMismatch"
)

// ShaderError is a single compile failure with a location (instruction
// index into the function being walked) and an optional wrapped cause.
type ShaderError struct {
	Kind    ErrorKind
	Message string
	At      int // instruction index, -1 if not applicable
	Cause   error
}

func (e *ShaderError) Error() string {
	if e.At < 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s (at instruction %d)", e.Kind, e.Message, e.At)
}

func (e *ShaderError) Unwrap() error { return e.Cause }

// FormatWithContext renders the error on one line and, if there is a
// wrapped cause, the cause's message on a second "caused by" line.
func (e *ShaderError) FormatWithContext() string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	if e.Cause != nil {
		fmt.Fprintf(&sb, "\ncaused by: %s", e.Cause)
	}
	return sb.String()
}

// newError builds a ShaderError with no wrapped cause.
func newError(kind ErrorKind, at int, format string, args ...any) *ShaderError {
	return &ShaderError{Kind: kind, Message: fmt.Sprintf(format, args...), At: at}
}

// wrapError builds a ShaderError wrapping cause with
// github.com/pkg/errors so the original stack trace survives.
func wrapError(kind ErrorKind, at int, cause error, format string, args ...any) *ShaderError {
	return &ShaderError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		At:      at,
		Cause:   errors.WithStack(cause),
	}
}

// ShaderErrors aggregates every failure observed walking a Function. The
// walker returns on the first error (per §7's "exactly one error
// describing the earliest failure"); ShaderErrors exists for callers that
// want to accumulate across independent compiles.
type ShaderErrors []*ShaderError

func (el ShaderErrors) Error() string {
	switch len(el) {
	case 0:
		return "no errors"
	case 1:
		return el[0].Error()
	default:
		return fmt.Sprintf("%s (and %d more errors)", el[0].Error(), len(el)-1)
	}
}

func (el *ShaderErrors) Add(err *ShaderError) { *el = append(*el, err) }

func (el ShaderErrors) HasErrors() bool { return len(el) > 0 }
