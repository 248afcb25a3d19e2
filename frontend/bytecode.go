// Package frontend walks a source-language stack-machine bytecode function
// and emits a sir.Program. It owns control-flow reconstruction (labels,
// conditional branches, loop frames), the ternary-to-select and
// or-flattening rewrites, and the closed dispatch table mapping each
// recognized source opcode to a SIR-emitting handler.
package frontend

import "github.com/gogpu/shaderc/types"

// SourceOp is a source-bytecode opcode index. The set recognized by the
// walker is closed; anything outside it fails with UnsupportedSourceOp.
type SourceOp int

const (
	OpLoadConst SourceOp = iota
	OpLoadFast
	OpStoreFast
	OpLoadGlobal
	OpLoadAttr
	OpLoadMethod
	OpBinaryAdd
	OpBinarySub
	OpBinaryMul
	OpBinaryDiv
	OpBinaryMod
	OpBinaryPow
	OpBinaryAnd
	OpBinaryOr
	OpUnaryNeg
	OpUnaryNot
	OpCompareOp
	OpBinarySubscr
	OpStoreSubscr
	OpCallFunction
	OpPopTop
	OpDupTop
	OpRotTwo
	OpReturnValue
	OpPopJumpIfFalse
	OpPopJumpIfTrue
	OpJumpForward
	OpJumpAbsolute
	OpSetupLoop
	OpForIter
	OpPopBlock
	OpBreakLoop
	OpContinueLoop
)

// BytecodeInstr is one instruction of the input stack-machine bytecode: an
// opcode plus an immediate argument whose meaning depends on Op (an index
// into Constants, Names, or a raw jump target address).
type BytecodeInstr struct {
	Op  SourceOp
	Arg int
}

// ArgKind is the recognized resource kind of an annotated argument, per
// the input contract of §6.
type ArgKind string

const (
	ArgInput   ArgKind = "input"
	ArgOutput  ArgKind = "output"
	ArgUniform ArgKind = "uniform"
	ArgBuffer  ArgKind = "buffer"
	ArgSampler ArgKind = "sampler"
	ArgTexture ArgKind = "texture"
)

// Slot is an argument's binding location: an integer (location, for
// input/output), a (bind_group, binding) pair (for uniform/buffer), or a
// builtin name (string).
type Slot struct {
	Int       *int
	BindGroup *int
	Binding   *int
	Builtin   string
}

// IntSlot builds a plain integer location/binding slot.
func IntSlot(n int) Slot { return Slot{Int: &n} }

// GroupSlot builds a (bind_group, binding) slot.
func GroupSlot(group, binding int) Slot { return Slot{BindGroup: &group, Binding: &binding} }

// BuiltinSlot builds a builtin-name slot.
func BuiltinSlot(name string) Slot { return Slot{Builtin: name} }

// ArgAnnotation describes one entry-point argument's resource binding, the
// `(kind, slot, subtype)` triple of §6.
type ArgAnnotation struct {
	Name    string
	Kind    ArgKind
	Slot    Slot
	Subtype types.Type
}

// Function is the complete input contract the front end consumes: the
// stack bytecode, its constants/names side tables, and the annotated
// argument list.
type Function struct {
	Name         string
	ShaderKind   string
	Instructions []BytecodeInstr
	Constants    []any
	Names        []string
	FreeVars     []string
	Annotations  []ArgAnnotation
}
