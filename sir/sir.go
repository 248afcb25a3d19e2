// Package sir defines the stack intermediate representation (SIR): the
// closed opcode stream produced by the front end (package frontend) and
// consumed by the back end (package spirv).
//
// A Program is restartable and serializable to the line-oriented text form
// described by Serialize/Parse: one Instruction per line, fields encoded
// as JSON scalars separated by commas.
package sir

import "fmt"

// Opcode is a closed enumeration of SIR instruction kinds. Adding or
// renaming an opcode at the front end without a matching case in the back
// end's dispatch table is a programming error, not a runtime one: both
// stages range over the same closed set.
type Opcode uint8

const (
	OpEntrypoint Opcode = iota
	OpFuncEnd
	OpCall
	OpReturn

	OpResource

	OpLoadName
	OpStoreName
	OpLoadIndex
	OpStoreIndex
	OpLoadAttr
	OpLoadConstant
	OpLoadArray

	OpBinaryOp
	OpUnaryOp
	OpCompare
	OpSelect

	OpPopTop
	OpDupTop
	OpRotTwo

	OpLabel
	OpBranch
	OpBranchConditional
	OpBranchLoop
)

var opcodeNames = [...]string{
	OpEntrypoint:         "entrypoint",
	OpFuncEnd:            "func_end",
	OpCall:               "call",
	OpReturn:             "return",
	OpResource:           "resource",
	OpLoadName:           "load_name",
	OpStoreName:          "store_name",
	OpLoadIndex:          "load_index",
	OpStoreIndex:         "store_index",
	OpLoadAttr:           "load_attr",
	OpLoadConstant:       "load_constant",
	OpLoadArray:          "load_array",
	OpBinaryOp:           "binary_op",
	OpUnaryOp:            "unary_op",
	OpCompare:            "compare",
	OpSelect:             "select",
	OpPopTop:             "pop_top",
	OpDupTop:             "dup_top",
	OpRotTwo:             "rot_two",
	OpLabel:              "label",
	OpBranch:             "branch",
	OpBranchConditional:  "branch_conditional",
	OpBranchLoop:         "branch_loop",
}

// String returns the canonical opcode name used by the text form.
func (o Opcode) String() string {
	if int(o) < len(opcodeNames) && opcodeNames[o] != "" {
		return opcodeNames[o]
	}
	return fmt.Sprintf("opcode(%d)", uint8(o))
}

var opcodeByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeNames))
	for op, name := range opcodeNames {
		m[name] = Opcode(op)
	}
	return m
}()

// OpcodeByName resolves an opcode's canonical text-form name back to its
// Opcode. The second return is false for any name outside the closed set.
func OpcodeByName(name string) (Opcode, bool) {
	op, ok := opcodeByName[name]
	return op, ok
}

// BinaryKind enumerates binary_op's argument vocabulary.
type BinaryKind string

const (
	BinAdd BinaryKind = "add"
	BinSub BinaryKind = "sub"
	BinMul BinaryKind = "mul"
	BinDiv BinaryKind = "div"
	BinMod BinaryKind = "mod"
	BinPow BinaryKind = "pow"
	BinAnd BinaryKind = "and"
	BinOr  BinaryKind = "or"
)

// UnaryKind enumerates unary_op's argument vocabulary.
type UnaryKind string

const (
	UnaryNeg UnaryKind = "neg"
	UnaryNot UnaryKind = "not"
)

// CompareOp enumerates compare's argument vocabulary.
type CompareOp string

const (
	CmpLT CompareOp = "<"
	CmpLE CompareOp = "<="
	CmpEQ CompareOp = "=="
	CmpNE CompareOp = "!="
	CmpGT CompareOp = ">"
	CmpGE CompareOp = ">="
)

// ResourceKind enumerates the resource() opcode's kind argument.
type ResourceKind string

const (
	ResourceInput   ResourceKind = "input"
	ResourceOutput  ResourceKind = "output"
	ResourceUniform ResourceKind = "uniform"
	ResourceBuffer  ResourceKind = "buffer"
	ResourceSampler ResourceKind = "sampler"
	ResourceTexture ResourceKind = "texture"
)

// ShaderKind enumerates entrypoint()'s shader_kind argument.
type ShaderKind string

const (
	ShaderVertex   ShaderKind = "vertex"
	ShaderFragment ShaderKind = "fragment"
	ShaderCompute  ShaderKind = "compute"
	ShaderGeometry ShaderKind = "geometry"
)

// Instruction is a single SIR opcode plus its arguments. Each argument is
// one of int64, float64, bool, string or []Arg — the closed set named by
// spec §3 ("int | float | bool | string | list").
type Instruction struct {
	Op   Opcode
	Args []Arg
}

// Arg is the value carried by an Instruction argument slot.
type Arg = any

// Program is an ordered sequence of Instructions. It is restartable: the
// same Program can be executed by the back end any number of times with
// no side effects on the Program itself.
type Program []Instruction

// Emit appends a new Instruction built from op and args to p and returns
// the extended Program, mirroring the append-only instruction pool the
// front end's walker builds up one source op at a time.
func (p Program) Emit(op Opcode, args ...Arg) Program {
	return append(p, Instruction{Op: op, Args: args})
}

// Labels returns the set of labels defined by p, and an error if any label
// is defined more than once (spec §8: "each label is defined exactly
// once").
func (p Program) Labels() (map[string]int, error) {
	labels := make(map[string]int, 8)
	for i, instr := range p {
		if instr.Op != OpLabel {
			continue
		}
		name, ok := instr.Args[0].(string)
		if !ok {
			return nil, fmt.Errorf("label instruction at %d has non-string argument", i)
		}
		if _, dup := labels[name]; dup {
			return nil, fmt.Errorf("label %q defined more than once", name)
		}
		labels[name] = i
	}
	return labels, nil
}

// VerifyBranchTargets checks that every branch/branch_conditional/
// branch_loop target refers to a label defined somewhere in p.
func (p Program) VerifyBranchTargets() error {
	labels, err := p.Labels()
	if err != nil {
		return err
	}
	check := func(i int, name string) error {
		if _, ok := labels[name]; !ok {
			return fmt.Errorf("instruction %d branches to undefined label %q", i, name)
		}
		return nil
	}
	for i, instr := range p {
		switch instr.Op {
		case OpBranch:
			if err := check(i, instr.Args[0].(string)); err != nil {
				return err
			}
		case OpBranchConditional:
			if err := check(i, instr.Args[0].(string)); err != nil {
				return err
			}
			if err := check(i, instr.Args[1].(string)); err != nil {
				return err
			}
		case OpBranchLoop:
			for _, a := range instr.Args {
				if err := check(i, a.(string)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
