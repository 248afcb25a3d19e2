package frontend

import (
	"fmt"

	"github.com/gogpu/shaderc/sir"
	"github.com/gogpu/shaderc/types"
)

// symKind tags the compile-time-known shape of a symbolic stack slot. Most
// slots are symRuntime: a value that exists only on the SIR stack once
// control reaches the back end. The other kinds let the walker resolve
// attribute chains (stdlib.pow, texture.sample) and range() arguments at
// walk time, without executing anything.
type symKind int

const (
	symRuntime symKind = iota
	symConst
	symName
	symBuiltin
	symTexture
)

type symValue struct {
	kind    symKind
	constVal any
	name    string
	builtin string
}

// loopFrame tracks one nested loop's synthetic labels while walking its
// body, per §4.4 "Loops".
type loopFrame struct {
	kind          string // "for" or "while"
	mergeAddr     int
	mergeLabel    string
	continueLabel string
	headerLabel   string
	iterLabel     string
	forStarted    bool
}

// Walker converts one Function's stack bytecode into a sir.Program.
type Walker struct {
	fn          *Function
	reg         *types.Registry
	prog        sir.Program
	stack       []symValue
	labelNames  map[int]string
	labelSeq    int
	loops       []loopFrame
	leavesValue map[string]bool // label name -> block ending there left a value
}

// NewWalker creates a Walker over fn. reg resolves annotation subtypes and
// intrinsic/cast callee names encountered as attribute loads.
func NewWalker(fn *Function, reg *types.Registry) *Walker {
	return &Walker{
		fn:          fn,
		reg:         reg,
		labelNames:  make(map[int]string),
		leavesValue: make(map[string]bool),
	}
}

// LeavesValue reports, per label name, whether the block ending at that
// label leaves a value on the stack for its successor. ApplyRewrites needs
// this to decide whether a branch pair is eligible for ternary splicing.
func (w *Walker) LeavesValue() map[string]bool { return w.leavesValue }

// Walk runs the walker to completion and returns the emitted SIR program.
func (w *Walker) Walk() (sir.Program, error) {
	if err := w.lowerArguments(); err != nil {
		return nil, err
	}
	w.prog = w.prog.Emit(sir.OpEntrypoint, w.fn.Name, w.fn.ShaderKind)

	w.prescanJumpTargets()

	for pc := 0; pc < len(w.fn.Instructions); pc++ {
		if err := w.emitPendingLabel(pc); err != nil {
			return nil, err
		}
		instr := w.fn.Instructions[pc]
		newPC, err := w.step(pc, instr)
		if err != nil {
			return nil, err
		}
		if newPC >= 0 {
			pc = newPC
		}
	}

	// A jump target exactly at the function's end (a loop or if/else whose
	// merge address is the instruction stream's length) never gets visited
	// by the main loop above; flush it here so its label is still defined.
	if err := w.emitPendingLabel(len(w.fn.Instructions)); err != nil {
		return nil, err
	}
	w.prog = w.prog.Emit(sir.OpFuncEnd)

	if err := w.prog.VerifyBranchTargets(); err != nil {
		return nil, wrapError(UnresolvedControlFlow, len(w.fn.Instructions), err, "control flow reconstruction produced an invalid program")
	}
	return w.prog, nil
}

func (w *Walker) lowerArguments() error {
	taken := make(map[string]string)
	for _, ann := range w.fn.Annotations {
		slotArg, nsKey, err := w.normalizeSlot(ann)
		if err != nil {
			return err
		}
		if nsKey != "" {
			if owner, dup := taken[nsKey]; dup {
				return newError(DuplicateSlot, -1, "slot %s already used by %q, cannot reuse for %q", nsKey, owner, ann.Name)
			}
			taken[nsKey] = ann.Name
		}
		name := string(ann.Kind) + "." + ann.Name
		w.prog = w.prog.Emit(sir.OpResource, name, string(ann.Kind), slotArg, ann.Subtype.String())
	}
	return nil
}

func (w *Walker) normalizeSlot(ann ArgAnnotation) (sir.Arg, string, error) {
	s := ann.Slot
	switch {
	case s.Int != nil:
		ns := "input"
		if ann.Kind == ArgOutput {
			ns = "output"
		}
		return int64(*s.Int), fmt.Sprintf("%s:%d", ns, *s.Int), nil
	case s.BindGroup != nil && s.Binding != nil:
		return []sir.Arg{int64(*s.BindGroup), int64(*s.Binding)}, fmt.Sprintf("bindgroup-%d:%d", *s.BindGroup, *s.Binding), nil
	case s.Builtin != "":
		return s.Builtin, "", nil
	default:
		return nil, "", newError(BadResourceAnnotation, -1, "argument %q has no slot", ann.Name)
	}
}

// prescanJumpTargets walks the raw instruction stream once to discover
// every address a jump can land on, assigning each a stable label name
// before the main pass runs.
func (w *Walker) prescanJumpTargets() {
	for _, instr := range w.fn.Instructions {
		switch instr.Op {
		case OpPopJumpIfFalse, OpPopJumpIfTrue, OpJumpForward, OpJumpAbsolute, OpSetupLoop:
			w.labelFor(instr.Arg)
		}
	}
}

func (w *Walker) labelFor(addr int) string {
	if name, ok := w.labelNames[addr]; ok {
		return name
	}
	name := fmt.Sprintf("L%d", addr)
	w.labelNames[addr] = name
	return name
}

func (w *Walker) newSyntheticLabel(prefix string) string {
	w.labelSeq++
	return fmt.Sprintf("%s%d", prefix, w.labelSeq)
}

// emitPendingLabel implements §4.4's "when the walker reaches an address
// that has been recorded as a label, it emits an implicit branch(L)
// unless the last emitted instruction already terminates the block,
// followed by label(L)."
func (w *Walker) emitPendingLabel(pc int) error {
	name, ok := w.labelNames[pc]
	if !ok {
		return nil
	}
	if len(w.prog) > 0 {
		last := w.prog[len(w.prog)-1].Op
		if !isTerminator(last) {
			if len(w.stack) > 0 {
				w.leavesValue[name] = true
			}
			w.prog = w.prog.Emit(sir.OpBranch, name)
		}
	}
	w.prog = w.prog.Emit(sir.OpLabel, name)
	w.stack = w.stack[:0]
	return nil
}

func isTerminator(op sir.Opcode) bool {
	switch op {
	case sir.OpBranch, sir.OpBranchConditional, sir.OpBranchLoop, sir.OpReturn, sir.OpFuncEnd:
		return true
	default:
		return false
	}
}

// step executes one source instruction, mutating the symbolic stack and
// emitting SIR. It returns -1 to continue sequentially; Walk moves the
// cursor to any non-negative pc returned instead, though every handler
// in this dispatch table (FOR_ITER included) returns -1.
func (w *Walker) step(pc int, instr BytecodeInstr) (int, error) {
	switch instr.Op {
	case OpLoadConst:
		v := w.fn.Constants[instr.Arg]
		if !isSupportedConstant(v) {
			return -1, newError(UnsupportedConstant, pc, "constant %v has unsupported type %T", v, v)
		}
		w.push(symValue{kind: symConst, constVal: v})
		w.emitConst(v)
		return -1, nil

	case OpLoadFast:
		name := w.fn.Names[instr.Arg]
		w.push(symValue{kind: symName, name: name})
		w.prog = w.prog.Emit(sir.OpLoadName, name)
		return -1, nil

	case OpStoreFast:
		name := w.fn.Names[instr.Arg]
		if w.isInputOrUniform(name) {
			return -1, newError(IllegalStoreTarget, pc, "cannot store to input/uniform argument %q", name)
		}
		w.pop()
		w.prog = w.prog.Emit(sir.OpStoreName, name)
		return -1, nil

	case OpLoadGlobal:
		name := w.fn.Names[instr.Arg]
		w.push(symValue{kind: symBuiltin, builtin: name})
		return -1, nil

	case OpLoadAttr:
		name := w.fn.Names[instr.Arg]
		top := w.peek()
		if top.kind == symBuiltin && (top.builtin == "stdlib" || top.builtin == "texture") {
			w.pop()
			w.push(symValue{kind: symBuiltin, builtin: top.builtin + "." + name})
			return -1, nil
		}
		w.pop()
		w.push(symValue{kind: symRuntime})
		w.prog = w.prog.Emit(sir.OpLoadAttr, name)
		return -1, nil

	case OpBinaryAdd, OpBinarySub, OpBinaryMul, OpBinaryDiv, OpBinaryMod, OpBinaryPow, OpBinaryAnd, OpBinaryOr:
		return -1, w.emitBinary(pc, instr.Op)

	case OpUnaryNeg:
		w.pop()
		w.push(symValue{kind: symRuntime})
		w.prog = w.prog.Emit(sir.OpUnaryOp, string(sir.UnaryNeg))
		return -1, nil

	case OpUnaryNot:
		w.pop()
		w.push(symValue{kind: symRuntime})
		w.prog = w.prog.Emit(sir.OpUnaryOp, string(sir.UnaryNot))
		return -1, nil

	case OpCompareOp:
		w.pop()
		w.pop()
		w.push(symValue{kind: symRuntime})
		w.prog = w.prog.Emit(sir.OpCompare, compareOpName(instr.Arg))
		return -1, nil

	case OpBinarySubscr:
		w.pop()
		w.pop()
		w.push(symValue{kind: symRuntime})
		w.prog = w.prog.Emit(sir.OpLoadIndex)
		return -1, nil

	case OpStoreSubscr:
		w.pop()
		w.pop()
		w.pop()
		w.prog = w.prog.Emit(sir.OpStoreIndex)
		return -1, nil

	case OpCallFunction:
		return -1, w.emitCall(pc, instr.Arg)

	case OpPopTop:
		w.pop()
		w.prog = w.prog.Emit(sir.OpPopTop)
		return -1, nil

	case OpDupTop:
		w.push(w.peek())
		w.prog = w.prog.Emit(sir.OpDupTop)
		return -1, nil

	case OpRotTwo:
		if len(w.stack) >= 2 {
			n := len(w.stack)
			w.stack[n-1], w.stack[n-2] = w.stack[n-2], w.stack[n-1]
		}
		w.prog = w.prog.Emit(sir.OpRotTwo)
		return -1, nil

	case OpReturnValue:
		if len(w.stack) > 0 {
			w.pop()
		}
		w.prog = w.prog.Emit(sir.OpReturn)
		return -1, nil

	case OpPopJumpIfFalse, OpPopJumpIfTrue:
		w.pop()
		trueLabel := w.labelFor(pc + 1)
		falseLabel := w.labelFor(instr.Arg)
		if instr.Op == OpPopJumpIfTrue {
			trueLabel, falseLabel = falseLabel, trueLabel
		}
		w.prog = w.prog.Emit(sir.OpBranchConditional, trueLabel, falseLabel)
		return -1, nil

	case OpJumpForward, OpJumpAbsolute:
		target := w.labelFor(instr.Arg)
		if len(w.stack) > 0 {
			w.leavesValue[target] = true
		}
		w.prog = w.prog.Emit(sir.OpBranch, target)
		return -1, nil

	case OpSetupLoop:
		return w.enterLoop(pc, instr)

	case OpForIter:
		return w.forIterStep(pc, instr)

	case OpPopBlock:
		return -1, w.exitLoopBody()

	case OpBreakLoop:
		if len(w.loops) == 0 {
			return -1, newError(UnsupportedSourceOp, pc, "break outside loop")
		}
		frame := w.loops[len(w.loops)-1]
		w.prog = w.prog.Emit(sir.OpBranch, frame.mergeLabel)
		return -1, nil

	case OpContinueLoop:
		if len(w.loops) == 0 {
			return -1, newError(UnsupportedSourceOp, pc, "continue outside loop")
		}
		frame := w.loops[len(w.loops)-1]
		w.prog = w.prog.Emit(sir.OpBranch, frame.continueLabel)
		return -1, nil

	default:
		return -1, newError(UnsupportedSourceOp, pc, "opcode %d is not in the recognized dispatch table", instr.Op)
	}
}

func (w *Walker) emitConst(v any) {
	switch n := v.(type) {
	case int:
		w.prog = w.prog.Emit(sir.OpLoadConstant, int64(n))
	case int64:
		w.prog = w.prog.Emit(sir.OpLoadConstant, n)
	case float64:
		w.prog = w.prog.Emit(sir.OpLoadConstant, n)
	case bool:
		w.prog = w.prog.Emit(sir.OpLoadConstant, n)
	case string:
		w.prog = w.prog.Emit(sir.OpLoadConstant, n)
	}
}

// isPositiveIntLiteral reports whether v is a compile-time-known integer
// constant greater than zero, the only shape range()'s step argument
// accepts (spec §9).
func isPositiveIntLiteral(v symValue) bool {
	if v.kind != symConst {
		return false
	}
	switch n := v.constVal.(type) {
	case int:
		return n > 0
	case int64:
		return n > 0
	default:
		return false
	}
}

func isSupportedConstant(v any) bool {
	switch v.(type) {
	case int, int64, float64, bool:
		return true
	default:
		return false
	}
}

func (w *Walker) isInputOrUniform(name string) bool {
	for _, ann := range w.fn.Annotations {
		if ann.Name == name && (ann.Kind == ArgInput || ann.Kind == ArgUniform) {
			return true
		}
	}
	return false
}

var compareOpNames = map[int]sir.CompareOp{
	0: sir.CmpLT, 1: sir.CmpLE, 2: sir.CmpEQ, 3: sir.CmpNE, 4: sir.CmpGT, 5: sir.CmpGE,
}

func compareOpName(arg int) string {
	if op, ok := compareOpNames[arg]; ok {
		return string(op)
	}
	return string(sir.CmpEQ)
}

// emitBinary lowers an arithmetic/logical source opcode, special-casing
// `**` with constant exponent 2 into dup_top+mul per §4.4.
func (w *Walker) emitBinary(pc int, op SourceOp) error {
	rhs := w.peek()
	if op == OpBinaryPow && rhs.kind == symConst {
		if n, ok := asIntConstant(rhs.constVal); ok && n == 2 {
			w.pop() // discard the exponent constant already emitted
			w.prog = w.prog[:len(w.prog)-1]
			w.pop() // base: dup_top+mul replaces it with the single result
			w.prog = w.prog.Emit(sir.OpDupTop)
			w.prog = w.prog.Emit(sir.OpBinaryOp, string(sir.BinMul))
			w.push(symValue{kind: symRuntime})
			return nil
		}
	}
	kind, err := binaryKindFor(op)
	if err != nil {
		return newError(UnsupportedSourceOp, pc, "%v", err)
	}
	w.pop()
	w.pop()
	w.push(symValue{kind: symRuntime})
	w.prog = w.prog.Emit(sir.OpBinaryOp, string(kind))
	return nil
}

func asIntConstant(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

func binaryKindFor(op SourceOp) (sir.BinaryKind, error) {
	switch op {
	case OpBinaryAdd:
		return sir.BinAdd, nil
	case OpBinarySub:
		return sir.BinSub, nil
	case OpBinaryMul:
		return sir.BinMul, nil
	case OpBinaryDiv:
		return sir.BinDiv, nil
	case OpBinaryMod:
		return sir.BinMod, nil
	case OpBinaryPow:
		return sir.BinPow, nil
	case OpBinaryAnd:
		return sir.BinAnd, nil
	case OpBinaryOr:
		return sir.BinOr, nil
	default:
		return "", fmt.Errorf("opcode %d is not a binary operator", op)
	}
}

// emitCall handles plain calls (type constructors, intrinsics) plus the
// range() special case of §4.4: 1/2/3 arguments normalized to a (start,
// stop, step) triple on the stack, with a rot_two rewrite when only the
// stop argument was given. Every callee must resolve to a compile-time-
// known name (a vector/array/matrix type constructor or a stdlib/texture
// intrinsic): arbitrary user function calls are out of scope (spec §1
// non-goals), so a callee that isn't a symBuiltin is rejected outright.
func (w *Walker) emitCall(pc int, nargs int) error {
	calleeIdx := len(w.stack) - nargs - 1
	if calleeIdx < 0 {
		return newError(UnsupportedSourceOp, pc, "call stack underflow")
	}
	callee := w.stack[calleeIdx]

	if callee.kind == symBuiltin && callee.builtin == "range" {
		return w.emitRangeCall(pc, nargs)
	}
	if callee.kind != symBuiltin {
		return newError(UnknownIntrinsic, pc, "call target is not a recognized type constructor or intrinsic")
	}

	for i := 0; i < nargs+1; i++ {
		w.pop()
	}
	w.push(symValue{kind: symRuntime})
	w.prog = w.prog.Emit(sir.OpCall, callee.builtin, int64(nargs))
	return nil
}

// pushRangeTriple pushes the three symbolic stack slots standing for the
// normalized (start, stop, step) triple, matching the three values
// forIterStep later pops off in LIFO (step, stop, start) order.
func (w *Walker) pushRangeTriple() {
	w.push(symValue{kind: symRuntime})
	w.push(symValue{kind: symRuntime})
	w.push(symValue{kind: symRuntime})
}

func (w *Walker) emitRangeCall(pc int, nargs int) error {
	switch nargs {
	case 1:
		// stack: [range, stop] -> normalize to [start=0, stop, step=1]:
		// after the already-emitted load of stop, emit load_constant(0)
		// and a rot_two (so 0 ends up beneath stop), then
		// load_constant(1), giving the order start, stop, step.
		for i := 0; i < 2; i++ {
			w.pop()
		}
		w.prog = w.prog.Emit(sir.OpLoadConstant, int64(0))
		w.prog = w.prog.Emit(sir.OpRotTwo)
		w.prog = w.prog.Emit(sir.OpLoadConstant, int64(1))
		w.pushRangeTriple()
		return nil
	case 2:
		for i := 0; i < 3; i++ {
			w.pop()
		}
		w.prog = w.prog.Emit(sir.OpLoadConstant, int64(1))
		w.pushRangeTriple()
		return nil
	case 3:
		// spec §9: range()'s step must be a compile-time-known positive
		// int literal; the walker can only resolve it statically, and the
		// loop forIterStep emits always tests `v < v-stop`, a condition
		// that only fits a positive step.
		if !isPositiveIntLiteral(w.peek()) {
			return newError(UnsupportedSourceOp, pc, "range() step must be a constant int > 0")
		}
		for i := 0; i < 4; i++ {
			w.pop()
		}
		w.pushRangeTriple()
		return nil
	default:
		return newError(UnsupportedSourceOp, pc, "range() takes 1 to 3 arguments, got %d", nargs)
	}
}

func (w *Walker) push(v symValue) { w.stack = append(w.stack, v) }

func (w *Walker) pop() symValue {
	if len(w.stack) == 0 {
		return symValue{kind: symRuntime}
	}
	v := w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]
	return v
}

func (w *Walker) peek() symValue {
	if len(w.stack) == 0 {
		return symValue{kind: symRuntime}
	}
	return w.stack[len(w.stack)-1]
}
