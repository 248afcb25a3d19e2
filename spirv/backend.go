package spirv

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/gogpu/shaderc/frontend"
	"github.com/gogpu/shaderc/sir"
	"github.com/gogpu/shaderc/types"
)

// lvalue defers pointer-chain materialization (spec §4.5's VariableAccess)
// until a load or store actually needs it: load_index/store_index copy
// the parent's index list, append one index, and emit a single access
// chain from the root variable with the full list.
type lvalue struct {
	ptr     uint32
	storage StorageClass
	elemTy  types.Type
	indices []uint32
}

// value is one entry of the back end's runtime operand stack: a SPIR-V id
// carrying its source-level type and, when it was produced by a load, the
// lvalue chain that produced it (so a following load_index/store_index
// can extend that chain; store_name writes by name and does not use it).
type value struct {
	id uint32
	ty types.Type
	lv *lvalue
}

// variable is one entry of the back end's name table: every resource and
// every function-local the walker's load_name/store_name addresses by
// bare name.
type variable struct {
	ptr     uint32
	ty      types.Type
	storage StorageClass
	wrapped bool

	// rawTypeID, when nonzero, is the SPIR-V type id OpLoad must use
	// directly instead of deriving one from ty via Pool.TypeID. Texture
	// and sampler resources need this: OpTypeImage/OpTypeSampler have no
	// types.Type representation, so ty only carries the texel scalar
	// type (kept around for vec4Of) while rawTypeID carries the actual
	// pointee type.
	rawTypeID uint32
}

// loopCtx is the active loop's header/merge/continue label bookkeeping,
// used to detect the loop-exit-branch exception: a conditional branch
// whose false (or true) target is the loop's own merge or continue block
// needs no OpSelectionMerge of its own (spec §4.5).
type loopCtx struct {
	mergeLabel    string
	continueLabel string
}

// Backend lowers one sir.Program into a binary SPIR-V module. It owns the
// stack-machine state (operand stack, name table, label ids) that mirrors,
// at SPIR-V id granularity, the symbolic stack the front end tracked at
// source-bytecode granularity.
type Backend struct {
	pool *Pool
	opts Options
	reg  *types.Registry

	vars     map[string]*variable
	stack    []value
	labelIDs map[string]uint32

	interfaceVars []uint32
	loopStack     []loopCtx
	pendingMerges []string
	mergeFor      map[int]string

	// curLabel is the label name of the block currently being emitted,
	// used to attribute a branch's trailing stack value to the right
	// predecessor when building phiEdges.
	curLabel string

	// phiEdges collects, per not-yet-reached target label, the value each
	// predecessor block left on the stack when it branched there. A
	// target that never gets converted to select() by spliceTernary
	// still needs its arms' values merged (spec §4.5's OpPhi
	// requirement), so lowerLabel consumes these on arrival.
	phiEdges map[string][]phiEdge

	shaderKind string
	entryName  string

	glslSet       uint32
	glslSetLoaded bool
}

// phiEdge is one incoming (value, predecessor block) pair for an OpPhi.
type phiEdge struct {
	predLabel uint32
	val       value
}

// NewBackend creates a Backend that emits into pool under opts.
func NewBackend(pool *Pool, opts Options) *Backend {
	return &Backend{
		pool:     pool,
		opts:     opts,
		vars:     make(map[string]*variable, 8),
		labelIDs: make(map[string]uint32, 8),
		phiEdges: make(map[string][]phiEdge, 4),
	}
}

// Run lowers prog into a complete binary SPIR-V module. reg is kept on
// the Backend; resource subtypes are parsed with types.ParseTypeString and
// constructor names with types.Resolve, neither of which consults it.
func (b *Backend) Run(prog sir.Program, reg *types.Registry) ([]byte, error) {
	b.reg = reg

	b.pool.AddCapability(CapabilityShader)
	for _, cap := range b.opts.Capabilities {
		b.pool.AddCapability(cap)
	}
	b.pool.SetCapabilityHook(func(t types.Type) {
		s, ok := t.Inner.(types.Scalar)
		if !ok {
			return
		}
		switch {
		case s.Kind == types.ScalarFloat && s.Width == 16:
			b.pool.AddCapability(CapabilityFloat16)
		case s.Kind == types.ScalarFloat && s.Width == 64:
			b.pool.AddCapability(CapabilityFloat64)
		case s.Kind != types.ScalarFloat && s.Width == 64:
			b.pool.AddCapability(CapabilityInt64)
		case s.Kind != types.ScalarFloat && s.Width == 16:
			b.pool.AddCapability(CapabilityInt16)
		case s.Kind != types.ScalarFloat && s.Width == 8:
			b.pool.AddCapability(CapabilityInt8)
		}
	})
	b.pool.SetMemoryModel(AddressingModelLogical, MemoryModelGLSL450)

	if b.opts.Debug {
		b.pool.AddModuleProcessed(fmt.Sprintf("shaderc build %s", uuid.NewString()))
	}

	if _, err := prog.Labels(); err != nil {
		return nil, errors.Wrap(err, "spirv: invalid program")
	}
	if err := prog.VerifyBranchTargets(); err != nil {
		return nil, errors.Wrap(err, "spirv: invalid program")
	}
	if err := b.precomputeMerges(prog); err != nil {
		return nil, err
	}

	for i, instr := range prog {
		if err := b.step(i, instr); err != nil {
			return nil, errors.Wrapf(err, "spirv: instruction %d (%s)", i, instr.Op)
		}
	}

	return b.pool.Build(), nil
}

func (b *Backend) labelID(name string) uint32 {
	if id, ok := b.labelIDs[name]; ok {
		return id
	}
	id := b.pool.AllocID()
	b.labelIDs[name] = id
	return id
}

func (b *Backend) push(v value) { b.stack = append(b.stack, v) }

func (b *Backend) pop() (value, error) {
	if len(b.stack) == 0 {
		return value{}, errors.New("operand stack underflow")
	}
	v := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]
	return v, nil
}

func (b *Backend) peek() (value, error) {
	if len(b.stack) == 0 {
		return value{}, errors.New("operand stack underflow")
	}
	return b.stack[len(b.stack)-1], nil
}

func u32Type() types.Type {
	return types.Type{Inner: types.Scalar{Kind: types.ScalarUint, Width: 32}}
}

// step dispatches one SIR instruction to its lowering method.
func (b *Backend) step(i int, instr sir.Instruction) error {
	switch instr.Op {
	case sir.OpEntrypoint:
		return b.lowerEntrypoint(instr.Args)
	case sir.OpFuncEnd:
		b.pool.Emit(OpFunctionEnd)
		return nil
	case sir.OpCall:
		callee := instr.Args[0].(string)
		nargs := int(instr.Args[1].(int64))
		return b.lowerCall(callee, nargs)
	case sir.OpReturn:
		return b.lowerReturn()

	case sir.OpResource:
		return b.lowerResource(instr.Args)

	case sir.OpLoadName:
		return b.lowerLoadName(instr.Args[0].(string))
	case sir.OpStoreName:
		return b.lowerStoreName(instr.Args[0].(string))
	case sir.OpLoadIndex:
		return b.lowerLoadIndex()
	case sir.OpStoreIndex:
		return b.lowerStoreIndex()
	case sir.OpLoadAttr:
		return b.lowerLoadAttr(instr.Args[0].(string))
	case sir.OpLoadConstant:
		return b.lowerLoadConstant(instr.Args[0])
	case sir.OpLoadArray:
		return b.lowerLoadArray(instr.Args[0].([]sir.Arg))

	case sir.OpBinaryOp:
		return b.lowerBinaryOp(sir.BinaryKind(instr.Args[0].(string)))
	case sir.OpUnaryOp:
		return b.lowerUnaryOp(sir.UnaryKind(instr.Args[0].(string)))
	case sir.OpCompare:
		return b.lowerCompare(sir.CompareOp(instr.Args[0].(string)))
	case sir.OpSelect:
		return b.lowerSelect()

	case sir.OpPopTop:
		_, err := b.pop()
		return err
	case sir.OpDupTop:
		v, err := b.peek()
		if err != nil {
			return err
		}
		b.push(v)
		return nil
	case sir.OpRotTwo:
		n := len(b.stack)
		if n < 2 {
			return errors.New("rot_two: operand stack underflow")
		}
		b.stack[n-1], b.stack[n-2] = b.stack[n-2], b.stack[n-1]
		return nil

	case sir.OpLabel:
		return b.lowerLabel(instr.Args[0].(string))
	case sir.OpBranch:
		target := instr.Args[0].(string)
		b.recordPhiEdge(target)
		b.pool.Emit(OpBranch, b.labelID(target))
		return nil
	case sir.OpBranchConditional:
		return b.lowerBranchConditional(i, instr.Args[0].(string), instr.Args[1].(string))
	case sir.OpBranchLoop:
		return b.lowerBranchLoop(instr.Args[0].(string), instr.Args[1].(string), instr.Args[2].(string))

	default:
		return errors.Errorf("unhandled opcode %s", instr.Op)
	}
}

// lowerEntrypoint emits the function shell (void() type, OpFunction,
// entry label) and the OpEntryPoint/OpExecutionMode pair. All resource()
// instructions execute before entrypoint() in program order (spec §4.2),
// so b.interfaceVars is already complete by the time OpEntryPoint is
// emitted.
func (b *Backend) lowerEntrypoint(args []sir.Arg) error {
	name := args[0].(string)
	kind := args[1].(string)
	model, ok := ExecutionModelFor(kind)
	if !ok {
		return errors.Errorf("unknown shader kind %q", kind)
	}
	b.shaderKind = kind
	b.entryName = name

	voidID := b.pool.TypeID(types.Type{Inner: types.Void{}})
	funcTypeID := b.pool.TypeFunction(voidID)
	funcID := b.pool.AllocID()
	b.pool.AddFunction(funcID, voidID, funcTypeID, FunctionControlNone)

	entryLabel := "__entry_" + name
	b.pool.AddLabel(b.labelID(entryLabel))

	b.pool.AddEntryPoint(model, funcID, name, b.interfaceVars)
	b.pool.AddName(funcID, name)

	switch kind {
	case "fragment":
		b.pool.AddExecutionMode(funcID, ExecutionModeOriginLowerLeft)
	case "compute":
		b.pool.AddExecutionMode(funcID, ExecutionModeLocalSize, 1, 1, 1)
	}
	return nil
}

// lowerResource declares one global OpVariable per resource() instruction,
// registering it in the name table under its bare (un-prefixed) name.
func (b *Backend) lowerResource(args []sir.Arg) error {
	debugName := args[0].(string)
	kind := args[1].(string)
	slot := args[2]
	subtype := args[3].(string)

	ty, err := types.ParseTypeString(subtype)
	if err != nil {
		return errors.Wrapf(err, "resource %q: malformed subtype %q", debugName, subtype)
	}
	bareName := strings.TrimPrefix(debugName, kind+".")

	switch sir.ResourceKind(kind) {
	case sir.ResourceInput, sir.ResourceOutput:
		return b.lowerIOResource(bareName, sir.ResourceKind(kind), slot, ty, debugName)
	case sir.ResourceUniform, sir.ResourceBuffer:
		return b.lowerBlockResource(bareName, sir.ResourceKind(kind), slot, ty, debugName)
	case sir.ResourceSampler:
		return b.lowerSamplerResource(bareName, slot, debugName)
	case sir.ResourceTexture:
		return b.lowerTextureResource(bareName, slot, ty, debugName)
	default:
		return errors.Errorf("unknown resource kind %q", kind)
	}
}

func (b *Backend) lowerIOResource(name string, kind sir.ResourceKind, slot sir.Arg, ty types.Type, debugName string) error {
	storage := StorageClassInput
	if kind == sir.ResourceOutput {
		storage = StorageClassOutput
	}
	typeID := b.pool.TypeID(ty)
	ptrType := b.pool.TypePointer(storage, typeID)
	ptr := b.pool.AddVariable(ptrType, storage)
	b.pool.AddName(ptr, debugName)

	if err := b.decorateSlot(ptr, slot); err != nil {
		return err
	}

	b.vars[name] = &variable{ptr: ptr, ty: ty, storage: storage}
	b.interfaceVars = append(b.interfaceVars, ptr)
	return nil
}

func (b *Backend) lowerBlockResource(name string, kind sir.ResourceKind, slot sir.Arg, ty types.Type, debugName string) error {
	storage := StorageClassUniform
	decoration := DecorationBlock
	if kind == sir.ResourceBuffer {
		decoration = DecorationBufferBlock
		if b.opts.StorageBufferClass == StorageBufferClassStorageBuffer {
			storage = StorageClassStorageBuffer
			decoration = DecorationBlock
		}
	}

	blockTy := ty
	wrapped := false
	if _, ok := ty.Inner.(types.Struct); !ok {
		blockTy = types.Type{Inner: types.Struct{Fields: []types.Field{{Name: "value", Type: ty}}}}
		wrapped = true
	}

	structID := b.pool.TypeID(blockTy)
	b.pool.AddDecorate(structID, decoration)
	decorateOffsets(b.pool, structID, blockTy)

	ptrType := b.pool.TypePointer(storage, structID)
	ptr := b.pool.AddVariable(ptrType, storage)
	b.pool.AddName(ptr, debugName)

	bindGroup, binding, err := descriptorSlot(slot)
	if err != nil {
		return errors.Wrapf(err, "resource %q", debugName)
	}
	b.pool.AddDecorate(ptr, DecorationDescriptorSet, bindGroup)
	b.pool.AddDecorate(ptr, DecorationBinding, binding)

	b.vars[name] = &variable{ptr: ptr, ty: blockTy, storage: storage, wrapped: wrapped}
	return nil
}

func (b *Backend) lowerSamplerResource(name string, slot sir.Arg, debugName string) error {
	typeID := b.pool.TypeSampler()
	ptrType := b.pool.TypePointer(StorageClassUniformConstant, typeID)
	ptr := b.pool.AddVariable(ptrType, StorageClassUniformConstant)
	b.pool.AddName(ptr, debugName)

	bindGroup, binding, err := descriptorSlot(slot)
	if err != nil {
		return errors.Wrapf(err, "resource %q", debugName)
	}
	b.pool.AddDecorate(ptr, DecorationDescriptorSet, bindGroup)
	b.pool.AddDecorate(ptr, DecorationBinding, binding)

	b.vars[name] = &variable{ptr: ptr, storage: StorageClassUniformConstant, rawTypeID: typeID}
	return nil
}

func (b *Backend) lowerTextureResource(name string, slot sir.Arg, texelTy types.Type, debugName string) error {
	sampledTypeID := b.pool.TypeID(texelTy)
	imageTypeID := b.pool.TypeImage(sampledTypeID, Dim2D, ImageFormatUnknown)
	ptrType := b.pool.TypePointer(StorageClassUniformConstant, imageTypeID)
	ptr := b.pool.AddVariable(ptrType, StorageClassUniformConstant)
	b.pool.AddName(ptr, debugName)

	bindGroup, binding, err := descriptorSlot(slot)
	if err != nil {
		return errors.Wrapf(err, "resource %q", debugName)
	}
	b.pool.AddDecorate(ptr, DecorationDescriptorSet, bindGroup)
	b.pool.AddDecorate(ptr, DecorationBinding, binding)

	b.vars[name] = &variable{ptr: ptr, ty: texelTy, storage: StorageClassUniformConstant, rawTypeID: imageTypeID}
	return nil
}

func (b *Backend) decorateSlot(ptr uint32, slot sir.Arg) error {
	switch s := slot.(type) {
	case int64:
		b.pool.AddDecorate(ptr, DecorationLocation, uint32(s))
		return nil
	case string:
		builtin, ok := BuiltinDecoration(s)
		if !ok {
			return errors.Errorf("unknown builtin %q", s)
		}
		b.pool.AddDecorate(ptr, DecorationBuiltIn, uint32(builtin))
		return nil
	default:
		return errors.Errorf("unsupported slot value %#v for an input/output resource", slot)
	}
}

func descriptorSlot(slot sir.Arg) (bindGroup, binding uint32, err error) {
	pair, ok := slot.([]sir.Arg)
	if !ok || len(pair) != 2 {
		return 0, 0, errors.Errorf("expected (bind_group, binding) slot, got %#v", slot)
	}
	g, ok1 := pair[0].(int64)
	n, ok2 := pair[1].(int64)
	if !ok1 || !ok2 {
		return 0, 0, errors.Errorf("malformed descriptor slot %#v", slot)
	}
	return uint32(g), uint32(n), nil
}

// recordPhiEdge stashes the value (if any) the current block leaves on the
// stack when it branches unconditionally to target, keyed by the block it
// came from. A ternary arm that spliceTernary didn't collapse to select()
// still ends this way, so lowerLabel has what it needs to merge the arms
// with OpPhi instead of silently dropping whichever one didn't run.
func (b *Backend) recordPhiEdge(target string) {
	if len(b.stack) == 0 {
		return
	}
	v := b.stack[len(b.stack)-1]
	b.phiEdges[target] = append(b.phiEdges[target], phiEdge{predLabel: b.labelID(b.curLabel), val: v})
}

// lowerLabel closes any loop/selection construct whose scope ends exactly
// at this label, then emits OpLabel. A block that reaches the label by
// falling through (its last instruction is not a branch or return, as
// after a spliced ternary's select) first gets an OpBranch to it and
// keeps its operand stack. Any other new block starts with an empty
// operand stack, mirroring the front end's own per-block reset — except
// that a label with recorded incoming phiEdges (spec §4.5: "a merge label
// marked as receives value on stack") gets an OpPhi collecting the last
// stack value from each predecessor, and that result replaces the reset
// stack's would-be-lost value.
func (b *Backend) lowerLabel(name string) error {
	if n := len(b.loopStack); n > 0 && b.loopStack[n-1].mergeLabel == name {
		b.loopStack = b.loopStack[:n-1]
	}
	if n := len(b.pendingMerges); n > 0 && b.pendingMerges[n-1] == name {
		b.pendingMerges = b.pendingMerges[:n-1]
	}
	fallThrough := false
	if n := len(b.pool.functions); n > 0 {
		switch b.pool.functions[n-1].Opcode {
		case OpBranch, OpBranchConditional, OpReturn, OpKill:
		default:
			fallThrough = true
		}
	}
	if fallThrough {
		b.pool.Emit(OpBranch, b.labelID(name))
	}
	b.pool.AddLabel(b.labelID(name))

	edges := b.phiEdges[name]
	delete(b.phiEdges, name)
	if !fallThrough {
		b.stack = b.stack[:0]
	}
	b.curLabel = name

	if len(edges) > 0 {
		operands := make([]uint32, 0, len(edges)*2)
		for _, e := range edges {
			operands = append(operands, e.val.id, e.predLabel)
		}
		resultID := b.pool.EmitResult(OpPhi, b.pool.TypeID(edges[0].val.ty), operands...)
		b.push(value{id: resultID, ty: edges[0].val.ty})
	}
	return nil
}

func (b *Backend) isLoopExit(label string) bool {
	if len(b.loopStack) == 0 {
		return false
	}
	top := b.loopStack[len(b.loopStack)-1]
	return label == top.mergeLabel || label == top.continueLabel
}

func (b *Backend) lowerBranchConditional(i int, trueLabel, falseLabel string) error {
	cond, err := b.pop()
	if err != nil {
		return err
	}
	if _, ok := cond.ty.Inner.(types.Bool); !ok {
		return errors.Errorf("branch_conditional: condition has non-bool type %s", cond.ty)
	}

	if b.isLoopExit(trueLabel) || b.isLoopExit(falseLabel) {
		b.pool.Emit(OpBranchConditional, cond.id, b.labelID(trueLabel), b.labelID(falseLabel))
		return nil
	}

	merge, ok := b.mergeFor[i]
	if !ok {
		return errors.Errorf("branch_conditional at %d: no precomputed merge point", i)
	}
	b.pendingMerges = append(b.pendingMerges, merge)
	b.pool.Emit(OpSelectionMerge, b.labelID(merge), uint32(SelectionControlNone))
	b.pool.Emit(OpBranchConditional, cond.id, b.labelID(trueLabel), b.labelID(falseLabel))
	return nil
}

func (b *Backend) lowerBranchLoop(iterLabel, continueLabel, mergeLabel string) error {
	b.loopStack = append(b.loopStack, loopCtx{mergeLabel: mergeLabel, continueLabel: continueLabel})
	b.pool.Emit(OpLoopMerge, b.labelID(mergeLabel), b.labelID(continueLabel), uint32(LoopControlNone))
	b.pool.Emit(OpBranch, b.labelID(iterLabel))
	return nil
}

// precomputeMerges assigns every generic (non-loop-exit) branch_conditional
// its OpSelectionMerge target: the nearest label reachable from both of its
// successors in the program's block-successor graph.
func (b *Backend) precomputeMerges(prog sir.Program) error {
	b.mergeFor = make(map[int]string, 4)
	labels, err := prog.Labels()
	if err != nil {
		return err
	}
	succ := buildSuccessors(prog, labels)

	loopMerges := make(map[string]bool)
	loopConts := make(map[string]bool)
	for _, instr := range prog {
		if instr.Op == sir.OpBranchLoop {
			loopConts[instr.Args[1].(string)] = true
			loopMerges[instr.Args[2].(string)] = true
		}
	}

	for i, instr := range prog {
		if instr.Op != sir.OpBranchConditional {
			continue
		}
		trueLabel := instr.Args[0].(string)
		falseLabel := instr.Args[1].(string)
		if loopMerges[trueLabel] || loopMerges[falseLabel] || loopConts[trueLabel] || loopConts[falseLabel] {
			continue
		}
		merge, ok := nearestCommonSuccessor(succ, trueLabel, falseLabel)
		if !ok {
			return errors.Errorf("instruction %d: no common successor for branch_conditional(%s, %s)", i, trueLabel, falseLabel)
		}
		b.mergeFor[i] = merge
	}
	return nil
}

func buildSuccessors(prog sir.Program, labels map[string]int) map[string][]string {
	succ := make(map[string][]string, len(labels))
	for name, idx := range labels {
		for j := idx + 1; j < len(prog); j++ {
			instr := prog[j]
			switch instr.Op {
			case sir.OpBranch:
				succ[name] = []string{instr.Args[0].(string)}
			case sir.OpBranchConditional:
				succ[name] = []string{instr.Args[0].(string), instr.Args[1].(string)}
			case sir.OpBranchLoop:
				succ[name] = []string{instr.Args[0].(string)}
			case sir.OpReturn, sir.OpFuncEnd:
				succ[name] = nil
			default:
				continue
			}
			break
		}
	}
	return succ
}

func nearestCommonSuccessor(succ map[string][]string, a, b string) (string, bool) {
	visitedA := bfsVisited(succ, a)
	orderB := bfsOrderFrom(succ, b)
	for _, label := range orderB {
		if visitedA[label] {
			return label, true
		}
	}
	return "", false
}

func bfsVisited(succ map[string][]string, start string) map[string]bool {
	visited := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range succ[cur] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return visited
}

func bfsOrderFrom(succ map[string][]string, start string) []string {
	visited := map[string]bool{start: true}
	order := []string{start}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range succ[cur] {
			if !visited[next] {
				visited[next] = true
				order = append(order, next)
				queue = append(queue, next)
			}
		}
	}
	return order
}

// lowerLoadName loads the current value of a resource or function-local
// variable, extending its lvalue with an empty index chain (wrapped block
// resources start the chain with their synthetic field-0 index instead).
func (b *Backend) lowerLoadName(name string) error {
	v, ok := b.vars[name]
	if !ok {
		return errors.Errorf("load of undeclared name %q", name)
	}

	if v.wrapped {
		fields, _ := types.FieldsOf(v.ty)
		elemTy := fields[0].Type
		zero := b.pool.ConstantUint(u32Type(), 0)
		chainType := b.pool.TypePointer(v.storage, b.pool.TypeID(elemTy))
		chainPtr := b.pool.EmitResult(OpInBoundsAccessChain, chainType, v.ptr, zero)
		loadID := b.pool.EmitResult(OpLoad, b.pool.TypeID(elemTy), chainPtr)
		b.push(value{id: loadID, ty: elemTy, lv: &lvalue{ptr: v.ptr, storage: v.storage, elemTy: v.ty, indices: []uint32{zero}}})
		return nil
	}

	typeID := v.rawTypeID
	if typeID == 0 {
		typeID = b.pool.TypeID(v.ty)
	}
	loadID := b.pool.EmitResult(OpLoad, typeID, v.ptr)
	b.push(value{id: loadID, ty: v.ty, lv: &lvalue{ptr: v.ptr, storage: v.storage, elemTy: v.ty}})
	return nil
}

// lowerStoreName writes to a resource, or lazily declares a function-local
// variable on first assignment, inferring its type from val.
func (b *Backend) lowerStoreName(name string) error {
	val, err := b.pop()
	if err != nil {
		return err
	}

	v, ok := b.vars[name]
	if !ok {
		typeID := b.pool.TypeID(val.ty)
		ptrType := b.pool.TypePointer(StorageClassFunction, typeID)
		ptr := b.pool.AddFunctionVariable(ptrType, StorageClassFunction)
		b.pool.AddName(ptr, name)
		v = &variable{ptr: ptr, ty: val.ty, storage: StorageClassFunction}
		b.vars[name] = v
		b.pool.Emit(OpStore, ptr, val.id)
		return nil
	}

	if v.wrapped {
		fields, _ := types.FieldsOf(v.ty)
		elemTy := fields[0].Type
		zero := b.pool.ConstantUint(u32Type(), 0)
		chainType := b.pool.TypePointer(v.storage, b.pool.TypeID(elemTy))
		chainPtr := b.pool.EmitResult(OpInBoundsAccessChain, chainType, v.ptr, zero)
		b.pool.Emit(OpStore, chainPtr, val.id)
		return nil
	}

	b.pool.Emit(OpStore, v.ptr, val.id)
	return nil
}

// lowerLoadIndex extends the base value's lvalue chain by one index and
// loads through it, re-deriving the chain from the root pointer every time
// rather than threading an OpAccessChain across instructions (simpler, and
// SPIR-V happily dedups nothing here that would matter).
func (b *Backend) lowerLoadIndex() error {
	idx, err := b.pop()
	if err != nil {
		return err
	}
	base, err := b.pop()
	if err != nil {
		return err
	}

	elemTy, ok := types.ElementOf(base.ty)
	if !ok {
		return errors.Errorf("load_index: base type %s is not indexable", base.ty)
	}

	if base.lv == nil {
		return b.loadIndexFromImmediate(base, idx, elemTy)
	}

	indices := append(append([]uint32{}, base.lv.indices...), idx.id)
	chainType := b.pool.TypePointer(base.lv.storage, b.pool.TypeID(elemTy))
	operands := append([]uint32{base.lv.ptr}, indices...)
	chainPtr := b.pool.EmitResult(OpInBoundsAccessChain, chainType, operands...)
	loadID := b.pool.EmitResult(OpLoad, b.pool.TypeID(elemTy), chainPtr)
	b.push(value{id: loadID, ty: elemTy, lv: &lvalue{ptr: base.lv.ptr, storage: base.lv.storage, elemTy: base.lv.elemTy, indices: indices}})
	return nil
}

// loadIndexFromImmediate handles indexing a composite value that has no
// backing pointer (e.g. the result of a type-constructor call): it spills
// the composite into a fresh Function-storage variable so OpAccessChain
// has a pointer to chain from.
func (b *Backend) loadIndexFromImmediate(base, idx value, elemTy types.Type) (err error) {
	typeID := b.pool.TypeID(base.ty)
	ptrType := b.pool.TypePointer(StorageClassFunction, typeID)
	ptr := b.pool.AddFunctionVariable(ptrType, StorageClassFunction)
	b.pool.Emit(OpStore, ptr, base.id)

	chainType := b.pool.TypePointer(StorageClassFunction, b.pool.TypeID(elemTy))
	chainPtr := b.pool.EmitResult(OpInBoundsAccessChain, chainType, ptr, idx.id)
	loadID := b.pool.EmitResult(OpLoad, b.pool.TypeID(elemTy), chainPtr)
	b.push(value{id: loadID, ty: elemTy, lv: &lvalue{ptr: ptr, storage: StorageClassFunction, elemTy: base.ty, indices: []uint32{idx.id}}})
	return nil
}

// lowerStoreIndex pops (value, container, index) per the source
// language's STORE_SUBSCR stack convention, TOS=idx, TOS1=container,
// TOS2=value.
func (b *Backend) lowerStoreIndex() error {
	idx, err := b.pop()
	if err != nil {
		return err
	}
	base, err := b.pop()
	if err != nil {
		return err
	}
	val, err := b.pop()
	if err != nil {
		return err
	}

	if base.lv == nil {
		return errors.Errorf("store_index: container has no addressable storage")
	}

	elemTy, ok := types.ElementOf(base.ty)
	if !ok {
		return errors.Errorf("store_index: base type %s is not indexable", base.ty)
	}
	indices := append(append([]uint32{}, base.lv.indices...), idx.id)
	chainType := b.pool.TypePointer(base.lv.storage, b.pool.TypeID(elemTy))
	operands := append([]uint32{base.lv.ptr}, indices...)
	chainPtr := b.pool.EmitResult(OpInBoundsAccessChain, chainType, operands...)
	b.pool.Emit(OpStore, chainPtr, val.id)
	return nil
}

var swizzleIndex = map[byte]uint32{'x': 0, 'y': 1, 'z': 2, 'w': 3, 'r': 0, 'g': 1, 'b': 2, 'a': 3}

// lowerLoadAttr handles struct field access (by name, via CompositeExtract
// with a literal member index) and vector swizzles (single-component via
// CompositeExtract, multi-component via VectorShuffle). There is no
// store_attr opcode in the closed SIR vocabulary, so no lvalue is attached
// to the result.
func (b *Backend) lowerLoadAttr(field string) error {
	base, err := b.pop()
	if err != nil {
		return err
	}

	if fields, ok := types.FieldsOf(base.ty); ok {
		for i, f := range fields {
			if f.Name == field {
				resultID := b.pool.EmitResult(OpCompositeExtract, b.pool.TypeID(f.Type), base.id, uint32(i))
				b.push(value{id: resultID, ty: f.Type})
				return nil
			}
		}
		return errors.Errorf("load_attr: struct %s has no field %q", base.ty, field)
	}

	vec, ok := base.ty.Inner.(types.Vector)
	if !ok || vec.Element == nil {
		return errors.Errorf("load_attr: type %s has no field/swizzle %q", base.ty, field)
	}
	components := make([]uint32, len(field))
	for i := 0; i < len(field); i++ {
		c, ok := swizzleIndex[field[i]]
		if !ok {
			return errors.Errorf("load_attr: invalid swizzle component %q", field[i])
		}
		components[i] = c
	}

	if len(components) == 1 {
		elemTy := types.Type{Inner: *vec.Element}
		resultID := b.pool.EmitResult(OpCompositeExtract, b.pool.TypeID(elemTy), base.id, components[0])
		b.push(value{id: resultID, ty: elemTy})
		return nil
	}

	resultTy := types.Type{Inner: types.Vector{Length: uint8(len(components)), Element: vec.Element}}
	operands := append([]uint32{base.id, base.id}, components...)
	resultID := b.pool.EmitResult(OpVectorShuffle, b.pool.TypeID(resultTy), operands...)
	b.push(value{id: resultID, ty: resultTy})
	return nil
}

func (b *Backend) lowerLoadConstant(arg sir.Arg) error {
	switch n := arg.(type) {
	case int64:
		ty := types.Type{Inner: types.Scalar{Kind: types.ScalarSint, Width: 32}}
		id := b.pool.ConstantInt(ty, n)
		b.push(value{id: id, ty: ty})
		return nil
	case float64:
		ty := types.Type{Inner: types.Scalar{Kind: types.ScalarFloat, Width: 32}}
		id := b.pool.ConstantFloat32(ty, float32(n))
		b.push(value{id: id, ty: ty})
		return nil
	case bool:
		ty := types.Type{Inner: types.Bool{}}
		id := b.pool.ConstantBool(ty, n)
		b.push(value{id: id, ty: ty})
		return nil
	default:
		return errors.Errorf("load_constant: unsupported literal %#v", arg)
	}
}

// lowerLoadArray builds a constant array/vector from a literal list of
// scalar operands, inferring a uniform element type from the first entry.
func (b *Backend) lowerLoadArray(elems []sir.Arg) error {
	if len(elems) == 0 {
		return errors.New("load_array: empty literal")
	}
	ids := make([]uint32, len(elems))
	var elemTy types.Type
	for i, e := range elems {
		if err := b.lowerLoadConstant(e); err != nil {
			return err
		}
		v, err := b.pop()
		if err != nil {
			return err
		}
		if i == 0 {
			elemTy = v.ty
		} else if !types.Equal(v.ty, elemTy) {
			return errors.Errorf("load_array: element %d has type %s, want %s", i, v.ty, elemTy)
		}
		ids[i] = v.id
	}
	arrTy := types.Type{Inner: types.Array{Element: elemTy, Size: types.ArraySize{Kind: types.ArrayConcrete, N: uint32(len(elems))}}}
	id := b.pool.ConstantComposite(b.pool.TypeID(arrTy), ids...)
	b.push(value{id: id, ty: arrTy})
	return nil
}

func elementScalarKind(t types.Type) (types.Scalar, error) {
	switch inner := t.Inner.(type) {
	case types.Scalar:
		return inner, nil
	case types.Vector:
		if inner.Element == nil {
			return types.Scalar{}, errors.Errorf("abstract vector %s has no element scalar", t)
		}
		return *inner.Element, nil
	case types.Matrix:
		return inner.Element, nil
	default:
		return types.Scalar{}, errors.Errorf("type %s has no element scalar", t)
	}
}

func isVectorType(t types.Type) bool {
	_, ok := t.Inner.(types.Vector)
	return ok
}

func isScalarType(t types.Type) bool {
	_, ok := t.Inner.(types.Scalar)
	return ok
}

// broadcast splats a scalar value id across length components of
// elemTy, producing a value of the corresponding vector type.
func (b *Backend) broadcast(scalarID uint32, elemTy types.Type, length uint8) value {
	scalar, _ := elemTy.Inner.(types.Scalar)
	vecTy := types.Type{Inner: types.Vector{Length: length, Element: &scalar}}
	ids := make([]uint32, length)
	for i := range ids {
		ids[i] = scalarID
	}
	id := b.pool.EmitResult(OpCompositeConstruct, b.pool.TypeID(vecTy), ids...)
	return value{id: id, ty: vecTy}
}

func arithOpcode(kind sir.BinaryKind, scalar types.Scalar) (OpCode, error) {
	switch kind {
	case sir.BinAdd:
		if scalar.Kind == types.ScalarFloat {
			return OpFAdd, nil
		}
		return OpIAdd, nil
	case sir.BinSub:
		if scalar.Kind == types.ScalarFloat {
			return OpFSub, nil
		}
		return OpISub, nil
	case sir.BinMul:
		if scalar.Kind == types.ScalarFloat {
			return OpFMul, nil
		}
		return OpIMul, nil
	case sir.BinDiv:
		switch scalar.Kind {
		case types.ScalarFloat:
			return OpFDiv, nil
		case types.ScalarSint:
			return OpSDiv, nil
		default:
			return OpUDiv, nil
		}
	case sir.BinMod:
		switch scalar.Kind {
		case types.ScalarFloat:
			return OpFMod, nil
		case types.ScalarSint:
			return OpSMod, nil
		default:
			return OpUMod, nil
		}
	default:
		return 0, errors.Errorf("arithOpcode: unsupported kind %q", kind)
	}
}

// lowerBinaryOp dispatches binary_op by operand shape: scalar-scalar,
// vector-vector (componentwise), scalar-vector/vector-scalar broadcast,
// and the dedicated vector*scalar / matrix*scalar / matrix*vector /
// vector*matrix / matrix*matrix opcodes for mul (spec §4.5).
func (b *Backend) lowerBinaryOp(kind sir.BinaryKind) error {
	rhs, err := b.pop()
	if err != nil {
		return err
	}
	lhs, err := b.pop()
	if err != nil {
		return err
	}

	if kind == sir.BinAnd || kind == sir.BinOr {
		return b.lowerLogicalOp(kind, lhs, rhs)
	}
	if kind == sir.BinPow {
		info := frontend.Intrinsics["stdlib.pow"]
		return b.lowerExtInstValues(info.NR, lhs.ty, lhs.id, rhs.id)
	}

	if kind == sir.BinMul {
		if done, err := b.lowerMatrixMul(lhs, rhs); done || err != nil {
			return err
		}
	}

	if isScalarType(lhs.ty) && isVectorType(rhs.ty) {
		vec := rhs.ty.Inner.(types.Vector)
		broadcastLhs := b.broadcast(lhs.id, lhs.ty, vec.Length)
		lhs = broadcastLhs
	} else if isVectorType(lhs.ty) && isScalarType(rhs.ty) {
		vec := lhs.ty.Inner.(types.Vector)
		broadcastRhs := b.broadcast(rhs.id, rhs.ty, vec.Length)
		rhs = broadcastRhs
	} else if !types.Equal(lhs.ty, rhs.ty) {
		return errors.Errorf("binary_op %q: operand type mismatch %s vs %s", kind, lhs.ty, rhs.ty)
	}

	scalar, err := elementScalarKind(lhs.ty)
	if err != nil {
		return err
	}
	opcode, err := arithOpcode(kind, scalar)
	if err != nil {
		return err
	}
	resultID := b.pool.EmitResult(opcode, b.pool.TypeID(lhs.ty), lhs.id, rhs.id)
	b.push(value{id: resultID, ty: lhs.ty})
	return nil
}

// lowerMatrixMul handles the matrix/vector multiplication family that
// OpIMul/OpFMul cannot express. It reports done=false when neither operand
// is a matrix, so the caller falls through to the componentwise path.
func (b *Backend) lowerMatrixMul(lhs, rhs value) (done bool, err error) {
	lhsMat, lhsIsMat := lhs.ty.Inner.(types.Matrix)
	rhsMat, rhsIsMat := rhs.ty.Inner.(types.Matrix)

	switch {
	case lhsIsMat && rhsIsMat:
		if lhsMat.Cols != rhsMat.Rows {
			return true, errors.Errorf("matrix multiplication shape mismatch: %s * %s", lhs.ty, rhs.ty)
		}
		resultTy := types.Type{Inner: types.Matrix{Cols: rhsMat.Cols, Rows: lhsMat.Rows, Element: lhsMat.Element}}
		id := b.pool.EmitResult(OpMatrixTimesMatrix, b.pool.TypeID(resultTy), lhs.id, rhs.id)
		b.push(value{id: id, ty: resultTy})
		return true, nil

	case lhsIsMat && isVectorType(rhs.ty):
		resultTy := types.Type{Inner: types.Vector{Length: lhsMat.Rows, Element: &lhsMat.Element}}
		id := b.pool.EmitResult(OpMatrixTimesVector, b.pool.TypeID(resultTy), lhs.id, rhs.id)
		b.push(value{id: id, ty: resultTy})
		return true, nil

	case isVectorType(lhs.ty) && rhsIsMat:
		resultTy := types.Type{Inner: types.Vector{Length: rhsMat.Cols, Element: &rhsMat.Element}}
		id := b.pool.EmitResult(OpVectorTimesMatrix, b.pool.TypeID(resultTy), lhs.id, rhs.id)
		b.push(value{id: id, ty: resultTy})
		return true, nil

	case lhsIsMat && isScalarType(rhs.ty):
		id := b.pool.EmitResult(OpMatrixTimesScalar, b.pool.TypeID(lhs.ty), lhs.id, rhs.id)
		b.push(value{id: id, ty: lhs.ty})
		return true, nil

	case isScalarType(lhs.ty) && rhsIsMat:
		id := b.pool.EmitResult(OpMatrixTimesScalar, b.pool.TypeID(rhs.ty), rhs.id, lhs.id)
		b.push(value{id: id, ty: rhs.ty})
		return true, nil
	}

	if isVectorType(lhs.ty) && isScalarType(rhs.ty) {
		id := b.pool.EmitResult(OpVectorTimesScalar, b.pool.TypeID(lhs.ty), lhs.id, rhs.id)
		b.push(value{id: id, ty: lhs.ty})
		return true, nil
	}
	if isScalarType(lhs.ty) && isVectorType(rhs.ty) {
		id := b.pool.EmitResult(OpVectorTimesScalar, b.pool.TypeID(rhs.ty), rhs.id, lhs.id)
		b.push(value{id: id, ty: rhs.ty})
		return true, nil
	}

	return false, nil
}

func (b *Backend) lowerLogicalOp(kind sir.BinaryKind, lhs, rhs value) error {
	if _, ok := lhs.ty.Inner.(types.Bool); !ok {
		return errors.Errorf("binary_op %q: operand %s is not bool", kind, lhs.ty)
	}
	if _, ok := rhs.ty.Inner.(types.Bool); !ok {
		return errors.Errorf("binary_op %q: operand %s is not bool", kind, rhs.ty)
	}
	opcode := OpLogicalOr
	if kind == sir.BinAnd {
		opcode = OpLogicalAnd
	}
	boolTy := types.Type{Inner: types.Bool{}}
	resultID := b.pool.EmitResult(opcode, b.pool.TypeID(boolTy), lhs.id, rhs.id)
	b.push(value{id: resultID, ty: boolTy})
	return nil
}

func (b *Backend) lowerUnaryOp(kind sir.UnaryKind) error {
	v, err := b.pop()
	if err != nil {
		return err
	}
	switch kind {
	case sir.UnaryNeg:
		scalar, err := elementScalarKind(v.ty)
		if err != nil {
			return err
		}
		opcode := OpSNegate
		if scalar.Kind == types.ScalarFloat {
			opcode = OpFNegate
		}
		resultID := b.pool.EmitResult(opcode, b.pool.TypeID(v.ty), v.id)
		b.push(value{id: resultID, ty: v.ty})
		return nil
	case sir.UnaryNot:
		if _, ok := v.ty.Inner.(types.Bool); !ok {
			return errors.Errorf("unary_op not: operand %s is not bool", v.ty)
		}
		resultID := b.pool.EmitResult(OpLogicalNot, b.pool.TypeID(v.ty), v.id)
		b.push(value{id: resultID, ty: v.ty})
		return nil
	default:
		return errors.Errorf("unhandled unary_op %q", kind)
	}
}

func compareOpcode(op sir.CompareOp, scalar types.Scalar) (OpCode, error) {
	isFloat := scalar.Kind == types.ScalarFloat
	isSigned := scalar.Kind == types.ScalarSint
	switch op {
	case sir.CmpLT:
		switch {
		case isFloat:
			return OpFOrdLessThan, nil
		case isSigned:
			return OpSLessThan, nil
		default:
			return OpULessThan, nil
		}
	case sir.CmpLE:
		switch {
		case isFloat:
			return OpFOrdLessThanEqual, nil
		case isSigned:
			return OpSLessThanEqual, nil
		default:
			return OpULessThanEqual, nil
		}
	case sir.CmpGT:
		switch {
		case isFloat:
			return OpFOrdGreaterThan, nil
		case isSigned:
			return OpSGreaterThan, nil
		default:
			return OpUGreaterThan, nil
		}
	case sir.CmpGE:
		switch {
		case isFloat:
			return OpFOrdGreaterThanEqual, nil
		case isSigned:
			return OpSGreaterThanEqual, nil
		default:
			return OpUGreaterThanEqual, nil
		}
	case sir.CmpEQ:
		if isFloat {
			return OpFOrdEqual, nil
		}
		return OpIEqual, nil
	case sir.CmpNE:
		if isFloat {
			return OpFOrdNotEqual, nil
		}
		return OpINotEqual, nil
	default:
		return 0, errors.Errorf("compareOpcode: unknown op %q", op)
	}
}

func (b *Backend) lowerCompare(op sir.CompareOp) error {
	rhs, err := b.pop()
	if err != nil {
		return err
	}
	lhs, err := b.pop()
	if err != nil {
		return err
	}
	if !types.Equal(lhs.ty, rhs.ty) {
		return errors.Errorf("compare %q: operand type mismatch %s vs %s", op, lhs.ty, rhs.ty)
	}

	if _, isBool := lhs.ty.Inner.(types.Bool); isBool {
		var opcode OpCode
		switch op {
		case sir.CmpEQ:
			opcode = OpLogicalEqual
		case sir.CmpNE:
			opcode = OpLogicalNotEqual
		default:
			return errors.Errorf("compare %q: bool operands only support == and !=", op)
		}
		boolTy := types.Type{Inner: types.Bool{}}
		resultID := b.pool.EmitResult(opcode, b.pool.TypeID(boolTy), lhs.id, rhs.id)
		b.push(value{id: resultID, ty: boolTy})
		return nil
	}

	scalar, err := elementScalarKind(lhs.ty)
	if err != nil {
		return err
	}
	opcode, err := compareOpcode(op, scalar)
	if err != nil {
		return err
	}
	boolTy := types.Type{Inner: types.Bool{}}
	resultID := b.pool.EmitResult(opcode, b.pool.TypeID(boolTy), lhs.id, rhs.id)
	b.push(value{id: resultID, ty: boolTy})
	return nil
}

// lowerSelect implements the ternary-splice result: spliceTernary deletes
// the original branch_conditional without popping its condition, so the
// operand stack here holds, top to bottom, falseVal, trueVal, cond.
func (b *Backend) lowerSelect() error {
	falseVal, err := b.pop()
	if err != nil {
		return err
	}
	trueVal, err := b.pop()
	if err != nil {
		return err
	}
	cond, err := b.pop()
	if err != nil {
		return err
	}
	if _, ok := cond.ty.Inner.(types.Bool); !ok {
		return errors.Errorf("select: condition has non-bool type %s", cond.ty)
	}
	if !types.Equal(trueVal.ty, falseVal.ty) {
		return errors.Errorf("select: arm type mismatch %s vs %s", trueVal.ty, falseVal.ty)
	}
	resultID := b.pool.EmitResult(OpSelect, b.pool.TypeID(trueVal.ty), cond.id, trueVal.id, falseVal.id)
	b.push(value{id: resultID, ty: trueVal.ty})
	return nil
}

func (b *Backend) lowerReturn() error {
	if b.shaderKind == "fragment" && len(b.pendingMerges) > 0 {
		b.pool.Emit(OpKill)
		return nil
	}
	b.pool.Emit(OpReturn)
	return nil
}

// lowerCall dispatches a call() instruction: a fully-qualified name in the
// closed intrinsic table (stdlib.*/texture.*) lowers to OpExtInst or a
// dedicated image opcode; anything else is a vector/matrix/array/scalar
// type-constructor name resolved through the registry (spec §4.5).
func (b *Backend) lowerCall(callee string, nargs int) error {
	args := make([]value, nargs)
	for i := nargs - 1; i >= 0; i-- {
		v, err := b.pop()
		if err != nil {
			return err
		}
		args[i] = v
	}

	if info, ok := frontend.Intrinsics[callee]; ok {
		return b.lowerIntrinsicCall(callee, info, args)
	}

	if callee == "array" {
		return b.lowerArrayLiteralCall(args)
	}

	target, err := types.Resolve(callee)
	if err != nil {
		return errors.Wrapf(err, "call to unknown callee %q", callee)
	}
	return b.lowerConstruct(target, args)
}

// lowerArrayLiteralCall handles the bare array(...) constructor, whose
// element type has no annotation-surface spelling for types.Resolve to
// parse: it is inferred from the first argument instead.
func (b *Backend) lowerArrayLiteralCall(args []value) error {
	if len(args) == 0 {
		return errors.New("array(): at least one element is required")
	}
	arr := types.Array{Element: args[0].ty, Size: types.ArraySize{Kind: types.ArrayConcrete, N: uint32(len(args))}}
	return b.lowerArrayConstruct(types.Type{Inner: arr}, arr, args)
}

func (b *Backend) lowerIntrinsicCall(name string, info frontend.IntrinsicInfo, args []value) error {
	if len(args) != info.NArgs {
		return errors.Errorf("%s expects %d arguments, got %d", name, info.NArgs, len(args))
	}
	switch name {
	case "texture.read":
		return b.lowerTextureRead(args)
	case "texture.write":
		return b.lowerTextureWrite(args)
	case "texture.sample":
		return b.lowerTextureSample(args)
	default:
		return b.lowerExtInstCall(info, args)
	}
}

func (b *Backend) lowerExtInstCall(info frontend.IntrinsicInfo, args []value) error {
	resultTy := args[0].ty
	if info.ResultType == frontend.ResultComponent {
		elem, ok := types.ElementOf(args[0].ty)
		if !ok {
			return errors.Errorf("intrinsic expects a vector operand, got %s", args[0].ty)
		}
		resultTy = elem
	}
	ids := make([]uint32, len(args))
	for i, a := range args {
		ids[i] = a.id
	}
	return b.lowerExtInstValues(info.NR, resultTy, ids...)
}

func (b *Backend) lowerExtInstValues(nr uint32, resultTy types.Type, operandIDs ...uint32) error {
	if !b.glslSetLoaded {
		b.glslSet = b.pool.AddExtInstImport("GLSL.std.450")
		b.glslSetLoaded = true
	}
	operands := append([]uint32{b.glslSet, nr}, operandIDs...)
	resultID := b.pool.EmitResult(OpExtInst, b.pool.TypeID(resultTy), operands...)
	b.push(value{id: resultID, ty: resultTy})
	return nil
}

func vec4Of(t types.Type) (types.Type, error) {
	scalar, ok := t.Inner.(types.Scalar)
	if !ok {
		return types.Type{}, errors.Errorf("expected a scalar texel type, got %s", t)
	}
	return types.Type{Inner: types.Vector{Length: 4, Element: &scalar}}, nil
}

func (b *Backend) lowerTextureRead(args []value) error {
	tex, coord := args[0], args[1]
	resultTy, err := vec4Of(tex.ty)
	if err != nil {
		return err
	}
	resultID := b.pool.EmitResult(OpImageRead, b.pool.TypeID(resultTy), tex.id, coord.id)
	b.push(value{id: resultID, ty: resultTy})
	return nil
}

func (b *Backend) lowerTextureWrite(args []value) error {
	tex, coord, val := args[0], args[1], args[2]
	b.pool.Emit(OpImageWrite, tex.id, coord.id, val.id)
	b.push(value{id: 0, ty: types.Type{Inner: types.Void{}}})
	return nil
}

func (b *Backend) lowerTextureSample(args []value) error {
	tex, sampler, coord := args[0], args[1], args[2]
	resultTy, err := vec4Of(tex.ty)
	if err != nil {
		return err
	}
	imageTypeID := b.pool.TypeImage(b.pool.TypeID(tex.ty), Dim2D, ImageFormatUnknown)
	sampledImageTypeID := b.pool.TypeSampledImage(imageTypeID)
	sampledImageID := b.pool.EmitResult(OpSampledImage, sampledImageTypeID, tex.id, sampler.id)
	resultID := b.pool.EmitResult(OpImageSampleImplicitLod, b.pool.TypeID(resultTy), sampledImageID, coord.id)
	b.push(value{id: resultID, ty: resultTy})
	return nil
}

func (b *Backend) lowerConstruct(target types.Type, args []value) error {
	switch inner := target.Inner.(type) {
	case types.Scalar:
		if len(args) != 1 {
			return errors.Errorf("scalar construction %s expects 1 argument, got %d", target, len(args))
		}
		converted, err := b.convertScalar(args[0], target)
		if err != nil {
			return err
		}
		b.push(converted)
		return nil
	case types.Vector:
		return b.lowerVectorConstruct(target, inner, args)
	case types.Matrix:
		return b.lowerMatrixConstruct(target, inner, args)
	case types.Array:
		return b.lowerArrayConstruct(target, inner, args)
	default:
		return errors.Errorf("cannot construct a value of type %s", target)
	}
}

func conversionOpcode(src, dst types.Scalar) (OpCode, error) {
	switch {
	case src.Kind == types.ScalarFloat && dst.Kind == types.ScalarFloat:
		return OpFConvert, nil
	case src.Kind == types.ScalarFloat && dst.Kind == types.ScalarSint:
		return OpConvertFToS, nil
	case src.Kind == types.ScalarFloat && dst.Kind == types.ScalarUint:
		return OpConvertFToU, nil
	case src.Kind == types.ScalarSint && dst.Kind == types.ScalarFloat:
		return OpConvertSToF, nil
	case src.Kind == types.ScalarUint && dst.Kind == types.ScalarFloat:
		return OpConvertUToF, nil
	case src.Kind != types.ScalarFloat && dst.Kind == types.ScalarSint:
		return OpSConvert, nil
	case src.Kind != types.ScalarFloat && dst.Kind == types.ScalarUint:
		return OpUConvert, nil
	default:
		return 0, errors.Errorf("unsupported scalar conversion %s -> %s", src.Kind, dst.Kind)
	}
}

func (b *Backend) oneAndZero(scalar types.Scalar) (one, zero uint32, err error) {
	ty := types.Type{Inner: scalar}
	switch scalar.Kind {
	case types.ScalarFloat:
		return b.pool.ConstantFloat32(ty, 1), b.pool.ConstantFloat32(ty, 0), nil
	case types.ScalarSint:
		return b.pool.ConstantInt(ty, 1), b.pool.ConstantInt(ty, 0), nil
	case types.ScalarUint:
		return b.pool.ConstantUint(ty, 1), b.pool.ConstantUint(ty, 0), nil
	default:
		return 0, 0, errors.Errorf("oneAndZero: unknown scalar kind %v", scalar.Kind)
	}
}

// convertScalar converts v (a scalar or bool) to target, a no-op if the
// types already match. Bool-to-numeric goes through OpSelect(cond, 1, 0);
// numeric-to-numeric goes through the matching OpConvert*/OpFConvert.
func (b *Backend) convertScalar(v value, target types.Type) (value, error) {
	if types.Equal(v.ty, target) {
		return v, nil
	}
	targetScalar, ok := target.Inner.(types.Scalar)
	if !ok {
		return value{}, errors.Errorf("convertScalar: target %s is not scalar", target)
	}

	if _, isBool := v.ty.Inner.(types.Bool); isBool {
		one, zero, err := b.oneAndZero(targetScalar)
		if err != nil {
			return value{}, err
		}
		resultID := b.pool.EmitResult(OpSelect, b.pool.TypeID(target), v.id, one, zero)
		return value{id: resultID, ty: target}, nil
	}

	srcScalar, ok := v.ty.Inner.(types.Scalar)
	if !ok {
		return value{}, errors.Errorf("convertScalar: source %s is not scalar", v.ty)
	}
	opcode, err := conversionOpcode(srcScalar, targetScalar)
	if err != nil {
		return value{}, err
	}
	resultID := b.pool.EmitResult(opcode, b.pool.TypeID(target), v.id)
	return value{id: resultID, ty: target}, nil
}

func (b *Backend) lowerVectorConstruct(target types.Type, vec types.Vector, args []value) error {
	elemTy := types.Type{Inner: *vec.Element}

	if len(args) == 1 {
		if _, ok := args[0].ty.Inner.(types.Vector); !ok {
			converted, err := b.convertScalar(args[0], elemTy)
			if err != nil {
				return err
			}
			b.push(b.broadcast(converted.id, elemTy, vec.Length))
			return nil
		}
	}

	var componentIDs []uint32
	for _, a := range args {
		if srcVec, ok := a.ty.Inner.(types.Vector); ok {
			srcElem := types.Type{Inner: *srcVec.Element}
			for c := uint8(0); c < srcVec.Length; c++ {
				compID := b.pool.EmitResult(OpCompositeExtract, b.pool.TypeID(srcElem), a.id, uint32(c))
				converted, err := b.convertScalar(value{id: compID, ty: srcElem}, elemTy)
				if err != nil {
					return err
				}
				componentIDs = append(componentIDs, converted.id)
			}
			continue
		}
		converted, err := b.convertScalar(a, elemTy)
		if err != nil {
			return err
		}
		componentIDs = append(componentIDs, converted.id)
	}

	if uint8(len(componentIDs)) != vec.Length {
		return errors.Errorf("vector construction %s: got %d components, want %d", target, len(componentIDs), vec.Length)
	}

	resultID := b.pool.EmitResult(OpCompositeConstruct, b.pool.TypeID(target), componentIDs...)
	b.push(value{id: resultID, ty: target})
	return nil
}

func (b *Backend) lowerMatrixConstruct(target types.Type, mat types.Matrix, args []value) error {
	if uint8(len(args)) != mat.Cols {
		return errors.Errorf("matrix construction %s: got %d columns, want %d", target, len(args), mat.Cols)
	}
	colTy := types.Type{Inner: types.Vector{Length: mat.Rows, Element: &mat.Element}}
	ids := make([]uint32, len(args))
	for i, a := range args {
		if !types.Equal(a.ty, colTy) {
			return errors.Errorf("matrix construction %s: column %d has type %s, want %s", target, i, a.ty, colTy)
		}
		ids[i] = a.id
	}
	resultID := b.pool.EmitResult(OpCompositeConstruct, b.pool.TypeID(target), ids...)
	b.push(value{id: resultID, ty: target})
	return nil
}

func (b *Backend) lowerArrayConstruct(target types.Type, arr types.Array, args []value) error {
	if arr.Size.Kind == types.ArrayConcrete && uint32(len(args)) != arr.Size.N {
		return errors.Errorf("array construction %s: got %d elements, want %d", target, len(args), arr.Size.N)
	}
	ids := make([]uint32, len(args))
	for i, a := range args {
		if types.Equal(a.ty, arr.Element) {
			ids[i] = a.id
			continue
		}
		if _, ok := arr.Element.Inner.(types.Scalar); ok {
			converted, err := b.convertScalar(a, arr.Element)
			if err != nil {
				return err
			}
			ids[i] = converted.id
			continue
		}
		return errors.Errorf("array construction %s: element %d has type %s, want %s", target, i, a.ty, arr.Element)
	}
	concreteTy := target
	if arr.Size.Kind != types.ArrayConcrete {
		concreteTy = types.Type{Inner: types.Array{Element: arr.Element, Size: types.ArraySize{Kind: types.ArrayConcrete, N: uint32(len(args))}}}
	}
	resultID := b.pool.EmitResult(OpCompositeConstruct, b.pool.TypeID(concreteTy), ids...)
	b.push(value{id: resultID, ty: concreteTy})
	return nil
}
