package spirv

import (
	"math"

	"github.com/gogpu/shaderc/types"
)

// Instruction is a single encoded SPIR-V instruction: an opcode plus its
// operand words (result type id, result id, and/or literal operands,
// depending on the opcode).
type Instruction struct {
	Opcode OpCode
	Words  []uint32
}

// InstructionBuilder accumulates the operand words of one instruction
// before it is appended to a section.
type InstructionBuilder struct {
	words []uint32
}

// NewInstructionBuilder returns an empty InstructionBuilder.
func NewInstructionBuilder() *InstructionBuilder {
	return &InstructionBuilder{words: make([]uint32, 0, 8)}
}

// AddWord appends a single operand word.
func (b *InstructionBuilder) AddWord(word uint32) { b.words = append(b.words, word) }

// AddString appends a null-terminated, 4-byte-padded UTF-8 literal
// string operand (spec §4.6).
func (b *InstructionBuilder) AddString(s string) {
	data := []byte(s)
	if len(data) == 0 || data[len(data)-1] != 0 {
		data = append(data, 0)
	}
	for len(data)%4 != 0 {
		data = append(data, 0)
	}
	for i := 0; i < len(data); i += 4 {
		word := uint32(data[i]) | uint32(data[i+1])<<8 | uint32(data[i+2])<<16 | uint32(data[i+3])<<24
		b.words = append(b.words, word)
	}
}

// Build finalizes the instruction under opcode.
func (b *InstructionBuilder) Build(opcode OpCode) Instruction {
	return Instruction{Opcode: opcode, Words: b.words}
}

// Encode renders the instruction as its header word followed by its
// operand words (header word = (word count << 16) | opcode).
func (i Instruction) Encode() []uint32 {
	wordCount := uint32(len(i.Words) + 1)
	out := make([]uint32, 0, wordCount)
	out = append(out, (wordCount<<16)|uint32(i.Opcode))
	out = append(out, i.Words...)
	return out
}

// Pool is the id/instruction pool (spec §4.3): it allocates monotonic
// ids, deduplicates types and constants by structural key, and holds one
// append-only instruction buffer per mandated module section (§4.6).
// It is grounded on the teacher's ModuleBuilder (spirv/writer.go),
// generalized with the type/constant memo tables spec §4.3 names and the
// image/phi/access-chain helpers the back end's control-flow and
// texture-intrinsic lowering (§4.5) requires.
type Pool struct {
	version   Version
	generator uint32
	schema    uint32

	capabilities   []Instruction
	capabilitySeen map[Capability]bool
	extensions     []Instruction
	extInstImports []Instruction
	memoryModel    *Instruction
	entryPoints    []Instruction
	executionModes []Instruction
	debugStrings   []Instruction
	debugNames     []Instruction
	annotations    []Instruction
	types          []Instruction
	globalVars     []Instruction
	functions      []Instruction

	nextID uint32

	// Dedup memo tables, keyed by structural key (spec §4.3: "the same
	// type/constant structure always resolves to the same id").
	typeIDs     map[string]uint32
	constantIDs map[string]uint32

	// capabilityHook, when set, is called with every Type the first time
	// it is interned, so the back end can infer required capabilities
	// (Float16, Int8, ...) from the scalar widths actually used without
	// duplicating Pool's own dedup bookkeeping.
	capabilityHook func(types.Type)
}

// SetCapabilityHook installs fn as the pool's type-interning observer.
func (p *Pool) SetCapabilityHook(fn func(types.Type)) {
	p.capabilityHook = fn
}

// NewPool creates an empty Pool with id allocation starting at 1 (id 0 is
// reserved in SPIR-V for "no result").
func NewPool(version Version) *Pool {
	return &Pool{
		version:        version,
		generator:      GeneratorID,
		capabilitySeen: make(map[Capability]bool, 4),
		typeIDs:        make(map[string]uint32, 16),
		constantIDs:    make(map[string]uint32, 16),
		nextID:         1,
	}
}

// AllocID allocates and returns a fresh SPIR-V id.
func (p *Pool) AllocID() uint32 {
	id := p.nextID
	p.nextID++
	return id
}

// IDBound returns the module's id bound (one past the highest id
// allocated), the value written to the module header (spec §8: "id_bound
// is exactly one more than the highest id referenced").
func (p *Pool) IDBound() uint32 { return p.nextID }

// AddCapability records capability, deduplicated: a capability declared
// twice in OpCapability is invalid SPIR-V.
func (p *Pool) AddCapability(capability Capability) {
	if p.capabilitySeen[capability] {
		return
	}
	p.capabilitySeen[capability] = true
	b := NewInstructionBuilder()
	b.AddWord(uint32(capability))
	p.capabilities = append(p.capabilities, b.Build(OpCapability))
}

// AddExtInstImport imports an extended instruction set (e.g.
// "GLSL.std.450") and returns its result id.
func (p *Pool) AddExtInstImport(name string) uint32 {
	id := p.AllocID()
	b := NewInstructionBuilder()
	b.AddWord(id)
	b.AddString(name)
	p.extInstImports = append(p.extInstImports, b.Build(OpExtInstImport))
	return id
}

// SetMemoryModel sets the module's single OpMemoryModel instruction.
func (p *Pool) SetMemoryModel(addressing AddressingModel, memory MemoryModel) {
	b := NewInstructionBuilder()
	b.AddWord(uint32(addressing))
	b.AddWord(uint32(memory))
	inst := b.Build(OpMemoryModel)
	p.memoryModel = &inst
}

// AddEntryPoint declares an OpEntryPoint referencing funcID.
func (p *Pool) AddEntryPoint(model ExecutionModel, funcID uint32, name string, interfaces []uint32) {
	b := NewInstructionBuilder()
	b.AddWord(uint32(model))
	b.AddWord(funcID)
	b.AddString(name)
	for _, iface := range interfaces {
		b.AddWord(iface)
	}
	p.entryPoints = append(p.entryPoints, b.Build(OpEntryPoint))
}

// AddExecutionMode declares an OpExecutionMode for entryPoint.
func (p *Pool) AddExecutionMode(entryPoint uint32, mode ExecutionMode, params ...uint32) {
	b := NewInstructionBuilder()
	b.AddWord(entryPoint)
	b.AddWord(uint32(mode))
	for _, param := range params {
		b.AddWord(param)
	}
	p.executionModes = append(p.executionModes, b.Build(OpExecutionMode))
}

// AddName attaches a debug OpName to id.
func (p *Pool) AddName(id uint32, name string) {
	b := NewInstructionBuilder()
	b.AddWord(id)
	b.AddString(name)
	p.debugNames = append(p.debugNames, b.Build(OpName))
}

// AddModuleProcessed records a debug-only build provenance string (for
// example, a per-compilation build identifier) via OpModuleProcessed.
// Only ever called when Options.Debug is set.
func (p *Pool) AddModuleProcessed(process string) {
	b := NewInstructionBuilder()
	b.AddString(process)
	p.debugNames = append(p.debugNames, b.Build(OpModuleProcessed))
}

// AddDecorate attaches a decoration to id.
func (p *Pool) AddDecorate(id uint32, decoration Decoration, params ...uint32) {
	b := NewInstructionBuilder()
	b.AddWord(id)
	b.AddWord(uint32(decoration))
	for _, param := range params {
		b.AddWord(param)
	}
	p.annotations = append(p.annotations, b.Build(OpDecorate))
}

// AddMemberDecorate attaches a decoration to a single struct member.
func (p *Pool) AddMemberDecorate(structID, member uint32, decoration Decoration, params ...uint32) {
	b := NewInstructionBuilder()
	b.AddWord(structID)
	b.AddWord(member)
	b.AddWord(uint32(decoration))
	for _, param := range params {
		b.AddWord(param)
	}
	p.annotations = append(p.annotations, b.Build(OpMemberDecorate))
}

// TypeID returns the id for t, interning it (and any types it contains)
// on first use. The structural key mirrors types.Registry's own
// deduplication so that two Resolve calls producing the same shape always
// share one SPIR-V type id (spec §4.3).
func (p *Pool) TypeID(t types.Type) uint32 {
	key := typeKey(t)
	if id, ok := p.typeIDs[key]; ok {
		return id
	}
	id := p.emitType(t)
	p.typeIDs[key] = id
	if p.capabilityHook != nil {
		p.capabilityHook(t)
	}
	return id
}

func (p *Pool) emitType(t types.Type) uint32 {
	switch inner := t.Inner.(type) {
	case types.Void:
		id := p.AllocID()
		b := NewInstructionBuilder()
		b.AddWord(id)
		p.types = append(p.types, b.Build(OpTypeVoid))
		return id
	case types.Bool:
		id := p.AllocID()
		b := NewInstructionBuilder()
		b.AddWord(id)
		p.types = append(p.types, b.Build(OpTypeBool))
		return id
	case types.Scalar:
		if inner.Kind == types.ScalarFloat {
			id := p.AllocID()
			b := NewInstructionBuilder()
			b.AddWord(id)
			b.AddWord(uint32(inner.Width))
			p.types = append(p.types, b.Build(OpTypeFloat))
			return id
		}
		id := p.AllocID()
		b := NewInstructionBuilder()
		b.AddWord(id)
		b.AddWord(uint32(inner.Width))
		if inner.Kind == types.ScalarSint {
			b.AddWord(1)
		} else {
			b.AddWord(0)
		}
		p.types = append(p.types, b.Build(OpTypeInt))
		return id
	case types.Vector:
		elem := types.Scalar{Kind: types.ScalarFloat, Width: 32}
		if inner.Element != nil {
			elem = *inner.Element
		}
		compID := p.TypeID(types.Type{Inner: elem})
		id := p.AllocID()
		b := NewInstructionBuilder()
		b.AddWord(id)
		b.AddWord(compID)
		b.AddWord(uint32(inner.Length))
		p.types = append(p.types, b.Build(OpTypeVector))
		return id
	case types.Matrix:
		colType := types.Vector{Length: inner.Rows, Element: &inner.Element}
		colID := p.TypeID(types.Type{Inner: colType})
		id := p.AllocID()
		b := NewInstructionBuilder()
		b.AddWord(id)
		b.AddWord(colID)
		b.AddWord(uint32(inner.Cols))
		p.types = append(p.types, b.Build(OpTypeMatrix))
		return id
	case types.Array:
		elemID := p.TypeID(inner.Element)
		if inner.Size.Kind == types.ArrayUnsized {
			id := p.AllocID()
			b := NewInstructionBuilder()
			b.AddWord(id)
			b.AddWord(elemID)
			p.types = append(p.types, b.Build(OpTypeRuntimeArray))
			return id
		}
		lengthID := p.ConstantUint(types.Type{Inner: types.Scalar{Kind: types.ScalarUint, Width: 32}}, uint64(inner.Size.N))
		id := p.AllocID()
		b := NewInstructionBuilder()
		b.AddWord(id)
		b.AddWord(elemID)
		b.AddWord(lengthID)
		p.types = append(p.types, b.Build(OpTypeArray))
		return id
	case types.Struct:
		memberIDs := make([]uint32, len(inner.Fields))
		for i, f := range inner.Fields {
			memberIDs[i] = p.TypeID(f.Type)
		}
		id := p.AllocID()
		b := NewInstructionBuilder()
		b.AddWord(id)
		for _, m := range memberIDs {
			b.AddWord(m)
		}
		p.types = append(p.types, b.Build(OpTypeStruct))
		for i, f := range inner.Fields {
			p.AddMemberName(id, uint32(i), f.Name)
		}
		return id
	default:
		panic("spirv: unhandled type kind in emitType")
	}
}

// AddMemberName attaches a debug OpMemberName.
func (p *Pool) AddMemberName(structID, member uint32, name string) {
	b := NewInstructionBuilder()
	b.AddWord(structID)
	b.AddWord(member)
	b.AddString(name)
	p.debugNames = append(p.debugNames, b.Build(OpMemberName))
}

// TypePointer returns the id of a pointer type to baseType in
// storageClass, deduplicated by (storageClass, baseType).
func (p *Pool) TypePointer(storageClass StorageClass, baseType uint32) uint32 {
	key := "ptr:" + itoa(uint32(storageClass)) + ":" + itoa(baseType)
	if id, ok := p.typeIDs[key]; ok {
		return id
	}
	id := p.AllocID()
	b := NewInstructionBuilder()
	b.AddWord(id)
	b.AddWord(uint32(storageClass))
	b.AddWord(baseType)
	p.types = append(p.types, b.Build(OpTypePointer))
	p.typeIDs[key] = id
	return id
}

// TypeFunction returns the id of a function type, deduplicated by its
// return and parameter type ids.
func (p *Pool) TypeFunction(returnType uint32, paramTypes ...uint32) uint32 {
	key := "fn:" + itoa(returnType)
	for _, t := range paramTypes {
		key += ":" + itoa(t)
	}
	if id, ok := p.typeIDs[key]; ok {
		return id
	}
	id := p.AllocID()
	b := NewInstructionBuilder()
	b.AddWord(id)
	b.AddWord(returnType)
	for _, t := range paramTypes {
		b.AddWord(t)
	}
	p.types = append(p.types, b.Build(OpTypeFunction))
	p.typeIDs[key] = id
	return id
}

// TypeImage returns the id of an OpTypeImage over sampledType, used for
// `texture` resources (spec §6's read/write/sample intrinsics).
func (p *Pool) TypeImage(sampledType uint32, dim Dim, format ImageFormat) uint32 {
	key := "image:" + itoa(sampledType) + ":" + itoa(uint32(dim)) + ":" + itoa(uint32(format))
	if id, ok := p.typeIDs[key]; ok {
		return id
	}
	id := p.AllocID()
	b := NewInstructionBuilder()
	b.AddWord(id)
	b.AddWord(sampledType)
	b.AddWord(uint32(dim))
	b.AddWord(0) // Depth: no
	b.AddWord(0) // Arrayed: no
	b.AddWord(0) // MS: single-sampled
	b.AddWord(1) // Sampled: compatible with sampling
	b.AddWord(uint32(format))
	p.types = append(p.types, b.Build(OpTypeImage))
	p.typeIDs[key] = id
	return id
}

// TypeSampler returns the id of OpTypeSampler, deduplicated (there is
// only ever one distinct sampler type in SPIR-V).
func (p *Pool) TypeSampler() uint32 {
	const key = "sampler"
	if id, ok := p.typeIDs[key]; ok {
		return id
	}
	id := p.AllocID()
	b := NewInstructionBuilder()
	b.AddWord(id)
	p.types = append(p.types, b.Build(OpTypeSampler))
	p.typeIDs[key] = id
	return id
}

// TypeSampledImage returns the id of OpTypeSampledImage over imageType.
func (p *Pool) TypeSampledImage(imageType uint32) uint32 {
	key := "sampledimage:" + itoa(imageType)
	if id, ok := p.typeIDs[key]; ok {
		return id
	}
	id := p.AllocID()
	b := NewInstructionBuilder()
	b.AddWord(id)
	b.AddWord(imageType)
	p.types = append(p.types, b.Build(OpTypeSampledImage))
	p.typeIDs[key] = id
	return id
}

// ConstantInt interns a signed or unsigned integer constant of typeID.
func (p *Pool) ConstantInt(t types.Type, value int64) uint32 {
	typeID := p.TypeID(t)
	key := "ci:" + itoa(typeID) + ":" + itoa(uint32(value))
	if id, ok := p.constantIDs[key]; ok {
		return id
	}
	id := p.AllocID()
	b := NewInstructionBuilder()
	b.AddWord(typeID)
	b.AddWord(id)
	b.AddWord(uint32(value))
	p.types = append(p.types, b.Build(OpConstant))
	p.constantIDs[key] = id
	return id
}

// ConstantUint interns an unsigned integer constant of typeID.
func (p *Pool) ConstantUint(t types.Type, value uint64) uint32 {
	typeID := p.TypeID(t)
	key := "cu:" + itoa(typeID) + ":" + itoa(uint32(value))
	if id, ok := p.constantIDs[key]; ok {
		return id
	}
	id := p.AllocID()
	b := NewInstructionBuilder()
	b.AddWord(typeID)
	b.AddWord(id)
	b.AddWord(uint32(value))
	p.types = append(p.types, b.Build(OpConstant))
	p.constantIDs[key] = id
	return id
}

// ConstantFloat32 interns a 32-bit float constant.
func (p *Pool) ConstantFloat32(t types.Type, value float32) uint32 {
	typeID := p.TypeID(t)
	bits := math.Float32bits(value)
	key := "cf32:" + itoa(typeID) + ":" + itoa(bits)
	if id, ok := p.constantIDs[key]; ok {
		return id
	}
	id := p.AllocID()
	b := NewInstructionBuilder()
	b.AddWord(typeID)
	b.AddWord(id)
	b.AddWord(bits)
	p.types = append(p.types, b.Build(OpConstant))
	p.constantIDs[key] = id
	return id
}

// ConstantBool interns OpConstantTrue/OpConstantFalse for t (a Bool type).
func (p *Pool) ConstantBool(t types.Type, value bool) uint32 {
	typeID := p.TypeID(t)
	key := "cb:" + itoa(typeID) + ":0"
	opcode := OpConstantFalse
	if value {
		key = "cb:" + itoa(typeID) + ":1"
		opcode = OpConstantTrue
	}
	if id, ok := p.constantIDs[key]; ok {
		return id
	}
	id := p.AllocID()
	b := NewInstructionBuilder()
	b.AddWord(typeID)
	b.AddWord(id)
	p.types = append(p.types, b.Build(opcode))
	p.constantIDs[key] = id
	return id
}

// ConstantComposite interns a composite constant built from constituents.
func (p *Pool) ConstantComposite(typeID uint32, constituents ...uint32) uint32 {
	key := "cc:" + itoa(typeID)
	for _, c := range constituents {
		key += ":" + itoa(c)
	}
	if id, ok := p.constantIDs[key]; ok {
		return id
	}
	id := p.AllocID()
	b := NewInstructionBuilder()
	b.AddWord(typeID)
	b.AddWord(id)
	for _, c := range constituents {
		b.AddWord(c)
	}
	p.types = append(p.types, b.Build(OpConstantComposite))
	p.constantIDs[key] = id
	return id
}

// AddVariable declares a global OpVariable.
func (p *Pool) AddVariable(pointerType uint32, storageClass StorageClass) uint32 {
	id := p.AllocID()
	b := NewInstructionBuilder()
	b.AddWord(pointerType)
	b.AddWord(id)
	b.AddWord(uint32(storageClass))
	p.globalVars = append(p.globalVars, b.Build(OpVariable))
	return id
}

// AddFunctionVariable declares a function-local OpVariable. Per SPIR-V's
// validation rules these must be the first instructions of a function's
// entry block, so the variable is inserted right after the current
// function's entry OpLabel and any function variables already there.
func (p *Pool) AddFunctionVariable(pointerType uint32, storageClass StorageClass) uint32 {
	id := p.AllocID()
	b := NewInstructionBuilder()
	b.AddWord(pointerType)
	b.AddWord(id)
	b.AddWord(uint32(storageClass))
	pos := len(p.functions)
	for i := len(p.functions) - 1; i >= 0; i-- {
		if p.functions[i].Opcode == OpFunction {
			pos = i + 2
			for pos < len(p.functions) && p.functions[pos].Opcode == OpVariable {
				pos++
			}
			break
		}
	}
	if pos > len(p.functions) {
		pos = len(p.functions)
	}
	p.functions = append(p.functions, Instruction{})
	copy(p.functions[pos+1:], p.functions[pos:])
	p.functions[pos] = b.Build(OpVariable)
	return id
}

// AddFunction emits OpFunction, opening a function body of returnType and
// funcType (the result of TypeFunction). The caller pre-allocates id via
// AllocID so OpEntryPoint can reference it before the body is emitted.
func (p *Pool) AddFunction(id, returnType, funcType uint32, control FunctionControl) {
	b := NewInstructionBuilder()
	b.AddWord(returnType)
	b.AddWord(id)
	b.AddWord(uint32(control))
	b.AddWord(funcType)
	p.functions = append(p.functions, b.Build(OpFunction))
}

// Emit appends a raw instruction with the given operand words to the
// function section; it returns nothing, so an opcode with a result takes
// its pre-allocated id among words (EmitResult allocates one instead).
// This is the general-purpose path the back end uses for opcodes with no
// dedicated Add* helper below.
func (p *Pool) Emit(opcode OpCode, words ...uint32) {
	b := NewInstructionBuilder()
	for _, w := range words {
		b.AddWord(w)
	}
	p.functions = append(p.functions, b.Build(opcode))
}

// EmitResult appends an instruction of the form (resultType, resultID,
// operands...) to the function section and returns the freshly
// allocated resultID.
func (p *Pool) EmitResult(opcode OpCode, resultType uint32, operands ...uint32) uint32 {
	id := p.AllocID()
	b := NewInstructionBuilder()
	b.AddWord(resultType)
	b.AddWord(id)
	for _, o := range operands {
		b.AddWord(o)
	}
	p.functions = append(p.functions, b.Build(opcode))
	return id
}

// AddLabel emits OpLabel for a pre-allocated id (the back end allocates
// label ids up front so branches can reference a label before it is
// placed).
func (p *Pool) AddLabel(id uint32) {
	b := NewInstructionBuilder()
	b.AddWord(id)
	p.functions = append(p.functions, b.Build(OpLabel))
}

func itoa(v uint32) string {
	// Small, allocation-light uint32->decimal without importing strconv
	// at every call site; structural keys are hot during compilation.
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// typeKey mirrors types.Equal's structural key so Pool's type dedup
// agrees with the registry's (spec §4.3).
func typeKey(t types.Type) string {
	return t.String()
}
