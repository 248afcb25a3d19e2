// Package spirv assembles a binary SPIR-V module from a sir.Program (the
// back end, spec §4.5/§4.6): it owns id allocation, type/constant
// deduplication, per-section instruction buffers, and the final
// word-stream encoding.
package spirv

// Version represents a SPIR-V version.
type Version struct {
	Major uint8
	Minor uint8
}

// Common SPIR-V versions.
var (
	Version1_0 = Version{1, 0}
	Version1_3 = Version{1, 3}
	Version1_4 = Version{1, 4}
	Version1_5 = Version{1, 5}
	Version1_6 = Version{1, 6}
)

// StorageBufferClass selects which storage class a `buffer` resource
// lowers to: the older Uniform+BufferBlock convention or the SPIR-V 1.4+
// StorageBuffer class.
type StorageBufferClass int

const (
	// StorageBufferClassBufferBlock is the default: storage class Uniform,
	// decoration BufferBlock (spec §9's explicit preference).
	StorageBufferClassBufferBlock StorageBufferClass = iota
	// StorageBufferClassStorageBuffer targets SPIR-V 1.4+ validators.
	StorageBufferClassStorageBuffer
)

// Options configures SPIR-V generation.
type Options struct {
	Version             Version
	Capabilities        []Capability
	Debug               bool
	Validation          bool
	StorageBufferClass  StorageBufferClass
}

// DefaultOptions returns sensible default options.
func DefaultOptions() Options {
	return Options{
		Version:    Version1_3,
		Debug:      false,
		Validation: true,
	}
}

// Capability represents a SPIR-V capability.
type Capability uint32

// Common capabilities.
const (
	CapabilityMatrix  Capability = 0 // Implied by Shader
	CapabilityShader  Capability = 1
	CapabilityFloat16 Capability = 9  // Required for OpTypeFloat 16
	CapabilityFloat64 Capability = 10 // Required for OpTypeFloat 64
	CapabilityInt64   Capability = 11 // Required for OpTypeInt 64
	CapabilityInt16   Capability = 22 // Required for OpTypeInt 16
	CapabilityInt8    Capability = 39 // Required for OpTypeInt 8
)

// SPIR-V magic number and constants.
const (
	MagicNumber = 0x07230203
	GeneratorID = 0x00000000 // Unregistered generator
)

// OpCode represents a SPIR-V opcode.
type OpCode uint16

// Common opcodes.
const (
	OpNop               OpCode = 0
	OpSource            OpCode = 3
	OpString            OpCode = 7
	OpName              OpCode = 5
	OpMemberName        OpCode = 6
	OpExtInstImport     OpCode = 11
	OpMemoryModel       OpCode = 14
	OpEntryPoint        OpCode = 15
	OpExecutionMode     OpCode = 16
	OpCapability        OpCode = 17
	OpTypeVoid          OpCode = 19
	OpTypeBool          OpCode = 20
	OpTypeInt           OpCode = 21
	OpTypeFloat         OpCode = 22
	OpTypeVector        OpCode = 23
	OpTypeMatrix        OpCode = 24
	OpTypeImage         OpCode = 25
	OpTypeSampler       OpCode = 26
	OpTypeSampledImage  OpCode = 27
	OpTypeArray         OpCode = 28
	OpTypeRuntimeArray  OpCode = 29
	OpTypeStruct        OpCode = 30
	OpTypePointer       OpCode = 32
	OpTypeFunction      OpCode = 33
	OpConstantTrue      OpCode = 41
	OpConstantFalse     OpCode = 42
	OpConstant          OpCode = 43
	OpConstantComposite OpCode = 44
	OpConstantNull      OpCode = 46
	OpFunction          OpCode = 54
	OpFunctionParameter OpCode = 55
	OpFunctionEnd       OpCode = 56
	OpFunctionCall      OpCode = 57
	OpVariable          OpCode = 59
	OpLoad              OpCode = 61
	OpStore             OpCode = 62
	OpAccessChain       OpCode = 65
	OpInBoundsAccessChain OpCode = 66
	OpDecorate          OpCode = 71
	OpMemberDecorate    OpCode = 72
	OpSampledImage      OpCode = 86
	OpImageSampleImplicitLod OpCode = 87
	OpImageRead         OpCode = 98
	OpImageWrite        OpCode = 99
	OpPhi               OpCode = 245
	OpLoopMerge         OpCode = 246
	OpSelectionMerge    OpCode = 247
	OpLabel             OpCode = 248
	OpBranch            OpCode = 249
	OpBranchConditional OpCode = 250
	OpKill              OpCode = 252
	OpReturn            OpCode = 253
	OpReturnValue       OpCode = 254
	OpUnreachable       OpCode = 255
)

// Decoration represents a SPIR-V decoration.
type Decoration uint32

// Common decorations.
const (
	DecorationBlock         Decoration = 2
	DecorationColMajor      Decoration = 5
	DecorationRowMajor      Decoration = 4
	DecorationArrayStride   Decoration = 6
	DecorationMatrixStride  Decoration = 7
	DecorationBuiltIn       Decoration = 11
	DecorationBufferBlock   Decoration = 3
	DecorationLocation      Decoration = 30
	DecorationBinding       Decoration = 33
	DecorationDescriptorSet Decoration = 34
	DecorationOffset        Decoration = 35
)

// BuiltIn represents a SPIR-V built-in decoration value.
type BuiltIn uint32

// SPIR-V built-in values (used with DecorationBuiltIn).
const (
	BuiltInPosition             BuiltIn = 0
	BuiltInPointSize            BuiltIn = 1
	BuiltInClipDistance         BuiltIn = 3
	BuiltInCullDistance         BuiltIn = 4
	BuiltInVertexID             BuiltIn = 5
	BuiltInInstanceID           BuiltIn = 6
	BuiltInPrimitiveID          BuiltIn = 7
	BuiltInInvocationID         BuiltIn = 8
	BuiltInLayer                BuiltIn = 9
	BuiltInViewportIndex        BuiltIn = 10
	BuiltInTessLevelOuter       BuiltIn = 11
	BuiltInTessLevelInner       BuiltIn = 12
	BuiltInTessCoord            BuiltIn = 13
	BuiltInPatchVertices        BuiltIn = 14
	BuiltInFragCoord            BuiltIn = 15
	BuiltInPointCoord           BuiltIn = 16
	BuiltInFrontFacing          BuiltIn = 17
	BuiltInSampleID             BuiltIn = 18
	BuiltInSamplePosition       BuiltIn = 19
	BuiltInSampleMask           BuiltIn = 20
	BuiltInFragDepth            BuiltIn = 22
	BuiltInHelperInvocation     BuiltIn = 23
	BuiltInNumWorkgroups        BuiltIn = 24
	BuiltInWorkgroupSize        BuiltIn = 25
	BuiltInWorkgroupID          BuiltIn = 26
	BuiltInLocalInvocationID    BuiltIn = 27
	BuiltInGlobalInvocationID   BuiltIn = 28
	BuiltInLocalInvocationIndex BuiltIn = 29
	BuiltInVertexIndex          BuiltIn = 42
	BuiltInInstanceIndex        BuiltIn = 43
)

// BuiltinDecoration maps the closed builtin-name vocabulary of spec §6
// ("VertexId, Position, GlobalInvocationId, PointCoord, FragCoord", plus
// the other builtins the source annotation triple can name) to its
// SPIR-V BuiltIn value. The second return is false for any name outside
// this closed set (ErrorKind UnknownBuiltin at the call site).
func BuiltinDecoration(name string) (BuiltIn, bool) {
	switch name {
	case "VertexId", "VertexIndex":
		return BuiltInVertexIndex, true
	case "InstanceId", "InstanceIndex":
		return BuiltInInstanceIndex, true
	case "Position":
		return BuiltInPosition, true
	case "FragCoord":
		return BuiltInFragCoord, true
	case "FragDepth":
		return BuiltInFragDepth, true
	case "PointCoord":
		return BuiltInPointCoord, true
	case "PointSize":
		return BuiltInPointSize, true
	case "FrontFacing":
		return BuiltInFrontFacing, true
	case "GlobalInvocationId":
		return BuiltInGlobalInvocationID, true
	case "LocalInvocationId":
		return BuiltInLocalInvocationID, true
	case "LocalInvocationIndex":
		return BuiltInLocalInvocationIndex, true
	case "WorkgroupId":
		return BuiltInWorkgroupID, true
	case "NumWorkgroups":
		return BuiltInNumWorkgroups, true
	case "SampleIndex":
		return BuiltInSampleID, true
	case "SampleMask":
		return BuiltInSampleMask, true
	default:
		return 0, false
	}
}

// ExecutionModel represents a SPIR-V execution model.
type ExecutionModel uint32

// Common execution models.
const (
	ExecutionModelVertex                 ExecutionModel = 0
	ExecutionModelTessellationControl    ExecutionModel = 1
	ExecutionModelTessellationEvaluation ExecutionModel = 2
	ExecutionModelGeometry               ExecutionModel = 3
	ExecutionModelFragment               ExecutionModel = 4
	ExecutionModelGLCompute              ExecutionModel = 5
	ExecutionModelKernel                 ExecutionModel = 6
)

// ExecutionModelFor maps a sir.ShaderKind string to its execution model.
func ExecutionModelFor(shaderKind string) (ExecutionModel, bool) {
	switch shaderKind {
	case "vertex":
		return ExecutionModelVertex, true
	case "fragment":
		return ExecutionModelFragment, true
	case "compute":
		return ExecutionModelGLCompute, true
	case "geometry":
		return ExecutionModelGeometry, true
	default:
		return 0, false
	}
}

// ExecutionMode represents a SPIR-V execution mode.
type ExecutionMode uint32

// Common execution modes.
const (
	ExecutionModeInvocations              ExecutionMode = 0
	ExecutionModeSpacingEqual             ExecutionMode = 1
	ExecutionModeSpacingFractionalEven    ExecutionMode = 2
	ExecutionModeSpacingFractionalOdd     ExecutionMode = 3
	ExecutionModeVertexOrderCw            ExecutionMode = 4
	ExecutionModeVertexOrderCcw           ExecutionMode = 5
	ExecutionModePixelCenterInteger       ExecutionMode = 6
	ExecutionModeOriginUpperLeft          ExecutionMode = 7
	ExecutionModeOriginLowerLeft          ExecutionMode = 8
	ExecutionModeEarlyFragmentTests       ExecutionMode = 9
	ExecutionModePointMode                ExecutionMode = 10
	ExecutionModeXfb                      ExecutionMode = 11
	ExecutionModeDepthReplacing           ExecutionMode = 12
	ExecutionModeDepthGreater             ExecutionMode = 14
	ExecutionModeDepthLess                ExecutionMode = 15
	ExecutionModeDepthUnchanged           ExecutionMode = 16
	ExecutionModeLocalSize                ExecutionMode = 17
	ExecutionModeLocalSizeHint            ExecutionMode = 18
)

// StorageClass represents a SPIR-V storage class.
type StorageClass uint32

// Common storage classes.
const (
	StorageClassUniformConstant StorageClass = 0
	StorageClassInput           StorageClass = 1
	StorageClassUniform         StorageClass = 2
	StorageClassOutput          StorageClass = 3
	StorageClassWorkgroup       StorageClass = 4
	StorageClassCrossWorkgroup  StorageClass = 5
	StorageClassPrivate         StorageClass = 6
	StorageClassFunction        StorageClass = 7
	StorageClassGeneric         StorageClass = 8
	StorageClassPushConstant    StorageClass = 9
	StorageClassAtomicCounter   StorageClass = 10
	StorageClassImage           StorageClass = 11
	StorageClassStorageBuffer   StorageClass = 12
)

// AddressingModel represents a SPIR-V addressing model.
type AddressingModel uint32

const (
	AddressingModelLogical    AddressingModel = 0
	AddressingModelPhysical32 AddressingModel = 1
	AddressingModelPhysical64 AddressingModel = 2
)

// MemoryModel represents a SPIR-V memory model.
type MemoryModel uint32

const (
	MemoryModelSimple  MemoryModel = 0
	MemoryModelGLSL450 MemoryModel = 1
	MemoryModelOpenCL  MemoryModel = 2
	MemoryModelVulkan  MemoryModel = 3
)

// FunctionControl represents a SPIR-V function control.
type FunctionControl uint32

const (
	FunctionControlNone       FunctionControl = 0x0
	FunctionControlInline     FunctionControl = 0x1
	FunctionControlDontInline FunctionControl = 0x2
	FunctionControlPure       FunctionControl = 0x4
	FunctionControlConst      FunctionControl = 0x8
)

// OpExtension is the OpExtension opcode.
const OpExtension OpCode = 10

// Arithmetic opcodes.
const (
	OpSNegate OpCode = 126
	OpFNegate OpCode = 127
	OpIAdd    OpCode = 128
	OpFAdd    OpCode = 129
	OpISub    OpCode = 130
	OpFSub    OpCode = 131
	OpIMul    OpCode = 132
	OpFMul    OpCode = 133
	OpUDiv    OpCode = 134
	OpSDiv    OpCode = 135
	OpFDiv    OpCode = 136
	OpUMod    OpCode = 137
	OpSMod    OpCode = 139
	OpFMod    OpCode = 141

	OpVectorTimesScalar OpCode = 142
	OpMatrixTimesScalar OpCode = 143
	OpVectorTimesMatrix OpCode = 144
	OpMatrixTimesVector OpCode = 145
	OpMatrixTimesMatrix OpCode = 146
)

// Comparison opcodes.
const (
	OpIEqual               OpCode = 180
	OpINotEqual            OpCode = 181
	OpUGreaterThan         OpCode = 182
	OpSGreaterThan         OpCode = 183
	OpUGreaterThanEqual    OpCode = 184
	OpSGreaterThanEqual    OpCode = 185
	OpULessThan            OpCode = 186
	OpSLessThan            OpCode = 187
	OpULessThanEqual       OpCode = 188
	OpSLessThanEqual       OpCode = 189
	OpFOrdEqual            OpCode = 190
	OpFOrdNotEqual         OpCode = 192
	OpFOrdLessThan         OpCode = 194
	OpFOrdGreaterThan      OpCode = 196
	OpFOrdLessThanEqual    OpCode = 198
	OpFOrdGreaterThanEqual OpCode = 200
)

// Logical opcodes.
const (
	OpLogicalEqual    OpCode = 174
	OpLogicalNotEqual OpCode = 175
	OpLogicalOr       OpCode = 176
	OpLogicalAnd      OpCode = 177
	OpLogicalNot      OpCode = 178
	OpSelect          OpCode = 179
	OpNot             OpCode = 208
)

// Composite opcodes.
const (
	OpVectorExtractDynamic OpCode = 77
	OpVectorShuffle        OpCode = 79
	OpCompositeConstruct   OpCode = 80
	OpCompositeExtract     OpCode = 81
)

// Conversion opcodes.
const (
	OpConvertFToU OpCode = 109
	OpConvertFToS OpCode = 110
	OpConvertSToF OpCode = 111
	OpConvertUToF OpCode = 112
	OpSConvert    OpCode = 114
	OpUConvert    OpCode = 113
	OpFConvert    OpCode = 115
	OpBitcast     OpCode = 124
)

// Extended instruction set opcode.
const OpExtInst OpCode = 12

// OpModuleProcessed records debug-only build provenance (spec §4.6's
// debug-names section). Emitted only when Options.Debug is set.
const OpModuleProcessed OpCode = 330

// SelectionControl flags for OpSelectionMerge.
type SelectionControl uint32

const (
	SelectionControlNone        SelectionControl = 0x0
	SelectionControlFlatten     SelectionControl = 0x1
	SelectionControlDontFlatten SelectionControl = 0x2
)

// LoopControl flags for OpLoopMerge.
type LoopControl uint32

const (
	LoopControlNone       LoopControl = 0x0
	LoopControlUnroll     LoopControl = 0x1
	LoopControlDontUnroll LoopControl = 0x2
)

// Dim represents a SPIR-V OpTypeImage dimensionality operand. The source
// language's texture resources are always 2D (spec §6 names no other
// dimensionality), so Dim2D is the only value the back end emits.
type Dim uint32

const Dim2D Dim = 1

// ImageFormat represents a SPIR-V image format (OpTypeImage's Format
// operand). Only Unknown is used by a texture resource that carries no
// explicit storage format annotation; the dedicated image opcodes (§6:
// read/write/sample) otherwise only need the sampled-type, not a format.
type ImageFormat uint32

const (
	ImageFormatUnknown ImageFormat = 0
	ImageFormatRgba32f ImageFormat = 1
	ImageFormatRgba8   ImageFormat = 4
	ImageFormatR32f    ImageFormat = 3
)

// GLSL.std.450 extended instruction set constants used by the standard
// library intrinsic surface (spec §6: pow, sqrt, length, abs).
const (
	GLSLstd450FAbs    uint32 = 4
	GLSLstd450SAbs    uint32 = 5
	GLSLstd450Pow     uint32 = 26
	GLSLstd450Sqrt    uint32 = 31
	GLSLstd450Length  uint32 = 66
	GLSLstd450FMin    uint32 = 37
	GLSLstd450FMax    uint32 = 40
	GLSLstd450Normalize uint32 = 69
	GLSLstd450Cross   uint32 = 68
)
