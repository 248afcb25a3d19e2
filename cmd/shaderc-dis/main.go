// Command shaderc-dis disassembles a binary SPIR-V module into a
// .spvasm-like text listing.
//
// Usage:
//
//	shaderc-dis <file.spv>
package main

import (
	"encoding/binary"
	"fmt"
	"os"
	"strings"

	"github.com/gogpu/shaderc/spirv"
)

// opcodeNames maps every opcode this tool knows how to format to its
// mnemonic. Coverage goes beyond what our own backend ever emits: a
// module produced by another SPIR-V producer can reach this tool too,
// so the instruction stream walk (word count, operand count) must
// stay correct even for unrecognized opcodes.
var opcodeNames = map[uint16]string{
	0: "OpNop", 1: "OpUndef", 2: "OpSourceContinued", 3: "OpSource",
	4: "OpSourceExtension", 5: "OpName", 6: "OpMemberName", 7: "OpString",
	10: "OpExtension", 11: "OpExtInstImport", 12: "OpExtInst",
	14: "OpMemoryModel", 15: "OpEntryPoint", 16: "OpExecutionMode",
	17: "OpCapability", 19: "OpTypeVoid", 20: "OpTypeBool",
	21: "OpTypeInt", 22: "OpTypeFloat", 23: "OpTypeVector",
	24: "OpTypeMatrix", 25: "OpTypeImage", 26: "OpTypeSampler",
	27: "OpTypeSampledImage", 28: "OpTypeArray", 29: "OpTypeRuntimeArray",
	30: "OpTypeStruct", 31: "OpTypeOpaque", 32: "OpTypePointer",
	33: "OpTypeFunction", 41: "OpConstantTrue", 42: "OpConstantFalse",
	43: "OpConstant", 44: "OpConstantComposite", 45: "OpConstantSampler",
	46: "OpConstantNull", 54: "OpFunction", 55: "OpFunctionParameter",
	56: "OpFunctionEnd", 57: "OpFunctionCall", 59: "OpVariable",
	61: "OpLoad", 62: "OpStore", 65: "OpAccessChain",
	66: "OpInBoundsAccessChain", 71: "OpDecorate", 72: "OpMemberDecorate",
	77: "OpVectorExtractDynamic", 78: "OpVectorInsertDynamic",
	79: "OpVectorShuffle", 80: "OpCompositeConstruct", 81: "OpCompositeExtract",
	82: "OpCompositeInsert", 83: "OpCopyObject", 84: "OpTranspose",
	86: "OpSampledImage", 87: "OpImageSampleImplicitLod",
	95: "OpImageFetch", 98: "OpImageRead", 99: "OpImageWrite",
	109: "OpConvertFToU", 110: "OpConvertFToS", 111: "OpConvertSToF",
	112: "OpConvertUToF", 113: "OpUConvert", 114: "OpSConvert",
	115: "OpFConvert", 124: "OpBitcast",
	126: "OpSNegate", 127: "OpFNegate", 128: "OpIAdd", 129: "OpFAdd",
	130: "OpISub", 131: "OpFSub", 132: "OpIMul", 133: "OpFMul",
	134: "OpUDiv", 135: "OpSDiv", 136: "OpFDiv", 137: "OpUMod",
	138: "OpSRem", 139: "OpSMod", 140: "OpFRem", 141: "OpFMod",
	142: "OpVectorTimesScalar", 143: "OpMatrixTimesScalar",
	144: "OpVectorTimesMatrix", 145: "OpMatrixTimesVector",
	146: "OpMatrixTimesMatrix", 147: "OpOuterProduct", 148: "OpDot",
	174: "OpLogicalEqual", 175: "OpLogicalNotEqual",
	176: "OpLogicalOr", 177: "OpLogicalAnd", 178: "OpLogicalNot",
	179: "OpSelect", 180: "OpIEqual", 181: "OpINotEqual",
	182: "OpUGreaterThan", 183: "OpSGreaterThan", 184: "OpUGreaterThanEqual",
	185: "OpSGreaterThanEqual", 186: "OpULessThan", 187: "OpSLessThan",
	188: "OpULessThanEqual", 189: "OpSLessThanEqual",
	190: "OpFOrdEqual", 191: "OpFUnordEqual", 192: "OpFOrdNotEqual",
	193: "OpFUnordNotEqual", 194: "OpFOrdLessThan", 195: "OpFUnordLessThan",
	196: "OpFOrdGreaterThan", 197: "OpFUnordGreaterThan",
	198: "OpFOrdLessThanEqual", 199: "OpFUnordLessThanEqual",
	200: "OpFOrdGreaterThanEqual", 201: "OpFUnordGreaterThanEqual",
	208: "OpNot",
	245: "OpPhi", 246: "OpLoopMerge", 247: "OpSelectionMerge",
	248: "OpLabel", 249: "OpBranch", 250: "OpBranchConditional",
	251: "OpSwitch", 252: "OpKill", 253: "OpReturn", 254: "OpReturnValue",
	255: "OpUnreachable",
	330: "OpModuleProcessed",
}

// capabilities, decorations, storageClasses, executionModels and
// executionModes are seeded from our own backend's named constants
// (spirv.CapabilityShader and friends) rather than re-deriving the
// numbers locally; entries for values the backend never emits are
// filled in numerically since spirv/constants.go names only what
// lowerResource and friends actually produce.
var capabilities = map[uint32]string{
	uint32(spirv.CapabilityMatrix):  "Matrix",
	uint32(spirv.CapabilityShader):  "Shader",
	2:                               "Geometry",
	3:                               "Tessellation",
	4:                               "Addresses",
	5:                               "Linkage",
	6:                               "Kernel",
	uint32(spirv.CapabilityFloat16): "Float16",
	uint32(spirv.CapabilityFloat64): "Float64",
	uint32(spirv.CapabilityInt64):   "Int64",
	uint32(spirv.CapabilityInt16):   "Int16",
	uint32(spirv.CapabilityInt8):    "Int8",
}

var storageClasses = map[uint32]string{
	uint32(spirv.StorageClassUniformConstant): "UniformConstant",
	uint32(spirv.StorageClassInput):           "Input",
	uint32(spirv.StorageClassUniform):         "Uniform",
	uint32(spirv.StorageClassOutput):          "Output",
	uint32(spirv.StorageClassWorkgroup):       "Workgroup",
	uint32(spirv.StorageClassCrossWorkgroup):  "CrossWorkgroup",
	uint32(spirv.StorageClassPrivate):         "Private",
	uint32(spirv.StorageClassFunction):        "Function",
	uint32(spirv.StorageClassGeneric):         "Generic",
	uint32(spirv.StorageClassPushConstant):    "PushConstant",
	uint32(spirv.StorageClassAtomicCounter):   "AtomicCounter",
	uint32(spirv.StorageClassImage):           "Image",
	uint32(spirv.StorageClassStorageBuffer):   "StorageBuffer",
}

var decorations = map[uint32]string{
	0: "RelaxedPrecision", 1: "SpecId",
	uint32(spirv.DecorationBlock):         "Block",
	uint32(spirv.DecorationBufferBlock):   "BufferBlock",
	uint32(spirv.DecorationRowMajor):      "RowMajor",
	uint32(spirv.DecorationColMajor):      "ColMajor",
	uint32(spirv.DecorationArrayStride):   "ArrayStride",
	uint32(spirv.DecorationMatrixStride):  "MatrixStride",
	8:                                     "GLSLShared",
	9:                                     "GLSLPacked",
	10:                                    "CPacked",
	uint32(spirv.DecorationBuiltIn):       "BuiltIn",
	13:                                    "NoPerspective",
	14:                                    "Flat",
	uint32(spirv.DecorationLocation):      "Location",
	31:                                    "Component",
	32:                                    "Index",
	uint32(spirv.DecorationBinding):       "Binding",
	uint32(spirv.DecorationDescriptorSet): "DescriptorSet",
	uint32(spirv.DecorationOffset):        "Offset",
}

var builtins = map[uint32]string{
	uint32(spirv.BuiltInPosition):             "Position",
	uint32(spirv.BuiltInPointSize):             "PointSize",
	uint32(spirv.BuiltInClipDistance):          "ClipDistance",
	uint32(spirv.BuiltInCullDistance):          "CullDistance",
	uint32(spirv.BuiltInVertexID):              "VertexId",
	uint32(spirv.BuiltInInstanceID):            "InstanceId",
	uint32(spirv.BuiltInPrimitiveID):           "PrimitiveId",
	uint32(spirv.BuiltInInvocationID):          "InvocationId",
	uint32(spirv.BuiltInLayer):                 "Layer",
	uint32(spirv.BuiltInViewportIndex):         "ViewportIndex",
	uint32(spirv.BuiltInTessLevelOuter):        "TessLevelOuter",
	uint32(spirv.BuiltInTessLevelInner):        "TessLevelInner",
	uint32(spirv.BuiltInTessCoord):             "TessCoord",
	uint32(spirv.BuiltInPatchVertices):         "PatchVertices",
	uint32(spirv.BuiltInFragCoord):             "FragCoord",
	uint32(spirv.BuiltInPointCoord):            "PointCoord",
	uint32(spirv.BuiltInFrontFacing):           "FrontFacing",
	uint32(spirv.BuiltInSampleID):              "SampleId",
	uint32(spirv.BuiltInSamplePosition):        "SamplePosition",
	uint32(spirv.BuiltInSampleMask):            "SampleMask",
	uint32(spirv.BuiltInFragDepth):             "FragDepth",
	uint32(spirv.BuiltInHelperInvocation):      "HelperInvocation",
	uint32(spirv.BuiltInNumWorkgroups):         "NumWorkgroups",
	uint32(spirv.BuiltInWorkgroupSize):         "WorkgroupSize",
	uint32(spirv.BuiltInWorkgroupID):           "WorkgroupId",
	uint32(spirv.BuiltInLocalInvocationID):     "LocalInvocationId",
	uint32(spirv.BuiltInGlobalInvocationID):    "GlobalInvocationId",
	uint32(spirv.BuiltInLocalInvocationIndex): "LocalInvocationIndex",
	uint32(spirv.BuiltInVertexIndex):           "VertexIndex",
	uint32(spirv.BuiltInInstanceIndex):         "InstanceIndex",
}

var executionModels = map[uint32]string{
	uint32(spirv.ExecutionModelVertex):                 "Vertex",
	uint32(spirv.ExecutionModelTessellationControl):    "TessellationControl",
	uint32(spirv.ExecutionModelTessellationEvaluation): "TessellationEvaluation",
	uint32(spirv.ExecutionModelGeometry):               "Geometry",
	uint32(spirv.ExecutionModelFragment):                "Fragment",
	uint32(spirv.ExecutionModelGLCompute):               "GLCompute",
	uint32(spirv.ExecutionModelKernel):                  "Kernel",
}

var executionModes = map[uint32]string{
	uint32(spirv.ExecutionModeInvocations):           "Invocations",
	uint32(spirv.ExecutionModeSpacingEqual):          "SpacingEqual",
	uint32(spirv.ExecutionModeSpacingFractionalEven): "SpacingFractionalEven",
	uint32(spirv.ExecutionModeSpacingFractionalOdd):  "SpacingFractionalOdd",
	uint32(spirv.ExecutionModeVertexOrderCw):         "VertexOrderCw",
	uint32(spirv.ExecutionModeVertexOrderCcw):        "VertexOrderCcw",
	uint32(spirv.ExecutionModePixelCenterInteger):    "PixelCenterInteger",
	uint32(spirv.ExecutionModeOriginUpperLeft):       "OriginUpperLeft",
	uint32(spirv.ExecutionModeOriginLowerLeft):       "OriginLowerLeft",
	uint32(spirv.ExecutionModeEarlyFragmentTests):    "EarlyFragmentTests",
	uint32(spirv.ExecutionModePointMode):             "PointMode",
	uint32(spirv.ExecutionModeXfb):                   "Xfb",
	uint32(spirv.ExecutionModeDepthReplacing):        "DepthReplacing",
	uint32(spirv.ExecutionModeDepthGreater):          "DepthGreater",
	uint32(spirv.ExecutionModeDepthLess):             "DepthLess",
	uint32(spirv.ExecutionModeDepthUnchanged):        "DepthUnchanged",
	uint32(spirv.ExecutionModeLocalSize):             "LocalSize",
	uint32(spirv.ExecutionModeLocalSizeHint):         "LocalSizeHint",
}

// dims only names Dim2D: the source language's texture resources are
// always two-dimensional, so that is the only value our own backend
// ever emits. Other values are filled in numerically for modules
// produced elsewhere.
var dims = map[uint32]string{
	0:                        "1D",
	uint32(spirv.Dim2D):      "2D",
	2:                        "3D",
	3:                        "Cube",
	4:                        "Rect",
	5:                        "Buffer",
	6:                        "SubpassData",
}

func readString(data []byte, offset int, maxWords int) (string, int) {
	var sb strings.Builder
	words := 0
	for i := 0; i < maxWords*4; i++ {
		if offset+i >= len(data) {
			break
		}
		b := data[offset+i]
		if b == 0 {
			words = (i / 4) + 1
			break
		}
		sb.WriteByte(b)
	}
	return sb.String(), words
}

func id(n uint32) string {
	return fmt.Sprintf("%%_%d", n)
}

func lookup(m map[uint32]string, v uint32) string {
	if s, ok := m[v]; ok {
		return s
	}
	return fmt.Sprintf("%d", v)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: shaderc-dis <file.spv>")
		return
	}
	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(data) < 20 {
		fmt.Fprintln(os.Stderr, "Error: file too small")
		os.Exit(1)
	}

	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != spirv.MagicNumber {
		fmt.Fprintf(os.Stderr, "Error: invalid SPIR-V magic: 0x%08X\n", magic)
		os.Exit(1)
	}

	version := binary.LittleEndian.Uint32(data[4:8])
	bound := binary.LittleEndian.Uint32(data[12:16])

	fmt.Printf("; SPIR-V\n")
	fmt.Printf("; Version: %d.%d\n", (version>>16)&0xFF, (version>>8)&0xFF)
	fmt.Printf("; Generator: 0x%08X\n", binary.LittleEndian.Uint32(data[8:12]))
	fmt.Printf("; Bound: %d\n", bound)
	fmt.Printf("; Schema: %d\n", binary.LittleEndian.Uint32(data[16:20]))
	fmt.Println()

	offset := 20
	for offset < len(data) {
		if offset+4 > len(data) {
			break
		}
		word := binary.LittleEndian.Uint32(data[offset:])
		opcode := uint16(word & 0xFFFF)
		wordCount := int(word >> 16)

		if wordCount == 0 || offset+wordCount*4 > len(data) {
			fmt.Fprintf(os.Stderr, "; ERROR: invalid word count %d at offset 0x%X\n", wordCount, offset)
			break
		}

		ops := make([]uint32, wordCount-1)
		for i := range ops {
			ops[i] = binary.LittleEndian.Uint32(data[offset+4+i*4:])
		}

		name := opcodeNames[opcode]
		if name == "" {
			name = fmt.Sprintf("Op%d", opcode)
		}

		printInstruction(name, opcode, ops, data, offset)
		offset += wordCount * 4
	}
}

//nolint:gocognit,gocyclo,cyclop,funlen // dev tool: switch cases for SPIR-V opcodes
func printInstruction(name string, opcode uint16, ops []uint32, data []byte, offset int) {
	switch spirv.OpCode(opcode) {
	case spirv.OpCapability:
		fmt.Printf("               %s %s\n", name, lookup(capabilities, ops[0]))

	case spirv.OpExtInstImport:
		str, _ := readString(data, offset+8, len(ops)-1)
		fmt.Printf("         %s = %s %q\n", id(ops[0]), name, str)

	case spirv.OpMemoryModel:
		addrModels := map[uint32]string{0: "Logical", 1: "Physical32", 2: "Physical64"}
		memModels := map[uint32]string{0: "Simple", 1: "GLSL450", 2: "OpenCL", 3: "Vulkan"}
		fmt.Printf("               %s %s %s\n", name, lookup(addrModels, ops[0]), lookup(memModels, ops[1]))

	case spirv.OpEntryPoint:
		model := lookup(executionModels, ops[0])
		str, strWords := readString(data, offset+12, len(ops)-2)
		fmt.Printf("               %s %s %s %q", name, model, id(ops[1]), str)
		for i := 2 + strWords; i < len(ops); i++ {
			fmt.Printf(" %s", id(ops[i]))
		}
		fmt.Println()

	case spirv.OpExecutionMode:
		mode := lookup(executionModes, ops[1])
		fmt.Printf("               %s %s %s", name, id(ops[0]), mode)
		for i := 2; i < len(ops); i++ {
			fmt.Printf(" %d", ops[i])
		}
		fmt.Println()

	case spirv.OpName:
		str, _ := readString(data, offset+8, len(ops)-1)
		fmt.Printf("               %s %s %q\n", name, id(ops[0]), str)

	case spirv.OpMemberName:
		str, _ := readString(data, offset+12, len(ops)-2)
		fmt.Printf("               %s %s %d %q\n", name, id(ops[0]), ops[1], str)

	case spirv.OpDecorate:
		dec := lookup(decorations, ops[1])
		fmt.Printf("               %s %s %s", name, id(ops[0]), dec)
		if spirv.Decoration(ops[1]) == spirv.DecorationBuiltIn && len(ops) > 2 {
			fmt.Printf(" %s", lookup(builtins, ops[2]))
		} else {
			for i := 2; i < len(ops); i++ {
				fmt.Printf(" %d", ops[i])
			}
		}
		fmt.Println()

	case spirv.OpMemberDecorate:
		dec := lookup(decorations, ops[2])
		fmt.Printf("               %s %s %d %s", name, id(ops[0]), ops[1], dec)
		for i := 3; i < len(ops); i++ {
			fmt.Printf(" %d", ops[i])
		}
		fmt.Println()

	case spirv.OpTypeVoid, spirv.OpTypeBool, spirv.OpTypeSampler:
		fmt.Printf("         %s = %s\n", id(ops[0]), name)

	case spirv.OpTypeInt:
		sign := "0"
		if ops[2] == 1 {
			sign = "1"
		}
		fmt.Printf("         %s = %s %d %s\n", id(ops[0]), name, ops[1], sign)

	case spirv.OpTypeFloat:
		fmt.Printf("         %s = %s %d\n", id(ops[0]), name, ops[1])

	case spirv.OpTypeVector, spirv.OpTypeMatrix:
		fmt.Printf("         %s = %s %s %d\n", id(ops[0]), name, id(ops[1]), ops[2])

	case spirv.OpTypeImage:
		dim := lookup(dims, ops[2])
		fmt.Printf("         %s = %s %s %s %d %d %d %d Unknown", id(ops[0]), name, id(ops[1]), dim, ops[3], ops[4], ops[5], ops[6])
		if ops[6] != 1 && len(ops) > 7 {
			fmt.Printf(" %d", ops[7])
		}
		fmt.Println()

	case spirv.OpTypeSampledImage:
		fmt.Printf("         %s = %s %s\n", id(ops[0]), name, id(ops[1]))

	case spirv.OpTypeArray:
		fmt.Printf("         %s = %s %s %s\n", id(ops[0]), name, id(ops[1]), id(ops[2]))

	case spirv.OpTypeStruct:
		fmt.Printf("         %s = %s", id(ops[0]), name)
		for i := 1; i < len(ops); i++ {
			fmt.Printf(" %s", id(ops[i]))
		}
		fmt.Println()

	case spirv.OpTypePointer:
		sc := lookup(storageClasses, ops[1])
		fmt.Printf("         %s = %s %s %s\n", id(ops[0]), name, sc, id(ops[2]))

	case spirv.OpTypeFunction:
		fmt.Printf("         %s = %s %s", id(ops[0]), name, id(ops[1]))
		for i := 2; i < len(ops); i++ {
			fmt.Printf(" %s", id(ops[i]))
		}
		fmt.Println()

	case spirv.OpConstant:
		fmt.Printf("         %s = %s %s %d\n", id(ops[1]), name, id(ops[0]), ops[2])

	case spirv.OpConstantComposite:
		fmt.Printf("         %s = %s %s", id(ops[1]), name, id(ops[0]))
		for i := 2; i < len(ops); i++ {
			fmt.Printf(" %s", id(ops[i]))
		}
		fmt.Println()

	case spirv.OpFunction:
		fmt.Printf("         %s = %s %s None %s\n", id(ops[1]), name, id(ops[0]), id(ops[3]))

	case spirv.OpFunctionParameter:
		fmt.Printf("         %s = %s %s\n", id(ops[1]), name, id(ops[0]))

	case spirv.OpFunctionEnd, spirv.OpReturn, spirv.OpKill, spirv.OpUnreachable:
		fmt.Printf("               %s\n", name)

	case spirv.OpVariable:
		sc := lookup(storageClasses, ops[2])
		fmt.Printf("         %s = %s %s %s\n", id(ops[1]), name, id(ops[0]), sc)

	case spirv.OpLoad:
		fmt.Printf("         %s = %s %s %s\n", id(ops[1]), name, id(ops[0]), id(ops[2]))

	case spirv.OpStore:
		fmt.Printf("               %s %s %s\n", name, id(ops[0]), id(ops[1]))

	case spirv.OpAccessChain, spirv.OpInBoundsAccessChain:
		fmt.Printf("         %s = %s %s %s", id(ops[1]), name, id(ops[0]), id(ops[2]))
		for i := 3; i < len(ops); i++ {
			fmt.Printf(" %s", id(ops[i]))
		}
		fmt.Println()

	case spirv.OpCompositeConstruct:
		fmt.Printf("         %s = %s %s", id(ops[1]), name, id(ops[0]))
		for i := 2; i < len(ops); i++ {
			fmt.Printf(" %s", id(ops[i]))
		}
		fmt.Println()

	case spirv.OpCompositeExtract:
		fmt.Printf("         %s = %s %s %s", id(ops[1]), name, id(ops[0]), id(ops[2]))
		for i := 3; i < len(ops); i++ {
			fmt.Printf(" %d", ops[i])
		}
		fmt.Println()

	case spirv.OpVectorShuffle:
		fmt.Printf("         %s = %s %s %s %s", id(ops[1]), name, id(ops[0]), id(ops[2]), id(ops[3]))
		for i := 4; i < len(ops); i++ {
			fmt.Printf(" %d", ops[i])
		}
		fmt.Println()

	case spirv.OpSampledImage, spirv.OpImageSampleImplicitLod, spirv.OpImageRead:
		fmt.Printf("         %s = %s %s %s %s\n", id(ops[1]), name, id(ops[0]), id(ops[2]), id(ops[3]))

	case spirv.OpImageWrite:
		fmt.Printf("               %s %s %s %s\n", name, id(ops[0]), id(ops[1]), id(ops[2]))

	case spirv.OpLabel:
		fmt.Printf("         %s = %s\n", id(ops[0]), name)

	case spirv.OpBranch:
		fmt.Printf("               %s %s\n", name, id(ops[0]))

	case spirv.OpBranchConditional:
		fmt.Printf("               %s %s %s %s", name, id(ops[0]), id(ops[1]), id(ops[2]))
		for i := 3; i < len(ops); i++ {
			fmt.Printf(" %d", ops[i])
		}
		fmt.Println()

	case spirv.OpLoopMerge:
		fmt.Printf("               %s %s %s %d\n", name, id(ops[0]), id(ops[1]), ops[2])

	case spirv.OpSelectionMerge:
		fmt.Printf("               %s %s %d\n", name, id(ops[0]), ops[1])

	case spirv.OpReturnValue:
		fmt.Printf("               %s %s\n", name, id(ops[0]))

	case spirv.OpModuleProcessed:
		str, _ := readString(data, offset+4, len(ops))
		fmt.Printf("               %s %q\n", name, str)

	case spirv.OpSelect:
		fmt.Printf("         %s = %s %s %s %s %s\n", id(ops[1]), name, id(ops[0]), id(ops[2]), id(ops[3]), id(ops[4]))

	default:
		printGenericInstruction(name, opcode, ops)
	}
}

func printGenericInstruction(name string, opcode uint16, ops []uint32) {
	fmt.Printf("         ")
	switch {
	case len(ops) >= 2 && opcode >= 109 && opcode <= 208:
		// Arithmetic, conversion, comparison and logical ops: type result operands...
		fmt.Printf("%s = %s %s", id(ops[1]), name, id(ops[0]))
		for i := 2; i < len(ops); i++ {
			fmt.Printf(" %s", id(ops[i]))
		}
	case len(ops) >= 1:
		fmt.Printf("%s", name)
		for _, op := range ops {
			fmt.Printf(" %s", id(op))
		}
	default:
		fmt.Printf("%s", name)
	}
	fmt.Println()
}
