package spirv

import (
	"encoding/binary"
	"testing"

	"github.com/gogpu/shaderc/sir"
	"github.com/gogpu/shaderc/types"
)

// decodedInstr is one parsed SPIR-V instruction: its opcode and operand
// words (result type/id included, header word stripped).
type decodedInstr struct {
	Op    OpCode
	Words []uint32
}

// decodeModule parses a built module's word stream back into instructions,
// skipping the 5-word header, so tests can assert on structure without
// re-deriving the assembler's own encoding.
func decodeModule(t *testing.T, buf []byte) []decodedInstr {
	t.Helper()
	if len(buf)%4 != 0 {
		t.Fatalf("module length %d is not a multiple of 4", len(buf))
	}
	words := make([]uint32, len(buf)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	if len(words) < 5 || words[0] != MagicNumber {
		t.Fatalf("missing or wrong magic number: %#v", words[:min(5, len(words))])
	}

	var out []decodedInstr
	for i := 5; i < len(words); {
		header := words[i]
		count := header >> 16
		op := OpCode(header & 0xffff)
		if count == 0 || int(i)+int(count) > len(words) {
			t.Fatalf("malformed instruction header at word %d: %#x", i, header)
		}
		out = append(out, decodedInstr{Op: op, Words: words[i+1 : i+int(count)]})
		i += int(count)
	}
	return out
}

func findAll(instrs []decodedInstr, op OpCode) []decodedInstr {
	var out []decodedInstr
	for _, in := range instrs {
		if in.Op == op {
			out = append(out, in)
		}
	}
	return out
}

func runProgram(t *testing.T, prog sir.Program) []decodedInstr {
	t.Helper()
	pool := NewPool(Version1_3)
	b := NewBackend(pool, DefaultOptions())
	buf, err := b.Run(prog, types.NewRegistry())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return decodeModule(t, buf)
}

// TestBackendMinimalFragmentShader builds a fragment shader that reads a
// vec2 input, extends it to a vec4, and writes it to one output; it
// checks the entry point, execution mode, and function shell.
func TestBackendMinimalFragmentShader(t *testing.T) {
	var p sir.Program
	p = p.Emit(sir.OpEntrypoint, "main", string(sir.ShaderFragment))
	p = p.Emit(sir.OpResource, "input.uv", string(sir.ResourceInput), int64(0), "vec2<f32>")
	p = p.Emit(sir.OpResource, "output.color", string(sir.ResourceOutput), int64(0), "vec4<f32>")
	p = p.Emit(sir.OpLoadName, "uv")
	p = p.Emit(sir.OpLoadConstant, 0.0)
	p = p.Emit(sir.OpLoadConstant, 0.0)
	p = p.Emit(sir.OpCall, "vec4", int64(3))
	p = p.Emit(sir.OpStoreName, "color")
	p = p.Emit(sir.OpReturn)
	p = p.Emit(sir.OpFuncEnd)

	instrs := runProgram(t, p)

	entries := findAll(instrs, OpEntryPoint)
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 OpEntryPoint, got %d", len(entries))
	}
	if ExecutionModel(entries[0].Words[0]) != ExecutionModelFragment {
		t.Errorf("expected Fragment execution model, got %d", entries[0].Words[0])
	}

	modes := findAll(instrs, OpExecutionMode)
	if len(modes) != 1 || ExecutionMode(modes[0].Words[1]) != ExecutionModeOriginLowerLeft {
		t.Errorf("expected a single OriginLowerLeft execution mode, got %#v", modes)
	}

	if len(findAll(instrs, OpFunctionEnd)) != 1 {
		t.Errorf("expected exactly 1 OpFunctionEnd")
	}
	if len(findAll(instrs, OpReturn)) != 1 {
		t.Errorf("expected exactly 1 OpReturn")
	}
}

// TestBackendDebugEmitsModuleProcessed confirms that Options.Debug stamps
// the module with a unique OpModuleProcessed build identifier, and that
// two separate Run calls produce two distinct identifiers.
func TestBackendDebugEmitsModuleProcessed(t *testing.T) {
	prog := minimalProgram()

	opts := DefaultOptions()
	opts.Debug = true

	run := func() string {
		pool := NewPool(Version1_3)
		b := NewBackend(pool, opts)
		buf, err := b.Run(prog, types.NewRegistry())
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		instrs := decodeModule(t, buf)
		processed := findAll(instrs, OpModuleProcessed)
		if len(processed) != 1 {
			t.Fatalf("expected exactly 1 OpModuleProcessed, got %d", len(processed))
		}
		return decodeLiteralString(processed[0].Words)
	}

	first, second := run(), run()
	if first == second {
		t.Errorf("expected distinct build identifiers across runs, both were %q", first)
	}
}

// TestBackendNoDebugOmitsModuleProcessed confirms the default options never
// emit OpModuleProcessed.
func TestBackendNoDebugOmitsModuleProcessed(t *testing.T) {
	instrs := runProgram(t, minimalProgram())
	if got := findAll(instrs, OpModuleProcessed); len(got) != 0 {
		t.Errorf("expected no OpModuleProcessed without Debug, got %d", len(got))
	}
}

func minimalProgram() sir.Program {
	var p sir.Program
	p = p.Emit(sir.OpEntrypoint, "main", string(sir.ShaderFragment))
	p = p.Emit(sir.OpResource, "input.uv", string(sir.ResourceInput), int64(0), "vec2<f32>")
	p = p.Emit(sir.OpResource, "output.color", string(sir.ResourceOutput), int64(0), "vec4<f32>")
	p = p.Emit(sir.OpLoadName, "uv")
	p = p.Emit(sir.OpLoadConstant, 0.0)
	p = p.Emit(sir.OpLoadConstant, 0.0)
	p = p.Emit(sir.OpCall, "vec4", int64(3))
	p = p.Emit(sir.OpStoreName, "color")
	p = p.Emit(sir.OpReturn)
	p = p.Emit(sir.OpFuncEnd)
	return p
}

// decodeLiteralString decodes a SPIR-V literal string operand (one or more
// little-endian, NUL-terminated, NUL-padded words) back to a Go string.
func decodeLiteralString(words []uint32) string {
	buf := make([]byte, 0, len(words)*4)
	for _, w := range words {
		buf = append(buf, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	if i := indexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	return string(buf)
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// TestBackendTypeAndConstantDedup confirms that loading the same constant
// twice, and declaring two resources of the same type, reuses one SPIR-V
// id rather than emitting duplicate OpConstant/OpType instructions.
func TestBackendTypeAndConstantDedup(t *testing.T) {
	var p sir.Program
	p = p.Emit(sir.OpEntrypoint, "main", string(sir.ShaderFragment))
	p = p.Emit(sir.OpResource, "input.a", string(sir.ResourceInput), int64(0), "f32")
	p = p.Emit(sir.OpResource, "input.b", string(sir.ResourceInput), int64(1), "f32")
	p = p.Emit(sir.OpResource, "output.c", string(sir.ResourceOutput), int64(0), "f32")
	p = p.Emit(sir.OpLoadConstant, 1.0)
	p = p.Emit(sir.OpLoadConstant, 1.0)
	p = p.Emit(sir.OpBinaryOp, string(sir.BinAdd))
	p = p.Emit(sir.OpStoreName, "c")
	p = p.Emit(sir.OpReturn)
	p = p.Emit(sir.OpFuncEnd)

	instrs := runProgram(t, p)

	floats := findAll(instrs, OpTypeFloat)
	if len(floats) != 1 {
		t.Errorf("expected exactly 1 OpTypeFloat (f32 reused by both resources and the constant), got %d", len(floats))
	}

	ones := 0
	for _, c := range findAll(instrs, OpConstant) {
		if len(c.Words) == 3 && c.Words[2] == 0x3f800000 { // 1.0f bit pattern
			ones++
		}
	}
	if ones != 1 {
		t.Errorf("expected the literal 1.0 to be interned exactly once, got %d OpConstant entries", ones)
	}
}

// TestBackendSelectionMergeAdjacency builds a plain if/else (no loop) and
// checks that every OpSelectionMerge immediately precedes its
// OpBranchConditional (spec §8).
func TestBackendSelectionMergeAdjacency(t *testing.T) {
	var p sir.Program
	p = p.Emit(sir.OpEntrypoint, "main", string(sir.ShaderFragment))
	p = p.Emit(sir.OpResource, "input.i", string(sir.ResourceInput), int64(0), "i32")
	p = p.Emit(sir.OpResource, "output.o", string(sir.ResourceOutput), int64(0), "f32")
	p = p.Emit(sir.OpLoadName, "i")
	p = p.Emit(sir.OpLoadConstant, int64(0))
	p = p.Emit(sir.OpCompare, string(sir.CmpEQ))
	p = p.Emit(sir.OpBranchConditional, "then", "else")
	p = p.Emit(sir.OpLabel, "then")
	p = p.Emit(sir.OpLoadConstant, 40.0)
	p = p.Emit(sir.OpStoreName, "o")
	p = p.Emit(sir.OpBranch, "merge")
	p = p.Emit(sir.OpLabel, "else")
	p = p.Emit(sir.OpLoadConstant, 41.0)
	p = p.Emit(sir.OpStoreName, "o")
	p = p.Emit(sir.OpBranch, "merge")
	p = p.Emit(sir.OpLabel, "merge")
	p = p.Emit(sir.OpReturn)
	p = p.Emit(sir.OpFuncEnd)

	instrs := runProgram(t, p)

	found := 0
	for i, in := range instrs {
		if in.Op != OpSelectionMerge {
			continue
		}
		found++
		if i+1 >= len(instrs) || instrs[i+1].Op != OpBranchConditional {
			t.Errorf("OpSelectionMerge at %d is not immediately followed by OpBranchConditional", i)
		}
	}
	if found != 1 {
		t.Fatalf("expected exactly 1 OpSelectionMerge, got %d", found)
	}
}

// TestBackendMergeEmitsPhiForUnselectedTernary builds an if/else whose arms
// each leave a value on the stack and join at a plain label instead of
// being converted to select() (the shape reachable with
// CompileOptions.ConvertTernaryToSelect false, or whenever spliceTernary's
// adjacency check fails) and checks the merge label collects the two arms
// with OpPhi instead of silently dropping one.
func TestBackendMergeEmitsPhiForUnselectedTernary(t *testing.T) {
	var p sir.Program
	p = p.Emit(sir.OpEntrypoint, "main", string(sir.ShaderFragment))
	p = p.Emit(sir.OpResource, "input.i", string(sir.ResourceInput), int64(0), "i32")
	p = p.Emit(sir.OpResource, "output.o", string(sir.ResourceOutput), int64(0), "f32")
	p = p.Emit(sir.OpLoadName, "i")
	p = p.Emit(sir.OpLoadConstant, int64(0))
	p = p.Emit(sir.OpCompare, string(sir.CmpEQ))
	p = p.Emit(sir.OpBranchConditional, "then", "else")
	p = p.Emit(sir.OpLabel, "then")
	p = p.Emit(sir.OpLoadConstant, 40.0)
	p = p.Emit(sir.OpBranch, "merge")
	p = p.Emit(sir.OpLabel, "else")
	p = p.Emit(sir.OpLoadConstant, 41.0)
	p = p.Emit(sir.OpBranch, "merge")
	p = p.Emit(sir.OpLabel, "merge")
	p = p.Emit(sir.OpStoreName, "o")
	p = p.Emit(sir.OpReturn)
	p = p.Emit(sir.OpFuncEnd)

	instrs := runProgram(t, p)

	phis := findAll(instrs, OpPhi)
	if len(phis) != 1 {
		t.Fatalf("expected exactly 1 OpPhi at the merge label, got %d", len(phis))
	}
	// result type, result id, then two (value, parent block) pairs.
	if got := len(phis[0].Words); got != 6 {
		t.Errorf("expected OpPhi with 2 incoming edges (6 words), got %d words", got)
	}
}

// TestBackendLoopMergeAdjacency builds a for-loop-with-break shape (spec §8
// scenario 6) and checks OpLoopMerge immediately precedes its OpBranch,
// and the break's own conditional carries no OpSelectionMerge since its
// true target is the loop's own merge label.
func TestBackendLoopMergeAdjacency(t *testing.T) {
	var p sir.Program
	p = p.Emit(sir.OpEntrypoint, "main", string(sir.ShaderCompute))
	p = p.Emit(sir.OpResource, "input.n", string(sir.ResourceInput), int64(0), "i32")
	p = p.Emit(sir.OpResource, "output.val", string(sir.ResourceOutput), int64(0), "i32")
	p = p.Emit(sir.OpLoadConstant, int64(0))
	p = p.Emit(sir.OpStoreName, "val")
	p = p.Emit(sir.OpLoadConstant, int64(0))
	p = p.Emit(sir.OpStoreName, "k")
	p = p.Emit(sir.OpLabel, "head")
	p = p.Emit(sir.OpBranchLoop, "iter", "continue", "exit")
	p = p.Emit(sir.OpLabel, "iter")
	p = p.Emit(sir.OpLoadName, "k")
	p = p.Emit(sir.OpLoadConstant, int64(7))
	p = p.Emit(sir.OpCompare, string(sir.CmpEQ))
	p = p.Emit(sir.OpBranchConditional, "exit", "body")
	p = p.Emit(sir.OpLabel, "body")
	p = p.Emit(sir.OpLoadName, "val")
	p = p.Emit(sir.OpLoadConstant, int64(1))
	p = p.Emit(sir.OpBinaryOp, string(sir.BinAdd))
	p = p.Emit(sir.OpStoreName, "val")
	p = p.Emit(sir.OpBranch, "continue")
	p = p.Emit(sir.OpLabel, "continue")
	p = p.Emit(sir.OpLoadName, "k")
	p = p.Emit(sir.OpLoadConstant, int64(1))
	p = p.Emit(sir.OpBinaryOp, string(sir.BinAdd))
	p = p.Emit(sir.OpStoreName, "k")
	p = p.Emit(sir.OpBranch, "head")
	p = p.Emit(sir.OpLabel, "exit")
	p = p.Emit(sir.OpLoadName, "val")
	p = p.Emit(sir.OpStoreName, "val")
	p = p.Emit(sir.OpReturn)
	p = p.Emit(sir.OpFuncEnd)

	instrs := runProgram(t, p)

	loopMerges := 0
	for i, in := range instrs {
		if in.Op != OpLoopMerge {
			continue
		}
		loopMerges++
		if i+1 >= len(instrs) || instrs[i+1].Op != OpBranch {
			t.Errorf("OpLoopMerge at %d is not immediately followed by OpBranch", i)
		}
	}
	if loopMerges != 1 {
		t.Fatalf("expected exactly 1 OpLoopMerge, got %d", loopMerges)
	}

	if n := len(findAll(instrs, OpSelectionMerge)); n != 0 {
		t.Errorf("expected no OpSelectionMerge for the loop-exit branch, got %d", n)
	}
	if n := len(findAll(instrs, OpBranchConditional)); n != 1 {
		t.Errorf("expected exactly 1 OpBranchConditional (the break check), got %d", n)
	}
}

// TestBackendTernaryProducesSelectNoBranch exercises the post-splice
// operand order lowerSelect expects (falseVal, trueVal, cond from top),
// matching what rewrites.go's spliceTernary leaves on the stack, and
// checks no OpBranchConditional survives for it (spec §8 scenario 4).
func TestBackendTernaryProducesSelectNoBranch(t *testing.T) {
	var p sir.Program
	p = p.Emit(sir.OpEntrypoint, "main", string(sir.ShaderCompute))
	p = p.Emit(sir.OpResource, "input.i", string(sir.ResourceInput), int64(0), "i32")
	p = p.Emit(sir.OpResource, "output.o", string(sir.ResourceOutput), int64(0), "f32")
	p = p.Emit(sir.OpLoadName, "i")
	p = p.Emit(sir.OpLoadConstant, int64(0))
	p = p.Emit(sir.OpCompare, string(sir.CmpEQ))
	p = p.Emit(sir.OpLoadConstant, 40.0)
	p = p.Emit(sir.OpLoadConstant, 41.0)
	p = p.Emit(sir.OpSelect)
	p = p.Emit(sir.OpStoreName, "o")
	p = p.Emit(sir.OpReturn)
	p = p.Emit(sir.OpFuncEnd)

	instrs := runProgram(t, p)

	if n := len(findAll(instrs, OpSelect)); n != 1 {
		t.Errorf("expected exactly 1 OpSelect, got %d", n)
	}
	if n := len(findAll(instrs, OpBranchConditional)); n != 0 {
		t.Errorf("expected no OpBranchConditional for a ternary, got %d", n)
	}
}

// TestBackendScalarConversions checks the int<->float round trips of spec
// §8 scenarios 2 and 3: f32(i32) uses OpConvertSToF, i32(f32) uses
// OpConvertFToS.
func TestBackendScalarConversions(t *testing.T) {
	var p sir.Program
	p = p.Emit(sir.OpEntrypoint, "main", string(sir.ShaderCompute))
	p = p.Emit(sir.OpResource, "input.i", string(sir.ResourceInput), int64(0), "i32")
	p = p.Emit(sir.OpResource, "output.f", string(sir.ResourceOutput), int64(0), "f32")
	p = p.Emit(sir.OpResource, "output.j", string(sir.ResourceOutput), int64(1), "i32")
	p = p.Emit(sir.OpLoadName, "i")
	p = p.Emit(sir.OpCall, "f32", int64(1))
	p = p.Emit(sir.OpStoreName, "f")
	p = p.Emit(sir.OpLoadConstant, 2.9)
	p = p.Emit(sir.OpCall, "i32", int64(1))
	p = p.Emit(sir.OpStoreName, "j")
	p = p.Emit(sir.OpReturn)
	p = p.Emit(sir.OpFuncEnd)

	instrs := runProgram(t, p)

	if n := len(findAll(instrs, OpConvertSToF)); n != 1 {
		t.Errorf("expected exactly 1 OpConvertSToF, got %d", n)
	}
	if n := len(findAll(instrs, OpConvertFToS)); n != 1 {
		t.Errorf("expected exactly 1 OpConvertFToS, got %d", n)
	}
}

// TestBackendIDBoundExceedsEveryResultID confirms the id bound invariant:
// every result id a built module references is strictly less than the
// bound written to the header.
func TestBackendIDBoundExceedsEveryResultID(t *testing.T) {
	var p sir.Program
	p = p.Emit(sir.OpEntrypoint, "main", string(sir.ShaderFragment))
	p = p.Emit(sir.OpResource, "input.a", string(sir.ResourceInput), int64(0), "vec3<f32>")
	p = p.Emit(sir.OpResource, "output.b", string(sir.ResourceOutput), int64(0), "vec3<f32>")
	p = p.Emit(sir.OpLoadName, "a")
	p = p.Emit(sir.OpStoreName, "b")
	p = p.Emit(sir.OpReturn)
	p = p.Emit(sir.OpFuncEnd)

	pool := NewPool(Version1_3)
	b := NewBackend(pool, DefaultOptions())
	buf, err := b.Run(p, types.NewRegistry())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	words := make([]uint32, len(buf)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	bound := words[3]
	if bound != pool.IDBound() {
		t.Fatalf("header id_bound %d does not match pool.IDBound() %d", bound, pool.IDBound())
	}
	if bound == 0 {
		t.Fatalf("id_bound must be nonzero once ids have been allocated")
	}
	for _, in := range decodeModule(t, buf) {
		var resultID uint32
		switch {
		case in.Op == OpLabel || (in.Op >= OpTypeVoid && in.Op <= OpTypeFunction):
			resultID = in.Words[0]
		case in.Op == OpVariable || in.Op == OpConstant || in.Op == OpFunction || in.Op == OpLoad:
			resultID = in.Words[1]
		default:
			continue
		}
		if resultID >= bound {
			t.Errorf("opcode %d: result id %d is not below id_bound %d", in.Op, resultID, bound)
		}
	}
}

// TestBackendRejectsNonBoolBranchCondition checks that branch_conditional
// refuses a non-bool operand (spec §4.5's structured-control-flow
// invariant relies on the condition always being a logical value).
func TestBackendRejectsNonBoolBranchCondition(t *testing.T) {
	var p sir.Program
	p = p.Emit(sir.OpEntrypoint, "main", string(sir.ShaderFragment))
	p = p.Emit(sir.OpResource, "output.o", string(sir.ResourceOutput), int64(0), "f32")
	p = p.Emit(sir.OpLoadConstant, int64(1))
	p = p.Emit(sir.OpBranchConditional, "then", "else")
	p = p.Emit(sir.OpLabel, "then")
	p = p.Emit(sir.OpBranch, "merge")
	p = p.Emit(sir.OpLabel, "else")
	p = p.Emit(sir.OpBranch, "merge")
	p = p.Emit(sir.OpLabel, "merge")
	p = p.Emit(sir.OpReturn)
	p = p.Emit(sir.OpFuncEnd)

	pool := NewPool(Version1_3)
	b := NewBackend(pool, DefaultOptions())
	if _, err := b.Run(p, types.NewRegistry()); err == nil {
		t.Fatalf("expected an error for a non-bool branch condition")
	}
}

// TestBackendBlockResourceOffsets checks that a uniform block resource
// with multiple fields gets increasing, alignment-respecting Offset
// decorations.
func TestBackendBlockResourceOffsets(t *testing.T) {
	var p sir.Program
	p = p.Emit(sir.OpEntrypoint, "main", string(sir.ShaderVertex))
	p = p.Emit(sir.OpResource, "uniform.mvp", string(sir.ResourceUniform),
		[]sir.Arg{int64(0), int64(0)}, "Struct(model=mat4x4<f32>,scale=f32)")
	p = p.Emit(sir.OpReturn)
	p = p.Emit(sir.OpFuncEnd)

	instrs := runProgram(t, p)

	offsets := findAll(instrs, OpMemberDecorate)
	var seen []uint32
	for _, in := range offsets {
		if Decoration(in.Words[2]) != DecorationOffset {
			continue
		}
		seen = append(seen, in.Words[3])
	}
	if len(seen) != 2 {
		t.Fatalf("expected 2 Offset member decorations, got %d (%v)", len(seen), seen)
	}
	if seen[0] != 0 {
		t.Errorf("first field offset = %d, want 0", seen[0])
	}
	if seen[1] <= seen[0] {
		t.Errorf("second field offset %d does not follow the first %d", seen[1], seen[0])
	}

	blocks := findAll(instrs, OpDecorate)
	hasBlock := false
	for _, in := range blocks {
		if len(in.Words) >= 2 && Decoration(in.Words[1]) == DecorationBlock {
			hasBlock = true
		}
	}
	if !hasBlock {
		t.Errorf("expected a Block decoration on the uniform struct")
	}
}
