package shaderc

import (
	"encoding/binary"
	"testing"

	"github.com/gogpu/shaderc/frontend"
	"github.com/gogpu/shaderc/types"
)

const spirvMagic = 0x07230203

func checkMagic(t *testing.T, module []byte) {
	t.Helper()
	if len(module) < 20 {
		t.Fatalf("SPIR-V output too short (%d bytes): should have at least a 5-word header", len(module))
	}
	got := binary.LittleEndian.Uint32(module[:4])
	if got != spirvMagic {
		t.Errorf("invalid SPIR-V magic: got 0x%08x, want 0x%08x", got, spirvMagic)
	}
}

func mustResolve(t *testing.T, name string) types.Type {
	t.Helper()
	ty, err := types.Resolve(name)
	if err != nil {
		t.Fatalf("types.Resolve(%q): %v", name, err)
	}
	return ty
}

func TestCompileSimpleFragmentShader(t *testing.T) {
	// out = color
	fn := &frontend.Function{
		Name:       "main",
		ShaderKind: "fragment",
		Annotations: []frontend.ArgAnnotation{
			{Name: "color", Kind: frontend.ArgInput, Slot: frontend.IntSlot(0), Subtype: mustResolve(t, "vec4")},
			{Name: "out_color", Kind: frontend.ArgOutput, Slot: frontend.IntSlot(0), Subtype: mustResolve(t, "vec4")},
		},
		Instructions: []frontend.BytecodeInstr{
			{Op: frontend.OpLoadFast, Arg: 0},  // color
			{Op: frontend.OpStoreFast, Arg: 1}, // out_color
			{Op: frontend.OpReturnValue},
		},
		Names: []string{"color", "out_color"},
	}

	module, err := Compile(fn)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	checkMagic(t, module)
}

func TestCompileWithMathIntrinsic(t *testing.T) {
	// out = stdlib.sqrt(v)
	fn := &frontend.Function{
		Name:       "main",
		ShaderKind: "fragment",
		Annotations: []frontend.ArgAnnotation{
			{Name: "v", Kind: frontend.ArgInput, Slot: frontend.IntSlot(0), Subtype: mustResolve(t, "f32")},
			{Name: "out_v", Kind: frontend.ArgOutput, Slot: frontend.IntSlot(0), Subtype: mustResolve(t, "f32")},
		},
		Instructions: []frontend.BytecodeInstr{
			{Op: frontend.OpLoadGlobal, Arg: 0}, // stdlib
			{Op: frontend.OpLoadAttr, Arg: 1},   // .sqrt
			{Op: frontend.OpLoadFast, Arg: 2},   // v
			{Op: frontend.OpCallFunction, Arg: 1},
			{Op: frontend.OpStoreFast, Arg: 3}, // out_v
			{Op: frontend.OpReturnValue},
		},
		Names: []string{"stdlib", "sqrt", "v", "out_v"},
	}

	opts := DefaultOptions()
	opts.Debug = true
	module, err := CompileWithOptions(fn, opts)
	if err != nil {
		t.Fatalf("CompileWithOptions failed: %v", err)
	}
	checkMagic(t, module)
}

func TestCompileSIRRoundTrip(t *testing.T) {
	text := `"resource","input.color","input",0,"vec4<f32>"
"resource","output.out_color","output",0,"vec4<f32>"
"entrypoint","main","fragment"
"load_name","color"
"store_name","out_color"
"return"
"func_end"
`
	module, err := CompileSIR(text)
	if err != nil {
		t.Fatalf("CompileSIR failed: %v", err)
	}
	checkMagic(t, module)
}

func TestCompileSIRRejectsMalformedText(t *testing.T) {
	if _, err := CompileSIR("not a sir program"); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestValidateRejectsUnresolvedBranch(t *testing.T) {
	prog, err := ParseSIR(`"entrypoint","main","fragment"
"branch","nowhere"
"func_end"
`)
	if err != nil {
		t.Fatalf("ParseSIR: %v", err)
	}
	if err := Validate(prog); err == nil {
		t.Fatal("expected an unresolved branch target error")
	}
}
