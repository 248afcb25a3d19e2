// Package shaderc provides a Pure Go shader compiler.
//
// shaderc turns a source language's stack-machine bytecode into binary
// SPIR-V through a two-stage pipeline:
//   - front end: frontend.Walker reconstructs structured control flow
//     and emits a sir.Program (the stack-oriented intermediate
//     representation)
//   - back end: spirv.Backend lowers the sir.Program into a binary
//     SPIR-V module
//
// The package provides a simple, high-level API for the whole pipeline as
// well as access to each individual stage.
//
// Example usage:
//
//	fn := &frontend.Function{
//		Name:       "main",
//		ShaderKind: "fragment",
//		// ... Instructions, Constants, Names, Annotations
//	}
//	module, err := shaderc.Compile(fn)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// A program already expressed as SIR text (the line-oriented form
// sir.Serialize produces) can skip the front end entirely:
//
//	module, err := shaderc.CompileSIR(sirText)
package shaderc

import (
	"fmt"

	"github.com/gogpu/shaderc/frontend"
	"github.com/gogpu/shaderc/sir"
	"github.com/gogpu/shaderc/spirv"
	"github.com/gogpu/shaderc/types"
)

// CompileOptions configures shader compilation.
type CompileOptions struct {
	// SPIRVVersion is the target SPIR-V version (default: 1.3).
	SPIRVVersion spirv.Version

	// Debug stamps the module with an OpModuleProcessed build identifier.
	// OpName/OpMemberName debug names are emitted whether or not it is set.
	Debug bool

	// Validate enables SIR structural validation before code generation.
	Validate bool

	// StorageBufferClass selects which storage class `buffer` resources
	// lower to.
	StorageBufferClass spirv.StorageBufferClass

	// Rewrites gates the front end's optional structural rewrite passes.
	Rewrites frontend.CompileOptions
}

// DefaultOptions returns sensible default options.
func DefaultOptions() CompileOptions {
	return CompileOptions{
		SPIRVVersion: spirv.Version1_3,
		Debug:        false,
		Validate:     true,
		Rewrites:     frontend.DefaultCompileOptions(),
	}
}

// Compile lowers a bytecode Function to SPIR-V binary using default
// options.
//
// This is the simplest way to compile a shader. For more control, use
// CompileWithOptions or the individual Lower/Validate/GenerateSPIRV
// stages.
func Compile(fn *frontend.Function) ([]byte, error) {
	return CompileWithOptions(fn, DefaultOptions())
}

// CompileWithOptions lowers a bytecode Function to SPIR-V binary with
// custom options.
//
// The compilation pipeline is:
//  1. Walk the bytecode into a SIR program (front end)
//  2. Validate the SIR program's structural invariants, if enabled
//  3. Assemble the SIR program into binary SPIR-V (back end)
func CompileWithOptions(fn *frontend.Function, opts CompileOptions) ([]byte, error) {
	reg := types.NewRegistry()

	prog, err := Lower(fn, reg, opts.Rewrites)
	if err != nil {
		return nil, fmt.Errorf("lowering error: %w", err)
	}

	if opts.Validate {
		if err := Validate(prog); err != nil {
			return nil, fmt.Errorf("validation error: %w", err)
		}
	}

	spirvBytes, err := GenerateSPIRV(prog, reg, spirvOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("SPIR-V generation error: %w", err)
	}

	return spirvBytes, nil
}

// CompileSIR assembles SIR text directly to SPIR-V binary using default
// options, skipping the bytecode front end entirely.
func CompileSIR(text string) ([]byte, error) {
	return CompileSIRWithOptions(text, DefaultOptions())
}

// CompileSIRWithOptions assembles SIR text directly to SPIR-V binary with
// custom options.
func CompileSIRWithOptions(text string, opts CompileOptions) ([]byte, error) {
	prog, err := ParseSIR(text)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	if opts.Validate {
		if err := Validate(prog); err != nil {
			return nil, fmt.Errorf("validation error: %w", err)
		}
	}

	spirvBytes, err := GenerateSPIRV(prog, types.NewRegistry(), spirvOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("SPIR-V generation error: %w", err)
	}

	return spirvBytes, nil
}

// ParseSIR parses the line-oriented SIR text form (the serialization
// sir.Serialize produces) back into a sir.Program.
func ParseSIR(text string) (sir.Program, error) {
	return sir.Parse(text)
}

// Lower walks fn's bytecode into a sir.Program, applying the front end's
// structural rewrites (or-flattening, ternary-to-select splicing,
// empty-block collapse) to a fixed point.
//
// reg resolves annotation subtypes and intrinsic/cast callee names
// encountered while walking; callers that need the interned types again
// during code generation (GenerateSPIRV) should reuse the same Registry.
func Lower(fn *frontend.Function, reg *types.Registry, rewriteOpts frontend.CompileOptions) (sir.Program, error) {
	w := frontend.NewWalker(fn, reg)
	prog, err := w.Walk()
	if err != nil {
		return nil, err
	}
	return frontend.ApplyRewrites(prog, w.LeavesValue(), rewriteOpts), nil
}

// Validate checks a sir.Program's structural invariants ahead of code
// generation: unique labels and resolvable branch targets.
func Validate(prog sir.Program) error {
	if _, err := prog.Labels(); err != nil {
		return err
	}
	return prog.VerifyBranchTargets()
}

// GenerateSPIRV assembles prog into a binary SPIR-V module.
//
// This is the final stage of compilation. The output is a binary blob
// that can be directly consumed by Vulkan or other SPIR-V consumers.
func GenerateSPIRV(prog sir.Program, reg *types.Registry, opts spirv.Options) ([]byte, error) {
	pool := spirv.NewPool(opts.Version)
	backend := spirv.NewBackend(pool, opts)
	return backend.Run(prog, reg)
}

func spirvOptions(opts CompileOptions) spirv.Options {
	return spirv.Options{
		Version:            opts.SPIRVVersion,
		Debug:              opts.Debug,
		Validation:         opts.Validate,
		StorageBufferClass: opts.StorageBufferClass,
	}
}
