// Command shaderc is the SIR-to-SPIR-V shader compiler CLI.
//
// Usage:
//
//	shaderc [options] <input.sir>
//
// Examples:
//
//	shaderc shader.sir                    # Compile to stdout
//	shaderc -o shader.spv shader.sir      # Compile to a file
//	shaderc -debug shader.sir             # Compile with debug info
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/mattn/go-isatty"

	"github.com/gogpu/shaderc"
	"github.com/gogpu/shaderc/spirv"
)

var (
	output      = flag.String("o", "", "output file (default: stdout)")
	debugFlag   = flag.Bool("debug", false, "include debug info")
	validate    = flag.Bool("validate", true, "validate the SIR program before code generation")
	storageBuf  = flag.Bool("storage-buffer", false, "lower buffer resources to SPIR-V 1.4+ StorageBuffer class")
	versionFlag = flag.Bool("version", false, "print version")
)

// version returns the module version from build info.
func version() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return "dev"
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *versionFlag {
		fmt.Printf("shaderc version %s\n", version())
		return
	}

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Error: no input file specified")
		usage()
		os.Exit(1)
	}

	inputPath := args[0]

	text, err := os.ReadFile(inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(1)
	}

	storageClass := spirv.StorageBufferClassBufferBlock
	if *storageBuf {
		storageClass = spirv.StorageBufferClassStorageBuffer
	}
	opts := shaderc.CompileOptions{
		SPIRVVersion:       spirv.Version1_3,
		Debug:              *debugFlag,
		Validate:           *validate,
		StorageBufferClass: storageClass,
	}
	module, err := shaderc.CompileSIRWithOptions(string(text), opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Compilation error: %v\n", err)
		os.Exit(1)
	}

	if *output != "" {
		if err := os.WriteFile(*output, module, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Successfully compiled %s to %s (%d bytes)\n", inputPath, *output, len(module))
		return
	}

	if isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Fprintln(os.Stderr, "Error: refusing to write binary SPIR-V to a terminal; redirect stdout or use -o")
		os.Exit(1)
	}
	if _, err := os.Stdout.Write(module); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: shaderc [options] <input.sir>\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  shaderc shader.sir               Compile to stdout\n")
	fmt.Fprintf(os.Stderr, "  shaderc -o shader.spv shader.sir Compile to file\n")
	fmt.Fprintf(os.Stderr, "  shaderc -debug shader.sir        Include debug info\n")
}
