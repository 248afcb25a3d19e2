// This file carries package-level usage notes; the package doc comment
// itself lives on constants.go.
//
// # Back end
//
//	pool := spirv.NewPool(spirv.Version1_3)
//	backend := spirv.NewBackend(pool, spirv.DefaultOptions())
//	binary, err := backend.Run(program, registry)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Low-level assembly
//
//	pool := spirv.NewPool(spirv.Version1_3)
//	pool.AddCapability(spirv.CapabilityShader)
//	pool.SetMemoryModel(spirv.AddressingModelLogical, spirv.MemoryModelGLSL450)
//	floatType := pool.TypeID(types.Type{Inner: types.Scalar{Kind: types.ScalarFloat, Width: 32}})
//	binary := pool.Build()
//
// # Module section order
//
// Header, capabilities, extensions, ext-inst imports, memory model, entry
// points, execution modes, debug strings, debug names, annotations,
// types/constants/globals, then function bodies (spec §4.6).
package spirv
