package frontend

// IntrinsicResultKind names how an intrinsic's result type is derived
// from its arguments (spec §6).
type IntrinsicResultKind string

const (
	// ResultSame means the result type equals the first argument's type.
	ResultSame IntrinsicResultKind = "same"
	// ResultComponent means the result type is the first argument's
	// element/component scalar type (length() on a vector returns a
	// scalar, not a vector).
	ResultComponent IntrinsicResultKind = "component"
)

// IntrinsicInfo is the back end's dispatch metadata for one entry of the
// closed standard-library intrinsic surface (spec §6). Set is empty for
// the three texture operations, which lower to dedicated SPIR-V opcodes
// rather than an OpExtInst call.
type IntrinsicInfo struct {
	NR         uint32
	Set        string
	ResultType IntrinsicResultKind
	NArgs      int
}

// Intrinsics is the closed table the front end recognizes as a callable
// marker (attribute access rooted at "stdlib" or "texture", §4.4's
// symBuiltin tracking) and the back end consults to emit OpExtInst or a
// dedicated image opcode (§4.5, §6).
var Intrinsics = map[string]IntrinsicInfo{
	"stdlib.pow":    {NR: 26, Set: "GLSL.std.450", ResultType: ResultSame, NArgs: 2},
	"stdlib.sqrt":   {NR: 31, Set: "GLSL.std.450", ResultType: ResultSame, NArgs: 1},
	"stdlib.length": {NR: 66, Set: "GLSL.std.450", ResultType: ResultComponent, NArgs: 1},
	"stdlib.abs":    {NR: 4, Set: "GLSL.std.450", ResultType: ResultSame, NArgs: 1},

	"texture.read":   {ResultType: ResultSame, NArgs: 2},
	"texture.write":  {ResultType: ResultSame, NArgs: 3},
	"texture.sample": {ResultType: ResultSame, NArgs: 3},
}

// IsIntrinsic reports whether callee is a stdlib/texture call, as opposed
// to a type-constructor call (vec4(...), array construction).
func IsIntrinsic(callee string) bool {
	_, ok := Intrinsics[callee]
	return ok
}
