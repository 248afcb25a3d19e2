package frontend

import (
	"testing"

	"github.com/gogpu/shaderc/sir"
)

func TestCollapseEmptyBlocks(t *testing.T) {
	var p sir.Program
	p = p.Emit(sir.OpBranch, "a")
	p = p.Emit(sir.OpLabel, "a")
	p = p.Emit(sir.OpBranch, "b") // empty block: a -> b
	p = p.Emit(sir.OpLabel, "b")
	p = p.Emit(sir.OpLoadConstant, int64(1))
	p = p.Emit(sir.OpReturn)

	got := collapseEmptyBlocks(p, nil)
	if got[0].Args[0] != "b" {
		t.Errorf("expected initial branch to be redirected to b, got %v", got[0].Args[0])
	}
}

func TestCollapseEmptyBlocksTransitive(t *testing.T) {
	var p sir.Program
	p = p.Emit(sir.OpBranch, "a")
	p = p.Emit(sir.OpLabel, "a")
	p = p.Emit(sir.OpBranch, "b")
	p = p.Emit(sir.OpLabel, "b")
	p = p.Emit(sir.OpBranch, "c")
	p = p.Emit(sir.OpLabel, "c")
	p = p.Emit(sir.OpReturn)

	got := collapseEmptyBlocks(p, nil)
	if got[0].Args[0] != "c" {
		t.Errorf("expected transitive redirect to final target c, got %v", got[0].Args[0])
	}
}

func TestCollapseEmptyBlocksRespectsProtected(t *testing.T) {
	var p sir.Program
	p = p.Emit(sir.OpBranch, "a")
	p = p.Emit(sir.OpLabel, "a")
	p = p.Emit(sir.OpBranch, "b")
	p = p.Emit(sir.OpLabel, "b")
	p = p.Emit(sir.OpReturn)

	got := collapseEmptyBlocks(p, map[string]bool{"a": true})
	if got[0].Args[0] != "a" {
		t.Errorf("expected protected label to not be redirected, got %v", got[0].Args[0])
	}
}

func TestCollapseEmptyBlocksIdempotent(t *testing.T) {
	var p sir.Program
	p = p.Emit(sir.OpBranch, "a")
	p = p.Emit(sir.OpLabel, "a")
	p = p.Emit(sir.OpBranch, "b")
	p = p.Emit(sir.OpLabel, "b")
	p = p.Emit(sir.OpReturn)

	once := collapseEmptyBlocks(p, nil)
	twice := collapseEmptyBlocks(once, nil)
	if len(once) != len(twice) {
		t.Fatalf("expected idempotence, lengths differ: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].Op != twice[i].Op {
			t.Errorf("instruction %d diverged on second pass", i)
		}
	}
}

func TestSpliceTernary(t *testing.T) {
	var p sir.Program
	p = p.Emit(sir.OpCompare, string(sir.CmpEQ))
	p = p.Emit(sir.OpBranchConditional, "then", "else")
	p = p.Emit(sir.OpLabel, "then")
	p = p.Emit(sir.OpLoadConstant, 40.0)
	p = p.Emit(sir.OpBranch, "merge")
	p = p.Emit(sir.OpLabel, "else")
	p = p.Emit(sir.OpLoadConstant, 41.0)
	p = p.Emit(sir.OpBranch, "merge")
	p = p.Emit(sir.OpLabel, "merge")
	p = p.Emit(sir.OpStoreName, "out")

	leaves := map[string]bool{"then": true, "else": true}
	got := spliceTernary(p, leaves)

	var sawSelect, sawBranchConditional bool
	for _, instr := range got {
		if instr.Op == sir.OpSelect {
			sawSelect = true
		}
		if instr.Op == sir.OpBranchConditional {
			sawBranchConditional = true
		}
	}
	if !sawSelect {
		t.Errorf("expected select instruction after splice, got %#v", got)
	}
	if sawBranchConditional {
		t.Errorf("expected branch_conditional to be removed by splice, got %#v", got)
	}
	if err := got.VerifyBranchTargets(); err != nil {
		t.Errorf("VerifyBranchTargets after splice: %v", err)
	}
}

func TestSpliceTernaryLeavesNonTernaryAlone(t *testing.T) {
	var p sir.Program
	p = p.Emit(sir.OpCompare, string(sir.CmpEQ))
	p = p.Emit(sir.OpBranchConditional, "then", "else")
	p = p.Emit(sir.OpLabel, "then")
	p = p.Emit(sir.OpStoreName, "out") // no value left on stack: not a ternary
	p = p.Emit(sir.OpBranch, "merge")
	p = p.Emit(sir.OpLabel, "else")
	p = p.Emit(sir.OpStoreName, "out")
	p = p.Emit(sir.OpBranch, "merge")
	p = p.Emit(sir.OpLabel, "merge")
	p = p.Emit(sir.OpReturn)

	got := spliceTernary(p, map[string]bool{}) // neither label marked as leaving a value
	if len(got) != len(p) {
		t.Errorf("expected no rewrite when no value is left on the stack")
	}
}

func TestFlattenShortCircuitOrPlainOr(t *testing.T) {
	var p sir.Program
	p = p.Emit(sir.OpLoadName, "a")
	p = p.Emit(sir.OpBranchConditional, "body", "check2")
	p = p.Emit(sir.OpLabel, "check2")
	p = p.Emit(sir.OpLoadName, "b")
	p = p.Emit(sir.OpBranchConditional, "body", "else")
	p = p.Emit(sir.OpLabel, "body")
	p = p.Emit(sir.OpLoadConstant, int64(40))
	p = p.Emit(sir.OpLabel, "else")
	p = p.Emit(sir.OpLoadConstant, int64(43))

	got := flattenShortCircuitOr(p)

	var sawOr bool
	for _, instr := range got {
		if instr.Op == sir.OpBinaryOp && instr.Args[0] == string(sir.BinOr) {
			sawOr = true
		}
	}
	if !sawOr {
		t.Errorf("expected flattening to insert a binary_op(or), got %#v", got)
	}
	if err := got.VerifyBranchTargets(); err != nil {
		t.Errorf("VerifyBranchTargets after flattening: %v", err)
	}
}

// TestFlattenShortCircuitOrFTOrientation exercises the f1==t2 case
// (python_shader's py.py:299-302): the first check's false edge falls
// through to the second check's own block, and the second check's true
// edge branches back to that same block (e.g. a loop condition
// re-evaluating itself) — labels1[1]==labels2[0] in the source. The "not"
// (negating the first check) must be spliced in before the second
// check's own evaluation code runs. A second occurrence of the shared
// label stands in for whatever other edge (e.g. a loop back-branch) kept
// that block reachable before this pass deleted its first occurrence.
func TestFlattenShortCircuitOrFTOrientation(t *testing.T) {
	var p sir.Program
	p = p.Emit(sir.OpLoadName, "a")
	p = p.Emit(sir.OpBranchConditional, "bodyA", "check2")
	p = p.Emit(sir.OpLabel, "check2")
	p = p.Emit(sir.OpLoadName, "b")
	p = p.Emit(sir.OpBranchConditional, "check2", "elseB")
	p = p.Emit(sir.OpLabel, "bodyA")
	p = p.Emit(sir.OpLoadConstant, int64(1))
	p = p.Emit(sir.OpBranch, "check2")
	p = p.Emit(sir.OpLabel, "check2")
	p = p.Emit(sir.OpLoadConstant, int64(2))
	p = p.Emit(sir.OpLabel, "elseB")
	p = p.Emit(sir.OpLoadConstant, int64(3))

	got := flattenShortCircuitOr(p)

	var notIdx, loadBIdx, orIdx int = -1, -1, -1
	for i, instr := range got {
		switch {
		case instr.Op == sir.OpUnaryOp && instr.Args[0] == string(sir.UnaryNot) && notIdx < 0:
			notIdx = i
		case instr.Op == sir.OpLoadName && instr.Args[0] == "b" && loadBIdx < 0:
			loadBIdx = i
		case instr.Op == sir.OpBinaryOp && instr.Args[0] == string(sir.BinOr) && orIdx < 0:
			orIdx = i
		}
	}
	if notIdx < 0 || loadBIdx < 0 || orIdx < 0 {
		t.Fatalf("expected not/load(b)/or in the rewritten program, got %#v", got)
	}
	if notIdx >= loadBIdx {
		t.Errorf("expected the not (negating the first check) before the second check's own evaluation code, got not@%d load(b)@%d", notIdx, loadBIdx)
	}
	if orIdx <= loadBIdx {
		t.Errorf("expected the or to combine after the second check's evaluation code, got or@%d load(b)@%d", orIdx, loadBIdx)
	}
	if err := got.VerifyBranchTargets(); err != nil {
		t.Errorf("VerifyBranchTargets after flattening: %v", err)
	}
}

// TestFlattenShortCircuitOrFFOrientation exercises the f1==f2 case
// (python_shader's py.py:303-305): both checks' false edges rejoin at the
// shared block — labels1[1]==labels2[1] in the source — combined via De
// Morgan's and+not after the second check's evaluation code.
func TestFlattenShortCircuitOrFFOrientation(t *testing.T) {
	var p sir.Program
	p = p.Emit(sir.OpLoadName, "a")
	p = p.Emit(sir.OpBranchConditional, "bodyA", "check2")
	p = p.Emit(sir.OpLabel, "check2")
	p = p.Emit(sir.OpLoadName, "b")
	p = p.Emit(sir.OpBranchConditional, "bodyB", "check2")
	p = p.Emit(sir.OpLabel, "bodyA")
	p = p.Emit(sir.OpLoadConstant, int64(1))
	p = p.Emit(sir.OpBranch, "check2")
	p = p.Emit(sir.OpLabel, "check2")
	p = p.Emit(sir.OpLoadConstant, int64(2))
	p = p.Emit(sir.OpLabel, "bodyB")
	p = p.Emit(sir.OpLoadConstant, int64(3))

	got := flattenShortCircuitOr(p)

	var andIdx, notIdx int = -1, -1
	for i, instr := range got {
		if instr.Op == sir.OpBinaryOp && instr.Args[0] == string(sir.BinAnd) && andIdx < 0 {
			andIdx = i
		}
		if instr.Op == sir.OpUnaryOp && instr.Args[0] == string(sir.UnaryNot) && notIdx < 0 {
			notIdx = i
		}
	}
	if andIdx < 0 || notIdx < 0 {
		t.Fatalf("expected and+not in the rewritten program, got %#v", got)
	}
	if notIdx != andIdx+1 {
		t.Errorf("expected not immediately after and (De Morgan's), got and@%d not@%d", andIdx, notIdx)
	}
	if err := got.VerifyBranchTargets(); err != nil {
		t.Errorf("VerifyBranchTargets after flattening: %v", err)
	}
}

func TestApplyRewritesFixedPoint(t *testing.T) {
	var p sir.Program
	p = p.Emit(sir.OpBranch, "a")
	p = p.Emit(sir.OpLabel, "a")
	p = p.Emit(sir.OpBranch, "b")
	p = p.Emit(sir.OpLabel, "b")
	p = p.Emit(sir.OpBranch, "c")
	p = p.Emit(sir.OpLabel, "c")
	p = p.Emit(sir.OpReturn)

	got := ApplyRewrites(p, nil, DefaultCompileOptions())
	if got[0].Args[0] != "c" {
		t.Errorf("expected fixed-point collapse to final target c, got %v", got[0].Args[0])
	}
	if err := got.VerifyBranchTargets(); err != nil {
		t.Errorf("VerifyBranchTargets: %v", err)
	}
}
