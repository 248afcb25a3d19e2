package frontend

import (
	"reflect"

	"github.com/gogpu/shaderc/sir"
)

// CompileOptions gates the optional rewrite passes, replacing the
// source's module-level OPT_CONVERT_TERNARY_TO_SELECT global with a
// value threaded explicitly into the front end (see design notes).
type CompileOptions struct {
	ConvertTernaryToSelect bool
	ProtectedLabels        map[string]bool
}

// DefaultCompileOptions enables every rewrite.
func DefaultCompileOptions() CompileOptions {
	return CompileOptions{ConvertTernaryToSelect: true}
}

// ApplyRewrites runs the front end's structural rewrite passes over prog
// in the documented order: or-flattening first (it can expose new
// empty-block patterns), then ternary-to-select, then empty-block
// collapse, repeating until a full pass makes no further change (§4.4's
// "this rewrite is fixed-pointed").
func ApplyRewrites(prog sir.Program, leavesValue map[string]bool, opts CompileOptions) sir.Program {
	for {
		before := prog
		prog = flattenShortCircuitOr(prog)
		if opts.ConvertTernaryToSelect {
			prog = spliceTernary(prog, leavesValue)
		}
		prog = collapseEmptyBlocks(prog, opts.ProtectedLabels)
		if reflect.DeepEqual(prog, before) {
			return prog
		}
	}
}

// collapseEmptyBlocks implements §4.4's empty-block collapse: a pass
// scans for label(L); branch(L') pairs and redirects every occurrence of
// L in branch targets to L', transitively. Labels in protected are
// exempt (loop iter/continue blocks, which other passes rely on staying
// addressable by name).
func collapseEmptyBlocks(prog sir.Program, protected map[string]bool) sir.Program {
	redirect := make(map[string]string)
	for i := 0; i+1 < len(prog); i++ {
		if prog[i].Op != sir.OpLabel || prog[i+1].Op != sir.OpBranch {
			continue
		}
		from := prog[i].Args[0].(string)
		to := prog[i+1].Args[0].(string)
		if protected[from] || from == to {
			continue
		}
		redirect[from] = to
	}
	if len(redirect) == 0 {
		return prog
	}
	resolve := func(l string) string {
		seen := make(map[string]bool)
		for {
			next, ok := redirect[l]
			if !ok || seen[l] {
				return l
			}
			seen[l] = true
			l = next
		}
	}

	out := make(sir.Program, len(prog))
	for i, instr := range prog {
		out[i] = retargetInstruction(instr, resolve)
	}
	return out
}

func retargetInstruction(instr sir.Instruction, resolve func(string) string) sir.Instruction {
	switch instr.Op {
	case sir.OpBranch:
		return sir.Instruction{Op: instr.Op, Args: []sir.Arg{resolve(instr.Args[0].(string))}}
	case sir.OpBranchConditional:
		return sir.Instruction{Op: instr.Op, Args: []sir.Arg{
			resolve(instr.Args[0].(string)), resolve(instr.Args[1].(string)),
		}}
	case sir.OpBranchLoop:
		args := make([]sir.Arg, len(instr.Args))
		for i, a := range instr.Args {
			args[i] = resolve(a.(string))
		}
		return sir.Instruction{Op: instr.Op, Args: args}
	default:
		return instr
	}
}

// spliceTernary implements §4.4's ternary detection: finds a
// branch_conditional whose two arms are each a straight-line block
// ending in branch(Lm) to the same merge label, where either the merge
// label (the walker marks the target of a branch taken with a value on
// the stack) or both arm labels are marked in leavesValue, splices both
// arms inline in sequence, replaces the branch_conditional with select,
// and drops the duplicated merge branches.
func spliceTernary(prog sir.Program, leavesValue map[string]bool) sir.Program {
	for i := 0; i < len(prog); i++ {
		if prog[i].Op != sir.OpBranchConditional {
			continue
		}
		lt := prog[i].Args[0].(string)
		lf := prog[i].Args[1].(string)
		if i+1 >= len(prog) || prog[i+1].Op != sir.OpLabel || prog[i+1].Args[0].(string) != lt {
			continue
		}
		j := findTerminatingBranch(prog, i+2)
		if j < 0 {
			continue
		}
		merge := prog[j].Args[0].(string)
		if j+1 >= len(prog) || prog[j+1].Op != sir.OpLabel || prog[j+1].Args[0].(string) != lf {
			continue
		}
		k := findTerminatingBranch(prog, j+2)
		if k < 0 || prog[k].Args[0].(string) != merge {
			continue
		}
		if k+1 >= len(prog) || prog[k+1].Op != sir.OpLabel || prog[k+1].Args[0].(string) != merge {
			continue
		}
		if !leavesValue[merge] && (!leavesValue[lt] || !leavesValue[lf]) {
			continue
		}

		var out sir.Program
		out = append(out, prog[:i]...)
		out = append(out, prog[i+2:j]...) // seqT, excluding label(lt) and branch(merge)
		out = append(out, prog[j+2:k]...) // seqF, excluding label(lf) and branch(merge)
		out = out.Emit(sir.OpSelect)
		out = append(out, prog[k+1:]...) // label(merge) and everything after
		return out
	}
	return prog
}

// findTerminatingBranch scans forward from start for the first plain
// branch instruction, returning -1 if the block contains anything that
// isn't a straight-line, single-exit sequence (a nested branch target or
// another conditional means this isn't a simple ternary arm).
func findTerminatingBranch(prog sir.Program, start int) int {
	for i := start; i < len(prog); i++ {
		switch prog[i].Op {
		case sir.OpBranch:
			return i
		case sir.OpLabel, sir.OpBranchConditional, sir.OpBranchLoop:
			return -1
		}
	}
	return -1
}

// orOrientation names which pair of branch targets the cascade's two
// checks share. All four combinations are reachable (the first check's
// true or false edge can each rejoin either of the second check's
// edges), matching the four cases python_shader's _fix_or_control_flow
// distinguishes: t/t combines the checks directly into an `or`; t/f
// negates the second check's result and then combines with `or`; f/t
// negates the first check's result before the second check's code, then
// combines with `or`; f/f combines with `and` and negates the result
// (De Morgan's `and`+`not`).
type orOrientation int

const (
	orientTT orOrientation = iota
	orientTF
	orientFT
	orientFF
)

// flattenShortCircuitOr implements §4.4's short-circuit `or` flattening.
// Source bytecode for `a or b` emits two conditional branches that share
// a common target; this pass folds the pair into a single comparison
// using inserted not/or instructions, fixed-pointed (callers re-run
// ApplyRewrites until no pattern matches remain).
func flattenShortCircuitOr(prog sir.Program) sir.Program {
	for i := 0; i < len(prog); i++ {
		if prog[i].Op != sir.OpBranchConditional {
			continue
		}
		t1 := prog[i].Args[0].(string)
		f1 := prog[i].Args[1].(string)
		if i+1 >= len(prog) || prog[i+1].Op != sir.OpLabel || prog[i+1].Args[0].(string) != f1 {
			continue
		}
		// Second check must immediately follow with no intervening
		// value-producing instructions besides the condition itself, i.e.
		// the very next branch_conditional belongs to the same cascade.
		j := i + 2
		condStart := j
		for j < len(prog) && prog[j].Op != sir.OpBranchConditional {
			j++
		}
		if j >= len(prog) || j == condStart {
			continue
		}
		t2 := prog[j].Args[0].(string)
		f2 := prog[j].Args[1].(string)

		orient, ok := matchOrientation(t1, f1, t2, f2)
		if !ok {
			continue
		}

		var rewritten sir.Program
		rewritten = append(rewritten, prog[:i]...)

		// orientFT negates the first check's result before the second
		// check's code runs (the source's `selection.insert(0, not)`);
		// every other orientation combines after, so the second check's
		// evaluation code is appended first in those cases.
		switch orient {
		case orientTT:
			rewritten = append(rewritten, prog[condStart:j]...)
			rewritten = rewritten.Emit(sir.OpBinaryOp, string(sir.BinOr))
			rewritten = rewritten.Emit(sir.OpBranchConditional, t1, f2)
		case orientTF:
			rewritten = append(rewritten, prog[condStart:j]...)
			rewritten = rewritten.Emit(sir.OpUnaryOp, string(sir.UnaryNot))
			rewritten = rewritten.Emit(sir.OpBinaryOp, string(sir.BinOr))
			rewritten = rewritten.Emit(sir.OpBranchConditional, t1, t2)
		case orientFT:
			rewritten = rewritten.Emit(sir.OpUnaryOp, string(sir.UnaryNot))
			rewritten = append(rewritten, prog[condStart:j]...)
			rewritten = rewritten.Emit(sir.OpBinaryOp, string(sir.BinOr))
			rewritten = rewritten.Emit(sir.OpBranchConditional, f1, f2)
		case orientFF:
			rewritten = append(rewritten, prog[condStart:j]...)
			rewritten = rewritten.Emit(sir.OpBinaryOp, string(sir.BinAnd))
			rewritten = rewritten.Emit(sir.OpUnaryOp, string(sir.UnaryNot))
			rewritten = rewritten.Emit(sir.OpBranchConditional, f1, t2)
		}
		rewritten = append(rewritten, prog[j+1:]...)
		return rewritten
	}
	return prog
}

// matchOrientation determines which of the four target combinations
// (t/t, t/f, f/t, f/f) the pair of checks forms, comparing the first
// check's true-target t1 and false-target f1 against the second check's
// targets t2/f2 — grounded on python_shader's _fix_or_control_flow,
// which tests the same four combinations in the same order.
func matchOrientation(t1, f1, t2, f2 string) (orOrientation, bool) {
	switch {
	case t1 == t2:
		return orientTT, true
	case t1 == f2:
		return orientTF, true
	case f1 == t2:
		return orientFT, true
	case f1 == f2:
		return orientFF, true
	default:
		return 0, false
	}
}
