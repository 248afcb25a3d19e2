package frontend

import "github.com/gogpu/shaderc/sir"

// enterLoop handles a loop-setup marker: it pushes a loopFrame recording
// the merge/continue/header/iter labels, determines whether the loop is
// a for-range or a while by scanning ahead for FOR_ITER before the loop's
// merge address, and for `while` emits the header->iter triangle
// immediately (§4.4 "Loops").
func (w *Walker) enterLoop(pc int, instr BytecodeInstr) (int, error) {
	mergeAddr := instr.Arg
	frame := loopFrame{
		mergeAddr:     mergeAddr,
		mergeLabel:    w.labelFor(mergeAddr),
		continueLabel: w.newSyntheticLabel("continue"),
		headerLabel:   w.newSyntheticLabel("header"),
		iterLabel:     w.newSyntheticLabel("iter"),
		kind:          "while",
	}
	for i := pc + 1; i < mergeAddr && i < len(w.fn.Instructions); i++ {
		if w.fn.Instructions[i].Op == OpForIter {
			frame.kind = "for"
			break
		}
	}

	w.loops = append(w.loops, frame)

	if frame.kind == "while" {
		w.emitLoopHeader(&frame)
	}
	return -1, nil
}

func (w *Walker) emitLoopHeader(frame *loopFrame) {
	w.prog = w.prog.Emit(sir.OpBranch, frame.headerLabel)
	w.prog = w.prog.Emit(sir.OpLabel, frame.headerLabel)
	w.prog = w.prog.Emit(sir.OpBranchLoop, frame.iterLabel, frame.continueLabel, frame.mergeLabel)
	w.prog = w.prog.Emit(sir.OpLabel, frame.iterLabel)
}

// forIterStep handles the FOR_ITER opcode: stores the normalized
// (start, stop, step) triple into the synthetic v-start/v-stop/v-step
// names plus the running `v` counter, then emits the header->iter->body
// triangle (deferred until this point for `for` loops, per §4.4).
func (w *Walker) forIterStep(pc int, instr BytecodeInstr) (int, error) {
	if len(w.loops) == 0 {
		return -1, newError(UnsupportedSourceOp, pc, "for_iter outside a loop frame")
	}
	frame := &w.loops[len(w.loops)-1]
	if frame.forStarted {
		return -1, nil
	}
	frame.forStarted = true

	w.pop() // step
	w.pop() // stop
	w.pop() // start
	w.prog = w.prog.Emit(sir.OpStoreName, "v-step")
	w.prog = w.prog.Emit(sir.OpStoreName, "v-stop")
	w.prog = w.prog.Emit(sir.OpStoreName, "v-start")
	w.prog = w.prog.Emit(sir.OpLoadName, "v-start")
	w.prog = w.prog.Emit(sir.OpStoreName, "v")

	w.emitLoopHeader(frame)

	w.prog = w.prog.Emit(sir.OpLoadName, "v")
	w.prog = w.prog.Emit(sir.OpLoadName, "v-stop")
	w.prog = w.prog.Emit(sir.OpCompare, string(sir.CmpLT))

	// The body label is emitted here, not left for the main loop's
	// emitPendingLabel: the body's first real instruction is the STORE_FAST
	// of the loop variable, and load_name("v") must land inside the body
	// block, after the label, not before it.
	bodyLabel := w.labelFor(pc + 1)
	w.prog = w.prog.Emit(sir.OpBranchConditional, bodyLabel, frame.mergeLabel)
	w.prog = w.prog.Emit(sir.OpLabel, bodyLabel)
	delete(w.labelNames, pc+1)

	w.prog = w.prog.Emit(sir.OpLoadName, "v")
	w.push(symValue{kind: symRuntime})
	return -1, nil
}

// exitLoopBody handles POP_BLOCK: emits the loop's continue block (back
// edge), incrementing `v` by `v-step` for `for` loops, then pops the
// loop frame.
func (w *Walker) exitLoopBody() error {
	if len(w.loops) == 0 {
		return newError(UnsupportedSourceOp, -1, "pop_block with no active loop frame")
	}
	frame := w.loops[len(w.loops)-1]
	w.loops = w.loops[:len(w.loops)-1]

	w.prog = w.prog.Emit(sir.OpLabel, frame.continueLabel)
	if frame.kind == "for" {
		w.prog = w.prog.Emit(sir.OpLoadName, "v")
		w.prog = w.prog.Emit(sir.OpLoadName, "v-step")
		w.prog = w.prog.Emit(sir.OpBinaryOp, string(sir.BinAdd))
		w.prog = w.prog.Emit(sir.OpStoreName, "v")
	}
	w.prog = w.prog.Emit(sir.OpBranch, frame.headerLabel)
	return nil
}
