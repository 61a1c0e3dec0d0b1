package job

import (
	"github.com/Geckos-Ink/fayasm-sub000/api"
	"github.com/Geckos-Ink/fayasm-sub000/jit"
	"github.com/Geckos-Ink/fayasm-sub000/module"
	"github.com/Geckos-Ink/fayasm-sub000/stack"
)

// blockSignature resolves a block/loop/if type immediate (as PreparedOp
// encodes it: either a value-type byte cast to uint64, 0x40 for empty,
// or a type index) into its param/result counts.
func (j *Job) blockSignature(raw uint64) (paramCount, resultCount int) {
	switch raw {
	case 0x40:
		return 0, 0
	case uint64(api.ValueTypeI32), uint64(api.ValueTypeI64), uint64(api.ValueTypeF32),
		uint64(api.ValueTypeF64), uint64(api.ValueTypeV128), uint64(api.ValueTypeFuncref),
		uint64(api.ValueTypeExternref):
		return 0, 1
	default:
		ft := j.Runtime.Module.Types[raw]
		return len(ft.Params), len(ft.Results)
	}
}

// matchingEnd scans forward from the op immediately after a block/loop/if
// header at index start, returning the op-index of its matching `end`
// and, for an if with an else clause at this nesting depth, the op-index
// of that `else`. elseIdx is -1 when there is none.
func (j *Job) matchingEnd(start int) (endIdx, elseIdx int, err *api.Error) {
	depth := 0
	elseIdx = -1
	for i := start; i < len(j.prog.Ops); i++ {
		switch j.prog.Ops[i].Opcode {
		case module.OpcodeBlock, module.OpcodeLoop, module.OpcodeIf:
			depth++
		case module.OpcodeElse:
			if depth == 0 {
				elseIdx = i
			}
		case module.OpcodeEnd:
			if depth == 0 {
				return i, elseIdx, nil
			}
			depth--
		}
	}
	return 0, -1, api.NewTrap(api.TrapReasonTypeMismatch, "unterminated block starting at op %d", start)
}

// enterBlock pushes a ControlFrame for a block/loop/if header at opIdx
// (whose Immediates[0] is the raw block-type value) and advances j.pc
// past it.
func (j *Job) enterBlock(opIdx int, kind byte, isLoop bool) *api.Error {
	raw := j.prog.Ops[opIdx].Immediates[0]
	params, results := j.blockSignature(raw)

	args, perr := j.Values.PeekValues(params)
	if perr != nil {
		return perr.(*api.Error)
	}
	_ = args

	endIdx, elseIdx, err := j.matchingEnd(opIdx + 1)
	if err != nil {
		return err
	}

	frame := stack.ControlFrame{
		Kind:             kind,
		ParamCount:       params,
		ResultCount:      results,
		ValueStackHeight: j.Values.Len() - params,
		ContinuationPC:   endIdx + 1,
		ElsePC:           endIdx,
		IsLoop:           isLoop,
	}
	if isLoop {
		frame.ContinuationPC = opIdx
	}
	if elseIdx >= 0 {
		frame.ElsePC = elseIdx + 1
	}
	j.Controls.Push(frame)
	j.pc = opIdx + 1
	return nil
}

func (j *Job) handleBlock(opIdx int) *api.Error {
	return j.enterBlock(opIdx, module.OpcodeBlock, false)
}

func (j *Job) handleLoop(opIdx int) *api.Error {
	return j.enterBlock(opIdx, module.OpcodeLoop, true)
}

// handleIf pops the condition and, per spec, enters either the
// then-branch (condition nonzero) or jumps straight to the else-branch
// (or to its `end` if there is none, which pops the frame).
func (j *Job) handleIf(opIdx int) *api.Error {
	cond, perr := j.Values.Pop()
	if perr != nil {
		return perr.(*api.Error)
	}
	if err := j.enterBlock(opIdx, module.OpcodeIf, false); err != nil {
		return err
	}
	if cond == 0 {
		top, err := j.Controls.At(0)
		if err != nil {
			return err.(*api.Error)
		}
		j.pc = top.ElsePC
	}
	return nil
}

// handleElse is only ever reached by falling through the then-branch of
// a taken if: it acts exactly like a branch to the innermost frame's
// continuation (skipping the else-branch body), without popping the
// frame, since `end` still needs to pop it.
func (j *Job) handleElse(opIdx int) *api.Error {
	top, err := j.Controls.At(0)
	if err != nil {
		return err.(*api.Error)
	}
	j.pc = top.ContinuationPC - 1
	return nil
}

// handleEnd pops the innermost control frame. Falling off the end of the
// function body itself (control stack empty) is handled by run(), not
// here.
func (j *Job) handleEnd(opIdx int) *api.Error {
	_, err := j.Controls.Pop()
	if err != nil {
		return err.(*api.Error)
	}
	j.pc = opIdx + 1
	return nil
}

// branchTo unwinds the value stack to targetDepth labels up and jumps to
// its continuation, per spec's br semantics: a loop target keeps its
// frame and resumes just past the loop header (the header op itself is
// not re-run) carrying ParamCount values, a block/if target resumes
// after `end` carrying ResultCount values.
func (j *Job) branchTo(targetDepth int) *api.Error {
	frame, err := j.Controls.At(targetDepth)
	if err != nil {
		return err.(*api.Error)
	}

	keep := frame.ResultCount
	if frame.IsLoop {
		keep = frame.ParamCount
	}
	vals, perr := j.Values.PeekValues(keep)
	if perr != nil {
		return perr.(*api.Error)
	}
	if e := j.Values.TruncateTo(frame.ValueStackHeight); e != nil {
		return e.(*api.Error)
	}
	for _, v := range vals {
		if e := j.Values.Push(v); e != nil {
			return e.(*api.Error)
		}
	}

	for i := 0; i <= targetDepth; i++ {
		if _, e := j.Controls.Pop(); e != nil {
			return e.(*api.Error)
		}
	}
	if frame.IsLoop {
		// Re-enter the loop: the frame is already entered, so push it
		// back as-is and jump past its header op (ContinuationPC) rather
		// than onto it — landing on the header would run handleLoop
		// again and push a second frame for the same loop.
		j.Controls.Push(frame)
		j.pc = frame.ContinuationPC + 1
		return nil
	}
	j.pc = frame.ContinuationPC
	return nil
}

func (j *Job) handleBr(op jit.PreparedOp) *api.Error {
	return j.branchTo(int(op.Immediates[0]))
}

func (j *Job) handleBrIf(op jit.PreparedOp) *api.Error {
	cond, err := j.Values.Pop()
	if err != nil {
		return err.(*api.Error)
	}
	if cond == 0 {
		j.pc++
		return nil
	}
	return j.branchTo(int(op.Immediates[0]))
}

func (j *Job) handleBrTable(op jit.PreparedOp) *api.Error {
	idx, err := j.Values.Pop()
	if err != nil {
		return err.(*api.Error)
	}
	n := op.Immediates[0]
	labels := op.Immediates[1 : 1+n]
	def := op.Immediates[1+n]
	target := def
	if idx < n {
		target = labels[idx]
	}
	return j.branchTo(int(target))
}
