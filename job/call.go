package job

import (
	"github.com/Geckos-Ink/fayasm-sub000/api"
	"github.com/Geckos-Ink/fayasm-sub000/jit"
	"github.com/Geckos-Ink/fayasm-sub000/module"
	"github.com/Geckos-Ink/fayasm-sub000/runtime"
	"github.com/Geckos-Ink/fayasm-sub000/stack"
)

// callHost invokes an imported function's host binding directly: no
// Job state changes, since a host call never re-enters the interpreter
// loop (the binding either returns or traps, both synchronously).
func (j *Job) callHost(funcIndex module.Index, args []uint64) ([]uint64, *api.Error) {
	hf := j.Runtime.HostFunctions[funcIndex]
	call := runtime.NewHostCall(args, len(hf.Results))
	if err := hf.Handle(call); err != nil {
		return nil, err
	}
	return call.Results(), nil
}

// suspendAndCall pushes a CallFrame snapshotting the current function's
// resume point and control stack, then enters targetIdx as a new call.
func (j *Job) suspendAndCall(targetIdx module.Index, args []uint64) *api.Error {
	frame := stack.CallFrame{
		FunctionIndex:  j.prog.FuncIndex,
		ReturnPC:       j.pc + 1,
		Locals:         j.locals,
		ValueStackBase: j.Values.Len(),
		Controls:       j.Controls.Snapshot(),
	}
	if err := j.Calls.Push(frame); err != nil {
		return err.(*api.Error)
	}
	return j.enterFunction(targetIdx, args)
}

// dispatchCall runs targetIdx to completion if it is a host import
// (pushing its results and advancing pc), or suspends the current
// function and enters it otherwise.
func (j *Job) dispatchCall(targetIdx module.Index, ft *module.FunctionType) *api.Error {
	args, perr := j.Values.PopN(len(ft.Params))
	if perr != nil {
		return perr.(*api.Error)
	}
	if targetIdx < j.Runtime.Module.ImportFunctionCount {
		results, err := j.callHost(targetIdx, args)
		if err != nil {
			return err
		}
		for _, v := range results {
			if e := j.Values.Push(v); e != nil {
				return e.(*api.Error)
			}
		}
		j.pc++
		return nil
	}
	return j.suspendAndCall(targetIdx, args)
}

func (j *Job) handleCall(op jit.PreparedOp) *api.Error {
	targetIdx := module.Index(op.Immediates[0])
	ft := j.Runtime.Module.TypeOf(targetIdx)
	if ft == nil {
		return api.NewError(api.InvalidArgument, "call to undefined function %d", targetIdx)
	}
	return j.dispatchCall(targetIdx, ft)
}

// handleCallIndirect resolves the target through a table element,
// validating the declared signature against the element's actual
// function type before dispatching.
func (j *Job) handleCallIndirect(op jit.PreparedOp) *api.Error {
	typeIdx := module.Index(op.Immediates[0])
	tableIdx := module.Index(op.Immediates[1])

	elemIdx, perr := j.Values.Pop()
	if perr != nil {
		return perr.(*api.Error)
	}
	if int(tableIdx) >= len(j.Runtime.Tables) {
		return api.NewError(api.InvalidArgument, "call_indirect: no table %d", tableIdx)
	}
	ref, err := j.Runtime.Tables[tableIdx].Get(uint32(elemIdx))
	if err != nil {
		return err
	}
	if ref == api.NullReference {
		return api.NewTrap(api.TrapReasonNullReference, "call_indirect through null element")
	}
	targetIdx, ok := runtime.FuncIndexOf(ref)
	if !ok {
		return api.NewTrap(api.TrapReasonNullReference, "call_indirect element is not a function reference")
	}

	want := j.Runtime.FunctionTypeKeys[typeIdx]
	ft := j.Runtime.Module.TypeOf(targetIdx)
	if ft == nil || ft.CacheKey() != want {
		return api.NewTrap(api.TrapReasonIndirectCallTypeMismatch, "call_indirect signature mismatch")
	}
	return j.dispatchCall(targetIdx, ft)
}
