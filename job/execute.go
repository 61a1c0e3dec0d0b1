package job

import (
	"github.com/Geckos-Ink/fayasm-sub000/api"
	"github.com/Geckos-Ink/fayasm-sub000/module"
)

// run walks j.prog (the function enterFunction most recently loaded)
// until the outermost call returns or traps, transparently resuming
// suspended callers as nested calls finish. It reads only the opcodes
// and immediates of jit.PreparedProgram.Ops (control targets are found
// by scanning them for the matching `else`/`end`), so the loop behaves
// identically whether j.prog came from a cache hit or a fresh Prepare().
func (j *Job) run() ([]uint64, *api.Error) {
	for {
		if j.Controls.Len() == 0 && j.pc >= len(j.prog.Ops) {
			results, done, err := j.finishFunction()
			if err != nil {
				return nil, err
			}
			if done {
				return results, nil
			}
			continue
		}

		op := j.prog.Ops[j.pc]
		if j.Jit != nil {
			j.Jit.RecordExecutedOp(j.prog.FuncIndex, 1)
		}

		var err *api.Error
		switch op.Opcode {
		case module.OpcodeUnreachable:
			return nil, api.NewTrap(api.TrapReasonUnreachable, "unreachable executed")
		case module.OpcodeNop:
			j.pc++
		case module.OpcodeBlock:
			err = j.handleBlock(j.pc)
		case module.OpcodeLoop:
			err = j.handleLoop(j.pc)
		case module.OpcodeIf:
			err = j.handleIf(j.pc)
		case module.OpcodeElse:
			err = j.handleElse(j.pc)
		case module.OpcodeEnd:
			if j.Controls.Len() == 0 {
				results, done, ferr := j.finishFunction()
				if ferr != nil {
					return nil, ferr
				}
				if done {
					return results, nil
				}
				continue
			}
			err = j.handleEnd(j.pc)
		case module.OpcodeBr:
			err = j.handleBr(op)
		case module.OpcodeBrIf:
			err = j.handleBrIf(op)
		case module.OpcodeBrTable:
			err = j.handleBrTable(op)
		case module.OpcodeReturn:
			results, done, ferr := j.finishFunction()
			if ferr != nil {
				return nil, ferr
			}
			if done {
				return results, nil
			}
			continue
		case module.OpcodeCall:
			err = j.handleCall(op)
		case module.OpcodeCallIndirect:
			err = j.handleCallIndirect(op)
		case module.OpcodeDrop:
			_, perr := j.Values.Pop()
			if perr != nil {
				err = perr.(*api.Error)
			} else {
				j.pc++
			}
		case module.OpcodeSelect, module.OpcodeSelectT:
			err = j.handleSelect(op)
		case module.OpcodeLocalGet, module.OpcodeLocalSet, module.OpcodeLocalTee:
			err = j.handleLocal(op)
		case module.OpcodeGlobalGet, module.OpcodeGlobalSet:
			err = j.handleGlobal(op)
		case module.OpcodeTableGet, module.OpcodeTableSet:
			err = j.handleTableVar(op)
		case module.OpcodeMemorySize:
			err = j.handleMemorySize(op)
		case module.OpcodeMemoryGrow:
			err = j.handleMemoryGrow(op)
		case module.OpcodeRefNull:
			err = j.handleRefNull(op)
		case module.OpcodeRefIsNull:
			err = j.handleRefIsNull(op)
		case module.OpcodeRefFunc:
			err = j.handleRefFunc(op)
		case module.OpcodeMiscPrefix:
			err = j.handleMisc(op)
		case module.OpcodeSimdPrefix:
			err = j.handleSimd(op)
		case module.OpcodeI32Const, module.OpcodeI64Const, module.OpcodeF32Const, module.OpcodeF64Const:
			err = j.handleConst(op)
		default:
			err = j.handlePure(op)
		}
		if err != nil {
			return nil, err
		}
	}
}

// finishFunction collects the currently executing function's declared
// results off the value stack. If no caller is suspended (this was the
// job's outermost call), done is true and results are the call's final
// answer. Otherwise the suspended caller is resumed in place and done is
// false, telling run() to keep looping against the caller's program.
func (j *Job) finishFunction() (results []uint64, done bool, err *api.Error) {
	ft := j.Runtime.Module.TypeOf(j.prog.FuncIndex)
	vals, perr := j.Values.PopN(len(ft.Results))
	if perr != nil {
		return nil, true, perr.(*api.Error)
	}

	frame, ok := j.Calls.Current()
	if !ok {
		return vals, true, nil
	}
	f := *frame
	if _, e := j.Calls.Pop(); e != nil {
		return nil, true, e.(*api.Error)
	}
	for _, v := range vals {
		if e := j.Values.Push(v); e != nil {
			return nil, true, e.(*api.Error)
		}
	}
	if e := j.resumeCaller(f); e != nil {
		return nil, true, e
	}
	return nil, false, nil
}
