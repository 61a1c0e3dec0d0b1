package job

import (
	"github.com/Geckos-Ink/fayasm-sub000/api"
	"github.com/Geckos-Ink/fayasm-sub000/jit"
	"github.com/Geckos-Ink/fayasm-sub000/module"
)

// handleSelect implements both select and select t*: pop [val1, val2,
// cond] and push val1 if cond is nonzero, else val2. The declared result
// type select t carries is validation-only and has no effect here.
func (j *Job) handleSelect(op jit.PreparedOp) *api.Error {
	cond, err := j.Values.Pop()
	if err != nil {
		return err.(*api.Error)
	}
	val2, err := j.Values.Pop()
	if err != nil {
		return err.(*api.Error)
	}
	val1, err := j.Values.Pop()
	if err != nil {
		return err.(*api.Error)
	}
	result := val2
	if cond != 0 {
		result = val1
	}
	if err := j.Values.Push(result); err != nil {
		return err.(*api.Error)
	}
	j.pc++
	return nil
}

func (j *Job) handleLocal(op jit.PreparedOp) *api.Error {
	idx := int(op.Immediates[0])
	if idx < 0 || idx >= len(j.locals) {
		return api.NewError(api.InvalidArgument, "local index %d out of range", idx)
	}
	switch op.Opcode {
	case module.OpcodeLocalGet:
		if err := j.Values.Push(j.locals[idx]); err != nil {
			return err.(*api.Error)
		}
	case module.OpcodeLocalSet:
		v, err := j.Values.Pop()
		if err != nil {
			return err.(*api.Error)
		}
		j.locals[idx] = v
	case module.OpcodeLocalTee:
		v, err := j.Values.Peek(0)
		if err != nil {
			return err.(*api.Error)
		}
		j.locals[idx] = v
	}
	j.pc++
	return nil
}

func (j *Job) handleGlobal(op jit.PreparedOp) *api.Error {
	idx := op.Immediates[0]
	if int(idx) >= len(j.Runtime.Globals) {
		return api.NewError(api.InvalidArgument, "global index %d out of range", idx)
	}
	g := j.Runtime.Globals[idx]
	switch op.Opcode {
	case module.OpcodeGlobalGet:
		if err := j.Values.Push(g.Value); err != nil {
			return err.(*api.Error)
		}
	case module.OpcodeGlobalSet:
		v, err := j.Values.Pop()
		if err != nil {
			return err.(*api.Error)
		}
		if err := g.Set(v); err != nil {
			return err
		}
	}
	j.pc++
	return nil
}

// handleTableVar implements table.get/table.set (the non-bulk table
// opcodes outside the 0xFC-prefixed bulk-table family in misc.go).
func (j *Job) handleTableVar(op jit.PreparedOp) *api.Error {
	tableIdx := op.Immediates[0]
	if int(tableIdx) >= len(j.Runtime.Tables) {
		return api.NewError(api.InvalidArgument, "table index %d out of range", tableIdx)
	}
	t := j.Runtime.Tables[tableIdx]
	switch op.Opcode {
	case module.OpcodeTableGet:
		idx, err := j.Values.Pop()
		if err != nil {
			return err.(*api.Error)
		}
		ref, rerr := t.Get(uint32(idx))
		if rerr != nil {
			return rerr
		}
		if err := j.Values.Push(uint64(ref)); err != nil {
			return err.(*api.Error)
		}
	case module.OpcodeTableSet:
		vals, err := j.Values.PopN(2)
		if err != nil {
			return err.(*api.Error)
		}
		if err := t.Set(uint32(vals[0]), api.Reference(vals[1])); err != nil {
			return err
		}
	}
	j.pc++
	return nil
}
