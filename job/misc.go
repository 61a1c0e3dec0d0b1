package job

import (
	"github.com/Geckos-Ink/fayasm-sub000/api"
	"github.com/Geckos-Ink/fayasm-sub000/jit"
	"github.com/Geckos-Ink/fayasm-sub000/module"
	"github.com/Geckos-Ink/fayasm-sub000/opcode"
)

// handleMisc dispatches the 0xFC-prefixed sub-opcode space: the
// saturating truncation conversions (pure, via their Handler) and the
// bulk memory/table operations (engine-state dependent, handled here
// directly against Runtime).
func (j *Job) handleMisc(op jit.PreparedOp) *api.Error {
	d, ok := opcode.MiscDescriptorPtr(byte(op.Sub))
	if !ok {
		return api.NewError(api.UnimplementedOpcode, "no descriptor for misc sub-opcode %d", op.Sub)
	}
	if d.Handler != nil {
		args, err := j.Values.PopN(d.NumPull)
		if err != nil {
			return err.(*api.Error)
		}
		result, herr := d.Handler(args)
		if herr != nil {
			return herr
		}
		if err := j.Values.Push(result); err != nil {
			return err.(*api.Error)
		}
		j.pc++
		return nil
	}

	switch module.MiscOpcode(op.Sub) {
	case module.MiscOpcodeMemoryInit:
		return j.execMemoryInit(op)
	case module.MiscOpcodeDataDrop:
		j.Runtime.DropData(int(op.Immediates[0]))
		j.pc++
		return nil
	case module.MiscOpcodeMemoryCopy:
		return j.execMemoryCopy()
	case module.MiscOpcodeMemoryFill:
		return j.execMemoryFill(op)
	case module.MiscOpcodeTableInit:
		return j.execTableInit(op)
	case module.MiscOpcodeElemDrop:
		j.Runtime.DropElement(int(op.Immediates[0]))
		j.pc++
		return nil
	case module.MiscOpcodeTableCopy:
		return j.execTableCopy(op)
	case module.MiscOpcodeTableGrow:
		return j.execTableGrow(op)
	case module.MiscOpcodeTableSize:
		return j.execTableSize(op)
	case module.MiscOpcodeTableFill:
		return j.execTableFill(op)
	}
	return api.NewError(api.UnimplementedOpcode, "unhandled misc sub-opcode %d", op.Sub)
}

func (j *Job) popThree() (a, b, c uint64, err *api.Error) {
	vals, perr := j.Values.PopN(3)
	if perr != nil {
		return 0, 0, 0, perr.(*api.Error)
	}
	return vals[0], vals[1], vals[2], nil
}

// execMemoryInit copies length bytes from a passive data segment's
// sourceOffset into this memory at dst. A zero-length init is a no-op
// even against a dropped or out-of-range segment, per the core spec's
// bounds-checked-before-acting rule.
func (j *Job) execMemoryInit(op jit.PreparedOp) *api.Error {
	dataIdx, memIdx := int(op.Immediates[0]), op.Immediates[1]
	dst, srcOffset, length, err := j.popThree()
	if err != nil {
		return err
	}
	data, ok := j.Runtime.DataSegmentBytes(dataIdx)
	if !ok {
		if length == 0 {
			j.pc++
			return nil
		}
		return api.ErrOutOfBoundsMemoryAccess
	}
	if srcOffset+length > uint64(len(data)) || srcOffset+length < srcOffset {
		return api.ErrOutOfBoundsMemoryAccess
	}
	segment := data[srcOffset : srcOffset+length]
	if int(memIdx) >= len(j.Runtime.Memories) {
		return api.NewError(api.InvalidArgument, "memory index %d out of range", memIdx)
	}
	if err := j.Runtime.Memories[memIdx].Init(dst, segment); err != nil {
		return err
	}
	j.pc++
	return nil
}

func (j *Job) execMemoryCopy() *api.Error {
	dst, src, length, err := j.popThree()
	if err != nil {
		return err
	}
	if e := j.Runtime.Memories[0].Copy(dst, src, length); e != nil {
		return e
	}
	j.pc++
	return nil
}

func (j *Job) execMemoryFill(op jit.PreparedOp) *api.Error {
	memIdx := op.Immediates[0]
	offset, value, length, err := j.popThree()
	if err != nil {
		return err
	}
	if int(memIdx) >= len(j.Runtime.Memories) {
		return api.NewError(api.InvalidArgument, "memory index %d out of range", memIdx)
	}
	if e := j.Runtime.Memories[memIdx].Fill(offset, byte(value), length); e != nil {
		return e
	}
	j.pc++
	return nil
}

func (j *Job) execTableInit(op jit.PreparedOp) *api.Error {
	elemIdx, tableIdx := int(op.Immediates[0]), op.Immediates[1]
	dst, srcOffset, length, err := j.popThree()
	if err != nil {
		return err
	}
	refs, ok := j.Runtime.ElementSegmentRefs(elemIdx)
	if !ok {
		if length == 0 {
			j.pc++
			return nil
		}
		return api.ErrOutOfBoundsTableAccess
	}
	if int(tableIdx) >= len(j.Runtime.Tables) {
		return api.NewError(api.InvalidArgument, "table index %d out of range", tableIdx)
	}
	if err := j.Runtime.Tables[tableIdx].Init(uint32(dst), refs, uint32(srcOffset), uint32(length)); err != nil {
		return err
	}
	j.pc++
	return nil
}

func (j *Job) execTableCopy(op jit.PreparedOp) *api.Error {
	dstTable, srcTable := op.Immediates[0], op.Immediates[1]
	dst, src, length, err := j.popThree()
	if err != nil {
		return err
	}
	if int(dstTable) >= len(j.Runtime.Tables) || int(srcTable) >= len(j.Runtime.Tables) {
		return api.NewError(api.InvalidArgument, "table.copy: table index out of range")
	}
	if e := j.Runtime.Tables[dstTable].Copy(j.Runtime.Tables[dstTable], j.Runtime.Tables[srcTable], uint32(dst), uint32(src), uint32(length)); e != nil {
		return e
	}
	j.pc++
	return nil
}

func (j *Job) execTableGrow(op jit.PreparedOp) *api.Error {
	tableIdx := op.Immediates[0]
	vals, err := j.Values.PopN(2)
	if err != nil {
		return err.(*api.Error)
	}
	fillValue, delta := api.Reference(vals[0]), uint32(vals[1])
	if int(tableIdx) >= len(j.Runtime.Tables) {
		return api.NewError(api.InvalidArgument, "table index %d out of range", tableIdx)
	}
	prev, ok := j.Runtime.Tables[tableIdx].Grow(delta, fillValue)
	result := uint64(0xFFFFFFFF)
	if ok {
		result = uint64(prev)
	}
	if e := j.Values.Push(result); e != nil {
		return e.(*api.Error)
	}
	j.pc++
	return nil
}

func (j *Job) execTableSize(op jit.PreparedOp) *api.Error {
	tableIdx := op.Immediates[0]
	if int(tableIdx) >= len(j.Runtime.Tables) {
		return api.NewError(api.InvalidArgument, "table index %d out of range", tableIdx)
	}
	if err := j.Values.Push(uint64(j.Runtime.Tables[tableIdx].Size())); err != nil {
		return err.(*api.Error)
	}
	j.pc++
	return nil
}

func (j *Job) execTableFill(op jit.PreparedOp) *api.Error {
	tableIdx := op.Immediates[0]
	offset, value, length, err := j.popThree()
	if err != nil {
		return err
	}
	if int(tableIdx) >= len(j.Runtime.Tables) {
		return api.NewError(api.InvalidArgument, "table index %d out of range", tableIdx)
	}
	if e := j.Runtime.Tables[tableIdx].Fill(uint32(offset), api.Reference(value), uint32(length)); e != nil {
		return e
	}
	j.pc++
	return nil
}
