package job

import (
	"math"

	"github.com/Geckos-Ink/fayasm-sub000/api"
	"github.com/Geckos-Ink/fayasm-sub000/jit"
	"github.com/Geckos-Ink/fayasm-sub000/module"
	"github.com/Geckos-Ink/fayasm-sub000/runtime"
)

// effectiveAddress combines a memarg's static offset with the popped
// dynamic index, trapping only if their uint64 sum wraps; an address past
// the end of the memory is left to the memory's own bounds check.
func effectiveAddress(index uint64, offset uint64) (uint64, *api.Error) {
	addr := index + offset
	if addr < index {
		return 0, api.ErrOutOfBoundsMemoryAccess
	}
	return addr, nil
}

// handleMemArg executes the memarg load/store family. execute.go's
// switch default hands these opcodes to handlePure, which calls this
// for any opcode whose Descriptor.HasMemArg is set.
func (j *Job) handleMemArg(op jit.PreparedOp) *api.Error {
	d := op.Descriptor
	align, offset, memIdx := op.Immediates[0], op.Immediates[1], op.Immediates[2]
	_ = align
	if int(memIdx) >= len(j.Runtime.Memories) {
		return api.NewError(api.InvalidArgument, "memory index %d out of range", memIdx)
	}
	mem := j.Runtime.Memories[memIdx]

	if d.NumPull == 2 { // store: [index, value] popped value-first
		value, err := j.Values.Pop()
		if err != nil {
			return err.(*api.Error)
		}
		index, err := j.Values.Pop()
		if err != nil {
			return err.(*api.Error)
		}
		addr, aerr := effectiveAddress(index, offset)
		if aerr != nil {
			return aerr
		}
		b := make([]byte, d.Width/8)
		putUint(b, value)
		if err := mem.WriteBytes(addr, b); err != nil {
			return err
		}
		j.pc++
		return nil
	}

	index, err := j.Values.Pop()
	if err != nil {
		return err.(*api.Error)
	}
	addr, aerr := effectiveAddress(index, offset)
	if aerr != nil {
		return aerr
	}
	b, rerr := mem.ReadBytes(addr, uint64(d.Width/8))
	if rerr != nil {
		return rerr
	}
	raw := getUint(b)
	result := extend(raw, d.Width, d.Signed, d.ValType)
	if err := j.Values.Push(result); err != nil {
		return err.(*api.Error)
	}
	j.pc++
	return nil
}

func putUint(b []byte, v uint64) {
	for i := range b {
		b[i] = byte(v >> (8 * i))
	}
}

func getUint(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// extend widens a width-bit loaded value to the full 64-bit slot per the
// destination value type: floats pass through untouched (their bit width
// already matches their slot), i32 destinations zero-fill the upper 32
// bits regardless of sign (the value stack stores i32 in the low word),
// and i64 destinations sign- or zero-extend per the opcode's Signed flag.
func extend(raw uint64, width int, signed bool, vt api.ValueType) uint64 {
	if vt == api.ValueTypeF32 || vt == api.ValueTypeF64 {
		return raw
	}
	if vt == api.ValueTypeI32 {
		if signed && width < 32 {
			shift := 32 - uint(width)
			return uint64(uint32(int32(uint32(raw<<shift)) >> shift))
		}
		return raw
	}
	// i64 destination.
	if signed && width < 64 {
		shift := 64 - uint(width)
		return uint64(int64(raw<<shift) >> shift)
	}
	return raw
}

func (j *Job) handleMemorySize(op jit.PreparedOp) *api.Error {
	idx := op.Immediates[0]
	if int(idx) >= len(j.Runtime.Memories) {
		return api.NewError(api.InvalidArgument, "memory index %d out of range", idx)
	}
	pages := j.Runtime.Memories[idx].SizePages()
	if err := j.Values.Push(uint64(pages)); err != nil {
		return err.(*api.Error)
	}
	j.pc++
	return nil
}

func (j *Job) handleMemoryGrow(op jit.PreparedOp) *api.Error {
	idx := op.Immediates[0]
	if int(idx) >= len(j.Runtime.Memories) {
		return api.NewError(api.InvalidArgument, "memory index %d out of range", idx)
	}
	delta, err := j.Values.Pop()
	if err != nil {
		return err.(*api.Error)
	}
	if int(idx) < len(j.Runtime.Module.Memories) && j.Runtime.Module.Memories[idx].IsImport && !j.Runtime.Config.AllowImportedMemoryGrowth() {
		if err := j.Values.Push(math.MaxUint32); err != nil {
			return err.(*api.Error)
		}
		j.pc++
		return nil
	}
	prev, ok := j.Runtime.Memories[idx].Grow(uint32(delta))
	result := uint64(math.MaxUint32)
	if ok {
		result = uint64(prev)
	}
	if err := j.Values.Push(result); err != nil {
		return err.(*api.Error)
	}
	j.pc++
	return nil
}

func (j *Job) handleRefNull(op jit.PreparedOp) *api.Error {
	if err := j.Values.Push(uint64(api.NullReference)); err != nil {
		return err.(*api.Error)
	}
	j.pc++
	return nil
}

func (j *Job) handleRefIsNull(op jit.PreparedOp) *api.Error {
	v, err := j.Values.Pop()
	if err != nil {
		return err.(*api.Error)
	}
	result := uint64(0)
	if api.Reference(v) == api.NullReference {
		result = 1
	}
	if err := j.Values.Push(result); err != nil {
		return err.(*api.Error)
	}
	j.pc++
	return nil
}

func (j *Job) handleRefFunc(op jit.PreparedOp) *api.Error {
	funcIndex := module.Index(op.Immediates[0])
	if err := j.Values.Push(uint64(runtime.FuncRef(funcIndex))); err != nil {
		return err.(*api.Error)
	}
	j.pc++
	return nil
}
