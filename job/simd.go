package job

import (
	"math"

	"github.com/Geckos-Ink/fayasm-sub000/api"
	"github.com/Geckos-Ink/fayasm-sub000/jit"
	"github.com/Geckos-Ink/fayasm-sub000/module"
)

// A v128 value occupies two consecutive value-stack slots: the low 64
// bits pushed first, the high 64 bits pushed second (so the high word
// sits on top), per api.ValueTypeV128's documented representation.

func (j *Job) popV128() (lo, hi uint64, err *api.Error) {
	hi, e := j.Values.Pop()
	if e != nil {
		return 0, 0, e.(*api.Error)
	}
	lo, e = j.Values.Pop()
	if e != nil {
		return 0, 0, e.(*api.Error)
	}
	return lo, hi, nil
}

func (j *Job) pushV128(lo, hi uint64) *api.Error {
	if err := j.Values.Push(lo); err != nil {
		return err.(*api.Error)
	}
	if err := j.Values.Push(hi); err != nil {
		return err.(*api.Error)
	}
	return nil
}

func v128Bytes(lo, hi uint64) [16]byte {
	var b [16]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(lo >> (8 * i))
		b[8+i] = byte(hi >> (8 * i))
	}
	return b
}

func bytesToV128(b [16]byte) (lo, hi uint64) {
	for i := 0; i < 8; i++ {
		lo |= uint64(b[i]) << (8 * i)
		hi |= uint64(b[8+i]) << (8 * i)
	}
	return lo, hi
}

func (j *Job) handleSimd(op jit.PreparedOp) *api.Error {
	switch module.SimdOpcode(op.Sub) {
	case module.SimdOpcodeV128Load:
		return j.simdLoad(op)
	case module.SimdOpcodeV128Store:
		return j.simdStore(op)
	case module.SimdOpcodeV128Const:
		if err := j.pushV128(op.Immediates[0], op.Immediates[1]); err != nil {
			return err
		}
		j.pc++
		return nil
	case module.SimdOpcodeI8x16Splat:
		return j.simdSplat(1)
	case module.SimdOpcodeI16x8Splat:
		return j.simdSplat(2)
	case module.SimdOpcodeI32x4Splat:
		return j.simdSplat(4)
	case module.SimdOpcodeI64x2Splat:
		return j.simdSplat(8)
	case module.SimdOpcodeF32x4Splat:
		return j.simdSplat(4)
	case module.SimdOpcodeF64x2Splat:
		return j.simdSplat(8)
	case module.SimdOpcodeI8x16ExtractLaneS:
		return j.simdExtractLane8(op, true)
	case module.SimdOpcodeI8x16ExtractLaneU:
		return j.simdExtractLane8(op, false)
	case module.SimdOpcodeI8x16ReplaceLane:
		return j.simdReplaceLane8(op)
	case module.SimdOpcodeI8x16Add:
		return j.simdI8x16Add()
	case module.SimdOpcodeI32x4TruncSatF32x4S:
		return j.simdI32x4TruncSatF32x4S()
	}
	return api.NewError(api.UnimplementedOpcode, "unhandled simd sub-opcode %d", op.Sub)
}

func (j *Job) simdLoad(op jit.PreparedOp) *api.Error {
	offset := op.Immediates[1]
	index, err := j.Values.Pop()
	if err != nil {
		return err.(*api.Error)
	}
	addr, aerr := effectiveAddress(index, offset)
	if aerr != nil {
		return aerr
	}
	b, rerr := j.Runtime.Memories[0].ReadBytes(addr, 16)
	if rerr != nil {
		return rerr
	}
	var raw [16]byte
	copy(raw[:], b)
	lo, hi := bytesToV128(raw)
	if err := j.pushV128(lo, hi); err != nil {
		return err
	}
	j.pc++
	return nil
}

func (j *Job) simdStore(op jit.PreparedOp) *api.Error {
	offset := op.Immediates[1]
	lo, hi, err := j.popV128()
	if err != nil {
		return err
	}
	index, perr := j.Values.Pop()
	if perr != nil {
		return perr.(*api.Error)
	}
	addr, aerr := effectiveAddress(index, offset)
	if aerr != nil {
		return aerr
	}
	raw := v128Bytes(lo, hi)
	if err := j.Runtime.Memories[0].WriteBytes(addr, raw[:]); err != nil {
		return err
	}
	j.pc++
	return nil
}

// simdSplat replicates a laneWidth-byte scalar popped off the stack
// across all 16/laneWidth lanes of a new v128.
func (j *Job) simdSplat(laneWidth int) *api.Error {
	v, err := j.Values.Pop()
	if err != nil {
		return err.(*api.Error)
	}
	var lane [8]byte
	for i := 0; i < laneWidth && i < 8; i++ {
		lane[i] = byte(v >> (8 * i))
	}
	var raw [16]byte
	for off := 0; off < 16; off += laneWidth {
		copy(raw[off:off+laneWidth], lane[:laneWidth])
	}
	lo, hi := bytesToV128(raw)
	if err := j.pushV128(lo, hi); err != nil {
		return err
	}
	j.pc++
	return nil
}

func (j *Job) simdExtractLane8(op jit.PreparedOp, signed bool) *api.Error {
	lane := int(op.Immediates[0])
	lo, hi, err := j.popV128()
	if err != nil {
		return err
	}
	raw := v128Bytes(lo, hi)
	b := raw[lane]
	var result uint64
	if signed {
		result = uint64(uint32(int32(int8(b))))
	} else {
		result = uint64(b)
	}
	if err := j.Values.Push(result); err != nil {
		return err.(*api.Error)
	}
	j.pc++
	return nil
}

func (j *Job) simdReplaceLane8(op jit.PreparedOp) *api.Error {
	lane := int(op.Immediates[0])
	scalar, err := j.Values.Pop()
	if err != nil {
		return err.(*api.Error)
	}
	lo, hi, verr := j.popV128()
	if verr != nil {
		return verr
	}
	raw := v128Bytes(lo, hi)
	raw[lane] = byte(scalar)
	lo, hi = bytesToV128(raw)
	if err := j.pushV128(lo, hi); err != nil {
		return err
	}
	j.pc++
	return nil
}

func (j *Job) simdI8x16Add() *api.Error {
	lo2, hi2, err := j.popV128()
	if err != nil {
		return err
	}
	lo1, hi1, err := j.popV128()
	if err != nil {
		return err
	}
	a := v128Bytes(lo1, hi1)
	b := v128Bytes(lo2, hi2)
	var out [16]byte
	for i := range out {
		out[i] = a[i] + b[i]
	}
	lo, hi := bytesToV128(out)
	if err := j.pushV128(lo, hi); err != nil {
		return err
	}
	j.pc++
	return nil
}

func (j *Job) simdI32x4TruncSatF32x4S() *api.Error {
	lo, hi, err := j.popV128()
	if err != nil {
		return err
	}
	raw := v128Bytes(lo, hi)
	var out [16]byte
	for lane := 0; lane < 4; lane++ {
		bits := uint32(raw[lane*4]) | uint32(raw[lane*4+1])<<8 | uint32(raw[lane*4+2])<<16 | uint32(raw[lane*4+3])<<24
		f := math.Float32frombits(bits)
		v := truncSatI32S(f)
		out[lane*4] = byte(v)
		out[lane*4+1] = byte(v >> 8)
		out[lane*4+2] = byte(v >> 16)
		out[lane*4+3] = byte(v >> 24)
	}
	lo, hi = bytesToV128(out)
	if err := j.pushV128(lo, hi); err != nil {
		return err
	}
	j.pc++
	return nil
}

// truncSatI32S implements the saturating float-to-signed-i32 truncation
// the scalar i32.trunc_sat_f32_s handler also uses, without trapping on
// NaN or out-of-range values.
func truncSatI32S(f float32) int32 {
	if math.IsNaN(float64(f)) {
		return 0
	}
	if f <= -2147483648 {
		return math.MinInt32
	}
	if f >= 2147483648 {
		return math.MaxInt32
	}
	return int32(f)
}
