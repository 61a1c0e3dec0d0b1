package opcode

import (
	"math"
	"math/bits"

	"github.com/Geckos-Ink/fayasm-sub000/api"
	"github.com/Geckos-Ink/fayasm-sub000/internal/moremath"
)

func asI32(v uint64) int32    { return int32(uint32(v)) }
func asU32(v uint64) uint32   { return uint32(v) }
func i32r(v int32) uint64     { return uint64(uint32(v)) }
func u32r(v uint32) uint64    { return uint64(v) }
func asI64(v uint64) int64    { return int64(v) }
func asU64(v uint64) uint64   { return v }
func i64r(v int64) uint64     { return uint64(v) }
func asF32(v uint64) float32  { return math.Float32frombits(uint32(v)) }
func f32r(f float32) uint64   { return uint64(math.Float32bits(f)) }
func asF64(v uint64) float64  { return math.Float64frombits(v) }
func f64r(f float64) uint64   { return math.Float64bits(f) }
func boolr(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// --- i32 ---

func i32Eqz(a []uint64) (uint64, *api.Error)  { return boolr(asI32(a[0]) == 0), nil }
func i32Eq(a []uint64) (uint64, *api.Error)   { return boolr(asI32(a[0]) == asI32(a[1])), nil }
func i32Ne(a []uint64) (uint64, *api.Error)   { return boolr(asI32(a[0]) != asI32(a[1])), nil }
func i32LtS(a []uint64) (uint64, *api.Error)  { return boolr(asI32(a[0]) < asI32(a[1])), nil }
func i32LtU(a []uint64) (uint64, *api.Error)  { return boolr(asU32(a[0]) < asU32(a[1])), nil }
func i32GtS(a []uint64) (uint64, *api.Error)  { return boolr(asI32(a[0]) > asI32(a[1])), nil }
func i32GtU(a []uint64) (uint64, *api.Error)  { return boolr(asU32(a[0]) > asU32(a[1])), nil }
func i32LeS(a []uint64) (uint64, *api.Error)  { return boolr(asI32(a[0]) <= asI32(a[1])), nil }
func i32LeU(a []uint64) (uint64, *api.Error)  { return boolr(asU32(a[0]) <= asU32(a[1])), nil }
func i32GeS(a []uint64) (uint64, *api.Error)  { return boolr(asI32(a[0]) >= asI32(a[1])), nil }
func i32GeU(a []uint64) (uint64, *api.Error)  { return boolr(asU32(a[0]) >= asU32(a[1])), nil }

func i32Clz(a []uint64) (uint64, *api.Error)    { return u32r(uint32(bits.LeadingZeros32(asU32(a[0])))), nil }
func i32Ctz(a []uint64) (uint64, *api.Error)    { return u32r(uint32(bits.TrailingZeros32(asU32(a[0])))), nil }
func i32Popcnt(a []uint64) (uint64, *api.Error) { return u32r(uint32(bits.OnesCount32(asU32(a[0])))), nil }
func i32Add(a []uint64) (uint64, *api.Error)    { return u32r(asU32(a[0]) + asU32(a[1])), nil }
func i32Sub(a []uint64) (uint64, *api.Error)    { return u32r(asU32(a[0]) - asU32(a[1])), nil }
func i32Mul(a []uint64) (uint64, *api.Error)    { return u32r(asU32(a[0]) * asU32(a[1])), nil }

func i32DivS(a []uint64) (uint64, *api.Error) {
	x, y := asI32(a[0]), asI32(a[1])
	if y == 0 {
		return 0, api.ErrIntegerDivideByZero
	}
	if x == math.MinInt32 && y == -1 {
		return 0, api.ErrIntegerOverflow
	}
	return i32r(x / y), nil
}
func i32DivU(a []uint64) (uint64, *api.Error) {
	x, y := asU32(a[0]), asU32(a[1])
	if y == 0 {
		return 0, api.ErrIntegerDivideByZero
	}
	return u32r(x / y), nil
}
func i32RemS(a []uint64) (uint64, *api.Error) {
	x, y := asI32(a[0]), asI32(a[1])
	if y == 0 {
		return 0, api.ErrIntegerDivideByZero
	}
	if x == math.MinInt32 && y == -1 {
		return 0, nil
	}
	return i32r(x % y), nil
}
func i32RemU(a []uint64) (uint64, *api.Error) {
	x, y := asU32(a[0]), asU32(a[1])
	if y == 0 {
		return 0, api.ErrIntegerDivideByZero
	}
	return u32r(x % y), nil
}

func i32And(a []uint64) (uint64, *api.Error)  { return u32r(asU32(a[0]) & asU32(a[1])), nil }
func i32Or(a []uint64) (uint64, *api.Error)   { return u32r(asU32(a[0]) | asU32(a[1])), nil }
func i32Xor(a []uint64) (uint64, *api.Error)  { return u32r(asU32(a[0]) ^ asU32(a[1])), nil }
func i32Shl(a []uint64) (uint64, *api.Error)  { return u32r(asU32(a[0]) << (asU32(a[1]) % 32)), nil }
func i32ShrS(a []uint64) (uint64, *api.Error) { return i32r(asI32(a[0]) >> (asU32(a[1]) % 32)), nil }
func i32ShrU(a []uint64) (uint64, *api.Error) { return u32r(asU32(a[0]) >> (asU32(a[1]) % 32)), nil }
func i32Rotl(a []uint64) (uint64, *api.Error) {
	return u32r(bits.RotateLeft32(asU32(a[0]), int(asU32(a[1])%32))), nil
}
func i32Rotr(a []uint64) (uint64, *api.Error) {
	return u32r(bits.RotateLeft32(asU32(a[0]), -int(asU32(a[1])%32))), nil
}

// --- i64 ---

func i64Eqz(a []uint64) (uint64, *api.Error) { return boolr(asI64(a[0]) == 0), nil }
func i64Eq(a []uint64) (uint64, *api.Error)  { return boolr(asI64(a[0]) == asI64(a[1])), nil }
func i64Ne(a []uint64) (uint64, *api.Error)  { return boolr(asI64(a[0]) != asI64(a[1])), nil }
func i64LtS(a []uint64) (uint64, *api.Error) { return boolr(asI64(a[0]) < asI64(a[1])), nil }
func i64LtU(a []uint64) (uint64, *api.Error) { return boolr(asU64(a[0]) < asU64(a[1])), nil }
func i64GtS(a []uint64) (uint64, *api.Error) { return boolr(asI64(a[0]) > asI64(a[1])), nil }
func i64GtU(a []uint64) (uint64, *api.Error) { return boolr(asU64(a[0]) > asU64(a[1])), nil }
func i64LeS(a []uint64) (uint64, *api.Error) { return boolr(asI64(a[0]) <= asI64(a[1])), nil }
func i64LeU(a []uint64) (uint64, *api.Error) { return boolr(asU64(a[0]) <= asU64(a[1])), nil }
func i64GeS(a []uint64) (uint64, *api.Error) { return boolr(asI64(a[0]) >= asI64(a[1])), nil }
func i64GeU(a []uint64) (uint64, *api.Error) { return boolr(asU64(a[0]) >= asU64(a[1])), nil }

func i64Clz(a []uint64) (uint64, *api.Error)    { return uint64(bits.LeadingZeros64(asU64(a[0]))), nil }
func i64Ctz(a []uint64) (uint64, *api.Error)    { return uint64(bits.TrailingZeros64(asU64(a[0]))), nil }
func i64Popcnt(a []uint64) (uint64, *api.Error) { return uint64(bits.OnesCount64(asU64(a[0]))), nil }
func i64Add(a []uint64) (uint64, *api.Error)    { return asU64(a[0]) + asU64(a[1]), nil }
func i64Sub(a []uint64) (uint64, *api.Error)    { return asU64(a[0]) - asU64(a[1]), nil }
func i64Mul(a []uint64) (uint64, *api.Error)    { return asU64(a[0]) * asU64(a[1]), nil }

func i64DivS(a []uint64) (uint64, *api.Error) {
	x, y := asI64(a[0]), asI64(a[1])
	if y == 0 {
		return 0, api.ErrIntegerDivideByZero
	}
	if x == math.MinInt64 && y == -1 {
		return 0, api.ErrIntegerOverflow
	}
	return i64r(x / y), nil
}
func i64DivU(a []uint64) (uint64, *api.Error) {
	x, y := asU64(a[0]), asU64(a[1])
	if y == 0 {
		return 0, api.ErrIntegerDivideByZero
	}
	return x / y, nil
}
func i64RemS(a []uint64) (uint64, *api.Error) {
	x, y := asI64(a[0]), asI64(a[1])
	if y == 0 {
		return 0, api.ErrIntegerDivideByZero
	}
	if x == math.MinInt64 && y == -1 {
		return 0, nil
	}
	return i64r(x % y), nil
}
func i64RemU(a []uint64) (uint64, *api.Error) {
	x, y := asU64(a[0]), asU64(a[1])
	if y == 0 {
		return 0, api.ErrIntegerDivideByZero
	}
	return x % y, nil
}

func i64And(a []uint64) (uint64, *api.Error)  { return asU64(a[0]) & asU64(a[1]), nil }
func i64Or(a []uint64) (uint64, *api.Error)   { return asU64(a[0]) | asU64(a[1]), nil }
func i64Xor(a []uint64) (uint64, *api.Error)  { return asU64(a[0]) ^ asU64(a[1]), nil }
func i64Shl(a []uint64) (uint64, *api.Error)  { return asU64(a[0]) << (asU64(a[1]) % 64), nil }
func i64ShrS(a []uint64) (uint64, *api.Error) { return i64r(asI64(a[0]) >> (asU64(a[1]) % 64)), nil }
func i64ShrU(a []uint64) (uint64, *api.Error) { return asU64(a[0]) >> (asU64(a[1]) % 64), nil }
func i64Rotl(a []uint64) (uint64, *api.Error) {
	return bits.RotateLeft64(asU64(a[0]), int(asU64(a[1])%64)), nil
}
func i64Rotr(a []uint64) (uint64, *api.Error) {
	return bits.RotateLeft64(asU64(a[0]), -int(asU64(a[1])%64)), nil
}

// --- f32 ---

func f32Eq(a []uint64) (uint64, *api.Error) { return boolr(asF32(a[0]) == asF32(a[1])), nil }
func f32Ne(a []uint64) (uint64, *api.Error) { return boolr(asF32(a[0]) != asF32(a[1])), nil }
func f32Lt(a []uint64) (uint64, *api.Error) { return boolr(asF32(a[0]) < asF32(a[1])), nil }
func f32Gt(a []uint64) (uint64, *api.Error) { return boolr(asF32(a[0]) > asF32(a[1])), nil }
func f32Le(a []uint64) (uint64, *api.Error) { return boolr(asF32(a[0]) <= asF32(a[1])), nil }
func f32Ge(a []uint64) (uint64, *api.Error) { return boolr(asF32(a[0]) >= asF32(a[1])), nil }

func f32Abs(a []uint64) (uint64, *api.Error)  { return f32r(float32(math.Abs(float64(asF32(a[0]))))), nil }
func f32Neg(a []uint64) (uint64, *api.Error)  { return f32r(-asF32(a[0])), nil }
func f32Ceil(a []uint64) (uint64, *api.Error) { return f32r(float32(math.Ceil(float64(asF32(a[0]))))), nil }
func f32Floor(a []uint64) (uint64, *api.Error) {
	return f32r(float32(math.Floor(float64(asF32(a[0]))))), nil
}
func f32Trunc(a []uint64) (uint64, *api.Error) {
	return f32r(float32(math.Trunc(float64(asF32(a[0]))))), nil
}
func f32Nearest(a []uint64) (uint64, *api.Error) {
	return f32r(float32(math.RoundToEven(float64(asF32(a[0]))))), nil
}
func f32Sqrt(a []uint64) (uint64, *api.Error) { return f32r(float32(math.Sqrt(float64(asF32(a[0]))))), nil }
func f32Add(a []uint64) (uint64, *api.Error)  { return f32r(asF32(a[0]) + asF32(a[1])), nil }
func f32Sub(a []uint64) (uint64, *api.Error)  { return f32r(asF32(a[0]) - asF32(a[1])), nil }
func f32Mul(a []uint64) (uint64, *api.Error)  { return f32r(asF32(a[0]) * asF32(a[1])), nil }
func f32Div(a []uint64) (uint64, *api.Error)  { return f32r(asF32(a[0]) / asF32(a[1])), nil }
func f32Min(a []uint64) (uint64, *api.Error) {
	return f32r(moremath.WasmCompatMin32(asF32(a[0]), asF32(a[1]))), nil
}
func f32Max(a []uint64) (uint64, *api.Error) {
	return f32r(moremath.WasmCompatMax32(asF32(a[0]), asF32(a[1]))), nil
}
func f32Copysign(a []uint64) (uint64, *api.Error) {
	return f32r(float32(math.Copysign(float64(asF32(a[0])), float64(asF32(a[1]))))), nil
}

// --- f64 ---

func f64Eq(a []uint64) (uint64, *api.Error) { return boolr(asF64(a[0]) == asF64(a[1])), nil }
func f64Ne(a []uint64) (uint64, *api.Error) { return boolr(asF64(a[0]) != asF64(a[1])), nil }
func f64Lt(a []uint64) (uint64, *api.Error) { return boolr(asF64(a[0]) < asF64(a[1])), nil }
func f64Gt(a []uint64) (uint64, *api.Error) { return boolr(asF64(a[0]) > asF64(a[1])), nil }
func f64Le(a []uint64) (uint64, *api.Error) { return boolr(asF64(a[0]) <= asF64(a[1])), nil }
func f64Ge(a []uint64) (uint64, *api.Error) { return boolr(asF64(a[0]) >= asF64(a[1])), nil }

func f64Abs(a []uint64) (uint64, *api.Error)     { return f64r(math.Abs(asF64(a[0]))), nil }
func f64Neg(a []uint64) (uint64, *api.Error)     { return f64r(-asF64(a[0])), nil }
func f64Ceil(a []uint64) (uint64, *api.Error)    { return f64r(math.Ceil(asF64(a[0]))), nil }
func f64Floor(a []uint64) (uint64, *api.Error)   { return f64r(math.Floor(asF64(a[0]))), nil }
func f64Trunc(a []uint64) (uint64, *api.Error)   { return f64r(math.Trunc(asF64(a[0]))), nil }
func f64Nearest(a []uint64) (uint64, *api.Error) { return f64r(math.RoundToEven(asF64(a[0]))), nil }
func f64Sqrt(a []uint64) (uint64, *api.Error)    { return f64r(math.Sqrt(asF64(a[0]))), nil }
func f64Add(a []uint64) (uint64, *api.Error)     { return f64r(asF64(a[0]) + asF64(a[1])), nil }
func f64Sub(a []uint64) (uint64, *api.Error)     { return f64r(asF64(a[0]) - asF64(a[1])), nil }
func f64Mul(a []uint64) (uint64, *api.Error)     { return f64r(asF64(a[0]) * asF64(a[1])), nil }
func f64Div(a []uint64) (uint64, *api.Error)     { return f64r(asF64(a[0]) / asF64(a[1])), nil }
func f64Min(a []uint64) (uint64, *api.Error) {
	return f64r(moremath.WasmCompatMin(asF64(a[0]), asF64(a[1]))), nil
}
func f64Max(a []uint64) (uint64, *api.Error) {
	return f64r(moremath.WasmCompatMax(asF64(a[0]), asF64(a[1]))), nil
}
func f64Copysign(a []uint64) (uint64, *api.Error) {
	return f64r(math.Copysign(asF64(a[0]), asF64(a[1]))), nil
}

// --- conversions ---

func i32WrapI64(a []uint64) (uint64, *api.Error) { return u32r(uint32(asU64(a[0]))), nil }

func i32TruncF32S(a []uint64) (uint64, *api.Error) {
	v := float64(asF32(a[0]))
	if !moremath.InRangeForTruncS32(v) {
		return 0, convTrap(v)
	}
	return i32r(int32(v)), nil
}
func i32TruncF32U(a []uint64) (uint64, *api.Error) {
	v := float64(asF32(a[0]))
	if !moremath.InRangeForTruncU32(v) {
		return 0, convTrap(v)
	}
	return u32r(uint32(v)), nil
}
func i32TruncF64S(a []uint64) (uint64, *api.Error) {
	v := asF64(a[0])
	if !moremath.InRangeForTruncS32(v) {
		return 0, convTrap(v)
	}
	return i32r(int32(v)), nil
}
func i32TruncF64U(a []uint64) (uint64, *api.Error) {
	v := asF64(a[0])
	if !moremath.InRangeForTruncU32(v) {
		return 0, convTrap(v)
	}
	return u32r(uint32(v)), nil
}

func convTrap(v float64) *api.Error {
	if math.IsNaN(v) {
		return api.ErrInvalidConversionToInteger
	}
	return api.ErrIntegerOverflow
}

func i64ExtendI32S(a []uint64) (uint64, *api.Error) { return i64r(int64(asI32(a[0]))), nil }
func i64ExtendI32U(a []uint64) (uint64, *api.Error) { return uint64(asU32(a[0])), nil }

func i64TruncF32S(a []uint64) (uint64, *api.Error) {
	v := float64(asF32(a[0]))
	if !moremath.InRangeForTruncS64(v) {
		return 0, convTrap(v)
	}
	return i64r(int64(v)), nil
}
func i64TruncF32U(a []uint64) (uint64, *api.Error) {
	v := float64(asF32(a[0]))
	if !moremath.InRangeForTruncU64(v) {
		return 0, convTrap(v)
	}
	return uint64(v), nil
}
func i64TruncF64S(a []uint64) (uint64, *api.Error) {
	v := asF64(a[0])
	if !moremath.InRangeForTruncS64(v) {
		return 0, convTrap(v)
	}
	return i64r(int64(v)), nil
}
func i64TruncF64U(a []uint64) (uint64, *api.Error) {
	v := asF64(a[0])
	if !moremath.InRangeForTruncU64(v) {
		return 0, convTrap(v)
	}
	return uint64(v), nil
}

func f32ConvertI32S(a []uint64) (uint64, *api.Error) { return f32r(float32(asI32(a[0]))), nil }
func f32ConvertI32U(a []uint64) (uint64, *api.Error) { return f32r(float32(asU32(a[0]))), nil }
func f32ConvertI64S(a []uint64) (uint64, *api.Error) { return f32r(float32(asI64(a[0]))), nil }
func f32ConvertI64U(a []uint64) (uint64, *api.Error) { return f32r(float32(asU64(a[0]))), nil }
func f32DemoteF64(a []uint64) (uint64, *api.Error)   { return f32r(float32(asF64(a[0]))), nil }

func f64ConvertI32S(a []uint64) (uint64, *api.Error) { return f64r(float64(asI32(a[0]))), nil }
func f64ConvertI32U(a []uint64) (uint64, *api.Error) { return f64r(float64(asU32(a[0]))), nil }
func f64ConvertI64S(a []uint64) (uint64, *api.Error) { return f64r(float64(asI64(a[0]))), nil }
func f64ConvertI64U(a []uint64) (uint64, *api.Error) { return f64r(float64(asU64(a[0]))), nil }
func f64PromoteF32(a []uint64) (uint64, *api.Error)  { return f64r(float64(asF32(a[0]))), nil }

func i32ReinterpretF32(a []uint64) (uint64, *api.Error) { return a[0] & 0xffffffff, nil }
func i64ReinterpretF64(a []uint64) (uint64, *api.Error) { return a[0], nil }
func f32ReinterpretI32(a []uint64) (uint64, *api.Error) { return a[0] & 0xffffffff, nil }
func f64ReinterpretI64(a []uint64) (uint64, *api.Error) { return a[0], nil }

// --- sign extension ---

func i32Extend8S(a []uint64) (uint64, *api.Error)  { return i32r(int32(int8(asU32(a[0])))), nil }
func i32Extend16S(a []uint64) (uint64, *api.Error) { return i32r(int32(int16(asU32(a[0])))), nil }
func i64Extend8S(a []uint64) (uint64, *api.Error)  { return i64r(int64(int8(asU64(a[0])))), nil }
func i64Extend16S(a []uint64) (uint64, *api.Error) { return i64r(int64(int16(asU64(a[0])))), nil }
func i64Extend32S(a []uint64) (uint64, *api.Error) { return i64r(int64(int32(asU64(a[0])))), nil }

// --- saturating truncation (0xFC misc) ---

func i32TruncSatF32S(a []uint64) (uint64, *api.Error) { return i32r(moremath.TruncSatS32(float64(asF32(a[0])))), nil }
func i32TruncSatF32U(a []uint64) (uint64, *api.Error) { return u32r(moremath.TruncSatU32(float64(asF32(a[0])))), nil }
func i32TruncSatF64S(a []uint64) (uint64, *api.Error) { return i32r(moremath.TruncSatS32(asF64(a[0]))), nil }
func i32TruncSatF64U(a []uint64) (uint64, *api.Error) { return u32r(moremath.TruncSatU32(asF64(a[0]))), nil }
func i64TruncSatF32S(a []uint64) (uint64, *api.Error) { return i64r(moremath.TruncSatS64(float64(asF32(a[0])))), nil }
func i64TruncSatF32U(a []uint64) (uint64, *api.Error) { return moremath.TruncSatU64(float64(asF32(a[0]))), nil }
func i64TruncSatF64S(a []uint64) (uint64, *api.Error) { return i64r(moremath.TruncSatS64(asF64(a[0]))), nil }
func i64TruncSatF64U(a []uint64) (uint64, *api.Error) { return moremath.TruncSatU64(asF64(a[0])), nil }
