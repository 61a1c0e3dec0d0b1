// Package moremath implements floating-point helpers whose semantics in
// WebAssembly differ subtly from what the Go standard library provides,
// plus the saturating truncation used by the trunc_sat opcode family.
package moremath

import "math"

// WasmCompatMin is like math.Min, except any NaN operand always yields
// NaN (math.Min only does that for one particular signature) and -0 is
// treated as strictly less than +0.
func WasmCompatMin(x, y float64) float64 {
	switch {
	case math.IsNaN(x) || math.IsNaN(y):
		return math.NaN()
	case math.IsInf(x, -1) || math.IsInf(y, -1):
		return math.Inf(-1)
	case x == 0 && x == y:
		if math.Signbit(x) {
			return x
		}
		return y
	}
	if x < y {
		return x
	}
	return y
}

// WasmCompatMax is the Wasm-compatible counterpart to WasmCompatMin.
func WasmCompatMax(x, y float64) float64 {
	switch {
	case math.IsNaN(x) || math.IsNaN(y):
		return math.NaN()
	case math.IsInf(x, 1) || math.IsInf(y, 1):
		return math.Inf(1)
	case x == 0 && x == y:
		if math.Signbit(x) {
			return y
		}
		return x
	}
	if x > y {
		return x
	}
	return y
}

// WasmCompatMin32 and WasmCompatMax32 are the float32 counterparts.
func WasmCompatMin32(x, y float32) float32 {
	return float32(WasmCompatMin(float64(x), float64(y)))
}

func WasmCompatMax32(x, y float32) float32 {
	return float32(WasmCompatMax(float64(x), float64(y)))
}

// TruncSatS32 implements i32.trunc_sat_f64_s / f32_s style saturation:
// NaN truncates to 0, values outside the int32 range clamp to the
// boundary instead of trapping.
func TruncSatS32(v float64) int32 {
	if math.IsNaN(v) {
		return 0
	}
	if v >= math.MaxInt32 {
		return math.MaxInt32
	}
	if v <= math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}

// TruncSatU32 is the unsigned counterpart to TruncSatS32.
func TruncSatU32(v float64) uint32 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}

// TruncSatS64 is the 64-bit signed counterpart to TruncSatS32.
func TruncSatS64(v float64) int64 {
	if math.IsNaN(v) {
		return 0
	}
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	if v <= math.MinInt64 {
		return math.MinInt64
	}
	return int64(v)
}

// TruncSatU64 is the 64-bit unsigned counterpart to TruncSatU32.
func TruncSatU64(v float64) uint64 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(v)
}

// InRangeForTruncS32 reports whether v can be truncated to int32 without
// trapping (non-saturating trunc). Out-of-range and NaN both fail.
func InRangeForTruncS32(v float64) bool {
	return !math.IsNaN(v) && v > math.MinInt32-1 && v < math.MaxInt32+1
}

// InRangeForTruncU32 is the unsigned counterpart.
func InRangeForTruncU32(v float64) bool {
	return !math.IsNaN(v) && v > -1 && v < math.MaxUint32+1
}

// InRangeForTruncS64 is the 64-bit signed counterpart. Note the boundary
// comparisons use float64 approximations of the int64 range since it
// cannot be represented exactly.
func InRangeForTruncS64(v float64) bool {
	return !math.IsNaN(v) && v >= math.MinInt64 && v < math.MaxInt64
}

// InRangeForTruncU64 is the 64-bit unsigned counterpart.
func InRangeForTruncU64(v float64) bool {
	return !math.IsNaN(v) && v > -1 && v < math.MaxUint64
}
