package moremath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWasmCompatMin(t *testing.T) {
	require.True(t, math.IsNaN(WasmCompatMin(math.NaN(), 1)))
	require.True(t, math.IsNaN(WasmCompatMin(1, math.NaN())))
	require.Equal(t, math.Inf(-1), WasmCompatMin(math.Inf(-1), 1))
	require.True(t, math.Signbit(WasmCompatMin(math.Copysign(0, -1), 0)))
	require.Equal(t, 1.0, WasmCompatMin(1, 2))
}

func TestWasmCompatMax(t *testing.T) {
	require.True(t, math.IsNaN(WasmCompatMax(math.NaN(), 1)))
	require.Equal(t, math.Inf(1), WasmCompatMax(math.Inf(1), 1))
	require.False(t, math.Signbit(WasmCompatMax(math.Copysign(0, -1), 0)))
	require.Equal(t, 2.0, WasmCompatMax(1, 2))
}

func TestTruncSat(t *testing.T) {
	require.Equal(t, int32(0), TruncSatS32(math.NaN()))
	require.Equal(t, int32(math.MaxInt32), TruncSatS32(1e20))
	require.Equal(t, int32(math.MinInt32), TruncSatS32(-1e20))
	require.Equal(t, uint32(0), TruncSatU32(-5))
	require.Equal(t, uint32(math.MaxUint32), TruncSatU32(1e20))
	require.Equal(t, int64(math.MinInt64), TruncSatS64(-1e30))
	require.Equal(t, uint64(0), TruncSatU64(math.NaN()))
}

func TestInRangeForTrunc(t *testing.T) {
	require.True(t, InRangeForTruncS32(100))
	require.False(t, InRangeForTruncS32(math.NaN()))
	require.False(t, InRangeForTruncS32(1e20))
	require.True(t, InRangeForTruncU32(100))
	require.False(t, InRangeForTruncU32(-1))
}
