package stack

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Geckos-Ink/fayasm-sub000/api"
)

func TestValueStack_pushPop(t *testing.T) {
	s := NewValueStack(4)
	require.NoError(t, s.Push(7))
	require.NoError(t, s.Push(5))
	require.Equal(t, 2, s.Len())

	vs, err := s.PeekValues(2)
	require.NoError(t, err)
	require.Equal(t, []uint64{7, 5}, vs)

	v, err := s.Pop()
	require.NoError(t, err)
	require.EqualValues(t, 5, v)

	v, err = s.Pop()
	require.NoError(t, err)
	require.EqualValues(t, 7, v)
}

func TestValueStack_underflow(t *testing.T) {
	s := NewValueStack(4)
	_, err := s.Pop()
	require.ErrorIs(t, err, api.ErrStackUnderflow)
}

func TestValueStack_overflow(t *testing.T) {
	s := NewValueStack(2)
	require.NoError(t, s.Push(1))
	require.NoError(t, s.Push(2))
	require.Error(t, s.Push(3))
}

func TestValueStack_truncateTo(t *testing.T) {
	s := NewValueStack(8)
	for i := uint64(0); i < 5; i++ {
		require.NoError(t, s.Push(i))
	}
	require.NoError(t, s.TruncateTo(2))
	require.Equal(t, 2, s.Len())
}

func TestValueStack_floatBitsRoundTrip(t *testing.T) {
	s := NewValueStack(4)
	bits := math.Float64bits(3.5)
	require.NoError(t, s.Push(bits))
	v, err := s.Pop()
	require.NoError(t, err)
	require.Equal(t, 3.5, math.Float64frombits(v))
}

func TestControlStack_branchDepth(t *testing.T) {
	c := NewControlStack()
	c.Push(ControlFrame{Kind: 0x02, ContinuationPC: 10})
	c.Push(ControlFrame{Kind: 0x03, ContinuationPC: 20, IsLoop: true})

	f, err := c.At(0)
	require.NoError(t, err)
	require.True(t, f.IsLoop)

	f, err = c.At(1)
	require.NoError(t, err)
	require.False(t, f.IsLoop)

	_, err = c.At(2)
	require.Error(t, err)
}

func TestCallStack_depthExceeded(t *testing.T) {
	c := NewCallStack(2)
	require.NoError(t, c.Push(CallFrame{}))
	require.NoError(t, c.Push(CallFrame{}))
	err := c.Push(CallFrame{})
	require.ErrorIs(t, err, api.ErrCallDepthExceeded)
}

func TestCallStack_currentAfterPop(t *testing.T) {
	c := NewCallStack(4)
	require.NoError(t, c.Push(CallFrame{FunctionIndex: 1}))
	f, ok := c.Current()
	require.True(t, ok)
	require.EqualValues(t, 1, f.FunctionIndex)

	_, err := c.Pop()
	require.NoError(t, err)
	_, ok = c.Current()
	require.False(t, ok)
}
