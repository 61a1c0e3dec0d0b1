package opcode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Geckos-Ink/fayasm-sub000/module"
)

func TestLookup_i32Add(t *testing.T) {
	d, ok := Lookup(module.OpcodeI32Add)
	require.True(t, ok)
	require.Equal(t, CategoryArithmetic, d.Category)
	require.NotNil(t, d.Handler)

	v, err := d.Handler([]uint64{7, 5})
	require.Nil(t, err)
	require.EqualValues(t, 12, v)
}

func TestLookup_divByZeroTraps(t *testing.T) {
	d, ok := Lookup(module.OpcodeI32DivS)
	require.True(t, ok)
	_, err := d.Handler([]uint64{1, 0})
	require.NotNil(t, err)
	require.Equal(t, "integer-divide-by-zero", err.Reason.String())
}

func TestLookup_controlHasNoHandler(t *testing.T) {
	d, ok := Lookup(module.OpcodeCall)
	require.True(t, ok)
	require.Nil(t, d.Handler)
	require.Equal(t, CategoryControl, d.Category)
}

func TestLookup_unassignedByteFails(t *testing.T) {
	_, ok := Lookup(0x1D) // reserved, no meaning assigned
	require.False(t, ok)
}

func TestMemArgDescriptor(t *testing.T) {
	d, ok := Lookup(module.OpcodeI32Load8S)
	require.True(t, ok)
	require.True(t, d.HasMemArg)
	require.Equal(t, 8, d.Width)
	require.True(t, d.Signed)
}

func TestRegisterWindow_fifoAndEviction(t *testing.T) {
	var w RegisterWindow
	w.Enqueue(1)
	w.Enqueue(2)
	w.Enqueue(3)
	w.Enqueue(4)
	w.Enqueue(5) // evicts 1

	v, ok := w.Dequeue()
	require.True(t, ok)
	require.EqualValues(t, 2, v)
	require.Equal(t, 3, w.Len())
}

func TestRegisterWindow_emptyDequeue(t *testing.T) {
	var w RegisterWindow
	_, ok := w.Dequeue()
	require.False(t, ok)
}
