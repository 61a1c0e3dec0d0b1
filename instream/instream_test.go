package instream

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Geckos-Ink/fayasm-sub000/api"
)

type fakeSource struct{ buf []byte }

func (f *fakeSource) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, f.buf[off:])
	return n, nil
}

func TestStream_loadAndReadVarint(t *testing.T) {
	src := &fakeSource{buf: []byte{0xaa, 0xbb, 0xE5, 0x8E, 0x26, 0x0B}}
	s := New(src)
	require.NoError(t, s.Load(3, 2, 4))

	v, err := s.ReadULEB32()
	require.NoError(t, err)
	require.EqualValues(t, 624485, v)

	b, err := s.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(0x0B), b)
	require.True(t, s.AtEnd())
}

func TestStream_seekPastEndTraps(t *testing.T) {
	src := &fakeSource{buf: []byte{1, 2, 3}}
	s := New(src)
	require.NoError(t, s.Load(0, 0, 3))
	require.NoError(t, s.Advance(3))
	_, err := s.ReadByte()
	require.Error(t, err)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, api.Trap, apiErr.Kind)
}

func TestStream_setPCResumesBranchTarget(t *testing.T) {
	src := &fakeSource{buf: []byte{1, 2, 3, 4}}
	s := New(src)
	require.NoError(t, s.Load(0, 0, 4))
	require.NoError(t, s.SetPC(2))
	b, err := s.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(3), b)
}

func TestLocate(t *testing.T) {
	ranges := []FuncRange{{Offset: 0, Length: 0}, {Offset: 100, Length: 10}, {Offset: 110, Length: 20}}
	fi, intra, ok := Locate(ranges, 115)
	require.True(t, ok)
	require.EqualValues(t, 2, fi)
	require.Equal(t, 5, intra)

	_, _, ok = Locate(ranges, 5)
	require.False(t, ok)
}
