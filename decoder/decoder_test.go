package decoder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Geckos-Ink/fayasm-sub000/api"
	"github.com/Geckos-Ink/fayasm-sub000/module"
)

// uleb encodes an unsigned LEB128 varint, used only to hand-assemble the
// tiny binaries below.
func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func section(id byte, content []byte) []byte {
	out := []byte{id}
	out = append(out, uleb(uint32(len(content)))...)
	return append(out, content...)
}

// addTwoModule builds: (module (func (export "add") (param i32 i32)
// (result i32) local.get 0 local.get 1 i32.add)).
func addTwoModule(t *testing.T) []byte {
	t.Helper()
	var b []byte
	b = append(b, wasmMagic[:]...)
	b = append(b, 1, 0, 0, 0)

	typeSec := []byte{1} // one type
	typeSec = append(typeSec, 0x60)
	typeSec = append(typeSec, uleb(2)...)
	typeSec = append(typeSec, api.ValueTypeI32, api.ValueTypeI32)
	typeSec = append(typeSec, uleb(1)...)
	typeSec = append(typeSec, api.ValueTypeI32)
	b = append(b, section(sectionIDType, typeSec)...)

	funcSec := []byte{1, 0} // one function, type index 0
	b = append(b, section(sectionIDFunction, funcSec)...)

	exportSec := []byte{1} // one export
	exportSec = append(exportSec, uleb(3)...)
	exportSec = append(exportSec, []byte("add")...)
	exportSec = append(exportSec, api.ExternTypeFunc)
	exportSec = append(exportSec, 0)
	b = append(b, section(sectionIDExport, exportSec)...)

	body := []byte{
		0, // no locals
		module.OpcodeLocalGet, 0,
		module.OpcodeLocalGet, 1,
		module.OpcodeI32Add,
		module.OpcodeEnd,
	}
	codeSec := []byte{1}
	codeSec = append(codeSec, uleb(uint32(len(body)))...)
	codeSec = append(codeSec, body...)
	b = append(b, section(sectionIDCode, codeSec)...)

	return b
}

func TestDecode_addTwo(t *testing.T) {
	bin := addTwoModule(t)
	m, err := Decode(NewMemorySource(bin))
	require.NoError(t, err)

	require.Len(t, m.Types, 1)
	require.Equal(t, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, m.Types[0].Params)
	require.Equal(t, []api.ValueType{api.ValueTypeI32}, m.Types[0].Results)

	require.Len(t, m.Functions, 1)
	require.False(t, m.Functions[0].IsImport)
	require.EqualValues(t, 0, m.Functions[0].TypeIndex)
	require.Equal(t, uint32(6), m.Functions[0].BodyLength)

	exp, ok := m.Exports["add"]
	require.True(t, ok)
	require.Equal(t, api.ExternTypeFunc, exp.Type)
	require.EqualValues(t, 0, exp.Index)
}

func TestDecode_badMagic(t *testing.T) {
	_, err := Decode(NewMemorySource([]byte{1, 2, 3, 4, 1, 0, 0, 0}))
	require.Error(t, err)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, api.Unsupported, apiErr.Kind)
}

func TestDecode_badVersion(t *testing.T) {
	bin := append(append([]byte{}, wasmMagic[:]...), 2, 0, 0, 0)
	_, err := Decode(NewMemorySource(bin))
	require.Error(t, err)
}

func TestDecode_globalInitConst(t *testing.T) {
	var b []byte
	b = append(b, wasmMagic[:]...)
	b = append(b, 1, 0, 0, 0)

	globalSec := []byte{1} // one global
	globalSec = append(globalSec, api.ValueTypeI32, 1 /* mutable */)
	globalSec = append(globalSec, module.OpcodeI32Const)
	globalSec = append(globalSec, uleb(42)...)
	globalSec = append(globalSec, module.OpcodeEnd)
	b = append(b, section(sectionIDGlobal, globalSec)...)

	m, err := Decode(NewMemorySource(b))
	require.NoError(t, err)
	require.Len(t, m.Globals, 1)
	require.True(t, m.Globals[0].Type.Mutable)

	v, isNull, err := EvalConstExpr(m.Globals[0].Init, nil)
	require.NoError(t, err)
	require.False(t, isNull)
	require.EqualValues(t, 42, int32(v))
}

func TestDecode_unknownSection(t *testing.T) {
	bin := append(append([]byte{}, wasmMagic[:]...), 1, 0, 0, 0)
	bin = append(bin, section(99, nil)...)
	_, err := Decode(NewMemorySource(bin))
	require.Error(t, err)
}
