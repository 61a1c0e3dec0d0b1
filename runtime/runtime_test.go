package runtime

import (
	"errors"
	"testing"

	"github.com/Geckos-Ink/fayasm-sub000/api"
	"github.com/Geckos-Ink/fayasm-sub000/module"
	"github.com/stretchr/testify/require"
)

func i32Const(v int32) module.ConstantExpression {
	uv := uint32(v)
	data := []byte{}
	for {
		b := byte(uv & 0x7f)
		uv >>= 7
		if uv != 0 {
			data = append(data, b|0x80)
		} else {
			data = append(data, b)
			break
		}
	}
	return module.ConstantExpression{Opcode: module.OpcodeI32Const, Data: data}
}

func addHostFunc() HostFunction {
	return HostFunction{
		Params:  []api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
		Results: []api.ValueType{api.ValueTypeI32},
		Handle: func(c *HostCall) *api.Error {
			if err := c.Expect(2, 1); err != nil {
				return err
			}
			c.SetI32(0, c.ArgI32(0)+c.ArgI32(1))
			return nil
		},
	}
}

func baseModule() *module.Module {
	return &module.Module{
		Types: []module.FunctionType{
			{Params: []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}},
		},
		Functions: []module.Function{
			{TypeIndex: 0, IsImport: true, ImportModule: "env", ImportName: "add"},
		},
		ImportFunctionCount: 1,
		Memories: []module.Memory{
			{Min: 1, Max: 2, HasMax: true},
		},
		Globals: []module.Global{
			{Type: module.GlobalType{ValType: api.ValueTypeI32, Mutable: false}, Init: i32Const(42)},
		},
		Exports: map[string]module.Export{},
	}
}

func TestAttach_resolvesHostFunctionAndGlobal(t *testing.T) {
	m := baseModule()
	imports := Imports{Functions: MapResolver{Key("env", "add"): addHostFunc()}}

	r, err := Attach(m, imports, NewRuntimeConfig())
	require.NoError(t, err)
	require.Len(t, r.HostFunctions, 1)
	require.Equal(t, uint64(42), r.Globals[0].Value)
	require.Equal(t, uint32(1), r.Memories[0].SizePages())
}

func TestAttach_missingFunctionImportFails(t *testing.T) {
	m := baseModule()
	_, err := Attach(m, Imports{}, NewRuntimeConfig())
	require.Error(t, err)
	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, api.NoModule, apiErr.Kind)
}

func TestAttach_signatureMismatchFails(t *testing.T) {
	m := baseModule()
	bad := HostFunction{Params: []api.ValueType{api.ValueTypeI64}, Results: []api.ValueType{api.ValueTypeI32}}
	imports := Imports{Functions: MapResolver{Key("env", "add"): bad}}
	_, err := Attach(m, imports, NewRuntimeConfig())
	require.Error(t, err)
	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, api.InvalidArgument, apiErr.Kind)
}

func TestMemorySpillLoadRoundTrip(t *testing.T) {
	m := baseModule()
	imports := Imports{Functions: MapResolver{Key("env", "add"): addHostFunc()}}
	r, err := Attach(m, imports, NewRuntimeConfig())
	require.NoError(t, err)

	var spilled []byte
	r.SetHooks(Hooks{
		MemorySpill: func(idx module.Index, data []byte) *api.Error {
			spilled = append([]byte(nil), data...)
			return nil
		},
		MemoryLoad: func(idx module.Index) ([]byte, *api.Error) {
			return append([]byte(nil), spilled...), nil
		},
	})

	require.Nil(t, r.Memories[0].WriteBytes(0, []byte{1, 2, 3, 4}))
	before := append([]byte(nil), r.Memories[0].Data...)

	require.Nil(t, r.SpillMemory(0))
	require.True(t, r.Memories[0].IsSpilled)
	require.Nil(t, r.Memories[0].Data)

	require.Nil(t, r.LoadMemory(0))
	require.False(t, r.Memories[0].IsSpilled)
	require.Equal(t, before, r.Memories[0].Data)
}

func TestCheckTrapFlag_runsHookAndClearsFlag(t *testing.T) {
	m := baseModule()
	imports := Imports{Functions: MapResolver{Key("env", "add"): addHostFunc()}}
	r, err := Attach(m, imports, NewRuntimeConfig())
	require.NoError(t, err)

	var invoked module.Index = 99
	r.SetHooks(Hooks{FunctionTrap: func(idx module.Index) *api.Error {
		invoked = idx
		return nil
	}})

	r.SetFunctionTrapFlag(0)
	require.Nil(t, r.CheckTrapFlag(0))
	require.Equal(t, module.Index(0), invoked)
	require.False(t, r.FunctionTrapFlags[0])

	// second call is a no-op: flag already cleared, hook not re-invoked.
	invoked = 99
	require.Nil(t, r.CheckTrapFlag(0))
	require.Equal(t, module.Index(99), invoked)
}

func TestCheckTrapFlag_noHookInstalledTraps(t *testing.T) {
	m := baseModule()
	imports := Imports{Functions: MapResolver{Key("env", "add"): addHostFunc()}}
	r, err := Attach(m, imports, NewRuntimeConfig())
	require.NoError(t, err)

	r.SetFunctionTrapFlag(0)
	apiErr := r.CheckTrapFlag(0)
	require.NotNil(t, apiErr)
	require.Equal(t, api.Unsupported, apiErr.Kind)
}

func TestRebindImportedMemory(t *testing.T) {
	m := baseModule()
	m.Memories[0].IsImport = true
	m.Memories[0].ImportModule, m.Memories[0].ImportName = "env", "mem"

	ext := NewMemory(module.Memory{Min: 1, Max: 2, HasMax: true}, 65536)
	imports := Imports{
		Functions: MapResolver{Key("env", "add"): addHostFunc()},
		Memories:  map[string]*Memory{Key("env", "mem"): ext},
	}
	r, err := Attach(m, imports, NewRuntimeConfig())
	require.NoError(t, err)
	require.Same(t, ext, r.Memories[0])

	replacement := NewMemory(module.Memory{Min: 1, Max: 2, HasMax: true}, 65536)
	require.Nil(t, r.RebindImportedMemory(0, replacement))
	require.Same(t, replacement, r.Memories[0])

	mismatched := NewMemory(module.Memory{Min: 1, Max: 4, HasMax: true}, 65536)
	apiErr := r.RebindImportedMemory(0, mismatched)
	require.NotNil(t, apiErr)
	require.Equal(t, api.Trap, apiErr.Kind)
	require.Same(t, replacement, r.Memories[0])
}

func TestActiveElementSegmentPopulatesTable(t *testing.T) {
	m := baseModule()
	m.Tables = []module.Table{{Min: 4, HasMax: true, Max: 4, ElemType: api.ValueTypeFuncref}}
	m.Functions = append(m.Functions, module.Function{TypeIndex: 0})
	m.ElementSegments = []module.ElementSegment{
		{
			Type:       api.ValueTypeFuncref,
			Mode:       module.ElementModeActive,
			TableIndex: 0,
			Offset:     i32Const(1),
			Init:       []module.ElementInit{{FuncIndex: 1}},
		},
	}
	imports := Imports{Functions: MapResolver{Key("env", "add"): addHostFunc()}}
	r, err := Attach(m, imports, NewRuntimeConfig())
	require.NoError(t, err)

	ref, apiErr := r.Tables[0].Get(1)
	require.Nil(t, apiErr)
	idx, ok := FuncIndexOf(ref)
	require.True(t, ok)
	require.Equal(t, module.Index(1), idx)
	require.True(t, r.DroppedElem[0])
}

func TestPassiveDataSegmentAvailableForMemoryInit(t *testing.T) {
	m := baseModule()
	m.DataSegments = []module.DataSegment{{Passive: true, Init: []byte{0xAA, 0xBB}}}
	imports := Imports{Functions: MapResolver{Key("env", "add"): addHostFunc()}}
	r, err := Attach(m, imports, NewRuntimeConfig())
	require.NoError(t, err)

	b, ok := r.DataSegmentBytes(0)
	require.True(t, ok)
	require.Equal(t, []byte{0xAA, 0xBB}, b)
	require.False(t, r.DroppedData[0])

	r.DropData(0)
	_, ok = r.DataSegmentBytes(0)
	require.False(t, ok)
	require.True(t, r.DroppedData[0])
}
