package job

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Geckos-Ink/fayasm-sub000/api"
	"github.com/Geckos-Ink/fayasm-sub000/internal/leb128"
	"github.com/Geckos-Ink/fayasm-sub000/jit"
	"github.com/Geckos-Ink/fayasm-sub000/module"
	"github.com/Geckos-Ink/fayasm-sub000/runtime"
)

// fakeSource is a flat byte buffer addressed by absolute offset, playing
// the decoder.Source role a Stream reads function bodies from.
type fakeSource struct{ buf []byte }

func (f *fakeSource) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, f.buf[off:])
	return n, nil
}

func u32(v uint32) []byte { return leb128.EncodeUint32(v) }
func s32(v int32) []byte  { return leb128.EncodeInt32(v) }

func appendAll(chunks ...[]byte) []byte {
	var out []byte
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// localGet/localSet/call/memarg etc. build one instruction's bytes.
func localGet(idx uint32) []byte { return appendAll([]byte{module.OpcodeLocalGet}, u32(idx)) }
func localSet(idx uint32) []byte { return appendAll([]byte{module.OpcodeLocalSet}, u32(idx)) }
func call(idx uint32) []byte     { return appendAll([]byte{module.OpcodeCall}, u32(idx)) }
func i32Const(v int32) []byte    { return appendAll([]byte{module.OpcodeI32Const}, s32(v)) }
func i64Const(v int64) []byte    { return appendAll([]byte{module.OpcodeI64Const}, leb128.EncodeInt64(v)) }
func memarg(op byte, align, offset uint32) []byte {
	return appendAll([]byte{op}, u32(align), u32(offset))
}

const end = module.OpcodeEnd

// voidBlockType is the empty block-type immediate (0x40): no params, no
// results.
const voidBlockType = byte(0x40)

func beginBlock(vt byte) []byte { return []byte{module.OpcodeBlock, vt} }
func beginLoop(vt byte) []byte  { return []byte{module.OpcodeLoop, vt} }
func beginIf(vt byte) []byte    { return []byte{module.OpcodeIf, vt} }

var elseOp = []byte{module.OpcodeElse}

func br(depth uint32) []byte   { return appendAll([]byte{module.OpcodeBr}, u32(depth)) }
func brIf(depth uint32) []byte { return appendAll([]byte{module.OpcodeBrIf}, u32(depth)) }

func brTable(labels []uint32, def uint32) []byte {
	out := appendAll([]byte{module.OpcodeBrTable}, u32(uint32(len(labels))))
	for _, l := range labels {
		out = append(out, u32(l)...)
	}
	out = append(out, u32(def)...)
	return out
}

// buildModule assembles a module image (one concatenated byte buffer)
// plus a module.Module describing funcs/types/memories pointing into it,
// mirroring what the decoder package would have produced.
type moduleBuilder struct {
	image []byte
	mod   *module.Module
}

func newModuleBuilder() *moduleBuilder {
	return &moduleBuilder{mod: &module.Module{Exports: map[string]module.Export{}}}
}

func (b *moduleBuilder) addType(params, results []api.ValueType) module.Index {
	b.mod.Types = append(b.mod.Types, module.FunctionType{Params: params, Results: results})
	return module.Index(len(b.mod.Types) - 1)
}

func (b *moduleBuilder) addImportFunc(typeIdx module.Index, modName, name string) module.Index {
	b.mod.Functions = append(b.mod.Functions, module.Function{
		TypeIndex: typeIdx, IsImport: true, ImportModule: modName, ImportName: name,
	})
	b.mod.ImportFunctionCount++
	return module.Index(len(b.mod.Functions) - 1)
}

func (b *moduleBuilder) addDefinedFunc(typeIdx module.Index, locals []api.ValueType, body []byte) module.Index {
	offset := uint32(len(b.image))
	b.image = append(b.image, body...)
	b.mod.Functions = append(b.mod.Functions, module.Function{
		TypeIndex: typeIdx, BodyOffset: offset, BodyLength: uint32(len(body)), Locals: locals,
	})
	return module.Index(len(b.mod.Functions) - 1)
}

func (b *moduleBuilder) source() *fakeSource { return &fakeSource{buf: b.image} }

func attach(t *testing.T, b *moduleBuilder, imports runtime.Imports) *runtime.Runtime {
	t.Helper()
	rt, err := runtime.Attach(b.mod, imports, runtime.NewRuntimeConfig())
	require.NoError(t, err)
	return rt
}

func TestJob_stackArithmetic(t *testing.T) {
	b := newModuleBuilder()
	ft := b.addType([]api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32})
	fn := b.addDefinedFunc(ft, nil, appendAll(localGet(0), localGet(1), []byte{module.OpcodeI32Add}, []byte{end}))

	rt := attach(t, b, runtime.Imports{})
	j := NewJob(rt, b.source(), nil)

	results, err := j.Call(fn, []uint64{7, 5})
	require.Nil(t, err)
	require.Equal(t, []uint64{12}, results)
	require.Equal(t, StateFinished, j.State())
}

func TestJob_divisionByZeroTraps(t *testing.T) {
	b := newModuleBuilder()
	ft := b.addType([]api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32})
	fn := b.addDefinedFunc(ft, nil, appendAll(localGet(0), localGet(1), []byte{module.OpcodeI32DivS}, []byte{end}))

	rt := attach(t, b, runtime.Imports{})
	j := NewJob(rt, b.source(), nil)

	_, err := j.Call(fn, []uint64{7, 0})
	require.NotNil(t, err)
	require.Equal(t, api.Trap, err.Kind)
	require.Equal(t, api.TrapReasonIntegerDivideByZero, err.Reason)
	require.Equal(t, StateSuspendedTrap, j.State())
}

func TestJob_hostImportCall(t *testing.T) {
	b := newModuleBuilder()
	addFt := b.addType([]api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32})
	addImport := b.addImportFunc(addFt, "env", "add")

	callerFt := b.addType(nil, []api.ValueType{api.ValueTypeI32})
	caller := b.addDefinedFunc(callerFt, nil, appendAll(i32Const(3), i32Const(4), call(uint32(addImport)), []byte{end}))

	hostAdd := runtime.HostFunction{
		Params:  []api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
		Results: []api.ValueType{api.ValueTypeI32},
		Handle: func(c *runtime.HostCall) *api.Error {
			if err := c.Expect(2, 1); err != nil {
				return err
			}
			c.SetI32(0, c.ArgI32(0)+c.ArgI32(1))
			return nil
		},
	}
	rt := attach(t, b, runtime.Imports{Functions: runtime.MapResolver{runtime.Key("env", "add"): hostAdd}})
	j := NewJob(rt, b.source(), nil)

	results, err := j.Call(caller, nil)
	require.Nil(t, err)
	require.Equal(t, []uint64{7}, results)
}

func TestJob_importedMemoryLoad(t *testing.T) {
	b := newModuleBuilder()
	ft := b.addType(nil, []api.ValueType{api.ValueTypeI32})
	fn := b.addDefinedFunc(ft, nil, appendAll(i32Const(0), memarg(module.OpcodeI32Load, 2, 0), []byte{end}))
	b.mod.Memories = []module.Memory{{Min: 1, Max: 1, HasMax: true, IsImport: true, ImportModule: "env", ImportName: "mem"}}

	mem := runtime.NewMemory(module.Memory{Min: 1, Max: 1, HasMax: true}, 65536)
	require.Nil(t, mem.WriteBytes(0, []byte{0x2A, 0, 0, 0}))

	rt := attach(t, b, runtime.Imports{Memories: map[string]*runtime.Memory{runtime.Key("env", "mem"): mem}})
	j := NewJob(rt, b.source(), nil)

	results, err := j.Call(fn, nil)
	require.Nil(t, err)
	require.Equal(t, []uint64{42}, results)
}

func TestJob_multiValueReturnOrdering(t *testing.T) {
	b := newModuleBuilder()
	ft := b.addType(nil, []api.ValueType{api.ValueTypeI32, api.ValueTypeI64})
	fn := b.addDefinedFunc(ft, nil, appendAll(i32Const(100), i64Const(200), []byte{end}))

	rt := attach(t, b, runtime.Imports{})
	j := NewJob(rt, b.source(), nil)

	results, err := j.Call(fn, nil)
	require.Nil(t, err)
	require.Equal(t, []uint64{100, 200}, results)
}

func TestJob_jitCacheSpillLoadRoundTrip(t *testing.T) {
	b := newModuleBuilder()
	ftA := b.addType([]api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32})
	fnA := b.addDefinedFunc(ftA, nil, appendAll(localGet(0), localGet(1), []byte{module.OpcodeI32Add}, []byte{end}))
	ftB := b.addType([]api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32})
	fnB := b.addDefinedFunc(ftB, nil, appendAll(localGet(0), localGet(1), []byte{module.OpcodeI32Sub}, []byte{end}))

	rt := attach(t, b, runtime.Imports{})

	jc := jit.NewJitContext(1) // tiny budget: every admission past the first evicts.
	spilled := map[module.Index][]byte{}
	var spillCount, loadCount int
	jc.SetHooks(
		func(idx module.Index, blob []byte) *api.Error {
			spillCount++
			spilled[idx] = append([]byte(nil), blob...)
			return nil
		},
		func(idx module.Index) ([]byte, *api.Error) {
			loadCount++
			return spilled[idx], nil
		},
	)

	src := b.source()

	run := func(fn module.Index, a, bArg uint64) []uint64 {
		j := NewJob(rt, src, jc)
		results, err := j.Call(fn, []uint64{a, bArg})
		require.Nil(t, err)
		return results
	}

	require.Equal(t, []uint64{12}, run(fnA, 7, 5))  // admits A
	require.Equal(t, []uint64{3}, run(fnB, 8, 5))   // admits B, evicts A (spill #1)
	require.Equal(t, []uint64{12}, run(fnA, 7, 5))  // reloads A (load #1), evicts B (spill #2)
	require.Equal(t, []uint64{3}, run(fnB, 8, 5))   // reloads B (load #2)

	require.GreaterOrEqual(t, spillCount+loadCount, 3)
	require.NotEmpty(t, spilled[fnA])
	require.NotEmpty(t, spilled[fnB])

	// Re-running fnA after its reload still yields the same result as
	// the original cache-miss run: the blob round trip is byte-for-byte
	// faithful to the original decomposition.
	require.Equal(t, []uint64{12}, run(fnA, 7, 5))
}

func TestJob_callDepthExceededTraps(t *testing.T) {
	b := newModuleBuilder()
	ft := b.addType(nil, nil)
	var fn module.Index
	fn = b.addDefinedFunc(ft, nil, nil) // body patched below once fn's own index is known
	body := appendAll(call(uint32(fn)), []byte{end})
	b.image = append(b.image[:0:0], body...)
	b.mod.Functions[fn].BodyLength = uint32(len(body))

	cfg := runtime.NewRuntimeConfig().WithMaxCallDepth(4)
	attached, err := runtime.Attach(b.mod, runtime.Imports{}, cfg)
	require.NoError(t, err)

	j := NewJob(attached, b.source(), nil)
	_, jerr := j.Call(fn, nil)
	require.NotNil(t, jerr)
	require.Equal(t, api.CallDepthExceeded, jerr.Kind)
	require.Equal(t, StateSuspendedTrap, j.State())
}

func TestJob_memoryGrowByZeroAndPastMax(t *testing.T) {
	b := newModuleBuilder()
	ft := b.addType(nil, []api.ValueType{api.ValueTypeI32})
	fnZero := b.addDefinedFunc(ft, nil, appendAll(i32Const(0), []byte{module.OpcodeMemoryGrow}, u32(0), []byte{end}))
	fnPast := b.addDefinedFunc(ft, nil, appendAll(i32Const(10), []byte{module.OpcodeMemoryGrow}, u32(0), []byte{end}))
	b.mod.Memories = []module.Memory{{Min: 1, Max: 2, HasMax: true}}

	rt := attach(t, b, runtime.Imports{})

	j1 := NewJob(rt, b.source(), nil)
	results, err := j1.Call(fnZero, nil)
	require.Nil(t, err)
	require.Equal(t, []uint64{1}, results) // grow by zero returns current size, unchanged

	j2 := NewJob(rt, b.source(), nil)
	results, err = j2.Call(fnPast, nil)
	require.Nil(t, err)
	require.Equal(t, []uint64{0xFFFFFFFF}, results) // growth past Max fails with the sentinel
}

func TestJob_zeroLengthBulkOpsAreNoOps(t *testing.T) {
	b := newModuleBuilder()
	ft := b.addType(nil, nil)
	// memory.copy with length 0 against an otherwise empty memory, and
	// memory.init length 0 against a dropped data segment: both must
	// succeed without touching memory, per the bounds-checked-before-
	// acting rule.
	body := appendAll(
		i32Const(0), i32Const(0), i32Const(0),
		[]byte{module.OpcodeMiscPrefix}, u32(uint32(module.MiscOpcodeMemoryCopy)), u32(0), u32(0),
		i32Const(0), i32Const(0), i32Const(0),
		[]byte{module.OpcodeMiscPrefix}, u32(uint32(module.MiscOpcodeMemoryInit)), u32(0), u32(0),
		[]byte{end},
	)
	fn := b.addDefinedFunc(ft, nil, body)
	b.mod.Memories = []module.Memory{{Min: 1, Max: 1, HasMax: true}}
	b.mod.DataSegments = []module.DataSegment{{Passive: true, Init: []byte{0xAA}}}

	rt := attach(t, b, runtime.Imports{})
	rt.DropData(0)

	j := NewJob(rt, b.source(), nil)
	_, err := j.Call(fn, nil)
	require.Nil(t, err)
}

// TestJob_loopBackBranchMultipleIterations runs a loop body three times
// (two taken back-branches, one not-taken that falls through to the
// loop's end), summing 1+2+3 into an accumulator local. A control frame
// resurrected on every back-branch without also double-pushing it is
// exactly what keeps the control stack from drifting across iterations.
func TestJob_loopBackBranchMultipleIterations(t *testing.T) {
	b := newModuleBuilder()
	ft := b.addType(nil, []api.ValueType{api.ValueTypeI32})
	body := appendAll(
		beginLoop(voidBlockType),
		localGet(0), i32Const(1), []byte{module.OpcodeI32Add}, localSet(0), // i++
		localGet(1), localGet(0), []byte{module.OpcodeI32Add}, localSet(1), // acc += i
		localGet(0), i32Const(3), []byte{module.OpcodeI32LtS}, brIf(0), // loop while i < 3
		[]byte{end}, // loop end
		localGet(1),
		[]byte{end}, // function terminator
	)
	fn := b.addDefinedFunc(ft, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, body)

	rt := attach(t, b, runtime.Imports{})
	j := NewJob(rt, b.source(), nil)

	results, err := j.Call(fn, nil)
	require.Nil(t, err)
	require.Equal(t, []uint64{6}, results)
	require.Equal(t, StateFinished, j.State())
}

func TestJob_ifElseSelectsBranch(t *testing.T) {
	b := newModuleBuilder()
	ft := b.addType([]api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32})
	body := appendAll(
		localGet(0),
		beginIf(byte(api.ValueTypeI32)),
		i32Const(111),
		elseOp,
		i32Const(222),
		[]byte{end}, // if end
		[]byte{end}, // function terminator
	)
	fn := b.addDefinedFunc(ft, nil, body)

	rt := attach(t, b, runtime.Imports{})

	j1 := NewJob(rt, b.source(), nil)
	results, err := j1.Call(fn, []uint64{1})
	require.Nil(t, err)
	require.Equal(t, []uint64{111}, results)

	j2 := NewJob(rt, b.source(), nil)
	results, err = j2.Call(fn, []uint64{0})
	require.Nil(t, err)
	require.Equal(t, []uint64{222}, results)
}

func TestJob_brIfForwardBranchOutOfBlock(t *testing.T) {
	b := newModuleBuilder()
	ft := b.addType([]api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32})
	body := appendAll(
		beginBlock(byte(api.ValueTypeI32)),
		i32Const(10),
		localGet(0),
		brIf(0), // branch out carrying 10 when the arg is nonzero
		[]byte{module.OpcodeDrop},
		i32Const(20),
		[]byte{end}, // block end
		[]byte{end}, // function terminator
	)
	fn := b.addDefinedFunc(ft, nil, body)

	rt := attach(t, b, runtime.Imports{})

	j1 := NewJob(rt, b.source(), nil)
	results, err := j1.Call(fn, []uint64{1})
	require.Nil(t, err)
	require.Equal(t, []uint64{10}, results)

	j2 := NewJob(rt, b.source(), nil)
	results, err = j2.Call(fn, []uint64{0})
	require.Nil(t, err)
	require.Equal(t, []uint64{20}, results)
}

func TestJob_unconditionalBrForwardBranchOutOfBlock(t *testing.T) {
	b := newModuleBuilder()
	ft := b.addType(nil, []api.ValueType{api.ValueTypeI32})
	body := appendAll(
		beginBlock(byte(api.ValueTypeI32)),
		i32Const(42),
		br(0), // unconditionally skip the unreachable instructions below
		i32Const(0),
		[]byte{module.OpcodeUnreachable},
		[]byte{end}, // block end
		[]byte{end}, // function terminator
	)
	fn := b.addDefinedFunc(ft, nil, body)

	rt := attach(t, b, runtime.Imports{})
	j := NewJob(rt, b.source(), nil)

	results, err := j.Call(fn, nil)
	require.Nil(t, err)
	require.Equal(t, []uint64{42}, results)
}

// TestJob_brTableSelectsTarget nests two blocks and uses br_table to jump
// to either: branching to the inner block (depth 0) falls through extra
// tagging code before the outer block's end, while branching straight to
// the outer block (depth 1) skips it, so the result value distinguishes
// which target br_table actually picked.
func TestJob_brTableSelectsTarget(t *testing.T) {
	b := newModuleBuilder()
	ft := b.addType([]api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32})
	body := appendAll(
		beginBlock(byte(api.ValueTypeI32)), // outer: depth 1 from the br_table
		beginBlock(byte(api.ValueTypeI32)), // inner: depth 0 from the br_table
		i32Const(1),
		localGet(0),
		brTable([]uint32{0, 1}, 1),
		[]byte{end}, // inner end: reached only via the depth-0 branch
		i32Const(10),
		[]byte{module.OpcodeI32Add},
		[]byte{end}, // outer end
		[]byte{end}, // function terminator
	)
	fn := b.addDefinedFunc(ft, nil, body)

	rt := attach(t, b, runtime.Imports{})

	j0 := NewJob(rt, b.source(), nil)
	results, err := j0.Call(fn, []uint64{0})
	require.Nil(t, err)
	require.Equal(t, []uint64{11}, results) // selector 0 -> inner -> tagged +10

	j1 := NewJob(rt, b.source(), nil)
	results, err = j1.Call(fn, []uint64{1})
	require.Nil(t, err)
	require.Equal(t, []uint64{1}, results) // selector 1 -> outer directly, no tag
}
