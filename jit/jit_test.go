package jit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Geckos-Ink/fayasm-sub000/api"
	"github.com/Geckos-Ink/fayasm-sub000/internal/leb128"
	"github.com/Geckos-Ink/fayasm-sub000/module"
)

func u32(v uint32) []byte { return leb128.EncodeUint32(v) }
func s32(v int32) []byte  { return leb128.EncodeInt32(v) }

func appendAll(chunks ...[]byte) []byte {
	var out []byte
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// arithBody is local.get 0; local.get 1; i32.add; end.
func arithBody() []byte {
	return appendAll(
		[]byte{module.OpcodeLocalGet}, u32(0),
		[]byte{module.OpcodeLocalGet}, u32(1),
		[]byte{module.OpcodeI32Add},
		[]byte{module.OpcodeEnd},
	)
}

func TestPrepare_decodesOpsAndAssignsDescriptors(t *testing.T) {
	prog, err := Prepare(0, arithBody())
	require.Nil(t, err)
	require.Len(t, prog.Ops, 4)

	require.Equal(t, module.Opcode(module.OpcodeLocalGet), prog.Ops[0].Opcode)
	require.Equal(t, []uint64{0}, prog.Ops[0].Immediates)
	require.Equal(t, []uint64{1}, prog.Ops[1].Immediates)

	require.Equal(t, module.Opcode(module.OpcodeI32Add), prog.Ops[2].Opcode)
	require.NotNil(t, prog.Ops[2].Descriptor)

	require.Equal(t, module.Opcode(module.OpcodeEnd), prog.Ops[3].Opcode)
}

func TestPrepare_blockTypeImmediateShapes(t *testing.T) {
	// block (empty) ... end, and i32.const 42 inside.
	body := appendAll(
		[]byte{module.OpcodeBlock, 0x40},
		[]byte{module.OpcodeI32Const}, s32(42),
		[]byte{module.OpcodeEnd},
		[]byte{module.OpcodeEnd},
	)
	prog, err := Prepare(0, body)
	require.Nil(t, err)
	require.Equal(t, uint64(0x40), prog.Ops[0].Immediates[0])
	require.Equal(t, uint64(uint32(42)), prog.Ops[1].Immediates[0])
}

func TestPrepare_memArgDecodesAlignAndOffset(t *testing.T) {
	body := appendAll(
		[]byte{module.OpcodeI32Const}, s32(0),
		[]byte{module.OpcodeI32Load}, u32(2), u32(16),
		[]byte{module.OpcodeEnd},
	)
	prog, err := Prepare(0, body)
	require.Nil(t, err)
	loadOp := prog.Ops[1]
	require.Equal(t, module.Opcode(module.OpcodeI32Load), loadOp.Opcode)
	require.Equal(t, []uint64{2, 16, 0}, loadOp.Immediates)
}

func TestPrepare_memArgWithExplicitMemoryIndex(t *testing.T) {
	// align=1 with the multi-memory flag (0x40) set, memory index 3,
	// offset 8.
	body := appendAll(
		[]byte{module.OpcodeI32Const}, s32(0),
		[]byte{module.OpcodeI32Load}, u32(1|0x40), u32(3), u32(8),
		[]byte{module.OpcodeEnd},
	)
	prog, err := Prepare(0, body)
	require.Nil(t, err)
	loadOp := prog.Ops[1]
	require.Equal(t, []uint64{1, 8, 3}, loadOp.Immediates)

	blob := ExportBlob(prog)
	require.Equal(t, body, blob)
}

func TestPrepare_brTableImmediates(t *testing.T) {
	body := appendAll(
		[]byte{module.OpcodeI32Const}, s32(1),
		[]byte{module.OpcodeBrTable}, u32(2), u32(0), u32(1), u32(2),
		[]byte{module.OpcodeEnd},
	)
	prog, err := Prepare(0, body)
	require.Nil(t, err)
	brTable := prog.Ops[1]
	// [count, label0, label1, default]
	require.Equal(t, []uint64{2, 0, 1, 2}, brTable.Immediates)
}

func TestPrepare_unknownOpcodeFails(t *testing.T) {
	_, err := Prepare(0, []byte{0xFF})
	require.NotNil(t, err)
}

func TestExportImportBlob_roundTripsIdenticalOps(t *testing.T) {
	orig, err := Prepare(5, arithBody())
	require.Nil(t, err)

	blob := ExportBlob(orig)
	require.Equal(t, arithBody(), blob)

	reimported, err := ImportBlob(5, blob)
	require.Nil(t, err)
	require.Equal(t, len(orig.Ops), len(reimported.Ops))
	for i := range orig.Ops {
		require.Equal(t, orig.Ops[i].Opcode, reimported.Ops[i].Opcode)
		require.Equal(t, orig.Ops[i].Immediates, reimported.Ops[i].Immediates)
		// Descriptor addresses come from the opcode package's static
		// tables, so identical opcodes share identity across a round trip.
		require.Same(t, orig.Ops[i].Descriptor, reimported.Ops[i].Descriptor)
	}
}

func TestExportImportBlob_roundTripsMemArgAndConst(t *testing.T) {
	body := appendAll(
		[]byte{module.OpcodeI32Const}, s32(-7),
		[]byte{module.OpcodeI32Const}, s32(0),
		[]byte{module.OpcodeI32Store}, u32(2), u32(0),
		[]byte{module.OpcodeEnd},
	)
	orig, err := Prepare(1, body)
	require.Nil(t, err)
	blob := ExportBlob(orig)
	require.Equal(t, body, blob)

	reimported, err := ImportBlob(1, blob)
	require.Nil(t, err)
	require.Equal(t, orig.Ops, reimported.Ops)
}

func TestJitContext_getCachesAndReusesPreparedProgram(t *testing.T) {
	c := NewJitContext(1 << 20)
	body := arithBody()

	prog1, err := c.Get(0, body)
	require.Nil(t, err)
	prog2, err := c.Get(0, body)
	require.Nil(t, err)
	require.Same(t, prog1, prog2)
}

func TestJitContext_evictionSpillsAndReloadsAcrossTinyBudget(t *testing.T) {
	bodyA := arithBody()
	bodyB := appendAll(
		[]byte{module.OpcodeLocalGet}, u32(0),
		[]byte{module.OpcodeLocalGet}, u32(1),
		[]byte{module.OpcodeI32Sub},
		[]byte{module.OpcodeEnd},
	)

	c := NewJitContext(1) // tiny budget: every admission past the first evicts.
	spilled := map[module.Index][]byte{}
	var spillCount, loadCount int
	c.SetHooks(
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

	progA, err := c.Get(0, bodyA) // admits A
	require.Nil(t, err)
	_, err = c.Get(1, bodyB) // admits B, evicts A (spill #1)
	require.Nil(t, err)
	reloadedA, err := c.Get(0, bodyA) // reloads A (load #1), evicts B (spill #2)
	require.Nil(t, err)
	_, err = c.Get(1, bodyB) // reloads B (load #2)
	require.Nil(t, err)

	require.GreaterOrEqual(t, spillCount+loadCount, 3)
	require.NotEmpty(t, spilled[0])
	require.NotEmpty(t, spilled[1])

	// A reload reconstructs the program from its spilled blob via
	// ImportBlob, so the op sequence survives the round trip exactly.
	require.Equal(t, len(progA.Ops), len(reloadedA.Ops))
	for i := range progA.Ops {
		require.Equal(t, progA.Ops[i].Opcode, reloadedA.Ops[i].Opcode)
		require.Equal(t, progA.Ops[i].Immediates, reloadedA.Ops[i].Immediates)
	}
}

func TestJitContext_noHooksSimplyDropsOnEviction(t *testing.T) {
	c := NewJitContext(1)
	bodyA := arithBody()
	bodyB := appendAll(
		[]byte{module.OpcodeLocalGet}, u32(0),
		[]byte{module.OpcodeLocalGet}, u32(1),
		[]byte{module.OpcodeI32Sub},
		[]byte{module.OpcodeEnd},
	)

	_, err := c.Get(0, bodyA)
	require.Nil(t, err)
	_, err = c.Get(1, bodyB) // evicts A; no spill hook, so A is simply dropped
	require.Nil(t, err)

	// Get(0, ...) re-Prepares from body since nothing was persisted to
	// reload from; this must still succeed and produce a usable program.
	progA, err := c.Get(0, bodyA)
	require.Nil(t, err)
	require.Len(t, progA.Ops, 4)
}

func TestJitContext_decisionRequiresExecutedOpsFloor(t *testing.T) {
	c := NewJitContext(1 << 20)
	c.RecordExecutedOp(0, 10)
	c.RecordHotLoopHit(0)

	d := c.Decision(0)
	require.Equal(t, "off", d.Tier)
	require.Equal(t, "executed_ops below floor", d.Reason)
}

func TestJitContext_decisionTier1OnceHotAndExecuted(t *testing.T) {
	c := NewJitContext(1 << 20)
	for i := 0; i < 8; i++ {
		c.RecordHotLoopHit(0)
	}
	c.RecordExecutedOp(0, 100)
	c.RecordDecodedOp(0, 100)

	d := c.Decision(0)
	require.Equal(t, "tier1", d.Tier)
}

func TestJitContext_invalidateDropsEntryAndFreesBudget(t *testing.T) {
	c := NewJitContext(1 << 20)
	prog, err := c.Get(0, arithBody())
	require.Nil(t, err)
	require.Equal(t, prog.ByteCost, c.usedBytes)

	c.Invalidate(0)
	require.Equal(t, int64(0), c.usedBytes)
	require.NotContains(t, c.entries, module.Index(0))
}

func TestScoring_decideGatesOnScoreThreshold(t *testing.T) {
	cfg := DefaultScoringConfig()
	s := JitStats{ExecutedOps: 100, DecodedOps: 0, HotLoopHits: 0}
	d := s.Decide(cfg)
	require.Equal(t, "off", d.Tier)
	require.Equal(t, "advantage score below threshold", d.Reason)
	require.Less(t, d.Score, cfg.MinAdvantageScore)
}

func TestScoring_partialHotLoopGivesHalfCredit(t *testing.T) {
	cfg := DefaultScoringConfig()
	s := JitStats{ExecutedOps: 100, DecodedOps: 100, HotLoopHits: 3}
	require.InDelta(t, 0.6*0.5+0.4*1.0, s.Score(cfg), 1e-9)
}

func TestJitContext_decisionCachesAcrossRecomputeWindow(t *testing.T) {
	c := NewJitContext(1 << 20)
	c.SetRecomputeEvery(100)

	for i := 0; i < 8; i++ {
		c.RecordHotLoopHit(0)
	}
	c.RecordExecutedOp(0, 50)
	c.RecordDecodedOp(0, 50)
	first := c.Decision(0)
	require.Equal(t, "tier1", first.Tier)

	// A few more executed ops, still within the recompute window: stats
	// keep changing but Decision() should return the stale cached verdict.
	c.RecordExecutedOp(0, 10)
	c.RecordDecodedOp(0, 0)
	cached := c.Decision(0)
	require.Equal(t, first.Score, cached.Score)

	// Cross the recompute window: stats have drifted enough to refresh.
	c.RecordExecutedOp(0, 100)
	refreshed := c.Decision(0)
	require.NotEqual(t, first.Score, refreshed.Score)
}

func TestScoring_decodeRatioClampsAtOne(t *testing.T) {
	cfg := DefaultScoringConfig()
	s := JitStats{ExecutedOps: 10, DecodedOps: 1000, HotLoopHits: 0}
	require.InDelta(t, 0.4, s.Score(cfg), 1e-9)
}
