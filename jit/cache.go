package jit

import (
	"github.com/Geckos-Ink/fayasm-sub000/api"
	"github.com/Geckos-Ink/fayasm-sub000/module"
	"github.com/Geckos-Ink/fayasm-sub000/runtime"
)

// entry is one cached function's admission state: its prepared program
// (nil once spilled), execution stats for advantage scoring, and the
// clock-sweep's single "has been hit since last sweep" bit.
type entry struct {
	prog       *PreparedProgram
	stats      JitStats
	referenced bool
	spilled    bool

	// decision/decidedAt cache the last Decide() result so Decision()
	// need not recompute the floating-point score on every call; see
	// JitContext.recomputeEvery.
	decision  Decision
	decidedAt uint64
}

// JitContext is the prepared-program cache for one attached Runtime: it
// memoises Prepare() per function index, evicts in a clock-style sweep
// when admission would exceed its byte budget, and offloads evicted
// programs through the spill/load hooks when installed.
type JitContext struct {
	budgetBytes int64
	usedBytes   int64
	entries     map[module.Index]*entry
	order       []module.Index
	cursor      int
	scoring     ScoringConfig

	// recomputeEvery gates how often Decision() recomputes a function's
	// score from its stats rather than returning the cached verdict,
	// matching fa_jit.c's sampling cadence (a function executing
	// millions of ops shouldn't recompute a float score on every one).
	recomputeEvery uint64

	spill runtime.JitSpillFunc
	load  runtime.JitLoadFunc
}

// defaultRecomputeEvery mirrors fa_jit.c's historical sampling cadence:
// a function's Decision is refreshed every 64 newly executed ops.
const defaultRecomputeEvery = 64

// NewJitContext returns a cache with the given byte budget (derived by
// the caller from a host capacity probe) and default scoring
// thresholds.
func NewJitContext(budgetBytes int64) *JitContext {
	return &JitContext{
		budgetBytes:    budgetBytes,
		entries:        make(map[module.Index]*entry),
		scoring:        DefaultScoringConfig(),
		recomputeEvery: defaultRecomputeEvery,
	}
}

// SetRecomputeEvery overrides the Decision recompute cadence; 0 or 1
// recomputes on every call.
func (c *JitContext) SetRecomputeEvery(n uint64) { c.recomputeEvery = n }

// SetHooks installs the spill/load callbacks; either may be nil.
func (c *JitContext) SetHooks(spill runtime.JitSpillFunc, load runtime.JitLoadFunc) {
	c.spill = spill
	c.load = load
}

// SetScoringConfig overrides the default advantage-score thresholds.
func (c *JitContext) SetScoringConfig(cfg ScoringConfig) { c.scoring = cfg }

// Get returns funcIndex's PreparedProgram, preparing it from body on a
// cold miss or reconstructing it from a spilled blob via the load hook
// when the entry exists but was evicted. Admission always succeeds or
// returns an error; cache absence is purely a performance concern, per
// spec.md §4.5, and never changes what a call does.
func (c *JitContext) Get(funcIndex module.Index, body []byte) (*PreparedProgram, *api.Error) {
	if e, ok := c.entries[funcIndex]; ok {
		e.referenced = true
		if e.prog != nil {
			return e.prog, nil
		}
		if c.load != nil && e.spilled {
			// A load that fails or finds no blob is a plain cache miss.
			if blob, err := c.load(funcIndex); err == nil && blob != nil {
				prog, perr := ImportBlob(funcIndex, blob)
				if perr != nil {
					return nil, perr
				}
				c.admit(funcIndex, prog, e)
				return prog, nil
			}
		}
	}
	prog, perr := Prepare(funcIndex, body)
	if perr != nil {
		return nil, perr
	}
	e := &entry{stats: JitStats{}}
	if old, ok := c.entries[funcIndex]; ok {
		e.stats = old.stats
	}
	c.admit(funcIndex, prog, e)
	e.referenced = true
	return prog, nil
}

// admit records e as funcIndex's resident entry holding prog, evicting
// other entries first if needed to stay within budget.
func (c *JitContext) admit(funcIndex module.Index, prog *PreparedProgram, e *entry) {
	c.evictUntilFits(prog.ByteCost)
	if existing, ok := c.entries[funcIndex]; !ok || existing.prog == nil {
		c.usedBytes += prog.ByteCost
	}
	e.prog = prog
	e.spilled = false
	if _, ok := c.entries[funcIndex]; !ok {
		c.order = append(c.order, funcIndex)
	}
	c.entries[funcIndex] = e
}

// evictUntilFits runs the clock sweep until admitting addBytes more
// would not exceed the budget, or every entry has been given its one
// pass and evicted.
func (c *JitContext) evictUntilFits(addBytes int64) {
	if c.budgetBytes <= 0 {
		return
	}
	attempts := 0
	maxAttempts := 2*len(c.order) + 1
	for c.usedBytes+addBytes > c.budgetBytes && attempts < maxAttempts {
		attempts++
		if len(c.order) == 0 {
			return
		}
		if c.cursor >= len(c.order) {
			c.cursor = 0
		}
		idx := c.order[c.cursor]
		e, ok := c.entries[idx]
		if !ok {
			c.order = append(c.order[:c.cursor], c.order[c.cursor+1:]...)
			continue
		}
		if e.prog == nil {
			c.cursor++
			continue
		}
		if e.referenced {
			e.referenced = false
			c.cursor++
			continue
		}
		c.evict(idx, e)
		c.cursor++
	}
}

// evict spills e's program (if a spill hook is installed) and releases
// its resident bytes. Without a spill hook, the program is simply
// dropped: the next Get() call re-Prepares it from the function body.
func (c *JitContext) evict(funcIndex module.Index, e *entry) {
	if c.spill != nil {
		blob := ExportBlob(e.prog)
		if err := c.spill(funcIndex, blob); err == nil {
			e.spilled = true
		}
	}
	c.usedBytes -= e.prog.ByteCost
	e.prog = nil
}

// RecordExecutedOp accounts n more executed instructions against
// funcIndex's stats, creating the entry if it does not yet exist (the
// job package may execute a function whose first admission is still
// pending preparation in the same call).
func (c *JitContext) RecordExecutedOp(funcIndex module.Index, n uint64) {
	c.statsFor(funcIndex).ExecutedOps += n
}

// RecordDecodedOp accounts one freshly-decoded (cache-miss) instruction.
func (c *JitContext) RecordDecodedOp(funcIndex module.Index, n uint64) {
	c.statsFor(funcIndex).DecodedOps += n
}

// RecordHotLoopHit accounts one loop back-edge taken against funcIndex.
func (c *JitContext) RecordHotLoopHit(funcIndex module.Index) {
	c.statsFor(funcIndex).HotLoopHits++
}

func (c *JitContext) statsFor(funcIndex module.Index) *JitStats {
	e, ok := c.entries[funcIndex]
	if !ok {
		e = &entry{}
		c.entries[funcIndex] = e
		c.order = append(c.order, funcIndex)
	}
	return &e.stats
}

// Decision reports the current advantage-score gate for funcIndex,
// recomputing from stats only once every recomputeEvery newly executed
// ops since the last recompute; between recomputes it returns the
// cached verdict.
func (c *JitContext) Decision(funcIndex module.Index) Decision {
	e, ok := c.entries[funcIndex]
	if !ok {
		return Decision{Tier: "off", Reason: "no execution history"}
	}
	since := e.stats.ExecutedOps - e.decidedAt
	if e.decidedAt > 0 && c.recomputeEvery > 1 && since < c.recomputeEvery {
		return e.decision
	}
	e.decision = e.stats.Decide(c.scoring)
	e.decidedAt = e.stats.ExecutedOps
	return e.decision
}

// Prescan prepares every defined function body up front. bodyOf must
// return funcIndex's raw body bytes. If force is true, each prepared
// program is immediately spilled (requires a spill hook); otherwise
// prescanned programs simply sit in cache like any other admission,
// subject to the same budget and eviction.
func (c *JitContext) Prescan(m *module.Module, bodyOf func(module.Index) ([]byte, *api.Error), force bool) *api.Error {
	for i := m.ImportFunctionCount; int(i) < len(m.Functions); i++ {
		body, err := bodyOf(i)
		if err != nil {
			return err
		}
		prog, perr := c.Get(i, body)
		if perr != nil {
			return perr
		}
		if force {
			if c.spill == nil {
				return api.NewError(api.Unsupported, "jit-prescan-force requested but no jit_spill hook installed")
			}
			e := c.entries[i]
			c.evict(i, e)
			_ = prog
		}
	}
	return nil
}

// Invalidate drops funcIndex's cached program entirely (used when a
// module is detached or a function's body can no longer be trusted).
func (c *JitContext) Invalidate(funcIndex module.Index) {
	e, ok := c.entries[funcIndex]
	if !ok {
		return
	}
	if e.prog != nil {
		c.usedBytes -= e.prog.ByteCost
	}
	delete(c.entries, funcIndex)
}
