package jit

// JitStats tracks one function's execution history for advantage
// scoring. executed_ops/decoded_ops/hot_loop_hits per spec.md §4.5.
type JitStats struct {
	ExecutedOps  uint64
	DecodedOps   uint64
	HotLoopHits  uint64
}

// ScoringConfig bundles the three thresholds the advantage-score
// formula gates the tier on.
type ScoringConfig struct {
	MinHotLoopHits    uint64
	MinExecutedOps    uint64
	MinAdvantageScore float64
}

// DefaultScoringConfig matches fa_jit.c's historical defaults: a loop
// counts as hot after 8 back-edges, a function needs at least 32
// executed ops before its score is trusted, and the tier requires at
// least a middling 0.5 score.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{MinHotLoopHits: 8, MinExecutedOps: 32, MinAdvantageScore: 0.5}
}

// Decision is the tier gate's verdict for one function.
type Decision struct {
	Tier   string // "tier1" or "off"
	Reason string
	Score  float64
}

// Score computes the informative advantage score:
//
//	score = 0.6*hot_score + 0.4*decode_ratio
//	hot_score = 1.0 if hot_loop_hits >= min_hot_loop_hits else 0.5 if >0 else 0.0
//	decode_ratio = min(1, decoded_ops / max(1, executed_ops))
func (s JitStats) Score(cfg ScoringConfig) float64 {
	var hotScore float64
	switch {
	case s.HotLoopHits >= cfg.MinHotLoopHits:
		hotScore = 1.0
	case s.HotLoopHits > 0:
		hotScore = 0.5
	}
	executed := s.ExecutedOps
	if executed == 0 {
		executed = 1
	}
	decodeRatio := float64(s.DecodedOps) / float64(executed)
	if decodeRatio > 1 {
		decodeRatio = 1
	}
	return 0.6*hotScore + 0.4*decodeRatio
}

// Decide gates the tier per spec.md §4.5: off if executed_ops is below
// the floor, off if the score itself falls short, tier1 otherwise.
func (s JitStats) Decide(cfg ScoringConfig) Decision {
	if s.ExecutedOps < cfg.MinExecutedOps {
		return Decision{Tier: "off", Reason: "executed_ops below floor", Score: 0}
	}
	score := s.Score(cfg)
	if score < cfg.MinAdvantageScore {
		return Decision{Tier: "off", Reason: "advantage score below threshold", Score: score}
	}
	return Decision{Tier: "tier1", Reason: "advantage score met", Score: score}
}
