// Package stack implements the three stacks a job executes against: the
// value stack, the control (block/loop/if label) stack, and the call
// (function frame) stack. See spec.md §4.2 "Stack Machine".
package stack

import (
	"github.com/Geckos-Ink/fayasm-sub000/api"
	"github.com/Geckos-Ink/fayasm-sub000/internal/buildoptions"
)

// ValueStack is a flat, untyped 64-bit value stack. Every value
// (i32/f32 included) occupies one uint64 slot; callers reinterpret the
// bits according to the static type the descriptor table assigns.
type ValueStack struct {
	slots []uint64
	limit int
}

// NewValueStack creates a ValueStack bounded at limit entries. A limit
// of 0 uses buildoptions.ValueStackSizeCeiling.
func NewValueStack(limit int) *ValueStack {
	if limit <= 0 {
		limit = buildoptions.ValueStackSizeCeiling
	}
	return &ValueStack{slots: make([]uint64, 0, 64), limit: limit}
}

func (s *ValueStack) Len() int { return len(s.slots) }

func (s *ValueStack) Push(v uint64) error {
	if len(s.slots) >= s.limit {
		return api.NewTrap(api.TrapReasonStackUnderflow, "value stack overflow at limit %d", s.limit)
	}
	s.slots = append(s.slots, v)
	return nil
}

func (s *ValueStack) Pop() (uint64, error) {
	if len(s.slots) == 0 {
		return 0, api.ErrStackUnderflow
	}
	v := s.slots[len(s.slots)-1]
	s.slots = s.slots[:len(s.slots)-1]
	return v, nil
}

// PopN pops n values in push order (the value pushed first ends up
// first in the returned slice), or traps if fewer than n are present.
func (s *ValueStack) PopN(n int) ([]uint64, error) {
	if len(s.slots) < n {
		return nil, api.ErrStackUnderflow
	}
	out := make([]uint64, n)
	copy(out, s.slots[len(s.slots)-n:])
	s.slots = s.slots[:len(s.slots)-n]
	return out, nil
}

// Peek returns the value depth entries below the top (0 is the top)
// without popping it.
func (s *ValueStack) Peek(depth int) (uint64, error) {
	i := len(s.slots) - 1 - depth
	if i < 0 {
		return 0, api.ErrStackUnderflow
	}
	return s.slots[i], nil
}

// PeekValues returns the top n values without popping, oldest first.
func (s *ValueStack) PeekValues(n int) ([]uint64, error) {
	if len(s.slots) < n {
		return nil, api.ErrStackUnderflow
	}
	out := make([]uint64, n)
	copy(out, s.slots[len(s.slots)-n:])
	return out, nil
}

// Drop removes the top n values without returning them.
func (s *ValueStack) Drop(n int) error {
	if len(s.slots) < n {
		return api.ErrStackUnderflow
	}
	s.slots = s.slots[:len(s.slots)-n]
	return nil
}

// TruncateTo drops values until only height remain, used to unwind the
// stack to a label's snapshot height on br/return.
func (s *ValueStack) TruncateTo(height int) error {
	if height > len(s.slots) {
		return api.ErrStackUnderflow
	}
	s.slots = s.slots[:height]
	return nil
}

func (s *ValueStack) Reset() { s.slots = s.slots[:0] }

// ControlFrame is one entry of the control stack: a block, loop, or if
// construct awaiting its matching `end` (or `else`).
type ControlFrame struct {
	// Kind is one of the module.Opcode{Block,Loop,If} values.
	Kind byte
	// ParamCount/ResultCount are the construct's declared signature
	// (params consumed on entry, results produced on normal exit).
	ParamCount, ResultCount int
	// ValueStackHeight is the value stack depth when the frame was
	// entered, after popping its params — br unwinds to this
	// height plus ResultCount values.
	ValueStackHeight int
	// ContinuationPC is where a `br` targeting this frame resumes: the
	// position after `end` for block/if, or the position of the matching
	// `loop` opcode itself for loop (branching re-enters the loop body).
	ContinuationPC int
	// ElsePC, when Kind is If, is the position just after the matching
	// `else` (or of the matching `end` if there is none), used when the
	// if's condition is false.
	ElsePC int
	// IsLoop mirrors Kind == loop for quick branch-target dispatch.
	IsLoop bool
}

// ControlStack is the stack of nested block/loop/if labels active in
// the function currently executing.
type ControlStack struct {
	frames []ControlFrame
}

func NewControlStack() *ControlStack { return &ControlStack{} }

func (c *ControlStack) Len() int { return len(c.frames) }

func (c *ControlStack) Push(f ControlFrame) { c.frames = append(c.frames, f) }

func (c *ControlStack) Pop() (ControlFrame, error) {
	if len(c.frames) == 0 {
		return ControlFrame{}, api.NewTrap(api.TrapReasonTypeMismatch, "control stack underflow")
	}
	f := c.frames[len(c.frames)-1]
	c.frames = c.frames[:len(c.frames)-1]
	return f, nil
}

// At returns the frame `depth` labels up from the innermost (0 is
// innermost), as used by br/br_if/br_table's label index.
func (c *ControlStack) At(depth int) (ControlFrame, error) {
	i := len(c.frames) - 1 - depth
	if i < 0 {
		return ControlFrame{}, api.NewTrap(api.TrapReasonTypeMismatch, "branch target depth %d exceeds control stack", depth)
	}
	return c.frames[i], nil
}

func (c *ControlStack) Reset() { c.frames = c.frames[:0] }

// Snapshot copies the active frames out, used to suspend a caller's
// control stack across a nested call so the callee can run with its own
// independent one.
func (c *ControlStack) Snapshot() []ControlFrame {
	out := make([]ControlFrame, len(c.frames))
	copy(out, c.frames)
	return out
}

// Restore replaces the active frames with a previously snapshotted set,
// used when a nested call returns and its caller resumes.
func (c *ControlStack) Restore(frames []ControlFrame) {
	c.frames = append(c.frames[:0], frames...)
}

// CallFrame is one entry of the call stack: a suspended caller waiting
// on a callee to return.
type CallFrame struct {
	FunctionIndex api.Index
	ReturnPC      int
	// Locals is the value-stack-independent locals window: the
	// interpreter keeps a separate locals array per frame rather than
	// storing locals on the value stack, as call_indirect/call need to
	// validate arity before the callee's locals exist.
	Locals []uint64
	// ValueStackBase is the value stack height when this frame was
	// entered, i.e. below the callee's own temporaries.
	ValueStackBase int
	// Controls snapshots the caller's own active block/loop/if labels at
	// the moment of the call, so the callee can execute against a fresh,
	// independent control stack and the caller's resumes exactly where
	// it left off.
	Controls []ControlFrame
}

// CallStack is a bounded stack of suspended caller frames, overflow of
// which is the call-depth-exceeded failure.
type CallStack struct {
	frames []CallFrame
	limit  int
}

// NewCallStack creates a CallStack bounded at limit frames. A limit of
// 0 uses buildoptions.CallStackCeiling.
func NewCallStack(limit int) *CallStack {
	if limit <= 0 {
		limit = buildoptions.CallStackCeiling
	}
	return &CallStack{limit: limit}
}

func (c *CallStack) Len() int { return len(c.frames) }

func (c *CallStack) Push(f CallFrame) error {
	if len(c.frames) >= c.limit {
		return api.ErrCallDepthExceeded
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *CallStack) Pop() (CallFrame, error) {
	if len(c.frames) == 0 {
		return CallFrame{}, api.NewError(api.InvalidArgument, "call stack underflow")
	}
	f := c.frames[len(c.frames)-1]
	c.frames = c.frames[:len(c.frames)-1]
	return f, nil
}

// Current returns the top call frame, or ok=false if the stack is empty
// (execution is at the entry function with no caller to return to).
func (c *CallStack) Current() (frame *CallFrame, ok bool) {
	if len(c.frames) == 0 {
		return nil, false
	}
	return &c.frames[len(c.frames)-1], true
}

func (c *CallStack) Reset() { c.frames = c.frames[:0] }
