// Package job implements the interpreter core: one Job executes a single
// invocation of an attached Runtime's exported or host-initiated call.
// A Job materializes each function body it enters through an
// instream.Stream, decomposes it into a jit.PreparedProgram (consulting
// the Runtime's prepared-program cache when one is configured, or
// preparing directly when not — execution never depends on which), and
// walks that program dispatching pure arithmetic through the opcode
// package's descriptor table while handling control flow, calls,
// memory/table/variable access, and the minimal SIMD subset directly
// against the Runtime's live state. See spec.md §4 "Execution Model" and
// §4.7 "Job Lifecycle".
package job

import (
	"sync/atomic"

	"github.com/Geckos-Ink/fayasm-sub000/api"
	"github.com/Geckos-Ink/fayasm-sub000/instream"
	"github.com/Geckos-Ink/fayasm-sub000/jit"
	"github.com/Geckos-Ink/fayasm-sub000/module"
	"github.com/Geckos-Ink/fayasm-sub000/runtime"
	"github.com/Geckos-Ink/fayasm-sub000/stack"
)

// State is a Job's lifecycle stage.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateSuspendedTrap
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSuspendedTrap:
		return "suspended-at-trap"
	case StateFinished:
		return "finished"
	}
	return "unknown"
}

var nextJobID uint64

// Job is one invocation's execution state: its three stacks, the
// currently executing function's decoded program and locals, and the
// instream.Stream used to materialize each function body it enters. A
// Job is single-use: once it reaches StateFinished or
// StateSuspendedTrap it is never resumed; a new Job is created for the
// next call.
type Job struct {
	ID uint64

	Runtime *runtime.Runtime
	Source  instream.ByteSource
	Jit     *jit.JitContext

	Values   *stack.ValueStack
	Controls *stack.ControlStack
	Calls    *stack.CallStack
	Stream   *instream.Stream

	prog   *jit.PreparedProgram
	pc     int // index into prog.Ops
	locals []uint64

	state State
}

// NewJob creates an unstarted Job against rt, reading function bodies
// from src (the same decoder.Source the module was decoded from, or any
// other instream.ByteSource addressing the same byte ranges). jc may be
// nil to disable the prepared-program cache entirely; execution
// semantics never depend on whether it is present, only on whether a
// PreparedProgram decomposition is cached or freshly built.
func NewJob(rt *runtime.Runtime, src instream.ByteSource, jc *jit.JitContext) *Job {
	return &Job{
		ID:       atomic.AddUint64(&nextJobID, 1),
		Runtime:  rt,
		Source:   src,
		Jit:      jc,
		Values:   stack.NewValueStack(rt.Config.ValueStackSize()),
		Controls: stack.NewControlStack(),
		Calls:    stack.NewCallStack(rt.Config.MaxCallDepth()),
		Stream:   instream.New(src),
	}
}

func (j *Job) State() State { return j.state }

// Call invokes funcIndex with args already in param order, running it
// (and any nested calls it makes) to completion and returning its
// results in declared order, or the trap/error that stopped it.
func (j *Job) Call(funcIndex module.Index, args []uint64) ([]uint64, *api.Error) {
	if j.state == StateFinished || j.state == StateSuspendedTrap {
		return nil, api.NewError(api.InvalidArgument, "job %d already terminal (%s)", j.ID, j.state)
	}
	j.state = StateRunning

	ft := j.Runtime.Module.TypeOf(funcIndex)
	if ft == nil {
		return nil, j.trap(api.NewError(api.InvalidArgument, "call to undefined function %d", funcIndex))
	}
	if len(args) != len(ft.Params) {
		return nil, j.trap(api.NewError(api.InvalidArgument, "call to function %d expected %d args, got %d", funcIndex, len(ft.Params), len(args)))
	}

	if funcIndex < j.Runtime.Module.ImportFunctionCount {
		results, err := j.callHost(funcIndex, args)
		if err != nil {
			return nil, j.trap(err)
		}
		j.state = StateFinished
		return results, nil
	}

	if err := j.enterFunction(funcIndex, args); err != nil {
		return nil, j.trap(err)
	}

	results, err := j.run()
	if err != nil {
		return nil, j.trap(err)
	}
	j.state = StateFinished
	return results, nil
}

func (j *Job) trap(err *api.Error) *api.Error {
	j.state = StateSuspendedTrap
	return err
}

// loadProgram materializes funcIndex's body through Stream and returns
// its PreparedProgram, preferring the Jit cache when one is configured.
func (j *Job) loadProgram(funcIndex module.Index) (*jit.PreparedProgram, *api.Error) {
	fn := j.Runtime.Module.Functions[funcIndex]
	if err := j.Stream.Load(funcIndex, int64(fn.BodyOffset), int64(fn.BodyLength)); err != nil {
		return nil, err.(*api.Error)
	}
	body, err := j.Stream.ReadBytes(int(fn.BodyLength))
	if err != nil {
		return nil, err.(*api.Error)
	}
	if j.Jit != nil {
		return j.Jit.Get(funcIndex, body)
	}
	return jit.Prepare(funcIndex, body)
}

// enterFunction is a genuine new call into funcIndex: it consults the
// function-trap flag, decodes its body, and builds its locals window
// from args plus zero-filled declared locals.
func (j *Job) enterFunction(funcIndex module.Index, args []uint64) *api.Error {
	if trapErr := j.Runtime.CheckTrapFlag(funcIndex); trapErr != nil {
		return trapErr
	}
	prog, err := j.loadProgram(funcIndex)
	if err != nil {
		return err
	}
	fn := j.Runtime.Module.Functions[funcIndex]
	locals := make([]uint64, len(args)+len(fn.Locals))
	copy(locals, args)

	j.prog = prog
	j.pc = 0
	j.locals = locals
	j.Controls.Reset()
	return nil
}

// resumeCaller re-decodes a suspended caller's body (no trap-flag check:
// this is not a new call, just continuing one already in progress),
// restores its control stack, and positions execution at its recorded
// return point.
func (j *Job) resumeCaller(frame stack.CallFrame) *api.Error {
	prog, err := j.loadProgram(frame.FunctionIndex)
	if err != nil {
		return err
	}
	j.prog = prog
	j.pc = frame.ReturnPC
	j.locals = frame.Locals
	j.Controls.Restore(frame.Controls)
	return nil
}
