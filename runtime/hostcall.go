package runtime

import (
	"math"

	"github.com/Geckos-Ink/fayasm-sub000/api"
)

// HostFunction is a host-provided implementation of an imported
// function. Handle is called with a HostCall giving typed access to the
// arguments the interpreter already validated against the function's
// declared type, and must populate exactly that many results.
type HostFunction struct {
	Params, Results []api.ValueType
	Handle          func(call *HostCall) *api.Error
}

// HostCall is the argument/result bridge a HostFunction.Handle receives.
// It never exposes the raw value or call stack, only typed accessors,
// matching the host-import surface's narrow contract.
type HostCall struct {
	args    []uint64
	results []uint64
}

// NewHostCall wraps args (already popped by the caller, in push/param
// order) for a function with nResults result slots.
func NewHostCall(args []uint64, nResults int) *HostCall {
	return &HostCall{args: args, results: make([]uint64, nResults)}
}

// Expect validates the call actually carries nArgs arguments and will
// produce nResults results, trapping the host implementation early
// against a mismatched binding rather than silently misreading memory.
func (c *HostCall) Expect(nArgs, nResults int) *api.Error {
	if len(c.args) != nArgs {
		return api.NewError(api.InvalidArgument, "host call expected %d args, got %d", nArgs, len(c.args))
	}
	if len(c.results) != nResults {
		return api.NewError(api.InvalidArgument, "host call expected %d results, got %d", nResults, len(c.results))
	}
	return nil
}

func (c *HostCall) ArgI32(i int) int32   { return int32(uint32(c.args[i])) }
func (c *HostCall) ArgI64(i int) int64   { return int64(c.args[i]) }
func (c *HostCall) ArgF32(i int) float32 { return math.Float32frombits(uint32(c.args[i])) }
func (c *HostCall) ArgF64(i int) float64 { return math.Float64frombits(c.args[i]) }
func (c *HostCall) ArgRef(i int) api.Reference { return api.Reference(c.args[i]) }

func (c *HostCall) SetI32(i int, v int32)   { c.results[i] = uint64(uint32(v)) }
func (c *HostCall) SetI64(i int, v int64)   { c.results[i] = uint64(v) }
func (c *HostCall) SetF32(i int, v float32) { c.results[i] = uint64(math.Float32bits(v)) }
func (c *HostCall) SetF64(i int, v float64) { c.results[i] = math.Float64bits(v) }
func (c *HostCall) SetRef(i int, v api.Reference) { c.results[i] = uint64(v) }

// Results returns the raw result slots after Handle has populated them.
func (c *HostCall) Results() []uint64 { return c.results }

// SymbolResolver abstracts looking up a host function by (module,
// name), standing in for a dynamically-loaded-library binding path
// without this core performing any actual dynamic loading itself; a
// host embedder supplies a resolver backed by however it locates
// symbols (a plugin registry, a shared-library handle, a fixed map).
type SymbolResolver interface {
	Resolve(moduleName, fieldName string) (HostFunction, bool)
}

// MapResolver is the simplest SymbolResolver: a fixed table the
// embedder populates ahead of time.
type MapResolver map[string]HostFunction

func (m MapResolver) Resolve(moduleName, fieldName string) (HostFunction, bool) {
	hf, ok := m[moduleName+"\x00"+fieldName]
	return hf, ok
}

// Key builds the lookup key MapResolver expects.
func Key(moduleName, fieldName string) string { return moduleName + "\x00" + fieldName }
