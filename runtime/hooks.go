package runtime

import (
	"github.com/Geckos-Ink/fayasm-sub000/api"
	"github.com/Geckos-Ink/fayasm-sub000/module"
)

// The four spill/load hooks and the trap hook are all synchronous and
// none may mutate the value stack directly: they exist purely so an
// embedder can offload durable state (a prepared program's microcode
// blob, a memory's backing bytes) to external storage under memory
// pressure, and gate the next call of a function flagged for on-demand
// materialization. See spec.md §4.6.

// JitSpillFunc persists a prepared program's opcode blob for funcIndex
// so the cache entry can be evicted and later reconstituted byte-for-
// byte via JitLoadFunc.
type JitSpillFunc func(funcIndex module.Index, blob []byte) *api.Error

// JitLoadFunc retrieves a previously spilled prepared-program blob.
type JitLoadFunc func(funcIndex module.Index) (blob []byte, err *api.Error)

// MemorySpillFunc persists a memory's current bytes so its Data buffer
// can be released; the memory is marked IsSpilled until MemoryLoadFunc
// restores it.
type MemorySpillFunc func(memIndex module.Index, data []byte) *api.Error

// MemoryLoadFunc restores a previously spilled memory's bytes.
type MemoryLoadFunc func(memIndex module.Index) (data []byte, err *api.Error)

// FunctionTrapFunc fires just before a function flagged for on-demand
// materialization executes. Returning nil lets the call proceed (the
// flag is cleared); returning an error aborts the call as a trap
// without ever entering the function body. Hosts typically use this to
// run the jit-load path or fault in pages before first use.
type FunctionTrapFunc func(funcIndex module.Index) *api.Error

// Hooks bundles the embedder-supplied callbacks a Runtime consults. Any
// field left nil disables that behavior (SpillMemory/LoadMemory fail with
// Unsupported, and so does a call to a function flagged for on-demand
// materialization).
type Hooks struct {
	JitSpill     JitSpillFunc
	JitLoad      JitLoadFunc
	MemorySpill  MemorySpillFunc
	MemoryLoad   MemoryLoadFunc
	FunctionTrap FunctionTrapFunc
}

// SpillMemory hands memIndex's bytes to the MemorySpill hook and, on
// success, releases the Data buffer and marks the memory spilled.
func (r *Runtime) SpillMemory(memIndex module.Index) *api.Error {
	if r.hooks.MemorySpill == nil {
		return api.NewError(api.Unsupported, "no memory_spill hook installed")
	}
	mem := r.Memories[memIndex]
	if mem.IsSpilled {
		return nil
	}
	if err := r.hooks.MemorySpill(memIndex, mem.Data); err != nil {
		return err
	}
	mem.committedBytes = uint64(len(mem.Data))
	mem.Data = nil
	mem.IsSpilled = true
	return nil
}

// LoadMemory restores memIndex's bytes via the MemoryLoad hook.
func (r *Runtime) LoadMemory(memIndex module.Index) *api.Error {
	if r.hooks.MemoryLoad == nil {
		return api.NewError(api.Unsupported, "no memory_load hook installed")
	}
	mem := r.Memories[memIndex]
	if !mem.IsSpilled {
		return nil
	}
	data, err := r.hooks.MemoryLoad(memIndex)
	if err != nil {
		return err
	}
	if uint64(len(data)) != mem.MaxBytesCommitted() {
		return api.NewError(api.Unsupported, "memory_load returned %d bytes, expected %d", len(data), mem.MaxBytesCommitted())
	}
	mem.Data = data
	mem.IsSpilled = false
	return nil
}

// MaxBytesCommitted reports the byte length the memory had when last
// spilled (or its current length if never spilled), used to validate a
// memory_load round-trip restores exactly as many bytes as were saved.
func (m *Memory) MaxBytesCommitted() uint64 {
	if !m.IsSpilled && m.committedBytes == 0 {
		return uint64(len(m.Data))
	}
	return m.committedBytes
}

// CheckTrapFlag is consulted by the job package immediately before
// entering funcIndex's body. If the function is not flagged, it
// returns nil immediately. If flagged and a FunctionTrap hook is
// installed, the hook runs; a nil result clears the flag and lets the
// call proceed, a non-nil result aborts the call as that trap without
// ever running the body. Flagged-with-no-hook-installed is itself a
// trap: the flag promised materialization that never happens.
func (r *Runtime) CheckTrapFlag(funcIndex module.Index) *api.Error {
	if int(funcIndex) >= len(r.FunctionTrapFlags) || !r.FunctionTrapFlags[funcIndex] {
		return nil
	}
	if r.hooks.FunctionTrap == nil {
		return api.NewError(api.Unsupported, "function %d flagged for on-demand materialization but no function_trap hook installed", funcIndex)
	}
	if err := r.hooks.FunctionTrap(funcIndex); err != nil {
		return err
	}
	r.FunctionTrapFlags[funcIndex] = false
	return nil
}

// SetFunctionTrapFlag marks funcIndex for on-demand materialization on
// its next call.
func (r *Runtime) SetFunctionTrapFlag(funcIndex module.Index) {
	r.FunctionTrapFlags[funcIndex] = true
}

// ClearFunctionTrapFlag unmarks funcIndex without invoking the hook.
func (r *Runtime) ClearFunctionTrapFlag(funcIndex module.Index) {
	r.FunctionTrapFlags[funcIndex] = false
}
