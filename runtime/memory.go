// Package runtime attaches a module.Module to live storage: memories,
// tables, globals, and host function bindings, plus the spill/trap
// hook protocol an embedder can install. See spec.md §5 "Runtime State
// & Host Bindings" and §4.6 "Spill/Trap Hook Protocol".
package runtime

import (
	"github.com/Geckos-Ink/fayasm-sub000/api"
	"github.com/Geckos-Ink/fayasm-sub000/module"
)

// Memory is one linear memory instance: either a heap-allocated buffer
// this runtime owns, or a caller-owned buffer it merely addresses (for
// a memory backed by externally managed storage). IsSpilled means the
// backing bytes currently live only in whatever the memory_spill hook
// wrote them to; Data is nil until memory_load restores them.
type Memory struct {
	Data       []byte
	MaxBytes   uint64
	HasMax     bool
	IsMemory64 bool
	IsShared   bool
	OwnsData   bool
	IsHost     bool
	IsSpilled  bool

	// committedBytes records Data's length at the moment it was last
	// spilled, so a later memory_load can be checked for a byte-for-byte
	// round trip even though Data itself is nil while spilled.
	committedBytes uint64
}

// PageSize mirrors module.PageSize; kept local so this package never
// needs to import module just for the constant.
const PageSize = module.PageSize

// NewMemory allocates a Memory with min pages already committed.
func NewMemory(def module.Memory, pageLimit uint32) *Memory {
	m := &Memory{
		Data:       make([]byte, uint64(def.Min)*PageSize),
		HasMax:     def.HasMax,
		IsMemory64: def.IsMemory64,
		IsShared:   def.IsShared,
		OwnsData:   true,
	}
	max := def.Max
	if !def.HasMax {
		max = pageLimit
	}
	m.MaxBytes = uint64(max) * PageSize
	return m
}

func (m *Memory) SizePages() uint32 { return uint32(uint64(len(m.Data)) / PageSize) }

// Grow attempts to grow the memory by delta pages, returning the
// previous size in pages, or ok=false (never an error: memory.grow
// signals failure via the sentinel -1 result, per the core spec) if
// the growth would exceed MaxBytes.
func (m *Memory) Grow(delta uint32) (previousPages uint32, ok bool) {
	if m.IsSpilled {
		return 0, false
	}
	prev := m.SizePages()
	newBytes := (uint64(prev) + uint64(delta)) * PageSize
	if delta == 0 {
		return prev, true
	}
	if newBytes > m.MaxBytes {
		return 0, false
	}
	grown := make([]byte, newBytes)
	copy(grown, m.Data)
	m.Data = grown
	return prev, true
}

func (m *Memory) checkBounds(offset, length uint64) *api.Error {
	if m.IsSpilled {
		return api.NewError(api.Unsupported, "memory access while spilled; call memory_load first")
	}
	end := offset + length
	if end < offset || end > uint64(len(m.Data)) {
		return api.ErrOutOfBoundsMemoryAccess
	}
	return nil
}

func (m *Memory) ReadBytes(offset uint64, length uint64) ([]byte, *api.Error) {
	if err := m.checkBounds(offset, length); err != nil {
		return nil, err
	}
	return m.Data[offset : offset+length], nil
}

func (m *Memory) WriteBytes(offset uint64, b []byte) *api.Error {
	if err := m.checkBounds(offset, uint64(len(b))); err != nil {
		return err
	}
	copy(m.Data[offset:], b)
	return nil
}

// Fill implements memory.fill: length bytes of value starting at offset.
func (m *Memory) Fill(offset uint64, value byte, length uint64) *api.Error {
	if err := m.checkBounds(offset, length); err != nil {
		return err
	}
	region := m.Data[offset : offset+length]
	for i := range region {
		region[i] = value
	}
	return nil
}

// Copy implements memory.copy, correct for overlapping source/
// destination ranges within the same memory.
func (m *Memory) Copy(dst, src, length uint64) *api.Error {
	if err := m.checkBounds(dst, length); err != nil {
		return err
	}
	if err := m.checkBounds(src, length); err != nil {
		return err
	}
	copy(m.Data[dst:dst+length], m.Data[src:src+length])
	return nil
}

// Init implements memory.init: copies length bytes of a passive data
// segment's init bytes (already sliced to [srcOffset:srcOffset+length]
// by the caller, which also enforces the segment-dropped and
// source-range checks) into this memory at dst.
func (m *Memory) Init(dst uint64, segment []byte) *api.Error {
	if err := m.checkBounds(dst, uint64(len(segment))); err != nil {
		return err
	}
	copy(m.Data[dst:], segment)
	return nil
}
