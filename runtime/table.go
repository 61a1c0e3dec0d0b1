package runtime

import (
	"github.com/Geckos-Ink/fayasm-sub000/api"
	"github.com/Geckos-Ink/fayasm-sub000/module"
)

// Table is a live, ordered sequence of opaque reference tokens: either
// funcref (the token is a function index + 1, zero reserved for null)
// or externref (the token is whatever the host handed back from a
// host call, again zero reserved for null).
type Table struct {
	Elements []api.Reference
	ElemType api.ValueType
	Max      uint32
	HasMax   bool
}

// NewTable allocates a Table with min null entries.
func NewTable(def module.Table) *Table {
	t := &Table{Elements: make([]api.Reference, def.Min), ElemType: def.ElemType, HasMax: def.HasMax, Max: def.Max}
	return t
}

func (t *Table) Size() uint32 { return uint32(len(t.Elements)) }

func (t *Table) Get(idx uint32) (api.Reference, *api.Error) {
	if idx >= uint32(len(t.Elements)) {
		return 0, api.ErrOutOfBoundsTableAccess
	}
	return t.Elements[idx], nil
}

func (t *Table) Set(idx uint32, v api.Reference) *api.Error {
	if idx >= uint32(len(t.Elements)) {
		return api.ErrOutOfBoundsTableAccess
	}
	t.Elements[idx] = v
	return nil
}

// Grow grows the table by delta entries filled with fillValue,
// returning the previous size, or ok=false if that would exceed Max.
func (t *Table) Grow(delta uint32, fillValue api.Reference) (previous uint32, ok bool) {
	prev := t.Size()
	if delta == 0 {
		return prev, true
	}
	newSize := uint64(prev) + uint64(delta)
	limit := uint64(^uint32(0))
	if t.HasMax {
		limit = uint64(t.Max)
	}
	if newSize > limit {
		return 0, false
	}
	grown := make([]api.Reference, newSize)
	copy(grown, t.Elements)
	for i := prev; i < uint32(newSize); i++ {
		grown[i] = fillValue
	}
	t.Elements = grown
	return prev, true
}

func (t *Table) Fill(offset uint32, v api.Reference, length uint32) *api.Error {
	if uint64(offset)+uint64(length) > uint64(len(t.Elements)) {
		return api.ErrOutOfBoundsTableAccess
	}
	for i := uint32(0); i < length; i++ {
		t.Elements[offset+i] = v
	}
	return nil
}

func (t *Table) Copy(dst, src *Table, dstOffset, srcOffset, length uint32) *api.Error {
	if uint64(dstOffset)+uint64(length) > uint64(len(dst.Elements)) {
		return api.ErrOutOfBoundsTableAccess
	}
	if uint64(srcOffset)+uint64(length) > uint64(len(src.Elements)) {
		return api.ErrOutOfBoundsTableAccess
	}
	copy(dst.Elements[dstOffset:dstOffset+length], src.Elements[srcOffset:srcOffset+length])
	return nil
}

func (t *Table) Init(dstOffset uint32, src []api.Reference, srcOffset, length uint32) *api.Error {
	if uint64(srcOffset)+uint64(length) > uint64(len(src)) {
		return api.ErrOutOfBoundsTableAccess
	}
	if uint64(dstOffset)+uint64(length) > uint64(len(t.Elements)) {
		return api.ErrOutOfBoundsTableAccess
	}
	copy(t.Elements[dstOffset:dstOffset+length], src[srcOffset:srcOffset+length])
	return nil
}

// FuncRef packs a function index into a non-null reference token.
func FuncRef(funcIndex module.Index) api.Reference { return api.Reference(funcIndex + 1) }

// FuncIndexOf unpacks a reference token produced by FuncRef.
func FuncIndexOf(ref api.Reference) (module.Index, bool) {
	if ref == api.NullReference {
		return 0, false
	}
	return module.Index(ref - 1), true
}
