// Package module defines the immutable data model produced by the
// decoder: the Module image the interpreter core executes against.
//
// See spec.md §3 "Module (immutable after load)".
package module

import (
	"fmt"

	"github.com/Geckos-Ink/fayasm-sub000/api"
)

// Index is an offset into an index space. Index spaces are populated
// imports-first: imported entries of a given kind precede defined ones.
type Index = api.Index

// PageSize is the 64 KiB unit of memory growth mandated by the Wasm 1.0
// core specification.
const PageSize = 65536

// FunctionType is a possibly-empty function signature.
type FunctionType struct {
	Params  []api.ValueType
	Results []api.ValueType

	// key caches String()/EqualsSignature's comparison key.
	key string
}

// CacheKey memoizes and returns a string uniquely identifying the
// signature, used by the Runtime to assign FunctionTypeID for
// call_indirect checks.
func (f *FunctionType) CacheKey() string {
	if f.key != "" {
		return f.key
	}
	var k string
	for _, p := range f.Params {
		k += api.ValueTypeName(p)
	}
	k += "_"
	for _, r := range f.Results {
		k += api.ValueTypeName(r)
	}
	f.key = k
	return k
}

func (f *FunctionType) String() string { return f.CacheKey() }

// EqualsSignature reports whether f has exactly params/results.
func (f *FunctionType) EqualsSignature(params, results []api.ValueType) bool {
	return valueTypesEqual(f.Params, params) && valueTypesEqual(f.Results, results)
}

func valueTypesEqual(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Function is one entry of the function index space: either an imported
// stub or a defined body.
type Function struct {
	TypeIndex Index
	IsImport  bool
	// Import-only fields.
	ImportModule, ImportName string
	// Defined-only fields: the byte range of the body within the module
	// image, plus its declared locals.
	BodyOffset, BodyLength uint32
	Locals                 []api.ValueType
}

// Memory describes the limits and flags of one memory.
type Memory struct {
	Min, Max     uint32
	HasMax       bool
	IsMemory64   bool
	IsShared     bool
	IsImport     bool
	ImportModule string
	ImportName   string
}

// Validate checks Min/Max are internally consistent and within pageLimit.
func (m *Memory) Validate(pageLimit uint32) error {
	if m.Min > pageLimit {
		return fmt.Errorf("memory min %d pages exceeds limit %d", m.Min, pageLimit)
	}
	if m.HasMax {
		if m.Max > pageLimit {
			return fmt.Errorf("memory max %d pages exceeds limit %d", m.Max, pageLimit)
		}
		if m.Min > m.Max {
			return fmt.Errorf("memory min %d pages exceeds max %d pages", m.Min, m.Max)
		}
	}
	return nil
}

// Table describes the limits and element type of one table.
type Table struct {
	Min, Max     uint32
	HasMax       bool
	ElemType     api.ValueType // ValueTypeFuncref or ValueTypeExternref
	IsImport     bool
	ImportModule string
	ImportName   string
}

// GlobalType is a global's value type and mutability.
type GlobalType struct {
	ValType api.ValueType
	Mutable bool
}

// ConstantExpression is a restricted, constant-only instruction sequence
// terminated by `end`, used for global initializers and segment offsets.
type ConstantExpression struct {
	Opcode Opcode
	Data   []byte
}

// Global is one entry of the defined-global section.
type Global struct {
	Type GlobalType
	Init ConstantExpression
	// Import-only fields; when IsImport, Init is the zero value.
	IsImport     bool
	ImportModule string
	ImportName   string
}

// Export associates a name with an index-space entry.
type Export struct {
	Name  string
	Type  api.ExternType
	Index Index
}

// DataSegment is one entry of the data section.
type DataSegment struct {
	MemoryIndex Index
	Offset      ConstantExpression
	Init        []byte
	Passive     bool
}

// ElementMode distinguishes how an element segment is applied.
type ElementMode int

const (
	ElementModeActive ElementMode = iota
	ElementModePassive
	ElementModeDeclarative
)

// ElementSegment is one entry of the element section. Init holds either
// function indices (RefTypeFuncref) resolved at decode time, or
// global-reference markers resolved at instantiation (see
// module.ElementInitGlobalGet).
type ElementSegment struct {
	Type        api.ValueType
	Mode        ElementMode
	TableIndex  Index
	Offset      ConstantExpression
	Init        []ElementInit
}

// ElementInit is one entry of an element segment's init list: either a
// literal function index, a null reference, or a reference to an
// imported global evaluated at instantiation.
type ElementInit struct {
	IsNull       bool
	IsGlobalRef  bool
	GlobalIndex  Index
	FuncIndex    Index
}

// Module is the immutable, fully-decoded Wasm binary. It is produced by
// decoder.Decode and never mutated afterwards; a Runtime attaches to it
// to create a live instantiation.
type Module struct {
	Types []FunctionType

	// Functions is the full function index space: imports first, then
	// defined functions, matching spec.md's imports-first rule.
	Functions []Function
	// ImportFunctionCount is the number of entries in Functions that are
	// imports (always a prefix of Functions).
	ImportFunctionCount Index

	Tables  []Table
	Memories []Memory
	Globals []Global

	// ImportTableCount, ImportMemoryCount, ImportGlobalCount mirror
	// ImportFunctionCount for their respective index spaces.
	ImportTableCount, ImportMemoryCount, ImportGlobalCount Index

	Exports map[string]Export

	DataSegments    []DataSegment
	ElementSegments []ElementSegment

	StartFunctionIndex    Index
	HasStartFunctionIndex bool

	// NameSection is populated only if a custom "name" section decoded
	// successfully; used purely for diagnostics.
	NameSection *NameSection
}

// NameSection holds the debug names recovered from the custom "name"
// section, if present. Purely informative: execution never depends on it.
type NameSection struct {
	ModuleName    string
	FunctionNames map[Index]string
}

// TypeOf returns the FunctionType of the function at funcIdx, or nil if
// funcIdx or its declared type index is out of range.
func (m *Module) TypeOf(funcIdx Index) *FunctionType {
	if int(funcIdx) >= len(m.Functions) {
		return nil
	}
	ti := m.Functions[funcIdx].TypeIndex
	if int(ti) >= len(m.Types) {
		return nil
	}
	return &m.Types[ti]
}

// IsMemory64 reports whether the memory at idx uses 64-bit addressing.
func (m *Module) IsMemory64(idx Index) bool {
	if int(idx) >= len(m.Memories) {
		return false
	}
	return m.Memories[idx].IsMemory64
}
