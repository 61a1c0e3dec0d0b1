// Package opcode holds the static descriptor table the decoder and
// interpreter core both consult: one entry per opcode describing its
// operand type/width/signedness, stack arity, and (where the operation
// is a pure function of its popped operands) a handler. It also defines
// a bounded register window type; the decoder and interpreter do not use
// it, and pass immediates through jit.PreparedOp.Immediates instead.
// See spec.md §4.4 "Opcode Table & Microcode".
package opcode

import (
	"github.com/Geckos-Ink/fayasm-sub000/api"
	"github.com/Geckos-Ink/fayasm-sub000/module"
)

// Category groups opcodes by the kind of dispatch they need. Pure
// categories (Comparison, Arithmetic, Conversion, SignExtension) carry
// a Handler; the rest need engine state (the control/call stack, linear
// memory, tables, globals) the job package supplies directly.
type Category int

const (
	CategoryControl Category = iota
	CategoryParametric
	CategoryVariable
	CategoryTable
	CategoryMemory
	CategoryNumericConst
	CategoryComparison
	CategoryArithmetic
	CategoryConversion
	CategorySignExtension
	CategoryReference
	CategoryMisc
	CategorySIMD
)

// PureHandler computes an opcode's single result from its already-popped
// operands, in push order (args[0] was pushed first). Opcodes with more
// than one result, or whose semantics depend on engine state, leave
// Descriptor.Handler nil.
type PureHandler func(args []uint64) (uint64, *api.Error)

// Descriptor is the static metadata for one opcode: its value type and
// width, dispatch category, whether it carries a memarg/size immediate,
// its stack arity, and (for pure opcodes) the handler that computes it.
type Descriptor struct {
	Opcode   module.Opcode
	ValType  api.ValueType // 0 if the opcode has no single primary operand type
	Width    int           // bit width for loads/stores/conversions; 0 if n/a
	Signed   bool
	Category Category
	// HasMemArg is true for the load/store family, whose immediate is an
	// (align, offset) memarg rather than a plain varint or nothing.
	HasMemArg bool
	// NumPull/NumPush are the values popped from / pushed to the value
	// stack: -1 means "variable, resolved from the callee's function
	// type or block type at runtime" rather than a fixed count.
	NumPull, NumPush int
	// Handler is set only for opcodes Category marks as pure.
	Handler PureHandler
}

// Table is the 256-entry primary descriptor table, indexed by opcode
// byte. Entries left at their zero value (Category == CategoryControl,
// Handler == nil) are either control-flow opcodes genuinely dispatched
// by the job package, or bytes with no assigned meaning — Lookup tells
// the two apart, and jit.Prepare rejects a byte it reports unassigned
// with api.UnimplementedOpcode.
var Table [256]Descriptor

// MiscTable and SimdTable mirror Table for the 0xFC and 0xFD prefixed
// sub-opcode spaces.
var MiscTable [256]Descriptor
var SimdTable = map[module.SimdOpcode]Descriptor{}

func set(op module.Opcode, cat Category, vt api.ValueType, width int, signed bool, pull, push int, h PureHandler) {
	Table[op] = Descriptor{Opcode: op, ValType: vt, Width: width, Signed: signed, Category: cat, NumPull: pull, NumPush: push, Handler: h}
}

func setMemArg(op module.Opcode, cat Category, vt api.ValueType, width int, signed bool, pull, push int) {
	Table[op] = Descriptor{Opcode: op, ValType: vt, Width: width, Signed: signed, Category: cat, HasMemArg: true, NumPull: pull, NumPush: push}
}

func setMisc(op module.MiscOpcode, cat Category, vt api.ValueType, width int, signed bool, pull, push int, h PureHandler) {
	MiscTable[op] = Descriptor{Opcode: op, ValType: vt, Width: width, Signed: signed, Category: cat, NumPull: pull, NumPush: push, Handler: h}
}

func setSimd(op module.SimdOpcode, vt api.ValueType, pull, push int) {
	SimdTable[op] = Descriptor{Opcode: 0, ValType: vt, Category: CategorySIMD, NumPull: pull, NumPush: push}
}

// Lookup returns op's descriptor and whether the table actually assigns
// it a meaning (distinguishing a genuine opcode 0x00 unreachable from
// an unassigned byte, since both are the Table zero value otherwise).
func Lookup(op module.Opcode) (Descriptor, bool) {
	switch op {
	case module.OpcodeUnreachable, module.OpcodeNop, module.OpcodeBlock, module.OpcodeLoop,
		module.OpcodeIf, module.OpcodeElse, module.OpcodeEnd, module.OpcodeBr, module.OpcodeBrIf,
		module.OpcodeBrTable, module.OpcodeReturn, module.OpcodeCall, module.OpcodeCallIndirect,
		module.OpcodeDrop, module.OpcodeSelect, module.OpcodeSelectT,
		module.OpcodeLocalGet, module.OpcodeLocalSet, module.OpcodeLocalTee,
		module.OpcodeGlobalGet, module.OpcodeGlobalSet,
		module.OpcodeTableGet, module.OpcodeTableSet,
		module.OpcodeMemorySize, module.OpcodeMemoryGrow,
		module.OpcodeI32Const, module.OpcodeI64Const, module.OpcodeF32Const, module.OpcodeF64Const,
		module.OpcodeRefNull, module.OpcodeRefIsNull, module.OpcodeRefFunc,
		module.OpcodeMiscPrefix, module.OpcodeSimdPrefix:
		return Table[op], true
	}
	d := Table[op]
	if d.Handler != nil || d.HasMemArg {
		return d, true
	}
	return Descriptor{}, false
}

// DescriptorPtr is Lookup but returns a pointer into the static Table
// array rather than a copy, so repeated lookups of the same opcode byte
// yield the same address. The jit package relies on this: its spill/
// load round trip must reconstruct a PreparedProgram whose descriptor
// pointers compare equal to a fresh Prepare() of the same bytes, which
// only holds if descriptors come from a fixed backing array rather than
// a value copied onto the stack or a fresh map lookup.
func DescriptorPtr(op module.Opcode) (*Descriptor, bool) {
	if _, ok := Lookup(op); !ok {
		return nil, false
	}
	return &Table[op], true
}

// MiscDescriptorPtr is DescriptorPtr for the 0xFC-prefixed sub-opcode
// space. Every genuinely assigned entry has a non-CategoryControl
// category (the zero value), so that alone distinguishes assigned
// bytes from unassigned ones.
func MiscDescriptorPtr(op module.MiscOpcode) (*Descriptor, bool) {
	d := &MiscTable[op]
	if d.Category == CategoryControl {
		return nil, false
	}
	return d, true
}

// RegisterWindow is a fixed-capacity-4 FIFO ring of inline operand
// cells, drained oldest-first. Enqueuing past capacity evicts the oldest
// cell. Neither the decoder nor the interpreter routes immediates
// through it.
type RegisterWindow struct {
	cells [4]uint64
	head  int // next read position
	count int
}

// Enqueue pushes v into the window. If the window is already full, the
// oldest cell (at head) is silently evicted to make room.
func (w *RegisterWindow) Enqueue(v uint64) {
	if w.count == len(w.cells) {
		w.head = (w.head + 1) % len(w.cells)
		w.count--
	}
	tail := (w.head + w.count) % len(w.cells)
	w.cells[tail] = v
	w.count++
}

// Dequeue drains the oldest cell. ok is false if the window is empty.
func (w *RegisterWindow) Dequeue() (v uint64, ok bool) {
	if w.count == 0 {
		return 0, false
	}
	v = w.cells[w.head]
	w.head = (w.head + 1) % len(w.cells)
	w.count--
	return v, true
}

func (w *RegisterWindow) Len() int { return w.count }

func (w *RegisterWindow) Reset() { *w = RegisterWindow{} }
