// Package api includes constants and types shared by every layer of the
// runtime: the decoder, the interpreter core, and the host-import surface.
package api

import "fmt"

// ValueType describes a numeric type used in WebAssembly 1.0. Function
// parameters, results, globals and locals are only definable as a value
// type.
//
// The following describes how each type is represented as a Go value on the
// value stack:
//
//   - ValueTypeI32 - uint64(uint32,int32)
//   - ValueTypeI64 - uint64(int64)
//   - ValueTypeF32 - math.Float32bits, widened to uint64
//   - ValueTypeF64 - math.Float64bits
//   - ValueTypeFuncref/ValueTypeExternref - an opaque Reference
//   - ValueTypeV128 - two uint64 stack slots (low, high)
type ValueType = byte

const (
	// ValueTypeI32 is a 32-bit integer.
	ValueTypeI32 ValueType = 0x7f
	// ValueTypeI64 is a 64-bit integer.
	ValueTypeI64 ValueType = 0x7e
	// ValueTypeF32 is a 32-bit floating point number.
	ValueTypeF32 ValueType = 0x7d
	// ValueTypeF64 is a 64-bit floating point number.
	ValueTypeF64 ValueType = 0x7c
	// ValueTypeV128 is a 128-bit vector used by the minimum SIMD surface.
	ValueTypeV128 ValueType = 0x7b
	// ValueTypeFuncref is a nullable reference to a function.
	ValueTypeFuncref ValueType = 0x70
	// ValueTypeExternref is an opaque, host-defined reference.
	ValueTypeExternref ValueType = 0x6f
)

// ValueTypeName returns the Wasm text format name of t, or "unknown".
func ValueTypeName(t ValueType) string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	case ValueTypeV128:
		return "v128"
	case ValueTypeFuncref:
		return "funcref"
	case ValueTypeExternref:
		return "externref"
	}
	return fmt.Sprintf("unknown(%#x)", t)
}

// IsReferenceType returns true for funcref and externref.
func IsReferenceType(t ValueType) bool {
	return t == ValueTypeFuncref || t == ValueTypeExternref
}

// ExternType classifies imports and exports with their respective kind.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#external-types%E2%91%A0
type ExternType = byte

const (
	ExternTypeFunc   ExternType = 0x00
	ExternTypeTable  ExternType = 0x01
	ExternTypeMemory ExternType = 0x02
	ExternTypeGlobal ExternType = 0x03
)

// ExternTypeName returns the Wasm text format field name for et.
func ExternTypeName(et ExternType) string {
	switch et {
	case ExternTypeFunc:
		return "func"
	case ExternTypeTable:
		return "table"
	case ExternTypeMemory:
		return "memory"
	case ExternTypeGlobal:
		return "global"
	}
	return fmt.Sprintf("unknown(%#x)", et)
}

// Reference is an opaque token. For funcref it encodes either null (zero)
// or a defined function index plus one; for externref it is host-defined
// and the core never dereferences it.
type Reference uint64

// NullReference is the funcref/externref null value.
const NullReference Reference = 0

// Index is an offset into an index space (types, functions, tables,
// memories, globals). Index spaces are populated imports-first.
type Index = uint32
