package decoder

import (
	"github.com/Geckos-Ink/fayasm-sub000/api"
	"github.com/Geckos-Ink/fayasm-sub000/internal/leb128"
	"github.com/Geckos-Ink/fayasm-sub000/module"
)

// readConstExpr reads one restricted constant expression: a single
// constant-producing instruction followed by `end`. Global initializers
// and segment offsets are the only places these appear; Wasm 1.0 core
// does not allow arithmetic in them.
func readConstExpr(r *bodyReader) (module.ConstantExpression, error) {
	op, err := r.ReadByte()
	if err != nil {
		return module.ConstantExpression{}, err
	}

	operandStart := r.pos
	switch op {
	case module.OpcodeI32Const:
		if _, err := leb128.DecodeInt32(r); err != nil {
			return module.ConstantExpression{}, err
		}
	case module.OpcodeI64Const:
		if _, err := leb128.DecodeInt64(r); err != nil {
			return module.ConstantExpression{}, err
		}
	case module.OpcodeF32Const:
		if _, err := r.readBytes(4); err != nil {
			return module.ConstantExpression{}, err
		}
	case module.OpcodeF64Const:
		if _, err := r.readBytes(8); err != nil {
			return module.ConstantExpression{}, err
		}
	case module.OpcodeGlobalGet:
		if _, err := leb128.DecodeUint32(r); err != nil {
			return module.ConstantExpression{}, err
		}
	case module.OpcodeRefNull:
		if _, err := r.ReadByte(); err != nil {
			return module.ConstantExpression{}, err
		}
	case module.OpcodeRefFunc:
		if _, err := leb128.DecodeUint32(r); err != nil {
			return module.ConstantExpression{}, err
		}
	default:
		return module.ConstantExpression{}, api.NewError(api.Unsupported, "malformed-module: opcode 0x%02x is not valid in a constant expression", op)
	}
	operand := r.b[operandStart:r.pos]
	data := make([]byte, len(operand))
	copy(data, operand)

	end, err := r.ReadByte()
	if err != nil {
		return module.ConstantExpression{}, err
	}
	if end != module.OpcodeEnd {
		return module.ConstantExpression{}, api.NewError(api.Stream, "malformed-module: constant expression not terminated by end")
	}
	return module.ConstantExpression{Opcode: op, Data: data}, nil
}

// GlobalValueFunc resolves the current value of an already-instantiated
// global, used to evaluate global.get within a constant expression.
// Per the core spec, only immutable imported globals may be referenced
// this way.
type GlobalValueFunc func(idx module.Index) (uint64, error)

// EvalConstExpr evaluates ce to its 64-bit raw bit pattern (for i32/f32
// it is zero-extended into the low bits the same way the interpreter's
// value stack stores them; for ref.func it is the funcref token, the
// function index plus one) plus, for reference types, whether the
// result is the null reference. globalValue is consulted
// only for global.get; it may be nil if ce is known not to use it.
func EvalConstExpr(ce module.ConstantExpression, globalValue GlobalValueFunc) (value uint64, isNullRef bool, err error) {
	r := &bodyReader{b: ce.Data}
	switch ce.Opcode {
	case module.OpcodeI32Const:
		v, err := leb128.DecodeInt32(r)
		return uint64(uint32(v)), false, err
	case module.OpcodeI64Const:
		v, err := leb128.DecodeInt64(r)
		return uint64(v), false, err
	case module.OpcodeF32Const:
		b, err := r.readBytes(4)
		if err != nil {
			return 0, false, err
		}
		bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
		return uint64(bits), false, nil
	case module.OpcodeF64Const:
		b, err := r.readBytes(8)
		if err != nil {
			return 0, false, err
		}
		var bits uint64
		for i := 7; i >= 0; i-- {
			bits = bits<<8 | uint64(b[i])
		}
		return bits, false, nil
	case module.OpcodeGlobalGet:
		idx, err := leb128.DecodeUint32(r)
		if err != nil {
			return 0, false, err
		}
		if globalValue == nil {
			return 0, false, api.NewError(api.InvalidArgument, "constant expression references global.get but no resolver was supplied")
		}
		v, err := globalValue(idx)
		return v, false, err
	case module.OpcodeRefNull:
		return 0, true, nil
	case module.OpcodeRefFunc:
		idx, err := leb128.DecodeUint32(r)
		return uint64(idx) + 1, false, err
	default:
		return 0, false, api.NewError(api.Unsupported, "invalid constant expression opcode 0x%02x", ce.Opcode)
	}
}
