package opcode

import (
	"github.com/Geckos-Ink/fayasm-sub000/api"
	"github.com/Geckos-Ink/fayasm-sub000/module"
)

func init() {
	initControl()
	initMemory()
	initComparison()
	initArithmetic()
	initConversion()
	initMisc()
	initSimd()
}

// initControl assigns arity-only metadata to opcodes the job package
// dispatches directly; none of these have a pure Handler since their
// behavior depends on the control/call stack or function/block types.
func initControl() {
	Table[module.OpcodeUnreachable] = Descriptor{Opcode: module.OpcodeUnreachable, Category: CategoryControl}
	Table[module.OpcodeNop] = Descriptor{Opcode: module.OpcodeNop, Category: CategoryControl}
	Table[module.OpcodeBlock] = Descriptor{Opcode: module.OpcodeBlock, Category: CategoryControl}
	Table[module.OpcodeLoop] = Descriptor{Opcode: module.OpcodeLoop, Category: CategoryControl}
	Table[module.OpcodeIf] = Descriptor{Opcode: module.OpcodeIf, Category: CategoryControl, NumPull: 1}
	Table[module.OpcodeElse] = Descriptor{Opcode: module.OpcodeElse, Category: CategoryControl}
	Table[module.OpcodeEnd] = Descriptor{Opcode: module.OpcodeEnd, Category: CategoryControl}
	Table[module.OpcodeBr] = Descriptor{Opcode: module.OpcodeBr, Category: CategoryControl}
	Table[module.OpcodeBrIf] = Descriptor{Opcode: module.OpcodeBrIf, Category: CategoryControl, NumPull: 1}
	Table[module.OpcodeBrTable] = Descriptor{Opcode: module.OpcodeBrTable, Category: CategoryControl, NumPull: 1}
	Table[module.OpcodeReturn] = Descriptor{Opcode: module.OpcodeReturn, Category: CategoryControl, NumPull: -1}
	Table[module.OpcodeCall] = Descriptor{Opcode: module.OpcodeCall, Category: CategoryControl, NumPull: -1, NumPush: -1}
	Table[module.OpcodeCallIndirect] = Descriptor{Opcode: module.OpcodeCallIndirect, Category: CategoryControl, NumPull: -1, NumPush: -1}

	Table[module.OpcodeDrop] = Descriptor{Opcode: module.OpcodeDrop, Category: CategoryParametric, NumPull: 1}
	Table[module.OpcodeSelect] = Descriptor{Opcode: module.OpcodeSelect, Category: CategoryParametric, NumPull: 3, NumPush: 1}
	Table[module.OpcodeSelectT] = Descriptor{Opcode: module.OpcodeSelectT, Category: CategoryParametric, NumPull: 3, NumPush: 1}

	Table[module.OpcodeLocalGet] = Descriptor{Opcode: module.OpcodeLocalGet, Category: CategoryVariable, NumPush: 1}
	Table[module.OpcodeLocalSet] = Descriptor{Opcode: module.OpcodeLocalSet, Category: CategoryVariable, NumPull: 1}
	Table[module.OpcodeLocalTee] = Descriptor{Opcode: module.OpcodeLocalTee, Category: CategoryVariable, NumPull: 1, NumPush: 1}
	Table[module.OpcodeGlobalGet] = Descriptor{Opcode: module.OpcodeGlobalGet, Category: CategoryVariable, NumPush: 1}
	Table[module.OpcodeGlobalSet] = Descriptor{Opcode: module.OpcodeGlobalSet, Category: CategoryVariable, NumPull: 1}

	Table[module.OpcodeTableGet] = Descriptor{Opcode: module.OpcodeTableGet, Category: CategoryTable, NumPull: 1, NumPush: 1}
	Table[module.OpcodeTableSet] = Descriptor{Opcode: module.OpcodeTableSet, Category: CategoryTable, NumPull: 2}

	Table[module.OpcodeMemorySize] = Descriptor{Opcode: module.OpcodeMemorySize, Category: CategoryMemory, NumPush: 1}
	Table[module.OpcodeMemoryGrow] = Descriptor{Opcode: module.OpcodeMemoryGrow, Category: CategoryMemory, NumPull: 1, NumPush: 1}

	Table[module.OpcodeI32Const] = Descriptor{Opcode: module.OpcodeI32Const, Category: CategoryNumericConst, ValType: api.ValueTypeI32, NumPush: 1}
	Table[module.OpcodeI64Const] = Descriptor{Opcode: module.OpcodeI64Const, Category: CategoryNumericConst, ValType: api.ValueTypeI64, NumPush: 1}
	Table[module.OpcodeF32Const] = Descriptor{Opcode: module.OpcodeF32Const, Category: CategoryNumericConst, ValType: api.ValueTypeF32, NumPush: 1}
	Table[module.OpcodeF64Const] = Descriptor{Opcode: module.OpcodeF64Const, Category: CategoryNumericConst, ValType: api.ValueTypeF64, NumPush: 1}

	Table[module.OpcodeRefNull] = Descriptor{Opcode: module.OpcodeRefNull, Category: CategoryReference, NumPush: 1}
	Table[module.OpcodeRefIsNull] = Descriptor{Opcode: module.OpcodeRefIsNull, Category: CategoryReference, NumPull: 1, NumPush: 1}
	Table[module.OpcodeRefFunc] = Descriptor{Opcode: module.OpcodeRefFunc, Category: CategoryReference, NumPush: 1}
}

// memOp lists every (opcode, valtype, width, signed, isLoad) tuple for
// the memory family, so initMemory can register them with one loop
// instead of twenty-three near-identical setMemArg calls.
type memOp struct {
	op     module.Opcode
	vt     api.ValueType
	width  int
	signed bool
	isLoad bool
}

func initMemory() {
	ops := []memOp{
		{module.OpcodeI32Load, api.ValueTypeI32, 32, true, true},
		{module.OpcodeI64Load, api.ValueTypeI64, 64, true, true},
		{module.OpcodeF32Load, api.ValueTypeF32, 32, true, true},
		{module.OpcodeF64Load, api.ValueTypeF64, 64, true, true},
		{module.OpcodeI32Load8S, api.ValueTypeI32, 8, true, true},
		{module.OpcodeI32Load8U, api.ValueTypeI32, 8, false, true},
		{module.OpcodeI32Load16S, api.ValueTypeI32, 16, true, true},
		{module.OpcodeI32Load16U, api.ValueTypeI32, 16, false, true},
		{module.OpcodeI64Load8S, api.ValueTypeI64, 8, true, true},
		{module.OpcodeI64Load8U, api.ValueTypeI64, 8, false, true},
		{module.OpcodeI64Load16S, api.ValueTypeI64, 16, true, true},
		{module.OpcodeI64Load16U, api.ValueTypeI64, 16, false, true},
		{module.OpcodeI64Load32S, api.ValueTypeI64, 32, true, true},
		{module.OpcodeI64Load32U, api.ValueTypeI64, 32, false, true},
		{module.OpcodeI32Store, api.ValueTypeI32, 32, true, false},
		{module.OpcodeI64Store, api.ValueTypeI64, 64, true, false},
		{module.OpcodeF32Store, api.ValueTypeF32, 32, true, false},
		{module.OpcodeF64Store, api.ValueTypeF64, 64, true, false},
		{module.OpcodeI32Store8, api.ValueTypeI32, 8, false, false},
		{module.OpcodeI32Store16, api.ValueTypeI32, 16, false, false},
		{module.OpcodeI64Store8, api.ValueTypeI64, 8, false, false},
		{module.OpcodeI64Store16, api.ValueTypeI64, 16, false, false},
		{module.OpcodeI64Store32, api.ValueTypeI64, 32, false, false},
	}
	for _, o := range ops {
		pull, push := 1, 1
		if !o.isLoad {
			pull, push = 2, 0
		}
		setMemArg(o.op, CategoryMemory, o.vt, o.width, o.signed, pull, push)
	}
}

func initComparison() {
	set(module.OpcodeI32Eqz, CategoryComparison, api.ValueTypeI32, 32, false, 1, 1, i32Eqz)
	set(module.OpcodeI32Eq, CategoryComparison, api.ValueTypeI32, 32, false, 2, 1, i32Eq)
	set(module.OpcodeI32Ne, CategoryComparison, api.ValueTypeI32, 32, false, 2, 1, i32Ne)
	set(module.OpcodeI32LtS, CategoryComparison, api.ValueTypeI32, 32, true, 2, 1, i32LtS)
	set(module.OpcodeI32LtU, CategoryComparison, api.ValueTypeI32, 32, false, 2, 1, i32LtU)
	set(module.OpcodeI32GtS, CategoryComparison, api.ValueTypeI32, 32, true, 2, 1, i32GtS)
	set(module.OpcodeI32GtU, CategoryComparison, api.ValueTypeI32, 32, false, 2, 1, i32GtU)
	set(module.OpcodeI32LeS, CategoryComparison, api.ValueTypeI32, 32, true, 2, 1, i32LeS)
	set(module.OpcodeI32LeU, CategoryComparison, api.ValueTypeI32, 32, false, 2, 1, i32LeU)
	set(module.OpcodeI32GeS, CategoryComparison, api.ValueTypeI32, 32, true, 2, 1, i32GeS)
	set(module.OpcodeI32GeU, CategoryComparison, api.ValueTypeI32, 32, false, 2, 1, i32GeU)

	set(module.OpcodeI64Eqz, CategoryComparison, api.ValueTypeI64, 64, false, 1, 1, i64Eqz)
	set(module.OpcodeI64Eq, CategoryComparison, api.ValueTypeI64, 64, false, 2, 1, i64Eq)
	set(module.OpcodeI64Ne, CategoryComparison, api.ValueTypeI64, 64, false, 2, 1, i64Ne)
	set(module.OpcodeI64LtS, CategoryComparison, api.ValueTypeI64, 64, true, 2, 1, i64LtS)
	set(module.OpcodeI64LtU, CategoryComparison, api.ValueTypeI64, 64, false, 2, 1, i64LtU)
	set(module.OpcodeI64GtS, CategoryComparison, api.ValueTypeI64, 64, true, 2, 1, i64GtS)
	set(module.OpcodeI64GtU, CategoryComparison, api.ValueTypeI64, 64, false, 2, 1, i64GtU)
	set(module.OpcodeI64LeS, CategoryComparison, api.ValueTypeI64, 64, true, 2, 1, i64LeS)
	set(module.OpcodeI64LeU, CategoryComparison, api.ValueTypeI64, 64, false, 2, 1, i64LeU)
	set(module.OpcodeI64GeS, CategoryComparison, api.ValueTypeI64, 64, true, 2, 1, i64GeS)
	set(module.OpcodeI64GeU, CategoryComparison, api.ValueTypeI64, 64, false, 2, 1, i64GeU)

	set(module.OpcodeF32Eq, CategoryComparison, api.ValueTypeF32, 32, false, 2, 1, f32Eq)
	set(module.OpcodeF32Ne, CategoryComparison, api.ValueTypeF32, 32, false, 2, 1, f32Ne)
	set(module.OpcodeF32Lt, CategoryComparison, api.ValueTypeF32, 32, false, 2, 1, f32Lt)
	set(module.OpcodeF32Gt, CategoryComparison, api.ValueTypeF32, 32, false, 2, 1, f32Gt)
	set(module.OpcodeF32Le, CategoryComparison, api.ValueTypeF32, 32, false, 2, 1, f32Le)
	set(module.OpcodeF32Ge, CategoryComparison, api.ValueTypeF32, 32, false, 2, 1, f32Ge)

	set(module.OpcodeF64Eq, CategoryComparison, api.ValueTypeF64, 64, false, 2, 1, f64Eq)
	set(module.OpcodeF64Ne, CategoryComparison, api.ValueTypeF64, 64, false, 2, 1, f64Ne)
	set(module.OpcodeF64Lt, CategoryComparison, api.ValueTypeF64, 64, false, 2, 1, f64Lt)
	set(module.OpcodeF64Gt, CategoryComparison, api.ValueTypeF64, 64, false, 2, 1, f64Gt)
	set(module.OpcodeF64Le, CategoryComparison, api.ValueTypeF64, 64, false, 2, 1, f64Le)
	set(module.OpcodeF64Ge, CategoryComparison, api.ValueTypeF64, 64, false, 2, 1, f64Ge)
}

func initArithmetic() {
	set(module.OpcodeI32Clz, CategoryArithmetic, api.ValueTypeI32, 32, false, 1, 1, i32Clz)
	set(module.OpcodeI32Ctz, CategoryArithmetic, api.ValueTypeI32, 32, false, 1, 1, i32Ctz)
	set(module.OpcodeI32Popcnt, CategoryArithmetic, api.ValueTypeI32, 32, false, 1, 1, i32Popcnt)
	set(module.OpcodeI32Add, CategoryArithmetic, api.ValueTypeI32, 32, false, 2, 1, i32Add)
	set(module.OpcodeI32Sub, CategoryArithmetic, api.ValueTypeI32, 32, false, 2, 1, i32Sub)
	set(module.OpcodeI32Mul, CategoryArithmetic, api.ValueTypeI32, 32, false, 2, 1, i32Mul)
	set(module.OpcodeI32DivS, CategoryArithmetic, api.ValueTypeI32, 32, true, 2, 1, i32DivS)
	set(module.OpcodeI32DivU, CategoryArithmetic, api.ValueTypeI32, 32, false, 2, 1, i32DivU)
	set(module.OpcodeI32RemS, CategoryArithmetic, api.ValueTypeI32, 32, true, 2, 1, i32RemS)
	set(module.OpcodeI32RemU, CategoryArithmetic, api.ValueTypeI32, 32, false, 2, 1, i32RemU)
	set(module.OpcodeI32And, CategoryArithmetic, api.ValueTypeI32, 32, false, 2, 1, i32And)
	set(module.OpcodeI32Or, CategoryArithmetic, api.ValueTypeI32, 32, false, 2, 1, i32Or)
	set(module.OpcodeI32Xor, CategoryArithmetic, api.ValueTypeI32, 32, false, 2, 1, i32Xor)
	set(module.OpcodeI32Shl, CategoryArithmetic, api.ValueTypeI32, 32, false, 2, 1, i32Shl)
	set(module.OpcodeI32ShrS, CategoryArithmetic, api.ValueTypeI32, 32, true, 2, 1, i32ShrS)
	set(module.OpcodeI32ShrU, CategoryArithmetic, api.ValueTypeI32, 32, false, 2, 1, i32ShrU)
	set(module.OpcodeI32Rotl, CategoryArithmetic, api.ValueTypeI32, 32, false, 2, 1, i32Rotl)
	set(module.OpcodeI32Rotr, CategoryArithmetic, api.ValueTypeI32, 32, false, 2, 1, i32Rotr)

	set(module.OpcodeI64Clz, CategoryArithmetic, api.ValueTypeI64, 64, false, 1, 1, i64Clz)
	set(module.OpcodeI64Ctz, CategoryArithmetic, api.ValueTypeI64, 64, false, 1, 1, i64Ctz)
	set(module.OpcodeI64Popcnt, CategoryArithmetic, api.ValueTypeI64, 64, false, 1, 1, i64Popcnt)
	set(module.OpcodeI64Add, CategoryArithmetic, api.ValueTypeI64, 64, false, 2, 1, i64Add)
	set(module.OpcodeI64Sub, CategoryArithmetic, api.ValueTypeI64, 64, false, 2, 1, i64Sub)
	set(module.OpcodeI64Mul, CategoryArithmetic, api.ValueTypeI64, 64, false, 2, 1, i64Mul)
	set(module.OpcodeI64DivS, CategoryArithmetic, api.ValueTypeI64, 64, true, 2, 1, i64DivS)
	set(module.OpcodeI64DivU, CategoryArithmetic, api.ValueTypeI64, 64, false, 2, 1, i64DivU)
	set(module.OpcodeI64RemS, CategoryArithmetic, api.ValueTypeI64, 64, true, 2, 1, i64RemS)
	set(module.OpcodeI64RemU, CategoryArithmetic, api.ValueTypeI64, 64, false, 2, 1, i64RemU)
	set(module.OpcodeI64And, CategoryArithmetic, api.ValueTypeI64, 64, false, 2, 1, i64And)
	set(module.OpcodeI64Or, CategoryArithmetic, api.ValueTypeI64, 64, false, 2, 1, i64Or)
	set(module.OpcodeI64Xor, CategoryArithmetic, api.ValueTypeI64, 64, false, 2, 1, i64Xor)
	set(module.OpcodeI64Shl, CategoryArithmetic, api.ValueTypeI64, 64, false, 2, 1, i64Shl)
	set(module.OpcodeI64ShrS, CategoryArithmetic, api.ValueTypeI64, 64, true, 2, 1, i64ShrS)
	set(module.OpcodeI64ShrU, CategoryArithmetic, api.ValueTypeI64, 64, false, 2, 1, i64ShrU)
	set(module.OpcodeI64Rotl, CategoryArithmetic, api.ValueTypeI64, 64, false, 2, 1, i64Rotl)
	set(module.OpcodeI64Rotr, CategoryArithmetic, api.ValueTypeI64, 64, false, 2, 1, i64Rotr)

	set(module.OpcodeF32Abs, CategoryArithmetic, api.ValueTypeF32, 32, false, 1, 1, f32Abs)
	set(module.OpcodeF32Neg, CategoryArithmetic, api.ValueTypeF32, 32, false, 1, 1, f32Neg)
	set(module.OpcodeF32Ceil, CategoryArithmetic, api.ValueTypeF32, 32, false, 1, 1, f32Ceil)
	set(module.OpcodeF32Floor, CategoryArithmetic, api.ValueTypeF32, 32, false, 1, 1, f32Floor)
	set(module.OpcodeF32Trunc, CategoryArithmetic, api.ValueTypeF32, 32, false, 1, 1, f32Trunc)
	set(module.OpcodeF32Nearest, CategoryArithmetic, api.ValueTypeF32, 32, false, 1, 1, f32Nearest)
	set(module.OpcodeF32Sqrt, CategoryArithmetic, api.ValueTypeF32, 32, false, 1, 1, f32Sqrt)
	set(module.OpcodeF32Add, CategoryArithmetic, api.ValueTypeF32, 32, false, 2, 1, f32Add)
	set(module.OpcodeF32Sub, CategoryArithmetic, api.ValueTypeF32, 32, false, 2, 1, f32Sub)
	set(module.OpcodeF32Mul, CategoryArithmetic, api.ValueTypeF32, 32, false, 2, 1, f32Mul)
	set(module.OpcodeF32Div, CategoryArithmetic, api.ValueTypeF32, 32, false, 2, 1, f32Div)
	set(module.OpcodeF32Min, CategoryArithmetic, api.ValueTypeF32, 32, false, 2, 1, f32Min)
	set(module.OpcodeF32Max, CategoryArithmetic, api.ValueTypeF32, 32, false, 2, 1, f32Max)
	set(module.OpcodeF32Copysign, CategoryArithmetic, api.ValueTypeF32, 32, false, 2, 1, f32Copysign)

	set(module.OpcodeF64Abs, CategoryArithmetic, api.ValueTypeF64, 64, false, 1, 1, f64Abs)
	set(module.OpcodeF64Neg, CategoryArithmetic, api.ValueTypeF64, 64, false, 1, 1, f64Neg)
	set(module.OpcodeF64Ceil, CategoryArithmetic, api.ValueTypeF64, 64, false, 1, 1, f64Ceil)
	set(module.OpcodeF64Floor, CategoryArithmetic, api.ValueTypeF64, 64, false, 1, 1, f64Floor)
	set(module.OpcodeF64Trunc, CategoryArithmetic, api.ValueTypeF64, 64, false, 1, 1, f64Trunc)
	set(module.OpcodeF64Nearest, CategoryArithmetic, api.ValueTypeF64, 64, false, 1, 1, f64Nearest)
	set(module.OpcodeF64Sqrt, CategoryArithmetic, api.ValueTypeF64, 64, false, 1, 1, f64Sqrt)
	set(module.OpcodeF64Add, CategoryArithmetic, api.ValueTypeF64, 64, false, 2, 1, f64Add)
	set(module.OpcodeF64Sub, CategoryArithmetic, api.ValueTypeF64, 64, false, 2, 1, f64Sub)
	set(module.OpcodeF64Mul, CategoryArithmetic, api.ValueTypeF64, 64, false, 2, 1, f64Mul)
	set(module.OpcodeF64Div, CategoryArithmetic, api.ValueTypeF64, 64, false, 2, 1, f64Div)
	set(module.OpcodeF64Min, CategoryArithmetic, api.ValueTypeF64, 64, false, 2, 1, f64Min)
	set(module.OpcodeF64Max, CategoryArithmetic, api.ValueTypeF64, 64, false, 2, 1, f64Max)
	set(module.OpcodeF64Copysign, CategoryArithmetic, api.ValueTypeF64, 64, false, 2, 1, f64Copysign)
}

func initConversion() {
	set(module.OpcodeI32WrapI64, CategoryConversion, api.ValueTypeI32, 32, false, 1, 1, i32WrapI64)
	set(module.OpcodeI32TruncF32S, CategoryConversion, api.ValueTypeI32, 32, true, 1, 1, i32TruncF32S)
	set(module.OpcodeI32TruncF32U, CategoryConversion, api.ValueTypeI32, 32, false, 1, 1, i32TruncF32U)
	set(module.OpcodeI32TruncF64S, CategoryConversion, api.ValueTypeI32, 32, true, 1, 1, i32TruncF64S)
	set(module.OpcodeI32TruncF64U, CategoryConversion, api.ValueTypeI32, 32, false, 1, 1, i32TruncF64U)
	set(module.OpcodeI64ExtendI32S, CategoryConversion, api.ValueTypeI64, 64, true, 1, 1, i64ExtendI32S)
	set(module.OpcodeI64ExtendI32U, CategoryConversion, api.ValueTypeI64, 64, false, 1, 1, i64ExtendI32U)
	set(module.OpcodeI64TruncF32S, CategoryConversion, api.ValueTypeI64, 64, true, 1, 1, i64TruncF32S)
	set(module.OpcodeI64TruncF32U, CategoryConversion, api.ValueTypeI64, 64, false, 1, 1, i64TruncF32U)
	set(module.OpcodeI64TruncF64S, CategoryConversion, api.ValueTypeI64, 64, true, 1, 1, i64TruncF64S)
	set(module.OpcodeI64TruncF64U, CategoryConversion, api.ValueTypeI64, 64, false, 1, 1, i64TruncF64U)
	set(module.OpcodeF32ConvertI32S, CategoryConversion, api.ValueTypeF32, 32, true, 1, 1, f32ConvertI32S)
	set(module.OpcodeF32ConvertI32U, CategoryConversion, api.ValueTypeF32, 32, false, 1, 1, f32ConvertI32U)
	set(module.OpcodeF32ConvertI64S, CategoryConversion, api.ValueTypeF32, 32, true, 1, 1, f32ConvertI64S)
	set(module.OpcodeF32ConvertI64U, CategoryConversion, api.ValueTypeF32, 32, false, 1, 1, f32ConvertI64U)
	set(module.OpcodeF32DemoteF64, CategoryConversion, api.ValueTypeF32, 32, false, 1, 1, f32DemoteF64)
	set(module.OpcodeF64ConvertI32S, CategoryConversion, api.ValueTypeF64, 64, true, 1, 1, f64ConvertI32S)
	set(module.OpcodeF64ConvertI32U, CategoryConversion, api.ValueTypeF64, 64, false, 1, 1, f64ConvertI32U)
	set(module.OpcodeF64ConvertI64S, CategoryConversion, api.ValueTypeF64, 64, true, 1, 1, f64ConvertI64S)
	set(module.OpcodeF64ConvertI64U, CategoryConversion, api.ValueTypeF64, 64, false, 1, 1, f64ConvertI64U)
	set(module.OpcodeF64PromoteF32, CategoryConversion, api.ValueTypeF64, 64, false, 1, 1, f64PromoteF32)
	set(module.OpcodeI32ReinterpretF32, CategoryConversion, api.ValueTypeI32, 32, false, 1, 1, i32ReinterpretF32)
	set(module.OpcodeI64ReinterpretF64, CategoryConversion, api.ValueTypeI64, 64, false, 1, 1, i64ReinterpretF64)
	set(module.OpcodeF32ReinterpretI32, CategoryConversion, api.ValueTypeF32, 32, false, 1, 1, f32ReinterpretI32)
	set(module.OpcodeF64ReinterpretI64, CategoryConversion, api.ValueTypeF64, 64, false, 1, 1, f64ReinterpretI64)

	set(module.OpcodeI32Extend8S, CategorySignExtension, api.ValueTypeI32, 8, true, 1, 1, i32Extend8S)
	set(module.OpcodeI32Extend16S, CategorySignExtension, api.ValueTypeI32, 16, true, 1, 1, i32Extend16S)
	set(module.OpcodeI64Extend8S, CategorySignExtension, api.ValueTypeI64, 8, true, 1, 1, i64Extend8S)
	set(module.OpcodeI64Extend16S, CategorySignExtension, api.ValueTypeI64, 16, true, 1, 1, i64Extend16S)
	set(module.OpcodeI64Extend32S, CategorySignExtension, api.ValueTypeI64, 32, true, 1, 1, i64Extend32S)
}

func initMisc() {
	setMisc(module.MiscOpcodeI32TruncSatF32S, CategoryConversion, api.ValueTypeI32, 32, true, 1, 1, i32TruncSatF32S)
	setMisc(module.MiscOpcodeI32TruncSatF32U, CategoryConversion, api.ValueTypeI32, 32, false, 1, 1, i32TruncSatF32U)
	setMisc(module.MiscOpcodeI32TruncSatF64S, CategoryConversion, api.ValueTypeI32, 32, true, 1, 1, i32TruncSatF64S)
	setMisc(module.MiscOpcodeI32TruncSatF64U, CategoryConversion, api.ValueTypeI32, 32, false, 1, 1, i32TruncSatF64U)
	setMisc(module.MiscOpcodeI64TruncSatF32S, CategoryConversion, api.ValueTypeI64, 64, true, 1, 1, i64TruncSatF32S)
	setMisc(module.MiscOpcodeI64TruncSatF32U, CategoryConversion, api.ValueTypeI64, 64, false, 1, 1, i64TruncSatF32U)
	setMisc(module.MiscOpcodeI64TruncSatF64S, CategoryConversion, api.ValueTypeI64, 64, true, 1, 1, i64TruncSatF64S)
	setMisc(module.MiscOpcodeI64TruncSatF64U, CategoryConversion, api.ValueTypeI64, 64, false, 1, 1, i64TruncSatF64U)

	// Bulk memory/table ops have variable arity resolved at runtime from
	// their immediates (segment/table indices), so, like the control
	// family, they carry no Handler here; the job package dispatches
	// them directly against Runtime state.
	MiscTable[module.MiscOpcodeMemoryInit] = Descriptor{Category: CategoryMisc, NumPull: 3}
	MiscTable[module.MiscOpcodeDataDrop] = Descriptor{Category: CategoryMisc}
	MiscTable[module.MiscOpcodeMemoryCopy] = Descriptor{Category: CategoryMisc, NumPull: 3}
	MiscTable[module.MiscOpcodeMemoryFill] = Descriptor{Category: CategoryMisc, NumPull: 3}
	MiscTable[module.MiscOpcodeTableInit] = Descriptor{Category: CategoryMisc, NumPull: 3}
	MiscTable[module.MiscOpcodeElemDrop] = Descriptor{Category: CategoryMisc}
	MiscTable[module.MiscOpcodeTableCopy] = Descriptor{Category: CategoryMisc, NumPull: 3}
	MiscTable[module.MiscOpcodeTableGrow] = Descriptor{Category: CategoryMisc, NumPull: 2, NumPush: 1}
	MiscTable[module.MiscOpcodeTableSize] = Descriptor{Category: CategoryMisc, NumPush: 1}
	MiscTable[module.MiscOpcodeTableFill] = Descriptor{Category: CategoryMisc, NumPull: 3}
}

// initSimd registers the minimum-viable SIMD subset's arity. None are
// pure in this package's sense (their operand is a 128-bit lane vector,
// not a uint64), so the job package's dedicated SIMD handler computes
// them directly against two stack slots treated as one v128.
func initSimd() {
	setSimd(module.SimdOpcodeV128Load, api.ValueTypeV128, 1, 1)
	setSimd(module.SimdOpcodeV128Store, api.ValueTypeV128, 2, 0)
	setSimd(module.SimdOpcodeV128Const, api.ValueTypeV128, 0, 1)
	setSimd(module.SimdOpcodeI8x16Splat, api.ValueTypeV128, 1, 1)
	setSimd(module.SimdOpcodeI16x8Splat, api.ValueTypeV128, 1, 1)
	setSimd(module.SimdOpcodeI32x4Splat, api.ValueTypeV128, 1, 1)
	setSimd(module.SimdOpcodeI64x2Splat, api.ValueTypeV128, 1, 1)
	setSimd(module.SimdOpcodeF32x4Splat, api.ValueTypeV128, 1, 1)
	setSimd(module.SimdOpcodeF64x2Splat, api.ValueTypeV128, 1, 1)
	setSimd(module.SimdOpcodeI8x16ExtractLaneS, api.ValueTypeI32, 1, 1)
	setSimd(module.SimdOpcodeI8x16ExtractLaneU, api.ValueTypeI32, 1, 1)
	setSimd(module.SimdOpcodeI8x16ReplaceLane, api.ValueTypeV128, 2, 1)
	setSimd(module.SimdOpcodeI8x16Add, api.ValueTypeV128, 2, 1)
	setSimd(module.SimdOpcodeI32x4TruncSatF32x4S, api.ValueTypeV128, 1, 1)
}
