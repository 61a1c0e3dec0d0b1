// Package jit implements the prepared-program cache: a memoisation
// layer between a module's raw function bodies and the interpreter
// core, decomposing each body into descriptor-tagged microcode once and
// reusing that decomposition across calls. See spec.md §4.5
// "Prepared-Program Cache (tier-1 JIT)".
package jit

import (
	"fmt"

	"github.com/Geckos-Ink/fayasm-sub000/api"
	"github.com/Geckos-Ink/fayasm-sub000/internal/leb128"
	"github.com/Geckos-Ink/fayasm-sub000/module"
	"github.com/Geckos-Ink/fayasm-sub000/opcode"
)

// PreparedOp is one decoded instruction: its raw opcode byte(s), the
// static descriptor the opcode package assigned it, and its decoded
// immediate values (in emission order, so the job package can replay
// them without re-parsing LEB128).
type PreparedOp struct {
	Opcode module.Opcode
	// Sub is the 0xFC/0xFD sub-opcode, meaningful only when Opcode is
	// OpcodeMiscPrefix or OpcodeSimdPrefix.
	Sub uint32
	// Descriptor is a pointer into the opcode package's static table, so
	// two preparations of identical bytes share the same address.
	Descriptor *opcode.Descriptor
	// Immediates holds the instruction's decoded operand values (label
	// indices, constants, etc.) in the order the binary format defines
	// them. A memarg is stored as [align, offset, memoryIndex]: the
	// multi-memory encoding places memoryIndex between align and offset
	// on the wire, but it trails here so existing [align, offset]
	// readers keep indexing correctly; memoryIndex is 0 when the wire
	// form carried no explicit index.
	Immediates []uint64
	// RawLen is the number of body bytes this instruction consumed,
	// including its opcode byte(s), used to reconstruct a blob.
	RawLen int
}

// PreparedProgram is a function body fully decomposed into PreparedOps.
type PreparedProgram struct {
	FuncIndex module.Index
	Ops       []PreparedOp
	// ByteCost approximates resident cost for cache budgeting: the
	// original body length plus a fixed per-op overhead estimate.
	ByteCost int64
}

// bitReader walks a []byte immediate stream, mirroring the decoder
// package's bodyReader but kept local since jit has no need of section
// parsing.
type bitReader struct {
	b   []byte
	pos int
}

func (r *bitReader) ReadByte() (byte, error) {
	if r.pos >= len(r.b) {
		return 0, fmt.Errorf("jit: unexpected end of function body")
	}
	b := r.b[r.pos]
	r.pos++
	return b, nil
}

func (r *bitReader) readBytes(n int) ([]byte, error) {
	if r.pos+n > len(r.b) {
		return nil, fmt.Errorf("jit: unexpected end of function body")
	}
	b := r.b[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// memArgMultiMemoryFlag is bit 6 of a memarg's align/flags field: when
// set, an explicit memory-index immediate follows before the offset
// (the multi-memory proposal's encoding). Clear (the common case), the
// memarg addresses memory 0.
const memArgMultiMemoryFlag = 0x40

var blockTypeValByte = map[byte]bool{
	0x40: true, api.ValueTypeI32: true, api.ValueTypeI64: true, api.ValueTypeF32: true,
	api.ValueTypeF64: true, api.ValueTypeV128: true, api.ValueTypeFuncref: true, api.ValueTypeExternref: true,
}

// readBlockType consumes a block's immediate: either a single byte
// (empty or a value type) or a signed LEB128 type index.
func readBlockType(r *bitReader) (uint64, error) {
	if r.pos >= len(r.b) {
		return 0, fmt.Errorf("jit: unexpected end of function body")
	}
	if blockTypeValByte[r.b[r.pos]] {
		b := r.b[r.pos]
		r.pos++
		return uint64(b), nil
	}
	v, err := leb128.DecodeInt64(r)
	return uint64(v), err
}

// Prepare decomposes one function body into a PreparedProgram.
// Preparation is deterministic given body's bytes and the opcode
// package's static tables: the same bytes always yield the same
// PreparedOps, with the same Descriptor addresses.
func Prepare(funcIndex module.Index, body []byte) (*PreparedProgram, *api.Error) {
	prog := &PreparedProgram{FuncIndex: funcIndex, ByteCost: int64(len(body))}
	r := &bitReader{b: body}

	for r.pos < len(r.b) {
		start := r.pos
		opByte, err := r.ReadByte()
		if err != nil {
			return nil, api.Wrap(api.Stream, err)
		}

		op := PreparedOp{Opcode: opByte}
		var imms []uint64

		switch opByte {
		case module.OpcodeBlock, module.OpcodeLoop, module.OpcodeIf:
			v, err := readBlockType(r)
			if err != nil {
				return nil, api.Wrap(api.Stream, err)
			}
			imms = append(imms, v)
		case module.OpcodeElse, module.OpcodeEnd, module.OpcodeNop, module.OpcodeUnreachable,
			module.OpcodeReturn, module.OpcodeDrop, module.OpcodeSelect,
			module.OpcodeRefIsNull:
			// no immediate
		case module.OpcodeBr, module.OpcodeBrIf:
			v, err := leb128.DecodeUint32(r)
			if err != nil {
				return nil, api.Wrap(api.Stream, err)
			}
			imms = append(imms, uint64(v))
		case module.OpcodeBrTable:
			n, err := leb128.DecodeUint32(r)
			if err != nil {
				return nil, api.Wrap(api.Stream, err)
			}
			imms = append(imms, uint64(n))
			for i := uint32(0); i < n; i++ {
				l, err := leb128.DecodeUint32(r)
				if err != nil {
					return nil, api.Wrap(api.Stream, err)
				}
				imms = append(imms, uint64(l))
			}
			def, err := leb128.DecodeUint32(r)
			if err != nil {
				return nil, api.Wrap(api.Stream, err)
			}
			imms = append(imms, uint64(def))
		case module.OpcodeCall, module.OpcodeLocalGet, module.OpcodeLocalSet, module.OpcodeLocalTee,
			module.OpcodeGlobalGet, module.OpcodeGlobalSet, module.OpcodeTableGet, module.OpcodeTableSet,
			module.OpcodeMemorySize, module.OpcodeMemoryGrow, module.OpcodeRefFunc:
			v, err := leb128.DecodeUint32(r)
			if err != nil {
				return nil, api.Wrap(api.Stream, err)
			}
			imms = append(imms, uint64(v))
		case module.OpcodeCallIndirect:
			typeIdx, err := leb128.DecodeUint32(r)
			if err != nil {
				return nil, api.Wrap(api.Stream, err)
			}
			tableIdx, err := leb128.DecodeUint32(r)
			if err != nil {
				return nil, api.Wrap(api.Stream, err)
			}
			imms = append(imms, uint64(typeIdx), uint64(tableIdx))
		case module.OpcodeSelectT:
			n, err := leb128.DecodeUint32(r)
			if err != nil {
				return nil, api.Wrap(api.Stream, err)
			}
			imms = append(imms, uint64(n))
			for i := uint32(0); i < n; i++ {
				b, err := r.ReadByte()
				if err != nil {
					return nil, api.Wrap(api.Stream, err)
				}
				imms = append(imms, uint64(b))
			}
		case module.OpcodeI32Const:
			v, err := leb128.DecodeInt32(r)
			if err != nil {
				return nil, api.Wrap(api.Stream, err)
			}
			imms = append(imms, uint64(uint32(v)))
		case module.OpcodeI64Const:
			v, err := leb128.DecodeInt64(r)
			if err != nil {
				return nil, api.Wrap(api.Stream, err)
			}
			imms = append(imms, uint64(v))
		case module.OpcodeF32Const:
			b, err := r.readBytes(4)
			if err != nil {
				return nil, api.Wrap(api.Stream, err)
			}
			imms = append(imms, uint64(b[0])|uint64(b[1])<<8|uint64(b[2])<<16|uint64(b[3])<<24)
		case module.OpcodeF64Const:
			b, err := r.readBytes(8)
			if err != nil {
				return nil, api.Wrap(api.Stream, err)
			}
			var bits uint64
			for i := 7; i >= 0; i-- {
				bits = bits<<8 | uint64(b[i])
			}
			imms = append(imms, bits)
		case module.OpcodeRefNull:
			b, err := r.ReadByte()
			if err != nil {
				return nil, api.Wrap(api.Stream, err)
			}
			imms = append(imms, uint64(b))
		case module.OpcodeMiscPrefix:
			sub, err := leb128.DecodeUint32(r)
			if err != nil {
				return nil, api.Wrap(api.Stream, err)
			}
			op.Sub = sub
			mi, perr := prepareMiscImmediates(r, byte(sub))
			if perr != nil {
				return nil, perr
			}
			imms = mi
		case module.OpcodeSimdPrefix:
			sub, err := leb128.DecodeUint32(r)
			if err != nil {
				return nil, api.Wrap(api.Stream, err)
			}
			op.Sub = sub
			mi, perr := prepareSimdImmediates(r, sub)
			if perr != nil {
				return nil, perr
			}
			imms = mi
		default:
			if d, ok := opcode.DescriptorPtr(opByte); ok && d.HasMemArg {
				flags, err := leb128.DecodeUint32(r)
				if err != nil {
					return nil, api.Wrap(api.Stream, err)
				}
				var memIdx uint32
				if flags&memArgMultiMemoryFlag != 0 {
					memIdx, err = leb128.DecodeUint32(r)
					if err != nil {
						return nil, api.Wrap(api.Stream, err)
					}
				}
				align := flags &^ memArgMultiMemoryFlag
				offset, err := leb128.DecodeUint64(r)
				if err != nil {
					return nil, api.Wrap(api.Stream, err)
				}
				imms = append(imms, uint64(align), offset, uint64(memIdx))
				break
			}
			// Pure opcodes (comparison/arithmetic/conversion/sign-
			// extension) and parametric drop/select carry no immediate.
		}

		if opByte != module.OpcodeMiscPrefix && opByte != module.OpcodeSimdPrefix {
			if d, ok := opcode.DescriptorPtr(opByte); ok {
				op.Descriptor = d
			} else {
				return nil, api.NewError(api.UnimplementedOpcode, "no descriptor for opcode 0x%02x", opByte)
			}
		}

		op.Immediates = imms
		op.RawLen = r.pos - start
		prog.Ops = append(prog.Ops, op)
	}

	prog.ByteCost += int64(len(prog.Ops)) * perOpOverheadBytes
	return prog, nil
}

// perOpOverheadBytes estimates the resident cost of one PreparedOp
// beyond the original bytes it decoded from (descriptor pointer +
// immediates slice header + backing array, rounded to a plausible
// figure rather than measured via unsafe.Sizeof).
const perOpOverheadBytes = 40

func prepareMiscImmediates(r *bitReader, sub byte) ([]uint64, *api.Error) {
	d, ok := opcode.MiscDescriptorPtr(sub)
	if !ok {
		return nil, api.NewError(api.UnimplementedOpcode, "no descriptor for misc sub-opcode %d", sub)
	}
	var n int
	switch sub {
	case module.MiscOpcodeMemoryInit, module.MiscOpcodeTableInit, module.MiscOpcodeMemoryCopy, module.MiscOpcodeTableCopy:
		n = 2
	case module.MiscOpcodeDataDrop, module.MiscOpcodeElemDrop, module.MiscOpcodeMemoryFill,
		module.MiscOpcodeTableGrow, module.MiscOpcodeTableSize, module.MiscOpcodeTableFill:
		n = 1
	default:
		n = 0 // truncation ops carry no immediate
	}
	_ = d
	imms := make([]uint64, 0, n)
	for i := 0; i < n; i++ {
		v, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, api.Wrap(api.Stream, err)
		}
		imms = append(imms, uint64(v))
	}
	return imms, nil
}

func prepareSimdImmediates(r *bitReader, sub uint32) ([]uint64, *api.Error) {
	if _, ok := opcode.SimdTable[sub]; !ok {
		return nil, api.NewError(api.UnimplementedOpcode, "no descriptor for simd sub-opcode %d", sub)
	}
	switch sub {
	case module.SimdOpcodeV128Load, module.SimdOpcodeV128Store:
		align, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, api.Wrap(api.Stream, err)
		}
		offset, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, api.Wrap(api.Stream, err)
		}
		return []uint64{uint64(align), uint64(offset)}, nil
	case module.SimdOpcodeV128Const:
		b, err := r.readBytes(16)
		if err != nil {
			return nil, api.Wrap(api.Stream, err)
		}
		lo := uint64(0)
		hi := uint64(0)
		for i := 7; i >= 0; i-- {
			lo = lo<<8 | uint64(b[i])
		}
		for i := 15; i >= 8; i-- {
			hi = hi<<8 | uint64(b[i])
		}
		return []uint64{lo, hi}, nil
	case module.SimdOpcodeI8x16ExtractLaneS, module.SimdOpcodeI8x16ExtractLaneU, module.SimdOpcodeI8x16ReplaceLane:
		b, err := r.ReadByte()
		if err != nil {
			return nil, api.Wrap(api.Stream, err)
		}
		return []uint64{uint64(b)}, nil
	default:
		return nil, nil
	}
}

// ExportBlob serializes prog back to an opcode byte sequence (the jit
// blob a spill hook persists). Prepare retains no reference to the body
// it consumed, so ExportBlob re-encodes each op from its decoded fields,
// writing every LEB128 immediate in its shortest form; the result equals
// the original body when that body used the shortest forms too.
func ExportBlob(prog *PreparedProgram) []byte {
	var out []byte
	for _, op := range prog.Ops {
		out = append(out, op.Opcode)
		switch op.Opcode {
		case module.OpcodeMiscPrefix, module.OpcodeSimdPrefix:
			out = append(out, leb128.EncodeUint32(op.Sub)...)
			out = append(out, encodeImmediates(op.Opcode, op.Sub, op.Immediates)...)
		default:
			out = append(out, encodeImmediates(op.Opcode, 0, op.Immediates)...)
		}
	}
	return out
}

// ImportBlob reconstructs a PreparedProgram from a previously exported
// blob, required by spec.md §4.5 to be identical (up to descriptor
// pointer equality) to the program Prepare would build directly from
// the same original bytes.
func ImportBlob(funcIndex module.Index, blob []byte) (*PreparedProgram, *api.Error) {
	return Prepare(funcIndex, blob)
}
