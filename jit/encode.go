package jit

import (
	"github.com/Geckos-Ink/fayasm-sub000/internal/leb128"
	"github.com/Geckos-Ink/fayasm-sub000/module"
)

// encodeImmediates reverses Prepare's per-opcode immediate decoding, so
// ExportBlob can reconstruct the original bytes from an op's
// already-decoded Immediates. LEB128 immediates are written in their
// shortest form, whatever form the original body used.
func encodeImmediates(opByte module.Opcode, sub uint32, imms []uint64) []byte {
	switch opByte {
	case module.OpcodeBlock, module.OpcodeLoop, module.OpcodeIf:
		return encodeBlockType(imms[0])
	case module.OpcodeElse, module.OpcodeEnd, module.OpcodeNop, module.OpcodeUnreachable,
		module.OpcodeReturn, module.OpcodeDrop, module.OpcodeSelect, module.OpcodeRefIsNull:
		return nil
	case module.OpcodeBr, module.OpcodeBrIf:
		return leb128.EncodeUint32(uint32(imms[0]))
	case module.OpcodeBrTable:
		var out []byte
		n := uint32(imms[0])
		out = append(out, leb128.EncodeUint32(n)...)
		for i := uint32(0); i < n; i++ {
			out = append(out, leb128.EncodeUint32(uint32(imms[1+i]))...)
		}
		out = append(out, leb128.EncodeUint32(uint32(imms[1+n]))...)
		return out
	case module.OpcodeCall, module.OpcodeLocalGet, module.OpcodeLocalSet, module.OpcodeLocalTee,
		module.OpcodeGlobalGet, module.OpcodeGlobalSet, module.OpcodeTableGet, module.OpcodeTableSet,
		module.OpcodeMemorySize, module.OpcodeMemoryGrow, module.OpcodeRefFunc:
		return leb128.EncodeUint32(uint32(imms[0]))
	case module.OpcodeCallIndirect:
		var out []byte
		out = append(out, leb128.EncodeUint32(uint32(imms[0]))...)
		out = append(out, leb128.EncodeUint32(uint32(imms[1]))...)
		return out
	case module.OpcodeSelectT:
		var out []byte
		n := uint32(imms[0])
		out = append(out, leb128.EncodeUint32(n)...)
		for i := uint32(0); i < n; i++ {
			out = append(out, byte(imms[1+i]))
		}
		return out
	case module.OpcodeI32Const:
		return leb128.EncodeInt32(int32(uint32(imms[0])))
	case module.OpcodeI64Const:
		return leb128.EncodeInt64(int64(imms[0]))
	case module.OpcodeF32Const:
		v := uint32(imms[0])
		return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
	case module.OpcodeF64Const:
		v := imms[0]
		out := make([]byte, 8)
		for i := 0; i < 8; i++ {
			out[i] = byte(v >> (8 * i))
		}
		return out
	case module.OpcodeRefNull:
		return []byte{byte(imms[0])}
	case module.OpcodeMiscPrefix:
		return encodeMiscImmediates(byte(sub), imms)
	case module.OpcodeSimdPrefix:
		return encodeSimdImmediates(sub, imms)
	}
	if len(imms) == 3 {
		// memarg: [align, offset, memoryIndex]. Wire order is
		// flags(align [+multi-memory bit]), memoryIndex, offset.
		align, offset, memIdx := uint32(imms[0]), imms[1], uint32(imms[2])
		flags := align
		var out []byte
		if memIdx != 0 {
			flags |= memArgMultiMemoryFlag
		}
		out = append(out, leb128.EncodeUint32(flags)...)
		if memIdx != 0 {
			out = append(out, leb128.EncodeUint32(memIdx)...)
		}
		out = append(out, leb128.EncodeUint64(offset)...)
		return out
	}
	return nil
}

func encodeBlockType(v uint64) []byte {
	if blockTypeValByte[byte(v)] && v <= 0xFF {
		return []byte{byte(v)}
	}
	return leb128.EncodeInt64(int64(v))
}

func encodeMiscImmediates(sub byte, imms []uint64) []byte {
	var out []byte
	for _, v := range imms {
		out = append(out, leb128.EncodeUint32(uint32(v))...)
	}
	return out
}

func encodeSimdImmediates(sub uint32, imms []uint64) []byte {
	switch sub {
	case module.SimdOpcodeV128Load, module.SimdOpcodeV128Store:
		var out []byte
		out = append(out, leb128.EncodeUint32(uint32(imms[0]))...)
		out = append(out, leb128.EncodeUint32(uint32(imms[1]))...)
		return out
	case module.SimdOpcodeV128Const:
		lo, hi := imms[0], imms[1]
		out := make([]byte, 16)
		for i := 0; i < 8; i++ {
			out[i] = byte(lo >> (8 * i))
		}
		for i := 0; i < 8; i++ {
			out[8+i] = byte(hi >> (8 * i))
		}
		return out
	case module.SimdOpcodeI8x16ExtractLaneS, module.SimdOpcodeI8x16ExtractLaneU, module.SimdOpcodeI8x16ReplaceLane:
		return []byte{byte(imms[0])}
	default:
		return nil
	}
}
