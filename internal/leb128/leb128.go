// Package leb128 encodes and decodes the LEB128 variable-length integers
// used throughout the Wasm binary format, for both the 32- and 64-bit,
// signed and unsigned flavors.
package leb128

import (
	"fmt"
	"io"
)

const (
	maxVarintLen32 = 5
	maxVarintLen64 = 10
)

// DecodeUint32 reads an unsigned LEB128 value from r, constrained to 32
// meaningful bits. An overlong encoding (more than maxVarintLen32 bytes, or
// high bits set beyond bit 31 in the final byte) is reported as an error.
func DecodeUint32(r io.ByteReader) (uint32, error) {
	v, _, err := decodeUint(r, 32)
	return uint32(v), err
}

// DecodeUint64 reads an unsigned LEB128 value from r, constrained to 64 bits.
func DecodeUint64(r io.ByteReader) (uint64, error) {
	v, _, err := decodeUint(r, 64)
	return v, err
}

// LoadUint32 decodes from the head of buf, returning the value, the number
// of bytes consumed, and any error.
func LoadUint32(buf []byte) (uint32, uint32, error) {
	r := &byteSliceReader{buf: buf}
	v, n, err := decodeUint(r, 32)
	return uint32(v), n, err
}

// LoadUint64 decodes from the head of buf.
func LoadUint64(buf []byte) (uint64, uint32, error) {
	r := &byteSliceReader{buf: buf}
	return decodeUint(r, 64)
}

func decodeUint(r io.ByteReader, bits int) (result uint64, read uint32, err error) {
	maxLen := maxVarintLen64
	if bits == 32 {
		maxLen = maxVarintLen32
	}
	var shift uint
	for {
		if int(read) >= maxLen {
			return 0, read, fmt.Errorf("leb128: overlong encoding (more than %d bytes)", maxLen)
		}
		b, rErr := r.ReadByte()
		if rErr != nil {
			return 0, read, rErr
		}
		read++
		low7 := uint64(b & 0x7f)
		if shift >= 64 || (shift == 63 && low7 > 1) {
			return 0, read, fmt.Errorf("leb128: value overflows %d bits", bits)
		}
		result |= low7 << shift
		if b&0x80 == 0 {
			if bits < 64 {
				mask := uint64(1)<<uint(bits) - 1
				// Any set bit beyond `bits` in the final byte, except a run of
				// redundant zero continuation bits, is an overlong/overflow.
				if result&^mask != 0 {
					return 0, read, fmt.Errorf("leb128: value %#x does not fit in %d bits", result, bits)
				}
			}
			return result, read, nil
		}
		shift += 7
	}
}

// DecodeInt32 reads a signed LEB128 value constrained to 32 bits.
func DecodeInt32(r io.ByteReader) (int32, error) {
	v, _, err := decodeInt(r, 32)
	return int32(v), err
}

// DecodeInt64 reads a signed LEB128 value constrained to 64 bits.
func DecodeInt64(r io.ByteReader) (int64, error) {
	v, _, err := decodeInt(r, 64)
	return v, err
}

// LoadInt32 decodes a signed 32-bit LEB128 from the head of buf.
func LoadInt32(buf []byte) (int32, uint32, error) {
	r := &byteSliceReader{buf: buf}
	v, n, err := decodeInt(r, 32)
	return int32(v), n, err
}

// LoadInt64 decodes a signed 64-bit LEB128 from the head of buf.
func LoadInt64(buf []byte) (int64, uint32, error) {
	r := &byteSliceReader{buf: buf}
	return decodeInt(r, 64)
}

func decodeInt(r io.ByteReader, bits int) (result int64, read uint32, err error) {
	maxLen := maxVarintLen64
	if bits == 32 {
		maxLen = maxVarintLen32
	}
	var shift uint
	var b byte
	for {
		if int(read) >= maxLen {
			return 0, read, fmt.Errorf("leb128: overlong encoding (more than %d bytes)", maxLen)
		}
		var rErr error
		b, rErr = r.ReadByte()
		if rErr != nil {
			return 0, read, rErr
		}
		read++
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= -1 << shift
	}
	if bits < 64 {
		// Validate that the sign-extended result actually fits in `bits`.
		v32 := int32(result)
		if int64(v32) != result {
			return 0, read, fmt.Errorf("leb128: value %#x does not fit in %d bits", result, bits)
		}
	}
	return result, read, nil
}

// EncodeUint32 encodes v as unsigned LEB128.
func EncodeUint32(v uint32) []byte { return encodeUint(uint64(v)) }

// EncodeUint64 encodes v as unsigned LEB128.
func EncodeUint64(v uint64) []byte { return encodeUint(v) }

func encodeUint(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

// EncodeInt32 encodes v as signed LEB128.
func EncodeInt32(v int32) []byte { return encodeInt(int64(v)) }

// EncodeInt64 encodes v as signed LEB128.
func EncodeInt64(v int64) []byte { return encodeInt(v) }

func encodeInt(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			out = append(out, b)
			return out
		}
		out = append(out, b|0x80)
	}
}

// byteSliceReader adapts a []byte to io.ByteReader without an allocation
// per call, used by the Load* helpers that decode from an in-memory
// module image rather than a stream.
type byteSliceReader struct {
	buf []byte
	pos int
}

func (r *byteSliceReader) ReadByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}
