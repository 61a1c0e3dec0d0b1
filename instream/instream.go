// Package instream implements the lazy, single-function bytecode window
// the interpreter core reads opcodes and immediates from. See spec.md
// §4.3 "Instruction Stream".
package instream

import (
	"github.com/Geckos-Ink/fayasm-sub000/api"
	"github.com/Geckos-Ink/fayasm-sub000/internal/leb128"
)

// ByteSource supplies the raw bytes of one function body, the same
// random-access contract the decoder's Source uses, so a Stream can
// reload a function's bytecode without the module staying resident.
type ByteSource interface {
	ReadAt(p []byte, off int64) (int, error)
}

// Stream is a cursor over exactly one function body at a time. Loading
// a different function discards the previous window; there is no
// cross-function buffering.
type Stream struct {
	src ByteSource

	funcIndex  api.Index
	baseOffset int64 // absolute offset of buf[0] in src
	buf        []byte
	pc         int // offset into buf
}

// New creates an unloaded Stream reading from src.
func New(src ByteSource) *Stream { return &Stream{src: src} }

// Load makes funcIndex's body (absolute range [offset, offset+length))
// the active window and resets the PC to its start.
func (s *Stream) Load(funcIndex api.Index, offset int64, length int64) error {
	buf := make([]byte, length)
	if length > 0 {
		n, err := s.src.ReadAt(buf, offset)
		if int64(n) < length {
			if err == nil {
				err = api.NewError(api.Stream, "short read loading function %d body", funcIndex)
			}
			return api.Wrap(api.Stream, err)
		}
	}
	s.funcIndex = funcIndex
	s.baseOffset = offset
	s.buf = buf
	s.pc = 0
	return nil
}

// Unload discards the active window, as if no function were loaded.
func (s *Stream) Unload() {
	s.buf = nil
	s.pc = 0
}

func (s *Stream) Loaded() bool { return s.buf != nil }

// PC returns the current offset into the active function body.
func (s *Stream) PC() int { return s.pc }

// SetPC repositions the cursor within the active window, used when a
// branch or call resumes at a previously recorded offset.
func (s *Stream) SetPC(pc int) error {
	if pc < 0 || pc > len(s.buf) {
		return api.NewTrap(api.TrapReasonTypeMismatch, "instruction stream seek %d out of range [0,%d]", pc, len(s.buf))
	}
	s.pc = pc
	return nil
}

// AbsoluteOffset converts the current PC to an absolute module offset,
// used only for diagnostics (error messages, trap backtraces).
func (s *Stream) AbsoluteOffset() int64 { return s.baseOffset + int64(s.pc) }

// FunctionIndex reports which function's body is currently loaded.
func (s *Stream) FunctionIndex() api.Index { return s.funcIndex }

// AtEnd reports whether the cursor has consumed the whole window.
func (s *Stream) AtEnd() bool { return s.pc >= len(s.buf) }

func (s *Stream) PeekByte() (byte, error) {
	if s.pc >= len(s.buf) {
		return 0, api.NewTrap(api.TrapReasonUnreachable, "read past end of function %d body", s.funcIndex)
	}
	return s.buf[s.pc], nil
}

// ReadByte implements io.ByteReader, consuming one byte, so the leb128
// package can decode directly from a Stream.
func (s *Stream) ReadByte() (byte, error) {
	b, err := s.PeekByte()
	if err != nil {
		return 0, err
	}
	s.pc++
	return b, nil
}

func (s *Stream) ReadBytes(n int) ([]byte, error) {
	if s.pc+n > len(s.buf) {
		return nil, api.NewTrap(api.TrapReasonUnreachable, "read past end of function %d body", s.funcIndex)
	}
	out := s.buf[s.pc : s.pc+n]
	s.pc += n
	return out, nil
}

func (s *Stream) Advance(n int) error {
	if s.pc+n > len(s.buf) || s.pc+n < 0 {
		return api.NewTrap(api.TrapReasonUnreachable, "seek past end of function %d body", s.funcIndex)
	}
	s.pc += n
	return nil
}

func (s *Stream) ReadULEB32() (uint32, error) { return leb128.DecodeUint32(s) }
func (s *Stream) ReadULEB64() (uint64, error) { return leb128.DecodeUint64(s) }
func (s *Stream) ReadSLEB32() (int32, error)  { return leb128.DecodeInt32(s) }
func (s *Stream) ReadSLEB64() (int64, error)  { return leb128.DecodeInt64(s) }

// Locate resolves an absolute module offset against a lookup of
// per-function body ranges, used to translate a trap's raw byte
// position into a (function index, intra-function offset) pair for
// diagnostics. ranges must be the same imports-first function index
// space the decoder produced; imported functions have zero length and
// never match.
func Locate(ranges []FuncRange, absOffset int64) (funcIndex api.Index, intraOffset int, ok bool) {
	for i, r := range ranges {
		if r.Length == 0 {
			continue
		}
		if absOffset >= r.Offset && absOffset < r.Offset+r.Length {
			return api.Index(i), int(absOffset - r.Offset), true
		}
	}
	return 0, 0, false
}

// FuncRange is one function's absolute body byte range, as recorded by
// the decoder on module.Function.
type FuncRange struct {
	Offset, Length int64
}
