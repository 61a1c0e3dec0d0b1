// Package decoder turns a Wasm binary byte stream into an immutable
// module.Module, per spec.md §4.1 "Decoder (Module Loader)".
package decoder

import (
	"io"
	"os"

	"github.com/Geckos-Ink/fayasm-sub000/api"
	"github.com/Geckos-Ink/fayasm-sub000/internal/leb128"
)

// Source is a random-access byte source: either a file handle or an
// in-memory buffer. The decoder never assumes the whole source is
// resident in memory at once, so it can run against a module that
// streams from external storage on constrained hosts.
type Source interface {
	// ReadAt reads len(p) bytes starting at off, exactly like io.ReaderAt.
	ReadAt(p []byte, off int64) (int, error)
	// Size returns the total byte length of the source.
	Size() int64
}

// memorySource is a Source backed by an in-memory buffer.
type memorySource struct{ buf []byte }

// NewMemorySource wraps buf (the whole module image) as a Source.
func NewMemorySource(buf []byte) Source { return &memorySource{buf: buf} }

func (m *memorySource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[off:])
	if n < len(p) {
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}

func (m *memorySource) Size() int64 { return int64(len(m.buf)) }

// fileSource is a Source backed by an *os.File, for hosts that spill the
// module bytes themselves to external storage.
type fileSource struct {
	f    *os.File
	size int64
}

// NewFileSource opens path for random-access reading.
func NewFileSource(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, api.Wrap(api.Stream, err)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, api.Wrap(api.Stream, err)
	}
	return &fileSource{f: f, size: fi.Size()}, nil
}

func (s *fileSource) ReadAt(p []byte, off int64) (int, error) { return s.f.ReadAt(p, off) }
func (s *fileSource) Size() int64                             { return s.size }
func (s *fileSource) Close() error                             { return s.f.Close() }

// cursor is a forward-only read position over a Source, the decoder's
// basic I/O primitive. It also implements io.ByteReader for the leb128
// package.
type cursor struct {
	src Source
	pos int64
}

func newCursor(src Source) *cursor { return &cursor{src: src} }

func (c *cursor) ReadByte() (byte, error) {
	var b [1]byte
	n, err := c.src.ReadAt(b[:], c.pos)
	if n == 1 {
		c.pos++
		return b[0], nil
	}
	return 0, streamErr(err)
}

func (c *cursor) readBytes(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	rn, err := c.src.ReadAt(buf, c.pos)
	c.pos += int64(rn)
	if rn < n {
		return nil, streamErr(err)
	}
	return buf, nil
}

func (c *cursor) skip(n int64) { c.pos += n }

func (c *cursor) remaining() int64 { return c.src.Size() - c.pos }

func streamErr(err error) error {
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return api.Wrap(api.Stream, err)
}

// magic + version, per https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-module
var wasmMagic = [4]byte{0x00, 0x61, 0x73, 0x6d}

const wasmVersion1 uint32 = 1

// loadHeader verifies the \0asm magic and version 1, per open()/
// load_header() in spec.md §4.1.
func (d *Decoder) loadHeader() error {
	got, err := d.cur.readBytes(4)
	if err != nil {
		return err
	}
	for i, b := range wasmMagic {
		if got[i] != b {
			return api.NewError(api.Unsupported, "malformed-module: bad magic bytes %x", got)
		}
	}
	verBytes, err := d.cur.readBytes(4)
	if err != nil {
		return err
	}
	ver := uint32(verBytes[0]) | uint32(verBytes[1])<<8 | uint32(verBytes[2])<<16 | uint32(verBytes[3])<<24
	if ver != wasmVersion1 {
		return api.NewError(api.Unsupported, "malformed-module: unsupported version %d", ver)
	}
	return nil
}

// sectionEntry records one parsed section header: its kind, custom name
// (if any), and the byte range of its contents (not including the
// section id byte or the size varint).
type sectionEntry struct {
	id       byte
	name     string // only for SectionIDCustom
	offset   int64
	length   int64
}

// Decoder holds the in-progress parse state for one module.
type Decoder struct {
	cur      *cursor
	sections []sectionEntry
}

// Open creates a Decoder positioned at the start of src.
func Open(src Source) *Decoder {
	return &Decoder{cur: newCursor(src)}
}

// scanSections walks the section headers once to determine how many
// sections exist, then walks them again to record each section's id,
// custom name, and content byte range. The two passes let the second
// preallocate d.sections to its exact final length, matching the
// count-then-record shape the decoder uses throughout.
func (d *Decoder) scanSections() error {
	start := d.cur.pos
	count := 0
	for d.cur.remaining() > 0 {
		if err := d.skipOneSectionHeader(); err != nil {
			return err
		}
		count++
	}

	d.cur.pos = start
	d.sections = make([]sectionEntry, 0, count)
	for d.cur.remaining() > 0 {
		entry, err := d.readOneSectionHeader()
		if err != nil {
			return err
		}
		d.sections = append(d.sections, entry)
		d.cur.pos = entry.offset + entry.length
	}
	return nil
}

// skipOneSectionHeader advances past one section (id + size varint +
// contents) without allocating a sectionEntry, used by scanSections'
// counting pass.
func (d *Decoder) skipOneSectionHeader() error {
	if _, err := d.cur.ReadByte(); err != nil {
		return err
	}
	size, err := leb128.DecodeUint32(d.cur)
	if err != nil {
		return err
	}
	if int64(size) > d.cur.remaining() {
		return api.NewError(api.Stream, "malformed-module: section size %d exceeds remaining input", size)
	}
	d.cur.skip(int64(size))
	return nil
}

// readOneSectionHeader reads one section's id, size, and (for custom
// sections) name, returning the content byte range.
func (d *Decoder) readOneSectionHeader() (sectionEntry, error) {
	id, err := d.cur.ReadByte()
	if err != nil {
		return sectionEntry{}, err
	}
	size, err := leb128.DecodeUint32(d.cur)
	if err != nil {
		return sectionEntry{}, err
	}
	contentStart := d.cur.pos
	contentEnd := contentStart + int64(size)
	if contentEnd > d.cur.src.Size() {
		return sectionEntry{}, api.NewError(api.Stream, "malformed-module: section size %d exceeds remaining input", size)
	}

	entry := sectionEntry{id: id, offset: contentStart, length: int64(size)}
	if id == 0 {
		name, nameLen, err := d.readNameAt(contentStart)
		if err != nil {
			return sectionEntry{}, err
		}
		entry.name = name
		entry.offset = contentStart + nameLen
		entry.length = int64(size) - nameLen
		if entry.length < 0 {
			return sectionEntry{}, api.NewError(api.Stream, "malformed-module: custom section name longer than section")
		}
	}
	return entry, nil
}

// readNameAt reads a length-prefixed UTF-8 name starting at off, used
// both for custom section names and the import/export name fields.
func (d *Decoder) readNameAt(off int64) (name string, consumed int64, err error) {
	save := d.cur.pos
	d.cur.pos = off
	defer func() { d.cur.pos = save }()

	n, err := leb128.DecodeUint32(d.cur)
	if err != nil {
		return "", 0, err
	}
	b, err := d.cur.readBytes(int(n))
	if err != nil {
		return "", 0, err
	}
	return string(b), d.cur.pos - off, nil
}
