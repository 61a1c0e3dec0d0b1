package decoder

import (
	"github.com/Geckos-Ink/fayasm-sub000/api"
	"github.com/Geckos-Ink/fayasm-sub000/internal/leb128"
	"github.com/Geckos-Ink/fayasm-sub000/module"
)

// Section ids, in the order the core spec requires them to appear
// (custom sections may interleave anywhere between them).
const (
	sectionIDCustom    byte = 0
	sectionIDType      byte = 1
	sectionIDImport    byte = 2
	sectionIDFunction  byte = 3
	sectionIDTable     byte = 4
	sectionIDMemory    byte = 5
	sectionIDGlobal    byte = 6
	sectionIDExport    byte = 7
	sectionIDStart     byte = 8
	sectionIDElement   byte = 9
	sectionIDCode      byte = 10
	sectionIDData      byte = 11
	sectionIDDataCount byte = 12
)

const importKindFunc, importKindTable, importKindMemory, importKindGlobal = 0, 1, 2, 3

// memFlagHasMax, memFlagShared, memFlagMemory64 are the bits of a
// limits/memory flags byte, per the reference-types/threads/memory64
// extensions this core covers.
const (
	memFlagHasMax    = 0x01
	memFlagShared    = 0x02
	memFlagMemory64  = 0x04
)

// bodyReader reads sequentially from one section's content, tracking
// the absolute Source offset of the bytes it has consumed so far so
// callers can record absolute byte ranges (e.g. a function body's
// location for later lazy re-reading by the instruction stream).
type bodyReader struct {
	b    []byte
	pos  int
	base int64 // absolute Source offset of b[0]
}

func (r *bodyReader) ReadByte() (byte, error) {
	if r.pos >= len(r.b) {
		return 0, api.NewError(api.Stream, "malformed-module: unexpected end of section")
	}
	c := r.b[r.pos]
	r.pos++
	return c, nil
}

func (r *bodyReader) readBytes(n int) ([]byte, error) {
	if r.pos+n > len(r.b) {
		return nil, api.NewError(api.Stream, "malformed-module: unexpected end of section")
	}
	out := r.b[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *bodyReader) readName() (string, error) {
	n, err := leb128.DecodeUint32(r)
	if err != nil {
		return "", err
	}
	b, err := r.readBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *bodyReader) readValueType() (api.ValueType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	switch b {
	case api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeF32, api.ValueTypeF64,
		api.ValueTypeV128, api.ValueTypeFuncref, api.ValueTypeExternref:
		return b, nil
	default:
		return 0, api.NewError(api.Unsupported, "malformed-module: invalid value type byte 0x%02x", b)
	}
}

// readLimits reads a limits record (flags, min, optional max). When the
// memory64 bit is set, min/max are encoded as 64-bit varints; this core
// stores them truncated to uint32 pages, which is not a practical
// restriction for any module this runtime can otherwise hold in memory.
func (r *bodyReader) readLimits() (min, max uint32, hasMax, shared, is64 bool, err error) {
	flags, err := r.ReadByte()
	if err != nil {
		return
	}
	hasMax = flags&memFlagHasMax != 0
	shared = flags&memFlagShared != 0
	is64 = flags&memFlagMemory64 != 0

	if is64 {
		var m64 uint64
		m64, err = leb128.DecodeUint64(r)
		if err != nil {
			return
		}
		min = uint32(m64)
		if hasMax {
			m64, err = leb128.DecodeUint64(r)
			if err != nil {
				return
			}
			max = uint32(m64)
		}
		return
	}
	min, err = leb128.DecodeUint32(r)
	if err != nil {
		return
	}
	if hasMax {
		max, err = leb128.DecodeUint32(r)
	}
	return
}

// bodyReaderFor extracts sec's content from src into a bodyReader.
func bodyReaderFor(src Source, sec sectionEntry) (*bodyReader, error) {
	buf := make([]byte, sec.length)
	if sec.length > 0 {
		n, err := src.ReadAt(buf, sec.offset)
		if int64(n) < sec.length {
			return nil, streamErr(err)
		}
	}
	return &bodyReader{b: buf, base: sec.offset}, nil
}

// Decode parses src into a fully-populated, immutable module.Module.
// This is the top-level entry point callers use; open()/load_header()/
// scan_sections()/load_*() (below) are its internal steps.
func Decode(src Source) (*module.Module, error) {
	d := Open(src)
	if err := d.loadHeader(); err != nil {
		return nil, err
	}
	if err := d.scanSections(); err != nil {
		return nil, err
	}

	m := &module.Module{Exports: map[string]module.Export{}}

	var importFuncs []module.Function
	var importTables []module.Table
	var importMemories []module.Memory
	var importGlobals []module.Global

	var definedFuncTypeIdx []module.Index
	var definedTables []module.Table
	var definedMemories []module.Memory
	var definedGlobals []module.Global
	var codeBodies []codeBody

	sawDataCount := false
	var declaredDataCount uint32
	var rawData []rawDataSegment
	var rawElements []rawElementSegment

	seen := map[byte]bool{}
	lastNonCustomID := byte(0)
	for _, sec := range d.sections {
		if sec.id != sectionIDCustom {
			if seen[sec.id] {
				return nil, api.NewError(api.Stream, "malformed-module: duplicate section id %d", sec.id)
			}
			seen[sec.id] = true
			if sec.id < lastNonCustomID {
				return nil, api.NewError(api.Stream, "malformed-module: section id %d out of order", sec.id)
			}
			lastNonCustomID = sec.id
		}

		switch sec.id {
		case sectionIDCustom:
			if sec.name == "name" {
				ns, err := parseNameSection(src, sec)
				if err == nil {
					m.NameSection = ns
				}
				// A malformed name section is informative-only; ignore it
				// rather than failing the whole module.
			}

		case sectionIDType:
			br, err := bodyReaderFor(src, sec)
			if err != nil {
				return nil, err
			}
			types, err := parseTypeSection(br)
			if err != nil {
				return nil, err
			}
			m.Types = types

		case sectionIDImport:
			br, err := bodyReaderFor(src, sec)
			if err != nil {
				return nil, err
			}
			f, t, mem, g, err := parseImportSection(br)
			if err != nil {
				return nil, err
			}
			importFuncs, importTables, importMemories, importGlobals = f, t, mem, g

		case sectionIDFunction:
			br, err := bodyReaderFor(src, sec)
			if err != nil {
				return nil, err
			}
			idx, err := parseFunctionSection(br)
			if err != nil {
				return nil, err
			}
			definedFuncTypeIdx = idx

		case sectionIDTable:
			br, err := bodyReaderFor(src, sec)
			if err != nil {
				return nil, err
			}
			tabs, err := parseTableSection(br)
			if err != nil {
				return nil, err
			}
			definedTables = tabs

		case sectionIDMemory:
			br, err := bodyReaderFor(src, sec)
			if err != nil {
				return nil, err
			}
			mems, err := parseMemorySection(br)
			if err != nil {
				return nil, err
			}
			definedMemories = mems

		case sectionIDGlobal:
			br, err := bodyReaderFor(src, sec)
			if err != nil {
				return nil, err
			}
			globals, err := parseGlobalSection(br)
			if err != nil {
				return nil, err
			}
			definedGlobals = globals

		case sectionIDExport:
			br, err := bodyReaderFor(src, sec)
			if err != nil {
				return nil, err
			}
			exports, err := parseExportSection(br)
			if err != nil {
				return nil, err
			}
			m.Exports = exports

		case sectionIDStart:
			br, err := bodyReaderFor(src, sec)
			if err != nil {
				return nil, err
			}
			idx, err := leb128.DecodeUint32(br)
			if err != nil {
				return nil, err
			}
			m.StartFunctionIndex = idx
			m.HasStartFunctionIndex = true

		case sectionIDElement:
			br, err := bodyReaderFor(src, sec)
			if err != nil {
				return nil, err
			}
			els, err := parseElementSection(br)
			if err != nil {
				return nil, err
			}
			rawElements = els

		case sectionIDDataCount:
			br, err := bodyReaderFor(src, sec)
			if err != nil {
				return nil, err
			}
			n, err := leb128.DecodeUint32(br)
			if err != nil {
				return nil, err
			}
			sawDataCount = true
			declaredDataCount = n

		case sectionIDCode:
			br, err := bodyReaderFor(src, sec)
			if err != nil {
				return nil, err
			}
			bodies, err := parseCodeSection(br)
			if err != nil {
				return nil, err
			}
			codeBodies = bodies

		case sectionIDData:
			br, err := bodyReaderFor(src, sec)
			if err != nil {
				return nil, err
			}
			segs, err := parseDataSection(br)
			if err != nil {
				return nil, err
			}
			rawData = segs

		default:
			return nil, api.NewError(api.Unsupported, "malformed-module: unknown section id %d", sec.id)
		}
	}

	if sawDataCount && uint32(len(rawData)) != declaredDataCount {
		return nil, api.NewError(api.Stream, "malformed-module: data count %d does not match %d data segments", declaredDataCount, len(rawData))
	}
	if len(definedFuncTypeIdx) != len(codeBodies) {
		return nil, api.NewError(api.Stream, "malformed-module: function section declares %d functions but code section has %d bodies", len(definedFuncTypeIdx), len(codeBodies))
	}

	m.ImportFunctionCount = module.Index(len(importFuncs))
	m.ImportTableCount = module.Index(len(importTables))
	m.ImportMemoryCount = module.Index(len(importMemories))
	m.ImportGlobalCount = module.Index(len(importGlobals))

	m.Functions = append(importFuncs, make([]module.Function, len(definedFuncTypeIdx))...)
	for i, ti := range definedFuncTypeIdx {
		fn := &m.Functions[int(m.ImportFunctionCount)+i]
		fn.TypeIndex = ti
		fn.BodyOffset = uint32(codeBodies[i].offset)
		fn.BodyLength = uint32(codeBodies[i].length)
		fn.Locals = codeBodies[i].locals
	}

	m.Tables = append(importTables, definedTables...)
	m.Memories = append(importMemories, definedMemories...)
	m.Globals = append(importGlobals, definedGlobals...)

	for _, re := range rawElements {
		seg := module.ElementSegment{Type: re.elemType, Mode: re.mode, TableIndex: re.tableIndex, Offset: re.offset}
		seg.Init = re.init
		m.ElementSegments = append(m.ElementSegments, seg)
	}
	for _, rd := range rawData {
		m.DataSegments = append(m.DataSegments, module.DataSegment{
			MemoryIndex: rd.memIndex,
			Offset:      rd.offset,
			Init:        rd.init,
			Passive:     rd.passive,
		})
	}

	if err := validateIndices(m); err != nil {
		return nil, err
	}
	return m, nil
}

func validateIndices(m *module.Module) error {
	for i := range m.Functions {
		if int(m.Functions[i].TypeIndex) >= len(m.Types) {
			return api.NewError(api.Stream, "malformed-module: function %d references out-of-range type %d", i, m.Functions[i].TypeIndex)
		}
	}
	for name, exp := range m.Exports {
		var n int
		switch exp.Type {
		case api.ExternTypeFunc:
			n = len(m.Functions)
		case api.ExternTypeTable:
			n = len(m.Tables)
		case api.ExternTypeMemory:
			n = len(m.Memories)
		case api.ExternTypeGlobal:
			n = len(m.Globals)
		}
		if int(exp.Index) >= n {
			return api.NewError(api.Stream, "malformed-module: export %q references out-of-range index %d", name, exp.Index)
		}
	}
	if m.HasStartFunctionIndex && int(m.StartFunctionIndex) >= len(m.Functions) {
		return api.NewError(api.Stream, "malformed-module: start function index %d out of range", m.StartFunctionIndex)
	}
	return nil
}

type codeBody struct {
	offset, length int64
	locals         []api.ValueType
}

type rawDataSegment struct {
	memIndex module.Index
	offset   module.ConstantExpression
	init     []byte
	passive  bool
}

type rawElementSegment struct {
	elemType   api.ValueType
	mode       module.ElementMode
	tableIndex module.Index
	offset     module.ConstantExpression
	init       []module.ElementInit
}

func parseTypeSection(r *bodyReader) ([]module.FunctionType, error) {
	n, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]module.FunctionType, n)
	for i := range out {
		tag, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if tag != 0x60 {
			return nil, api.NewError(api.Unsupported, "malformed-module: expected func type tag 0x60, got 0x%02x", tag)
		}
		params, err := readValueTypeVec(r)
		if err != nil {
			return nil, err
		}
		results, err := readValueTypeVec(r)
		if err != nil {
			return nil, err
		}
		out[i] = module.FunctionType{Params: params, Results: results}
	}
	return out, nil
}

func readValueTypeVec(r *bodyReader) ([]api.ValueType, error) {
	n, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]api.ValueType, n)
	for i := range out {
		out[i], err = r.readValueType()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func parseImportSection(r *bodyReader) (funcs []module.Function, tables []module.Table, mems []module.Memory, globals []module.Global, err error) {
	n, err := leb128.DecodeUint32(r)
	if err != nil {
		return
	}
	for i := uint32(0); i < n; i++ {
		var modName, fieldName string
		modName, err = r.readName()
		if err != nil {
			return
		}
		fieldName, err = r.readName()
		if err != nil {
			return
		}
		var kind byte
		kind, err = r.ReadByte()
		if err != nil {
			return
		}
		switch kind {
		case importKindFunc:
			var ti uint32
			ti, err = leb128.DecodeUint32(r)
			if err != nil {
				return
			}
			funcs = append(funcs, module.Function{TypeIndex: ti, IsImport: true, ImportModule: modName, ImportName: fieldName})
		case importKindTable:
			var elemType api.ValueType
			elemType, err = r.readValueType()
			if err != nil {
				return
			}
			var min, max uint32
			var hasMax, shared, is64 bool
			min, max, hasMax, shared, is64, err = r.readLimits()
			if err != nil {
				return
			}
			_ = shared
			_ = is64
			tables = append(tables, module.Table{Min: min, Max: max, HasMax: hasMax, ElemType: elemType, IsImport: true, ImportModule: modName, ImportName: fieldName})
		case importKindMemory:
			var min, max uint32
			var hasMax, shared, is64 bool
			min, max, hasMax, shared, is64, err = r.readLimits()
			if err != nil {
				return
			}
			mems = append(mems, module.Memory{Min: min, Max: max, HasMax: hasMax, IsShared: shared, IsMemory64: is64, IsImport: true, ImportModule: modName, ImportName: fieldName})
		case importKindGlobal:
			var vt api.ValueType
			vt, err = r.readValueType()
			if err != nil {
				return
			}
			var mutByte byte
			mutByte, err = r.ReadByte()
			if err != nil {
				return
			}
			globals = append(globals, module.Global{Type: module.GlobalType{ValType: vt, Mutable: mutByte == 1}, IsImport: true, ImportModule: modName, ImportName: fieldName})
		default:
			err = api.NewError(api.Unsupported, "malformed-module: unknown import kind %d", kind)
			return
		}
	}
	return
}

func parseFunctionSection(r *bodyReader) ([]module.Index, error) {
	n, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]module.Index, n)
	for i := range out {
		out[i], err = leb128.DecodeUint32(r)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func parseTableSection(r *bodyReader) ([]module.Table, error) {
	n, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]module.Table, n)
	for i := range out {
		elemType, err := r.readValueType()
		if err != nil {
			return nil, err
		}
		min, max, hasMax, _, _, err := r.readLimits()
		if err != nil {
			return nil, err
		}
		out[i] = module.Table{Min: min, Max: max, HasMax: hasMax, ElemType: elemType}
	}
	return out, nil
}

func parseMemorySection(r *bodyReader) ([]module.Memory, error) {
	n, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]module.Memory, n)
	for i := range out {
		min, max, hasMax, shared, is64, err := r.readLimits()
		if err != nil {
			return nil, err
		}
		out[i] = module.Memory{Min: min, Max: max, HasMax: hasMax, IsShared: shared, IsMemory64: is64}
	}
	return out, nil
}

func parseGlobalSection(r *bodyReader) ([]module.Global, error) {
	n, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]module.Global, n)
	for i := range out {
		vt, err := r.readValueType()
		if err != nil {
			return nil, err
		}
		mutByte, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		init, err := readConstExpr(r)
		if err != nil {
			return nil, err
		}
		out[i] = module.Global{Type: module.GlobalType{ValType: vt, Mutable: mutByte == 1}, Init: init}
	}
	return out, nil
}

func parseExportSection(r *bodyReader) (map[string]module.Export, error) {
	n, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	out := make(map[string]module.Export, n)
	for i := uint32(0); i < n; i++ {
		name, err := r.readName()
		if err != nil {
			return nil, err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		idx, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, err
		}
		if _, dup := out[name]; dup {
			return nil, api.NewError(api.Stream, "malformed-module: duplicate export name %q", name)
		}
		out[name] = module.Export{Name: name, Type: kind, Index: idx}
	}
	return out, nil
}

func parseCodeSection(r *bodyReader) ([]codeBody, error) {
	n, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]codeBody, n)
	for i := range out {
		bodySize, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, err
		}
		bodyStartPos := r.pos
		localCount, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, err
		}
		var locals []api.ValueType
		for g := uint32(0); g < localCount; g++ {
			cnt, err := leb128.DecodeUint32(r)
			if err != nil {
				return nil, err
			}
			vt, err := r.readValueType()
			if err != nil {
				return nil, err
			}
			for j := uint32(0); j < cnt; j++ {
				locals = append(locals, vt)
			}
		}
		// the instruction stream (ending in `end`) occupies the remainder
		// of bodySize bytes; record its absolute range for lazy reload.
		instrStart := r.pos
		instrEnd := bodyStartPos + int(bodySize)
		if instrEnd > len(r.b) || instrEnd < instrStart {
			return nil, api.NewError(api.Stream, "malformed-module: truncated function body")
		}
		out[i] = codeBody{
			offset: r.base + int64(instrStart),
			length: int64(instrEnd - instrStart),
			locals: locals,
		}
		r.pos = instrEnd
	}
	return out, nil
}

func parseDataSection(r *bodyReader) ([]rawDataSegment, error) {
	n, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]rawDataSegment, n)
	for i := range out {
		kind, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, err
		}
		switch kind {
		case 0: // active, memory 0
			offset, err := readConstExpr(r)
			if err != nil {
				return nil, err
			}
			init, err := readByteVec(r)
			if err != nil {
				return nil, err
			}
			out[i] = rawDataSegment{memIndex: 0, offset: offset, init: init}
		case 1: // passive
			init, err := readByteVec(r)
			if err != nil {
				return nil, err
			}
			out[i] = rawDataSegment{passive: true, init: init}
		case 2: // active, explicit memory index
			memIdx, err := leb128.DecodeUint32(r)
			if err != nil {
				return nil, err
			}
			offset, err := readConstExpr(r)
			if err != nil {
				return nil, err
			}
			init, err := readByteVec(r)
			if err != nil {
				return nil, err
			}
			out[i] = rawDataSegment{memIndex: memIdx, offset: offset, init: init}
		default:
			return nil, api.NewError(api.Unsupported, "malformed-module: unknown data segment kind %d", kind)
		}
	}
	return out, nil
}

func readByteVec(r *bodyReader) ([]byte, error) {
	n, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	b, err := r.readBytes(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// parseElementSection handles all eight Wasm 1.0 + reference-types element
// segment encodings (kinds 0-7 per the bulk-memory/reference-types
// proposal Binary.md).
func parseElementSection(r *bodyReader) ([]rawElementSegment, error) {
	n, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]rawElementSegment, n)
	for i := range out {
		kind, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, err
		}
		seg := rawElementSegment{elemType: api.ValueTypeFuncref}
		switch kind {
		case 0:
			seg.mode = module.ElementModeActive
			seg.offset, err = readConstExpr(r)
			if err != nil {
				return nil, err
			}
			seg.init, err = readFuncIndexVec(r)
		case 1:
			seg.mode = module.ElementModePassive
			if _, err = r.ReadByte(); err != nil { // elemkind byte, always 0x00
				return nil, err
			}
			seg.init, err = readFuncIndexVec(r)
		case 2:
			seg.mode = module.ElementModeActive
			seg.tableIndex, err = leb128.DecodeUint32(r)
			if err != nil {
				return nil, err
			}
			seg.offset, err = readConstExpr(r)
			if err != nil {
				return nil, err
			}
			if _, err = r.ReadByte(); err != nil {
				return nil, err
			}
			seg.init, err = readFuncIndexVec(r)
		case 3:
			seg.mode = module.ElementModeDeclarative
			if _, err = r.ReadByte(); err != nil {
				return nil, err
			}
			seg.init, err = readFuncIndexVec(r)
		case 4:
			seg.mode = module.ElementModeActive
			seg.offset, err = readConstExpr(r)
			if err != nil {
				return nil, err
			}
			seg.init, err = readExprVec(r)
		case 5:
			seg.mode = module.ElementModePassive
			seg.elemType, err = r.readValueType()
			if err != nil {
				return nil, err
			}
			seg.init, err = readExprVec(r)
		case 6:
			seg.mode = module.ElementModeActive
			seg.tableIndex, err = leb128.DecodeUint32(r)
			if err != nil {
				return nil, err
			}
			seg.offset, err = readConstExpr(r)
			if err != nil {
				return nil, err
			}
			seg.elemType, err = r.readValueType()
			if err != nil {
				return nil, err
			}
			seg.init, err = readExprVec(r)
		case 7:
			seg.mode = module.ElementModeDeclarative
			seg.elemType, err = r.readValueType()
			if err != nil {
				return nil, err
			}
			seg.init, err = readExprVec(r)
		default:
			return nil, api.NewError(api.Unsupported, "malformed-module: unknown element segment kind %d", kind)
		}
		if err != nil {
			return nil, err
		}
		out[i] = seg
	}
	return out, nil
}

func readFuncIndexVec(r *bodyReader) ([]module.ElementInit, error) {
	n, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]module.ElementInit, n)
	for i := range out {
		fi, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, err
		}
		out[i] = module.ElementInit{FuncIndex: fi}
	}
	return out, nil
}

// readExprVec reads a vector of single-instruction constant expressions
// used by element-segment kinds 4-7 (each `ref.func x end` or
// `ref.null t end` or `global.get x end`).
func readExprVec(r *bodyReader) ([]module.ElementInit, error) {
	n, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]module.ElementInit, n)
	for i := range out {
		ce, err := readConstExpr(r)
		if err != nil {
			return nil, err
		}
		init, err := elementInitFromConstExpr(ce)
		if err != nil {
			return nil, err
		}
		out[i] = init
	}
	return out, nil
}

func elementInitFromConstExpr(ce module.ConstantExpression) (module.ElementInit, error) {
	br := &bodyReader{b: ce.Data}
	switch ce.Opcode {
	case module.OpcodeRefFunc:
		fi, err := leb128.DecodeUint32(br)
		if err != nil {
			return module.ElementInit{}, err
		}
		return module.ElementInit{FuncIndex: fi}, nil
	case module.OpcodeRefNull:
		return module.ElementInit{IsNull: true}, nil
	case module.OpcodeGlobalGet:
		gi, err := leb128.DecodeUint32(br)
		if err != nil {
			return module.ElementInit{}, err
		}
		return module.ElementInit{IsGlobalRef: true, GlobalIndex: gi}, nil
	default:
		return module.ElementInit{}, api.NewError(api.Unsupported, "malformed-module: invalid element init expression opcode 0x%02x", ce.Opcode)
	}
}

func parseNameSection(src Source, sec sectionEntry) (*module.NameSection, error) {
	br, err := bodyReaderFor(src, sec)
	if err != nil {
		return nil, err
	}
	ns := &module.NameSection{FunctionNames: map[module.Index]string{}}
	for br.pos < len(br.b) {
		subID, err := br.ReadByte()
		if err != nil {
			return nil, err
		}
		size, err := leb128.DecodeUint32(br)
		if err != nil {
			return nil, err
		}
		subEnd := br.pos + int(size)
		if subEnd > len(br.b) {
			return nil, api.NewError(api.Stream, "malformed-module: truncated name subsection")
		}
		switch subID {
		case 0: // module name
			name, err := br.readName()
			if err != nil {
				return nil, err
			}
			ns.ModuleName = name
		case 1: // function names
			n, err := leb128.DecodeUint32(br)
			if err != nil {
				return nil, err
			}
			for i := uint32(0); i < n; i++ {
				idx, err := leb128.DecodeUint32(br)
				if err != nil {
					return nil, err
				}
				name, err := br.readName()
				if err != nil {
					return nil, err
				}
				ns.FunctionNames[idx] = name
			}
		}
		br.pos = subEnd
	}
	return ns, nil
}
