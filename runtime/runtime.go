package runtime

import (
	"github.com/Geckos-Ink/fayasm-sub000/api"
	"github.com/Geckos-Ink/fayasm-sub000/decoder"
	"github.com/Geckos-Ink/fayasm-sub000/module"
)

// Imports aggregates everything Attach needs to resolve a module's
// import section. There is no cross-module linker in this core: an
// embedder supplies concrete host functions and pre-built Memory/
// Table/Global values (however it obtained them) keyed by
// runtime.Key(moduleName, fieldName).
type Imports struct {
	Functions SymbolResolver
	Memories  map[string]*Memory
	Tables    map[string]*Table
	Globals   map[string]*Global
}

// Runtime is a live instantiation of one module.Module: its memories,
// tables, globals, and resolved function bindings (imports bound to
// HostFunction, defined functions addressed by index only — the job
// package executes their bodies).
type Runtime struct {
	Module *module.Module
	Config RuntimeConfig

	Memories []*Memory
	Tables   []*Table
	Globals  []*Global

	// HostFunctions parallels Module.Functions[:ImportFunctionCount].
	HostFunctions []HostFunction

	// FunctionTypeKeys[i] is Module.Types[i].CacheKey(), precomputed once
	// so call_indirect's signature check is a string compare rather than
	// a field-by-field walk on every indirect call.
	FunctionTypeKeys []string

	DroppedData []bool
	DroppedElem []bool

	// FunctionTrapFlags parallels Module.Functions; a set entry means
	// the function trap hook must run before that function's body
	// first executes (or on each call, until the hook clears it).
	FunctionTrapFlags []bool

	// elemRefsCache/dataCache hold each segment's resolved contents for
	// table.init/memory.init, keyed by segment index; a segment's entry
	// is deleted once elem.drop/data.drop discards it.
	elemRefsCache map[int][]api.Reference
	dataCache     map[int][]byte

	hooks Hooks
}

// Attach resolves m's imports against imports, materializes its defined
// memories/tables/globals (running constant-expression initializers),
// applies active element/data segments, and returns a ready Runtime.
// The start function, if any, is not invoked here; the caller runs it
// through the same execution path as any other call.
func Attach(m *module.Module, imports Imports, cfg RuntimeConfig) (*Runtime, error) {
	r := &Runtime{Module: m, Config: cfg}
	r.FunctionTrapFlags = make([]bool, len(m.Functions))

	r.FunctionTypeKeys = make([]string, len(m.Types))
	for i := range m.Types {
		r.FunctionTypeKeys[i] = m.Types[i].CacheKey()
	}

	if err := r.bindImportedFunctions(m, imports); err != nil {
		return nil, err
	}
	if err := r.bindMemories(m, imports, cfg); err != nil {
		return nil, err
	}
	if err := r.bindTables(m, imports); err != nil {
		return nil, err
	}
	if err := r.bindGlobals(m, imports); err != nil {
		return nil, err
	}
	if err := r.applyElements(m); err != nil {
		return nil, err
	}
	if err := r.applyData(m); err != nil {
		return nil, err
	}
	return r, nil
}

// SetHooks installs the spill/trap hooks an embedder wants observed.
func (r *Runtime) SetHooks(h Hooks) { r.hooks = h }

func (r *Runtime) bindImportedFunctions(m *module.Module, imports Imports) error {
	r.HostFunctions = make([]HostFunction, m.ImportFunctionCount)
	for i := module.Index(0); i < m.ImportFunctionCount; i++ {
		fn := m.Functions[i]
		if imports.Functions == nil {
			return api.NewError(api.NoModule, "function import %s.%s: no function resolver installed", fn.ImportModule, fn.ImportName)
		}
		hf, ok := imports.Functions.Resolve(fn.ImportModule, fn.ImportName)
		if !ok {
			return api.NewError(api.NoModule, "function import %s.%s not resolved", fn.ImportModule, fn.ImportName)
		}
		ft := m.Types[fn.TypeIndex]
		if !ft.EqualsSignature(hf.Params, hf.Results) {
			return api.NewError(api.InvalidArgument, "function import %s.%s signature mismatch", fn.ImportModule, fn.ImportName)
		}
		r.HostFunctions[i] = hf
	}
	return nil
}

func (r *Runtime) bindMemories(m *module.Module, imports Imports, cfg RuntimeConfig) error {
	r.Memories = make([]*Memory, len(m.Memories))
	for i, def := range m.Memories {
		if def.IsImport {
			key := Key(def.ImportModule, def.ImportName)
			mem, ok := imports.Memories[key]
			if !ok {
				return api.NewError(api.NoModule, "memory import %s.%s not resolved", def.ImportModule, def.ImportName)
			}
			r.Memories[i] = mem
			continue
		}
		if err := def.Validate(cfg.memoryLimitPages); err != nil {
			return api.NewError(api.InvalidArgument, "%s", err.Error())
		}
		r.Memories[i] = NewMemory(def, cfg.memoryLimitPages)
	}
	return nil
}

func (r *Runtime) bindTables(m *module.Module, imports Imports) error {
	r.Tables = make([]*Table, len(m.Tables))
	for i, def := range m.Tables {
		if def.IsImport {
			key := Key(def.ImportModule, def.ImportName)
			tab, ok := imports.Tables[key]
			if !ok {
				return api.NewError(api.NoModule, "table import %s.%s not resolved", def.ImportModule, def.ImportName)
			}
			r.Tables[i] = tab
			continue
		}
		r.Tables[i] = NewTable(def)
	}
	return nil
}

func (r *Runtime) bindGlobals(m *module.Module, imports Imports) error {
	r.Globals = make([]*Global, len(m.Globals))
	for i, def := range m.Globals {
		if def.IsImport {
			key := Key(def.ImportModule, def.ImportName)
			g, ok := imports.Globals[key]
			if !ok {
				return api.NewError(api.NoModule, "global import %s.%s not resolved", def.ImportModule, def.ImportName)
			}
			r.Globals[i] = g
			continue
		}
		// Only previously-resolved (necessarily earlier-indexed, and
		// per the core spec necessarily imported) globals may be
		// referenced by global.get in a constant expression.
		resolver := func(idx module.Index) (uint64, error) {
			if int(idx) >= i || r.Globals[idx] == nil {
				return 0, api.NewError(api.InvalidArgument, "global initializer references undefined global %d", idx)
			}
			return r.Globals[idx].Value, nil
		}
		v, _, err := decoder.EvalConstExpr(def.Init, resolver)
		if err != nil {
			return err
		}
		r.Globals[i] = &Global{Type: def.Type, Value: v}
	}
	return nil
}

func (r *Runtime) globalValue(idx module.Index) (uint64, error) {
	if int(idx) >= len(r.Globals) || r.Globals[idx] == nil {
		return 0, api.NewError(api.InvalidArgument, "undefined global %d", idx)
	}
	return r.Globals[idx].Value, nil
}

func (r *Runtime) applyElements(m *module.Module) error {
	r.DroppedElem = make([]bool, len(m.ElementSegments))
	for i, seg := range m.ElementSegments {
		refs := make([]api.Reference, len(seg.Init))
		for j, init := range seg.Init {
			switch {
			case init.IsNull:
				refs[j] = api.NullReference
			case init.IsGlobalRef:
				v, err := r.globalValue(init.GlobalIndex)
				if err != nil {
					return err
				}
				refs[j] = api.Reference(v)
			default:
				refs[j] = FuncRef(init.FuncIndex)
			}
		}

		switch seg.Mode {
		case module.ElementModeDeclarative:
			// Exists only so ref.func validation against it succeeds;
			// never copyable into a table, so nothing is cached.
			r.DroppedElem[i] = true
			continue
		case module.ElementModePassive:
			// stays available for table.init until explicitly dropped.
		case module.ElementModeActive:
			off, _, err := decoder.EvalConstExpr(seg.Offset, r.globalValue)
			if err != nil {
				return err
			}
			tab := r.Tables[seg.TableIndex]
			if err := tab.Init(uint32(off), refs, 0, uint32(len(refs))); err != nil {
				return err
			}
			r.DroppedElem[i] = true
		}
		r.elementRefs(i, refs)
	}
	return nil
}

// elementRefs caches segment i's resolved reference slice for later
// table.init calls; active/declarative segments are marked dropped
// above but table.init against a passive segment still needs this.
func (r *Runtime) elementRefs(i int, refs []api.Reference) {
	if r.elemRefsCache == nil {
		r.elemRefsCache = make(map[int][]api.Reference, len(r.Module.ElementSegments))
	}
	r.elemRefsCache[i] = refs
}

func (r *Runtime) applyData(m *module.Module) error {
	r.DroppedData = make([]bool, len(m.DataSegments))
	r.dataCache = make(map[int][]byte, len(m.DataSegments))
	for i, seg := range m.DataSegments {
		r.dataCache[i] = seg.Init
		if seg.Passive {
			continue
		}
		off, _, err := decoder.EvalConstExpr(seg.Offset, r.globalValue)
		if err != nil {
			return err
		}
		mem := r.Memories[seg.MemoryIndex]
		if err := mem.Init(off, seg.Init); err != nil {
			return err
		}
		r.DroppedData[i] = true
	}
	return nil
}

// ElementSegmentRefs returns segment i's resolved reference tokens, for
// table.init; ok is false once elem.drop (or Attach, for a declarative
// segment) has discarded them.
func (r *Runtime) ElementSegmentRefs(i int) (refs []api.Reference, ok bool) {
	refs, ok = r.elemRefsCache[i]
	return
}

// DropElement marks segment i dropped, releasing its cached refs.
func (r *Runtime) DropElement(i int) {
	r.DroppedElem[i] = true
	delete(r.elemRefsCache, i)
}

// DataSegmentBytes returns segment i's init bytes, for memory.init; ok
// is false once data.drop has discarded them.
func (r *Runtime) DataSegmentBytes(i int) (b []byte, ok bool) {
	b, ok = r.dataCache[i]
	return
}

// DropData marks segment i dropped, releasing its cached bytes.
func (r *Runtime) DropData(i int) {
	r.DroppedData[i] = true
	delete(r.dataCache, i)
}

// RebindImportedMemory replaces the buffer bound to an already-attached
// imported memory. It either succeeds and atomically swaps in next,
// leaving the old binding's owner free to keep using its own reference
// to it, or fails with a trap and leaves the existing binding
// untouched; a rebind whose width or limits differ from the original
// import's declared type always fails this way.
func (r *Runtime) RebindImportedMemory(idx module.Index, next *Memory) *api.Error {
	if int(idx) >= len(r.Memories) || !r.Module.Memories[idx].IsImport {
		return api.NewError(api.InvalidArgument, "memory %d is not an import", idx)
	}
	cur := r.Memories[idx]
	if next.IsMemory64 != cur.IsMemory64 || next.HasMax != cur.HasMax || next.MaxBytes != cur.MaxBytes {
		return api.NewTrap(api.TrapReasonTypeMismatch, "rebind of memory %d: width/limits mismatch", idx)
	}
	r.Memories[idx] = next
	return nil
}

// RebindImportedTable replaces the table bound to an already-attached
// imported table, under the same atomic-or-untouched contract as
// RebindImportedMemory.
func (r *Runtime) RebindImportedTable(idx module.Index, next *Table) *api.Error {
	if int(idx) >= len(r.Tables) || !r.Module.Tables[idx].IsImport {
		return api.NewError(api.InvalidArgument, "table %d is not an import", idx)
	}
	cur := r.Tables[idx]
	if next.ElemType != cur.ElemType || next.HasMax != cur.HasMax || next.Max != cur.Max {
		return api.NewTrap(api.TrapReasonTypeMismatch, "rebind of table %d: element type/limits mismatch", idx)
	}
	r.Tables[idx] = next
	return nil
}
