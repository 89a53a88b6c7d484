package internalwasm

import (
	"context"
	"fmt"

	"github.com/tinywasm/tinywasm/api"
)

// MemorySizer decides how many pages to allocate for a linear memory up front. See api.MemorySizer.
type MemorySizer = api.MemorySizer

// DefaultMemorySizer allocates exactly the module's declared minimum, growing (and possibly
// reallocating) later as memory.grow is executed.
func DefaultMemorySizer(minPages uint32, maxPages *uint32) (min, capacity, max uint32) {
	if maxPages != nil {
		return minPages, minPages, *maxPages
	}
	return minPages, minPages, 0
}

// InstantiateConfig carries the per-instantiation choices that are not part of the Module itself.
type InstantiateConfig struct {
	ModuleName   string
	MemorySizer  MemorySizer
	StartIgnored bool // skip invoking the start function, used by the text harness's "register" command
}

// Instantiate links m against the modules already registered in s, runs active element/data
// segments and the start function (unless configured otherwise), and registers the result under
// cfg.ModuleName.
func Instantiate(ctx context.Context, s *Store, m *Module, cfg InstantiateConfig) (*CallContext, error) {
	if err := ValidateModule(m, s.Features); err != nil {
		return nil, err
	}

	mi := &ModuleInstance{Name: cfg.ModuleName, Types: m.TypeSection, Exports: map[string]*Export{}}

	if err := resolveImports(s, m, mi); err != nil {
		return nil, err
	}

	buildFunctions(m, mi)
	if err := buildGlobals(m, mi); err != nil {
		return nil, err
	}
	buildTables(m, mi)
	if cfg.MemorySizer == nil {
		cfg.MemorySizer = DefaultMemorySizer
	}
	buildMemory(m, mi, cfg.MemorySizer)

	for name, exp := range exportMap(m) {
		mi.Exports[name] = exp
	}
	applyNames(m, mi)

	compiled, err := s.Engine.CompileModule(m)
	if err != nil {
		return nil, fmt.Errorf("compiling module: %w", err)
	}
	moduleEngine, err := compiled.NewModuleEngine(mi.Functions)
	if err != nil {
		return nil, fmt.Errorf("instantiating module engine: %w", err)
	}
	mi.ModuleEngine = moduleEngine
	for _, f := range mi.Functions[m.ImportFuncCount():] {
		if f.GoFunc == nil {
			f.Module = mi
		}
	}

	if err := initializeTables(m, mi); err != nil {
		return nil, err
	}
	if err := initializeMemory(m, mi); err != nil {
		return nil, err
	}

	cc := NewCallContext(s, mi)

	if m.StartSection != nil && !cfg.StartIgnored {
		fn := mi.Functions[*m.StartSection]
		if _, err := fn.Module.ModuleEngine.Call(ctx, cc, fn); err != nil {
			return nil, fmt.Errorf("start function: %w", err)
		}
	}

	if cfg.ModuleName != "" {
		if err := s.register(cfg.ModuleName, mi); err != nil {
			return nil, err
		}
	}
	return cc, nil
}

func resolveImports(s *Store, m *Module, mi *ModuleInstance) error {
	for _, imp := range m.ImportSection {
		dep := s.Module(imp.Module)
		if dep == nil {
			return &LinkError{Module: imp.Module, Name: imp.Name, Message: "module not instantiated"}
		}
		exp, ok := dep.Exports[imp.Name]
		if !ok || exp.Type != imp.Type {
			return &LinkError{Module: imp.Module, Name: imp.Name, Message: "not exported"}
		}
		switch imp.Type {
		case ExternTypeFunc:
			fn := dep.Functions[exp.Index]
			if fn.Type.String() != m.TypeSection[imp.DescFunc].String() {
				return &LinkError{Module: imp.Module, Name: imp.Name, Message: "function signature mismatch"}
			}
			mi.Functions = append(mi.Functions, fn)
		case ExternTypeGlobal:
			g := dep.Globals[exp.Index]
			if g.Type.ValType != imp.DescGlobal.ValType || g.Type.Mutable != imp.DescGlobal.Mutable {
				return &LinkError{Module: imp.Module, Name: imp.Name, Message: "global type mismatch"}
			}
			mi.Globals = append(mi.Globals, g)
		case ExternTypeMemory:
			mem := dep.Memory
			if !limitsSubsumedBy(mem.Min, mem.Max, imp.DescMem.Min, imp.DescMem.Max) {
				return &LinkError{Module: imp.Module, Name: imp.Name, Message: "memory limits incompatible"}
			}
			mi.Memory = mem
		case ExternTypeTable:
			t := dep.Tables[exp.Index]
			if !limitsSubsumedBy(uint32(len(t.References)), t.Max, imp.DescTable.Limits.Min, imp.DescTable.Limits.Max) {
				return &LinkError{Module: imp.Module, Name: imp.Name, Message: "table limits incompatible"}
			}
			mi.Tables = append(mi.Tables, t)
		}
	}
	return nil
}

// limitsSubsumedBy reports whether an actual instance sized (actualMin, actualMax) satisfies an
// importer's declared (wantMin, wantMax): the instance must provide at least as many
// elements/pages as declared, and if the importer declares a ceiling, the instance must also
// declare one that doesn't exceed it.
func limitsSubsumedBy(actualMin uint32, actualMax *uint32, wantMin uint32, wantMax *uint32) bool {
	if actualMin < wantMin {
		return false
	}
	if wantMax == nil {
		return true
	}
	return actualMax != nil && *actualMax <= *wantMax
}

func buildFunctions(m *Module, mi *ModuleInstance) {
	for codeIdx, typeIdx := range m.FunctionSection {
		idx := Index(len(mi.Functions))
		mi.Functions = append(mi.Functions, &FunctionInstance{
			Type: m.TypeSection[typeIdx], Module: mi, Index: idx,
		})
		_ = codeIdx
	}
}

func buildGlobals(m *Module, mi *ModuleInstance) error {
	globalVal := func(idx Index) uint64 {
		return mi.Globals[idx].Val
	}
	for _, g := range m.GlobalSection {
		v, err := ConstantExpressionValue(g.Init, globalVal)
		if err != nil {
			return err
		}
		mi.Globals = append(mi.Globals, &GlobalInstance{Type: g.Type, Val: v})
	}
	return nil
}

func buildTables(m *Module, mi *ModuleInstance) {
	for _, t := range m.TableSection {
		min := t.Limits.Min
		refs := make([]int64, min)
		for i := range refs {
			refs[i] = -1
		}
		mi.Tables = append(mi.Tables, &TableInstance{References: refs, Max: t.Limits.Max})
	}
}

func buildMemory(m *Module, mi *ModuleInstance, sizer MemorySizer) {
	if len(m.MemorySection) == 0 {
		return
	}
	mt := m.MemorySection[0]
	var maxPages *uint32
	if mt.Max != nil {
		maxPages = mt.Max
	}
	min, capacity, max := sizer(mt.Min, maxPages)
	mem := NewMemoryInstance(min, capacity, max)
	if mt.Max == nil && max == 0 {
		mem.Max = nil
	}
	mi.Memory = mem
}

func initializeTables(m *Module, mi *ModuleInstance) error {
	globalVal := func(idx Index) int32 {
		return int32(mi.Globals[idx].Val)
	}
	for _, e := range m.ElementSection {
		offset, err := ConstantExpressionOffset(e.OffsetExpr, globalVal)
		if err != nil {
			return err
		}
		table := mi.Tables[e.TableIndex]
		end := int(offset) + len(e.Init)
		if offset < 0 || end > len(table.References) {
			return &LinkError{Message: "element segment out of table bounds"}
		}
		for i, fnIdx := range e.Init {
			table.References[int(offset)+i] = int64(fnIdx)
		}
	}
	return nil
}

func initializeMemory(m *Module, mi *ModuleInstance) error {
	globalVal := func(idx Index) int32 {
		return int32(mi.Globals[idx].Val)
	}
	for _, d := range m.DataSection {
		offset, err := ConstantExpressionOffset(d.OffsetExpression, globalVal)
		if err != nil {
			return err
		}
		if mi.Memory == nil {
			return &LinkError{Message: "data segment but no memory"}
		}
		end := int(offset) + len(d.Init)
		if offset < 0 || end > len(mi.Memory.Buffer) {
			return &LinkError{Message: "data segment out of memory bounds"}
		}
		copy(mi.Memory.Buffer[offset:end], d.Init)
	}
	return nil
}

// exportMap indexes a module's exports by name, first declaration winning a duplicate name: the
// conformance suite expects re-exporting the same name to be silently ignored rather than
// shadowing the original.
func exportMap(m *Module) map[string]*Export {
	ret := make(map[string]*Export, len(m.ExportSection))
	for _, e := range m.ExportSection {
		if _, exists := ret[e.Name]; exists {
			continue
		}
		ret[e.Name] = e
	}
	return ret
}

func applyNames(m *Module, mi *ModuleInstance) {
	if m.NameSection == nil {
		return
	}
	for _, a := range m.NameSection.FunctionNames {
		if int(a.Index) < len(mi.Functions) {
			mi.Functions[a.Index].Name = a.Name
		}
	}
}
