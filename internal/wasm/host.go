package internalwasm

import "github.com/tinywasm/tinywasm/api"

// HostFunc describes a single Go-defined function before it is attached to a Store via
// NewHostModule. Unlike a module-defined function, it carries no Wasm bytecode: its signature is
// either explicit (WithGoModuleFunction) or derived by reflection (WithFunc).
type HostFunc struct {
	ExportName  string
	Name        string
	Type        *FunctionType
	GoFunc      api.GoModuleFunction
}

// HostMemory describes a linear memory exported directly by a host module, e.g. so that a guest
// module can import it.
type HostMemory struct {
	MinPages uint32
	MaxPages *uint32
}

// NewHostModule builds a ModuleInstance directly from Go-defined functions and memory. It bypasses
// the binary/text decode and validation pipeline entirely, since a host function carries no
// bytecode to validate, only a declared signature.
func NewHostModule(moduleName string, exportNames []string, funcs map[string]*HostFunc, memories map[string]*HostMemory, sizer MemorySizer) *ModuleInstance {
	mi := &ModuleInstance{Name: moduleName, Exports: map[string]*Export{}}

	for _, name := range exportNames {
		hf := funcs[name]
		idx := Index(len(mi.Functions))
		fn := &FunctionInstance{Type: hf.Type, Module: mi, Index: idx, Name: hf.Name, GoFunc: hf.GoFunc}
		mi.Functions = append(mi.Functions, fn)
		mi.Exports[hf.ExportName] = &Export{Type: ExternTypeFunc, Name: hf.ExportName, Index: idx}
	}

	if sizer == nil {
		sizer = DefaultMemorySizer
	}
	// WebAssembly 1.0 (20191205) permits at most one memory per module; a host module exporting
	// more than one is a builder usage error caught before this point.
	for name, hm := range memories {
		min, capacity, max := sizer(hm.MinPages, hm.MaxPages)
		mem := NewMemoryInstance(min, capacity, max)
		if hm.MaxPages == nil && max == 0 {
			mem.Max = nil
		}
		mi.Memory = mem
		mi.Exports[name] = &Export{Type: ExternTypeMemory, Name: name, Index: 0}
	}

	return mi
}

// RegisterHostModule finalizes a ModuleInstance built by NewHostModule, registering it in s under
// its own name (when non-empty) so guest modules can resolve imports against it.
func RegisterHostModule(s *Store, mi *ModuleInstance) (*CallContext, error) {
	if mi.Name != "" {
		if err := s.register(mi.Name, mi); err != nil {
			return nil, err
		}
	}
	return NewCallContext(s, mi), nil
}
