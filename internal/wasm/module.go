// Package internalwasm holds the core data model used by every phase of module processing:
// decoding, validation, instantiation, and execution.
package internalwasm

import (
	"fmt"

	"github.com/tinywasm/tinywasm/api"
)

// Index is a position in one of a module's index spaces (types, functions, tables, memories,
// globals), counting imports first, then module-defined entries.
type Index = uint32

// ValueType aliases api.ValueType so the core model and the public API agree on representation.
type ValueType = api.ValueType

const (
	ValueTypeI32 = api.ValueTypeI32
	ValueTypeI64 = api.ValueTypeI64
	ValueTypeF32 = api.ValueTypeF32
	ValueTypeF64 = api.ValueTypeF64
)

// ExternType classifies an import or export. See api.ExternType.
type ExternType = api.ExternType

const (
	ExternTypeFunc   = api.ExternTypeFunc
	ExternTypeTable  = api.ExternTypeTable
	ExternTypeMemory = api.ExternTypeMemory
	ExternTypeGlobal = api.ExternTypeGlobal
)

// ExternTypeName returns the text format field name of et.
func ExternTypeName(et ExternType) string { return api.ExternTypeName(et) }

// SectionID identifies the purpose of a section in the WebAssembly binary format.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#sections%E2%91%A0
type SectionID = byte

const (
	SectionIDCustom SectionID = iota
	SectionIDType
	SectionIDImport
	SectionIDFunction
	SectionIDTable
	SectionIDMemory
	SectionIDGlobal
	SectionIDExport
	SectionIDStart
	SectionIDElement
	SectionIDCode
	SectionIDData
)

// SectionIDName returns the human name of a section, or "unknown" for an undefined id.
func SectionIDName(id SectionID) string {
	switch id {
	case SectionIDCustom:
		return "custom"
	case SectionIDType:
		return "type"
	case SectionIDImport:
		return "import"
	case SectionIDFunction:
		return "function"
	case SectionIDTable:
		return "table"
	case SectionIDMemory:
		return "memory"
	case SectionIDGlobal:
		return "global"
	case SectionIDExport:
		return "export"
	case SectionIDStart:
		return "start"
	case SectionIDElement:
		return "element"
	case SectionIDCode:
		return "code"
	case SectionIDData:
		return "data"
	}
	return "unknown"
}

// FunctionType is a function signature, cached in a module's type index space and referenced by
// functions, blocks, and call_indirect sites.
type FunctionType struct {
	Params, Results []ValueType

	// string is a cached, canonical representation produced by String, used as a map key when
	// deduplicating identical signatures across a module.
	string string
}

// String returns a canonical representation such as "i32i64_f32", used for type-equality checks
// without an O(n) slice compare.
func (f *FunctionType) String() string {
	if f.string != "" {
		return f.string
	}
	var ps, rs string
	if len(f.Params) == 0 {
		ps = "null"
	} else {
		for _, v := range f.Params {
			ps += api.ValueTypeName(v)
		}
	}
	if len(f.Results) == 0 {
		rs = "null"
	} else {
		for _, v := range f.Results {
			rs += api.ValueTypeName(v)
		}
	}
	f.string = ps + "_" + rs
	return f.string
}

// Import describes a single entry of the import section: what the importing module expects to
// find under (Module, Name), and the type-specific descriptor for the kind imported.
type Import struct {
	Type       ExternType
	Module     string
	Name       string
	DescFunc   Index
	DescTable  *TableType
	DescMem    *MemoryType
	DescGlobal *GlobalType
}

// Export describes a single entry of the export section: the public Name other modules or the
// embedder can look it up by, and which index space Index refers into.
type Export struct {
	Type  ExternType
	Name  string
	Index Index
}

// GlobalType describes a global variable's value type and mutability.
type GlobalType struct {
	ValType ValueType
	Mutable bool
}

// Global is a module-defined (non-imported) global: its type plus the constant initializer
// expression that computes its initial value.
type Global struct {
	Type *GlobalType
	Init ConstantExpression
}

// TableType describes the element type and size Limits of a table. WebAssembly 1.0 (20191205)
// supports only funcref tables.
type TableType struct {
	Limits *Limits
}

// MemoryType describes the size Limits (in pages of 65536 bytes) of a linear memory.
type MemoryType struct {
	Min uint32
	Max *uint32
}

// Limits bounds the growable size of a table or memory, in elements or pages respectively.
type Limits struct {
	Min uint32
	Max *uint32
}

// ConstantExpression is a restricted instruction sequence usable in global initializers and
// element/data segment offsets: a single instruction followed by `end`, per the Wasm 1.0 grammar.
type ConstantExpression struct {
	Opcode Opcode
	Data   []byte
}

// ElementSegment initializes a region of a table with function indices, evaluated at instantiation.
type ElementSegment struct {
	OffsetExpr ConstantExpression
	TableIndex Index
	Init       []Index
}

// DataSegment initializes a region of linear memory with a byte string, evaluated at
// instantiation.
type DataSegment struct {
	OffsetExpression ConstantExpression
	MemoryIndex      Index
	Init             []byte
}

// NameSection holds the optional debug names parsed from the "name" custom section.
type NameSection struct {
	ModuleName    string
	FunctionNames NameMap
	LocalNames    IndirectNameMap
}

// NameAssoc associates an index with a debug Name.
type NameAssoc struct {
	Index Index
	Name  string
}

// NameMap is a sequence of NameAssoc, ordered by Index ascending.
type NameMap []*NameAssoc

// IndirectNameMap associates an outer Index (e.g. a function) with a NameMap for indices nested
// within it (e.g. that function's locals).
type IndirectNameMap []*struct {
	Index   Index
	NameMap NameMap
}

// Module is the decoded form of a WebAssembly binary or text module, prior to instantiation. Its
// index spaces (TypeSection, FunctionSection/CodeSection, TableSection, MemorySection,
// GlobalSection) count imports first, then module-defined entries, per the Wasm 1.0 binary format.
type Module struct {
	TypeSection     []*FunctionType
	ImportSection   []*Import
	FunctionSection []Index // indexes TypeSection, parallel to CodeSection
	TableSection    []*TableType
	MemorySection   []*MemoryType
	GlobalSection   []*Global
	ExportSection   []*Export
	StartSection    *Index
	ElementSection  []*ElementSegment
	CodeSection     []*Code
	DataSection     []*DataSegment

	NameSection *NameSection

	// ID identifies a decoded Module within a Store. Neither the binary decoder nor the text
	// parser assigns it, so it stays zero unless the caller sets it.
	ID ModuleID
}

// ModuleID uniquely identifies a decoded Module within a Store.
type ModuleID = uint64

// Code is the decoded body of a single module-defined function: its local variable declarations
// and instruction sequence.
type Code struct {
	LocalTypes []ValueType
	Body       []byte
}

// allDeclarations returns the combined (imports-first) view of each index space, used by the
// validator and instantiation to resolve an Index uniformly regardless of import-vs-defined origin.
func (m *Module) allDeclarations() (functions []Index, globals []*GlobalType, memories []*MemoryType, tables []*TableType) {
	for _, imp := range m.ImportSection {
		switch imp.Type {
		case ExternTypeFunc:
			functions = append(functions, imp.DescFunc)
		case ExternTypeGlobal:
			globals = append(globals, imp.DescGlobal)
		case ExternTypeMemory:
			memories = append(memories, imp.DescMem)
		case ExternTypeTable:
			tables = append(tables, imp.DescTable)
		}
	}
	functions = append(functions, m.FunctionSection...)
	for _, g := range m.GlobalSection {
		globals = append(globals, g.Type)
	}
	memories = append(memories, m.MemorySection...)
	tables = append(tables, m.TableSection...)
	return
}

// ImportFuncCount returns the number of function imports, i.e. the offset at which
// module-defined function indices begin.
func (m *Module) ImportFuncCount() (n Index) {
	for _, imp := range m.ImportSection {
		if imp.Type == ExternTypeFunc {
			n++
		}
	}
	return
}

// ImportTableCount returns the number of table imports.
func (m *Module) ImportTableCount() (n Index) {
	for _, imp := range m.ImportSection {
		if imp.Type == ExternTypeTable {
			n++
		}
	}
	return
}

// ImportMemoryCount returns the number of memory imports.
func (m *Module) ImportMemoryCount() (n Index) {
	for _, imp := range m.ImportSection {
		if imp.Type == ExternTypeMemory {
			n++
		}
	}
	return
}

// ImportGlobalCount returns the number of global imports.
func (m *Module) ImportGlobalCount() (n Index) {
	for _, imp := range m.ImportSection {
		if imp.Type == ExternTypeGlobal {
			n++
		}
	}
	return
}

// SectionElementCount returns the number of top-level elements in the named section, for error
// messages and size accounting.
func (m *Module) SectionElementCount(id SectionID) uint32 {
	switch id {
	case SectionIDCustom:
		if m.NameSection != nil {
			return 1
		}
		return 0
	case SectionIDType:
		return uint32(len(m.TypeSection))
	case SectionIDImport:
		return uint32(len(m.ImportSection))
	case SectionIDFunction:
		return uint32(len(m.FunctionSection))
	case SectionIDTable:
		return uint32(len(m.TableSection))
	case SectionIDMemory:
		return uint32(len(m.MemorySection))
	case SectionIDGlobal:
		return uint32(len(m.GlobalSection))
	case SectionIDExport:
		return uint32(len(m.ExportSection))
	case SectionIDStart:
		if m.StartSection != nil {
			return 1
		}
		return 0
	case SectionIDElement:
		return uint32(len(m.ElementSection))
	case SectionIDCode:
		return uint32(len(m.CodeSection))
	case SectionIDData:
		return uint32(len(m.DataSection))
	}
	panic(fmt.Errorf("BUG: unknown section id %d", id))
}
