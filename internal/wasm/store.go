package internalwasm

import (
	"context"
	"fmt"
	"sync"

	"github.com/tinywasm/tinywasm/api"
)

// Engine compiles a decoded Module's CodeSection into a form ModuleEngine.Call can execute. The
// interpreter package is the sole implementation; the interface exists so store.go never imports
// it directly, avoiding an import cycle between internalwasm and internal/engine/interpreter.
type Engine interface {
	CompileModule(module *Module) (CompiledModule, error)
}

// CompiledModule is an Engine's per-Module artifact, instantiated (possibly many times) into a
// ModuleEngine bound to a specific set of runtime function instances.
type CompiledModule interface {
	NewModuleEngine(functions []*FunctionInstance) (ModuleEngine, error)
}

// ModuleEngine executes the functions of one module instantiation.
type ModuleEngine interface {
	Call(ctx context.Context, m *CallContext, f *FunctionInstance, params ...uint64) ([]uint64, error)
}

// FunctionInstance is a function in a Store's function index space: either a Go host function or
// a Wasm-defined one, reached via (module-relative) Index.
type FunctionInstance struct {
	Type       *FunctionType
	Module     *ModuleInstance // defining module, for locals/globals/memory access during host calls
	Index      Index
	Name       string // from the name section, or "" if unnamed

	// GoFunc is set for host functions; nil for Wasm-defined functions, which instead run
	// through the Module's ModuleEngine keyed by Index.
	GoFunc api.GoModuleFunction
}

// GlobalInstance is a global in a Store's global index space.
type GlobalInstance struct {
	Type *GlobalType
	Val  uint64
}

// TableInstance is a table in a Store's table index space: a growable array of function
// references (indices into the owning module's function index space), or -1 for an empty slot.
type TableInstance struct {
	References []int64 // -1 means null
	Max        *uint32
}

// MemoryPageSize is the number of bytes in one unit of linear memory growth.
const MemoryPageSize = 65536

// MemoryPagesToBytesNum converts a page count to a byte count.
func MemoryPagesToBytesNum(pages uint32) uint64 { return uint64(pages) * MemoryPageSize }

// MemoryBytesNumToPages converts a byte count down to a whole page count.
func MemoryBytesNumToPages(bytesNum uint64) uint32 { return uint32(bytesNum / MemoryPageSize) }

// MemoryInstance is a linear memory in a Store's memory index space.
type MemoryInstance struct {
	Buffer []byte
	Min    uint32
	Max    *uint32
	// Cap bounds how large Buffer may grow without reallocation, set at instantiation by the
	// configured api.MemorySizer.
	Cap uint32
}

func NewMemoryInstance(min, cap, max uint32) *MemoryInstance {
	m := &MemoryInstance{Buffer: make([]byte, MemoryPagesToBytesNum(min), MemoryPagesToBytesNum(cap)), Min: min}
	if max != 0 || cap != 0 {
		mx := max
		m.Max = &mx
	}
	return m
}

// Size implements api.Memory.
func (m *MemoryInstance) Size(context.Context) uint32 {
	return MemoryBytesNumToPages(uint64(len(m.Buffer)))
}

// Grow implements api.Memory.
func (m *MemoryInstance) Grow(ctx context.Context, deltaPages uint32) (uint32, bool) {
	prev := m.Size(ctx)
	next := prev + deltaPages
	if m.Max != nil && next > *m.Max {
		return 0, false
	}
	if uint64(next)*MemoryPageSize > uint64(cap(m.Buffer)) {
		newBuf := make([]byte, MemoryPagesToBytesNum(next))
		copy(newBuf, m.Buffer)
		m.Buffer = newBuf
	} else {
		m.Buffer = m.Buffer[:MemoryPagesToBytesNum(next)]
	}
	return prev, true
}

func (m *MemoryInstance) hasSize(offset uint32, sizeInBytes uint64) bool {
	return uint64(offset)+sizeInBytes <= uint64(len(m.Buffer))
}

func (m *MemoryInstance) ReadByte(ctx context.Context, offset uint32) (byte, bool) {
	if !m.hasSize(offset, 1) {
		return 0, false
	}
	return m.Buffer[offset], true
}

func (m *MemoryInstance) ReadUint16Le(ctx context.Context, offset uint32) (uint16, bool) {
	if !m.hasSize(offset, 2) {
		return 0, false
	}
	return uint16(m.Buffer[offset]) | uint16(m.Buffer[offset+1])<<8, true
}

func (m *MemoryInstance) ReadUint32Le(ctx context.Context, offset uint32) (uint32, bool) {
	if !m.hasSize(offset, 4) {
		return 0, false
	}
	return le32(m.Buffer[offset:]), true
}

func (m *MemoryInstance) ReadFloat32Le(ctx context.Context, offset uint32) (float32, bool) {
	v, ok := m.ReadUint32Le(ctx, offset)
	return api.DecodeF32(uint64(v)), ok
}

func (m *MemoryInstance) ReadUint64Le(ctx context.Context, offset uint32) (uint64, bool) {
	if !m.hasSize(offset, 8) {
		return 0, false
	}
	return le64(m.Buffer[offset:]), true
}

func (m *MemoryInstance) ReadFloat64Le(ctx context.Context, offset uint32) (float64, bool) {
	v, ok := m.ReadUint64Le(ctx, offset)
	return api.DecodeF64(v), ok
}

func (m *MemoryInstance) Read(ctx context.Context, offset, byteCount uint32) ([]byte, bool) {
	if !m.hasSize(offset, uint64(byteCount)) {
		return nil, false
	}
	return m.Buffer[offset : offset+byteCount], true
}

func (m *MemoryInstance) WriteByte(ctx context.Context, offset uint32, v byte) bool {
	if !m.hasSize(offset, 1) {
		return false
	}
	m.Buffer[offset] = v
	return true
}

func (m *MemoryInstance) WriteUint16Le(ctx context.Context, offset uint32, v uint16) bool {
	if !m.hasSize(offset, 2) {
		return false
	}
	m.Buffer[offset] = byte(v)
	m.Buffer[offset+1] = byte(v >> 8)
	return true
}

func (m *MemoryInstance) WriteUint32Le(ctx context.Context, offset, v uint32) bool {
	if !m.hasSize(offset, 4) {
		return false
	}
	putLE32(m.Buffer[offset:], v)
	return true
}

func (m *MemoryInstance) WriteFloat32Le(ctx context.Context, offset uint32, v float32) bool {
	return m.WriteUint32Le(ctx, offset, uint32(api.EncodeF32(v)))
}

func (m *MemoryInstance) WriteUint64Le(ctx context.Context, offset uint32, v uint64) bool {
	if !m.hasSize(offset, 8) {
		return false
	}
	putLE64(m.Buffer[offset:], v)
	return true
}

func (m *MemoryInstance) WriteFloat64Le(ctx context.Context, offset uint32, v float64) bool {
	return m.WriteUint64Le(ctx, offset, api.EncodeF64(v))
}

func (m *MemoryInstance) Write(ctx context.Context, offset uint32, v []byte) bool {
	if !m.hasSize(offset, uint64(len(v))) {
		return false
	}
	copy(m.Buffer[offset:], v)
	return true
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func le64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
func putLE32(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}
func putLE64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// ModuleInstance is an instantiated Module: its resolved index spaces (after linking imports) and
// the exports addressable by name.
type ModuleInstance struct {
	Name string

	Types     []*FunctionType
	Functions []*FunctionInstance
	Globals   []*GlobalInstance
	Tables    []*TableInstance
	Memory    *MemoryInstance

	Exports map[string]*Export

	ModuleEngine ModuleEngine
}

// CallContext binds a ModuleInstance to the api.Module surface handed to host functions and
// returned to embedders after instantiation.
type CallContext struct {
	ctx    context.Context
	module *ModuleInstance
	store  *Store
}

func NewCallContext(store *Store, module *ModuleInstance) *CallContext {
	return &CallContext{module: module, store: store}
}

func (c *CallContext) String() string { return fmt.Sprintf("Module[%s]", c.module.Name) }
func (c *CallContext) Name() string   { return c.module.Name }

func (c *CallContext) Memory() api.Memory {
	if c.module.Memory == nil {
		return nil
	}
	return c.module.Memory
}

func (c *CallContext) ExportedMemory(name string) api.Memory {
	exp, ok := c.module.Exports[name]
	if !ok || exp.Type != ExternTypeMemory {
		return nil
	}
	return c.module.Memory
}

func (c *CallContext) ExportedFunction(name string) api.Function {
	exp, ok := c.module.Exports[name]
	if !ok || exp.Type != ExternTypeFunc {
		return nil
	}
	return c.store.function(c.module, exp.Index, c)
}

func (c *CallContext) ExportedGlobal(name string) api.Global {
	exp, ok := c.module.Exports[name]
	if !ok || exp.Type != ExternTypeGlobal {
		return nil
	}
	return c.store.global(c.module, exp.Index)
}

func (c *CallContext) Close(ctx context.Context) error {
	return c.store.CloseModule(c.module.Name)
}

// Store owns every instantiated module reachable from a Runtime, and resolves imports between
// them by module name.
type Store struct {
	mux      sync.Mutex
	modules  map[string]*ModuleInstance
	Engine   Engine
	Features Features
}

func NewStore(engine Engine, features Features) *Store {
	return &Store{modules: map[string]*ModuleInstance{}, Engine: engine, Features: features}
}

// Module returns a previously instantiated module by name, or nil.
func (s *Store) Module(name string) *ModuleInstance {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.modules[name]
}

// CloseModule removes a module instance from the store's namespace, so it can no longer be
// imported by subsequently instantiated modules. Does not affect modules that already imported it.
func (s *Store) CloseModule(name string) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	delete(s.modules, name)
	return nil
}

func (s *Store) register(name string, mi *ModuleInstance) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if _, ok := s.modules[name]; ok {
		return &LinkError{Message: fmt.Sprintf("module %q already instantiated", name)}
	}
	s.modules[name] = mi
	return nil
}

func (s *Store) function(mi *ModuleInstance, idx Index, cc *CallContext) api.Function {
	fn := mi.Functions[idx]
	return &exportedFunction{store: s, callCtx: cc, fn: fn}
}

func (s *Store) global(mi *ModuleInstance, idx Index) api.Global {
	g := mi.Globals[idx]
	if g.Type.Mutable {
		return &mutableGlobal{g}
	}
	return &immutableGlobal{g}
}

type immutableGlobal struct{ g *GlobalInstance }

func (g *immutableGlobal) String() string           { return fmt.Sprintf("global(%v)", g.g.Val) }
func (g *immutableGlobal) Type() api.ValueType       { return g.g.Type.ValType }
func (g *immutableGlobal) Get(context.Context) uint64 { return g.g.Val }

type mutableGlobal struct{ g *GlobalInstance }

func (g *mutableGlobal) String() string           { return fmt.Sprintf("global(%v)", g.g.Val) }
func (g *mutableGlobal) Type() api.ValueType       { return g.g.Type.ValType }
func (g *mutableGlobal) Get(context.Context) uint64 { return g.g.Val }
func (g *mutableGlobal) Set(ctx context.Context, v uint64) { g.g.Val = v }

type exportedFunction struct {
	store   *Store
	callCtx *CallContext
	fn      *FunctionInstance
}

func (f *exportedFunction) Definition() api.FunctionDefinition {
	return &funcDefinition{fn: f.fn}
}

func (f *exportedFunction) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	if f.fn.GoFunc != nil {
		stack := make([]uint64, len(params))
		copy(stack, params)
		// host functions always have at most one result in this module's scope; GoModuleFunction
		// overwrites the stack in place.
		results := len(f.fn.Type.Results)
		if results > len(stack) {
			stack = append(stack, make([]uint64, results-len(stack))...)
		}
		if err := func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					if e, ok := r.(error); ok {
						err = e
					} else {
						err = fmt.Errorf("%v", r)
					}
				}
			}()
			f.fn.GoFunc.Call(ctx, f.callCtx, stack)
			return nil
		}(); err != nil {
			return nil, err
		}
		return stack[:results], nil
	}
	return f.fn.Module.ModuleEngine.Call(ctx, f.callCtx, f.fn, params...)
}

type funcDefinition struct{ fn *FunctionInstance }

func (d *funcDefinition) ModuleName() string { return d.fn.Module.Name }
func (d *funcDefinition) Index() Index       { return d.fn.Index }
func (d *funcDefinition) Name() string       { return d.fn.Name }
func (d *funcDefinition) DebugName() string {
	if d.fn.Name != "" {
		return d.fn.Module.Name + "." + d.fn.Name
	}
	return fmt.Sprintf("%s.$%d", d.fn.Module.Name, d.fn.Index)
}
func (d *funcDefinition) Import() (string, string, bool) { return "", "", false }
func (d *funcDefinition) ExportNames() []string {
	var names []string
	for name, exp := range d.fn.Module.Exports {
		if exp.Type == ExternTypeFunc && exp.Index == d.fn.Index {
			names = append(names, name)
		}
	}
	return names
}
func (d *funcDefinition) ParamTypes() []ValueType  { return d.fn.Type.Params }
func (d *funcDefinition) ResultTypes() []ValueType { return d.fn.Type.Results }
