// Package tinywasm is an embeddable WebAssembly 1.0 (20191205) runtime: it decodes, validates,
// links, and interprets WebAssembly modules from pure Go, with no cgo and no external VM.
package tinywasm

import (
	"bytes"
	"context"
	"fmt"

	"github.com/tinywasm/tinywasm/api"
	internalwasm "github.com/tinywasm/tinywasm/internal/wasm"
	"github.com/tinywasm/tinywasm/internal/wasm/binary"
	"github.com/tinywasm/tinywasm/internal/wasm/text"
)

// Runtime instantiates WebAssembly modules, linking them against each other and any host modules
// registered via NewHostModuleBuilder, and executes their exported functions.
//
// # Notes
//
//   - This is an interface for decoupling, not third-party implementations. All implementations are
//     in this module.
type Runtime interface {
	// CompileModule decodes and validates source into a CompiledCode ready for
	// InstantiateModule. The format (text or binary) is auto-detected from the leading bytes.
	//
	// Compiling is separated from instantiating so that the same CompiledCode can be instantiated
	// many times cheaply, e.g. once per request.
	CompileModule(ctx context.Context, source []byte) (CompiledCode, error)

	// InstantiateModule instantiates compiled, resolving its imports against modules already
	// registered in this Runtime (including host modules), running any active element/data
	// segments, and invoking the start function if one is declared.
	InstantiateModule(ctx context.Context, compiled CompiledCode, mc *ModuleConfig) (api.Module, error)

	// NewHostModuleBuilder begins defining a module of Go-implemented functions, importable by
	// guest modules under moduleName.
	NewHostModuleBuilder(moduleName string) HostModuleBuilder

	// Module returns a previously instantiated module by name, or nil if none is registered under
	// that name.
	Module(moduleName string) api.Module

	// Close returns nil without releasing anything: modules this Runtime instantiated stay
	// registered, and the Runtime remains usable afterward.
	Close(ctx context.Context) error
}

// runtime implements Runtime.
type runtime struct {
	store  *internalwasm.Store
	config *RuntimeConfig
}

// NewRuntime returns a Runtime configured by NewRuntimeConfig.
func NewRuntime() Runtime {
	return NewRuntimeWithConfig(NewRuntimeConfig())
}

// NewRuntimeWithConfig returns a Runtime configured by rc.
func NewRuntimeWithConfig(rc *RuntimeConfig) Runtime {
	return &runtime{
		store:  internalwasm.NewStore(rc.newEngine(), rc.enabledFeatures),
		config: rc,
	}
}

// CompileModule implements Runtime.CompileModule.
func (r *runtime) CompileModule(_ context.Context, source []byte) (CompiledCode, error) {
	m, err := decodeOrParse(source)
	if err != nil {
		return nil, err
	}
	if err := internalwasm.ValidateModule(m, r.store.Features); err != nil {
		return nil, err
	}
	return &compiledModule{module: m}, nil
}

// decodeOrParse auto-detects the WebAssembly binary magic header, falling back to the text format
// parser otherwise: an embedder passing a %.wat file never has to say so explicitly.
func decodeOrParse(source []byte) (*internalwasm.Module, error) {
	if bytes.HasPrefix(source, binary.Magic) {
		return binary.DecodeModule(source)
	}
	return text.ParseModule(string(source))
}

// InstantiateModule implements Runtime.InstantiateModule.
func (r *runtime) InstantiateModule(ctx context.Context, compiled CompiledCode, mc *ModuleConfig) (api.Module, error) {
	if mc == nil {
		mc = NewModuleConfig()
	}
	cm, ok := compiled.(*compiledModule)
	if !ok {
		return nil, fmt.Errorf("unsupported tinywasm.CompiledCode implementation: %v", compiled)
	}

	sizer := mc.memorySizer
	if sizer == nil {
		sizer = r.config.defaultMemorySizer()
	}

	var cc *internalwasm.CallContext
	var err error
	if cm.hostInstance != nil {
		mi := cm.hostInstance
		if mc.name != "" {
			mi.Name = mc.name
		}
		cc, err = internalwasm.RegisterHostModule(r.store, mi)
	} else {
		name := mc.name
		if name == "" && cm.module.NameSection != nil {
			name = cm.module.NameSection.ModuleName
		}
		cc, err = internalwasm.Instantiate(ctx, r.store, cm.module, internalwasm.InstantiateConfig{
			ModuleName:  name,
			MemorySizer: sizer,
		})
	}
	if err != nil {
		return nil, err
	}

	var m api.Module = cc
	if logger := r.config.newLogger(); logger != nil {
		logger.LogInstantiate(cc.Name())
		m = &loggingModule{Module: cc, logger: logger}
	}
	return m, nil
}

// NewHostModuleBuilder implements Runtime.NewHostModuleBuilder.
func (r *runtime) NewHostModuleBuilder(moduleName string) HostModuleBuilder {
	return &hostModuleBuilder{
		r:              r,
		moduleName:     moduleName,
		nameToHostFunc: map[string]*internalwasm.HostFunc{},
		nameToMemory:   map[string]*internalwasm.HostMemory{},
	}
}

// Module implements Runtime.Module.
func (r *runtime) Module(moduleName string) api.Module {
	mi := r.store.Module(moduleName)
	if mi == nil {
		return nil
	}
	return internalwasm.NewCallContext(r.store, mi)
}

// Close implements Runtime.Close.
func (r *runtime) Close(context.Context) error {
	return nil
}

// loggingModule decorates an api.Module so every exported function call logs its invocation
// (or trap) through the owning Runtime's configured logging.Logger.
type loggingModule struct {
	api.Module
	logger interface {
		LogInvoke(ctx context.Context, def api.FunctionDefinition, params, results []uint64)
		LogTrap(def api.FunctionDefinition, err error)
	}
}

func (m *loggingModule) ExportedFunction(name string) api.Function {
	fn := m.Module.ExportedFunction(name)
	if fn == nil {
		return nil
	}
	return &loggingFunction{fn: fn, logger: m.logger}
}

type loggingFunction struct {
	fn     api.Function
	logger interface {
		LogInvoke(ctx context.Context, def api.FunctionDefinition, params, results []uint64)
		LogTrap(def api.FunctionDefinition, err error)
	}
}

func (f *loggingFunction) Definition() api.FunctionDefinition { return f.fn.Definition() }

func (f *loggingFunction) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	results, err := f.fn.Call(ctx, params...)
	if err != nil {
		f.logger.LogTrap(f.fn.Definition(), err)
		return nil, err
	}
	f.logger.LogInvoke(ctx, f.fn.Definition(), params, results)
	return results, nil
}
