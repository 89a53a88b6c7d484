package tinywasm

import (
	"context"
	"fmt"

	"github.com/tinywasm/tinywasm/api"
	internalwasm "github.com/tinywasm/tinywasm/internal/wasm"
)

// HostFunctionBuilder defines a single host function (in Go), so that a WebAssembly module can
// import and call it.
//
// Here's an example of an addition function:
//
//	hostModuleBuilder.NewFunctionBuilder().
//		WithFunc(func(ctx context.Context, x, y uint32) uint32 {
//			return x + y
//		}).
//		Export("add")
//
// # Memory
//
// All host functions act on the importing api.Module, including any memory it exports. Below,
// `m` is the importing module defined in Wasm; `fn` is a host function added via Export:
//
//	fn := func(ctx context.Context, m api.Module, offset uint32) uint32 {
//		x, _ := m.Memory().ReadUint32Le(ctx, offset)
//		return x
//	}
//
// # Notes
//
//   - This is an interface for decoupling, not third-party implementations. All implementations
//     are in this module.
type HostFunctionBuilder interface {
	// WithGoModuleFunction is an advanced alternative to WithFunc for callers who already know the
	// exact WebAssembly signature and want to avoid the cost of reflection.
	//
	//	builder.WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
	//		x, y := uint32(stack[0]), uint32(stack[1])
	//		stack[0] = uint64(x + y)
	//	}), []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32})
	WithGoModuleFunction(fn api.GoModuleFunction, params, results []api.ValueType) HostFunctionBuilder

	// WithFunc uses reflection to derive a WebAssembly-compatible signature from an arbitrary Go
	// func. An input that isn't a func fails at Compile.
	//
	// Parameters and results must be uint32, int32, uint64, int64, float32 or float64 (or a named
	// type with one of those underlying kinds). The first parameter may optionally be a
	// context.Context or an api.Module; the last result may optionally be an error, which is
	// translated into a trap when non-nil.
	WithFunc(fn interface{}) HostFunctionBuilder

	// WithName defines the optional module-local name of this function, e.g. "random_get". This
	// need not match the Export name.
	WithName(name string) HostFunctionBuilder

	// Export exports this function from the HostModuleBuilder under the given name.
	Export(name string) HostModuleBuilder
}

// HostModuleBuilder defines host functions (in Go) importable by a WebAssembly binary, implementing
// the host side of an ABI like a custom "env" module.
//
//	ctx := context.Background()
//	r := tinywasm.NewRuntime()
//	defer r.Close(ctx)
//
//	env, _ := r.NewHostModuleBuilder("env").
//		NewFunctionBuilder().WithFunc(func() { println("hello!") }).Export("hello").
//		Instantiate(ctx)
//
// # Notes
//
//   - HostModuleBuilder is mutable: each method returns the same instance for chaining.
//   - Functions are indexed in the order their names were first passed to Export.
type HostModuleBuilder interface {
	// ExportMemory adds a linear memory a guest module can import. If a memory is already exported
	// under name, this overwrites it. WebAssembly 1.0 (20191205) permits at most one memory.
	ExportMemory(name string, minPages uint32) HostModuleBuilder

	// ExportMemoryWithMax is like ExportMemory, but bounds how far the memory may grow.
	ExportMemoryWithMax(name string, minPages, maxPages uint32) HostModuleBuilder

	// NewFunctionBuilder begins the definition of a host function.
	NewFunctionBuilder() HostFunctionBuilder

	// Compile returns a CompiledCode that can be instantiated by Runtime.InstantiateModule.
	Compile(context.Context) (CompiledCode, error)

	// Instantiate is a convenience that calls Compile, then Runtime.InstantiateModule.
	Instantiate(context.Context) (api.Module, error)
}

// hostModuleBuilder implements HostModuleBuilder.
type hostModuleBuilder struct {
	r              *runtime
	moduleName     string
	exportNames    []string
	nameToHostFunc map[string]*internalwasm.HostFunc
	nameToMemory   map[string]*internalwasm.HostMemory
	// deferredErr holds the first error encountered while building a function (e.g. an
	// unsupported WithFunc signature), surfaced at Compile so the builder chain never has to
	// return an error itself.
	deferredErr error
}

// hostFunctionBuilder implements HostFunctionBuilder.
type hostFunctionBuilder struct {
	b    *hostModuleBuilder
	fn   interface{}
	goFn api.GoModuleFunction
	ft   *internalwasm.FunctionType
	name string
}

// WithGoModuleFunction implements HostFunctionBuilder.WithGoModuleFunction.
func (h *hostFunctionBuilder) WithGoModuleFunction(fn api.GoModuleFunction, params, results []api.ValueType) HostFunctionBuilder {
	h.goFn = fn
	h.ft = &internalwasm.FunctionType{Params: params, Results: results}
	return h
}

// WithFunc implements HostFunctionBuilder.WithFunc.
func (h *hostFunctionBuilder) WithFunc(fn interface{}) HostFunctionBuilder {
	h.fn = fn
	return h
}

// WithName implements HostFunctionBuilder.WithName.
func (h *hostFunctionBuilder) WithName(name string) HostFunctionBuilder {
	h.name = name
	return h
}

// Export implements HostFunctionBuilder.Export.
func (h *hostFunctionBuilder) Export(exportName string) HostModuleBuilder {
	hf := &internalwasm.HostFunc{ExportName: exportName, Name: h.name}
	if h.goFn != nil {
		hf.GoFunc, hf.Type = h.goFn, h.ft
	} else {
		reflectFn, ft, err := internalwasm.NewGoReflectFunc(h.fn)
		if err != nil {
			if h.b.deferredErr == nil {
				h.b.deferredErr = fmt.Errorf("func[%s]: %w", exportName, err)
			}
			return h.b
		}
		hf.GoFunc, hf.Type = reflectFn, ft
	}
	if hf.Name == "" {
		hf.Name = exportName
	}

	if _, exists := h.b.nameToHostFunc[exportName]; !exists {
		h.b.exportNames = append(h.b.exportNames, exportName)
	}
	h.b.nameToHostFunc[exportName] = hf
	return h.b
}

// ExportMemory implements HostModuleBuilder.ExportMemory.
func (b *hostModuleBuilder) ExportMemory(name string, minPages uint32) HostModuleBuilder {
	b.nameToMemory[name] = &internalwasm.HostMemory{MinPages: minPages}
	return b
}

// ExportMemoryWithMax implements HostModuleBuilder.ExportMemoryWithMax.
func (b *hostModuleBuilder) ExportMemoryWithMax(name string, minPages, maxPages uint32) HostModuleBuilder {
	b.nameToMemory[name] = &internalwasm.HostMemory{MinPages: minPages, MaxPages: &maxPages}
	return b
}

// NewFunctionBuilder implements HostModuleBuilder.NewFunctionBuilder.
func (b *hostModuleBuilder) NewFunctionBuilder() HostFunctionBuilder {
	return &hostFunctionBuilder{b: b}
}

// Compile implements HostModuleBuilder.Compile.
func (b *hostModuleBuilder) Compile(context.Context) (CompiledCode, error) {
	if b.deferredErr != nil {
		return nil, b.deferredErr
	}
	sizer := b.r.config.defaultMemorySizer()
	mi := internalwasm.NewHostModule(b.moduleName, b.exportNames, b.nameToHostFunc, b.nameToMemory, sizer)
	return &compiledModule{hostInstance: mi}, nil
}

// Instantiate implements HostModuleBuilder.Instantiate.
func (b *hostModuleBuilder) Instantiate(ctx context.Context) (api.Module, error) {
	compiled, err := b.Compile(ctx)
	if err != nil {
		return nil, err
	}
	return b.r.InstantiateModule(ctx, compiled, NewModuleConfig().WithName(b.moduleName))
}
