package tinywasm

import (
	"context"
	"io"

	"github.com/tinywasm/tinywasm/internal/engine/interpreter"
	"github.com/tinywasm/tinywasm/internal/logging"
	internalwasm "github.com/tinywasm/tinywasm/internal/wasm"
)

// MemoryLimitPages is the absolute ceiling on linear memory growth allowed by the WebAssembly 1.0
// (20191205) spec: 65536 pages of 65536 bytes each, or 4GiB.
const MemoryLimitPages = 65536

// RuntimeConfig controls Runtime-wide behavior, with the default implementation as NewRuntimeConfig.
//
// # Notes
//
//   - RuntimeConfig is immutable: each With* method returns a new instance, never mutating the
//     receiver, matching the copy-on-write pattern used throughout this module's config surface.
type RuntimeConfig struct {
	enabledFeatures internalwasm.Features
	memoryMaxPages  uint32
	logWriter       io.Writer
}

// NewRuntimeConfig returns a RuntimeConfig with the WebAssembly 1.0 (20191205) MVP feature set and
// no memory cap beyond MemoryLimitPages.
func NewRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		memoryMaxPages: MemoryLimitPages,
	}
}

func (c *RuntimeConfig) clone() *RuntimeConfig {
	ret := *c
	return &ret
}

// WithMemoryMaxPages reduces the maximum number of pages a module's memory can grow to, below the
// 65536-page (4GiB) ceiling of MemoryLimitPages.
//
// Notes:
//   - If a module's memory declares no max, Runtime.InstantiateModule caps it at this value.
//   - If a module declares a max larger than this value, it is clamped to this value.
//   - Any memory.grow that would exceed this limit fails (returns -1) rather than trapping.
func (c *RuntimeConfig) WithMemoryMaxPages(memoryMaxPages uint32) *RuntimeConfig {
	ret := c.clone()
	ret.memoryMaxPages = memoryMaxPages
	return ret
}

// WithFeatureMultiValue toggles the "multi-value" proposal: function and block types may declare
// more than one result. Defaults to false, as the feature was not finished in WebAssembly 1.0
// (20191205).
func (c *RuntimeConfig) WithFeatureMultiValue(enabled bool) *RuntimeConfig {
	ret := c.clone()
	ret.enabledFeatures = ret.enabledFeatures.Set(internalwasm.FeatureMultiValue, enabled)
	return ret
}

// WithFeatureSignExtensionOps toggles the "sign-extension-ops" proposal: i32.extend8_s,
// i32.extend16_s, i64.extend8_s, i64.extend16_s and i64.extend32_s. Defaults to false, as the
// feature was not finished in WebAssembly 1.0 (20191205).
func (c *RuntimeConfig) WithFeatureSignExtensionOps(enabled bool) *RuntimeConfig {
	ret := c.clone()
	ret.enabledFeatures = ret.enabledFeatures.Set(internalwasm.FeatureSignExtensionOps, enabled)
	return ret
}

// WithLogWriter configures w to receive one line per module instantiation and per trap, and two
// lines per completed function invocation (its parameters, then its results). Defaults to nil,
// which disables logging entirely.
func (c *RuntimeConfig) WithLogWriter(w io.Writer) *RuntimeConfig {
	ret := c.clone()
	ret.logWriter = w
	return ret
}

func (c *RuntimeConfig) newEngine() internalwasm.Engine {
	return interpreter.NewEngine()
}

func (c *RuntimeConfig) newLogger() *logging.Logger {
	if c.logWriter == nil {
		return nil
	}
	return logging.New(&writeStringer{c.logWriter})
}

// writeStringer adapts an io.Writer lacking WriteString to logging.Writer.
type writeStringer struct{ io.Writer }

func (w *writeStringer) WriteString(s string) (int, error) { return w.Write([]byte(s)) }

func (c *RuntimeConfig) defaultMemorySizer() internalwasm.MemorySizer {
	ceiling := c.memoryMaxPages
	return func(minPages uint32, declaredMax *uint32) (min, capacity, max uint32) {
		max = ceiling
		if declaredMax != nil && *declaredMax < max {
			max = *declaredMax
		}
		return minPages, minPages, max
	}
}

// CompiledCode is a WebAssembly 1.0 (20191205) module ready to be instantiated via
// Runtime.InstantiateModule.
//
// Note: In WebAssembly terms this is a decoded and validated module. This module avoids using the
// name "Module" for both before and after instantiation, as that conflation causes confusion.
type CompiledCode interface {
	// Close releases resources associated with this CompiledCode. Instantiated modules are
	// unaffected.
	Close(ctx context.Context) error
}

// compiledModule implements CompiledCode for both guest (Wasm-defined) modules, carrying a decoded
// *internalwasm.Module awaiting instantiation, and host modules, carrying an already-built
// *internalwasm.ModuleInstance awaiting only registration into a Store.
type compiledModule struct {
	module       *internalwasm.Module
	hostInstance *internalwasm.ModuleInstance
}

func (c *compiledModule) Close(context.Context) error { return nil }

// ModuleConfig configures the per-instantiation choices that are not part of CompiledCode itself.
//
// Note: ModuleConfig is immutable: each With* method returns a new instance.
type ModuleConfig struct {
	name        string
	memorySizer internalwasm.MemorySizer
}

// NewModuleConfig returns a ModuleConfig defaulting to the CompiledCode's decoded name (if any) and
// the owning Runtime's default memory sizing policy.
func NewModuleConfig() *ModuleConfig {
	return &ModuleConfig{}
}

func (c *ModuleConfig) clone() *ModuleConfig {
	ret := *c
	return &ret
}

// WithName overrides the module name used to register it in the Runtime's namespace, so other
// modules can import from it by this name.
func (c *ModuleConfig) WithName(name string) *ModuleConfig {
	ret := c.clone()
	ret.name = name
	return ret
}

// WithMemorySizer overrides how many pages are allocated for this instantiation's memory, ahead of
// the Runtime-wide default configured by RuntimeConfig.WithMemoryMaxPages.
func (c *ModuleConfig) WithMemorySizer(sizer internalwasm.MemorySizer) *ModuleConfig {
	ret := c.clone()
	ret.memorySizer = sizer
	return ret
}
