// Package api includes constants and interfaces used by both end-users and internal implementations.
package api

import (
	"context"
	"fmt"
	"math"
)

// ExternType classifies imports and exports with their respective types.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#external-types%E2%91%A0
type ExternType = byte

const (
	ExternTypeFunc   ExternType = 0x00
	ExternTypeTable  ExternType = 0x01
	ExternTypeMemory ExternType = 0x02
	ExternTypeGlobal ExternType = 0x03
)

const (
	// ExternTypeFuncName is the name of the WebAssembly 1.0 (20191205) Text Format field for ExternTypeFunc.
	ExternTypeFuncName = "func"
	// ExternTypeTableName is the name of the WebAssembly 1.0 (20191205) Text Format field for ExternTypeTable.
	ExternTypeTableName = "table"
	// ExternTypeMemoryName is the name of the WebAssembly 1.0 (20191205) Text Format field for ExternTypeMemory.
	ExternTypeMemoryName = "memory"
	// ExternTypeGlobalName is the name of the WebAssembly 1.0 (20191205) Text Format field for ExternTypeGlobal.
	ExternTypeGlobalName = "global"
)

// ExternTypeName returns the name of the WebAssembly 1.0 (20191205) Text Format field of the given type.
func ExternTypeName(et ExternType) string {
	switch et {
	case ExternTypeFunc:
		return ExternTypeFuncName
	case ExternTypeTable:
		return ExternTypeTableName
	case ExternTypeMemory:
		return ExternTypeMemoryName
	case ExternTypeGlobal:
		return ExternTypeGlobalName
	}
	return fmt.Sprintf("%#x", et)
}

// ValueType describes a numeric type used in WebAssembly 1.0 (20191205). Function parameters,
// results and locals are all defined in terms of a value type.
//
// Values are always passed as uint64 at the Go boundary; use the Encode*/Decode* helpers below to
// convert to and from the underlying Go type:
//
//   - ValueTypeI32 - uint64(uint32(int32))
//   - ValueTypeI64 - uint64(int64)
//   - ValueTypeF32 - EncodeF32 / DecodeF32
//   - ValueTypeF64 - EncodeF64 / DecodeF64
//
// Note: this is a type alias, not a defined type, since that makes binary encode/decode trivial.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-valtype
type ValueType = byte

const (
	// ValueTypeI32 is a 32-bit integer.
	ValueTypeI32 ValueType = 0x7f
	// ValueTypeI64 is a 64-bit integer.
	ValueTypeI64 ValueType = 0x7e
	// ValueTypeF32 is a 32-bit floating point number.
	ValueTypeF32 ValueType = 0x7d
	// ValueTypeF64 is a 64-bit floating point number.
	ValueTypeF64 ValueType = 0x7c
)

// ValueTypeName returns the type name of the given ValueType as used in the WebAssembly text format.
//
// Returns "unknown" for an undefined ValueType.
func ValueTypeName(t ValueType) string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	}
	return "unknown"
}

// Module is the runtime view of an instantiated WebAssembly module: its exports, post-instantiation.
//
// Note: This is an interface for decoupling, not third-party implementations. All implementations
// live in this module.
type Module interface {
	fmt.Stringer

	// Name is the name this module was instantiated with. Exported functions are looked up by this name.
	Name() string

	// Memory returns the memory defined or imported in this module, or nil if there is none.
	Memory() Memory

	// ExportedFunction returns a function exported from this module, or nil if it wasn't.
	ExportedFunction(name string) Function

	// ExportedMemory returns a memory exported from this module, or nil if it wasn't.
	ExportedMemory(name string) Memory

	// ExportedGlobal returns a global exported from this module, or nil if it wasn't.
	ExportedGlobal(name string) Global

	// Close releases any resources owned only by this module instance, removing it from the
	// runtime's namespace. It does not release Store-owned instances shared by import.
	Close(ctx context.Context) error
}

// FunctionDefinition is metadata about a WebAssembly function, available independent of instantiation.
type FunctionDefinition interface {
	// ModuleName is the possibly empty name of the module defining this function.
	ModuleName() string

	// Index is the position of this function in the module's function index space, imports first.
	Index() uint32

	// Name is the module-defined name of the function (from the optional name section), which is
	// not necessarily the same as its export name.
	Name() string

	// DebugName identifies this function for errors and traps. Ex. "env.abort" or ".$3" when unnamed.
	DebugName() string

	// Import returns the (module, name) this function was imported as, when isImport is true.
	Import() (moduleName, name string, isImport bool)

	// ExportNames lists every exported name this function is reachable under.
	ExportNames() []string

	// ParamTypes are the possibly empty sequence of value types accepted by this function.
	ParamTypes() []ValueType

	// ResultTypes are the possibly empty sequence of value types returned by this function.
	//
	// WebAssembly 1.0 (20191205) functions have at most one result, unless the multi-value
	// feature is enabled.
	ResultTypes() []ValueType
}

// Function is a WebAssembly function exported from an instantiated Module.
type Function interface {
	// Definition is metadata about this function from its defining module.
	Definition() FunctionDefinition

	// Call invokes the function with parameters encoded per ParamTypes and returns results encoded
	// per ResultTypes. An error is returned for any failure, including a *Trap during execution.
	Call(ctx context.Context, params ...uint64) ([]uint64, error)
}

// Global is a WebAssembly 1.0 (20191205) global exported from an instantiated Module.
type Global interface {
	fmt.Stringer

	// Type describes the numeric type of the global.
	Type() ValueType

	// Get returns the last known value of this global.
	Get(context.Context) uint64
}

// MutableGlobal is a Global whose value can be updated at runtime.
type MutableGlobal interface {
	Global

	// Set updates the value of this global.
	Set(ctx context.Context, v uint64)
}

// Memory allows restricted access to a module's linear memory.
//
// All offsets and sizes are in bytes. All multi-byte values are little-endian, as the
// WebAssembly 1.0 (20191205) specification requires.
type Memory interface {
	// Size returns the number of pages currently available, each page being 65536 bytes.
	Size(context.Context) uint32

	// Grow increases memory by the delta in pages (65536 bytes per page). The return value is the
	// previous size in pages, or false if the delta would exceed the configured maximum.
	Grow(ctx context.Context, deltaPages uint32) (previousPages uint32, ok bool)

	// ReadByte reads a single byte at the offset, or false if out of range.
	ReadByte(ctx context.Context, offset uint32) (byte, bool)

	// ReadUint16Le reads a little-endian uint16 at the offset, or false if out of range.
	ReadUint16Le(ctx context.Context, offset uint32) (uint16, bool)

	// ReadUint32Le reads a little-endian uint32 at the offset, or false if out of range.
	ReadUint32Le(ctx context.Context, offset uint32) (uint32, bool)

	// ReadFloat32Le reads a little-endian IEEE-754 float32 at the offset, or false if out of range.
	ReadFloat32Le(ctx context.Context, offset uint32) (float32, bool)

	// ReadUint64Le reads a little-endian uint64 at the offset, or false if out of range.
	ReadUint64Le(ctx context.Context, offset uint32) (uint64, bool)

	// ReadFloat64Le reads a little-endian IEEE-754 float64 at the offset, or false if out of range.
	ReadFloat64Le(ctx context.Context, offset uint32) (float64, bool)

	// Read returns a byteCount-length view of the underlying buffer at the offset, or false if out
	// of range. The returned slice aliases memory: writes through it are visible to Wasm and vice
	// versa, until the underlying buffer is reallocated by Grow.
	Read(ctx context.Context, offset, byteCount uint32) ([]byte, bool)

	// WriteByte writes a single byte at the offset, returning false if out of range.
	WriteByte(ctx context.Context, offset uint32, v byte) bool

	// WriteUint16Le writes a little-endian uint16 at the offset, returning false if out of range.
	WriteUint16Le(ctx context.Context, offset uint32, v uint16) bool

	// WriteUint32Le writes a little-endian uint32 at the offset, returning false if out of range.
	WriteUint32Le(ctx context.Context, offset, v uint32) bool

	// WriteFloat32Le writes a little-endian IEEE-754 float32 at the offset, returning false if out of range.
	WriteFloat32Le(ctx context.Context, offset uint32, v float32) bool

	// WriteUint64Le writes a little-endian uint64 at the offset, returning false if out of range.
	WriteUint64Le(ctx context.Context, offset uint32, v uint64) bool

	// WriteFloat64Le writes a little-endian IEEE-754 float64 at the offset, returning false if out of range.
	WriteFloat64Le(ctx context.Context, offset uint32, v float64) bool

	// Write writes the slice to the underlying buffer at the offset, returning false if out of range.
	Write(ctx context.Context, offset uint32, v []byte) bool
}

// EncodeI32 encodes the input as a ValueTypeI32.
func EncodeI32(input int32) uint64 {
	return uint64(uint32(input))
}

// EncodeI64 encodes the input as a ValueTypeI64.
func EncodeI64(input int64) uint64 {
	return uint64(input)
}

// EncodeF32 encodes the input as a ValueTypeF32.
//
// See DecodeF32
func EncodeF32(input float32) uint64 {
	return uint64(math.Float32bits(input))
}

// DecodeF32 decodes the input as a ValueTypeF32.
//
// See EncodeF32
func DecodeF32(input uint64) float32 {
	return math.Float32frombits(uint32(input))
}

// EncodeF64 encodes the input as a ValueTypeF64.
//
// See DecodeF64
func EncodeF64(input float64) uint64 {
	return math.Float64bits(input)
}

// DecodeF64 decodes the input as a ValueTypeF64.
//
// See EncodeF64
func DecodeF64(input uint64) float64 {
	return math.Float64frombits(input)
}

// GoModuleFunction is a function defined in Go, called from WebAssembly with access to the
// calling Module (notably its Memory). The stack is pre-populated with parameters and must be
// overwritten in-place with results before returning, per ParamTypes/ResultTypes of the
// associated FunctionDefinition.
type GoModuleFunction interface {
	Call(ctx context.Context, mod Module, stack []uint64)
}

// GoModuleFunc is a convenience type for a function implementing GoModuleFunction.
type GoModuleFunc func(ctx context.Context, mod Module, stack []uint64)

// Call implements GoModuleFunction.Call.
func (f GoModuleFunc) Call(ctx context.Context, mod Module, stack []uint64) { f(ctx, mod, stack) }

// MemorySizer applies after a module is decoded, but before it is instantiated, to decide how many
// pages (65536 bytes each) to allocate for a memory instance.
//
// Ex. Allocate the max up front instead of the min:
//
//	func(minPages uint32, maxPages *uint32) (min, capacity, max uint32) {
//		if maxPages != nil {
//			return minPages, *maxPages, *maxPages
//		}
//		return minPages, minPages, 65536
//	}
type MemorySizer func(minPages uint32, maxPages *uint32) (min, capacity, max uint32)
