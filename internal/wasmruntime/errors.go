// Package wasmruntime defines the sentinel errors the execution engine panics with to signal a
// WebAssembly trap, and the classification used to recover them into a *Trap at the call boundary.
package wasmruntime

import "errors"

var (
	// ErrRuntimeUnreachable is the trap raised by the "unreachable" instruction.
	ErrRuntimeUnreachable = errors.New("unreachable")
	// ErrRuntimeCallStackOverflow is the trap raised when a call sequence exceeds the configured
	// call stack height.
	ErrRuntimeCallStackOverflow = errors.New("stack overflow")
	// ErrRuntimeInvalidTableAccess is the trap raised by call_indirect or a table operation whose
	// index is out of bounds, or whose table slot is uninitialized (null).
	ErrRuntimeInvalidTableAccess = errors.New("invalid table access")
	// ErrRuntimeIndirectCallTypeMismatch is the trap raised when call_indirect resolves a function
	// whose signature does not match the instruction's declared type.
	ErrRuntimeIndirectCallTypeMismatch = errors.New("indirect call type mismatch")
	// ErrRuntimeOutOfBoundsMemoryAccess is the trap raised by a load or store whose effective
	// address plus access size exceeds the current memory size.
	ErrRuntimeOutOfBoundsMemoryAccess = errors.New("out of bounds memory access")
	// ErrRuntimeIntegerDivideByZero is the trap raised by {i32,i64}.{div,rem}_{s,u} with a zero
	// divisor.
	ErrRuntimeIntegerDivideByZero = errors.New("integer divide by zero")
	// ErrRuntimeIntegerOverflow is the trap raised by signed division overflow (MinInt / -1) or by
	// a truncation whose source magnitude exceeds the destination integer's range.
	ErrRuntimeIntegerOverflow = errors.New("integer overflow")
	// ErrRuntimeInvalidConversionToInteger is the trap raised by a trunc conversion whose source is
	// NaN or infinite.
	ErrRuntimeInvalidConversionToInteger = errors.New("invalid conversion to integer")
)
