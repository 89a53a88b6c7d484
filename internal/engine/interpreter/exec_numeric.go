package interpreter

import (
	"math"
	"math/bits"

	"github.com/tinywasm/tinywasm/internal/moremath"
	internalwasm "github.com/tinywasm/tinywasm/internal/wasm"
	"github.com/tinywasm/tinywasm/internal/wasmruntime"
)

// execPlain executes every instruction that never changes control flow: locals, globals, memory,
// numeric consts, and all comparison/arithmetic/conversion operators. Dispatch is on the original
// Wasm opcode byte, decoded once in decodePlain and replayed on every call.
func (fr *frame) execPlain(o *op) {
	switch o.code {
	case internalwasm.OpcodeUnreachable:
		panic(wasmruntime.ErrRuntimeUnreachable)
	case internalwasm.OpcodeNop:
	case internalwasm.OpcodeDrop:
		fr.pop()
	case internalwasm.OpcodeSelect:
		cond := fr.popI32()
		b := fr.pop()
		a := fr.pop()
		if cond != 0 {
			fr.push(a)
		} else {
			fr.push(b)
		}
	case internalwasm.OpcodeLocalGet:
		fr.push(fr.locals[o.imm])
	case internalwasm.OpcodeLocalSet:
		fr.locals[o.imm] = fr.pop()
	case internalwasm.OpcodeLocalTee:
		fr.locals[o.imm] = fr.stack[len(fr.stack)-1]
	case internalwasm.OpcodeGlobalGet:
		fr.push(fr.mi.Globals[o.imm].Val)
	case internalwasm.OpcodeGlobalSet:
		fr.mi.Globals[o.imm].Val = fr.pop()
	case internalwasm.OpcodeMemorySize:
		fr.pushI32(int32(fr.mi.Memory.Size(fr.ctx)))
	case internalwasm.OpcodeMemoryGrow:
		delta := fr.popU32()
		prev, ok := fr.mi.Memory.Grow(fr.ctx, delta)
		if !ok {
			fr.pushI32(-1)
		} else {
			fr.pushI32(int32(prev))
		}
	case internalwasm.OpcodeI32Const:
		fr.push(o.imm)
	case internalwasm.OpcodeI64Const:
		fr.push(o.imm)
	case internalwasm.OpcodeF32Const:
		fr.push(o.imm)
	case internalwasm.OpcodeF64Const:
		fr.push(o.imm)

	case internalwasm.OpcodeI32Load:
		fr.pushI32(int32(fr.loadU32(o)))
	case internalwasm.OpcodeI32Load8S:
		fr.pushI32(int32(int8(fr.loadU8(o))))
	case internalwasm.OpcodeI32Load8U:
		fr.pushI32(int32(fr.loadU8(o)))
	case internalwasm.OpcodeI32Load16S:
		fr.pushI32(int32(int16(fr.loadU16(o))))
	case internalwasm.OpcodeI32Load16U:
		fr.pushI32(int32(fr.loadU16(o)))
	case internalwasm.OpcodeI64Load:
		fr.push(fr.loadU64(o))
	case internalwasm.OpcodeI64Load8S:
		fr.push(uint64(int64(int8(fr.loadU8(o)))))
	case internalwasm.OpcodeI64Load8U:
		fr.push(uint64(fr.loadU8(o)))
	case internalwasm.OpcodeI64Load16S:
		fr.push(uint64(int64(int16(fr.loadU16(o)))))
	case internalwasm.OpcodeI64Load16U:
		fr.push(uint64(fr.loadU16(o)))
	case internalwasm.OpcodeI64Load32S:
		fr.push(uint64(int64(int32(fr.loadU32(o)))))
	case internalwasm.OpcodeI64Load32U:
		fr.push(uint64(fr.loadU32(o)))
	case internalwasm.OpcodeF32Load:
		fr.push(uint64(fr.loadU32(o)))
	case internalwasm.OpcodeF64Load:
		fr.push(fr.loadU64(o))

	case internalwasm.OpcodeI32Store, internalwasm.OpcodeF32Store:
		v := fr.popU32Raw()
		fr.storeU32(o, v)
	case internalwasm.OpcodeI32Store8:
		v := byte(fr.popU32Raw())
		fr.storeU8(o, v)
	case internalwasm.OpcodeI32Store16:
		v := uint16(fr.popU32Raw())
		fr.storeU16(o, v)
	case internalwasm.OpcodeI64Store, internalwasm.OpcodeF64Store:
		v := fr.pop()
		fr.storeU64(o, v)
	case internalwasm.OpcodeI64Store8:
		v := byte(fr.pop())
		fr.storeU8(o, v)
	case internalwasm.OpcodeI64Store16:
		v := uint16(fr.pop())
		fr.storeU16(o, v)
	case internalwasm.OpcodeI64Store32:
		v := uint32(fr.pop())
		fr.storeU32(o, v)

	default:
		fr.execNumeric(o.code)
	}
}

// effectiveAddr combines the dynamic base address (popped from the stack) with the instruction's
// static offset immediate, trapping if the 33-bit sum exceeds what a 32-bit memory can ever index.
func (fr *frame) effectiveAddr(o *op) uint32 {
	base := fr.popU32()
	addr := uint64(base) + o.imm
	if addr > math.MaxUint32 {
		panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
	}
	return uint32(addr)
}

func (fr *frame) loadU8(o *op) byte {
	v, ok := fr.mi.Memory.ReadByte(fr.ctx, fr.effectiveAddr(o))
	if !ok {
		panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
	}
	return v
}

func (fr *frame) loadU16(o *op) uint16 {
	v, ok := fr.mi.Memory.ReadUint16Le(fr.ctx, fr.effectiveAddr(o))
	if !ok {
		panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
	}
	return v
}

func (fr *frame) loadU32(o *op) uint32 {
	v, ok := fr.mi.Memory.ReadUint32Le(fr.ctx, fr.effectiveAddr(o))
	if !ok {
		panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
	}
	return v
}

func (fr *frame) loadU64(o *op) uint64 {
	v, ok := fr.mi.Memory.ReadUint64Le(fr.ctx, fr.effectiveAddr(o))
	if !ok {
		panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
	}
	return v
}

// popU32Raw pops a full 64-bit stack slot truncated to its low 32 bits, used by i32/f32 stores
// where the stack always carries a 64-bit slot regardless of the Wasm-level value type.
func (fr *frame) popU32Raw() uint32 { return uint32(fr.pop()) }

func (fr *frame) storeU8(o *op, v byte) {
	if !fr.mi.Memory.WriteByte(fr.ctx, fr.effectiveAddr(o), v) {
		panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
	}
}
func (fr *frame) storeU16(o *op, v uint16) {
	if !fr.mi.Memory.WriteUint16Le(fr.ctx, fr.effectiveAddr(o), v) {
		panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
	}
}
func (fr *frame) storeU32(o *op, v uint32) {
	if !fr.mi.Memory.WriteUint32Le(fr.ctx, fr.effectiveAddr(o), v) {
		panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
	}
}
func (fr *frame) storeU64(o *op, v uint64) {
	if !fr.mi.Memory.WriteUint64Le(fr.ctx, fr.effectiveAddr(o), v) {
		panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
	}
}

// execNumeric handles every comparison/arithmetic/conversion opcode: none of these touch memory,
// locals, or globals, so they're kept out of execPlain's larger switch for readability.
func (fr *frame) execNumeric(code internalwasm.Opcode) {
	switch code {
	// i32 comparisons
	case internalwasm.OpcodeI32Eqz:
		fr.pushBool(fr.popI32() == 0)
	case internalwasm.OpcodeI32Eq:
		b, a := fr.popI32(), fr.popI32()
		fr.pushBool(a == b)
	case internalwasm.OpcodeI32Ne:
		b, a := fr.popI32(), fr.popI32()
		fr.pushBool(a != b)
	case internalwasm.OpcodeI32LtS:
		b, a := fr.popI32(), fr.popI32()
		fr.pushBool(a < b)
	case internalwasm.OpcodeI32LtU:
		b, a := fr.popU32(), fr.popU32()
		fr.pushBool(a < b)
	case internalwasm.OpcodeI32GtS:
		b, a := fr.popI32(), fr.popI32()
		fr.pushBool(a > b)
	case internalwasm.OpcodeI32GtU:
		b, a := fr.popU32(), fr.popU32()
		fr.pushBool(a > b)
	case internalwasm.OpcodeI32LeS:
		b, a := fr.popI32(), fr.popI32()
		fr.pushBool(a <= b)
	case internalwasm.OpcodeI32LeU:
		b, a := fr.popU32(), fr.popU32()
		fr.pushBool(a <= b)
	case internalwasm.OpcodeI32GeS:
		b, a := fr.popI32(), fr.popI32()
		fr.pushBool(a >= b)
	case internalwasm.OpcodeI32GeU:
		b, a := fr.popU32(), fr.popU32()
		fr.pushBool(a >= b)

	// i64 comparisons
	case internalwasm.OpcodeI64Eqz:
		fr.pushBool(fr.popI64() == 0)
	case internalwasm.OpcodeI64Eq:
		b, a := fr.popI64(), fr.popI64()
		fr.pushBool(a == b)
	case internalwasm.OpcodeI64Ne:
		b, a := fr.popI64(), fr.popI64()
		fr.pushBool(a != b)
	case internalwasm.OpcodeI64LtS:
		b, a := fr.popI64(), fr.popI64()
		fr.pushBool(a < b)
	case internalwasm.OpcodeI64LtU:
		b, a := fr.popU64(), fr.popU64()
		fr.pushBool(a < b)
	case internalwasm.OpcodeI64GtS:
		b, a := fr.popI64(), fr.popI64()
		fr.pushBool(a > b)
	case internalwasm.OpcodeI64GtU:
		b, a := fr.popU64(), fr.popU64()
		fr.pushBool(a > b)
	case internalwasm.OpcodeI64LeS:
		b, a := fr.popI64(), fr.popI64()
		fr.pushBool(a <= b)
	case internalwasm.OpcodeI64LeU:
		b, a := fr.popU64(), fr.popU64()
		fr.pushBool(a <= b)
	case internalwasm.OpcodeI64GeS:
		b, a := fr.popI64(), fr.popI64()
		fr.pushBool(a >= b)
	case internalwasm.OpcodeI64GeU:
		b, a := fr.popU64(), fr.popU64()
		fr.pushBool(a >= b)

	// f32/f64 comparisons
	case internalwasm.OpcodeF32Eq:
		b, a := fr.popF32(), fr.popF32()
		fr.pushBool(a == b)
	case internalwasm.OpcodeF32Ne:
		b, a := fr.popF32(), fr.popF32()
		fr.pushBool(a != b)
	case internalwasm.OpcodeF32Lt:
		b, a := fr.popF32(), fr.popF32()
		fr.pushBool(a < b)
	case internalwasm.OpcodeF32Gt:
		b, a := fr.popF32(), fr.popF32()
		fr.pushBool(a > b)
	case internalwasm.OpcodeF32Le:
		b, a := fr.popF32(), fr.popF32()
		fr.pushBool(a <= b)
	case internalwasm.OpcodeF32Ge:
		b, a := fr.popF32(), fr.popF32()
		fr.pushBool(a >= b)
	case internalwasm.OpcodeF64Eq:
		b, a := fr.popF64(), fr.popF64()
		fr.pushBool(a == b)
	case internalwasm.OpcodeF64Ne:
		b, a := fr.popF64(), fr.popF64()
		fr.pushBool(a != b)
	case internalwasm.OpcodeF64Lt:
		b, a := fr.popF64(), fr.popF64()
		fr.pushBool(a < b)
	case internalwasm.OpcodeF64Gt:
		b, a := fr.popF64(), fr.popF64()
		fr.pushBool(a > b)
	case internalwasm.OpcodeF64Le:
		b, a := fr.popF64(), fr.popF64()
		fr.pushBool(a <= b)
	case internalwasm.OpcodeF64Ge:
		b, a := fr.popF64(), fr.popF64()
		fr.pushBool(a >= b)

	// i32 arithmetic
	case internalwasm.OpcodeI32Clz:
		fr.pushI32(int32(bits.LeadingZeros32(fr.popU32())))
	case internalwasm.OpcodeI32Ctz:
		fr.pushI32(int32(bits.TrailingZeros32(fr.popU32())))
	case internalwasm.OpcodeI32Popcnt:
		fr.pushI32(int32(bits.OnesCount32(fr.popU32())))
	case internalwasm.OpcodeI32Add:
		b, a := fr.popU32(), fr.popU32()
		fr.pushI32(int32(a + b))
	case internalwasm.OpcodeI32Sub:
		b, a := fr.popU32(), fr.popU32()
		fr.pushI32(int32(a - b))
	case internalwasm.OpcodeI32Mul:
		b, a := fr.popU32(), fr.popU32()
		fr.pushI32(int32(a * b))
	case internalwasm.OpcodeI32DivS:
		b, a := fr.popI32(), fr.popI32()
		if b == 0 {
			panic(wasmruntime.ErrRuntimeIntegerDivideByZero)
		}
		if a == math.MinInt32 && b == -1 {
			panic(wasmruntime.ErrRuntimeIntegerOverflow)
		}
		fr.pushI32(a / b)
	case internalwasm.OpcodeI32DivU:
		b, a := fr.popU32(), fr.popU32()
		if b == 0 {
			panic(wasmruntime.ErrRuntimeIntegerDivideByZero)
		}
		fr.pushI32(int32(a / b))
	case internalwasm.OpcodeI32RemS:
		b, a := fr.popI32(), fr.popI32()
		if b == 0 {
			panic(wasmruntime.ErrRuntimeIntegerDivideByZero)
		}
		if b == -1 {
			fr.pushI32(0)
		} else {
			fr.pushI32(a % b)
		}
	case internalwasm.OpcodeI32RemU:
		b, a := fr.popU32(), fr.popU32()
		if b == 0 {
			panic(wasmruntime.ErrRuntimeIntegerDivideByZero)
		}
		fr.pushI32(int32(a % b))
	case internalwasm.OpcodeI32And:
		b, a := fr.popU32(), fr.popU32()
		fr.pushI32(int32(a & b))
	case internalwasm.OpcodeI32Or:
		b, a := fr.popU32(), fr.popU32()
		fr.pushI32(int32(a | b))
	case internalwasm.OpcodeI32Xor:
		b, a := fr.popU32(), fr.popU32()
		fr.pushI32(int32(a ^ b))
	case internalwasm.OpcodeI32Shl:
		b, a := fr.popU32(), fr.popU32()
		fr.pushI32(int32(a << (b % 32)))
	case internalwasm.OpcodeI32ShrS:
		b, a := fr.popU32(), fr.popI32()
		fr.pushI32(a >> (b % 32))
	case internalwasm.OpcodeI32ShrU:
		b, a := fr.popU32(), fr.popU32()
		fr.pushI32(int32(a >> (b % 32)))
	case internalwasm.OpcodeI32Rotl:
		b, a := fr.popU32(), fr.popU32()
		fr.pushI32(int32(bits.RotateLeft32(a, int(b))))
	case internalwasm.OpcodeI32Rotr:
		b, a := fr.popU32(), fr.popU32()
		fr.pushI32(int32(bits.RotateLeft32(a, -int(b))))

	// i64 arithmetic
	case internalwasm.OpcodeI64Clz:
		fr.push(uint64(bits.LeadingZeros64(fr.popU64())))
	case internalwasm.OpcodeI64Ctz:
		fr.push(uint64(bits.TrailingZeros64(fr.popU64())))
	case internalwasm.OpcodeI64Popcnt:
		fr.push(uint64(bits.OnesCount64(fr.popU64())))
	case internalwasm.OpcodeI64Add:
		b, a := fr.popU64(), fr.popU64()
		fr.push(a + b)
	case internalwasm.OpcodeI64Sub:
		b, a := fr.popU64(), fr.popU64()
		fr.push(a - b)
	case internalwasm.OpcodeI64Mul:
		b, a := fr.popU64(), fr.popU64()
		fr.push(a * b)
	case internalwasm.OpcodeI64DivS:
		b, a := fr.popI64(), fr.popI64()
		if b == 0 {
			panic(wasmruntime.ErrRuntimeIntegerDivideByZero)
		}
		if a == math.MinInt64 && b == -1 {
			panic(wasmruntime.ErrRuntimeIntegerOverflow)
		}
		fr.push(uint64(a / b))
	case internalwasm.OpcodeI64DivU:
		b, a := fr.popU64(), fr.popU64()
		if b == 0 {
			panic(wasmruntime.ErrRuntimeIntegerDivideByZero)
		}
		fr.push(a / b)
	case internalwasm.OpcodeI64RemS:
		b, a := fr.popI64(), fr.popI64()
		if b == 0 {
			panic(wasmruntime.ErrRuntimeIntegerDivideByZero)
		}
		if b == -1 {
			fr.push(0)
		} else {
			fr.push(uint64(a % b))
		}
	case internalwasm.OpcodeI64RemU:
		b, a := fr.popU64(), fr.popU64()
		if b == 0 {
			panic(wasmruntime.ErrRuntimeIntegerDivideByZero)
		}
		fr.push(a % b)
	case internalwasm.OpcodeI64And:
		b, a := fr.popU64(), fr.popU64()
		fr.push(a & b)
	case internalwasm.OpcodeI64Or:
		b, a := fr.popU64(), fr.popU64()
		fr.push(a | b)
	case internalwasm.OpcodeI64Xor:
		b, a := fr.popU64(), fr.popU64()
		fr.push(a ^ b)
	case internalwasm.OpcodeI64Shl:
		b, a := fr.popU64(), fr.popU64()
		fr.push(a << (b % 64))
	case internalwasm.OpcodeI64ShrS:
		b, a := fr.popU64(), fr.popI64()
		fr.push(uint64(a >> (b % 64)))
	case internalwasm.OpcodeI64ShrU:
		b, a := fr.popU64(), fr.popU64()
		fr.push(a >> (b % 64))
	case internalwasm.OpcodeI64Rotl:
		b, a := fr.popU64(), fr.popU64()
		fr.push(bits.RotateLeft64(a, int(b)))
	case internalwasm.OpcodeI64Rotr:
		b, a := fr.popU64(), fr.popU64()
		fr.push(bits.RotateLeft64(a, -int(b)))

	// f32 arithmetic
	case internalwasm.OpcodeF32Abs:
		fr.pushF32(float32(math.Abs(float64(fr.popF32()))))
	case internalwasm.OpcodeF32Neg:
		fr.pushF32(-fr.popF32())
	case internalwasm.OpcodeF32Ceil:
		fr.pushF32(float32(math.Ceil(float64(fr.popF32()))))
	case internalwasm.OpcodeF32Floor:
		fr.pushF32(float32(math.Floor(float64(fr.popF32()))))
	case internalwasm.OpcodeF32Trunc:
		fr.pushF32(float32(math.Trunc(float64(fr.popF32()))))
	case internalwasm.OpcodeF32Nearest:
		fr.pushF32(moremath.WasmCompatNearestF32(fr.popF32()))
	case internalwasm.OpcodeF32Sqrt:
		fr.pushF32(float32(math.Sqrt(float64(fr.popF32()))))
	case internalwasm.OpcodeF32Add:
		b, a := fr.popF32(), fr.popF32()
		fr.pushF32(a + b)
	case internalwasm.OpcodeF32Sub:
		b, a := fr.popF32(), fr.popF32()
		fr.pushF32(a - b)
	case internalwasm.OpcodeF32Mul:
		b, a := fr.popF32(), fr.popF32()
		fr.pushF32(a * b)
	case internalwasm.OpcodeF32Div:
		b, a := fr.popF32(), fr.popF32()
		fr.pushF32(a / b)
	case internalwasm.OpcodeF32Min:
		b, a := fr.popF32(), fr.popF32()
		fr.pushF32(moremath.WasmCompatMin32(a, b))
	case internalwasm.OpcodeF32Max:
		b, a := fr.popF32(), fr.popF32()
		fr.pushF32(moremath.WasmCompatMax32(a, b))
	case internalwasm.OpcodeF32Copysign:
		b, a := fr.popF32(), fr.popF32()
		fr.pushF32(float32(math.Copysign(float64(a), float64(b))))

	// f64 arithmetic
	case internalwasm.OpcodeF64Abs:
		fr.pushF64(math.Abs(fr.popF64()))
	case internalwasm.OpcodeF64Neg:
		fr.pushF64(-fr.popF64())
	case internalwasm.OpcodeF64Ceil:
		fr.pushF64(math.Ceil(fr.popF64()))
	case internalwasm.OpcodeF64Floor:
		fr.pushF64(math.Floor(fr.popF64()))
	case internalwasm.OpcodeF64Trunc:
		fr.pushF64(math.Trunc(fr.popF64()))
	case internalwasm.OpcodeF64Nearest:
		fr.pushF64(moremath.WasmCompatNearestF64(fr.popF64()))
	case internalwasm.OpcodeF64Sqrt:
		fr.pushF64(math.Sqrt(fr.popF64()))
	case internalwasm.OpcodeF64Add:
		b, a := fr.popF64(), fr.popF64()
		fr.pushF64(a + b)
	case internalwasm.OpcodeF64Sub:
		b, a := fr.popF64(), fr.popF64()
		fr.pushF64(a - b)
	case internalwasm.OpcodeF64Mul:
		b, a := fr.popF64(), fr.popF64()
		fr.pushF64(a * b)
	case internalwasm.OpcodeF64Div:
		b, a := fr.popF64(), fr.popF64()
		fr.pushF64(a / b)
	case internalwasm.OpcodeF64Min:
		b, a := fr.popF64(), fr.popF64()
		fr.pushF64(moremath.WasmCompatMin64(a, b))
	case internalwasm.OpcodeF64Max:
		b, a := fr.popF64(), fr.popF64()
		fr.pushF64(moremath.WasmCompatMax64(a, b))
	case internalwasm.OpcodeF64Copysign:
		b, a := fr.popF64(), fr.popF64()
		fr.pushF64(math.Copysign(a, b))

	// conversions
	case internalwasm.OpcodeI32WrapI64:
		fr.pushI32(int32(fr.popU64()))
	case internalwasm.OpcodeI32TruncF32S:
		fr.pushI32(truncToI32(float64(fr.popF32())))
	case internalwasm.OpcodeI32TruncF32U:
		fr.pushI32(int32(truncToU32(float64(fr.popF32()))))
	case internalwasm.OpcodeI32TruncF64S:
		fr.pushI32(truncToI32(fr.popF64()))
	case internalwasm.OpcodeI32TruncF64U:
		fr.pushI32(int32(truncToU32(fr.popF64())))
	case internalwasm.OpcodeI64ExtendI32S:
		fr.push(uint64(int64(fr.popI32())))
	case internalwasm.OpcodeI64ExtendI32U:
		fr.push(uint64(fr.popU32()))
	case internalwasm.OpcodeI64TruncF32S:
		fr.push(uint64(truncToI64(float64(fr.popF32()))))
	case internalwasm.OpcodeI64TruncF32U:
		fr.push(truncToU64(float64(fr.popF32())))
	case internalwasm.OpcodeI64TruncF64S:
		fr.push(uint64(truncToI64(fr.popF64())))
	case internalwasm.OpcodeI64TruncF64U:
		fr.push(truncToU64(fr.popF64()))
	case internalwasm.OpcodeF32ConvertI32S:
		fr.pushF32(float32(fr.popI32()))
	case internalwasm.OpcodeF32ConvertI32U:
		fr.pushF32(float32(fr.popU32()))
	case internalwasm.OpcodeF32ConvertI64S:
		fr.pushF32(float32(fr.popI64()))
	case internalwasm.OpcodeF32ConvertI64U:
		fr.pushF32(float32(fr.popU64()))
	case internalwasm.OpcodeF32DemoteF64:
		fr.pushF32(float32(fr.popF64()))
	case internalwasm.OpcodeF64ConvertI32S:
		fr.pushF64(float64(fr.popI32()))
	case internalwasm.OpcodeF64ConvertI32U:
		fr.pushF64(float64(fr.popU32()))
	case internalwasm.OpcodeF64ConvertI64S:
		fr.pushF64(float64(fr.popI64()))
	case internalwasm.OpcodeF64ConvertI64U:
		fr.pushF64(float64(fr.popU64()))
	case internalwasm.OpcodeF64PromoteF32:
		fr.pushF64(float64(fr.popF32()))
	case internalwasm.OpcodeI32ReinterpretF32:
		fr.push(uint64(math.Float32bits(fr.popF32())))
	case internalwasm.OpcodeI64ReinterpretF64:
		fr.push(math.Float64bits(fr.popF64()))
	case internalwasm.OpcodeF32ReinterpretI32:
		fr.pushF32(math.Float32frombits(fr.popU32()))
	case internalwasm.OpcodeF64ReinterpretI64:
		fr.pushF64(math.Float64frombits(fr.popU64()))

	// sign-extension-ops
	case internalwasm.OpcodeI32Extend8S:
		fr.pushI32(int32(int8(fr.popU32())))
	case internalwasm.OpcodeI32Extend16S:
		fr.pushI32(int32(int16(fr.popU32())))
	case internalwasm.OpcodeI64Extend8S:
		fr.push(uint64(int64(int8(fr.popU64()))))
	case internalwasm.OpcodeI64Extend16S:
		fr.push(uint64(int64(int16(fr.popU64()))))
	case internalwasm.OpcodeI64Extend32S:
		fr.push(uint64(int64(int32(fr.popU64()))))

	default:
		panic(wasmruntime.ErrRuntimeUnreachable)
	}
}

func (fr *frame) pushBool(b bool) {
	if b {
		fr.pushI32(1)
	} else {
		fr.pushI32(0)
	}
}

// truncToI32/truncToU32/truncToI64/truncToU64 implement the trapping (non-saturating) Wasm 1.0
// truncation rule: NaN and out-of-range values trap rather than clamp.
func truncToI32(v float64) int32 {
	checkTruncOperand(v)
	if v < math.MinInt32 || v >= math.MaxInt32+1 {
		panic(wasmruntime.ErrRuntimeIntegerOverflow)
	}
	return int32(v)
}

func truncToU32(v float64) uint32 {
	checkTruncOperand(v)
	if v < 0 || v >= math.MaxUint32+1 {
		panic(wasmruntime.ErrRuntimeIntegerOverflow)
	}
	return uint32(v)
}

func truncToI64(v float64) int64 {
	checkTruncOperand(v)
	if v < math.MinInt64 || v >= math.MaxInt64 {
		panic(wasmruntime.ErrRuntimeIntegerOverflow)
	}
	return int64(v)
}

func truncToU64(v float64) uint64 {
	checkTruncOperand(v)
	if v < 0 || v >= math.MaxUint64 {
		panic(wasmruntime.ErrRuntimeIntegerOverflow)
	}
	return uint64(v)
}

func checkTruncOperand(v float64) {
	if math.IsNaN(v) {
		panic(wasmruntime.ErrRuntimeInvalidConversionToInteger)
	}
}
