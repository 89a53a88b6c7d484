package internalwasm

import (
	"encoding/binary"
	"fmt"
)

// ConstantExpressionOffset evaluates a constant expression known to produce an i32, used for
// element/data segment offsets during instantiation. globalVal resolves global.get initializers.
func ConstantExpressionOffset(ce ConstantExpression, globalVal func(idx Index) int32) (int32, error) {
	switch ce.Opcode {
	case OpcodeI32Const:
		return int32(binary.LittleEndian.Uint32(ce.Data)), nil
	case OpcodeGlobalGet:
		idx := binary.LittleEndian.Uint32(ce.Data)
		return globalVal(idx), nil
	default:
		return 0, fmt.Errorf("unsupported constant expression opcode %#x for i32 offset", ce.Opcode)
	}
}

// ConstantExpressionValue evaluates a constant expression for a global initializer into its raw
// uint64 representation, as used by api.Global.
func ConstantExpressionValue(ce ConstantExpression, globalVal func(idx Index) uint64) (uint64, error) {
	switch ce.Opcode {
	case OpcodeI32Const:
		return uint64(binary.LittleEndian.Uint32(ce.Data)), nil
	case OpcodeI64Const:
		return binary.LittleEndian.Uint64(ce.Data), nil
	case OpcodeF32Const:
		return uint64(binary.LittleEndian.Uint32(ce.Data)), nil
	case OpcodeF64Const:
		return binary.LittleEndian.Uint64(ce.Data), nil
	case OpcodeGlobalGet:
		idx := binary.LittleEndian.Uint32(ce.Data)
		return globalVal(idx), nil
	default:
		return 0, fmt.Errorf("unsupported constant expression opcode %#x", ce.Opcode)
	}
}
