package internalwasm

import (
	"fmt"

	"github.com/tinywasm/tinywasm/api"
)

// maxStackValues bounds the operand stack depth a single function body may reach, guarding against
// pathological inputs (e.g. millions of const instructions) before the engine ever runs it.
const maxStackValues = 1 << 16

// valueTypeUnknown marks an operand produced after unreachable code: its type is unconstrained and
// popOperand against it always succeeds, matching the Wasm spec's polymorphic-stack typing rule.
const valueTypeUnknown ValueType = 0xff

// ValidateModule statically type-checks m's function bodies and cross-checks every section's index
// references against the spaces they draw from, per the Wasm 1.0 (20191205) validation algorithm.
// features enables the optional proposals this module accepts beyond the MVP.
func ValidateModule(m *Module, features Features) error {
	functionTypeIdx, globalTypes, memoryTypes, tableTypes := m.allDeclarations()

	if len(memoryTypes) > 1 {
		return &ValidationError{FunctionIndex: -1, Message: "multiple memories are not allowed"}
	}
	if len(tableTypes) > 1 {
		return &ValidationError{FunctionIndex: -1, Message: "multiple tables are not allowed"}
	}

	for i, typeIdx := range functionTypeIdx {
		if int(typeIdx) >= len(m.TypeSection) {
			return &ValidationError{FunctionIndex: i, Message: fmt.Sprintf("invalid type index %d", typeIdx)}
		}
	}

	if m.StartSection != nil {
		idx := *m.StartSection
		if int(idx) >= len(functionTypeIdx) {
			return &ValidationError{FunctionIndex: -1, Message: fmt.Sprintf("invalid start function index %d", idx)}
		}
		ft := m.TypeSection[functionTypeIdx[idx]]
		if len(ft.Params) != 0 || len(ft.Results) != 0 {
			return &ValidationError{FunctionIndex: -1, Message: "start function must have no params or results"}
		}
	}

	for _, exp := range m.ExportSection {
		var n int
		switch exp.Type {
		case ExternTypeFunc:
			n = len(functionTypeIdx)
		case ExternTypeGlobal:
			n = len(globalTypes)
		case ExternTypeMemory:
			n = len(memoryTypes)
		case ExternTypeTable:
			n = len(tableTypes)
		}
		if int(exp.Index) >= n {
			return &ValidationError{FunctionIndex: -1, Message: fmt.Sprintf("export %q: invalid %s index %d", exp.Name, ExternTypeName(exp.Type), exp.Index)}
		}
	}

	for _, e := range m.ElementSection {
		if int(e.TableIndex) >= len(tableTypes) {
			return &ValidationError{FunctionIndex: -1, Message: fmt.Sprintf("element segment: invalid table index %d", e.TableIndex)}
		}
		for _, fnIdx := range e.Init {
			if int(fnIdx) >= len(functionTypeIdx) {
				return &ValidationError{FunctionIndex: -1, Message: fmt.Sprintf("element segment: invalid function index %d", fnIdx)}
			}
		}
	}

	if len(m.DataSection) > 0 && len(memoryTypes) == 0 {
		return &ValidationError{FunctionIndex: -1, Message: "data segment but no memory"}
	}

	importedFuncCount := int(m.ImportFuncCount())
	for codeIdx, typeIdx := range m.FunctionSection {
		funcIdx := importedFuncCount + codeIdx
		if codeIdx >= len(m.CodeSection) {
			return &ValidationError{FunctionIndex: funcIdx, Message: "missing function body"}
		}
		ft := m.TypeSection[typeIdx]
		code := m.CodeSection[codeIdx]
		if err := validateFunction(ft, code.Body, code.LocalTypes, m.TypeSection, functionTypeIdx, globalTypes, memoryTypes, tableTypes, features); err != nil {
			return &ValidationError{FunctionIndex: funcIdx, Message: err.Error()}
		}
	}
	return nil
}

// controlFrame tracks one nested block/loop/if/function scope during validation: the types its
// label branches to (loop: its params; block/if: its results), the operand stack height at entry
// (branches and `end` pop back down to exactly this height plus the label's arity), and whether an
// unconditional branch or unreachable has made the remainder of this frame's code unreachable.
type controlFrame struct {
	opcode      Opcode
	startTypes  []ValueType // the frame's declared param types
	endTypes    []ValueType // the frame's declared result types; what `br` to this frame must supply
	height      int         // value stack length when this frame was entered
	unreachable bool
	sawElse     bool
}

// labelTypes returns the types a branch targeting this frame must leave on the stack: a loop's
// label re-enters at its params, every other block's label exits at its results.
func (f *controlFrame) labelTypes() []ValueType {
	if f.opcode == OpcodeLoop {
		return f.startTypes
	}
	return f.endTypes
}

type funcValidator struct {
	types     []*FunctionType
	functions []Index // combined index space: function index -> type index
	globals   []*GlobalType
	memory    *MemoryType
	table     *TableType
	features  Features
	locals    []ValueType

	valueStack   []ValueType
	controlStack []controlFrame
}

// validateFunction runs the standard Wasm stack-polymorphic type-checking algorithm over body,
// the raw instruction bytes of a single function (locals already stripped), given ft (the
// function's own signature), localTypes (its declared non-parameter locals, in declaration order),
// and the module's type/function/global/memory/table context needed to check call, global.get/set,
// and memory instructions.
func validateFunction(ft *FunctionType, body []byte, localTypes []ValueType, types []*FunctionType, functions []Index, globals []*GlobalType, memories []*MemoryType, tables []*TableType, features Features) error {
	v := &funcValidator{types: types, functions: functions, globals: globals, features: features}
	if len(memories) > 0 {
		v.memory = memories[0]
	}
	if len(tables) > 0 {
		v.table = tables[0]
	}
	v.locals = append(append([]ValueType{}, ft.Params...), localTypes...)

	v.pushControlFrame(OpcodeBlock, nil, ft.Results)

	r := &byteCursor{b: body}
	for r.pos < len(r.b) {
		op, err := r.readByte()
		if err != nil {
			return err
		}
		if err := v.validateInstruction(op, r); err != nil {
			return err
		}
		if len(v.controlStack) == 0 {
			break // the implicit function-level block's matching `end` was just consumed
		}
	}
	if len(v.controlStack) != 0 {
		return fmt.Errorf("function body missing end")
	}
	if len(v.valueStack) > maxStackValues {
		return fmt.Errorf("function may have %d stack values, which exceeds limit %d", len(v.valueStack), maxStackValues)
	}
	return nil
}

// byteCursor is a minimal forward-only reader over a function body, shared by validation and
// (conceptually) execution so both walk the identical instruction encoding.
type byteCursor struct {
	b   []byte
	pos int
}

func (c *byteCursor) readByte() (byte, error) {
	if c.pos >= len(c.b) {
		return 0, fmt.Errorf("unexpected end of function body")
	}
	b := c.b[c.pos]
	c.pos++
	return b, nil
}

func (c *byteCursor) readVarUint32() (uint32, error) {
	var result uint32
	var shift uint
	for {
		b, err := c.readByte()
		if err != nil {
			return 0, err
		}
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
		if shift >= 35 {
			return 0, fmt.Errorf("malformed varuint32")
		}
	}
}

func (c *byteCursor) readVarInt32() (int32, error) {
	u, err := c.readVarUint32()
	return int32(u), err
}

func (c *byteCursor) skipBytes(n int) error {
	if c.pos+n > len(c.b) {
		return fmt.Errorf("unexpected end of function body")
	}
	c.pos += n
	return nil
}

func (v *funcValidator) push(t ValueType) { v.valueStack = append(v.valueStack, t) }

func (v *funcValidator) pushN(ts []ValueType) {
	v.valueStack = append(v.valueStack, ts...)
}

func (v *funcValidator) top() *controlFrame { return &v.controlStack[len(v.controlStack)-1] }

func (v *funcValidator) pop() (ValueType, error) {
	f := v.top()
	if len(v.valueStack) == f.height {
		if f.unreachable {
			return valueTypeUnknown, nil
		}
		return 0, fmt.Errorf("cannot pop from empty stack")
	}
	t := v.valueStack[len(v.valueStack)-1]
	v.valueStack = v.valueStack[:len(v.valueStack)-1]
	return t, nil
}

// popExpect pops one operand and checks it matches want, unless the current frame is in
// unreachable (polymorphic) mode, in which case any type is accepted.
func (v *funcValidator) popExpect(want ValueType) error {
	got, err := v.pop()
	if err != nil {
		return err
	}
	if got == valueTypeUnknown || want == valueTypeUnknown {
		return nil
	}
	if got != want {
		return fmt.Errorf("type mismatch: expected %s, got %s", valueTypeName(want), valueTypeName(got))
	}
	return nil
}

func (v *funcValidator) popExpectN(want []ValueType) error {
	for i := len(want) - 1; i >= 0; i-- {
		if err := v.popExpect(want[i]); err != nil {
			return err
		}
	}
	return nil
}

func valueTypeName(t ValueType) string {
	if t == valueTypeUnknown {
		return "unknown"
	}
	return api.ValueTypeName(t)
}

func (v *funcValidator) pushControlFrame(op Opcode, start, end []ValueType) {
	v.controlStack = append(v.controlStack, controlFrame{
		opcode: op, startTypes: start, endTypes: end, height: len(v.valueStack),
	})
	v.pushN(start)
}

// popControlFrame verifies the frame's declared results are present atop the stack, then trims the
// stack back to exactly the frame's entry height plus its results, discarding any polymorphic slack
// accumulated after an unreachable.
func (v *funcValidator) popControlFrame() (controlFrame, error) {
	f := *v.top()
	if err := v.popExpectN(f.endTypes); err != nil {
		return f, err
	}
	if len(v.valueStack) != f.height {
		return f, fmt.Errorf("type mismatch: unused values remain on the stack at end of block")
	}
	v.controlStack = v.controlStack[:len(v.controlStack)-1]
	return f, nil
}

// setUnreachable discards the current frame's operand stack down to its entry height and marks it
// polymorphic: subsequent pops succeed with an unconstrained type until the next structured
// boundary (else/end), matching unreachable/br/br_table/return's effect on stack typing.
func (v *funcValidator) setUnreachable() {
	f := v.top()
	v.valueStack = v.valueStack[:f.height]
	f.unreachable = true
}

func (v *funcValidator) branchTargetTypes(depth uint32) ([]ValueType, error) {
	if int(depth) >= len(v.controlStack) {
		return nil, fmt.Errorf("invalid branch depth %d", depth)
	}
	f := &v.controlStack[len(v.controlStack)-1-int(depth)]
	return f.labelTypes(), nil
}

func (v *funcValidator) localType(idx uint32) (ValueType, error) {
	if int(idx) >= len(v.locals) {
		return 0, fmt.Errorf("invalid local index %d", idx)
	}
	return v.locals[idx], nil
}

func (v *funcValidator) globalType(idx uint32) (*GlobalType, error) {
	if int(idx) >= len(v.globals) {
		return nil, fmt.Errorf("invalid global index %d", idx)
	}
	return v.globals[idx], nil
}

// readBlockType decodes a block/loop/if signature: 0x40 (empty), a single value type byte, or (with
// the multi-value feature) a signed LEB128 type-section index.
func (v *funcValidator) readBlockType(c *byteCursor) (params, results []ValueType, err error) {
	if c.pos >= len(c.b) {
		return nil, nil, fmt.Errorf("unexpected end of function body")
	}
	b := c.b[c.pos]
	if b == 0x40 {
		c.pos++
		return nil, nil, nil
	}
	if isValueTypeByte(b) {
		c.pos++
		return nil, []ValueType{ValueType(b)}, nil
	}
	if !v.features.Get(FeatureMultiValue) {
		return nil, nil, fmt.Errorf("multi-value block types require the multi-value feature")
	}
	idx, err := readSignedLEB33(c)
	if err != nil {
		return nil, nil, err
	}
	if idx < 0 || int(idx) >= len(v.types) {
		return nil, nil, fmt.Errorf("invalid block type index %d", idx)
	}
	ft := v.types[idx]
	return ft.Params, ft.Results, nil
}

func isValueTypeByte(b byte) bool {
	switch ValueType(b) {
	case ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64:
		return true
	}
	return false
}

// readSignedLEB33 reads the 33-bit signed LEB128 used for blocktype type-section indices (the
// binary format reuses the s33 encoding so 0x40 and single-byte value types stay distinguishable).
func readSignedLEB33(c *byteCursor) (int64, error) {
	var result int64
	var shift uint
	var b byte
	var err error
	for {
		b, err = c.readByte()
		if err != nil {
			return 0, err
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if shift >= 33 {
			return 0, fmt.Errorf("malformed block type index")
		}
	}
	if shift < 33 && b&0x40 != 0 {
		result |= -1 << shift
	}
	return result, nil
}

// validateInstruction type-checks a single instruction, advancing r past its immediates.
func (v *funcValidator) validateInstruction(op Opcode, r *byteCursor) error {
	switch op {
	case OpcodeUnreachable:
		v.setUnreachable()
	case OpcodeNop:
	case OpcodeBlock, OpcodeLoop:
		params, results, err := v.readBlockType(r)
		if err != nil {
			return err
		}
		if err := v.popExpectN(params); err != nil {
			return err
		}
		v.pushControlFrame(op, params, results)
	case OpcodeIf:
		params, results, err := v.readBlockType(r)
		if err != nil {
			return err
		}
		if err := v.popExpect(ValueTypeI32); err != nil {
			return err
		}
		if err := v.popExpectN(params); err != nil {
			return err
		}
		v.pushControlFrame(op, params, results)
	case OpcodeElse:
		f, err := v.popControlFrame()
		if err != nil {
			return err
		}
		if f.opcode != OpcodeIf {
			return fmt.Errorf("else without matching if")
		}
		f.sawElse = true
		v.pushControlFrame(OpcodeIf, f.startTypes, f.endTypes)
		v.top().sawElse = true
	case OpcodeEnd:
		f, err := v.popControlFrame()
		if err != nil {
			return err
		}
		if f.opcode == OpcodeIf && !f.sawElse && len(f.startTypes) != len(f.endTypes) {
			return fmt.Errorf("if without else must not change the value stack type")
		}
		if len(v.controlStack) > 0 {
			v.pushN(f.endTypes)
		}
	case OpcodeBr:
		depth, err := r.readVarUint32()
		if err != nil {
			return err
		}
		ts, err := v.branchTargetTypes(depth)
		if err != nil {
			return err
		}
		if err := v.popExpectN(ts); err != nil {
			return err
		}
		v.setUnreachable()
	case OpcodeBrIf:
		depth, err := r.readVarUint32()
		if err != nil {
			return err
		}
		if err := v.popExpect(ValueTypeI32); err != nil {
			return err
		}
		ts, err := v.branchTargetTypes(depth)
		if err != nil {
			return err
		}
		if err := v.popExpectN(ts); err != nil {
			return err
		}
		v.pushN(ts)
	case OpcodeBrTable:
		n, err := r.readVarUint32()
		if err != nil {
			return err
		}
		depths := make([]uint32, n+1)
		for i := range depths {
			d, err := r.readVarUint32()
			if err != nil {
				return err
			}
			depths[i] = d
		}
		if err := v.popExpect(ValueTypeI32); err != nil {
			return err
		}
		defaultTypes, err := v.branchTargetTypes(depths[n])
		if err != nil {
			return err
		}
		for _, d := range depths[:n] {
			ts, err := v.branchTargetTypes(d)
			if err != nil {
				return err
			}
			if len(ts) != len(defaultTypes) {
				return fmt.Errorf("br_table labels have mismatched arity")
			}
		}
		if err := v.popExpectN(defaultTypes); err != nil {
			return err
		}
		v.setUnreachable()
	case OpcodeReturn:
		ts := v.controlStack[0].endTypes
		if err := v.popExpectN(ts); err != nil {
			return err
		}
		v.setUnreachable()
	case OpcodeCall:
		idx, err := r.readVarUint32()
		if err != nil {
			return err
		}
		if int(idx) >= len(v.functions) {
			return fmt.Errorf("invalid function index %d", idx)
		}
		ft := v.types[v.functions[idx]]
		if err := v.popExpectN(ft.Params); err != nil {
			return err
		}
		v.pushN(ft.Results)
	case OpcodeCallIndirect:
		typeIdx, err := r.readVarUint32()
		if err != nil {
			return err
		}
		if _, err := r.readByte(); err != nil { // reserved table-index byte, always 0 in 1.0
			return err
		}
		if v.table == nil {
			return fmt.Errorf("call_indirect requires a table")
		}
		if int(typeIdx) >= len(v.types) {
			return fmt.Errorf("invalid type index %d", typeIdx)
		}
		if err := v.popExpect(ValueTypeI32); err != nil {
			return err
		}
		ft := v.types[typeIdx]
		if err := v.popExpectN(ft.Params); err != nil {
			return err
		}
		v.pushN(ft.Results)
	case OpcodeDrop:
		if _, err := v.pop(); err != nil {
			return err
		}
	case OpcodeSelect:
		if err := v.popExpect(ValueTypeI32); err != nil {
			return err
		}
		a, err := v.pop()
		if err != nil {
			return err
		}
		if err := v.popExpect(a); err != nil {
			return err
		}
		v.push(a)
	case OpcodeLocalGet:
		idx, err := r.readVarUint32()
		if err != nil {
			return err
		}
		t, err := v.localType(idx)
		if err != nil {
			return err
		}
		v.push(t)
	case OpcodeLocalSet:
		idx, err := r.readVarUint32()
		if err != nil {
			return err
		}
		t, err := v.localType(idx)
		if err != nil {
			return err
		}
		if err := v.popExpect(t); err != nil {
			return err
		}
	case OpcodeLocalTee:
		idx, err := r.readVarUint32()
		if err != nil {
			return err
		}
		t, err := v.localType(idx)
		if err != nil {
			return err
		}
		if err := v.popExpect(t); err != nil {
			return err
		}
		v.push(t)
	case OpcodeGlobalGet:
		idx, err := r.readVarUint32()
		if err != nil {
			return err
		}
		gt, err := v.globalType(idx)
		if err != nil {
			return err
		}
		v.push(gt.ValType)
	case OpcodeGlobalSet:
		idx, err := r.readVarUint32()
		if err != nil {
			return err
		}
		gt, err := v.globalType(idx)
		if err != nil {
			return err
		}
		if !gt.Mutable {
			return fmt.Errorf("global.set on an immutable global %d", idx)
		}
		if err := v.popExpect(gt.ValType); err != nil {
			return err
		}
	case OpcodeMemorySize:
		if _, err := r.readByte(); err != nil { // reserved
			return err
		}
		if v.memory == nil {
			return fmt.Errorf("memory.size requires a memory")
		}
		v.push(ValueTypeI32)
	case OpcodeMemoryGrow:
		if _, err := r.readByte(); err != nil { // reserved
			return err
		}
		if v.memory == nil {
			return fmt.Errorf("memory.grow requires a memory")
		}
		if err := v.popExpect(ValueTypeI32); err != nil {
			return err
		}
		v.push(ValueTypeI32)
	case OpcodeI32Const:
		if _, err := r.readVarInt32(); err != nil {
			return err
		}
		v.push(ValueTypeI32)
	case OpcodeI64Const:
		if err := skipVarInt64(r); err != nil {
			return err
		}
		v.push(ValueTypeI64)
	case OpcodeF32Const:
		if err := r.skipBytes(4); err != nil {
			return err
		}
		v.push(ValueTypeF32)
	case OpcodeF64Const:
		if err := r.skipBytes(8); err != nil {
			return err
		}
		v.push(ValueTypeF64)
	default:
		if isMemoryAccessOpcode(op) {
			return v.validateMemoryAccess(op, r)
		}
		sig, ok := simpleOpcodeSignatures[op]
		if !ok {
			if !v.features.Get(FeatureSignExtensionOps) {
				if _, ok := signExtensionSignatures[op]; ok {
					return fmt.Errorf("opcode %#x requires the sign-extension-ops feature", op)
				}
			}
			sig, ok = signExtensionSignatures[op]
			if !ok {
				return fmt.Errorf("unknown opcode %#x", op)
			}
		}
		if err := v.popExpectN(sig.params); err != nil {
			return err
		}
		v.pushN(sig.results)
	}
	return nil
}

func skipVarInt64(c *byteCursor) error {
	for {
		b, err := c.readByte()
		if err != nil {
			return err
		}
		if b&0x80 == 0 {
			return nil
		}
	}
}

func isMemoryAccessOpcode(op Opcode) bool {
	switch op {
	case OpcodeI32Load, OpcodeI64Load, OpcodeF32Load, OpcodeF64Load,
		OpcodeI32Load8S, OpcodeI32Load8U, OpcodeI32Load16S, OpcodeI32Load16U,
		OpcodeI64Load8S, OpcodeI64Load8U, OpcodeI64Load16S, OpcodeI64Load16U, OpcodeI64Load32S, OpcodeI64Load32U,
		OpcodeI32Store, OpcodeI64Store, OpcodeF32Store, OpcodeF64Store,
		OpcodeI32Store8, OpcodeI32Store16, OpcodeI64Store8, OpcodeI64Store16, OpcodeI64Store32:
		return true
	}
	return false
}

var memoryAccessValueType = map[Opcode]ValueType{
	OpcodeI32Load: ValueTypeI32, OpcodeI32Load8S: ValueTypeI32, OpcodeI32Load8U: ValueTypeI32,
	OpcodeI32Load16S: ValueTypeI32, OpcodeI32Load16U: ValueTypeI32,
	OpcodeI64Load: ValueTypeI64, OpcodeI64Load8S: ValueTypeI64, OpcodeI64Load8U: ValueTypeI64,
	OpcodeI64Load16S: ValueTypeI64, OpcodeI64Load16U: ValueTypeI64, OpcodeI64Load32S: ValueTypeI64, OpcodeI64Load32U: ValueTypeI64,
	OpcodeF32Load: ValueTypeF32, OpcodeF64Load: ValueTypeF64,
	OpcodeI32Store: ValueTypeI32, OpcodeI32Store8: ValueTypeI32, OpcodeI32Store16: ValueTypeI32,
	OpcodeI64Store: ValueTypeI64, OpcodeI64Store8: ValueTypeI64, OpcodeI64Store16: ValueTypeI64, OpcodeI64Store32: ValueTypeI64,
	OpcodeF32Store: ValueTypeF32, OpcodeF64Store: ValueTypeF64,
}

func isStoreOpcode(op Opcode) bool {
	switch op {
	case OpcodeI32Store, OpcodeI64Store, OpcodeF32Store, OpcodeF64Store,
		OpcodeI32Store8, OpcodeI32Store16, OpcodeI64Store8, OpcodeI64Store16, OpcodeI64Store32:
		return true
	}
	return false
}

func (v *funcValidator) validateMemoryAccess(op Opcode, r *byteCursor) error {
	if v.memory == nil {
		return fmt.Errorf("opcode %#x requires a memory", op)
	}
	if _, err := r.readVarUint32(); err != nil { // align
		return err
	}
	if _, err := r.readVarUint32(); err != nil { // offset
		return err
	}
	t := memoryAccessValueType[op]
	if isStoreOpcode(op) {
		if err := v.popExpect(t); err != nil {
			return err
		}
		if err := v.popExpect(ValueTypeI32); err != nil {
			return err
		}
		return nil
	}
	if err := v.popExpect(ValueTypeI32); err != nil {
		return err
	}
	v.push(t)
	return nil
}

type opcodeSignature struct{ params, results []ValueType }

var (
	i32i32_i32 = opcodeSignature{[]ValueType{ValueTypeI32, ValueTypeI32}, []ValueType{ValueTypeI32}}
	i64i64_i64 = opcodeSignature{[]ValueType{ValueTypeI64, ValueTypeI64}, []ValueType{ValueTypeI64}}
	i64i64_i32 = opcodeSignature{[]ValueType{ValueTypeI64, ValueTypeI64}, []ValueType{ValueTypeI32}}
	f32f32_i32 = opcodeSignature{[]ValueType{ValueTypeF32, ValueTypeF32}, []ValueType{ValueTypeI32}}
	f64f64_i32 = opcodeSignature{[]ValueType{ValueTypeF64, ValueTypeF64}, []ValueType{ValueTypeI32}}
	f32f32_f32 = opcodeSignature{[]ValueType{ValueTypeF32, ValueTypeF32}, []ValueType{ValueTypeF32}}
	f64f64_f64 = opcodeSignature{[]ValueType{ValueTypeF64, ValueTypeF64}, []ValueType{ValueTypeF64}}
	i32_i32    = opcodeSignature{[]ValueType{ValueTypeI32}, []ValueType{ValueTypeI32}}
	i64_i64    = opcodeSignature{[]ValueType{ValueTypeI64}, []ValueType{ValueTypeI64}}
	i64_i32    = opcodeSignature{[]ValueType{ValueTypeI64}, []ValueType{ValueTypeI32}}
	i32_i64    = opcodeSignature{[]ValueType{ValueTypeI32}, []ValueType{ValueTypeI64}}
	f32_f32    = opcodeSignature{[]ValueType{ValueTypeF32}, []ValueType{ValueTypeF32}}
	f64_f64    = opcodeSignature{[]ValueType{ValueTypeF64}, []ValueType{ValueTypeF64}}
	f32_i32    = opcodeSignature{[]ValueType{ValueTypeF32}, []ValueType{ValueTypeI32}}
	f32_i64    = opcodeSignature{[]ValueType{ValueTypeF32}, []ValueType{ValueTypeI64}}
	f64_i32    = opcodeSignature{[]ValueType{ValueTypeF64}, []ValueType{ValueTypeI32}}
	f64_i64    = opcodeSignature{[]ValueType{ValueTypeF64}, []ValueType{ValueTypeI64}}
	i32_f32    = opcodeSignature{[]ValueType{ValueTypeI32}, []ValueType{ValueTypeF32}}
	i32_f64    = opcodeSignature{[]ValueType{ValueTypeI32}, []ValueType{ValueTypeF64}}
	i64_f32    = opcodeSignature{[]ValueType{ValueTypeI64}, []ValueType{ValueTypeF32}}
	i64_f64    = opcodeSignature{[]ValueType{ValueTypeI64}, []ValueType{ValueTypeF64}}
	f64_f32    = opcodeSignature{[]ValueType{ValueTypeF64}, []ValueType{ValueTypeF32}}
	f32_f64    = opcodeSignature{[]ValueType{ValueTypeF32}, []ValueType{ValueTypeF64}}
)

// simpleOpcodeSignatures covers every MVP instruction whose type is a fixed (params -> results)
// pair with no immediates beyond what's already consumed by the default switch cases above.
var simpleOpcodeSignatures = map[Opcode]opcodeSignature{
	OpcodeI32Eqz: i32_i32, OpcodeI32Eq: i32i32_i32, OpcodeI32Ne: i32i32_i32,
	OpcodeI32LtS: i32i32_i32, OpcodeI32LtU: i32i32_i32, OpcodeI32GtS: i32i32_i32, OpcodeI32GtU: i32i32_i32,
	OpcodeI32LeS: i32i32_i32, OpcodeI32LeU: i32i32_i32, OpcodeI32GeS: i32i32_i32, OpcodeI32GeU: i32i32_i32,

	OpcodeI64Eqz: i64_i32, OpcodeI64Eq: i64i64_i32, OpcodeI64Ne: i64i64_i32,
	OpcodeI64LtS: i64i64_i32, OpcodeI64LtU: i64i64_i32, OpcodeI64GtS: i64i64_i32, OpcodeI64GtU: i64i64_i32,
	OpcodeI64LeS: i64i64_i32, OpcodeI64LeU: i64i64_i32, OpcodeI64GeS: i64i64_i32, OpcodeI64GeU: i64i64_i32,

	OpcodeF32Eq: f32f32_i32, OpcodeF32Ne: f32f32_i32, OpcodeF32Lt: f32f32_i32,
	OpcodeF32Gt: f32f32_i32, OpcodeF32Le: f32f32_i32, OpcodeF32Ge: f32f32_i32,

	OpcodeF64Eq: f64f64_i32, OpcodeF64Ne: f64f64_i32, OpcodeF64Lt: f64f64_i32,
	OpcodeF64Gt: f64f64_i32, OpcodeF64Le: f64f64_i32, OpcodeF64Ge: f64f64_i32,

	OpcodeI32Clz: i32_i32, OpcodeI32Ctz: i32_i32, OpcodeI32Popcnt: i32_i32,
	OpcodeI32Add: i32i32_i32, OpcodeI32Sub: i32i32_i32, OpcodeI32Mul: i32i32_i32,
	OpcodeI32DivS: i32i32_i32, OpcodeI32DivU: i32i32_i32, OpcodeI32RemS: i32i32_i32, OpcodeI32RemU: i32i32_i32,
	OpcodeI32And: i32i32_i32, OpcodeI32Or: i32i32_i32, OpcodeI32Xor: i32i32_i32,
	OpcodeI32Shl: i32i32_i32, OpcodeI32ShrS: i32i32_i32, OpcodeI32ShrU: i32i32_i32,
	OpcodeI32Rotl: i32i32_i32, OpcodeI32Rotr: i32i32_i32,

	OpcodeI64Clz: i64_i64, OpcodeI64Ctz: i64_i64, OpcodeI64Popcnt: i64_i64,
	OpcodeI64Add: i64i64_i64, OpcodeI64Sub: i64i64_i64, OpcodeI64Mul: i64i64_i64,
	OpcodeI64DivS: i64i64_i64, OpcodeI64DivU: i64i64_i64, OpcodeI64RemS: i64i64_i64, OpcodeI64RemU: i64i64_i64,
	OpcodeI64And: i64i64_i64, OpcodeI64Or: i64i64_i64, OpcodeI64Xor: i64i64_i64,
	OpcodeI64Shl: i64i64_i64, OpcodeI64ShrS: i64i64_i64, OpcodeI64ShrU: i64i64_i64,
	OpcodeI64Rotl: i64i64_i64, OpcodeI64Rotr: i64i64_i64,

	OpcodeF32Abs: f32_f32, OpcodeF32Neg: f32_f32, OpcodeF32Ceil: f32_f32, OpcodeF32Floor: f32_f32,
	OpcodeF32Trunc: f32_f32, OpcodeF32Nearest: f32_f32, OpcodeF32Sqrt: f32_f32,
	OpcodeF32Add: f32f32_f32, OpcodeF32Sub: f32f32_f32, OpcodeF32Mul: f32f32_f32, OpcodeF32Div: f32f32_f32,
	OpcodeF32Min: f32f32_f32, OpcodeF32Max: f32f32_f32, OpcodeF32Copysign: f32f32_f32,

	OpcodeF64Abs: f64_f64, OpcodeF64Neg: f64_f64, OpcodeF64Ceil: f64_f64, OpcodeF64Floor: f64_f64,
	OpcodeF64Trunc: f64_f64, OpcodeF64Nearest: f64_f64, OpcodeF64Sqrt: f64_f64,
	OpcodeF64Add: f64f64_f64, OpcodeF64Sub: f64f64_f64, OpcodeF64Mul: f64f64_f64, OpcodeF64Div: f64f64_f64,
	OpcodeF64Min: f64f64_f64, OpcodeF64Max: f64f64_f64, OpcodeF64Copysign: f64f64_f64,

	OpcodeI32WrapI64: i64_i32,
	OpcodeI32TruncF32S: f32_i32, OpcodeI32TruncF32U: f32_i32, OpcodeI32TruncF64S: f64_i32, OpcodeI32TruncF64U: f64_i32,
	OpcodeI64ExtendI32S: i32_i64, OpcodeI64ExtendI32U: i32_i64,
	OpcodeI64TruncF32S: f32_i64, OpcodeI64TruncF32U: f32_i64, OpcodeI64TruncF64S: f64_i64, OpcodeI64TruncF64U: f64_i64,
	OpcodeF32ConvertI32S: i32_f32, OpcodeF32ConvertI32U: i32_f32, OpcodeF32ConvertI64S: i64_f32, OpcodeF32ConvertI64U: i64_f32,
	OpcodeF32DemoteF64: f64_f32,
	OpcodeF64ConvertI32S: i32_f64, OpcodeF64ConvertI32U: i32_f64, OpcodeF64ConvertI64S: i64_f64, OpcodeF64ConvertI64U: i64_f64,
	OpcodeF64PromoteF32: f32_f64,
	OpcodeI32ReinterpretF32: f32_i32, OpcodeI64ReinterpretF64: f64_i64,
	OpcodeF32ReinterpretI32: i32_f32, OpcodeF64ReinterpretI64: i64_f64,
}

// signExtensionSignatures covers the opt-in sign-extension-ops proposal's five instructions.
var signExtensionSignatures = map[Opcode]opcodeSignature{
	OpcodeI32Extend8S: i32_i32, OpcodeI32Extend16S: i32_i32,
	OpcodeI64Extend8S: i64_i64, OpcodeI64Extend16S: i64_i64, OpcodeI64Extend32S: i64_i64,
}
