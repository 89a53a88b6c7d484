package internalwasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateModule_ok(t *testing.T) {
	m := &Module{
		TypeSection:     []*FunctionType{{Params: []ValueType{ValueTypeI32, ValueTypeI32}, Results: []ValueType{ValueTypeI32}}},
		FunctionSection: []Index{0},
		CodeSection: []*Code{
			{Body: []byte{OpcodeLocalGet, 0, OpcodeLocalGet, 1, OpcodeI32Add, OpcodeEnd}},
		},
	}
	require.NoError(t, ValidateModule(m, 0))
}

func TestValidateModule_invalidTypeIndex(t *testing.T) {
	m := &Module{FunctionSection: []Index{0}, CodeSection: []*Code{{Body: []byte{OpcodeEnd}}}}
	err := ValidateModule(m, 0)
	require.Error(t, err)
}

func TestValidateModule_invalidStartFunctionIndex(t *testing.T) {
	idx := Index(5)
	m := &Module{StartSection: &idx}
	err := ValidateModule(m, 0)
	require.Error(t, err)
}

func TestValidateModule_multipleMemories(t *testing.T) {
	m := &Module{MemorySection: []*MemoryType{{Min: 1}, {Min: 1}}}
	err := ValidateModule(m, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "multiple memories")
}

func TestValidateModule_multipleTables(t *testing.T) {
	m := &Module{TableSection: []*TableType{{Limits: &Limits{Min: 1}}, {Limits: &Limits{Min: 1}}}}
	err := ValidateModule(m, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "multiple tables")
}

func TestValidateFunction_typeMismatch(t *testing.T) {
	// Pops an f32 where only an i32 const was pushed.
	m := &Module{
		TypeSection:     []*FunctionType{{}},
		FunctionSection: []Index{0},
		CodeSection: []*Code{
			{Body: []byte{OpcodeI32Const, 0, OpcodeF32Abs, OpcodeEnd}},
		},
	}
	err := ValidateModule(m, 0)
	require.Error(t, err)
}

func TestValidateFunction_dropBalancesStack(t *testing.T) {
	m := &Module{
		TypeSection:     []*FunctionType{{}},
		FunctionSection: []Index{0},
		CodeSection: []*Code{
			{Body: []byte{OpcodeI32Const, 0, OpcodeDrop, OpcodeEnd}},
		},
	}
	require.NoError(t, ValidateModule(m, 0))
}

func TestValidateModule_blockTypeIndexRequiresMultiValueFeature(t *testing.T) {
	// Referencing a block's signature by type-section index, rather than the single-value-type
	// shorthand, is itself a multi-value proposal feature regardless of how many results that
	// type declares.
	ft := &FunctionType{Results: []ValueType{ValueTypeI32}}
	m := &Module{
		TypeSection:     []*FunctionType{{}, ft},
		FunctionSection: []Index{0},
		CodeSection: []*Code{
			{Body: []byte{OpcodeBlock, 1, OpcodeI32Const, 0, OpcodeEnd, OpcodeDrop, OpcodeEnd}},
		},
	}
	require.Error(t, ValidateModule(m, 0))
	require.NoError(t, ValidateModule(m, FeatureMultiValue))
}

func TestValidateModule_unreachableMakesSubsequentCodePolymorphic(t *testing.T) {
	m := &Module{
		TypeSection:     []*FunctionType{{Results: []ValueType{ValueTypeF64}}},
		FunctionSection: []Index{0},
		CodeSection: []*Code{
			// unreachable followed by an instruction whose operands were never pushed is fine: the
			// stack is polymorphic until the next structured-control boundary.
			{Body: []byte{OpcodeUnreachable, OpcodeF64Abs, OpcodeEnd}},
		},
	}
	require.NoError(t, ValidateModule(m, 0))
}
