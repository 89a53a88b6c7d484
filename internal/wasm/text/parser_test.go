package text

import (
	"testing"

	"github.com/stretchr/testify/require"

	wasm "github.com/tinywasm/tinywasm/internal/wasm"
)

func TestParseModule_empty(t *testing.T) {
	m, err := ParseModule("(module)")
	require.NoError(t, err)
	require.Equal(t, &wasm.Module{}, m)
}

func TestParseModule_funcAddAndExport(t *testing.T) {
	m, err := ParseModule(`(module
		(func $add (param i32 i32) (result i32)
			local.get 0
			local.get 1
			i32.add)
		(export "add" (func $add))
	)`)
	require.NoError(t, err)
	require.Len(t, m.TypeSection, 1)
	require.Equal(t, &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}, m.TypeSection[0])
	require.Equal(t, []wasm.Index{0}, m.FunctionSection)
	require.Equal(t, []byte{wasm.OpcodeLocalGet, 0, wasm.OpcodeLocalGet, 1, wasm.OpcodeI32Add, wasm.OpcodeEnd}, m.CodeSection[0].Body)
	require.Equal(t, []*wasm.Export{{Name: "add", Type: wasm.ExternTypeFunc, Index: 0}}, m.ExportSection)
}

func TestParseModule_localsAndConst(t *testing.T) {
	m, err := ParseModule(`(module
		(func (result i32)
			(local i32)
			i32.const 42
			local.set 0
			local.get 0))`)
	require.NoError(t, err)
	require.Equal(t, []wasm.ValueType{wasm.ValueTypeI32}, m.CodeSection[0].LocalTypes)
	require.Equal(t, []byte{
		wasm.OpcodeI32Const, 42,
		wasm.OpcodeLocalSet, 0,
		wasm.OpcodeLocalGet, 0,
		wasm.OpcodeEnd,
	}, m.CodeSection[0].Body)
}

func TestParseModule_importFunc(t *testing.T) {
	m, err := ParseModule(`(module
		(import "env" "double" (func $double (param i32) (result i32)))
		(func (param i32) (result i32) local.get 0 call $double)
	)`)
	require.NoError(t, err)
	require.Len(t, m.ImportSection, 1)
	require.Equal(t, "env", m.ImportSection[0].Module)
	require.Equal(t, "double", m.ImportSection[0].Name)
	require.Equal(t, wasm.ExternTypeFunc, m.ImportSection[0].Type)
	require.Equal(t, []byte{wasm.OpcodeLocalGet, 0, wasm.OpcodeCall, 0, wasm.OpcodeEnd}, m.CodeSection[0].Body)
}

func TestParseModule_memoryTableGlobal(t *testing.T) {
	m, err := ParseModule(`(module
		(memory 1 2)
		(table 1 funcref)
		(global $g (mut i32) (i32.const 7))
	)`)
	require.NoError(t, err)
	max := uint32(2)
	require.Equal(t, []*wasm.MemoryType{{Min: 1, Max: &max}}, m.MemorySection)
	require.Equal(t, uint32(1), m.TableSection[0].Limits.Min)
	require.Equal(t, wasm.ValueTypeI32, m.GlobalSection[0].Type.ValType)
	require.True(t, m.GlobalSection[0].Type.Mutable)
}

func TestParseModule_blockLoopBranch(t *testing.T) {
	m, err := ParseModule(`(module
		(func (param i32) (result i32)
			block (result i32)
				loop
					local.get 0
					br_if 1
					br 0
				end
				i32.const 0
			end
		)
	)`)
	require.NoError(t, err)
	require.Equal(t, []byte{
		wasm.OpcodeBlock, 0x7f,
		wasm.OpcodeLoop, 0x40,
		wasm.OpcodeLocalGet, 0,
		wasm.OpcodeBrIf, 1,
		wasm.OpcodeBr, 0,
		wasm.OpcodeEnd,
		wasm.OpcodeI32Const, 0,
		wasm.OpcodeEnd,
		wasm.OpcodeEnd,
	}, m.CodeSection[0].Body)
}

func TestParseModule_signExtensionOpcodes(t *testing.T) {
	m, err := ParseModule(`(module (func (param i32) (result i32) local.get 0 i32.extend8_s))`)
	require.NoError(t, err)
	require.Equal(t, []byte{wasm.OpcodeLocalGet, 0, wasm.OpcodeI32Extend8S, wasm.OpcodeEnd}, m.CodeSection[0].Body)
}

func TestParseModule_syntaxError(t *testing.T) {
	_, err := ParseModule(`(module (func (result i32))`)
	require.Error(t, err)
}
