package binary

import (
	"testing"

	"github.com/stretchr/testify/require"

	wasm "github.com/tinywasm/tinywasm/internal/wasm"
)

func TestEncodeDecodeModule_roundTrip(t *testing.T) {
	i32, f64 := wasm.ValueTypeI32, wasm.ValueTypeF64
	zero := uint32(0)
	max := uint32(10)

	tests := []struct {
		name  string
		input *wasm.Module
	}{
		{name: "empty", input: &wasm.Module{}},
		{name: "only name section", input: &wasm.Module{NameSection: &wasm.NameSection{ModuleName: "simple"}}},
		{
			name: "type section",
			input: &wasm.Module{
				TypeSection: []*wasm.FunctionType{
					{},
					{Params: []wasm.ValueType{i32, i32}, Results: []wasm.ValueType{i32}},
				},
			},
		},
		{
			name: "imports",
			input: &wasm.Module{
				TypeSection: []*wasm.FunctionType{{Params: []wasm.ValueType{i32}, Results: []wasm.ValueType{i32}}},
				ImportSection: []*wasm.Import{
					{Type: wasm.ExternTypeFunc, Module: "math", Name: "square", DescFunc: 0},
					{Type: wasm.ExternTypeMemory, Module: "env", Name: "memory", DescMem: &wasm.MemoryType{Min: 1, Max: &max}},
					{Type: wasm.ExternTypeTable, Module: "env", Name: "table", DescTable: &wasm.TableType{Limits: &wasm.Limits{Min: 1}}},
					{Type: wasm.ExternTypeGlobal, Module: "env", Name: "pi", DescGlobal: &wasm.GlobalType{ValType: f64}},
				},
			},
		},
		{
			name: "exported func with instructions and names",
			input: &wasm.Module{
				TypeSection:     []*wasm.FunctionType{{Params: []wasm.ValueType{i32, i32}, Results: []wasm.ValueType{i32}}},
				FunctionSection: []wasm.Index{0},
				CodeSection: []*wasm.Code{
					{
						LocalTypes: []wasm.ValueType{i32, i32},
						Body:       []byte{wasm.OpcodeLocalGet, 0, wasm.OpcodeLocalGet, 1, wasm.OpcodeI32Add, wasm.OpcodeEnd},
					},
				},
				ExportSection: []*wasm.Export{{Name: "addInt", Type: wasm.ExternTypeFunc, Index: 0}},
				NameSection: &wasm.NameSection{
					ModuleName:    "math",
					FunctionNames: wasm.NameMap{{Index: 0, Name: "addInt"}},
				},
			},
		},
		{
			name: "memory, table, globals, start",
			input: &wasm.Module{
				TypeSection:     []*wasm.FunctionType{{}},
				FunctionSection: []wasm.Index{0},
				CodeSection:     []*wasm.Code{{Body: []byte{wasm.OpcodeEnd}}},
				TableSection:    []*wasm.TableType{{Limits: &wasm.Limits{Min: 1, Max: &max}}},
				MemorySection:   []*wasm.MemoryType{{Min: 1}},
				GlobalSection: []*wasm.Global{
					{Type: &wasm.GlobalType{ValType: i32, Mutable: true}, Init: wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, Data: leb128Int32(42)}},
				},
				StartSection: &zero,
			},
		},
		{
			name: "element and data segments",
			input: &wasm.Module{
				TableSection:  []*wasm.TableType{{Limits: &wasm.Limits{Min: 1}}},
				MemorySection: []*wasm.MemoryType{{Min: 1}},
				ElementSection: []*wasm.ElementSegment{
					{TableIndex: 0, OffsetExpr: wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, Data: leb128Int32(0)}, Init: []wasm.Index{0, 1}},
				},
				DataSection: []*wasm.DataSegment{
					{MemoryIndex: 0, OffsetExpression: wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, Data: leb128Int32(0)}, Init: []byte("hi")},
				},
			},
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			encoded := EncodeModule(tc.input)
			require.Equal(t, Magic, encoded[0:4])
			require.Equal(t, Version, encoded[4:8])

			decoded, err := DecodeModule(encoded)
			require.NoError(t, err)
			require.Equal(t, tc.input, decoded)
		})
	}
}

func TestDecodeModule_invalidHeader(t *testing.T) {
	_, err := DecodeModule([]byte{0x00, 0x61, 0x73, 0x6d, 0x02, 0x00, 0x00, 0x00})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid version")

	_, err = DecodeModule([]byte{0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid magic number")
}

func TestDecodeModule_outOfOrderSection(t *testing.T) {
	// A function section (id 3) followed by a type section (id 1) is out of order.
	b := append(append([]byte{}, Magic...), Version...)
	b = append(b, wasm.SectionIDFunction, 0x01, 0x00)
	b = append(b, wasm.SectionIDType, 0x01, 0x00)
	_, err := DecodeModule(b)
	require.Error(t, err)
	require.Contains(t, err.Error(), "out of order section")
}

func leb128Int32(v int32) []byte {
	var out [4]byte
	for i := 0; i < 4; i++ {
		out[i] = byte(uint32(v) >> (8 * i))
	}
	return out[:]
}
