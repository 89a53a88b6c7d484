package interpreter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	internalwasm "github.com/tinywasm/tinywasm/internal/wasm"
)

var testCtx = context.Background()

// compileAndCall compiles a single-function module body and invokes it with params, returning its
// results or the error from whatever trap the interpreter raises.
func compileAndCall(t *testing.T, ft *internalwasm.FunctionType, localTypes []internalwasm.ValueType, body []byte, params ...uint64) ([]uint64, error) {
	t.Helper()
	m := &internalwasm.Module{
		TypeSection:     []*internalwasm.FunctionType{ft},
		FunctionSection: []internalwasm.Index{0},
		CodeSection:     []*internalwasm.Code{{LocalTypes: localTypes, Body: body}},
	}
	e := NewEngine()
	compiled, err := e.CompileModule(m)
	require.NoError(t, err)

	fn := &internalwasm.FunctionInstance{Type: ft, Index: 0}
	me, err := compiled.NewModuleEngine([]*internalwasm.FunctionInstance{fn})
	require.NoError(t, err)
	mi := &internalwasm.ModuleInstance{Types: m.TypeSection, Functions: []*internalwasm.FunctionInstance{fn}, ModuleEngine: me}
	fn.Module = mi

	return me.Call(testCtx, internalwasm.NewCallContext(nil, mi), fn, params...)
}

func TestEngine_arithmetic(t *testing.T) {
	ft := &internalwasm.FunctionType{
		Params:  []internalwasm.ValueType{internalwasm.ValueTypeI32, internalwasm.ValueTypeI32},
		Results: []internalwasm.ValueType{internalwasm.ValueTypeI32},
	}
	body := []byte{
		internalwasm.OpcodeLocalGet, 0,
		internalwasm.OpcodeLocalGet, 1,
		internalwasm.OpcodeI32Add,
		internalwasm.OpcodeEnd,
	}
	results, err := compileAndCall(t, ft, nil, body, 40, 2)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, results)
}

func TestEngine_loopWithBranch(t *testing.T) {
	// local0 counts down from the param to zero; local1 (the result) counts the iterations taken.
	ft := &internalwasm.FunctionType{
		Params:  []internalwasm.ValueType{internalwasm.ValueTypeI32},
		Results: []internalwasm.ValueType{internalwasm.ValueTypeI32},
	}
	body := []byte{
		internalwasm.OpcodeI32Const, 0,
		internalwasm.OpcodeLocalSet, 1,
		internalwasm.OpcodeBlock, 0x40,
		internalwasm.OpcodeLoop, 0x40,
		/* */ internalwasm.OpcodeLocalGet, 0,
		/* */ internalwasm.OpcodeI32Eqz,
		/* */ internalwasm.OpcodeBrIf, 1, // exit the loop once local0 hits zero
		/* */ internalwasm.OpcodeLocalGet, 0,
		/* */ internalwasm.OpcodeI32Const, 1,
		/* */ internalwasm.OpcodeI32Sub,
		/* */ internalwasm.OpcodeLocalSet, 0,
		/* */ internalwasm.OpcodeLocalGet, 1,
		/* */ internalwasm.OpcodeI32Const, 1,
		/* */ internalwasm.OpcodeI32Add,
		/* */ internalwasm.OpcodeLocalSet, 1,
		/* */ internalwasm.OpcodeBr, 0,
		internalwasm.OpcodeEnd,
		internalwasm.OpcodeEnd,
		internalwasm.OpcodeLocalGet, 1,
		internalwasm.OpcodeEnd,
	}
	results, err := compileAndCall(t, ft, []internalwasm.ValueType{internalwasm.ValueTypeI32}, body, 5)
	require.NoError(t, err)
	require.Equal(t, []uint64{5}, results)
}

// TestEngine_branchTruncatesOperandStack exercises (func (result i32) i32.const 5
// (block (result i32) i32.const 10 i32.const 20 br 0) i32.add): the block pushes two values
// before branching out at depth 0, but only its declared result (the top one, 20) may survive
// the branch. A correct result is 5+20=25; leaving [5,10,20] on the stack instead would add 20
// to 10 and return 30.
func TestEngine_branchTruncatesOperandStack(t *testing.T) {
	ft := &internalwasm.FunctionType{Results: []internalwasm.ValueType{internalwasm.ValueTypeI32}}
	body := []byte{
		internalwasm.OpcodeI32Const, 5,
		internalwasm.OpcodeBlock, 0x7f, // block type i32
		/* */ internalwasm.OpcodeI32Const, 10,
		/* */ internalwasm.OpcodeI32Const, 20,
		/* */ internalwasm.OpcodeBr, 0,
		internalwasm.OpcodeEnd,
		internalwasm.OpcodeI32Add,
		internalwasm.OpcodeEnd,
	}
	results, err := compileAndCall(t, ft, nil, body)
	require.NoError(t, err)
	require.Equal(t, []uint64{25}, results)
}

func TestEngine_unreachableTraps(t *testing.T) {
	ft := &internalwasm.FunctionType{}
	body := []byte{internalwasm.OpcodeUnreachable, internalwasm.OpcodeEnd}
	_, err := compileAndCall(t, ft, nil, body)
	require.Error(t, err)
}

func TestEngine_ifElse(t *testing.T) {
	ft := &internalwasm.FunctionType{
		Params:  []internalwasm.ValueType{internalwasm.ValueTypeI32},
		Results: []internalwasm.ValueType{internalwasm.ValueTypeI32},
	}
	body := []byte{
		internalwasm.OpcodeLocalGet, 0,
		internalwasm.OpcodeIf, 0x7f, // block type i32
		/* */ internalwasm.OpcodeI32Const, 1,
		internalwasm.OpcodeElse,
		/* */ internalwasm.OpcodeI32Const, 0,
		internalwasm.OpcodeEnd,
		internalwasm.OpcodeEnd,
	}
	results, err := compileAndCall(t, ft, nil, body, 1)
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, results)

	results, err = compileAndCall(t, ft, nil, body, 0)
	require.NoError(t, err)
	require.Equal(t, []uint64{0}, results)
}

func TestEngine_callBetweenFunctions(t *testing.T) {
	doubleType := &internalwasm.FunctionType{Params: []internalwasm.ValueType{internalwasm.ValueTypeI32}, Results: []internalwasm.ValueType{internalwasm.ValueTypeI32}}
	callerType := &internalwasm.FunctionType{Params: []internalwasm.ValueType{internalwasm.ValueTypeI32}, Results: []internalwasm.ValueType{internalwasm.ValueTypeI32}}

	m := &internalwasm.Module{
		TypeSection:     []*internalwasm.FunctionType{doubleType, callerType},
		FunctionSection: []internalwasm.Index{0, 1},
		CodeSection: []*internalwasm.Code{
			{Body: []byte{internalwasm.OpcodeLocalGet, 0, internalwasm.OpcodeLocalGet, 0, internalwasm.OpcodeI32Add, internalwasm.OpcodeEnd}},
			{Body: []byte{internalwasm.OpcodeLocalGet, 0, internalwasm.OpcodeCall, 0, internalwasm.OpcodeEnd}},
		},
	}
	e := NewEngine()
	compiled, err := e.CompileModule(m)
	require.NoError(t, err)

	double := &internalwasm.FunctionInstance{Type: doubleType, Index: 0}
	caller := &internalwasm.FunctionInstance{Type: callerType, Index: 1}
	functions := []*internalwasm.FunctionInstance{double, caller}
	me, err := compiled.NewModuleEngine(functions)
	require.NoError(t, err)
	mi := &internalwasm.ModuleInstance{Types: m.TypeSection, Functions: functions, ModuleEngine: me}
	double.Module, caller.Module = mi, mi

	results, err := me.Call(testCtx, internalwasm.NewCallContext(nil, mi), caller, 21)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, results)
}
