package tinywasm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

var testCtx = context.Background()

const addWat = `(module $math
	(func $add (param i32 i32) (result i32)
		local.get 0
		local.get 1
		i32.add
	)
	(export "add" (func $add))
)`

func TestRuntime_CompileAndInstantiate(t *testing.T) {
	r := NewRuntime()
	defer r.Close(testCtx)

	compiled, err := r.CompileModule(testCtx, []byte(addWat))
	require.NoError(t, err)

	mod, err := r.InstantiateModule(testCtx, compiled, NewModuleConfig().WithName("math"))
	require.NoError(t, err)

	require.Equal(t, mod, r.Module("math"))

	add := mod.ExportedFunction("add")
	require.NotNil(t, add)

	results, err := add.Call(testCtx, 1, 2)
	require.NoError(t, err)
	require.Equal(t, []uint64{3}, results)
}

func TestRuntime_CompileModule_decodesBinaryOrText(t *testing.T) {
	r := NewRuntime()
	defer r.Close(testCtx)

	_, err := r.CompileModule(testCtx, []byte(addWat))
	require.NoError(t, err)

	_, err = r.CompileModule(testCtx, []byte("not a module"))
	require.Error(t, err)
}

func TestRuntime_Module_unknownReturnsNil(t *testing.T) {
	r := NewRuntime()
	defer r.Close(testCtx)

	require.Nil(t, r.Module("nope"))
}

func TestRuntime_InstantiateModule_trapSurfacesAsError(t *testing.T) {
	r := NewRuntime()
	defer r.Close(testCtx)

	compiled, err := r.CompileModule(testCtx, []byte(`(module
		(func $unreachable unreachable)
		(export "unreachable" (func $unreachable))
	)`))
	require.NoError(t, err)

	mod, err := r.InstantiateModule(testCtx, compiled, NewModuleConfig())
	require.NoError(t, err)

	_, err = mod.ExportedFunction("unreachable").Call(testCtx)
	require.Error(t, err)
}
