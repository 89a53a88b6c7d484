package tinywasm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinywasm/tinywasm/api"
)

func TestHostModuleBuilder_WithFunc(t *testing.T) {
	r := NewRuntime()
	defer r.Close(testCtx)

	env, err := r.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(func(x, y uint32) uint32 { return x + y }).
		Export("add").
		Instantiate(testCtx)
	require.NoError(t, err)
	require.Equal(t, "env", env.Name())

	results, err := env.ExportedFunction("add").Call(testCtx, 2, 3)
	require.NoError(t, err)
	require.Equal(t, []uint64{5}, results)
}

func TestHostModuleBuilder_WithFunc_errorResultTraps(t *testing.T) {
	r := NewRuntime()
	defer r.Close(testCtx)

	sentinel := errors.New("boom")
	env, err := r.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(func() error { return sentinel }).
		Export("fail").
		Instantiate(testCtx)
	require.NoError(t, err)

	_, err = env.ExportedFunction("fail").Call(testCtx)
	require.ErrorIs(t, err, sentinel)
}

func TestHostModuleBuilder_WithFunc_moduleParam(t *testing.T) {
	r := NewRuntime()
	defer r.Close(testCtx)

	var sawName string
	env, err := r.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(func(m api.Module) { sawName = m.Name() }).
		Export("whoami").
		Instantiate(testCtx)
	require.NoError(t, err)

	_, err = env.ExportedFunction("whoami").Call(testCtx)
	require.NoError(t, err)
	require.Equal(t, "env", sawName)
}

func TestHostModuleBuilder_Compile_deferredErrSurfacesOnce(t *testing.T) {
	r := NewRuntime()
	defer r.Close(testCtx)

	_, err := r.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc("not a func").
		Export("bad").
		Compile(testCtx)
	require.Error(t, err)
}

func TestHostModuleBuilder_ExportMemory(t *testing.T) {
	r := NewRuntime()
	defer r.Close(testCtx)

	env, err := r.NewHostModuleBuilder("env").
		ExportMemory("memory", 1).
		Instantiate(testCtx)
	require.NoError(t, err)
	require.NotNil(t, env.Memory())
}

func TestRuntime_InstantiateModule_importedMemoryLimitsMustBeSubsumed(t *testing.T) {
	r := NewRuntime()
	defer r.Close(testCtx)

	_, err := r.NewHostModuleBuilder("env").
		ExportMemory("memory", 1).
		Instantiate(testCtx)
	require.NoError(t, err)

	compiled, err := r.CompileModule(testCtx, []byte(`(module
		(import "env" "memory" (memory 10))
	)`))
	require.NoError(t, err)

	_, err = r.InstantiateModule(testCtx, compiled, NewModuleConfig())
	require.Error(t, err)
}

func TestRuntime_InstantiateModule_importsHostFunction(t *testing.T) {
	r := NewRuntime()
	defer r.Close(testCtx)

	_, err := r.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(func(x uint32) uint32 { return x * 2 }).
		Export("double").
		Instantiate(testCtx)
	require.NoError(t, err)

	compiled, err := r.CompileModule(testCtx, []byte(`(module
		(import "env" "double" (func $double (param i32) (result i32)))
		(func $run (param i32) (result i32) local.get 0 call $double)
		(export "run" (func $run))
	)`))
	require.NoError(t, err)

	mod, err := r.InstantiateModule(testCtx, compiled, NewModuleConfig())
	require.NoError(t, err)

	results, err := mod.ExportedFunction("run").Call(testCtx, 21)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, results)
}
