package tinywasm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	internalwasm "github.com/tinywasm/tinywasm/internal/wasm"
)

func TestRuntimeConfig_WithMemoryMaxPages(t *testing.T) {
	base := NewRuntimeConfig()
	refined := base.WithMemoryMaxPages(1)

	require.Equal(t, uint32(MemoryLimitPages), base.memoryMaxPages)
	require.Equal(t, uint32(1), refined.memoryMaxPages)
}

func TestRuntimeConfig_WithFeatureMultiValue(t *testing.T) {
	base := NewRuntimeConfig()
	require.False(t, base.enabledFeatures.Get(internalwasm.FeatureMultiValue))

	refined := base.WithFeatureMultiValue(true)
	require.True(t, refined.enabledFeatures.Get(internalwasm.FeatureMultiValue))
	require.False(t, base.enabledFeatures.Get(internalwasm.FeatureMultiValue))
}

func TestRuntimeConfig_WithFeatureSignExtensionOps(t *testing.T) {
	base := NewRuntimeConfig()
	refined := base.WithFeatureSignExtensionOps(true)
	require.True(t, refined.enabledFeatures.Get(internalwasm.FeatureSignExtensionOps))
	require.False(t, base.enabledFeatures.Get(internalwasm.FeatureSignExtensionOps))
}

func TestRuntimeConfig_WithLogWriter(t *testing.T) {
	var buf bytes.Buffer
	rc := NewRuntimeConfig().WithLogWriter(&buf)

	r := NewRuntimeWithConfig(rc)
	defer r.Close(testCtx)

	compiled, err := r.CompileModule(testCtx, []byte(addWat))
	require.NoError(t, err)

	mod, err := r.InstantiateModule(testCtx, compiled, NewModuleConfig().WithName("math"))
	require.NoError(t, err)

	_, err = mod.ExportedFunction("add").Call(testCtx, 1, 2)
	require.NoError(t, err)

	require.Contains(t, buf.String(), "math")
	require.Contains(t, buf.String(), "add")
}

func TestModuleConfig_WithName(t *testing.T) {
	r := NewRuntime()
	defer r.Close(testCtx)

	compiled, err := r.CompileModule(testCtx, []byte(addWat))
	require.NoError(t, err)

	mod, err := r.InstantiateModule(testCtx, compiled, NewModuleConfig().WithName("renamed"))
	require.NoError(t, err)

	require.Equal(t, "renamed", mod.Name())
	require.Nil(t, r.Module("math"))
	require.NotNil(t, r.Module("renamed"))
}
