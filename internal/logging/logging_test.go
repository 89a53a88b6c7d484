package logging

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinywasm/tinywasm/api"
)

type testDef struct{ debugName string }

func (d *testDef) ModuleName() string                          { return "" }
func (d *testDef) Index() uint32                                { return 0 }
func (d *testDef) Name() string                                 { return "" }
func (d *testDef) DebugName() string                            { return d.debugName }
func (d *testDef) Import() (string, string, bool)               { return "", "", false }
func (d *testDef) ExportNames() []string                        { return nil }
func (d *testDef) ParamTypes() []api.ValueType                  { return []api.ValueType{api.ValueTypeI32} }
func (d *testDef) ResultTypes() []api.ValueType                 { return []api.ValueType{api.ValueTypeI32} }

func TestLogger_LogInvoke(t *testing.T) {
	var buf strings.Builder
	l := New(&buf)
	def := &testDef{debugName: "env.add"}

	l.LogInvoke(context.Background(), def, []uint64{2}, []uint64{4})

	require.Equal(t, "==> env.add(2)\n<== (4)\n", buf.String())
}

func TestLogger_LogTrap(t *testing.T) {
	var buf strings.Builder
	l := New(&buf)
	def := &testDef{debugName: "env.div"}

	l.LogTrap(def, errors.New("integer divide by zero"))

	require.Equal(t, "==> env.div trapped: integer divide by zero\n", buf.String())
}

func TestLogger_nilIsNoop(t *testing.T) {
	var l *Logger
	require.NotPanics(t, func() {
		l.LogInstantiate("env")
	})
}
