// Package logging is a small, io.Writer-based call/trap logger, independent of any third-party
// logging library: instantiation, invocation, and trap events are the only things worth observing
// at this layer, and a plain Writer is enough to do it.
package logging

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tinywasm/tinywasm/api"
)

// Writer is the minimal io subset the logger writes through.
type Writer interface {
	WriteString(s string) (int, error)
}

// Logger writes one line per logged event to an underlying Writer. A nil *Logger or a Logger with
// a nil Writer silently discards every event, so callers never need to guard calls on whether
// logging is enabled.
type Logger struct {
	w Writer
}

// New returns a Logger writing to w.
func New(w Writer) *Logger { return &Logger{w: w} }

// LogInstantiate records a successful module instantiation.
func (l *Logger) LogInstantiate(moduleName string) {
	if l == nil || l.w == nil {
		return
	}
	l.w.WriteString("==> instantiate " + moduleName + "\n") //nolint
}

// LogInvoke records a function invocation along with its parameters and results.
func (l *Logger) LogInvoke(_ context.Context, def api.FunctionDefinition, params, results []uint64) {
	if l == nil || l.w == nil {
		return
	}
	l.w.WriteString("==> " + def.DebugName() + "(" + formatValues(def.ParamTypes(), params) + ")\n") //nolint
	l.w.WriteString("<== (" + formatValues(def.ResultTypes(), results) + ")\n")                       //nolint
}

// LogTrap records a trap raised by the call LogInvoke would otherwise have logged the result of.
func (l *Logger) LogTrap(def api.FunctionDefinition, err error) {
	if l == nil || l.w == nil {
		return
	}
	l.w.WriteString("==> " + def.DebugName() + " trapped: " + err.Error() + "\n") //nolint
}

func formatValues(types []api.ValueType, vals []uint64) string {
	s := ""
	for i, t := range types {
		if i > 0 {
			s += ","
		}
		s += formatValue(t, vals[i])
	}
	return s
}

func formatValue(t api.ValueType, v uint64) string {
	switch t {
	case api.ValueTypeI32:
		return strconv.FormatInt(int64(int32(v)), 10)
	case api.ValueTypeI64:
		return strconv.FormatInt(int64(v), 10)
	case api.ValueTypeF32:
		return strconv.FormatFloat(float64(api.DecodeF32(v)), 'g', -1, 32)
	case api.ValueTypeF64:
		return strconv.FormatFloat(api.DecodeF64(v), 'g', -1, 64)
	}
	return fmt.Sprintf("%#x", v)
}
