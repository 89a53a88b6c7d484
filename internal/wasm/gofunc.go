package internalwasm

import (
	"context"
	"fmt"
	"reflect"

	"github.com/tinywasm/tinywasm/api"
)

// FunctionKind identifies the calling convention of a Go-defined host function, determined by its
// first parameter (if any): nothing extra, a context.Context, or the calling api.Module.
type FunctionKind byte

const (
	FunctionKindGoNoContext FunctionKind = iota
	FunctionKindGoContext
	FunctionKindGoModule
)

var (
	moduleType  = reflect.TypeOf((*api.Module)(nil)).Elem()
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()

	reflectUint32  = reflect.TypeOf(uint32(0))
	reflectUint64  = reflect.TypeOf(uint64(0))
	reflectInt32   = reflect.TypeOf(int32(0))
	reflectInt64   = reflect.TypeOf(int64(0))
	reflectFloat32 = reflect.TypeOf(float32(0))
	reflectFloat64 = reflect.TypeOf(float64(0))
)

// getFunctionType inspects a Go func via reflection, deriving the FunctionKind implied by its
// leading parameter, its WebAssembly FunctionType, and whether it has a trailing error result
// (permitted only when allowErrorResult is set, as used for host functions but not elsewhere).
func getFunctionType(rVal *reflect.Value, allowErrorResult bool) (FunctionKind, *FunctionType, bool, error) {
	rType := rVal.Type()
	if rType.Kind() != reflect.Func {
		return 0, nil, false, fmt.Errorf("kind != func: %s", rType.Kind())
	}

	kind := FunctionKindGoNoContext
	pStart := 0
	if rType.NumIn() > 0 {
		switch rType.In(0) {
		case contextType:
			kind, pStart = FunctionKindGoContext, 1
		case moduleType:
			kind, pStart = FunctionKindGoModule, 1
		}
	}

	params := []ValueType{}
	for i := pStart; i < rType.NumIn(); i++ {
		p := rType.In(i)
		switch p {
		case contextType:
			return 0, nil, false, fmt.Errorf("param[%d] is a context.Context, which may be defined only once as param[0]", i)
		case moduleType:
			return 0, nil, false, fmt.Errorf("param[%d] is a api.Module, which may be defined only once as param[0]", i)
		}
		vt, ok := goTypeToValueType(p)
		if !ok {
			return 0, nil, false, fmt.Errorf("param[%d] is unsupported: %s", i, p)
		}
		params = append(params, vt)
	}

	results := []ValueType{}
	hasErrorResult := false
	for i := 0; i < rType.NumOut(); i++ {
		r := rType.Out(i)
		if r == errorType {
			if !allowErrorResult {
				return 0, nil, false, fmt.Errorf("result[%d] is an error, which is unsupported", i)
			}
			hasErrorResult = true
			continue
		}
		vt, ok := goTypeToValueType(r)
		if !ok {
			return 0, nil, false, fmt.Errorf("result[%d] is unsupported: %s", i, r)
		}
		results = append(results, vt)
	}
	if len(results) > 1 {
		return 0, nil, false, fmt.Errorf("multiple results are unsupported")
	}

	return kind, &FunctionType{Params: params, Results: results}, hasErrorResult, nil
}

// goTypeToValueType maps a Go reflect.Type to the ValueType it encodes as. Named types (e.g.
// `type errno uint32`) are supported via their underlying Kind.
func goTypeToValueType(t reflect.Type) (ValueType, bool) {
	switch t.Kind() {
	case reflect.Uint32, reflect.Int32:
		return ValueTypeI32, true
	case reflect.Uint64, reflect.Int64:
		return ValueTypeI64, true
	case reflect.Float32:
		return ValueTypeF32, true
	case reflect.Float64:
		return ValueTypeF64, true
	}
	return 0, false
}

// GoReflectFunc adapts an arbitrary Go func, validated and described by getFunctionType, into an
// api.GoModuleFunction. This is what HostModuleBuilder.WithFunc compiles down to.
type GoReflectFunc struct {
	fn             reflect.Value
	kind           FunctionKind
	paramTypes     []ValueType
	resultTypes    []ValueType
	hasErrorResult bool
}

// NewGoReflectFunc validates fn and returns a GoReflectFunc wrapping it, along with its derived
// FunctionType, or an error describing why fn cannot be used as a host function.
func NewGoReflectFunc(fn interface{}) (*GoReflectFunc, *FunctionType, error) {
	rVal := reflect.ValueOf(fn)
	kind, ft, hasErrorResult, err := getFunctionType(&rVal, true)
	if err != nil {
		return nil, nil, err
	}
	return &GoReflectFunc{
		fn: rVal, kind: kind,
		paramTypes: ft.Params, resultTypes: ft.Results, hasErrorResult: hasErrorResult,
	}, ft, nil
}

// Call implements api.GoModuleFunction.
func (g *GoReflectFunc) Call(ctx context.Context, mod api.Module, stack []uint64) {
	in := make([]reflect.Value, 0, len(g.paramTypes)+1)
	switch g.kind {
	case FunctionKindGoContext:
		in = append(in, reflect.ValueOf(ctx))
	case FunctionKindGoModule:
		in = append(in, reflect.ValueOf(mod))
	}
	for i, vt := range g.paramTypes {
		in = append(in, stackToGoValue(stack[i], vt, g.fn.Type().In(len(in))))
	}

	out := g.fn.Call(in)

	if g.hasErrorResult {
		if errVal := out[len(out)-1]; !errVal.IsNil() {
			panic(errVal.Interface().(error))
		}
		out = out[:len(out)-1]
	}
	for i, rv := range out {
		stack[i] = goValueToStack(rv, g.resultTypes[i])
	}
}

func stackToGoValue(v uint64, vt ValueType, paramType reflect.Type) reflect.Value {
	var rv reflect.Value
	switch vt {
	case ValueTypeI32:
		rv = reflect.ValueOf(uint32(v))
	case ValueTypeI64:
		rv = reflect.ValueOf(v)
	case ValueTypeF32:
		rv = reflect.ValueOf(api.DecodeF32(v))
	case ValueTypeF64:
		rv = reflect.ValueOf(api.DecodeF64(v))
	}
	return rv.Convert(paramType)
}

func goValueToStack(rv reflect.Value, vt ValueType) uint64 {
	switch vt {
	case ValueTypeI32:
		if isSignedKind(rv.Kind()) {
			return uint64(uint32(rv.Convert(reflectInt32).Int()))
		}
		return uint64(rv.Convert(reflectUint32).Uint())
	case ValueTypeI64:
		if isSignedKind(rv.Kind()) {
			return uint64(rv.Convert(reflectInt64).Int())
		}
		return rv.Convert(reflectUint64).Uint()
	case ValueTypeF32:
		return api.EncodeF32(float32(rv.Convert(reflectFloat32).Float()))
	case ValueTypeF64:
		return api.EncodeF64(rv.Convert(reflectFloat64).Float())
	}
	return 0
}

func isSignedKind(k reflect.Kind) bool {
	return k == reflect.Int32 || k == reflect.Int64
}
