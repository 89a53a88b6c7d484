package main

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/tinywasm/tinywasm"
	"github.com/tinywasm/tinywasm/api"
)

// runner drives a single .wast-style script against a tinywasm.Runtime, tracking every module
// instantiated so far by both its $id (if any) and the external name it was last registered under.
type runner struct {
	ctx     context.Context
	log     *zap.Logger
	rt      tinywasm.Runtime
	modules map[string]api.Module // keyed by both "$id" and external register() name
	current string                 // key of the most recently instantiated module

	total, passed, skipped int
}

func newRunner(log *zap.Logger) *runner {
	return &runner{
		ctx:     context.Background(),
		log:     log,
		rt:      tinywasm.NewRuntime(),
		modules: map[string]api.Module{},
	}
}

// run parses and executes every top-level form of src in order.
func (rn *runner) run(src string) error {
	forms, err := splitTopLevelForms(src)
	if err != nil {
		return fmt.Errorf("splitting script: %w", err)
	}
	registerName := rn.prescanRegistrations(forms)

	for i, raw := range forms {
		head, id := headAndID(raw)
		switch head {
		case "module":
			name := registerName[i]
			if name == "" {
				name = id
			}
			if name == "" {
				name = fmt.Sprintf("module%d", i)
			}
			if err := rn.doModule(raw, id, name); err != nil {
				rn.log.Error("module instantiation failed", zap.Int("form", i), zap.Error(err))
				return err
			}
		case "register":
			// already folded into the instantiation name above; nothing further to do.
		case "invoke":
			rn.total++
			it, err := parseItem(raw)
			if err != nil {
				return err
			}
			if _, _, err := rn.doInvoke(it); err != nil {
				rn.log.Error("invoke failed", zap.Int("form", i), zap.Error(err))
			} else {
				rn.passed++
			}
		case "get":
			rn.total++
			it, err := parseItem(raw)
			if err != nil {
				return err
			}
			if _, err := rn.doGet(it); err != nil {
				rn.log.Error("get failed", zap.Int("form", i), zap.Error(err))
			} else {
				rn.passed++
			}
		case "assert_return":
			rn.total++
			rn.assertReturn(raw, i)
		case "assert_trap":
			rn.total++
			rn.assertTrap(raw, i)
		case "assert_malformed":
			rn.total++
			rn.assertMalformed(raw, i)
		case "assert_invalid":
			rn.total++
			rn.assertInvalid(raw, i)
		case "assert_unlinkable":
			rn.total++
			rn.skipped++
			rn.log.Warn("assert_unlinkable is not implemented, skipping", zap.Int("form", i))
		default:
			rn.log.Warn("unrecognized top-level form, skipping", zap.String("head", head), zap.Int("form", i))
		}
	}

	rn.log.Info("script complete",
		zap.Int("total", rn.total), zap.Int("passed", rn.passed),
		zap.Int("skipped", rn.skipped), zap.Int("failed", rn.total-rn.passed-rn.skipped))
	if rn.passed+rn.skipped != rn.total {
		return fmt.Errorf("%d/%d assertions failed", rn.total-rn.passed-rn.skipped, rn.total)
	}
	return nil
}

// prescanRegistrations resolves, for every "module" form index, the external name it should be
// instantiated under: the name given by a later (register "name" $id?) form targeting it, so
// subsequent modules that import "name" resolve against the Store correctly. Without this, a
// module would have to be instantiated first and renamed after, which tinywasm's Runtime does not
// support; folding register into the instantiation name sidesteps that entirely.
func (rn *runner) prescanRegistrations(forms []string) map[int]string {
	names := map[int]string{}
	lastModuleForm := -1
	formIDToForm := map[string]int{}

	for i, raw := range forms {
		head, id := headAndID(raw)
		if head == "module" {
			lastModuleForm = i
			if id != "" {
				formIDToForm[id] = i
			}
			continue
		}
		if head != "register" {
			continue
		}
		it, err := parseItem(raw)
		if err != nil {
			continue
		}
		var name, targetID string
		for _, a := range it.list[1:] {
			if a.isList {
				continue
			}
			if a.quoted {
				name = a.atom
			} else if strings.HasPrefix(a.atom, "$") {
				targetID = a.atom
			}
		}
		target := lastModuleForm
		if targetID != "" {
			if f, ok := formIDToForm[targetID]; ok {
				target = f
			}
		}
		if target >= 0 && name != "" {
			names[target] = name
		}
	}
	return names
}

func headAndID(raw string) (head, id string) {
	it, err := parseItem(raw)
	if err != nil || !it.isList || len(it.list) == 0 {
		return "", ""
	}
	head = it.head()
	if head == "module" && len(it.list) > 1 && !it.list[1].isList && strings.HasPrefix(it.list[1].atom, "$") {
		id = it.list[1].atom
	}
	return head, id
}

func (rn *runner) doModule(raw, id, name string) error {
	// The harness tracks a module's optional "$id" itself, so strip it before compiling.
	if id != "" {
		raw = strings.Replace(raw, "module "+id, "module", 1)
	}
	compiled, err := rn.rt.CompileModule(rn.ctx, []byte(raw))
	if err != nil {
		return err
	}
	mod, err := rn.rt.InstantiateModule(rn.ctx, compiled, tinywasm.NewModuleConfig().WithName(name))
	if err != nil {
		return err
	}
	rn.modules[name] = mod
	if id != "" {
		rn.modules[id] = mod
	}
	rn.current = name
	rn.log.Info("instantiated module", zap.String("name", name))
	return nil
}

func (rn *runner) resolveModule(id string) (api.Module, error) {
	if id != "" {
		if m, ok := rn.modules[id]; ok {
			return m, nil
		}
		return nil, fmt.Errorf("no module registered as %q", id)
	}
	if m, ok := rn.modules[rn.current]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("no module instantiated yet")
}

// doInvoke evaluates an "(invoke $id? \"name\" (expr)*)" action, returning its results.
func (rn *runner) doInvoke(it *item) ([]uint64, api.FunctionDefinition, error) {
	args := it.list[1:]
	var id string
	if len(args) > 0 && !args[0].isList && strings.HasPrefix(args[0].atom, "$") {
		id, args = args[0].atom, args[1:]
	}
	if len(args) == 0 || args[0].isList || !args[0].quoted {
		return nil, nil, fmt.Errorf("invoke: expected function name")
	}
	fname := args[0].atom
	args = args[1:]

	mod, err := rn.resolveModule(id)
	if err != nil {
		return nil, nil, err
	}
	fn := mod.ExportedFunction(fname)
	if fn == nil {
		return nil, nil, fmt.Errorf("no exported function %q", fname)
	}
	params := make([]uint64, 0, len(args))
	for _, a := range args {
		v, _, err := evalConstExpr(a)
		if err != nil {
			return nil, nil, err
		}
		params = append(params, v)
	}
	results, err := fn.Call(rn.ctx, params...)
	if err != nil {
		return nil, fn.Definition(), err
	}
	return results, fn.Definition(), nil
}

// doGet evaluates a "(get $id? \"name\")" action, returning the named global's value.
func (rn *runner) doGet(it *item) (uint64, error) {
	args := it.list[1:]
	var id string
	if len(args) > 0 && !args[0].isList && strings.HasPrefix(args[0].atom, "$") {
		id, args = args[0].atom, args[1:]
	}
	if len(args) == 0 || args[0].isList || !args[0].quoted {
		return 0, fmt.Errorf("get: expected global name")
	}
	mod, err := rn.resolveModule(id)
	if err != nil {
		return 0, err
	}
	g := mod.ExportedGlobal(args[0].atom)
	if g == nil {
		return 0, fmt.Errorf("no exported global %q", args[0].atom)
	}
	return g.Get(rn.ctx), nil
}

func (rn *runner) assertReturn(raw string, formIdx int) {
	it, err := parseItem(raw)
	if err != nil {
		rn.log.Error("assert_return: parse error", zap.Error(err))
		return
	}
	action := it.list[1]
	expected := it.list[2:]

	var got []uint64
	if action.head() == "invoke" {
		got, _, err = rn.doInvoke(action)
	} else if action.head() == "get" {
		var v uint64
		v, err = rn.doGet(action)
		got = []uint64{v}
	} else {
		err = fmt.Errorf("assert_return: unsupported action %q", action.head())
	}
	if err != nil {
		rn.log.Error("assert_return failed: action errored", zap.Int("form", formIdx), zap.Error(err))
		return
	}
	want := make([]uint64, len(expected))
	for i, e := range expected {
		want[i], _, err = evalConstExpr(e)
		if err != nil {
			rn.log.Error("assert_return: bad expected value", zap.Error(err))
			return
		}
	}
	if len(got) != len(want) {
		rn.log.Error("assert_return failed: result count mismatch",
			zap.Int("form", formIdx), zap.Int("want", len(want)), zap.Int("got", len(got)))
		return
	}
	for i := range want {
		if got[i] != want[i] {
			rn.log.Error("assert_return failed",
				zap.Int("form", formIdx), zap.Int("index", i),
				zap.Uint64("want", want[i]), zap.Uint64("got", got[i]))
			return
		}
	}
	rn.passed++
	rn.log.Info("assert_return ok", zap.Int("form", formIdx))
}

func (rn *runner) assertTrap(raw string, formIdx int) {
	it, err := parseItem(raw)
	if err != nil {
		rn.log.Error("assert_trap: parse error", zap.Error(err))
		return
	}
	action := it.list[1]
	wantSubstr := ""
	if len(it.list) > 2 && it.list[2].quoted {
		wantSubstr = it.list[2].atom
	}
	if action.head() == "invoke" {
		_, _, err = rn.doInvoke(action)
	} else {
		err = fmt.Errorf("assert_trap: unsupported action %q", action.head())
	}
	if err == nil {
		rn.log.Error("assert_trap failed: action did not trap", zap.Int("form", formIdx))
		return
	}
	if wantSubstr != "" && !strings.Contains(err.Error(), wantSubstr) {
		rn.log.Warn("assert_trap: trapped, but message did not match",
			zap.Int("form", formIdx), zap.String("want", wantSubstr), zap.String("got", err.Error()))
	}
	rn.passed++
	rn.log.Info("assert_trap ok", zap.Int("form", formIdx), zap.Error(err))
}

func (rn *runner) assertMalformed(raw string, formIdx int) {
	it, err := parseItem(raw)
	if err != nil || len(it.list) < 2 || it.list[1].head() != "module" {
		rn.log.Warn("assert_malformed: only text module forms are supported, skipping", zap.Int("form", formIdx))
		rn.skipped++
		return
	}
	moduleForm := it.list[1]
	if len(moduleForm.list) > 1 && !moduleForm.list[1].isList &&
		(moduleForm.list[1].atom == "binary" || moduleForm.list[1].atom == "quote") {
		rn.log.Warn("assert_malformed: binary/quote module forms are not supported, skipping", zap.Int("form", formIdx))
		rn.skipped++
		return
	}
	// Drop the optional module-level $id field, which the harness tracks itself, so a
	// malformed/invalid assertion is judged on the fixture's actual content alone.
	bodyList := moduleForm.list[1:]
	if len(bodyList) > 0 && !bodyList[0].isList && strings.HasPrefix(bodyList[0].atom, "$") {
		bodyList = bodyList[1:]
	}
	src := renderModule(&item{isList: true, list: append([]*item{moduleForm.list[0]}, bodyList...)})
	_, cerr := rn.rt.CompileModule(rn.ctx, []byte(src))
	if cerr == nil {
		rn.log.Error("assert_malformed failed: module compiled successfully", zap.Int("form", formIdx))
		return
	}
	rn.passed++
	rn.log.Info("assert_malformed ok", zap.Int("form", formIdx), zap.Error(cerr))
}

func (rn *runner) assertInvalid(raw string, formIdx int) {
	rn.assertMalformed(raw, formIdx) // invalid and malformed both reduce to "fails to compile" here
}

// renderModule re-serializes a parsed module item back into text-format source. assert_malformed
// and assert_invalid fixtures are parsed generically (to tell them apart from binary/quote
// variants) so their module body must be rebuilt into source text before compiling.
func renderModule(it *item) string {
	var sb strings.Builder
	renderItem(&sb, it)
	return sb.String()
}

func renderItem(sb *strings.Builder, it *item) {
	if !it.isList {
		if it.quoted {
			sb.WriteByte('"')
			sb.WriteString(it.atom)
			sb.WriteByte('"')
		} else {
			sb.WriteString(it.atom)
		}
		return
	}
	sb.WriteByte('(')
	for i, c := range it.list {
		if i > 0 {
			sb.WriteByte(' ')
		}
		renderItem(sb, c)
	}
	sb.WriteByte(')')
}

// evalConstExpr evaluates a "(i32.const N)"-shaped literal action into its uint64 encoding.
func evalConstExpr(it *item) (uint64, api.ValueType, error) {
	if !it.isList || len(it.list) != 2 || it.list[1].isList {
		return 0, 0, fmt.Errorf("expected a single *.const literal, got %v", it)
	}
	op := it.list[0].atom
	lit := it.list[1].atom
	switch op {
	case "i32.const":
		n, err := strconv.ParseInt(lit, 0, 64)
		if err != nil {
			u, uerr := strconv.ParseUint(lit, 0, 32)
			if uerr != nil {
				return 0, 0, fmt.Errorf("invalid i32 literal %q: %w", lit, err)
			}
			return api.EncodeI32(int32(u)), api.ValueTypeI32, nil
		}
		return api.EncodeI32(int32(n)), api.ValueTypeI32, nil
	case "i64.const":
		n, err := strconv.ParseInt(lit, 0, 64)
		if err != nil {
			u, uerr := strconv.ParseUint(lit, 0, 64)
			if uerr != nil {
				return 0, 0, fmt.Errorf("invalid i64 literal %q: %w", lit, err)
			}
			return api.EncodeI64(int64(u)), api.ValueTypeI64, nil
		}
		return api.EncodeI64(n), api.ValueTypeI64, nil
	case "f32.const":
		f, err := parseFloatLiteral(lit, 32)
		if err != nil {
			return 0, 0, err
		}
		return api.EncodeF32(float32(f)), api.ValueTypeF32, nil
	case "f64.const":
		f, err := parseFloatLiteral(lit, 64)
		if err != nil {
			return 0, 0, err
		}
		return api.EncodeF64(f), api.ValueTypeF64, nil
	default:
		return 0, 0, fmt.Errorf("unsupported literal operator %q", op)
	}
}

func parseFloatLiteral(s string, bits int) (float64, error) {
	switch s {
	case "nan", "+nan":
		return math.NaN(), nil
	case "-nan":
		return math.Copysign(math.NaN(), -1), nil
	case "inf", "+inf":
		return math.Inf(1), nil
	case "-inf":
		return math.Inf(-1), nil
	}
	return strconv.ParseFloat(s, bits)
}
