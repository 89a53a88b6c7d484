// Package interpreter implements internalwasm.Engine by walking each function's validated
// instruction bytes directly: the binary format is already a stack machine encoding, so
// CompileModule's job is limited to parsing each body into a nested op tree once up front, so
// repeated calls don't re-scan raw bytes on every invocation.
package interpreter

import (
	"context"
	"fmt"
	"math"

	internalwasm "github.com/tinywasm/tinywasm/internal/wasm"
	"github.com/tinywasm/tinywasm/internal/wasmruntime"
)

// callStackCeiling bounds Wasm-level function-call recursion depth, converted to
// ErrRuntimeCallStackOverflow rather than letting a runaway recursive program exhaust the host
// goroutine's own stack.
const callStackCeiling = 10000

// NewEngine returns an interpreter-based internalwasm.Engine.
func NewEngine() internalwasm.Engine { return &engine{} }

type engine struct{}

func (e *engine) CompileModule(module *internalwasm.Module) (internalwasm.CompiledModule, error) {
	compiled := make([]*compiledFunction, len(module.CodeSection))
	for i, code := range module.CodeSection {
		typeIdx := module.FunctionSection[i]
		ft := module.TypeSection[typeIdx]
		r := &bodyReader{b: code.Body}
		body, term, err := decodeOps(r, module.TypeSection)
		if err != nil {
			return nil, fmt.Errorf("compiling function[%d]: %w", i, err)
		}
		if term != internalwasm.OpcodeEnd {
			return nil, fmt.Errorf("compiling function[%d]: body not terminated by end", i)
		}
		compiled[i] = &compiledFunction{typ: ft, numLocals: len(code.LocalTypes), body: &block{ops: body}}
	}
	return &compiledModule{functions: compiled, types: module.TypeSection}, nil
}

// compiledFunction is the parsed form of one module-defined function body.
type compiledFunction struct {
	typ       *internalwasm.FunctionType
	numLocals int // count of declared (non-parameter) locals only
	body      *block
}

type compiledModule struct {
	functions []*compiledFunction
	types     []*internalwasm.FunctionType
}

func (c *compiledModule) NewModuleEngine(functions []*internalwasm.FunctionInstance) (internalwasm.ModuleEngine, error) {
	return &moduleEngine{
		functions:         functions,
		compiled:          c.functions,
		types:             c.types,
		importedFuncCount: len(functions) - len(c.functions),
	}, nil
}

// moduleEngine executes the functions of one module instantiation. functions is the combined
// (imports-first) function index space; compiled holds this module's own bodies only, so a
// FunctionInstance's compiled counterpart sits at compiled[f.Index-importedFuncCount].
type moduleEngine struct {
	functions         []*internalwasm.FunctionInstance
	compiled          []*compiledFunction
	types             []*internalwasm.FunctionType
	importedFuncCount int
}

func (me *moduleEngine) Call(ctx context.Context, m *internalwasm.CallContext, f *internalwasm.FunctionInstance, params ...uint64) (results []uint64, err error) {
	defer func() {
		if r := recover(); r != nil {
			if re, ok := r.(error); ok {
				err = re
				return
			}
			panic(r)
		}
	}()
	return me.callFunction(ctx, m, f, params, 0), nil
}

// callFunction executes f (Go host function or Wasm-defined) and returns its results, or panics
// with a wasmruntime sentinel error on trap. depth tracks call nesting for the stack-overflow
// guard independently of Go's own call stack, since nested blocks recurse natively in Go but depth
// only increments on a Wasm-level function call.
func (me *moduleEngine) callFunction(ctx context.Context, m *internalwasm.CallContext, f *internalwasm.FunctionInstance, params []uint64, depth int) []uint64 {
	if depth >= callStackCeiling {
		panic(wasmruntime.ErrRuntimeCallStackOverflow)
	}
	if f.GoFunc != nil {
		stack := make([]uint64, len(params))
		copy(stack, params)
		results := len(f.Type.Results)
		if results > len(stack) {
			stack = append(stack, make([]uint64, results-len(stack))...)
		}
		f.GoFunc.Call(ctx, m, stack)
		return append([]uint64{}, stack[:results]...)
	}

	fme := f.Module.ModuleEngine.(*moduleEngine)
	cf := fme.compiled[int(f.Index)-fme.importedFuncCount]

	locals := make([]uint64, len(cf.typ.Params)+cf.numLocals)
	copy(locals, params)

	fr := &frame{ctx: ctx, m: m, me: fme, mi: f.Module, locals: locals, depth: depth}
	c := fr.execBlock(cf.body)
	if c.kind == ctrlBranch {
		panic(fmt.Errorf("unresolved branch of depth %d escaped function body", c.depth))
	}
	n := len(cf.typ.Results)
	return append([]uint64{}, fr.stack[len(fr.stack)-n:]...)
}

// frame holds the operand stack and locals for one in-flight Wasm function activation.
type frame struct {
	ctx    context.Context
	m      *internalwasm.CallContext
	me     *moduleEngine
	mi     *internalwasm.ModuleInstance
	locals []uint64
	stack  []uint64
	depth  int
}

func (fr *frame) push(v uint64)     { fr.stack = append(fr.stack, v) }
func (fr *frame) pushI32(v int32)   { fr.push(uint64(uint32(v))) }
func (fr *frame) pushF32(v float32) { fr.push(uint64(math.Float32bits(v))) }
func (fr *frame) pushF64(v float64) { fr.push(math.Float64bits(v)) }

func (fr *frame) pop() uint64 {
	v := fr.stack[len(fr.stack)-1]
	fr.stack = fr.stack[:len(fr.stack)-1]
	return v
}
func (fr *frame) popI32() int32   { return int32(uint32(fr.pop())) }
func (fr *frame) popU32() uint32  { return uint32(fr.pop()) }
func (fr *frame) popI64() int64   { return int64(fr.pop()) }
func (fr *frame) popU64() uint64  { return fr.pop() }
func (fr *frame) popF32() float32 { return math.Float32frombits(uint32(fr.pop())) }
func (fr *frame) popF64() float64 { return math.Float64frombits(fr.pop()) }

// ctrlKind classifies how execBlock/execOp completed, propagating non-local control transfers
// (br/br_if/br_table/return) up through enclosing block recursion without using Go panics.
type ctrlKind int

const (
	ctrlNormal ctrlKind = iota // ran off the end of the instruction list normally
	ctrlBranch                 // a branch is still propagating upward; see depth
	ctrlReturn                 // a `return` is propagating all the way out of the function
)

type ctrl struct {
	kind  ctrlKind
	depth int // remaining enclosing labels to unwind through, for ctrlBranch
}

// execBlock runs ops in sequence, stopping early on any non-normal control signal.
func (fr *frame) execBlock(b *block) ctrl {
	for _, o := range b.ops {
		c := fr.execOp(o)
		if c.kind != ctrlNormal {
			return c
		}
	}
	return ctrl{kind: ctrlNormal}
}

// runLabel executes a block/loop/if body, absorbing a branch targeting this exact label (depth 0):
// a loop label restarts the loop from its first instruction; any other label simply completes,
// falling through to whatever follows the construct. Branches/returns targeting outer labels keep
// propagating with depth decremented by one.
//
// arity is this label's branch arity (the value a `br` to it carries: 0 for a loop, since
// branching re-enters the loop rather than exiting with results; the block type's result count
// for block/if). On a depth-0 branch, the operand stack is truncated back to its height at label
// entry and the top arity values are pushed back, per §4.G's "truncates operand stack to its
// entry height, pushes back the top arity values" — values pushed by the label's body above that
// height but below the branched values must not survive the branch.
func (fr *frame) runLabel(b *block, isLoop bool, arity int) ctrl {
	entryHeight := len(fr.stack)
	for {
		c := fr.execBlock(b)
		if c.kind == ctrlBranch && c.depth == 0 {
			fr.truncateTo(entryHeight, arity)
			if isLoop {
				continue
			}
			return ctrl{kind: ctrlNormal}
		}
		if c.kind == ctrlBranch {
			c.depth--
		}
		return c
	}
}

// truncateTo resets the operand stack to height, preserving only the top arity values (which sat
// above height before the call).
func (fr *frame) truncateTo(height, arity int) {
	vals := append([]uint64{}, fr.stack[len(fr.stack)-arity:]...)
	fr.stack = append(fr.stack[:height], vals...)
}

// block is a parsed, already-validated sequence of instructions between a label-opening
// instruction (function start/block/loop/if) and its matching else/end.
type block struct {
	ops []*op
}

type opKind int

const (
	opPlain opKind = iota // arithmetic/comparison/conversion/const/local/global/memory/simple control
	opBlockK
	opLoopK
	opIfK
	opBrK
	opBrIfK
	opBrTableK
	opReturnK
	opCallK
	opCallIndirectK
)

// op is one decoded instruction. Which fields are meaningful depends on kind; code always holds
// the original Wasm opcode so opPlain instructions dispatch by it directly in execPlain.
type op struct {
	kind    opKind
	code    internalwasm.Opcode
	imm     uint64 // local/global/function/type index, memory offset, or raw const bits
	arity   int    // opBlockK/opLoopK/opIfK only: this label's branch arity: see runLabel
	targets []uint32
	nested  *block // block/loop/if body ("then", for if)
	nested2 *block // if: else body, nil if absent
}

func (fr *frame) execOp(o *op) ctrl {
	switch o.kind {
	case opBlockK:
		return fr.runLabel(o.nested, false, o.arity)
	case opLoopK:
		return fr.runLabel(o.nested, true, o.arity)
	case opIfK:
		cond := fr.popI32()
		if cond != 0 {
			return fr.runLabel(o.nested, false, o.arity)
		} else if o.nested2 != nil {
			return fr.runLabel(o.nested2, false, o.arity)
		}
		return ctrl{kind: ctrlNormal}
	case opBrK:
		return ctrl{kind: ctrlBranch, depth: int(o.imm)}
	case opBrIfK:
		if fr.popI32() != 0 {
			return ctrl{kind: ctrlBranch, depth: int(o.imm)}
		}
		return ctrl{kind: ctrlNormal}
	case opBrTableK:
		i := fr.popU32()
		depth := o.targets[len(o.targets)-1]
		if int(i) < len(o.targets)-1 {
			depth = o.targets[i]
		}
		return ctrl{kind: ctrlBranch, depth: int(depth)}
	case opReturnK:
		return ctrl{kind: ctrlReturn}
	case opCallK:
		fr.execCall(internalwasm.Index(o.imm))
		return ctrl{kind: ctrlNormal}
	case opCallIndirectK:
		fr.execCallIndirect(internalwasm.Index(o.imm))
		return ctrl{kind: ctrlNormal}
	default:
		fr.execPlain(o)
		return ctrl{kind: ctrlNormal}
	}
}

func (fr *frame) execCall(idx internalwasm.Index) {
	target := fr.me.functions[idx]
	fr.invoke(target)
}

func (fr *frame) execCallIndirect(typeIdx internalwasm.Index) {
	tableIdx := fr.popU32()
	table := fr.mi.Tables[0]
	if int(tableIdx) >= len(table.References) {
		panic(wasmruntime.ErrRuntimeInvalidTableAccess)
	}
	ref := table.References[tableIdx]
	if ref < 0 {
		panic(wasmruntime.ErrRuntimeInvalidTableAccess)
	}
	target := fr.me.functions[ref]
	wantType := fr.me.types[typeIdx]
	if target.Type.String() != wantType.String() {
		panic(wasmruntime.ErrRuntimeIndirectCallTypeMismatch)
	}
	fr.invoke(target)
}

func (fr *frame) invoke(target *internalwasm.FunctionInstance) {
	ft := target.Type
	n := len(ft.Params)
	args := append([]uint64{}, fr.stack[len(fr.stack)-n:]...)
	fr.stack = fr.stack[:len(fr.stack)-n]

	me, ok := target.Module.ModuleEngine.(*moduleEngine)
	if !ok {
		me = fr.me
	}
	results := me.callFunction(fr.ctx, fr.m, target, args, fr.depth+1)
	fr.stack = append(fr.stack, results...)
}

// bodyReader is a minimal forward-only cursor over a function body's raw bytes.
type bodyReader struct {
	b   []byte
	pos int
}

func (r *bodyReader) readByte() byte {
	b := r.b[r.pos]
	r.pos++
	return b
}

func (r *bodyReader) readVarUint32() uint32 {
	var result uint32
	var shift uint
	for {
		b := r.readByte()
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return result
		}
		shift += 7
	}
}

func (r *bodyReader) readVarInt32() int32 {
	var result int64
	var shift uint
	var b byte
	for {
		b = r.readByte()
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 32 && b&0x40 != 0 {
		result |= -1 << shift
	}
	return int32(result)
}

func (r *bodyReader) readVarInt64() int64 {
	var result int64
	var shift uint
	var b byte
	for {
		b = r.readByte()
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= -1 << shift
	}
	return result
}

func (r *bodyReader) readBytes(n int) []byte {
	b := r.b[r.pos : r.pos+n]
	r.pos += n
	return b
}

// readBlockType decodes a block/loop/if signature (0x40, a value type byte, or with multi-value a
// signed LEB128 type-section index) and returns its result arity. Validation already guarantees
// the body's stack effect is sound, but the engine still needs the arity itself: it's how many
// values a branch to this label carries (see runLabel).
func (r *bodyReader) readBlockType(types []*internalwasm.FunctionType) int {
	b := r.b[r.pos]
	if b == 0x40 {
		r.pos++
		return 0
	}
	if isValueTypeByte(b) {
		r.pos++
		return 1
	}
	idx := r.readVarInt33()
	return len(types[idx].Results)
}

// readVarInt33 decodes the signed LEB128 s33 used to encode a block type's type-section index.
func (r *bodyReader) readVarInt33() int64 {
	var result int64
	var shift uint
	var b byte
	for {
		b = r.readByte()
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 33 && b&0x40 != 0 {
		result |= -1 << shift
	}
	return result
}

func isValueTypeByte(b byte) bool {
	switch internalwasm.ValueType(b) {
	case internalwasm.ValueTypeI32, internalwasm.ValueTypeI64, internalwasm.ValueTypeF32, internalwasm.ValueTypeF64:
		return true
	}
	return false
}

// decodeOps parses instructions until a matching else or end, which it consumes and reports as
// term, so the caller (a block/loop/if/function decode) can tell which closed the sequence. types
// is the module's type section, needed to resolve a multi-value block type's result arity.
func decodeOps(r *bodyReader, types []*internalwasm.FunctionType) (ops []*op, term internalwasm.Opcode, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed function body: %v", rec)
		}
	}()
	for {
		code := r.readByte()
		switch code {
		case internalwasm.OpcodeEnd, internalwasm.OpcodeElse:
			return ops, code, nil
		case internalwasm.OpcodeBlock, internalwasm.OpcodeLoop:
			arity := r.readBlockType(types)
			body, bterm, berr := decodeOps(r, types)
			if berr != nil {
				return nil, 0, berr
			}
			if bterm != internalwasm.OpcodeEnd {
				return nil, 0, fmt.Errorf("block/loop closed by else")
			}
			kind := opBlockK
			// A branch to a loop label re-enters the loop rather than carrying result
			// values out, so its branch arity is always 0 regardless of the declared
			// block type (which still governs the loop's own result on normal exit).
			if code == internalwasm.OpcodeLoop {
				kind = opLoopK
				arity = 0
			}
			ops = append(ops, &op{kind: kind, arity: arity, nested: &block{ops: body}})
		case internalwasm.OpcodeIf:
			arity := r.readBlockType(types)
			thenOps, tterm, terr := decodeOps(r, types)
			if terr != nil {
				return nil, 0, terr
			}
			var elseBlock *block
			if tterm == internalwasm.OpcodeElse {
				elseOps, eterm, eerr := decodeOps(r, types)
				if eerr != nil {
					return nil, 0, eerr
				}
				if eterm != internalwasm.OpcodeEnd {
					return nil, 0, fmt.Errorf("else closed by else")
				}
				elseBlock = &block{ops: elseOps}
			}
			ops = append(ops, &op{kind: opIfK, arity: arity, nested: &block{ops: thenOps}, nested2: elseBlock})
		case internalwasm.OpcodeBr, internalwasm.OpcodeBrIf:
			depth := r.readVarUint32()
			kind := opBrK
			if code == internalwasm.OpcodeBrIf {
				kind = opBrIfK
			}
			ops = append(ops, &op{kind: kind, imm: uint64(depth)})
		case internalwasm.OpcodeBrTable:
			n := r.readVarUint32()
			targets := make([]uint32, n+1)
			for i := range targets {
				targets[i] = r.readVarUint32()
			}
			ops = append(ops, &op{kind: opBrTableK, targets: targets})
		case internalwasm.OpcodeReturn:
			ops = append(ops, &op{kind: opReturnK})
		case internalwasm.OpcodeCall:
			idx := r.readVarUint32()
			ops = append(ops, &op{kind: opCallK, imm: uint64(idx)})
		case internalwasm.OpcodeCallIndirect:
			typeIdx := r.readVarUint32()
			r.readByte() // reserved table-index byte
			ops = append(ops, &op{kind: opCallIndirectK, imm: uint64(typeIdx)})
		default:
			ops = append(ops, decodePlain(r, code))
		}
	}
}

// decodePlain decodes a non-control-flow instruction's immediates into a single opPlain op, for
// later dispatch in execPlain purely by its original opcode byte.
func decodePlain(r *bodyReader, code internalwasm.Opcode) *op {
	switch code {
	case internalwasm.OpcodeLocalGet, internalwasm.OpcodeLocalSet, internalwasm.OpcodeLocalTee,
		internalwasm.OpcodeGlobalGet, internalwasm.OpcodeGlobalSet:
		return &op{kind: opPlain, code: code, imm: uint64(r.readVarUint32())}
	case internalwasm.OpcodeMemorySize, internalwasm.OpcodeMemoryGrow:
		r.readByte() // reserved
		return &op{kind: opPlain, code: code}
	case internalwasm.OpcodeI32Load, internalwasm.OpcodeI64Load, internalwasm.OpcodeF32Load, internalwasm.OpcodeF64Load,
		internalwasm.OpcodeI32Load8S, internalwasm.OpcodeI32Load8U, internalwasm.OpcodeI32Load16S, internalwasm.OpcodeI32Load16U,
		internalwasm.OpcodeI64Load8S, internalwasm.OpcodeI64Load8U, internalwasm.OpcodeI64Load16S, internalwasm.OpcodeI64Load16U,
		internalwasm.OpcodeI64Load32S, internalwasm.OpcodeI64Load32U,
		internalwasm.OpcodeI32Store, internalwasm.OpcodeI64Store, internalwasm.OpcodeF32Store, internalwasm.OpcodeF64Store,
		internalwasm.OpcodeI32Store8, internalwasm.OpcodeI32Store16, internalwasm.OpcodeI64Store8, internalwasm.OpcodeI64Store16, internalwasm.OpcodeI64Store32:
		r.readVarUint32() // align, unused: unaligned access is always legal, just potentially slower
		offset := r.readVarUint32()
		return &op{kind: opPlain, code: code, imm: uint64(offset)}
	case internalwasm.OpcodeI32Const:
		return &op{kind: opPlain, code: code, imm: uint64(uint32(r.readVarInt32()))}
	case internalwasm.OpcodeI64Const:
		return &op{kind: opPlain, code: code, imm: uint64(r.readVarInt64())}
	case internalwasm.OpcodeF32Const:
		b := r.readBytes(4)
		return &op{kind: opPlain, code: code, imm: uint64(leU32(b))}
	case internalwasm.OpcodeF64Const:
		b := r.readBytes(8)
		return &op{kind: opPlain, code: code, imm: leU64(b)}
	default:
		return &op{kind: opPlain, code: code}
	}
}

func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func leU64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
