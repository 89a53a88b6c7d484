package text

import (
	"math"
	"strconv"
	"strings"

	"github.com/tinywasm/tinywasm/internal/leb128"
	wasm "github.com/tinywasm/tinywasm/internal/wasm"
)

func float32bits(f float32) uint32 { return math.Float32bits(f) }
func float64bits(f float64) uint64 { return math.Float64bits(f) }

// noImmediate maps mnemonics with no operand bytes directly to their opcode.
var noImmediate = map[string]wasm.Opcode{
	"unreachable": wasm.OpcodeUnreachable,
	"nop":         wasm.OpcodeNop,
	"return":      wasm.OpcodeReturn,
	"drop":        wasm.OpcodeDrop,
	"select":      wasm.OpcodeSelect,

	"i32.eqz": wasm.OpcodeI32Eqz, "i32.eq": wasm.OpcodeI32Eq, "i32.ne": wasm.OpcodeI32Ne,
	"i32.lt_s": wasm.OpcodeI32LtS, "i32.lt_u": wasm.OpcodeI32LtU,
	"i32.gt_s": wasm.OpcodeI32GtS, "i32.gt_u": wasm.OpcodeI32GtU,
	"i32.le_s": wasm.OpcodeI32LeS, "i32.le_u": wasm.OpcodeI32LeU,
	"i32.ge_s": wasm.OpcodeI32GeS, "i32.ge_u": wasm.OpcodeI32GeU,

	"i64.eqz": wasm.OpcodeI64Eqz, "i64.eq": wasm.OpcodeI64Eq, "i64.ne": wasm.OpcodeI64Ne,
	"i64.lt_s": wasm.OpcodeI64LtS, "i64.lt_u": wasm.OpcodeI64LtU,
	"i64.gt_s": wasm.OpcodeI64GtS, "i64.gt_u": wasm.OpcodeI64GtU,
	"i64.le_s": wasm.OpcodeI64LeS, "i64.le_u": wasm.OpcodeI64LeU,
	"i64.ge_s": wasm.OpcodeI64GeS, "i64.ge_u": wasm.OpcodeI64GeU,

	"f32.eq": wasm.OpcodeF32Eq, "f32.ne": wasm.OpcodeF32Ne, "f32.lt": wasm.OpcodeF32Lt,
	"f32.gt": wasm.OpcodeF32Gt, "f32.le": wasm.OpcodeF32Le, "f32.ge": wasm.OpcodeF32Ge,

	"f64.eq": wasm.OpcodeF64Eq, "f64.ne": wasm.OpcodeF64Ne, "f64.lt": wasm.OpcodeF64Lt,
	"f64.gt": wasm.OpcodeF64Gt, "f64.le": wasm.OpcodeF64Le, "f64.ge": wasm.OpcodeF64Ge,

	"i32.clz": wasm.OpcodeI32Clz, "i32.ctz": wasm.OpcodeI32Ctz, "i32.popcnt": wasm.OpcodeI32Popcnt,
	"i32.add": wasm.OpcodeI32Add, "i32.sub": wasm.OpcodeI32Sub, "i32.mul": wasm.OpcodeI32Mul,
	"i32.div_s": wasm.OpcodeI32DivS, "i32.div_u": wasm.OpcodeI32DivU,
	"i32.rem_s": wasm.OpcodeI32RemS, "i32.rem_u": wasm.OpcodeI32RemU,
	"i32.and": wasm.OpcodeI32And, "i32.or": wasm.OpcodeI32Or, "i32.xor": wasm.OpcodeI32Xor,
	"i32.shl": wasm.OpcodeI32Shl, "i32.shr_s": wasm.OpcodeI32ShrS, "i32.shr_u": wasm.OpcodeI32ShrU,
	"i32.rotl": wasm.OpcodeI32Rotl, "i32.rotr": wasm.OpcodeI32Rotr,

	"i64.clz": wasm.OpcodeI64Clz, "i64.ctz": wasm.OpcodeI64Ctz, "i64.popcnt": wasm.OpcodeI64Popcnt,
	"i64.add": wasm.OpcodeI64Add, "i64.sub": wasm.OpcodeI64Sub, "i64.mul": wasm.OpcodeI64Mul,
	"i64.div_s": wasm.OpcodeI64DivS, "i64.div_u": wasm.OpcodeI64DivU,
	"i64.rem_s": wasm.OpcodeI64RemS, "i64.rem_u": wasm.OpcodeI64RemU,
	"i64.and": wasm.OpcodeI64And, "i64.or": wasm.OpcodeI64Or, "i64.xor": wasm.OpcodeI64Xor,
	"i64.shl": wasm.OpcodeI64Shl, "i64.shr_s": wasm.OpcodeI64ShrS, "i64.shr_u": wasm.OpcodeI64ShrU,
	"i64.rotl": wasm.OpcodeI64Rotl, "i64.rotr": wasm.OpcodeI64Rotr,

	"f32.abs": wasm.OpcodeF32Abs, "f32.neg": wasm.OpcodeF32Neg, "f32.ceil": wasm.OpcodeF32Ceil,
	"f32.floor": wasm.OpcodeF32Floor, "f32.trunc": wasm.OpcodeF32Trunc, "f32.nearest": wasm.OpcodeF32Nearest,
	"f32.sqrt": wasm.OpcodeF32Sqrt, "f32.add": wasm.OpcodeF32Add, "f32.sub": wasm.OpcodeF32Sub,
	"f32.mul": wasm.OpcodeF32Mul, "f32.div": wasm.OpcodeF32Div, "f32.min": wasm.OpcodeF32Min,
	"f32.max": wasm.OpcodeF32Max, "f32.copysign": wasm.OpcodeF32Copysign,

	"f64.abs": wasm.OpcodeF64Abs, "f64.neg": wasm.OpcodeF64Neg, "f64.ceil": wasm.OpcodeF64Ceil,
	"f64.floor": wasm.OpcodeF64Floor, "f64.trunc": wasm.OpcodeF64Trunc, "f64.nearest": wasm.OpcodeF64Nearest,
	"f64.sqrt": wasm.OpcodeF64Sqrt, "f64.add": wasm.OpcodeF64Add, "f64.sub": wasm.OpcodeF64Sub,
	"f64.mul": wasm.OpcodeF64Mul, "f64.div": wasm.OpcodeF64Div, "f64.min": wasm.OpcodeF64Min,
	"f64.max": wasm.OpcodeF64Max, "f64.copysign": wasm.OpcodeF64Copysign,

	"i32.wrap_i64": wasm.OpcodeI32WrapI64,
	"i32.trunc_f32_s": wasm.OpcodeI32TruncF32S, "i32.trunc_f32_u": wasm.OpcodeI32TruncF32U,
	"i32.trunc_f64_s": wasm.OpcodeI32TruncF64S, "i32.trunc_f64_u": wasm.OpcodeI32TruncF64U,
	"i64.extend_i32_s": wasm.OpcodeI64ExtendI32S, "i64.extend_i32_u": wasm.OpcodeI64ExtendI32U,
	"i64.trunc_f32_s": wasm.OpcodeI64TruncF32S, "i64.trunc_f32_u": wasm.OpcodeI64TruncF32U,
	"i64.trunc_f64_s": wasm.OpcodeI64TruncF64S, "i64.trunc_f64_u": wasm.OpcodeI64TruncF64U,
	"f32.convert_i32_s": wasm.OpcodeF32ConvertI32S, "f32.convert_i32_u": wasm.OpcodeF32ConvertI32U,
	"f32.convert_i64_s": wasm.OpcodeF32ConvertI64S, "f32.convert_i64_u": wasm.OpcodeF32ConvertI64U,
	"f32.demote_f64": wasm.OpcodeF32DemoteF64,
	"f64.convert_i32_s": wasm.OpcodeF64ConvertI32S, "f64.convert_i32_u": wasm.OpcodeF64ConvertI32U,
	"f64.convert_i64_s": wasm.OpcodeF64ConvertI64S, "f64.convert_i64_u": wasm.OpcodeF64ConvertI64U,
	"f64.promote_f32": wasm.OpcodeF64PromoteF32,
	"i32.reinterpret_f32": wasm.OpcodeI32ReinterpretF32, "i64.reinterpret_f64": wasm.OpcodeI64ReinterpretF64,
	"f32.reinterpret_i32": wasm.OpcodeF32ReinterpretI32, "f64.reinterpret_i64": wasm.OpcodeF64ReinterpretI64,

	"i32.extend8_s": wasm.OpcodeI32Extend8S, "i32.extend16_s": wasm.OpcodeI32Extend16S,
	"i64.extend8_s": wasm.OpcodeI64Extend8S, "i64.extend16_s": wasm.OpcodeI64Extend16S,
	"i64.extend32_s": wasm.OpcodeI64Extend32S,

	"memory.size": wasm.OpcodeMemorySize, "memory.grow": wasm.OpcodeMemoryGrow,
}

// memoryOpcodes maps load/store mnemonics to their opcode and natural alignment exponent, used as
// the default "align" immediate when the instruction omits one.
var memoryOpcodes = map[string]struct {
	op        wasm.Opcode
	naturalAlign uint32
}{
	"i32.load": {wasm.OpcodeI32Load, 2}, "i64.load": {wasm.OpcodeI64Load, 3},
	"f32.load": {wasm.OpcodeF32Load, 2}, "f64.load": {wasm.OpcodeF64Load, 3},
	"i32.load8_s": {wasm.OpcodeI32Load8S, 0}, "i32.load8_u": {wasm.OpcodeI32Load8U, 0},
	"i32.load16_s": {wasm.OpcodeI32Load16S, 1}, "i32.load16_u": {wasm.OpcodeI32Load16U, 1},
	"i64.load8_s": {wasm.OpcodeI64Load8S, 0}, "i64.load8_u": {wasm.OpcodeI64Load8U, 0},
	"i64.load16_s": {wasm.OpcodeI64Load16S, 1}, "i64.load16_u": {wasm.OpcodeI64Load16U, 1},
	"i64.load32_s": {wasm.OpcodeI64Load32S, 2}, "i64.load32_u": {wasm.OpcodeI64Load32U, 2},
	"i32.store": {wasm.OpcodeI32Store, 2}, "i64.store": {wasm.OpcodeI64Store, 3},
	"f32.store": {wasm.OpcodeF32Store, 2}, "f64.store": {wasm.OpcodeF64Store, 3},
	"i32.store8": {wasm.OpcodeI32Store8, 0}, "i32.store16": {wasm.OpcodeI32Store16, 1},
	"i64.store8": {wasm.OpcodeI64Store8, 0}, "i64.store16": {wasm.OpcodeI64Store16, 1},
	"i64.store32": {wasm.OpcodeI64Store32, 2},
}

// blockScope tracks the label identifiers in play while parsing a function body, innermost last,
// so `br $label` can be resolved to a relative depth.
type blockScope struct {
	labels []string // "" for unlabeled blocks
}

func (s *blockScope) push(label string) { s.labels = append(s.labels, label) }
func (s *blockScope) pop()              { s.labels = s.labels[:len(s.labels)-1] }

func (s *blockScope) resolve(label string) (uint32, bool) {
	for i := len(s.labels) - 1; i >= 0; i-- {
		if s.labels[i] == label {
			return uint32(len(s.labels) - 1 - i), true
		}
	}
	return 0, false
}

// parseInstructions parses a flat instruction sequence up to (but not including) the function's
// closing paren, appending an implicit "end" as the binary format requires.
func (p *parser) parseInstructions(localIDs map[string]wasm.Index) ([]byte, error) {
	var out []byte
	scope := &blockScope{}
	for !p.at(tokenRParen) && !p.at(tokenEOF) {
		b, err := p.parseInstruction(localIDs, scope)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	out = append(out, wasm.OpcodeEnd)
	return out, nil
}

func (p *parser) parseInstruction(localIDs map[string]wasm.Index, scope *blockScope) ([]byte, error) {
	if p.cur.kind != tokenKeyword {
		return nil, p.errf("expected instruction, got %q", p.cur.text)
	}
	mnemonic := p.cur.text

	if op, ok := noImmediate[mnemonic]; ok {
		if err := p.advance(); err != nil {
			return nil, err
		}
		return []byte{op}, nil
	}
	if mo, ok := memoryOpcodes[mnemonic]; ok {
		if err := p.advance(); err != nil {
			return nil, err
		}
		align := mo.naturalAlign
		var offset uint32
		for p.cur.kind == tokenKeyword && (strings.HasPrefix(p.cur.text, "align=") || strings.HasPrefix(p.cur.text, "offset=")) {
			kv := p.cur.text
			if strings.HasPrefix(kv, "align=") {
				n, err := strconv.ParseUint(kv[len("align="):], 10, 32)
				if err != nil {
					return nil, p.errf("invalid align %q", kv)
				}
				align = trailingZeros32(uint32(n))
			} else {
				n, err := strconv.ParseUint(kv[len("offset="):], 10, 32)
				if err != nil {
					return nil, p.errf("invalid offset %q", kv)
				}
				offset = uint32(n)
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		out := []byte{mo.op}
		out = append(out, leb128.EncodeUint32(align)...)
		out = append(out, leb128.EncodeUint32(offset)...)
		return out, nil
	}

	switch mnemonic {
	case "i32.const":
		if err := p.advance(); err != nil {
			return nil, err
		}
		n, err := p.parseSignedInt(32)
		if err != nil {
			return nil, err
		}
		return append([]byte{wasm.OpcodeI32Const}, leb128.EncodeInt32(int32(n))...), nil
	case "i64.const":
		if err := p.advance(); err != nil {
			return nil, err
		}
		n, err := p.parseSignedInt(64)
		if err != nil {
			return nil, err
		}
		return append([]byte{wasm.OpcodeI64Const}, leb128.EncodeInt64(n)...), nil
	case "f32.const":
		if err := p.advance(); err != nil {
			return nil, err
		}
		f, err := strconv.ParseFloat(p.cur.text, 32)
		if err != nil {
			return nil, p.errf("invalid f32 literal %q", p.cur.text)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return append([]byte{wasm.OpcodeF32Const}, encodeLE32(float32bits(float32(f)))...), nil
	case "f64.const":
		if err := p.advance(); err != nil {
			return nil, err
		}
		f, err := strconv.ParseFloat(p.cur.text, 64)
		if err != nil {
			return nil, p.errf("invalid f64 literal %q", p.cur.text)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return append([]byte{wasm.OpcodeF64Const}, encodeLE64(float64bits(f))...), nil
	case "local.get", "local.set", "local.tee":
		op := map[string]wasm.Opcode{"local.get": wasm.OpcodeLocalGet, "local.set": wasm.OpcodeLocalSet, "local.tee": wasm.OpcodeLocalTee}[mnemonic]
		if err := p.advance(); err != nil {
			return nil, err
		}
		idx, err := p.resolveLocalIndex(localIDs)
		if err != nil {
			return nil, err
		}
		return append([]byte{op}, leb128.EncodeUint32(idx)...), nil
	case "global.get", "global.set":
		op := map[string]wasm.Opcode{"global.get": wasm.OpcodeGlobalGet, "global.set": wasm.OpcodeGlobalSet}[mnemonic]
		if err := p.advance(); err != nil {
			return nil, err
		}
		idx, err := p.resolveIndex(p.globalIDs)
		if err != nil {
			return nil, err
		}
		return append([]byte{op}, leb128.EncodeUint32(idx)...), nil
	case "call":
		if err := p.advance(); err != nil {
			return nil, err
		}
		idx, err := p.resolveIndex(p.funcIDs)
		if err != nil {
			return nil, err
		}
		return append([]byte{wasm.OpcodeCall}, leb128.EncodeUint32(idx)...), nil
	case "call_indirect":
		if err := p.advance(); err != nil {
			return nil, err
		}
		var typeIdx wasm.Index
		if p.at(tokenLParen) {
			if err := p.advance(); err != nil {
				return nil, err
			}
			if err := p.expectKeyword("type"); err != nil {
				return nil, err
			}
			var err error
			typeIdx, err = p.resolveIndex(p.typeIDs)
			if err != nil {
				return nil, err
			}
			if err := p.expect(tokenRParen); err != nil {
				return nil, err
			}
		}
		out := []byte{wasm.OpcodeCallIndirect}
		out = append(out, leb128.EncodeUint32(typeIdx)...)
		out = append(out, 0x00) // table index, always 0 without the reference-types proposal
		return out, nil
	case "block", "loop":
		op := wasm.OpcodeBlock
		if mnemonic == "loop" {
			op = wasm.OpcodeLoop
		}
		return p.parseBlockLike(op, scope)
	case "if":
		return p.parseIf(scope)
	case "br", "br_if":
		op := wasm.OpcodeBr
		if mnemonic == "br_if" {
			op = wasm.OpcodeBrIf
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		depth, err := p.resolveLabel(scope)
		if err != nil {
			return nil, err
		}
		return append([]byte{op}, leb128.EncodeUint32(depth)...), nil
	case "br_table":
		if err := p.advance(); err != nil {
			return nil, err
		}
		var depths []uint32
		for p.cur.kind == tokenUint || p.cur.kind == tokenID {
			d, err := p.resolveLabel(scope)
			if err != nil {
				return nil, err
			}
			depths = append(depths, d)
		}
		if len(depths) == 0 {
			return nil, p.errf("br_table requires at least one label")
		}
		out := []byte{wasm.OpcodeBrTable}
		out = append(out, leb128.EncodeUint32(uint32(len(depths)-1))...)
		for _, d := range depths {
			out = append(out, leb128.EncodeUint32(d)...)
		}
		return out, nil
	default:
		return nil, p.errf("unknown instruction %q", mnemonic)
	}
}

// resolveLabel consumes one br target: either a numeric relative depth or a $label resolved
// against the enclosing block scope.
func (p *parser) resolveLabel(scope *blockScope) (uint32, error) {
	if p.cur.kind == tokenID {
		depth, ok := scope.resolve(p.cur.text)
		if !ok {
			return 0, p.errf("unresolved label %q", p.cur.text)
		}
		return depth, p.advance()
	}
	if p.cur.kind != tokenUint {
		return 0, p.errf("expected branch target, got %q", p.cur.text)
	}
	n, err := strconv.ParseUint(p.cur.text, 10, 32)
	if err != nil {
		return 0, p.errf("invalid branch target %q", p.cur.text)
	}
	return uint32(n), p.advance()
}

func (p *parser) resolveLocalIndex(localIDs map[string]wasm.Index) (wasm.Index, error) {
	if p.cur.kind == tokenID {
		idx, ok := localIDs[p.cur.text]
		if !ok {
			return 0, p.errf("unresolved local %q", p.cur.text)
		}
		return idx, p.advance()
	}
	return p.resolveIndex(localIDs)
}

// parseBlockLike parses "block"/"loop" bodies: an optional $label, an optional result type, the
// instruction sequence, and the closing "end" (without its own surrounding parens in flat form,
// the mnemonic itself opens the construct and a literal "end" keyword closes it).
func (p *parser) parseBlockLike(op wasm.Opcode, scope *blockScope) ([]byte, error) {
	if err := p.advance(); err != nil { // consume "block"/"loop"
		return nil, err
	}
	label, err := p.optionalID()
	if err != nil {
		return nil, err
	}
	bt, err := p.parseOptionalBlockType()
	if err != nil {
		return nil, err
	}
	scope.push(label)
	out := []byte{op}
	out = append(out, encodeBlockType(bt)...)
	for !p.atKeyword("end") {
		if p.at(tokenEOF) {
			return nil, p.errf("unterminated block")
		}
		b, err := p.parseInstruction(nil, scope)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	if err := p.advance(); err != nil { // consume "end"
		return nil, err
	}
	if _, err := p.optionalID(); err != nil { // optional matching $label after end
		return nil, err
	}
	scope.pop()
	out = append(out, wasm.OpcodeEnd)
	return out, nil
}

func (p *parser) parseIf(scope *blockScope) ([]byte, error) {
	if err := p.advance(); err != nil { // consume "if"
		return nil, err
	}
	label, err := p.optionalID()
	if err != nil {
		return nil, err
	}
	bt, err := p.parseOptionalBlockType()
	if err != nil {
		return nil, err
	}
	scope.push(label)
	out := []byte{wasm.OpcodeIf}
	out = append(out, encodeBlockType(bt)...)
	for !p.atKeyword("else") && !p.atKeyword("end") {
		if p.at(tokenEOF) {
			return nil, p.errf("unterminated if")
		}
		b, err := p.parseInstruction(nil, scope)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	if p.atKeyword("else") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		out = append(out, wasm.OpcodeElse)
		for !p.atKeyword("end") {
			if p.at(tokenEOF) {
				return nil, p.errf("unterminated if/else")
			}
			b, err := p.parseInstruction(nil, scope)
			if err != nil {
				return nil, err
			}
			out = append(out, b...)
		}
	}
	if err := p.advance(); err != nil { // consume "end"
		return nil, err
	}
	if _, err := p.optionalID(); err != nil {
		return nil, err
	}
	scope.pop()
	out = append(out, wasm.OpcodeEnd)
	return out, nil
}

// parseOptionalBlockType parses the 0-or-1 "(result T)" that a block/loop/if signature may carry
// in WebAssembly 1.0 (no params, no multi-result without the multi-value feature).
func (p *parser) parseOptionalBlockType() (*wasm.FunctionType, error) {
	if !p.at(tokenLParen) {
		return wasm.BlockTypeEmpty, nil
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("result"); err != nil {
		return nil, err
	}
	vt, err := p.parseValueType()
	if err != nil {
		return nil, err
	}
	if err := p.expect(tokenRParen); err != nil {
		return nil, err
	}
	return &wasm.FunctionType{Results: []wasm.ValueType{vt}}, nil
}

// encodeBlockType encodes bt per the binary format's blocktype production: 0x40 for empty, or the
// single value type byte, matching how the validator/engine read it back.
func encodeBlockType(bt *wasm.FunctionType) []byte {
	if len(bt.Results) == 0 {
		return []byte{0x40}
	}
	return []byte{bt.Results[0]}
}

func trailingZeros32(v uint32) uint32 {
	var n uint32
	for v&1 == 0 && v != 0 {
		v >>= 1
		n++
	}
	return n
}
