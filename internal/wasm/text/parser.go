package text

import (
	"fmt"
	"strconv"
	"strings"

	wasm "github.com/tinywasm/tinywasm/internal/wasm"
)

// parser turns a token stream into a *wasm.Module. Identifiers ($foo) are resolved to indices
// within the same index space they were declared in, exactly as the text format requires.
type parser struct {
	lex  *lexer
	cur  token
	peeked *token

	module *wasm.Module

	typeIDs, funcIDs, tableIDs, memoryIDs, globalIDs map[string]wasm.Index
}

// ParseModule parses a complete "(module ...)" text format document.
func ParseModule(src string) (*wasm.Module, error) {
	p := &parser{
		lex:       newLexer(src),
		module:    &wasm.Module{},
		typeIDs:   map[string]wasm.Index{},
		funcIDs:   map[string]wasm.Index{},
		tableIDs:  map[string]wasm.Index{},
		memoryIDs: map[string]wasm.Index{},
		globalIDs: map[string]wasm.Index{},
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expect(tokenLParen); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("module"); err != nil {
		return nil, err
	}
	if _, err := p.optionalID(); err != nil {
		return nil, err
	}
	for !p.at(tokenRParen) {
		if err := p.parseModuleField(); err != nil {
			return nil, err
		}
	}
	if err := p.expect(tokenRParen); err != nil {
		return nil, err
	}
	return p.module, nil
}

func (p *parser) advance() error {
	if p.peeked != nil {
		p.cur = *p.peeked
		p.peeked = nil
		return nil
	}
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = t
	return nil
}

// peekKeywordAfterLParen looks at the token following the current "(" (which peekKeywordAfterLParen
// does not consume) and returns its text if it is a keyword, or "" otherwise. A subsequent call to
// advance() past the "(" will yield this same cached token, so lookahead and consumption never
// disagree.
func (p *parser) peekKeywordAfterLParen() (string, error) {
	if p.peeked == nil {
		t, err := p.lex.next()
		if err != nil {
			return "", err
		}
		p.peeked = &t
	}
	if p.peeked.kind == tokenKeyword {
		return p.peeked.text, nil
	}
	return "", nil
}

func (p *parser) at(k tokenKind) bool { return p.cur.kind == k }

func (p *parser) atKeyword(kw string) bool {
	return p.cur.kind == tokenKeyword && p.cur.text == kw
}

func (p *parser) expect(k tokenKind) error {
	if p.cur.kind != k {
		return p.errf("expected token kind %d, got %q", k, p.cur.text)
	}
	return p.advance()
}

func (p *parser) expectKeyword(kw string) error {
	if !p.atKeyword(kw) {
		return p.errf("expected %q, got %q", kw, p.cur.text)
	}
	return p.advance()
}

func (p *parser) errf(format string, args ...interface{}) error {
	return &wasm.ParseError{Line: p.cur.line, Col: p.cur.col, Message: fmt.Sprintf(format, args...)}
}

// optionalID consumes and returns a leading $identifier, or "" if none is present.
func (p *parser) optionalID() (string, error) {
	if p.cur.kind == tokenID {
		id := p.cur.text
		if err := p.advance(); err != nil {
			return "", err
		}
		return id, nil
	}
	return "", nil
}

func (p *parser) parseModuleField() error {
	if err := p.expect(tokenLParen); err != nil {
		return err
	}
	switch {
	case p.atKeyword("type"):
		return p.parseTypeField()
	case p.atKeyword("func"):
		return p.parseFuncField()
	case p.atKeyword("import"):
		return p.parseImportField()
	case p.atKeyword("export"):
		return p.parseExportField()
	case p.atKeyword("memory"):
		return p.parseMemoryField()
	case p.atKeyword("table"):
		return p.parseTableField()
	case p.atKeyword("global"):
		return p.parseGlobalField()
	case p.atKeyword("start"):
		return p.parseStartField()
	default:
		return p.errf("unexpected module field %q", p.cur.text)
	}
}

func (p *parser) parseTypeField() error {
	if err := p.advance(); err != nil { // consume "type"
		return err
	}
	id, err := p.optionalID()
	if err != nil {
		return err
	}
	if err := p.expect(tokenLParen); err != nil {
		return err
	}
	if err := p.expectKeyword("func"); err != nil {
		return err
	}
	ft, err := p.parseFuncTypeBody()
	if err != nil {
		return err
	}
	if err := p.expect(tokenRParen); err != nil { // close (func ...)
		return err
	}
	if err := p.expect(tokenRParen); err != nil { // close (type ...)
		return err
	}
	idx := wasm.Index(len(p.module.TypeSection))
	p.module.TypeSection = append(p.module.TypeSection, ft)
	if id != "" {
		p.typeIDs[id] = idx
	}
	return nil
}

// parseFuncTypeBody parses the (param ...)* (result ...)* sequence inside a (func ...) type use.
func (p *parser) parseFuncTypeBody() (*wasm.FunctionType, error) {
	ft := &wasm.FunctionType{}
	for p.at(tokenLParen) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		switch {
		case p.atKeyword("param"):
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.at(tokenID) {
				// named param: exactly one type follows.
				if err := p.advance(); err != nil {
					return nil, err
				}
				vt, err := p.parseValueType()
				if err != nil {
					return nil, err
				}
				ft.Params = append(ft.Params, vt)
			} else {
				for !p.at(tokenRParen) {
					vt, err := p.parseValueType()
					if err != nil {
						return nil, err
					}
					ft.Params = append(ft.Params, vt)
				}
			}
		case p.atKeyword("result"):
			if err := p.advance(); err != nil {
				return nil, err
			}
			for !p.at(tokenRParen) {
				vt, err := p.parseValueType()
				if err != nil {
					return nil, err
				}
				ft.Results = append(ft.Results, vt)
			}
		default:
			return nil, p.errf("unexpected functype field %q", p.cur.text)
		}
		if err := p.expect(tokenRParen); err != nil {
			return nil, err
		}
	}
	return ft, nil
}

func (p *parser) parseValueType() (wasm.ValueType, error) {
	if p.cur.kind != tokenKeyword {
		return 0, p.errf("expected value type, got %q", p.cur.text)
	}
	var vt wasm.ValueType
	switch p.cur.text {
	case "i32":
		vt = wasm.ValueTypeI32
	case "i64":
		vt = wasm.ValueTypeI64
	case "f32":
		vt = wasm.ValueTypeF32
	case "f64":
		vt = wasm.ValueTypeF64
	default:
		return 0, p.errf("unknown value type %q", p.cur.text)
	}
	return vt, p.advance()
}

func (p *parser) parseFuncField() error {
	if err := p.advance(); err != nil { // consume "func"
		return err
	}
	id, err := p.optionalID()
	if err != nil {
		return err
	}
	funcIdx := wasm.Index(len(p.module.FunctionSection) + int(p.module.ImportFuncCount()))

	var exportNames []string
	var typeIdx *wasm.Index
	var localIDs = map[string]wasm.Index{}
	ft := &wasm.FunctionType{}
	var paramCount wasm.Index

	var localTypes []wasm.ValueType
	localCount := paramCount

	// (export "name"), (type $t), (param ...), (result ...) and (local ...) all share the
	// "(keyword ...)" shape; peekKeywordAfterLParen lets us dispatch without a full pushback.
	for p.at(tokenLParen) {
		kw, err := p.peekKeywordAfterLParen()
		if err != nil {
			return err
		}
		if kw != "export" && kw != "type" && kw != "param" && kw != "result" && kw != "local" {
			break // first instruction token, or the function's closing paren follows
		}
		if err := p.advance(); err != nil { // consume "("
			return err
		}
		switch kw {
		case "export":
			if err := p.advance(); err != nil {
				return err
			}
			exportNames = append(exportNames, p.cur.text)
			if err := p.advance(); err != nil {
				return err
			}
		case "type":
			if err := p.advance(); err != nil {
				return err
			}
			idx, err := p.resolveIndex(p.typeIDs)
			if err != nil {
				return err
			}
			typeIdx = &idx
		case "param":
			if err := p.advance(); err != nil {
				return err
			}
			if p.at(tokenID) {
				name := p.cur.text
				if err := p.advance(); err != nil {
					return err
				}
				vt, err := p.parseValueType()
				if err != nil {
					return err
				}
				localIDs[name] = paramCount
				ft.Params = append(ft.Params, vt)
				paramCount++
				localCount++
			} else {
				for !p.at(tokenRParen) {
					vt, err := p.parseValueType()
					if err != nil {
						return err
					}
					ft.Params = append(ft.Params, vt)
					paramCount++
					localCount++
				}
			}
		case "result":
			if err := p.advance(); err != nil {
				return err
			}
			for !p.at(tokenRParen) {
				vt, err := p.parseValueType()
				if err != nil {
					return err
				}
				ft.Results = append(ft.Results, vt)
			}
		case "local":
			if err := p.advance(); err != nil {
				return err
			}
			if p.at(tokenID) {
				name := p.cur.text
				if err := p.advance(); err != nil {
					return err
				}
				vt, err := p.parseValueType()
				if err != nil {
					return err
				}
				localIDs[name] = localCount
				localTypes = append(localTypes, vt)
				localCount++
			} else {
				for !p.at(tokenRParen) {
					vt, err := p.parseValueType()
					if err != nil {
						return err
					}
					localTypes = append(localTypes, vt)
					localCount++
				}
			}
		}
		if err := p.expect(tokenRParen); err != nil {
			return err
		}
	}

	body, err := p.parseInstructions(localIDs)
	if err != nil {
		return err
	}
	if err := p.expect(tokenRParen); err != nil { // close (func ...)
		return err
	}

	if typeIdx == nil {
		idx := p.internType(ft)
		typeIdx = &idx
	}
	p.module.FunctionSection = append(p.module.FunctionSection, *typeIdx)
	p.module.CodeSection = append(p.module.CodeSection, &wasm.Code{LocalTypes: localTypes, Body: body})
	if id != "" {
		p.funcIDs[id] = funcIdx
	}
	for _, name := range exportNames {
		p.module.ExportSection = append(p.module.ExportSection, &wasm.Export{Type: wasm.ExternTypeFunc, Name: name, Index: funcIdx})
	}
	return nil
}

// internType returns the index of an existing identical FunctionType, appending a new one if
// none match, so inline func signatures share entries with explicit (type ...) declarations.
func (p *parser) internType(ft *wasm.FunctionType) wasm.Index {
	for i, t := range p.module.TypeSection {
		if t.String() == ft.String() {
			return wasm.Index(i)
		}
	}
	idx := wasm.Index(len(p.module.TypeSection))
	p.module.TypeSection = append(p.module.TypeSection, ft)
	return idx
}

func (p *parser) resolveIndex(ids map[string]wasm.Index) (wasm.Index, error) {
	if p.cur.kind == tokenID {
		idx, ok := ids[p.cur.text]
		if !ok {
			return 0, p.errf("unresolved identifier %q", p.cur.text)
		}
		return idx, p.advance()
	}
	if p.cur.kind != tokenUint {
		return 0, p.errf("expected index, got %q", p.cur.text)
	}
	n, err := strconv.ParseUint(p.cur.text, 10, 32)
	if err != nil {
		return 0, p.errf("invalid index %q", p.cur.text)
	}
	return wasm.Index(n), p.advance()
}

func (p *parser) parseImportField() error {
	if err := p.advance(); err != nil {
		return err
	}
	module, err := p.parseStringLit()
	if err != nil {
		return err
	}
	name, err := p.parseStringLit()
	if err != nil {
		return err
	}
	if err := p.expect(tokenLParen); err != nil {
		return err
	}
	imp := &wasm.Import{Module: module, Name: name}
	switch {
	case p.atKeyword("func"):
		if err := p.advance(); err != nil {
			return err
		}
		id, err := p.optionalID()
		if err != nil {
			return err
		}
		var ft *wasm.FunctionType
		var typeIdx wasm.Index
		if p.at(tokenLParen) {
			if err := p.advance(); err != nil {
				return err
			}
			if p.atKeyword("type") {
				if err := p.advance(); err != nil {
					return err
				}
				typeIdx, err = p.resolveIndex(p.typeIDs)
				if err != nil {
					return err
				}
				ft = p.module.TypeSection[typeIdx]
				if err := p.expect(tokenRParen); err != nil { // close "(type $t)"
					return err
				}
			} else {
				// push the already-consumed "(" and its keyword back so parseFuncTypeBody can
				// own each (param ...)/(result ...) field's parens itself, including this first one.
				saved := p.cur
				p.peeked = &saved
				p.cur = token{kind: tokenLParen}
				ft, err = p.parseFuncTypeBody()
				if err != nil {
					return err
				}
				typeIdx = p.internType(ft)
			}
		} else {
			typeIdx = p.internType(&wasm.FunctionType{})
		}
		imp.Type = wasm.ExternTypeFunc
		imp.DescFunc = typeIdx
		if id != "" {
			p.funcIDs[id] = wasm.Index(len(p.module.ImportSection))
		}
	case p.atKeyword("memory"):
		if err := p.advance(); err != nil {
			return err
		}
		if _, err := p.optionalID(); err != nil {
			return err
		}
		lim, err := p.parseLimits()
		if err != nil {
			return err
		}
		imp.Type = wasm.ExternTypeMemory
		imp.DescMem = &wasm.MemoryType{Min: lim.Min, Max: lim.Max}
	case p.atKeyword("table"):
		if err := p.advance(); err != nil {
			return err
		}
		if _, err := p.optionalID(); err != nil {
			return err
		}
		lim, err := p.parseLimits()
		if err != nil {
			return err
		}
		if err := p.expectKeyword("funcref"); err != nil {
			return err
		}
		imp.Type = wasm.ExternTypeTable
		imp.DescTable = &wasm.TableType{Limits: lim}
	case p.atKeyword("global"):
		if err := p.advance(); err != nil {
			return err
		}
		if _, err := p.optionalID(); err != nil {
			return err
		}
		gt, err := p.parseGlobalType()
		if err != nil {
			return err
		}
		imp.Type = wasm.ExternTypeGlobal
		imp.DescGlobal = gt
	default:
		return p.errf("unexpected import descriptor %q", p.cur.text)
	}
	if err := p.expect(tokenRParen); err != nil { // close descriptor
		return err
	}
	if err := p.expect(tokenRParen); err != nil { // close (import ...)
		return err
	}
	p.module.ImportSection = append(p.module.ImportSection, imp)
	return nil
}

func (p *parser) parseStringLit() (string, error) {
	if p.cur.kind != tokenString {
		return "", p.errf("expected string literal, got %q", p.cur.text)
	}
	s := p.cur.text
	return s, p.advance()
}

func (p *parser) parseLimits() (*wasm.Limits, error) {
	if p.cur.kind != tokenUint {
		return nil, p.errf("expected limits min, got %q", p.cur.text)
	}
	min, err := strconv.ParseUint(p.cur.text, 10, 32)
	if err != nil {
		return nil, err
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	l := &wasm.Limits{Min: uint32(min)}
	if p.cur.kind == tokenUint {
		max, err := strconv.ParseUint(p.cur.text, 10, 32)
		if err != nil {
			return nil, err
		}
		m := uint32(max)
		l.Max = &m
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (p *parser) parseGlobalType() (*wasm.GlobalType, error) {
	if p.at(tokenLParen) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("mut"); err != nil {
			return nil, err
		}
		vt, err := p.parseValueType()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokenRParen); err != nil {
			return nil, err
		}
		return &wasm.GlobalType{ValType: vt, Mutable: true}, nil
	}
	vt, err := p.parseValueType()
	if err != nil {
		return nil, err
	}
	return &wasm.GlobalType{ValType: vt, Mutable: false}, nil
}

func (p *parser) parseExportField() error {
	if err := p.advance(); err != nil {
		return err
	}
	name, err := p.parseStringLit()
	if err != nil {
		return err
	}
	if err := p.expect(tokenLParen); err != nil {
		return err
	}
	var et wasm.ExternType
	var ids map[string]wasm.Index
	switch {
	case p.atKeyword("func"):
		et, ids = wasm.ExternTypeFunc, p.funcIDs
	case p.atKeyword("memory"):
		et, ids = wasm.ExternTypeMemory, p.memoryIDs
	case p.atKeyword("table"):
		et, ids = wasm.ExternTypeTable, p.tableIDs
	case p.atKeyword("global"):
		et, ids = wasm.ExternTypeGlobal, p.globalIDs
	default:
		return p.errf("unexpected export descriptor %q", p.cur.text)
	}
	if err := p.advance(); err != nil {
		return err
	}
	idx, err := p.resolveIndex(ids)
	if err != nil {
		return err
	}
	if err := p.expect(tokenRParen); err != nil {
		return err
	}
	if err := p.expect(tokenRParen); err != nil {
		return err
	}
	p.module.ExportSection = append(p.module.ExportSection, &wasm.Export{Type: et, Name: name, Index: idx})
	return nil
}

func (p *parser) parseMemoryField() error {
	if err := p.advance(); err != nil {
		return err
	}
	id, err := p.optionalID()
	if err != nil {
		return err
	}
	lim, err := p.parseLimits()
	if err != nil {
		return err
	}
	if err := p.expect(tokenRParen); err != nil {
		return err
	}
	idx := wasm.Index(len(p.module.MemorySection) + int(p.module.ImportMemoryCount()))
	p.module.MemorySection = append(p.module.MemorySection, &wasm.MemoryType{Min: lim.Min, Max: lim.Max})
	if id != "" {
		p.memoryIDs[id] = idx
	}
	return nil
}

func (p *parser) parseTableField() error {
	if err := p.advance(); err != nil {
		return err
	}
	id, err := p.optionalID()
	if err != nil {
		return err
	}
	lim, err := p.parseLimits()
	if err != nil {
		return err
	}
	if err := p.expectKeyword("funcref"); err != nil {
		return err
	}
	if err := p.expect(tokenRParen); err != nil {
		return err
	}
	idx := wasm.Index(len(p.module.TableSection) + int(p.module.ImportTableCount()))
	p.module.TableSection = append(p.module.TableSection, &wasm.TableType{Limits: lim})
	if id != "" {
		p.tableIDs[id] = idx
	}
	return nil
}

func (p *parser) parseGlobalField() error {
	if err := p.advance(); err != nil {
		return err
	}
	id, err := p.optionalID()
	if err != nil {
		return err
	}
	gt, err := p.parseGlobalType()
	if err != nil {
		return err
	}
	folded := p.at(tokenLParen)
	if folded {
		if err := p.advance(); err != nil {
			return err
		}
	}
	init, err := p.parseConstExpr()
	if err != nil {
		return err
	}
	if folded {
		if err := p.expect(tokenRParen); err != nil {
			return err
		}
	}
	if err := p.expect(tokenRParen); err != nil {
		return err
	}
	idx := wasm.Index(len(p.module.GlobalSection) + int(p.module.ImportGlobalCount()))
	p.module.GlobalSection = append(p.module.GlobalSection, &wasm.Global{Type: gt, Init: init})
	if id != "" {
		p.globalIDs[id] = idx
	}
	return nil
}

func (p *parser) parseStartField() error {
	if err := p.advance(); err != nil {
		return err
	}
	idx, err := p.resolveIndex(p.funcIDs)
	if err != nil {
		return err
	}
	if err := p.expect(tokenRParen); err != nil {
		return err
	}
	p.module.StartSection = &idx
	return nil
}

// parseConstExpr parses a single flat instruction (i32.const N | global.get $g | ...) used for
// global initializers and segment offsets; it does not consume the surrounding parens, which the
// caller already owns.
func (p *parser) parseConstExpr() (wasm.ConstantExpression, error) {
	if p.cur.kind != tokenKeyword {
		return wasm.ConstantExpression{}, p.errf("expected constant expression, got %q", p.cur.text)
	}
	mnemonic := p.cur.text
	if err := p.advance(); err != nil {
		return wasm.ConstantExpression{}, err
	}
	switch mnemonic {
	case "i32.const":
		n, err := p.parseSignedInt(32)
		if err != nil {
			return wasm.ConstantExpression{}, err
		}
		return wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, Data: encodeLE32(uint32(int32(n)))}, nil
	case "i64.const":
		n, err := p.parseSignedInt(64)
		if err != nil {
			return wasm.ConstantExpression{}, err
		}
		return wasm.ConstantExpression{Opcode: wasm.OpcodeI64Const, Data: encodeLE64(uint64(n))}, nil
	case "global.get":
		idx, err := p.resolveIndex(p.globalIDs)
		if err != nil {
			return wasm.ConstantExpression{}, err
		}
		return wasm.ConstantExpression{Opcode: wasm.OpcodeGlobalGet, Data: encodeLE32(idx)}, nil
	default:
		return wasm.ConstantExpression{}, p.errf("unsupported constant expression %q", mnemonic)
	}
}

func (p *parser) parseSignedInt(bits int) (int64, error) {
	if p.cur.kind != tokenUint {
		return 0, p.errf("expected integer literal, got %q", p.cur.text)
	}
	text := p.cur.text
	n, err := strconv.ParseInt(text, 0, bits)
	if err != nil {
		// fall back to unsigned parse for values like 4294967295 on i32.
		u, uerr := strconv.ParseUint(strings.TrimPrefix(text, "+"), 0, bits)
		if uerr != nil {
			return 0, p.errf("invalid integer literal %q", text)
		}
		n = int64(u)
	}
	return n, p.advance()
}

func encodeLE32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func encodeLE64(v uint64) []byte {
	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		out[i] = byte(v >> (8 * i))
	}
	return out
}
