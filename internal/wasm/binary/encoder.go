package binary

import (
	"bytes"
	"encoding/binary"

	"github.com/tinywasm/tinywasm/internal/leb128"
	wasm "github.com/tinywasm/tinywasm/internal/wasm"
)

// EncodeModule serializes m into the WebAssembly binary format. Used by tests to build fixtures
// without hand-maintained byte arrays.
func EncodeModule(m *wasm.Module) []byte {
	var buf bytes.Buffer
	buf.Write(Magic)
	buf.Write(Version)

	encodeSection(&buf, wasm.SectionIDType, func(b *bytes.Buffer) {
		encodeUint32(b, uint32(len(m.TypeSection)))
		for _, t := range m.TypeSection {
			b.WriteByte(0x60)
			encodeValueTypes(b, t.Params)
			encodeValueTypes(b, t.Results)
		}
	}, len(m.TypeSection) > 0)

	encodeSection(&buf, wasm.SectionIDImport, func(b *bytes.Buffer) {
		encodeUint32(b, uint32(len(m.ImportSection)))
		for _, imp := range m.ImportSection {
			encodeName(b, imp.Module)
			encodeName(b, imp.Name)
			b.WriteByte(imp.Type)
			switch imp.Type {
			case wasm.ExternTypeFunc:
				encodeUint32(b, imp.DescFunc)
			case wasm.ExternTypeTable:
				b.WriteByte(0x70)
				encodeLimits(b, imp.DescTable.Limits)
			case wasm.ExternTypeMemory:
				encodeLimits(b, &wasm.Limits{Min: imp.DescMem.Min, Max: imp.DescMem.Max})
			case wasm.ExternTypeGlobal:
				b.WriteByte(imp.DescGlobal.ValType)
				b.WriteByte(boolByte(imp.DescGlobal.Mutable))
			}
		}
	}, len(m.ImportSection) > 0)

	encodeSection(&buf, wasm.SectionIDFunction, func(b *bytes.Buffer) {
		encodeUint32(b, uint32(len(m.FunctionSection)))
		for _, idx := range m.FunctionSection {
			encodeUint32(b, idx)
		}
	}, len(m.FunctionSection) > 0)

	encodeSection(&buf, wasm.SectionIDTable, func(b *bytes.Buffer) {
		encodeUint32(b, uint32(len(m.TableSection)))
		for _, t := range m.TableSection {
			b.WriteByte(0x70)
			encodeLimits(b, t.Limits)
		}
	}, len(m.TableSection) > 0)

	encodeSection(&buf, wasm.SectionIDMemory, func(b *bytes.Buffer) {
		encodeUint32(b, uint32(len(m.MemorySection)))
		for _, mt := range m.MemorySection {
			encodeLimits(b, &wasm.Limits{Min: mt.Min, Max: mt.Max})
		}
	}, len(m.MemorySection) > 0)

	encodeSection(&buf, wasm.SectionIDGlobal, func(b *bytes.Buffer) {
		encodeUint32(b, uint32(len(m.GlobalSection)))
		for _, g := range m.GlobalSection {
			b.WriteByte(g.Type.ValType)
			b.WriteByte(boolByte(g.Type.Mutable))
			encodeConstantExpression(b, g.Init)
		}
	}, len(m.GlobalSection) > 0)

	encodeSection(&buf, wasm.SectionIDExport, func(b *bytes.Buffer) {
		encodeUint32(b, uint32(len(m.ExportSection)))
		for _, e := range m.ExportSection {
			encodeName(b, e.Name)
			b.WriteByte(e.Type)
			encodeUint32(b, e.Index)
		}
	}, len(m.ExportSection) > 0)

	encodeSection(&buf, wasm.SectionIDStart, func(b *bytes.Buffer) {
		encodeUint32(b, *m.StartSection)
	}, m.StartSection != nil)

	encodeSection(&buf, wasm.SectionIDElement, func(b *bytes.Buffer) {
		encodeUint32(b, uint32(len(m.ElementSection)))
		for _, e := range m.ElementSection {
			encodeUint32(b, e.TableIndex)
			encodeConstantExpression(b, e.OffsetExpr)
			encodeUint32(b, uint32(len(e.Init)))
			for _, idx := range e.Init {
				encodeUint32(b, idx)
			}
		}
	}, len(m.ElementSection) > 0)

	encodeSection(&buf, wasm.SectionIDCode, func(b *bytes.Buffer) {
		encodeUint32(b, uint32(len(m.CodeSection)))
		for _, c := range m.CodeSection {
			var body bytes.Buffer
			runs := groupLocals(c.LocalTypes)
			encodeUint32(&body, uint32(len(runs)))
			for _, run := range runs {
				encodeUint32(&body, run.count)
				body.WriteByte(run.vt)
			}
			body.Write(c.Body)
			encodeUint32(b, uint32(body.Len()))
			b.Write(body.Bytes())
		}
	}, len(m.CodeSection) > 0)

	encodeSection(&buf, wasm.SectionIDData, func(b *bytes.Buffer) {
		encodeUint32(b, uint32(len(m.DataSection)))
		for _, d := range m.DataSection {
			encodeUint32(b, d.MemoryIndex)
			encodeConstantExpression(b, d.OffsetExpression)
			encodeUint32(b, uint32(len(d.Init)))
			b.Write(d.Init)
		}
	}, len(m.DataSection) > 0)

	if m.NameSection != nil {
		encodeSection(&buf, wasm.SectionIDCustom, func(b *bytes.Buffer) {
			encodeName(b, "name")
			encodeNameSection(b, m.NameSection)
		}, true)
	}

	return buf.Bytes()
}

func encodeSection(buf *bytes.Buffer, id wasm.SectionID, body func(*bytes.Buffer), present bool) {
	if !present {
		return
	}
	var content bytes.Buffer
	body(&content)
	buf.WriteByte(id)
	encodeUint32(buf, uint32(content.Len()))
	buf.Write(content.Bytes())
}

func encodeUint32(b *bytes.Buffer, v uint32) { b.Write(leb128.EncodeUint32(v)) }

func encodeName(b *bytes.Buffer, s string) {
	encodeUint32(b, uint32(len(s)))
	b.WriteString(s)
}

func encodeValueTypes(b *bytes.Buffer, vs []wasm.ValueType) {
	encodeUint32(b, uint32(len(vs)))
	b.Write(vs)
}

func encodeLimits(b *bytes.Buffer, l *wasm.Limits) {
	if l.Max != nil {
		b.WriteByte(1)
		encodeUint32(b, l.Min)
		encodeUint32(b, *l.Max)
	} else {
		b.WriteByte(0)
		encodeUint32(b, l.Min)
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func encodeConstantExpression(b *bytes.Buffer, ce wasm.ConstantExpression) {
	b.WriteByte(ce.Opcode)
	switch ce.Opcode {
	case wasm.OpcodeI32Const:
		b.Write(leb128.EncodeInt32(int32(binary.LittleEndian.Uint32(ce.Data))))
	case wasm.OpcodeI64Const:
		b.Write(leb128.EncodeInt64(int64(binary.LittleEndian.Uint64(ce.Data))))
	case wasm.OpcodeF32Const:
		var out [4]byte
		binary.LittleEndian.PutUint32(out[:], binary.LittleEndian.Uint32(ce.Data))
		b.Write(out[:])
	case wasm.OpcodeF64Const:
		var out [8]byte
		binary.LittleEndian.PutUint64(out[:], binary.LittleEndian.Uint64(ce.Data))
		b.Write(out[:])
	case wasm.OpcodeGlobalGet:
		encodeUint32(b, binary.LittleEndian.Uint32(ce.Data))
	}
	b.WriteByte(wasm.OpcodeEnd)
}

type localRun struct {
	count uint32
	vt    wasm.ValueType
}

func groupLocals(locals []wasm.ValueType) []localRun {
	var runs []localRun
	for _, vt := range locals {
		if len(runs) > 0 && runs[len(runs)-1].vt == vt {
			runs[len(runs)-1].count++
			continue
		}
		runs = append(runs, localRun{count: 1, vt: vt})
	}
	return runs
}

func encodeNameSection(b *bytes.Buffer, ns *wasm.NameSection) {
	if ns.ModuleName != "" {
		var sub bytes.Buffer
		encodeName(&sub, ns.ModuleName)
		b.WriteByte(subsectionIDModuleName)
		encodeUint32(b, uint32(sub.Len()))
		b.Write(sub.Bytes())
	}
	if len(ns.FunctionNames) > 0 {
		var sub bytes.Buffer
		encodeNameMap(&sub, ns.FunctionNames)
		b.WriteByte(subsectionIDFunctionNames)
		encodeUint32(b, uint32(sub.Len()))
		b.Write(sub.Bytes())
	}
	if len(ns.LocalNames) > 0 {
		var sub bytes.Buffer
		encodeUint32(&sub, uint32(len(ns.LocalNames)))
		for _, fn := range ns.LocalNames {
			encodeUint32(&sub, fn.Index)
			encodeNameMap(&sub, fn.NameMap)
		}
		b.WriteByte(subsectionIDLocalNames)
		encodeUint32(b, uint32(sub.Len()))
		b.Write(sub.Bytes())
	}
}

func encodeNameMap(b *bytes.Buffer, nm wasm.NameMap) {
	encodeUint32(b, uint32(len(nm)))
	for _, a := range nm {
		encodeUint32(b, a.Index)
		encodeName(b, a.Name)
	}
}
