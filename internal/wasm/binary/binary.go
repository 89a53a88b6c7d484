// Package binary implements the WebAssembly 1.0 (20191205) binary format: decoding a byte stream
// into an *internalwasm.Module, and encoding a Module back to bytes (used by tests to round-trip
// fixtures without hand-maintained byte arrays).
package binary

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	wasm "github.com/tinywasm/tinywasm/internal/wasm"
	"github.com/tinywasm/tinywasm/internal/leb128"
)

// Magic is the 4-byte header every WebAssembly binary module begins with: "\0asm".
var Magic = []byte{0x00, 0x61, 0x73, 0x6d}

// Version is the binary format version this package decodes and encodes.
var Version = []byte{0x01, 0x00, 0x00, 0x00}

// DecodeModule parses a complete WebAssembly binary module.
func DecodeModule(binaryBytes []byte) (*wasm.Module, error) {
	r := bytes.NewReader(binaryBytes)

	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, &wasm.DecodeError{Pos: uint64(len(binaryBytes) - r.Len()), Message: "invalid header: " + err.Error()}
	}
	if !bytes.Equal(header[0:4], Magic) {
		return nil, &wasm.DecodeError{Pos: 0, Message: "invalid magic number"}
	}
	if !bytes.Equal(header[4:8], Version) {
		return nil, &wasm.DecodeError{Pos: 4, Message: fmt.Sprintf("invalid version: %x", header[4:8])}
	}

	m := &wasm.Module{}
	var lastNonCustomSection wasm.SectionID
	for {
		sectionID, err := r.ReadByte()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, &wasm.DecodeError{Pos: uint64(len(binaryBytes) - r.Len()), Message: "error decoding section id: " + err.Error()}
		}

		sectionSize, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, &wasm.DecodeError{Section: sectionID, Pos: uint64(len(binaryBytes) - r.Len()), Message: "error decoding section size: " + err.Error()}
		}

		sectionContentStart := r.Len()
		if sectionID != wasm.SectionIDCustom {
			if sectionID < lastNonCustomSection {
				return nil, &wasm.DecodeError{Section: sectionID, Pos: uint64(len(binaryBytes) - r.Len()), Message: "out of order section"}
			}
			lastNonCustomSection = sectionID
		}

		switch sectionID {
		case wasm.SectionIDCustom:
			name, nameSize, err := decodeUTF8(r)
			if err != nil {
				return nil, &wasm.DecodeError{Section: sectionID, Pos: uint64(len(binaryBytes) - r.Len()), Message: "error decoding custom section name: " + err.Error()}
			}
			remaining := int64(sectionSize) - int64(nameSize)
			data := make([]byte, remaining)
			if _, err := io.ReadFull(r, data); err != nil {
				return nil, &wasm.DecodeError{Section: sectionID, Pos: uint64(len(binaryBytes) - r.Len()), Message: "error reading custom section: " + err.Error()}
			}
			if name == "name" {
				ns, err := decodeNameSection(data)
				if err != nil {
					return nil, &wasm.DecodeError{Section: sectionID, Pos: uint64(len(binaryBytes) - r.Len()), Message: "error decoding name section: " + err.Error()}
				}
				m.NameSection = ns
			}
		case wasm.SectionIDType:
			m.TypeSection, err = decodeTypeSection(r)
		case wasm.SectionIDImport:
			m.ImportSection, err = decodeImportSection(r)
		case wasm.SectionIDFunction:
			m.FunctionSection, err = decodeFunctionSection(r)
		case wasm.SectionIDTable:
			m.TableSection, err = decodeTableSection(r)
		case wasm.SectionIDMemory:
			m.MemorySection, err = decodeMemorySection(r)
		case wasm.SectionIDGlobal:
			m.GlobalSection, err = decodeGlobalSection(r)
		case wasm.SectionIDExport:
			m.ExportSection, err = decodeExportSection(r)
		case wasm.SectionIDStart:
			var idx uint32
			idx, _, err = leb128.DecodeUint32(r)
			m.StartSection = &idx
		case wasm.SectionIDElement:
			m.ElementSection, err = decodeElementSection(r)
		case wasm.SectionIDCode:
			m.CodeSection, err = decodeCodeSection(r)
		case wasm.SectionIDData:
			m.DataSection, err = decodeDataSection(r)
		default:
			err = fmt.Errorf("invalid section id: %d", sectionID)
		}
		if err != nil {
			return nil, &wasm.DecodeError{Section: sectionID, Pos: uint64(len(binaryBytes) - r.Len()), Message: err.Error()}
		}

		consumed := sectionContentStart - r.Len()
		if sectionID != wasm.SectionIDCustom && consumed != int(sectionSize) {
			return nil, &wasm.DecodeError{Section: sectionID, Pos: uint64(len(binaryBytes) - r.Len()), Message: fmt.Sprintf("section size mismatch: declared %d, consumed %d", sectionSize, consumed)}
		}
	}
	return m, nil
}

func decodeUTF8(r io.Reader) (string, uint64, error) {
	size, sizeLen, err := leb128.DecodeUint32(r)
	if err != nil {
		return "", 0, fmt.Errorf("error decoding size: %w", err)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", 0, fmt.Errorf("error reading contents: %w", err)
	}
	return string(buf), uint64(sizeLen) + uint64(size), nil
}

func decodeValueTypes(r io.Reader) ([]wasm.ValueType, error) {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	ret := make([]wasm.ValueType, count)
	buf := make([]byte, count)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	for i, b := range buf {
		if !isValueType(b) {
			return nil, fmt.Errorf("invalid value type: %#x", b)
		}
		ret[i] = b
	}
	return ret, nil
}

func isValueType(b byte) bool {
	switch b {
	case wasm.ValueTypeI32, wasm.ValueTypeI64, wasm.ValueTypeF32, wasm.ValueTypeF64:
		return true
	}
	return false
}

func decodeTypeSection(r io.Reader) ([]*wasm.FunctionType, error) {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	ret := make([]*wasm.FunctionType, count)
	for i := range ret {
		b, err := readByte(r)
		if err != nil {
			return nil, err
		}
		if b != 0x60 {
			return nil, fmt.Errorf("invalid functype marker: %#x", b)
		}
		params, err := decodeValueTypes(r)
		if err != nil {
			return nil, fmt.Errorf("could not decode parameter types: %w", err)
		}
		results, err := decodeValueTypes(r)
		if err != nil {
			return nil, fmt.Errorf("could not decode result types: %w", err)
		}
		ret[i] = &wasm.FunctionType{Params: params, Results: results}
	}
	return ret, nil
}

func decodeLimits(r io.Reader) (*wasm.Limits, error) {
	flag, err := readByte(r)
	if err != nil {
		return nil, err
	}
	min, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	l := &wasm.Limits{Min: min}
	if flag == 1 {
		max, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, err
		}
		l.Max = &max
	} else if flag != 0 {
		return nil, fmt.Errorf("invalid limits flag: %#x", flag)
	}
	return l, nil
}

func decodeImportSection(r io.Reader) ([]*wasm.Import, error) {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	ret := make([]*wasm.Import, count)
	for i := range ret {
		module, _, err := decodeUTF8(r)
		if err != nil {
			return nil, fmt.Errorf("error decoding import module: %w", err)
		}
		name, _, err := decodeUTF8(r)
		if err != nil {
			return nil, fmt.Errorf("error decoding import name: %w", err)
		}
		kind, err := readByte(r)
		if err != nil {
			return nil, err
		}
		imp := &wasm.Import{Type: kind, Module: module, Name: name}
		switch kind {
		case wasm.ExternTypeFunc:
			imp.DescFunc, _, err = leb128.DecodeUint32(r)
		case wasm.ExternTypeTable:
			b, rerr := readByte(r)
			if rerr != nil {
				return nil, rerr
			}
			if b != 0x70 {
				return nil, fmt.Errorf("invalid table element type: %#x", b)
			}
			var lim *wasm.Limits
			lim, err = decodeLimits(r)
			imp.DescTable = &wasm.TableType{Limits: lim}
		case wasm.ExternTypeMemory:
			var lim *wasm.Limits
			lim, err = decodeLimits(r)
			if err == nil {
				imp.DescMem = &wasm.MemoryType{Min: lim.Min, Max: lim.Max}
			}
		case wasm.ExternTypeGlobal:
			imp.DescGlobal, err = decodeGlobalType(r)
		default:
			return nil, fmt.Errorf("invalid import kind: %#x", kind)
		}
		if err != nil {
			return nil, err
		}
		ret[i] = imp
	}
	return ret, nil
}

func decodeGlobalType(r io.Reader) (*wasm.GlobalType, error) {
	vt, err := readByte(r)
	if err != nil {
		return nil, err
	}
	if !isValueType(vt) {
		return nil, fmt.Errorf("invalid global value type: %#x", vt)
	}
	mut, err := readByte(r)
	if err != nil {
		return nil, err
	}
	if mut != 0 && mut != 1 {
		return nil, fmt.Errorf("invalid global mutability: %#x", mut)
	}
	return &wasm.GlobalType{ValType: vt, Mutable: mut == 1}, nil
}

func decodeFunctionSection(r io.Reader) ([]wasm.Index, error) {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	ret := make([]wasm.Index, count)
	for i := range ret {
		if ret[i], _, err = leb128.DecodeUint32(r); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

func decodeTableSection(r io.Reader) ([]*wasm.TableType, error) {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	ret := make([]*wasm.TableType, count)
	for i := range ret {
		b, err := readByte(r)
		if err != nil {
			return nil, err
		}
		if b != 0x70 {
			return nil, fmt.Errorf("invalid table element type: %#x", b)
		}
		lim, err := decodeLimits(r)
		if err != nil {
			return nil, err
		}
		ret[i] = &wasm.TableType{Limits: lim}
	}
	return ret, nil
}

func decodeMemorySection(r io.Reader) ([]*wasm.MemoryType, error) {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	ret := make([]*wasm.MemoryType, count)
	for i := range ret {
		lim, err := decodeLimits(r)
		if err != nil {
			return nil, err
		}
		ret[i] = &wasm.MemoryType{Min: lim.Min, Max: lim.Max}
	}
	return ret, nil
}

func decodeConstantExpression(r io.Reader) (wasm.ConstantExpression, error) {
	opcode, err := readByte(r)
	if err != nil {
		return wasm.ConstantExpression{}, err
	}
	var buf bytes.Buffer
	switch opcode {
	case wasm.OpcodeI32Const:
		v, _, err := leb128.DecodeInt32(r)
		if err != nil {
			return wasm.ConstantExpression{}, err
		}
		_ = binary.Write(&buf, binary.LittleEndian, v)
	case wasm.OpcodeI64Const:
		v, _, err := leb128.DecodeInt64(r)
		if err != nil {
			return wasm.ConstantExpression{}, err
		}
		_ = binary.Write(&buf, binary.LittleEndian, v)
	case wasm.OpcodeF32Const:
		var v uint32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return wasm.ConstantExpression{}, err
		}
		_ = binary.Write(&buf, binary.LittleEndian, v)
	case wasm.OpcodeF64Const:
		var v uint64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return wasm.ConstantExpression{}, err
		}
		_ = binary.Write(&buf, binary.LittleEndian, v)
	case wasm.OpcodeGlobalGet:
		idx, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return wasm.ConstantExpression{}, err
		}
		_ = binary.Write(&buf, binary.LittleEndian, idx)
	default:
		return wasm.ConstantExpression{}, fmt.Errorf("invalid constant expression opcode: %#x", opcode)
	}
	end, err := readByte(r)
	if err != nil {
		return wasm.ConstantExpression{}, err
	}
	if end != wasm.OpcodeEnd {
		return wasm.ConstantExpression{}, fmt.Errorf("constant expression not terminated by end")
	}
	return wasm.ConstantExpression{Opcode: opcode, Data: buf.Bytes()}, nil
}

func decodeGlobalSection(r io.Reader) ([]*wasm.Global, error) {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	ret := make([]*wasm.Global, count)
	for i := range ret {
		gt, err := decodeGlobalType(r)
		if err != nil {
			return nil, err
		}
		init, err := decodeConstantExpression(r)
		if err != nil {
			return nil, err
		}
		ret[i] = &wasm.Global{Type: gt, Init: init}
	}
	return ret, nil
}

func decodeExportSection(r io.Reader) ([]*wasm.Export, error) {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	ret := make([]*wasm.Export, count)
	for i := range ret {
		name, _, err := decodeUTF8(r)
		if err != nil {
			return nil, err
		}
		kind, err := readByte(r)
		if err != nil {
			return nil, err
		}
		idx, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, err
		}
		ret[i] = &wasm.Export{Type: kind, Name: name, Index: idx}
	}
	return ret, nil
}

func decodeElementSection(r io.Reader) ([]*wasm.ElementSegment, error) {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	ret := make([]*wasm.ElementSegment, count)
	for i := range ret {
		tableIdx, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, err
		}
		offset, err := decodeConstantExpression(r)
		if err != nil {
			return nil, err
		}
		n, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, err
		}
		init := make([]wasm.Index, n)
		for j := range init {
			if init[j], _, err = leb128.DecodeUint32(r); err != nil {
				return nil, err
			}
		}
		ret[i] = &wasm.ElementSegment{OffsetExpr: offset, TableIndex: tableIdx, Init: init}
	}
	return ret, nil
}

func decodeCodeSection(r io.Reader) ([]*wasm.Code, error) {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	ret := make([]*wasm.Code, count)
	for i := range ret {
		size, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, err
		}
		body := make([]byte, size)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, err
		}
		br := bytes.NewReader(body)
		localCount, _, err := leb128.DecodeUint32(br)
		if err != nil {
			return nil, err
		}
		var locals []wasm.ValueType
		for j := uint32(0); j < localCount; j++ {
			n, _, err := leb128.DecodeUint32(br)
			if err != nil {
				return nil, err
			}
			vt, err := readByte(br)
			if err != nil {
				return nil, err
			}
			if !isValueType(vt) {
				return nil, fmt.Errorf("invalid local type: %#x", vt)
			}
			for k := uint32(0); k < n; k++ {
				locals = append(locals, vt)
			}
		}
		remaining := make([]byte, br.Len())
		if _, err := io.ReadFull(br, remaining); err != nil {
			return nil, err
		}
		ret[i] = &wasm.Code{LocalTypes: locals, Body: remaining}
	}
	return ret, nil
}

func decodeDataSection(r io.Reader) ([]*wasm.DataSegment, error) {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	ret := make([]*wasm.DataSegment, count)
	for i := range ret {
		memIdx, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, err
		}
		offset, err := decodeConstantExpression(r)
		if err != nil {
			return nil, err
		}
		size, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, err
		}
		data := make([]byte, size)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, err
		}
		ret[i] = &wasm.DataSegment{OffsetExpression: offset, MemoryIndex: memIdx, Init: data}
	}
	return ret, nil
}

func readByte(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

