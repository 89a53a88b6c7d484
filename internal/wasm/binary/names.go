package binary

import (
	"bytes"
	"fmt"
	"io"

	"github.com/tinywasm/tinywasm/internal/leb128"
	wasm "github.com/tinywasm/tinywasm/internal/wasm"
)

const (
	subsectionIDModuleName   = 0
	subsectionIDFunctionNames = 1
	subsectionIDLocalNames   = 2
)

// decodeNameSection parses the optional custom "name" section: module name, function names, and
// per-function local names, each an independently-sized subsection.
//
// See https://webassembly.github.io/spec/core/appendix/custom.html#name-section
func decodeNameSection(data []byte) (*wasm.NameSection, error) {
	r := bytes.NewReader(data)
	ns := &wasm.NameSection{}
	for r.Len() > 0 {
		id, err := readByte(r)
		if err != nil {
			return nil, err
		}
		size, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, err
		}
		sub := make([]byte, size)
		if _, err := io.ReadFull(r, sub); err != nil {
			return nil, err
		}
		sr := bytes.NewReader(sub)
		switch id {
		case subsectionIDModuleName:
			name, _, err := decodeUTF8(sr)
			if err != nil {
				return nil, fmt.Errorf("module name subsection: %w", err)
			}
			ns.ModuleName = name
		case subsectionIDFunctionNames:
			nm, err := decodeNameMap(sr)
			if err != nil {
				return nil, fmt.Errorf("function names subsection: %w", err)
			}
			ns.FunctionNames = nm
		case subsectionIDLocalNames:
			count, _, err := leb128.DecodeUint32(sr)
			if err != nil {
				return nil, fmt.Errorf("local names subsection: %w", err)
			}
			for i := uint32(0); i < count; i++ {
				fnIdx, _, err := leb128.DecodeUint32(sr)
				if err != nil {
					return nil, err
				}
				nm, err := decodeNameMap(sr)
				if err != nil {
					return nil, err
				}
				ns.LocalNames = append(ns.LocalNames, &struct {
					Index   wasm.Index
					NameMap wasm.NameMap
				}{Index: fnIdx, NameMap: nm})
			}
		}
		// unknown subsection ids are skipped; their bytes were already consumed above.
	}
	return ns, nil
}

func decodeNameMap(r io.Reader) (wasm.NameMap, error) {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	ret := make(wasm.NameMap, count)
	for i := range ret {
		idx, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, err
		}
		name, _, err := decodeUTF8(r)
		if err != nil {
			return nil, err
		}
		ret[i] = &wasm.NameAssoc{Index: idx, Name: name}
	}
	return ret, nil
}
