// Package leb128 implements the variable-length integer encoding used throughout the WebAssembly
// binary format for all lengths, indices, and immediate integers.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-int
package leb128

import (
	"errors"
	"io"
)

// encodeUnsigned is shared by EncodeUint32 and EncodeUint64: each appends 7 bits per byte, setting
// the continuation (high) bit on every byte but the last.
func encodeUnsigned(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			return out
		}
	}
}

// EncodeUint32 encodes v as unsigned LEB128.
func EncodeUint32(v uint32) []byte { return encodeUnsigned(uint64(v)) }

// EncodeUint64 encodes v as unsigned LEB128.
func EncodeUint64(v uint64) []byte { return encodeUnsigned(v) }

// encodeSigned is shared by EncodeInt32 and EncodeInt64. size is the bit-width of v (32 or 64);
// it is not read, as the loop stops once the remaining bits are all copies of the sign bit.
func encodeSigned(v int64, size int) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			out = append(out, b)
			return out
		}
		out = append(out, b|0x80)
	}
}

// EncodeInt32 encodes v as signed LEB128.
func EncodeInt32(v int32) []byte { return encodeSigned(int64(v), 32) }

// EncodeInt64 encodes v as signed LEB128.
func EncodeInt64(v int64) []byte { return encodeSigned(v, 64) }

var (
	// ErrOverflow32 means the encoded value does not fit in a 32-bit integer: more than 5 groups.
	ErrOverflow32 = errors.New("leb128: overflows 32-bit integer")
	// ErrOverflow33 means the encoded value does not fit in a 33-bit integer: more than 5 groups.
	ErrOverflow33 = errors.New("leb128: overflows 33-bit integer")
	// ErrOverflow64 means the encoded value does not fit in a 64-bit integer: more than 10 groups.
	ErrOverflow64 = errors.New("leb128: overflows 64-bit integer")
	// ErrInvalidByte means a continuation bit was seen but no subsequent byte was available.
	ErrInvalidByte = errors.New("leb128: invalid byte")
)

// LoadUint32 decodes an unsigned LEB128 uint32 from the head of buf, returning the value, the
// number of bytes consumed, and an error if the encoding overflows or the buffer ends early.
func LoadUint32(buf []byte) (uint32, uint64, error) {
	var result uint32
	var shift uint
	for i := 0; ; i++ {
		if i == 5 {
			return 0, 0, ErrOverflow32
		}
		if i >= len(buf) {
			return 0, 0, io.ErrUnexpectedEOF
		}
		b := buf[i]
		if i == 4 && b&0xf0 != 0 {
			// only the low 4 bits of the 5th byte may be set for a 32-bit value.
			return 0, 0, ErrOverflow32
		}
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, uint64(i + 1), nil
		}
		shift += 7
	}
}

// LoadUint64 decodes an unsigned LEB128 uint64 from the head of buf.
func LoadUint64(buf []byte) (uint64, uint64, error) {
	var result uint64
	var shift uint
	for i := 0; ; i++ {
		if i == 10 {
			return 0, 0, ErrOverflow64
		}
		if i >= len(buf) {
			return 0, 0, io.ErrUnexpectedEOF
		}
		b := buf[i]
		if i == 9 && b > 1 {
			return 0, 0, ErrOverflow64
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, uint64(i + 1), nil
		}
		shift += 7
	}
}

// LoadInt32 decodes a signed LEB128 int32 from the head of buf.
func LoadInt32(buf []byte) (int32, uint64, error) {
	v, n, err := loadSigned(buf, 32)
	return int32(v), n, err
}

// LoadInt64 decodes a signed LEB128 int64 from the head of buf.
func LoadInt64(buf []byte) (int64, uint64, error) {
	v, n, err := loadSigned(buf, 64)
	return v, n, err
}

// loadSigned implements sign-extending LEB128 decode for a size-bit signed integer (32 or 64),
// rejecting encodings whose unused high bits disagree with the sign.
func loadSigned(buf []byte, size uint) (int64, uint64, error) {
	var result int64
	var shift uint
	maxBytes := (size + 6) / 7
	var b byte
	var i int
	for i = 0; ; i++ {
		if uint(i) == maxBytes {
			if size == 32 {
				return 0, 0, ErrOverflow32
			}
			return 0, 0, ErrOverflow64
		}
		if i >= len(buf) {
			return 0, 0, io.ErrUnexpectedEOF
		}
		b = buf[i]
		if uint(i) == maxBytes-1 {
			// The last permitted byte: verify the unused high bits agree with the sign bit
			// that will be propagated (bit 6 of this byte), per the Wasm binary format.
			signExtendBits := byte(0x7f) &^ (byte(1)<<(size-uint(i)*7) - 1)
			if (b & 0x80) != 0 {
				return 0, 0, overflowErr(size)
			}
			masked := b & 0x7f
			if masked&signExtendBits != signExtendBits && masked&signExtendBits != 0 {
				return 0, 0, overflowErr(size)
			}
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 64 && (b&0x40) != 0 {
		result |= -1 << shift
	}
	return result, uint64(i + 1), nil
}

func overflowErr(size uint) error {
	if size == 32 {
		return ErrOverflow32
	}
	if size == 33 {
		return ErrOverflow33
	}
	return ErrOverflow64
}

// byteReader is the minimal interface needed to decode LEB128 one byte at a time without
// allocating, satisfied by *bytes.Reader and *bufio.Reader among others.
type byteReader interface {
	io.Reader
	io.ByteReader
}

// DecodeUint32 decodes an unsigned LEB128 uint32 from r, returning the value and the number of
// bytes consumed.
func DecodeUint32(r io.Reader) (uint32, uint64, error) {
	v, n, err := decodeUnsigned(r, 32)
	return uint32(v), n, err
}

// DecodeUint64 decodes an unsigned LEB128 uint64 from r.
func DecodeUint64(r io.Reader) (uint64, uint64, error) {
	return decodeUnsigned(r, 64)
}

func decodeUnsigned(r io.Reader, size uint) (uint64, uint64, error) {
	br, ok := r.(byteReader)
	maxBytes := uint64((size + 6) / 7)
	var result uint64
	var shift uint
	var n uint64
	for {
		if n == maxBytes {
			if size == 32 {
				return 0, 0, ErrOverflow32
			}
			return 0, 0, ErrOverflow64
		}
		b, err := readByte(r, br, ok)
		if err != nil {
			return 0, 0, err
		}
		n++
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, n, nil
		}
		shift += 7
	}
}

// DecodeInt32 decodes a signed LEB128 int32 from r.
func DecodeInt32(r io.Reader) (int32, uint64, error) {
	v, n, err := decodeSigned(r, 32)
	return int32(v), n, err
}

// DecodeInt64 decodes a signed LEB128 int64 from r.
func DecodeInt64(r io.Reader) (int64, uint64, error) {
	return decodeSigned(r, 64)
}

// DecodeInt33AsInt64 decodes a signed LEB128 value occupying at most 33 bits (the s33 encoding
// of block types) and sign-extends it into an int64.
func DecodeInt33AsInt64(r io.Reader) (int64, uint64, error) {
	return decodeSigned(r, 33)
}

func decodeSigned(r io.Reader, size uint) (int64, uint64, error) {
	br, ok := r.(byteReader)
	maxBytes := uint64((size + 6) / 7)
	var result int64
	var shift uint
	var n uint64
	var b byte
	for {
		if n == maxBytes {
			return 0, 0, overflowErr(size)
		}
		var err error
		b, err = readByte(r, br, ok)
		if err != nil {
			return 0, 0, err
		}
		n++
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 64 && (b&0x40) != 0 {
		result |= -1 << shift
	}
	return result, n, nil
}

func readByte(r io.Reader, br byteReader, ok bool) (byte, error) {
	if ok {
		return br.ReadByte()
	}
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, err
	}
	return buf[0], nil
}
