package leb128

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeUint32(t *testing.T) {
	for _, v := range []uint32{0, 1, 127, 128, 300, math.MaxUint32} {
		encoded := EncodeUint32(v)

		decoded, n, err := LoadUint32(encoded)
		require.NoError(t, err)
		require.Equal(t, v, decoded)
		require.Equal(t, uint64(len(encoded)), n)

		decoded, n, err = DecodeUint32(bytes.NewReader(encoded))
		require.NoError(t, err)
		require.Equal(t, v, decoded)
		require.Equal(t, uint64(len(encoded)), n)
	}
}

func TestEncodeDecodeInt32(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 63, -64, 64, -65, math.MaxInt32, math.MinInt32} {
		encoded := EncodeInt32(v)

		decoded, n, err := LoadInt32(encoded)
		require.NoError(t, err)
		require.Equal(t, v, decoded)
		require.Equal(t, uint64(len(encoded)), n)

		decoded, n, err = DecodeInt32(bytes.NewReader(encoded))
		require.NoError(t, err)
		require.Equal(t, v, decoded)
		require.Equal(t, uint64(len(encoded)), n)
	}
}

func TestEncodeDecodeInt64(t *testing.T) {
	for _, v := range []int64{0, 1, -1, math.MaxInt64, math.MinInt64} {
		encoded := EncodeInt64(v)

		decoded, n, err := LoadInt64(encoded)
		require.NoError(t, err)
		require.Equal(t, v, decoded)
		require.Equal(t, uint64(len(encoded)), n)

		decoded, n, err = DecodeInt64(bytes.NewReader(encoded))
		require.NoError(t, err)
		require.Equal(t, v, decoded)
		require.Equal(t, uint64(len(encoded)), n)
	}
}

func TestLoadUint32_errors(t *testing.T) {
	_, _, err := LoadUint32([]byte{0x80})
	require.Error(t, err)

	// 5 continuation bytes plus a terminator (6 bytes) overflows a 32-bit value.
	_, _, err = LoadUint32([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01})
	require.ErrorIs(t, err, ErrOverflow32)
}

func TestDecodeInt33AsInt64(t *testing.T) {
	encoded := EncodeInt32(-1)
	v, n, err := DecodeInt33AsInt64(bytes.NewReader(encoded))
	require.NoError(t, err)
	require.Equal(t, int64(-1), v)
	require.Equal(t, uint64(len(encoded)), n)
}
