package internalwasm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

var memTestCtx = context.Background()

func Test_MemoryPagesToBytesNum(t *testing.T) {
	for _, numPage := range []uint32{0, 1, 5, 10} {
		require.Equal(t, uint64(numPage)*MemoryPageSize, MemoryPagesToBytesNum(numPage))
	}
}

func Test_MemoryBytesNumToPages(t *testing.T) {
	for _, numBytes := range []uint32{0, MemoryPageSize * 1, MemoryPageSize * 10} {
		require.Equal(t, numBytes/MemoryPageSize, MemoryBytesNumToPages(uint64(numBytes)))
	}
}

func TestMemoryInstance_Grow_Size(t *testing.T) {
	t.Run("with max", func(t *testing.T) {
		max := uint32(10)
		m := &MemoryInstance{Max: &max, Buffer: make([]byte, 0)}
		n, ok := m.Grow(memTestCtx, 5)
		require.True(t, ok)
		require.Equal(t, uint32(0), n)
		require.Equal(t, uint32(5), m.Size(memTestCtx))

		n, ok = m.Grow(memTestCtx, 0)
		require.True(t, ok)
		require.Equal(t, uint32(5), n)
		require.Equal(t, uint32(5), m.Size(memTestCtx))

		n, ok = m.Grow(memTestCtx, 4)
		require.True(t, ok)
		require.Equal(t, uint32(5), n)
		require.Equal(t, uint32(9), m.Size(memTestCtx))

		// Growing past the max fails.
		_, ok = m.Grow(memTestCtx, 2)
		require.False(t, ok)
		require.Equal(t, uint32(9), m.Size(memTestCtx))

		// But growing exactly up to the max is still permitted.
		n, ok = m.Grow(memTestCtx, 1)
		require.True(t, ok)
		require.Equal(t, uint32(9), n)
		require.Equal(t, max, m.Size(memTestCtx))
	})
	t.Run("without max", func(t *testing.T) {
		m := &MemoryInstance{Buffer: make([]byte, 0)}
		n, ok := m.Grow(memTestCtx, 1)
		require.True(t, ok)
		require.Equal(t, uint32(0), n)
		require.Equal(t, uint32(1), m.Size(memTestCtx))
	})
}

func TestReadByte(t *testing.T) {
	mem := &MemoryInstance{Buffer: []byte{0, 0, 0, 0, 0, 0, 0, 16}, Min: 1}
	v, ok := mem.ReadByte(memTestCtx, 7)
	require.True(t, ok)
	require.Equal(t, byte(16), v)

	_, ok = mem.ReadByte(memTestCtx, 8)
	require.False(t, ok)

	_, ok = mem.ReadByte(memTestCtx, 9)
	require.False(t, ok)
}

func TestReadUint32Le(t *testing.T) {
	mem := &MemoryInstance{Buffer: []byte{0, 0, 0, 0, 16, 0, 0, 0}, Min: 1}
	v, ok := mem.ReadUint32Le(memTestCtx, 4)
	require.True(t, ok)
	require.Equal(t, uint32(16), v)

	_, ok = mem.ReadUint32Le(memTestCtx, 5)
	require.False(t, ok)

	_, ok = mem.ReadUint32Le(memTestCtx, 9)
	require.False(t, ok)
}

func TestWriteUint32Le(t *testing.T) {
	mem := &MemoryInstance{Buffer: make([]byte, 8), Min: 1}
	require.True(t, mem.WriteUint32Le(memTestCtx, 4, 16))
	require.Equal(t, []byte{0, 0, 0, 0, 16, 0, 0, 0}, mem.Buffer)
	require.False(t, mem.WriteUint32Le(memTestCtx, 5, 16))
	require.False(t, mem.WriteUint32Le(memTestCtx, 9, 16))
}
