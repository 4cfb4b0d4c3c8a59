package heap_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/fixedheap/heap"
	"github.com/vkngwrapper/fixedheap/memutils"
)

func TestHeapBytes(t *testing.T) {
	memory := make([]byte, 4*testBlockSize)
	h, _ := newTestHeap(t, 4, heap.CreateOptions{Memory: memory})

	_, err := h.Allocate(runBytes(1))
	require.NoError(t, err)
	address, err := h.Allocate(runBytes(2))
	require.NoError(t, err)

	data, err := h.Bytes(address)
	require.NoError(t, err)
	require.Len(t, data, 2*testBlockSize)
	require.Equal(t, 2*testBlockSize, cap(data))

	data[0] = 0xAB
	require.Equal(t, byte(0xAB), memory[testBlockSize])

	_, err = h.Bytes(address + heap.Address(testBlockSize))
	require.True(t, errors.Is(err, memutils.ErrInvalidBlock))
}

func TestHeapBytesWithoutMemory(t *testing.T) {
	h, _ := newTestHeap(t, 4, heap.CreateOptions{})

	address, err := h.Allocate(runBytes(1))
	require.NoError(t, err)

	_, err = h.Bytes(address)
	require.True(t, errors.Is(err, memutils.ErrInvalidArgument))

	err = h.CheckCorruption()
	require.True(t, errors.Is(err, memutils.ErrInvalidArgument))
}

func TestHeapCheckCorruption(t *testing.T) {
	memory := make([]byte, 4*testBlockSize)
	h, _ := newTestHeap(t, 4, heap.CreateOptions{Memory: memory})

	address, err := h.Allocate(runBytes(2))
	require.NoError(t, err)
	require.NoError(t, h.CheckCorruption())

	data, err := h.Bytes(address)
	require.NoError(t, err)

	// Writes inside the requested size never touch the marker
	for i := 0; i < runBytes(2); i++ {
		data[i] = 0xFF
	}
	require.NoError(t, h.CheckCorruption())

	if memutils.DebugMargin > 0 {
		data[len(data)-1] = 0
		err = h.CheckCorruption()
		require.True(t, errors.Is(err, memutils.ErrCorruption))
	}
}

func TestHeapAllocateZeroed(t *testing.T) {
	memory := make([]byte, 4*testBlockSize)
	h, _ := newTestHeap(t, 4, heap.CreateOptions{Memory: memory})

	address, err := h.Allocate(runBytes(2))
	require.NoError(t, err)

	data, err := h.Bytes(address)
	require.NoError(t, err)
	for i := 0; i < runBytes(2); i++ {
		data[i] = 0xCD
	}
	require.NoError(t, h.Release(address))

	// A plain allocation of the same run hands back the stale bytes
	address, err = h.Allocate(runBytes(2))
	require.NoError(t, err)
	data, err = h.Bytes(address)
	require.NoError(t, err)
	require.Equal(t, byte(0xCD), data[0])
	require.NoError(t, h.Release(address))

	zeroed, err := h.AllocateZeroed(runBytes(2), "zeroed")
	require.NoError(t, err)
	require.Equal(t, address, zeroed)

	data, err = h.Bytes(zeroed)
	require.NoError(t, err)
	require.Equal(t, make([]byte, runBytes(2)), data[:runBytes(2)])
	require.NoError(t, h.CheckCorruption())

	userData, err := h.AllocationUserData(zeroed)
	require.NoError(t, err)
	require.Equal(t, "zeroed", userData)
}

func TestHeapAllocateZeroedWithoutMemory(t *testing.T) {
	h, table := newTestHeap(t, 4, heap.CreateOptions{})

	_, err := h.AllocateZeroed(runBytes(1), nil)
	require.True(t, errors.Is(err, memutils.ErrInvalidArgument))
	requireEntries(t, table, make([]byte, 4))
}
