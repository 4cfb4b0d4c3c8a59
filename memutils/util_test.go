package memutils_test

import (
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/fixedheap/memutils"
)

func TestCheckPow2(t *testing.T) {
	for _, value := range []int{1, 2, 64, 4096, 1 << 20} {
		require.NoError(t, memutils.CheckPow2(value, "value"))
	}

	for _, value := range []int{0, -4096, 3, 100, 4097} {
		err := memutils.CheckPow2(value, "value")
		require.Error(t, err)
		require.True(t, errors.Is(err, memutils.PowerOfTwoError))
	}
}

func TestAlignUp(t *testing.T) {
	require.Equal(t, 0, memutils.AlignUp(0, 4096))
	require.Equal(t, 4096, memutils.AlignUp(1, 4096))
	require.Equal(t, 4096, memutils.AlignUp(4096, 4096))
	require.Equal(t, 8192, memutils.AlignUp(4097, 4096))
	require.Equal(t, 12288, memutils.AlignUp(12288, 4096))

	for size := 0; size < 20000; size += 37 {
		aligned := memutils.AlignUp(size, 4096)
		require.GreaterOrEqual(t, aligned, size)
		require.Less(t, aligned-size, 4096)
		require.Equal(t, aligned, memutils.AlignUp(aligned, 4096))
	}
}

func TestAlignDown(t *testing.T) {
	require.Equal(t, 0, memutils.AlignDown(4095, 4096))
	require.Equal(t, 4096, memutils.AlignDown(4096, 4096))
	require.Equal(t, 8192, memutils.AlignDown(12287, 4096))
}

func TestIsAligned(t *testing.T) {
	require.True(t, memutils.IsAligned(uintptr(0x01000000), uintptr(4096)))
	require.False(t, memutils.IsAligned(uintptr(0x01000800), uintptr(4096)))
	require.True(t, memutils.IsAligned(0, 16))
	require.False(t, memutils.IsAligned(24, 16))
}

func TestAlignUpSaturates(t *testing.T) {
	largest := math.MaxInt &^ 4095

	require.Equal(t, largest, memutils.AlignUp(largest, 4096))
	require.Equal(t, largest, memutils.AlignUp(largest+1, 4096))
	require.Equal(t, largest, memutils.AlignUp(math.MaxInt, 4096))
	require.Equal(t, largest, memutils.AlignUp(memutils.AlignUp(math.MaxInt, 4096), 4096))
	require.Equal(t, math.MaxInt, memutils.AlignUp(math.MaxInt, 1))
}
