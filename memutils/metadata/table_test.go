package metadata_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/fixedheap/memutils"
	"github.com/vkngwrapper/fixedheap/memutils/metadata"
)

func TestHeapTableEntryBounds(t *testing.T) {
	table := metadata.NewHeapTable(4)
	require.Equal(t, 4, table.Len())
	require.False(t, table.IsBound())

	for i := 0; i < 4; i++ {
		entry, err := table.Entry(i)
		require.NoError(t, err)
		require.True(t, entry.IsFree())
	}

	_, err := table.Entry(-1)
	require.True(t, errors.Is(err, memutils.ErrInvalidBlock))

	_, err = table.Entry(4)
	require.True(t, errors.Is(err, memutils.ErrInvalidBlock))
}

func TestHeapTableSnapshot(t *testing.T) {
	source := metadata.NewHeapTable(6)
	fixed := metadata.NewFixedBlockMetadata()
	require.NoError(t, fixed.Init(source, 4096))

	success, request, err := fixed.CreateAllocationRequest(3)
	require.NoError(t, err)
	require.True(t, success)
	require.NoError(t, fixed.Alloc(request, nil))

	snapshot, err := source.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, []byte{0xC1, 0x81, 0x01, 0x00, 0x00, 0x00}, snapshot)

	restored := metadata.NewHeapTable(6)
	require.NoError(t, restored.UnmarshalBinary(snapshot))

	for i := 0; i < 6; i++ {
		expected, err := source.Entry(i)
		require.NoError(t, err)
		actual, err := restored.Entry(i)
		require.NoError(t, err)
		require.Equal(t, expected, actual)
	}
}

func TestHeapTableUnmarshalRejects(t *testing.T) {
	table := metadata.NewHeapTable(3)

	err := table.UnmarshalBinary([]byte{0x00, 0x00})
	require.True(t, errors.Is(err, memutils.ErrInvalidArgument))

	err = table.UnmarshalBinary([]byte{0xC1, 0x01, 0x40})
	require.True(t, errors.Is(err, memutils.ErrInvalidArgument))

	// A failed decode leaves the table untouched
	entry, err := table.Entry(0)
	require.NoError(t, err)
	require.True(t, entry.IsFree())

	fixed := metadata.NewFixedBlockMetadata()
	require.NoError(t, fixed.Init(table, 4096))
	err = table.UnmarshalBinary([]byte{0x00, 0x00, 0x00})
	require.True(t, errors.Is(err, memutils.ErrInvalidArgument))
}

func TestHeapTableCannotBeShared(t *testing.T) {
	table := metadata.NewHeapTable(4)

	first := metadata.NewFixedBlockMetadata()
	require.NoError(t, first.Init(table, 4096))
	require.True(t, table.IsBound())

	success, request, err := first.CreateAllocationRequest(2)
	require.NoError(t, err)
	require.True(t, success)
	require.NoError(t, first.Alloc(request, nil))

	second := metadata.NewFixedBlockMetadata()
	err = second.Init(table, 4096)
	require.True(t, errors.Is(err, memutils.ErrInvalidArgument))

	// The failed bind must not have reset the first owner's entries
	entry, err := table.Entry(0)
	require.NoError(t, err)
	require.True(t, entry.IsFirst())
	require.NoError(t, first.Validate())
}
