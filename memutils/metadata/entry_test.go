package metadata_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/fixedheap/memutils"
	"github.com/vkngwrapper/fixedheap/memutils/metadata"
)

func TestTableEntryRaw(t *testing.T) {
	require.Equal(t, uint8(0x00), metadata.FreeEntry().Raw())
	require.Equal(t, uint8(0x01), metadata.TakenEntry(0).Raw())
	require.Equal(t, uint8(0x41), metadata.TakenEntry(metadata.ChainFirst).Raw())
	require.Equal(t, uint8(0x81), metadata.TakenEntry(metadata.ChainHasNext).Raw())
	require.Equal(t, uint8(0xC1), metadata.TakenEntry(metadata.ChainFirst|metadata.ChainHasNext).Raw())
}

func TestTableEntryZeroValueIsFree(t *testing.T) {
	var entry metadata.TableEntry
	require.True(t, entry.IsFree())
	require.False(t, entry.IsFirst())
	require.False(t, entry.HasNext())
	require.Equal(t, metadata.FreeEntry(), entry)
}

func TestParseTableEntry(t *testing.T) {
	for _, raw := range []uint8{0x00, 0x01, 0x41, 0x81, 0xC1} {
		entry, err := metadata.ParseTableEntry(raw)
		require.NoError(t, err)
		require.Equal(t, raw, entry.Raw())
	}

	entry, err := metadata.ParseTableEntry(0xC1)
	require.NoError(t, err)
	require.Equal(t, metadata.OccupancyTaken, entry.Occupancy())
	require.True(t, entry.IsFirst())
	require.True(t, entry.HasNext())
}

func TestParseTableEntryRejects(t *testing.T) {
	testCases := map[string]uint8{
		"FreeWithFirst":   0x40,
		"FreeWithHasNext": 0x80,
		"UnknownType":     0x02,
		"UnknownTypeHigh": 0x0F,
		"UnknownFlag":     0x21,
		"ReservedFlag":    0x11,
	}

	for name, raw := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := metadata.ParseTableEntry(raw)
			require.Error(t, err)
			require.True(t, errors.Is(err, memutils.ErrInvalidArgument))
		})
	}
}

func TestTableEntryString(t *testing.T) {
	require.Equal(t, "Free", metadata.FreeEntry().String())
	require.Equal(t, "Taken(None)", metadata.TakenEntry(0).String())
	require.Equal(t, "Taken(ChainFirst|ChainHasNext)", metadata.TakenEntry(metadata.ChainFirst|metadata.ChainHasNext).String())
}
