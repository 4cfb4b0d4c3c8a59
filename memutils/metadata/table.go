package metadata

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/fixedheap/memutils"
)

// HeapTable is the side table that records the occupancy of every block in a heap region, one entry per
// block. Its capacity is fixed at creation. A table is bound to exactly one BlockMetadata by Init and may
// not be shared afterward.
type HeapTable struct {
	entries []TableEntry
	bound   bool
}

// NewHeapTable creates a table with room for total blocks, all of them free. total must not be negative.
func NewHeapTable(total int) *HeapTable {
	return &HeapTable{
		entries: make([]TableEntry, total),
	}
}

// Len returns the number of entries in the table
func (t *HeapTable) Len() int {
	return len(t.entries)
}

// Entry returns the entry for the block at index, or memutils.ErrInvalidBlock if index is out of range
func (t *HeapTable) Entry(index int) (TableEntry, error) {
	if index < 0 || index >= len(t.entries) {
		return TableEntry{}, errors.Wrapf(memutils.ErrInvalidBlock, "block %d is outside of a table with %d entries", index, len(t.entries))
	}

	return t.entries[index], nil
}

// IsBound reports whether the table is already owned by a BlockMetadata
func (t *HeapTable) IsBound() bool {
	return t.bound
}

func (t *HeapTable) bind() error {
	if t.bound {
		return errors.Wrap(memutils.ErrInvalidArgument, "heap table is already bound to another heap")
	}

	t.bound = true
	return nil
}

func (t *HeapTable) reset() {
	for i := range t.entries {
		t.entries[i] = FreeEntry()
	}
}

// MarshalBinary encodes the table as one raw byte per entry, see TableEntry.Raw
func (t *HeapTable) MarshalBinary() ([]byte, error) {
	data := make([]byte, len(t.entries))
	for i, entry := range t.entries {
		data[i] = entry.Raw()
	}

	return data, nil
}

// UnmarshalBinary restores entries written by MarshalBinary. The data must hold exactly Len() entries,
// and a table that is already bound to a BlockMetadata cannot be overwritten. Nothing is modified if
// any entry fails to decode.
func (t *HeapTable) UnmarshalBinary(data []byte) error {
	if t.bound {
		return errors.Wrap(memutils.ErrInvalidArgument, "cannot overwrite a heap table that is bound to a heap")
	}

	if len(data) != len(t.entries) {
		return errors.Wrapf(memutils.ErrInvalidArgument, "snapshot holds %d entries, but the table holds %d", len(data), len(t.entries))
	}

	entries := make([]TableEntry, len(data))
	for i, raw := range data {
		entry, err := ParseTableEntry(raw)
		if err != nil {
			return errors.Wrapf(err, "failed to decode entry %d", i)
		}
		entries[i] = entry
	}

	copy(t.entries, entries)
	return nil
}
