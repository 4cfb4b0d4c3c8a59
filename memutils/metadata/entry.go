package metadata

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/fixedheap/memutils"
)

// Occupancy indicates whether a block belongs to a live allocation run
type Occupancy uint8

const (
	OccupancyFree Occupancy = iota
	OccupancyTaken
)

var occupancyMapping = map[Occupancy]string{
	OccupancyFree:  "Free",
	OccupancyTaken: "Taken",
}

func (o Occupancy) String() string {
	return occupancyMapping[o]
}

// ChainFlags describe where a taken block sits within its allocation run
type ChainFlags uint8

const (
	// ChainFirst marks the block that begins an allocation run
	ChainFirst ChainFlags = 1 << iota
	// ChainHasNext marks a block whose run continues into the immediately following block. It is set on
	// every block of a run except the last.
	ChainHasNext

	chainFlagsMask = ChainFirst | ChainHasNext
)

var chainFlagsMapping = map[ChainFlags]string{
	ChainFirst:   "ChainFirst",
	ChainHasNext: "ChainHasNext",
}

func (f ChainFlags) String() string {
	if f == 0 {
		return "None"
	}

	var names []string
	for flag := ChainFirst; flag <= ChainHasNext; flag <<= 1 {
		if f&flag != 0 {
			names = append(names, chainFlagsMapping[flag])
		}
	}
	return strings.Join(names, "|")
}

// Raw byte layout of a table entry. The low nibble holds the occupancy type, the high bits the chain flags.
const (
	rawEntryFree    uint8 = 0x00
	rawEntryTaken   uint8 = 0x01
	rawEntryFirst   uint8 = 0x40
	rawEntryHasNext uint8 = 0x80
	rawEntryType    uint8 = 0x0F
)

// TableEntry is the occupancy record of a single block. Entries can only be built with FreeEntry and
// TakenEntry, so a free entry never carries chain flags. The zero value is a free entry.
type TableEntry struct {
	occupancy Occupancy
	chain     ChainFlags
}

// FreeEntry returns the entry for a block that belongs to no run
func FreeEntry() TableEntry {
	return TableEntry{}
}

// TakenEntry returns the entry for a block that belongs to a run, positioned within the run by flags
func TakenEntry(flags ChainFlags) TableEntry {
	return TableEntry{
		occupancy: OccupancyTaken,
		chain:     flags & chainFlagsMask,
	}
}

// ParseTableEntry decodes the raw byte produced by TableEntry.Raw. Unknown occupancy types, unknown bits
// and free entries carrying chain flags are rejected with memutils.ErrInvalidArgument.
func ParseTableEntry(raw uint8) (TableEntry, error) {
	chainBits := raw &^ rawEntryType
	if chainBits&^(rawEntryFirst|rawEntryHasNext) != 0 {
		return TableEntry{}, errors.Wrapf(memutils.ErrInvalidArgument, "table entry 0x%02x has unknown flag bits", raw)
	}

	switch raw & rawEntryType {
	case rawEntryFree:
		if chainBits != 0 {
			return TableEntry{}, errors.Wrapf(memutils.ErrInvalidArgument, "table entry 0x%02x is free but carries chain flags", raw)
		}
		return FreeEntry(), nil
	case rawEntryTaken:
		var flags ChainFlags
		if chainBits&rawEntryFirst != 0 {
			flags |= ChainFirst
		}
		if chainBits&rawEntryHasNext != 0 {
			flags |= ChainHasNext
		}
		return TakenEntry(flags), nil
	default:
		return TableEntry{}, errors.Wrapf(memutils.ErrInvalidArgument, "table entry 0x%02x has unknown type", raw)
	}
}

func (e TableEntry) Occupancy() Occupancy { return e.occupancy }
func (e TableEntry) Chain() ChainFlags { return e.chain }
func (e TableEntry) IsFree() bool { return e.occupancy == OccupancyFree }
func (e TableEntry) IsFirst() bool { return e.chain&ChainFirst != 0 }
func (e TableEntry) HasNext() bool { return e.chain&ChainHasNext != 0 }

// Raw packs the entry into a single byte
func (e TableEntry) Raw() uint8 {
	if e.IsFree() {
		return rawEntryFree
	}

	raw := rawEntryTaken
	if e.IsFirst() {
		raw |= rawEntryFirst
	}
	if e.HasNext() {
		raw |= rawEntryHasNext
	}
	return raw
}

func (e TableEntry) String() string {
	if e.IsFree() {
		return e.occupancy.String()
	}
	return e.occupancy.String() + "(" + e.chain.String() + ")"
}
