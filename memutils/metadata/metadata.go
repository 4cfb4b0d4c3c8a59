package metadata

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/fixedheap/memutils"
)

// BlockMetadata tracks which blocks of a heap region belong to live allocation runs. It owns the
// region's HeapTable and is the only thing that writes to it. It knows nothing about addresses: runs are
// identified by block index, and byte sizes are derived from the block size.
type BlockMetadata interface {
	// Init binds the provided table to this metadata and marks every entry free. blockSize is the size in
	// bytes of each block and must be a power of two. Init fails without touching the table if the table
	// is already bound elsewhere.
	Init(table *HeapTable, blockSize int) error
	// Size retrieves the size in bytes of the region the table describes
	Size() int
	// BlockSize retrieves the size in bytes of a single block
	BlockSize() int
	// BlockCount retrieves the number of blocks in the table
	BlockCount() int

	// Validate performs internal consistency checks on the table and the metadata's counters. It walks
	// the entire table. When the implementation is functioning correctly, it should not be possible
	// for this method to return an error.
	Validate() error
	// AllocationCount returns the number of live allocation runs
	AllocationCount() int
	// FreeRegionsCount returns the number of maximal runs of free blocks
	FreeRegionsCount() int
	// FreeBlockCount returns the number of free blocks
	FreeBlockCount() int
	// SumFreeSize returns the number of free bytes in the region
	SumFreeSize() int
	// MayHaveFreeBlock is a fast check that returns false when a run of blockCount blocks certainly cannot
	// be found. It never produces false negatives, but may produce false positives when free blocks are
	// fragmented.
	MayHaveFreeBlock(blockCount int) bool
	// IsEmpty will return true if the table has no live allocation runs
	IsEmpty() bool
	// Entry returns the table entry for a single block
	Entry(block int) (TableEntry, error)

	// VisitAllRegions calls the provided callback once for each allocation run and each maximal free run,
	// in block order. Free runs are passed NoAllocation as their handle.
	VisitAllRegions(handleRegion func(handle BlockAllocationHandle, block int, blockCount int, userData any, free bool) error) error
	// AllocationListBegin retrieves the handle of the lowest live allocation, or NoAllocation if there are none
	AllocationListBegin() BlockAllocationHandle
	// FindNextAllocation accepts the handle of a live allocation and returns the handle of the next live
	// allocation in block order, or NoAllocation. It returns an error if allocHandle is not live.
	FindNextAllocation(allocHandle BlockAllocationHandle) (BlockAllocationHandle, error)
	// AllocationBlock returns the first block of a live allocation
	AllocationBlock(allocHandle BlockAllocationHandle) (int, error)
	// AllocationBlockCount walks the chain of a live allocation and returns its length in blocks
	AllocationBlockCount(allocHandle BlockAllocationHandle) (int, error)
	// AllocationUserData returns the userData value provided to Alloc for a live allocation
	AllocationUserData(allocHandle BlockAllocationHandle) (any, error)
	// SetAllocationUserData replaces the userData value of a live allocation
	SetAllocationUserData(allocHandle BlockAllocationHandle, userData any) error

	// AddDetailedStatistics sums this table's statistics into the provided memutils.DetailedStatistics
	AddDetailedStatistics(stats *memutils.DetailedStatistics)
	// AddStatistics sums this table's statistics into the provided memutils.Statistics
	AddStatistics(stats *memutils.Statistics)

	// Clear instantly frees all allocation runs
	Clear()
	// BlockJsonData populates a json object with summary information about the table
	BlockJsonData(json *jwriter.ObjectState)

	// CheckCorruption accepts the memory backing the region and verifies that the corruption marker at the
	// tail of every live run is intact. Markers are only written when the module is built with the
	// debug_fixedheap build tag, and it is the consumer's responsibility to write them after allocation
	// with memutils.WriteMagicValue. Without the build tag this method always succeeds, but it still walks
	// the table.
	CheckCorruption(blockData []byte) error

	// CreateAllocationRequest searches for a run of blockCount free blocks and returns an AllocationRequest
	// describing it. The boolean return is false if no such run exists, in which case nothing has changed.
	// A blockCount of zero never matches.
	CreateAllocationRequest(blockCount int) (bool, AllocationRequest, error)
	// Alloc commits an AllocationRequest, stamping the run's entries as taken. It returns an error if the
	// requested run is out of range or any of its blocks is no longer free.
	Alloc(request AllocationRequest, userData any) error

	// Free releases the run that begins at the provided handle. It returns memutils.ErrDoubleFree if the
	// block is already free and memutils.ErrInvalidBlock if the block is out of range or is not the first
	// block of a run. The table is not modified when an error is returned.
	Free(allocHandle BlockAllocationHandle) error
}

// BlockMetadataBase is a simple struct that provides geometry shared by BlockMetadata implementations
type BlockMetadataBase struct {
	size      int
	blockSize int
}

// NewBlockMetadata creates an uninitialized BlockMetadataBase
func NewBlockMetadata() BlockMetadataBase {
	return BlockMetadataBase{}
}

// Init records the geometry of the region
func (m *BlockMetadataBase) Init(blockCount int, blockSize int) {
	m.blockSize = blockSize
	m.size = blockCount * blockSize
}

// Size returns the size of the region in bytes
func (m *BlockMetadataBase) Size() int { return m.size }

// BlockSize returns the size of a single block in bytes
func (m *BlockMetadataBase) BlockSize() int { return m.blockSize }

// WriteBlockJson populates a json object with summary information about the region
func (m *BlockMetadataBase) WriteBlockJson(json *jwriter.ObjectState, unusedBytes, allocationCount, unusedRangeCount int) {
	json.Name("TotalBytes").Int(m.Size())
	json.Name("BlockSize").Int(m.BlockSize())
	json.Name("UnusedBytes").Int(unusedBytes)
	json.Name("Allocations").Int(allocationCount)
	json.Name("UnusedRanges").Int(unusedRangeCount)
}
