package metadata

import (
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/fixedheap/memutils"
)

// FixedBlockMetadata is a BlockMetadata implementation that hands out runs of equal-size blocks from a
// HeapTable using a first-fit search. Runs carry no length field: the first block of a run is flagged
// ChainFirst, and every block but the last is flagged ChainHasNext, so freeing a run walks the flags
// forward from its first block.
type FixedBlockMetadata struct {
	BlockMetadataBase

	table      *HeapTable
	allocCount int
	freeBlocks int
	userData   *swiss.Map[BlockAllocationHandle, any]
}

var _ BlockMetadata = &FixedBlockMetadata{}

// NewFixedBlockMetadata creates a FixedBlockMetadata. Until it is bound to a table with Init it behaves
// as a table of zero blocks: nothing can be allocated and Validate reports that it is uninitialized.
// The zero value of FixedBlockMetadata is not usable; always construct it with this function.
func NewFixedBlockMetadata() *FixedBlockMetadata {
	return &FixedBlockMetadata{
		BlockMetadataBase: NewBlockMetadata(),
		table:             &HeapTable{},
	}
}

// Init binds the provided table to this metadata and marks every entry free. blockSize is the size in
// bytes of each block and must be a power of two. Init fails without touching the table if the table
// is already bound elsewhere.
func (m *FixedBlockMetadata) Init(table *HeapTable, blockSize int) error {
	if table == nil {
		return errors.Wrap(memutils.ErrInvalidArgument, "heap table cannot be nil")
	}
	if err := memutils.CheckPow2(blockSize, "blockSize"); err != nil {
		return errors.Mark(err, memutils.ErrInvalidArgument)
	}
	if err := table.bind(); err != nil {
		return err
	}

	m.BlockMetadataBase.Init(table.Len(), blockSize)
	m.table = table
	m.table.reset()
	m.allocCount = 0
	m.freeBlocks = table.Len()
	m.userData = swiss.NewMap[BlockAllocationHandle, any](42)

	return nil
}

// BlockCount retrieves the number of blocks in the table
func (m *FixedBlockMetadata) BlockCount() int {
	return m.table.Len()
}

// AllocationCount returns the number of live allocation runs
func (m *FixedBlockMetadata) AllocationCount() int {
	return m.allocCount
}

// FreeBlockCount returns the number of free blocks
func (m *FixedBlockMetadata) FreeBlockCount() int {
	return m.freeBlocks
}

// SumFreeSize returns the number of free bytes in the region
func (m *FixedBlockMetadata) SumFreeSize() int {
	return m.freeBlocks * m.BlockSize()
}

// IsEmpty will return true if the table has no live allocation runs
func (m *FixedBlockMetadata) IsEmpty() bool {
	return m.allocCount == 0
}

// MayHaveFreeBlock returns false when fewer than blockCount blocks are free in total
func (m *FixedBlockMetadata) MayHaveFreeBlock(blockCount int) bool {
	return blockCount > 0 && m.freeBlocks >= blockCount
}

// Entry returns the table entry for a single block
func (m *FixedBlockMetadata) Entry(block int) (TableEntry, error) {
	return m.table.Entry(block)
}

// FreeRegionsCount returns the number of maximal runs of free blocks. It walks the entire table.
func (m *FixedBlockMetadata) FreeRegionsCount() int {
	var count int
	inRun := false
	for _, entry := range m.table.entries {
		if entry.IsFree() && !inRun {
			count++
		}
		inRun = entry.IsFree()
	}

	return count
}

// Validate performs internal consistency checks on the table and the metadata's counters. It walks
// the entire table.
func (m *FixedBlockMetadata) Validate() error {
	if m.userData == nil {
		return errors.New("metadata has not been initialized")
	}

	if m.Size() != m.table.Len()*m.BlockSize() {
		return errors.Newf("metadata reports a size of %d, but the table holds %d blocks of %d bytes", m.Size(), m.table.Len(), m.BlockSize())
	}

	var allocCount, freeBlocks int
	previousHasNext := false
	for block, entry := range m.table.entries {
		switch {
		case entry.IsFree():
			if previousHasNext {
				return errors.Newf("block %d is free, but the previous block claims its run continues", block)
			}
			if entry.Chain() != 0 {
				return errors.Newf("block %d is free, but carries chain flags %s", block, entry.Chain())
			}
			freeBlocks++
		case entry.IsFirst():
			if previousHasNext {
				return errors.Newf("block %d begins a run, but the previous block claims its run continues", block)
			}
			if _, ok := m.userData.Get(handleForBlock(block)); !ok {
				return errors.Newf("run beginning at block %d has no allocation record", block)
			}
			allocCount++
		default:
			if !previousHasNext {
				return errors.Newf("block %d is taken, but neither begins a run nor continues the previous one", block)
			}
		}

		previousHasNext = entry.HasNext()
	}

	if previousHasNext {
		return errors.New("the final block of the table claims its run continues past the end of the table")
	}

	if allocCount != m.allocCount {
		return errors.Newf("counted %d runs in the table, but metadata indicates we should have %d", allocCount, m.allocCount)
	}

	if freeBlocks != m.freeBlocks {
		return errors.Newf("counted %d free blocks in the table, but metadata indicates we should have %d", freeBlocks, m.freeBlocks)
	}

	if m.userData.Count() != m.allocCount {
		return errors.Newf("metadata holds %d allocation records, but %d runs are live", m.userData.Count(), m.allocCount)
	}

	return nil
}

// CreateAllocationRequest searches for the lowest run of blockCount free blocks. The boolean return is
// false if no such run exists. A blockCount of zero never matches.
func (m *FixedBlockMetadata) CreateAllocationRequest(blockCount int) (bool, AllocationRequest, error) {
	if blockCount < 0 {
		return false, AllocationRequest{}, errors.Wrapf(memutils.ErrInvalidArgument, "cannot allocate %d blocks", blockCount)
	}
	if !m.MayHaveFreeBlock(blockCount) {
		return false, AllocationRequest{}, nil
	}
	memutils.DebugValidate(m)

	start, found := m.findFreeRun(blockCount)
	if !found {
		return false, AllocationRequest{}, nil
	}

	return true, AllocationRequest{
		BlockAllocationHandle: handleForBlock(start),
		StartBlock:            start,
		BlockCount:            blockCount,
		Size:                  blockCount * m.BlockSize(),
	}, nil
}

// findFreeRun performs the first-fit scan: the running count and start reset on every taken block, and
// the scan stops as soon as a run reaches blockCount.
func (m *FixedBlockMetadata) findFreeRun(blockCount int) (int, bool) {
	if blockCount <= 0 {
		return -1, false
	}

	runStart := -1
	runLength := 0
	for block, entry := range m.table.entries {
		if !entry.IsFree() {
			runStart = -1
			runLength = 0
			continue
		}

		if runStart < 0 {
			runStart = block
		}
		runLength++

		if runLength == blockCount {
			return runStart, true
		}
	}

	return -1, false
}

// Alloc commits an AllocationRequest, stamping the run's entries as taken. It returns an error if the
// requested run is out of range or any of its blocks is no longer free.
func (m *FixedBlockMetadata) Alloc(req AllocationRequest, userData any) error {
	if req.BlockCount < 1 {
		return errors.Wrapf(memutils.ErrInvalidArgument, "cannot commit a run of %d blocks", req.BlockCount)
	}

	if req.StartBlock < 0 || req.StartBlock+req.BlockCount > m.table.Len() {
		return errors.Wrapf(memutils.ErrInvalidBlock, "run of %d blocks at block %d does not fit in a table of %d blocks", req.BlockCount, req.StartBlock, m.table.Len())
	}

	for block := req.StartBlock; block < req.StartBlock+req.BlockCount; block++ {
		if !m.table.entries[block].IsFree() {
			return errors.Newf("attempted to allocate block %d, but it is already taken", block)
		}
	}

	m.markTaken(req.StartBlock, req.BlockCount)
	m.allocCount++
	m.freeBlocks -= req.BlockCount
	m.userData.Put(handleForBlock(req.StartBlock), userData)

	return nil
}

// markTaken is the only place chain flags are written
func (m *FixedBlockMetadata) markTaken(start, blockCount int) {
	last := start + blockCount - 1

	flags := ChainFirst
	for block := start; block <= last; block++ {
		if block != last {
			flags |= ChainHasNext
		}
		m.table.entries[block] = TakenEntry(flags)
		flags = 0
	}
}

// Free releases the run that begins at the provided handle. The table is not modified when an error
// is returned.
func (m *FixedBlockMetadata) Free(allocHandle BlockAllocationHandle) error {
	start, err := m.firstBlock(allocHandle)
	if err != nil {
		return err
	}

	freed := m.markFree(start)
	m.allocCount--
	m.freeBlocks += freed
	m.userData.Delete(allocHandle)

	return nil
}

// markFree walks the run forward from start, clearing each entry and continuing only if the entry it
// just cleared carried ChainHasNext. It returns the number of blocks cleared.
func (m *FixedBlockMetadata) markFree(start int) int {
	var freed int
	for block := start; block < m.table.Len(); block++ {
		entry := m.table.entries[block]
		m.table.entries[block] = FreeEntry()
		freed++

		if !entry.HasNext() {
			break
		}
	}

	return freed
}

// firstBlock resolves a handle to the first block of a live run
func (m *FixedBlockMetadata) firstBlock(allocHandle BlockAllocationHandle) (int, error) {
	if allocHandle == NoAllocation || allocHandle >= BlockAllocationHandle(m.table.Len()) {
		return 0, errors.Wrapf(memutils.ErrInvalidBlock, "handle %d is outside of a table with %d entries", uint64(allocHandle), m.table.Len())
	}

	block := allocHandle.block()
	entry := m.table.entries[block]
	if entry.IsFree() {
		return 0, errors.Wrapf(memutils.ErrDoubleFree, "block %d", block)
	}

	if !entry.IsFirst() {
		return 0, errors.Wrapf(memutils.ErrInvalidBlock, "block %d is in the middle of a run", block)
	}

	return block, nil
}

// runLength walks the chain flags from the first block of a run
func (m *FixedBlockMetadata) runLength(start int) int {
	length := 1
	for block := start; block < m.table.Len()-1 && m.table.entries[block].HasNext(); block++ {
		length++
	}

	return length
}

// AllocationBlock returns the first block of a live allocation
func (m *FixedBlockMetadata) AllocationBlock(allocHandle BlockAllocationHandle) (int, error) {
	return m.firstBlock(allocHandle)
}

// AllocationBlockCount walks the chain of a live allocation and returns its length in blocks
func (m *FixedBlockMetadata) AllocationBlockCount(allocHandle BlockAllocationHandle) (int, error) {
	start, err := m.firstBlock(allocHandle)
	if err != nil {
		return 0, err
	}

	return m.runLength(start), nil
}

// AllocationUserData returns the userData value provided to Alloc for a live allocation
func (m *FixedBlockMetadata) AllocationUserData(allocHandle BlockAllocationHandle) (any, error) {
	if _, err := m.firstBlock(allocHandle); err != nil {
		return nil, err
	}

	userData, _ := m.userData.Get(allocHandle)
	return userData, nil
}

// SetAllocationUserData replaces the userData value of a live allocation
func (m *FixedBlockMetadata) SetAllocationUserData(allocHandle BlockAllocationHandle, userData any) error {
	if _, err := m.firstBlock(allocHandle); err != nil {
		return err
	}

	m.userData.Put(allocHandle, userData)
	return nil
}

// AllocationListBegin retrieves the handle of the lowest live allocation, or NoAllocation if there are none
func (m *FixedBlockMetadata) AllocationListBegin() BlockAllocationHandle {
	return m.nextAllocationFrom(0)
}

// FindNextAllocation accepts the handle of a live allocation and returns the handle of the next live
// allocation in block order, or NoAllocation.
func (m *FixedBlockMetadata) FindNextAllocation(allocHandle BlockAllocationHandle) (BlockAllocationHandle, error) {
	start, err := m.firstBlock(allocHandle)
	if err != nil {
		return NoAllocation, err
	}

	return m.nextAllocationFrom(start + m.runLength(start)), nil
}

func (m *FixedBlockMetadata) nextAllocationFrom(block int) BlockAllocationHandle {
	for ; block < m.table.Len(); block++ {
		if m.table.entries[block].IsFirst() {
			return handleForBlock(block)
		}
	}

	return NoAllocation
}

// VisitAllRegions calls the provided callback once for each allocation run and each maximal free run,
// in block order. Free runs are passed NoAllocation as their handle.
func (m *FixedBlockMetadata) VisitAllRegions(handleRegion func(handle BlockAllocationHandle, block int, blockCount int, userData any, free bool) error) error {
	block := 0
	for block < m.table.Len() {
		if m.table.entries[block].IsFree() {
			start := block
			for block < m.table.Len() && m.table.entries[block].IsFree() {
				block++
			}

			err := handleRegion(NoAllocation, start, block-start, nil, true)
			if err != nil {
				return err
			}
			continue
		}

		handle := handleForBlock(block)
		length := m.runLength(block)
		userData, _ := m.userData.Get(handle)

		err := handleRegion(handle, block, length, userData, false)
		if err != nil {
			return err
		}
		block += length
	}

	return nil
}

// AddDetailedStatistics sums this table's statistics into the provided memutils.DetailedStatistics
func (m *FixedBlockMetadata) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	stats.BlockCount += m.BlockCount()
	stats.BlockBytes += m.Size()

	_ = m.VisitAllRegions(
		func(handle BlockAllocationHandle, block int, blockCount int, userData any, free bool) error {
			if free {
				stats.AddFreeRun(blockCount)
			} else {
				stats.AddAllocation(blockCount, m.BlockSize())
			}

			return nil
		})
}

// AddStatistics sums this table's statistics into the provided memutils.Statistics
func (m *FixedBlockMetadata) AddStatistics(stats *memutils.Statistics) {
	takenBlocks := m.BlockCount() - m.freeBlocks

	stats.BlockCount += m.BlockCount()
	stats.BlockBytes += m.Size()
	stats.AllocationCount += m.allocCount
	stats.AllocationBlockCount += takenBlocks
	stats.AllocationBytes += takenBlocks * m.BlockSize()
}

// Clear instantly frees all allocation runs
func (m *FixedBlockMetadata) Clear() {
	m.table.reset()
	m.allocCount = 0
	m.freeBlocks = m.table.Len()
	m.userData = swiss.NewMap[BlockAllocationHandle, any](42)
}

// BlockJsonData populates a json object with summary information about the table
func (m *FixedBlockMetadata) BlockJsonData(json *jwriter.ObjectState) {
	json.Name("TotalBlocks").Int(m.BlockCount())
	json.Name("FreeBlocks").Int(m.freeBlocks)
	m.WriteBlockJson(json, m.SumFreeSize(), m.allocCount, m.FreeRegionsCount())
}

// CheckCorruption accepts the memory backing the region and verifies that the corruption marker at the
// tail of every live run is intact.
func (m *FixedBlockMetadata) CheckCorruption(blockData []byte) error {
	if len(blockData) < m.Size() {
		return errors.Wrapf(memutils.ErrInvalidArgument, "corruption check was given %d bytes for a region of %d bytes", len(blockData), m.Size())
	}

	return m.VisitAllRegions(
		func(handle BlockAllocationHandle, block int, blockCount int, userData any, free bool) error {
			if free {
				return nil
			}

			markerOffset := (block+blockCount)*m.BlockSize() - memutils.DebugMargin
			if !memutils.ValidateMagicValue(blockData, markerOffset) {
				return errors.Wrapf(memutils.ErrCorruption, "after the run beginning at block %d", block)
			}

			return nil
		})
}
