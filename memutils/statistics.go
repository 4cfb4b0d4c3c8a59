package memutils

import "math"

// Statistics summarizes the occupancy of one or more heap tables
type Statistics struct {
	// BlockCount is the number of blocks managed
	BlockCount int
	// BlockBytes is the number of bytes spanned by those blocks
	BlockBytes int
	// AllocationCount is the number of live allocation runs
	AllocationCount int
	// AllocationBlockCount is the number of blocks that belong to live runs
	AllocationBlockCount int
	// AllocationBytes is the number of bytes spanned by live runs. Because requests are rounded up to whole
	// blocks, this is usually larger than the sum of the requested sizes.
	AllocationBytes int
}

func (s *Statistics) Clear() {
	s.BlockCount = 0
	s.BlockBytes = 0
	s.AllocationCount = 0
	s.AllocationBlockCount = 0
	s.AllocationBytes = 0
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.BlockCount += other.BlockCount
	s.BlockBytes += other.BlockBytes
	s.AllocationCount += other.AllocationCount
	s.AllocationBlockCount += other.AllocationBlockCount
	s.AllocationBytes += other.AllocationBytes
}

// FreeBlockCount is the number of blocks not claimed by any run
func (s *Statistics) FreeBlockCount() int {
	return s.BlockCount - s.AllocationBlockCount
}

// DetailedStatistics extends Statistics with the shape of allocations and free runs. Run sizes are measured
// in blocks. Call Clear before accumulating so that the minimums start from math.MaxInt.
type DetailedStatistics struct {
	Statistics
	FreeRunCount        int
	AllocationBlocksMin int
	AllocationBlocksMax int
	FreeRunBlocksMin    int
	FreeRunBlocksMax    int
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.FreeRunCount = 0
	s.AllocationBlocksMin = math.MaxInt
	s.AllocationBlocksMax = 0
	s.FreeRunBlocksMin = math.MaxInt
	s.FreeRunBlocksMax = 0
}

// AddFreeRun records a maximal run of free blocks
func (s *DetailedStatistics) AddFreeRun(blocks int) {
	s.FreeRunCount++

	if blocks < s.FreeRunBlocksMin {
		s.FreeRunBlocksMin = blocks
	}

	if blocks > s.FreeRunBlocksMax {
		s.FreeRunBlocksMax = blocks
	}
}

// AddAllocation records one live run of the given length in blocks, blockSize bytes each
func (s *DetailedStatistics) AddAllocation(blocks int, blockSize int) {
	s.AllocationCount++
	s.AllocationBlockCount += blocks
	s.AllocationBytes += blocks * blockSize

	if blocks < s.AllocationBlocksMin {
		s.AllocationBlocksMin = blocks
	}

	if blocks > s.AllocationBlocksMax {
		s.AllocationBlocksMax = blocks
	}
}

func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)
	s.FreeRunCount += other.FreeRunCount

	if other.FreeRunBlocksMin < s.FreeRunBlocksMin {
		s.FreeRunBlocksMin = other.FreeRunBlocksMin
	}

	if other.FreeRunBlocksMax > s.FreeRunBlocksMax {
		s.FreeRunBlocksMax = other.FreeRunBlocksMax
	}

	if other.AllocationBlocksMin < s.AllocationBlocksMin {
		s.AllocationBlocksMin = other.AllocationBlocksMin
	}

	if other.AllocationBlocksMax > s.AllocationBlocksMax {
		s.AllocationBlocksMax = other.AllocationBlocksMax
	}
}
