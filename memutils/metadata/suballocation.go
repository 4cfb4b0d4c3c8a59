package metadata

import "math"

// BlockAllocationHandle identifies a live allocation run by the index of its first block
type BlockAllocationHandle uint64

const (
	NoAllocation BlockAllocationHandle = math.MaxUint64
)

func handleForBlock(block int) BlockAllocationHandle {
	return BlockAllocationHandle(block)
}

func (h BlockAllocationHandle) block() int {
	return int(h)
}
