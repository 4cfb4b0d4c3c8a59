package metadata

// AllocationRequest is a type returned from BlockMetadata.CreateAllocationRequest which indicates which run of
// blocks the metadata intends to claim. The consumer may prepare the memory behind the run and then commit the
// claim with BlockMetadata.Alloc.
type AllocationRequest struct {
	// BlockAllocationHandle is the handle the allocation will be known by once committed
	BlockAllocationHandle BlockAllocationHandle
	// StartBlock is the index of the first block of the run
	StartBlock int
	// BlockCount is the number of blocks in the run
	BlockCount int
	// Size is the number of bytes spanned by the run. It is a multiple of the block size, and may be
	// larger than what was originally requested.
	Size int
}
