package memutils

import "github.com/pkg/errors"

var (
	// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
	PowerOfTwoError error = errors.New("number must be a power of two")

	// ErrInvalidArgument is returned when a heap's geometry cannot be bound: misaligned addresses, a table whose
	// entry count disagrees with the region, unusable block sizes, and the like. A heap that failed to initialize
	// with this error must not be used.
	ErrInvalidArgument error = errors.New("invalid argument")
	// ErrOutOfMemory is returned when no run of free blocks is long enough to satisfy an allocation. The table
	// is left exactly as it was, so the caller may retry with a smaller request or after releasing memory.
	ErrOutOfMemory error = errors.New("out of memory")
	// ErrInvalidBlock is returned when an address or block index does not identify the first block of a live
	// allocation: it is outside the region, not block-aligned, or points into the middle of a run.
	ErrInvalidBlock error = errors.New("invalid block")
	// ErrDoubleFree is returned when releasing a block that is already free
	ErrDoubleFree error = errors.New("block is already free")
	// ErrCorruption is returned by corruption checks when a debug marker after an allocation was overwritten
	ErrCorruption error = errors.New("memory corruption detected")
)
