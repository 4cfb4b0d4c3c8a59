package heap

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/fixedheap/heap/internal/utils"
	"github.com/vkngwrapper/fixedheap/memutils"
	"github.com/vkngwrapper/fixedheap/memutils/metadata"
	"golang.org/x/exp/slog"
)

// Heap is the descriptor of a fixed-block heap: it binds a heap table to the base address of the
// region the table describes. A Heap is created once with New and is never destroyed; independent heaps
// may coexist as long as each has its own table.
//
// Unless it was created with CreateHeapExternallySynchronized, a Heap may be used from multiple
// goroutines.
type Heap struct {
	logger *slog.Logger

	base            Address
	end             Address
	blockSize       int
	regionAlignment int
	memory          []byte

	mutex     *utils.OptionalMutex
	metadata  *metadata.FixedBlockMetadata
	callbacks heapCallbacks
}

// Base returns the address of the first byte of the region
func (h *Heap) Base() Address { return h.base }

// End returns the address one past the last byte of the region
func (h *Heap) End() Address { return h.end }

// BlockSize returns the size in bytes of a single block
func (h *Heap) BlockSize() int { return h.blockSize }

// RegionAlignment returns the alignment the region's bounds were validated against
func (h *Heap) RegionAlignment() int { return h.regionAlignment }

// Size returns the size of the region in bytes
func (h *Heap) Size() int { return h.metadata.Size() }

// BlockCount returns the number of blocks in the region
func (h *Heap) BlockCount() int { return h.metadata.BlockCount() }

// AlignUpper rounds size up to the next multiple of the block size. Sizes that are already a multiple,
// including 0, are returned unchanged. Sizes too large to round up saturate to the largest multiple of
// the block size that fits in an int.
func (h *Heap) AlignUpper(size int) int {
	return memutils.AlignUp(size, uint(h.blockSize))
}

// BlockToAddress returns the address of the first byte of a block
func (h *Heap) BlockToAddress(block int) Address {
	return h.base + Address(block*h.blockSize)
}

// AddressToBlock translates an address previously returned by Allocate back to its block index. The
// address is not checked: passing any other address produces a meaningless index. Use
// CheckedAddressToBlock for addresses that are not known to be good.
func (h *Heap) AddressToBlock(address Address) int {
	return int((address - h.base) / Address(h.blockSize))
}

// CheckedAddressToBlock translates an address to its block index, returning memutils.ErrInvalidBlock
// if the address lies outside the region or is not the first byte of a block.
func (h *Heap) CheckedAddressToBlock(address Address) (int, error) {
	if address < h.base || address >= h.end {
		return 0, errors.Wrapf(memutils.ErrInvalidBlock, "address %s is outside of the heap region [%s, %s)", address, h.base, h.end)
	}

	if !memutils.IsAligned(address-h.base, Address(h.blockSize)) {
		return 0, errors.Wrapf(memutils.ErrInvalidBlock, "address %s is not aligned to the block size %d", address, h.blockSize)
	}

	return h.AddressToBlock(address), nil
}

// Allocate claims the lowest run of free blocks that can hold size bytes and returns the address of its
// first byte. When no such run exists the returned error matches memutils.ErrOutOfMemory and the heap is
// unchanged. A size of 0 cannot be satisfied.
func (h *Heap) Allocate(size int) (Address, error) {
	return h.allocate(size, nil, false)
}

// AllocateWithUserData behaves like Allocate, and additionally attaches userData to the new allocation.
// It can be retrieved with AllocationUserData.
func (h *Heap) AllocateWithUserData(size int, userData any) (Address, error) {
	return h.allocate(size, userData, false)
}

// AllocateZeroed behaves like AllocateWithUserData, and additionally clears the backing memory of the
// whole run before returning. It fails with memutils.ErrInvalidArgument if the heap was created without
// CreateOptions.Memory.
func (h *Heap) AllocateZeroed(size int, userData any) (Address, error) {
	if h.memory == nil {
		return NullAddress, errors.Wrap(memutils.ErrInvalidArgument, "heap was created without backing memory")
	}

	return h.allocate(size, userData, true)
}

func (h *Heap) allocate(size int, userData any, zeroed bool) (Address, error) {
	h.logger.Debug("Heap::Allocate", slog.Int("Size", size), slog.Bool("Zeroed", zeroed))

	if size < 0 {
		return NullAddress, errors.Wrapf(memutils.ErrInvalidArgument, "cannot allocate %d bytes", size)
	}

	if size > h.Size() {
		return NullAddress, errors.Wrapf(memutils.ErrOutOfMemory, "requested %d bytes from a heap of %d bytes", size, h.Size())
	}

	blockCount := h.AlignUpper(size) / h.blockSize
	if blockCount > 0 && memutils.DebugMargin > 0 {
		blockCount = h.AlignUpper(size+memutils.DebugMargin) / h.blockSize
	}

	request, err := h.claimRun(blockCount, userData, zeroed)
	if err != nil {
		return NullAddress, errors.Wrapf(err, "failed to allocate %d bytes", size)
	}

	address := h.BlockToAddress(request.StartBlock)
	h.logger.Debug("    Allocated run",
		slog.String("Address", address.String()),
		slog.Int("StartBlock", request.StartBlock),
		slog.Int("BlockCount", request.BlockCount),
	)
	h.callbacks.Allocate(address, request.Size)

	return address, nil
}

// claimRun finds and commits a run of blockCount blocks under the heap mutex
func (h *Heap) claimRun(blockCount int, userData any, zeroed bool) (metadata.AllocationRequest, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	success, request, err := h.metadata.CreateAllocationRequest(blockCount)
	if err != nil {
		return request, err
	}

	if !success {
		return request, errors.Wrapf(memutils.ErrOutOfMemory, "no run of %d free blocks", blockCount)
	}

	err = h.metadata.Alloc(request, userData)
	if err != nil {
		return request, err
	}

	if h.memory != nil {
		start := request.StartBlock * h.blockSize
		end := start + request.Size
		if zeroed {
			clear(h.memory[start:end])
		}
		if memutils.DebugMargin > 0 {
			memutils.WriteMagicValue(h.memory, end-memutils.DebugMargin)
		}
	}

	return request, nil
}

// Release returns the run beginning at address to the heap. The returned error matches
// memutils.ErrInvalidBlock if the address does not begin a live allocation, or memutils.ErrDoubleFree if
// it was already released. The heap is unchanged when an error is returned.
func (h *Heap) Release(address Address) error {
	h.logger.Debug("Heap::Release", slog.String("Address", address.String()))

	block, err := h.CheckedAddressToBlock(address)
	if err != nil {
		return err
	}

	blockCount, err := h.releaseRun(block)
	if err != nil {
		return err
	}

	h.callbacks.Release(address, blockCount*h.blockSize)

	return nil
}

// releaseRun frees the run beginning at block under the heap mutex and returns its length in blocks
func (h *Heap) releaseRun(block int) (int, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	handle, err := h.handleForBlock(block)
	if err != nil {
		return 0, err
	}

	blockCount, err := h.metadata.AllocationBlockCount(handle)
	if err != nil {
		return 0, err
	}

	err = h.metadata.Free(handle)
	if err != nil {
		return 0, err
	}

	return blockCount, nil
}

// Clear releases every allocation at once. Release callbacks are not invoked.
func (h *Heap) Clear() {
	h.logger.Debug("Heap::Clear")

	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.metadata.Clear()
}

func (h *Heap) handleForBlock(block int) (metadata.BlockAllocationHandle, error) {
	handle := metadata.NoAllocation
	if block >= 0 {
		handle = metadata.BlockAllocationHandle(block)
	}

	_, err := h.metadata.AllocationBlock(handle)
	return handle, err
}

// Entry returns the table entry for the block at index
func (h *Heap) Entry(block int) (metadata.TableEntry, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.metadata.Entry(block)
}

// AllocationSize returns the size in bytes of the run beginning at address
func (h *Heap) AllocationSize(address Address) (int, error) {
	block, err := h.CheckedAddressToBlock(address)
	if err != nil {
		return 0, err
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	handle, err := h.handleForBlock(block)
	if err != nil {
		return 0, err
	}

	blockCount, err := h.metadata.AllocationBlockCount(handle)
	if err != nil {
		return 0, err
	}

	return blockCount * h.blockSize, nil
}

// AllocationUserData returns the user data attached to the allocation beginning at address
func (h *Heap) AllocationUserData(address Address) (any, error) {
	block, err := h.CheckedAddressToBlock(address)
	if err != nil {
		return nil, err
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	handle, err := h.handleForBlock(block)
	if err != nil {
		return nil, err
	}

	return h.metadata.AllocationUserData(handle)
}

// SetAllocationUserData replaces the user data attached to the allocation beginning at address
func (h *Heap) SetAllocationUserData(address Address, userData any) error {
	block, err := h.CheckedAddressToBlock(address)
	if err != nil {
		return err
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	handle, err := h.handleForBlock(block)
	if err != nil {
		return err
	}

	return h.metadata.SetAllocationUserData(handle, userData)
}

// VisitAllocations calls visit with the address and size in bytes of every live allocation, in address
// order. Iteration stops at the first error, which is returned.
func (h *Heap) VisitAllocations(visit func(address Address, size int, userData any) error) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.metadata.VisitAllRegions(
		func(handle metadata.BlockAllocationHandle, block int, blockCount int, userData any, free bool) error {
			if free {
				return nil
			}

			return visit(h.BlockToAddress(block), blockCount*h.blockSize, userData)
		})
}

// Validate performs internal consistency checks on the heap table
func (h *Heap) Validate() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.metadata.Validate()
}
