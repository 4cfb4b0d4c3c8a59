package heap

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/fixedheap/memutils"
)

// Bytes returns the backing memory of the run beginning at address. The slice spans the whole run,
// including the debug margin in debug builds. It fails with memutils.ErrInvalidArgument if the heap was
// created without CreateOptions.Memory.
func (h *Heap) Bytes(address Address) ([]byte, error) {
	if h.memory == nil {
		return nil, errors.Wrap(memutils.ErrInvalidArgument, "heap was created without backing memory")
	}

	size, err := h.AllocationSize(address)
	if err != nil {
		return nil, err
	}

	offset := int(address - h.base)
	return h.memory[offset : offset+size : offset+size], nil
}

// CheckCorruption verifies the corruption marker written after every live allocation. Markers only exist
// in builds with the debug_fixedheap build tag; otherwise this always succeeds. It fails with
// memutils.ErrInvalidArgument if the heap was created without CreateOptions.Memory, and with
// memutils.ErrCorruption if a marker was overwritten.
func (h *Heap) CheckCorruption() error {
	h.logger.Debug("Heap::CheckCorruption")

	if h.memory == nil {
		return errors.Wrap(memutils.ErrInvalidArgument, "heap was created without backing memory")
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.metadata.CheckCorruption(h.memory)
}
