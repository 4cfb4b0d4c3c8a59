package heap

// AllocateCallback is called after a run has been claimed. size is the size of the run in bytes, which is
// the request rounded up to whole blocks.
type AllocateCallback func(
	heap *Heap,
	address Address,
	size int,
	userData any,
)

// ReleaseCallback is called after a run has been returned to the heap
type ReleaseCallback func(
	heap *Heap,
	address Address,
	size int,
	userData any,
)

// CallbackOptions lets the consumer observe allocations and releases. Callbacks are invoked after the
// heap's mutex has been released, so they may call back into the heap.
type CallbackOptions struct {
	Allocate AllocateCallback
	Release  ReleaseCallback
	UserData any
}

type heapCallbacks struct {
	Callbacks *CallbackOptions
	Heap      *Heap
}

func (c *heapCallbacks) Allocate(address Address, size int) {
	if c.Callbacks != nil && c.Callbacks.Allocate != nil {
		c.Callbacks.Allocate(c.Heap, address, size, c.Callbacks.UserData)
	}
}

func (c *heapCallbacks) Release(address Address, size int) {
	if c.Callbacks != nil && c.Callbacks.Release != nil {
		c.Callbacks.Release(c.Heap, address, size, c.Callbacks.UserData)
	}
}
