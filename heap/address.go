package heap

import "fmt"

// Address is a location within the address space a heap manages. Addresses handed out by a Heap are
// always the first byte of a block.
type Address uintptr

// NullAddress is returned alongside errors from allocation
const NullAddress Address = 0

func (a Address) String() string {
	return fmt.Sprintf("0x%08x", uintptr(a))
}
