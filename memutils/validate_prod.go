//go:build !debug_fixedheap

package memutils

const (
	// DebugMargin is the number of bytes reserved at the tail of every allocation run to hold a corruption
	// marker. Allocations are rounded up to whole blocks after the margin is added.
	DebugMargin int = 0
)

// WriteMagicValue stamps an easy-to-identify marker across the DebugMargin bytes of data that begin at offset.
// This method no-ops unless the debug_fixedheap build tag is present.
func WriteMagicValue(data []byte, offset int) {
}

// ValidateMagicValue verifies that the marker written by WriteMagicValue is still present at offset.
// This method always returns true unless the debug_fixedheap build tag is present.
func ValidateMagicValue(data []byte, offset int) bool {
	return true
}

// DebugValidate will call Validate on the provided object and panics if any errors are returned. This
// method no-ops unless the debug_fixedheap build tag is present
func DebugValidate(validatable Validatable) {
}
