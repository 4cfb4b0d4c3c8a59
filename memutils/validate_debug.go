//go:build debug_fixedheap

package memutils

import "encoding/binary"

const (
	// DebugMargin is the number of bytes reserved at the tail of every allocation run to hold a corruption
	// marker. Allocations are rounded up to whole blocks after the margin is added.
	DebugMargin int = 16
	// corruptionDetectionMagicValue is a 4-byte pattern that is copied across the DebugMargin bytes
	corruptionDetectionMagicValue uint32 = 0x7F84E666
)

// WriteMagicValue stamps an easy-to-identify marker across the DebugMargin bytes of data that begin at offset.
// This method no-ops unless the debug_fixedheap build tag is present.
func WriteMagicValue(data []byte, offset int) {
	margin := data[offset : offset+DebugMargin]
	for len(margin) >= 4 {
		binary.LittleEndian.PutUint32(margin, corruptionDetectionMagicValue)
		margin = margin[4:]
	}
}

// ValidateMagicValue verifies that the marker written by WriteMagicValue is still present at offset.
// This method always returns true unless the debug_fixedheap build tag is present.
func ValidateMagicValue(data []byte, offset int) bool {
	if offset < 0 || offset+DebugMargin > len(data) {
		return false
	}

	margin := data[offset : offset+DebugMargin]
	for len(margin) >= 4 {
		if binary.LittleEndian.Uint32(margin) != corruptionDetectionMagicValue {
			return false
		}
		margin = margin[4:]
	}

	return true
}

// DebugValidate will call Validate on the provided object and panics if any errors are returned. This
// method no-ops unless the debug_fixedheap build tag is present
func DebugValidate(validatable Validatable) {
	err := validatable.Validate()
	if err != nil {
		panic(err)
	}
}
