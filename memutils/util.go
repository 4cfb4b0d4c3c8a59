package memutils

import (
	"math"

	cerrors "github.com/cockroachdb/errors"
)

type Number interface {
	~int | ~uint | ~uintptr
}

// CheckPow2 returns a PowerOfTwoError naming the offending value if number is not a power of two.
// Zero and negative values are never powers of two.
func CheckPow2[T Number](number T, name string) error {
	if number <= 0 || number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

// AlignUp rounds value up to the next multiple of alignment, which must be a power of two.
// Values that are already a multiple are returned unchanged. Values above the largest multiple of
// alignment that fits in an int saturate to that multiple.
func AlignUp(value int, alignment uint) int {
	largest := AlignDown(math.MaxInt, alignment)
	if value > largest {
		return largest
	}

	return (value + int(alignment) - 1) & int(^(alignment - 1))
}

// AlignDown rounds value down to a multiple of alignment, which must be a power of two.
func AlignDown(value int, alignment uint) int {
	return value & int(^(alignment - 1))
}

// IsAligned reports whether value is a multiple of alignment, which must be a power of two.
func IsAligned[T Number](value T, alignment T) bool {
	return value&(alignment-1) == 0
}
