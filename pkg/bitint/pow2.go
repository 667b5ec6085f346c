// SPDX-License-Identifier: MIT

// Package bitint holds integer helpers for choosing transform sizes: power
// of two rounding and prime smoothness checks for the mixed-radix FFT.
// Nothing here allocates.
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size, or 1 when size
// is not positive. Subtracting one first keeps exact powers unchanged.
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}
