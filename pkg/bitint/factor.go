// SPDX-License-Identifier: MIT
package bitint

// LargestPrimeFactor returns the largest prime dividing n, or 1 for n <= 1.
func LargestPrimeFactor(n int) int {
	if n <= 1 {
		return 1
	}
	largest := 1
	for n%2 == 0 {
		largest = 2
		n /= 2
	}
	for p := 3; p*p <= n; p += 2 {
		for n%p == 0 {
			largest = p
			n /= p
		}
	}
	if n > 1 {
		largest = n
	}
	return largest
}

// IsSmooth reports whether every prime factor of n is at most limit.
// A 5-smooth frame size runs entirely on the specialised FFT butterflies.
func IsSmooth(n, limit int) bool {
	return n > 0 && LargestPrimeFactor(n) <= limit
}
