// SPDX-License-Identifier: MIT
//
// Package fft implements a mixed-radix complex FFT for arbitrary lengths.
// Lengths are factored into radix 4, 2, 3, 5 and any remaining primes; the
// small radices have dedicated butterflies and everything else falls back
// to an O(p²) generic kernel. Transforms are unnormalized in both
// directions, so Inverse(Forward(x)) == N·x.
package fft

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"unsafe"

	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidSize = errors.New("fft: size must be positive")
	ErrBufferSize  = errors.New("fft: buffer shorter than transform size")
)

// parallelMinSize is the smallest transform that fans its top-level split
// out across goroutines. Below it the scheduling cost outweighs the work.
const parallelMinSize = 4096

// State is a precomputed plan for one transform size and direction. It is
// immutable after Alloc and may be shared by concurrent Execute calls.
type State struct {
	n        int
	inverse  bool
	factors  []int // radix, remaining length pairs
	twiddles []complex64
}

// Alloc builds the twiddle table and factorization for an n-point transform.
func Alloc(n int, inverse bool) (*State, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, n)
	}

	s := &State{
		n:        n,
		inverse:  inverse,
		factors:  factorize(n),
		twiddles: make([]complex64, n),
	}

	for k := range n {
		phase := -2 * math.Pi * float64(k) / float64(n)
		if inverse {
			phase = -phase
		}
		s.twiddles[k] = complex(float32(math.Cos(phase)), float32(math.Sin(phase)))
	}

	return s, nil
}

// Size returns the transform length.
func (s *State) Size() int { return s.n }

// Inverse reports whether the plan computes the inverse transform.
func (s *State) Inverse() bool { return s.inverse }

// Factors returns the radix decomposition, outermost stage first.
func (s *State) Factors() []int {
	radices := make([]int, 0, len(s.factors)/2)
	for i := 0; i < len(s.factors); i += 2 {
		radices = append(radices, s.factors[i])
	}
	return radices
}

// Execute transforms the first Size() values of in into out. in and out may
// share memory, fully or in part; the work is then staged through a
// temporary buffer.
func (s *State) Execute(in, out []complex64) error {
	if len(in) < s.n || len(out) < s.n {
		return ErrBufferSize
	}

	if overlaps(in, out, s.n) {
		tmp := make([]complex64, s.n)
		s.work(tmp, in, 1, s.factors)
		copy(out, tmp)
		return nil
	}

	s.work(out, in, 1, s.factors)
	return nil
}

// overlaps reports whether the first n elements of a and b share memory.
func overlaps(a, b []complex64, n int) bool {
	size := uintptr(n) * unsafe.Sizeof(complex64(0))
	pa := uintptr(unsafe.Pointer(unsafe.SliceData(a)))
	pb := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
	return pa < pb+size && pb < pa+size
}

// factorize splits n by trial division: 4 first, then 2, then odd numbers up
// to floor(sqrt(n)), finally whatever prime is left over. The result holds
// (radix, remaining) pairs.
func factorize(n int) []int {
	var factors []int
	p := 4
	floorSqrt := int(math.Floor(math.Sqrt(float64(n))))

	for {
		for n%p != 0 {
			switch p {
			case 4:
				p = 2
			case 2:
				p = 3
			default:
				p += 2
			}
			if p > floorSqrt {
				p = n
			}
		}
		n /= p
		factors = append(factors, p, n)
		if n <= 1 {
			break
		}
	}

	return factors
}

// work performs one decimation-in-time stage: it recurses into the p
// sub-transforms of length m, then combines them with a radix-p butterfly.
func (s *State) work(out, in []complex64, fstride int, factors []int) {
	p, m := factors[0], factors[1]

	switch {
	case fstride == 1 && p <= 5 && m != 1 && s.n >= parallelMinSize:
		var g errgroup.Group
		g.SetLimit(runtime.GOMAXPROCS(0))
		for q := range p {
			g.Go(func() error {
				s.work(out[q*m:], in[q*fstride:], fstride*p, factors[2:])
				return nil
			})
		}
		_ = g.Wait()
	case m == 1:
		for q := range p {
			out[q] = in[q*fstride]
		}
	default:
		for q := range p {
			s.work(out[q*m:], in[q*fstride:], fstride*p, factors[2:])
		}
	}

	switch p {
	case 2:
		s.butterfly2(out, fstride, m)
	case 3:
		s.butterfly3(out, fstride, m)
	case 4:
		s.butterfly4(out, fstride, m)
	case 5:
		s.butterfly5(out, fstride, m)
	default:
		s.butterflyGeneric(out, fstride, m, p)
	}
}
