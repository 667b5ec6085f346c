// SPDX-License-Identifier: MIT
package fft

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"slices"
	"testing"

	dspfft "github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

var roundTripSizes = []int{1, 2, 3, 5, 7, 8, 12, 30, 50, 97, 286, 1000, 1024, 4096, 4100}

func randomSignal(n int, seed uint64) []complex64 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	x := make([]complex64, n)
	for i := range x {
		x[i] = complex(float32(rng.Float64()*2-1), float32(rng.Float64()*2-1))
	}
	return x
}

func toComplex128(x []complex64) []complex128 {
	out := make([]complex128, len(x))
	for i, v := range x {
		out[i] = complex128(v)
	}
	return out
}

func mustAlloc(t testing.TB, n int, inverse bool) *State {
	t.Helper()
	s, err := Alloc(n, inverse)
	if err != nil {
		t.Fatalf("Alloc(%d, %v) error = %v", n, inverse, err)
	}
	return s
}

func TestAllocInvalidSize(t *testing.T) {
	for _, n := range []int{0, -1, -1024} {
		if _, err := Alloc(n, false); !errors.Is(err, ErrInvalidSize) {
			t.Errorf("Alloc(%d) error = %v, want ErrInvalidSize", n, err)
		}
	}
}

func TestFactors(t *testing.T) {
	tests := []struct {
		n    int
		want []int
	}{
		{1, []int{1}},
		{8, []int{4, 2}},
		{12, []int{4, 3}},
		{30, []int{2, 3, 5}},
		{50, []int{2, 5, 5}},
		{97, []int{97}},
		{286, []int{2, 11, 13}},
		{4096, []int{4, 4, 4, 4, 4, 4}},
	}

	for _, tt := range tests {
		s := mustAlloc(t, tt.n, false)
		if got := s.Factors(); !slices.Equal(got, tt.want) {
			t.Errorf("Factors(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, n := range roundTripSizes {
		t.Run(fmt.Sprintf("N=%d", n), func(t *testing.T) {
			forward := mustAlloc(t, n, false)
			inverse := mustAlloc(t, n, true)

			x := randomSignal(n, uint64(n))
			spectrum := make([]complex64, n)
			back := make([]complex64, n)

			if err := forward.Execute(x, spectrum); err != nil {
				t.Fatalf("forward Execute error = %v", err)
			}
			if err := inverse.Execute(spectrum, back); err != nil {
				t.Fatalf("inverse Execute error = %v", err)
			}

			tol := 1e-5*float64(n)*math.Log2(float64(n)+1) + 1e-4
			for i := range n {
				want := complex128(x[i]) * complex(float64(n), 0)
				if d := cmplx.Abs(complex128(back[i]) - want); d > tol {
					t.Fatalf("n=%d: back[%d] = %v, want %v (|diff| %g > %g)", n, i, back[i], want, d, tol)
				}
			}
		})
	}
}

func TestForwardMatchesReference(t *testing.T) {
	for _, n := range roundTripSizes {
		t.Run(fmt.Sprintf("N=%d", n), func(t *testing.T) {
			x := randomSignal(n, 7)
			got := make([]complex64, n)
			if err := mustAlloc(t, n, false).Execute(x, got); err != nil {
				t.Fatalf("Execute error = %v", err)
			}

			gonumRef := fourier.NewCmplxFFT(n).Coefficients(nil, toComplex128(x))
			dspRef := dspfft.FFT(toComplex128(x))

			tol := 1e-4 * math.Sqrt(float64(n)) * math.Log2(float64(n)+1)
			tol = math.Max(tol, 1e-4)
			for k := range n {
				if d := cmplx.Abs(complex128(got[k]) - gonumRef[k]); d > tol {
					t.Fatalf("n=%d: bin %d = %v, gonum %v (|diff| %g)", n, k, got[k], gonumRef[k], d)
				}
				if d := cmplx.Abs(complex128(got[k]) - dspRef[k]); d > tol {
					t.Fatalf("n=%d: bin %d = %v, go-dsp %v (|diff| %g)", n, k, got[k], dspRef[k], d)
				}
			}
		})
	}
}

func TestInverseMatchesConjugateReference(t *testing.T) {
	const n = 60
	x := randomSignal(n, 11)
	got := make([]complex64, n)
	if err := mustAlloc(t, n, true).Execute(x, got); err != nil {
		t.Fatalf("Execute error = %v", err)
	}

	// The unnormalized inverse is n·IFFT.
	ref := dspfft.IFFT(toComplex128(x))
	for k := range n {
		want := ref[k] * complex(float64(n), 0)
		if d := cmplx.Abs(complex128(got[k]) - want); d > 1e-3 {
			t.Fatalf("bin %d = %v, want %v", k, got[k], want)
		}
	}
}

func TestRealInputMagnitudeSymmetry(t *testing.T) {
	for _, n := range []int{8, 12, 30, 97, 1024} {
		x := make([]complex64, n)
		for i := range x {
			x[i] = complex(float32(math.Sin(2*math.Pi*3*float64(i)/float64(n))+0.25*math.Cos(float64(i))), 0)
		}
		out := make([]complex64, n)
		if err := mustAlloc(t, n, false).Execute(x, out); err != nil {
			t.Fatalf("Execute error = %v", err)
		}

		for k := 1; k < n/2; k++ {
			a := cmplx.Abs(complex128(out[k]))
			b := cmplx.Abs(complex128(out[n-k]))
			if math.Abs(a-b) > 1e-3 {
				t.Errorf("n=%d: |X[%d]|=%f != |X[%d]|=%f", n, k, a, n-k, b)
			}
		}
	}
}

func TestExecuteInPlace(t *testing.T) {
	for _, n := range []int{12, 97, 4096} {
		s := mustAlloc(t, n, false)
		x := randomSignal(n, 3)

		want := make([]complex64, n)
		if err := s.Execute(x, want); err != nil {
			t.Fatalf("Execute error = %v", err)
		}

		inPlace := slices.Clone(x)
		if err := s.Execute(inPlace, inPlace); err != nil {
			t.Fatalf("in-place Execute error = %v", err)
		}

		for k := range n {
			if d := cmplx.Abs(complex128(inPlace[k] - want[k])); d > 1e-5 {
				t.Fatalf("n=%d: in-place bin %d = %v, want %v", n, k, inPlace[k], want[k])
			}
		}
	}
}

func TestExecutePartialOverlap(t *testing.T) {
	const n = 30
	s := mustAlloc(t, n, false)
	x := randomSignal(n, 5)

	want := make([]complex64, n)
	if err := s.Execute(x, want); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		in, outOff int
	}{
		{"Output Ahead", 0, n / 2},
		{"Output Behind", n / 2, 0},
		{"Off By One", 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]complex64, 2*n)
			in := buf[tt.in : tt.in+n]
			copy(in, x)
			out := buf[tt.outOff : tt.outOff+n]

			if err := s.Execute(in, out); err != nil {
				t.Fatal(err)
			}
			for k := range n {
				if d := cmplx.Abs(complex128(out[k] - want[k])); d > 1e-5 {
					t.Fatalf("bin %d = %v, want %v", k, out[k], want[k])
				}
			}
		})
	}
}

func TestOverlaps(t *testing.T) {
	buf := make([]complex64, 16)
	tests := []struct {
		name string
		a, b []complex64
		want bool
	}{
		{"Same", buf[:8], buf[:8], true},
		{"Partial", buf[:8], buf[4:12], true},
		{"Adjacent", buf[:8], buf[8:], false},
		{"Separate", buf[:8], make([]complex64, 8), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := overlaps(tt.a, tt.b, 8); got != tt.want {
				t.Errorf("overlaps() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExecuteShortBuffer(t *testing.T) {
	s := mustAlloc(t, 16, false)
	out := make([]complex64, 16)
	if err := s.Execute(make([]complex64, 8), out); !errors.Is(err, ErrBufferSize) {
		t.Errorf("short input error = %v, want ErrBufferSize", err)
	}
	if err := s.Execute(make([]complex64, 16), out[:4]); !errors.Is(err, ErrBufferSize) {
		t.Errorf("short output error = %v, want ErrBufferSize", err)
	}
}

func TestImpulseIsFlat(t *testing.T) {
	const n = 30
	x := make([]complex64, n)
	x[0] = 1
	out := make([]complex64, n)
	if err := mustAlloc(t, n, false).Execute(x, out); err != nil {
		t.Fatalf("Execute error = %v", err)
	}
	for k, v := range out {
		if d := cmplx.Abs(complex128(v) - 1); d > 1e-6 {
			t.Errorf("bin %d = %v, want 1", k, v)
		}
	}
}

func TestExecuteHotPath(t *testing.T) {
	const n = 1024
	s := mustAlloc(t, n, false)
	in := randomSignal(n, 5)
	out := make([]complex64, n)

	_ = s.Execute(in, out)
	allocs := testing.AllocsPerRun(100, func() {
		_ = s.Execute(in, out)
	})

	if allocs > 0 {
		t.Errorf("Expected zero allocations in Execute hot path, got %.1f", allocs)
	}
}

func BenchmarkExecute(b *testing.B) {
	for _, n := range []int{1024, 4096, 44100} {
		s := mustAlloc(b, n, false)
		in := randomSignal(n, 1)
		out := make([]complex64, n)

		b.Run(fmt.Sprintf("N=%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				_ = s.Execute(in, out)
			}
		})
	}
}
