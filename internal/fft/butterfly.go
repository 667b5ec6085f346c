// SPDX-License-Identifier: MIT
package fft

// Butterfly kernels combine the p interleaved sub-transforms of length m that
// work has already written into out[0:p*m]. The twiddle for sub-transform q
// at position k is twiddles[q*k*fstride].

func (s *State) butterfly2(out []complex64, fstride, m int) {
	tw := 0
	for k := range m {
		t := out[k+m] * s.twiddles[tw]
		tw += fstride
		out[k+m] = out[k] - t
		out[k] += t
	}
}

func (s *State) butterfly3(out []complex64, fstride, m int) {
	epi3 := imag(s.twiddles[fstride*m])
	tw1, tw2 := 0, 0

	for k := range m {
		s1 := out[k+m] * s.twiddles[tw1]
		s2 := out[k+2*m] * s.twiddles[tw2]
		tw1 += fstride
		tw2 += 2 * fstride

		s3 := s1 + s2
		s0 := (s1 - s2) * complex(epi3, 0)

		out[k+m] = out[k] - s3*0.5
		out[k] += s3

		rot := complex(imag(s0), -real(s0))
		out[k+2*m] = out[k+m] + rot
		out[k+m] -= rot
	}
}

func (s *State) butterfly4(out []complex64, fstride, m int) {
	tw1, tw2, tw3 := 0, 0, 0

	for k := range m {
		s0 := out[k+m] * s.twiddles[tw1]
		s1 := out[k+2*m] * s.twiddles[tw2]
		s2 := out[k+3*m] * s.twiddles[tw3]
		tw1 += fstride
		tw2 += 2 * fstride
		tw3 += 3 * fstride

		s5 := out[k] - s1
		out[k] += s1
		s3 := s0 + s2
		s4 := s0 - s2

		out[k+2*m] = out[k] - s3
		out[k] += s3

		// Multiply s4 by -i (forward) or +i (inverse).
		rot := complex(imag(s4), -real(s4))
		if s.inverse {
			rot = -rot
		}
		out[k+m] = s5 + rot
		out[k+3*m] = s5 - rot
	}
}

func (s *State) butterfly5(out []complex64, fstride, m int) {
	ya := s.twiddles[fstride*m]
	yb := s.twiddles[fstride*2*m]
	yar, yai := complex(real(ya), 0), imag(ya)
	ybr, ybi := complex(real(yb), 0), imag(yb)

	for k := range m {
		i0, i1, i2, i3, i4 := k, k+m, k+2*m, k+3*m, k+4*m

		s0 := out[i0]
		s1 := out[i1] * s.twiddles[k*fstride]
		s2 := out[i2] * s.twiddles[2*k*fstride]
		s3 := out[i3] * s.twiddles[3*k*fstride]
		s4 := out[i4] * s.twiddles[4*k*fstride]

		s7 := s1 + s4
		s10 := s1 - s4
		s8 := s2 + s3
		s9 := s2 - s3

		out[i0] += s7 + s8

		s5 := s0 + s7*yar + s8*ybr
		s6 := complex(
			imag(s10)*yai+imag(s9)*ybi,
			-real(s10)*yai-real(s9)*ybi,
		)
		out[i1] = s5 - s6
		out[i4] = s5 + s6

		s11 := s0 + s7*ybr + s8*yar
		s12 := complex(
			-imag(s10)*ybi+imag(s9)*yai,
			real(s10)*ybi-real(s9)*yai,
		)
		out[i2] = s11 + s12
		out[i3] = s11 - s12
	}
}

func (s *State) butterflyGeneric(out []complex64, fstride, m, p int) {
	scratch := make([]complex64, p)

	for u := range m {
		k := u
		for q1 := range p {
			scratch[q1] = out[k]
			k += m
		}

		k = u
		for range p {
			tw := 0
			out[k] = scratch[0]
			for q := 1; q < p; q++ {
				tw += fstride * k
				if tw >= s.n {
					tw -= s.n
				}
				out[k] += scratch[q] * s.twiddles[tw]
			}
			k += m
		}
	}
}
