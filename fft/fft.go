// Copyright (c) 2003-2004, Mark Borgerding
// Lots of modifications by Jean-Marc Valin
// Copyright (c) 2005-2007, Xiph.Org Foundation
// Copyright (c) 2008, Xiph.Org Foundation, CSIRO
//
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
//
//   - Redistributions of source code must retain the above copyright notice,
//     this list of conditions and the following disclaimer.
//   - Redistributions in binary form must reproduce the above copyright notice,
//     this list of conditions and the following disclaimer in the
//     documentation and/or other materials provided with the distribution.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT OWNER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

// Package fft implements the mixed-radix Cooley-Tukey engine that backs the
// FFT/IFFT, RFFT/IRFFT, and STFT stages, plus a table-based DCT (dct.go)
// that does not use the FFT engine: complex transforms for sizes
// that factor into 2, 3, 4, and 5 use the cached-twiddle butterfly network
// below; everything else falls back to a direct O(N^2) summation (see
// dft.go). Real-input transforms (rfft.go) halve the work by packing two
// real sequences into one complex FFT of half the size.
package fft

import "math"

// Plan holds the precomputed twiddle factors, factorization, and
// digit-reversal permutation for one FFT size. Plans are immutable after
// New and safe for concurrent use by multiple goroutines (they hold no
// per-call scratch state); callers needing per-call scratch allocate it
// themselves and pass it in.
type Plan struct {
	n        int
	factors  []int // (radix, remaining-size) pairs, smaller radices first
	twiddles []complex128
	bitrev   []int
	fstride  []int
}

// New builds a Plan for transforms of length n. It returns nil if n's prime
// factorization contains a factor greater than 5 — callers should fall back
// to DFT (see Direct) for such sizes, matching the dispatch table's
// power-of-two/arbitrary-size split.
func New(n int) *Plan {
	if n <= 0 {
		return nil
	}
	p := &Plan{n: n}
	if !p.computeFactors() {
		return nil
	}
	p.twiddles = make([]complex128, n)
	for k := 0; k < n; k++ {
		phase := -2 * math.Pi * float64(k) / float64(n)
		p.twiddles[k] = complex(math.Cos(phase), math.Sin(phase))
	}
	p.computeBitrev()

	numFactors := len(p.factors) / 2
	p.fstride = make([]int, numFactors+1)
	p.fstride[0] = 1
	for i := 0; i < numFactors; i++ {
		p.fstride[i+1] = p.fstride[i] * p.factors[2*i]
	}
	return p
}

// N returns the transform size this plan was built for.
func (p *Plan) N() int { return p.n }

// computeFactors factors n into a sequence of radices from {4, 2, 3, 5},
// preferring 4 first to maximize use of the cheaper radix-4 butterfly, then
// reorders the sequence so smaller radices run first (better cache
// locality) and hoists a lone trailing radix-2 next to a radix-4 stage.
func (p *Plan) computeFactors() bool {
	n := p.n
	p.factors = nil
	radix := 4
	for n > 1 {
		for n%radix != 0 {
			switch radix {
			case 4:
				radix = 2
			case 2:
				radix = 3
			case 3:
				radix = 5
			default:
				radix += 2
			}
			if radix > 5 && radix*radix > n {
				radix = n
			}
		}
		if radix > 5 {
			return false
		}
		n /= radix
		p.factors = append(p.factors, radix, n)
	}

	numStages := len(p.factors) / 2
	for i := 0; i < numStages/2; i++ {
		j := numStages - 1 - i
		p.factors[2*i], p.factors[2*j] = p.factors[2*j], p.factors[2*i]
		p.factors[2*i+1], p.factors[2*j+1] = p.factors[2*j+1], p.factors[2*i+1]
	}
	if numStages >= 2 && p.factors[0] == 2 {
		for i := 0; i < numStages-1; i++ {
			if p.factors[2*i] == 2 && p.factors[2*(i+1)] == 4 {
				p.factors[2*i], p.factors[2*(i+1)] = p.factors[2*(i+1)], p.factors[2*i]
			}
		}
	}

	n = p.n
	for i := 0; i < numStages; i++ {
		n /= p.factors[2*i]
		p.factors[2*i+1] = n
	}
	return true
}

func (p *Plan) computeBitrev() {
	p.bitrev = make([]int, p.n)
	p.bitrevRecurse(0, 0, 1, p.factors)
}

func (p *Plan) bitrevRecurse(fout, idx, fstride int, factors []int) {
	if len(factors) < 2 {
		return
	}
	radix, m := factors[0], factors[1]
	step := fstride
	if m == 1 {
		for j := 0; j < radix; j++ {
			if idx >= 0 && idx < len(p.bitrev) {
				p.bitrev[idx] = fout + j
			}
			idx += step
		}
		return
	}
	for j := 0; j < radix; j++ {
		p.bitrevRecurse(fout, idx, fstride*radix, factors[2:])
		idx += step
		fout += m
	}
}

// Forward computes the unscaled DFT of in into out (both length N): X[k] =
// sum_n x[n]*exp(-2*pi*i*k*n/N). in and out must not overlap.
func (p *Plan) Forward(out, in []complex128) {
	for i := 0; i < p.n; i++ {
		out[p.bitrev[i]] = in[i]
	}
	p.butterflies(out)
}

// Inverse computes the scaled inverse DFT of in into out: x[n] = (1/N) *
// sum_k X[k]*exp(+2*pi*i*k*n/N), implemented as conjugate-forward-conjugate
// with a final 1/N scale, the same scaling Direct applies for its inverse.
func (p *Plan) Inverse(out, in []complex128) {
	for i := 0; i < p.n; i++ {
		out[p.bitrev[i]] = complex(real(in[i]), -imag(in[i]))
	}
	p.butterflies(out)
	scale := 1 / float64(p.n)
	for i := range out {
		out[i] = complex(real(out[i])*scale, -imag(out[i])*scale)
	}
}

func (p *Plan) butterflies(buf []complex128) {
	numFactors := len(p.factors) / 2
	if numFactors == 0 {
		return
	}
	m := p.factors[2*numFactors-1]
	for i := numFactors - 1; i >= 0; i-- {
		m2 := 1
		if i > 0 {
			m2 = p.factors[2*i-1]
		}
		// Stage i runs fstride[i] independent butterfly groups, each
		// spanning radix*m = m2 entries, so the groups tile all N samples.
		switch p.factors[2*i] {
		case 2:
			p.butterfly2(buf, p.fstride[i], m, p.fstride[i])
		case 3:
			p.butterfly3(buf, p.fstride[i], m, p.fstride[i])
		case 4:
			p.butterfly4(buf, p.fstride[i], m, p.fstride[i])
		case 5:
			p.butterfly5(buf, p.fstride[i], m, p.fstride[i])
		}
		m = m2
	}
}

func (p *Plan) butterfly2(buf []complex128, fstride, m, repeats int) {
	twIdx := 0
	for j := 0; j < m; j++ {
		tw := p.twiddles[twIdx]
		for i := 0; i < repeats; i++ {
			idx := j + m*2*i
			t := buf[idx+m] * tw
			buf[idx+m] = buf[idx] - t
			buf[idx] = buf[idx] + t
		}
		twIdx += fstride
	}
}

func (p *Plan) butterfly3(buf []complex128, fstride, m, repeats int) {
	m2 := 2 * m
	epi3i := imag(p.twiddles[fstride*m])
	mm := m * 3
	for i := 0; i < repeats; i++ {
		base := i * mm
		tw1, tw2 := 0, 0
		for k := 0; k < m; k++ {
			s1 := buf[base+m] * p.twiddles[tw1]
			s2 := buf[base+m2] * p.twiddles[tw2]
			s3 := s1 + s2
			s0 := s1 - s2
			tw1 += fstride
			tw2 += fstride * 2

			buf[base+m] = buf[base] - complex(0.5*real(s3), 0.5*imag(s3))
			s0 = complex(real(s0)*epi3i, imag(s0)*epi3i)
			buf[base] = buf[base] + s3
			buf[base+m2] = complex(real(buf[base+m])+imag(s0), imag(buf[base+m])-real(s0))
			buf[base+m] = complex(real(buf[base+m])-imag(s0), imag(buf[base+m])+real(s0))
			base++
		}
	}
}

func (p *Plan) butterfly4(buf []complex128, fstride, m, repeats int) {
	if m == 1 {
		for i := 0; i < repeats; i++ {
			b := i * 4
			s0 := buf[b] - buf[b+2]
			buf[b] = buf[b] + buf[b+2]
			s1 := buf[b+1] + buf[b+3]
			buf[b+2] = buf[b] - s1
			buf[b] = buf[b] + s1
			s1 = buf[b+1] - buf[b+3]
			buf[b+1] = complex(real(s0)+imag(s1), imag(s0)-real(s1))
			buf[b+3] = complex(real(s0)-imag(s1), imag(s0)+real(s1))
		}
		return
	}
	m2, m3 := 2*m, 3*m
	mm := m * 4
	for i := 0; i < repeats; i++ {
		base := i * mm
		tw1, tw2, tw3 := 0, 0, 0
		for j := 0; j < m; j++ {
			s0 := buf[base+m] * p.twiddles[tw1]
			s1 := buf[base+m2] * p.twiddles[tw2]
			s2 := buf[base+m3] * p.twiddles[tw3]

			s5 := buf[base] - s1
			buf[base] = buf[base] + s1
			s3 := s0 + s2
			s4 := s0 - s2
			buf[base+m2] = buf[base] - s3
			tw1 += fstride
			tw2 += fstride * 2
			tw3 += fstride * 3
			buf[base] = buf[base] + s3
			buf[base+m] = complex(real(s5)+imag(s4), imag(s5)-real(s4))
			buf[base+m3] = complex(real(s5)-imag(s4), imag(s5)+real(s4))
			base++
		}
	}
}

func (p *Plan) butterfly5(buf []complex128, fstride, m, repeats int) {
	const (
		yaR = 0.30901699437494742
		yaI = -0.95105651629515353
		ybR = -0.80901699437494742
		ybI = -0.58778525229247313
	)
	mm := m * 5
	for i := 0; i < repeats; i++ {
		b0 := i * mm
		b1, b2, b3, b4 := b0+m, b0+2*m, b0+3*m, b0+4*m
		tw1, tw2, tw3, tw4 := 0, 0, 0, 0
		for u := 0; u < m; u++ {
			scratch0 := buf[b0]
			s1 := buf[b1] * p.twiddles[tw1]
			s2 := buf[b2] * p.twiddles[tw2]
			s3 := buf[b3] * p.twiddles[tw3]
			s4 := buf[b4] * p.twiddles[tw4]

			s7 := s1 + s4
			s10 := s1 - s4
			s8 := s2 + s3
			s9 := s2 - s3

			buf[b0] = scratch0 + s7 + s8

			s0r, s0i := real(scratch0), imag(scratch0)
			s7r, s7i := real(s7), imag(s7)
			s8r, s8i := real(s8), imag(s8)
			s10r, s10i := real(s10), imag(s10)
			s9r, s9i := real(s9), imag(s9)

			s5r := s0r + yaR*s7r + ybR*s8r
			s5i := s0i + yaR*s7i + ybR*s8i
			s6r := yaI*s10i + ybI*s9i
			s6i := -(yaI*s10r + ybI*s9r)
			buf[b1] = complex(s5r-s6r, s5i-s6i)
			buf[b4] = complex(s5r+s6r, s5i+s6i)

			s11r := s0r + ybR*s7r + yaR*s8r
			s11i := s0i + ybR*s7i + yaR*s8i
			s12r := -ybI*s10i + yaI*s9i
			s12i := ybI*s10r - yaI*s9r
			buf[b2] = complex(s11r+s12r, s11i+s12i)
			buf[b3] = complex(s11r-s12r, s11i-s12i)

			b0++
			b1++
			b2++
			b3++
			b4++
			tw1 += fstride
			tw2 += fstride * 2
			tw3 += fstride * 3
			tw4 += fstride * 4
		}
	}
}
