package fft

import "math"

// RealPlan specializes the complex engine for real-valued input: the
// classic "pack two reals per complex sample" trick turns an N-point real
// forward transform into one N/2-point complex transform plus O(N)
// untangling, which is the real-input half-spectrum variant the dispatch
// table in package fft's doc comment calls for. Sizes whose half-length
// isn't itself representable by Plan (odd N, or N/2 with a prime factor
// above 5) fall back to a direct O(N^2) summation restricted to the N/2+1
// unique bins.
type RealPlan struct {
	n    int
	full *Plan // size n, used to reconstruct time-domain output on Inverse
	half *Plan // size n/2, used to accelerate Forward; nil if inapplicable
}

// NewReal builds a RealPlan for real sequences of length n.
func NewReal(n int) *RealPlan {
	rp := &RealPlan{n: n, full: New(n)}
	if n%2 == 0 {
		rp.half = New(n / 2)
	}
	return rp
}

// N returns the time-domain length this plan was built for.
func (rp *RealPlan) N() int { return rp.n }

// Bins returns the number of unique complex bins a forward transform
// produces: n/2 + 1.
func (rp *RealPlan) Bins() int { return rp.n/2 + 1 }

// Forward computes the real-input DFT, writing n/2+1 bins to out. DC and
// (for even n) the Nyquist bin are purely real per Hermitian symmetry.
func (rp *RealPlan) Forward(out []complex128, in []float64) {
	if rp.half == nil {
		directReal(out, in)
		return
	}
	half := rp.n / 2
	z := make([]complex128, half)
	for i := 0; i < half; i++ {
		z[i] = complex(in[2*i], in[2*i+1])
	}
	Z := make([]complex128, half)
	rp.half.Forward(Z, z)

	for k := 0; k <= half; k++ {
		zk := Z[k%half]
		km := ((half - k) % half + half) % half
		zc := complex(real(Z[km]), -imag(Z[km]))
		even := complex(0.5, 0) * (zk + zc)
		odd := complex(0, -0.5) * (zk - zc)
		phase := -2 * math.Pi * float64(k) / float64(rp.n)
		tw := complex(math.Cos(phase), math.Sin(phase))
		out[k] = even + odd*tw
	}
}

// directReal computes the n/2+1 unique real-input DFT bins by brute-force
// summation, used when n or n/2 isn't representable by the mixed-radix
// Plan.
func directReal(out []complex128, in []float64) {
	n := len(in)
	bins := n/2 + 1
	for k := 0; k < bins; k++ {
		var sum complex128
		for t := 0; t < n; t++ {
			phase := -2 * math.Pi * float64(k*t) / float64(n)
			sum += complex(in[t], 0) * complex(math.Cos(phase), math.Sin(phase))
		}
		out[k] = sum
	}
}

// Inverse reconstructs an n-sample real signal from its n/2+1-bin Hermitian
// half-spectrum in, writing the result to out (length n).
func (rp *RealPlan) Inverse(out []float64, in []complex128) {
	n := rp.n
	full := make([]complex128, n)
	half := n / 2
	for k := 0; k <= half && k < n; k++ {
		full[k] = in[k]
	}
	for k := half + 1; k < n; k++ {
		src := in[n-k]
		full[k] = complex(real(src), -imag(src))
	}
	complexOut := make([]complex128, n)
	if rp.full != nil {
		rp.full.Inverse(complexOut, full)
	} else {
		Direct(complexOut, full, false)
	}
	for i, c := range complexOut {
		out[i] = real(c)
	}
}
