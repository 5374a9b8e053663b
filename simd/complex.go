package simd

import "math"

// Magnitude fills out[i] = |in[i]| for complex spectra, the vectorizable
// companion to DotProduct used by the FFT-family stages' magnitude output mode.
func Magnitude(in []complex128, out []float64) {
	for i, c := range in {
		out[i] = math.Hypot(real(c), imag(c))
	}
}

// Power fills out[i] = |in[i]|^2, avoiding the sqrt Magnitude needs.
func Power(in []complex128, out []float64) {
	for i, c := range in {
		r, im := real(c), imag(c)
		out[i] = r*r + im*im
	}
}

// Phase fills out[i] = atan2(imag(in[i]), real(in[i])).
func Phase(in []complex128, out []float64) {
	for i, c := range in {
		out[i] = math.Atan2(imag(c), real(c))
	}
}

// Butterfly computes the radix-2 Cooley-Tukey butterfly in place over
// paired slices a (even half) and b (odd half, already twiddle-scaled by
// the caller): a'=a+b, b'=a-b, vectorized over the pair. It is a
// standalone helper: the FFT engine in dsp/fft does not call it and
// computes its own butterflies inline.
func Butterfly(a, b []complex128) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		x, y := a[i], b[i]
		a[i] = x + y
		b[i] = x - y
	}
}
