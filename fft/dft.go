package fft

import "math"

// Direct computes the forward or inverse DFT by brute-force O(N^2)
// summation, the fallback the dispatch table uses for sizes whose
// factorization contains a prime greater than 5 (New returns nil for those).
func Direct(out, in []complex128, forward bool) {
	n := len(in)
	sign := -1.0
	if !forward {
		sign = 1.0
	}
	for k := 0; k < n; k++ {
		var sum complex128
		for t := 0; t < n; t++ {
			phase := sign * 2 * math.Pi * float64(k*t) / float64(n)
			sum += in[t] * complex(math.Cos(phase), math.Sin(phase))
		}
		out[k] = sum
	}
	if !forward {
		scale := 1 / float64(n)
		for i := range out {
			out[i] *= complex(scale, 0)
		}
	}
}

// Frequencies fills out[i] with the center frequency (Hz) of FFT bin i for
// a transform of size n sampled at sampleRateHz, i.e. i*sampleRateHz/n.
func Frequencies(out []float64, n int, sampleRateHz float64) {
	for i := range out {
		out[i] = float64(i) * sampleRateHz / float64(n)
	}
}
