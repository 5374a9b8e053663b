// Package window supplies the pure, state-free design helpers that back the
// FIR/IIR coefficient generators: analysis window functions, windowed-sinc
// FIR designers, and bilinear-transform/cookbook IIR designers. None of
// these functions touch a Stage; they return plain coefficient vectors that
// the stage/ package binds at construction time, mirroring how the CELT
// layer this was grounded on keeps its window-table math (celt/window.go)
// separate from the MDCT state that consumes it.
package window

import "math"

// Func evaluates an analysis window of length n at tap i (0 <= i < n).
type Func func(i, n int) float64

// Rectangular is the identity window: w[i] = 1.
func Rectangular(_, _ int) float64 { return 1 }

// Hamming is the classic raised-cosine window, 0.54 - 0.46*cos(2*pi*i/(n-1)).
func Hamming(i, n int) float64 {
	if n <= 1 {
		return 1
	}
	return 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
}

// Hann is the raised-cosine window with zero endpoints.
func Hann(i, n int) float64 {
	if n <= 1 {
		return 1
	}
	return 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
}

// Blackman is a three-term raised-cosine window with lower sidelobes than
// Hamming/Hann at the cost of a wider main lobe.
func Blackman(i, n int) float64 {
	if n <= 1 {
		return 1
	}
	x := 2 * math.Pi * float64(i) / float64(n-1)
	return 0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2*x)
}

// Bartlett is a triangular window with zero endpoints.
func Bartlett(i, n int) float64 {
	if n <= 1 {
		return 1
	}
	m := float64(n-1) / 2
	return 1 - math.Abs((float64(i)-m)/m)
}

// Apply multiplies dst (length n, modified in place) by w.
func Apply(dst []float64, w Func) {
	n := len(dst)
	for i := range dst {
		dst[i] *= w(i, n)
	}
}

// Generate returns a freshly allocated window of length n.
func Generate(n int, w Func) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = w(i, n)
	}
	return out
}
