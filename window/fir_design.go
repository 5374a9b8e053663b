package window

import "math"

// sinc is the normalized sinc function sin(pi*x)/(pi*x), with sinc(0) = 1.
func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// normalizeDC scales taps in place so that their sum (the DC gain) is 1.
func normalizeDC(taps []float64) {
	var sum float64
	for _, t := range taps {
		sum += t
	}
	if sum == 0 {
		return
	}
	inv := 1 / sum
	for i := range taps {
		taps[i] *= inv
	}
}

// FIRLowPass designs an (numTaps)-tap windowed-sinc low-pass filter with
// normalized cutoff cutoff (0, 0.5), where 0.5 is Nyquist. numTaps should be
// odd for a zero-phase (Type I linear-phase) design; even lengths are
// accepted but yield a half-sample group delay. The result is normalized to
// unit DC gain.
func FIRLowPass(numTaps int, cutoff float64, w Func) []float64 {
	taps := make([]float64, numTaps)
	m := float64(numTaps-1) / 2
	for i := range taps {
		x := float64(i) - m
		taps[i] = 2 * cutoff * sinc(2*cutoff*x)
	}
	Apply(taps, w)
	normalizeDC(taps)
	return taps
}

// FIRHighPass designs a high-pass filter by spectral inversion of a
// low-pass prototype: h_hp[n] = delta[n] - h_lp[n]. numTaps must be odd.
func FIRHighPass(numTaps int, cutoff float64, w Func) []float64 {
	lp := FIRLowPass(numTaps, cutoff, w)
	taps := make([]float64, numTaps)
	center := (numTaps - 1) / 2
	for i := range taps {
		taps[i] = -lp[i]
	}
	taps[center] += 1
	return taps
}

// FIRBandPass designs a band-pass filter passing [low, high] (normalized
// frequencies, 0 < low < high < 0.5) as the difference of two low-pass
// prototypes.
func FIRBandPass(numTaps int, low, high float64, w Func) []float64 {
	lpHigh := FIRLowPass(numTaps, high, w)
	lpLow := FIRLowPass(numTaps, low, w)
	taps := make([]float64, numTaps)
	for i := range taps {
		taps[i] = lpHigh[i] - lpLow[i]
	}
	return taps
}

// FIRBandStop designs a band-stop (notch) filter rejecting [low, high] via
// spectral inversion of a band-pass prototype. numTaps must be odd.
func FIRBandStop(numTaps int, low, high float64, w Func) []float64 {
	bp := FIRBandPass(numTaps, low, high, w)
	taps := make([]float64, numTaps)
	center := (numTaps - 1) / 2
	for i := range taps {
		taps[i] = -bp[i]
	}
	taps[center] += 1
	return taps
}
