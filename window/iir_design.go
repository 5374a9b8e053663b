package window

import "math"

// Coefficients is a Direct Form I IIR transfer function: b[]/a[], with
// a[0] always normalized to 1 (kept explicit here, unlike the runtime
// stage's implicit convention, because intermediate cascade steps need a
// real a[0] to normalize against).
type Coefficients struct {
	B []float64
	A []float64
}

// polyMul returns the coefficient vector of the product of two polynomials
// given in increasing-power order, i.e. p[0] + p[1]*z^-1 + p[2]*z^-2 + ...
func polyMul(p, q []float64) []float64 {
	out := make([]float64, len(p)+len(q)-1)
	for i, pv := range p {
		if pv == 0 {
			continue
		}
		for j, qv := range q {
			out[i+j] += pv * qv
		}
	}
	return out
}

// Cascade combines two IIR stages in series by convolving their numerator
// and denominator polynomials, then renormalizes so a[0] == 1.
func Cascade(x, y Coefficients) Coefficients {
	b := polyMul(x.B, y.B)
	a := polyMul(x.A, y.A)
	return normalize(Coefficients{B: b, A: a})
}

func normalize(c Coefficients) Coefficients {
	a0 := c.A[0]
	if a0 == 1 || a0 == 0 {
		return c
	}
	b := make([]float64, len(c.B))
	a := make([]float64, len(c.A))
	inv := 1 / a0
	for i, v := range c.B {
		b[i] = v * inv
	}
	for i, v := range c.A {
		a[i] = v * inv
	}
	return Coefficients{B: b, A: a}
}

// FirstOrderLowPass designs a one-pole low-pass with -3dB cutoff cutoffHz at
// sampleRateHz using the standard exponential-smoothing form
// y[n] = (1-k)*y[n-1] + k*x[n].
func FirstOrderLowPass(cutoffHz, sampleRateHz float64) Coefficients {
	k := oneWveCoeff(cutoffHz, sampleRateHz)
	return Coefficients{B: []float64{k}, A: []float64{1, -(1 - k)}}
}

// FirstOrderHighPass designs a one-pole high-pass as the complement of
// FirstOrderLowPass: y[n] = (1-k)*(y[n-1] + x[n] - x[n-1]).
func FirstOrderHighPass(cutoffHz, sampleRateHz float64) Coefficients {
	k := oneWveCoeff(cutoffHz, sampleRateHz)
	a1 := -(1 - k)
	return Coefficients{B: []float64{1 - k, -(1 - k)}, A: []float64{1, a1}}
}

func oneWveCoeff(cutoffHz, sampleRateHz float64) float64 {
	wc := 2 * math.Pi * cutoffHz / sampleRateHz
	return wc / (wc + 1)
}

// prewarp applies bilinear-transform frequency prewarping.
func prewarp(cutoffHz, sampleRateHz float64) float64 {
	return 2 * sampleRateHz * math.Tan(math.Pi*cutoffHz/sampleRateHz)
}

// ButterworthLowPass1 designs a first-order Butterworth low-pass via the
// bilinear transform of the analog prototype 1/(s/wc + 1).
func ButterworthLowPass1(cutoffHz, sampleRateHz float64) Coefficients {
	wc := prewarp(cutoffHz, sampleRateHz)
	k := 2 * sampleRateHz
	a0 := wc + k
	b0 := wc / a0
	b1 := wc / a0
	a1 := (wc - k) / a0
	return Coefficients{B: []float64{b0, b1}, A: []float64{1, a1}}
}

// ButterworthLowPass2 designs a second-order (maximally flat) Butterworth
// low-pass via the bilinear transform of 1/(s^2 + sqrt(2)*s + 1) scaled to
// cutoffHz.
func ButterworthLowPass2(cutoffHz, sampleRateHz float64) Coefficients {
	wc := prewarp(cutoffHz, sampleRateHz)
	k := 2 * sampleRateHz
	k2 := k * k
	wc2 := wc * wc
	sqrt2 := math.Sqrt2
	a0 := wc2 + sqrt2*wc*k + k2
	b0 := wc2 / a0
	b1 := 2 * wc2 / a0
	b2 := wc2 / a0
	a1 := (2*wc2 - 2*k2) / a0
	a2 := (wc2 - sqrt2*wc*k + k2) / a0
	return Coefficients{B: []float64{b0, b1, b2}, A: []float64{1, a1, a2}}
}

// ButterworthHighPass1 designs a first-order Butterworth high-pass.
func ButterworthHighPass1(cutoffHz, sampleRateHz float64) Coefficients {
	wc := prewarp(cutoffHz, sampleRateHz)
	k := 2 * sampleRateHz
	a0 := wc + k
	b0 := k / a0
	b1 := -k / a0
	a1 := (wc - k) / a0
	return Coefficients{B: []float64{b0, b1}, A: []float64{1, a1}}
}

// ButterworthHighPass2 designs a second-order Butterworth high-pass.
func ButterworthHighPass2(cutoffHz, sampleRateHz float64) Coefficients {
	wc := prewarp(cutoffHz, sampleRateHz)
	k := 2 * sampleRateHz
	k2 := k * k
	wc2 := wc * wc
	sqrt2 := math.Sqrt2
	a0 := wc2 + sqrt2*wc*k + k2
	b0 := k2 / a0
	b1 := -2 * k2 / a0
	b2 := k2 / a0
	a1 := (2*wc2 - 2*k2) / a0
	a2 := (wc2 - sqrt2*wc*k + k2) / a0
	return Coefficients{B: []float64{b0, b1, b2}, A: []float64{1, a1, a2}}
}

// ButterworthBandPass builds a band-pass filter by cascading a low-pass
// prototype at high (the upper edge) with a high-pass prototype at low (the
// lower edge), the standard polynomial-convolution cascade convention.
func ButterworthBandPass(lowHz, highHz, sampleRateHz float64) Coefficients {
	lp := ButterworthLowPass2(highHz, sampleRateHz)
	hp := ButterworthHighPass2(lowHz, sampleRateHz)
	return Cascade(lp, hp)
}

// ChebyshevLowPass designs a second-order Chebyshev Type-I low-pass with
// passband ripple rippleDB (> 0) via the bilinear transform.
func ChebyshevLowPass(cutoffHz, sampleRateHz, rippleDB float64) Coefficients {
	wc := prewarp(cutoffHz, sampleRateHz)
	k := 2 * sampleRateHz
	eps := math.Sqrt(math.Pow(10, rippleDB/10) - 1)
	v := math.Asinh(1/eps) / 2
	sinhV := math.Sinh(v)
	coshV := math.Cosh(v)
	// Poles of a 2-pole Chebyshev-I prototype at normalized frequency 1.
	realP := -sinhV * math.Sin(math.Pi/4)
	imagP := coshV * math.Cos(math.Pi/4)
	// (s - p)(s - conj(p)) = s^2 - 2*real(p)*s + |p|^2, scaled by cutoff wc.
	r0 := realP*realP + imagP*imagP
	b2a := wc * wc * r0
	a1a := -2 * realP * wc
	// Analog denominator: s^2 + a1a*s + b2a, gain chosen for DC normalization.
	a0 := b2a + a1a*k + k*k
	gain := b2a / a0
	b0 := gain
	b1 := 2 * gain
	b2 := gain
	a1 := (2*b2a - 2*k*k) / a0
	a2 := (b2a - a1a*k + k*k) / a0
	return Coefficients{B: []float64{b0, b1, b2}, A: []float64{1, a1, a2}}
}

// ChebyshevHighPass designs a Chebyshev Type-I high-pass by frequency
// mirroring: design the equivalent low-pass at the complementary cutoff
// (sampleRate/2 - cutoff) and substitute z^-1 -> -z^-1, which negates the
// odd-order numerator and denominator terms.
func ChebyshevHighPass(cutoffHz, sampleRateHz, rippleDB float64) Coefficients {
	lp := ChebyshevLowPass(sampleRateHz/2-cutoffHz, sampleRateHz, rippleDB)
	// z^-1 -> -z^-1 maps frequency w to pi-w, so the low-pass passband
	// [0, fs/2-cutoff] becomes the high-pass passband [cutoff, fs/2].
	b := []float64{lp.B[0], -lp.B[1], lp.B[2]}
	a := []float64{lp.A[0], -lp.A[1], lp.A[2]}
	return normalize(Coefficients{B: b, A: a})
}

// ChebyshevBandPass cascades a Chebyshev low-pass at high with a Chebyshev
// high-pass at low, mirroring ButterworthBandPass.
func ChebyshevBandPass(lowHz, highHz, sampleRateHz, rippleDB float64) Coefficients {
	lp := ChebyshevLowPass(highHz, sampleRateHz, rippleDB)
	hp := ChebyshevHighPass(lowHz, sampleRateHz, rippleDB)
	return Cascade(lp, hp)
}

// Audio EQ Cookbook biquads (Robert Bristow-Johnson), parameterized by
// center/corner frequency, Q, sample rate, and gain in dB.

func cookbookTrig(freqHz, sampleRateHz, q float64) (w0, alpha, cosW0 float64) {
	w0 = 2 * math.Pi * freqHz / sampleRateHz
	alpha = math.Sin(w0) / (2 * q)
	cosW0 = math.Cos(w0)
	return
}

// PeakingEQ designs a peaking (bell) equalizer biquad.
func PeakingEQ(freqHz, sampleRateHz, q, gainDB float64) Coefficients {
	a := math.Pow(10, gainDB/40)
	w0, alpha, cosW0 := cookbookTrig(freqHz, sampleRateHz, q)
	b0 := 1 + alpha*a
	b1 := -2 * cosW0
	b2 := 1 - alpha*a
	a0 := 1 + alpha/a
	a1 := -2 * cosW0
	a2 := 1 - alpha/a
	_ = w0
	return normalize(Coefficients{B: []float64{b0, b1, b2}, A: []float64{a0, a1, a2}})
}

// LowShelf designs a low-shelf biquad with shelf slope S = 1, the cookbook's
// alpha = sin(w0)/2 * sqrt((A + 1/A)*(1/S - 1) + 2) simplifying to
// sin(w0)/2 * sqrt(2) when S = 1.
func LowShelf(freqHz, sampleRateHz, gainDB float64) Coefficients {
	a := math.Pow(10, gainDB/40)
	w0, _, cosW0 := cookbookTrig(freqHz, sampleRateHz, math.Sqrt2/2)
	alpha := math.Sin(w0) / 2 * math.Sqrt2
	sqrtA := math.Sqrt(a)
	b0 := a * ((a + 1) - (a-1)*cosW0 + 2*sqrtA*alpha)
	b1 := 2 * a * ((a - 1) - (a+1)*cosW0)
	b2 := a * ((a + 1) - (a-1)*cosW0 - 2*sqrtA*alpha)
	a0 := (a + 1) + (a-1)*cosW0 + 2*sqrtA*alpha
	a1 := -2 * ((a - 1) + (a+1)*cosW0)
	a2 := (a + 1) + (a-1)*cosW0 - 2*sqrtA*alpha
	return normalize(Coefficients{B: []float64{b0, b1, b2}, A: []float64{a0, a1, a2}})
}

// HighShelf designs a high-shelf biquad with shelf slope S = 1.
func HighShelf(freqHz, sampleRateHz, gainDB float64) Coefficients {
	a := math.Pow(10, gainDB/40)
	w0, _, cosW0 := cookbookTrig(freqHz, sampleRateHz, math.Sqrt2/2)
	alpha := math.Sin(w0) / 2 * math.Sqrt2
	sqrtA := math.Sqrt(a)
	b0 := a * ((a + 1) + (a-1)*cosW0 + 2*sqrtA*alpha)
	b1 := -2 * a * ((a - 1) + (a+1)*cosW0)
	b2 := a * ((a + 1) + (a-1)*cosW0 - 2*sqrtA*alpha)
	a0 := (a + 1) - (a-1)*cosW0 + 2*sqrtA*alpha
	a1 := 2 * ((a - 1) - (a+1)*cosW0)
	a2 := (a + 1) - (a-1)*cosW0 - 2*sqrtA*alpha
	return normalize(Coefficients{B: []float64{b0, b1, b2}, A: []float64{a0, a1, a2}})
}
