package fft

import (
	"math"
	"testing"
)

func approxEqual(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func TestPlanMatchesDirectDFT(t *testing.T) {
	n := 60 // 2^2*3*5, factored as 5*3*4: exercises radix 3/4/5 stages
	in := make([]complex128, n)
	for i := range in {
		in[i] = complex(math.Sin(float64(i)*0.3), math.Cos(float64(i)*0.7))
	}
	plan := New(n)
	if plan == nil {
		t.Fatal("expected plan for size 60")
	}
	got := make([]complex128, n)
	plan.Forward(got, in)

	want := make([]complex128, n)
	Direct(want, in, true)

	for i := range got {
		if !approxEqual(real(got[i]), real(want[i]), 1e-6) || !approxEqual(imag(got[i]), imag(want[i]), 1e-6) {
			t.Fatalf("bin %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestForwardInverseRoundTrip(t *testing.T) {
	n := 32
	in := make([]complex128, n)
	for i := range in {
		in[i] = complex(float64(i%7)-3, float64(i%5)-2)
	}
	plan := New(n)
	spectrum := make([]complex128, n)
	plan.Forward(spectrum, in)
	back := make([]complex128, n)
	plan.Inverse(back, spectrum)

	for i := range in {
		if !approxEqual(real(back[i]), real(in[i]), 1e-9) || !approxEqual(imag(back[i]), imag(in[i]), 1e-9) {
			t.Fatalf("round trip mismatch at %d: got %v want %v", i, back[i], in[i])
		}
	}
}

func TestParsevalEnergyConservation(t *testing.T) {
	n := 64
	in := make([]complex128, n)
	for i := range in {
		in[i] = complex(math.Sin(float64(i)*0.13*math.Pi), 0)
	}
	plan := New(n)
	spectrum := make([]complex128, n)
	plan.Forward(spectrum, in)

	var timeEnergy, freqEnergy float64
	for _, c := range in {
		timeEnergy += real(c)*real(c) + imag(c)*imag(c)
	}
	for _, c := range spectrum {
		freqEnergy += real(c)*real(c) + imag(c)*imag(c)
	}
	freqEnergy /= float64(n)

	if math.Abs(timeEnergy-freqEnergy)/timeEnergy > 1e-4 {
		t.Fatalf("Parseval mismatch: time=%v freq/n=%v", timeEnergy, freqEnergy)
	}
}

func TestRealPlanForwardMatchesComplexPlan(t *testing.T) {
	n := 16
	real64 := make([]float64, n)
	for i := range real64 {
		real64[i] = math.Sin(float64(i) * 0.5)
	}
	rp := NewReal(n)
	bins := rp.Bins()
	got := make([]complex128, bins)
	rp.Forward(got, real64)

	complexIn := make([]complex128, n)
	for i, x := range real64 {
		complexIn[i] = complex(x, 0)
	}
	full := New(n)
	want := make([]complex128, n)
	full.Forward(want, complexIn)

	for k := 0; k < bins; k++ {
		if !approxEqual(real(got[k]), real(want[k]), 1e-6) || !approxEqual(imag(got[k]), imag(want[k]), 1e-6) {
			t.Fatalf("bin %d: got %v want %v", k, got[k], want[k])
		}
	}
}

func TestRealPlanRoundTrip(t *testing.T) {
	n := 20 // not a power of two, exercises the half-plan path for n/2=10=2*5
	signal := make([]float64, n)
	for i := range signal {
		signal[i] = float64(i%4) - 1.5
	}
	rp := NewReal(n)
	spectrum := make([]complex128, rp.Bins())
	rp.Forward(spectrum, signal)
	back := make([]float64, n)
	rp.Inverse(back, spectrum)

	for i := range signal {
		if !approxEqual(back[i], signal[i], 1e-6) {
			t.Fatalf("real round trip mismatch at %d: got %v want %v", i, back[i], signal[i])
		}
	}
}

func TestDCTRoundTrip(t *testing.T) {
	n := 13
	plan := NewDCT(n)
	in := make([]float64, n)
	for i := range in {
		in[i] = float64(i*i%7) - 2
	}
	coeffs := make([]float64, n)
	plan.Forward(coeffs, in)
	back := make([]float64, n)
	plan.Inverse(back, coeffs)

	for i := range in {
		if !approxEqual(back[i], in[i], 1e-9) {
			t.Fatalf("DCT round trip mismatch at %d: got %v want %v", i, back[i], in[i])
		}
	}
}

func TestDirectDFTRoundTripForPrimeSize(t *testing.T) {
	n := 17 // prime, unsupported by the mixed-radix Plan
	if New(n) != nil {
		t.Fatalf("expected New(%d) to fail (prime > 5 factor)", n)
	}
	in := make([]complex128, n)
	for i := range in {
		in[i] = complex(float64(i), 0)
	}
	out := make([]complex128, n)
	Direct(out, in, true)
	back := make([]complex128, n)
	Direct(back, out, false)
	for i := range in {
		if !approxEqual(real(back[i]), real(in[i]), 1e-9) {
			t.Fatalf("direct DFT round trip mismatch at %d: got %v want %v", i, back[i], in[i])
		}
	}
}
