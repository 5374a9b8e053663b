package stage

import (
	"math"
	"testing"
)

func TestSlidingWindowMean(t *testing.T) {
	s, err := NewSlidingWindow[float64](3, "mean", 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Init(1, 0); err != nil {
		t.Fatal(err)
	}
	in := []float64{1, 2, 3, 4, 5}
	out := make([]float64, len(in))
	s.ProcessInterleaved(in, len(in), out)
	want := []float64{1, 1.5, 2, 3, 4}
	for i, w := range want {
		if math.Abs(out[i]-w) > 1e-9 {
			t.Errorf("out[%d] = %v, want %v", i, out[i], w)
		}
	}
}

func TestSlidingWindowResetEquivalence(t *testing.T) {
	a, _ := NewSlidingWindow[float64](4, "rms", 0)
	a.Init(1, 0)
	in := []float64{1, -2, 3, -4, 5, -6, 7}
	outA := make([]float64, len(in))
	a.ProcessInterleaved(in, len(in), outA)
	a.Reset()
	a.ProcessInterleaved(in, len(in), outA)

	b, _ := NewSlidingWindow[float64](4, "rms", 0)
	b.Init(1, 0)
	outB := make([]float64, len(in))
	b.ProcessInterleaved(in, len(in), outB)

	for i := range in {
		if outA[i] != outB[i] {
			t.Fatalf("reset output diverges at %d: %v vs %v", i, outA[i], outB[i])
		}
	}
}

func TestSlidingWindowSerializeRoundTrip(t *testing.T) {
	a, _ := NewSlidingWindow[float64](5, "variance", 0)
	a.Init(1, 0)
	warm := []float64{3, 1, 4, 1, 5}
	warmOut := make([]float64, len(warm))
	a.ProcessInterleaved(warm, len(warm), warmOut)

	blob, err := a.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := NewSlidingWindow[float64](5, "variance", 0)
	b.Init(1, 0)
	if err := b.Deserialize(blob); err != nil {
		t.Fatal(err)
	}

	rest := []float64{9, 2, 6}
	outA := make([]float64, len(rest))
	outB := make([]float64, len(rest))
	a.ProcessInterleaved(rest, len(rest), outA)
	b.ProcessInterleaved(rest, len(rest), outB)
	for i := range outA {
		if math.Abs(outA[i]-outB[i]) > 1e-9 {
			t.Fatalf("restored stage diverged at %d: %v vs %v", i, outA[i], outB[i])
		}
	}
}

func TestSlidingWindowPeakPolicy(t *testing.T) {
	s, err := NewSlidingWindow[float64](3, "peak", 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Init(1, 0); err != nil {
		t.Fatal(err)
	}
	in := []float64{1, 5, 2, 2, 2}
	out := make([]float64, len(in))
	s.ProcessInterleaved(in, len(in), out)
	want := []float64{1, 5, 5, 5, 2}
	for i, w := range want {
		if out[i] != w {
			t.Errorf("out[%d] = %v, want %v", i, out[i], w)
		}
	}
}

func TestSlidingWindowEMARejectsBadAlpha(t *testing.T) {
	s, _ := NewSlidingWindow[float64](3, "ema", 1.5)
	if err := s.Init(1, 0); err == nil {
		t.Fatal("expected an error for alpha outside (0,1]")
	}
}
