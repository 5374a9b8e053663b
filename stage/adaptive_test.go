package stage

import (
	"math"
	"math/rand"
	"testing"
)

// runAdaptive drives an adaptive filter to identify a fixed unknown system
// (here, a 2-tap FIR) from (input, desired) pairs and returns the final
// mean-squared error over the last quarter of the run, which should be
// small once the filter has converged.
func runAdaptive(t *testing.T, algorithm string, mu float64) float64 {
	t.Helper()
	unknown := []float64{0.6, -0.3}
	taps := len(unknown)
	f, err := NewAdaptive[float64](taps, algorithm, mu, 0, 1, 0.995)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Init(2, 0); err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(1))
	const n = 2000
	in := make([]float64, n*2)
	history := make([]float64, taps)
	for i := 0; i < n; i++ {
		x := rng.NormFloat64()
		copy(history[1:], history[:taps-1])
		history[0] = x
		var desired float64
		for k, w := range unknown {
			desired += w * history[k]
		}
		in[i*2] = x
		in[i*2+1] = desired
	}
	out := make([]float64, n)
	if _, err := f.ProcessInterleaved(in, n, out); err != nil {
		t.Fatal(err)
	}
	var mse float64
	quarter := n / 4
	for i := n - quarter; i < n; i++ {
		mse += out[i] * out[i]
	}
	return mse / float64(quarter)
}

func TestAdaptiveLMSConverges(t *testing.T) {
	if mse := runAdaptive(t, "lms", 0.01); mse > 0.05 {
		t.Errorf("LMS residual MSE too high: %v", mse)
	}
}

func TestAdaptiveNLMSConverges(t *testing.T) {
	if mse := runAdaptive(t, "nlms", 0.5); mse > 0.05 {
		t.Errorf("NLMS residual MSE too high: %v", mse)
	}
}

func TestAdaptiveRLSConverges(t *testing.T) {
	if mse := runAdaptive(t, "rls", 0); mse > 0.01 {
		t.Errorf("RLS residual MSE too high: %v", mse)
	}
}

func TestAdaptiveRejectsOddChannelCount(t *testing.T) {
	f, _ := NewAdaptive[float64](4, "lms", 0.01, 0, 0, 0)
	if err := f.Init(3, 0); err == nil {
		t.Fatal("expected an error for an odd (non signal/reference paired) channel count")
	}
}

func TestAdaptiveUnknownAlgorithm(t *testing.T) {
	if _, err := NewAdaptive[float64](4, "kalman", 0.01, 0, 0, 0); err == nil {
		t.Fatal("expected an error for an unrecognized algorithm")
	}
}

func TestAdaptiveResetZeroesWeights(t *testing.T) {
	f, _ := NewAdaptive[float64](3, "lms", 0.1, 0, 0, 0)
	f.Init(2, 0)
	in := make([]float64, 20)
	for i := range in {
		in[i] = rand.Float64()
	}
	out := make([]float64, 10)
	f.ProcessInterleaved(in, 10, out)
	f.Reset()
	for _, w := range f.Weights(0) {
		if w != 0 {
			t.Fatalf("expected zeroed weights after Reset, got %v", f.Weights(0))
		}
	}
	if math.IsNaN(f.channels[0].normPower) {
		t.Fatal("normPower should not be NaN after reset")
	}
}
