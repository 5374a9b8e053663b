package stage

import (
	"math"
	"testing"
)

func TestPeakDetectorFindsLocalMaxima(t *testing.T) {
	p, err := NewPeakDetector[float64](3, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Init(1, 0); err != nil {
		t.Fatal(err)
	}
	// Index:   0  1  2  3  4  5  6
	in := []float64{0, 1, 5, 1, 0, 3, 0}
	out := make([]float64, len(in)*p.OutputChannels())
	n, err := p.ProcessInterleaved(in, len(in), out)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(in) {
		t.Fatalf("expected %d frames, got %d", len(in), n)
	}
	var peaks []float64
	for f := 0; f < n; f++ {
		v := out[f*2+1]
		if v != 0 {
			peaks = append(peaks, v)
		}
	}
	if len(peaks) != 2 {
		t.Fatalf("expected 2 peaks (value 5 at index 2, value 3 at index 5), got %v", peaks)
	}
	if peaks[0] != 5 || peaks[1] != 3 {
		t.Errorf("peaks = %v, want [5 3]", peaks)
	}
}

func TestPeakDetectorMinDistanceSuppression(t *testing.T) {
	p, err := NewPeakDetector[float64](3, 0, 5)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Init(1, 0); err != nil {
		t.Fatal(err)
	}
	in := []float64{0, 1, 5, 1, 0, 1, 4, 1, 0, 1, 9, 1, 0}
	out := make([]float64, len(in)*p.OutputChannels())
	p.ProcessInterleaved(in, len(in), out)

	var values []float64
	for f := 0; f < len(in); f++ {
		v := out[f*2+1]
		if v != 0 {
			values = append(values, v)
		}
	}
	// The candidate at value 4 sits within 5 samples of the accepted peak
	// at value 5 and is lower, so it should be suppressed; 9 is higher and
	// far enough away to survive.
	for _, v := range values {
		if v == 4 {
			t.Errorf("expected the lower nearby peak (4) to be suppressed, got peaks %v", values)
		}
	}
}

func TestPeakDetectorRejectsEvenWindow(t *testing.T) {
	if _, err := NewPeakDetector[float64](4, 0, 0); err == nil {
		t.Fatal("expected an error for an even window size")
	}
}

func TestSuppressNearbyPeaksKeepsOnlyLocalWinners(t *testing.T) {
	candidates := []PeakCandidate{
		{Index: 10, Value: 5},
		{Index: 12, Value: 9}, // within 5 of index 10 and higher: suppresses it
		{Index: 40, Value: 3}, // far from everything: survives
	}
	got := SuppressNearbyPeaks(candidates, 5)
	if len(got) != 2 {
		t.Fatalf("expected 2 survivors, got %v", got)
	}
	if got[0].Index != 12 || got[1].Index != 40 {
		t.Errorf("unexpected survivors %v", got)
	}
}

func TestSuppressNearbyPeaksZeroDistanceKeepsAll(t *testing.T) {
	candidates := []PeakCandidate{{Index: 1, Value: 1}, {Index: 2, Value: 2}}
	got := SuppressNearbyPeaks(candidates, 0)
	if len(got) != 2 {
		t.Fatalf("expected minDistance=0 to keep every candidate, got %v", got)
	}
}

func TestFFTPeakPickingScenario(t *testing.T) {
	const n = 1024
	const sampleRate = 44100.0
	const freq = 440.0
	s, err := NewFFTStage[float64](n, true, outputMagnitude)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Init(1, sampleRate); err != nil {
		t.Fatal(err)
	}
	in := make([]float64, n)
	for i := range in {
		in[i] = math.Sin(2 * math.Pi * freq * float64(i) / sampleRate)
	}
	spectrum := make([]float64, s.OutputChannels())
	if _, err := s.ProcessInterleaved(in, n, spectrum); err != nil {
		t.Fatal(err)
	}

	var candidates []PeakCandidate
	for i := 1; i < len(spectrum)-1; i++ {
		if spectrum[i] > spectrum[i-1] && spectrum[i] > spectrum[i+1] && spectrum[i] >= 400 {
			candidates = append(candidates, PeakCandidate{Index: int64(i), Value: spectrum[i]})
		}
	}
	survivors := SuppressNearbyPeaks(candidates, 3)
	if len(survivors) != 1 {
		t.Fatalf("expected exactly one surviving spectral peak, got %v", survivors)
	}
	if survivors[0].Index != 10 {
		t.Errorf("expected the peak at bin 10, got %v", survivors[0])
	}
}
