package stage

import (
	"math"
	"testing"

	dsp "github.com/thesyncim/godsp"
)

// buildFIRRMSPipeline constructs the fir + movingAverage(rms) pipeline
// shared by the split/whole comparison below. Both stages preserve frame
// count one-to-one, which is what makes a mid-stream SaveState/LoadState
// split possible at all.
func buildFIRRMSPipeline(t *testing.T, sampleRate float64) *dsp.Pipeline[float64] {
	t.Helper()
	p := dsp.New[float64](dsp.Config{SampleRate: sampleRate})
	if err := p.AddStage("fir", dsp.StageParams{
		"coefficients": []float64{0.15, 0.2, 0.3, 0.2, 0.15},
	}); err != nil {
		t.Fatalf("AddStage(fir): %v", err)
	}
	if err := p.AddStage("movingAverage", dsp.StageParams{
		"policy":     "rms",
		"windowSize": 64,
	}); err != nil {
		t.Fatalf("AddStage(movingAverage): %v", err)
	}
	return p
}

// TestPipelineSplitMatchesWholeBuffer builds a real fir+movingAverage(rms)
// pipeline and drives 65536 samples through it two ways: as one call, and
// as two halves with SaveState/LoadState carrying the state across the
// split. The two outputs must agree sample for sample.
func TestPipelineSplitMatchesWholeBuffer(t *testing.T) {
	const (
		n          = 65536
		sampleRate = 48000.0
		channels   = 1
	)
	input := make([]float64, n)
	for i := range input {
		t := float64(i) / sampleRate
		input[i] = math.Sin(2*math.Pi*440*t) + 0.25*math.Sin(2*math.Pi*2500*t)
	}

	whole := buildFIRRMSPipeline(t, sampleRate)
	wholeOut, err := whole.Process(input, nil, dsp.ProcessConfig{Channels: channels, SampleRate: sampleRate})
	if err != nil {
		t.Fatalf("whole-buffer Process: %v", err)
	}

	half := n / 2
	first := buildFIRRMSPipeline(t, sampleRate)
	firstOut, err := first.Process(input[:half], nil, dsp.ProcessConfig{Channels: channels, SampleRate: sampleRate})
	if err != nil {
		t.Fatalf("first-half Process: %v", err)
	}
	blob, err := first.SaveState()
	if err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	second := buildFIRRMSPipeline(t, sampleRate)
	// Force stage initialization with an empty buffer so LoadState has
	// shape-compatible stages to deserialize into.
	if _, err := second.Process(nil, nil, dsp.ProcessConfig{Channels: channels, SampleRate: sampleRate}); err != nil {
		t.Fatalf("init Process: %v", err)
	}
	if err := second.LoadState(blob); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	secondOut, err := second.Process(input[half:], nil, dsp.ProcessConfig{Channels: channels, SampleRate: sampleRate})
	if err != nil {
		t.Fatalf("second-half Process: %v", err)
	}

	splitOut := append(firstOut, secondOut...)
	if len(splitOut) != len(wholeOut) {
		t.Fatalf("split output length %d, want %d", len(splitOut), len(wholeOut))
	}
	const tolerance = 1e-6
	for i := range wholeOut {
		if math.Abs(wholeOut[i]-splitOut[i]) > tolerance {
			t.Fatalf("sample %d: whole=%v split=%v (diff %v exceeds %v)", i, wholeOut[i], splitOut[i], wholeOut[i]-splitOut[i], tolerance)
		}
	}
}
