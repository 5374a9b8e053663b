package stage

import (
	"math"
	"testing"

	"github.com/thesyncim/godsp/batch"
)

func TestFFTStageRFFTPeakDetection(t *testing.T) {
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
	out := make([]float64, s.OutputChannels())
	frames, err := s.ProcessInterleaved(in, n, out)
	if err != nil {
		t.Fatal(err)
	}
	if frames != 1 {
		t.Fatalf("expected 1 output frame, got %d", frames)
	}
	wantBin := int(math.Round(freq * n / sampleRate))
	if wantBin != 10 {
		t.Fatalf("test setup error: expected bin 10, computed %d", wantBin)
	}
	peakBin, peakMag := 0, 0.0
	for b, mag := range out {
		if mag > peakMag {
			peakMag, peakBin = mag, b
		}
	}
	if peakBin != wantBin {
		t.Errorf("peak bin = %d, want %d", peakBin, wantBin)
	}
	if peakMag < 400 {
		t.Errorf("peak magnitude = %v, want >= 400", peakMag)
	}
}

func TestFFTStageBatchModeFrameCount(t *testing.T) {
	s, err := NewFFTStage[float64](8, false, outputComplex)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Init(2, 0); err != nil {
		t.Fatal(err)
	}
	in := make([]float64, 8*2*3) // 3 blocks of 8 frames, 2 channels
	for i := range in {
		in[i] = float64(i % 5)
	}
	out := make([]float64, s.MaxOutputFrames(len(in)/2)*s.OutputChannels())
	frames, err := s.ProcessInterleaved(in, len(in)/2, out)
	if err != nil {
		t.Fatal(err)
	}
	if frames != 3 {
		t.Fatalf("expected 3 output frames, got %d", frames)
	}
	if s.OutputChannels() != 2*8*2 {
		t.Fatalf("expected %d output channels (complex fan-out), got %d", 2*8*2, s.OutputChannels())
	}
}

func TestParseOutputMode(t *testing.T) {
	cases := map[string]outputMode{
		"":          outputMagnitude,
		"magnitude": outputMagnitude,
		"phase":     outputPhase,
		"power":     outputPower,
		"complex":   outputComplex,
	}
	for in, want := range cases {
		got, err := parseOutputMode(in)
		if err != nil {
			t.Fatalf("parseOutputMode(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("parseOutputMode(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := parseOutputMode("bogus"); err == nil {
		t.Error("expected an error for an unknown output mode")
	}
}

func TestFFTStagePooledMatchesSequential(t *testing.T) {
	const n = 64
	const ch = 4
	in := make([]float64, n*ch)
	for f := 0; f < n; f++ {
		for c := 0; c < ch; c++ {
			in[f*ch+c] = math.Sin(float64(f)*0.2*float64(c+1)) + float64(c)
		}
	}

	seq, err := NewFFTStage[float64](n, true, outputMagnitude)
	if err != nil {
		t.Fatal(err)
	}
	if err := seq.Init(ch, 0); err != nil {
		t.Fatal(err)
	}
	seqOut := make([]float64, seq.OutputChannels())
	if _, err := seq.ProcessInterleaved(in, n, seqOut); err != nil {
		t.Fatal(err)
	}

	pooled, err := NewFFTStage[float64](n, true, outputMagnitude)
	if err != nil {
		t.Fatal(err)
	}
	if err := pooled.Init(ch, 0); err != nil {
		t.Fatal(err)
	}
	proc := batch.NewProcessor(4, 0, 0)
	defer proc.Close()
	pooled.WithProcessor(proc)
	pooledOut := make([]float64, pooled.OutputChannels())
	if _, err := pooled.ProcessInterleaved(in, n, pooledOut); err != nil {
		t.Fatal(err)
	}

	for i := range seqOut {
		d := seqOut[i] - pooledOut[i]
		if d < 0 {
			d = -d
		}
		if d > 1e-9 {
			t.Fatalf("pooled output diverged from sequential at %d: %v vs %v", i, pooledOut[i], seqOut[i])
		}
	}
}
