package dsp

import (
	"errors"
	"testing"
)

// passthroughStage is a minimal Stage[T] used to exercise Pipeline
// lifecycle and state plumbing without depending on dsp/stage.
type passthroughStage struct {
	channels int
	gain     float64
	calls    int
}

func (s *passthroughStage) Init(inputChannels int, sampleRate float64) error {
	s.channels = inputChannels
	return nil
}
func (s *passthroughStage) InputChannels() int                  { return s.channels }
func (s *passthroughStage) OutputChannels() int                 { return s.channels }
func (s *passthroughStage) Latency() int                        { return 0 }
func (s *passthroughStage) MaxOutputFrames(inFrames int) int    { return inFrames }
func (s *passthroughStage) Reset()                              { s.calls = 0 }
func (s *passthroughStage) Type() string                        { return "test.passthrough" }
func (s *passthroughStage) ProcessInterleaved(in []float64, inFrames int, out []float64) (int, error) {
	s.calls++
	n := inFrames * s.channels
	for i := 0; i < n; i++ {
		out[i] = in[i] * s.gain
	}
	return inFrames, nil
}
func (s *passthroughStage) Serialize() ([]byte, error) {
	return []byte{byte(s.calls)}, nil
}
func (s *passthroughStage) Deserialize(data []byte) error {
	if len(data) != 1 {
		return errors.New("bad payload")
	}
	s.calls = int(data[0])
	return nil
}

func TestPipelineBasicProcess(t *testing.T) {
	p := New[float64](Config{})
	if err := p.AddConstructedStage(&passthroughStage{gain: 2}); err != nil {
		t.Fatal(err)
	}
	out, err := p.Process([]float64{1, 2, 3, 4}, nil, ProcessConfig{Channels: 1})
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{2, 4, 6, 8}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestPipelineShapeMismatch(t *testing.T) {
	p := New[float64](Config{})
	_ = p.AddConstructedStage(&passthroughStage{gain: 1})
	_, err := p.Process([]float64{1, 2, 3}, nil, ProcessConfig{Channels: 2})
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("want ErrShapeMismatch, got %v", err)
	}
}

func TestPipelineDisposalIdempotence(t *testing.T) {
	p := New[float64](Config{})
	_ = p.AddConstructedStage(&passthroughStage{gain: 1})
	if err := p.Dispose(); err != nil {
		t.Fatal(err)
	}
	if err := p.Dispose(); err != nil {
		t.Fatalf("second dispose should be idempotent, got %v", err)
	}
	if err := p.Dispose(); err != nil {
		t.Fatalf("third dispose should be idempotent, got %v", err)
	}
	if _, err := p.Process([]float64{1}, nil, ProcessConfig{Channels: 1}); !errors.Is(err, ErrPipelineDisposed) {
		t.Fatalf("want ErrPipelineDisposed, got %v", err)
	}
}

func TestPipelineSaveLoadRoundTrip(t *testing.T) {
	p := New[float64](Config{})
	_ = p.AddConstructedStage(&passthroughStage{gain: 1})
	if _, err := p.Process([]float64{1, 2}, nil, ProcessConfig{Channels: 1}); err != nil {
		t.Fatal(err)
	}
	blob, err := p.SaveState()
	if err != nil {
		t.Fatal(err)
	}

	q := New[float64](Config{})
	_ = q.AddConstructedStage(&passthroughStage{gain: 1})
	if err := q.LoadState(blob); err != nil {
		t.Fatal(err)
	}
	blob2, err := q.SaveState()
	if err != nil {
		t.Fatal(err)
	}
	if string(blob) != string(blob2) {
		t.Fatalf("round-tripped state differs")
	}
}

func TestPipelineLoadStateCorruptedRollback(t *testing.T) {
	p := New[float64](Config{})
	_ = p.AddConstructedStage(&passthroughStage{gain: 1})
	if _, err := p.Process([]float64{1, 2, 3}, nil, ProcessConfig{Channels: 1}); err != nil {
		t.Fatal(err)
	}
	before, err := p.SaveState()
	if err != nil {
		t.Fatal(err)
	}

	corrupted := append([]byte(nil), before...)
	corrupted[0] = 0x00
	if err := p.LoadState(corrupted); !errors.Is(err, ErrStateCorrupted) {
		t.Fatalf("want ErrStateCorrupted, got %v", err)
	}

	after, err := p.SaveState()
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Fatalf("pipeline state was mutated by a failed LoadState")
	}
}

func TestPipelineBusyDuringProcessIsNotReentrant(t *testing.T) {
	p := New[float64](Config{})
	_ = p.AddConstructedStage(&passthroughStage{gain: 1})
	if err := p.beginProcess(); err != nil {
		t.Fatal(err)
	}
	if err := p.Dispose(); !errors.Is(err, ErrPipelineBusy) {
		t.Fatalf("want ErrPipelineBusy, got %v", err)
	}
	p.endProcess()
	if err := p.Dispose(); err != nil {
		t.Fatalf("dispose after completion should succeed, got %v", err)
	}
}
