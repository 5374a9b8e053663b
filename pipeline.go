package dsp

import (
	"fmt"
	"sync/atomic"
)

// lifecycleState is the Pipeline state machine:
// Built -> Running <-> Idle -> Disposed.
type lifecycleState int32

const (
	stateBuilt lifecycleState = iota
	stateIdle
	stateRunning
	stateDisposed
)

// Config carries the optional pipeline-wide settings accepted by New.
type Config struct {
	// SampleRate is advisory: it is handed to every stage's Init and used
	// by stages whose math depends on it (e.g. FIR cutoff-to-bin
	// conversion, FFT frequency-bin tables). Stages that don't need it
	// ignore it. Zero means "unspecified".
	SampleRate float64
}

// ProcessConfig carries the per-call settings accepted by Process.
type ProcessConfig struct {
	// Channels is the number of interleaved channels in the input buffer.
	// len(samples) must be a multiple of Channels.
	Channels int
	// SampleRate overrides Config.SampleRate for stages initialized by
	// this call. Only meaningful on the first Process call: once the
	// pipeline's stages are initialized, later calls must agree with the
	// channel count used at init or they fail with ErrShapeMismatch.
	SampleRate float64
}

// Pipeline is an ordered, owned sequence of Stage[T] values with lifecycle
// management, atomic composite-state save/restore, and single-use-per-call
// concurrency enforcement.
type Pipeline[T Sample] struct {
	cfg   Config
	state atomic.Int32

	stages   []Stage[T]
	initDone bool
	channels int // input channels of stages[0], once initialized

	scratch [][]T // per-stage output scratch buffers, sized lazily
}

// New constructs an empty pipeline in the Built state.
func New[T Sample](cfg Config) *Pipeline[T] {
	p := &Pipeline[T]{cfg: cfg}
	p.state.Store(int32(stateBuilt))
	return p
}

func (p *Pipeline[T]) lifecycle() lifecycleState {
	return lifecycleState(p.state.Load())
}

// AddConstructedStage appends an already-built stage to the pipeline. It
// fails once the pipeline has processed its first buffer (stages are wired
// to fixed channel counts at that point) or once disposed.
func (p *Pipeline[T]) AddConstructedStage(s Stage[T]) error {
	switch p.lifecycle() {
	case stateDisposed:
		return ErrPipelineDisposed
	case stateRunning:
		return ErrPipelineBusy
	}
	if p.initDone {
		return fmt.Errorf("%w: cannot add a stage after the pipeline has processed data", ErrInvalidArgument)
	}
	p.stages = append(p.stages, s)
	return nil
}

// AddStage builds a stage from a registered factory (see
// RegisterStageFactory) by name and a params map, and appends it.
func (p *Pipeline[T]) AddStage(stageType string, params StageParams) error {
	s, err := buildStage[T](stageType, params)
	if err != nil {
		return err
	}
	return p.AddConstructedStage(s)
}

// StageCount returns the number of stages currently in the pipeline.
func (p *Pipeline[T]) StageCount() int { return len(p.stages) }

// initStages wires stage[i+1]'s input channel count to stage[i]'s output
// channel count, using chan0 as stage[0]'s input channel count.
func (p *Pipeline[T]) initStages(chan0 int, sampleRate float64) error {
	if p.initDone {
		return nil
	}
	in := chan0
	for i, s := range p.stages {
		if err := s.Init(in, sampleRate); err != nil {
			return fmt.Errorf("dsp: stage %d (%s): %w", i, s.Type(), err)
		}
		if s.InputChannels() != in {
			return fmt.Errorf("%w: stage %d (%s) reports %d input channels, wired %d", ErrInvalidArgument, i, s.Type(), s.InputChannels(), in)
		}
		in = s.OutputChannels()
	}
	p.channels = chan0
	p.scratch = make([][]T, len(p.stages))
	p.initDone = true
	return nil
}

// beginProcess performs the Idle/Built -> Running transition, returning a
// busy or disposed error if that is not currently legal.
func (p *Pipeline[T]) beginProcess() error {
	for {
		cur := p.lifecycle()
		switch cur {
		case stateDisposed:
			return ErrPipelineDisposed
		case stateRunning:
			return ErrPipelineBusy
		case stateBuilt, stateIdle:
			if p.state.CompareAndSwap(int32(cur), int32(stateRunning)) {
				return nil
			}
			// lost the race; retry
		}
	}
}

func (p *Pipeline[T]) endProcess() {
	p.state.Store(int32(stateIdle))
}

// Process routes an interleaved sample buffer through every stage in
// order, stage i's output becoming stage i+1's input. timestamps may be
// nil; when non-nil its length must equal len(samples)/cfg.Channels.
func (p *Pipeline[T]) Process(samples []T, timestamps []int64, cfg ProcessConfig) ([]T, error) {
	if cfg.Channels <= 0 {
		return nil, fmt.Errorf("%w: channels must be positive", ErrInvalidArgument)
	}
	if len(samples)%cfg.Channels != 0 {
		return nil, fmt.Errorf("%w: input length %d is not a multiple of %d channels", ErrShapeMismatch, len(samples), cfg.Channels)
	}
	frames := len(samples) / cfg.Channels
	if timestamps != nil && len(timestamps) != frames {
		return nil, fmt.Errorf("%w: %d timestamps for %d frames", ErrShapeMismatch, len(timestamps), frames)
	}

	if err := p.beginProcess(); err != nil {
		return nil, err
	}
	defer p.endProcess()

	if !p.initDone {
		sr := cfg.SampleRate
		if sr == 0 {
			sr = p.cfg.SampleRate
		}
		if err := p.initStages(cfg.Channels, sr); err != nil {
			return nil, err
		}
	}
	if cfg.Channels != p.channels {
		return nil, fmt.Errorf("%w: pipeline was initialized with %d channels, got %d", ErrShapeMismatch, p.channels, cfg.Channels)
	}

	curIn := samples
	curFrames := frames
	curTimestamps := timestamps
	for i, s := range p.stages {
		outFrames := s.MaxOutputFrames(curFrames)
		need := outFrames * s.OutputChannels()
		if cap(p.scratch[i]) < need {
			p.scratch[i] = make([]T, need)
		}
		out := p.scratch[i][:need]

		var written int
		var err error
		if ts, ok := s.(TimestampAware[T]); ok && len(curTimestamps) == curFrames {
			written, err = ts.ProcessInterleavedTimestamped(curIn, curFrames, curTimestamps, out)
		} else {
			written, err = s.ProcessInterleaved(curIn, curFrames, out)
		}
		if err != nil {
			return nil, fmt.Errorf("dsp: stage %d (%s): %w", i, s.Type(), err)
		}
		curIn = out[:written*s.OutputChannels()]
		// Timestamps only stay meaningful downstream while frame count is
		// preserved one-to-one; a stage that changes frame count (FFT,
		// convolution, ...) breaks that alignment, so later stages see no
		// timestamps rather than a misaligned array.
		if written != curFrames {
			curTimestamps = nil
		}
		curFrames = written
	}

	result := make([]T, len(curIn))
	copy(result, curIn)
	return result, nil
}

// ClearState resets every stage to its freshly-constructed state without
// changing pipeline wiring.
func (p *Pipeline[T]) ClearState() error {
	if err := p.beginProcess(); err != nil {
		return err
	}
	defer p.endProcess()
	for _, s := range p.stages {
		s.Reset()
	}
	return nil
}

// Dispose frees every stage and moves the pipeline to the Disposed state.
// It is idempotent: calling it again after the first successful call
// returns nil. Calling it while a Process call is in flight fails with
// ErrPipelineBusy.
func (p *Pipeline[T]) Dispose() error {
	for {
		cur := p.lifecycle()
		if cur == stateDisposed {
			return nil
		}
		if cur == stateRunning {
			return ErrPipelineBusy
		}
		if p.state.CompareAndSwap(int32(cur), int32(stateDisposed)) {
			p.stages = nil
			p.scratch = nil
			return nil
		}
	}
}

// Disposed reports whether Dispose has completed successfully.
func (p *Pipeline[T]) Disposed() bool { return p.lifecycle() == stateDisposed }
