package stage

import (
	"fmt"

	dsp "github.com/thesyncim/godsp"
	"github.com/thesyncim/godsp/batch"
	"github.com/thesyncim/godsp/fft"
	"github.com/thesyncim/godsp/simd"
)

// outputMode selects what an FFT-family stage emits per spectrum.
type outputMode int

const (
	outputMagnitude outputMode = iota
	outputPhase
	outputPower
	outputComplex
)

func parseOutputMode(s string) (outputMode, error) {
	switch s {
	case "", "magnitude":
		return outputMagnitude, nil
	case "phase":
		return outputPhase, nil
	case "power":
		return outputPower, nil
	case "complex":
		return outputComplex, nil
	default:
		return 0, fmt.Errorf("%w: fft: unknown output mode %q", dsp.ErrInvalidArgument, s)
	}
}

func emit(mode outputMode, spectrum []complex128, dst []float64) {
	switch mode {
	case outputMagnitude:
		simd.Magnitude(spectrum, dst)
	case outputPower:
		simd.Power(spectrum, dst)
	case outputPhase:
		simd.Phase(spectrum, dst)
	case outputComplex:
		for i, c := range spectrum {
			dst[2*i] = real(c)
			dst[2*i+1] = imag(c)
		}
	}
}

func binsPerFrame(mode outputMode, bins int) int {
	if mode == outputComplex {
		return bins * 2
	}
	return bins
}

// FFTStage implements the "batch" mode of the fft stage: each call's
// frames (sized to the configured transform length) are transformed
// independently and emitted as extra output channels, one set of bins per
// input channel, fan-out in channel order. "moving" mode is handled by
// STFT, which is bit-identical to fft(mode:'moving') by construction.
type FFTStage[T dsp.Sample] struct {
	size        int
	real        bool
	complexPlan *fft.Plan
	realPlan    *fft.RealPlan
	mode        outputMode
	numChannels int

	// proc, when non-nil, fans the per-channel transforms of a multi-
	// channel call out across the shared worker pool instead of running
	// them one at a time; ProcessInterleaved still joins every job before
	// returning, so the stage remains synchronous from the pipeline's
	// perspective.
	proc *batch.Processor
}

// WithProcessor attaches a shared batch.Processor that ProcessInterleaved
// uses to transform a call's channels concurrently. Passing nil (the
// default) keeps the stage single-threaded.
func (s *FFTStage[T]) WithProcessor(p *batch.Processor) *FFTStage[T] {
	s.proc = p
	return s
}

// NewFFTStage constructs a batch FFT/RFFT stage for transform length size.
func NewFFTStage[T dsp.Sample](size int, isReal bool, mode outputMode) (*FFTStage[T], error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: fft: size must be positive", dsp.ErrInvalidArgument)
	}
	s := &FFTStage[T]{size: size, real: isReal, mode: mode}
	if isReal {
		s.realPlan = fft.NewReal(size)
	} else {
		s.complexPlan = fft.New(size) // nil is fine: ProcessInterleaved falls back to fft.Direct
	}
	return s, nil
}

func (s *FFTStage[T]) Init(inputChannels int, _ float64) error {
	if inputChannels <= 0 {
		return fmt.Errorf("%w: fft needs at least one input channel", dsp.ErrInvalidArgument)
	}
	s.numChannels = inputChannels
	return nil
}

func (s *FFTStage[T]) bins() int {
	if s.real {
		return s.size/2 + 1
	}
	return s.size
}

func (s *FFTStage[T]) InputChannels() int { return s.numChannels }

func (s *FFTStage[T]) OutputChannels() int {
	return s.numChannels * binsPerFrame(s.mode, s.bins())
}

func (s *FFTStage[T]) Latency() int { return 0 }

func (s *FFTStage[T]) MaxOutputFrames(inFrames int) int {
	if s.size == 0 {
		return 0
	}
	return inFrames / s.size
}

func (s *FFTStage[T]) ProcessInterleaved(in []T, inFrames int, out []T) (int, error) {
	ch := s.numChannels
	if len(in) < inFrames*ch {
		return 0, fmt.Errorf("%w: fft: need %d input samples, got %d", dsp.ErrShapeMismatch, inFrames*ch, len(in))
	}
	frames := inFrames / s.size
	outCh := s.OutputChannels()
	bins := s.bins()
	perFrameBins := binsPerFrame(s.mode, bins)

	if s.proc != nil && ch > 1 {
		return frames, s.processWithPool(in, frames, outCh, bins, perFrameBins, out)
	}

	realBuf := make([]float64, s.size)
	complexBuf := make([]complex128, s.size)
	spectrum := make([]complex128, bins)
	dst := make([]float64, perFrameBins)

	for fr := 0; fr < frames; fr++ {
		for c := 0; c < ch; c++ {
			for i := 0; i < s.size; i++ {
				v := in[(fr*s.size+i)*ch+c]
				realBuf[i] = float64(v)
				complexBuf[i] = complex(float64(v), 0)
			}
			if s.real {
				s.realPlan.Forward(spectrum, realBuf)
			} else if s.complexPlan != nil {
				s.complexPlan.Forward(spectrum, complexBuf)
			} else {
				fft.Direct(spectrum, complexBuf, true)
			}
			emit(s.mode, spectrum, dst)
			base := fr*outCh + c*perFrameBins
			for i, v := range dst {
				out[base+i] = T(v)
			}
		}
	}
	return frames, nil
}

// processWithPool fans every (frame, channel) transform in a call out
// across s.proc's worker pool, one batch.Job per channel per frame, and
// joins all of them before returning, matching the synchronous contract
// ProcessInterleaved callers expect.
func (s *FFTStage[T]) processWithPool(in []T, frames, outCh, bins, perFrameBins int, out []T) error {
	ch := s.numChannels
	total := frames * ch
	jobs := make([]*batch.Job, total)
	results := make([][]complex128, total)

	idx := 0
	for fr := 0; fr < frames; fr++ {
		for c := 0; c < ch; c++ {
			complexBuf := make([]complex128, s.size)
			for i := 0; i < s.size; i++ {
				v := in[(fr*s.size+i)*ch+c]
				complexBuf[i] = complex(float64(v), 0)
			}
			spectrum := make([]complex128, bins)
			results[idx] = spectrum
			jobs[idx] = &batch.Job{In: complexBuf, Out: spectrum, Length: s.size, IsReal: s.real, Forward: true}
			s.proc.Submit(jobs[idx])
			idx++
		}
	}

	dst := make([]float64, perFrameBins)
	idx = 0
	for fr := 0; fr < frames; fr++ {
		for c := 0; c < ch; c++ {
			if err := jobs[idx].Wait(); err != nil {
				return fmt.Errorf("dsp: fft: batch job failed: %w", err)
			}
			emit(s.mode, results[idx], dst)
			base := fr*outCh + c*perFrameBins
			for i, v := range dst {
				out[base+i] = T(v)
			}
			idx++
		}
	}
	return nil
}

func (s *FFTStage[T]) Reset() {}

func (s *FFTStage[T]) Type() string { return "fft" }

func (s *FFTStage[T]) Serialize() ([]byte, error) {
	// FFTStage is stateless between calls (batch mode consumes whole
	// frames), so its serialized form is just the configuration, used by
	// Deserialize only to validate shape compatibility.
	buf := appendUint32(nil, uint32(s.size))
	buf = appendUint32(buf, uint32(s.numChannels))
	return buf, nil
}

func (s *FFTStage[T]) Deserialize(data []byte) error {
	r := &reader{data: data}
	size, err := r.uint32()
	if err != nil {
		return err
	}
	channels, err := r.uint32()
	if err != nil {
		return err
	}
	if int(size) != s.size || int(channels) != s.numChannels {
		return fmt.Errorf("%w: fft stage shape mismatch", dsp.ErrStateMismatch)
	}
	return nil
}

func init() {
	dsp.RegisterStageFactory[float64]("fft", func(p dsp.StageParams) (dsp.Stage[float64], error) {
		return buildFFT[float64](p)
	})
	dsp.RegisterStageFactory[float32]("fft", func(p dsp.StageParams) (dsp.Stage[float32], error) {
		return buildFFT[float32](p)
	})
}

func buildFFT[T dsp.Sample](p dsp.StageParams) (dsp.Stage[T], error) {
	if err := allowedKeys(p, "fft", "size", "type", "output", "mode", "hopSize", "windowType"); err != nil {
		return nil, err
	}
	size, ok := paramInt(p, "size")
	if !ok {
		return nil, fmt.Errorf("%w: fft requires size", dsp.ErrInvalidArgument)
	}
	kind, _ := p["type"].(string)
	isReal := kind == "rfft"
	outputStr, _ := p["output"].(string)
	mode, err := parseOutputMode(outputStr)
	if err != nil {
		return nil, err
	}
	fftMode, _ := p["mode"].(string)
	if fftMode == "moving" {
		hop, _ := paramInt(p, "hopSize")
		if hop <= 0 {
			hop = size
		}
		windowType, _ := p["windowType"].(string)
		return NewSTFT[T](size, hop, isReal, mode, windowType)
	}
	return NewFFTStage[T](size, isReal, mode)
}
