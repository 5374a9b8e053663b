package stage

import (
	"fmt"

	dsp "github.com/thesyncim/godsp"
	"github.com/thesyncim/godsp/fft"
	"github.com/thesyncim/godsp/ring"
	"github.com/thesyncim/godsp/window"
)

// STFT implements the sliding/moving FFT: a fftSize-long input ring
// buffer per channel, a shared new-samples counter,
// and a window applied before each emitted spectrum. This is also exactly
// what "fft(mode:'moving')" resolves to (see fft_stage.go's buildFFT), so
// the two stay bit-identical by construction rather than by a separate
// equivalence check.
type STFT[T dsp.Sample] struct {
	size, hop   int
	real        bool
	mode        outputMode
	windowCoef  []float64
	numChannels int

	buffers []ring.Buffer[T]
	counter int

	complexPlan *fft.Plan
	realPlan    *fft.RealPlan
}

// NewSTFT constructs an STFT stage. windowType selects the analysis window
// (Hann/Hamming/Blackman/rectangular); empty defaults to Hann.
func NewSTFT[T dsp.Sample](size, hop int, isReal bool, mode outputMode, windowType string) (*STFT[T], error) {
	if size <= 0 || hop <= 0 {
		return nil, fmt.Errorf("%w: stft: size and hop must be positive", dsp.ErrInvalidArgument)
	}
	s := &STFT[T]{size: size, hop: hop, real: isReal, mode: mode}
	w := stftWindowFunc(windowType)
	s.windowCoef = window.Generate(size, w)
	if isReal {
		s.realPlan = fft.NewReal(size)
	} else {
		s.complexPlan = fft.New(size)
	}
	return s, nil
}

func stftWindowFunc(name string) window.Func {
	switch name {
	case "hamming":
		return window.Hamming
	case "blackman":
		return window.Blackman
	case "bartlett":
		return window.Bartlett
	case "rectangular":
		return window.Rectangular
	default:
		return window.Hann
	}
}

func (s *STFT[T]) Init(inputChannels int, _ float64) error {
	if inputChannels <= 0 {
		return fmt.Errorf("%w: stft needs at least one input channel", dsp.ErrInvalidArgument)
	}
	s.numChannels = inputChannels
	s.buffers = make([]ring.Buffer[T], inputChannels)
	capacity := ring.NextPow2(s.size)
	for i := range s.buffers {
		buf, err := ring.NewBuffer[T](capacity, s.size)
		if err != nil {
			return err
		}
		s.buffers[i] = *buf
	}
	return nil
}

func (s *STFT[T]) bins() int {
	if s.real {
		return s.size/2 + 1
	}
	return s.size
}

func (s *STFT[T]) InputChannels() int { return s.numChannels }

func (s *STFT[T]) OutputChannels() int {
	return s.numChannels * binsPerFrame(s.mode, s.bins())
}

// Latency reports fftSize frames: the first spectrum only appears once the
// analysis window has filled.
func (s *STFT[T]) Latency() int { return s.size }

func (s *STFT[T]) MaxOutputFrames(inFrames int) int {
	return (s.counter+inFrames)/s.hop + 1
}

func (s *STFT[T]) ProcessInterleaved(in []T, inFrames int, out []T) (int, error) {
	ch := s.numChannels
	if len(in) < inFrames*ch {
		return 0, fmt.Errorf("%w: stft: need %d input samples, got %d", dsp.ErrShapeMismatch, inFrames*ch, len(in))
	}
	outCh := s.OutputChannels()
	bins := s.bins()
	perFrameBins := binsPerFrame(s.mode, bins)

	windowed := make([]float64, s.size)
	complexBuf := make([]complex128, s.size)
	spectrum := make([]complex128, bins)
	dst := make([]float64, perFrameBins)

	outFrames := 0
	for f := 0; f < inFrames; f++ {
		for c := 0; c < ch; c++ {
			s.buffers[c].Push(in[f*ch+c])
		}
		s.counter++
		if s.counter < s.hop || s.buffers[0].Len() < s.size {
			continue
		}
		for c := 0; c < ch; c++ {
			tail := s.buffers[c].ReadBack(s.size)
			for i, v := range tail {
				windowed[i] = float64(v) * s.windowCoef[i]
			}
			if s.real {
				s.realPlan.Forward(spectrum, windowed)
			} else {
				for i, v := range windowed {
					complexBuf[i] = complex(v, 0)
				}
				if s.complexPlan != nil {
					s.complexPlan.Forward(spectrum, complexBuf)
				} else {
					fft.Direct(spectrum, complexBuf, true)
				}
			}
			emit(s.mode, spectrum, dst)
			base := outFrames*outCh + c*perFrameBins
			for i, v := range dst {
				out[base+i] = T(v)
			}
		}
		outFrames++
		s.counter -= s.hop
	}
	return outFrames, nil
}

func (s *STFT[T]) Reset() {
	for i := range s.buffers {
		s.buffers[i].Clear()
	}
	s.counter = 0
}

func (s *STFT[T]) Type() string { return "stft" }

func (s *STFT[T]) Serialize() ([]byte, error) {
	buf := appendUint32(nil, uint32(s.size))
	buf = appendUint32(buf, uint32(s.numChannels))
	buf = appendUint32(buf, uint32(s.counter))
	for i := range s.buffers {
		buf = serializeRing(buf, &s.buffers[i])
	}
	return buf, nil
}

func (s *STFT[T]) Deserialize(data []byte) error {
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
		return fmt.Errorf("%w: stft shape mismatch", dsp.ErrStateMismatch)
	}
	counter, err := r.uint32()
	if err != nil {
		return err
	}
	restored := make([]ring.Buffer[T], channels)
	for i := 0; i < int(channels); i++ {
		buf, err := deserializeRing[T](r, s.size)
		if err != nil {
			return err
		}
		restored[i] = *buf
	}
	s.buffers = restored
	s.counter = int(counter)
	return nil
}
