package stage

import (
	"fmt"

	dsp "github.com/thesyncim/godsp"
	"github.com/thesyncim/godsp/ring"
	"github.com/thesyncim/godsp/simd"
	"github.com/thesyncim/godsp/window"
)

// firChannel holds one channel's guard-zone ring buffer plus the scratch
// float64 views Init preallocates so ProcessInterleaved never allocates.
type firChannel[T dsp.Sample] struct {
	history *ring.Buffer[T]
	scratch []float64 // length len(taps), reused every call to feed simd.DotProduct
}

// FIR implements the Direct Form FIR filter: y[n] = sum_i
// taps[i]*x[n-i]. taps is stored reversed (oldest-tap-first) so it lines up
// directly with ring.Buffer.ReadBack's oldest-first ordering, letting
// ProcessInterleaved call simd.DotProduct with no per-sample reordering.
type FIR[T dsp.Sample] struct {
	tapsReversed []float64
	channels     []firChannel[T]
	numChannels  int
}

// NewFIR constructs a FIR stage from taps in natural order (taps[0] is the
// coefficient applied to the current sample).
func NewFIR[T dsp.Sample](taps []float64) (*FIR[T], error) {
	if len(taps) == 0 {
		return nil, fmt.Errorf("%w: fir: coefficients must be non-empty", dsp.ErrInvalidArgument)
	}
	rev := make([]float64, len(taps))
	for i, t := range taps {
		rev[len(taps)-1-i] = t
	}
	return &FIR[T]{tapsReversed: rev}, nil
}

func (f *FIR[T]) Init(inputChannels int, _ float64) error {
	if inputChannels <= 0 {
		return fmt.Errorf("%w: fir needs at least one input channel", dsp.ErrInvalidArgument)
	}
	m := len(f.tapsReversed)
	capacity := ring.NextPow2(m)
	f.numChannels = inputChannels
	f.channels = make([]firChannel[T], inputChannels)
	for i := range f.channels {
		buf, err := ring.NewBuffer[T](capacity, m)
		if err != nil {
			return err
		}
		f.channels[i] = firChannel[T]{history: buf, scratch: make([]float64, m)}
	}
	return nil
}

func (f *FIR[T]) InputChannels() int  { return f.numChannels }
func (f *FIR[T]) OutputChannels() int { return f.numChannels }
func (f *FIR[T]) Latency() int        { return 0 }
func (f *FIR[T]) MaxOutputFrames(inFrames int) int { return inFrames }

func (f *FIR[T]) ProcessInterleaved(in []T, inFrames int, out []T) (int, error) {
	ch := f.numChannels
	m := len(f.tapsReversed)
	if len(in) < inFrames*ch {
		return 0, fmt.Errorf("%w: fir: need %d input samples, got %d", dsp.ErrShapeMismatch, inFrames*ch, len(in))
	}
	for frame := 0; frame < inFrames; frame++ {
		for c := 0; c < ch; c++ {
			cs := &f.channels[c]
			cs.history.Push(in[frame*ch+c])
			tail := cs.history.ReadBack(m)
			for i, v := range tail {
				cs.scratch[i] = float64(v)
			}
			y := simd.DotProduct(f.tapsReversed, cs.scratch)
			out[frame*ch+c] = T(y)
		}
	}
	return inFrames, nil
}

func (f *FIR[T]) Reset() {
	for i := range f.channels {
		f.channels[i].history.Clear()
	}
}

func (f *FIR[T]) Type() string { return "fir" }

func (f *FIR[T]) Serialize() ([]byte, error) {
	m := len(f.tapsReversed)
	buf := make([]byte, 0, 16+f.numChannels*(m*8+8))
	buf = appendUint32(buf, uint32(m))
	buf = appendUint32(buf, uint32(f.numChannels))
	for _, cs := range f.channels {
		raw := cs.history.RawContents()
		buf = appendUint32(buf, uint32(cs.history.Head()))
		buf = appendUint32(buf, uint32(cs.history.Len()))
		for _, v := range raw {
			buf = appendFloat64(buf, float64(v))
		}
	}
	return buf, nil
}

func (f *FIR[T]) Deserialize(data []byte) error {
	r := &reader{data: data}
	m, err := r.uint32()
	if err != nil {
		return err
	}
	channels, err := r.uint32()
	if err != nil {
		return err
	}
	if int(m) != len(f.tapsReversed) || int(channels) != f.numChannels {
		return fmt.Errorf("%w: fir shape mismatch", dsp.ErrStateMismatch)
	}
	restored := make([]firChannel[T], channels)
	capacity := f.channels[0].history.Capacity()
	for c := 0; c < int(channels); c++ {
		head, err := r.uint32()
		if err != nil {
			return err
		}
		count, err := r.uint32()
		if err != nil {
			return err
		}
		raw := make([]T, capacity)
		for i := range raw {
			v, err := r.float64()
			if err != nil {
				return err
			}
			raw[i] = T(v)
		}
		buf, err := ring.NewBuffer[T](capacity, int(m))
		if err != nil {
			return err
		}
		if err := buf.RestoreRaw(raw, int(head), int(count)); err != nil {
			return err
		}
		restored[c] = firChannel[T]{history: buf, scratch: make([]float64, m)}
	}
	f.channels = restored
	return nil
}

func init() {
	dsp.RegisterStageFactory[float64]("fir", func(p dsp.StageParams) (dsp.Stage[float64], error) {
		return buildFIR[float64](p)
	})
	dsp.RegisterStageFactory[float32]("fir", func(p dsp.StageParams) (dsp.Stage[float32], error) {
		return buildFIR[float32](p)
	})
}

func buildFIR[T dsp.Sample](p dsp.StageParams) (dsp.Stage[T], error) {
	if err := allowedKeys(p, "fir", "coefficients", "mode", "order", "sampleRate", "windowType", "cutoffFrequency"); err != nil {
		return nil, err
	}
	if taps, ok := paramFloatSlice(p, "coefficients"); ok {
		return NewFIR[T](taps)
	}
	mode, _ := p["mode"].(string)
	order, _ := paramInt(p, "order")
	sampleRate, _ := paramFloat(p, "sampleRate")
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: fir designer requires sampleRate", dsp.ErrInvalidArgument)
	}
	numTaps := order + 1
	if numTaps%2 == 0 {
		numTaps++ // force odd length for a zero-phase linear design
	}
	w := windowFuncByName(p)

	switch mode {
	case "lowpass":
		cutoff, ok := paramFloat(p, "cutoffFrequency")
		if !ok {
			return nil, fmt.Errorf("%w: fir lowpass requires cutoffFrequency", dsp.ErrInvalidArgument)
		}
		return NewFIR[T](window.FIRLowPass(numTaps, cutoff/sampleRate, w))
	case "highpass":
		cutoff, ok := paramFloat(p, "cutoffFrequency")
		if !ok {
			return nil, fmt.Errorf("%w: fir highpass requires cutoffFrequency", dsp.ErrInvalidArgument)
		}
		return NewFIR[T](window.FIRHighPass(numTaps, cutoff/sampleRate, w))
	case "bandpass", "bandstop":
		lowHz, highHz, err := lowHighParams(p)
		if err != nil {
			return nil, err
		}
		if mode == "bandpass" {
			return NewFIR[T](window.FIRBandPass(numTaps, lowHz/sampleRate, highHz/sampleRate, w))
		}
		return NewFIR[T](window.FIRBandStop(numTaps, lowHz/sampleRate, highHz/sampleRate, w))
	default:
		return nil, fmt.Errorf("%w: fir: unknown mode %q", dsp.ErrInvalidArgument, mode)
	}
}

func windowFuncByName(p dsp.StageParams) window.Func {
	name, _ := p["windowType"].(string)
	switch name {
	case "hann":
		return window.Hann
	case "blackman":
		return window.Blackman
	case "bartlett":
		return window.Bartlett
	case "rectangular":
		return window.Rectangular
	default:
		return window.Hamming
	}
}

func lowHighParams(p dsp.StageParams) (low, high float64, err error) {
	band, ok := p["cutoffFrequency"].(map[string]any)
	if !ok {
		return 0, 0, fmt.Errorf("%w: band filter requires cutoffFrequency {low, high}", dsp.ErrInvalidArgument)
	}
	lowV, lok := band["low"].(float64)
	highV, hok := band["high"].(float64)
	if !lok || !hok {
		return 0, 0, fmt.Errorf("%w: band filter cutoffFrequency needs numeric low/high", dsp.ErrInvalidArgument)
	}
	return lowV, highV, nil
}
