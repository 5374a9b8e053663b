package stage

import (
	"fmt"
	"math"

	dsp "github.com/thesyncim/godsp"
	"github.com/thesyncim/godsp/ring"
	"github.com/thesyncim/godsp/util"
	"github.com/thesyncim/godsp/window"
)

type iirChannel[T dsp.Sample] struct {
	xState *ring.Buffer[T]
	yState *ring.Buffer[T]
}

// IIR implements the Direct Form I recursive filter:
// y[n] = sum_i b[i]*x[n-i] - sum_j a[j]*y[n-j], with a[0] implicitly 1
// (the caller-supplied a[] starts at a[1]; b[] and a[] are both stored in
// natural order and reversed internally to match ring.Buffer.ReadBack's
// oldest-first convention, the same trick FIR uses).
type IIR[T dsp.Sample] struct {
	bRev []float64 // reversed b[], length M
	aRev []float64 // reversed a[1:], length N (excludes implicit a[0]=1)

	channels    []iirChannel[T]
	numChannels int
}

// NewIIR constructs an IIR stage from b[] (feedforward, including b[0]) and
// a[] (feedback, a[0] implicitly 1; a[1:] supplied here).
func NewIIR[T dsp.Sample](b, a []float64) (*IIR[T], error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: iir: b[] must be non-empty", dsp.ErrInvalidArgument)
	}
	var sumAbsA float64
	for _, v := range a {
		sumAbsA += util.Abs(v)
	}
	if len(a) > 0 && sumAbsA == 0 {
		return nil, fmt.Errorf("%w: iir: a[] is all zero", dsp.ErrNumericalError)
	}
	bRev := make([]float64, len(b))
	for i, v := range b {
		bRev[len(b)-1-i] = v
	}
	aRev := make([]float64, len(a))
	for i, v := range a {
		aRev[len(a)-1-i] = v
	}
	return &IIR[T]{bRev: bRev, aRev: aRev}, nil
}

func (f *IIR[T]) Init(inputChannels int, _ float64) error {
	if inputChannels <= 0 {
		return fmt.Errorf("%w: iir needs at least one input channel", dsp.ErrInvalidArgument)
	}
	f.numChannels = inputChannels
	f.channels = make([]iirChannel[T], inputChannels)
	xCap := ring.NextPow2(len(f.bRev))
	yCap := ring.NextPow2(max1(len(f.aRev)))
	for i := range f.channels {
		xBuf, err := ring.NewBuffer[T](xCap, len(f.bRev))
		if err != nil {
			return err
		}
		yBuf, err := ring.NewBuffer[T](yCap, max1(len(f.aRev)))
		if err != nil {
			return err
		}
		f.channels[i] = iirChannel[T]{xState: xBuf, yState: yBuf}
	}
	return nil
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func (f *IIR[T]) InputChannels() int  { return f.numChannels }
func (f *IIR[T]) OutputChannels() int { return f.numChannels }
func (f *IIR[T]) Latency() int        { return 0 }
func (f *IIR[T]) MaxOutputFrames(inFrames int) int { return inFrames }

// IsStable reports a necessary (not sufficient) stability check:
// sum(|a_j|) < 1.
func (f *IIR[T]) IsStable() bool {
	var sum float64
	for _, v := range f.aRev {
		sum += util.Abs(v)
	}
	return sum < 1
}

func (f *IIR[T]) ProcessInterleaved(in []T, inFrames int, out []T) (int, error) {
	ch := f.numChannels
	if len(in) < inFrames*ch {
		return 0, fmt.Errorf("%w: iir: need %d input samples, got %d", dsp.ErrShapeMismatch, inFrames*ch, len(in))
	}
	m, n := len(f.bRev), len(f.aRev)
	for frame := 0; frame < inFrames; frame++ {
		for c := 0; c < ch; c++ {
			cs := &f.channels[c]
			cs.xState.Push(in[frame*ch+c])

			var forward float64
			xs := cs.xState.ReadBack(m)
			for i, v := range xs {
				forward += f.bRev[i] * float64(v)
			}

			var feedback float64
			if n > 0 {
				ys := cs.yState.ReadBack(n)
				for i, v := range ys {
					feedback += f.aRev[i] * float64(v)
				}
			}

			y := forward - feedback
			out[frame*ch+c] = T(y)
			cs.yState.Push(T(y))
		}
	}
	return inFrames, nil
}

func (f *IIR[T]) Reset() {
	for i := range f.channels {
		f.channels[i].xState.Clear()
		f.channels[i].yState.Clear()
	}
}

func (f *IIR[T]) Type() string { return "iir" }

func (f *IIR[T]) Serialize() ([]byte, error) {
	buf := make([]byte, 0, 256)
	buf = appendUint32(buf, uint32(len(f.bRev)))
	buf = appendUint32(buf, uint32(len(f.aRev)))
	buf = appendUint32(buf, uint32(f.numChannels))
	for _, cs := range f.channels {
		buf = serializeRing(buf, cs.xState)
		buf = serializeRing(buf, cs.yState)
	}
	return buf, nil
}

func serializeRing[T dsp.Sample](buf []byte, b *ring.Buffer[T]) []byte {
	raw := b.RawContents()
	buf = appendUint32(buf, uint32(b.Capacity()))
	buf = appendUint32(buf, uint32(b.Head()))
	buf = appendUint32(buf, uint32(b.Len()))
	for _, v := range raw {
		buf = appendFloat64(buf, float64(v))
	}
	return buf
}

func (f *IIR[T]) Deserialize(data []byte) error {
	r := &reader{data: data}
	m, err := r.uint32()
	if err != nil {
		return err
	}
	n, err := r.uint32()
	if err != nil {
		return err
	}
	channels, err := r.uint32()
	if err != nil {
		return err
	}
	if int(m) != len(f.bRev) || int(n) != len(f.aRev) || int(channels) != f.numChannels {
		return fmt.Errorf("%w: iir shape mismatch", dsp.ErrStateMismatch)
	}
	restored := make([]iirChannel[T], channels)
	for c := 0; c < int(channels); c++ {
		xBuf, err := deserializeRing[T](r, len(f.bRev))
		if err != nil {
			return err
		}
		yBuf, err := deserializeRing[T](r, max1(len(f.aRev)))
		if err != nil {
			return err
		}
		restored[c] = iirChannel[T]{xState: xBuf, yState: yBuf}
	}
	f.channels = restored
	return nil
}

func deserializeRing[T dsp.Sample](r *reader, window int) (*ring.Buffer[T], error) {
	capacity, err := r.uint32()
	if err != nil {
		return nil, err
	}
	head, err := r.uint32()
	if err != nil {
		return nil, err
	}
	count, err := r.uint32()
	if err != nil {
		return nil, err
	}
	raw := make([]T, capacity)
	for i := range raw {
		v, err := r.float64()
		if err != nil {
			return nil, err
		}
		raw[i] = T(v)
	}
	buf, err := ring.NewBuffer[T](int(capacity), window)
	if err != nil {
		return nil, err
	}
	if err := buf.RestoreRaw(raw, int(head), int(count)); err != nil {
		return nil, err
	}
	return buf, nil
}

func init() {
	dsp.RegisterStageFactory[float64]("iir", func(p dsp.StageParams) (dsp.Stage[float64], error) {
		return buildIIR[float64](p)
	})
	dsp.RegisterStageFactory[float32]("iir", func(p dsp.StageParams) (dsp.Stage[float32], error) {
		return buildIIR[float32](p)
	})
}

func buildIIR[T dsp.Sample](p dsp.StageParams) (dsp.Stage[T], error) {
	if err := allowedKeys(p, "iir", "b", "a", "mode", "sampleRate", "order", "rippleDB", "cutoffFrequency", "q", "gainDB"); err != nil {
		return nil, err
	}
	if b, ok := paramFloatSlice(p, "b"); ok {
		a, _ := paramFloatSlice(p, "a")
		return NewIIR[T](b, a)
	}
	mode, _ := p["mode"].(string)
	sampleRate, ok := paramFloat(p, "sampleRate")
	if !ok || sampleRate <= 0 {
		return nil, fmt.Errorf("%w: iir designer requires sampleRate", dsp.ErrInvalidArgument)
	}
	order, _ := paramInt(p, "order")
	rippleDB, _ := paramFloat(p, "rippleDB")

	var c window.Coefficients
	switch mode {
	case "lowpass":
		cutoff, ok := paramFloat(p, "cutoffFrequency")
		if !ok {
			return nil, fmt.Errorf("%w: iir lowpass requires cutoffFrequency", dsp.ErrInvalidArgument)
		}
		if rippleDB > 0 {
			c = window.ChebyshevLowPass(cutoff, sampleRate, rippleDB)
		} else if order >= 2 {
			c = window.ButterworthLowPass2(cutoff, sampleRate)
		} else if order == 1 {
			c = window.ButterworthLowPass1(cutoff, sampleRate)
		} else {
			c = window.FirstOrderLowPass(cutoff, sampleRate)
		}
	case "highpass":
		cutoff, ok := paramFloat(p, "cutoffFrequency")
		if !ok {
			return nil, fmt.Errorf("%w: iir highpass requires cutoffFrequency", dsp.ErrInvalidArgument)
		}
		if rippleDB > 0 {
			c = window.ChebyshevHighPass(cutoff, sampleRate, rippleDB)
		} else if order >= 2 {
			c = window.ButterworthHighPass2(cutoff, sampleRate)
		} else if order == 1 {
			c = window.ButterworthHighPass1(cutoff, sampleRate)
		} else {
			c = window.FirstOrderHighPass(cutoff, sampleRate)
		}
	case "bandpass":
		lowHz, highHz, err := lowHighParams(p)
		if err != nil {
			return nil, err
		}
		if rippleDB > 0 {
			c = window.ChebyshevBandPass(lowHz, highHz, sampleRate, rippleDB)
		} else {
			c = window.ButterworthBandPass(lowHz, highHz, sampleRate)
		}
	case "peakingEQ":
		freq, q, gain, err := eqParams(p)
		if err != nil {
			return nil, err
		}
		c = window.PeakingEQ(freq, sampleRate, q, gain)
	case "lowShelf":
		freq, _, gain, err := eqParams(p)
		if err != nil {
			return nil, err
		}
		c = window.LowShelf(freq, sampleRate, gain)
	case "highShelf":
		freq, _, gain, err := eqParams(p)
		if err != nil {
			return nil, err
		}
		c = window.HighShelf(freq, sampleRate, gain)
	default:
		return nil, fmt.Errorf("%w: iir: unknown mode %q", dsp.ErrInvalidArgument, mode)
	}
	return NewIIR[T](c.B, c.A[1:])
}

func eqParams(p dsp.StageParams) (freq, q, gainDB float64, err error) {
	freq, ok := paramFloat(p, "cutoffFrequency")
	if !ok {
		return 0, 0, 0, fmt.Errorf("%w: EQ biquad requires cutoffFrequency", dsp.ErrInvalidArgument)
	}
	q, ok = paramFloat(p, "q")
	if !ok {
		q = math.Sqrt2 / 2
	}
	gainDB, _ = paramFloat(p, "gainDB")
	return freq, q, gainDB, nil
}
