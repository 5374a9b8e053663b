package stage

import (
	"fmt"
	"math"

	dsp "github.com/thesyncim/godsp"
	"github.com/thesyncim/godsp/window"
)

// FilterBank multiplies channel count: a bank of independent biquad/IIR
// definitions, each applied in parallel to every input channel. Output
// channel count is
// inputChannels * len(definitions), laid out definition-major (all channels
// of definition 0, then all channels of definition 1, ...). Internally this
// is just a slice of independent IIR stages sharing the same input — the
// fan-out itself lives in the interleaving, not in a new filter kernel.
type FilterBank[T dsp.Sample] struct {
	sections    []*IIR[T]
	numChannels int
}

// FilterBankSection is one biquad/IIR definition: feedforward b[] and
// feedback a[1:] (a[0] implicitly 1), matching IIR's raw-coefficient form.
type FilterBankSection struct {
	B []float64
	A []float64
}

// NewFilterBank constructs a filter bank from explicit (b,a) sections.
func NewFilterBank[T dsp.Sample](sections []FilterBankSection) (*FilterBank[T], error) {
	if len(sections) == 0 {
		return nil, fmt.Errorf("%w: filterBank: definitions must be non-empty", dsp.ErrInvalidArgument)
	}
	fb := &FilterBank[T]{sections: make([]*IIR[T], len(sections))}
	for i, sec := range sections {
		iir, err := NewIIR[T](sec.B, sec.A)
		if err != nil {
			return nil, err
		}
		fb.sections[i] = iir
	}
	return fb, nil
}

// NewMelFilterBank builds a log-spaced bank of Butterworth bandpass
// sections approximating Mel-scale frequency bands between loHz and hiHz,
// reusing the same bilinear-transform bandpass designer the iir stage uses.
func NewMelFilterBank[T dsp.Sample](bands int, loHz, hiHz, sampleRate float64) (*FilterBank[T], error) {
	if bands <= 0 || loHz <= 0 || hiHz <= loHz {
		return nil, fmt.Errorf("%w: melFilterBank: invalid band range", dsp.ErrInvalidArgument)
	}
	melLo, melHi := hzToMel(loHz), hzToMel(hiHz)
	sections := make([]FilterBankSection, bands)
	for i := 0; i < bands; i++ {
		m0 := melLo + (melHi-melLo)*float64(i)/float64(bands)
		m1 := melLo + (melHi-melLo)*float64(i+1)/float64(bands)
		c := window.ButterworthBandPass(melToHz(m0), melToHz(m1), sampleRate)
		sections[i] = FilterBankSection{B: c.B, A: c.A[1:]}
	}
	return NewFilterBank[T](sections)
}

func hzToMel(hz float64) float64  { return 2595 * math.Log10(1+hz/700) }
func melToHz(mel float64) float64 { return 700 * (math.Pow(10, mel/2595) - 1) }

func (fb *FilterBank[T]) Init(inputChannels int, sampleRate float64) error {
	if inputChannels <= 0 {
		return fmt.Errorf("%w: filterBank needs at least one input channel", dsp.ErrInvalidArgument)
	}
	fb.numChannels = inputChannels
	for _, sec := range fb.sections {
		if err := sec.Init(inputChannels, sampleRate); err != nil {
			return err
		}
	}
	return nil
}

func (fb *FilterBank[T]) InputChannels() int { return fb.numChannels }

func (fb *FilterBank[T]) OutputChannels() int {
	return fb.numChannels * len(fb.sections)
}

func (fb *FilterBank[T]) Latency() int { return 0 }

func (fb *FilterBank[T]) MaxOutputFrames(inFrames int) int { return inFrames }

func (fb *FilterBank[T]) ProcessInterleaved(in []T, inFrames int, out []T) (int, error) {
	ch := fb.numChannels
	if len(in) < inFrames*ch {
		return 0, fmt.Errorf("%w: filterBank: need %d input samples, got %d", dsp.ErrShapeMismatch, inFrames*ch, len(in))
	}
	sectionOut := make([]T, inFrames*ch)
	for d, sec := range fb.sections {
		n, err := sec.ProcessInterleaved(in, inFrames, sectionOut)
		if err != nil {
			return 0, err
		}
		for f := 0; f < n; f++ {
			for c := 0; c < ch; c++ {
				out[f*fb.OutputChannels()+d*ch+c] = sectionOut[f*ch+c]
			}
		}
	}
	return inFrames, nil
}

func (fb *FilterBank[T]) Reset() {
	for _, sec := range fb.sections {
		sec.Reset()
	}
}

func (fb *FilterBank[T]) Type() string { return "filterBank" }

func (fb *FilterBank[T]) Serialize() ([]byte, error) {
	buf := appendUint32(nil, uint32(len(fb.sections)))
	buf = appendUint32(buf, uint32(fb.numChannels))
	for _, sec := range fb.sections {
		payload, err := sec.Serialize()
		if err != nil {
			return nil, err
		}
		buf = appendUint32(buf, uint32(len(payload)))
		buf = append(buf, payload...)
	}
	return buf, nil
}

func (fb *FilterBank[T]) Deserialize(data []byte) error {
	r := &reader{data: data}
	n, err := r.uint32()
	if err != nil {
		return err
	}
	channels, err := r.uint32()
	if err != nil {
		return err
	}
	if int(n) != len(fb.sections) || int(channels) != fb.numChannels {
		return fmt.Errorf("%w: filterBank shape mismatch", dsp.ErrStateMismatch)
	}
	for i := 0; i < int(n); i++ {
		length, err := r.uint32()
		if err != nil {
			return err
		}
		payload, err := r.bytes(int(length))
		if err != nil {
			return err
		}
		if err := fb.sections[i].Deserialize(payload); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	dsp.RegisterStageFactory[float64]("filterBank", func(p dsp.StageParams) (dsp.Stage[float64], error) {
		return buildFilterBank[float64](p)
	})
	dsp.RegisterStageFactory[float32]("filterBank", func(p dsp.StageParams) (dsp.Stage[float32], error) {
		return buildFilterBank[float32](p)
	})
}

func buildFilterBank[T dsp.Sample](p dsp.StageParams) (dsp.Stage[T], error) {
	if err := allowedKeys(p, "filterBank", "definitions"); err != nil {
		return nil, err
	}
	defsRaw, ok := p["definitions"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: filterBank requires definitions[]", dsp.ErrInvalidArgument)
	}
	sections := make([]FilterBankSection, len(defsRaw))
	for i, raw := range defsRaw {
		def, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: filterBank definitions must be {b,a} maps", dsp.ErrInvalidArgument)
		}
		b, ok := paramFloatSlice(def, "b")
		if !ok {
			return nil, fmt.Errorf("%w: filterBank definition requires b[]", dsp.ErrInvalidArgument)
		}
		a, _ := paramFloatSlice(def, "a")
		sections[i] = FilterBankSection{B: b, A: a}
	}
	return NewFilterBank[T](sections)
}
