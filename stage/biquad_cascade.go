package stage

import (
	"fmt"

	dsp "github.com/thesyncim/godsp"
)

// BiquadCascade chains several second-order IIR sections end to end, each
// section's output feeding the next — the standard way a higher-order EQ
// or filter design (e.g. a Butterworth of order > 2) is realized as a
// product of stable biquads rather than one ill-conditioned high-order
// Direct Form I filter. Every section still runs Direct Form I
// internally (IIR); the cascade only composes them in series.
type BiquadCascade[T dsp.Sample] struct {
	sections    []*IIR[T]
	numChannels int
}

// NewBiquadCascade builds a cascade from an ordered list of biquad
// coefficient sections (b has at most 3 taps, a at most 2 feedback
// coefficients per section, matching the canonical biquad shape; an
// empty a[] is a valid all-zero-feedback, i.e. FIR, section).
func NewBiquadCascade[T dsp.Sample](sections []FilterBankSection) (*BiquadCascade[T], error) {
	if len(sections) == 0 {
		return nil, fmt.Errorf("%w: biquadCascade: at least one section is required", dsp.ErrInvalidArgument)
	}
	built := make([]*IIR[T], len(sections))
	for i, sec := range sections {
		if len(sec.B) > 3 || len(sec.A) > 2 {
			return nil, fmt.Errorf("%w: biquadCascade: section %d is not a biquad (len(b)<=3, len(a)<=2)", dsp.ErrInvalidArgument, i)
		}
		f, err := NewIIR[T](sec.B, sec.A)
		if err != nil {
			return nil, fmt.Errorf("biquadCascade: section %d: %w", i, err)
		}
		built[i] = f
	}
	return &BiquadCascade[T]{sections: built}, nil
}

func (c *BiquadCascade[T]) Init(inputChannels int, sampleRate float64) error {
	if inputChannels <= 0 {
		return fmt.Errorf("%w: biquadCascade needs at least one input channel", dsp.ErrInvalidArgument)
	}
	for i, s := range c.sections {
		if err := s.Init(inputChannels, sampleRate); err != nil {
			return fmt.Errorf("biquadCascade: section %d: %w", i, err)
		}
	}
	c.numChannels = inputChannels
	return nil
}

func (c *BiquadCascade[T]) InputChannels() int  { return c.numChannels }
func (c *BiquadCascade[T]) OutputChannels() int { return c.numChannels }
func (c *BiquadCascade[T]) Latency() int        { return 0 }
func (c *BiquadCascade[T]) MaxOutputFrames(inFrames int) int { return inFrames }

func (c *BiquadCascade[T]) ProcessInterleaved(in []T, inFrames int, out []T) (int, error) {
	cur := in
	last := len(c.sections) - 1
	for i, s := range c.sections {
		dst := out
		if i != last {
			dst = make([]T, inFrames*c.numChannels)
		}
		n, err := s.ProcessInterleaved(cur, inFrames, dst)
		if err != nil {
			return 0, fmt.Errorf("biquadCascade: section %d: %w", i, err)
		}
		cur = dst[:n*c.numChannels]
		inFrames = n
	}
	return inFrames, nil
}

func (c *BiquadCascade[T]) Reset() {
	for _, s := range c.sections {
		s.Reset()
	}
}

func (c *BiquadCascade[T]) Type() string { return "biquadCascade" }

func (c *BiquadCascade[T]) Serialize() ([]byte, error) {
	buf := appendUint32(nil, uint32(len(c.sections)))
	buf = appendUint32(buf, uint32(c.numChannels))
	for _, s := range c.sections {
		payload, err := s.Serialize()
		if err != nil {
			return nil, err
		}
		buf = appendUint32(buf, uint32(len(payload)))
		buf = append(buf, payload...)
	}
	return buf, nil
}

func (c *BiquadCascade[T]) Deserialize(data []byte) error {
	r := &reader{data: data}
	count, err := r.uint32()
	if err != nil {
		return err
	}
	channels, err := r.uint32()
	if err != nil {
		return err
	}
	if int(count) != len(c.sections) || int(channels) != c.numChannels {
		return fmt.Errorf("%w: biquadCascade shape mismatch", dsp.ErrStateMismatch)
	}
	for _, s := range c.sections {
		plen, err := r.uint32()
		if err != nil {
			return err
		}
		payload, err := r.bytes(int(plen))
		if err != nil {
			return err
		}
		if err := s.Deserialize(payload); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	dsp.RegisterStageFactory[float64]("biquadCascade", func(p dsp.StageParams) (dsp.Stage[float64], error) {
		return buildBiquadCascade[float64](p)
	})
	dsp.RegisterStageFactory[float32]("biquadCascade", func(p dsp.StageParams) (dsp.Stage[float32], error) {
		return buildBiquadCascade[float32](p)
	})
}

func buildBiquadCascade[T dsp.Sample](p dsp.StageParams) (dsp.Stage[T], error) {
	if err := allowedKeys(p, "biquadCascade", "sections"); err != nil {
		return nil, err
	}
	raw, ok := p["sections"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: biquadCascade requires a sections list", dsp.ErrInvalidArgument)
	}
	sections := make([]FilterBankSection, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: biquadCascade: each section must be a {b, a} map", dsp.ErrInvalidArgument)
		}
		b, _ := paramFloatSlice(m, "b")
		a, _ := paramFloatSlice(m, "a")
		sections = append(sections, FilterBankSection{B: b, A: a})
	}
	return NewBiquadCascade[T](sections)
}
