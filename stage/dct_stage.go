package stage

import (
	"fmt"

	dsp "github.com/thesyncim/godsp"
	"github.com/thesyncim/godsp/fft"
)

// DCT implements the Type-II/Type-III DCT engine as a stage:
// each call of size N per channel produces N DCT coefficients (forward) or
// N reconstructed samples (inverse). Unlike FFTStage this never touches the
// complex engine: fft.DCTPlan uses its own cosine table.
type DCT[T dsp.Sample] struct {
	plan        *fft.DCTPlan
	inverse     bool
	numChannels int
}

// NewDCT constructs a DCT stage for blocks of length n. inverse selects
// Type-III (reconstruction) instead of the default Type-II (analysis).
func NewDCT[T dsp.Sample](n int, inverse bool) (*DCT[T], error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: dct: size must be positive", dsp.ErrInvalidArgument)
	}
	return &DCT[T]{plan: fft.NewDCT(n), inverse: inverse}, nil
}

func (d *DCT[T]) Init(inputChannels int, _ float64) error {
	if inputChannels <= 0 {
		return fmt.Errorf("%w: dct needs at least one input channel", dsp.ErrInvalidArgument)
	}
	d.numChannels = inputChannels
	return nil
}

func (d *DCT[T]) InputChannels() int  { return d.numChannels }
func (d *DCT[T]) OutputChannels() int { return d.numChannels }
func (d *DCT[T]) Latency() int        { return 0 }

func (d *DCT[T]) MaxOutputFrames(inFrames int) int {
	n := d.plan.N()
	if n == 0 {
		return 0
	}
	return inFrames / n
}

func (d *DCT[T]) ProcessInterleaved(in []T, inFrames int, out []T) (int, error) {
	ch := d.numChannels
	n := d.plan.N()
	if len(in) < inFrames*ch {
		return 0, fmt.Errorf("%w: dct: need %d input samples, got %d", dsp.ErrShapeMismatch, inFrames*ch, len(in))
	}
	blocks := inFrames / n
	src := make([]float64, n)
	dst := make([]float64, n)
	for b := 0; b < blocks; b++ {
		for c := 0; c < ch; c++ {
			for i := 0; i < n; i++ {
				src[i] = float64(in[(b*n+i)*ch+c])
			}
			if d.inverse {
				d.plan.Inverse(dst, src)
			} else {
				d.plan.Forward(dst, src)
			}
			for i := 0; i < n; i++ {
				out[(b*n+i)*ch+c] = T(dst[i])
			}
		}
	}
	return blocks * n, nil
}

func (d *DCT[T]) Reset() {}

func (d *DCT[T]) Type() string { return "dct" }

func (d *DCT[T]) Serialize() ([]byte, error) {
	buf := appendUint32(nil, uint32(d.plan.N()))
	buf = appendUint32(buf, uint32(d.numChannels))
	return buf, nil
}

func (d *DCT[T]) Deserialize(data []byte) error {
	r := &reader{data: data}
	n, err := r.uint32()
	if err != nil {
		return err
	}
	channels, err := r.uint32()
	if err != nil {
		return err
	}
	if int(n) != d.plan.N() || int(channels) != d.numChannels {
		return fmt.Errorf("%w: dct shape mismatch", dsp.ErrStateMismatch)
	}
	return nil
}

func init() {
	dsp.RegisterStageFactory[float64]("dct", func(p dsp.StageParams) (dsp.Stage[float64], error) {
		return buildDCT[float64](p)
	})
	dsp.RegisterStageFactory[float32]("dct", func(p dsp.StageParams) (dsp.Stage[float32], error) {
		return buildDCT[float32](p)
	})
}

func buildDCT[T dsp.Sample](p dsp.StageParams) (dsp.Stage[T], error) {
	if err := allowedKeys(p, "dct", "size", "inverse"); err != nil {
		return nil, err
	}
	size, ok := paramInt(p, "size")
	if !ok {
		return nil, fmt.Errorf("%w: dct requires size", dsp.ErrInvalidArgument)
	}
	inverse, _ := p["inverse"].(bool)
	return NewDCT[T](size, inverse)
}
