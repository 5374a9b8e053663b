package stage

import (
	"fmt"

	dsp "github.com/thesyncim/godsp"
	"github.com/thesyncim/godsp/fft"
	"github.com/thesyncim/godsp/ring"
	"github.com/thesyncim/godsp/simd"
)

// fftCrossoverThreshold is the kernel length above which Convolution
// switches from direct time-domain convolution to FFT overlap-save.
const fftCrossoverThreshold = 128

// Convolution implements three convolution modes: stateless "valid" batch
// convolution, a stateful streaming ring
// (equivalent to FIR but kernel-oriented rather than filter-oriented), and
// FFT overlap-save for long kernels.
type Convolution[T dsp.Sample] struct {
	kernel      []float64
	mode        string // "batch" | "moving" | "fft" (fft is auto-selected, not user-set)
	numChannels int

	// moving mode
	moving []ring.Buffer[T]

	// fft overlap-save mode
	plan      *fft.RealPlan
	overlap   [][]T // per-channel tail of length kernel-1
	kernelFFT []complex128
}

// NewConvolution constructs a convolution stage. mode is "batch" or
// "moving"; FFT overlap-save is selected automatically when len(kernel)
// exceeds fftCrossoverThreshold and mode is "moving" (streaming is where
// overlap-save applies; "batch" always does a direct valid convolution).
func NewConvolution[T dsp.Sample](kernel []float64, mode string) (*Convolution[T], error) {
	if len(kernel) == 0 {
		return nil, fmt.Errorf("%w: convolution: kernel must be non-empty", dsp.ErrInvalidArgument)
	}
	if mode != "batch" && mode != "moving" {
		return nil, fmt.Errorf("%w: convolution: unknown mode %q", dsp.ErrInvalidArgument, mode)
	}
	return &Convolution[T]{kernel: kernel, mode: mode}, nil
}

func (c *Convolution[T]) Init(inputChannels int, _ float64) error {
	if inputChannels <= 0 {
		return fmt.Errorf("%w: convolution needs at least one input channel", dsp.ErrInvalidArgument)
	}
	c.numChannels = inputChannels
	k := len(c.kernel)

	if c.mode == "moving" && k > fftCrossoverThreshold {
		blockN := chooseFFTBlockSize(k)
		c.plan = fft.NewReal(blockN)
		c.overlap = make([][]T, inputChannels)
		for i := range c.overlap {
			c.overlap[i] = make([]T, k-1)
		}
		kernelTime := make([]float64, blockN)
		copy(kernelTime, c.kernel)
		c.kernelFFT = make([]complex128, c.plan.Bins())
		c.plan.Forward(c.kernelFFT, kernelTime)
		c.mode = "fft"
		return nil
	}

	if c.mode == "moving" {
		c.moving = make([]ring.Buffer[T], inputChannels)
		for i := range c.moving {
			buf, err := ring.NewBuffer[T](ring.NextPow2(k), k)
			if err != nil {
				return err
			}
			c.moving[i] = *buf
		}
	}
	return nil
}

// chooseFFTBlockSize picks an FFT block size at least 4x the kernel length
// (overlap-save needs block >= kernel so the valid region is non-trivial;
// 4x amortizes the FFT cost over more useful output samples per block).
func chooseFFTBlockSize(kernelLen int) int {
	return ring.NextPow2(kernelLen * 4)
}

func (c *Convolution[T]) InputChannels() int  { return c.numChannels }
func (c *Convolution[T]) OutputChannels() int { return c.numChannels }

func (c *Convolution[T]) Latency() int {
	if c.mode == "fft" {
		return len(c.kernel) - 1
	}
	return 0
}

func (c *Convolution[T]) MaxOutputFrames(inFrames int) int {
	switch c.mode {
	case "batch":
		n := inFrames - len(c.kernel) + 1
		if n < 0 {
			n = 0
		}
		return n
	default: // moving, fft: output length equals input length
		return inFrames
	}
}

func (c *Convolution[T]) ProcessInterleaved(in []T, inFrames int, out []T) (int, error) {
	ch := c.numChannels
	if len(in) < inFrames*ch {
		return 0, fmt.Errorf("%w: convolution: need %d input samples, got %d", dsp.ErrShapeMismatch, inFrames*ch, len(in))
	}
	switch c.mode {
	case "batch":
		return c.processBatch(in, inFrames, out)
	case "moving":
		return c.processMoving(in, inFrames, out)
	case "fft":
		return c.processFFT(in, inFrames, out)
	default:
		return 0, fmt.Errorf("%w: convolution: unset mode", dsp.ErrInvalidArgument)
	}
}

func (c *Convolution[T]) processBatch(in []T, inFrames int, out []T) (int, error) {
	ch := c.numChannels
	k := len(c.kernel)
	outFrames := inFrames - k + 1
	if outFrames < 0 {
		outFrames = 0
	}
	perChannel := make([]float64, inFrames)
	for ci := 0; ci < ch; ci++ {
		for f := 0; f < inFrames; f++ {
			perChannel[f] = float64(in[f*ch+ci])
		}
		for f := 0; f < outFrames; f++ {
			y := simd.DotProduct(c.kernel, perChannel[f:f+k])
			out[f*ch+ci] = T(y)
		}
	}
	return outFrames, nil
}

func (c *Convolution[T]) processMoving(in []T, inFrames int, out []T) (int, error) {
	ch := c.numChannels
	k := len(c.kernel)
	scratch := make([]float64, k)
	for f := 0; f < inFrames; f++ {
		for ci := 0; ci < ch; ci++ {
			buf := &c.moving[ci]
			buf.Push(in[f*ch+ci])
			if buf.Len() < k {
				out[f*ch+ci] = 0
				continue
			}
			tail := buf.ReadBack(k)
			for i, v := range tail {
				scratch[i] = float64(v)
			}
			out[f*ch+ci] = T(simd.DotProduct(c.kernel, scratch))
		}
	}
	return inFrames, nil
}

// processFFT implements overlap-save: each channel's input block is
// FFT'd, multiplied by the precomputed kernel spectrum, inverse-transformed,
// and the first (kernelLen-1) samples (corrupted by circular wraparound)
// are discarded in favor of the carried-over tail from the previous call.
func (c *Convolution[T]) processFFT(in []T, inFrames int, out []T) (int, error) {
	ch := c.numChannels
	k := len(c.kernel)
	blockN := c.plan.N()
	validLen := blockN - k + 1

	for ci := 0; ci < ch; ci++ {
		pos := 0
		for pos < inFrames {
			n := validLen
			if pos+n > inFrames {
				n = inFrames - pos
			}
			block := make([]float64, blockN)
			copy(block, toFloat64Slice(c.overlap[ci]))
			for i := 0; i < n; i++ {
				block[k-1+i] = float64(in[(pos+i)*ch+ci])
			}
			spectrum := make([]complex128, c.plan.Bins())
			c.plan.Forward(spectrum, block)
			for i := range spectrum {
				spectrum[i] *= c.kernelFFT[i]
			}
			timeDomain := make([]float64, blockN)
			c.plan.Inverse(timeDomain, spectrum)
			for i := 0; i < n; i++ {
				out[(pos+i)*ch+ci] = T(timeDomain[k-1+i])
			}
			// The next call's overlap tail is the most recent kernelLen-1
			// raw samples seen so far: block[0:k-1] held the previous tail
			// and block[k-1:k-1+n] holds this call's new input, so the
			// last k-1 entries of block[:k-1+n] are exactly block[n:k-1+n].
			for i := 0; i < k-1; i++ {
				c.overlap[ci][i] = T(block[n+i])
			}
			pos += n
		}
	}
	return inFrames, nil
}

func toFloat64Slice[T dsp.Sample](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func (c *Convolution[T]) Reset() {
	switch c.mode {
	case "moving":
		for i := range c.moving {
			c.moving[i].Clear()
		}
	case "fft":
		for i := range c.overlap {
			for j := range c.overlap[i] {
				c.overlap[i][j] = 0
			}
		}
	}
}

func (c *Convolution[T]) Type() string { return "convolution" }

func (c *Convolution[T]) Serialize() ([]byte, error) {
	buf := make([]byte, 0, 64)
	buf = appendUint32(buf, uint32(len(c.kernel)))
	buf = appendUint32(buf, uint32(c.numChannels))
	switch c.mode {
	case "moving":
		for i := range c.moving {
			buf = serializeRing(buf, &c.moving[i])
		}
	case "fft":
		for _, tail := range c.overlap {
			for _, v := range tail {
				buf = appendFloat64(buf, float64(v))
			}
		}
	}
	return buf, nil
}

func (c *Convolution[T]) Deserialize(data []byte) error {
	r := &reader{data: data}
	k, err := r.uint32()
	if err != nil {
		return err
	}
	channels, err := r.uint32()
	if err != nil {
		return err
	}
	if int(k) != len(c.kernel) || int(channels) != c.numChannels {
		return fmt.Errorf("%w: convolution shape mismatch", dsp.ErrStateMismatch)
	}
	switch c.mode {
	case "moving":
		restored := make([]ring.Buffer[T], channels)
		for i := 0; i < int(channels); i++ {
			buf, err := deserializeRing[T](r, int(k))
			if err != nil {
				return err
			}
			restored[i] = *buf
		}
		c.moving = restored
	case "fft":
		restored := make([][]T, channels)
		for i := 0; i < int(channels); i++ {
			tail := make([]T, k-1)
			for j := range tail {
				v, err := r.float64()
				if err != nil {
					return err
				}
				tail[j] = T(v)
			}
			restored[i] = tail
		}
		c.overlap = restored
	}
	return nil
}

func init() {
	dsp.RegisterStageFactory[float64]("convolution", func(p dsp.StageParams) (dsp.Stage[float64], error) {
		return buildConvolution[float64](p)
	})
	dsp.RegisterStageFactory[float32]("convolution", func(p dsp.StageParams) (dsp.Stage[float32], error) {
		return buildConvolution[float32](p)
	})
}

func buildConvolution[T dsp.Sample](p dsp.StageParams) (dsp.Stage[T], error) {
	if err := allowedKeys(p, "convolution", "kernel", "mode"); err != nil {
		return nil, err
	}
	kernel, ok := paramFloatSlice(p, "kernel")
	if !ok {
		return nil, fmt.Errorf("%w: convolution requires kernel", dsp.ErrInvalidArgument)
	}
	mode, _ := p["mode"].(string)
	if mode == "" {
		mode = "batch"
	}
	return NewConvolution[T](kernel, mode)
}
