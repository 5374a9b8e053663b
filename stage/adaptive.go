package stage

import (
	"fmt"

	dsp "github.com/thesyncim/godsp"
	"github.com/thesyncim/godsp/ring"
)

// adaptiveAlgorithm selects the weight-update rule.
type adaptiveAlgorithm int

const (
	algoLMS adaptiveAlgorithm = iota
	algoNLMS
	algoRLS
)

func parseAdaptiveAlgorithm(s string) (adaptiveAlgorithm, error) {
	switch s {
	case "", "lms":
		return algoLMS, nil
	case "nlms":
		return algoNLMS, nil
	case "rls":
		return algoRLS, nil
	default:
		return 0, fmt.Errorf("%w: adaptiveFilter: unknown algorithm %q", dsp.ErrInvalidArgument, s)
	}
}

// adaptiveChannel holds one channel's per-tap weight vector, input history,
// and (RLS only) inverse-covariance matrix.
type adaptiveChannel[T dsp.Sample] struct {
	history    *ring.Buffer[T]
	weights    []float64
	normPower  float64     // NLMS: exponentially-smoothed estimate of ||x||^2
	inverseCov [][]float64 // RLS: N x N inverse covariance matrix
}

// Adaptive implements the LMS/NLMS/RLS adaptive filter family:
// an N-tap filter whose weights update sample-by-sample from the error
// between its own prediction and a supplied reference/desired signal.
// Input is interleaved as 2 channels per adapted channel: [signal,
// reference] pairs; output is the error signal e = reference - prediction,
// one channel per adapted pair.
type Adaptive[T dsp.Sample] struct {
	taps      int
	algorithm adaptiveAlgorithm
	mu        float64 // step size
	leakage   float64 // LMS/NLMS leakage factor lambda
	delta     float64 // RLS initial inverseCov = delta*I
	forgetRLS float64 // RLS forgetting factor

	channels    []adaptiveChannel[T]
	numChannels int // number of adapted (signal,reference) pairs
}

// NewAdaptive constructs an adaptive filter with the given tap count,
// algorithm, and tuning parameters. leakage, delta, and forgetRLS use
// sensible defaults (0, 1, 0.99) when zero.
func NewAdaptive[T dsp.Sample](taps int, algorithm string, mu, leakage, delta, forgetRLS float64) (*Adaptive[T], error) {
	if taps <= 0 {
		return nil, fmt.Errorf("%w: adaptiveFilter: taps must be positive", dsp.ErrInvalidArgument)
	}
	algo, err := parseAdaptiveAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}
	if delta == 0 {
		delta = 1.0
	}
	if forgetRLS == 0 {
		forgetRLS = 0.99
	}
	return &Adaptive[T]{taps: taps, algorithm: algo, mu: mu, leakage: leakage, delta: delta, forgetRLS: forgetRLS}, nil
}

func (a *Adaptive[T]) Init(inputChannels int, _ float64) error {
	if inputChannels <= 0 || inputChannels%2 != 0 {
		return fmt.Errorf("%w: adaptiveFilter needs an even channel count (signal,reference pairs)", dsp.ErrInvalidArgument)
	}
	a.numChannels = inputChannels / 2
	a.channels = make([]adaptiveChannel[T], a.numChannels)
	for i := range a.channels {
		hist, err := ring.NewBuffer[T](ring.NextPow2(a.taps), a.taps)
		if err != nil {
			return err
		}
		cs := adaptiveChannel[T]{history: hist, weights: make([]float64, a.taps)}
		if a.algorithm == algoRLS {
			cs.inverseCov = make([][]float64, a.taps)
			for r := range cs.inverseCov {
				cs.inverseCov[r] = make([]float64, a.taps)
				cs.inverseCov[r][r] = a.delta
			}
		}
		a.channels[i] = cs
	}
	return nil
}

func (a *Adaptive[T]) InputChannels() int  { return a.numChannels * 2 }
func (a *Adaptive[T]) OutputChannels() int { return a.numChannels }
func (a *Adaptive[T]) Latency() int        { return 0 }
func (a *Adaptive[T]) MaxOutputFrames(inFrames int) int { return inFrames }

// Weights returns a copy of channel c's current tap weights.
func (a *Adaptive[T]) Weights(c int) []float64 {
	out := make([]float64, a.taps)
	copy(out, a.channels[c].weights)
	return out
}

func (a *Adaptive[T]) ProcessInterleaved(in []T, inFrames int, out []T) (int, error) {
	inCh := a.numChannels * 2
	if len(in) < inFrames*inCh {
		return 0, fmt.Errorf("%w: adaptiveFilter: need %d input samples, got %d", dsp.ErrShapeMismatch, inFrames*inCh, len(in))
	}
	x := make([]float64, a.taps)
	for f := 0; f < inFrames; f++ {
		for c := 0; c < a.numChannels; c++ {
			cs := &a.channels[c]
			signal := in[f*inCh+2*c]
			reference := float64(in[f*inCh+2*c+1])

			cs.history.Push(signal)
			tail := cs.history.ReadBack(a.taps)
			for i, v := range tail {
				x[i] = float64(v)
			}

			var prediction float64
			for i, w := range cs.weights {
				prediction += w * x[i]
			}
			err := reference - prediction
			out[f*a.numChannels+c] = T(err)

			switch a.algorithm {
			case algoLMS:
				a.updateLMS(cs, x, err)
			case algoNLMS:
				a.updateNLMS(cs, x, err)
			case algoRLS:
				a.updateRLS(cs, x, err)
			}
		}
	}
	return inFrames, nil
}

func (a *Adaptive[T]) updateLMS(cs *adaptiveChannel[T], x []float64, e float64) {
	for i := range cs.weights {
		cs.weights[i] = (1-a.mu*a.leakage)*cs.weights[i] + a.mu*e*x[i]
	}
}

func (a *Adaptive[T]) updateNLMS(cs *adaptiveChannel[T], x []float64, e float64) {
	var power float64
	for _, v := range x {
		power += v * v
	}
	const smoothing = 0.99
	cs.normPower = smoothing*cs.normPower + (1-smoothing)*power
	denom := cs.normPower + 1e-12
	step := a.mu / denom
	for i := range cs.weights {
		cs.weights[i] = (1-step*a.leakage)*cs.weights[i] + step*e*x[i]
	}
}

// updateRLS runs the standard recursive least-squares update: gain vector
// k = (P x) / (lambda + x^T P x), weight update w += k*e, and the
// Sherman-Morrison-derived inverse-covariance update P = (P - k (x^T P)) /
// lambda. O(N^2) per sample.
func (a *Adaptive[T]) updateRLS(cs *adaptiveChannel[T], x []float64, e float64) {
	n := a.taps
	px := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		row := cs.inverseCov[i]
		for j := 0; j < n; j++ {
			sum += row[j] * x[j]
		}
		px[i] = sum
	}
	var denom float64
	for i := 0; i < n; i++ {
		denom += x[i] * px[i]
	}
	denom += a.forgetRLS
	gain := make([]float64, n)
	for i := range gain {
		gain[i] = px[i] / denom
	}
	for i := range cs.weights {
		cs.weights[i] += gain[i] * e
	}
	xtP := make([]float64, n)
	for j := 0; j < n; j++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += x[i] * cs.inverseCov[i][j]
		}
		xtP[j] = sum
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			cs.inverseCov[i][j] = (cs.inverseCov[i][j] - gain[i]*xtP[j]) / a.forgetRLS
		}
	}
}

func (a *Adaptive[T]) Reset() {
	for i := range a.channels {
		cs := &a.channels[i]
		cs.history.Clear()
		for j := range cs.weights {
			cs.weights[j] = 0
		}
		cs.normPower = 0
		if cs.inverseCov != nil {
			for r := range cs.inverseCov {
				for c := range cs.inverseCov[r] {
					cs.inverseCov[r][c] = 0
				}
				cs.inverseCov[r][r] = a.delta
			}
		}
	}
}

func (a *Adaptive[T]) Type() string { return "adaptiveFilter" }

func (a *Adaptive[T]) Serialize() ([]byte, error) {
	buf := appendUint32(nil, uint32(a.taps))
	buf = appendUint32(buf, uint32(a.numChannels))
	for i := range a.channels {
		cs := &a.channels[i]
		buf = serializeRing(buf, cs.history)
		for _, w := range cs.weights {
			buf = appendFloat64(buf, w)
		}
		buf = appendFloat64(buf, cs.normPower)
		if a.algorithm == algoRLS {
			for _, row := range cs.inverseCov {
				for _, v := range row {
					buf = appendFloat64(buf, v)
				}
			}
		}
	}
	return buf, nil
}

func (a *Adaptive[T]) Deserialize(data []byte) error {
	r := &reader{data: data}
	taps, err := r.uint32()
	if err != nil {
		return err
	}
	channels, err := r.uint32()
	if err != nil {
		return err
	}
	if int(taps) != a.taps || int(channels) != a.numChannels {
		return fmt.Errorf("%w: adaptiveFilter shape mismatch", dsp.ErrStateMismatch)
	}
	restored := make([]adaptiveChannel[T], channels)
	for c := 0; c < int(channels); c++ {
		hist, err := deserializeRing[T](r, a.taps)
		if err != nil {
			return err
		}
		weights := make([]float64, a.taps)
		for i := range weights {
			v, err := r.float64()
			if err != nil {
				return err
			}
			weights[i] = v
		}
		normPower, err := r.float64()
		if err != nil {
			return err
		}
		cs := adaptiveChannel[T]{history: hist, weights: weights, normPower: normPower}
		if a.algorithm == algoRLS {
			cs.inverseCov = make([][]float64, a.taps)
			for i := range cs.inverseCov {
				row := make([]float64, a.taps)
				for j := range row {
					v, err := r.float64()
					if err != nil {
						return err
					}
					row[j] = v
				}
				cs.inverseCov[i] = row
			}
		}
		restored[c] = cs
	}
	a.channels = restored
	return nil
}

func init() {
	dsp.RegisterStageFactory[float64]("adaptiveFilter", func(p dsp.StageParams) (dsp.Stage[float64], error) {
		return buildAdaptive[float64](p)
	})
	dsp.RegisterStageFactory[float32]("adaptiveFilter", func(p dsp.StageParams) (dsp.Stage[float32], error) {
		return buildAdaptive[float32](p)
	})
}

func buildAdaptive[T dsp.Sample](p dsp.StageParams) (dsp.Stage[T], error) {
	if err := allowedKeys(p, "adaptiveFilter", "taps", "algorithm", "stepSize", "leakage", "delta", "forgettingFactor"); err != nil {
		return nil, err
	}
	taps, ok := paramInt(p, "taps")
	if !ok {
		return nil, fmt.Errorf("%w: adaptiveFilter requires taps", dsp.ErrInvalidArgument)
	}
	algorithm, _ := p["algorithm"].(string)
	mu, _ := paramFloat(p, "stepSize")
	leakage, _ := paramFloat(p, "leakage")
	delta, _ := paramFloat(p, "delta")
	forget, _ := paramFloat(p, "forgettingFactor")
	return NewAdaptive[T](taps, algorithm, mu, leakage, delta, forget)
}
