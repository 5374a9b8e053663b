package stage

import (
	"fmt"

	dsp "github.com/thesyncim/godsp"
	"github.com/thesyncim/godsp/ring"
)

// PeakDetector implements a local-maxima peak finder: a sample is
// a candidate peak iff it strictly exceeds its w/2 neighbors on each side
// and is >= threshold; a minimum-peak-distance post-pass then cancels any
// candidate within d samples of an already-accepted peak at least as high. This is a
// distinct algorithm from policy.Peak (which tracks a running window
// maximum) — here the output is a sparse stream of (index, value) events,
// emitted as two interleaved "channels" (index, value) per detected peak.
type PeakDetector[T dsp.Sample] struct {
	windowSize int // odd, >= 3
	half       int
	threshold  float64
	minDist    int

	history []ring.Buffer[T] // per channel, capacity >= windowSize, holds the trailing window
	seen    []int64          // per channel, running count of pushed samples (global index)

	lastAccepted []int64   // per channel, global index of the last accepted peak
	lastValue    []float64 // per channel, value of the last accepted peak

	numChannels int
}

// NewPeakDetector constructs a local-maxima detector. windowSize must be odd
// and >= 3. minDistance is the minimum sample gap enforced between accepted
// peaks (0 disables the post-pass).
func NewPeakDetector[T dsp.Sample](windowSize int, threshold float64, minDistance int) (*PeakDetector[T], error) {
	if windowSize < 3 || windowSize%2 == 0 {
		return nil, fmt.Errorf("%w: peak: windowSize must be odd and >= 3", dsp.ErrInvalidArgument)
	}
	if minDistance < 0 {
		return nil, fmt.Errorf("%w: peak: minDistance must be non-negative", dsp.ErrInvalidArgument)
	}
	return &PeakDetector[T]{
		windowSize: windowSize,
		half:       windowSize / 2,
		threshold:  threshold,
		minDist:    minDistance,
	}, nil
}

func (p *PeakDetector[T]) Init(inputChannels int, _ float64) error {
	if inputChannels <= 0 {
		return fmt.Errorf("%w: peak needs at least one input channel", dsp.ErrInvalidArgument)
	}
	p.numChannels = inputChannels
	p.history = make([]ring.Buffer[T], inputChannels)
	p.seen = make([]int64, inputChannels)
	p.lastAccepted = make([]int64, inputChannels)
	p.lastValue = make([]float64, inputChannels)
	for i := range p.history {
		buf, err := ring.NewBuffer[T](ring.NextPow2(p.windowSize), p.windowSize)
		if err != nil {
			return err
		}
		p.history[i] = *buf
		p.lastAccepted[i] = -int64(p.minDist) - 1
	}
	return nil
}

func (p *PeakDetector[T]) InputChannels() int { return p.numChannels }

// OutputChannels emits 2 values per input channel: detected-peak index (as
// a float) and its value, or zeros when no peak is confirmed at the
// current frame (a peak is confirmed half a window after its own index,
// see Latency). A consumer filters on the zero sentinel; there is no
// separate "valid" flag channel.
func (p *PeakDetector[T]) OutputChannels() int { return p.numChannels * 2 }

// Latency is half the window: a candidate at global index i can only be
// confirmed once the trailing half-window of future samples has arrived.
func (p *PeakDetector[T]) Latency() int { return p.half }

func (p *PeakDetector[T]) MaxOutputFrames(inFrames int) int { return inFrames }

func (p *PeakDetector[T]) ProcessInterleaved(in []T, inFrames int, out []T) (int, error) {
	ch := p.numChannels
	if len(in) < inFrames*ch {
		return 0, fmt.Errorf("%w: peak: need %d input samples, got %d", dsp.ErrShapeMismatch, inFrames*ch, len(in))
	}
	w := p.windowSize
	for f := 0; f < inFrames; f++ {
		for c := 0; c < ch; c++ {
			buf := &p.history[c]
			buf.Push(in[f*ch+c])
			p.seen[c]++
			outBase := f*p.numChannels*2 + c*2
			out[outBase] = 0
			out[outBase+1] = 0
			if buf.Len() < w {
				continue
			}
			window := buf.ReadBack(w)
			centerIdx := p.half
			center := float64(window[centerIdx])
			if center < p.threshold {
				continue
			}
			isPeak := true
			for i := 0; i < w && isPeak; i++ {
				if i == centerIdx {
					continue
				}
				if float64(window[i]) >= center {
					isPeak = false
				}
			}
			if !isPeak {
				continue
			}
			globalIdx := p.seen[c] - int64(p.half) - 1
			if p.minDist > 0 && globalIdx-p.lastAccepted[c] <= int64(p.minDist) {
				if center <= p.lastValue[c] {
					continue
				}
			}
			p.lastAccepted[c] = globalIdx
			p.lastValue[c] = center
			out[outBase] = T(globalIdx)
			out[outBase+1] = T(center)
		}
	}
	return inFrames, nil
}

func (p *PeakDetector[T]) Reset() {
	for i := range p.history {
		p.history[i].Clear()
		p.seen[i] = 0
		p.lastAccepted[i] = -int64(p.minDist) - 1
		p.lastValue[i] = 0
	}
}

func (p *PeakDetector[T]) Type() string { return "peak" }

func (p *PeakDetector[T]) Serialize() ([]byte, error) {
	buf := appendUint32(nil, uint32(p.windowSize))
	buf = appendUint32(buf, uint32(p.numChannels))
	for c := range p.history {
		buf = serializeRing(buf, &p.history[c])
		buf = appendUint32(buf, uint32(p.seen[c]))
		buf = appendUint32(buf, uint32(p.lastAccepted[c]))
		buf = appendFloat64(buf, p.lastValue[c])
	}
	return buf, nil
}

func (p *PeakDetector[T]) Deserialize(data []byte) error {
	r := &reader{data: data}
	w, err := r.uint32()
	if err != nil {
		return err
	}
	channels, err := r.uint32()
	if err != nil {
		return err
	}
	if int(w) != p.windowSize || int(channels) != p.numChannels {
		return fmt.Errorf("%w: peak shape mismatch", dsp.ErrStateMismatch)
	}
	history := make([]ring.Buffer[T], channels)
	seen := make([]int64, channels)
	lastAccepted := make([]int64, channels)
	lastValue := make([]float64, channels)
	for c := 0; c < int(channels); c++ {
		buf, err := deserializeRing[T](r, p.windowSize)
		if err != nil {
			return err
		}
		history[c] = *buf
		s, err := r.uint32()
		if err != nil {
			return err
		}
		la, err := r.uint32()
		if err != nil {
			return err
		}
		lv, err := r.float64()
		if err != nil {
			return err
		}
		seen[c] = int64(s)
		lastAccepted[c] = int64(int32(la))
		lastValue[c] = lv
	}
	p.history = history
	p.seen = seen
	p.lastAccepted = lastAccepted
	p.lastValue = lastValue
	return nil
}

// PeakCandidate is one (index, value) pair a peak search proposes, before
// the minimum-distance pass prunes it.
type PeakCandidate struct {
	Index int64
	Value float64
}

// SuppressNearbyPeaks applies the minimum-peak-distance rule to a whole,
// already-ordered candidate list at once: a candidate survives unless a
// higher-valued candidate lies within minDistance samples on either side
// of it. This is the one-shot counterpart of the running suppression
// PeakDetector applies sample by sample against only its last accepted
// peak — callers with the full candidate list up front (e.g. picking
// peaks out of one FFT frame's magnitude spectrum) get the stronger,
// order-independent version of the same rule.
func SuppressNearbyPeaks(candidates []PeakCandidate, minDistance int) []PeakCandidate {
	if minDistance <= 0 || len(candidates) == 0 {
		out := make([]PeakCandidate, len(candidates))
		copy(out, candidates)
		return out
	}
	kept := make([]bool, len(candidates))
	for i := range candidates {
		kept[i] = true
		for j := range candidates {
			if i == j {
				continue
			}
			dist := candidates[i].Index - candidates[j].Index
			if dist < 0 {
				dist = -dist
			}
			if int64(dist) > int64(minDistance) {
				continue
			}
			if candidates[j].Value > candidates[i].Value ||
				(candidates[j].Value == candidates[i].Value && j < i) {
				kept[i] = false
				break
			}
		}
	}
	var out []PeakCandidate
	for i, ok := range kept {
		if ok {
			out = append(out, candidates[i])
		}
	}
	return out
}

func init() {
	dsp.RegisterStageFactory[float64]("peak", func(p dsp.StageParams) (dsp.Stage[float64], error) {
		return buildPeak[float64](p)
	})
	dsp.RegisterStageFactory[float32]("peak", func(p dsp.StageParams) (dsp.Stage[float32], error) {
		return buildPeak[float32](p)
	})
}

func buildPeak[T dsp.Sample](p dsp.StageParams) (dsp.Stage[T], error) {
	if err := allowedKeys(p, "peak", "windowSize", "threshold", "minDistance"); err != nil {
		return nil, err
	}
	windowSize, ok := paramInt(p, "windowSize")
	if !ok {
		return nil, fmt.Errorf("%w: peak requires windowSize", dsp.ErrInvalidArgument)
	}
	threshold, _ := paramFloat(p, "threshold")
	minDistance, _ := paramInt(p, "minDistance")
	return NewPeakDetector[T](windowSize, threshold, minDistance)
}
