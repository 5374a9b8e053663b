package policy

import "math"

import "github.com/thesyncim/godsp"

// Variance is the running population variance E[X^2] - E[X]^2, clamped at
// zero to absorb floating-point rounding that would otherwise make a
// near-constant window report a tiny negative variance.
type Variance[T dsp.Sample] struct{ sum, sumSq float64 }

func (p *Variance[T]) OnAdd(x T) {
	v := float64(x)
	p.sum += v
	p.sumSq += v * v
}
func (p *Variance[T]) OnRemove(x T) {
	v := float64(x)
	p.sum -= v
	p.sumSq -= v * v
}
func (p *Variance[T]) Clear() { p.sum, p.sumSq = 0, 0 }

func (p *Variance[T]) Result(count int) T {
	if count <= 0 {
		return 0
	}
	n := float64(count)
	mean := p.sum / n
	v := p.sumSq/n - mean*mean
	if v < 0 {
		v = 0
	}
	return T(v)
}
func (p *Variance[T]) State() State     { return State{F0: p.sum, F1: p.sumSq} }
func (p *Variance[T]) SetState(s State) { p.sum, p.sumSq = s.F0, s.F1 }

// RMS is the running root-mean-square, sqrt(max(0, sumSq/count)).
type RMS[T dsp.Sample] struct{ sumSq float64 }

func (p *RMS[T]) OnAdd(x T)    { v := float64(x); p.sumSq += v * v }
func (p *RMS[T]) OnRemove(x T) { v := float64(x); p.sumSq -= v * v }
func (p *RMS[T]) Clear()       { p.sumSq = 0 }

func (p *RMS[T]) Result(count int) T {
	if count <= 0 {
		return 0
	}
	v := p.sumSq / float64(count)
	if v < 0 {
		v = 0
	}
	return T(math.Sqrt(v))
}
func (p *RMS[T]) State() State     { return State{F0: p.sumSq} }
func (p *RMS[T]) SetState(s State) { p.sumSq = s.F0 }

// ZScoreEpsilon is the stddev floor below which ZScore reports 0 instead
// of dividing by a near-zero spread.
const ZScoreEpsilon = 1e-8

// ZScore reports (lastAdded - mean) / stddev over the window, tracking the
// most recently added sample so Result can be called immediately after
// OnAdd the way SlidingWindowFilter's addSample contract does.
type ZScore[T dsp.Sample] struct {
	sum, sumSq float64
	last       float64
}

func (p *ZScore[T]) OnAdd(x T) {
	v := float64(x)
	p.sum += v
	p.sumSq += v * v
	p.last = v
}
func (p *ZScore[T]) OnRemove(x T) {
	v := float64(x)
	p.sum -= v
	p.sumSq -= v * v
}
func (p *ZScore[T]) Clear() { p.sum, p.sumSq, p.last = 0, 0, 0 }

func (p *ZScore[T]) Result(count int) T {
	if count <= 0 {
		return 0
	}
	n := float64(count)
	mean := p.sum / n
	variance := p.sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	stddev := math.Sqrt(variance)
	if stddev < ZScoreEpsilon {
		return 0
	}
	return T((p.last - mean) / stddev)
}
func (p *ZScore[T]) State() State { return State{F0: p.sum, F1: p.sumSq, F2: p.last} }
func (p *ZScore[T]) SetState(s State) {
	p.sum, p.sumSq, p.last = s.F0, s.F1, s.F2
}
