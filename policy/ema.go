package policy

import "github.com/thesyncim/godsp"

// EMA is the exponential moving average: initialized to the first sample,
// then blended as alpha*x + (1-alpha)*EMA on every subsequent sample.
// OnRemove is a no-op — an EMA is not truly reversible, but it is exposed
// via the same Policy surface as every other statistic for API uniformity.
type EMA[T dsp.Sample] struct {
	alpha       float64
	value       float64
	initialized bool
}

// NewEMA constructs an EMA policy with the given smoothing factor,
// 0 < alpha <= 1.
func NewEMA[T dsp.Sample](alpha float64) *EMA[T] {
	return &EMA[T]{alpha: alpha}
}

func (p *EMA[T]) OnAdd(x T) {
	v := float64(x)
	if !p.initialized {
		p.value = v
		p.initialized = true
		return
	}
	p.value = p.alpha*v + (1-p.alpha)*p.value
}

func (p *EMA[T]) OnRemove(T) {}

func (p *EMA[T]) Clear() {
	p.value = 0
	p.initialized = false
}

func (p *EMA[T]) Result(int) T { return T(p.value) }

func (p *EMA[T]) State() State {
	return State{F0: p.value, F1: p.alpha, Init: p.initialized}
}

func (p *EMA[T]) SetState(s State) {
	p.value = s.F0
	p.alpha = s.F1
	p.initialized = s.Init
}
