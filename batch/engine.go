// Package batch implements the optional parallel FFT fast path: a fixed
// worker pool drains a FIFO job queue, each worker holding its own
// per-size transform plans so concurrent workers never contend on shared
// engine state, backed by a shared result cache keyed by a hash of the
// input samples.
package batch

import "github.com/thesyncim/godsp/fft"

// engine holds the per-worker transform plans, built lazily and reused
// across jobs of the same size so a long-running worker amortizes plan
// construction the way a single-threaded caller would.
type engine struct {
	complexPlans map[int]*fft.Plan
	realPlans    map[int]*fft.RealPlan
}

func newEngine() *engine {
	return &engine{
		complexPlans: make(map[int]*fft.Plan),
		realPlans:    make(map[int]*fft.RealPlan),
	}
}

// complexPlan returns the cached Plan for n, building and caching it on
// first use. A nil return (n has a prime factor above 5) tells the caller
// to fall back to fft.Direct.
func (e *engine) complexPlan(n int) *fft.Plan {
	if p, ok := e.complexPlans[n]; ok {
		return p
	}
	p := fft.New(n)
	e.complexPlans[n] = p
	return p
}

func (e *engine) realPlan(n int) *fft.RealPlan {
	if p, ok := e.realPlans[n]; ok {
		return p
	}
	p := fft.NewReal(n)
	e.realPlans[n] = p
	return p
}
