package policy

import "github.com/thesyncim/godsp"

// Sum accumulates a running sum over the window.
type Sum[T dsp.Sample] struct{ sum float64 }

func (p *Sum[T]) OnAdd(x T)      { p.sum += float64(x) }
func (p *Sum[T]) OnRemove(x T)   { p.sum -= float64(x) }
func (p *Sum[T]) Clear()         { p.sum = 0 }
func (p *Sum[T]) Result(int) T   { return T(p.sum) }
func (p *Sum[T]) State() State   { return State{F0: p.sum} }
func (p *Sum[T]) SetState(s State) { p.sum = s.F0 }

// Counter tracks the number of samples currently in the window
// independent of the caller-supplied window count (useful when the
// sliding window is time-aware and the caller wants the true sample
// count rather than an assumed capacity).
type Counter[T dsp.Sample] struct{ n int64 }

func (p *Counter[T]) OnAdd(T)        { p.n++ }
func (p *Counter[T]) OnRemove(T)     { p.n-- }
func (p *Counter[T]) Clear()         { p.n = 0 }
func (p *Counter[T]) Result(int) T   { return T(p.n) }
func (p *Counter[T]) State() State   { return State{N: p.n} }
func (p *Counter[T]) SetState(s State) { p.n = s.N }

// Mean is the running arithmetic mean over the window.
type Mean[T dsp.Sample] struct{ sum float64 }

func (p *Mean[T]) OnAdd(x T)    { p.sum += float64(x) }
func (p *Mean[T]) OnRemove(x T) { p.sum -= float64(x) }
func (p *Mean[T]) Clear()       { p.sum = 0 }

func (p *Mean[T]) Result(count int) T {
	if count <= 0 {
		return 0
	}
	return T(p.sum / float64(count))
}
func (p *Mean[T]) State() State     { return State{F0: p.sum} }
func (p *Mean[T]) SetState(s State) { p.sum = s.F0 }
