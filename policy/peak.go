package policy

import "github.com/thesyncim/godsp"

// Peak tracks the maximum value currently in the window in O(1) amortized
// time per OnAdd/OnRemove using the standard monotonic-deque sliding-
// window-maximum algorithm. It relies on OnRemove always being called
// with the oldest surviving value first (true of SlidingWindowFilter by
// construction): the deque holds a non-increasing sequence of candidate
// values (equal values are all kept), so whichever one is still at the
// front is always the window maximum.
type Peak[T dsp.Sample] struct {
	deque []float64 // non-increasing; front (index 0) is the current max
}

// NewPeak constructs a Peak policy with its candidate deque pre-sized to
// the window capacity, avoiding growth in the hot path.
func NewPeak[T dsp.Sample](windowCapacity int) *Peak[T] {
	return &Peak[T]{deque: make([]float64, 0, windowCapacity)}
}

func (p *Peak[T]) OnAdd(x T) {
	v := float64(x)
	for len(p.deque) > 0 && p.deque[len(p.deque)-1] < v {
		p.deque = p.deque[:len(p.deque)-1]
	}
	p.deque = append(p.deque, v)
}

func (p *Peak[T]) OnRemove(x T) {
	v := float64(x)
	if len(p.deque) > 0 && p.deque[0] == v {
		p.deque = p.deque[1:]
	}
}

func (p *Peak[T]) Clear() { p.deque = p.deque[:0] }

func (p *Peak[T]) Result(int) T {
	if len(p.deque) == 0 {
		return 0
	}
	return T(p.deque[0])
}

func (p *Peak[T]) State() State {
	extra := make([]float64, len(p.deque))
	copy(extra, p.deque)
	return State{Extra: extra}
}

func (p *Peak[T]) SetState(s State) {
	p.deque = append(p.deque[:0], s.Extra...)
}
