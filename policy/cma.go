package policy

import "github.com/thesyncim/godsp"

// CMA is the cumulative moving average: unlike every other policy here it
// is not windowed. It keeps a global sum and count across the policy's
// entire lifetime; OnRemove decrements both, which is a rare operation for
// this policy (most CMA stages never evict).
type CMA[T dsp.Sample] struct {
	sum float64
	n   int64
}

func (p *CMA[T]) OnAdd(x T)    { p.sum += float64(x); p.n++ }
func (p *CMA[T]) OnRemove(x T) { p.sum -= float64(x); p.n-- }
func (p *CMA[T]) Clear()       { p.sum, p.n = 0, 0 }

func (p *CMA[T]) Result(int) T {
	if p.n <= 0 {
		return 0
	}
	return T(p.sum / float64(p.n))
}
func (p *CMA[T]) State() State     { return State{F0: p.sum, N: p.n} }
func (p *CMA[T]) SetState(s State) { p.sum, p.n = s.F0, s.N }
