package policy

import (
	"github.com/thesyncim/godsp"
	"github.com/thesyncim/godsp/util"
)

// MAV is the running mean absolute value, mean(|x|) over the window —
// the amplitude-envelope statistic common in biosignal processing.
type MAV[T dsp.Sample] struct{ sumAbs float64 }

func (p *MAV[T]) OnAdd(x T)    { p.sumAbs += float64(util.Abs(x)) }
func (p *MAV[T]) OnRemove(x T) { p.sumAbs -= float64(util.Abs(x)) }
func (p *MAV[T]) Clear()       { p.sumAbs = 0 }

func (p *MAV[T]) Result(count int) T {
	if count <= 0 {
		return 0
	}
	return T(p.sumAbs / float64(count))
}
func (p *MAV[T]) State() State     { return State{F0: p.sumAbs} }
func (p *MAV[T]) SetState(s State) { p.sumAbs = s.F0 }
