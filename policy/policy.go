// Package policy implements a small, composable statistical contract:
// {OnAdd(x), OnRemove(x), Clear(), Result(count)}. Each policy owns a
// running aggregate (sum, sum-of-squares, count, an EMA accumulator, ...)
// such that after any sequence of OnAdd/OnRemove calls consistent with a
// sliding window's contents, Result equals what a full recomputation from
// the window would produce, up to floating-point rounding.
package policy

import "github.com/thesyncim/godsp"

// Policy is the contract every sliding-window statistic implements. count
// is the current number of samples in the window, passed to Result, since
// some policies (mean, RMS, variance) need the divisor and a few (EMA, CMA)
// ignore it.
type Policy[T dsp.Sample] interface {
	OnAdd(x T)
	OnRemove(x T)
	Clear()
	Result(count int) T
	// State returns a serializable snapshot of the policy's aggregate.
	State() State
	// SetState restores a snapshot previously returned by State. It does
	// not validate cross-field consistency (that's the caller's problem,
	// same as the rest of this package); it only copies fields in.
	SetState(s State)
}

// State is a small, fixed-shape serializable aggregate big enough to hold
// any one policy's running state. Each concrete policy documents which
// fields it uses; unused fields are left zero. Keeping one concrete type
// (rather than one interface{} per policy) lets the stage layer encode and
// decode policy state without a type switch per policy kind.
type State struct {
	F0, F1, F2 float64   // e.g. sum, sumSq, emaValue
	N          int64     // e.g. count
	Init       bool      // e.g. EMA's "seen first sample" flag
	Extra      []float64 // variable-length aggregates, e.g. Peak's candidate deque
}
