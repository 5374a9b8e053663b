// Package stage implements the L3 kernels the pipeline coordinator chains
// together: sliding-window statistics, FIR/IIR filters, convolution, the
// FFT/STFT/DCT family, filter banks, peak detection, adaptive filters, and
// matrix transforms. Every kernel implements dsp.Stage[T] and registers a
// construction factory via dsp.RegisterStageFactory in its init(), so
// dsp.Pipeline[T].AddStage can build one by name without this package and
// the root dsp package needing to import each other.
package stage

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	dsp "github.com/thesyncim/godsp"
	"github.com/thesyncim/godsp/policy"
)

// circular is a plain (non-power-of-two) circular buffer used by stages
// that only need push-with-eviction, not the guard-zone contiguous reads
// dsp/ring provides for the FIR/IIR hot path.
type circular[T dsp.Sample] struct {
	buf    []T
	pos    int
	filled int
}

func newCircular[T dsp.Sample](size int) circular[T] {
	return circular[T]{buf: make([]T, size)}
}

// push stores x, returning the evicted value (zero, false) if the buffer
// wasn't yet full.
func (c *circular[T]) push(x T) (evicted T, hadEvicted bool) {
	if c.filled == len(c.buf) {
		evicted, hadEvicted = c.buf[c.pos], true
	} else {
		c.filled++
	}
	c.buf[c.pos] = x
	c.pos = (c.pos + 1) % len(c.buf)
	return evicted, hadEvicted
}

func (c *circular[T]) clear() {
	for i := range c.buf {
		c.buf[i] = 0
	}
	c.pos, c.filled = 0, 0
}

// newPolicyByName maps the closed set of policy names SlidingWindow accepts
// to constructors. EMA takes an extra "alpha" parameter handled separately.
func newPolicyByName[T dsp.Sample](name string, alpha float64) (policy.Policy[T], error) {
	switch name {
	case "mean":
		return &policy.Mean[T]{}, nil
	case "rms":
		return &policy.RMS[T]{}, nil
	case "variance":
		return &policy.Variance[T]{}, nil
	case "mav":
		return &policy.MAV[T]{}, nil
	case "zscore":
		return &policy.ZScore[T]{}, nil
	case "sum":
		return &policy.Sum[T]{}, nil
	case "counter":
		return &policy.Counter[T]{}, nil
	case "cma":
		return &policy.CMA[T]{}, nil
	case "ema":
		if alpha <= 0 || alpha > 1 {
			return nil, fmt.Errorf("%w: ema alpha must be in (0,1], got %v", dsp.ErrInvalidArgument, alpha)
		}
		return policy.NewEMA[T](alpha), nil
	case "peak":
		return nil, fmt.Errorf("%w: policy %q is constructed per-window via policy.NewPeak", dsp.ErrInvalidArgument, name)
	default:
		return nil, fmt.Errorf("%w: unknown sliding-window policy %q", dsp.ErrInvalidArgument, name)
	}
}

// timeEntry pairs a sample with the wall-clock timestamp it arrived with.
type timeEntry[T dsp.Sample] struct {
	t int64
	v T
}

// timeWindow is a FIFO queue of timestamped samples backing a time-aware
// SlidingWindow channel. Unlike circular it has no fixed slot count:
// expire drops everything older than a cutoff (time-based eviction), and
// push additionally enforces a generous capacity bound so a burst of
// same-timestamp samples can't grow the queue without limit (the
// "capacity exceeded: overwrite oldest" fallback). The backing slices are
// compacted once the dead head region gets large, so steady-state memory
// stays bounded.
type timeWindow[T dsp.Sample] struct {
	ts   []int64
	vals []T
	head int
}

func (w *timeWindow[T]) len() int { return len(w.ts) - w.head }

// expire removes every entry with t < cutoff, oldest first, calling
// onRemove for each.
func (w *timeWindow[T]) expire(cutoff int64, onRemove func(T)) {
	for w.head < len(w.ts) && w.ts[w.head] < cutoff {
		onRemove(w.vals[w.head])
		w.head++
	}
}

// push appends (t, v), then evicts from the front until the queue is back
// within capacity, calling onRemove for each eviction.
func (w *timeWindow[T]) push(t int64, v T, capacity int, onRemove func(T)) {
	w.ts = append(w.ts, t)
	w.vals = append(w.vals, v)
	for len(w.ts)-w.head > capacity {
		onRemove(w.vals[w.head])
		w.head++
	}
	if w.head > 1024 && w.head*2 > len(w.ts) {
		n := copy(w.ts, w.ts[w.head:])
		w.ts = w.ts[:n]
		copy(w.vals, w.vals[w.head:])
		w.vals = w.vals[:n]
		w.head = 0
	}
}

func (w *timeWindow[T]) clear() {
	w.ts = w.ts[:0]
	w.vals = w.vals[:0]
	w.head = 0
}

// defaultTimeCapacity is the ring capacity used for a time-aware window
// when the sample rate is unknown (Init was called with sampleRate <= 0).
const defaultTimeCapacity = 1 << 16

// SlidingWindow computes one statistic per channel over a trailing window,
// maintained incrementally via the policy contract (dsp/policy) instead of
// a full recompute per sample. The window is sized either by sample count
// (windowSize, the default) or by wall-clock duration (windowDuration,
// time-aware mode): exactly one of the two is set. Time-aware mode expires
// samples by timestamp and requires ProcessInterleavedTimestamped; calling
// plain ProcessInterleaved on a time-aware window is an error since there
// is no timestamp to expire against.
type SlidingWindow[T dsp.Sample] struct {
	windowSize     int     // sample-count mode; 0 in time-aware mode
	windowDuration int64   // time-aware mode, milliseconds; 0 in sample-count mode
	policyName     string
	alpha          float64

	inputChannels int
	capacity      int // time-aware mode's ring capacity, computed at Init
	windows       []circular[T]
	timeWindows   []timeWindow[T]
	policies      []policy.Policy[T]
}

// NewSlidingWindow constructs an un-initialized sample-count SlidingWindow
// stage: the window holds the trailing windowSize samples.
func NewSlidingWindow[T dsp.Sample](windowSize int, policyName string, alpha float64) (*SlidingWindow[T], error) {
	if windowSize <= 0 {
		return nil, fmt.Errorf("%w: sliding window size must be positive, got %d", dsp.ErrInvalidArgument, windowSize)
	}
	return &SlidingWindow[T]{windowSize: windowSize, policyName: policyName, alpha: alpha}, nil
}

// NewTimeAwareSlidingWindow constructs an un-initialized time-aware
// SlidingWindow stage: the window holds every sample whose timestamp is
// within windowDuration milliseconds of the most recently added sample.
// It must be driven via ProcessInterleavedTimestamped.
func NewTimeAwareSlidingWindow[T dsp.Sample](windowDuration float64, policyName string, alpha float64) (*SlidingWindow[T], error) {
	if windowDuration <= 0 {
		return nil, fmt.Errorf("%w: sliding window duration must be positive, got %v", dsp.ErrInvalidArgument, windowDuration)
	}
	return &SlidingWindow[T]{windowDuration: int64(windowDuration), policyName: policyName, alpha: alpha}, nil
}

func (s *SlidingWindow[T]) timeAware() bool { return s.windowDuration > 0 }

func (s *SlidingWindow[T]) Init(inputChannels int, sampleRate float64) error {
	if inputChannels <= 0 {
		return fmt.Errorf("%w: sliding window needs at least one input channel", dsp.ErrInvalidArgument)
	}
	s.inputChannels = inputChannels
	s.policies = make([]policy.Policy[T], inputChannels)

	newStatPolicy := func() (policy.Policy[T], bool, error) {
		if s.policyName == "peak" {
			return policy.NewPeak[T](s.peakWindowHint()), true, nil
		}
		pol, err := newPolicyByName[T](s.policyName, s.alpha)
		return pol, false, err
	}

	if s.timeAware() {
		if sampleRate > 0 {
			s.capacity = int(float64(s.windowDuration)/1000*sampleRate*4) + 64
		} else {
			s.capacity = defaultTimeCapacity
		}
		s.timeWindows = make([]timeWindow[T], inputChannels)
		for ch := range s.timeWindows {
			pol, _, err := newStatPolicy()
			if err != nil {
				return err
			}
			s.policies[ch] = pol
		}
		return nil
	}

	s.windows = make([]circular[T], inputChannels)
	for ch := range s.windows {
		s.windows[ch] = newCircular[T](s.windowSize)
		pol, _, err := newStatPolicy()
		if err != nil {
			return err
		}
		s.policies[ch] = pol
	}
	return nil
}

// peakWindowHint sizes the per-window Peak policy's own internal window
// when this SlidingWindow is in time-aware mode, where there is no fixed
// windowSize to hand it; the capacity computed for the timestamp ring is
// the closest analogue.
func (s *SlidingWindow[T]) peakWindowHint() int {
	if s.timeAware() {
		return s.capacity
	}
	return s.windowSize
}

func (s *SlidingWindow[T]) InputChannels() int  { return s.inputChannels }
func (s *SlidingWindow[T]) OutputChannels() int { return s.inputChannels }
func (s *SlidingWindow[T]) Latency() int        { return 0 }
func (s *SlidingWindow[T]) MaxOutputFrames(inFrames int) int { return inFrames }

func (s *SlidingWindow[T]) ProcessInterleaved(in []T, inFrames int, out []T) (int, error) {
	if s.timeAware() {
		return 0, fmt.Errorf("%w: movingAverage: time-aware window (windowDuration) requires timestamps", dsp.ErrInvalidArgument)
	}
	ch := s.inputChannels
	if len(in) < inFrames*ch {
		return 0, fmt.Errorf("%w: movingAverage: need %d input samples, got %d", dsp.ErrShapeMismatch, inFrames*ch, len(in))
	}
	for f := 0; f < inFrames; f++ {
		for c := 0; c < ch; c++ {
			x := in[f*ch+c]
			w := &s.windows[c]
			pol := s.policies[c]
			if evicted, had := w.push(x); had {
				pol.OnRemove(evicted)
			}
			pol.OnAdd(x)
			out[f*ch+c] = pol.Result(w.filled)
		}
	}
	return inFrames, nil
}

// ProcessInterleavedTimestamped implements dsp.TimestampAware. In
// sample-count mode a timestamp is a no-op (per-spec: passing timestamps
// to a sample-window stage doesn't change its behavior), so it just
// forwards to ProcessInterleaved. In time-aware mode, for every frame f it
// first expires every sample with t < timestamps[f] - windowDuration
// (each triggering onRemove), then adds the new sample with its own
// timestamp (onAdd), matching the addSample contract exactly.
func (s *SlidingWindow[T]) ProcessInterleavedTimestamped(in []T, inFrames int, timestamps []int64, out []T) (int, error) {
	if !s.timeAware() {
		return s.ProcessInterleaved(in, inFrames, out)
	}
	ch := s.inputChannels
	if len(in) < inFrames*ch {
		return 0, fmt.Errorf("%w: movingAverage: need %d input samples, got %d", dsp.ErrShapeMismatch, inFrames*ch, len(in))
	}
	if len(timestamps) < inFrames {
		return 0, fmt.Errorf("%w: movingAverage: need %d timestamps, got %d", dsp.ErrShapeMismatch, inFrames, len(timestamps))
	}
	for f := 0; f < inFrames; f++ {
		t := timestamps[f]
		cutoff := t - s.windowDuration
		for c := 0; c < ch; c++ {
			x := in[f*ch+c]
			w := &s.timeWindows[c]
			pol := s.policies[c]
			w.expire(cutoff, pol.OnRemove)
			w.push(t, x, s.capacity, pol.OnRemove)
			pol.OnAdd(x)
			out[f*ch+c] = pol.Result(w.len())
		}
	}
	return inFrames, nil
}

func (s *SlidingWindow[T]) Reset() {
	for ch := range s.windows {
		s.windows[ch].clear()
		s.policies[ch].Clear()
	}
	for ch := range s.timeWindows {
		s.timeWindows[ch].clear()
		s.policies[ch].Clear()
	}
}

func (s *SlidingWindow[T]) Type() string { return "movingAverage" }

// appendPolicyState and readPolicyState frame a policy.State the same way
// for both SlidingWindow modes, so Serialize/Deserialize only differ in
// how they frame the window contents themselves.
func appendPolicyState(buf []byte, st policy.State) []byte {
	buf = appendFloat64(buf, st.F0)
	buf = appendFloat64(buf, st.F1)
	buf = appendFloat64(buf, st.F2)
	buf = appendUint32(buf, uint32(st.N))
	if st.Init {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = appendUint32(buf, uint32(len(st.Extra)))
	for _, v := range st.Extra {
		buf = appendFloat64(buf, v)
	}
	return buf
}

func readPolicyState(r *reader) (policy.State, error) {
	var st policy.State
	var err error
	if st.F0, err = r.float64(); err != nil {
		return st, err
	}
	if st.F1, err = r.float64(); err != nil {
		return st, err
	}
	if st.F2, err = r.float64(); err != nil {
		return st, err
	}
	n, err := r.uint32()
	if err != nil {
		return st, err
	}
	st.N = int64(n)
	initByte, err := r.byte()
	if err != nil {
		return st, err
	}
	st.Init = initByte != 0
	extraLen, err := r.uint32()
	if err != nil {
		return st, err
	}
	st.Extra = make([]float64, extraLen)
	for i := range st.Extra {
		if st.Extra[i], err = r.float64(); err != nil {
			return st, err
		}
	}
	return st, nil
}

func (s *SlidingWindow[T]) Serialize() ([]byte, error) {
	buf := make([]byte, 0, 64+s.inputChannels*64)
	if s.timeAware() {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = appendUint32(buf, uint32(s.windowSize))
	buf = appendUint32(buf, uint32(s.inputChannels))

	if s.timeAware() {
		buf = appendUint32(buf, uint32(s.capacity))
		for ch := 0; ch < s.inputChannels; ch++ {
			w := &s.timeWindows[ch]
			buf = appendUint32(buf, uint32(w.len()))
			for i := w.head; i < len(w.ts); i++ {
				buf = appendInt64(buf, w.ts[i])
				buf = appendFloat64(buf, float64(w.vals[i]))
			}
			buf = appendPolicyState(buf, s.policies[ch].State())
		}
		return buf, nil
	}

	for ch := 0; ch < s.inputChannels; ch++ {
		w := &s.windows[ch]
		buf = appendUint32(buf, uint32(w.pos))
		buf = appendUint32(buf, uint32(w.filled))
		for _, v := range w.buf {
			buf = appendFloat64(buf, float64(v))
		}
		buf = appendPolicyState(buf, s.policies[ch].State())
	}
	return buf, nil
}

func (s *SlidingWindow[T]) Deserialize(data []byte) error {
	r := &reader{data: data}
	modeByte, err := r.byte()
	if err != nil {
		return err
	}
	if (modeByte != 0) != s.timeAware() {
		return fmt.Errorf("%w: sliding window mode mismatch", dsp.ErrStateMismatch)
	}
	windowSize, err := r.uint32()
	if err != nil {
		return err
	}
	channels, err := r.uint32()
	if err != nil {
		return err
	}
	if int(windowSize) != s.windowSize || int(channels) != s.inputChannels {
		return fmt.Errorf("%w: sliding window shape mismatch", dsp.ErrStateMismatch)
	}

	if s.timeAware() {
		capacity, err := r.uint32()
		if err != nil {
			return err
		}
		newWindows := make([]timeWindow[T], channels)
		newStates := make([]policy.State, channels)
		for ch := 0; ch < int(channels); ch++ {
			n, err := r.uint32()
			if err != nil {
				return err
			}
			w := timeWindow[T]{ts: make([]int64, 0, n), vals: make([]T, 0, n)}
			for i := 0; i < int(n); i++ {
				t, err := r.int64()
				if err != nil {
					return err
				}
				v, err := r.float64()
				if err != nil {
					return err
				}
				w.ts = append(w.ts, t)
				w.vals = append(w.vals, T(v))
			}
			newWindows[ch] = w
			st, err := readPolicyState(r)
			if err != nil {
				return err
			}
			newStates[ch] = st
		}
		s.capacity = int(capacity)
		s.timeWindows = newWindows
		for ch := range newStates {
			s.policies[ch].SetState(newStates[ch])
		}
		return nil
	}

	newWindows := make([]circular[T], channels)
	newStates := make([]policy.State, channels)
	for ch := 0; ch < int(channels); ch++ {
		pos, err := r.uint32()
		if err != nil {
			return err
		}
		filled, err := r.uint32()
		if err != nil {
			return err
		}
		w := newCircular[T](int(windowSize))
		for i := 0; i < int(windowSize); i++ {
			v, err := r.float64()
			if err != nil {
				return err
			}
			w.buf[i] = T(v)
		}
		w.pos, w.filled = int(pos), int(filled)
		newWindows[ch] = w

		st, err := readPolicyState(r)
		if err != nil {
			return err
		}
		newStates[ch] = st
	}
	s.windows = newWindows
	for ch := range newStates {
		s.policies[ch].SetState(newStates[ch])
	}
	return nil
}

func init() {
	dsp.RegisterStageFactory[float64]("movingAverage", func(p dsp.StageParams) (dsp.Stage[float64], error) {
		return buildSlidingWindow[float64](p)
	})
	dsp.RegisterStageFactory[float32]("movingAverage", func(p dsp.StageParams) (dsp.Stage[float32], error) {
		return buildSlidingWindow[float32](p)
	})
}

func buildSlidingWindow[T dsp.Sample](p dsp.StageParams) (dsp.Stage[T], error) {
	if err := allowedKeys(p, "movingAverage", "windowSize", "windowDuration", "policy", "alpha"); err != nil {
		return nil, err
	}
	name, _ := p["policy"].(string)
	if name == "" {
		name = "mean"
	}
	alpha, _ := paramFloat(p, "alpha")

	size, hasSize := paramInt(p, "windowSize")
	duration, hasDuration := paramFloat(p, "windowDuration")
	switch {
	case hasSize && hasDuration:
		return nil, fmt.Errorf("%w: movingAverage: windowSize and windowDuration are mutually exclusive", dsp.ErrInvalidArgument)
	case hasDuration:
		return NewTimeAwareSlidingWindow[T](duration, name, alpha)
	case hasSize:
		return NewSlidingWindow[T](size, name, alpha)
	default:
		return nil, fmt.Errorf("%w: movingAverage requires windowSize or windowDuration", dsp.ErrInvalidArgument)
	}
}

// allowedKeys rejects p if it contains any key outside allowed, naming the
// first (in sorted order, for determinism) unrecognized key it finds.
// Shared by every build* factory in this package so that a typo'd
// parameter surfaces as an error instead of being silently ignored.
func allowedKeys(p dsp.StageParams, stageType string, allowed ...string) error {
	set := make(map[string]struct{}, len(allowed))
	for _, k := range allowed {
		set[k] = struct{}{}
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := set[k]; !ok {
			return fmt.Errorf("%w: %s: unrecognized parameter %q", dsp.ErrInvalidArgument, stageType, k)
		}
	}
	return nil
}

func paramInt(p dsp.StageParams, key string) (int, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func paramFloat(p dsp.StageParams, key string) (float64, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func paramFloatSlice(p dsp.StageParams, key string) ([]float64, bool) {
	v, ok := p[key]
	if !ok {
		return nil, false
	}
	switch s := v.(type) {
	case []float64:
		return s, true
	case []any:
		out := make([]float64, len(s))
		for i, e := range s {
			f, ok := e.(float64)
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	default:
		return nil, false
	}
}

// reader sequentially decodes the little-endian framing Serialize methods
// in this package write.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) uint32() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, fmt.Errorf("%w: truncated uint32", dsp.ErrStateCorrupted)
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) int64() (int64, error) {
	if r.pos+8 > len(r.data) {
		return 0, fmt.Errorf("%w: truncated int64", dsp.ErrStateCorrupted)
	}
	v := int64(binary.LittleEndian.Uint64(r.data[r.pos:]))
	r.pos += 8
	return v, nil
}

func (r *reader) float64() (float64, error) {
	if r.pos+8 > len(r.data) {
		return 0, fmt.Errorf("%w: truncated float64", dsp.ErrStateCorrupted)
	}
	bits := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return math.Float64frombits(bits), nil
}

func (r *reader) byte() (byte, error) {
	if r.pos+1 > len(r.data) {
		return 0, fmt.Errorf("%w: truncated byte", dsp.ErrStateCorrupted)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, fmt.Errorf("%w: truncated byte slice", dsp.ErrStateCorrupted)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendFloat64(buf []byte, v float64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	return append(buf, tmp[:]...)
}

func appendInt64(buf []byte, v int64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	return append(buf, tmp[:]...)
}
