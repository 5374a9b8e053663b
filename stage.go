package dsp

// Stage is the uniform contract every processing kernel implements.
// A Pipeline holds an ordered list of Stage[T] values and routes
// each stage's output into the next stage's input.
//
// Implementations live in dsp/stage; this package only defines the
// contract so that dsp/stage can depend on dsp without a cycle.
type Stage[T Sample] interface {
	// Init reserves internal state for the given number of interleaved
	// input channels and sample rate (Hz, 0 if the stage does not need
	// one). Init is idempotent: calling it again with the same arguments
	// after Reset is a no-op beyond re-zeroing state.
	Init(inputChannels int, sampleRate float64) error

	// InputChannels and OutputChannels are fixed once Init has run.
	// Calling either before Init returns 0.
	InputChannels() int
	OutputChannels() int

	// Latency reports the number of output frames of delay the stage
	// introduces (0 for most stages; >0 for STFT and FFT-based
	// convolution, whose first full frame only appears once enough input
	// has accumulated).
	Latency() int

	// MaxOutputFrames bounds how many output frames ProcessInterleaved
	// can produce for inFrames input frames, so the caller can size (or
	// grow) its output buffer ahead of the call. Stages whose output size
	// is exactly inFrames (the common case) return inFrames.
	MaxOutputFrames(inFrames int) int

	// ProcessInterleaved consumes inFrames*InputChannels() samples from
	// in and writes at most MaxOutputFrames(inFrames)*OutputChannels()
	// samples into out, returning the number of output frames actually
	// written. out must have capacity for the bound MaxOutputFrames
	// reports; ProcessInterleaved never grows it.
	ProcessInterleaved(in []T, inFrames int, out []T) (outFrames int, err error)

	// Reset zeroes all internal state as if the stage were freshly
	// constructed with the same configuration.
	Reset()

	// Type returns the stage's registered type tag, used both for
	// Pipeline.AddStage dispatch and as the type tag written into
	// serialized pipeline state.
	Type() string

	// Serialize emits an opaque byte string capturing everything needed
	// to resume processing exactly where the stage left off: buffer
	// contents, policy aggregates, ring indices. Deserialize(Serialize())
	// must restore a bit-identical continuation point.
	Serialize() ([]byte, error)

	// Deserialize restores state previously produced by Serialize. It
	// must not partially mutate the stage on error: the pipeline relies
	// on this for its own all-or-nothing rollback, but a
	// well-behaved stage validates its payload before touching any field
	// regardless.
	Deserialize(data []byte) error
}

// TimestampAware is implemented by stages whose behavior depends on the
// arrival time of each sample rather than just its position (a time-aware
// sliding window expiring entries by windowDuration, for instance).
// Pipeline.Process calls ProcessInterleavedTimestamped instead of
// ProcessInterleaved for any stage that implements this interface,
// whenever a timestamp array has been supplied and still lines up
// one-to-one with that stage's input frames. A stage that does not
// implement TimestampAware is driven by plain ProcessInterleaved
// regardless of whether timestamps were supplied — per the timestamps
// parameter's own contract, that is a no-op for such stages.
type TimestampAware[T Sample] interface {
	// ProcessInterleavedTimestamped is ProcessInterleaved plus a
	// timestamps slice of length inFrames, one wall-clock time (ms) per
	// input frame, monotonically non-decreasing.
	ProcessInterleavedTimestamped(in []T, inFrames int, timestamps []int64, out []T) (outFrames int, err error)
}
