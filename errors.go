// errors.go defines the public error vocabulary for the dsp package.

package dsp

import "errors"

// Error kinds returned by Pipeline and Stage operations. All of them are
// sentinel values: callers compare with errors.Is, and wrapped variants
// (e.g. "dsp: fir: %w") still satisfy errors.Is against these.
var (
	// ErrInvalidArgument indicates a bad stage or pipeline parameter: a
	// zero or negative window size, a cutoff outside (0, 0.5], an unknown
	// mode string, an empty kernel, or an unrecognized stage type.
	ErrInvalidArgument = errors.New("dsp: invalid argument")

	// ErrShapeMismatch indicates an input length that is not a multiple
	// of the configured channel count, or a timestamps slice whose length
	// does not match the number of frames.
	ErrShapeMismatch = errors.New("dsp: shape mismatch")

	// ErrStateMismatch indicates a loadState payload whose stage count,
	// stage type sequence, or internal buffer sizes do not match the
	// pipeline being restored into.
	ErrStateMismatch = errors.New("dsp: state mismatch")

	// ErrStateCorrupted indicates a loadState payload whose header magic,
	// version, or length-prefixed framing is internally inconsistent.
	ErrStateCorrupted = errors.New("dsp: state corrupted")

	// ErrPipelineDisposed indicates an operation attempted on a pipeline
	// that has already been disposed.
	ErrPipelineDisposed = errors.New("dsp: pipeline disposed")

	// ErrPipelineBusy indicates a concurrent operation was attempted
	// while a Process call was already in flight on the same pipeline.
	ErrPipelineBusy = errors.New("dsp: pipeline busy")

	// ErrNumericalError indicates a condition that cannot be resolved
	// numerically: an FFT on a zero-size input, or an IIR filter whose
	// feedback coefficients are all zero.
	ErrNumericalError = errors.New("dsp: numerical error")

	// ErrUnknownStage indicates Pipeline.AddStage was called with a stage
	// type name that has no registered factory for the pipeline's sample
	// type. This usually means the caller forgot to import dsp/stage.
	ErrUnknownStage = errors.New("dsp: unknown stage type")
)
