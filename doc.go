// Package dsp implements a composable, stateful, multi-channel digital
// signal processing engine for audio-rate and sensor-rate streams.
//
// A Pipeline owns an ordered list of Stages. Callers push interleaved
// multi-channel sample buffers through Process; every stage carries its own
// streaming state across calls, so a long input split into arbitrary chunks
// produces the same output as if it were processed whole (split invariance).
//
// # Layering
//
// The engine is organized leaves-first, matching the layering used
// throughout this module's sibling packages:
//
//   - dsp/ring and dsp/simd are the streaming substrate: a power-of-two
//     ring buffer with a guard zone for contiguous reads, and a dispatch
//     shim for the inner loops (dot product, complex magnitude/power).
//   - dsp/policy is the small statistical-contract framework consumed by
//     sliding-window stages.
//   - dsp/fft and dsp/window hold the transform engine and the
//     (non-core) coefficient-design helpers.
//   - dsp/stage implements every concrete kernel behind the Stage
//     contract defined in this package, plus the name-based factory used
//     by Pipeline.AddStage.
//   - dsp/batch is the optional parallel FFT fast path used by stages
//     that fan out many independent spectra per call.
//
// This package defines the Sample constraint, the Stage contract, the
// Pipeline coordinator, and the error vocabulary shared by every layer
// above. It has no stage implementations of its own: concrete stages live
// in dsp/stage and register themselves via RegisterStageFactory, the same
// driver-registration idiom used by database/sql and image.RegisterFormat.
// Callers that only build pipelines programmatically (constructing
// Stage[T] values directly and calling Pipeline.AddConstructedStage) never
// need to import dsp/stage; callers that want the
// Pipeline.AddStage(name, params) convenience must import dsp/stage (or
// any package that imports it) so its init() functions run.
package dsp
