// Package simd is a SIMD-dispatch shim: a small set of inner-loop kernels
// (dot product, complex magnitude/power). The dot product has a
// CPU-feature-gated choice of implementation (a golang.org/x/sys/cpu
// feature probe selecting a function variable in init()); the complex
// kernels have a single portable implementation.
//
// No hand-written assembly is linked in: this module has no .s files to
// call into, so both the "wide" and "fallback" arms below are portable Go.
// The wide arm is a fixed-width unrolled loop, the kind of portable path
// modern autovectorizers lift to real SIMD instructions, and the feature
// probe still determines which unroll width is used, so the dispatch
// shape is preserved even without real assembly underneath it.
package simd

import "golang.org/x/sys/cpu"

// Width reports the number of float64 lanes the selected dot-product
// kernel processes per inner-loop iteration. It is exported only for
// tests and diagnostics; callers should not depend on its exact value.
var Width = 4

func init() {
	switch {
	case cpu.X86.HasAVX2 || cpu.ARM64.HasASIMD:
		Width = 8
		dotProductImpl = dotProductUnrolled8
		dotProductF32Impl = dotProductF32Unrolled8
	case cpu.X86.HasSSE3 || cpu.ARM64.HasASIMD:
		Width = 4
		dotProductImpl = dotProductUnrolled4
		dotProductF32Impl = dotProductF32Unrolled4
	default:
		Width = 1
		dotProductImpl = dotProductScalar
		dotProductF32Impl = dotProductF32Scalar
	}
}
