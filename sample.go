package dsp

// Sample is the scalar type a pipeline operates on. The engine is
// monomorphic per pipeline: a Pipeline[float32] never mixes buffers with a
// Pipeline[float64]. Named types with a float32/float64 underlying type are
// accepted so callers can use a domain type (e.g. type Volts float64)
// without a conversion at every call site.
type Sample interface {
	~float32 | ~float64
}

// sampleOf returns the zero value of T, used only to recover T's
// reflect.Type for factory registration; it never appears in a hot path.
func sampleOf[T Sample]() T {
	var zero T
	return zero
}
