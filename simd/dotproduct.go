package simd

var dotProductImpl func(x, y []float64) float64
var dotProductF32Impl func(x, y []float32) float32

// DotProduct returns sum(x[i]*y[i]) over the shorter of x and y, via the
// CPU-feature-selected implementation chosen in dispatch.go's init.
func DotProduct(x, y []float64) float64 {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	return dotProductImpl(x[:n], y[:n])
}

// DotProductF32 is the float32 counterpart of DotProduct.
func DotProductF32(x, y []float32) float32 {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	return dotProductF32Impl(x[:n], y[:n])
}

func dotProductScalar(x, y []float64) float64 {
	var sum float64
	for i := range x {
		sum += x[i] * y[i]
	}
	return sum
}

// dotProductUnrolled4 processes four lanes per iteration with independent
// accumulators, a compile-time 4x unrolled scalar loop of the kind modern
// autovectorizers lift to SSE/AVX.
func dotProductUnrolled4(x, y []float64) float64 {
	n := len(x)
	var s0, s1, s2, s3 float64
	i := 0
	for ; i+4 <= n; i += 4 {
		s0 += x[i] * y[i]
		s1 += x[i+1] * y[i+1]
		s2 += x[i+2] * y[i+2]
		s3 += x[i+3] * y[i+3]
	}
	sum := s0 + s1 + s2 + s3
	for ; i < n; i++ {
		sum += x[i] * y[i]
	}
	return sum
}

// dotProductUnrolled8 is the AVX2/ASIMD-width variant: eight independent
// accumulators to expose more instruction-level parallelism.
func dotProductUnrolled8(x, y []float64) float64 {
	n := len(x)
	var s [8]float64
	i := 0
	for ; i+8 <= n; i += 8 {
		for k := 0; k < 8; k++ {
			s[k] += x[i+k] * y[i+k]
		}
	}
	sum := s[0] + s[1] + s[2] + s[3] + s[4] + s[5] + s[6] + s[7]
	for ; i < n; i++ {
		sum += x[i] * y[i]
	}
	return sum
}

func dotProductF32Scalar(x, y []float32) float32 {
	var sum float32
	for i := range x {
		sum += x[i] * y[i]
	}
	return sum
}

func dotProductF32Unrolled4(x, y []float32) float32 {
	n := len(x)
	var s0, s1, s2, s3 float32
	i := 0
	for ; i+4 <= n; i += 4 {
		s0 += x[i] * y[i]
		s1 += x[i+1] * y[i+1]
		s2 += x[i+2] * y[i+2]
		s3 += x[i+3] * y[i+3]
	}
	sum := s0 + s1 + s2 + s3
	for ; i < n; i++ {
		sum += x[i] * y[i]
	}
	return sum
}

func dotProductF32Unrolled8(x, y []float32) float32 {
	n := len(x)
	var s [8]float32
	i := 0
	for ; i+8 <= n; i += 8 {
		for k := 0; k < 8; k++ {
			s[k] += x[i+k] * y[i+k]
		}
	}
	sum := s[0] + s[1] + s[2] + s[3] + s[4] + s[5] + s[6] + s[7]
	for ; i < n; i++ {
		sum += x[i] * y[i]
	}
	return sum
}
