package fft

import "math"

// DCTPlan holds a precomputed N x N orthonormal Type-II cosine table
// rather than computing the DCT via an FFT — at the sizes this engine
// targets (frame-level feature
// extraction, not block coding) the direct O(N^2) multiply is simple and
// exact, and the table is reused across every call once built.
type DCTPlan struct {
	n     int
	table [][]float64 // table[k][n] = cos(pi/N * (n+0.5) * k), orthonormal-scaled
}

// NewDCT builds an orthonormal Type-II/Type-III cosine table for length n.
func NewDCT(n int) *DCTPlan {
	p := &DCTPlan{n: n, table: make([][]float64, n)}
	for k := 0; k < n; k++ {
		row := make([]float64, n)
		scale := math.Sqrt(2.0 / float64(n))
		if k == 0 {
			scale = math.Sqrt(1.0 / float64(n))
		}
		for i := 0; i < n; i++ {
			row[i] = scale * math.Cos(math.Pi/float64(n)*(float64(i)+0.5)*float64(k))
		}
		p.table[k] = row
	}
	return p
}

// N returns the transform length.
func (p *DCTPlan) N() int { return p.n }

// Forward computes the orthonormal Type-II DCT: out[k] = sum_i in[i] *
// table[k][i].
func (p *DCTPlan) Forward(out, in []float64) {
	for k := 0; k < p.n; k++ {
		row := p.table[k]
		var sum float64
		for i, x := range in {
			sum += x * row[i]
		}
		out[k] = sum
	}
}

// Inverse computes the Type-III DCT (the orthonormal Type-II's exact
// inverse): out[i] = sum_k in[k] * table[k][i].
func (p *DCTPlan) Inverse(out, in []float64) {
	for i := range out {
		out[i] = 0
	}
	for k := 0; k < p.n; k++ {
		row := p.table[k]
		c := in[k]
		if c == 0 {
			continue
		}
		for i := range out {
			out[i] += c * row[i]
		}
	}
}
