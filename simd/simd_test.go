package simd

import "testing"

func TestDotProductMatchesScalarForAllWidths(t *testing.T) {
	x := make([]float64, 37)
	y := make([]float64, 37)
	for i := range x {
		x[i] = float64(i) * 0.5
		y[i] = float64(37-i) * 0.25
	}
	want := dotProductScalar(x, y)
	for _, impl := range []func([]float64, []float64) float64{
		dotProductScalar, dotProductUnrolled4, dotProductUnrolled8,
	} {
		if got := impl(x, y); math64Diff(got, want) > 1e-9 {
			t.Fatalf("impl mismatch: got %v, want %v", got, want)
		}
	}
	if got := DotProduct(x, y); math64Diff(got, want) > 1e-9 {
		t.Fatalf("DotProduct = %v, want %v", got, want)
	}
}

func math64Diff(a, b float64) float64 {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d
}

func TestMagnitudeAndPower(t *testing.T) {
	in := []complex128{3 + 4i, 0 + 0i, 1 + 1i}
	mag := make([]float64, len(in))
	pow := make([]float64, len(in))
	Magnitude(in, mag)
	Power(in, pow)
	if mag[0] != 5 {
		t.Fatalf("mag[0] = %v, want 5", mag[0])
	}
	if pow[0] != 25 {
		t.Fatalf("pow[0] = %v, want 25", pow[0])
	}
}

func TestButterfly(t *testing.T) {
	a := []complex128{1 + 0i, 2 + 0i}
	b := []complex128{1 + 0i, 1 + 0i}
	Butterfly(a, b)
	if a[0] != 2 || b[0] != 0 {
		t.Fatalf("butterfly[0] = (%v,%v), want (2,0)", a[0], b[0])
	}
	if a[1] != 3 || b[1] != 1 {
		t.Fatalf("butterfly[1] = (%v,%v), want (3,1)", a[1], b[1])
	}
}
