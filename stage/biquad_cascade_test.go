package stage

import "testing"

func TestBiquadCascadeChainsSectionsInSeries(t *testing.T) {
	sections := []FilterBankSection{
		{B: []float64{0.5, 0.5}, A: nil},
		{B: []float64{0.5, 0.5}, A: nil},
	}
	c, err := NewBiquadCascade[float64](sections)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Init(1, 0); err != nil {
		t.Fatal(err)
	}
	if c.OutputChannels() != 1 {
		t.Fatalf("expected the cascade to preserve channel count, got %d", c.OutputChannels())
	}

	in := []float64{4, 8, 12, 16}
	out := make([]float64, len(in))
	n, err := c.ProcessInterleaved(in, len(in), out)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(in) {
		t.Fatalf("expected %d frames, got %d", len(in), n)
	}
	// One [0.5,0.5] stage on [4,8,12,16] (zero-padded ring) gives
	// [2,6,10,14]; a second identical stage on that gives [1,4,8,12].
	want := []float64{1, 4, 8, 12}
	for i, w := range want {
		if out[i] != w {
			t.Errorf("out[%d] = %v, want %v", i, out[i], w)
		}
	}
}

func TestBiquadCascadeRejectsHigherOrderSections(t *testing.T) {
	_, err := NewBiquadCascade[float64]([]FilterBankSection{{B: []float64{1, 2, 3, 4}}})
	if err == nil {
		t.Fatal("expected an error for a section with more than 3 feedforward taps")
	}
}

func TestBiquadCascadeSerializeRoundTrip(t *testing.T) {
	sections := []FilterBankSection{{B: []float64{0.2, 0.8}, A: []float64{-0.1}}}
	a, _ := NewBiquadCascade[float64](sections)
	a.Init(1, 0)
	warm := []float64{1, 2, 3}
	warmOut := make([]float64, len(warm))
	a.ProcessInterleaved(warm, len(warm), warmOut)

	blob, err := a.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := NewBiquadCascade[float64](sections)
	b.Init(1, 0)
	if err := b.Deserialize(blob); err != nil {
		t.Fatal(err)
	}

	rest := []float64{4, 5}
	outA := make([]float64, len(rest))
	outB := make([]float64, len(rest))
	a.ProcessInterleaved(rest, len(rest), outA)
	b.ProcessInterleaved(rest, len(rest), outB)
	for i := range outA {
		if outA[i] != outB[i] {
			t.Fatalf("restored cascade diverged at %d: %v vs %v", i, outA[i], outB[i])
		}
	}
}
