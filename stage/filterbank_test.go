package stage

import "testing"

func TestFilterBankChannelMultiplication(t *testing.T) {
	sections := []FilterBankSection{
		{B: []float64{1}, A: nil},
		{B: []float64{0.5, 0.5}, A: nil},
	}
	fb, err := NewFilterBank[float64](sections)
	if err != nil {
		t.Fatal(err)
	}
	const ch = 2
	if err := fb.Init(ch, 0); err != nil {
		t.Fatal(err)
	}
	if fb.OutputChannels() != ch*len(sections) {
		t.Fatalf("expected %d output channels, got %d", ch*len(sections), fb.OutputChannels())
	}

	in := []float64{1, 2, 3, 4, 5, 6} // 3 frames, 2 channels
	out := make([]float64, 3*fb.OutputChannels())
	n, err := fb.ProcessInterleaved(in, 3, out)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("expected 3 frames, got %d", n)
	}
	// First definition is identity (b=[1]), so its fan-out must equal the
	// raw input exactly.
	outCh := fb.OutputChannels()
	for f := 0; f < 3; f++ {
		for c := 0; c < ch; c++ {
			got := out[f*outCh+0*ch+c]
			want := in[f*ch+c]
			if got != want {
				t.Errorf("identity section frame %d channel %d = %v, want %v", f, c, got, want)
			}
		}
	}
}

func TestFilterBankSerializeRoundTrip(t *testing.T) {
	sections := []FilterBankSection{
		{B: []float64{0.2, 0.8}, A: []float64{-0.1}},
	}
	a, _ := NewFilterBank[float64](sections)
	a.Init(1, 0)
	warm := []float64{1, 2, 3}
	warmOut := make([]float64, len(warm)*a.OutputChannels())
	a.ProcessInterleaved(warm, len(warm), warmOut)

	blob, err := a.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := NewFilterBank[float64](sections)
	b.Init(1, 0)
	if err := b.Deserialize(blob); err != nil {
		t.Fatal(err)
	}

	rest := []float64{4, 5}
	outA := make([]float64, len(rest)*a.OutputChannels())
	outB := make([]float64, len(rest)*b.OutputChannels())
	a.ProcessInterleaved(rest, len(rest), outA)
	b.ProcessInterleaved(rest, len(rest), outB)
	for i := range outA {
		if outA[i] != outB[i] {
			t.Fatalf("restored filter bank diverged at %d: %v vs %v", i, outA[i], outB[i])
		}
	}
}
