package stage

import "testing"

func TestConvolutionBatchWorkedExample(t *testing.T) {
	c, err := NewConvolution[float64]([]float64{0.5, 0.5}, "batch")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Init(1, 0); err != nil {
		t.Fatal(err)
	}
	in := []float64{2, 4, 6, 8, 10}
	out := make([]float64, 4)
	n, err := c.ProcessInterleaved(in, 5, out)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Fatalf("expected 4 output frames, got %d", n)
	}
	want := []float64{3, 5, 7, 9}
	for i, w := range want {
		if out[i] != w {
			t.Errorf("out[%d] = %v, want %v", i, out[i], w)
		}
	}
}

func TestConvolutionMovingWorkedExample(t *testing.T) {
	c, err := NewConvolution[float64]([]float64{0.5, 0.5}, "moving")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Init(1, 0); err != nil {
		t.Fatal(err)
	}
	in := []float64{2, 4, 6, 8, 10}
	out := make([]float64, 5)
	n, err := c.ProcessInterleaved(in, 5, out)
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Fatalf("expected 5 output frames, got %d", n)
	}
	want := []float64{0, 3, 5, 7, 9}
	for i, w := range want {
		if out[i] != w {
			t.Errorf("out[%d] = %v, want %v", i, out[i], w)
		}
	}
}

func TestConvolutionMultiChannelFan(t *testing.T) {
	c, err := NewConvolution[float64]([]float64{0.5, 0.5}, "batch")
	if err != nil {
		t.Fatal(err)
	}
	const ch = 9
	if err := c.Init(ch, 0); err != nil {
		t.Fatal(err)
	}
	base := []float64{2, 4, 6, 8, 10}
	in := make([]float64, len(base)*ch)
	for f := range base {
		for cc := 0; cc < ch; cc++ {
			in[f*ch+cc] = base[f]
		}
	}
	out := make([]float64, 4*ch)
	n, err := c.ProcessInterleaved(in, len(base), out)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Fatalf("expected 4 output frames, got %d", n)
	}
	if len(out) != 36 {
		t.Fatalf("expected 36 output samples, got %d", len(out))
	}
	want := []float64{3, 5, 7, 9}
	for frm := 0; frm < 4; frm++ {
		for cc := 0; cc < ch; cc++ {
			if got := out[frm*ch+cc]; got != want[frm] {
				t.Errorf("frame %d channel %d = %v, want %v", frm, cc, got, want[frm])
			}
		}
	}
}

func TestConvolutionFFTModeMatchesDirectConvolution(t *testing.T) {
	kernel := make([]float64, 200)
	for i := range kernel {
		kernel[i] = 1.0 / float64(len(kernel))
	}
	fftConv, err := NewConvolution[float64](kernel, "moving")
	if err != nil {
		t.Fatal(err)
	}
	if err := fftConv.Init(1, 0); err != nil {
		t.Fatal(err)
	}
	if fftConv.mode != "fft" {
		t.Fatalf("expected auto-upgrade to fft mode above crossover, got %q", fftConv.mode)
	}

	in := make([]float64, 1000)
	for i := range in {
		in[i] = float64((i % 7) - 3)
	}
	out := make([]float64, len(in))
	n, err := fftConv.ProcessInterleaved(in, len(in), out)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(in) {
		t.Fatalf("expected %d output frames, got %d", len(in), n)
	}

	// Direct reference: causal convolution with the same kernel, taking
	// samples before the start as zero.
	want := make([]float64, len(in))
	for i := range in {
		var sum float64
		for k := 0; k < len(kernel); k++ {
			if i-k >= 0 {
				sum += kernel[k] * in[i-k]
			}
		}
		want[i] = sum
	}
	var maxDiff float64
	for i := range want {
		d := out[i] - want[i]
		if d < 0 {
			d = -d
		}
		if d > maxDiff {
			maxDiff = d
		}
	}
	if maxDiff > 1e-6 {
		t.Fatalf("fft overlap-save diverged from direct convolution: max diff %v", maxDiff)
	}
}

func TestConvolutionSplitInvariance(t *testing.T) {
	kernel := []float64{0.2, -0.1, 0.3, 0.4}
	full, _ := NewConvolution[float64](kernel, "moving")
	full.Init(1, 0)
	in := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	outFull := make([]float64, len(in))
	full.ProcessInterleaved(in, len(in), outFull)

	split, _ := NewConvolution[float64](kernel, "moving")
	split.Init(1, 0)
	outSplit := make([]float64, len(in))
	split.ProcessInterleaved(in[:4], 4, outSplit[:4])
	split.ProcessInterleaved(in[4:], len(in)-4, outSplit[4:])

	for i := range outFull {
		d := outFull[i] - outSplit[i]
		if d < 0 {
			d = -d
		}
		if d > 1e-9 {
			t.Fatalf("split invariance violated at %d: %v vs %v", i, outFull[i], outSplit[i])
		}
	}
}
