package batch

import (
	"math"
	"sync"
	"testing"
)

func approxEqual(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func TestProcessorForwardRealDCBin(t *testing.T) {
	p := NewProcessor(2, 16, 8)
	defer p.Close()

	const n = 8
	in := make([]complex128, n)
	for i := range in {
		in[i] = complex(1, 0) // constant signal: all energy in bin 0
	}
	out := make([]complex128, n/2+1)
	job := &Job{In: in, Out: out, Length: n, IsReal: true, Forward: true}
	if err := p.SubmitWait(job); err != nil {
		t.Fatal(err)
	}
	if !approxEqual(real(out[0]), float64(n), 1e-9) {
		t.Fatalf("expected DC bin %v, got %v", n, out[0])
	}
	for _, bin := range out[1:] {
		if !approxEqual(real(bin), 0, 1e-9) || !approxEqual(imag(bin), 0, 1e-9) {
			t.Errorf("expected a zero bin for a constant signal, got %v", bin)
		}
	}
}

func TestProcessorInverseRoundTrip(t *testing.T) {
	p := NewProcessor(2, 0, 0) // caching disabled
	defer p.Close()

	const n = 16
	signal := make([]complex128, n)
	for i := range signal {
		signal[i] = complex(math.Sin(float64(i)*0.4)+0.2, 0)
	}
	spectrum := make([]complex128, n)
	fwd := &Job{In: signal, Out: spectrum, Length: n, IsReal: false, Forward: true}
	if err := p.SubmitWait(fwd); err != nil {
		t.Fatal(err)
	}
	reconstructed := make([]complex128, n)
	inv := &Job{In: spectrum, Out: reconstructed, Length: n, IsReal: false, Forward: false}
	if err := p.SubmitWait(inv); err != nil {
		t.Fatal(err)
	}
	for i := range signal {
		if !approxEqual(real(reconstructed[i]), real(signal[i]), 1e-9) {
			t.Fatalf("round trip diverged at %d: got %v want %v", i, reconstructed[i], signal[i])
		}
	}
}

func TestProcessorCacheHitsOnRepeatedInput(t *testing.T) {
	p := NewProcessor(1, 32, 32)
	defer p.Close()

	const n = 32
	in := make([]complex128, n)
	for i := range in {
		in[i] = complex(math.Cos(float64(i)*0.1), 0)
	}

	run := func() {
		out := make([]complex128, n/2+1)
		job := &Job{In: in, Out: out, Length: n, IsReal: true, Forward: true}
		if err := p.SubmitWait(job); err != nil {
			t.Fatal(err)
		}
	}
	run()
	run()
	run()

	stats := p.Stats().Cache
	if stats.Misses != 1 {
		t.Fatalf("expected exactly 1 cache miss (first call), got %d", stats.Misses)
	}
	if stats.Hits != 2 {
		t.Fatalf("expected 2 cache hits (repeat calls), got %d", stats.Hits)
	}
	if rate := p.Stats().Cache.HitRate(); !approxEqual(rate, 2.0/3.0, 1e-9) {
		t.Errorf("expected hit rate 2/3, got %v", rate)
	}
}

func TestProcessorCacheDistinguishesShapes(t *testing.T) {
	p := NewProcessor(1, 32, 32)
	defer p.Close()

	const n = 8
	in := make([]complex128, n)
	for i := range in {
		in[i] = complex(float64(i), 0)
	}

	realOut := make([]complex128, n/2+1)
	if err := p.SubmitWait(&Job{In: in, Out: realOut, Length: n, IsReal: true, Forward: true}); err != nil {
		t.Fatal(err)
	}
	complexOut := make([]complex128, n)
	if err := p.SubmitWait(&Job{In: in, Out: complexOut, Length: n, IsReal: false, Forward: true}); err != nil {
		t.Fatal(err)
	}
	if p.Stats().Cache.Misses != 2 {
		t.Fatalf("expected the real and complex transforms to miss independently, got %d misses", p.Stats().Cache.Misses)
	}
}

func TestProcessorPerSizeEviction(t *testing.T) {
	c := NewCache(100, 2)
	for i := 0; i < 5; i++ {
		samples := []complex128{complex(float64(i), 0)}
		c.Insert(4, true, samples, []complex128{complex(float64(i), 0)})
	}
	stats := c.Stats()
	if stats.Entries != 2 {
		t.Fatalf("expected per-size cap of 2 entries, got %d", stats.Entries)
	}
}

func TestProcessorRunsJobsConcurrently(t *testing.T) {
	p := NewProcessor(4, 0, 0)
	defer p.Close()

	const jobs = 64
	var wg sync.WaitGroup
	wg.Add(jobs)
	for i := 0; i < jobs; i++ {
		go func(i int) {
			defer wg.Done()
			n := 16
			in := make([]complex128, n)
			for k := range in {
				in[k] = complex(float64(k+i), 0)
			}
			out := make([]complex128, n)
			if err := p.SubmitWait(&Job{In: in, Out: out, Length: n, Forward: true}); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()
	stats := p.Stats()
	if stats.Submitted != jobs || stats.Completed != jobs {
		t.Fatalf("expected submitted == completed == %d, got submitted=%d completed=%d", jobs, stats.Submitted, stats.Completed)
	}
}

func TestProcessorRejectsBadLength(t *testing.T) {
	p := NewProcessor(1, 0, 0)
	defer p.Close()
	job := &Job{In: nil, Out: nil, Length: 0, Forward: true}
	if err := p.SubmitWait(job); err == nil {
		t.Fatal("expected an error for a zero-length job")
	}
}
