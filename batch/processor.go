package batch

import (
	"fmt"
	"runtime"
	"sync"

	dsp "github.com/thesyncim/godsp"
	"github.com/thesyncim/godsp/fft"
)

// Job describes one FFT, RFFT, IFFT, or IRFFT call. In and Out are always
// complex128 so one job type covers every direction: for a real-input
// forward transform the imaginary parts of In are ignored and Out holds
// Length/2+1 bins; for a real-output inverse transform the imaginary
// parts of Out are zero. Callers size Out themselves (Length/2+1 entries
// for a real-input forward transform, Length otherwise; a real-output
// inverse reads Length/2+1 entries of In) before calling Submit.
type Job struct {
	In      []complex128
	Out     []complex128
	Length  int
	IsReal  bool
	Forward bool

	err  error
	done chan struct{}
}

// Wait blocks until the processor has run this job and returns the error
// it produced, if any. Calling Wait before Submit deadlocks; callers use
// Processor.SubmitWait instead when they don't need to do other work
// between submission and completion.
func (j *Job) Wait() error {
	<-j.done
	return j.err
}

// Processor is the worker pool described for the pipeline's optional
// batch-FFT fast path: a fixed number of workers drain a FIFO job queue,
// each blocking on a condition variable tied to the queue rather than
// busy-polling, with a shared result cache serialized by its own lock so
// cache traffic never contends with job dispatch.
type Processor struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*Job
	closed bool

	submitted uint64
	completed uint64

	cache *Cache

	wg sync.WaitGroup
}

// NewProcessor starts a pool of workers workers (runtime.NumCPU() if
// workers <= 0) backed by a result cache holding at most cacheSize
// entries, with at most cachePerSize entries per distinct transform
// shape. Pass cacheSize <= 0 to disable caching entirely.
func NewProcessor(workers, cacheSize, cachePerSize int) *Processor {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	p := &Processor{
		cache: NewCache(cacheSize, cachePerSize),
	}
	p.cond = sync.NewCond(&p.mu)
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.runWorker()
	}
	return p
}

// Submit enqueues job and returns immediately; the caller observes
// completion via job.Wait.
func (p *Processor) Submit(job *Job) {
	job.done = make(chan struct{})
	p.mu.Lock()
	p.submitted++
	p.queue = append(p.queue, job)
	p.mu.Unlock()
	p.cond.Signal()
}

// SubmitWait enqueues job and blocks until it completes, returning its
// error.
func (p *Processor) SubmitWait(job *Job) error {
	p.Submit(job)
	return job.Wait()
}

// Close signals every worker to exit once the queue drains and waits for
// them to stop. Close must not be called concurrently with Submit; the
// pipeline layer enforces this by rejecting disposal while busy.
func (p *Processor) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
	p.wg.Wait()
}

// ProcessorStats reports submission/completion counters and cache
// statistics. A Processor with Submitted == Completed has no work in
// flight.
type ProcessorStats struct {
	Submitted uint64
	Completed uint64
	Cache     CacheStats
}

func (p *Processor) Stats() ProcessorStats {
	p.mu.Lock()
	submitted, completed := p.submitted, p.completed
	p.mu.Unlock()
	return ProcessorStats{
		Submitted: submitted,
		Completed: completed,
		Cache:     p.cache.Stats(),
	}
}

func (p *Processor) runWorker() {
	defer p.wg.Done()
	eng := newEngine()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 && p.closed {
			p.mu.Unlock()
			return
		}
		job := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.execute(job, eng)

		p.mu.Lock()
		p.completed++
		p.mu.Unlock()
		close(job.done)
	}
}

func (p *Processor) execute(j *Job, eng *engine) {
	if j.Length <= 0 {
		j.err = fmt.Errorf("%w: batch: job length must be positive", dsp.ErrInvalidArgument)
		return
	}
	if j.Forward {
		p.executeForward(j, eng)
	} else {
		p.executeInverse(j, eng)
	}
}

func (p *Processor) executeForward(j *Job, eng *engine) {
	bins := j.Length
	if j.IsReal {
		bins = j.Length/2 + 1
	}
	if len(j.In) < j.Length || len(j.Out) < bins {
		j.err = fmt.Errorf("%w: batch: buffer size mismatch for forward transform", dsp.ErrShapeMismatch)
		return
	}
	if cached, ok := p.cache.Lookup(j.Length, j.IsReal, j.In[:j.Length]); ok {
		copy(j.Out, cached)
		return
	}
	if j.IsReal {
		samples := make([]float64, j.Length)
		for i, v := range j.In[:j.Length] {
			samples[i] = real(v)
		}
		rp := eng.realPlan(j.Length)
		rp.Forward(j.Out[:bins], samples)
	} else {
		cp := eng.complexPlan(j.Length)
		if cp != nil {
			cp.Forward(j.Out[:j.Length], j.In[:j.Length])
		} else {
			fft.Direct(j.Out[:j.Length], j.In[:j.Length], true)
		}
	}
	p.cache.Insert(j.Length, j.IsReal, j.In[:j.Length], j.Out[:bins])
}

func (p *Processor) executeInverse(j *Job, eng *engine) {
	if j.IsReal {
		bins := j.Length/2 + 1
		if len(j.In) < bins || len(j.Out) < j.Length {
			j.err = fmt.Errorf("%w: batch: buffer size mismatch for inverse real transform", dsp.ErrShapeMismatch)
			return
		}
		rp := eng.realPlan(j.Length)
		samples := make([]float64, j.Length)
		rp.Inverse(samples, j.In[:bins])
		for i, v := range samples {
			j.Out[i] = complex(v, 0)
		}
		return
	}
	if len(j.In) < j.Length || len(j.Out) < j.Length {
		j.err = fmt.Errorf("%w: batch: buffer size mismatch for inverse transform", dsp.ErrShapeMismatch)
		return
	}
	cp := eng.complexPlan(j.Length)
	if cp != nil {
		cp.Inverse(j.Out[:j.Length], j.In[:j.Length])
	} else {
		fft.Direct(j.Out[:j.Length], j.In[:j.Length], false)
	}
}
