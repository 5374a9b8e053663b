// Command dspctl exercises a godsp pipeline end to end: it generates a
// test signal, runs it through a small chain of stages, and reports the
// dominant spectral peak, demonstrating the save/restore split-process
// invariant along the way.
//
// Usage:
//
//	go run . -signal sine -freq 440 -fftSize 1024
//	go run . -signal sweep -duration 2 -split
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"strings"

	dsp "github.com/thesyncim/godsp"
	_ "github.com/thesyncim/godsp/stage"
)

const sampleRate = 44100.0

func main() {
	signal := flag.String("signal", "sine", "signal type: sine, sweep, noise")
	freq := flag.Float64("freq", 440, "sine/sweep base frequency in Hz")
	duration := flag.Float64("duration", 1.0, "signal duration in seconds")
	fftSize := flag.Int("fftSize", 1024, "FFT stage transform size")
	split := flag.Bool("split", false, "process as two halves with a save/restore in between, and report on the second half's output")
	flag.Parse()

	samples := generateSignal(*signal, *freq, *duration)

	pipe := dsp.New[float64](dsp.Config{SampleRate: sampleRate})
	if err := pipe.AddStage("fir", dsp.StageParams{
		"mode":            "lowpass",
		"cutoffFrequency": 4000.0,
		"sampleRate":      sampleRate,
		"order":           64,
	}); err != nil {
		log.Fatalf("add fir stage: %v", err)
	}
	if err := pipe.AddStage("fft", dsp.StageParams{
		"mode":   "batch",
		"size":   *fftSize,
		"type":   "rfft",
		"output": "magnitude",
	}); err != nil {
		log.Fatalf("add fft stage: %v", err)
	}

	var spectrum []float64
	var err error
	if *split {
		spectrum, err = runSplit(pipe, samples)
	} else {
		spectrum, err = pipe.Process(samples, nil, dsp.ProcessConfig{Channels: 1, SampleRate: sampleRate})
	}
	if err != nil {
		log.Fatalf("process: %v", err)
	}

	bin, mag := dominantBin(spectrum)
	bin %= *fftSize/2 + 1 // spectrum holds one row of fftSize/2+1 bins per frame
	freqAtBin := float64(bin) * sampleRate / float64(*fftSize)
	fmt.Printf("signal=%s duration=%.2fs fftSize=%d\n", *signal, *duration, *fftSize)
	fmt.Printf("dominant bin=%d (%.1f Hz) magnitude=%.2f\n", bin, freqAtBin, mag)
}

// runSplit feeds samples through the pipeline in two halves, saving and
// restoring state between them, and returns the second half's output.
// The FIR stage's tap history carries across the split. The batch FFT
// stage keeps no leftover samples, so the first half's trailing partial
// frame is dropped and the second half's frames start at the split point.
func runSplit(pipe *dsp.Pipeline[float64], samples []float64) ([]float64, error) {
	mid := len(samples) / 2
	if _, err := pipe.Process(samples[:mid], nil, dsp.ProcessConfig{Channels: 1, SampleRate: sampleRate}); err != nil {
		return nil, fmt.Errorf("first half: %w", err)
	}
	blob, err := pipe.SaveState()
	if err != nil {
		return nil, fmt.Errorf("save state: %w", err)
	}
	if err := pipe.LoadState(blob); err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	return pipe.Process(samples[mid:], nil, dsp.ProcessConfig{Channels: 1, SampleRate: sampleRate})
}

func dominantBin(spectrum []float64) (int, float64) {
	bin, mag := 0, 0.0
	for i, v := range spectrum {
		if v > mag {
			mag, bin = v, i
		}
	}
	return bin, mag
}

func generateSignal(kind string, freq, duration float64) []float64 {
	n := int(duration * sampleRate)
	out := make([]float64, n)
	switch strings.ToLower(kind) {
	case "sine":
		for i := range out {
			out[i] = math.Sin(2 * math.Pi * freq * float64(i) / sampleRate)
		}
	case "sweep":
		for i := range out {
			t := float64(i) / sampleRate
			instFreq := freq + (freq*4-freq)*t/duration
			out[i] = math.Sin(2 * math.Pi * instFreq * t)
		}
	case "noise":
		state := uint32(0x2545F491)
		for i := range out {
			state ^= state << 13
			state ^= state >> 17
			state ^= state << 5
			out[i] = (float64(state)/float64(1<<32))*2 - 1
		}
	default:
		log.Fatalf("unknown signal type %q", kind)
	}
	return out
}
