package lipsync

import (
	"fmt"
	"math"
)

const (
	DefaultMinDecibels = -100.0
	DefaultMaxDecibels = -30.0
	DefaultSmoothing   = 0.8

	// LevelFFTSize is the analyser size used for the amplitude envelope.
	LevelFFTSize = 256
)

// Analyser reproduces the byte frequency data of a Web Audio AnalyserNode:
// Blackman window, magnitude smoothing over time, decibel scaling into
// [MinDecibels, MaxDecibels] mapped onto 0..255.
type Analyser struct {
	size        int
	smoothing   float64
	minDecibels float64
	maxDecibels float64

	samples *ring
	spec    *spectrum
	smooth  []float64
}

// NewAnalyser creates an analyser of the given FFT size (a power of two).
func NewAnalyser(size int) (*Analyser, error) {
	if !isPowerOfTwo(size) || size < 32 {
		return nil, fmt.Errorf("analyser size %d is not a power of two >= 32", size)
	}
	return &Analyser{
		size:        size,
		smoothing:   DefaultSmoothing,
		minDecibels: DefaultMinDecibels,
		maxDecibels: DefaultMaxDecibels,
		samples:     newRing(size),
		spec:        newSpectrum(size, blackman),
		smooth:      make([]float64, size/2),
	}, nil
}

// BinCount is half the FFT size.
func (a *Analyser) BinCount() int { return a.size / 2 }

// Write feeds samples into the analyser. Safe to call from a device goroutine.
func (a *Analyser) Write(samples []float32) { a.samples.Write(samples) }

// ByteFrequencyData computes the current spectrum into dst, growing it when it
// is shorter than BinCount. Not safe for concurrent use with itself.
func (a *Analyser) ByteFrequencyData(dst []byte) []byte {
	bins := a.BinCount()
	if cap(dst) < bins {
		dst = make([]byte, bins)
	}
	dst = dst[:bins]

	a.spec.load(a.samples)
	a.spec.transform()

	scale := 255 / (a.maxDecibels - a.minDecibels)
	for k := range bins {
		mag := a.spec.magnitude(k) / float64(a.size)
		a.smooth[k] = a.smoothing*a.smooth[k] + (1-a.smoothing)*mag
		if a.smooth[k] <= 0 {
			dst[k] = 0
			continue
		}
		db := 20 * math.Log10(a.smooth[k])
		v := math.Floor(scale * (db - a.minDecibels))
		dst[k] = byte(max(0, min(255, v)))
	}
	return dst
}

// Reset clears buffered samples and smoothing state.
func (a *Analyser) Reset() {
	a.samples.Clear()
	clear(a.smooth)
}

// Level maps byte frequency data onto an amplitude envelope in [0, 1]:
// mean(bins)/128 scaled by sensitivity.
func Level(bins []byte, sensitivity float64) float64 {
	if len(bins) == 0 {
		return 0
	}
	sum := 0
	for _, b := range bins {
		sum += int(b)
	}
	avg := float64(sum) / float64(len(bins))
	return max(0, min(1, avg/128*sensitivity))
}
