package lipsync

import (
	"math"
	"testing"
)

func TestSpectrumMatchesDirectTransform(t *testing.T) {
	const n = 64
	s := newSpectrum(n, func(n int) []float64 {
		w := make([]float64, n)
		for i := range w {
			w[i] = 1
		}
		return w
	})
	r := newRing(n)
	in := make([]float32, n)
	for i := range in {
		in[i] = float32(math.Sin(2*math.Pi*5*float64(i)/n) + 0.5*math.Cos(2*math.Pi*12*float64(i)/n))
	}
	r.Write(in)
	s.load(r)
	s.transform()

	for k := range n / 2 {
		var re, im float64
		for i, v := range in {
			a := -2 * math.Pi * float64(k*i) / n
			re += float64(v) * math.Cos(a)
			im += float64(v) * math.Sin(a)
		}
		if want := math.Hypot(re, im); math.Abs(s.magnitude(k)-want) > 1e-6 {
			t.Fatalf("bin %d: expected %v, got %v", k, want, s.magnitude(k))
		}
	}
}

func TestSpectrumLoadReportsRMS(t *testing.T) {
	s := newSpectrum(32, blackman)
	r := newRing(32)
	in := make([]float32, 32)
	for i := range in {
		in[i] = 0.5
	}
	r.Write(in)
	if rms := s.load(r); math.Abs(rms-0.5) > 1e-6 {
		t.Fatalf("expected rms 0.5, got %v", rms)
	}
	if math.Abs(s.re[0]) > 1e-12 {
		t.Fatalf("expected the window to zero the first sample, got %v", s.re[0])
	}
}
