package lipsync

import (
	"math/rand/v2"
	"testing"

	"github.com/olivier-w/climoji/internal/viseme"
)

func TestLevelScalesAndClamps(t *testing.T) {
	bins := []byte{128, 128, 128, 128}
	if got := Level(bins, 0.5); got != 0.5 {
		t.Fatalf("expected 0.5, got %v", got)
	}
	if got := Level(bins, 3); got != 1 {
		t.Fatalf("expected clamp to 1, got %v", got)
	}
	if got := Level(nil, 1); got != 0 {
		t.Fatalf("expected 0 for empty bins, got %v", got)
	}
}

func TestAnalyserSilenceIsZero(t *testing.T) {
	a, err := NewAnalyser(LevelFFTSize)
	if err != nil {
		t.Fatalf("NewAnalyser returned error: %v", err)
	}
	a.Write(make([]float32, LevelFFTSize))
	bins := a.ByteFrequencyData(nil)
	if len(bins) != LevelFFTSize/2 {
		t.Fatalf("expected %d bins, got %d", LevelFFTSize/2, len(bins))
	}
	for i, b := range bins {
		if b != 0 {
			t.Fatalf("expected silent bin %d to be 0, got %d", i, b)
		}
	}
}

func TestAnalyserToneLightsItsBin(t *testing.T) {
	a, _ := NewAnalyser(LevelFFTSize)
	// 48000/256 = 187.5 Hz per bin; 3000 Hz lands on bin 16.
	var bins []byte
	for range 30 {
		a.Write(sine(LevelFFTSize, 48000, 0.5, 3000))
		bins = a.ByteFrequencyData(bins)
	}
	if bins[16] < 200 {
		t.Fatalf("expected strong bin 16, got %d", bins[16])
	}
	if bins[60] >= bins[16] {
		t.Fatalf("expected far bin weaker than tone bin, got %d vs %d", bins[60], bins[16])
	}
}

func TestNewAnalyserRejectsBadSize(t *testing.T) {
	if _, err := NewAnalyser(300); err == nil {
		t.Fatal("expected error for non power of two size")
	}
}

func TestClassifierSilence(t *testing.T) {
	c := NewSpectralClassifier(48000)
	c.Write(make([]float32, ClassifierFFTSize))
	if got := c.Process(); got != viseme.Silence {
		t.Fatalf("expected silence, got %v", got)
	}
}

func TestClassifierOpenVowel(t *testing.T) {
	c := NewSpectralClassifier(48000)
	var got viseme.Viseme
	for range 4 {
		c.Write(sine(ClassifierFFTSize, 48000, 0.3, 700, 1200))
		got = c.Process()
	}
	if got != viseme.OpenWide {
		t.Fatalf("expected %v, got %v", viseme.OpenWide, got)
	}
}

func TestClassifierNoiseIsSibilant(t *testing.T) {
	c := NewSpectralClassifier(48000)
	r := rand.New(rand.NewPCG(1, 2))
	noise := make([]float32, ClassifierFFTSize)
	for i := range noise {
		noise[i] = float32(r.Float64()*0.6 - 0.3)
	}
	c.Write(noise)
	if got := c.Process(); got != viseme.Sibilant {
		t.Fatalf("expected %v, got %v", viseme.Sibilant, got)
	}
}

func TestRingLatestPadsFront(t *testing.T) {
	r := newRing(4)
	r.Write([]float32{1, 2, 3, 4, 5, 6})
	dst := make([]float64, 4)
	r.Latest(dst)
	if dst[0] != 3 || dst[3] != 6 {
		t.Fatalf("expected newest samples 3..6, got %v", dst)
	}
	r.Clear()
	r.Write([]float32{7})
	r.Latest(dst)
	if dst[0] != 0 || dst[3] != 7 {
		t.Fatalf("expected zero padding before 7, got %v", dst)
	}
}
