package lipsync

import "github.com/olivier-w/climoji/internal/viseme"

// Classifier turns recent audio into a viseme once per frame. Implementations
// buffer what Write gives them and decide on Process.
type Classifier interface {
	Write(samples []float32)
	Process() viseme.Viseme
	Reset()
}

const (
	ClassifierFFTSize = 2048
	ClassifierHistory = 10

	silenceFloor = 0.01
	voteWindow   = 3
)

// features summarises one analysis window.
type features struct {
	volume   float64
	centroid float64
	bands    [5]float64 // <300, 300-800, 800-2500, 2500-4500, >4500 Hz
	f1, f2   float64
}

func (f features) total() float64 {
	s := 0.0
	for _, b := range f.bands {
		s += b
	}
	return s
}

var bandEdges = [...]float64{300, 800, 2500, 4500}

// SpectralClassifier is a heuristic viseme detector built on band energies,
// formant peaks and a short feature history.
type SpectralClassifier struct {
	sampleRate float64

	samples *ring
	spec    *spectrum

	history []features
	votes   []viseme.Viseme
}

// NewSpectralClassifier creates a classifier for audio at sampleRate.
func NewSpectralClassifier(sampleRate int) *SpectralClassifier {
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	return &SpectralClassifier{
		sampleRate: float64(sampleRate),
		samples:    newRing(ClassifierFFTSize),
		spec:       newSpectrum(ClassifierFFTSize, hann),
	}
}

func (c *SpectralClassifier) Write(samples []float32) { c.samples.Write(samples) }

func (c *SpectralClassifier) Reset() {
	c.samples.Clear()
	c.history = c.history[:0]
	c.votes = c.votes[:0]
}

// Process analyses the latest window and returns the stabilised viseme.
func (c *SpectralClassifier) Process() viseme.Viseme {
	f := c.extract()
	raw := c.classify(f)

	c.history = append(c.history, f)
	if len(c.history) > ClassifierHistory {
		c.history = c.history[1:]
	}

	if raw == viseme.Silence {
		c.votes = c.votes[:0]
		return viseme.Silence
	}
	c.votes = append(c.votes, raw)
	if len(c.votes) > voteWindow {
		c.votes = c.votes[1:]
	}
	return majority(c.votes)
}

func (c *SpectralClassifier) extract() features {
	var f features
	f.volume = c.spec.load(c.samples)
	if f.volume < silenceFloor {
		return f
	}
	c.spec.transform()

	n := c.spec.size()
	binHz := c.sampleRate / float64(n)
	var weighted, magSum, f1Peak, f2Peak float64
	for k := 1; k < n/2; k++ {
		hz := float64(k) * binHz
		mag := c.spec.magnitude(k)
		energy := mag * mag

		band := len(bandEdges)
		for i, edge := range bandEdges {
			if hz < edge {
				band = i
				break
			}
		}
		f.bands[band] += energy
		weighted += hz * mag
		magSum += mag

		if hz >= 250 && hz < 900 && mag > f1Peak {
			f1Peak, f.f1 = mag, hz
		}
		if hz >= 900 && hz < 2800 && mag > f2Peak {
			f2Peak, f.f2 = mag, hz
		}
	}
	if magSum > 0 {
		f.centroid = weighted / magSum
	}
	return f
}

func (c *SpectralClassifier) meanVolume() float64 {
	if len(c.history) == 0 {
		return 0
	}
	s := 0.0
	for _, h := range c.history {
		s += h.volume
	}
	return s / float64(len(c.history))
}

func (c *SpectralClassifier) meanBand(i int) float64 {
	if len(c.history) == 0 {
		return 0
	}
	s := 0.0
	for _, h := range c.history {
		s += h.bands[i]
	}
	return s / float64(len(c.history))
}

func (c *SpectralClassifier) classify(f features) viseme.Viseme {
	if f.volume < silenceFloor {
		return viseme.Silence
	}
	total := f.total()
	if total == 0 {
		return viseme.Silence
	}

	// Burst out of near silence.
	if n := len(c.history); n > 0 && c.history[n-1].volume < 2*silenceFloor && f.volume > 2.5*max(c.meanVolume(), silenceFloor) {
		return viseme.PressedLips
	}

	high := (f.bands[3] + f.bands[4]) / total
	low := f.bands[0] / total
	quiet := f.volume < 0.6*c.meanVolume()

	switch {
	case high > 0.55:
		switch {
		case f.bands[4] > 1.5*f.bands[3]:
			return viseme.Sibilant
		case f.centroid > 3500:
			return viseme.Postalveolar
		case quiet:
			return viseme.Labiodental
		default:
			return viseme.Sibilant
		}
	case high > 0.35 && quiet:
		return viseme.Interdental
	case low > 0.6:
		return viseme.Nasal
	}

	if mid := c.meanBand(2); mid > 0 && f.bands[2] > 2.5*mid && f.f1 < 500 {
		return viseme.Alveolar
	}
	if f.f2 >= 1100 && f.f2 < 1500 && f.f1 >= 400 && f.f1 < 550 {
		return viseme.Liquid
	}
	if quiet && f.f1 < 400 && f.f2 >= 1500 && f.f2 < 1900 {
		return viseme.Velar
	}

	switch {
	case f.f1 >= 650:
		return viseme.OpenWide
	case f.f2 >= 1900 && f.f1 < 400:
		return viseme.MidOpen
	case f.f2 >= 1900:
		return viseme.WideSmile
	case f.f2 < 1100 && f.f1 < 400:
		return viseme.SmallPucker
	case f.f2 < 1100:
		return viseme.Rounded
	case f.f1 >= 500:
		return viseme.OpenWide
	default:
		return viseme.WideSmile
	}
}

// majority returns the most frequent viseme, preferring the newest on ties.
func majority(vs []viseme.Viseme) viseme.Viseme {
	var counts [viseme.Count]int
	best := vs[len(vs)-1]
	for _, v := range vs {
		counts[v]++
	}
	for i := len(vs) - 1; i >= 0; i-- {
		if counts[vs[i]] > counts[best] {
			best = vs[i]
		}
	}
	return best
}
