package lipsync

import "math"

// spectrum transforms the latest window of a ring buffer. Twiddle factors and
// the window are computed once per size; the buffers are reused every frame.
type spectrum struct {
	window []float64
	cos    []float64 // cos(-2πj/n) for j < n/2
	sin    []float64
	re, im []float64
}

func newSpectrum(size int, window func(n int) []float64) *spectrum {
	s := &spectrum{
		window: window(size),
		cos:    make([]float64, size/2),
		sin:    make([]float64, size/2),
		re:     make([]float64, size),
		im:     make([]float64, size),
	}
	for j := range size / 2 {
		angle := -2 * math.Pi * float64(j) / float64(size)
		s.cos[j], s.sin[j] = math.Cos(angle), math.Sin(angle)
	}
	return s
}

func (s *spectrum) size() int { return len(s.re) }

// load copies the newest samples from r, applies the window and returns the
// RMS of the unwindowed input.
func (s *spectrum) load(r *ring) float64 {
	r.Latest(s.re)
	sumSq := 0.0
	for i, v := range s.re {
		sumSq += v * v
		s.re[i] = v * s.window[i]
		s.im[i] = 0
	}
	return math.Sqrt(sumSq / float64(len(s.re)))
}

// magnitude is |X[k]| after transform.
func (s *spectrum) magnitude(k int) float64 { return math.Hypot(s.re[k], s.im[k]) }

// transform runs an in-place radix-2 Cooley-Tukey FFT over the loaded window.
func (s *spectrum) transform() {
	re, im := s.re, s.im
	n := len(re)
	if n <= 1 {
		return
	}

	// Bit-reversal permutation
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			re[i], re[j] = re[j], re[i]
			im[i], im[j] = im[j], im[i]
		}
	}

	// Butterflies; stage size uses every (n/size)th twiddle.
	for size := 2; size <= n; size <<= 1 {
		half, stride := size>>1, n/size
		for i := 0; i < n; i += size {
			for k := range half {
				wr, wi := s.cos[k*stride], s.sin[k*stride]
				a, b := i+k, i+k+half
				tr := wr*re[b] - wi*im[b]
				ti := wr*im[b] + wi*re[b]
				re[b], im[b] = re[a]-tr, im[a]-ti
				re[a] += tr
				im[a] += ti
			}
		}
	}
}

// blackman is the exact Blackman window used by Web Audio analysers.
func blackman(n int) []float64 {
	w := make([]float64, n)
	for i := range n {
		x := 2 * math.Pi * float64(i) / float64(n)
		w[i] = 0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2*x)
	}
	return w
}

// hann tapers the classifier window to limit leakage between formant bands.
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range n {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

func isPowerOfTwo(n int) bool { return n > 0 && n&(n-1) == 0 }
