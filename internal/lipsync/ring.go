package lipsync

import "sync"

// ring is a thread-safe circular buffer of mono samples. Device goroutines
// write into it; the frame loop reads the most recent window.
type ring struct {
	mu   sync.Mutex
	buf  []float32
	w    int
	fill int
}

func newRing(size int) *ring {
	return &ring{buf: make([]float32, size)}
}

// Write appends samples, overwriting the oldest when full.
func (r *ring) Write(p []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := len(r.buf)
	if len(p) > size {
		p = p[len(p)-size:]
	}
	for _, s := range p {
		r.buf[r.w] = s
		r.w = (r.w + 1) % size
	}
	r.fill = min(r.fill+len(p), size)
}

// Latest copies the newest len(dst) samples into dst, oldest first. When fewer
// samples have been written the front of dst is zero-filled.
func (r *ring) Latest(dst []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := min(len(dst), r.fill)
	pad := len(dst) - n
	for i := range pad {
		dst[i] = 0
	}
	size := len(r.buf)
	start := (r.w - n + size) % size
	for i := range n {
		dst[pad+i] = float64(r.buf[(start+i)%size])
	}
}

// Clear drops all buffered samples.
func (r *ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.w = 0
	r.fill = 0
}
