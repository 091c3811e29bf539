package lipsync

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Handle identifies one requested frame. Zero is never issued.
type Handle uint64

// Scheduler requests a single callback for the next frame, like a display's
// animation frame source.
type Scheduler interface {
	RequestFrame(fn func(Handle)) Handle
	CancelFrame(Handle)
}

// DefaultFPS is the analysis rate.
const DefaultFPS = 60

// ClockScheduler fires frames at a fixed rate on a clock.
type ClockScheduler struct {
	clock    clock.Clock
	interval time.Duration

	mu     sync.Mutex
	next   Handle
	timers map[Handle]*clock.Timer
}

// NewClockScheduler creates a scheduler at fps frames per second. A nil clock
// uses the wall clock.
func NewClockScheduler(c clock.Clock, fps int) *ClockScheduler {
	if c == nil {
		c = clock.New()
	}
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &ClockScheduler{
		clock:    c,
		interval: time.Second / time.Duration(fps),
		timers:   make(map[Handle]*clock.Timer),
	}
}

func (s *ClockScheduler) RequestFrame(fn func(Handle)) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	h := s.next
	s.timers[h] = s.clock.AfterFunc(s.interval, func() {
		s.mu.Lock()
		_, ok := s.timers[h]
		delete(s.timers, h)
		s.mu.Unlock()
		if ok {
			fn(h)
		}
	})
	return h
}

func (s *ClockScheduler) CancelFrame(h Handle) {
	s.mu.Lock()
	t, ok := s.timers[h]
	delete(s.timers, h)
	s.mu.Unlock()
	if ok {
		t.Stop()
	}
}

// Pending reports the number of outstanding frames.
func (s *ClockScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
