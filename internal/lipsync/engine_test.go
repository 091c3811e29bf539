package lipsync

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/olivier-w/climoji/internal/capture"
	"github.com/olivier-w/climoji/internal/viseme"
)

type requested struct {
	h  Handle
	fn func(Handle)
}

// manualScheduler fires frames only when the test asks. It keeps every
// callback ever requested so stale handles can be replayed.
type manualScheduler struct {
	mu      sync.Mutex
	next    Handle
	pending map[Handle]func(Handle)
	all     []requested
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{pending: make(map[Handle]func(Handle))}
}

func (m *manualScheduler) RequestFrame(fn func(Handle)) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.pending[m.next] = fn
	m.all = append(m.all, requested{m.next, fn})
	return m.next
}

func (m *manualScheduler) CancelFrame(h Handle) {
	m.mu.Lock()
	delete(m.pending, h)
	m.mu.Unlock()
}

func (m *manualScheduler) fire() {
	m.mu.Lock()
	due := m.pending
	m.pending = make(map[Handle]func(Handle))
	m.mu.Unlock()
	for h, fn := range due {
		fn(h)
	}
}

func (m *manualScheduler) pendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

type trackAcquirer struct {
	mu     sync.Mutex
	tracks []*capture.AudioTrack
	stops  int
}

func (a *trackAcquirer) open() (*capture.Stream, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t := capture.NewAudioTrack(48000, func() {
		a.mu.Lock()
		a.stops++
		a.mu.Unlock()
	})
	a.tracks = append(a.tracks, t)
	return capture.NewStream(t), nil
}

func (a *trackAcquirer) UserMedia(context.Context) (*capture.Stream, error)    { return a.open() }
func (a *trackAcquirer) DisplayMedia(context.Context) (*capture.Stream, error) { return a.open() }

func (a *trackAcquirer) last() *capture.AudioTrack {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tracks[len(a.tracks)-1]
}

type frameRecorder struct {
	mu     sync.Mutex
	frames []Frame
}

func (r *frameRecorder) record(f Frame) {
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
}

func (r *frameRecorder) snapshot() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Frame(nil), r.frames...)
}

func newTestEngine(t *testing.T, caps capture.CapabilityProvider) (*Engine, *manualScheduler, *trackAcquirer, *frameRecorder) {
	t.Helper()
	acq := &trackAcquirer{}
	sched := newManualScheduler()
	mgr := capture.NewManager(acq, caps)
	e := NewEngine(mgr, WithScheduler(sched))
	rec := &frameRecorder{}
	e.Frames().Subscribe(rec.record)
	return e, sched, acq, rec
}

func sine(n int, rate float64, amp float64, freqs ...float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		v := 0.0
		for _, f := range freqs {
			v += amp * math.Sin(2*math.Pi*f*float64(i)/rate)
		}
		out[i] = float32(v)
	}
	return out
}

func TestMicrophoneSessionEmitsFrames(t *testing.T) {
	e, sched, acq, rec := newTestEngine(t, capture.Fixed(capture.Support{Supported: true}))

	if err := e.Start(context.Background(), capture.Microphone); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if !e.Active() {
		t.Fatal("expected engine active after start")
	}

	for range 5 {
		acq.last().Push(sine(2048, 48000, 0.3, 700, 1200))
		sched.fire()
	}

	frames := rec.snapshot()
	if len(frames) != 5 {
		t.Fatalf("expected one frame per tick, got %d", len(frames))
	}
	for i, f := range frames {
		if !f.Active || !f.Viseme.Valid() {
			t.Fatalf("frame %d: expected active frame with a valid viseme, got %+v", i, f)
		}
	}
	if frames[4].Level <= 0 {
		t.Fatalf("expected positive level for loud input, got %v", frames[4].Level)
	}
	if frames[4].Viseme == viseme.Silence {
		t.Fatal("expected non-silent viseme for voiced input")
	}
}

func TestStopIsIdempotentAndResets(t *testing.T) {
	e, sched, acq, rec := newTestEngine(t, nil)

	e.Stop()
	if got := len(rec.snapshot()); got != 0 {
		t.Fatalf("expected no frames from stop without a session, got %d", got)
	}

	if err := e.Start(context.Background(), capture.Microphone); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	acq.last().Push(sine(2048, 48000, 0.3, 700))
	sched.fire()

	e.Stop()
	e.Stop()

	frames := rec.snapshot()
	if last := frames[len(frames)-1]; last != Idle {
		t.Fatalf("expected idle frame last, got %+v", last)
	}
	if e.Active() {
		t.Fatal("expected inactive engine")
	}
	if sched.pendingCount() != 0 {
		t.Fatalf("expected no pending frames, got %d", sched.pendingCount())
	}
	if acq.stops != 1 {
		t.Fatalf("expected one track release, got %d", acq.stops)
	}
}

func TestStaleFrameHandleDoesNotPublish(t *testing.T) {
	e, sched, _, rec := newTestEngine(t, nil)

	if err := e.Start(context.Background(), capture.Microphone); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	stale := sched.all[0]
	e.Stop()
	before := len(rec.snapshot())

	stale.fn(stale.h)
	if got := len(rec.snapshot()); got != before {
		t.Fatalf("expected stale frame to be ignored, got %d new frames", got-before)
	}
}

func TestRestartLeavesOneStream(t *testing.T) {
	e, sched, acq, _ := newTestEngine(t, nil)

	for range 3 {
		if err := e.Start(context.Background(), capture.Microphone); err != nil {
			t.Fatalf("Start returned error: %v", err)
		}
	}
	live := 0
	for _, tr := range acq.tracks {
		if !tr.Stopped() {
			live++
		}
	}
	if live != 1 {
		t.Fatalf("expected exactly one live track, got %d", live)
	}
	if acq.stops != 2 {
		t.Fatalf("expected two releases, got %d", acq.stops)
	}
	if sched.pendingCount() != 1 {
		t.Fatalf("expected one frame loop, got %d", sched.pendingCount())
	}
}

func TestUnsupportedSystemAudioFailsWithoutSession(t *testing.T) {
	e, sched, acq, rec := newTestEngine(t, capture.Fixed(capture.Support{Unsupported: true}))

	err := e.Start(context.Background(), capture.SystemAudio)
	if !errors.Is(err, capture.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if len(acq.tracks) != 0 {
		t.Fatal("expected no acquisition attempt")
	}
	if e.Active() || sched.pendingCount() != 0 || len(rec.snapshot()) != 0 {
		t.Fatal("expected no session state after failure")
	}
}

func TestExternalEndStopsSession(t *testing.T) {
	e, sched, acq, rec := newTestEngine(t, capture.Fixed(capture.Support{Supported: true}))
	inactive := make(chan struct{}, 1)
	e.ActiveChanges().Subscribe(func(active bool) {
		if !active {
			inactive <- struct{}{}
		}
	})

	if err := e.Start(context.Background(), capture.SystemAudio); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	acq.last().End()

	select {
	case <-inactive:
	case <-time.After(time.Second):
		t.Fatal("expected session to end")
	}
	if e.Active() {
		t.Fatal("expected inactive engine")
	}
	frames := rec.snapshot()
	if len(frames) == 0 || frames[len(frames)-1] != Idle {
		t.Fatalf("expected idle frame after external end, got %+v", frames)
	}
	if sched.pendingCount() != 0 {
		t.Fatal("expected frame loop cancelled")
	}
}

func TestSensitivityAppliesToNextFrame(t *testing.T) {
	e, sched, acq, rec := newTestEngine(t, nil)
	if err := e.Start(context.Background(), capture.Microphone); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	for range 20 {
		acq.last().Push(sine(256, 48000, 0.5, 1000))
		sched.fire()
	}
	e.SetSensitivity(0)
	sched.fire()

	frames := rec.snapshot()
	if frames[len(frames)-2].Level == 0 {
		t.Fatal("expected non-zero level before sensitivity change")
	}
	if frames[len(frames)-1].Level != 0 {
		t.Fatalf("expected zero level at sensitivity 0, got %v", frames[len(frames)-1].Level)
	}
}
