package capture

import (
	"sync"

	"github.com/google/uuid"
)

// TrackKind distinguishes audio from video tracks in a display capture.
type TrackKind uint8

const (
	KindAudio TrackKind = iota
	KindVideo
)

// Sink receives mono float32 PCM in [-1, 1]. The slice is only valid for the
// duration of the call.
type Sink func(samples []float32)

// Track is one media track of a stream.
type Track interface {
	ID() string
	Kind() TrackKind
	SampleRate() int
	// Connect attaches a sink and returns a function that detaches it.
	Connect(Sink) (disconnect func())
	// Stop releases the underlying device. It does not signal Ended.
	Stop()
	// Ended closes when the track stops on its own (device lost, the user
	// ended sharing outside the app, replay reached the end).
	Ended() <-chan struct{}
}

// AudioTrack is the Track implementation used by every acquirer. Producers call
// Push from their device goroutine and End when the source goes away.
type AudioTrack struct {
	id   string
	rate int

	mu      sync.Mutex
	sinks   map[int]Sink
	nextID  int
	stopped bool
	release func()

	ended   chan struct{}
	endOnce sync.Once
}

// NewAudioTrack creates a track; release is called once on Stop.
func NewAudioTrack(sampleRate int, release func()) *AudioTrack {
	return &AudioTrack{
		id:      uuid.NewString(),
		rate:    sampleRate,
		sinks:   make(map[int]Sink),
		release: release,
		ended:   make(chan struct{}),
	}
}

func (t *AudioTrack) ID() string             { return t.id }
func (t *AudioTrack) Kind() TrackKind        { return KindAudio }
func (t *AudioTrack) SampleRate() int        { return t.rate }
func (t *AudioTrack) Ended() <-chan struct{} { return t.ended }

func (t *AudioTrack) Connect(s Sink) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.sinks[id] = s
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		delete(t.sinks, id)
		t.mu.Unlock()
	}
}

// Push fans samples out to connected sinks. Calls after Stop are dropped.
func (t *AudioTrack) Push(samples []float32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	for _, s := range t.sinks {
		s(samples)
	}
}

// End marks the track as ended by its source. It is a no-op after Stop.
func (t *AudioTrack) End() {
	t.mu.Lock()
	stopped := t.stopped
	t.mu.Unlock()
	if stopped {
		return
	}
	t.endOnce.Do(func() { close(t.ended) })
}

func (t *AudioTrack) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.sinks = make(map[int]Sink)
	release := t.release
	t.mu.Unlock()

	if release != nil {
		release()
	}
}

// Stopped reports whether Stop has been called.
func (t *AudioTrack) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Stream groups the tracks produced by one acquisition.
type Stream struct {
	id     string
	tracks []Track
}

// NewStream wraps tracks into a stream.
func NewStream(tracks ...Track) *Stream {
	return &Stream{id: uuid.NewString(), tracks: tracks}
}

func (s *Stream) ID() string { return s.id }

// Tracks returns every track in acquisition order.
func (s *Stream) Tracks() []Track { return s.tracks }

func (s *Stream) AudioTracks() []Track { return s.byKind(KindAudio) }
func (s *Stream) VideoTracks() []Track { return s.byKind(KindVideo) }

func (s *Stream) byKind(k TrackKind) []Track {
	var out []Track
	for _, t := range s.tracks {
		if t.Kind() == k {
			out = append(out, t)
		}
	}
	return out
}

// SampleRate returns the rate of the first audio track, or 0.
func (s *Stream) SampleRate() int {
	if audio := s.AudioTracks(); len(audio) > 0 {
		return audio[0].SampleRate()
	}
	return 0
}

// Connect attaches sink to every audio track.
func (s *Stream) Connect(sink Sink) func() {
	var detach []func()
	for _, t := range s.AudioTracks() {
		detach = append(detach, t.Connect(sink))
	}
	return func() {
		for _, d := range detach {
			d()
		}
	}
}

// Stop stops every track.
func (s *Stream) Stop() {
	for _, t := range s.tracks {
		t.Stop()
	}
}
