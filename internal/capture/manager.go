package capture

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Acquirer opens raw streams. UserMedia is the microphone; DisplayMedia is a
// combined system capture that may carry video tracks alongside audio.
type Acquirer interface {
	UserMedia(ctx context.Context) (*Stream, error)
	DisplayMedia(ctx context.Context) (*Stream, error)
}

// Manager owns the lifecycle of the one live capture stream.
type Manager struct {
	acq  Acquirer
	caps CapabilityProvider
	log  zerolog.Logger

	startMu sync.Mutex // serialises Start

	mu      sync.Mutex
	stream  *Stream
	source  Source
	unwatch chan struct{}
	onEnded func(*Stream)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.log = l.With().Str("component", "capture").Logger() }
}

// NewManager creates a manager. A nil caps uses DefaultCapabilities.
func NewManager(acq Acquirer, caps CapabilityProvider, opts ...Option) *Manager {
	if caps == nil {
		caps = DefaultCapabilities()
	}
	m := &Manager{acq: acq, caps: caps, log: zerolog.Nop()}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Capabilities returns the provider consulted before system capture.
func (m *Manager) Capabilities() CapabilityProvider { return m.caps }

// OnEnded registers fn to run when the active stream's audio ends on its own.
// The stream has already been stopped when fn runs.
func (m *Manager) OnEnded(fn func(*Stream)) {
	m.mu.Lock()
	m.onEnded = fn
	m.mu.Unlock()
}

// Start acquires a stream for src, stopping any stream that is already live.
// Every failure is an *Error and leaves the manager with no stream.
func (m *Manager) Start(ctx context.Context, src Source) (*Stream, error) {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	m.Stop()

	stream, err := m.acquire(ctx, src)
	if err != nil {
		ce := wrap(src, err)
		ev := m.log.Warn()
		if ce.Silent() {
			ev = m.log.Debug()
		}
		ev.Err(err).Str("source", src.String()).Str("kind", ce.Kind.String()).Msg("capture failed")
		return nil, ce
	}

	unwatch := make(chan struct{})
	m.mu.Lock()
	m.stream = stream
	m.source = src
	m.unwatch = unwatch
	m.mu.Unlock()

	for _, t := range stream.AudioTracks() {
		go m.watch(stream, t, unwatch)
	}

	m.log.Info().
		Str("source", src.String()).
		Str("stream", stream.ID()).
		Int("sample_rate", stream.SampleRate()).
		Msg("capture started")
	return stream, nil
}

func (m *Manager) acquire(ctx context.Context, src Source) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrCancelledByUser
	}
	if src == Microphone {
		stream, err := m.acq.UserMedia(ctx)
		if err != nil {
			return nil, cancelAware(ctx, err)
		}
		if len(stream.AudioTracks()) == 0 {
			stream.Stop()
			return nil, ErrDeviceNotFound
		}
		return stream, nil
	}

	// Checked before touching the backend so no device prompt is shown.
	if m.caps.SystemAudioSupport().Unsupported {
		return nil, ErrUnsupported
	}

	display, err := m.acq.DisplayMedia(ctx)
	if err != nil {
		return nil, cancelAware(ctx, err)
	}
	audio := display.AudioTracks()
	for _, v := range display.VideoTracks() {
		v.Stop()
	}
	if len(audio) == 0 {
		display.Stop()
		return nil, ErrNoAudioTrack
	}
	return NewStream(audio...), nil
}

func cancelAware(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ErrCancelledByUser
	}
	return classifyBackendError(err)
}

func (m *Manager) watch(s *Stream, t Track, unwatch <-chan struct{}) {
	select {
	case <-unwatch:
		return
	case <-t.Ended():
	}

	m.mu.Lock()
	if m.stream != s {
		m.mu.Unlock()
		return
	}
	fn := m.onEnded
	m.mu.Unlock()

	m.log.Info().Str("stream", s.ID()).Str("track", t.ID()).Msg("track ended externally")
	m.stopStream(s)
	if fn != nil {
		fn(s)
	}
}

// Stop releases the live stream. It is safe to call at any time.
func (m *Manager) Stop() {
	m.mu.Lock()
	s := m.stream
	m.mu.Unlock()
	if s != nil {
		m.stopStream(s)
	}
}

func (m *Manager) stopStream(s *Stream) {
	m.mu.Lock()
	if m.stream != s {
		m.mu.Unlock()
		return
	}
	m.stream = nil
	close(m.unwatch)
	m.unwatch = nil
	m.mu.Unlock()

	s.Stop()
	m.log.Info().Str("stream", s.ID()).Msg("capture stopped")
}

// Active reports whether a stream is live.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stream != nil
}

// Source returns the source of the live stream.
func (m *Manager) Source() (Source, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source, m.stream != nil
}
