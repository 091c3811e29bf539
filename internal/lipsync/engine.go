// Package lipsync turns a live capture stream into a per-frame viseme and
// amplitude signal.
package lipsync

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/olivier-w/climoji/internal/capture"
	"github.com/olivier-w/climoji/internal/events"
	"github.com/olivier-w/climoji/internal/viseme"
)

// DefaultSensitivity scales the amplitude envelope.
const DefaultSensitivity = 0.5

// Frame is published once per analysis frame.
type Frame struct {
	Viseme viseme.Viseme `json:"viseme"`
	Level  float64       `json:"level"`
	Active bool          `json:"active"`
}

// Idle is the state published when no session is running.
var Idle = Frame{Viseme: viseme.Silence}

// Capturer acquires and releases streams. *capture.Manager implements it.
type Capturer interface {
	Start(ctx context.Context, src capture.Source) (*capture.Stream, error)
	Stop()
	OnEnded(func(*capture.Stream))
}

// Engine owns at most one Session at a time.
type Engine struct {
	capturer      Capturer
	sched         Scheduler
	newClassifier func(sampleRate int) Classifier
	log           zerolog.Logger

	frames *events.Topic[Frame]
	active *events.Topic[bool]

	sensitivity atomic.Uint64

	startMu sync.Mutex
	mu      sync.Mutex
	session *Session
	gen     uint64
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l.With().Str("component", "lipsync").Logger() }
}

func WithScheduler(s Scheduler) Option {
	return func(e *Engine) { e.sched = s }
}

// WithClassifier replaces the default SpectralClassifier.
func WithClassifier(fn func(sampleRate int) Classifier) Option {
	return func(e *Engine) { e.newClassifier = fn }
}

func WithSensitivity(v float64) Option {
	return func(e *Engine) { e.SetSensitivity(v) }
}

// NewEngine wires an engine to a capturer.
func NewEngine(c Capturer, opts ...Option) *Engine {
	e := &Engine{
		capturer: c,
		log:      zerolog.Nop(),
		frames:   events.NewTopic[Frame](),
		active:   events.NewTopic[bool](),
		newClassifier: func(rate int) Classifier {
			return NewSpectralClassifier(rate)
		},
	}
	e.SetSensitivity(DefaultSensitivity)
	for _, o := range opts {
		o(e)
	}
	if e.sched == nil {
		e.sched = NewClockScheduler(nil, DefaultFPS)
	}
	c.OnEnded(e.streamEnded)
	return e
}

// Frames publishes every analysis frame and the idle frame on teardown.
// Handlers run on the frame goroutine and must not call Start or Stop.
func (e *Engine) Frames() *events.Topic[Frame] { return e.frames }

// ActiveChanges publishes true when a session starts and false when it ends.
func (e *Engine) ActiveChanges() *events.Topic[bool] { return e.active }

// SetSensitivity changes the level multiplier; it applies from the next frame.
func (e *Engine) SetSensitivity(v float64) {
	if v < 0 || math.IsNaN(v) {
		v = 0
	}
	e.sensitivity.Store(math.Float64bits(v))
}

func (e *Engine) Sensitivity() float64 {
	return math.Float64frombits(e.sensitivity.Load())
}

// Active reports whether a session is running.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session != nil
}

// Start tears down any running session and starts a new one on src. Errors
// come from the capturer unchanged; a Stop issued while acquiring cancels the
// start with a silent capture error.
func (e *Engine) Start(ctx context.Context, src capture.Source) error {
	e.startMu.Lock()
	defer e.startMu.Unlock()

	e.Stop()
	e.mu.Lock()
	gen := e.gen
	e.mu.Unlock()

	stream, err := e.capturer.Start(ctx, src)
	if err != nil {
		return err
	}

	analyser, err := NewAnalyser(LevelFFTSize)
	if err != nil {
		e.capturer.Stop()
		return err
	}
	s := &Session{
		id:         uuid.NewString(),
		source:     src,
		stream:     stream,
		engine:     e,
		analyser:   analyser,
		classifier: e.newClassifier(stream.SampleRate()),
	}

	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		e.capturer.Stop()
		return &capture.Error{Kind: capture.KindCancelledByUser, Source: src, Err: errors.New("stopped while starting")}
	}
	e.session = s
	s.run()
	e.active.Publish(true)
	e.mu.Unlock()

	e.log.Info().Str("session", s.id).Str("source", src.String()).Msg("session started")
	return nil
}

// Stop ends the running session, if any. After Stop returns no further frames
// from that session are published and the last published frame is Idle.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.gen++
	s := e.session
	e.session = nil
	e.mu.Unlock()

	if s != nil {
		s.close("stopped")
	}
	e.capturer.Stop()
}

func (e *Engine) streamEnded(stream *capture.Stream) {
	e.mu.Lock()
	s := e.session
	if s == nil || s.stream != stream {
		e.mu.Unlock()
		return
	}
	e.session = nil
	e.gen++
	e.mu.Unlock()
	s.close("stream ended")
}

// Session is one capture-to-frames pipeline. Everything it holds is released
// by close, whichever path ends it.
type Session struct {
	id     string
	source capture.Source
	stream *capture.Stream
	engine *Engine

	analyser   *Analyser
	classifier Classifier
	bins       []byte

	mu     sync.Mutex
	detach func()
	handle Handle
	closed bool
}

func (s *Session) ID() string             { return s.id }
func (s *Session) Source() capture.Source { return s.source }

func (s *Session) run() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detach = s.stream.Connect(func(samples []float32) {
		s.classifier.Write(samples)
		s.analyser.Write(samples)
	})
	s.handle = s.engine.sched.RequestFrame(s.frame)
}

func (s *Session) frame(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.handle != h {
		return
	}
	v := s.classifier.Process()
	s.bins = s.analyser.ByteFrequencyData(s.bins)
	level := Level(s.bins, s.engine.Sensitivity())
	s.engine.frames.Publish(Frame{Viseme: v, Level: level, Active: true})
	s.handle = s.engine.sched.RequestFrame(s.frame)
}

func (s *Session) close(reason string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.engine.sched.CancelFrame(s.handle)
	s.handle = 0
	if s.detach != nil {
		s.detach()
	}
	s.stream.Stop()
	s.classifier.Reset()
	s.analyser.Reset()
	s.mu.Unlock()

	s.engine.frames.Publish(Idle)
	s.engine.active.Publish(false)
	s.engine.log.Info().Str("session", s.id).Str("reason", reason).Msg("session closed")
}
