// Package bridge exposes the avatar engine over HTTP: capability probing, a
// websocket stream of lip-sync frames, and start/stop/emotion commands.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/olivier-w/climoji/internal/capture"
	"github.com/olivier-w/climoji/internal/events"
	"github.com/olivier-w/climoji/internal/face"
	"github.com/olivier-w/climoji/internal/lipsync"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// ErrClientSendBufferFull is logged when a slow client misses a message.
var ErrClientSendBufferFull = errors.New("client send buffer full")

// Engine is the part of lipsync.Engine the bridge drives.
type Engine interface {
	Start(ctx context.Context, src capture.Source) error
	Stop()
	Frames() *events.Topic[lipsync.Frame]
	ActiveChanges() *events.Topic[bool]
}

// Message is the envelope for both directions.
type Message struct {
	Type    string           `json:"type"`
	Client  string           `json:"client,omitempty"`
	Source  string           `json:"source,omitempty"`
	Emotion string           `json:"emotion,omitempty"`
	Active  *bool            `json:"active,omitempty"`
	Frame   *lipsync.Frame   `json:"frame,omitempty"`
	Support *capture.Support `json:"support,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// Server fans engine output out to websocket clients.
type Server struct {
	engine   Engine
	caps     capture.CapabilityProvider
	emotions *events.Topic[face.Emotion]
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*client
	unsub   []func()
	closed  bool
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// New subscribes to the engine and emotion topics.
func New(engine Engine, caps capture.CapabilityProvider, emotions *events.Topic[face.Emotion], opts ...Option) *Server {
	s := &Server{
		engine:   engine,
		caps:     caps,
		emotions: emotions,
		log:      zerolog.Nop(),
		clients:  make(map[string]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Local tool; page origins are not restricted.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "bridge").Logger()

	s.unsub = append(s.unsub,
		engine.Frames().Subscribe(func(f lipsync.Frame) {
			s.broadcast(Message{Type: "frame", Frame: &f})
		}),
		engine.ActiveChanges().Subscribe(func(active bool) {
			s.broadcast(Message{Type: "active", Active: &active})
		}),
		emotions.Subscribe(func(e face.Emotion) {
			s.broadcast(Message{Type: "emotion", Emotion: e.String()})
		}),
	)
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(s.requestLog)

	r.Get("/support", s.handleSupport)
	r.Get("/ws", s.handleWS)
	return r
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", addr).Msg("bridge listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Close()
		return srv.Shutdown(shutdownCtx)
	}
}

// Close drops every client and unsubscribes from the topics.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsub := s.unsub
	clients := s.clients
	s.clients = make(map[string]*client)
	s.mu.Unlock()

	for _, u := range unsub {
		u()
	}
	for _, c := range clients {
		c.close()
	}
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) handleSupport(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.caps.SystemAudioSupport()); err != nil {
		s.log.Error().Err(err).Msg("encoding support")
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("clientId")
	if id == "" {
		id = "client-" + uuid.New().String()[:8]
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &client{id: id, conn: conn, send: make(chan []byte, sendBuffer), ctx: ctx, cancel: cancel}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		cancel()
		return
	}
	if old, ok := s.clients[id]; ok {
		old.close()
	}
	s.clients[id] = c
	s.mu.Unlock()

	support := s.caps.SystemAudioSupport()
	active, _ := s.engine.ActiveChanges().Last()
	c.enqueue(encode(Message{Type: "hello", Client: id, Support: &support, Active: &active}))
	s.log.Info().Str("client", id).Msg("client connected")

	go c.writePump()
	c.readPump(s.handleMessage)

	s.mu.Lock()
	if s.clients[id] == c {
		delete(s.clients, id)
	}
	s.mu.Unlock()
	c.close()
	s.log.Info().Str("client", id).Msg("client disconnected")
}

func (s *Server) handleMessage(c *client, msg Message) {
	switch msg.Type {
	case "start":
		src, err := capture.ParseSource(msg.Source)
		if err != nil {
			c.enqueue(encode(Message{Type: "error", Error: err.Error()}))
			return
		}
		go func() {
			err := s.engine.Start(c.ctx, src)
			var cerr *capture.Error
			switch {
			case err == nil:
			case errors.As(err, &cerr) && cerr.Silent():
			case errors.As(err, &cerr):
				c.enqueue(encode(Message{Type: "error", Error: cerr.Message()}))
			default:
				c.enqueue(encode(Message{Type: "error", Error: err.Error()}))
			}
		}()
	case "stop":
		s.engine.Stop()
	case "emotion":
		e, err := face.ParseEmotion(msg.Emotion)
		if err != nil {
			c.enqueue(encode(Message{Type: "error", Error: err.Error()}))
			return
		}
		s.emotions.Publish(e)
	default:
		c.enqueue(encode(Message{Type: "error", Error: "unknown command " + msg.Type}))
	}
}

func (s *Server) broadcast(msg Message) {
	data := encode(msg)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		if err := c.enqueue(data); err != nil {
			s.log.Debug().Str("client", c.id).Err(err).Msg("dropped message")
		}
	}
}

func encode(msg Message) []byte {
	data, _ := json.Marshal(msg)
	return data
}
