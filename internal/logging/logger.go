// Package logging provides a structured file logger. The terminal belongs to
// the UI, so nothing is written to stdout.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Entry is one recorded log line, kept for the debug overlay.
type Entry struct {
	Time    time.Time
	Level   zerolog.Level
	Message string
}

// Config holds logger configuration.
type Config struct {
	Dir        string // directory for log files; empty uses the user cache dir
	Level      string // minimum level (default: info)
	MaxHistory int    // entries kept in memory (default: 200)
}

// Logger wraps zerolog with file output and a short history.
type Logger struct {
	zlog    zerolog.Logger
	file    *os.File
	path    string
	mu      sync.RWMutex
	history []Entry
	maxHist int
}

// DefaultDir returns the directory logs go to when none is configured.
func DefaultDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "climoji", "logs")
}

// New opens a date-named log file in cfg.Dir.
func New(cfg Config) (*Logger, error) {
	if cfg.Dir == "" {
		cfg.Dir = DefaultDir()
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = 200
	}
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("parsing log level: %w", err)
		}
		level = l
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	path := filepath.Join(cfg.Dir, fmt.Sprintf("climoji_%s.log", time.Now().Format("2006-01-02")))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := newLogger(file, level, cfg.MaxHistory)
	l.file = file
	l.path = path
	l.zlog.Info().Str("component", "logging").Str("file", path).Stringer("level", level).Msg("logger initialized")
	return l, nil
}

// NewWriter logs to w; used by tests and the support command.
func NewWriter(w io.Writer, level zerolog.Level) *Logger {
	return newLogger(w, level, 200)
}

func newLogger(w io.Writer, level zerolog.Level, maxHist int) *Logger {
	l := &Logger{history: make([]Entry, 0, maxHist), maxHist: maxHist}
	l.zlog = zerolog.New(w).
		Level(level).
		Hook(zerolog.HookFunc(l.record)).
		With().
		Timestamp().
		Str("app", "climoji").
		Logger()
	return l
}

func (l *Logger) record(_ *zerolog.Event, level zerolog.Level, msg string) {
	if level == zerolog.NoLevel || level < l.zlog.GetLevel() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history = append(l.history, Entry{Time: time.Now(), Level: level, Message: msg})
	if len(l.history) > l.maxHist {
		l.history = l.history[len(l.history)-l.maxHist:]
	}
}

// History returns up to limit recent entries, oldest first.
func (l *Logger) History(limit int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if limit <= 0 || limit > len(l.history) {
		limit = len(l.history)
	}
	out := make([]Entry, limit)
	copy(out, l.history[len(l.history)-limit:])
	return out
}

// Component returns a zerolog.Logger with the component field set.
func (l *Logger) Component(name string) zerolog.Logger {
	return l.zlog.With().Str("component", name).Logger()
}

// Zerolog returns the underlying logger.
func (l *Logger) Zerolog() zerolog.Logger { return l.zlog }

// Path returns the log file path, empty for writer-backed loggers.
func (l *Logger) Path() string { return l.path }

// Close closes the log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	l.zlog.Info().Str("component", "logging").Msg("logger shutting down")
	return l.file.Close()
}
