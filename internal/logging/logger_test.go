package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewWritesToDatedFile(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Config{Dir: dir, Level: "debug"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	component := l.Component("capture")
	component.Debug().Msg("device opened")
	if err := l.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	data, err := os.ReadFile(l.Path())
	if err != nil {
		t.Fatalf("expected log file, got %v", err)
	}
	if !strings.Contains(string(data), `"component":"capture"`) || !strings.Contains(string(data), "device opened") {
		t.Fatalf("expected component entry in log, got %s", data)
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(Config{Dir: t.TempDir(), Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestHistoryKeepsRecentEntries(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.InfoLevel)
	l.maxHist = 2

	log := l.Component("ui")
	log.Debug().Msg("hidden")
	log.Info().Msg("one")
	log.Warn().Msg("two")
	log.Error().Msg("three")

	h := l.History(10)
	if len(h) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(h))
	}
	if h[0].Message != "two" || h[1].Message != "three" || h[1].Level != zerolog.ErrorLevel {
		t.Fatalf("unexpected history %+v", h)
	}
	if strings.Contains(buf.String(), "hidden") {
		t.Fatal("expected debug entry filtered at info level")
	}
}
