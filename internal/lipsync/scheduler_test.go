package lipsync

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestClockSchedulerFiresOnce(t *testing.T) {
	mock := clock.NewMock()
	s := NewClockScheduler(mock, 50)

	var got []Handle
	h := s.RequestFrame(func(h Handle) { got = append(got, h) })
	if h == 0 {
		t.Fatal("expected a non-zero handle")
	}
	mock.Add(10 * time.Millisecond)
	if len(got) != 0 {
		t.Fatalf("expected no frame before 20ms, got %v", got)
	}
	mock.Add(10 * time.Millisecond)
	mock.Add(40 * time.Millisecond)
	if len(got) != 1 || got[0] != h {
		t.Fatalf("expected one frame for %d, got %v", h, got)
	}
	if s.Pending() != 0 {
		t.Fatalf("expected no pending frames, got %d", s.Pending())
	}
}

func TestClockSchedulerCancel(t *testing.T) {
	mock := clock.NewMock()
	s := NewClockScheduler(mock, 60)

	fired := false
	h := s.RequestFrame(func(Handle) { fired = true })
	s.CancelFrame(h)
	s.CancelFrame(h)
	mock.Add(time.Second)
	if fired {
		t.Fatal("cancelled frame fired")
	}
	if s.Pending() != 0 {
		t.Fatalf("expected no pending frames, got %d", s.Pending())
	}
}
