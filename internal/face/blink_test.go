package face

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func expectBlink(t *testing.T, ch <-chan bool, want bool) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("expected blink=%v, got %v", want, got)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected blink=%v event", want)
	}
}

func expectNoBlink(t *testing.T, ch <-chan bool) {
	t.Helper()
	select {
	case got := <-ch:
		t.Fatalf("expected no blink event, got %v", got)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestBlinkerSchedule(t *testing.T) {
	mock := clock.NewMock()
	b := NewBlinker(WithClock(mock), WithRand(func() float64 { return 0 }))
	ch, cancel := b.Changes().Chan(8)
	defer cancel()

	b.Start()
	mock.Add(FirstBlinkDelay - time.Millisecond)
	expectNoBlink(t, ch)

	mock.Add(time.Millisecond)
	expectBlink(t, ch, true)
	if !b.Blinking() {
		t.Fatal("expected blinking flag set")
	}

	mock.Add(BlinkDuration)
	expectBlink(t, ch, false)

	mock.Add(BlinkMinGap - BlinkDuration)
	expectBlink(t, ch, true)
}

func TestBlinkerStopCancelsTimers(t *testing.T) {
	mock := clock.NewMock()
	b := NewBlinker(WithClock(mock), WithRand(func() float64 { return 0.5 }))
	ch, cancel := b.Changes().Chan(8)
	defer cancel()

	b.Start()
	b.Start()
	mock.Add(FirstBlinkDelay)
	expectBlink(t, ch, true)

	b.Stop()
	expectBlink(t, ch, false)
	mock.Add(10 * time.Second)
	expectNoBlink(t, ch)
	if b.Blinking() {
		t.Fatal("expected eyes open after stop")
	}
	b.Stop()
}

func TestBlinkGapRange(t *testing.T) {
	for _, r := range []float64{0, 0.5, 0.999} {
		b := NewBlinker(WithRand(func() float64 { return r }))
		if g := b.gap(); g < BlinkMinGap || g >= BlinkMaxGap {
			t.Fatalf("expected gap in [3s, 5s), got %v", g)
		}
	}
}
