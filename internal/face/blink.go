package face

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/olivier-w/climoji/internal/events"
)

const (
	FirstBlinkDelay = 2 * time.Second
	BlinkMinGap     = 3 * time.Second
	BlinkMaxGap     = 5 * time.Second
	BlinkDuration   = 150 * time.Millisecond
)

// Blinker toggles a blink flag on a randomized schedule: first blink after
// FirstBlinkDelay, then every [BlinkMinGap, BlinkMaxGap), each lasting
// BlinkDuration.
type Blinker struct {
	clock clock.Clock
	rand  func() float64
	topic *events.Topic[bool]

	mu       sync.Mutex
	running  bool
	gen      uint64
	blinking bool
	next     *clock.Timer
	open     *clock.Timer
}

// BlinkerOption configures a Blinker.
type BlinkerOption func(*Blinker)

// WithClock sets the clock timers run on.
func WithClock(c clock.Clock) BlinkerOption {
	return func(b *Blinker) { b.clock = c }
}

// WithRand sets the source of uniform values in [0, 1) used for gaps.
func WithRand(f func() float64) BlinkerOption {
	return func(b *Blinker) { b.rand = f }
}

func NewBlinker(opts ...BlinkerOption) *Blinker {
	b := &Blinker{
		clock: clock.New(),
		rand:  rand.Float64,
		topic: events.NewTopic[bool](),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Changes publishes true when the eyes close and false when they reopen.
func (b *Blinker) Changes() *events.Topic[bool] { return b.topic }

// Blinking reports the current flag.
func (b *Blinker) Blinking() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.blinking
}

// Start schedules the first blink. Calling Start on a running blinker is a
// no-op.
func (b *Blinker) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return
	}
	b.running = true
	b.gen++
	b.schedule(b.gen, FirstBlinkDelay)
}

// Stop cancels pending timers and reopens the eyes.
func (b *Blinker) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	b.gen++
	if b.next != nil {
		b.next.Stop()
	}
	if b.open != nil {
		b.open.Stop()
	}
	b.next, b.open = nil, nil
	wasBlinking := b.blinking
	b.blinking = false
	b.mu.Unlock()

	if wasBlinking {
		b.topic.Publish(false)
	}
}

// gap returns a duration in [BlinkMinGap, BlinkMaxGap).
func (b *Blinker) gap() time.Duration {
	return BlinkMinGap + time.Duration(b.rand()*float64(BlinkMaxGap-BlinkMinGap))
}

func (b *Blinker) schedule(gen uint64, d time.Duration) {
	b.next = b.clock.AfterFunc(d, func() { b.close(gen) })
}

func (b *Blinker) close(gen uint64) {
	b.mu.Lock()
	if b.gen != gen {
		b.mu.Unlock()
		return
	}
	b.blinking = true
	b.open = b.clock.AfterFunc(BlinkDuration, func() { b.reopen(gen) })
	b.schedule(gen, b.gap())
	b.mu.Unlock()

	b.topic.Publish(true)
}

func (b *Blinker) reopen(gen uint64) {
	b.mu.Lock()
	if b.gen != gen || !b.blinking {
		b.mu.Unlock()
		return
	}
	b.blinking = false
	b.mu.Unlock()

	b.topic.Publish(false)
}
