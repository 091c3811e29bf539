// Package scroll tracks progress through full-viewport page sections and
// snaps to the neighbouring section once a threshold is crossed.
package scroll

import (
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/olivier-w/climoji/internal/events"
)

// Direction of the last scroll movement.
type Direction int8

const (
	None Direction = 0
	Down Direction = 1
	Up   Direction = -1
)

func (d Direction) String() string {
	switch d {
	case Down:
		return "down"
	case Up:
		return "up"
	default:
		return "none"
	}
}

const (
	DefaultThreshold   = 0.35
	DefaultSettleDelay = 800 * time.Millisecond
)

// State is the derived scroll state.
type State struct {
	Progress  float64
	Direction Direction
	Section   int
	Snapping  bool
}

// SnapTriggered is published once per snap.
type SnapTriggered struct {
	Direction Direction
	From, To  int
	Offset    float64
}

// SectionChanged is published whenever the current section changes.
type SectionChanged struct {
	Section int
}

// Boundary decides where sections start and how far into one a scroll offset
// is.
type Boundary interface {
	Locate(scrollY, viewportH float64) (section int, progress float64)
	Start(section int, viewportH float64) float64
	Sections() int
}

// ViewportSections lays out Count sections of one viewport height each.
type ViewportSections struct {
	Count int
}

func (b ViewportSections) Sections() int { return max(1, b.Count) }

func (b ViewportSections) Locate(scrollY, viewportH float64) (int, float64) {
	if viewportH <= 0 {
		return 0, 0
	}
	pos := max(0, scrollY) / viewportH
	section := int(math.Floor(pos))
	if last := b.Sections() - 1; section >= last {
		return last, 0
	}
	return section, pos - float64(section)
}

func (b ViewportSections) Start(section int, viewportH float64) float64 {
	return float64(max(0, min(section, b.Sections()-1))) * viewportH
}

// Scroller moves the page. ScrollTo may animate.
type Scroller interface {
	ScrollTo(y float64)
}

// ScrollerFunc adapts a function to Scroller.
type ScrollerFunc func(y float64)

func (f ScrollerFunc) ScrollTo(y float64) { f(y) }

// Config tunes the controller.
type Config struct {
	Threshold   float64
	SettleDelay time.Duration
}

func DefaultConfig() Config {
	return Config{Threshold: DefaultThreshold, SettleDelay: DefaultSettleDelay}
}

// Controller turns raw scroll observations into section state and snaps.
type Controller struct {
	boundary Boundary
	scroller Scroller
	clock    clock.Clock
	log      zerolog.Logger

	snaps    *events.Topic[SnapTriggered]
	sections *events.Topic[SectionChanged]

	mu        sync.Mutex
	cfg       Config
	state     State
	lastY     float64
	observed  bool
	settle    *clock.Timer
	settleGen uint64
}

// Option configures a Controller.
type Option func(*Controller)

func WithClock(c clock.Clock) Option { return func(s *Controller) { s.clock = c } }

func WithBoundary(b Boundary) Option { return func(s *Controller) { s.boundary = b } }

func WithLogger(l zerolog.Logger) Option {
	return func(s *Controller) { s.log = l.With().Str("component", "scroll").Logger() }
}

// New creates a controller that moves the page through scroller.
func New(cfg Config, scroller Scroller, opts ...Option) *Controller {
	c := &Controller{
		boundary: ViewportSections{Count: 2},
		scroller: scroller,
		clock:    clock.New(),
		log:      zerolog.Nop(),
		snaps:    events.NewTopic[SnapTriggered](),
		sections: events.NewTopic[SectionChanged](),
	}
	for _, o := range opts {
		o(c)
	}
	c.SetConfig(cfg)
	return c
}

// SetConfig applies a new threshold and settle delay. Invalid values fall back
// to the defaults.
func (c *Controller) SetConfig(cfg Config) {
	if cfg.Threshold <= 0 || cfg.Threshold >= 1 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
}

func (c *Controller) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

func (c *Controller) Snaps() *events.Topic[SnapTriggered]     { return c.snaps }
func (c *Controller) Sections() *events.Topic[SectionChanged] { return c.sections }

// State returns a snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Observe records a scroll position. It may trigger at most one snap; no
// further snap starts until the settle delay has passed.
func (c *Controller) Observe(scrollY, viewportH float64) {
	c.mu.Lock()
	dir := c.state.Direction
	if c.observed {
		switch {
		case scrollY > c.lastY:
			dir = Down
		case scrollY < c.lastY:
			dir = Up
		}
	}
	c.lastY, c.observed = scrollY, true

	section, progress := c.boundary.Locate(scrollY, viewportH)
	prevSection := c.state.Section
	if c.state.Snapping {
		// The snap target stays current while the page travels to it.
		section = prevSection
	}
	c.state.Direction = dir
	c.state.Section = section
	c.state.Progress = progress

	var (
		changed = section != prevSection
		snap    *SnapTriggered
	)
	if !c.state.Snapping {
		snap = c.decide(section, progress, dir, viewportH)
	}
	if snap != nil {
		c.state.Snapping = true
		c.settleGen++
		gen := c.settleGen
		c.settle = c.clock.AfterFunc(c.cfg.SettleDelay, func() { c.settled(gen) })
		if snap.To != section {
			changed = true
			c.state.Section = snap.To
		}
	}
	current := c.state.Section
	c.mu.Unlock()

	if snap != nil {
		c.log.Debug().Stringer("direction", snap.Direction).Int("from", snap.From).Int("to", snap.To).Msg("snap")
		c.snaps.Publish(*snap)
	}
	if changed {
		c.sections.Publish(SectionChanged{Section: current})
	}
	if snap != nil && c.scroller != nil {
		c.scroller.ScrollTo(snap.Offset)
	}
}

func (c *Controller) decide(section int, progress float64, dir Direction, vh float64) *SnapTriggered {
	t := c.cfg.Threshold
	switch {
	case dir == Down && progress >= t && section+1 < c.boundary.Sections():
		return &SnapTriggered{Direction: Down, From: section, To: section + 1, Offset: c.boundary.Start(section+1, vh)}
	case dir == Up && progress > 0 && progress < 1-t:
		return &SnapTriggered{Direction: Up, From: section, To: section, Offset: c.boundary.Start(section, vh)}
	}
	return nil
}

func (c *Controller) settled(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.settleGen {
		return
	}
	c.state.Snapping = false
	c.settle = nil
}

// Close cancels a pending settle.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.settle != nil {
		c.settle.Stop()
		c.settle = nil
	}
	c.settleGen++
	c.state.Snapping = false
}
