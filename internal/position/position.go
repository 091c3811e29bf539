// Package position keeps one floating avatar attached to whichever of two
// anchor rectangles belongs to the active page section.
package position

import (
	"math"

	"github.com/charmbracelet/harmonica"
)

// Rect is an anchor rectangle in viewport cells.
type Rect struct {
	X, Y, W, H float64
}

// Center returns the middle of r.
func (r Rect) Center() (x, y float64) { return r.X + r.W/2, r.Y + r.H/2 }

// Anchor names one of the two registered rectangles.
type Anchor uint8

const (
	AnchorHeader Anchor = iota
	AnchorTarget
)

func (a Anchor) String() string {
	if a == AnchorTarget {
		return "target"
	}
	return "header"
}

// Transform is where and how large to draw the avatar. X and Y are the centre.
type Transform struct {
	X, Y    float64
	Scale   float64
	Visible bool
}

const (
	DefaultHeaderSize = 36
	DefaultAvatarSize = 200
	DefaultStiffness  = 70
	DefaultDamping    = 15
	DefaultFPS        = 60

	settleEpsilon = 0.01
)

// Config sizes and tunes the controller.
type Config struct {
	HeaderSize float64 // avatar diameter at the header anchor
	AvatarSize float64 // avatar diameter at the target anchor
	Stiffness  float64 // spring stiffness for a unit mass
	Damping    float64 // spring damping coefficient
	FPS        int
}

// DefaultConfig matches a 36px header badge and a 200px hero avatar.
func DefaultConfig() Config {
	return Config{
		HeaderSize: DefaultHeaderSize,
		AvatarSize: DefaultAvatarSize,
		Stiffness:  DefaultStiffness,
		Damping:    DefaultDamping,
		FPS:        DefaultFPS,
	}
}

// Controller animates the avatar toward the active anchor. It is not safe for
// concurrent use; the UI goroutine owns it.
type Controller struct {
	cfg    Config
	spring harmonica.Spring

	anchors [2]*Rect
	active  Anchor

	target  Transform
	x, y, s float64
	vx, vy  float64
	vs      float64
	placed  bool
	visible bool
}

// New creates a controller with no anchors; nothing is visible until the
// active anchor is registered.
func New(cfg Config) *Controller {
	if cfg.AvatarSize <= 0 {
		cfg.AvatarSize = DefaultAvatarSize
	}
	if cfg.HeaderSize <= 0 {
		cfg.HeaderSize = DefaultHeaderSize
	}
	if cfg.Stiffness <= 0 {
		cfg.Stiffness = DefaultStiffness
	}
	if cfg.Damping < 0 {
		cfg.Damping = DefaultDamping
	}
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultFPS
	}
	return &Controller{
		cfg:    cfg,
		spring: harmonica.NewSpring(harmonica.FPS(cfg.FPS), cfg.AngularFrequency(), cfg.DampingRatio()),
	}
}

// AngularFrequency is the spring's natural frequency for a unit mass.
func (c Config) AngularFrequency() float64 { return math.Sqrt(c.Stiffness) }

// DampingRatio maps stiffness and damping onto harmonica's ratio. The
// defaults give about 0.9, a slightly underdamped spring that overshoots its
// anchor by a fraction of a cell before settling.
func (c Config) DampingRatio() float64 { return c.Damping / (2 * c.AngularFrequency()) }

// Config returns the effective configuration.
func (c *Controller) Config() Config { return c.cfg }

// RegisterAnchors replaces both anchors. A nil rect marks the anchor absent.
// Registering the same rects again changes nothing.
func (c *Controller) RegisterAnchors(header, target *Rect) {
	c.anchors[AnchorHeader] = clone(header)
	c.anchors[AnchorTarget] = clone(target)
	c.retarget()
}

func clone(r *Rect) *Rect {
	if r == nil {
		return nil
	}
	v := *r
	return &v
}

// SetActiveSection selects the header anchor for section 0 and the target
// anchor for any later section.
func (c *Controller) SetActiveSection(i int) {
	a := AnchorTarget
	if i <= 0 {
		a = AnchorHeader
	}
	if a == c.active {
		return
	}
	c.active = a
	c.retarget()
}

// Active returns the anchor the avatar is moving toward.
func (c *Controller) Active() Anchor { return c.active }

func (c *Controller) retarget() {
	r := c.anchors[c.active]
	if r == nil {
		c.target = Transform{}
		return
	}
	x, y := r.Center()
	scale := 1.0
	if c.active == AnchorHeader {
		scale = c.cfg.HeaderSize / c.cfg.AvatarSize
	}
	c.target = Transform{X: x, Y: y, Scale: scale, Visible: true}
}

// Target returns the resting transform for the current anchors.
func (c *Controller) Target() Transform { return c.target }

// Step advances the springs by one frame.
func (c *Controller) Step() {
	if !c.target.Visible {
		c.visible = false
		return
	}
	if !c.placed {
		c.x, c.y, c.s = c.target.X, c.target.Y, 0
		c.vx, c.vy, c.vs = 0, 0, 0
		c.placed = true
	}
	c.visible = true
	c.x, c.vx = c.spring.Update(c.x, c.vx, c.target.X)
	c.y, c.vy = c.spring.Update(c.y, c.vy, c.target.Y)
	c.s, c.vs = c.spring.Update(c.s, c.vs, c.target.Scale)
}

// Transform returns the current animated transform.
func (c *Controller) Transform() Transform {
	if !c.visible {
		return Transform{}
	}
	return Transform{X: c.x, Y: c.y, Scale: max(0, c.s), Visible: true}
}

// Settled reports whether the avatar rests on its target.
func (c *Controller) Settled() bool {
	if !c.target.Visible {
		return true
	}
	return c.placed &&
		math.Abs(c.x-c.target.X) < settleEpsilon && math.Abs(c.vx) < settleEpsilon &&
		math.Abs(c.y-c.target.Y) < settleEpsilon && math.Abs(c.vy) < settleEpsilon &&
		math.Abs(c.s-c.target.Scale) < settleEpsilon && math.Abs(c.vs) < settleEpsilon
}
