package face

import "time"

// DefaultCrossfade is how long a mouth change takes to blend.
const DefaultCrossfade = 60 * time.Millisecond

// Crossfade blends mouth opacities toward the latest target shape. Each
// shape fades linearly at a rate of one full opacity per duration, so a change
// arriving mid-fade continues from the current opacities.
type Crossfade struct {
	duration time.Duration
	opacity  [MouthCount]float64
	target   MouthShape
	last     time.Time
	started  bool
}

func NewCrossfade(d time.Duration) *Crossfade {
	if d < 0 {
		d = 0
	}
	return &Crossfade{duration: d}
}

// Apply advances the fade to now toward l.Mouth and writes the blended
// opacities into l.Mouths.
func (c *Crossfade) Apply(l Layers, now time.Time) Layers {
	if !c.started {
		c.started = true
		c.target = l.Mouth
		c.opacity[l.Mouth] = 1
		c.last = now
	}
	c.advance(now)
	c.target = l.Mouth

	for i := range l.Mouths {
		l.Mouths[i] = MouthLayer{Shape: MouthShape(i), Opacity: c.opacity[i]}
	}
	return l
}

func (c *Crossfade) advance(now time.Time) {
	dt := now.Sub(c.last)
	c.last = now
	if dt < 0 {
		dt = 0
	}
	step := 1.0
	if c.duration > 0 {
		step = float64(dt) / float64(c.duration)
	}
	for i := range c.opacity {
		if MouthShape(i) == c.target {
			c.opacity[i] = min(1, c.opacity[i]+step)
		} else {
			c.opacity[i] = max(0, c.opacity[i]-step)
		}
	}
}

// Settled reports whether only the target shape is visible.
func (c *Crossfade) Settled() bool {
	for i, o := range c.opacity {
		if MouthShape(i) == c.target {
			if o < 1 {
				return false
			}
		} else if o > 0 {
			return false
		}
	}
	return true
}
