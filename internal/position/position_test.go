package position

import (
	"math"
	"testing"
)

func TestHiddenUntilAnchorKnown(t *testing.T) {
	c := New(DefaultConfig())
	c.Step()
	if c.Transform().Visible {
		t.Fatal("expected avatar hidden without anchors")
	}

	c.SetActiveSection(1)
	c.RegisterAnchors(&Rect{X: 0, Y: 0, W: 4, H: 2}, nil)
	c.Step()
	if c.Transform().Visible {
		t.Fatal("expected avatar hidden while the active anchor is absent")
	}
}

func TestAppearsWithoutJump(t *testing.T) {
	c := New(DefaultConfig())
	c.SetActiveSection(1)
	target := Rect{X: 30, Y: 10, W: 24, H: 12}
	c.RegisterAnchors(nil, &target)

	cx, cy := target.Center()
	prev := Transform{X: cx, Y: cy}
	for i := range 180 {
		c.Step()
		tr := c.Transform()
		if !tr.Visible {
			t.Fatalf("step %d: expected visible avatar", i)
		}
		if d := math.Abs(tr.Scale - prev.Scale); d > 0.25 {
			t.Fatalf("step %d: expected bounded scale change, got %v", i, d)
		}
		if tr.X != cx || tr.Y != cy {
			t.Fatalf("step %d: expected avatar to grow in place, got (%v, %v)", i, tr.X, tr.Y)
		}
		prev = tr
	}
	if math.Abs(prev.Scale-1) > 0.01 || !c.Settled() {
		t.Fatalf("expected avatar settled at full size, got %v", prev.Scale)
	}
}

func TestSectionChangeMovesSmoothly(t *testing.T) {
	c := New(DefaultConfig())
	header := Rect{X: 1, Y: 0, W: 4, H: 2}
	target := Rect{X: 40, Y: 30, W: 24, H: 12}
	c.RegisterAnchors(&header, &target)
	for range 120 {
		c.Step()
	}
	hx, hy := header.Center()
	if tr := c.Transform(); math.Abs(tr.X-hx) > 0.01 || math.Abs(tr.Y-hy) > 0.01 {
		t.Fatalf("expected avatar at the header anchor, got %+v", tr)
	}
	if got, want := c.Transform().Scale, DefaultHeaderSize/float64(DefaultAvatarSize); math.Abs(got-want) > 0.01 {
		t.Fatalf("expected header scale %v, got %v", want, got)
	}

	c.SetActiveSection(1)
	tx, ty := target.Center()
	total := math.Hypot(tx-hx, ty-hy)
	prev := c.Transform()
	for i := range 240 {
		c.Step()
		tr := c.Transform()
		if d := math.Hypot(tr.X-prev.X, tr.Y-prev.Y); d > total/4 {
			t.Fatalf("step %d: expected bounded move, got %v of %v", i, d, total)
		}
		prev = tr
	}
	if math.Abs(prev.X-tx) > 0.05 || math.Abs(prev.Y-ty) > 0.05 {
		t.Fatalf("expected avatar at the target anchor, got %+v", prev)
	}
}

func TestRegisterSameAnchorsIsIdempotent(t *testing.T) {
	c := New(DefaultConfig())
	r := Rect{X: 2, Y: 2, W: 4, H: 4}
	c.RegisterAnchors(&r, nil)
	for range 120 {
		c.Step()
	}
	before := c.Transform()
	c.RegisterAnchors(&r, nil)
	if c.Target() != (Transform{X: 4, Y: 4, Scale: DefaultHeaderSize / float64(DefaultAvatarSize), Visible: true}) {
		t.Fatalf("unexpected target %+v", c.Target())
	}
	if c.Transform() != before {
		t.Fatal("expected re-registration to leave the transform untouched")
	}
}

func TestDefaultSpringIsSlightlyUnderdamped(t *testing.T) {
	cfg := DefaultConfig()
	if r := cfg.DampingRatio(); r < 0.89 || r > 0.9 {
		t.Fatalf("expected damping ratio near 0.896, got %v", r)
	}

	c := New(cfg)
	header := Rect{X: 70, Y: 0, W: 4, H: 2}
	target := Rect{X: 10, Y: 10, W: 24, H: 12}
	c.RegisterAnchors(&header, &target)
	for range 300 {
		c.Step()
	}
	c.SetActiveSection(1)

	tx, _ := target.Center()
	lowest := math.Inf(1)
	for range 300 {
		c.Step()
		lowest = min(lowest, c.Transform().X)
	}
	if lowest >= tx {
		t.Fatalf("expected a small overshoot past %v, lowest x was %v", tx, lowest)
	}
	if tx-lowest > 0.5 {
		t.Fatalf("expected overshoot under half a cell, got %v", tx-lowest)
	}
	if !c.Settled() {
		t.Fatal("expected avatar settled on the target")
	}
}
