package ui

import (
	"math"

	"github.com/charmbracelet/harmonica"

	"github.com/olivier-w/climoji/internal/face"
	"github.com/olivier-w/climoji/internal/position"
)

const (
	headerRows = 3 // title, tagline, divider
	footerRows = 2 // scroll indicator, help or status

	pageSections = 2
)

// pageScroll animates the page offset toward a target row with a critically
// damped spring. It implements scroll.Scroller so snaps glide too.
type pageScroll struct {
	spring harmonica.Spring
	y, vel float64
	target float64
	limit  float64
}

func newPageScroll(fps int) *pageScroll {
	return &pageScroll{spring: harmonica.NewSpring(harmonica.FPS(fps), 9, 1)}
}

func (p *pageScroll) setLimit(limit float64) {
	p.limit = max(0, limit)
	p.target = min(p.target, p.limit)
}

// ScrollTo sets the row the page glides to.
func (p *pageScroll) ScrollTo(y float64) {
	p.target = max(0, min(y, p.limit))
}

func (p *pageScroll) by(d float64) { p.ScrollTo(p.target + d) }

// step advances one frame and reports whether the offset moved.
func (p *pageScroll) step() bool {
	prev := p.y
	p.y, p.vel = p.spring.Update(p.y, p.vel, p.target)
	if math.Abs(p.y-p.target) < 0.01 && math.Abs(p.vel) < 0.01 {
		p.y, p.vel = p.target, 0
	}
	return p.y != prev
}

// row is the first page row shown in the viewport.
func (p *pageScroll) row() int { return int(math.Round(p.y)) }

// layout is the page geometry for one terminal size. Page rows are counted
// from the top of the scrolling area; viewport rows from the top of the screen.
type layout struct {
	width, height int
	avatar        int // avatar diameter in cells at the target anchor
	header        int // avatar diameter in the header
}

// viewportH is the height of the scrolling area, also one section's height.
func (l layout) viewportH() int { return max(1, l.height-headerRows-footerRows) }

func (l layout) pageH() int { return pageSections * l.viewportH() }

func (l layout) maxScroll() float64 { return float64(l.pageH() - l.viewportH()) }

// avatarTop is the page row of the target anchor's top edge.
func (l layout) avatarTop() int { return l.viewportH() + 1 }

func (l layout) headerAnchor() *position.Rect {
	if l.width <= 0 {
		return nil
	}
	w, h := face.CellSize(l.header)
	return &position.Rect{X: float64(l.width - w - 2), Y: 0, W: float64(w), H: float64(h)}
}

func (l layout) targetAnchor(scrollRow int) *position.Rect {
	if l.width <= 0 {
		return nil
	}
	w, h := face.CellSize(l.avatar)
	return &position.Rect{
		X: float64((l.width - w) / 2),
		Y: float64(headerRows + l.avatarTop() - scrollRow),
		W: float64(w),
		H: float64(h),
	}
}
