package face

import (
	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"
)

// ViewBox is the side of the square face coordinate space.
const ViewBox = 72.0

const strokeWidth = 2.0

var (
	colorSkin   = mustParseHex("#FCEA2B")
	colorStroke = mustParseHex("#000000")
	colorBlush  = mustParseHex("#EA5A47")
	colorTear   = mustParseHex("#92D3F5")
	colorTeeth  = mustParseHex("#FFFFFF")
	colorTongue = mustParseHex("#FF9999")
	colorGlow   = mustParseHex("#7DD3FC")
)

// point is a coordinate in the view box.
type point struct{ x, y float64 }

var (
	head       = struct{ cx, cy, r float64 }{36, 36, 32}
	leftEye    = point{25, 32}
	rightEye   = point{47, 32}
	mouthPos   = point{36, 52}
	leftBrow   = point{19, 22}
	rightBrow  = point{41, 22}
	leftCheek  = point{16, 42}
	rightCheek = point{56, 42}
)

// pen draws on a context scaled to the view box. gg does not scale line
// widths with the transform, so widths go through scale.
type pen struct {
	dc    *gg.Context
	scale float64
}

func (p pen) fill(c colorful.Color, alpha float64) {
	p.dc.SetRGBA(c.R, c.G, c.B, alpha)
	p.dc.Fill()
}

func (p pen) stroke(c colorful.Color, alpha, width float64) {
	p.dc.SetRGBA(c.R, c.G, c.B, alpha)
	p.dc.SetLineWidth(width * p.scale)
	p.dc.Stroke()
}

func (p pen) ellipse(cx, cy, rx, ry float64, c colorful.Color) {
	p.dc.DrawEllipse(cx, cy, rx, ry)
	p.fill(c, 1)
}

func (p pen) outline(cx, cy, rx, ry, width float64) {
	p.dc.DrawEllipse(cx, cy, rx, ry)
	p.stroke(colorStroke, 1, width)
}

func (p pen) line(x0, y0, x1, y1, width float64) {
	p.dc.DrawLine(x0, y0, x1, y1)
	p.stroke(colorStroke, 1, width)
}

// curve adds a quadratic from a through control c to b.
func (p pen) curve(a, c, b point) {
	p.dc.MoveTo(a.x, a.y)
	p.dc.QuadraticTo(c.x, c.y, b.x, b.y)
}

// drop adds a closed teardrop of two quadratics between top and bottom.
func (p pen) drop(top, bottom point, bulge float64) {
	p.dc.MoveTo(top.x, top.y)
	p.dc.QuadraticTo(top.x+bulge, (top.y+bottom.y)/2, bottom.x, bottom.y)
	p.dc.QuadraticTo(top.x-bulge, (top.y+bottom.y)/2, top.x, top.y)
	p.dc.ClosePath()
}

// drawFace paints everything below the mouth, bottom to top. glow in [0, 1]
// draws a ring around the head.
func drawFace(p pen, l Layers, glow float64) {
	if glow > 0 {
		p.dc.DrawCircle(head.cx, head.cy, head.r+2.5)
		p.stroke(colorGlow, min(1, glow), 2.5)
	}
	p.ellipse(head.cx, head.cy, head.r, head.r, colorSkin)
	p.outline(head.cx, head.cy, head.r, head.r, strokeWidth)
	drawAccessory(p, l.Accessory)
	drawBrows(p, l.Brows)
	for _, c := range []point{leftEye, rightEye} {
		drawEye(p, l.Eyes, c, c == leftEye)
	}
}

func drawAccessory(p pen, a Accessory) {
	switch a {
	case AccessoryBlush:
		for _, c := range []point{leftCheek, rightCheek} {
			p.dc.DrawEllipse(c.x, c.y, 6, 4)
			p.fill(colorBlush, 0.4)
		}
	case AccessoryTears:
		y := leftEye.y
		p.drop(point{leftEye.x - 2, y + 6}, point{leftEye.x - 2, y + 16}, -2)
		p.fill(colorTear, 0.8)
		p.drop(point{rightEye.x + 2, y + 6}, point{rightEye.x + 2, y + 16}, 2)
		p.fill(colorTear, 0.8)
	case AccessorySweatDrop:
		p.drop(point{56, 20}, point{56, 32}, 4)
		p.fill(colorTear, 0.7)
	case AccessoryThinkingHand:
		// A fist resting under the chin, lower left.
		p.ellipse(20, 60, 8, 6, colorSkin)
		p.outline(20, 60, 8, 6, 1.2)
		p.line(14, 57, 24, 57, 1)
		p.line(14, 60, 24, 60, 1)
		p.ellipse(27, 52, 2.5, 5, colorSkin)
		p.outline(27, 52, 2.5, 5, 1.2)
	}
}

// brow draws one eyebrow: from (x+dx0, y+dy0) via (x+6, y+cy) to (x+12+dx1, y+dy1).
func brow(p pen, o point, dx0, dy0, cy, dx1, dy1 float64) {
	p.curve(point{o.x + dx0, o.y + dy0}, point{o.x + 6, o.y + cy}, point{o.x + 12 + dx1, o.y + dy1})
	p.stroke(colorStroke, 1, strokeWidth)
}

func drawBrows(p pen, b BrowShape) {
	switch b {
	case BrowsHappy:
		brow(p, leftBrow, 0, 0, -3, 0, 0)
		brow(p, rightBrow, 0, 0, -3, 0, 0)
	case BrowsSad:
		brow(p, leftBrow, 0, 3, 1, 0, -2)
		brow(p, rightBrow, 0, -2, 1, 0, 3)
	case BrowsExcited:
		brow(p, leftBrow, 0, -1, -5, 0, -1)
		brow(p, rightBrow, 0, -1, -5, 0, -1)
	case BrowsSurprised:
		brow(p, leftBrow, -1, -3, -8, 1, -3)
		brow(p, rightBrow, -1, -3, -8, 1, -3)
	case BrowsThinking:
		brow(p, leftBrow, 0, 1, 2, 0, 1)
		brow(p, rightBrow, 0, 1, -5, 0, -1)
	default:
		brow(p, leftBrow, 0, 2, 0, 0, 2)
		brow(p, rightBrow, 0, 2, 0, 0, 2)
	}
}

func drawEye(p pen, e EyeShape, c point, left bool) {
	switch e {
	case EyesClosed:
		p.line(c.x-5, c.y, c.x+5, c.y, strokeWidth)
	case EyesHappy:
		p.curve(point{c.x - 5, c.y + 2}, point{c.x, c.y - 4}, point{c.x + 5, c.y + 2})
		p.stroke(colorStroke, 1, strokeWidth)
	case EyesSad:
		p.ellipse(c.x, c.y+1, 4, 4, colorStroke)
		if left {
			p.curve(point{c.x - 5, c.y - 3}, point{c.x, c.y - 1}, point{c.x + 5, c.y - 5})
		} else {
			p.curve(point{c.x - 5, c.y - 5}, point{c.x, c.y - 1}, point{c.x + 5, c.y - 3})
		}
		p.stroke(colorSkin, 1, 3)
	case EyesExcited:
		p.ellipse(c.x, c.y, 5, 6, colorStroke)
		p.ellipse(c.x+1.5, c.y-2, 1.5, 1.5, colorTeeth)
	case EyesSurprised:
		p.ellipse(c.x, c.y-2, 6, 7, colorTeeth)
		p.outline(c.x, c.y-2, 6, 7, strokeWidth)
		p.ellipse(c.x, c.y-1, 3, 3, colorStroke)
	case EyesThinking:
		p.ellipse(c.x, c.y, 5, 5, colorTeeth)
		p.outline(c.x, c.y, 5, 5, 1.5)
		p.ellipse(c.x+1.5, c.y-1.5, 2.5, 2.5, colorStroke)
	default:
		p.ellipse(c.x, c.y, 4, 5, colorStroke)
	}
}

func drawMouth(p pen, m MouthShape) {
	cx, cy := mouthPos.x, mouthPos.y
	smile := func(dx, dy0, dy1, width float64) {
		p.curve(point{cx - dx, cy + dy0}, point{cx, cy + dy1}, point{cx + dx, cy + dy0})
		p.stroke(colorStroke, 1, width)
	}
	switch m {
	case MouthPressed:
		p.line(cx-8, cy, cx+8, cy, 2.5)
	case MouthTeethLip:
		p.dc.DrawRectangle(cx-8, cy-3, 16, 5)
		p.fill(colorTeeth, 1)
		p.dc.DrawRectangle(cx-8, cy-3, 16, 5)
		p.stroke(colorStroke, 1, 1)
		for _, x := range []float64{cx - 4, cx, cx + 4} {
			p.line(x, cy-3, x, cy+2, 0.5)
		}
		smile(8, 3, 6, 1.5)
	case MouthTongueOut:
		p.ellipse(cx, cy, 8, 4, colorStroke)
		p.ellipse(cx, cy+2, 5, 3, colorTongue)
	case MouthOpenSmall:
		p.ellipse(cx, cy, 6, 4, colorStroke)
	case MouthOpenBack:
		p.ellipse(cx, cy, 7, 5, colorStroke)
		p.ellipse(cx, cy+2, 4, 2, colorTongue)
	case MouthPursed:
		p.ellipse(cx, cy, 5, 4, colorStroke)
	case MouthTeethClosed:
		p.dc.DrawRoundedRectangle(cx-10, cy-4, 20, 8, 2)
		p.fill(colorTeeth, 1)
		p.dc.DrawRoundedRectangle(cx-10, cy-4, 20, 8, 2)
		p.stroke(colorStroke, 1, strokeWidth)
		p.line(cx-10, cy, cx+10, cy, 1)
	case MouthClosedSmile:
		smile(10, -1, 4, strokeWidth)
	case MouthOpenRound:
		p.ellipse(cx, cy, 6, 5, colorStroke)
	case MouthOpenWide:
		p.ellipse(cx, cy, 10, 8, colorStroke)
		p.ellipse(cx, cy+4, 6, 3, colorTongue)
	case MouthWideSmile:
		p.curve(point{cx - 12, cy - 2}, point{cx, cy + 8}, point{cx + 12, cy - 2})
		p.dc.ClosePath()
		p.dc.SetRGB(colorStroke.R, colorStroke.G, colorStroke.B)
		p.dc.FillPreserve()
		p.stroke(colorStroke, 1, strokeWidth)
		p.curve(point{cx - 10, cy - 1}, point{cx, cy + 4}, point{cx + 10, cy - 1})
		p.dc.ClosePath()
		p.fill(colorTeeth, 1)
		p.line(cx-9, cy+1, cx+9, cy+1, 0.5)
	case MouthOpenMid:
		p.ellipse(cx, cy, 7, 5, colorStroke)
	case MouthRoundedO:
		p.ellipse(cx, cy, 6, 6, colorStroke)
	case MouthSmallPucker:
		p.ellipse(cx, cy, 4, 5, colorStroke)
	case MouthHappyIdle:
		smile(12, -2, 8, strokeWidth)
	case MouthSadIdle:
		smile(10, 3, -4, strokeWidth)
	case MouthThinkingIdle:
		p.curve(point{cx - 6, cy}, point{cx + 2, cy + 2}, point{cx + 8, cy - 2})
		p.stroke(colorStroke, 1, strokeWidth)
	default:
		smile(10, 0, 2, strokeWidth)
	}
}
