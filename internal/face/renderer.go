package face

import (
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"
)

// opaqueAt is the coverage above which a pixel is drawn rather than left to
// the terminal background.
const opaqueAt = 0.5

// Renderer rasterizes resolved layers into terminal cells. It supports two
// modes:
//   - Color (half-block): "▀"/"▄" with fg/bg colours, two pixel rows per cell.
//   - ASCII (no color): one brightness character per cell.
type Renderer struct {
	mode ColorMode
	sb   strings.Builder

	// reused between frames of the same size
	canvas, layer *gg.Context
}

// NewRenderer uses the current terminal's colour capabilities.
func NewRenderer() *Renderer {
	return &Renderer{mode: DetectColorMode()}
}

// NewRendererMode forces a colour mode.
func NewRendererMode(mode ColorMode) *Renderer {
	return &Renderer{mode: mode}
}

// Mode returns the colour mode in use.
func (r *Renderer) Mode() ColorMode { return r.mode }

// Options tune a single render.
type Options struct {
	// Glow in [0, 1] draws a halo ring around the head.
	Glow float64
}

// Render draws l into a cols x rows block. Cells outside the face keep the
// terminal background. Rows are joined by newlines; every row is exactly cols
// cells wide.
func (r *Renderer) Render(l Layers, cols, rows int, opts Options) string {
	if cols <= 0 || rows <= 0 {
		return ""
	}

	r.sb.Reset()
	r.sb.Grow(cols * rows * 24)

	if r.mode == ColorOff {
		r.renderASCII(r.rasterize(l, cols, rows, opts.Glow), cols, rows)
	} else {
		r.renderHalfBlock(r.rasterize(l, cols, rows*2, opts.Glow), cols, rows)
	}
	return r.sb.String()
}

// rasterize paints the face onto a w x h image, one pixel per half cell.
// Fading mouths are painted on their own layer and composited at their
// opacity, so overlapping parts of one shape do not show through each other.
func (r *Renderer) rasterize(l Layers, w, h int, glow float64) *image.RGBA {
	r.canvas = reset(r.canvas, w, h)
	p := newPen(r.canvas, w, h)
	drawFace(p, l, glow)

	dst := r.canvas.Image().(*image.RGBA)
	for _, m := range l.Mouths {
		switch {
		case m.Opacity <= 0:
		case m.Opacity >= 1:
			drawMouth(p, m.Shape)
		default:
			r.layer = reset(r.layer, w, h)
			drawMouth(newPen(r.layer, w, h), m.Shape)
			mask := image.NewUniform(color.Alpha{A: uint8(m.Opacity * 255)})
			draw.DrawMask(dst, dst.Bounds(), r.layer.Image(), image.Point{}, mask, image.Point{}, draw.Over)
		}
	}
	return dst
}

// reset returns a transparent context of w x h scaled to the view box,
// reusing dc when the size matches.
func reset(dc *gg.Context, w, h int) *gg.Context {
	if dc == nil || dc.Width() != w || dc.Height() != h {
		dc = gg.NewContext(w, h)
	}
	dc.Identity()
	dc.SetRGBA(0, 0, 0, 0)
	dc.Clear()
	dc.Scale(float64(w)/ViewBox, float64(h)/ViewBox)
	return dc
}

func newPen(dc *gg.Context, w, h int) pen {
	return pen{dc: dc, scale: (float64(w) + float64(h)) / (2 * ViewBox)}
}

// pixel returns the straight colour and coverage of img at (x, y).
func pixel(img *image.RGBA, x, y int) (colorful.Color, float64) {
	c := img.RGBAAt(x, y)
	if c.A == 0 {
		return colorful.Color{}, 0
	}
	col, _ := colorful.MakeColor(c)
	return col, float64(c.A) / 255
}

func (r *Renderer) renderHalfBlock(img *image.RGBA, cols, rows int) {
	var lastFg, lastBg string
	for row := range rows {
		for col := range cols {
			top, topA := pixel(img, col, row*2)
			bot, botA := pixel(img, col, row*2+1)
			topOn, botOn := topA >= opaqueAt, botA >= opaqueAt

			var glyph, fg, bg string
			switch {
			case topOn && botOn:
				glyph, fg, bg = "▀", colorSeq(r.mode, top, false), colorSeq(r.mode, bot, true)
			case topOn:
				glyph, fg, bg = "▀", colorSeq(r.mode, top, false), ansiDefaultBg
			case botOn:
				glyph, fg, bg = "▄", colorSeq(r.mode, bot, false), ansiDefaultBg
			default:
				glyph, bg = " ", ansiDefaultBg
				fg = lastFg
			}
			if fg != lastFg {
				r.sb.WriteString(fg)
				lastFg = fg
			}
			if bg != lastBg {
				r.sb.WriteString(bg)
				lastBg = bg
			}
			r.sb.WriteString(glyph)
		}
		r.sb.WriteString(ansiReset)
		lastFg, lastBg = "", ""
		if row < rows-1 {
			r.sb.WriteByte('\n')
		}
	}
}

func (r *Renderer) renderASCII(img *image.RGBA, cols, rows int) {
	for row := range rows {
		for col := range cols {
			c, a := pixel(img, col, row)
			if a < opaqueAt {
				r.sb.WriteByte(' ')
				continue
			}
			// Dark strokes read as dense glyphs on a light face.
			r.sb.WriteByte(brightnessChar(1 - luminance(c)))
		}
		if row < rows-1 {
			r.sb.WriteByte('\n')
		}
	}
}

// CellSize returns the cell dimensions of a face diameter cells wide; terminal
// cells are about twice as tall as they are wide.
func CellSize(diameter int) (cols, rows int) {
	if diameter <= 0 {
		return 0, 0
	}
	return diameter, max(1, (diameter+1)/2)
}
