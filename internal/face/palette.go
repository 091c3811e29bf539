package face

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/lucasb-eyer/go-colorful"
)

// ASCII brightness ramp from darkest to brightest.
const asciiRamp = " .:-=+*#%@"

// ColorMode describes how colours are written to the terminal.
type ColorMode uint8

const (
	ColorOff     ColorMode = iota // NO_COLOR or dumb terminal
	ColorANSI16                   // basic 16-color
	ColorANSI256                  // 256-color
	ColorTrue                     // 24-bit truecolor
)

var (
	detectOnce sync.Once
	termColor  ColorMode
)

// DetectColorMode checks terminal capabilities once.
func DetectColorMode() ColorMode {
	detectOnce.Do(func() {
		termColor = colorModeFromEnv(os.LookupEnv, runtime.GOOS)
	})
	return termColor
}

func colorModeFromEnv(lookup func(string) (string, bool), goos string) ColorMode {
	if _, ok := lookup("NO_COLOR"); ok {
		return ColorOff
	}
	term, _ := lookup("TERM")
	ct, _ := lookup("COLORTERM")
	term, ct = strings.ToLower(term), strings.ToLower(ct)
	switch {
	case strings.Contains(ct, "truecolor"), strings.Contains(ct, "24bit"):
		return ColorTrue
	case strings.Contains(term, "256color"):
		return ColorANSI256
	case term == "dumb":
		return ColorOff
	case term == "" && goos == "windows":
		return ColorANSI16
	case term == "":
		return ColorOff
	default:
		return ColorANSI16
	}
}

// brightnessChar maps a luminance in [0, 1] to an ASCII character.
func brightnessChar(lum float64) byte {
	idx := int(max(0, min(1, lum)) * float64(len(asciiRamp)-1))
	return asciiRamp[idx]
}

// luminance is perceived brightness (ITU-R BT.601).
func luminance(c colorful.Color) float64 {
	c = c.Clamped()
	return 0.299*c.R + 0.587*c.G + 0.114*c.B
}

func colorSeq(mode ColorMode, c colorful.Color, bg bool) string {
	r, g, b := c.Clamped().RGB255()
	base := 38
	if bg {
		base = 48
	}
	switch mode {
	case ColorTrue:
		return fmt.Sprintf("\x1b[%d;2;%d;%d;%dm", base, r, g, b)
	case ColorANSI256:
		idx := 16 + 36*(int(r)*5/255) + 6*(int(g)*5/255) + int(b)*5/255
		return fmt.Sprintf("\x1b[%d;5;%dm", base, idx)
	case ColorANSI16:
		return ansi16Approx(c, bg)
	default:
		return ""
	}
}

const (
	ansiReset     = "\x1b[0m"
	ansiDefaultBg = "\x1b[49m"
)

// ansi16Approx maps a colour to the nearest ANSI 16 entry by CIE Lab distance.
func ansi16Approx(c colorful.Color, bg bool) string {
	best := 0
	bestDist := 1e9
	for i, p := range ansi16Palette {
		if d := c.DistanceLab(p); d < bestDist {
			bestDist = d
			best = i
		}
	}
	fg, bright := 30, 90
	if bg {
		fg, bright = 40, 100
	}
	if best < 8 {
		return fmt.Sprintf("\x1b[%dm", fg+best)
	}
	return fmt.Sprintf("\x1b[%dm", bright+best-8)
}

var ansi16Palette = [16]colorful.Color{
	mustParseHex("#000000"), // black
	mustParseHex("#CD3131"), // red
	mustParseHex("#0DBC79"), // green
	mustParseHex("#E5E510"), // yellow
	mustParseHex("#2472C8"), // blue
	mustParseHex("#BC3FBC"), // magenta
	mustParseHex("#11A8CD"), // cyan
	mustParseHex("#E5E5E5"), // white
	mustParseHex("#666666"), // bright black
	mustParseHex("#F14C4C"), // bright red
	mustParseHex("#23D18B"), // bright green
	mustParseHex("#F5F543"), // bright yellow
	mustParseHex("#3B8EEA"), // bright blue
	mustParseHex("#D670D6"), // bright magenta
	mustParseHex("#29B8DB"), // bright cyan
	mustParseHex("#FFFFFF"), // bright white
}

// mustParseHex parses a hex colour with go-colorful, panicking on malformed input.
func mustParseHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}
