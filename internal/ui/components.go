package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/olivier-w/climoji/internal/capture"
	"github.com/olivier-w/climoji/internal/face"
)

const meterBars = 5

var meterGlyphs = [meterBars]string{"▂", "▃", "▄", "▅", "▆"}

// litBars returns how many meter bars a level lights. Bar i is lit once the
// level reaches (i+1)/5.
func litBars(level float64) int {
	n := 0
	for i := range meterBars {
		if level >= float64(i+1)/meterBars-1e-9 {
			n = i + 1
		}
	}
	return n
}

func renderLevelMeter(level float64, active bool) string {
	lit := 0
	if active {
		lit = litBars(level)
	}
	var sb strings.Builder
	for i, g := range meterGlyphs {
		if i < lit {
			sb.WriteString(selectedStyle.Render(g))
		} else {
			sb.WriteString(dimStyle.Render(g))
		}
	}
	return sb.String()
}

func renderEmotionRow(current face.Emotion) string {
	parts := make([]string, 0, len(face.Emotions()))
	for i, e := range face.Emotions() {
		label := fmt.Sprintf("%d %s", i+1, e)
		if e == current {
			parts = append(parts, selectedStyle.Render("["+label+"]"))
		} else {
			parts = append(parts, subtitleStyle.Render(" "+label+" "))
		}
	}
	return strings.Join(parts, " ")
}

func renderSourceRow(current capture.Source, support capture.Support) string {
	render := func(src capture.Source, key string, disabled bool) string {
		label := key + " " + src.Label()
		switch {
		case disabled:
			return dimStyle.Render(" " + label + " ")
		case src == current:
			return selectedStyle.Render("(" + label + ")")
		default:
			return subtitleStyle.Render(" " + label + " ")
		}
	}
	row := render(capture.Microphone, "m", false) + "  " + render(capture.SystemAudio, "s", support.Unsupported)
	if support.Limited {
		row += "  " + helpStyle.Render("system audio: default output only")
	}
	return row
}

// renderSectionDots draws one dot per section, the current one filled.
func renderSectionDots(current, count int) string {
	dots := make([]string, count)
	for i := range dots {
		if i == current {
			dots[i] = selectedStyle.Render("●")
		} else {
			dots[i] = dimStyle.Render("○")
		}
	}
	return strings.Join(dots, " ")
}

// indicatorLabel is the hint next to the scroll progress bar.
func indicatorLabel(section, sections int, progress, threshold float64) string {
	switch {
	case section >= sections-1:
		return "Scroll up to return"
	case progress >= threshold:
		return "Release to navigate"
	default:
		return "Scroll down"
	}
}

func center(s string, width int) string {
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, s)
}

// overlay draws block over base with its top-left corner at (x, y). Rows of
// block that fall outside base are clipped.
func overlay(base []string, block string, x, y, width int) {
	for i, row := range strings.Split(block, "\n") {
		ly := y + i
		if ly < 0 || ly >= len(base) {
			continue
		}
		col := x
		if col < 0 {
			row = ansi.TruncateLeft(row, -col, "")
			col = 0
		}
		if col >= width {
			continue
		}
		row = ansi.Truncate(row, width-col, "")
		rowW := ansi.StringWidth(row)
		if rowW == 0 {
			continue
		}

		line := base[ly]
		left := ansi.Truncate(line, col, "")
		if pad := col - ansi.StringWidth(left); pad > 0 {
			left += strings.Repeat(" ", pad)
		}
		right := ansi.TruncateLeft(line, col+rowW, "")
		base[ly] = left + ansi.ResetStyle + row + ansi.ResetStyle + right
	}
}
