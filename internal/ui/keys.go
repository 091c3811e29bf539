package ui

import tea "github.com/charmbracelet/bubbletea"

const scrollStep = 2

func isQuit(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "q", "ctrl+c":
		return true
	}
	return false
}

// emotionKey maps "1".."6" to an emotion index.
func emotionKey(msg tea.KeyMsg) (int, bool) {
	s := msg.String()
	if len(s) != 1 || s[0] < '1' || s[0] > '6' {
		return 0, false
	}
	return int(s[0] - '1'), true
}

func helpText(systemAvailable bool) string {
	s := "space start/stop  m mic"
	if systemAvailable {
		s += "  s system"
	}
	s += "  1-6 emotion  +/- sensitivity  j/k scroll  d debug  q quit"
	return s
}
