// Package capture acquires and releases live audio streams from the
// microphone or the system output, and translates acquisition failures into a
// small user-facing error taxonomy.
package capture

import (
	"fmt"
	"strings"
)

// Source selects the acquisition strategy for a capture session.
type Source uint8

const (
	Microphone Source = iota
	SystemAudio
)

func (s Source) String() string {
	switch s {
	case SystemAudio:
		return "system"
	default:
		return "mic"
	}
}

// Label is the human-readable name shown in the UI.
func (s Source) Label() string {
	switch s {
	case SystemAudio:
		return "System audio"
	default:
		return "Microphone"
	}
}

// ParseSource accepts "mic", "microphone", "system" or "system-audio".
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mic", "microphone":
		return Microphone, nil
	case "system", "system-audio", "systemaudio", "loopback":
		return SystemAudio, nil
	default:
		return Microphone, fmt.Errorf("unknown audio source %q (want mic or system)", s)
	}
}
