package capture

import (
	"os"
	"runtime"
	"slices"
)

// Support describes whether system-audio capture can be offered. Exactly one of
// Supported, Limited or Unsupported is true.
type Support struct {
	Supported   bool   `json:"supported"`
	Limited     bool   `json:"limited"`
	Unsupported bool   `json:"unsupported"`
	Family      string `json:"browserFamily"`
}

// CapabilityProvider reports system-audio support without doing any I/O.
type CapabilityProvider interface {
	SystemAudioSupport() Support
}

// CapabilityFunc adapts a function to CapabilityProvider.
type CapabilityFunc func() Support

func (f CapabilityFunc) SystemAudioSupport() Support { return f() }

// Fixed returns a provider that always reports s.
func Fixed(s Support) CapabilityProvider {
	return CapabilityFunc(func() Support { return s })
}

// EnvProvider inspects the platform and environment variables only.
//
//	windows                  supported   (WASAPI loopback)
//	linux/freebsd + pulse    limited     (monitor of the default sink only)
//	linux/freebsd otherwise  unsupported
//	darwin                   unsupported (Core Audio has no loopback device)
type EnvProvider struct {
	GOOS      string
	LookupEnv func(string) (string, bool)
}

// pulseMonitorOS lists the platforms monitor_pulse.go is built for.
var pulseMonitorOS = []string{"linux", "freebsd"}

// DefaultCapabilities inspects the running process.
func DefaultCapabilities() EnvProvider {
	return EnvProvider{GOOS: runtime.GOOS, LookupEnv: os.LookupEnv}
}

func (p EnvProvider) SystemAudioSupport() Support {
	switch p.GOOS {
	case "windows":
		return Support{Supported: true, Family: "wasapi"}
	case "darwin":
		return Support{Unsupported: true, Family: "coreaudio"}
	}
	if slices.Contains(pulseMonitorOS, p.GOOS) {
		if p.hasEnv("PULSE_SERVER") || p.hasEnv("XDG_RUNTIME_DIR") {
			return Support{Limited: true, Family: "pulseaudio"}
		}
		return Support{Unsupported: true, Family: "alsa"}
	}
	return Support{Unsupported: true, Family: "unknown"}
}

func (p EnvProvider) hasEnv(key string) bool {
	if p.LookupEnv == nil {
		return false
	}
	v, ok := p.LookupEnv(key)
	return ok && v != ""
}
