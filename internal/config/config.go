// Package config provides configuration management for climoji.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Audio    AudioConfig    `mapstructure:"audio"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Scroll   ScrollConfig   `mapstructure:"scroll"`
	Avatar   AvatarConfig   `mapstructure:"avatar"`
	Face     FaceConfig     `mapstructure:"face"`
	Bridge   BridgeConfig   `mapstructure:"bridge"`
	Log      LogConfig      `mapstructure:"log"`
}

// AudioConfig configures capture.
type AudioConfig struct {
	Source      string  `mapstructure:"source"` // mic or system
	Sensitivity float64 `mapstructure:"sensitivity"`
	SampleRate  int     `mapstructure:"sample_rate"`
	ReplayFile  string  `mapstructure:"replay_file"` // serve the microphone from a file
}

// AnalysisConfig configures the frame loop.
type AnalysisConfig struct {
	FPS int `mapstructure:"fps"`
}

// ScrollConfig configures section snapping.
type ScrollConfig struct {
	Threshold   float64       `mapstructure:"threshold"`
	SettleDelay time.Duration `mapstructure:"settle_delay"`
}

// AvatarConfig sizes and animates the floating avatar. Sizes are in cells.
type AvatarConfig struct {
	Size         int           `mapstructure:"size"`
	HeaderSize   int           `mapstructure:"header_size"`
	Stiffness    float64       `mapstructure:"stiffness"`
	Damping      float64       `mapstructure:"damping"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// FaceConfig configures face animation.
type FaceConfig struct {
	Crossfade time.Duration `mapstructure:"crossfade"`
	AutoCycle time.Duration `mapstructure:"auto_cycle"` // 0 disables
}

// BridgeConfig configures the optional websocket bridge.
type BridgeConfig struct {
	Addr string `mapstructure:"addr"` // empty disables
}

// LogConfig configures the file logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
	Dir   string `mapstructure:"dir"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Audio: AudioConfig{
			Source:      "mic",
			Sensitivity: 0.5,
			SampleRate:  48000,
		},
		Analysis: AnalysisConfig{FPS: 60},
		Scroll: ScrollConfig{
			Threshold:   0.35,
			SettleDelay: 800 * time.Millisecond,
		},
		Avatar: AvatarConfig{
			Size:         24,
			HeaderSize:   4,
			Stiffness:    70,
			Damping:      15,
			PollInterval: 100 * time.Millisecond,
		},
		Face: FaceConfig{
			Crossfade: 60 * time.Millisecond,
			AutoCycle: 2 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("audio.source", cfg.Audio.Source)
	v.SetDefault("audio.sensitivity", cfg.Audio.Sensitivity)
	v.SetDefault("audio.sample_rate", cfg.Audio.SampleRate)
	v.SetDefault("audio.replay_file", cfg.Audio.ReplayFile)
	v.SetDefault("analysis.fps", cfg.Analysis.FPS)
	v.SetDefault("scroll.threshold", cfg.Scroll.Threshold)
	v.SetDefault("scroll.settle_delay", cfg.Scroll.SettleDelay)
	v.SetDefault("avatar.size", cfg.Avatar.Size)
	v.SetDefault("avatar.header_size", cfg.Avatar.HeaderSize)
	v.SetDefault("avatar.stiffness", cfg.Avatar.Stiffness)
	v.SetDefault("avatar.damping", cfg.Avatar.Damping)
	v.SetDefault("avatar.poll_interval", cfg.Avatar.PollInterval)
	v.SetDefault("face.crossfade", cfg.Face.Crossfade)
	v.SetDefault("face.auto_cycle", cfg.Face.AutoCycle)
	v.SetDefault("bridge.addr", cfg.Bridge.Addr)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.dir", cfg.Log.Dir)
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Audio.Source) {
	case "mic", "microphone", "system", "system-audio", "systemaudio", "loopback":
	default:
		errs = append(errs, fmt.Errorf("audio.source: unknown source %q", c.Audio.Source))
	}
	if c.Audio.Sensitivity < 0 {
		errs = append(errs, fmt.Errorf("audio.sensitivity: must be >= 0, got %v", c.Audio.Sensitivity))
	}
	if c.Audio.SampleRate < 8000 {
		errs = append(errs, fmt.Errorf("audio.sample_rate: must be >= 8000, got %d", c.Audio.SampleRate))
	}
	if c.Analysis.FPS <= 0 || c.Analysis.FPS > 240 {
		errs = append(errs, fmt.Errorf("analysis.fps: must be in (0, 240], got %d", c.Analysis.FPS))
	}
	if c.Scroll.Threshold <= 0 || c.Scroll.Threshold >= 1 {
		errs = append(errs, fmt.Errorf("scroll.threshold: must be in (0, 1), got %v", c.Scroll.Threshold))
	}
	if c.Avatar.Size < 4 {
		errs = append(errs, fmt.Errorf("avatar.size: must be >= 4, got %d", c.Avatar.Size))
	}
	if c.Avatar.HeaderSize < 1 || c.Avatar.HeaderSize > c.Avatar.Size {
		errs = append(errs, fmt.Errorf("avatar.header_size: must be in [1, avatar.size], got %d", c.Avatar.HeaderSize))
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// Dir returns the configuration directory.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "climoji"), nil
}

// Loader owns a viper instance and the last good configuration.
type Loader struct {
	v   *viper.Viper
	log zerolog.Logger

	mu       sync.RWMutex
	cfg      *Config
	watchers []func(*Config)
}

// Load reads configuration from path, or from config.yaml in Dir when path is
// empty, then from CLIMOJI_* environment variables. A missing file is written
// with the defaults.
func Load(path string) (*Loader, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix("CLIMOJI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		dir, err := Dir()
		if err != nil {
			return nil, fmt.Errorf("locating config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating config dir: %w", err)
		}
		if err := v.WriteConfigAs(path); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	return &Loader{v: v, log: zerolog.Nop(), cfg: cfg}, nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SetLogger sets the logger used for reload messages.
func (l *Loader) SetLogger(log zerolog.Logger) {
	l.log = log.With().Str("component", "config").Logger()
}

// Path is the config file in use.
func (l *Loader) Path() string { return l.v.ConfigFileUsed() }

// Config returns the current configuration. Callers must not modify it.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// Override sets a key for this process only, as command-line flags do.
func (l *Loader) Override(key string, value any) error {
	l.v.Set(key, value)
	cfg, err := decode(l.v)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.cfg = cfg
	l.mu.Unlock()
	return nil
}

// Watch calls fn with every valid configuration loaded after the file
// changes. Invalid edits are logged and ignored.
func (l *Loader) Watch(fn func(*Config)) {
	l.mu.Lock()
	first := len(l.watchers) == 0
	l.watchers = append(l.watchers, fn)
	l.mu.Unlock()
	if !first {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		l.reload()
	})
	l.v.WatchConfig()
}

func (l *Loader) reload() {
	cfg, err := decode(l.v)
	if err != nil {
		l.log.Warn().Err(err).Msg("ignoring config change")
		return
	}
	l.mu.Lock()
	l.cfg = cfg
	watchers := slices.Clone(l.watchers)
	l.mu.Unlock()

	l.log.Info().Str("path", l.Path()).Msg("config reloaded")
	for _, fn := range watchers {
		fn(cfg)
	}
}
