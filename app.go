package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/olivier-w/climoji/internal/bridge"
	"github.com/olivier-w/climoji/internal/capture"
	"github.com/olivier-w/climoji/internal/config"
	"github.com/olivier-w/climoji/internal/events"
	"github.com/olivier-w/climoji/internal/face"
	"github.com/olivier-w/climoji/internal/lipsync"
	"github.com/olivier-w/climoji/internal/logging"
	"github.com/olivier-w/climoji/internal/replay"
	"github.com/olivier-w/climoji/internal/ui"
)

const defaultBridgeAddr = "127.0.0.1:7070"

// app holds what every command shares: configuration and the file logger.
type app struct {
	loader *config.Loader
	cfg    config.Config
	log    *logging.Logger
}

func newApp(opts *options) (*app, error) {
	loader, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(loader, opts); err != nil {
		return nil, err
	}
	cfg := *loader.Config()

	log, err := logging.New(logging.Config{Dir: cfg.Log.Dir, Level: cfg.Log.Level})
	if err != nil {
		return nil, err
	}
	loader.SetLogger(log.Zerolog())
	appLog := log.Component("app")
	appLog.Info().Str("config", loader.Path()).Msg("starting")
	return &app{loader: loader, cfg: cfg, log: log}, nil
}

func (a *app) Close() error { return a.log.Close() }

// applyFlags layers explicitly set flags over the file and environment.
func applyFlags(loader *config.Loader, opts *options) error {
	set := map[string]any{}
	if opts.source != "" {
		if _, err := capture.ParseSource(opts.source); err != nil {
			return err
		}
		set["audio.source"] = opts.source
	}
	if opts.sensitivity != 0 {
		set["audio.sensitivity"] = opts.sensitivity
	}
	if opts.replay != "" {
		set["audio.replay_file"] = opts.replay
	}
	if opts.serve != "" {
		set["bridge.addr"] = opts.serve
	}
	if opts.logLevel != "" {
		set["log.level"] = opts.logLevel
	}
	for key, value := range set {
		if err := loader.Override(key, value); err != nil {
			return fmt.Errorf("--%s: %w", key, err)
		}
	}
	return nil
}

// pipeline is the capture manager and engine for one run.
type pipeline struct {
	engine *lipsync.Engine
	caps   capture.CapabilityProvider
	source capture.Source
	title  string
	close  func()
}

func (a *app) newPipeline(muted bool) (*pipeline, error) {
	cfg := a.cfg
	src, err := capture.ParseSource(cfg.Audio.Source)
	if err != nil {
		return nil, err
	}
	zl := a.log.Zerolog()

	var (
		acq     capture.Acquirer
		caps    capture.CapabilityProvider = capture.DefaultCapabilities()
		title   string
		release = func() {}
	)
	if path := cfg.Audio.ReplayFile; path != "" {
		if !replay.Supported(path) {
			return nil, fmt.Errorf("unsupported replay file %s (supported: mp3, wav, flac, ogg)", path)
		}
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
		acq = replay.New(path, replay.WithPlayback(!muted), replay.WithLogger(zl))
		caps = capture.Fixed(capture.Support{Supported: true, Family: "replay"})
		title = replay.Title(path)
	} else {
		dev := capture.NewDeviceAcquirer(cfg.Audio.SampleRate, zl)
		acq = dev
		release = func() { _ = dev.Close() }
	}

	mgr := capture.NewManager(acq, caps, capture.WithLogger(zl))
	engine := lipsync.NewEngine(mgr,
		lipsync.WithLogger(zl),
		lipsync.WithSensitivity(cfg.Audio.Sensitivity),
		lipsync.WithScheduler(lipsync.NewClockScheduler(clock.New(), cfg.Analysis.FPS)),
	)
	return &pipeline{
		engine: engine,
		caps:   caps,
		source: src,
		title:  title,
		close: func() {
			engine.Stop()
			release()
		},
	}, nil
}

func runPage(cmd *cobra.Command, opts *options) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.newPipeline(opts.muted)
	if err != nil {
		return err
	}
	defer p.close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	emotions := events.NewTopic[face.Emotion]()
	if addr := a.cfg.Bridge.Addr; addr != "" {
		srv := bridge.New(p.engine, p.caps, emotions, bridge.WithLogger(a.log.Zerolog()))
		go func() {
			if err := srv.ListenAndServe(ctx, addr); err != nil && ctx.Err() == nil {
				bridgeLog := a.log.Component("bridge")
				bridgeLog.Error().Err(err).Msg("bridge stopped")
			}
		}()
	}

	model := ui.New(ui.Deps{
		Engine:   p.engine,
		Caps:     p.caps,
		Emotions: emotions,
		Blinker:  face.NewBlinker(),
		Config:   a.cfg,
		Source:   p.source,
		Log:      a.log.Zerolog(),
		History:  a.log.History,
		Replay:   p.title,
	})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))

	a.loader.Watch(func(cfg *config.Config) {
		program.Send(ui.ConfigMsg(*cfg))
	})

	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func runServe(cmd *cobra.Command, opts *options) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.newPipeline(true)
	if err != nil {
		return err
	}
	defer p.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.loader.Watch(func(cfg *config.Config) {
		p.engine.SetSensitivity(cfg.Audio.Sensitivity)
	})

	addr := a.cfg.Bridge.Addr
	if addr == "" {
		addr = defaultBridgeAddr
	}
	srv := bridge.New(p.engine, p.caps, events.NewTopic[face.Emotion](), bridge.WithLogger(a.log.Zerolog()))
	fmt.Fprintf(cmd.OutOrStdout(), "climoji bridge on http://%s (ws at /ws), ctrl+c to stop\n", addr)
	if err := srv.ListenAndServe(ctx, addr); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// pickReplayFile runs the file picker; ok is false when the user cancelled.
func pickReplayFile(dir string) (string, bool, error) {
	picker := ui.NewPicker(dir)
	if picker.HasError() {
		return "", false, picker.Error()
	}
	if picker.Empty() {
		return "", false, fmt.Errorf("no audio files in %s (supported: mp3, wav, flac, ogg)", dir)
	}
	final, err := tea.NewProgram(picker, tea.WithAltScreen()).Run()
	if err != nil {
		return "", false, err
	}
	pm, ok := final.(ui.PickerModel)
	if !ok {
		return "", false, fmt.Errorf("unexpected model type from picker")
	}
	res := pm.Result()
	return res.Path, !res.Cancelled, nil
}
