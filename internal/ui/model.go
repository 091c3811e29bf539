// Package ui is the terminal page: a sticky header holding the avatar badge, a
// hero section, and an avatar section with capture controls. The avatar floats
// between the two anchors as the page snaps from section to section.
package ui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/olivier-w/climoji/internal/capture"
	"github.com/olivier-w/climoji/internal/config"
	"github.com/olivier-w/climoji/internal/events"
	"github.com/olivier-w/climoji/internal/face"
	"github.com/olivier-w/climoji/internal/lipsync"
	"github.com/olivier-w/climoji/internal/logging"
	"github.com/olivier-w/climoji/internal/position"
	"github.com/olivier-w/climoji/internal/scroll"
)

const statusTTL = 5 * time.Second

// Engine is the lip-sync engine as the page drives it.
type Engine interface {
	Start(ctx context.Context, src capture.Source) error
	Stop()
	Active() bool
	SetSensitivity(float64)
	Sensitivity() float64
	Frames() *events.Topic[lipsync.Frame]
	ActiveChanges() *events.Topic[bool]
}

// Deps wires the page to the rest of the program.
type Deps struct {
	Engine   Engine
	Caps     capture.CapabilityProvider
	Emotions *events.Topic[face.Emotion]
	Blinker  *face.Blinker
	Config   config.Config
	Source   capture.Source

	Renderer *face.Renderer // defaults to the terminal's colour mode
	Clock    clock.Clock
	Log      zerolog.Logger
	History  func(n int) []logging.Entry // feeds the debug overlay
	Replay   string                      // title of a replayed file, if any
}

// Model is the Bubbletea model for the climoji page.
type Model struct {
	engine   Engine
	support  capture.Support
	emotions *events.Topic[face.Emotion]
	blinker  *face.Blinker
	cfg      config.Config
	clock    clock.Clock
	log      zerolog.Logger
	history  func(int) []logging.Entry
	replay   string

	renderer  *face.Renderer
	crossfade *face.Crossfade
	pos       *position.Controller
	scroll    *scroll.Controller
	page      *pageScroll

	progress progress.Model
	spinner  spinner.Model

	frames   <-chan lipsync.Frame
	actives  <-chan bool
	blinks   <-chan bool
	emotionC <-chan face.Emotion
	unsub    []func()

	lay         layout
	source      capture.Source
	active      bool
	acquiring   bool
	startSeq    int
	cancelStart context.CancelFunc
	frame       lipsync.Frame
	emotion     face.Emotion
	blink       bool
	autoCycle   bool
	debug       bool
	layers      face.Layers
	status      string
	statusErr   bool
	statusTime  time.Time
	quitting    bool
}

// New builds the page. Channels onto the engine and face topics are opened
// here so no value published before Init is lost.
func New(d Deps) Model {
	if d.Clock == nil {
		d.Clock = clock.New()
	}
	if d.Renderer == nil {
		d.Renderer = face.NewRenderer()
	}
	if d.Caps == nil {
		d.Caps = capture.DefaultCapabilities()
	}
	if d.Emotions == nil {
		d.Emotions = events.NewTopic[face.Emotion]()
	}
	if d.Blinker == nil {
		d.Blinker = face.NewBlinker(face.WithClock(d.Clock))
	}
	cfg := d.Config
	fps := cfg.Analysis.FPS
	if fps <= 0 {
		fps = lipsync.DefaultFPS
	}

	m := Model{
		engine:    d.Engine,
		support:   d.Caps.SystemAudioSupport(),
		emotions:  d.Emotions,
		blinker:   d.Blinker,
		cfg:       cfg,
		clock:     d.Clock,
		log:       d.Log.With().Str("component", "ui").Logger(),
		history:   d.History,
		replay:    d.Replay,
		renderer:  d.Renderer,
		crossfade: face.NewCrossfade(cfg.Face.Crossfade),
		page:      newPageScroll(fps),
		source:    d.Source,
		frame:     lipsync.Idle,
		autoCycle: cfg.Face.AutoCycle > 0,
	}
	if m.source == capture.SystemAudio && m.support.Unsupported {
		m.source = capture.Microphone
	}

	m.pos = position.New(position.Config{
		HeaderSize: float64(max(1, cfg.Avatar.HeaderSize)),
		AvatarSize: float64(max(1, cfg.Avatar.Size)),
		Stiffness:  cfg.Avatar.Stiffness,
		Damping:    cfg.Avatar.Damping,
		FPS:        fps,
	})
	m.scroll = scroll.New(
		scroll.Config{Threshold: cfg.Scroll.Threshold, SettleDelay: cfg.Scroll.SettleDelay},
		m.page,
		scroll.WithClock(d.Clock),
		scroll.WithBoundary(scroll.ViewportSections{Count: pageSections}),
		scroll.WithLogger(d.Log),
	)
	pos := m.pos
	m.unsub = append(m.unsub, m.scroll.Sections().Subscribe(func(s scroll.SectionChanged) {
		pos.SetActiveSection(s.Section)
	}))

	var unsub func()
	m.frames, unsub = d.Engine.Frames().Chan(1)
	m.unsub = append(m.unsub, unsub)
	m.actives, unsub = d.Engine.ActiveChanges().Chan(4)
	m.unsub = append(m.unsub, unsub)
	m.blinks, unsub = d.Blinker.Changes().Chan(2)
	m.unsub = append(m.unsub, unsub)
	m.emotionC, unsub = d.Emotions.Chan(4)
	m.unsub = append(m.unsub, unsub)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#AAAAAA"})
	m.spinner = s
	m.progress = progress.New(
		progress.WithScaledGradient("#FCC21B", "#F4AA41"),
		progress.WithoutPercentage(),
	)

	m.layers = m.resolve()
	return m
}

func (m Model) fps() int {
	if m.cfg.Analysis.FPS > 0 {
		return m.cfg.Analysis.FPS
	}
	return lipsync.DefaultFPS
}

func (m Model) pollInterval() time.Duration {
	if m.cfg.Avatar.PollInterval > 0 {
		return m.cfg.Avatar.PollInterval
	}
	return 100 * time.Millisecond
}

func (m Model) Init() tea.Cmd {
	m.blinker.Start()
	cmds := []tea.Cmd{
		frameTick(m.fps()),
		anchorPoll(m.pollInterval()),
		m.spinner.Tick,
		m.waitFrame(),
		m.waitActive(),
		m.waitBlink(),
		m.waitEmotion(),
		tea.SetWindowTitle("climoji"),
	}
	if m.autoCycle {
		cmds = append(cmds, autoCycle(m.cfg.Face.AutoCycle))
	}
	return tea.Batch(cmds...)
}

func (m Model) waitFrame() tea.Cmd {
	return waitFor(m.frames, func(f lipsync.Frame) tea.Msg { return lipsyncFrameMsg(f) })
}

func (m Model) waitActive() tea.Cmd {
	return waitFor(m.actives, func(v bool) tea.Msg { return activeMsg(v) })
}

func (m Model) waitBlink() tea.Cmd {
	return waitFor(m.blinks, func(v bool) tea.Msg { return blinkMsg(v) })
}

func (m Model) waitEmotion() tea.Cmd {
	return waitFor(m.emotionC, func(e face.Emotion) tea.Msg { return emotionMsg(e) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.handleMsg(msg)
	return next, cmd
}

func (m Model) handleMsg(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress {
			switch msg.Button {
			case tea.MouseButtonWheelDown:
				m.page.by(scrollStep)
			case tea.MouseButtonWheelUp:
				m.page.by(-scrollStep)
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case frameTickMsg:
		m.step()
		return m, frameTick(m.fps())

	case anchorPollMsg:
		m.registerAnchors()
		return m, anchorPoll(m.pollInterval())

	case autoCycleMsg:
		if !m.autoCycle {
			return m, nil
		}
		m.setEmotion(m.emotion.Next())
		return m, autoCycle(m.cfg.Face.AutoCycle)

	case lipsyncFrameMsg:
		m.frame = lipsync.Frame(msg)
		return m, m.waitFrame()

	case activeMsg:
		m.active = bool(msg)
		if !m.active {
			m.frame = lipsync.Idle
		}
		return m, m.waitActive()

	case blinkMsg:
		m.blink = bool(msg)
		return m, m.waitBlink()

	case emotionMsg:
		m.emotion = face.Emotion(msg)
		return m, m.waitEmotion()

	case startResultMsg:
		return m.handleStartResult(msg)

	case ConfigMsg:
		m.applyConfig(config.Config(msg))
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if isQuit(msg) {
		return m.quit()
	}
	if i, ok := emotionKey(msg); ok {
		m.autoCycle = false
		m.setEmotion(face.Emotions()[i])
		return m, nil
	}
	switch msg.String() {
	case "esc":
		if m.acquiring {
			m.cancelAcquire()
			return m, nil
		}
		return m.quit()
	case " ", "enter":
		return m, m.toggle()
	case "m":
		m.selectSource(capture.Microphone)
	case "s":
		m.selectSource(capture.SystemAudio)
	case "+", "=":
		m.adjustSensitivity(0.1)
	case "-", "_":
		m.adjustSensitivity(-0.1)
	case "d":
		m.debug = !m.debug
	case "down", "j":
		m.page.by(scrollStep)
	case "up", "k":
		m.page.by(-scrollStep)
	case "pgdown":
		m.page.by(float64(m.lay.viewportH()))
	case "pgup":
		m.page.by(-float64(m.lay.viewportH()))
	case "home", "g":
		m.page.ScrollTo(0)
	case "end", "G":
		m.page.ScrollTo(m.lay.maxScroll())
	}
	return m, nil
}

func (m Model) quit() (Model, tea.Cmd) {
	m.quitting = true
	m.cancelAcquire()
	m.engine.Stop()
	m.blinker.Stop()
	m.scroll.Close()
	for _, u := range m.unsub {
		u()
	}
	return m, tea.Sequence(tea.SetWindowTitle(""), tea.Quit)
}

func (m *Model) resize(w, h int) {
	m.lay = layout{
		width:  w,
		height: h,
		avatar: max(1, m.cfg.Avatar.Size),
		header: max(1, m.cfg.Avatar.HeaderSize),
	}
	m.page.setLimit(m.lay.maxScroll())
	m.progress.Width = max(10, min(40, w/3))
	m.registerAnchors()
}

func (m *Model) registerAnchors() {
	if m.lay.width <= 0 {
		return
	}
	m.pos.RegisterAnchors(m.lay.headerAnchor(), m.lay.targetAnchor(m.page.row()))
}

// step advances one animation frame: page scroll, snap detection, the avatar
// springs, and the mouth crossfade.
func (m *Model) step() {
	if m.page.step() && m.lay.width > 0 {
		m.scroll.Observe(m.page.y, float64(m.lay.viewportH()))
		m.registerAnchors()
	}
	m.pos.Step()
	m.layers = m.crossfade.Apply(m.resolve(), m.clock.Now())
	if m.status != "" && m.clock.Since(m.statusTime) > statusTTL {
		m.status = ""
	}
}

func (m Model) resolve() face.Layers {
	return face.Resolve(face.Input{Viseme: m.frame.Viseme, Emotion: m.emotion, Blink: m.blink})
}

func (m *Model) setEmotion(e face.Emotion) {
	m.emotion = e
	m.emotions.Publish(e)
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
	m.statusTime = m.clock.Now()
}

func (m *Model) adjustSensitivity(d float64) {
	v := math.Round((m.engine.Sensitivity()+d)*10) / 10
	v = max(0.1, min(v, 2))
	m.engine.SetSensitivity(v)
	m.setStatus(fmt.Sprintf("Sensitivity %.1f", v), false)
}

func (m *Model) toggle() tea.Cmd {
	m.autoCycle = false
	if m.acquiring {
		return nil
	}
	if m.active {
		m.engine.Stop()
		m.active = false
		m.frame = lipsync.Idle
		return nil
	}
	return m.start()
}

func (m *Model) start() tea.Cmd {
	if m.source == capture.SystemAudio && m.support.Unsupported {
		err := &capture.Error{Kind: capture.KindUnsupported, Source: capture.SystemAudio, Err: capture.ErrUnsupported}
		m.setStatus(err.Message(), true)
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.startSeq++
	m.acquiring = true
	m.cancelStart = cancel
	seq, src, eng := m.startSeq, m.source, m.engine
	return func() tea.Msg {
		err := eng.Start(ctx, src)
		return startResultMsg{seq: seq, src: src, err: err}
	}
}

// cancelAcquire abandons an in-flight start; its result is ignored.
func (m *Model) cancelAcquire() {
	if !m.acquiring {
		return
	}
	if m.cancelStart != nil {
		m.cancelStart()
		m.cancelStart = nil
	}
	m.acquiring = false
	m.startSeq++
}

func (m *Model) selectSource(src capture.Source) {
	m.autoCycle = false
	if src == m.source {
		return
	}
	if src == capture.SystemAudio && m.support.Unsupported {
		m.setStatus("System audio capture is not supported on this platform", true)
		return
	}
	m.source = src
	if m.active || m.acquiring {
		m.cancelAcquire()
		m.engine.Stop()
		m.active = false
		m.frame = lipsync.Idle
		m.setStatus("Stopped: switched to "+src.Label(), false)
	}
}

func (m Model) handleStartResult(msg startResultMsg) (Model, tea.Cmd) {
	if msg.seq != m.startSeq {
		// A cancelled start that still acquired a stream must not keep it.
		if msg.err == nil && !m.acquiring {
			m.engine.Stop()
		}
		return m, nil
	}
	m.acquiring = false
	m.cancelStart = nil
	if msg.err == nil {
		label := msg.src.Label()
		if m.replay != "" {
			label = m.replay
		}
		m.active = true
		m.setStatus("Listening: "+label, false)
		return m, nil
	}

	var cerr *capture.Error
	switch {
	case errors.As(msg.err, &cerr) && cerr.Silent():
	case errors.As(msg.err, &cerr):
		m.setStatus(cerr.Message(), true)
	default:
		m.setStatus(msg.err.Error(), true)
	}
	m.log.Debug().Err(msg.err).Stringer("source", msg.src).Msg("start failed")
	return m, nil
}

func (m *Model) applyConfig(cfg config.Config) {
	m.cfg.Audio.Sensitivity = cfg.Audio.Sensitivity
	m.cfg.Scroll = cfg.Scroll
	m.engine.SetSensitivity(cfg.Audio.Sensitivity)
	m.scroll.SetConfig(scroll.Config{Threshold: cfg.Scroll.Threshold, SettleDelay: cfg.Scroll.SettleDelay})
	m.setStatus("Configuration reloaded", false)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.lay.width <= 0 || m.lay.height <= 0 {
		return "\n  " + headerStyle.Render("climoji")
	}
	w, vh := m.lay.width, m.lay.viewportH()

	lines := make([]string, 0, m.lay.height)
	lines = append(lines, m.headerLines()...)

	page := append(m.heroLines(), m.avatarSectionLines()...)
	row := max(0, min(m.page.row(), len(page)-vh))
	lines = append(lines, page[row:row+vh]...)

	lines = append(lines, m.indicatorLine(), m.footerLine())
	for len(lines) < m.lay.height {
		lines = append(lines, "")
	}
	lines = lines[:m.lay.height]

	if t := m.pos.Transform(); t.Visible {
		d := int(math.Round(float64(m.lay.avatar) * t.Scale))
		if d >= 1 {
			cols, rows := face.CellSize(d)
			block := m.renderer.Render(m.layers, cols, rows, face.Options{Glow: glow(m.active, t)})
			x := int(math.Round(t.X - float64(cols)/2))
			y := int(math.Round(t.Y - float64(rows)/2))
			overlay(lines, block, x, y, w)
		}
	}
	if m.debug {
		box := m.debugBox()
		overlay(lines, box, w-lipgloss.Width(box)-1, headerRows, w)
	}
	return strings.Join(lines, "\n")
}

// glow is the halo opacity: hidden in the header, dim at rest and bright
// while listening.
func glow(active bool, t position.Transform) float64 {
	switch {
	case t.Scale < 0.8:
		return 0
	case active:
		return 0.8
	default:
		return 0.4
	}
}

func (m Model) headerLines() []string {
	title := "  " + headerStyle.Render("climoji")
	tagline := "  " + subtitleStyle.Render("an emoji that talks back")
	if m.active {
		tagline += "  " + selectedStyle.Render("● live")
	}
	return []string{title, tagline, helpStyle.Render(strings.Repeat("─", m.lay.width))}
}

func (m Model) heroLines() []string {
	vh, w := m.lay.viewportH(), m.lay.width
	lines := make([]string, vh)
	body := []string{
		titleStyle.Render("Meet your talking avatar"),
		"",
		subtitleStyle.Render("It listens to your microphone or your system audio"),
		subtitleStyle.Render("and moves its mouth to match what it hears."),
		"",
		helpStyle.Render("↓ scroll down to say hello"),
	}
	top := max(0, (vh-len(body))/2)
	for i, s := range body {
		if top+i < vh {
			lines[top+i] = center(s, w)
		}
	}
	return lines
}

func (m Model) avatarSectionLines() []string {
	vh, w := m.lay.viewportH(), m.lay.width
	lines := make([]string, vh)
	_, boxRows := face.CellSize(m.lay.avatar)

	var button string
	switch {
	case m.acquiring:
		button = statusStyle.Render(m.spinner.View() + " Requesting " + strings.ToLower(m.source.Label()) + "… (esc to cancel)")
	case m.active:
		button = stopButtonStyle.Render("■ Stop")
	default:
		button = buttonStyle.Render("● Start listening")
	}

	controls := []string{
		renderSourceRow(m.source, m.support),
		"",
		button + "  " + renderLevelMeter(m.frame.Level, m.active),
		"",
		renderEmotionRow(m.emotion),
	}
	if m.autoCycle {
		controls = append(controls, helpStyle.Render("cycling emotions, press 1-6 to choose"))
	}

	top := 1 + boxRows + 1 // anchor row, box, gap
	for i, s := range controls {
		if top+i < vh {
			lines[top+i] = center(s, w)
		}
	}
	return lines
}

func (m Model) indicatorLine() string {
	st := m.scroll.State()
	threshold := m.scroll.Config().Threshold
	ratio := 0.0
	if threshold > 0 {
		ratio = min(1, st.Progress/threshold)
	}
	bar := m.progress.ViewAs(ratio)
	label := indicatorLabel(st.Section, pageSections, st.Progress, threshold)
	return "  " + renderSectionDots(st.Section, pageSections) + "  " + bar + "  " + helpStyle.Render(label)
}

func (m Model) footerLine() string {
	if m.status != "" {
		if m.statusErr {
			return "  " + errorStyle.Render(m.status)
		}
		return "  " + statusStyle.Render(m.status)
	}
	return "  " + helpStyle.Render(helpText(!m.support.Unsupported))
}

func (m Model) debugBox() string {
	st := m.scroll.State()
	t := m.pos.Transform()
	rows := []string{
		fmt.Sprintf("viseme   %s", m.frame.Viseme),
		fmt.Sprintf("level    %.2f", m.frame.Level),
		fmt.Sprintf("emotion  %s", m.emotion),
		fmt.Sprintf("mouth    %s", m.layers.Mouth),
		fmt.Sprintf("section  %d  %.2f %s", st.Section, st.Progress, st.Direction),
		fmt.Sprintf("avatar   %.1f,%.1f x%.2f", t.X, t.Y, t.Scale),
		fmt.Sprintf("sens     %.1f", m.engine.Sensitivity()),
	}
	if m.history != nil {
		for _, e := range m.history(3) {
			rows = append(rows, helpStyle.Render(e.Level.String()+" "+e.Message))
		}
	}
	return debugStyle.Render(strings.Join(rows, "\n"))
}
