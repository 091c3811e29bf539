package ui

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/olivier-w/climoji/internal/capture"
	"github.com/olivier-w/climoji/internal/config"
	"github.com/olivier-w/climoji/internal/events"
	"github.com/olivier-w/climoji/internal/face"
	"github.com/olivier-w/climoji/internal/lipsync"
	"github.com/olivier-w/climoji/internal/position"
	"github.com/olivier-w/climoji/internal/viseme"
)

type stubEngine struct {
	frames *events.Topic[lipsync.Frame]
	active *events.Topic[bool]

	mu     sync.Mutex
	starts []capture.Source
	stops  int
	sens   float64
	err    error
}

func newStubEngine() *stubEngine {
	return &stubEngine{
		frames: events.NewTopic[lipsync.Frame](),
		active: events.NewTopic[bool](),
		sens:   lipsync.DefaultSensitivity,
	}
}

func (e *stubEngine) Start(_ context.Context, src capture.Source) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.starts = append(e.starts, src)
	return e.err
}

func (e *stubEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stops++
}

func (e *stubEngine) Active() bool                         { return false }
func (e *stubEngine) SetSensitivity(v float64)             { e.sens = v }
func (e *stubEngine) Sensitivity() float64                 { return e.sens }
func (e *stubEngine) Frames() *events.Topic[lipsync.Frame] { return e.frames }
func (e *stubEngine) ActiveChanges() *events.Topic[bool]   { return e.active }

func newTestModel(t *testing.T, eng *stubEngine, support capture.Support) (Model, *events.Topic[face.Emotion]) {
	t.Helper()
	mock := clock.NewMock()
	emotions := events.NewTopic[face.Emotion]()
	m := New(Deps{
		Engine:   eng,
		Caps:     capture.Fixed(support),
		Emotions: emotions,
		Config:   *config.DefaultConfig(),
		Renderer: face.NewRendererMode(face.ColorOff),
		Clock:    mock,
	})
	return m, emotions
}

func key(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var supported = capture.Support{Supported: true, Family: "wasapi"}

func TestEmotionKeyStopsAutoCycle(t *testing.T) {
	m, emotions := newTestModel(t, newStubEngine(), supported)
	if !m.autoCycle {
		t.Fatal("expected auto-cycle on by default")
	}

	m, _ = m.handleMsg(key("3"))
	if m.emotion != face.Sad {
		t.Fatalf("expected sad, got %v", m.emotion)
	}
	if m.autoCycle {
		t.Fatal("expected emotion key to stop auto-cycle")
	}
	if e, _ := emotions.Last(); e != face.Sad {
		t.Fatalf("expected sad published, got %v", e)
	}

	next, cmd := m.handleMsg(autoCycleMsg(time.Now()))
	if next.emotion != face.Sad || cmd != nil {
		t.Fatalf("expected auto-cycle tick ignored, got %v", next.emotion)
	}
}

func TestAutoCycleAdvancesEmotion(t *testing.T) {
	m, _ := newTestModel(t, newStubEngine(), supported)
	next, cmd := m.handleMsg(autoCycleMsg(time.Now()))
	if next.emotion != face.Happy {
		t.Fatalf("expected happy after one cycle, got %v", next.emotion)
	}
	if cmd == nil {
		t.Fatal("expected next auto-cycle tick")
	}
}

func TestAudioControlsStopAutoCycle(t *testing.T) {
	for _, k := range []string{" ", "s"} {
		m, _ := newTestModel(t, newStubEngine(), supported)
		m, _ = m.handleMsg(key(k))
		if m.autoCycle {
			t.Fatalf("key %q: expected auto-cycle stopped", k)
		}
		next, cmd := m.handleMsg(autoCycleMsg(time.Now()))
		if cmd != nil {
			t.Fatalf("key %q: expected no further auto-cycle tick", k)
		}
		if next.emotion != face.Neutral {
			t.Fatalf("key %q: expected emotion kept, got %v", k, next.emotion)
		}
	}
}

func TestGlowFollowsSizeAndActivity(t *testing.T) {
	large := position.Transform{Scale: 1, Visible: true}
	badge := position.Transform{Scale: 0.2, Visible: true}
	if got := glow(false, large); got != 0.4 {
		t.Fatalf("expected dim glow at rest, got %v", got)
	}
	if got := glow(true, large); got != 0.8 {
		t.Fatalf("expected bright glow while listening, got %v", got)
	}
	if got := glow(true, badge); got != 0 {
		t.Fatalf("expected no glow in the header, got %v", got)
	}
}

func TestStartRunsEngineAndReportsListening(t *testing.T) {
	eng := newStubEngine()
	m, _ := newTestModel(t, eng, supported)

	m, cmd := m.handleMsg(key(" "))
	if cmd == nil || !m.acquiring {
		t.Fatal("expected acquisition to start")
	}
	msg := cmd()
	res, ok := msg.(startResultMsg)
	if !ok {
		t.Fatalf("expected startResultMsg, got %T", msg)
	}
	m, _ = m.handleMsg(res)
	if !m.active || m.acquiring {
		t.Fatalf("expected active and not acquiring, got active=%v acquiring=%v", m.active, m.acquiring)
	}
	if m.status != "Listening: Microphone" {
		t.Fatalf("expected listening status, got %q", m.status)
	}
	if len(eng.starts) != 1 || eng.starts[0] != capture.Microphone {
		t.Fatalf("expected one microphone start, got %v", eng.starts)
	}

	m, _ = m.handleMsg(key(" "))
	if m.active || eng.stops != 1 {
		t.Fatalf("expected space to stop capture, got active=%v stops=%d", m.active, eng.stops)
	}
}

func TestCancelledStartResultIsIgnored(t *testing.T) {
	eng := newStubEngine()
	m, _ := newTestModel(t, eng, supported)

	m, cmd := m.handleMsg(key(" "))
	m, _ = m.handleMsg(key("esc"))
	if m.acquiring {
		t.Fatal("expected esc to cancel acquisition")
	}
	if m.quitting {
		t.Fatal("expected esc during acquisition not to quit")
	}

	m, _ = m.handleMsg(cmd())
	if m.active {
		t.Fatal("expected stale start result not to activate")
	}
	if eng.stops != 1 {
		t.Fatalf("expected stream from cancelled start to be stopped, got %d stops", eng.stops)
	}
}

func TestStartErrorShowsMessage(t *testing.T) {
	m, _ := newTestModel(t, newStubEngine(), supported)
	m.startSeq, m.acquiring = 4, true

	err := &capture.Error{Kind: capture.KindPermissionDenied, Source: capture.Microphone, Err: capture.ErrPermissionDenied}
	next, _ := m.handleMsg(startResultMsg{seq: 4, src: capture.Microphone, err: err})
	if next.status != err.Message() || !next.statusErr {
		t.Fatalf("expected %q, got %q", err.Message(), next.status)
	}

	silent := &capture.Error{Kind: capture.KindCancelledByUser, Err: capture.ErrCancelledByUser}
	next, _ = m.handleMsg(startResultMsg{seq: 4, err: silent})
	if next.status != "" {
		t.Fatalf("expected no message for cancellation, got %q", next.status)
	}
}

func TestSwitchingSourceWhileActiveStopsCapture(t *testing.T) {
	eng := newStubEngine()
	m, _ := newTestModel(t, eng, supported)
	m.active = true

	m, _ = m.handleMsg(key("s"))
	if m.source != capture.SystemAudio {
		t.Fatalf("expected system audio selected, got %v", m.source)
	}
	if m.active || eng.stops != 1 {
		t.Fatalf("expected capture stopped, got active=%v stops=%d", m.active, eng.stops)
	}
	if len(eng.starts) != 0 {
		t.Fatal("expected no automatic restart")
	}
}

func TestSystemSourceDisabledWhenUnsupported(t *testing.T) {
	m, _ := newTestModel(t, newStubEngine(), capture.Support{Unsupported: true, Family: "coreaudio"})
	m, _ = m.handleMsg(key("s"))
	if m.source != capture.Microphone {
		t.Fatalf("expected microphone kept, got %v", m.source)
	}
	if !m.statusErr {
		t.Fatal("expected an error status")
	}
	if strings.Contains(helpText(false), "system") {
		t.Fatal("expected help to hide the system key")
	}
}

func TestScrollPastThresholdSnapsAndMovesAvatar(t *testing.T) {
	m, _ := newTestModel(t, newStubEngine(), supported)
	m, _ = m.handleMsg(tea.WindowSizeMsg{Width: 80, Height: 40})
	vh := m.lay.viewportH()

	for range 7 {
		m, _ = m.handleMsg(key("j"))
	}
	for range 300 {
		m, _ = m.handleMsg(frameTickMsg(time.Now()))
	}

	st := m.scroll.State()
	if st.Section != 1 {
		t.Fatalf("expected section 1, got %d", st.Section)
	}
	if m.page.y != float64(vh) {
		t.Fatalf("expected page snapped to %d, got %v", vh, m.page.y)
	}
	if m.pos.Active() != position.AnchorTarget {
		t.Fatalf("expected target anchor, got %v", m.pos.Active())
	}

	anchor := m.lay.targetAnchor(m.page.row())
	_, cy := anchor.Center()
	tr := m.pos.Transform()
	if math.Abs(tr.Y-cy) > 0.5 || math.Abs(tr.Scale-1) > 0.05 {
		t.Fatalf("expected avatar at y=%v scale 1, got %+v", cy, tr)
	}
}

func TestFrameMsgDrivesMouth(t *testing.T) {
	m, _ := newTestModel(t, newStubEngine(), supported)
	m, cmd := m.handleMsg(lipsyncFrameMsg{Viseme: viseme.OpenWide, Level: 0.6, Active: true})
	if cmd == nil {
		t.Fatal("expected to keep waiting for frames")
	}
	m, _ = m.handleMsg(frameTickMsg(time.Now()))
	if m.layers.Mouth != face.MouthFor(viseme.OpenWide) {
		t.Fatalf("expected open mouth, got %v", m.layers.Mouth)
	}

	m, _ = m.handleMsg(activeMsg(false))
	if m.frame != lipsync.Idle {
		t.Fatalf("expected idle frame after deactivation, got %+v", m.frame)
	}
}

func TestConfigMsgAppliesSensitivityAndThreshold(t *testing.T) {
	eng := newStubEngine()
	m, _ := newTestModel(t, eng, supported)
	cfg := *config.DefaultConfig()
	cfg.Audio.Sensitivity = 0.9
	cfg.Scroll.Threshold = 0.5

	m, _ = m.handleMsg(ConfigMsg(cfg))
	if eng.sens != 0.9 {
		t.Fatalf("expected sensitivity 0.9, got %v", eng.sens)
	}
	if got := m.scroll.Config().Threshold; got != 0.5 {
		t.Fatalf("expected threshold 0.5, got %v", got)
	}
}

func TestViewFillsWindow(t *testing.T) {
	m, _ := newTestModel(t, newStubEngine(), supported)
	m, _ = m.handleMsg(tea.WindowSizeMsg{Width: 80, Height: 30})
	m, _ = m.handleMsg(frameTickMsg(time.Now()))
	m.debug = true

	view := m.View()
	if lipgloss.Height(view) != 30 {
		t.Fatalf("expected 30 rows, got %d", lipgloss.Height(view))
	}
	plain := ansi.Strip(view)
	for _, want := range []string{"climoji", "Scroll down", "viseme"} {
		if !strings.Contains(plain, want) {
			t.Fatalf("expected %q in view", want)
		}
	}
}

func TestLitBars(t *testing.T) {
	cases := []struct {
		level float64
		want  int
	}{
		{0, 0}, {0.19, 0}, {0.2, 1}, {0.45, 2}, {0.8, 4}, {1, 5},
	}
	for _, c := range cases {
		if got := litBars(c.level); got != c.want {
			t.Fatalf("level %v: expected %d bars, got %d", c.level, c.want, got)
		}
	}
}

func TestOverlay(t *testing.T) {
	base := []string{"hello world", "12345", "ab"}
	overlay(base, "XY", 2, 0, 80)
	overlay(base, "ABC", -1, 1, 80)
	overlay(base, "Z", 4, 2, 80)
	overlay(base, "ignored", 0, 5, 80)

	want := []string{"heXYo world", "BC345", "ab  Z"}
	for i, w := range want {
		if got := ansi.Strip(base[i]); got != w {
			t.Fatalf("row %d: expected %q, got %q", i, w, got)
		}
	}
}
