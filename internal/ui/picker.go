package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/olivier-w/climoji/internal/replay"
)

// PickerResult holds the outcome of the replay file picker.
type PickerResult struct {
	Path      string
	Cancelled bool
}

type audioItem struct {
	name string
	ext  string
}

func (i audioItem) Title() string       { return i.name }
func (i audioItem) Description() string { return strings.TrimPrefix(i.ext, ".") }
func (i audioItem) FilterValue() string { return i.name }

// PickerModel lists the audio files of a directory so one can be replayed.
type PickerModel struct {
	dir    string
	list   list.Model
	result *PickerResult
	err    error
}

// NewPicker scans dir for files replay can decode.
func NewPicker(dir string) PickerModel {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return PickerModel{err: fmt.Errorf("cannot read directory: %w", err)}
	}

	var items []list.Item
	for _, e := range entries {
		if e.IsDir() || !replay.Supported(e.Name()) {
			continue
		}
		ext := filepath.Ext(e.Name())
		items = append(items, audioItem{name: strings.TrimSuffix(e.Name(), ext), ext: ext})
	}
	sort.Slice(items, func(i, j int) bool {
		return strings.ToLower(items[i].(audioItem).name) < strings.ToLower(items[j].(audioItem).name)
	})

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#FFFFFF"}).
		BorderLeftForeground(accent)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"}).
		BorderLeftForeground(accent)

	l := list.New(items, delegate, 80, 20)
	l.Title = "climoji: pick a file to lip-sync"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = headerStyle

	return PickerModel{dir: dir, list: l}
}

// HasError returns true if the picker could not be initialized.
func (m PickerModel) HasError() bool { return m.err != nil }

func (m PickerModel) Error() error { return m.err }

// Empty reports whether the directory has nothing to replay.
func (m PickerModel) Empty() bool { return len(m.list.Items()) == 0 }

// Result returns the picker result after the program finishes.
func (m PickerModel) Result() PickerResult {
	if m.result != nil {
		return *m.result
	}
	return PickerResult{Cancelled: true}
}

func (m PickerModel) Init() tea.Cmd {
	return tea.SetWindowTitle("climoji")
}

func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Don't intercept keys when filtering
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "enter":
			if item, ok := m.list.SelectedItem().(audioItem); ok {
				m.result = &PickerResult{Path: filepath.Join(m.dir, item.name+item.ext)}
				return m, tea.Sequence(tea.SetWindowTitle(""), tea.Quit)
			}
		case "q", "esc", "ctrl+c":
			m.result = &PickerResult{Cancelled: true}
			return m, tea.Sequence(tea.SetWindowTitle(""), tea.Quit)
		}

	case tea.WindowSizeMsg:
		m.list.SetWidth(msg.Width)
		m.list.SetHeight(msg.Height)
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m PickerModel) View() string {
	if m.err != nil {
		return "\n  " + errorStyle.Render(m.err.Error()) + "\n"
	}
	return m.list.View()
}
