package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/olivier-w/climoji/internal/capture"
	"github.com/olivier-w/climoji/internal/config"
	"github.com/olivier-w/climoji/internal/face"
	"github.com/olivier-w/climoji/internal/lipsync"
)

type frameTickMsg time.Time
type anchorPollMsg time.Time
type autoCycleMsg time.Time

type lipsyncFrameMsg lipsync.Frame
type activeMsg bool
type blinkMsg bool
type emotionMsg face.Emotion

// startResultMsg reports the end of an acquisition. seq guards against results
// from a start that was cancelled or superseded.
type startResultMsg struct {
	seq int
	src capture.Source
	err error
}

// ConfigMsg applies a reloaded configuration.
type ConfigMsg config.Config

func frameTick(fps int) tea.Cmd {
	if fps <= 0 {
		fps = lipsync.DefaultFPS
	}
	return tea.Tick(time.Second/time.Duration(fps), func(t time.Time) tea.Msg {
		return frameTickMsg(t)
	})
}

func anchorPoll(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return anchorPollMsg(t)
	})
}

func autoCycle(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return autoCycleMsg(t)
	})
}

// waitFor blocks on ch and wraps the next value. A closed channel ends the
// wait without a message.
func waitFor[T any](ch <-chan T, wrap func(T) tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			return nil
		}
		return wrap(v)
	}
}
