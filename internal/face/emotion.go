// Package face resolves viseme, emotion and blink state into the layers of a
// vector face and rasterizes them for the terminal.
package face

import (
	"fmt"
	"strings"
)

// Emotion is chosen by the user and persists until changed.
type Emotion uint8

const (
	Neutral Emotion = iota
	Happy
	Sad
	Excited
	Surprised
	Thinking
	emotionCount
)

var emotionNames = [emotionCount]string{"neutral", "happy", "sad", "excited", "surprised", "thinking"}

// Emotions returns every emotion in display order.
func Emotions() []Emotion {
	out := make([]Emotion, emotionCount)
	for i := range out {
		out[i] = Emotion(i)
	}
	return out
}

func (e Emotion) String() string {
	if e >= emotionCount {
		return emotionNames[Neutral]
	}
	return emotionNames[e]
}

// Next returns the emotion after e, wrapping around.
func (e Emotion) Next() Emotion { return (e + 1) % emotionCount }

// ParseEmotion accepts an emotion name in any case.
func ParseEmotion(s string) (Emotion, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range emotionNames {
		if n == s {
			return Emotion(i), nil
		}
	}
	return Neutral, fmt.Errorf("unknown emotion %q", s)
}

func (e Emotion) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

func (e *Emotion) UnmarshalText(b []byte) error {
	v, err := ParseEmotion(string(b))
	if err != nil {
		return err
	}
	*e = v
	return nil
}
