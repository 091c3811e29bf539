package face

import (
	"testing"
	"time"

	"github.com/olivier-w/climoji/internal/viseme"
)

func TestMouthForIsTotal(t *testing.T) {
	for v := 0; v < 256; v++ {
		got := MouthFor(viseme.Viseme(v))
		if v >= viseme.Count && got != MouthClosed {
			t.Fatalf("expected closed mouth for unknown viseme %d, got %v", v, got)
		}
		if got >= mouthCount {
			t.Fatalf("expected a known mouth for viseme %d, got %d", v, got)
		}
	}
	if MouthFor(viseme.OpenWide) != MouthOpenWide {
		t.Fatalf("expected aa to open wide, got %v", MouthFor(viseme.OpenWide))
	}
	if MouthFor(viseme.Silence) != MouthClosed {
		t.Fatal("expected silence to close the mouth")
	}
}

func TestBlinkSuppressedOnlyWhenHappy(t *testing.T) {
	for _, e := range Emotions() {
		l := Resolve(Input{Emotion: e, Blink: true})
		if e == Happy {
			if l.Eyes != EyesHappy {
				t.Fatalf("expected happy eyes to ignore blink, got %v", l.Eyes)
			}
			continue
		}
		if l.Eyes != EyesClosed {
			t.Fatalf("%v: expected blink to close eyes, got %v", e, l.Eyes)
		}
		if open := Resolve(Input{Emotion: e}); open.Eyes == EyesClosed {
			t.Fatalf("%v: expected open eyes without blink", e)
		}
	}
}

func TestIdleMouthSubstitution(t *testing.T) {
	tests := []struct {
		v    viseme.Viseme
		e    Emotion
		want MouthShape
	}{
		{viseme.Silence, Neutral, MouthClosed},
		{viseme.PressedLips, Neutral, MouthPressed},
		{viseme.Silence, Happy, MouthHappyIdle},
		{viseme.PressedLips, Excited, MouthHappyIdle},
		{viseme.Silence, Sad, MouthSadIdle},
		{viseme.Silence, Thinking, MouthThinkingIdle},
		{viseme.Silence, Surprised, MouthClosed},
		{viseme.OpenWide, Sad, MouthOpenWide},
	}
	for _, tt := range tests {
		if got := Resolve(Input{Viseme: tt.v, Emotion: tt.e}).Mouth; got != tt.want {
			t.Fatalf("%v/%v: expected %v, got %v", tt.v, tt.e, tt.want, got)
		}
	}
}

func TestAccessoryPerEmotion(t *testing.T) {
	want := map[Emotion]Accessory{
		Neutral:   AccessoryNone,
		Happy:     AccessoryBlush,
		Excited:   AccessoryBlush,
		Sad:       AccessoryTears,
		Surprised: AccessorySweatDrop,
		Thinking:  AccessoryThinkingHand,
	}
	for e, a := range want {
		if got := Resolve(Input{Emotion: e}).Accessory; got != a {
			t.Fatalf("%v: expected %v, got %v", e, a, got)
		}
	}
}

func TestResolveMountsEveryMouth(t *testing.T) {
	l := Resolve(Input{Viseme: viseme.Rounded})
	visible := 0
	for i, m := range l.Mouths {
		if m.Shape != MouthShape(i) {
			t.Fatalf("expected mouth slot %d to hold its own shape, got %v", i, m.Shape)
		}
		if m.Opacity > 0 {
			visible++
		}
	}
	if visible != 1 || l.Mouths[MouthRoundedO].Opacity != 1 {
		t.Fatalf("expected only the rounded mouth visible, got %d visible", visible)
	}
}

func TestCrossfadeBlendsOverDuration(t *testing.T) {
	c := NewCrossfade(DefaultCrossfade)
	t0 := time.Unix(0, 0)

	c.Apply(Resolve(Input{}), t0)
	open := Resolve(Input{Viseme: viseme.OpenWide})
	l := c.Apply(open, t0)
	if l.Mouths[MouthClosed].Opacity != 1 || l.Mouths[MouthOpenWide].Opacity != 0 {
		t.Fatal("expected fade to start from the previous mouth")
	}

	l = c.Apply(open, t0.Add(30*time.Millisecond))
	if got := l.Mouths[MouthOpenWide].Opacity; got < 0.49 || got > 0.51 {
		t.Fatalf("expected half-way opacity, got %v", got)
	}
	if got := l.Mouths[MouthClosed].Opacity; got < 0.49 || got > 0.51 {
		t.Fatalf("expected previous mouth half faded, got %v", got)
	}

	l = c.Apply(open, t0.Add(60*time.Millisecond))
	if l.Mouths[MouthOpenWide].Opacity != 1 || l.Mouths[MouthClosed].Opacity != 0 || !c.Settled() {
		t.Fatal("expected fade complete after the crossfade duration")
	}
}

func TestParseEmotion(t *testing.T) {
	e, err := ParseEmotion("Surprised")
	if err != nil || e != Surprised {
		t.Fatalf("expected surprised, got %v (%v)", e, err)
	}
	if _, err := ParseEmotion("angry"); err == nil {
		t.Fatal("expected error for unknown emotion")
	}
	if Thinking.Next() != Neutral {
		t.Fatal("expected emotion cycle to wrap")
	}
}
