package face

import "github.com/olivier-w/climoji/internal/viseme"

// EyeShape is the eye layer variant.
type EyeShape uint8

const (
	EyesNeutral EyeShape = iota
	EyesHappy
	EyesSad
	EyesExcited
	EyesSurprised
	EyesThinking
	EyesClosed
)

// BrowShape is the eyebrow layer variant; one per emotion.
type BrowShape uint8

const (
	BrowsNeutral BrowShape = iota
	BrowsHappy
	BrowsSad
	BrowsExcited
	BrowsSurprised
	BrowsThinking
)

// Accessory is the optional extra drawn behind the eyes.
type Accessory uint8

const (
	AccessoryNone Accessory = iota
	AccessoryBlush
	AccessoryTears
	AccessorySweatDrop
	AccessoryThinkingHand
)

func (a Accessory) String() string {
	switch a {
	case AccessoryBlush:
		return "blush"
	case AccessoryTears:
		return "tears"
	case AccessorySweatDrop:
		return "sweatDrop"
	case AccessoryThinkingHand:
		return "thinkingHand"
	default:
		return "none"
	}
}

// Input is everything the face depends on.
type Input struct {
	Viseme  viseme.Viseme
	Emotion Emotion
	Blink   bool
}

// MouthLayer is one mounted mouth shape and its opacity.
type MouthLayer struct {
	Shape   MouthShape
	Opacity float64
}

// Layers is the resolved face, drawn bottom to top: base, accessory,
// eyebrows, eyes, mouth.
type Layers struct {
	Accessory Accessory
	Brows     BrowShape
	Eyes      EyeShape
	Mouth     MouthShape
	// Mouths holds every shape; only Mouth is opaque until a Crossfade
	// blends them.
	Mouths [MouthCount]MouthLayer
}

// Resolve is a pure function of its input.
func Resolve(in Input) Layers {
	l := Layers{
		Accessory: accessoryFor(in.Emotion),
		Brows:     BrowShape(in.Emotion % emotionCount),
		Eyes:      EyeShape(in.Emotion % emotionCount),
		Mouth:     idleMouth(MouthFor(in.Viseme), in.Emotion),
	}
	// Happy eyes are already closed arcs; a blink would not show.
	if in.Blink && in.Emotion != Happy {
		l.Eyes = EyesClosed
	}
	for i := range l.Mouths {
		l.Mouths[i] = MouthLayer{Shape: MouthShape(i)}
	}
	l.Mouths[l.Mouth].Opacity = 1
	return l
}

func accessoryFor(e Emotion) Accessory {
	switch e {
	case Happy, Excited:
		return AccessoryBlush
	case Sad:
		return AccessoryTears
	case Surprised:
		return AccessorySweatDrop
	case Thinking:
		return AccessoryThinkingHand
	default:
		return AccessoryNone
	}
}
