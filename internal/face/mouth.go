package face

import "github.com/olivier-w/climoji/internal/viseme"

// MouthShape is one drawable mouth. The first fifteen follow the viseme
// vocabulary; the idle shapes replace a closed mouth for some emotions.
type MouthShape uint8

const (
	MouthClosed MouthShape = iota
	MouthPressed
	MouthTeethLip
	MouthTongueOut
	MouthOpenSmall
	MouthOpenBack
	MouthPursed
	MouthTeethClosed
	MouthClosedSmile
	MouthOpenRound
	MouthOpenWide
	MouthWideSmile
	MouthOpenMid
	MouthRoundedO
	MouthSmallPucker
	MouthHappyIdle
	MouthSadIdle
	MouthThinkingIdle
	mouthCount
)

// MouthCount is the number of mouth shapes, idle shapes included.
const MouthCount = int(mouthCount)

var mouthNames = [mouthCount]string{
	"closed", "pressed", "teethLip", "tongueOut", "openSmall", "openBack",
	"pursed", "teethClosed", "closedSmile", "openRound", "openWide",
	"wideSmile", "openMid", "roundedO", "smallPucker",
	"happyIdle", "sadIdle", "thinkingIdle",
}

func (m MouthShape) String() string {
	if m >= mouthCount {
		return mouthNames[MouthClosed]
	}
	return mouthNames[m]
}

// visemeMouths is indexed by viseme.
var visemeMouths = [viseme.Count]MouthShape{
	viseme.Silence:      MouthClosed,
	viseme.PressedLips:  MouthPressed,
	viseme.Labiodental:  MouthTeethLip,
	viseme.Interdental:  MouthTongueOut,
	viseme.Alveolar:     MouthOpenSmall,
	viseme.Velar:        MouthOpenBack,
	viseme.Postalveolar: MouthPursed,
	viseme.Sibilant:     MouthTeethClosed,
	viseme.Nasal:        MouthClosedSmile,
	viseme.Liquid:       MouthOpenRound,
	viseme.OpenWide:     MouthOpenWide,
	viseme.WideSmile:    MouthWideSmile,
	viseme.MidOpen:      MouthOpenMid,
	viseme.Rounded:      MouthRoundedO,
	viseme.SmallPucker:  MouthSmallPucker,
}

// MouthFor maps a viseme to its mouth shape. Values outside the vocabulary
// map to MouthClosed.
func MouthFor(v viseme.Viseme) MouthShape {
	if !v.Valid() {
		return MouthClosed
	}
	return visemeMouths[v]
}

// idleMouth substitutes the emotion's resting mouth for closed or pressed lips.
func idleMouth(m MouthShape, e Emotion) MouthShape {
	if m != MouthClosed && m != MouthPressed {
		return m
	}
	switch e {
	case Happy, Excited:
		return MouthHappyIdle
	case Sad:
		return MouthSadIdle
	case Thinking:
		return MouthThinkingIdle
	}
	return m
}
