// Package viseme defines the closed vocabulary of mouth-shape classes produced
// by the lip-sync classifier and consumed by the face renderer.
package viseme

import "strings"

// Viseme is one mouth-shape class. The zero value is Silence.
type Viseme uint8

const (
	Silence      Viseme = iota // sil
	PressedLips                // PP: M, B, P
	Labiodental                // FF: F, V
	Interdental                // TH
	Alveolar                   // DD: D, T
	Velar                      // kk: K, G
	Postalveolar               // CH: CH, SH, J
	Sibilant                   // SS: S, Z
	Nasal                      // nn: N
	Liquid                     // RR: R
	OpenWide                   // aa
	WideSmile                  // E
	MidOpen                    // I
	Rounded                    // O
	SmallPucker                // U

	count
)

// Count is the size of the vocabulary, silence included.
const Count = int(count)

var codes = [Count]string{
	Silence:      "sil",
	PressedLips:  "PP",
	Labiodental:  "FF",
	Interdental:  "TH",
	Alveolar:     "DD",
	Velar:        "kk",
	Postalveolar: "CH",
	Sibilant:     "SS",
	Nasal:        "nn",
	Liquid:       "RR",
	OpenWide:     "aa",
	WideSmile:    "E",
	MidOpen:      "I",
	Rounded:      "O",
	SmallPucker:  "U",
}

const wirePrefix = "viseme_"

// All returns every viseme in vocabulary order.
func All() []Viseme {
	out := make([]Viseme, Count)
	for i := range out {
		out[i] = Viseme(i)
	}
	return out
}

// Valid reports whether v is part of the vocabulary.
func (v Viseme) Valid() bool { return int(v) < Count }

// Code returns the short code ("aa", "PP", ...). Out-of-range values report "sil".
func (v Viseme) Code() string {
	if !v.Valid() {
		return codes[Silence]
	}
	return codes[v]
}

// String returns the wire name, e.g. "viseme_aa".
func (v Viseme) String() string { return wirePrefix + v.Code() }

// Parse accepts either the wire name or the short code. Anything unknown,
// including the empty string, resolves to Silence; ok reports whether the input
// was recognised.
func Parse(s string) (v Viseme, ok bool) {
	code := strings.TrimPrefix(strings.TrimSpace(s), wirePrefix)
	for i, c := range codes {
		if c == code {
			return Viseme(i), true
		}
	}
	return Silence, false
}

// MarshalText implements encoding.TextMarshaler using the wire name.
func (v Viseme) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler; unknown names become Silence.
func (v *Viseme) UnmarshalText(b []byte) error {
	*v, _ = Parse(string(b))
	return nil
}
