package domain

import "strings"

// Color identifies a chess side.
type Color string

const (
	White   Color = "w"
	Black   Color = "b"
	NoColor Color = ""
)

func (c Color) Opposite() Color {
	switch c {
	case White:
		return Black
	case Black:
		return White
	default:
		return NoColor
	}
}

func (c Color) Valid() bool { return c == White || c == Black }

func (c Color) String() string {
	switch c {
	case White:
		return "white"
	case Black:
		return "black"
	default:
		return "none"
	}
}

// ColorPreference is the creator's requested side.
type ColorPreference string

const (
	PreferWhite  ColorPreference = "w"
	PreferBlack  ColorPreference = "b"
	PreferRandom ColorPreference = "random"
)

// ParseColorPreference accepts the short and long spellings; anything else is random.
func ParseColorPreference(s string) ColorPreference {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "w", "white":
		return PreferWhite
	case "b", "black":
		return PreferBlack
	default:
		return PreferRandom
	}
}
