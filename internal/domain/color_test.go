package domain

import "testing"

func TestParseColorPreference(t *testing.T) {
	cases := map[string]ColorPreference{
		"w":      PreferWhite,
		"White":  PreferWhite,
		" b ":    PreferBlack,
		"black":  PreferBlack,
		"random": PreferRandom,
		"":       PreferRandom,
		"purple": PreferRandom,
	}
	for in, want := range cases {
		if got := ParseColorPreference(in); got != want {
			t.Fatalf("ParseColorPreference(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOpposite(t *testing.T) {
	if White.Opposite() != Black || Black.Opposite() != White {
		t.Fatalf("opposite colors mismatch")
	}
	if NoColor.Opposite() != NoColor {
		t.Fatalf("expected NoColor to stay NoColor")
	}
}
