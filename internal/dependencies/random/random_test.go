package random

import (
	"strings"
	"testing"
)

func TestStringUsesAlphabet(t *testing.T) {
	r := New()
	const alphabet = "AB"
	s := r.String(32, alphabet)
	if len(s) != 32 {
		t.Fatalf("len = %d", len(s))
	}
	for _, ch := range s {
		if !strings.ContainsRune(alphabet, ch) {
			t.Fatalf("unexpected rune %q", ch)
		}
	}
}

func TestIntnBounds(t *testing.T) {
	r := New()
	for i := 0; i < 100; i++ {
		if v := r.Intn(2); v < 0 || v > 1 {
			t.Fatalf("Intn(2) = %d", v)
		}
	}
	if r.Intn(0) != 0 {
		t.Fatalf("Intn(0) should be 0")
	}
}
