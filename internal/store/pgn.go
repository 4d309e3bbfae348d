package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/park285/cheese-arena/pkg/arenadto"
)

// PGNResult maps a summary result to the PGN result token.
func PGNResult(result string) string {
	switch strings.ToLower(strings.TrimSpace(result)) {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	case "draw":
		return "1/2-1/2"
	default:
		return "*"
	}
}

// BuildPGN renders the summary as PGN with numbered SAN moves.
func BuildPGN(s arenadto.GameSummary) string {
	result := PGNResult(s.Result())
	date := s.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	var b strings.Builder
	header := func(k, v string) { fmt.Fprintf(&b, "[%s \"%s\"]\n", k, sanitizePGN(v)) }
	header("Event", "Arena")
	header("Site", "cheese-arena")
	header("Date", fmt.Sprintf("%04d.%02d.%02d", date.Year(), int(date.Month()), date.Day()))
	header("White", s.White.Name())
	header("Black", s.Black.Name())
	if strings.TrimSpace(s.TimeControl) != "" {
		header("TimeControl", s.TimeControl)
	}
	if strings.TrimSpace(s.Termination) != "" {
		header("Termination", strings.ToLower(s.Termination))
	}
	fmt.Fprintf(&b, "[Result \"%s\"]\n\n", result)

	for i := 0; i < len(s.MovesSAN); i += 2 {
		fmt.Fprintf(&b, "%d. %s", i/2+1, strings.TrimSpace(s.MovesSAN[i]))
		if i+1 < len(s.MovesSAN) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(s.MovesSAN[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(result)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
