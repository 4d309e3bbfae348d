package rules

import (
	"fmt"
	"strings"
)

// Move is a candidate move in coordinate form (source, target, optional promotion piece).
type Move struct {
	Source    string `json:"source"`
	Target    string `json:"target"`
	Promotion string `json:"promotion,omitempty"`
}

func (m Move) UCI() string {
	return strings.ToLower(strings.TrimSpace(m.Source) + strings.TrimSpace(m.Target) + strings.TrimSpace(m.Promotion))
}

func (m Move) String() string { return m.UCI() }

// ParseUCI splits "e7e8q" style notation and checks the squares are on the board.
func ParseUCI(s string) (Move, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 4 && len(s) != 5 {
		return Move{}, fmt.Errorf("%w: %q", ErrMalformedMove, s)
	}
	mv := Move{Source: s[0:2], Target: s[2:4]}
	if len(s) == 5 {
		mv.Promotion = s[4:5]
	}
	if err := mv.Validate(); err != nil {
		return Move{}, err
	}
	return mv, nil
}

// Validate checks the shape of the move, not its legality.
func (m Move) Validate() error {
	if !validSquare(m.Source) || !validSquare(m.Target) {
		return fmt.Errorf("%w: %q", ErrMalformedMove, m.UCI())
	}
	if m.Source == m.Target {
		return fmt.Errorf("%w: %q", ErrMalformedMove, m.UCI())
	}
	switch strings.ToLower(m.Promotion) {
	case "", "q", "r", "b", "n":
	default:
		return fmt.Errorf("%w: bad promotion %q", ErrMalformedMove, m.Promotion)
	}
	return nil
}

func validSquare(sq string) bool {
	sq = strings.ToLower(sq)
	if len(sq) != 2 {
		return false
	}
	return sq[0] >= 'a' && sq[0] <= 'h' && sq[1] >= '1' && sq[1] <= '8'
}
