package arenadto

import (
	"time"

	"github.com/park285/cheese-arena/internal/domain"
)

// GameSummary is the read-only record handed to persistence once a game concludes.
type GameSummary struct {
	GameID      string        `json:"gameId"`
	White       domain.Player `json:"white"`
	Black       domain.Player `json:"black"`
	TimeControl string        `json:"timeControl,omitempty"`
	Termination string        `json:"termination"`
	Victor      domain.Color  `json:"victor,omitempty"`
	VictorID    string        `json:"victorId,omitempty"`
	MovesUCI    []string      `json:"movesUci"`
	MovesSAN    []string      `json:"movesSan"`
	FinalFEN    string        `json:"finalFen"`
	StartedAt   time.Time     `json:"startedAt"`
	EndedAt     time.Time     `json:"endedAt"`
}

// Result maps the victor to "white", "black" or "draw".
func (s GameSummary) Result() string {
	switch s.Victor {
	case domain.White:
		return "white"
	case domain.Black:
		return "black"
	default:
		return "draw"
	}
}

func (s GameSummary) Duration() time.Duration {
	d := s.EndedAt.Sub(s.StartedAt)
	if d < 0 {
		return 0
	}
	return d
}
