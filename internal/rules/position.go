package rules

import (
	nchess "github.com/corentings/chess/v2"

	"github.com/park285/cheese-arena/internal/domain"
)

// Position is an immutable game position: the starting FEN plus every move
// applied since, with the derived FEN, side to move and terminal verdict.
// game is the replayed history; it is never moved on after construction.
type Position struct {
	base    string
	moves   []string
	fen     string
	turn    domain.Color
	verdict Verdict
	game    *nchess.Game
}

func (p Position) FEN() string { return p.fen }

func (p Position) Turn() domain.Color { return p.turn }

// Ply is the number of half-moves applied since the starting position.
func (p Position) Ply() int { return len(p.moves) }

// Verdict reports whether a position is terminal and how it ended.
type Verdict struct {
	Concluded   bool
	Termination string
	Victor      domain.Color
}

// Applied describes a move that was accepted by Apply.
type Applied struct {
	UCI     string
	SAN     string
	Capture bool
}

const (
	TerminationCheckmate           = "checkmate"
	TerminationStalemate           = "stalemate"
	TerminationInsufficient        = "insufficient material"
	TerminationThreefold           = "threefold repetition"
	TerminationFivefold            = "fivefold repetition"
	TerminationFiftyMove           = "fifty move rule"
	TerminationSeventyFiveMove     = "seventy-five move rule"
	TerminationResignation         = "resignation"
	TerminationTimeout             = "timeout"
	TerminationTimeoutInsufficient = "timeout vs insufficient material"
)
