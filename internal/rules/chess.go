package rules

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/cheese-arena/internal/domain"
)

var (
	ErrIllegalMove   = errors.New("illegal move")
	ErrMalformedMove = errors.New("malformed move")
	ErrBadPosition   = errors.New("bad position")
)

var pieceValues = map[nchess.PieceType]int{
	nchess.Pawn:   1,
	nchess.Knight: 3,
	nchess.Bishop: 3,
	nchess.Rook:   5,
	nchess.Queen:  9,
}

var pieceLetters = map[nchess.PieceType]string{
	nchess.Pawn:   "p",
	nchess.Knight: "n",
	nchess.Bishop: "b",
	nchess.Rook:   "r",
	nchess.Queen:  "q",
}

// Chess is the rules collaborator. It holds no state; each Position carries
// its own replayed game and Apply extends a clone of it.
type Chess struct{}

func New() *Chess { return &Chess{} }

func (c *Chess) Start() Position {
	return positionOf("", nil, nchess.NewGame())
}

// FromFEN starts a position from an arbitrary FEN.
func (c *Chess) FromFEN(fen string) (Position, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		return c.Start(), nil
	}
	game, err := replay(fen, nil)
	if err != nil {
		return Position{}, err
	}
	return positionOf(fen, nil, game), nil
}

func (c *Chess) LegalMoves(p Position) []Move {
	game, err := gameOf(p)
	if err != nil {
		return nil
	}
	valid := game.ValidMoves()
	out := make([]Move, 0, len(valid))
	for i := range valid {
		mv, err := ParseUCI(valid[i].String())
		if err != nil {
			continue
		}
		out = append(out, mv)
	}
	return out
}

func (c *Chess) IsLegal(p Position, mv Move) bool {
	if mv.Validate() != nil || p.verdict.Concluded {
		return false
	}
	game, err := gameOf(p)
	if err != nil {
		return false
	}
	want := mv.UCI()
	for _, legal := range game.ValidMoves() {
		if legal.String() == want {
			return true
		}
	}
	return false
}

// Apply returns the position after mv. p itself is never modified.
func (c *Chess) Apply(p Position, mv Move) (Position, Applied, error) {
	if err := mv.Validate(); err != nil {
		return Position{}, Applied{}, err
	}
	if p.verdict.Concluded {
		return Position{}, Applied{}, fmt.Errorf("%w: position is terminal", ErrIllegalMove)
	}
	current, err := gameOf(p)
	if err != nil {
		return Position{}, Applied{}, err
	}
	game := current.Clone()
	before := game.Position()
	uci := mv.UCI()
	decoded, err := nchess.UCINotation{}.Decode(before, uci)
	if err != nil {
		return Position{}, Applied{}, fmt.Errorf("%w: %s", ErrIllegalMove, uci)
	}
	// Move rejects anything outside the legal set; before stays the prior position.
	if err := game.Move(decoded, nil); err != nil {
		return Position{}, Applied{}, fmt.Errorf("%w: %s", ErrIllegalMove, uci)
	}
	san := nchess.AlgebraicNotation{}.Encode(before, decoded)
	capture := before.Board().Piece(decoded.S2()) != nchess.NoPiece || decoded.HasTag(nchess.EnPassant)
	moves := append(append([]string(nil), p.moves...), uci)
	return positionOf(p.base, moves, game), Applied{UCI: uci, SAN: san, Capture: capture}, nil
}

func (c *Chess) Terminal(p Position) Verdict { return p.verdict }

// HasInsufficientMaterial reports whether side cannot deliver mate with the
// pieces it has left: a bare king, or a king with a single knight or bishop.
func (c *Chess) HasInsufficientMaterial(p Position, side domain.Color) bool {
	board, err := boardOf(p)
	if err != nil {
		return false
	}
	minors := 0
	for file := nchess.FileA; file <= nchess.FileH; file++ {
		for rank := nchess.Rank1; rank <= nchess.Rank8; rank++ {
			piece := board.Piece(nchess.NewSquare(file, rank))
			if piece == nchess.NoPiece || colorFrom(piece.Color()) != side {
				continue
			}
			switch piece.Type() {
			case nchess.King:
			case nchess.Knight, nchess.Bishop:
				minors++
			default:
				return false
			}
		}
	}
	return minors <= 1
}

// Material sums piece values still on the board per side.
func (c *Chess) Material(p Position) (white, black int) {
	board, err := boardOf(p)
	if err != nil {
		return 0, 0
	}
	for file := nchess.FileA; file <= nchess.FileH; file++ {
		for rank := nchess.Rank1; rank <= nchess.Rank8; rank++ {
			piece := board.Piece(nchess.NewSquare(file, rank))
			if piece == nchess.NoPiece {
				continue
			}
			if colorFrom(piece.Color()) == domain.White {
				white += pieceValues[piece.Type()]
			} else {
				black += pieceValues[piece.Type()]
			}
		}
	}
	return white, black
}

// Captured lists the pieces each side has taken, in the order they fell.
func (c *Chess) Captured(p Position) (byWhite, byBlack []string) {
	byWhite, byBlack = []string{}, []string{}
	game, err := gameOf(p)
	if err != nil {
		return byWhite, byBlack
	}
	moves := game.Moves()
	positions := game.Positions()
	for i, mv := range moves {
		if i >= len(positions) {
			break
		}
		pos := positions[i]
		target := mv.S2()
		if mv.HasTag(nchess.EnPassant) {
			if pos.Turn() == nchess.White {
				target = nchess.NewSquare(mv.S2().File(), mv.S2().Rank()-1)
			} else {
				target = nchess.NewSquare(mv.S2().File(), mv.S2().Rank()+1)
			}
		}
		piece := pos.Board().Piece(target)
		if piece == nchess.NoPiece || piece.Type() == nchess.King {
			continue
		}
		letter, ok := pieceLetters[piece.Type()]
		if !ok {
			continue
		}
		if pos.Turn() == nchess.White {
			byWhite = append(byWhite, letter)
		} else {
			byBlack = append(byBlack, letter)
		}
	}
	return byWhite, byBlack
}

// SAN returns the SAN of every move applied, in order.
func (c *Chess) SAN(p Position) []string {
	game, err := gameOf(p)
	if err != nil {
		return nil
	}
	moves := game.Moves()
	positions := game.Positions()
	out := make([]string, 0, len(moves))
	for i, mv := range moves {
		if i >= len(positions) {
			break
		}
		out = append(out, nchess.AlgebraicNotation{}.Encode(positions[i], mv))
	}
	return out
}

// gameOf returns the game cached on p, replaying only positions that were
// not built by this package.
func gameOf(p Position) (*nchess.Game, error) {
	if p.game != nil {
		return p.game, nil
	}
	return replay(p.base, p.moves)
}

func replay(base string, moves []string) (*nchess.Game, error) {
	game := nchess.NewGame()
	if base != "" {
		opt, err := nchess.FEN(base)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPosition, err)
		}
		game = nchess.NewGame(opt)
	}
	for _, mv := range moves {
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("%w: replay %s: %v", ErrBadPosition, mv, err)
		}
	}
	return game, nil
}

func boardOf(p Position) (*nchess.Board, error) {
	if p.game != nil {
		return p.game.Position().Board(), nil
	}
	fen := p.fen
	if fen == "" {
		return nchess.NewGame().Position().Board(), nil
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPosition, err)
	}
	return nchess.NewGame(opt).Position().Board(), nil
}

func positionOf(base string, moves []string, game *nchess.Game) Position {
	// warm the legal move cache so later reads never write to the game
	game.ValidMoves()
	return Position{
		game:    game,
		base:    base,
		moves:   moves,
		fen:     game.FEN(),
		turn:    colorFrom(game.Position().Turn()),
		verdict: verdictOf(game),
	}
}

func verdictOf(game *nchess.Game) Verdict {
	var victor domain.Color
	switch game.Outcome() {
	case nchess.NoOutcome:
		return Verdict{}
	case nchess.WhiteWon:
		victor = domain.White
	case nchess.BlackWon:
		victor = domain.Black
	}
	return Verdict{Concluded: true, Termination: terminationOf(game.Method()), Victor: victor}
}

func terminationOf(m nchess.Method) string {
	switch m {
	case nchess.Checkmate:
		return TerminationCheckmate
	case nchess.Stalemate:
		return TerminationStalemate
	case nchess.InsufficientMaterial:
		return TerminationInsufficient
	case nchess.ThreefoldRepetition:
		return TerminationThreefold
	case nchess.FivefoldRepetition:
		return TerminationFivefold
	case nchess.FiftyMoveRule:
		return TerminationFiftyMove
	case nchess.SeventyFiveMoveRule:
		return TerminationSeventyFiveMove
	default:
		return strings.ToLower(m.String())
	}
}

func colorFrom(c nchess.Color) domain.Color {
	if c == nchess.White {
		return domain.White
	}
	return domain.Black
}
