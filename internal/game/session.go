package game

import (
	"fmt"
	"strings"
	"time"

	"github.com/park285/cheese-arena/internal/domain"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/internal/timectl"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

// Rules is the legality collaborator a session consults.
type Rules interface {
	Start() rules.Position
	FromFEN(fen string) (rules.Position, error)
	IsLegal(p rules.Position, mv rules.Move) bool
	Apply(p rules.Position, mv rules.Move) (rules.Position, rules.Applied, error)
	Terminal(p rules.Position) rules.Verdict
	HasInsufficientMaterial(p rules.Position, side domain.Color) bool
	Captured(p rules.Position) (byWhite, byBlack []string)
	Material(p rules.Position) (white, black int)
}

type Status string

const (
	StatusActive    Status = "active"
	StatusConcluded Status = "concluded"
)

// InsufficientPolicy decides a flag fall when the opponent cannot mate.
type InsufficientPolicy string

const (
	PolicyDraw InsufficientPolicy = "draw"
	PolicyLoss InsufficientPolicy = "loss"
)

func ParsePolicy(s string) (InsufficientPolicy, error) {
	switch InsufficientPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyDraw:
		return PolicyDraw, nil
	case PolicyLoss:
		return PolicyLoss, nil
	default:
		return "", fmt.Errorf("unknown timeout policy %q", s)
	}
}

// Setup is everything needed to build a session.
type Setup struct {
	White    domain.Player
	Black    domain.Player
	Time     *timectl.TimeControl
	LobbyID  string
	StartFEN string
}

// AppliedMove is an immutable move log entry.
type AppliedMove struct {
	Move      rules.Move
	UCI       string
	SAN       string
	Capture   bool
	Mover     domain.Player
	Color     domain.Color
	Timestamp time.Time
	Elapsed   time.Duration
}

type clocks struct {
	white, black  time.Duration
	increment     time.Duration
	turnStartedAt time.Time
}

func (c *clocks) of(side domain.Color) time.Duration {
	if side == domain.White {
		return c.white
	}
	return c.black
}

func (c *clocks) set(side domain.Color, d time.Duration) {
	if d < 0 {
		d = 0
	}
	if side == domain.White {
		c.white = d
	} else {
		c.black = d
	}
}

// Session is one live match. It is not safe for concurrent use; the
// Registry serialises access.
type Session struct {
	id         string
	lobbyID    string
	white      domain.Player
	black      domain.Player
	rules      Rules
	policy     InsufficientPolicy
	control    *timectl.TimeControl
	pos        rules.Position
	turn       domain.Color
	clocks     *clocks
	moves      []AppliedMove
	status     Status
	conclusion *arenadto.Conclusion
	startedAt  time.Time
	updatedAt  time.Time
}

func newSession(id string, setup Setup, rs Rules, policy InsufficientPolicy) (*Session, error) {
	pos := rs.Start()
	if setup.StartFEN != "" {
		var err error
		pos, err = rs.FromFEN(setup.StartFEN)
		if err != nil {
			return nil, arenadto.ErrInvalidRequest.With(fmt.Sprintf("bad start position: %v", err))
		}
	}
	s := &Session{
		id:      id,
		lobbyID: setup.LobbyID,
		white:   setup.White,
		black:   setup.Black,
		rules:   rs,
		policy:  policy,
		control: setup.Time,
		pos:     pos,
		turn:    pos.Turn(),
		status:  StatusActive,
	}
	if setup.Time != nil {
		if err := setup.Time.Validate(); err != nil {
			return nil, err
		}
		s.clocks = &clocks{
			white:     time.Duration(setup.Time.WhiteMs) * time.Millisecond,
			black:     time.Duration(setup.Time.BlackMs) * time.Millisecond,
			increment: time.Duration(setup.Time.IncrementMs) * time.Millisecond,
		}
	}
	return s, nil
}

// begin starts the clock of the side to move.
func (s *Session) begin(now time.Time) {
	s.startedAt = now
	s.updatedAt = now
	if s.clocks != nil {
		s.clocks.turnStartedAt = now
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) LobbyID() string { return s.lobbyID }

func (s *Session) Status() Status { return s.status }

func (s *Session) Active() bool { return s.status == StatusActive }

func (s *Session) Turn() domain.Color { return s.turn }

func (s *Session) Timed() bool { return s.clocks != nil }

func (s *Session) White() domain.Player { return s.white }

func (s *Session) Black() domain.Player { return s.black }

func (s *Session) Conclusion() (arenadto.Conclusion, bool) {
	if s.conclusion == nil {
		return arenadto.Conclusion{}, false
	}
	return *s.conclusion, true
}

func (s *Session) Player(side domain.Color) domain.Player {
	if side == domain.White {
		return s.white
	}
	return s.black
}

// ColorOf reports which side playerID plays.
func (s *Session) ColorOf(playerID string) (domain.Color, bool) {
	switch playerID {
	case s.white.ID:
		return domain.White, true
	case s.black.ID:
		return domain.Black, true
	default:
		return domain.NoColor, false
	}
}

func (s *Session) IsPlayerTurn(playerID string) bool {
	return s.Active() && s.Player(s.turn).ID == playerID
}

// Remaining is the clock of side as of now, floored at zero.
func (s *Session) Remaining(side domain.Color, now time.Time) time.Duration {
	if s.clocks == nil {
		return 0
	}
	left := s.clocks.of(side)
	if side == s.turn && s.Active() {
		left -= s.elapsed(now)
	}
	if left < 0 {
		return 0
	}
	return left
}

// Deadline is when the side to move runs out of time.
func (s *Session) Deadline() (time.Time, bool) {
	if s.clocks == nil || !s.Active() {
		return time.Time{}, false
	}
	return s.clocks.turnStartedAt.Add(s.clocks.of(s.turn)), true
}

// IsValidMove asks the rules collaborator about mv and, for timed games,
// requires the mover to still have time.
func (s *Session) IsValidMove(mv rules.Move, now time.Time) bool {
	if !s.Active() {
		return false
	}
	if s.clocks != nil && s.Remaining(s.turn, now) <= 0 {
		return false
	}
	return s.rules.IsLegal(s.pos, mv)
}

// Move applies mv for the side to move. Callers check IsPlayerTurn and
// IsValidMove first. Nothing is changed unless the whole move applies.
func (s *Session) Move(mv rules.Move, now time.Time) (AppliedMove, error) {
	if !s.Active() {
		return AppliedMove{}, arenadto.ErrGameNotActive
	}
	elapsed := s.elapsed(now)
	var left time.Duration
	if s.clocks != nil {
		left = s.clocks.of(s.turn) - elapsed
		if left <= 0 {
			return AppliedMove{}, arenadto.ErrIllegalMove.With("clock exhausted")
		}
	}
	next, applied, err := s.rules.Apply(s.pos, mv)
	if err != nil {
		return AppliedMove{}, arenadto.ErrIllegalMove.With(err.Error())
	}

	entry := AppliedMove{
		Move:      rules.Move{Source: strings.ToLower(mv.Source), Target: strings.ToLower(mv.Target), Promotion: strings.ToLower(mv.Promotion)},
		UCI:       applied.UCI,
		SAN:       applied.SAN,
		Capture:   applied.Capture,
		Mover:     s.Player(s.turn),
		Color:     s.turn,
		Timestamp: now,
		Elapsed:   elapsed,
	}
	s.pos = next
	s.moves = append(s.moves, entry)
	s.updatedAt = now
	if s.clocks != nil {
		s.clocks.set(s.turn, left+s.clocks.increment)
	}

	if v := s.rules.Terminal(next); v.Concluded {
		s.conclude(v.Termination, v.Victor)
		return entry, nil
	}
	s.turn = next.Turn()
	if s.clocks != nil {
		s.clocks.turnStartedAt = now
	}
	return entry, nil
}

// Resign concedes the game for playerID.
func (s *Session) Resign(playerID string, now time.Time) error {
	if !s.Active() {
		return arenadto.ErrGameNotActive
	}
	side, ok := s.ColorOf(playerID)
	if !ok {
		return arenadto.ErrUnauthorized
	}
	s.stopClock(now)
	s.updatedAt = now
	s.conclude(rules.TerminationResignation, side.Opposite())
	return nil
}

// CheckTimeout concludes the game if the side to move has run out of time.
// It reports whether it did.
func (s *Session) CheckTimeout(now time.Time) bool {
	if !s.Active() || s.clocks == nil {
		return false
	}
	if s.Remaining(s.turn, now) > 0 {
		return false
	}
	flagged := s.turn
	s.clocks.set(flagged, 0)
	s.updatedAt = now
	winner := flagged.Opposite()
	if s.rules.HasInsufficientMaterial(s.pos, winner) {
		if s.policy == PolicyLoss {
			s.conclude(rules.TerminationTimeoutInsufficient, winner)
		} else {
			s.conclude(rules.TerminationTimeoutInsufficient, domain.NoColor)
		}
		return true
	}
	s.conclude(rules.TerminationTimeout, winner)
	return true
}

func (s *Session) elapsed(now time.Time) time.Duration {
	if s.clocks == nil {
		return 0
	}
	d := now.Sub(s.clocks.turnStartedAt)
	if d < 0 {
		return 0
	}
	return d
}

func (s *Session) stopClock(now time.Time) {
	if s.clocks == nil {
		return
	}
	s.clocks.set(s.turn, s.clocks.of(s.turn)-s.elapsed(now))
	s.clocks.turnStartedAt = now
}

func (s *Session) conclude(termination string, victor domain.Color) {
	c := &arenadto.Conclusion{Termination: termination, Victor: victor}
	if victor.Valid() {
		c.VictorID = s.Player(victor).ID
	}
	s.conclusion = c
	s.status = StatusConcluded
}

// Moves returns a copy of the move log.
func (s *Session) Moves() []AppliedMove {
	return append([]AppliedMove(nil), s.moves...)
}

// Snapshot is a detached projection of the session.
func (s *Session) Snapshot() arenadto.GameSnapshot {
	byWhite, byBlack := s.rules.Captured(s.pos)
	matW, matB := s.rules.Material(s.pos)
	snap := arenadto.GameSnapshot{
		ID:        s.id,
		White:     s.white,
		Black:     s.black,
		FEN:       s.pos.FEN(),
		Turn:      s.turn,
		Status:    string(s.status),
		Moves:     make([]arenadto.MoveView, 0, len(s.moves)),
		Captured:  arenadto.CapturedPieces{White: byWhite, Black: byBlack},
		Material:  arenadto.MaterialScore{White: matW, Black: matB},
		StartedAt: s.startedAt,
		UpdatedAt: s.updatedAt,
	}
	for i, mv := range s.moves {
		snap.Moves = append(snap.Moves, moveView(i+1, mv))
	}
	if s.clocks != nil {
		snap.Clocks = &arenadto.ClockView{
			WhiteMs:       s.clocks.white.Milliseconds(),
			BlackMs:       s.clocks.black.Milliseconds(),
			IncrementMs:   s.clocks.increment.Milliseconds(),
			TurnStartedAt: s.clocks.turnStartedAt,
			Running:       s.Active(),
		}
	}
	if s.conclusion != nil {
		c := *s.conclusion
		snap.Conclusion = &c
	}
	return snap
}

// Summary is the read-only record handed to persistence.
func (s *Session) Summary() arenadto.GameSummary {
	sum := arenadto.GameSummary{
		GameID:    s.id,
		White:     s.white,
		Black:     s.black,
		MovesUCI:  make([]string, 0, len(s.moves)),
		MovesSAN:  make([]string, 0, len(s.moves)),
		FinalFEN:  s.pos.FEN(),
		StartedAt: s.startedAt,
		EndedAt:   s.updatedAt,
	}
	if s.control != nil {
		sum.TimeControl = s.control.String()
	}
	for _, mv := range s.moves {
		sum.MovesUCI = append(sum.MovesUCI, mv.UCI)
		sum.MovesSAN = append(sum.MovesSAN, mv.SAN)
	}
	if s.conclusion != nil {
		sum.Termination = s.conclusion.Termination
		sum.Victor = s.conclusion.Victor
		sum.VictorID = s.conclusion.VictorID
	}
	return sum
}

func moveView(ply int, mv AppliedMove) arenadto.MoveView {
	return arenadto.MoveView{
		Ply:       ply,
		Source:    mv.Move.Source,
		Target:    mv.Move.Target,
		Promotion: mv.Move.Promotion,
		UCI:       mv.UCI,
		SAN:       mv.SAN,
		MoverID:   mv.Mover.ID,
		Color:     mv.Color,
		Timestamp: mv.Timestamp,
		ElapsedMs: mv.Elapsed.Milliseconds(),
	}
}
