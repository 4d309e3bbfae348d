package game

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/dependencies/clock"
	"github.com/park285/cheese-arena/internal/events"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/internal/timerq"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

// recentLimit bounds how many concluded games stay queryable.
const recentLimit = 256

type StartedFunc func(snap arenadto.GameSnapshot)

type ConcludedFunc func(summary arenadto.GameSummary, snap arenadto.GameSnapshot)

type Option func(*Registry)

func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l.Named("game")
		}
	}
}

func WithIDs(gen func() string) Option {
	return func(r *Registry) {
		if gen != nil {
			r.newID = gen
		}
	}
}

func WithPolicy(p InsufficientPolicy) Option {
	return func(r *Registry) {
		if p != "" {
			r.policy = p
		}
	}
}

// Registry owns every active session and the one-game-per-player index.
// Concluded sessions leave the live maps and are kept in a short recent list.
type Registry struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	byPlayer  map[string]string
	deadlines *timerq.Queue
	recent    map[string]arenadto.GameSnapshot
	order     []string

	rules  Rules
	pub    events.Publisher
	clock  clock.Clock
	policy InsufficientPolicy
	newID  func() string
	logger *zap.Logger

	obsSeq    int
	started   map[int]StartedFunc
	concluded map[int]ConcludedFunc
}

func NewRegistry(rs Rules, pub events.Publisher, clk clock.Clock, opts ...Option) *Registry {
	if rs == nil {
		rs = rules.New()
	}
	if clk == nil {
		clk = clock.New()
	}
	r := &Registry{
		sessions:  make(map[string]*Session),
		byPlayer:  make(map[string]string),
		deadlines: timerq.New(),
		recent:    make(map[string]arenadto.GameSnapshot),
		rules:     rs,
		pub:       pub,
		clock:     clk,
		policy:    PolicyDraw,
		newID:     uuid.NewString,
		logger:    zap.NewNop(),
		started:   make(map[int]StartedFunc),
		concluded: make(map[int]ConcludedFunc),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnStarted registers fn for every started game; the returned func unregisters it.
func (r *Registry) OnStarted(fn StartedFunc) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obsSeq++
	id := r.obsSeq
	r.started[id] = fn
	return func() {
		r.mu.Lock()
		delete(r.started, id)
		r.mu.Unlock()
	}
}

// OnConcluded registers fn for every concluded game; the returned func unregisters it.
func (r *Registry) OnConcluded(fn ConcludedFunc) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obsSeq++
	id := r.obsSeq
	r.concluded[id] = fn
	return func() {
		r.mu.Lock()
		delete(r.concluded, id)
		r.mu.Unlock()
	}
}

// hooks run after the registry lock is released.
type hooks []func()

func (h hooks) run() {
	for _, fn := range h {
		fn()
	}
}

// Prepare validates setup and builds a session without registering it.
func (r *Registry) Prepare(setup Setup) (*Session, error) {
	if !setup.White.Valid() || !setup.Black.Valid() {
		return nil, arenadto.ErrInvalidRequest.With("both players are required")
	}
	if setup.White.ID == setup.Black.ID {
		return nil, arenadto.ErrSelfJoin
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range []string{setup.White.ID, setup.Black.ID} {
		if _, busy := r.byPlayer[p]; busy {
			return nil, arenadto.ErrAlreadyInGame.With(fmt.Sprintf("player %s already has an active game", p))
		}
	}
	return newSession(r.newID(), setup, r.rules, r.policy)
}

// Start registers a prepared session, starts its clock and announces it.
func (r *Registry) Start(s *Session) (arenadto.GameSnapshot, error) {
	r.mu.Lock()
	if _, dup := r.sessions[s.id]; dup {
		r.mu.Unlock()
		return arenadto.GameSnapshot{}, arenadto.ErrInternal.With("game id reused")
	}
	for _, p := range []string{s.white.ID, s.black.ID} {
		if _, busy := r.byPlayer[p]; busy {
			r.mu.Unlock()
			return arenadto.GameSnapshot{}, arenadto.ErrAlreadyInGame
		}
	}
	s.begin(r.clock.Now())
	r.sessions[s.id] = s
	r.byPlayer[s.white.ID] = s.id
	r.byPlayer[s.black.ID] = s.id
	r.schedule(s)
	snap := s.Snapshot()
	r.logger.Info("game_start",
		zap.String("game_id", s.id),
		zap.String("lobby_id", s.LobbyID()),
		zap.String("white", s.white.ID),
		zap.String("black", s.black.ID),
		zap.Bool("timed", s.Timed()),
	)
	r.publish(func() error {
		_, err := events.GameStarted.Publish(r.pub, snap, r.target(s))
		return err
	}, s.id)
	var h hooks
	for _, fn := range r.started {
		h = append(h, func() { fn(snap) })
	}
	r.mu.Unlock()
	h.run()
	return snap, nil
}

// Get returns an active or recently concluded game.
func (r *Registry) Get(gameID string) (arenadto.GameSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[gameID]; ok {
		return s.Snapshot(), nil
	}
	if snap, ok := r.recent[gameID]; ok {
		return snap, nil
	}
	return arenadto.GameSnapshot{}, arenadto.ErrNotFound.With("game not found")
}

func (r *Registry) ByPlayer(playerID string) (arenadto.GameSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byPlayer[playerID]
	if !ok {
		return arenadto.GameSnapshot{}, false
	}
	return r.sessions[id].Snapshot(), true
}

func (r *Registry) HasActiveGame(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byPlayer[playerID]
	return ok
}

// List returns snapshots of every active game ordered by start time.
func (r *Registry) List() []arenadto.GameSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]arenadto.GameSnapshot, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// SubmitMove plays mv for playerID in gameID, or in the player's active game
// when gameID is empty.
func (r *Registry) SubmitMove(playerID, gameID string, mv rules.Move) (arenadto.GameMoved, error) {
	r.mu.Lock()
	res, h, err := r.submitLocked(playerID, gameID, mv)
	r.mu.Unlock()
	h.run()
	return res, err
}

func (r *Registry) submitLocked(playerID, gameID string, mv rules.Move) (arenadto.GameMoved, hooks, error) {
	s, err := r.resolve(playerID, gameID)
	if err != nil {
		return arenadto.GameMoved{}, nil, err
	}
	if _, ok := s.ColorOf(playerID); !ok {
		return arenadto.GameMoved{}, nil, arenadto.ErrUnauthorized
	}
	now := r.clock.Now()
	if s.CheckTimeout(now) {
		return arenadto.GameMoved{}, r.finish(s), arenadto.ErrIllegalMove.With("clock exhausted")
	}
	if !s.IsPlayerTurn(playerID) {
		return arenadto.GameMoved{}, nil, arenadto.ErrWrongTurn
	}
	if err := mv.Validate(); err != nil {
		return arenadto.GameMoved{}, nil, arenadto.ErrIllegalMove.With(err.Error())
	}
	if !s.IsValidMove(mv, now) {
		return arenadto.GameMoved{}, nil, arenadto.ErrIllegalMove.With(mv.UCI())
	}
	applied, err := s.Move(mv, now)
	if err != nil {
		return arenadto.GameMoved{}, nil, err
	}
	snap := s.Snapshot()
	res := arenadto.GameMoved{Move: snap.Moves[len(snap.Moves)-1], Snapshot: snap}
	r.logger.Debug("game_move",
		zap.String("game_id", s.id),
		zap.String("player_id", playerID),
		zap.String("uci", applied.UCI),
		zap.Duration("elapsed", applied.Elapsed),
	)
	r.publish(func() error {
		_, err := events.GameMoved.Publish(r.pub, res, r.target(s))
		return err
	}, s.id)
	if !s.Active() {
		return res, r.finish(s), nil
	}
	r.schedule(s)
	return res, nil, nil
}

// Resign concedes playerID's game.
func (r *Registry) Resign(playerID, gameID string) (arenadto.GameEnded, error) {
	r.mu.Lock()
	res, h, err := r.resignLocked(playerID, gameID)
	r.mu.Unlock()
	h.run()
	return res, err
}

func (r *Registry) resignLocked(playerID, gameID string) (arenadto.GameEnded, hooks, error) {
	s, err := r.resolve(playerID, gameID)
	if err != nil {
		return arenadto.GameEnded{}, nil, err
	}
	if _, ok := s.ColorOf(playerID); !ok {
		return arenadto.GameEnded{}, nil, arenadto.ErrUnauthorized
	}
	now := r.clock.Now()
	if s.CheckTimeout(now) {
		return arenadto.GameEnded{}, r.finish(s), arenadto.ErrGameNotActive
	}
	if err := s.Resign(playerID, now); err != nil {
		return arenadto.GameEnded{}, nil, err
	}
	h := r.finish(s)
	c, _ := s.Conclusion()
	return arenadto.GameEnded{GameID: s.id, Conclusion: c, Snapshot: s.Snapshot()}, h, nil
}

// Expire concludes every game whose side to move ran out of time by now and
// returns their ids.
func (r *Registry) Expire(now time.Time) []string {
	r.mu.Lock()
	var (
		h     hooks
		ended []string
	)
	for _, id := range r.deadlines.Due(now) {
		s, ok := r.sessions[id]
		if !ok {
			continue
		}
		if s.CheckTimeout(now) {
			ended = append(ended, id)
			h = append(h, r.finish(s)...)
			continue
		}
		r.schedule(s)
	}
	r.mu.Unlock()
	h.run()
	return ended
}

// NextDeadline reports the earliest clock flag among active games.
func (r *Registry) NextDeadline() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deadlines.Next()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Audit checks the player index against the sessions it points to.
func (r *Registry) Audit() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for playerID, gameID := range r.byPlayer {
		s, ok := r.sessions[gameID]
		if !ok {
			return fmt.Errorf("player %s indexed to missing game %s", playerID, gameID)
		}
		if _, in := s.ColorOf(playerID); !in {
			return fmt.Errorf("player %s indexed to game %s they do not play", playerID, gameID)
		}
		if !s.Active() {
			return fmt.Errorf("concluded game %s still live", gameID)
		}
	}
	for id, s := range r.sessions {
		if r.byPlayer[s.white.ID] != id || r.byPlayer[s.black.ID] != id {
			return fmt.Errorf("game %s missing from player index", id)
		}
	}
	return nil
}

func (r *Registry) Reset() {
	r.mu.Lock()
	r.sessions = make(map[string]*Session)
	r.byPlayer = make(map[string]string)
	r.recent = make(map[string]arenadto.GameSnapshot)
	r.order = nil
	r.deadlines.Reset()
	r.mu.Unlock()
}

func (r *Registry) resolve(playerID, gameID string) (*Session, error) {
	if gameID == "" {
		id, ok := r.byPlayer[playerID]
		if !ok {
			return nil, arenadto.ErrNotFound.With("no active game")
		}
		gameID = id
	}
	if s, ok := r.sessions[gameID]; ok {
		return s, nil
	}
	if _, ok := r.recent[gameID]; ok {
		return nil, arenadto.ErrGameNotActive
	}
	return nil, arenadto.ErrNotFound.With("game not found")
}

func (r *Registry) schedule(s *Session) {
	if at, ok := s.Deadline(); ok {
		r.deadlines.Schedule(s.id, at)
		return
	}
	r.deadlines.Cancel(s.id)
}

// finish removes a concluded session, announces the end and returns the
// observer calls to make once the lock is released.
func (r *Registry) finish(s *Session) hooks {
	delete(r.sessions, s.id)
	for _, p := range []string{s.white.ID, s.black.ID} {
		if r.byPlayer[p] == s.id {
			delete(r.byPlayer, p)
		}
	}
	r.deadlines.Cancel(s.id)

	snap := s.Snapshot()
	r.remember(snap)
	c, _ := s.Conclusion()
	r.logger.Info("game_end",
		zap.String("game_id", s.id),
		zap.String("termination", c.Termination),
		zap.String("victor", c.Victor.String()),
		zap.Int("plies", len(snap.Moves)),
	)
	ended := arenadto.GameEnded{GameID: s.id, Conclusion: c, Snapshot: snap}
	r.publish(func() error {
		_, err := events.GameEnded.Publish(r.pub, ended, r.target(s))
		return err
	}, s.id)

	summary := s.Summary()
	var h hooks
	for _, fn := range r.concluded {
		h = append(h, func() { fn(summary, snap) })
	}
	return h
}

func (r *Registry) remember(snap arenadto.GameSnapshot) {
	if _, ok := r.recent[snap.ID]; !ok {
		r.order = append(r.order, snap.ID)
	}
	r.recent[snap.ID] = snap
	for len(r.order) > recentLimit {
		delete(r.recent, r.order[0])
		r.order = r.order[1:]
	}
}

func (r *Registry) target(s *Session) events.Target {
	return events.Channels(
		events.GameTopic(s.id),
		events.PlayerTopic(s.white.ID),
		events.PlayerTopic(s.black.ID),
	)
}

func (r *Registry) publish(fn func() error, gameID string) {
	if r.pub == nil {
		return
	}
	if err := fn(); err != nil {
		r.logger.Warn("game_publish_error", zap.String("game_id", gameID), zap.Error(err))
	}
}
