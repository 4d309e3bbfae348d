package lobby

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/dependencies/clock"
	"github.com/park285/cheese-arena/internal/dependencies/random"
	"github.com/park285/cheese-arena/internal/domain"
	"github.com/park285/cheese-arena/internal/events"
	"github.com/park285/cheese-arena/internal/game"
	"github.com/park285/cheese-arena/internal/timectl"
	"github.com/park285/cheese-arena/internal/timerq"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6
	codeAttempts = 5
	recentLimit  = 256
)

// Games is the part of the game registry a join needs.
type Games interface {
	HasActiveGame(playerID string) bool
	Prepare(setup game.Setup) (*game.Session, error)
	Start(s *game.Session) (arenadto.GameSnapshot, error)
}

type Config struct {
	// TTL ends a lobby nobody joined; zero keeps lobbies open indefinitely.
	TTL     time.Duration
	Presets *timectl.Catalog
}

type Registry struct {
	mu        sync.Mutex
	byID      map[string]*Lobby
	byCreator map[string]string
	invites   map[string]map[string]struct{}
	expiry    *timerq.Queue
	ended     map[string]*Lobby
	order     []string

	cfg    Config
	games  Games
	pub    events.Publisher
	clock  clock.Clock
	random random.Random
	logger *zap.Logger
}

func NewRegistry(cfg Config, games Games, pub events.Publisher, clk clock.Clock, rnd random.Random, logger *zap.Logger) *Registry {
	if cfg.Presets == nil {
		cfg.Presets = timectl.Default()
	}
	if clk == nil {
		clk = clock.New()
	}
	if rnd == nil {
		rnd = random.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		byID:      make(map[string]*Lobby),
		byCreator: make(map[string]string),
		invites:   make(map[string]map[string]struct{}),
		expiry:    timerq.New(),
		ended:     make(map[string]*Lobby),
		cfg:       cfg,
		games:     games,
		pub:       pub,
		clock:     clk,
		random:    rnd,
		logger:    logger.Named("lobby"),
	}
}

// Create opens a lobby for creator. invitees are notified on their invites topic.
func (r *Registry) Create(creator domain.Player, cfg arenadto.LobbyConfig, invitees ...string) (arenadto.LobbyView, error) {
	if !creator.Valid() {
		return arenadto.LobbyView{}, arenadto.ErrInvalidRequest.With("creator is required")
	}
	tc, err := r.cfg.Presets.Resolve(cfg.Time)
	if err != nil {
		return arenadto.LobbyView{}, err
	}
	if cfg.ColorPreference == "" {
		cfg.ColorPreference = domain.PreferRandom
	} else {
		cfg.ColorPreference = domain.ParseColorPreference(string(cfg.ColorPreference))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byCreator[creator.ID]; ok {
		return arenadto.LobbyView{}, arenadto.ErrAlreadyInLobby
	}
	if r.games != nil && r.games.HasActiveGame(creator.ID) {
		return arenadto.LobbyView{}, arenadto.ErrAlreadyInGame
	}
	id, err := r.allocID()
	if err != nil {
		return arenadto.LobbyView{}, err
	}

	now := r.clock.Now()
	l := &Lobby{
		id:        id,
		creator:   creator,
		config:    cfg,
		time:      tc,
		status:    StatusOpen,
		invited:   normalizeInvitees(creator.ID, invitees),
		createdAt: now,
	}
	if r.cfg.TTL > 0 {
		l.expiresAt = now.Add(r.cfg.TTL)
		r.expiry.Schedule(id, l.expiresAt)
	}
	r.byID[id] = l
	r.byCreator[creator.ID] = id
	for _, p := range l.invited {
		set, ok := r.invites[p]
		if !ok {
			set = make(map[string]struct{})
			r.invites[p] = set
		}
		set[id] = struct{}{}
	}

	view := l.View()
	r.logger.Info("lobby_create",
		zap.String("lobby_id", id),
		zap.String("creator_id", creator.ID),
		zap.String("color", string(cfg.ColorPreference)),
		zap.Int("invited", len(l.invited)),
	)
	r.publish(func() error {
		_, err := events.LobbyCreated.Publish(r.pub, view, events.Channels(events.PlayerTopic(creator.ID), events.LobbyTopic(id)))
		return err
	}, id)
	for _, p := range l.invited {
		r.publish(func() error {
			_, err := events.LobbyInvited.Publish(r.pub, view, events.Channels(events.InvitesTopic(p)))
			return err
		}, id)
	}
	return view, nil
}

// Join starts a game between the lobby's creator and joiner. Everything is
// validated and the session built before any lobby is ended; the joiner's own
// open lobby is ended as superseded, then the target as joined.
func (r *Registry) Join(lobbyID string, joiner domain.Player) (arenadto.GameSnapshot, error) {
	if !joiner.Valid() {
		return arenadto.GameSnapshot{}, arenadto.ErrInvalidRequest.With("joiner is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	l, err := r.liveLocked(lobbyID)
	if err != nil {
		return arenadto.GameSnapshot{}, err
	}
	if l.creator.ID == joiner.ID {
		return arenadto.GameSnapshot{}, arenadto.ErrSelfJoin
	}
	if r.games == nil {
		return arenadto.GameSnapshot{}, arenadto.ErrInternal.With("no game registry")
	}
	if r.games.HasActiveGame(joiner.ID) {
		return arenadto.GameSnapshot{}, arenadto.ErrAlreadyInGame
	}
	if r.games.HasActiveGame(l.creator.ID) {
		return arenadto.GameSnapshot{}, arenadto.ErrAlreadyInGame.With("lobby creator is already playing")
	}

	setup := game.Setup{White: l.creator, Black: joiner, Time: l.time, LobbyID: l.id}
	if l.creatorColor(func() int { return r.random.Intn(2) }) == domain.Black {
		setup.White, setup.Black = joiner, l.creator
	}
	session, err := r.games.Prepare(setup)
	if err != nil {
		return arenadto.GameSnapshot{}, err
	}

	if ownID, ok := r.byCreator[joiner.ID]; ok {
		if err := r.endLocked(r.byID[ownID], ReasonSuperseded, ""); err != nil {
			return arenadto.GameSnapshot{}, err
		}
	}
	if err := r.endLocked(l, ReasonJoined, session.ID()); err != nil {
		return arenadto.GameSnapshot{}, err
	}
	snap, err := r.games.Start(session)
	if err != nil {
		r.logger.Error("lobby_start_game_error", zap.String("lobby_id", l.id), zap.String("game_id", session.ID()), zap.Error(err))
		return arenadto.GameSnapshot{}, err
	}
	r.logger.Info("lobby_start_game",
		zap.String("lobby_id", l.id),
		zap.String("game_id", snap.ID),
		zap.String("white_id", snap.White.ID),
		zap.String("black_id", snap.Black.ID),
	)
	return snap, nil
}

// End closes a lobby. Ending an already ended lobby fails with
// LobbyAlreadyEnded and changes nothing.
func (r *Registry) End(lobbyID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, err := r.liveLocked(lobbyID)
	if err != nil {
		return err
	}
	return r.endLocked(l, reason, "")
}

// Cancel ends the lobby on behalf of its creator.
func (r *Registry) Cancel(lobbyID, actorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, err := r.liveLocked(lobbyID)
	if err != nil {
		return err
	}
	if l.creator.ID != actorID {
		return arenadto.ErrUnauthorized.With("only the creator can cancel a lobby")
	}
	return r.endLocked(l, ReasonCancelled, "")
}

// EndByCreator ends creatorID's open lobby, if any, and returns its id.
func (r *Registry) EndByCreator(creatorID, reason string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byCreator[creatorID]
	if !ok {
		return "", arenadto.ErrNotFound.With("no open lobby")
	}
	return id, r.endLocked(r.byID[id], reason, "")
}

// Get returns an open or recently ended lobby.
func (r *Registry) Get(lobbyID string) (arenadto.LobbyView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.byID[lobbyID]; ok {
		return l.View(), nil
	}
	if l, ok := r.ended[lobbyID]; ok {
		return l.View(), nil
	}
	return arenadto.LobbyView{}, arenadto.ErrNotFound.With("lobby not found")
}

func (r *Registry) ByCreator(playerID string) (arenadto.LobbyView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byCreator[playerID]
	if !ok {
		return arenadto.LobbyView{}, false
	}
	return r.byID[id].View(), true
}

func (r *Registry) HasOpenLobby(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byCreator[playerID]
	return ok
}

// List returns every open lobby, oldest first.
func (r *Registry) List() []arenadto.LobbyView {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]arenadto.LobbyView, 0, len(r.byID))
	for _, l := range r.byID {
		out = append(out, l.View())
	}
	sortViews(out)
	return out
}

// InvitesFor lists open lobbies that invited playerID.
func (r *Registry) InvitesFor(playerID string) []arenadto.LobbyView {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]arenadto.LobbyView, 0, len(r.invites[playerID]))
	for id := range r.invites[playerID] {
		if l, ok := r.byID[id]; ok {
			out = append(out, l.View())
		}
	}
	sortViews(out)
	return out
}

// Creators lists every player with an open lobby.
func (r *Registry) Creators() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.byCreator))
	for p := range r.byCreator {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Expire ends lobbies whose TTL passed by now and returns their ids.
func (r *Registry) Expire(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ended []string
	for _, id := range r.expiry.Due(now) {
		l, ok := r.byID[id]
		if !ok {
			continue
		}
		if err := r.endLocked(l, ReasonExpired, ""); err != nil {
			r.logger.Warn("lobby_expire_error", zap.String("lobby_id", id), zap.Error(err))
			continue
		}
		ended = append(ended, id)
	}
	return ended
}

func (r *Registry) NextDeadline() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.expiry.Next()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// Audit checks the id and creator indices agree.
func (r *Registry) Audit() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.byID) != len(r.byCreator) {
		return fmt.Errorf("lobby index sizes differ: %d by id, %d by creator", len(r.byID), len(r.byCreator))
	}
	for creator, id := range r.byCreator {
		l, ok := r.byID[id]
		if !ok || l.creator.ID != creator || l.status != StatusOpen {
			return fmt.Errorf("creator %s indexed to bad lobby %s", creator, id)
		}
	}
	return nil
}

func (r *Registry) Reset() {
	r.mu.Lock()
	r.byID = make(map[string]*Lobby)
	r.byCreator = make(map[string]string)
	r.invites = make(map[string]map[string]struct{})
	r.ended = make(map[string]*Lobby)
	r.order = nil
	r.expiry.Reset()
	r.mu.Unlock()
}

func (r *Registry) liveLocked(lobbyID string) (*Lobby, error) {
	lobbyID = strings.TrimSpace(lobbyID)
	if l, ok := r.byID[lobbyID]; ok {
		return l, nil
	}
	if _, ok := r.ended[lobbyID]; ok {
		return nil, arenadto.ErrLobbyAlreadyEnded
	}
	return nil, arenadto.ErrNotFound.With("lobby not found")
}

func (r *Registry) endLocked(l *Lobby, reason, gameID string) error {
	if l == nil {
		return arenadto.ErrNotFound.With("lobby not found")
	}
	if l.status == StatusEnded {
		return arenadto.ErrLobbyAlreadyEnded
	}
	l.status = StatusEnded
	delete(r.byID, l.id)
	if r.byCreator[l.creator.ID] == l.id {
		delete(r.byCreator, l.creator.ID)
	}
	r.expiry.Cancel(l.id)
	r.remember(l)

	r.logger.Info("lobby_end", zap.String("lobby_id", l.id), zap.String("reason", reason), zap.String("game_id", gameID))
	ended := arenadto.LobbyEnded{LobbyID: l.id, Reason: reason, GameID: gameID}
	r.publish(func() error {
		_, err := events.LobbyEnded.Publish(r.pub, ended, events.Channels(events.LobbyTopic(l.id), events.PlayerTopic(l.creator.ID)))
		return err
	}, l.id)

	for _, p := range l.invited {
		set := r.invites[p]
		delete(set, l.id)
		if len(set) == 0 {
			delete(r.invites, p)
		}
		revoked := arenadto.InviteRevoked{LobbyID: l.id, Reason: reason}
		r.publish(func() error {
			_, err := events.LobbyInviteRevoked.Publish(r.pub, revoked, events.Channels(events.InvitesTopic(p)))
			return err
		}, l.id)
	}
	return nil
}

func (r *Registry) remember(l *Lobby) {
	r.ended[l.id] = l
	r.order = append(r.order, l.id)
	for len(r.order) > recentLimit {
		delete(r.ended, r.order[0])
		r.order = r.order[1:]
	}
}

// allocID draws lobby codes until one is free.
func (r *Registry) allocID() (string, error) {
	for i := 0; i < codeAttempts; i++ {
		id := "LB-" + r.random.String(codeLength, codeAlphabet)
		if _, live := r.byID[id]; live {
			continue
		}
		if _, old := r.ended[id]; old {
			continue
		}
		return id, nil
	}
	return "", arenadto.ErrInternal.With("failed to allocate lobby code")
}

func (r *Registry) publish(fn func() error, lobbyID string) {
	if r.pub == nil {
		return
	}
	if err := fn(); err != nil {
		r.logger.Warn("lobby_publish_error", zap.String("lobby_id", lobbyID), zap.Error(err))
	}
}

func normalizeInvitees(creatorID string, invitees []string) []string {
	seen := make(map[string]struct{}, len(invitees))
	out := make([]string, 0, len(invitees))
	for _, p := range invitees {
		p = strings.TrimSpace(p)
		if p == "" || p == creatorID {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func sortViews(v []arenadto.LobbyView) {
	sort.Slice(v, func(i, j int) bool {
		if v[i].CreatedAt.Equal(v[j].CreatedAt) {
			return v[i].ID < v[j].ID
		}
		return v[i].CreatedAt.Before(v[j].CreatedAt)
	})
}
