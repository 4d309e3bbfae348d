// Package arena is the request layer in front of the registries. Every action
// takes one lock and runs to completion before the next begins.
package arena

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/broadcast"
	"github.com/park285/cheese-arena/internal/dependencies/clock"
	"github.com/park285/cheese-arena/internal/events"
	"github.com/park285/cheese-arena/internal/game"
	"github.com/park285/cheese-arena/internal/lobby"
	"github.com/park285/cheese-arena/internal/presence"
	"github.com/park285/cheese-arena/internal/store"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

const DefaultSweepInterval = 250 * time.Millisecond

type Config struct {
	SweepInterval        time.Duration
	HistoryLimit         int
	EndLobbyOnDisconnect bool
}

// Deps are the collaborators an Arena orchestrates. Summaries and History
// may be nil.
type Deps struct {
	Channels  *broadcast.Registry
	Presence  *presence.Tracker
	Lobbies   *lobby.Registry
	Games     *game.Registry
	Summaries *store.Dispatcher
	History   store.HistoryReader
	Clock     clock.Clock
	Logger    *zap.Logger
}

type Arena struct {
	mu sync.Mutex

	// connection id -> player id, and the reverse
	conns   map[string]string
	players map[string]map[string]struct{}

	cfg       Config
	channels  *broadcast.Registry
	presence  *presence.Tracker
	lobbies   *lobby.Registry
	games     *game.Registry
	summaries *store.Dispatcher
	history   store.HistoryReader
	clock     clock.Clock
	logger    *zap.Logger

	unsubscribe []func()
}

func New(cfg Config, deps Deps) *Arena {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	a := &Arena{
		conns:     make(map[string]string),
		players:   make(map[string]map[string]struct{}),
		cfg:       cfg,
		channels:  deps.Channels,
		presence:  deps.Presence,
		lobbies:   deps.Lobbies,
		games:     deps.Games,
		summaries: deps.Summaries,
		history:   deps.History,
		clock:     deps.Clock,
		logger:    deps.Logger.Named("arena"),
	}
	a.unsubscribe = append(a.unsubscribe,
		a.games.OnStarted(a.gameStarted),
		a.games.OnConcluded(a.gameConcluded),
	)
	return a
}

// Close detaches the arena from the game registry.
func (a *Arena) Close() {
	for _, fn := range a.unsubscribe {
		fn()
	}
	a.unsubscribe = nil
}

func (a *Arena) gameStarted(snap arenadto.GameSnapshot) {
	a.presence.ReportGameStart(snap.White.ID, snap.ID)
	a.presence.ReportGameStart(snap.Black.ID, snap.ID)
}

func (a *Arena) gameConcluded(summary arenadto.GameSummary, snap arenadto.GameSnapshot) {
	a.presence.ReportGameEnd(snap.White.ID, snap.ID)
	a.presence.ReportGameEnd(snap.Black.ID, snap.ID)
	if a.summaries != nil {
		a.summaries.Submit(summary)
	}
	target := events.Channels(events.ActivityTopic(snap.White.ID), events.ActivityTopic(snap.Black.ID))
	if _, err := events.SummaryRecorded.Publish(a.channels, summary, target); err != nil {
		a.logger.Warn("summary_publish_error", zap.String("game_id", summary.GameID), zap.Error(err))
	}
	a.logger.Debug("summary_dispatch",
		zap.String("game_id", summary.GameID),
		zap.String("result", summary.Result()),
	)
}

// Sweep fires every deadline due by now: clock flags, lobby expiry and
// presence timeouts, in that order.
func (a *Arena) Sweep(now time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	flagged := a.games.Expire(now)
	expired := a.lobbies.Expire(now)
	offline := a.presence.Expire(now)
	if len(flagged)+len(expired)+len(offline) > 0 {
		a.logger.Debug("sweep",
			zap.Strings("games_flagged", flagged),
			zap.Strings("lobbies_expired", expired),
			zap.Strings("players_offline", offline),
		)
	}
	return a.auditLocked("sweep")
}

// Run sweeps on a ticker until ctx is done.
func (a *Arena) Run(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.SweepInterval)
	defer ticker.Stop()
	a.logger.Info("sweeper_start", zap.Duration("interval", a.cfg.SweepInterval))
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("sweeper_stop")
			return
		case <-ticker.C:
			if err := a.Sweep(a.clock.Now()); err != nil {
				a.logger.Error("sweep_error", zap.Error(err))
			}
		}
	}
}

// Reset drops every lobby, game, presence record, channel and connection.
func (a *Arena) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.games.Reset()
	a.lobbies.Reset()
	a.presence.Reset()
	a.channels.Reset()
	a.conns = make(map[string]string)
	a.players = make(map[string]map[string]struct{})
	a.logger.Info("arena_reset")
}

// auditLocked checks the cross-registry invariants after a mutation. A
// violation is a bug, so it is logged at DPanic and surfaced as internal.
func (a *Arena) auditLocked(op string) error {
	var problems []error
	for _, id := range a.lobbies.Creators() {
		if a.games.HasActiveGame(id) {
			problems = append(problems, fmt.Errorf("player %s has an open lobby and an active game", id))
		}
	}
	if err := a.games.Audit(); err != nil {
		problems = append(problems, err)
	}
	if err := a.lobbies.Audit(); err != nil {
		problems = append(problems, err)
	}
	if len(problems) == 0 {
		return nil
	}
	err := errors.Join(problems...)
	a.logger.DPanic("invariant_violation", zap.String("op", op), zap.Error(err))
	return arenadto.ErrInternal.With(strings.ReplaceAll(err.Error(), "\n", "; "))
}

// after finishes a mutating action; an audit failure overrides its result.
func (a *Arena) after(op string, err error) error {
	if auditErr := a.auditLocked(op); auditErr != nil {
		return auditErr
	}
	return err
}
