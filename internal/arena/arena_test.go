package arena

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/park285/cheese-arena/internal/broadcast"
	"github.com/park285/cheese-arena/internal/dependencies/mocks"
	"github.com/park285/cheese-arena/internal/domain"
	"github.com/park285/cheese-arena/internal/events"
	"github.com/park285/cheese-arena/internal/game"
	"github.com/park285/cheese-arena/internal/lobby"
	"github.com/park285/cheese-arena/internal/presence"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/internal/store"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

// inbox records every payload the broadcast registry hands to a connection.
type inbox struct {
	mu   sync.Mutex
	byID map[string][]string
	raw  map[string][][]byte
}

func (in *inbox) Send(connID string, payload []byte) error {
	var env struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return err
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	in.byID[connID] = append(in.byID[connID], env.Event)
	in.raw[connID] = append(in.raw[connID], append([]byte(nil), payload...))
	return nil
}

// lobbyEnded decodes the lobby.ended payloads delivered to connID.
func (in *inbox) lobbyEnded(connID string) []arenadto.LobbyEnded {
	in.mu.Lock()
	defer in.mu.Unlock()
	var out []arenadto.LobbyEnded
	for _, raw := range in.raw[connID] {
		var env struct {
			Event string              `json:"event"`
			Data  arenadto.LobbyEnded `json:"data"`
		}
		if json.Unmarshal(raw, &env) == nil && env.Event == events.LobbyEnded.Name() {
			out = append(out, env.Data)
		}
	}
	return out
}

func (in *inbox) events(connID string) []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]string(nil), in.byID[connID]...)
}

type ArenaSuite struct {
	suite.Suite
	clock   *mocks.MockClock
	random  *mocks.MockRandom
	inbox   *inbox
	memory  *store.Memory
	summary *store.Dispatcher
	games   *game.Registry
	arena   *Arena

	alice domain.Player
	bob   domain.Player
	carol domain.Player
}

func TestArenaSuite(t *testing.T) {
	suite.Run(t, new(ArenaSuite))
}

func (s *ArenaSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.inbox = &inbox{byID: make(map[string][]string), raw: make(map[string][][]byte)}
	s.memory = store.NewMemory()
	s.summary = store.NewDispatcher(s.memory, 16, nil)

	channels := broadcast.NewRegistry(nil)
	channels.AttachSender(s.inbox)
	n := 0
	s.games = game.NewRegistry(rules.New(), channels, s.clock,
		game.WithIDs(func() string { n++; return fmt.Sprintf("G%d", n) }))
	lobbies := lobby.NewRegistry(lobby.Config{TTL: 10 * time.Minute}, s.games, channels, s.clock, s.random, nil)
	tracker := presence.NewTracker(channels, s.clock, 30*time.Second, nil)

	s.arena = New(Config{HistoryLimit: 5, EndLobbyOnDisconnect: true}, Deps{
		Channels:  channels,
		Presence:  tracker,
		Lobbies:   lobbies,
		Games:     s.games,
		Summaries: s.summary,
		History:   s.memory,
		Clock:     s.clock,
	})

	s.alice = domain.Player{ID: "alice", DisplayName: "Alice"}
	s.bob = domain.Player{ID: "bob", DisplayName: "Bob"}
	s.carol = domain.Player{ID: "carol", DisplayName: "Carol"}
	for conn, p := range map[string]domain.Player{"c-alice": s.alice, "c-bob": s.bob, "c-carol": s.carol} {
		_, err := s.arena.Identify(conn, p)
		s.Require().NoError(err)
	}
}

func (s *ArenaSuite) TearDownTest() {
	s.arena.Close()
	_ = s.summary.Close(context.Background())
}

func (s *ArenaSuite) meta(p domain.Player) arenadto.RequestMeta {
	return arenadto.RequestMeta{Player: p, ConnectionID: "c-" + p.ID}
}

func (s *ArenaSuite) startGame(template string) arenadto.GameSnapshot {
	created, err := s.arena.CreateLobby(arenadto.CreateLobbyRequest{
		Meta: s.meta(s.alice),
		Config: arenadto.LobbyConfig{
			Time:            &arenadto.TimeSpec{Template: template},
			ColorPreference: domain.PreferWhite,
		},
	})
	s.Require().NoError(err)
	joined, err := s.arena.JoinLobby(arenadto.JoinLobbyRequest{Meta: s.meta(s.bob), LobbyID: created.Lobby.ID})
	s.Require().NoError(err)
	return joined.Game
}

func (s *ArenaSuite) move(p domain.Player, uci string) (arenadto.SubmitMoveResponse, error) {
	mv, err := rules.ParseUCI(uci)
	s.Require().NoError(err)
	return s.arena.SubmitMove(arenadto.SubmitMoveRequest{
		Meta:      s.meta(p),
		Source:    mv.Source,
		Target:    mv.Target,
		Promotion: mv.Promotion,
	})
}

func (s *ArenaSuite) TestCreateAndJoinStartsGame() {
	game := s.startGame("5m")

	s.Equal("alice", game.White.ID)
	s.Equal("bob", game.Black.ID)
	s.Equal(domain.White, game.Turn)
	s.Require().NotNil(game.Clocks)
	s.Equal(int64(300000), game.Clocks.WhiteMs)

	s.Empty(s.arena.ListLobbies().Lobbies)
	s.Contains(s.inbox.events("c-alice"), events.LobbyEnded.Name())
	s.Contains(s.inbox.events("c-alice"), events.GameStarted.Name())
	s.Contains(s.inbox.events("c-bob"), events.GameStarted.Name())

	status, err := s.arena.GetStatus(arenadto.StatusRequest{PlayerID: "alice"})
	s.Require().NoError(err)
	s.True(status.Status.Online)
	s.Equal(game.ID, status.Status.GameID)
}

func (s *ArenaSuite) TestSecondLobbyRejected() {
	_, err := s.arena.CreateLobby(arenadto.CreateLobbyRequest{Meta: s.meta(s.alice)})
	s.Require().NoError(err)
	_, err = s.arena.CreateLobby(arenadto.CreateLobbyRequest{Meta: s.meta(s.alice)})
	s.ErrorIs(err, arenadto.ErrAlreadyInLobby)
	s.Len(s.arena.ListLobbies().Lobbies, 1)
}

func (s *ArenaSuite) TestPlayerInGameCannotOpenLobby() {
	s.startGame("5m")
	_, err := s.arena.CreateLobby(arenadto.CreateLobbyRequest{Meta: s.meta(s.bob)})
	s.ErrorIs(err, arenadto.ErrAlreadyInGame)
}

func (s *ArenaSuite) TestWrongTurnLeavesGameUnchanged() {
	game := s.startGame("5m")
	_, err := s.move(s.bob, "e7e5")
	s.ErrorIs(err, arenadto.ErrWrongTurn)

	after, err := s.arena.QueryGame(arenadto.QueryGameRequest{GameID: game.ID})
	s.Require().NoError(err)
	s.Equal(game.FEN, after.Game.FEN)
	s.Empty(after.Game.Moves)
}

func (s *ArenaSuite) TestLobbyWatcherSeesJoin() {
	created, err := s.arena.CreateLobby(arenadto.CreateLobbyRequest{Meta: s.meta(s.alice)})
	s.Require().NoError(err)
	view, err := s.arena.WatchLobby("c-carol", created.Lobby.ID)
	s.Require().NoError(err)
	s.Equal(created.Lobby.ID, view.ID)

	joined, err := s.arena.JoinLobby(arenadto.JoinLobbyRequest{Meta: s.meta(s.bob), LobbyID: created.Lobby.ID})
	s.Require().NoError(err)

	ended := s.inbox.lobbyEnded("c-carol")
	s.Require().Len(ended, 1)
	s.Equal(created.Lobby.ID, ended[0].LobbyID)
	s.Equal("joined", ended[0].Reason)
	s.Equal(joined.Game.ID, ended[0].GameID)
	s.NotContains(s.inbox.events("c-carol"), events.GameStarted.Name())
}

func (s *ArenaSuite) TestWatchLobbyValidates() {
	_, err := s.arena.WatchLobby("c-carol", "")
	s.ErrorIs(err, arenadto.ErrInvalidRequest)
	_, err = s.arena.WatchLobby("c-carol", "nope")
	s.ErrorIs(err, arenadto.ErrNotFound)

	created, err := s.arena.CreateLobby(arenadto.CreateLobbyRequest{Meta: s.meta(s.alice)})
	s.Require().NoError(err)
	_, err = s.arena.WatchLobby("c-carol", created.Lobby.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.arena.Unwatch("c-carol", arenadto.WatchRequest{LobbyID: created.Lobby.ID}))
	_, err = s.arena.CancelLobby(arenadto.CancelLobbyRequest{Meta: s.meta(s.alice), LobbyID: created.Lobby.ID})
	s.Require().NoError(err)
	s.Empty(s.inbox.lobbyEnded("c-carol"))
}

func (s *ArenaSuite) TestMovesReachWatchers() {
	game := s.startGame("5m")
	watched, err := s.arena.WatchGame("c-carol", game.ID)
	s.Require().NoError(err)
	s.Equal(game.ID, watched.ID)

	s.clock.Advance(2 * time.Second)
	res, err := s.move(s.alice, "e2e4")
	s.Require().NoError(err)
	s.Equal("e4", res.Move.SAN)
	s.Equal(int64(298000), res.Game.Clocks.WhiteMs)
	s.Contains(s.inbox.events("c-carol"), events.GameMoved.Name())

	s.Require().NoError(s.arena.Unwatch("c-carol", arenadto.WatchRequest{GameID: game.ID}))
	_, err = s.move(s.bob, "e7e5")
	s.Require().NoError(err)
	s.Len(s.inbox.events("c-carol"), 1)
}

func (s *ArenaSuite) TestTimeoutSweepConcludesGame() {
	game := s.startGame("1m")
	_, err := s.arena.WatchPlayer("c-carol", "bob")
	s.Require().NoError(err)

	s.clock.Advance(61 * time.Second)
	s.Require().NoError(s.arena.Sweep(s.clock.Now()))

	after, err := s.arena.QueryGame(arenadto.QueryGameRequest{GameID: game.ID})
	s.Require().NoError(err)
	s.Require().NotNil(after.Game.Conclusion)
	s.Equal("timeout", after.Game.Conclusion.Termination)
	s.Equal(domain.Black, after.Game.Conclusion.Victor)
	s.Contains(s.inbox.events("c-carol"), events.SummaryRecorded.Name())

	_, err = s.arena.SubmitMove(arenadto.SubmitMoveRequest{Meta: s.meta(s.alice), GameID: game.ID, Source: "e2", Target: "e4"})
	s.ErrorIs(err, arenadto.ErrGameNotActive)
	_, err = s.move(s.alice, "e2e4")
	s.ErrorIs(err, arenadto.ErrNotFound)

	s.Eventually(func() bool {
		_, ok := s.memory.Get(game.ID)
		return ok
	}, time.Second, 10*time.Millisecond)
	hist, err := s.arena.History(context.Background(), arenadto.HistoryRequest{PlayerID: "bob", Limit: 50})
	s.Require().NoError(err)
	s.Require().Len(hist.Games, 1)
	s.Equal("black", hist.Games[0].Result())

	// nobody heartbeated for 61s and the game is over
	status, err := s.arena.GetStatus(arenadto.StatusRequest{PlayerID: "alice"})
	s.Require().NoError(err)
	s.False(status.Status.Online)
	s.Empty(status.Status.GameID)
}

func (s *ArenaSuite) TestPresenceTimesOutOnce() {
	_, err := s.arena.WatchPlayer("c-bob", "carol")
	s.Require().NoError(err)

	s.clock.Advance(20 * time.Second)
	_, err = s.arena.Heartbeat(s.meta(s.carol))
	s.Require().NoError(err)
	s.clock.Advance(20 * time.Second)
	s.Require().NoError(s.arena.Sweep(s.clock.Now()))
	status, _ := s.arena.GetStatus(arenadto.StatusRequest{PlayerID: "carol"})
	s.True(status.Status.Online)

	s.clock.Advance(15 * time.Second)
	s.Require().NoError(s.arena.Sweep(s.clock.Now()))
	s.Require().NoError(s.arena.Sweep(s.clock.Now()))
	status, _ = s.arena.GetStatus(arenadto.StatusRequest{PlayerID: "carol"})
	s.False(status.Status.Online)

	changed := 0
	for _, ev := range s.inbox.events("c-bob") {
		if ev == events.PresenceChanged.Name() {
			changed++
		}
	}
	s.Equal(1, changed)
}

func (s *ArenaSuite) TestResignReportsWinner() {
	game := s.startGame("")
	res, err := s.arena.Resign(arenadto.ResignRequest{Meta: s.meta(s.bob), GameID: game.ID})
	s.Require().NoError(err)
	s.Require().NotNil(res.Game.Conclusion)
	s.Equal("resignation", res.Game.Conclusion.Termination)
	s.Equal("alice", res.Game.Conclusion.VictorID)

	_, err = s.arena.Resign(arenadto.ResignRequest{Meta: s.meta(s.bob), GameID: game.ID})
	s.ErrorIs(err, arenadto.ErrGameNotActive)
}

func (s *ArenaSuite) TestDisconnectEndsCreatorsLobby() {
	created, err := s.arena.CreateLobby(arenadto.CreateLobbyRequest{Meta: s.meta(s.carol)})
	s.Require().NoError(err)

	_, err = s.arena.Identify("c-carol-2", s.carol)
	s.Require().NoError(err)
	s.Require().NoError(s.arena.Disconnect("c-carol"))
	s.Len(s.arena.ListLobbies().Lobbies, 1)

	s.Require().NoError(s.arena.Disconnect("c-carol-2"))
	s.Empty(s.arena.ListLobbies().Lobbies)
	view, err := s.arena.QueryLobby(arenadto.QueryLobbyRequest{LobbyID: created.Lobby.ID})
	s.Require().NoError(err)
	s.Equal(string(lobby.StatusEnded), view.Lobby.Status)

	_, err = s.arena.JoinLobby(arenadto.JoinLobbyRequest{Meta: s.meta(s.bob), LobbyID: created.Lobby.ID})
	s.ErrorIs(err, arenadto.ErrLobbyAlreadyEnded)
}

func (s *ArenaSuite) TestCancelWithoutIDUsesOwnLobby() {
	created, err := s.arena.CreateLobby(arenadto.CreateLobbyRequest{Meta: s.meta(s.alice)})
	s.Require().NoError(err)
	res, err := s.arena.CancelLobby(arenadto.CancelLobbyRequest{Meta: s.meta(s.alice)})
	s.Require().NoError(err)
	s.Equal(created.Lobby.ID, res.LobbyID)

	_, err = s.arena.CancelLobby(arenadto.CancelLobbyRequest{Meta: s.meta(s.alice)})
	s.ErrorIs(err, arenadto.ErrNotFound)
}

func (s *ArenaSuite) TestInvitesDelivered() {
	created, err := s.arena.CreateLobby(arenadto.CreateLobbyRequest{Meta: s.meta(s.alice), Invitees: []string{"carol"}})
	s.Require().NoError(err)
	s.Contains(s.inbox.events("c-carol"), events.LobbyInvited.Name())

	inv, err := s.arena.Invites(s.meta(s.carol))
	s.Require().NoError(err)
	s.Require().Len(inv.Lobbies, 1)
	s.Equal(created.Lobby.ID, inv.Lobbies[0].ID)
}

func (s *ArenaSuite) TestConnectionIdentityIsSticky() {
	_, err := s.arena.Identify("c-alice", s.bob)
	s.ErrorIs(err, arenadto.ErrUnauthorized)

	_, err = s.arena.CreateLobby(arenadto.CreateLobbyRequest{
		Meta: arenadto.RequestMeta{Player: s.bob, ConnectionID: "c-alice"},
	})
	s.ErrorIs(err, arenadto.ErrUnauthorized)
	s.Empty(s.arena.ListLobbies().Lobbies)
}

func (s *ArenaSuite) TestResetClearsEverything() {
	s.startGame("5m")
	s.arena.Reset()
	s.Equal(0, s.games.Len())
	s.Empty(s.arena.ListLobbies().Lobbies)
	s.Equal(0, s.arena.Connections("alice"))
}

func (s *ArenaSuite) TestUnknownLookups() {
	_, err := s.arena.QueryGame(arenadto.QueryGameRequest{GameID: "nope"})
	s.ErrorIs(err, arenadto.ErrNotFound)
	_, err = s.arena.QueryLobby(arenadto.QueryLobbyRequest{LobbyID: "nope"})
	s.ErrorIs(err, arenadto.ErrNotFound)
	_, err = s.arena.GetStatus(arenadto.StatusRequest{})
	s.ErrorIs(err, arenadto.ErrInvalidRequest)
}
