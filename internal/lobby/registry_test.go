package lobby

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/park285/cheese-arena/internal/dependencies/mocks"
	"github.com/park285/cheese-arena/internal/domain"
	"github.com/park285/cheese-arena/internal/events"
	"github.com/park285/cheese-arena/internal/game"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

var (
	alice = domain.Player{ID: "alice", DisplayName: "Alice"}
	bob   = domain.Player{ID: "bob", DisplayName: "Bob"}
	carol = domain.Player{ID: "carol", DisplayName: "Carol"}
)

type fixture struct {
	lobbies *Registry
	games   *game.Registry
	clk     *mocks.MockClock
	rnd     *mocks.MockRandom
	rec     *events.Recorder
}

func newFixture(t *testing.T, ttl time.Duration) *fixture {
	t.Helper()
	clk := mocks.NewMockClock(time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC))
	rnd := mocks.NewMockRandom()
	rec := events.NewRecorder()
	n := 0
	games := game.NewRegistry(rules.New(), rec, clk, game.WithIDs(func() string { n++; return fmt.Sprintf("g%d", n) }))
	lobbies := NewRegistry(Config{TTL: ttl}, games, rec, clk, rnd, nil)
	return &fixture{lobbies: lobbies, games: games, clk: clk, rnd: rnd, rec: rec}
}

func fiveMinutes(pref domain.ColorPreference) arenadto.LobbyConfig {
	return arenadto.LobbyConfig{Time: &arenadto.TimeSpec{Template: "5m"}, ColorPreference: pref}
}

func TestJoinStartsGameWithPreferredColours(t *testing.T) {
	f := newFixture(t, 0)
	l, err := f.lobbies.Create(alice, fiveMinutes(domain.PreferWhite))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	snap, err := f.lobbies.Join(l.ID, bob)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if snap.White.ID != "alice" || snap.Black.ID != "bob" {
		t.Fatalf("colours = %s/%s", snap.White.ID, snap.Black.ID)
	}
	if snap.Clocks == nil || snap.Clocks.WhiteMs != 300000 || snap.Clocks.BlackMs != 300000 {
		t.Fatalf("clocks = %+v", snap.Clocks)
	}
	if snap.Status != string(game.StatusActive) {
		t.Fatalf("status = %s", snap.Status)
	}
	if f.lobbies.HasOpenLobby("alice") || f.lobbies.Len() != 0 {
		t.Fatalf("lobby still open after join")
	}
	ended := f.rec.Named(events.LobbyEnded.Name())
	if len(ended) != 1 {
		t.Fatalf("ended events = %d", len(ended))
	}
	payload := ended[0].Data.(arenadto.LobbyEnded)
	if payload.Reason != ReasonJoined || payload.GameID != snap.ID {
		t.Fatalf("ended payload = %+v", payload)
	}
	view, err := f.lobbies.Get(l.ID)
	if err != nil || view.Status != string(StatusEnded) {
		t.Fatalf("ended lobby view = %+v, %v", view, err)
	}
}

func TestRandomColourUsesRoll(t *testing.T) {
	f := newFixture(t, 0)
	f.rnd.QueueIntn(1)
	l, _ := f.lobbies.Create(alice, arenadto.LobbyConfig{})
	snap, err := f.lobbies.Join(l.ID, bob)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if snap.White.ID != "bob" || snap.Black.ID != "alice" {
		t.Fatalf("colours = %s/%s", snap.White.ID, snap.Black.ID)
	}
	if snap.Clocks != nil {
		t.Fatalf("untimed lobby produced clocks")
	}
}

func TestSecondLobbyRejected(t *testing.T) {
	f := newFixture(t, 0)
	first, err := f.lobbies.Create(alice, fiveMinutes(domain.PreferBlack))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = f.lobbies.Create(alice, arenadto.LobbyConfig{})
	if !errors.Is(err, arenadto.ErrAlreadyInLobby) {
		t.Fatalf("err = %v, want already in lobby", err)
	}
	again, err := f.lobbies.Get(first.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if again.Status != string(StatusOpen) || again.Config.ColorPreference != domain.PreferBlack || again.Config.Time.Template != "5m" {
		t.Fatalf("first lobby changed: %+v", again)
	}
	if f.lobbies.Len() != 1 {
		t.Fatalf("len = %d", f.lobbies.Len())
	}
}

func TestEndTwiceFails(t *testing.T) {
	f := newFixture(t, 0)
	l, _ := f.lobbies.Create(alice, arenadto.LobbyConfig{}, "bob")
	if err := f.lobbies.End(l.ID, ReasonCancelled); err != nil {
		t.Fatalf("end: %v", err)
	}
	before := len(f.rec.All())
	if err := f.lobbies.End(l.ID, ReasonCancelled); !errors.Is(err, arenadto.ErrLobbyAlreadyEnded) {
		t.Fatalf("second end: %v", err)
	}
	if len(f.rec.All()) != before || f.lobbies.Len() != 0 || f.lobbies.HasOpenLobby("alice") {
		t.Fatalf("second end mutated state")
	}
	if err := f.lobbies.End("LB-NOPE", ReasonCancelled); !errors.Is(err, arenadto.ErrNotFound) {
		t.Fatalf("unknown lobby: %v", err)
	}
	if got := f.lobbies.InvitesFor("bob"); len(got) != 0 {
		t.Fatalf("invite not revoked: %+v", got)
	}
	if len(f.rec.Named(events.LobbyInviteRevoked.Name())) != 1 {
		t.Fatalf("no invite_revoked event")
	}
}

func TestJoinSupersedesJoinersLobby(t *testing.T) {
	f := newFixture(t, 0)
	target, _ := f.lobbies.Create(alice, arenadto.LobbyConfig{ColorPreference: domain.PreferWhite})
	own, _ := f.lobbies.Create(bob, arenadto.LobbyConfig{})

	if _, err := f.lobbies.Join(target.ID, bob); err != nil {
		t.Fatalf("join: %v", err)
	}
	ended := f.rec.Named(events.LobbyEnded.Name())
	if len(ended) != 2 {
		t.Fatalf("ended events = %d", len(ended))
	}
	first := ended[0].Data.(arenadto.LobbyEnded)
	second := ended[1].Data.(arenadto.LobbyEnded)
	if first.LobbyID != own.ID || first.Reason != ReasonSuperseded {
		t.Fatalf("first ended = %+v", first)
	}
	if second.LobbyID != target.ID || second.Reason != ReasonJoined {
		t.Fatalf("second ended = %+v", second)
	}
	for _, p := range []string{"alice", "bob"} {
		if f.lobbies.HasOpenLobby(p) && f.games.HasActiveGame(p) {
			t.Fatalf("%s has both a lobby and a game", p)
		}
	}
	if err := f.lobbies.Audit(); err != nil {
		t.Fatalf("audit: %v", err)
	}
}

func TestJoinRejections(t *testing.T) {
	f := newFixture(t, 0)
	l, _ := f.lobbies.Create(alice, arenadto.LobbyConfig{})
	if _, err := f.lobbies.Join(l.ID, alice); !errors.Is(err, arenadto.ErrSelfJoin) {
		t.Fatalf("self join: %v", err)
	}
	if _, err := f.lobbies.Join("LB-MISSING", bob); !errors.Is(err, arenadto.ErrNotFound) {
		t.Fatalf("missing: %v", err)
	}

	other, _ := f.lobbies.Create(carol, arenadto.LobbyConfig{})
	if _, err := f.lobbies.Join(other.ID, bob); err != nil {
		t.Fatalf("bob joins carol: %v", err)
	}
	// bob is now playing and keeps alice's lobby open
	if _, err := f.lobbies.Join(l.ID, bob); !errors.Is(err, arenadto.ErrAlreadyInGame) {
		t.Fatalf("busy joiner: %v", err)
	}
	if !f.lobbies.HasOpenLobby("alice") {
		t.Fatalf("failed join ended the lobby")
	}
	if _, err := f.lobbies.Create(bob, arenadto.LobbyConfig{}); !errors.Is(err, arenadto.ErrAlreadyInGame) {
		t.Fatalf("create while playing: %v", err)
	}
	if _, err := f.lobbies.Join(other.ID, alice); !errors.Is(err, arenadto.ErrLobbyAlreadyEnded) {
		t.Fatalf("join ended lobby: %v", err)
	}
}

func TestCancelOnlyByCreator(t *testing.T) {
	f := newFixture(t, 0)
	l, _ := f.lobbies.Create(alice, arenadto.LobbyConfig{})
	if err := f.lobbies.Cancel(l.ID, "bob"); !errors.Is(err, arenadto.ErrUnauthorized) {
		t.Fatalf("cancel by outsider: %v", err)
	}
	if err := f.lobbies.Cancel(l.ID, "alice"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	got := f.rec.Named(events.LobbyEnded.Name())
	if len(got) != 1 || got[0].Data.(arenadto.LobbyEnded).Reason != ReasonCancelled {
		t.Fatalf("ended = %+v", got)
	}
}

func TestInvalidTimeControlRejected(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.lobbies.Create(alice, arenadto.LobbyConfig{Time: &arenadto.TimeSpec{Template: "2h"}})
	if !errors.Is(err, arenadto.ErrInvalidRequest) {
		t.Fatalf("err = %v", err)
	}
	if f.lobbies.HasOpenLobby("alice") {
		t.Fatalf("lobby created with bad config")
	}
}

func TestInvitesAndExpiry(t *testing.T) {
	f := newFixture(t, 10*time.Minute)
	l, _ := f.lobbies.Create(alice, arenadto.LobbyConfig{}, "bob", "bob", "alice", "carol")
	if len(l.Invited) != 2 || l.ExpiresAt == nil {
		t.Fatalf("view = %+v", l)
	}
	if got := f.lobbies.InvitesFor("carol"); len(got) != 1 || got[0].ID != l.ID {
		t.Fatalf("invites = %+v", got)
	}
	if len(f.rec.To(events.InvitesTopic("bob"))) != 1 {
		t.Fatalf("bob not notified")
	}

	f.clk.Advance(9 * time.Minute)
	if ended := f.lobbies.Expire(f.clk.Now()); len(ended) != 0 {
		t.Fatalf("expired early: %v", ended)
	}
	f.clk.Advance(2 * time.Minute)
	if ended := f.lobbies.Expire(f.clk.Now()); len(ended) != 1 || ended[0] != l.ID {
		t.Fatalf("ended = %v", ended)
	}
	if got := f.rec.Named(events.LobbyEnded.Name()); len(got) != 1 || got[0].Data.(arenadto.LobbyEnded).Reason != ReasonExpired {
		t.Fatalf("ended events = %+v", got)
	}
	if len(f.lobbies.InvitesFor("carol")) != 0 {
		t.Fatalf("invites kept after expiry")
	}
}

func TestEndByCreatorAndList(t *testing.T) {
	f := newFixture(t, 0)
	f.lobbies.Create(alice, arenadto.LobbyConfig{})
	f.clk.Advance(time.Second)
	f.lobbies.Create(bob, arenadto.LobbyConfig{})
	list := f.lobbies.List()
	if len(list) != 2 || list[0].Creator.ID != "alice" {
		t.Fatalf("list = %+v", list)
	}
	if _, err := f.lobbies.EndByCreator("alice", ReasonCreatorDisconnected); err != nil {
		t.Fatalf("end by creator: %v", err)
	}
	if _, err := f.lobbies.EndByCreator("alice", ReasonCreatorDisconnected); !errors.Is(err, arenadto.ErrNotFound) {
		t.Fatalf("second end by creator: %v", err)
	}
	if creators := f.lobbies.Creators(); len(creators) != 1 || creators[0] != "bob" {
		t.Fatalf("creators = %v", creators)
	}
	f.lobbies.Reset()
	if f.lobbies.Len() != 0 {
		t.Fatalf("reset left lobbies")
	}
}
