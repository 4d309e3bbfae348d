// Package events is the closed catalog of published events. Each event is
// declared once with its payload type, so a publisher cannot pair an event
// name with the wrong payload.
package events

import (
	"github.com/park285/cheese-arena/internal/broadcast"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

type Category string

const (
	CategoryLobby    Category = "lobby"
	CategoryGame     Category = "game"
	CategoryPresence Category = "presence"
	CategorySummary  Category = "summary"
)

// Publisher is satisfied by *broadcast.Registry.
type Publisher interface {
	Publish(event string, data any, t broadcast.Target) (broadcast.Delivery, error)
}

type Event[T any] struct {
	category Category
	name     string
}

func (e Event[T]) Name() string { return string(e.category) + "." + e.name }

func (e Event[T]) Category() Category { return e.category }

func (e Event[T]) Publish(p Publisher, payload T, t broadcast.Target) (broadcast.Delivery, error) {
	return p.Publish(e.Name(), payload, t)
}

var names []string

func define[T any](c Category, name string) Event[T] {
	e := Event[T]{category: c, name: name}
	names = append(names, e.Name())
	return e
}

var (
	LobbyCreated       = define[arenadto.LobbyView](CategoryLobby, "created")
	LobbyEnded         = define[arenadto.LobbyEnded](CategoryLobby, "ended")
	LobbyInvited       = define[arenadto.LobbyView](CategoryLobby, "invited")
	LobbyInviteRevoked = define[arenadto.InviteRevoked](CategoryLobby, "invite_revoked")

	GameStarted = define[arenadto.GameSnapshot](CategoryGame, "started")
	GameMoved   = define[arenadto.GameMoved](CategoryGame, "moved")
	GameEnded   = define[arenadto.GameEnded](CategoryGame, "ended")

	PresenceChanged = define[arenadto.PresenceStatus](CategoryPresence, "changed")

	SummaryRecorded = define[arenadto.GameSummary](CategorySummary, "recorded")
)

// Names lists every event in the catalog in declaration order.
func Names() []string { return append([]string(nil), names...) }
