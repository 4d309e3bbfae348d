package lobby

import (
	"time"

	"github.com/park285/cheese-arena/internal/domain"
	"github.com/park285/cheese-arena/internal/timectl"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

type Status string

const (
	StatusOpen  Status = "open"
	StatusEnded Status = "ended"
)

// Reasons a lobby ends.
const (
	ReasonJoined              = "joined"
	ReasonCancelled           = "cancelled"
	ReasonSuperseded          = "superseded"
	ReasonCreatorDisconnected = "creator_disconnected"
	ReasonExpired             = "expired"
)

// Lobby is an open challenge. Config is fixed at creation.
type Lobby struct {
	id        string
	creator   domain.Player
	config    arenadto.LobbyConfig
	time      *timectl.TimeControl
	status    Status
	invited   []string
	createdAt time.Time
	expiresAt time.Time
}

func (l *Lobby) View() arenadto.LobbyView {
	v := arenadto.LobbyView{
		ID:        l.id,
		Creator:   l.creator,
		Config:    l.config,
		Status:    string(l.status),
		Invited:   append([]string(nil), l.invited...),
		CreatedAt: l.createdAt,
	}
	if l.config.Time != nil {
		ts := *l.config.Time
		if ts.Custom != nil {
			c := *ts.Custom
			ts.Custom = &c
		}
		v.Config.Time = &ts
	}
	if !l.expiresAt.IsZero() {
		at := l.expiresAt
		v.ExpiresAt = &at
	}
	return v
}

// creatorColor resolves the creator's side; roll is consulted only for random.
func (l *Lobby) creatorColor(roll func() int) domain.Color {
	switch l.config.ColorPreference {
	case domain.PreferWhite:
		return domain.White
	case domain.PreferBlack:
		return domain.Black
	default:
		if roll() == 0 {
			return domain.White
		}
		return domain.Black
	}
}
