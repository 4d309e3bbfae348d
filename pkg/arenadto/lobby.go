package arenadto

import (
	"time"

	"github.com/park285/cheese-arena/internal/domain"
)

// TimeSpec selects either a named preset or explicit per-side budgets.
// A nil TimeSpec means an untimed game.
type TimeSpec struct {
	Template string      `json:"template,omitempty"`
	Custom   *CustomTime `json:"custom,omitempty"`
}

type CustomTime struct {
	WhiteMs int64 `json:"w"`
	BlackMs int64 `json:"b"`
}

type LobbyConfig struct {
	Time            *TimeSpec              `json:"time,omitempty"`
	ColorPreference domain.ColorPreference `json:"colorPreference,omitempty"`
}

type LobbyView struct {
	ID        string        `json:"id"`
	Creator   domain.Player `json:"creator"`
	Config    LobbyConfig   `json:"config"`
	Status    string        `json:"status"`
	Invited   []string      `json:"invited,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	ExpiresAt *time.Time    `json:"expiresAt,omitempty"`
}

type LobbyEnded struct {
	LobbyID string `json:"lobbyId"`
	Reason  string `json:"reason"`
	GameID  string `json:"gameId,omitempty"`
}

type InviteRevoked struct {
	LobbyID string `json:"lobbyId"`
	Reason  string `json:"reason"`
}
