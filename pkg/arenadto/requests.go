package arenadto

import (
	"time"

	"github.com/park285/cheese-arena/internal/domain"
)

// RequestMeta identifies the acting player and the connection the request arrived on.
type RequestMeta struct {
	Player       domain.Player `json:"player"`
	ConnectionID string        `json:"-"`
}

type CreateLobbyRequest struct {
	Meta     RequestMeta `json:"-"`
	Config   LobbyConfig `json:"config"`
	Invitees []string    `json:"invitees,omitempty"`
}

type CreateLobbyResponse struct {
	Lobby LobbyView `json:"lobby"`
}

type JoinLobbyRequest struct {
	Meta    RequestMeta `json:"-"`
	LobbyID string      `json:"lobbyId"`
}

type JoinLobbyResponse struct {
	Game GameSnapshot `json:"game"`
}

type CancelLobbyRequest struct {
	Meta    RequestMeta `json:"-"`
	LobbyID string      `json:"lobbyId"`
}

type CancelLobbyResponse struct {
	LobbyID string `json:"lobbyId"`
}

type QueryLobbyRequest struct {
	LobbyID string `json:"lobbyId"`
}

type QueryLobbyResponse struct {
	Lobby LobbyView `json:"lobby"`
}

type ListLobbiesResponse struct {
	Lobbies []LobbyView `json:"lobbies"`
}

type ListGamesResponse struct {
	Games []GameSnapshot `json:"games"`
}

type InvitesResponse struct {
	Lobbies []LobbyView `json:"lobbies"`
}

type SubmitMoveRequest struct {
	Meta      RequestMeta `json:"-"`
	GameID    string      `json:"gameId,omitempty"`
	Source    string      `json:"source"`
	Target    string      `json:"target"`
	Promotion string      `json:"promotion,omitempty"`
}

type SubmitMoveResponse struct {
	Move MoveView     `json:"move"`
	Game GameSnapshot `json:"game"`
}

type ResignRequest struct {
	Meta   RequestMeta `json:"-"`
	GameID string      `json:"gameId,omitempty"`
}

type ResignResponse struct {
	Game GameSnapshot `json:"game"`
}

type QueryGameRequest struct {
	GameID string `json:"gameId"`
}

type QueryGameResponse struct {
	Game GameSnapshot `json:"game"`
}

type StatusRequest struct {
	PlayerID string `json:"playerId"`
}

type StatusResponse struct {
	Status        PresenceStatus `json:"status"`
	LastHeartbeat *time.Time     `json:"lastHeartbeat,omitempty"`
}

type HeartbeatResponse struct {
	Status PresenceStatus `json:"status"`
}

type HistoryRequest struct {
	PlayerID string `json:"playerId"`
	Limit    int    `json:"limit,omitempty"`
}

type HistoryResponse struct {
	Games []GameSummary `json:"games"`
}

// WatchRequest subscribes the connection to a game topic, a lobby topic or a
// player's activity topic. Unwatch uses the first non-empty field.
type WatchRequest struct {
	GameID   string `json:"gameId,omitempty"`
	LobbyID  string `json:"lobbyId,omitempty"`
	PlayerID string `json:"playerId,omitempty"`
}
