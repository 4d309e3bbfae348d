package arena

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/domain"
	"github.com/park285/cheese-arena/internal/events"
	"github.com/park285/cheese-arena/internal/lobby"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

// Identify binds connID to player, subscribes it to the player's own and
// invites topics and counts as a heartbeat. A connection keeps the first
// identity it presents.
func (a *Arena) Identify(connID string, player domain.Player) (arenadto.PresenceStatus, error) {
	if strings.TrimSpace(connID) == "" || !player.Valid() {
		return arenadto.PresenceStatus{}, arenadto.ErrInvalidRequest.With("connection and player are required")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if bound, ok := a.conns[connID]; ok && bound != player.ID {
		return arenadto.PresenceStatus{}, arenadto.ErrUnauthorized.With("connection already identified")
	}
	a.conns[connID] = player.ID
	set, ok := a.players[player.ID]
	if !ok {
		set = make(map[string]struct{})
		a.players[player.ID] = set
	}
	set[connID] = struct{}{}
	a.channels.Join(events.PlayerTopic(player.ID), connID)
	a.channels.Join(events.InvitesTopic(player.ID), connID)
	status := a.presence.Heartbeat(player.ID)
	a.logger.Info("player_identify", zap.String("player_id", player.ID), zap.String("conn_id", connID))
	return status, nil
}

// Connections counts live connections for playerID.
func (a *Arena) Connections(playerID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.players[playerID])
}

// WatchGame subscribes connID to a game's move and result events.
func (a *Arena) WatchGame(connID, gameID string) (arenadto.GameSnapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	snap, err := a.games.Get(gameID)
	if err != nil {
		return arenadto.GameSnapshot{}, err
	}
	a.channels.Join(events.GameTopic(gameID), connID)
	return snap, nil
}

// WatchLobby subscribes connID to a lobby's ended event. Lobbies that already
// ended are still returned so the caller sees the final state.
func (a *Arena) WatchLobby(connID, lobbyID string) (arenadto.LobbyView, error) {
	lobbyID = strings.TrimSpace(lobbyID)
	if lobbyID == "" {
		return arenadto.LobbyView{}, arenadto.ErrInvalidRequest.With("lobbyId is required")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	view, err := a.lobbies.Get(lobbyID)
	if err != nil {
		return arenadto.LobbyView{}, err
	}
	a.channels.Join(events.LobbyTopic(lobbyID), connID)
	return view, nil
}

// WatchPlayer subscribes connID to a player's presence and results.
func (a *Arena) WatchPlayer(connID, playerID string) (arenadto.PresenceStatus, error) {
	if strings.TrimSpace(playerID) == "" {
		return arenadto.PresenceStatus{}, arenadto.ErrInvalidRequest.With("playerId is required")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.channels.Join(events.ActivityTopic(playerID), connID)
	return a.presence.Status(playerID), nil
}

// Unwatch drops a subscription made by WatchGame, WatchLobby or WatchPlayer.
func (a *Arena) Unwatch(connID string, req arenadto.WatchRequest) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch {
	case req.GameID != "":
		a.channels.Leave(events.GameTopic(req.GameID), connID)
	case req.LobbyID != "":
		a.channels.Leave(events.LobbyTopic(req.LobbyID), connID)
	case req.PlayerID != "":
		a.channels.Leave(events.ActivityTopic(req.PlayerID), connID)
	default:
		return arenadto.ErrInvalidRequest.With("gameId, lobbyId or playerId is required")
	}
	return nil
}

// Disconnect forgets connID. When it was the player's last connection and the
// policy is on, their open lobby ends as creator_disconnected.
func (a *Arena) Disconnect(connID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.channels.LeaveAll(connID)
	playerID, ok := a.conns[connID]
	if !ok {
		return nil
	}
	delete(a.conns, connID)
	set := a.players[playerID]
	delete(set, connID)
	if len(set) > 0 {
		return nil
	}
	delete(a.players, playerID)
	a.logger.Info("player_disconnect", zap.String("player_id", playerID))
	if !a.cfg.EndLobbyOnDisconnect {
		return nil
	}
	lobbyID, err := a.lobbies.EndByCreator(playerID, lobby.ReasonCreatorDisconnected)
	if errors.Is(err, arenadto.ErrNotFound) {
		return a.after("disconnect", nil)
	}
	if err == nil {
		a.logger.Info("lobby_end_on_disconnect", zap.String("lobby_id", lobbyID), zap.String("player_id", playerID))
	}
	return a.after("disconnect", err)
}
