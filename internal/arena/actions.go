package arena

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/domain"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

// actor checks the acting player. A request that arrived on an identified
// connection must act as that connection's player.
func (a *Arena) actor(meta arenadto.RequestMeta) (domain.Player, error) {
	if !meta.Player.Valid() {
		return domain.Player{}, arenadto.ErrInvalidRequest.With("player is required")
	}
	if meta.ConnectionID != "" {
		if bound, ok := a.conns[meta.ConnectionID]; ok && bound != meta.Player.ID {
			return domain.Player{}, arenadto.ErrUnauthorized.With("connection is identified as another player")
		}
	}
	return meta.Player, nil
}

func (a *Arena) CreateLobby(req arenadto.CreateLobbyRequest) (arenadto.CreateLobbyResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, err := a.actor(req.Meta)
	if err != nil {
		return arenadto.CreateLobbyResponse{}, err
	}
	view, err := a.lobbies.Create(p, req.Config, req.Invitees...)
	if err = a.after("create_lobby", err); err != nil {
		return arenadto.CreateLobbyResponse{}, err
	}
	return arenadto.CreateLobbyResponse{Lobby: view}, nil
}

func (a *Arena) JoinLobby(req arenadto.JoinLobbyRequest) (arenadto.JoinLobbyResponse, error) {
	if strings.TrimSpace(req.LobbyID) == "" {
		return arenadto.JoinLobbyResponse{}, arenadto.ErrInvalidRequest.With("lobbyId is required")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	p, err := a.actor(req.Meta)
	if err != nil {
		return arenadto.JoinLobbyResponse{}, err
	}
	snap, err := a.lobbies.Join(strings.TrimSpace(req.LobbyID), p)
	if err = a.after("join_lobby", err); err != nil {
		return arenadto.JoinLobbyResponse{}, err
	}
	return arenadto.JoinLobbyResponse{Game: snap}, nil
}

func (a *Arena) CancelLobby(req arenadto.CancelLobbyRequest) (arenadto.CancelLobbyResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, err := a.actor(req.Meta)
	if err != nil {
		return arenadto.CancelLobbyResponse{}, err
	}
	id := strings.TrimSpace(req.LobbyID)
	if id == "" {
		view, ok := a.lobbies.ByCreator(p.ID)
		if !ok {
			return arenadto.CancelLobbyResponse{}, arenadto.ErrNotFound.With("no open lobby")
		}
		id = view.ID
	}
	err = a.lobbies.Cancel(id, p.ID)
	if err = a.after("cancel_lobby", err); err != nil {
		return arenadto.CancelLobbyResponse{}, err
	}
	return arenadto.CancelLobbyResponse{LobbyID: id}, nil
}

func (a *Arena) QueryLobby(req arenadto.QueryLobbyRequest) (arenadto.QueryLobbyResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	view, err := a.lobbies.Get(strings.TrimSpace(req.LobbyID))
	if err != nil {
		return arenadto.QueryLobbyResponse{}, err
	}
	return arenadto.QueryLobbyResponse{Lobby: view}, nil
}

func (a *Arena) ListLobbies() arenadto.ListLobbiesResponse {
	a.mu.Lock()
	defer a.mu.Unlock()
	return arenadto.ListLobbiesResponse{Lobbies: a.lobbies.List()}
}

// ListGames returns every active game, oldest first.
func (a *Arena) ListGames() arenadto.ListGamesResponse {
	a.mu.Lock()
	defer a.mu.Unlock()
	return arenadto.ListGamesResponse{Games: a.games.List()}
}

// Invites lists open lobbies that invited the acting player.
func (a *Arena) Invites(meta arenadto.RequestMeta) (arenadto.InvitesResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, err := a.actor(meta)
	if err != nil {
		return arenadto.InvitesResponse{}, err
	}
	return arenadto.InvitesResponse{Lobbies: a.lobbies.InvitesFor(p.ID)}, nil
}

func (a *Arena) SubmitMove(req arenadto.SubmitMoveRequest) (arenadto.SubmitMoveResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, err := a.actor(req.Meta)
	if err != nil {
		return arenadto.SubmitMoveResponse{}, err
	}
	mv := rules.Move{
		Source:    strings.ToLower(strings.TrimSpace(req.Source)),
		Target:    strings.ToLower(strings.TrimSpace(req.Target)),
		Promotion: strings.ToLower(strings.TrimSpace(req.Promotion)),
	}
	res, err := a.games.SubmitMove(p.ID, strings.TrimSpace(req.GameID), mv)
	if err = a.after("submit_move", err); err != nil {
		a.logger.Debug("move_rejected", zap.String("player_id", p.ID), zap.String("uci", mv.UCI()), zap.Error(err))
		return arenadto.SubmitMoveResponse{}, err
	}
	return arenadto.SubmitMoveResponse{Move: res.Move, Game: res.Snapshot}, nil
}

func (a *Arena) Resign(req arenadto.ResignRequest) (arenadto.ResignResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, err := a.actor(req.Meta)
	if err != nil {
		return arenadto.ResignResponse{}, err
	}
	res, err := a.games.Resign(p.ID, strings.TrimSpace(req.GameID))
	if err = a.after("resign", err); err != nil {
		return arenadto.ResignResponse{}, err
	}
	return arenadto.ResignResponse{Game: res.Snapshot}, nil
}

func (a *Arena) QueryGame(req arenadto.QueryGameRequest) (arenadto.QueryGameResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	snap, err := a.games.Get(strings.TrimSpace(req.GameID))
	if err != nil {
		return arenadto.QueryGameResponse{}, err
	}
	return arenadto.QueryGameResponse{Game: snap}, nil
}

func (a *Arena) GetStatus(req arenadto.StatusRequest) (arenadto.StatusResponse, error) {
	id := strings.TrimSpace(req.PlayerID)
	if id == "" {
		return arenadto.StatusResponse{}, arenadto.ErrInvalidRequest.With("playerId is required")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	res := arenadto.StatusResponse{Status: a.presence.Status(id)}
	if at, ok := a.presence.LastHeartbeat(id); ok {
		res.LastHeartbeat = &at
	}
	return res, nil
}

func (a *Arena) Heartbeat(meta arenadto.RequestMeta) (arenadto.HeartbeatResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, err := a.actor(meta)
	if err != nil {
		return arenadto.HeartbeatResponse{}, err
	}
	return arenadto.HeartbeatResponse{Status: a.presence.Heartbeat(p.ID)}, nil
}

// History reads recent results from the store. It does not take the arena
// lock; the store is safe for concurrent use.
func (a *Arena) History(ctx context.Context, req arenadto.HistoryRequest) (arenadto.HistoryResponse, error) {
	id := strings.TrimSpace(req.PlayerID)
	if id == "" {
		return arenadto.HistoryResponse{}, arenadto.ErrInvalidRequest.With("playerId is required")
	}
	limit := req.Limit
	if limit <= 0 || limit > a.cfg.HistoryLimit {
		limit = a.cfg.HistoryLimit
	}
	if a.history == nil {
		return arenadto.HistoryResponse{Games: []arenadto.GameSummary{}}, nil
	}
	games, err := a.history.Recent(ctx, id, limit)
	if err != nil {
		a.logger.Error("history_error", zap.String("player_id", id), zap.Error(err))
		return arenadto.HistoryResponse{}, arenadto.ErrInternal.With("history unavailable")
	}
	if games == nil {
		games = []arenadto.GameSummary{}
	}
	return arenadto.HistoryResponse{Games: games}, nil
}
