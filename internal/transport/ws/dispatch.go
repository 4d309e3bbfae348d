package ws

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/domain"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

var (
	errBadJSON     = arenadto.ErrInvalidRequest.With("malformed request")
	errNotHello    = arenadto.ErrUnauthorized.With("send hello first")
	errUnknownOp   = arenadto.ErrInvalidRequest.With("unknown op")
	errMissingData = arenadto.ErrInvalidRequest.With("gameId is required")
)

type handler func(ctx context.Context, s *Server, c *conn, req Request) (any, error)

var handlers = map[string]handler{
	"hello":       opHello,
	"createLobby": opCreateLobby,
	"joinLobby":   opJoinLobby,
	"cancelLobby": opCancelLobby,
	"queryLobby":  opQueryLobby,
	"listLobbies": opListLobbies,
	"invites":     opInvites,
	"submitMove":  opSubmitMove,
	"resign":      opResign,
	"queryGame":   opQueryGame,
	"getStatus":   opGetStatus,
	"heartbeat":   opHeartbeat,
	"history":     opHistory,
	"watchGame":   opWatchGame,
	"watchLobby":  opWatchLobby,
	"watchPlayer": opWatchPlayer,
	"unwatch":     opUnwatch,
}

func (s *Server) dispatch(ctx context.Context, c *conn, req Request) Response {
	h, ok := handlers[req.Op]
	if !ok {
		return Response{ID: req.ID, Error: s.wireError(c, req.Op, errUnknownOp)}
	}
	data, err := h(ctx, s, c, req)
	if err != nil {
		return Response{ID: req.ID, Error: s.wireError(c, req.Op, err)}
	}
	return Response{ID: req.ID, OK: true, Data: data}
}

func (s *Server) wireError(c *conn, op string, err error) *WireError {
	code := arenadto.CodeOf(err)
	if !arenadto.IsDomain(err) {
		s.logger.Error("ws_op_error", zap.String("conn_id", c.id), zap.String("op", op), zap.Error(err))
	}
	we := &WireError{Code: code, Message: s.messages.ErrorText(err)}
	var de *arenadto.DomainError
	if errors.As(err, &de) {
		we.Retryable = de.Retryable
	}
	return we
}

func meta(c *conn) (arenadto.RequestMeta, error) {
	p, ok := c.identity()
	if !ok {
		return arenadto.RequestMeta{}, errNotHello
	}
	return arenadto.RequestMeta{Player: p, ConnectionID: c.id}, nil
}

func opHello(_ context.Context, s *Server, c *conn, req Request) (any, error) {
	var in helloRequest
	if err := decode(req.Data, &in); err != nil {
		return nil, err
	}
	p := domain.Player{ID: in.Player.ID, DisplayName: in.Player.DisplayName, AvatarRef: in.Player.AvatarRef}
	status, err := s.arena.Identify(c.id, p)
	if err != nil {
		return nil, err
	}
	c.identify(p)
	return helloResponse{ConnectionID: c.id, Status: status}, nil
}

func opCreateLobby(_ context.Context, s *Server, c *conn, req Request) (any, error) {
	m, err := meta(c)
	if err != nil {
		return nil, err
	}
	var in arenadto.CreateLobbyRequest
	if err := decode(req.Data, &in); err != nil {
		return nil, err
	}
	in.Meta = m
	return s.arena.CreateLobby(in)
}

func opJoinLobby(_ context.Context, s *Server, c *conn, req Request) (any, error) {
	m, err := meta(c)
	if err != nil {
		return nil, err
	}
	var in arenadto.JoinLobbyRequest
	if err := decode(req.Data, &in); err != nil {
		return nil, err
	}
	in.Meta = m
	return s.arena.JoinLobby(in)
}

func opCancelLobby(_ context.Context, s *Server, c *conn, req Request) (any, error) {
	m, err := meta(c)
	if err != nil {
		return nil, err
	}
	var in arenadto.CancelLobbyRequest
	if err := decode(req.Data, &in); err != nil {
		return nil, err
	}
	in.Meta = m
	return s.arena.CancelLobby(in)
}

func opQueryLobby(_ context.Context, s *Server, _ *conn, req Request) (any, error) {
	var in arenadto.QueryLobbyRequest
	if err := decode(req.Data, &in); err != nil {
		return nil, err
	}
	return s.arena.QueryLobby(in)
}

func opListLobbies(_ context.Context, s *Server, _ *conn, _ Request) (any, error) {
	return s.arena.ListLobbies(), nil
}

func opInvites(_ context.Context, s *Server, c *conn, _ Request) (any, error) {
	m, err := meta(c)
	if err != nil {
		return nil, err
	}
	return s.arena.Invites(m)
}

func opSubmitMove(_ context.Context, s *Server, c *conn, req Request) (any, error) {
	m, err := meta(c)
	if err != nil {
		return nil, err
	}
	var in arenadto.SubmitMoveRequest
	if err := decode(req.Data, &in); err != nil {
		return nil, err
	}
	in.Meta = m
	return s.arena.SubmitMove(in)
}

func opResign(_ context.Context, s *Server, c *conn, req Request) (any, error) {
	m, err := meta(c)
	if err != nil {
		return nil, err
	}
	var in arenadto.ResignRequest
	if err := decode(req.Data, &in); err != nil {
		return nil, err
	}
	in.Meta = m
	return s.arena.Resign(in)
}

func opQueryGame(_ context.Context, s *Server, _ *conn, req Request) (any, error) {
	var in arenadto.QueryGameRequest
	if err := decode(req.Data, &in); err != nil {
		return nil, err
	}
	return s.arena.QueryGame(in)
}

func opGetStatus(_ context.Context, s *Server, _ *conn, req Request) (any, error) {
	var in arenadto.StatusRequest
	if err := decode(req.Data, &in); err != nil {
		return nil, err
	}
	return s.arena.GetStatus(in)
}

func opHeartbeat(_ context.Context, s *Server, c *conn, _ Request) (any, error) {
	m, err := meta(c)
	if err != nil {
		return nil, err
	}
	return s.arena.Heartbeat(m)
}

func opHistory(ctx context.Context, s *Server, c *conn, req Request) (any, error) {
	var in arenadto.HistoryRequest
	if err := decode(req.Data, &in); err != nil {
		return nil, err
	}
	if in.PlayerID == "" {
		if p, ok := c.identity(); ok {
			in.PlayerID = p.ID
		}
	}
	return s.arena.History(ctx, in)
}

func opWatchGame(_ context.Context, s *Server, c *conn, req Request) (any, error) {
	var in arenadto.WatchRequest
	if err := decode(req.Data, &in); err != nil {
		return nil, err
	}
	if in.GameID == "" {
		return nil, errMissingData
	}
	snap, err := s.arena.WatchGame(c.id, in.GameID)
	if err != nil {
		return nil, err
	}
	return arenadto.QueryGameResponse{Game: snap}, nil
}

func opWatchLobby(_ context.Context, s *Server, c *conn, req Request) (any, error) {
	var in arenadto.WatchRequest
	if err := decode(req.Data, &in); err != nil {
		return nil, err
	}
	view, err := s.arena.WatchLobby(c.id, in.LobbyID)
	if err != nil {
		return nil, err
	}
	return arenadto.QueryLobbyResponse{Lobby: view}, nil
}

func opWatchPlayer(_ context.Context, s *Server, c *conn, req Request) (any, error) {
	var in arenadto.WatchRequest
	if err := decode(req.Data, &in); err != nil {
		return nil, err
	}
	status, err := s.arena.WatchPlayer(c.id, in.PlayerID)
	if err != nil {
		return nil, err
	}
	return arenadto.StatusResponse{Status: status}, nil
}

func opUnwatch(_ context.Context, s *Server, c *conn, req Request) (any, error) {
	var in arenadto.WatchRequest
	if err := decode(req.Data, &in); err != nil {
		return nil, err
	}
	if err := s.arena.Unwatch(c.id, in); err != nil {
		return nil, err
	}
	return in, nil
}
