// Package ws serves the arena over websockets. Each connection has one
// reader, one writer and a bounded outbox; a connection that cannot keep up
// is dropped rather than allowed to stall a broadcast.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/cheese-arena/internal/arena"
	"github.com/park285/cheese-arena/internal/domain"
	"github.com/park285/cheese-arena/internal/msgcat"
)

const (
	DefaultOutbox = 64
	writeTimeout  = 5 * time.Second
	readLimit     = 64 << 10
)

var ErrUnknownConnection = errors.New("unknown connection")

type Option func(*Server)

func WithOrigins(patterns ...string) Option {
	return func(s *Server) { s.origins = append(s.origins, patterns...) }
}

func WithOutbox(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.outbox = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

type conn struct {
	id     string
	out    chan []byte
	cancel context.CancelFunc

	mu     sync.Mutex
	player *domain.Player
}

func (c *conn) identity() (domain.Player, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.player == nil {
		return domain.Player{}, false
	}
	return *c.player, true
}

func (c *conn) identify(p domain.Player) {
	c.mu.Lock()
	c.player = &p
	c.mu.Unlock()
}

type Server struct {
	arena    *arena.Arena
	messages *msgcat.Catalog
	logger   *zap.Logger
	origins  []string
	outbox   int

	mu    sync.RWMutex
	conns map[string]*conn
}

// NewServer builds a Server. A nil messages catalog falls back to the
// embedded defaults.
func NewServer(a *arena.Arena, messages *msgcat.Catalog, opts ...Option) (*Server, error) {
	s := &Server{
		arena:    a,
		messages: messages,
		logger:   zap.NewNop(),
		outbox:   DefaultOutbox,
		conns:    make(map[string]*conn),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.messages == nil {
		cat, err := msgcat.New("")
		if err != nil {
			return nil, fmt.Errorf("ws: default messages: %w", err)
		}
		s.messages = cat
	}
	s.logger = s.logger.Named("ws")
	return s, nil
}

// Send queues payload for connID without blocking. A full outbox drops the
// connection.
func (s *Server) Send(connID string, payload []byte) error {
	s.mu.RLock()
	c, ok := s.conns[connID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConnection, connID)
	}
	return s.enqueue(c, payload)
}

func (s *Server) enqueue(c *conn, payload []byte) error {
	select {
	case c.out <- payload:
		return nil
	default:
		s.logger.Warn("ws_outbox_full", zap.String("conn_id", c.id))
		c.cancel()
		return fmt.Errorf("outbox full for %s", c.id)
	}
}

func (s *Server) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// Shutdown cancels every live connection.
func (s *Server) Shutdown() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.conns {
		c.cancel()
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sock, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		s.logger.Warn("ws_accept_error", zap.Error(err))
		return
	}
	sock.SetReadLimit(readLimit)

	ctx, cancel := context.WithCancel(r.Context())
	c := &conn{id: uuid.NewString(), out: make(chan []byte, s.outbox), cancel: cancel}
	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()
	s.logger.Debug("ws_open", zap.String("conn_id", c.id), zap.String("remote", r.RemoteAddr))

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writeLoop(ctx, c, sock)
	}()
	s.readLoop(ctx, c, sock)

	cancel()
	<-done
	s.mu.Lock()
	delete(s.conns, c.id)
	s.mu.Unlock()
	if err := s.arena.Disconnect(c.id); err != nil {
		s.logger.Warn("ws_disconnect_error", zap.String("conn_id", c.id), zap.Error(err))
	}
	_ = sock.Close(websocket.StatusNormalClosure, "bye")
	s.logger.Debug("ws_close", zap.String("conn_id", c.id))
}

func (s *Server) writeLoop(ctx context.Context, c *conn, sock *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-c.out:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := sock.Write(wctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				c.cancel()
				return
			}
		}
	}
}

func (s *Server) readLoop(ctx context.Context, c *conn, sock *websocket.Conn) {
	for {
		_, data, err := sock.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if ctx.Err() == nil {
					s.logger.Debug("ws_read_error", zap.String("conn_id", c.id), zap.Error(err))
				}
			}
			return
		}
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			s.reply(c, Response{Error: s.wireError(c, "", errBadJSON)})
			continue
		}
		s.reply(c, s.dispatch(ctx, c, req))
	}
}

func (s *Server) reply(c *conn, resp Response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("ws_encode_error", zap.String("conn_id", c.id), zap.Error(err))
		return
	}
	_ = s.enqueue(c, payload)
}
