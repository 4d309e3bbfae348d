package webhook

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/park285/cheese-arena/internal/domain"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

type captured struct {
	mu     sync.Mutex
	bodies [][]byte
	auth   string
}

func serve(t *testing.T, status int) (*fasthttputil.InmemoryListener, *captured) {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	c := &captured{}
	srv := &fasthttp.Server{Handler: func(ctx *fasthttp.RequestCtx) {
		c.mu.Lock()
		c.bodies = append(c.bodies, append([]byte(nil), ctx.PostBody()...))
		c.auth = string(ctx.Request.Header.Peek("Authorization"))
		c.mu.Unlock()
		ctx.SetStatusCode(status)
	}}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })
	return ln, c
}

func sample() arenadto.GameSummary {
	return arenadto.GameSummary{
		GameID:      "g9",
		White:       domain.Player{ID: "alice"},
		Black:       domain.Player{ID: "bob"},
		Termination: "timeout",
		Victor:      domain.Black,
		VictorID:    "bob",
		MovesSAN:    []string{"e4"},
		StartedAt:   time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		EndedAt:     time.Date(2025, 9, 1, 0, 1, 0, 0, time.UTC),
	}
}

func TestPostsSummary(t *testing.T) {
	ln, got := serve(t, fasthttp.StatusNoContent)
	s, err := New("http://arena.test/hooks/games", WithDial(func(string) (net.Conn, error) { return ln.Dial() }), WithHeader("Authorization", "Bearer t0k"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.SaveSummary(context.Background(), sample()); err != nil {
		t.Fatalf("save: %v", err)
	}
	got.mu.Lock()
	defer got.mu.Unlock()
	if len(got.bodies) != 1 || got.auth != "Bearer t0k" {
		t.Fatalf("server saw %d bodies, auth %q", len(got.bodies), got.auth)
	}
	var body map[string]any
	if err := json.Unmarshal(got.bodies[0], &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["gameId"] != "g9" || body["result"] != "black" || !strings.Contains(body["pgn"].(string), "0-1") {
		t.Fatalf("body = %v", body)
	}
}

func TestNon2xxIsError(t *testing.T) {
	ln, _ := serve(t, fasthttp.StatusServiceUnavailable)
	s, _ := New("http://arena.test/hooks", WithDial(func(string) (net.Conn, error) { return ln.Dial() }))
	if err := s.SaveSummary(context.Background(), sample()); err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("err = %v", err)
	}
	if _, err := New(""); err == nil {
		t.Fatalf("expected error for empty url")
	}
}
