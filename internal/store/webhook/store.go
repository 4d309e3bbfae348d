// Package webhook posts concluded game summaries to an HTTP endpoint.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/cheese-arena/internal/store"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

type Store struct {
	url     string
	http    *fasthttp.Client
	timeout time.Duration
	headers map[string]string
}

var _ store.SummaryStore = (*Store)(nil)

type Option func(*Store)

func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithHeader(k, v string) Option {
	return func(s *Store) {
		if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
			s.headers[k] = v
		}
	}
}

// WithDial replaces the client's dialer.
func WithDial(dial func(addr string) (net.Conn, error)) Option {
	return func(s *Store) { s.http.Dial = dial }
}

func New(url string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("webhook url is required")
	}
	s := &Store{
		url:     url,
		http:    &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		timeout: 10 * time.Second,
		headers: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// payload is the webhook body: the summary plus its PGN.
type payload struct {
	arenadto.GameSummary
	Result string `json:"result"`
	PGN    string `json:"pgn"`
}

func (s *Store) SaveSummary(ctx context.Context, g arenadto.GameSummary) error {
	body, err := json.Marshal(payload{GameSummary: g, Result: g.Result(), PGN: store.BuildPGN(g)})
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(s.url)
	req.Header.SetContentType("application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	req.SetBody(body)

	if err := s.http.DoDeadline(req, resp, s.deadline(ctx)); err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	if status := resp.StatusCode(); status < 200 || status >= 300 {
		return fmt.Errorf("webhook error: status=%d body=%s", status, truncate(string(resp.Body()), 256))
	}
	return nil
}

func (s *Store) deadline(ctx context.Context) time.Time {
	own := time.Now().Add(s.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(own) {
		return dl
	}
	return own
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
