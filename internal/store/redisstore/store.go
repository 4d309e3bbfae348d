// Package redisstore keeps concluded game summaries and per-player history
// lists in Redis.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/park285/cheese-arena/internal/store"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

const (
	defaultTTL        = 30 * 24 * time.Hour
	defaultHistoryCap = 100
)

type Store struct {
	rdb        *redis.Client
	ttl        time.Duration
	historyCap int64
}

var (
	_ store.SummaryStore  = (*Store)(nil)
	_ store.HistoryReader = (*Store)(nil)
)

type Option func(*Store)

// WithTTL sets how long summaries and history lists live; zero disables expiry.
func WithTTL(d time.Duration) Option { return func(s *Store) { s.ttl = d } }

// WithHistoryCap bounds each player's history list.
func WithHistoryCap(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.historyCap = int64(n)
		}
	}
}

func New(rdb *redis.Client, opts ...Option) *Store {
	s := &Store{rdb: rdb, ttl: defaultTTL, historyCap: defaultHistoryCap}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open dials redisURL and checks the connection.
func Open(ctx context.Context, redisURL string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	o, err := ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(o)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(rdb, opts...), nil
}

// ParseURL accepts redis:// and rediss:// URLs with an optional /db path.
func ParseURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("bad redis db %q", p)
		}
		db = n
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Username: u.User.Username(), Password: pass, DB: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func keySummary(gameID string) string { return "arena:game:" + strings.TrimSpace(gameID) }

func keyHistory(playerID string) string { return "arena:history:" + strings.TrimSpace(playerID) }

// SaveSummary stores the summary and pushes its id onto both players' lists.
func (s *Store) SaveSummary(ctx context.Context, g arenadto.GameSummary) error {
	raw, err := json.Marshal(g)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, keySummary(g.GameID), raw, s.ttl)
	for _, p := range []string{g.White.ID, g.Black.ID} {
		if strings.TrimSpace(p) == "" {
			continue
		}
		key := keyHistory(p)
		pipe.LRem(ctx, key, 0, g.GameID)
		pipe.LPush(ctx, key, g.GameID)
		pipe.LTrim(ctx, key, 0, s.historyCap-1)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save %s: %w", g.GameID, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, gameID string) (*arenadto.GameSummary, error) {
	raw, err := s.rdb.Get(ctx, keySummary(gameID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var g arenadto.GameSummary
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// Recent returns up to limit summaries, newest first. Ids whose summary
// expired are skipped.
func (s *Store) Recent(ctx context.Context, playerID string, limit int) ([]arenadto.GameSummary, error) {
	if limit <= 0 {
		limit = int(s.historyCap)
	}
	ids, err := s.rdb.LRange(ctx, keyHistory(playerID), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = keySummary(id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]arenadto.GameSummary, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var g arenadto.GameSummary
		if err := json.Unmarshal([]byte(str), &g); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}
