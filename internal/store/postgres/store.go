// Package postgres stores concluded games in PostgreSQL through lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/cheese-arena/internal/domain"
	"github.com/park285/cheese-arena/internal/store"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

const schema = `CREATE TABLE IF NOT EXISTS arena_games (
    game_id       TEXT PRIMARY KEY,
    white_id      TEXT NOT NULL,
    white_name    TEXT NOT NULL,
    black_id      TEXT NOT NULL,
    black_name    TEXT NOT NULL,
    time_control  TEXT NOT NULL DEFAULT '',
    result        TEXT NOT NULL,
    termination   TEXT NOT NULL,
    victor_id     TEXT NOT NULL DEFAULT '',
    moves_uci     JSONB NOT NULL,
    moves_san     JSONB NOT NULL,
    final_fen     TEXT NOT NULL,
    pgn           TEXT NOT NULL,
    started_at    TIMESTAMPTZ NOT NULL,
    ended_at      TIMESTAMPTZ NOT NULL,
    duration_ms   BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS arena_games_white_idx ON arena_games (white_id, ended_at DESC);
CREATE INDEX IF NOT EXISTS arena_games_black_idx ON arena_games (black_id, ended_at DESC);`

const upsert = `INSERT INTO arena_games (
    game_id, white_id, white_name, black_id, black_name,
    time_control, result, termination, victor_id,
    moves_uci, moves_san, final_fen, pgn,
    started_at, ended_at, duration_ms
  ) VALUES (
    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
  ) ON CONFLICT (game_id) DO UPDATE SET
    white_id=EXCLUDED.white_id,
    white_name=EXCLUDED.white_name,
    black_id=EXCLUDED.black_id,
    black_name=EXCLUDED.black_name,
    time_control=EXCLUDED.time_control,
    result=EXCLUDED.result,
    termination=EXCLUDED.termination,
    victor_id=EXCLUDED.victor_id,
    moves_uci=EXCLUDED.moves_uci,
    moves_san=EXCLUDED.moves_san,
    final_fen=EXCLUDED.final_fen,
    pgn=EXCLUDED.pgn,
    started_at=EXCLUDED.started_at,
    ended_at=EXCLUDED.ended_at,
    duration_ms=EXCLUDED.duration_ms`

const recent = `SELECT game_id, white_id, white_name, black_id, black_name,
    time_control, result, termination, victor_id,
    moves_uci, moves_san, final_fen, started_at, ended_at
  FROM arena_games
  WHERE white_id = $1 OR black_id = $1
  ORDER BY ended_at DESC
  LIMIT $2`

type Store struct {
	db *sql.DB
}

var (
	_ store.SummaryStore  = (*Store)(nil)
	_ store.HistoryReader = (*Store)(nil)
)

// Open connects to databaseURL, checks the connection and creates the schema.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	s := New(db)
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveSummary upserts a concluded game together with its PGN.
func (s *Store) SaveSummary(ctx context.Context, g arenadto.GameSummary) error {
	if s == nil || s.db == nil {
		return nil
	}
	movesUCI, err := json.Marshal(nonNil(g.MovesUCI))
	if err != nil {
		return err
	}
	movesSAN, err := json.Marshal(nonNil(g.MovesSAN))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, upsert,
		g.GameID,
		g.White.ID, g.White.Name(),
		g.Black.ID, g.Black.Name(),
		g.TimeControl, g.Result(), g.Termination, g.VictorID,
		string(movesUCI), string(movesSAN), g.FinalFEN, store.BuildPGN(g),
		g.StartedAt, g.EndedAt, g.Duration().Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", g.GameID, err)
	}
	return nil
}

func (s *Store) Recent(ctx context.Context, playerID string, limit int) ([]arenadto.GameSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, recent, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []arenadto.GameSummary
	for rows.Next() {
		var (
			g                  arenadto.GameSummary
			result             string
			movesUCI, movesSAN []byte
		)
		if err := rows.Scan(
			&g.GameID, &g.White.ID, &g.White.DisplayName, &g.Black.ID, &g.Black.DisplayName,
			&g.TimeControl, &result, &g.Termination, &g.VictorID,
			&movesUCI, &movesSAN, &g.FinalFEN, &g.StartedAt, &g.EndedAt,
		); err != nil {
			return nil, err
		}
		g.Victor = victorOf(result)
		if err := json.Unmarshal(movesUCI, &g.MovesUCI); err != nil {
			return nil, fmt.Errorf("decode moves_uci %s: %w", g.GameID, err)
		}
		if err := json.Unmarshal(movesSAN, &g.MovesSAN); err != nil {
			return nil, fmt.Errorf("decode moves_san %s: %w", g.GameID, err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func victorOf(result string) domain.Color {
	switch result {
	case "white":
		return domain.White
	case "black":
		return domain.Black
	default:
		return domain.NoColor
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
