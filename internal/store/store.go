// Package store hands concluded game summaries to persistence. Saving is
// fire-and-forget from the engine's side; see Dispatcher.
package store

import (
	"context"

	"github.com/park285/cheese-arena/pkg/arenadto"
)

// SummaryStore persists one concluded game.
type SummaryStore interface {
	SaveSummary(ctx context.Context, s arenadto.GameSummary) error
}

// HistoryReader returns a player's most recent games, newest first.
type HistoryReader interface {
	Recent(ctx context.Context, playerID string, limit int) ([]arenadto.GameSummary, error)
}
