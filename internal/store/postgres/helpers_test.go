package postgres

import (
	"time"

	"github.com/park285/cheese-arena/internal/domain"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

func sampleSummary() arenadto.GameSummary {
	start := time.Date(2025, 7, 4, 10, 0, 0, 0, time.UTC)
	return arenadto.GameSummary{
		GameID:    "g1",
		White:     domain.Player{ID: "alice"},
		Black:     domain.Player{ID: "bob"},
		StartedAt: start,
		EndedAt:   start.Add(time.Minute),
	}
}
