package store

import (
	"context"
	"sync"

	"github.com/park285/cheese-arena/pkg/arenadto"
)

// Memory keeps summaries in process. It backs tests and deployments without
// an external store.
type Memory struct {
	mu       sync.RWMutex
	byID     map[string]arenadto.GameSummary
	byPlayer map[string][]string
}

func NewMemory() *Memory {
	return &Memory{
		byID:     make(map[string]arenadto.GameSummary),
		byPlayer: make(map[string][]string),
	}
}

func (m *Memory) SaveSummary(_ context.Context, s arenadto.GameSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, seen := m.byID[s.GameID]; !seen {
		for _, p := range []string{s.White.ID, s.Black.ID} {
			if p != "" {
				m.byPlayer[p] = append(m.byPlayer[p], s.GameID)
			}
		}
	}
	m.byID[s.GameID] = s
	return nil
}

func (m *Memory) Recent(_ context.Context, playerID string, limit int) ([]arenadto.GameSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.byPlayer[playerID]
	out := make([]arenadto.GameSummary, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, m.byID[ids[i]])
	}
	return out, nil
}

func (m *Memory) Get(gameID string) (arenadto.GameSummary, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[gameID]
	return s, ok
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}
