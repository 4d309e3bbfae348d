package store

import (
	"context"
	"errors"

	"github.com/park285/cheese-arena/pkg/arenadto"
)

// Multi saves to every store and reads history from the first one that can.
type Multi struct {
	stores []SummaryStore
}

func NewMulti(stores ...SummaryStore) *Multi {
	out := make([]SummaryStore, 0, len(stores))
	for _, s := range stores {
		if s != nil {
			out = append(out, s)
		}
	}
	return &Multi{stores: out}
}

func (m *Multi) Len() int { return len(m.stores) }

// SaveSummary tries every store; one failing does not skip the rest.
func (m *Multi) SaveSummary(ctx context.Context, s arenadto.GameSummary) error {
	var errs []error
	for _, st := range m.stores {
		if err := st.SaveSummary(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Recent(ctx context.Context, playerID string, limit int) ([]arenadto.GameSummary, error) {
	for _, st := range m.stores {
		if r, ok := st.(HistoryReader); ok {
			return r.Recent(ctx, playerID, limit)
		}
	}
	return nil, nil
}
