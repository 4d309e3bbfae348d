package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/park285/cheese-arena/internal/domain"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

func summary(id string, white, black string, victor domain.Color) arenadto.GameSummary {
	start := time.Date(2025, 7, 4, 10, 0, 0, 0, time.UTC)
	return arenadto.GameSummary{
		GameID:      id,
		White:       domain.Player{ID: white, DisplayName: strings.ToUpper(white)},
		Black:       domain.Player{ID: black, DisplayName: strings.ToUpper(black)},
		TimeControl: "5m",
		Termination: "checkmate",
		Victor:      victor,
		MovesUCI:    []string{"f2f3", "e7e5", "g2g4", "d8h4"},
		MovesSAN:    []string{"f3", "e5", "g4", "Qh4#"},
		StartedAt:   start,
		EndedAt:     start.Add(time.Minute),
	}
}

type flakyStore struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *flakyStore) SaveSummary(context.Context, arenadto.GameSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return errors.New("db down")
	}
	return nil
}

func TestDispatcherDrainsOnClose(t *testing.T) {
	mem := NewMemory()
	d := NewDispatcher(mem, 8, nil)
	for _, id := range []string{"g1", "g2", "g3"} {
		if !d.Submit(summary(id, "a", "b", domain.Black)) {
			t.Fatalf("submit %s rejected", id)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if mem.Len() != 3 {
		t.Fatalf("saved %d, want 3", mem.Len())
	}
	if d.Submit(summary("g4", "a", "b", domain.Black)) {
		t.Fatalf("submit after close accepted")
	}
	if err := d.Close(ctx); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestDispatcherSurvivesFailures(t *testing.T) {
	st := &flakyStore{fail: true}
	d := NewDispatcher(st, 4, nil)
	d.Submit(summary("g1", "a", "b", domain.White))
	d.Submit(summary("g2", "a", "b", domain.White))
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if st.calls != 2 {
		t.Fatalf("calls = %d, want 2 with no retries", st.calls)
	}
}

func TestMemoryRecentNewestFirst(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	for _, id := range []string{"g1", "g2", "g3"} {
		if err := mem.SaveSummary(ctx, summary(id, "alice", "bob", domain.White)); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	_ = mem.SaveSummary(ctx, summary("g2", "alice", "bob", domain.Black))
	got, err := mem.Recent(ctx, "bob", 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].GameID != "g3" || got[1].GameID != "g2" || got[1].Victor != domain.Black {
		t.Fatalf("recent = %+v", got)
	}
	if none, _ := mem.Recent(ctx, "carol", 5); len(none) != 0 {
		t.Fatalf("carol history = %+v", none)
	}
}

func TestMultiSavesEverywhere(t *testing.T) {
	bad := &flakyStore{fail: true}
	mem := NewMemory()
	m := NewMulti(bad, nil, mem)
	if m.Len() != 2 {
		t.Fatalf("len = %d", m.Len())
	}
	err := m.SaveSummary(context.Background(), summary("g1", "a", "b", domain.NoColor))
	if err == nil {
		t.Fatalf("expected joined error")
	}
	if mem.Len() != 1 {
		t.Fatalf("memory store skipped after failure")
	}
	got, err := m.Recent(context.Background(), "a", 10)
	if err != nil || len(got) != 1 {
		t.Fatalf("recent = %+v, %v", got, err)
	}
}

func TestBuildPGN(t *testing.T) {
	s := summary("g1", "alice", "bob", domain.Black)
	s.White.DisplayName = `Al "the" ice`
	pgn := BuildPGN(s)
	for _, want := range []string{
		`[White "Al 'the' ice"]`,
		`[Black "BOB"]`,
		`[Date "2025.07.04"]`,
		`[TimeControl "5m"]`,
		`[Termination "checkmate"]`,
		`[Result "0-1"]`,
		"1. f3 e5 2. g4 Qh4# 0-1",
	} {
		if !strings.Contains(pgn, want) {
			t.Fatalf("pgn missing %q:\n%s", want, pgn)
		}
	}
	if PGNResult("draw") != "1/2-1/2" || PGNResult("") != "*" {
		t.Fatalf("result mapping wrong")
	}
}
