package timerq

import (
	"testing"
	"time"
)

var t0 = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func TestDueInDeadlineOrder(t *testing.T) {
	q := New()
	q.Schedule("c", t0.Add(3*time.Second))
	q.Schedule("a", t0.Add(1*time.Second))
	q.Schedule("b", t0.Add(2*time.Second))

	if got := q.Due(t0); len(got) != 0 {
		t.Fatalf("nothing should be due yet, got %v", got)
	}
	got := q.Due(t0.Add(2 * time.Second))
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("due = %v", got)
	}
	if q.Len() != 1 {
		t.Fatalf("len = %d", q.Len())
	}
	next, ok := q.Next()
	if !ok || !next.Equal(t0.Add(3*time.Second)) {
		t.Fatalf("next = %v %v", next, ok)
	}
}

func TestScheduleReplaces(t *testing.T) {
	q := New()
	q.Schedule("p1", t0.Add(time.Second))
	q.Schedule("p1", t0.Add(10*time.Second))
	if q.Len() != 1 {
		t.Fatalf("len = %d, want 1", q.Len())
	}
	if got := q.Due(t0.Add(5 * time.Second)); len(got) != 0 {
		t.Fatalf("stale deadline fired: %v", got)
	}
	if got := q.Due(t0.Add(10 * time.Second)); len(got) != 1 || got[0] != "p1" {
		t.Fatalf("due = %v", got)
	}
}

func TestCancel(t *testing.T) {
	q := New()
	q.Schedule("a", t0)
	q.Schedule("b", t0)
	if !q.Cancel("a") {
		t.Fatalf("cancel a reported nothing pending")
	}
	if q.Cancel("a") {
		t.Fatalf("second cancel reported pending")
	}
	if got := q.Due(t0); len(got) != 1 || got[0] != "b" {
		t.Fatalf("due = %v", got)
	}
	if _, ok := q.Deadline("b"); ok {
		t.Fatalf("b still pending after Due")
	}
}

func TestEqualDeadlinesKeepScheduleOrder(t *testing.T) {
	q := New()
	for _, k := range []string{"x", "y", "z"} {
		q.Schedule(k, t0)
	}
	got := q.Due(t0)
	if len(got) != 3 || got[0] != "x" || got[2] != "z" {
		t.Fatalf("due = %v", got)
	}
	q.Schedule("k", t0)
	q.Reset()
	if q.Len() != 0 {
		t.Fatalf("reset left %d", q.Len())
	}
}
