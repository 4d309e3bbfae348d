// Package timerq is a delay queue of (deadline, key) pairs ordered by deadline.
// At most one deadline is held per key. The queue is not safe for concurrent use.
package timerq

import (
	"container/heap"
	"time"
)

type entry struct {
	key   string
	at    time.Time
	seq   uint64
	index int
}

type entries []*entry

func (h entries) Len() int { return len(h) }

func (h entries) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}

func (h entries) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entries) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entries) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

type Queue struct {
	heap  entries
	byKey map[string]*entry
	seq   uint64
}

func New() *Queue {
	return &Queue{byKey: make(map[string]*entry)}
}

// Schedule sets the deadline for key, replacing any earlier one.
func (q *Queue) Schedule(key string, at time.Time) {
	q.seq++
	if e, ok := q.byKey[key]; ok {
		e.at = at
		e.seq = q.seq
		heap.Fix(&q.heap, e.index)
		return
	}
	e := &entry{key: key, at: at, seq: q.seq}
	heap.Push(&q.heap, e)
	q.byKey[key] = e
}

// Cancel drops key's deadline. It reports whether one was pending.
func (q *Queue) Cancel(key string) bool {
	e, ok := q.byKey[key]
	if !ok {
		return false
	}
	heap.Remove(&q.heap, e.index)
	delete(q.byKey, key)
	return true
}

func (q *Queue) Deadline(key string) (time.Time, bool) {
	e, ok := q.byKey[key]
	if !ok {
		return time.Time{}, false
	}
	return e.at, true
}

// Due pops every key whose deadline is at or before now, earliest first.
func (q *Queue) Due(now time.Time) []string {
	var out []string
	for len(q.heap) > 0 && !q.heap[0].at.After(now) {
		e := heap.Pop(&q.heap).(*entry)
		delete(q.byKey, e.key)
		out = append(out, e.key)
	}
	return out
}

// Next reports the earliest pending deadline.
func (q *Queue) Next() (time.Time, bool) {
	if len(q.heap) == 0 {
		return time.Time{}, false
	}
	return q.heap[0].at, true
}

func (q *Queue) Len() int { return len(q.heap) }

func (q *Queue) Reset() {
	q.heap = nil
	q.byKey = make(map[string]*entry)
	q.seq = 0
}
