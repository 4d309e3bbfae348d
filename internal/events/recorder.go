package events

import (
	"sync"

	"github.com/park285/cheese-arena/internal/broadcast"
)

// Published is one recorded publish.
type Published struct {
	Event  string
	Data   any
	Target broadcast.Target
}

// Recorder is an in-memory Publisher for tests and dry runs.
type Recorder struct {
	mu   sync.Mutex
	list []Published
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Publish(event string, data any, t broadcast.Target) (broadcast.Delivery, error) {
	r.mu.Lock()
	r.list = append(r.list, Published{Event: event, Data: data, Target: t})
	r.mu.Unlock()
	return broadcast.Delivery{Recipients: len(t.Channels) + len(t.Subscribers)}, nil
}

func (r *Recorder) All() []Published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Published(nil), r.list...)
}

// Named filters recorded publishes by event name.
func (r *Recorder) Named(event string) []Published {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Published
	for _, p := range r.list {
		if p.Event == event {
			out = append(out, p)
		}
	}
	return out
}

// To filters recorded publishes addressed to the given channel key.
func (r *Recorder) To(key string) []Published {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Published
	for _, p := range r.list {
		for _, c := range p.Target.Channels {
			if c == key {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.list = nil
	r.mu.Unlock()
}
