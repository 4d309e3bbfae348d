package mocks

import (
	"fmt"
	"sync"

	"github.com/park285/cheese-arena/internal/dependencies/random"
)

// MockRandom replays queued results. An exhausted Intn queue yields zero;
// an exhausted String queue yields a zero-padded sequence number.
type MockRandom struct {
	mu      sync.Mutex
	ints    []int
	strings []string
	seq     int
}

var _ random.Random = (*MockRandom)(nil)

func NewMockRandom() *MockRandom { return &MockRandom{} }

func (r *MockRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	if n > 0 {
		v %= n
	}
	return v
}

func (r *MockRandom) String(length int, alphabet string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.strings) == 0 {
		r.seq++
		return fmt.Sprintf("%0*d", length, r.seq)
	}
	v := r.strings[0]
	r.strings = r.strings[1:]
	return v
}

func (r *MockRandom) QueueIntn(values ...int) {
	r.mu.Lock()
	r.ints = append(r.ints, values...)
	r.mu.Unlock()
}

func (r *MockRandom) QueueString(values ...string) {
	r.mu.Lock()
	r.strings = append(r.strings, values...)
	r.mu.Unlock()
}
