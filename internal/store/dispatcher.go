package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/pkg/arenadto"
)

const (
	DefaultQueueSize   = 256
	defaultSaveTimeout = 5 * time.Second
)

// Dispatcher saves summaries on a background worker. Submit never blocks;
// failures are logged and not retried.
type Dispatcher struct {
	store   SummaryStore
	queue   chan arenadto.GameSummary
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewDispatcher(s SummaryStore, size int, logger *zap.Logger) *Dispatcher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		store:   s,
		queue:   make(chan arenadto.GameSummary, size),
		timeout: defaultSaveTimeout,
		logger:  logger.Named("store"),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Submit queues s for saving. It reports false when the queue is full or the
// dispatcher is closed; the summary is then dropped.
func (d *Dispatcher) Submit(s arenadto.GameSummary) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("summary_dropped", zap.String("game_id", s.GameID), zap.String("reason", "closed"))
		return false
	}
	select {
	case d.queue <- s:
		return true
	default:
		d.logger.Warn("summary_dropped", zap.String("game_id", s.GameID), zap.String("reason", "queue_full"))
		return false
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for s := range d.queue {
		d.save(s)
	}
}

func (d *Dispatcher) save(s arenadto.GameSummary) {
	if d.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	start := time.Now()
	if err := d.store.SaveSummary(ctx, s); err != nil {
		d.logger.Error("summary_persist_error", zap.String("game_id", s.GameID), zap.Error(err))
		return
	}
	d.logger.Debug("summary_persist", zap.String("game_id", s.GameID), zap.Duration("took", time.Since(start)))
}

// Close stops accepting summaries and waits for queued ones to be saved or
// for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
