package presence

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/dependencies/clock"
	"github.com/park285/cheese-arena/internal/events"
	"github.com/park285/cheese-arena/internal/timerq"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

const DefaultTimeout = 30 * time.Second

type record struct {
	playerID        string
	online          bool
	gameID          string
	lastHeartbeatAt time.Time
}

func (r *record) visible() arenadto.PresenceStatus {
	return arenadto.PresenceStatus{PlayerID: r.playerID, Online: r.online, GameID: r.gameID}
}

// absent reports whether the record carries nothing worth keeping.
func (r *record) absent() bool { return !r.online && r.gameID == "" }

// Tracker holds per-player presence. Heartbeats keep a player online until
// the timeout passes; game occupancy is kept regardless of heartbeats.
type Tracker struct {
	mu      sync.Mutex
	records map[string]*record
	expiry  *timerq.Queue
	timeout time.Duration
	clock   clock.Clock
	pub     events.Publisher
	logger  *zap.Logger
}

func NewTracker(pub events.Publisher, clk clock.Clock, timeout time.Duration, logger *zap.Logger) *Tracker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		records: make(map[string]*record),
		expiry:  timerq.New(),
		timeout: timeout,
		clock:   clk,
		pub:     pub,
		logger:  logger.Named("presence"),
	}
}

// Heartbeat marks the player online and pushes their demotion deadline out.
func (t *Tracker) Heartbeat(playerID string) arenadto.PresenceStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	rec, prev := t.lookup(playerID)
	rec.online = true
	rec.lastHeartbeatAt = now
	t.expiry.Schedule(playerID, now.Add(t.timeout))
	t.settle(rec, prev)
	return rec.visible()
}

func (t *Tracker) ReportGameStart(playerID, gameID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, prev := t.lookup(playerID)
	rec.gameID = gameID
	t.settle(rec, prev)
}

// ReportGameEnd clears the player's game. A non-empty gameID only clears a
// matching game, so a late report cannot wipe a newer one.
func (t *Tracker) ReportGameEnd(playerID, gameID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[playerID]
	if !ok {
		return
	}
	if gameID != "" && rec.gameID != gameID {
		return
	}
	prev := rec.visible()
	rec.gameID = ""
	t.settle(rec, prev)
}

func (t *Tracker) Status(playerID string) arenadto.PresenceStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.records[playerID]; ok {
		return rec.visible()
	}
	return arenadto.PresenceStatus{PlayerID: playerID}
}

// LastHeartbeat reports when the player last sent a heartbeat.
func (t *Tracker) LastHeartbeat(playerID string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[playerID]
	if !ok || rec.lastHeartbeatAt.IsZero() {
		return time.Time{}, false
	}
	return rec.lastHeartbeatAt, true
}

// Expire demotes every player whose heartbeat deadline has passed and
// returns their ids.
func (t *Tracker) Expire(now time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	due := t.expiry.Due(now)
	for _, playerID := range due {
		rec, ok := t.records[playerID]
		if !ok {
			continue
		}
		prev := rec.visible()
		rec.online = false
		t.logger.Debug("presence_expire", zap.String("player_id", playerID), zap.Bool("in_game", rec.gameID != ""))
		t.settle(rec, prev)
	}
	return due
}

// NextDeadline reports the earliest pending demotion.
func (t *Tracker) NextDeadline() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expiry.Next()
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	t.records = make(map[string]*record)
	t.expiry.Reset()
	t.mu.Unlock()
}

func (t *Tracker) lookup(playerID string) (*record, arenadto.PresenceStatus) {
	rec, ok := t.records[playerID]
	if !ok {
		rec = &record{playerID: playerID}
		t.records[playerID] = rec
	}
	return rec, rec.visible()
}

// settle publishes when the visible status moved and evicts absent records.
func (t *Tracker) settle(rec *record, prev arenadto.PresenceStatus) {
	cur := rec.visible()
	if rec.absent() {
		delete(t.records, rec.playerID)
		t.expiry.Cancel(rec.playerID)
	}
	if cur == prev {
		return
	}
	if t.pub == nil {
		return
	}
	if _, err := events.PresenceChanged.Publish(t.pub, cur, events.Channels(events.ActivityTopic(rec.playerID))); err != nil {
		t.logger.Warn("presence_publish_error", zap.String("player_id", rec.playerID), zap.Error(err))
	}
}
