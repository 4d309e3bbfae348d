package clock

import "time"

// Clock is the wall-clock source used for game clocks, heartbeats and expiry.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func New() *RealClock { return &RealClock{} }

func (RealClock) Now() time.Time { return time.Now() }
