package capture

import (
	"context"
	"time"
)

// frameTicker keeps (approx) a fixed polling interval without accumulating drift.
// Call Wait once per loop iteration.
type frameTicker struct {
	dur  time.Duration
	next time.Time
}

// newTicker creates a frameTicker firing every interval. If interval <= 0 it
// never waits.
func newTicker(interval time.Duration) *frameTicker {
	if interval < 0 {
		interval = 0
	}
	return &frameTicker{dur: interval}
}

// Wait sleeps until the scheduled next frame time or until ctx is done.
// If we're behind schedule, it resets the schedule to now (drops delay rather than piling up).
func (t *frameTicker) Wait(ctx context.Context) error {
	if t.dur <= 0 {
		return ctx.Err()
	}
	now := time.Now()
	if t.next.IsZero() {
		t.next = now.Add(t.dur)
		return ctx.Err()
	}
	if sleep := t.next.Sub(now); sleep > 0 {
		timer := time.NewTimer(sleep)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	t.next = t.next.Add(t.dur)
	// If fell behind more than one interval, reset to now + dur
	if lag := time.Since(t.next); lag > t.dur {
		t.next = time.Now().Add(t.dur)
	}
	return nil
}
