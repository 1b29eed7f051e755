package ops

import (
	"context"
	"time"
)

// RunDaily fires fn once per day at the given local wall-clock time until ctx
// is cancelled. The first firing is the next occurrence of hh:mm, so a daemon
// started after report time does not report twice.
func RunDaily(ctx context.Context, hour, min int, fn func()) {
	for {
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(), hour, min, 0, 0, time.Local)
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		t := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
			fn()
		}
	}
}
