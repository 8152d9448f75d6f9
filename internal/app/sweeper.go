package app

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
)

// SweepLocks deletes every expired lock.
func (a *App) SweepLocks(ctx context.Context) (int64, error) {
	n, err := a.Locking.SweepExpired(ctx)
	if err != nil {
		a.log.ErrorContext(ctx, "lock sweep failed", "err", err)
		return 0, err
	}
	if n > 0 {
		a.log.InfoContext(ctx, "swept expired locks", "count", n)
	}
	return n, nil
}

// StartSweeper runs SweepLocks on a cron schedule such as "@every 1m" until
// the returned stop function is called. Stop waits for a running sweep.
func (a *App) StartSweeper(ctx context.Context, schedule string) (stop func(), err error) {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		_, _ = a.SweepLocks(ctx)
	}); err != nil {
		return nil, fmt.Errorf("lock sweep schedule %q: %w", schedule, err)
	}
	c.Start()
	a.log.InfoContext(ctx, "lock sweeper started", "schedule", schedule)
	return func() { <-c.Stop().Done() }, nil
}
