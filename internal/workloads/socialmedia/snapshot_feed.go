package socialmedia

import (
	"context"
	"fmt"
	"sync"

	"tunefriends/internal/app"
)

// SnapshotFeedTest posts a snapshot and then has SnapshotReaders other users
// read the poster's active snapshots, the read-heavy side of a feed.
type SnapshotFeedTest struct {
	Users int

	mu  sync.Mutex
	pop *population
}

func (t *SnapshotFeedTest) Name() string { return "snapshot_feed" }

func (t *SnapshotFeedTest) Setup(ctx context.Context, a *app.App) error {
	users := t.Users
	if users == 0 {
		users = DefaultUsers
	}
	pop, err := seed(ctx, a, "snapshot-user", users)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.pop = pop
	t.mu.Unlock()
	return nil
}

func (t *SnapshotFeedTest) Step(ctx context.Context, a *app.App, worker, iteration int) error {
	t.mu.Lock()
	pop := t.pop
	t.mu.Unlock()

	author := (worker + iteration) % pop.size()
	text := fmt.Sprintf("worker %d listening, take %d", worker, iteration)
	if _, err := a.CreateSnapshot(ctx, pop.principals[author], fmt.Sprintf("song-%d", iteration%10), text, "", ""); err != nil {
		return err
	}
	readers := SnapshotReaders
	if readers >= pop.size() {
		readers = pop.size() - 1
	}
	for r := 1; r <= readers; r++ {
		if _, err := a.GetActiveSnapshots(ctx, pop.names[author]); err != nil {
			return err
		}
	}
	return nil
}

func (t *SnapshotFeedTest) Teardown(ctx context.Context, a *app.App) error {
	t.mu.Lock()
	pop := t.pop
	t.pop = nil
	t.mu.Unlock()
	return pop.teardown(ctx, a)
}
