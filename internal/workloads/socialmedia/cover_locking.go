package socialmedia

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tunefriends/internal/app"
)

// CoverLockingTest locks one of a user's covers for a short window and then
// reads the unlocked covers, which joins covers against the live locks and
// sweeps expired ones on the way.
type CoverLockingTest struct {
	Users      int
	LockWindow time.Duration

	mu     sync.Mutex
	pop    *population
	covers [][]string
}

func (t *CoverLockingTest) Name() string { return "cover_locking" }

func (t *CoverLockingTest) Setup(ctx context.Context, a *app.App) error {
	users := t.Users
	if users == 0 {
		users = DefaultUsers
	}
	pop, err := seed(ctx, a, "locking-user", users)
	if err != nil {
		return err
	}
	covers := make([][]string, users)
	for i, p := range pop.principals {
		for j := 0; j < CoversPerUser; j++ {
			cover, err := a.CreateCover(ctx, p, fmt.Sprintf("song-%d", j), fmt.Sprintf("cover %d by %s", j, pop.names[i]), "", "")
			if err != nil {
				return err
			}
			covers[i] = append(covers[i], cover.ID)
		}
	}
	t.mu.Lock()
	t.pop, t.covers = pop, covers
	t.mu.Unlock()
	return nil
}

func (t *CoverLockingTest) Step(ctx context.Context, a *app.App, worker, iteration int) error {
	t.mu.Lock()
	pop, covers := t.pop, t.covers
	window := t.LockWindow
	t.mu.Unlock()
	if window <= 0 {
		window = 50 * time.Millisecond
	}

	user := (worker + iteration) % pop.size()
	cover := covers[user][iteration%len(covers[user])]
	now := time.Now()
	if _, err := a.CreateLock(ctx, pop.principals[user], cover, now, now.Add(window)); err != nil {
		return err
	}
	_, err := a.GetUnlockedCovers(ctx, pop.names[user])
	return err
}

func (t *CoverLockingTest) Teardown(ctx context.Context, a *app.App) error {
	t.mu.Lock()
	pop := t.pop
	t.pop, t.covers = nil, nil
	t.mu.Unlock()
	return pop.teardown(ctx, a)
}
