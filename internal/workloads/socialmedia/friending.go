package socialmedia

import (
	"context"
	"sync"

	"tunefriends/internal/app"
)

// FriendingTest runs the full request protocol per step: send, accept, read
// both friend lists and remove the friendship again. Workers own disjoint
// pairs of accounts while concurrency is at most Users/2.
type FriendingTest struct {
	Users int

	mu  sync.Mutex
	pop *population
}

func (t *FriendingTest) Name() string { return "friending" }

func (t *FriendingTest) Setup(ctx context.Context, a *app.App) error {
	users := t.Users
	if users == 0 {
		users = DefaultUsers
	}
	pop, err := seed(ctx, a, "friending-user", users)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.pop = pop
	t.mu.Unlock()
	return nil
}

func (t *FriendingTest) population() *population {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pop
}

func (t *FriendingTest) Step(ctx context.Context, a *app.App, worker, iteration int) error {
	pop := t.population()
	pairs := pop.size() / 2
	base := 2 * (worker % pairs)
	from, to := base, base+1
	if iteration%2 == 1 {
		from, to = to, from
	}

	if _, err := a.SendFriendRequest(ctx, pop.principals[from], pop.names[to]); err != nil {
		return err
	}
	if err := a.AcceptFriendRequest(ctx, pop.principals[to], pop.names[from]); err != nil {
		return err
	}
	if _, err := a.GetFriends(ctx, pop.principals[from]); err != nil {
		return err
	}
	if _, err := a.GetFriends(ctx, pop.principals[to]); err != nil {
		return err
	}
	return a.RemoveFriend(ctx, pop.principals[from], pop.names[to])
}

func (t *FriendingTest) Teardown(ctx context.Context, a *app.App) error {
	t.mu.Lock()
	pop := t.pop
	t.pop = nil
	t.mu.Unlock()
	return pop.teardown(ctx, a)
}
