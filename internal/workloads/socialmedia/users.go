// Package socialmedia holds load workloads that exercise the app the way its
// users do: befriending each other, locking covers and posting snapshots.
package socialmedia

import (
	"context"
	"errors"
	"fmt"

	"tunefriends/internal/app"
	apperrors "tunefriends/internal/errors"
)

const (
	DefaultUsers    = 100
	CoversPerUser   = 5
	SnapshotReaders = 10
)

// population is a set of logged-in accounts shared by a workload's workers.
type population struct {
	names      []string
	principals []app.Principal
}

// seed registers and logs in n accounts named prefix0..prefix(n-1). Accounts
// left over from an earlier run are reused.
func seed(ctx context.Context, a *app.App, prefix string, n int) (*population, error) {
	if n < 2 {
		return nil, fmt.Errorf("need at least 2 users, got %d", n)
	}
	p := &population{names: make([]string, n), principals: make([]app.Principal, n)}
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("%s%d", prefix, i)
		password := "pw-" + name
		if _, err := a.Register(ctx, name, password); err != nil && !apperrors.HasCode(err, apperrors.CodeUsernameTaken) {
			return nil, fmt.Errorf("register %s: %w", name, err)
		}
		login, err := a.Login(ctx, name, password)
		if err != nil {
			return nil, fmt.Errorf("login %s: %w", name, err)
		}
		principal, err := a.Authenticate(ctx, login.Token)
		if err != nil {
			return nil, err
		}
		p.names[i] = name
		p.principals[i] = principal
	}
	return p, nil
}

func (p *population) size() int { return len(p.names) }

// teardown deletes every seeded account, which cascades into the friends,
// covers, snapshots and locks the account owns.
func (p *population) teardown(ctx context.Context, a *app.App) error {
	if p == nil {
		return nil
	}
	var errs []error
	for i, principal := range p.principals {
		if err := a.DeleteUser(ctx, principal); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", p.names[i], err))
		}
	}
	return errors.Join(errs...)
}
