package app

import (
	"context"
	"errors"
	"time"

	"tunefriends/internal/concepts/authenticating"
)

// LoginResult is handed to a client after a successful login.
type LoginResult struct {
	Token     string                 `json:"token"`
	ExpiresAt time.Time              `json:"expiresAt"`
	User      authenticating.Profile `json:"user"`
}

// Principal identifies the account behind a request.
type Principal struct {
	SessionID string
	UserID    string
}

func (a *App) Register(ctx context.Context, username, password string) (authenticating.Profile, error) {
	return a.Authing.Create(ctx, username, password)
}

func (a *App) Login(ctx context.Context, username, password string) (LoginResult, error) {
	id, err := a.Authing.Authenticate(ctx, username, password)
	if err != nil {
		return LoginResult{}, err
	}
	return a.startSession(ctx, id)
}

// LoginExternal signs in through a third-party identity, registering the
// account on first sight.
func (a *App) LoginExternal(ctx context.Context, identity authenticating.ExternalIdentity) (LoginResult, error) {
	profile, err := a.Authing.LoginByExternalID(ctx, identity)
	if err != nil {
		return LoginResult{}, err
	}
	return a.startSession(ctx, profile.ID)
}

func (a *App) startSession(ctx context.Context, userID string) (LoginResult, error) {
	profile, err := a.Authing.GetByID(ctx, userID)
	if err != nil {
		return LoginResult{}, err
	}
	session, err := a.Sessioning.Start(ctx, userID)
	if err != nil {
		return LoginResult{}, err
	}
	token, err := a.Tokens.Issue(session)
	if err != nil {
		_ = a.Sessioning.End(ctx, session.ID)
		return LoginResult{}, err
	}
	return LoginResult{Token: token, ExpiresAt: session.ExpiresAt, User: profile}, nil
}

// Authenticate verifies token and returns the principal of its live
// session.
func (a *App) Authenticate(ctx context.Context, token string) (Principal, error) {
	sessionID, err := a.Tokens.Parse(token)
	if err != nil {
		return Principal{}, err
	}
	session, err := a.Sessioning.Get(ctx, sessionID)
	if err != nil {
		return Principal{}, err
	}
	return Principal{SessionID: session.ID, UserID: session.User}, nil
}

func (a *App) Logout(ctx context.Context, p Principal) error {
	return a.Sessioning.End(ctx, p.SessionID)
}

func (a *App) GetSessionUser(ctx context.Context, p Principal) (authenticating.Profile, error) {
	return a.Authing.GetByID(ctx, p.UserID)
}

func (a *App) GetUsers(ctx context.Context, username string) ([]authenticating.Profile, error) {
	return a.Authing.GetUsers(ctx, username)
}

func (a *App) GetUser(ctx context.Context, username string) (authenticating.Profile, error) {
	return a.Authing.GetByUsername(ctx, username)
}

func (a *App) GetAccount(ctx context.Context, id string) (authenticating.Profile, error) {
	return a.Authing.GetByID(ctx, id)
}

func (a *App) UpdateUsername(ctx context.Context, p Principal, username string) error {
	if err := a.Authing.UpdateUsername(ctx, p.UserID, username); err != nil {
		return err
	}
	a.names.Forget(ctx, p.UserID)
	return nil
}

func (a *App) UpdatePassword(ctx context.Context, p Principal, current, next string) error {
	return a.Authing.UpdatePassword(ctx, p.UserID, current, next)
}

// DeleteUser removes the account and, best effort, everything that
// references it. A failed cleanup step is logged and does not stop the
// remaining steps.
func (a *App) DeleteUser(ctx context.Context, p Principal) error {
	user := p.UserID
	if err := a.Authing.AssertUserExists(ctx, user); err != nil {
		return err
	}

	steps := []struct {
		name string
		run  func(context.Context, string) (int64, error)
	}{
		{"sessions", a.Sessioning.EndAllForUser},
		{"covers", a.deleteCoversBy},
		{"snapshots", a.Snapshots.DeleteByAuthor},
		{"locks", a.Locking.DeleteByLocker},
		{"friending", a.Friending.DeleteByUser},
		{"songs", a.Posting.DeleteByAuthor},
	}
	var errs []error
	for _, step := range steps {
		n, err := step.run(ctx, user)
		if err != nil {
			a.log.ErrorContext(ctx, "account cleanup step failed", "step", step.name, "user", user, "err", err)
			errs = append(errs, err)
			continue
		}
		a.log.DebugContext(ctx, "account cleanup step", "step", step.name, "user", user, "deleted", n)
	}

	if err := a.Authing.Delete(ctx, user); err != nil {
		errs = append(errs, err)
	}
	a.names.Forget(ctx, user)
	return errors.Join(errs...)
}

// deleteCoversBy removes author's covers along with the locks on them.
func (a *App) deleteCoversBy(ctx context.Context, author string) (int64, error) {
	covers, err := a.Covering.GetByAuthor(ctx, author)
	if err != nil {
		return 0, err
	}
	n, err := a.Covering.DeleteByAuthor(ctx, author)
	if err != nil {
		return n, err
	}
	for _, c := range covers {
		if _, err := a.Locking.DeleteByContent(ctx, c.ID); err != nil {
			return n, err
		}
	}
	return n, nil
}
