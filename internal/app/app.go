// Package app is the composition root and synchronization layer. Each
// concept is constructed once here; every external operation is one App
// method that calls concepts in sequence and converts account ids into
// usernames for the caller.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tunefriends/internal/concepts/authenticating"
	"tunefriends/internal/concepts/commenting"
	"tunefriends/internal/concepts/friending"
	"tunefriends/internal/concepts/locking"
	"tunefriends/internal/concepts/posting"
	"tunefriends/internal/concepts/sessioning"
	"tunefriends/internal/database"
	apperrors "tunefriends/internal/errors"
	"tunefriends/internal/namecache"
)

const (
	usersCollection     = "users"
	sessionsCollection  = "sessions"
	friendsCollection   = "friends"
	locksCollection     = "locks"
	coversCollection    = "covers"
	snapshotsCollection = "snapshots"
	songsCollection     = "songs"
)

var collections = []string{
	usersCollection, sessionsCollection, friendsCollection, locksCollection,
	coversCollection, snapshotsCollection, songsCollection,
}

// Reset drops every collection the app owns. Call it before New, which
// recreates them with their indexes.
func Reset(ctx context.Context, d database.DatabaseDriver) error {
	for _, name := range collections {
		if err := d.Drop(ctx, name); err != nil {
			return fmt.Errorf("drop %s: %w", name, err)
		}
	}
	return nil
}

// Deps configures New. Zero values select defaults.
type Deps struct {
	Driver        database.DatabaseDriver
	Now           database.Clock
	Logger        *slog.Logger
	Names         namecache.Cache
	SessionSecret string
	SessionTTL    time.Duration
	// SnapshotExpiry is the age after which snapshots stop being active.
	SnapshotExpiry         time.Duration
	RejectOverlappingLocks bool
	BcryptCost             int
}

type App struct {
	Authing    *authenticating.Concept
	Sessioning *sessioning.Concept
	Friending  *friending.Concept
	Locking    *locking.Concept
	Covering   *commenting.Concept
	Snapshots  *commenting.Concept
	Posting    *posting.Concept

	Tokens *sessioning.Tokens
	Errors *apperrors.Registry

	driver database.DatabaseDriver
	names  *accountNames
	log    *slog.Logger
}

func New(ctx context.Context, deps Deps) (*App, error) {
	if deps.Driver == nil {
		return nil, fmt.Errorf("app: database driver is required")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Names == nil {
		deps.Names = namecache.NewLRU(1024, 5*time.Minute)
	}

	var authOpts []authenticating.Option
	if deps.BcryptCost > 0 {
		authOpts = append(authOpts, authenticating.WithBcryptCost(deps.BcryptCost))
	}
	authing, err := authenticating.New(ctx, deps.Driver, usersCollection, deps.Now, authOpts...)
	if err != nil {
		return nil, fmt.Errorf("authenticating: %w", err)
	}
	sessions, err := sessioning.New(ctx, deps.Driver, sessionsCollection, deps.Now, deps.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("sessioning: %w", err)
	}
	tokens, err := sessioning.NewTokens(deps.SessionSecret, deps.Now)
	if err != nil {
		return nil, fmt.Errorf("session tokens: %w", err)
	}
	friends, err := friending.New(ctx, deps.Driver, friendsCollection, deps.Now)
	if err != nil {
		return nil, fmt.Errorf("friending: %w", err)
	}
	locks, err := locking.New(ctx, deps.Driver, locksCollection, deps.Now, locking.WithRejectOverlap(deps.RejectOverlappingLocks))
	if err != nil {
		return nil, fmt.Errorf("locking: %w", err)
	}
	covers, err := commenting.New(ctx, deps.Driver, coversCollection, deps.Now, 0)
	if err != nil {
		return nil, fmt.Errorf("covers: %w", err)
	}
	snapshots, err := commenting.New(ctx, deps.Driver, snapshotsCollection, deps.Now, deps.SnapshotExpiry)
	if err != nil {
		return nil, fmt.Errorf("snapshots: %w", err)
	}
	songs, err := posting.New(ctx, deps.Driver, songsCollection, deps.Now)
	if err != nil {
		return nil, fmt.Errorf("posting: %w", err)
	}

	names := &accountNames{authing: authing, cache: deps.Names, log: deps.Logger}
	a := &App{
		Authing:    authing,
		Sessioning: sessions,
		Friending:  friends,
		Locking:    locks,
		Covering:   covers,
		Snapshots:  snapshots,
		Posting:    songs,
		Tokens:     tokens,
		Errors:     apperrors.NewRegistry(names),
		driver:     deps.Driver,
		names:      names,
		log:        deps.Logger,
	}
	registerFormatters(a.Errors)
	return a, nil
}

// registerFormatters maps every error code whose metadata holds account ids
// to a formatter that shows usernames instead.
func registerFormatters(r *apperrors.Registry) {
	r.Register(apperrors.CodeAlreadyFriends, apperrors.ResolveAccounts("user1", "user2"))
	r.Register(apperrors.CodeFriendNotFound, apperrors.ResolveAccounts("user1", "user2"))
	r.Register(apperrors.CodeRequestAlreadyExists, apperrors.ResolveAccounts("from", "to"))
	r.Register(apperrors.CodeRequestNotFound, apperrors.ResolveAccounts("from", "to"))
	r.Register(apperrors.CodeSongAuthorMismatch, apperrors.ResolveAccounts("author"))
	r.Register(apperrors.CodeCommentAuthorMismatch, apperrors.ResolveAccounts("author"))
}

// Ping reports whether the store is reachable.
func (a *App) Ping(ctx context.Context) error {
	return a.driver.Ping(ctx)
}

// Resolve renders err for the boundary.
func (a *App) Resolve(ctx context.Context, err error) apperrors.Resolved {
	return a.Errors.Resolve(ctx, err)
}

// userID looks up the account id of username. A miss is reported as
// TargetNotFound so callers can tell it apart from their own account
// missing.
func (a *App) userID(ctx context.Context, username string) (string, error) {
	profile, err := a.Authing.GetByUsername(ctx, username)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			return "", apperrors.WithMetadata(apperrors.KindNotFound, apperrors.CodeTargetNotFound,
				"User {username} not found!", map[string]string{"username": username})
		}
		return "", err
	}
	return profile.ID, nil
}
