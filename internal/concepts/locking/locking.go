// Package locking locks content for a time interval. Expired locks are
// removed by an explicit sweep that the read paths run first.
package locking

import (
	"context"
	"time"

	"tunefriends/internal/database"
	apperrors "tunefriends/internal/errors"
)

type Lock struct {
	database.Doc `bson:",inline"`
	Content      string    `bson:"content" json:"content"`
	Locker       string    `bson:"locker" json:"locker"`
	From         time.Time `bson:"from" json:"from"`
	To           time.Time `bson:"to" json:"to"`
}

// Active reports whether the lock still holds at now.
func (l Lock) Active(now time.Time) bool {
	return l.To.After(now)
}

type Concept struct {
	locks         *database.Collection[Lock]
	rejectOverlap bool
}

type Option func(*Concept)

// WithRejectOverlap refuses a new lock whose interval overlaps an active
// lock on the same content.
func WithRejectOverlap(reject bool) Option {
	return func(c *Concept) { c.rejectOverlap = reject }
}

func New(ctx context.Context, d database.DatabaseDriver, collection string, now database.Clock, opts ...Option) (*Concept, error) {
	locks, err := database.NewCollection[Lock](ctx, d, collection, now)
	if err != nil {
		return nil, err
	}
	c := &Concept{locks: locks}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Concept) Now() time.Time {
	return c.locks.Now()
}

// Create locks content for locker over [from, to).
func (c *Concept) Create(ctx context.Context, content, locker string, from, to time.Time) (Lock, error) {
	if content == "" || locker == "" {
		return Lock{}, apperrors.BadValues("Content and locker must be non-empty!")
	}
	if !from.Before(to) {
		return Lock{}, apperrors.WithMetadata(apperrors.KindBadValues, apperrors.CodeInvalidLockInterval,
			"Lock must end after it starts: {from} is not before {to}!",
			map[string]string{"from": from.UTC().Format(time.RFC3339), "to": to.UTC().Format(time.RFC3339)})
	}
	if c.rejectOverlap {
		if err := c.assertNoOverlap(ctx, content, from, to); err != nil {
			return Lock{}, err
		}
	}
	id, err := c.locks.CreateOne(ctx, Lock{Content: content, Locker: locker, From: from, To: to})
	if err != nil {
		return Lock{}, apperrors.Unavailable(err)
	}
	lock, err := c.locks.ReadOne(ctx, database.ByID(id))
	if err != nil {
		return Lock{}, apperrors.Unavailable(err)
	}
	if lock == nil {
		return Lock{}, lockNotFound(id)
	}
	return *lock, nil
}

func (c *Concept) assertNoOverlap(ctx context.Context, content string, from, to time.Time) error {
	existing, err := c.locks.ReadMany(ctx, database.Where(database.Eq("content", content)), database.FindOptions{})
	if err != nil {
		return apperrors.Unavailable(err)
	}
	now := c.locks.Now()
	for _, l := range existing {
		if !l.Active(now) {
			continue
		}
		if l.From.Before(to) && from.Before(l.To) {
			return apperrors.WithMetadata(apperrors.KindNotAllowed, apperrors.CodeContentLocked,
				"{content} is locked until {to}!",
				map[string]string{"content": content, "to": l.To.UTC().Format(time.RFC3339)})
		}
	}
	return nil
}

func lockNotFound(id string) *apperrors.Error {
	return apperrors.WithMetadata(apperrors.KindNotFound, apperrors.CodeLockNotFound,
		"Lock {id} not found!", map[string]string{"id": id})
}

// SweepExpired deletes every lock whose end is at or before now.
func (c *Concept) SweepExpired(ctx context.Context) (int64, error) {
	n, err := c.locks.DeleteMany(ctx, database.Where(database.Lte("to", c.locks.Now())))
	if err != nil {
		return 0, apperrors.Unavailable(err)
	}
	return n, nil
}

// GetLocks sweeps and returns every remaining lock, newest first.
func (c *Concept) GetLocks(ctx context.Context) ([]Lock, error) {
	if _, err := c.SweepExpired(ctx); err != nil {
		return nil, err
	}
	return c.read(ctx, nil)
}

// GetByLocker sweeps and returns the locks held by locker, newest first.
func (c *Concept) GetByLocker(ctx context.Context, locker string) ([]Lock, error) {
	if _, err := c.SweepExpired(ctx); err != nil {
		return nil, err
	}
	return c.read(ctx, database.Where(database.Eq("locker", locker)))
}

// GetByContent returns a lock on content, or nil. It does not sweep, so a
// lock past its end is still returned until the next sweep.
func (c *Concept) GetByContent(ctx context.Context, content string) (*Lock, error) {
	lock, err := c.locks.ReadOne(ctx, database.Where(database.Eq("content", content)))
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return lock, nil
}

// GetContentIDsAfterCleanup sweeps and returns the distinct locked content
// ids.
func (c *Concept) GetContentIDsAfterCleanup(ctx context.Context) ([]string, error) {
	locks, err := c.GetLocks(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(locks))
	ids := make([]string, 0, len(locks))
	for _, l := range locks {
		if _, dup := seen[l.Content]; dup {
			continue
		}
		seen[l.Content] = struct{}{}
		ids = append(ids, l.Content)
	}
	return ids, nil
}

func (c *Concept) read(ctx context.Context, filter database.Filter) ([]Lock, error) {
	locks, err := c.locks.ReadMany(ctx, filter, database.FindOptions{Sort: database.CreatedAtField, Desc: true})
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return locks, nil
}

func (c *Concept) Delete(ctx context.Context, id string) error {
	n, err := c.locks.DeleteOne(ctx, database.ByID(id))
	if err != nil {
		return apperrors.Unavailable(err)
	}
	if n == 0 {
		return lockNotFound(id)
	}
	return nil
}

func (c *Concept) DeleteByLocker(ctx context.Context, locker string) (int64, error) {
	n, err := c.locks.DeleteMany(ctx, database.Where(database.Eq("locker", locker)))
	if err != nil {
		return 0, apperrors.Unavailable(err)
	}
	return n, nil
}

func (c *Concept) DeleteByContent(ctx context.Context, content string) (int64, error) {
	n, err := c.locks.DeleteMany(ctx, database.Where(database.Eq("content", content)))
	if err != nil {
		return 0, apperrors.Unavailable(err)
	}
	return n, nil
}
