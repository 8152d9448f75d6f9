// Package sessioning tracks logged-in sessions and issues the signed tokens
// clients present to identify them.
package sessioning

import (
	"context"
	"time"

	"tunefriends/internal/database"
	apperrors "tunefriends/internal/errors"
)

type Session struct {
	database.Doc `bson:",inline"`
	User         string    `bson:"user" json:"user"`
	ExpiresAt    time.Time `bson:"expiresAt" json:"expiresAt"`
}

type Concept struct {
	sessions *database.Collection[Session]
	ttl      time.Duration
}

func New(ctx context.Context, d database.DatabaseDriver, collection string, now database.Clock, ttl time.Duration) (*Concept, error) {
	sessions, err := database.NewCollection[Session](ctx, d, collection, now)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Concept{sessions: sessions, ttl: ttl}, nil
}

func (c *Concept) TTL() time.Duration {
	return c.ttl
}

// Start opens a session for user.
func (c *Concept) Start(ctx context.Context, user string) (Session, error) {
	if user == "" {
		return Session{}, apperrors.BadValues("Session user must be non-empty!")
	}
	expiresAt := c.sessions.Now().Add(c.ttl)
	id, err := c.sessions.CreateOne(ctx, Session{User: user, ExpiresAt: expiresAt})
	if err != nil {
		return Session{}, apperrors.Unavailable(err)
	}
	session, err := c.sessions.ReadOne(ctx, database.ByID(id))
	if err != nil {
		return Session{}, apperrors.Unavailable(err)
	}
	if session == nil {
		return Session{}, apperrors.Unavailable(database.ErrClosed)
	}
	return *session, nil
}

// Get returns a live session. Expired sessions are removed and reported as
// Unauthenticated.
func (c *Concept) Get(ctx context.Context, id string) (Session, error) {
	session, err := c.sessions.ReadOne(ctx, database.ByID(id))
	if err != nil {
		return Session{}, apperrors.Unavailable(err)
	}
	if session == nil {
		return Session{}, apperrors.New(apperrors.KindUnauthenticated, apperrors.CodeSessionNotFound, "Must be logged in!")
	}
	if !session.ExpiresAt.After(c.sessions.Now()) {
		if _, err := c.sessions.DeleteOne(ctx, database.ByID(id)); err != nil {
			return Session{}, apperrors.Unavailable(err)
		}
		return Session{}, apperrors.New(apperrors.KindUnauthenticated, apperrors.CodeSessionExpired, "Session expired, log in again!")
	}
	return *session, nil
}

// End closes a session. Ending an unknown session is not an error.
func (c *Concept) End(ctx context.Context, id string) error {
	if _, err := c.sessions.DeleteOne(ctx, database.ByID(id)); err != nil {
		return apperrors.Unavailable(err)
	}
	return nil
}

func (c *Concept) EndAllForUser(ctx context.Context, user string) (int64, error) {
	n, err := c.sessions.DeleteMany(ctx, database.Where(database.Eq("user", user)))
	if err != nil {
		return 0, apperrors.Unavailable(err)
	}
	return n, nil
}
