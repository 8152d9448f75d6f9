package sessioning

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tunefriends/internal/database"
	apperrors "tunefriends/internal/errors"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newConcept(t *testing.T, clk *clock) *Concept {
	t.Helper()
	c, err := New(context.Background(), database.NewMemoryDriver(), "sessions", clk.Now, time.Hour)
	require.NoError(t, err)
	return c
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := newConcept(t, clk)

	s, err := c.Start(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", s.User)
	assert.True(t, s.ExpiresAt.Equal(clk.now.Add(time.Hour)))

	got, err := c.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	require.NoError(t, c.End(ctx, s.ID))
	_, err = c.Get(ctx, s.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeSessionNotFound))
	require.NoError(t, c.End(ctx, s.ID))
}

func TestSessionExpires(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := newConcept(t, clk)

	s, err := c.Start(ctx, "user-1")
	require.NoError(t, err)

	clk.now = clk.now.Add(time.Hour)
	_, err = c.Get(ctx, s.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeSessionExpired))
	assert.Equal(t, apperrors.KindUnauthenticated, apperrors.KindOf(err))

	_, err = c.Get(ctx, s.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeSessionNotFound))
}

func TestEndAllForUser(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := newConcept(t, clk)

	for _, user := range []string{"a", "a", "b"} {
		_, err := c.Start(ctx, user)
		require.NoError(t, err)
	}
	n, err := c.EndAllForUser(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestTokensRoundTrip(t *testing.T) {
	clk := &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	tokens, err := NewTokens("0123456789abcdef0123", clk.Now)
	require.NoError(t, err)

	s := Session{User: "user-1", ExpiresAt: clk.now.Add(time.Hour)}
	s.ID = "session-1"
	token, err := tokens.Issue(s)
	require.NoError(t, err)

	id, err := tokens.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "session-1", id)

	other, err := NewTokens("another-secret-of-length", clk.Now)
	require.NoError(t, err)
	_, err = other.Parse(token)
	assert.Equal(t, apperrors.KindUnauthenticated, apperrors.KindOf(err))

	clk.now = clk.now.Add(2 * time.Hour)
	_, err = tokens.Parse(token)
	assert.Equal(t, apperrors.KindUnauthenticated, apperrors.KindOf(err))

	_, err = NewTokens("short", nil)
	assert.Error(t, err)
}
