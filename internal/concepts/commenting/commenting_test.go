package commenting

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

var start = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newConcept(t *testing.T, clk *clock) *Concept {
	t.Helper()
	c, err := New(context.Background(), database.NewMemoryDriver(), "snapshots", clk.Now, 0)
	require.NoError(t, err)
	return c
}

func TestSnapshotExpiresAfterADay(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: start}
	c := newConcept(t, clk)

	snap, err := c.Create(ctx, "p1", "u1", "hello", "", "")
	require.NoError(t, err)

	clk.now = start.Add(23 * time.Hour)
	live, err := c.GetNotExpiredComments(ctx)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, snap.ID, live[0].ID)

	clk.now = start.Add(25 * time.Hour)
	live, err = c.GetNotExpiredByAuthor(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, live)

	// Expiry is derived, the document itself is still stored.
	all, err := c.GetComments(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	classified := c.Classify(all, clk.now)
	require.Len(t, classified, 1)
	assert.True(t, classified[0].Expired)
	assert.False(t, c.Classify(all, start.Add(time.Hour))[0].Expired)
}

func TestAgeIsAbsolute(t *testing.T) {
	clk := &clock{now: start}
	c := newConcept(t, clk)
	comment := Comment{}
	comment.CreatedAt = start

	assert.False(t, c.IsExpired(comment, start.Add(-23*time.Hour)))
	assert.True(t, c.IsExpired(comment, start.Add(-25*time.Hour)))
	assert.False(t, c.IsExpired(comment, start.Add(24*time.Hour)))
}

func TestAssertAuthorIsUser(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: start}
	c := newConcept(t, clk)

	comment, err := c.Create(ctx, "p1", "u1", "hi", "", "")
	require.NoError(t, err)

	require.NoError(t, c.AssertAuthorIsUser(ctx, comment.ID, "u1"))

	err = c.AssertAuthorIsUser(ctx, comment.ID, "u2")
	require.True(t, apperrors.HasCode(err, apperrors.CodeCommentAuthorMismatch))
	domain, _ := apperrors.As(err)
	assert.Equal(t, "u2", domain.Metadata["author"])
	assert.Equal(t, comment.ID, domain.Metadata["id"])

	err = c.AssertAuthorIsUser(ctx, "missing", "u1")
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestReadsAndUpdates(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: start}
	c := newConcept(t, clk)

	first, err := c.Create(ctx, "p1", "u1", "one", "la", "img")
	require.NoError(t, err)
	clk.now = clk.now.Add(time.Second)
	_, err = c.Create(ctx, "p2", "u1", "two", "", "")
	require.NoError(t, err)
	clk.now = clk.now.Add(time.Second)
	_, err = c.Create(ctx, "p1", "u2", "three", "", "")
	require.NoError(t, err)

	byAuthor, err := c.GetByAuthor(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, byAuthor, 2)
	assert.Equal(t, "two", byAuthor[0].Text)

	byPost, err := c.GetByPost(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, byPost, 2)

	both, err := c.GetByAuthorAndPost(ctx, "u1", "p1")
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, first.ID, both[0].ID)

	text := "edited"
	require.NoError(t, c.Update(ctx, first.ID, Patch{Text: &text}))
	got, err := c.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Text)
	assert.Equal(t, "la", got.Lyrics)
	assert.Equal(t, "img", got.Image)

	assert.True(t, apperrors.HasCode(c.Update(ctx, "missing", Patch{Text: &text}), apperrors.CodeCommentNotFound))

	n, err := c.DeleteByAuthor(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(c.Delete(ctx, first.ID)))

	_, err = c.Create(ctx, "", "u1", "", "", "")
	assert.Equal(t, apperrors.KindBadValues, apperrors.KindOf(err))
}
