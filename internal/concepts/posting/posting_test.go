package posting

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
	c, err := New(context.Background(), database.NewMemoryDriver(), "songs", clk.Now)
	require.NoError(t, err)
	return c
}

func TestCreateDedupesByTrack(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := newConcept(t, clk)

	song, created, err := c.Create(ctx, "u1", Track{TrackID: "t1", Name: "Song", Artist: "Band"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "u1", song.Author)

	clk.now = clk.now.Add(time.Minute)
	again, created, err := c.Create(ctx, "u2", Track{TrackID: "t1"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, song.ID, again.ID)
	assert.Equal(t, "u1", again.Author)
	assert.True(t, again.UpdatedAt.After(song.UpdatedAt))

	all, err := c.GetSongs(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, _, err = c.Create(ctx, "u1", Track{})
	assert.Equal(t, apperrors.KindBadValues, apperrors.KindOf(err))
}

func TestMostRecentFollowsTouches(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := newConcept(t, clk)

	recent, err := c.GetMostRecent(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, recent)

	first, _, err := c.Create(ctx, "u1", Track{TrackID: "t1"})
	require.NoError(t, err)
	clk.now = clk.now.Add(time.Second)
	_, _, err = c.Create(ctx, "u1", Track{TrackID: "t2"})
	require.NoError(t, err)

	recent, err = c.GetMostRecent(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, recent)
	assert.Equal(t, "t2", recent.TrackID)

	clk.now = clk.now.Add(time.Second)
	require.NoError(t, c.Touch(ctx, first.ID))
	recent, err = c.GetMostRecent(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, recent)
	assert.Equal(t, "t1", recent.TrackID)
}

func TestAuthorChecksAndDelete(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := newConcept(t, clk)

	song, _, err := c.Create(ctx, "u1", Track{TrackID: "t1"})
	require.NoError(t, err)

	require.NoError(t, c.AssertAuthorIsUser(ctx, song.ID, "u1"))
	err = c.AssertAuthorIsUser(ctx, song.ID, "u2")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeSongAuthorMismatch))
	assert.Equal(t, apperrors.KindNotAllowed, apperrors.KindOf(err))

	require.NoError(t, c.Delete(ctx, song.ID))
	assert.True(t, apperrors.HasCode(c.AssertSongExists(ctx, song.ID), apperrors.CodeSongNotFound))

	_, _, err = c.Create(ctx, "u1", Track{TrackID: "t2"})
	require.NoError(t, err)
	n, err := c.DeleteByAuthor(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
