package friending

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tunefriends/internal/database"
	apperrors "tunefriends/internal/errors"
)

type tick struct{ now time.Time }

// Now advances one second per call so creation order is observable.
func (t *tick) Now() time.Time {
	t.now = t.now.Add(time.Second)
	return t.now
}

func newConcept(t *testing.T) *Concept {
	t.Helper()
	clk := &tick{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c, err := New(context.Background(), database.NewMemoryDriver(), "friends", clk.Now)
	require.NoError(t, err)
	return c
}

func TestSendRequestIsAsymmetric(t *testing.T) {
	ctx := context.Background()
	c := newConcept(t)

	req, err := c.SendRequest(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "a", req.From)
	assert.Equal(t, "b", req.To)

	out, err := c.GetOutgoingRequests(ctx, "a")
	require.NoError(t, err)
	require.Len(t, out, 1)
	in, err := c.GetIncomingRequests(ctx, "b")
	require.NoError(t, err)
	require.Len(t, in, 1)

	in, err = c.GetIncomingRequests(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, in)

	friends, err := c.GetFriends(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, friends)
}

func TestSendRequestFailures(t *testing.T) {
	ctx := context.Background()
	c := newConcept(t)

	_, err := c.SendRequest(ctx, "a", "a")
	assert.Equal(t, apperrors.KindBadValues, apperrors.KindOf(err))

	_, err = c.SendRequest(ctx, "a", "b")
	require.NoError(t, err)

	// Retrying yields the same error every time.
	for i := 0; i < 2; i++ {
		_, err = c.SendRequest(ctx, "a", "b")
		assert.True(t, apperrors.HasCode(err, apperrors.CodeRequestAlreadyExists))
		assert.Equal(t, apperrors.KindNotAllowed, apperrors.KindOf(err))
	}

	// The reverse direction may coexist.
	_, err = c.SendRequest(ctx, "b", "a")
	require.NoError(t, err)

	require.NoError(t, c.AcceptRequest(ctx, "a", "b"))
	_, err = c.SendRequest(ctx, "b", "a")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyFriends))
	domain, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"user1": "b", "user2": "a"}, domain.Metadata)
}

func TestAcceptYieldsSymmetricFriendship(t *testing.T) {
	ctx := context.Background()
	c := newConcept(t)

	_, err := c.SendRequest(ctx, "a", "b")
	require.NoError(t, err)
	_, err = c.SendRequest(ctx, "b", "a")
	require.NoError(t, err)
	require.NoError(t, c.AcceptRequest(ctx, "a", "b"))

	fa, err := c.GetFriends(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, fa)
	fb, err := c.GetFriends(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, fb)

	for _, user := range []string{"a", "b"} {
		reqs, err := c.GetRequests(ctx, user)
		require.NoError(t, err)
		assert.Empty(t, reqs, user)
	}

	err = c.AcceptRequest(ctx, "a", "b")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeRequestNotFound))
}

func TestRejectAndWithdraw(t *testing.T) {
	ctx := context.Background()
	c := newConcept(t)

	_, err := c.SendRequest(ctx, "a", "b")
	require.NoError(t, err)
	require.NoError(t, c.RejectRequest(ctx, "a", "b"))
	assert.True(t, apperrors.HasCode(c.RejectRequest(ctx, "a", "b"), apperrors.CodeRequestNotFound))

	friends, err := c.GetFriends(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, friends)

	_, err = c.SendRequest(ctx, "a", "b")
	require.NoError(t, err)
	require.NoError(t, c.RemoveRequest(ctx, "a", "b"))
	err = c.RemoveRequest(ctx, "a", "b")
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestRemoveFriendIsSymmetric(t *testing.T) {
	ctx := context.Background()
	c := newConcept(t)

	_, err := c.SendRequest(ctx, "a", "b")
	require.NoError(t, err)
	require.NoError(t, c.AcceptRequest(ctx, "a", "b"))

	require.NoError(t, c.RemoveFriend(ctx, "b", "a"))
	err = c.RemoveFriend(ctx, "a", "b")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeFriendNotFound))
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	fa, err := c.GetFriends(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, fa)
}

func TestGetRequestsOrderAndDeleteByUser(t *testing.T) {
	ctx := context.Background()
	c := newConcept(t)

	_, err := c.SendRequest(ctx, "a", "b")
	require.NoError(t, err)
	_, err = c.SendRequest(ctx, "c", "a")
	require.NoError(t, err)
	_, err = c.SendRequest(ctx, "a", "d")
	require.NoError(t, err)
	require.NoError(t, c.AcceptRequest(ctx, "a", "d"))

	reqs, err := c.GetRequests(ctx, "a")
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, "b", reqs[0].To)
	assert.Equal(t, "c", reqs[1].From)

	n, err := c.DeleteByUser(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	friends, err := c.GetFriends(ctx, "d")
	require.NoError(t, err)
	assert.Empty(t, friends)
	in, err := c.GetIncomingRequests(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, in)
}
