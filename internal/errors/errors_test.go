package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubNames struct {
	names map[string]string
	err   error
	calls int
}

func (s *stubNames) Usernames(ctx context.Context, ids []string) ([]string, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = s.names[id]
	}
	return out, nil
}

func alreadyFriends(a, b string) *Error {
	return WithMetadata(KindNotAllowed, CodeAlreadyFriends, "{user1} and {user2} are already friends!",
		map[string]string{"user1": a, "user2": b})
}

func TestRender(t *testing.T) {
	err := alreadyFriends("id-a", "id-b")
	assert.Equal(t, "id-a and id-b are already friends!", err.Error())
	assert.Equal(t, "ana and id-b are already friends!", err.Render(map[string]string{"user1": "ana"}))

	odd := New(KindBadValues, CodeBadValues, "missing {nothing} and {unterminated")
	assert.Equal(t, "missing {nothing} and {unterminated", odd.Render(nil))
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("send: %w", alreadyFriends("a", "b"))
	assert.True(t, stderrors.Is(err, New(KindNotAllowed, CodeAlreadyFriends, "")))
	assert.False(t, stderrors.Is(err, New(KindNotAllowed, CodeFriendNotFound, "")))
	assert.True(t, HasCode(err, CodeAlreadyFriends))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(nil))
	assert.Equal(t, KindNotAllowed, KindOf(alreadyFriends("a", "b")))
	assert.Equal(t, KindUnavailable, KindOf(stderrors.New("connection refused")))

	cause := stderrors.New("connection refused")
	wrapped := Unavailable(cause)
	assert.Equal(t, KindUnavailable, KindOf(wrapped))
	assert.ErrorIs(t, wrapped, cause)
	assert.Nil(t, Unavailable(nil))

	domain := NotFound("nope")
	assert.Same(t, domain, Unavailable(domain))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindBadValues:       http.StatusBadRequest,
		KindNotFound:        http.StatusNotFound,
		KindNotAllowed:      http.StatusForbidden,
		KindUnauthenticated: http.StatusUnauthorized,
		KindUnavailable:     http.StatusServiceUnavailable,
		KindUnknown:         http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, kind.HTTPStatus(), kind.String())
	}
}

func TestRegistryResolvesRegisteredCodes(t *testing.T) {
	names := &stubNames{names: map[string]string{"id-a": "ana", "id-b": "bo"}}
	r := NewRegistry(names)
	r.Register(CodeAlreadyFriends, ResolveAccounts("user1", "user2"))

	got := r.Resolve(context.Background(), fmt.Errorf("wrapped: %w", alreadyFriends("id-a", "id-b")))
	assert.Equal(t, KindNotAllowed, got.Kind)
	assert.Equal(t, CodeAlreadyFriends, got.Code)
	assert.Equal(t, "ana and bo are already friends!", got.Message)
	assert.Equal(t, 1, names.calls)
}

func TestRegistryUnregisteredCodeKeepsRawIDs(t *testing.T) {
	names := &stubNames{}
	r := NewRegistry(names)

	got := r.Resolve(context.Background(), alreadyFriends("id-a", "id-b"))
	assert.Equal(t, "id-a and id-b are already friends!", got.Message)
	assert.Zero(t, names.calls)
}

func TestRegistryFormatterFailureFallsBack(t *testing.T) {
	names := &stubNames{err: stderrors.New("store down")}
	r := NewRegistry(names)
	r.Register(CodeAlreadyFriends, ResolveAccounts("user1", "user2"))

	got := r.Resolve(context.Background(), alreadyFriends("id-a", "id-b"))
	assert.Equal(t, "id-a and id-b are already friends!", got.Message)
}

func TestRegistryHidesInfrastructureErrors(t *testing.T) {
	r := NewRegistry(&stubNames{})
	got := r.Resolve(context.Background(), stderrors.New("dial tcp 10.0.0.1:5432: connection refused"))
	require.Equal(t, KindUnavailable, got.Kind)
	assert.Equal(t, CodeUnavailable, got.Code)
	assert.NotContains(t, got.Message, "10.0.0.1")
}
