package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"tunefriends/internal/app"
	"tunefriends/internal/database"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T, opts Options) *gin.Engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := app.New(context.Background(), app.Deps{
		Driver:        database.NewMemoryDriver(),
		Logger:        logger,
		SessionSecret: "api-test-secret-0123456789",
		BcryptCost:    bcrypt.MinCost,
	})
	require.NoError(t, err)
	opts.Logger = logger
	return NewRouter(a, opts)
}

func call(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// login registers username and returns a session token.
func login(t *testing.T, r http.Handler, username string) string {
	t.Helper()
	creds := map[string]string{"username": username, "password": "pw-" + username}
	w := call(t, r, http.MethodPost, "/api/users", "", creds)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = call(t, r, http.MethodPost, "/api/login", "", creds)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token, ok := decode(t, w)["token"].(string)
	require.True(t, ok)
	return token
}

func TestHealth(t *testing.T) {
	r := newRouter(t, Options{})
	w := call(t, r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestSessionModes(t *testing.T) {
	r := newRouter(t, Options{})

	w := call(t, r, http.MethodGet, "/api/session", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHENTICATED", decode(t, w)["code"])

	token := login(t, r, "alice")
	w = call(t, r, http.MethodGet, "/api/session", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", decode(t, w)["username"])
	assert.NotContains(t, w.Body.String(), "passwordHash")

	w = call(t, r, http.MethodPost, "/api/login", token, map[string]string{"username": "alice", "password": "pw-alice"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "ALREADY_LOGGED_IN", decode(t, w)["code"])

	// The session cookie works like the bearer header.
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: token})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	w = call(t, r, http.MethodPost, "/api/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = call(t, r, http.MethodGet, "/api/session", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", decode(t, w)["code"])
}

func TestBadBody(t *testing.T) {
	r := newRouter(t, Options{})
	w := call(t, r, http.MethodPost, "/api/users", "", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BAD_VALUES", decode(t, w)["code"])
}

func TestFriendRequestErrorsNameUsers(t *testing.T) {
	r := newRouter(t, Options{})
	alice := login(t, r, "alice")
	bob := login(t, r, "bob")

	w := call(t, r, http.MethodPost, "/api/friend/requests/bob", alice, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	request := decode(t, w)["request"].(map[string]any)
	assert.Equal(t, "alice", request["from"])
	assert.Equal(t, "bob", request["to"])

	w = call(t, r, http.MethodPost, "/api/friend/requests/bob", alice, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, map[string]any{
		"msg":  "Friend request from alice to bob already exists!",
		"code": "FRIEND_REQUEST_ALREADY_EXISTS",
	}, decode(t, w))

	w = call(t, r, http.MethodPost, "/api/friend/requests/nobody", alice, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "TARGET_NOT_FOUND", decode(t, w)["code"])

	w = call(t, r, http.MethodPut, "/api/friend/accept/alice", bob, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = call(t, r, http.MethodGet, "/api/friends", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["alice"]`, w.Body.String())

	w = call(t, r, http.MethodDelete, "/api/friends/alice", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = call(t, r, http.MethodDelete, "/api/friends/alice", bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Friendship between bob and alice does not exist!", decode(t, w)["msg"])
}

func TestCoverLocking(t *testing.T) {
	r := newRouter(t, Options{})
	alice := login(t, r, "alice")
	bob := login(t, r, "bob")

	w := call(t, r, http.MethodPost, "/api/covers", alice, map[string]string{"songId": "s1", "text": "take one"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cover := decode(t, w)["cover"].(map[string]any)
	coverID := cover["_id"].(string)
	assert.Equal(t, "alice", cover["author"])

	now := time.Now().UTC()
	lock := map[string]any{"comment": coverID, "from": now, "to": now.Add(time.Hour)}
	w = call(t, r, http.MethodPost, "/api/locks", bob, lock)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "COMMENT_AUTHOR_MISMATCH", decode(t, w)["code"])

	w = call(t, r, http.MethodPost, "/api/locks", alice, lock)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = call(t, r, http.MethodGet, "/api/covers/unlocked", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = call(t, r, http.MethodGet, "/api/locks?locker=alice", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var locks []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &locks))
	require.Len(t, locks, 1)
	assert.Equal(t, "alice", locks[0]["locker"])

	w = call(t, r, http.MethodDelete, "/api/covers/"+coverID, alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = call(t, r, http.MethodGet, "/api/locks", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestSnapshotsCarryExpiry(t *testing.T) {
	r := newRouter(t, Options{})
	alice := login(t, r, "alice")

	w := call(t, r, http.MethodPost, "/api/snapshots", alice, map[string]string{"songId": "s1", "text": "listening"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = call(t, r, http.MethodGet, "/api/snapshots?username=alice", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snaps []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snaps))
	require.Len(t, snaps, 1)
	assert.Equal(t, false, snaps[0]["expired"])

	w = call(t, r, http.MethodGet, "/api/snapshots/active?username=nobody", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRateLimit(t *testing.T) {
	r := newRouter(t, Options{RateLimit: 1, RateBurst: 1})
	w := call(t, r, http.MethodGet, "/api/users", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = call(t, r, http.MethodGet, "/api/users", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", decode(t, w)["code"])

	// Health checks are never limited.
	w = call(t, r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetrics(t *testing.T) {
	r := newRouter(t, Options{})
	call(t, r, http.MethodGet, "/api/users", "", nil)

	w := call(t, r, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `tunefriends_http_requests_total{method="GET",route="/api/users",status="200"} 1`)
}

func TestExternalLogin(t *testing.T) {
	r := newRouter(t, Options{})
	identity := map[string]string{"externalId": "sp-1", "displayName": "alice", "profileUrl": "https://music.example/alice"}

	w := call(t, r, http.MethodPost, "/api/login/external", "", identity)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode(t, w)
	user := first["user"].(map[string]any)
	assert.Equal(t, "alice", user["username"])
	assert.Equal(t, "sp-1", user["externalId"])

	w = call(t, r, http.MethodGet, "/api/session", first["token"].(string), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", decode(t, w)["username"])

	// The same identity signs into the same account.
	w = call(t, r, http.MethodPost, "/api/login/external", "", identity)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, user["_id"], decode(t, w)["user"].(map[string]any)["_id"])

	// A taken display name gets the external id appended.
	w = call(t, r, http.MethodPost, "/api/login/external", "", map[string]string{"externalId": "sp-2", "displayName": "alice"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "alice-sp-2", decode(t, w)["user"].(map[string]any)["username"])

	w = call(t, r, http.MethodPost, "/api/login/external", "", map[string]string{"displayName": "bob"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BAD_VALUES", decode(t, w)["code"])
}

func TestRequestListsAndRecentSong(t *testing.T) {
	r := newRouter(t, Options{})
	alice := login(t, r, "alice")
	bob := login(t, r, "bob")

	w := call(t, r, http.MethodPost, "/api/friend/requests/bob", alice, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var requests []map[string]any
	w = call(t, r, http.MethodGet, "/api/friend/outgoing-requests", alice, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &requests))
	require.Len(t, requests, 1)
	assert.Equal(t, "bob", requests[0]["to"])

	w = call(t, r, http.MethodGet, "/api/friend/incoming-requests", bob, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &requests))
	require.Len(t, requests, 1)
	assert.Equal(t, "alice", requests[0]["from"])

	w = call(t, r, http.MethodGet, "/api/songs/recent", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", w.Body.String())

	w = call(t, r, http.MethodPost, "/api/songs", alice, map[string]string{"trackId": "t1", "name": "Song One"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = call(t, r, http.MethodGet, "/api/songs/recent", alice, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	recent := decode(t, w)
	assert.Equal(t, "t1", recent["trackId"])
	assert.Equal(t, "alice", recent["author"])
}

func TestUnknownRoute(t *testing.T) {
	r := newRouter(t, Options{})
	w := call(t, r, http.MethodGet, "/api/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, map[string]any{"msg": "No route for GET /api/nowhere!", "code": "NOT_FOUND"}, decode(t, w))
}

func TestMetricsIncludeRuntimeCollectors(t *testing.T) {
	r := newRouter(t, Options{})
	w := call(t, r, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
