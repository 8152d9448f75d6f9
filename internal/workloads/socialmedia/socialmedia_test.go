package socialmedia

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"tunefriends/internal/app"
	"tunefriends/internal/database"
	"tunefriends/internal/runner"
)

func newApp(tb testing.TB) *app.App {
	tb.Helper()
	a, err := app.New(context.Background(), app.Deps{
		Driver:        database.NewMemoryDriver(),
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		SessionSecret: "workload-secret-0123456789",
		BcryptCost:    bcrypt.MinCost,
	})
	require.NoError(tb, err)
	return a
}

func TestWorkloads(t *testing.T) {
	workloads := []runner.Workload{
		&FriendingTest{Users: 4},
		&CoverLockingTest{Users: 4, LockWindow: 5 * time.Millisecond},
		&SnapshotFeedTest{Users: 4},
	}
	for _, w := range workloads {
		t.Run(w.Name(), func(t *testing.T) {
			a := newApp(t)
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			result, err := runner.Run(context.Background(), a, w, 2, 100*time.Millisecond, logger)
			require.NoError(t, err)
			assert.Positive(t, result.Operations)
			assert.Zero(t, result.Errors)

			ctx := context.Background()
			users, err := a.GetUsers(ctx, "")
			require.NoError(t, err)
			assert.Empty(t, users)
			covers, err := a.Covering.GetComments(ctx)
			require.NoError(t, err)
			assert.Empty(t, covers)
			snapshots, err := a.Snapshots.GetComments(ctx)
			require.NoError(t, err)
			assert.Empty(t, snapshots)
			locks, err := a.Locking.GetLocks(ctx)
			require.NoError(t, err)
			assert.Empty(t, locks)
		})
	}
}

func TestFriendingStepLeavesNoFriendship(t *testing.T) {
	ctx := context.Background()
	a := newApp(t)
	w := &FriendingTest{Users: 2}
	require.NoError(t, w.Setup(ctx, a))

	for i := 0; i < 3; i++ {
		require.NoError(t, w.Step(ctx, a, 0, i))
	}
	friends, err := a.GetFriends(ctx, w.pop.principals[0])
	require.NoError(t, err)
	assert.Empty(t, friends)
}

func TestSetupReusesAccounts(t *testing.T) {
	ctx := context.Background()
	a := newApp(t)
	w := &SnapshotFeedTest{Users: 3}
	require.NoError(t, w.Setup(ctx, a))
	require.NoError(t, w.Setup(ctx, a))

	users, err := a.GetUsers(ctx, "")
	require.NoError(t, err)
	assert.Len(t, users, 3)
}

func BenchmarkFriending(b *testing.B) {
	benchmarkStep(b, &FriendingTest{Users: 2})
}

func BenchmarkCoverLocking(b *testing.B) {
	benchmarkStep(b, &CoverLockingTest{Users: 10, LockWindow: time.Millisecond})
}

func BenchmarkSnapshotFeed(b *testing.B) {
	benchmarkStep(b, &SnapshotFeedTest{Users: 10})
}

func benchmarkStep(b *testing.B, w runner.Workload) {
	ctx := context.Background()
	a := newApp(b)
	require.NoError(b, w.Setup(ctx, a))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := w.Step(ctx, a, 0, i); err != nil {
			b.Fatal(err)
		}
	}
	b.StopTimer()
	require.NoError(b, w.Teardown(ctx, a))
}
