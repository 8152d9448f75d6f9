package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tunefriends/internal/app"
)

type countingWorkload struct {
	setupErr  error
	steps     atomic.Int64
	teardowns atomic.Int64
}

func (w *countingWorkload) Name() string { return "counting" }

func (w *countingWorkload) Setup(context.Context, *app.App) error { return w.setupErr }

func (w *countingWorkload) Teardown(context.Context, *app.App) error {
	w.teardowns.Add(1)
	return nil
}

// Step fails every third call.
func (w *countingWorkload) Step(context.Context, *app.App, int, int) error {
	if w.steps.Add(1)%3 == 0 {
		return errors.New("boom")
	}
	time.Sleep(100 * time.Microsecond)
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun(t *testing.T) {
	w := &countingWorkload{}
	result, err := Run(context.Background(), nil, w, 4, 50*time.Millisecond, discard())
	require.NoError(t, err)

	assert.Equal(t, "counting", result.Workload)
	assert.Positive(t, result.Operations)
	assert.Positive(t, result.Errors)
	assert.GreaterOrEqual(t, w.steps.Load(), result.Operations+result.Errors)
	assert.Equal(t, int64(1), w.teardowns.Load())
	assert.InDelta(t, 1.0/3, result.ErrorRate, 0.1)
	assert.Positive(t, result.Throughput)
	assert.GreaterOrEqual(t, result.P99Latency, result.P95Latency)
}

func TestRunRejectsBadInput(t *testing.T) {
	_, err := Run(context.Background(), nil, &countingWorkload{}, 0, time.Millisecond, discard())
	assert.Error(t, err)

	failing := &countingWorkload{setupErr: errors.New("no db")}
	_, err = Run(context.Background(), nil, failing, 1, time.Millisecond, discard())
	assert.ErrorContains(t, err, "setup counting")
	assert.Zero(t, failing.teardowns.Load())
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	for i := 1; i <= 100; i++ {
		r.Record(time.Duration(i) * time.Millisecond)
	}
	r.Fail()

	result := r.Result(time.Second)
	assert.Equal(t, int64(100), result.Operations)
	assert.Equal(t, int64(1), result.Errors)
	assert.InDelta(t, float64(95*time.Millisecond), float64(result.P95Latency), float64(time.Millisecond))
	assert.InDelta(t, float64(50500*time.Microsecond), float64(result.AverageLatency), float64(time.Millisecond))
	assert.InDelta(t, 100.0, result.Throughput, 0.001)
}
