// Package runner drives load against the app and summarizes latencies.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"tunefriends/internal/app"
)

// Workload is a repeatable user journey. Step is called concurrently from
// worker goroutines and must be safe for that. Teardown removes what Setup
// and the steps left behind.
type Workload interface {
	Name() string
	Setup(ctx context.Context, a *app.App) error
	Step(ctx context.Context, a *app.App, worker, iteration int) error
	Teardown(ctx context.Context, a *app.App) error
}

type Result struct {
	Workload       string        `json:"workload"`
	Operations     int64         `json:"operations"`
	Errors         int64         `json:"errors"`
	Throughput     float64       `json:"throughput"`
	P95Latency     time.Duration `json:"p95Latency"`
	P99Latency     time.Duration `json:"p99Latency"`
	AverageLatency time.Duration `json:"averageLatency"`
	ErrorRate      float64       `json:"errorRate"`
	TotalTime      time.Duration `json:"totalTime"`
}

// Recorder accumulates operation latencies in microseconds, up to 10s.
type Recorder struct {
	mu         sync.Mutex
	histogram  *hdrhistogram.Histogram
	operations int64
	errors     int64
}

func NewRecorder() *Recorder {
	return &Recorder{histogram: hdrhistogram.New(1, 10000000, 3)}
}

func (r *Recorder) Record(latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operations++
	us := latency.Microseconds()
	if us < 1 {
		us = 1
	}
	_ = r.histogram.RecordValue(us)
}

func (r *Recorder) Fail() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors++
}

// Result summarizes what was recorded over total.
func (r *Recorder) Result(total time.Duration) *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := &Result{
		Operations:     r.operations,
		Errors:         r.errors,
		TotalTime:      total,
		AverageLatency: time.Duration(r.histogram.Mean()) * time.Microsecond,
		P95Latency:     time.Duration(r.histogram.ValueAtQuantile(95)) * time.Microsecond,
		P99Latency:     time.Duration(r.histogram.ValueAtQuantile(99)) * time.Microsecond,
	}
	if total > 0 {
		result.Throughput = float64(r.operations) / total.Seconds()
	}
	if attempts := r.operations + r.errors; attempts > 0 {
		result.ErrorRate = float64(r.errors) / float64(attempts)
	}
	return result
}

// Run sets the workload up and then steps it from concurrency workers until
// duration elapses or ctx is cancelled.
func Run(ctx context.Context, a *app.App, workload Workload, concurrency int, duration time.Duration, logger *slog.Logger) (*Result, error) {
	if concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1, got %d", concurrency)
	}
	if err := workload.Setup(ctx, a); err != nil {
		return nil, fmt.Errorf("setup %s: %w", workload.Name(), err)
	}

	runCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	recorder := NewRecorder()
	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; runCtx.Err() == nil; i++ {
				opStart := time.Now()
				if err := workload.Step(runCtx, a, worker, i); err != nil {
					if runCtx.Err() != nil {
						return
					}
					recorder.Fail()
					logger.DebugContext(ctx, "step failed", "workload", workload.Name(), "worker", worker, "err", err)
					continue
				}
				recorder.Record(time.Since(opStart))
			}
		}(w)
	}
	wg.Wait()

	result := recorder.Result(time.Since(start))
	if err := workload.Teardown(ctx, a); err != nil {
		logger.WarnContext(ctx, "teardown failed", "workload", workload.Name(), "err", err)
	}
	result.Workload = workload.Name()
	logger.InfoContext(ctx, "workload finished",
		"workload", result.Workload,
		"operations", result.Operations,
		"errors", result.Errors,
		"p99", result.P99Latency)
	return result, nil
}
