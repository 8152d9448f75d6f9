package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

type Options struct {
	Driver         string
	DSN            string
	Name           string
	ConnectRetries uint64
}

// Open builds the configured driver and waits for it to answer a ping,
// retrying on a Fibonacci backoff.
func Open(ctx context.Context, opts Options) (DatabaseDriver, error) {
	var (
		driver DatabaseDriver
		err    error
	)
	switch opts.Driver {
	case "memory":
		return NewMemoryDriver(), nil
	case "mongo":
		driver, err = NewMongoDriver(ctx, opts.DSN, opts.Name)
	case "postgres":
		driver, err = NewPostgresDriver(ctx, opts.DSN)
	case "mysql":
		driver, err = NewMySQLDriver(ctx, opts.DSN)
	case "sqlite":
		driver, err = NewSQLiteDriver(ctx, opts.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver %q", opts.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", opts.Driver, err)
	}

	b := retry.NewFibonacci(250 * time.Millisecond)
	b = retry.WithCappedDuration(5*time.Second, b)
	attempt := 0
	if err := retry.Do(ctx, retry.WithMaxRetries(opts.ConnectRetries, b), func(ctx context.Context) error {
		attempt++
		if err := driver.Ping(ctx); err != nil {
			slog.WarnContext(ctx, "database ping failed", "driver", opts.Driver, "attempt", attempt, "err", err)
			return retry.RetryableError(err)
		}
		return nil
	}); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("ping %s: %w", opts.Driver, err)
	}
	return driver, nil
}
