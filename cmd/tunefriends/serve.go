package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"tunefriends/internal/api"
	"tunefriends/internal/app"
	"tunefriends/internal/config"
	"tunefriends/internal/database"
	"tunefriends/internal/logging"
	"tunefriends/internal/namecache"
)

// bootstrap loads configuration and builds the app. The returned cleanup
// closes the database and the cache client.
func bootstrap(ctx context.Context) (*config.Config, *app.App, *slog.Logger, func(), error) {
	cfg, err := config.LoadConfig(configPath, envFile)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	logger, err := logging.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	driver, err := database.Open(ctx, database.Options{
		Driver:         cfg.Database.Driver,
		DSN:            cfg.Database.DSN,
		Name:           cfg.Database.Name,
		ConnectRetries: cfg.Database.ConnectRetries,
	})
	if err != nil {
		return nil, nil, nil, nil, err
	}

	closers := []func(){func() {
		if err := driver.Close(context.Background()); err != nil {
			logger.Warn("close database", "err", err)
		}
	}}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var names namecache.Cache
	switch cfg.Cache.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		closers = append(closers, func() { _ = client.Close() })
		cache := namecache.NewRedis(client, cfg.Cache.TTL)
		if err := cache.Ping(ctx); err != nil {
			cleanup()
			return nil, nil, nil, nil, fmt.Errorf("ping redis %s: %w", cfg.Cache.RedisAddr, err)
		}
		names = cache
	default:
		names = namecache.NewLRU(cfg.Cache.Size, cfg.Cache.TTL)
	}

	a, err := app.New(ctx, app.Deps{
		Driver:                 driver,
		Logger:                 logger,
		Names:                  names,
		SessionSecret:          cfg.Session.Secret,
		SessionTTL:             cfg.Session.TTL,
		SnapshotExpiry:         cfg.Snapshots.Expiry,
		RejectOverlappingLocks: cfg.Locks.RejectOverlap,
	})
	if err != nil {
		cleanup()
		return nil, nil, nil, nil, err
	}
	return cfg, a, logger, cleanup, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, a, logger, cleanup, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.Locks.SweepSchedule != "" {
		stopSweeper, err := a.StartSweeper(ctx, cfg.Locks.SweepSchedule)
		if err != nil {
			return err
		}
		defer stopSweeper()
	}

	router := api.NewRouter(a, api.Options{
		RateLimit:    cfg.Server.RateLimit,
		RateBurst:    cfg.Server.RateBurst,
		SecureCookie: cfg.Server.SecureCookie,
		Logger:       logger,
	})
	logger.Info("listening", "addr", cfg.Server.Addr, "database", cfg.Database.Driver, "cache", cfg.Cache.Backend)
	return api.Serve(ctx, cfg.Server.Addr, router, logger)
}

func runSweep(cmd *cobra.Command, args []string) error {
	_, a, _, cleanup, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	removed, err := a.SweepLocks(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired locks\n", removed)
	return nil
}
