package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"tunefriends/internal/app"
	"tunefriends/internal/config"
	"tunefriends/internal/database"
	"tunefriends/internal/logging"
	"tunefriends/internal/runner"
	"tunefriends/internal/workloads/socialmedia"
)

func main() {
	var exitCode int
	defer func() {
		os.Exit(exitCode)
	}()

	configPath := flag.String("config", "", "YAML config file")
	envFile := flag.String("env", ".env", "dotenv file with TUNEFRIENDS_ overrides")
	workloadName := flag.String("workload", "friending", "workload to run (friending, cover_locking, or snapshot_feed)")
	concurrency := flag.Int("concurrency", 16, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "duration of the test")
	users := flag.Int("users", socialmedia.DefaultUsers, "accounts seeded for the workload")

	flag.Parse()

	// Tokens never leave the process, so any secret will do.
	secretVar := config.EnvPrefix + "SESSION_SECRET"
	if os.Getenv(secretVar) == "" {
		_ = os.Setenv(secretVar, uuid.NewString())
	}

	cfg, err := config.LoadConfig(*configPath, *envFile)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		exitCode = 1
		return
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Printf("Failed to set up logging: %v", err)
		exitCode = 1
		return
	}

	workloads := map[string]runner.Workload{
		"friending":     &socialmedia.FriendingTest{Users: *users},
		"cover_locking": &socialmedia.CoverLockingTest{Users: *users},
		"snapshot_feed": &socialmedia.SnapshotFeedTest{Users: *users},
	}
	workload, ok := workloads[*workloadName]
	if !ok {
		log.Printf("Unsupported workload: %s", *workloadName)
		exitCode = 1
		return
	}

	ctx := context.Background()
	driver, err := database.Open(ctx, database.Options{
		Driver:         cfg.Database.Driver,
		DSN:            cfg.Database.DSN,
		Name:           cfg.Database.Name,
		ConnectRetries: cfg.Database.ConnectRetries,
	})
	if err != nil {
		log.Printf("Failed to connect to %s: %v", cfg.Database.Driver, err)
		exitCode = 1
		return
	}
	defer driver.Close(ctx)

	// Reset the database to ensure a clean state before setup
	if err := app.Reset(ctx, driver); err != nil {
		log.Printf("Failed to reset database: %v", err)
		exitCode = 1
		return
	}

	a, err := app.New(ctx, app.Deps{
		Driver:                 driver,
		Logger:                 logger,
		SessionSecret:          cfg.Session.Secret,
		SessionTTL:             cfg.Session.TTL,
		SnapshotExpiry:         cfg.Snapshots.Expiry,
		RejectOverlappingLocks: cfg.Locks.RejectOverlap,
	})
	if err != nil {
		log.Printf("Failed to build app: %v", err)
		exitCode = 1
		return
	}

	fmt.Printf("Running benchmark for %s on %s...\n", *workloadName, cfg.Database.Driver)

	result, err := runner.Run(ctx, a, workload, *concurrency, *duration, logger)
	if err != nil {
		log.Printf("Benchmark failed: %v", err)
		exitCode = 1
		return
	}

	jsonOutput, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Printf("Failed to marshal result: %v", err)
		exitCode = 1
		return
	}
	fmt.Println(string(jsonOutput))
}
