package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"bilancio/internal/amqp"
	"bilancio/internal/config"
	"bilancio/internal/core"
	applog "bilancio/internal/log"
	"bilancio/internal/services"
	"bilancio/internal/storage"
)

// ledger-worker runs the materialization pass on a cron schedule so due
// occurrences become real transactions even while no one is looking at
// the ledger.
func main() {
	// Load .env for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfgLog := applog.DefaultConfig()
	cfgLog.Component = applog.ComponentMaterializer
	logger := applog.New(cfgLog)
	applog.SetDefault(logger)

	logger.Info("Starting ledger-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var publisher services.SyncPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without sync events", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
		}
	}

	ledger := services.NewLedgerService(repo, publisher)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runCatchUp := func() {
		today := core.DateOf(time.Now())
		count, err := ledger.CatchUp(ctx, today)
		if err != nil {
			logger.Error("Materialization pass failed", "error", err, "as_of", today.String())
			return
		}
		logger.Info("Materialization pass complete",
			"transactions_created", count, "as_of", today.String())
	}

	// Catch up immediately on startup, then follow the cron schedule.
	runCatchUp()

	c := cron.New()
	if _, err := c.AddFunc(cfg.MaterializeCron, runCatchUp); err != nil {
		logger.Error("Failed to schedule materialization pass",
			"error", err, "cron", cfg.MaterializeCron)
		os.Exit(1)
	}
	c.Start()
	logger.Info("Materialization schedule active", "cron", cfg.MaterializeCron)

	<-ctx.Done()
	logger.Info("Shutting down ledger-worker...")

	// Let an in-flight pass finish.
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		logger.Warn("Shutdown timeout reached")
	}
	logger.Info("Ledger-worker shutdown complete")
}
