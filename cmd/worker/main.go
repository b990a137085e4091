package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"seatool_alerts/internal/email"
	"seatool_alerts/internal/orchestrator"
	"seatool_alerts/internal/recon"
	"seatool_alerts/internal/secrets"
	"seatool_alerts/internal/store"
	"seatool_alerts/internal/telemetry"
	"seatool_alerts/platform/config"
	"seatool_alerts/platform/db"
	"seatool_alerts/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env, "queue", cfg.AsynqQueueName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	vault, err := secrets.NewRedisStore(cfg)
	if err != nil {
		log.Error("failed to initialize secret store", "error", err)
		panic("failed to initialize secret store: " + err.Error())
	}

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	docs := store.NewPostgresStore(pool)
	tel := telemetry.NewLogEmitter(log)
	clock := recon.SystemClock{}
	opts := recon.Options{
		SecretProject:  cfg.SecretProject,
		SecretStage:    cfg.SecretStage,
		AlertSubdomain: cfg.AlertSubdomain,
	}

	pipelines := map[string]*recon.Pipeline{}
	for _, p := range []*recon.Profile{
		recon.AppianProfile(cfg.AppianIgnoredStates),
		recon.MMDLProfile(cfg.MMDLIgnoredStates),
	} {
		pipelines[p.Name] = recon.NewPipeline(p, docs, vault, sender, tel, clock, opts, log)
	}

	worker, err := orchestrator.NewWorker(cfg, pipelines, cfg.IterationBudget, cfg.IterationDelay, log)
	if err != nil {
		log.Error("failed to initialize stage worker", "error", err)
		panic("failed to initialize stage worker: " + err.Error())
	}
	defer func() { _ = worker.Close() }()

	worker.Run(ctx)
	log.Info("worker stopped")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
