package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"seatool_alerts/internal/events"
	"seatool_alerts/internal/http/router"
	"seatool_alerts/internal/orchestrator"
	"seatool_alerts/internal/recon"
	"seatool_alerts/internal/recon/handler"
	"seatool_alerts/internal/store"
	"seatool_alerts/platform/config"
	"seatool_alerts/platform/db"
	"seatool_alerts/platform/logger"
	"seatool_alerts/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting api", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	log.Info("database connection established")

	client, err := orchestrator.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize orchestrator client", "error", err)
		panic("failed to initialize orchestrator client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	profiles := map[string]*recon.Profile{}
	for _, p := range []*recon.Profile{
		recon.AppianProfile(cfg.AppianIgnoredStates),
		recon.MMDLProfile(cfg.MMDLIgnoredStates),
	} {
		profiles[p.Name] = p
	}

	eventBus := events.NewInMemoryBus(log)
	orchestrator.SubscribeReportRequests(eventBus, client)

	docs := store.NewPostgresStore(pool)
	val := validator.New()
	apiHandler := handler.New(profiles, docs, handler.NewBusEnqueuer(eventBus), cfg.ReportRecipient, val)

	engine := router.New(cfg, apiHandler, log)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
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
