package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pitchside/contest/internal/app"
	"github.com/pitchside/contest/internal/auth"
	"github.com/pitchside/contest/internal/clock"
	"github.com/pitchside/contest/internal/domain"
	"github.com/pitchside/contest/internal/infra"
	"github.com/pitchside/contest/internal/projection"
	"github.com/pitchside/contest/internal/repository"
	"github.com/pitchside/contest/internal/service"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	tieBreak, err := cfg.TieBreakRule()
	if err != nil {
		return err
	}

	if err := infra.RunMigrations(cfg.DSN(), logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to postgres")

	// Projection cache: Redis in production, in-memory when unreachable.
	var cache projection.Store
	if redisClient, err := infra.NewRedisClient(ctx, cfg); err != nil {
		logger.Warn("redis unavailable, using in-memory projection store", "error", err)
		cache = projection.NewInMemoryStore()
	} else {
		defer redisClient.Close()
		cache = projection.NewRedisStore(redisClient)
		logger.Info("connected to redis")
	}

	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTUserExpiry, cfg.JWTAdminExpiry)

	// Deadline gate and its durable closer
	matchRepo := repository.NewMatchRepository()
	outboxRepo := repository.NewOutboxRepository()
	deadlineSvc := service.NewDeadlineService(pool, matchRepo, outboxRepo, logger)

	gate := clock.NewGate(func(ctx context.Context, matchID uuid.UUID, closesAt time.Time) {
		if err := deadlineSvc.CloseWindow(ctx, matchID, closesAt); err != nil {
			logger.Error("window closure failed", "match_id", matchID, "error", err)
		}
	}, logger)
	go gate.Run(ctx)

	if err := deadlineSvc.Seed(ctx, gate, cfg.GateSeedHorizon, 10_000); err != nil {
		return fmt.Errorf("seed deadline gate: %w", err)
	}

	sweeper, err := infra.NewSweepScheduler(cfg.DeadlineSweepSpec, func(ctx context.Context) error {
		return deadlineSvc.Sweep(ctx, 1_000)
	}, logger)
	if err != nil {
		return fmt.Errorf("build sweep scheduler: %w", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	router := app.NewRouter(app.RouterDeps{
		Pool:                 pool,
		JWTMgr:               jwtMgr,
		Logger:               logger,
		Cache:                cache,
		Gate:                 gate,
		TieBreak:             tieBreak,
		LeaderboardCacheTTL:  cfg.LeaderboardCacheTTL,
		WindowPolicy:         domain.WindowClosurePolicy{MinutesBefore: cfg.WindowCloseMinutesBefore},
		PredictionRateLimit:  cfg.PredictionRateLimit,
		PredictionRateWindow: cfg.PredictionRateWindow,
	})

	// Start server
	addr := fmt.Sprintf(":%d", cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
