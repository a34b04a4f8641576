package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pitchside/contest/internal/guard"
	"github.com/pitchside/contest/internal/infra"
	"github.com/pitchside/contest/internal/repository"
	"github.com/pitchside/contest/internal/scoring"
)

// The settler drains the outbox into the settlement engine. It runs as its
// own process so a scoring backlog never slows the API, and it can be
// restarted freely: every settlement write is idempotent.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("settler failed", "error", err)
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

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to postgres")

	matchRepo := repository.NewMatchRepository()
	predictionRepo := repository.NewPredictionRepository()
	settlementRepo := repository.NewSettlementRepository()
	leaderboardRepo := repository.NewLeaderboardRepository()
	outboxRepo := repository.NewOutboxRepository()

	writer := repository.NewSettlementWriter(pool, predictionRepo, settlementRepo, leaderboardRepo)
	store := repository.NewScoringStore(pool, matchRepo, predictionRepo, settlementRepo, writer)

	rules := scoring.Rules{
		ExactPoints:  cfg.ExactScorePoints,
		WinnerPoints: cfg.WinnerOnlyPoints,
	}
	engine := scoring.NewEngine(store, rules, logger)

	policy := guard.RetryPolicy{
		Base:   cfg.RetryBase,
		Cap:    cfg.RetryCap,
		Budget: cfg.RetryBudget,
	}

	poller := infra.NewSettlementPoller(
		pool,
		outboxRepo,
		engine.HandleEvent,
		policy,
		logger,
		cfg.OutboxPollInterval,
		cfg.OutboxBatchSize,
	)
	poller.Start(ctx)

	logger.Info("settler running",
		"exact_points", rules.ExactPoints,
		"winner_points", rules.WinnerPoints,
		"poll_interval", cfg.OutboxPollInterval)

	<-ctx.Done()
	logger.Info("settler stopped")
	return nil
}
