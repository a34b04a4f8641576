package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pitchside/contest/internal/infra"
	"github.com/pitchside/contest/internal/repository"
)

// The dispatcher relays committed outbox events to Kafka for external
// consumers. It is optional: with KAFKA_ENABLED=false the events stay in
// the outbox table and the in-process settler remains the only consumer.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("dispatcher failed", "error", err)
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

	producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	defer producer.Close()

	publisher := infra.NewEventPublisher(
		pool,
		repository.NewOutboxRepository(),
		producer,
		cfg.KafkaTopicPrefix,
		logger,
		cfg.OutboxPollInterval,
		cfg.OutboxBatchSize,
	)
	publisher.Start(ctx)

	logger.Info("outbox dispatcher running",
		"kafka_enabled", cfg.KafkaEnabled,
		"topic_prefix", cfg.KafkaTopicPrefix)

	<-ctx.Done()
	logger.Info("dispatcher stopped")
	return nil
}
