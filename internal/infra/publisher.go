package infra

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pitchside/contest/internal/repository"
)

// EventPublisher relays committed outbox events to Kafka. Publication is
// at-least-once: an event is marked published only after the broker write
// succeeds, and downstream consumers dedupe on event id.
type EventPublisher struct {
	pool        *pgxpool.Pool
	outbox      repository.OutboxRepository
	producer    *KafkaProducer
	topicPrefix string
	logger      *slog.Logger
	interval    time.Duration
	batchSize   int
}

// NewEventPublisher creates an event publisher.
func NewEventPublisher(
	pool *pgxpool.Pool,
	outbox repository.OutboxRepository,
	producer *KafkaProducer,
	topicPrefix string,
	logger *slog.Logger,
	interval time.Duration,
	batchSize int,
) *EventPublisher {
	return &EventPublisher{
		pool:        pool,
		outbox:      outbox,
		producer:    producer,
		topicPrefix: topicPrefix,
		logger:      logger,
		interval:    interval,
		batchSize:   batchSize,
	}
}

// Start begins publishing in a goroutine. Stops when ctx is cancelled.
func (p *EventPublisher) Start(ctx context.Context) {
	if !p.producer.Enabled() {
		p.logger.Info("event publisher disabled")
		return
	}
	p.logger.Info("event publisher started",
		"interval", p.interval, "batch_size", p.batchSize)

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Info("event publisher stopped")
				return
			case <-ticker.C:
				if err := p.publish(ctx); err != nil {
					p.logger.Error("event publish error", "error", err)
				}
			}
		}
	}()
}

func (p *EventPublisher) publish(ctx context.Context) error {
	rows, err := p.outbox.FetchUnpublished(ctx, p.pool, p.batchSize)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	var published []int64
	for _, row := range rows {
		// One topic per aggregate; the match partition key keeps events for
		// the same match in order.
		topic := p.topicPrefix + "." + string(row.Draft.AggregateType)
		envelope, _ := json.Marshal(map[string]interface{}{
			"event_id":       row.Draft.EventID,
			"aggregate_type": row.Draft.AggregateType,
			"aggregate_id":   row.Draft.AggregateID,
			"event_type":     row.Draft.EventType,
			"version":        row.Draft.Version,
			"payload":        row.Draft.Payload,
			"occurred_at":    row.Draft.OccurredAt,
		})

		if err := p.producer.Publish(ctx, topic, []byte(row.Draft.PartitionKey), envelope); err != nil {
			p.logger.Error("kafka publish failed",
				"event_id", row.Draft.EventID, "topic", topic, "error", err)
			// Stop the batch: marking later events published while this one
			// is retried would reorder the partition.
			break
		}
		published = append(published, row.SeqID)
	}

	if len(published) > 0 {
		if err := p.outbox.MarkPublished(ctx, p.pool, published); err != nil {
			return err
		}
		p.logger.Debug("outbox events published", "count", len(published))
	}
	return nil
}
