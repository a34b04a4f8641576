package infra

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pitchside/contest/internal/domain"
	"github.com/pitchside/contest/internal/guard"
	"github.com/pitchside/contest/internal/repository"
)

// EventHandler processes one outbox event. A nil return acknowledges the
// event; an error schedules a retry.
type EventHandler func(ctx context.Context, draft domain.OutboxDraft) error

// SettlementPoller drains the outbox into the settlement engine. Failed
// events back off exponentially and dead-letter once their retry budget is
// spent; everything downstream of the handler is idempotent, so redelivery
// after a crash between handle and acknowledge is safe.
type SettlementPoller struct {
	pool      *pgxpool.Pool
	outbox    repository.OutboxRepository
	handler   EventHandler
	policy    guard.RetryPolicy
	deduper   *guard.Deduper
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

// NewSettlementPoller creates a settlement poller.
func NewSettlementPoller(
	pool *pgxpool.Pool,
	outbox repository.OutboxRepository,
	handler EventHandler,
	policy guard.RetryPolicy,
	logger *slog.Logger,
	interval time.Duration,
	batchSize int,
) *SettlementPoller {
	return &SettlementPoller{
		pool:      pool,
		outbox:    outbox,
		handler:   handler,
		policy:    policy,
		deduper:   guard.NewDeduper(time.Hour),
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Start begins polling in a goroutine. Stops when ctx is cancelled.
func (p *SettlementPoller) Start(ctx context.Context) {
	p.logger.Info("settlement poller started",
		"interval", p.interval, "batch_size", p.batchSize)

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Info("settlement poller stopped")
				return
			case <-ticker.C:
				if err := p.poll(ctx); err != nil {
					p.logger.Error("settlement poll error", "error", err)
				}
			}
		}
	}()
}

func (p *SettlementPoller) poll(ctx context.Context) error {
	now := time.Now()
	rows, err := p.outbox.FetchDue(ctx, p.pool, now, p.batchSize)
	if err != nil {
		return err
	}

	for _, row := range rows {
		p.process(ctx, row)
	}
	return nil
}

func (p *SettlementPoller) process(ctx context.Context, row domain.OutboxRow) {
	key := row.Draft.DedupeKey()
	if p.deduper.Seen(key) {
		// Same logical event already handled recently; the settlement rows
		// it would touch are already written.
		if err := p.outbox.MarkProcessed(ctx, p.pool, row.SeqID); err != nil {
			p.logger.Error("mark deduped event failed", "seq_id", row.SeqID, "error", err)
		}
		return
	}

	if err := p.handler(ctx, row.Draft); err != nil {
		p.deduper.Forget(key)
		p.fail(ctx, row, err)
		return
	}

	if err := p.outbox.MarkProcessed(ctx, p.pool, row.SeqID); err != nil {
		p.logger.Error("mark processed failed", "seq_id", row.SeqID, "error", err)
	}
}

func (p *SettlementPoller) fail(ctx context.Context, row domain.OutboxRow, cause error) {
	now := time.Now()
	if p.policy.Exhausted(row.Draft.OccurredAt, now) {
		p.logger.Error("event retry budget exhausted, dead-lettering",
			"event_id", row.Draft.EventID,
			"event_type", string(row.Draft.EventType),
			"attempts", row.Attempts,
			"error", cause)
		if err := p.outbox.MoveToDeadLetter(ctx, p.pool, row, cause.Error()); err != nil {
			p.logger.Error("dead-letter move failed", "seq_id", row.SeqID, "error", err)
		}
		return
	}

	delay := p.policy.NextDelay(row.Attempts + 1)
	p.logger.Warn("event processing failed, scheduling retry",
		"event_id", row.Draft.EventID,
		"event_type", string(row.Draft.EventType),
		"attempt", row.Attempts+1,
		"retry_in", delay,
		"error", cause)
	if err := p.outbox.RecordFailure(ctx, p.pool, row.SeqID, now.Add(delay)); err != nil {
		p.logger.Error("record failure failed", "seq_id", row.SeqID, "error", err)
	}
}
