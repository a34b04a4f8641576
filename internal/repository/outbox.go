package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/pitchside/contest/internal/domain"
)

type outboxRepo struct{}

// NewOutboxRepository returns a pgx-backed OutboxRepository.
func NewOutboxRepository() OutboxRepository {
	return &outboxRepo{}
}

func (r *outboxRepo) Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error {
	_, err := db.Exec(ctx, `
		INSERT INTO event_outbox
			(event_id, aggregate_type, aggregate_id, event_type, version, partition_key, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		draft.EventID,
		string(draft.AggregateType),
		draft.AggregateID,
		string(draft.EventType),
		draft.Version,
		draft.PartitionKey,
		draft.Payload,
		draft.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

const outboxColumns = `id, event_id, aggregate_type, aggregate_id, event_type, version,
	partition_key, payload, occurred_at, attempts, next_attempt_at, processed_at, published_at`

// FetchDue orders by sequence id so events for the same aggregate are
// delivered in emission order.
func (r *outboxRepo) FetchDue(ctx context.Context, db DBTX, now time.Time, limit int) ([]domain.OutboxRow, error) {
	rows, err := db.Query(ctx, `
		SELECT `+outboxColumns+`
		FROM event_outbox
		WHERE processed_at IS NULL AND (next_attempt_at IS NULL OR next_attempt_at <= $1)
		ORDER BY id ASC
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch due outbox events: %w", err)
	}
	defer rows.Close()

	var events []domain.OutboxRow
	for rows.Next() {
		var row domain.OutboxRow
		var aggType, evType string
		err := rows.Scan(&row.SeqID, &row.Draft.EventID, &aggType, &row.Draft.AggregateID,
			&evType, &row.Draft.Version, &row.Draft.PartitionKey, &row.Draft.Payload,
			&row.Draft.OccurredAt, &row.Attempts, &row.NextAttemptAt, &row.ProcessedAt, &row.PublishedAt)
		if err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		row.Draft.AggregateType = domain.AggregateType(aggType)
		row.Draft.EventType = domain.EventType(evType)
		events = append(events, row)
	}
	return events, rows.Err()
}

func (r *outboxRepo) MarkProcessed(ctx context.Context, db DBTX, seqID int64) error {
	_, err := db.Exec(ctx,
		`UPDATE event_outbox SET processed_at = now() WHERE id = $1`, seqID)
	if err != nil {
		return fmt.Errorf("mark outbox processed: %w", err)
	}
	return nil
}

func (r *outboxRepo) RecordFailure(ctx context.Context, db DBTX, seqID int64, nextAttempt time.Time) error {
	_, err := db.Exec(ctx, `
		UPDATE event_outbox SET attempts = attempts + 1, next_attempt_at = $2
		WHERE id = $1`, seqID, nextAttempt)
	if err != nil {
		return fmt.Errorf("record outbox failure: %w", err)
	}
	return nil
}

func (r *outboxRepo) MoveToDeadLetter(ctx context.Context, db DBTX, row domain.OutboxRow, failure string) error {
	_, err := db.Exec(ctx, `
		INSERT INTO event_deadletter (event_id, event_type, aggregate_id, version, payload, failure, attempts, failed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		row.Draft.EventID, string(row.Draft.EventType), row.Draft.AggregateID,
		row.Draft.Version, row.Draft.Payload, failure, row.Attempts)
	if err != nil {
		return fmt.Errorf("insert dead letter: %w", err)
	}
	_, err = db.Exec(ctx,
		`UPDATE event_outbox SET processed_at = now() WHERE id = $1`, row.SeqID)
	if err != nil {
		return fmt.Errorf("retire dead-lettered event: %w", err)
	}
	return nil
}

func (r *outboxRepo) FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]domain.OutboxRow, error) {
	rows, err := db.Query(ctx, `
		SELECT `+outboxColumns+`
		FROM event_outbox
		WHERE published_at IS NULL
		ORDER BY id ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unpublished events: %w", err)
	}
	defer rows.Close()

	var events []domain.OutboxRow
	for rows.Next() {
		var row domain.OutboxRow
		var aggType, evType string
		err := rows.Scan(&row.SeqID, &row.Draft.EventID, &aggType, &row.Draft.AggregateID,
			&evType, &row.Draft.Version, &row.Draft.PartitionKey, &row.Draft.Payload,
			&row.Draft.OccurredAt, &row.Attempts, &row.NextAttemptAt, &row.ProcessedAt, &row.PublishedAt)
		if err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		row.Draft.AggregateType = domain.AggregateType(aggType)
		row.Draft.EventType = domain.EventType(evType)
		events = append(events, row)
	}
	return events, rows.Err()
}

func (r *outboxRepo) MarkPublished(ctx context.Context, db DBTX, seqIDs []int64) error {
	if len(seqIDs) == 0 {
		return nil
	}
	_, err := db.Exec(ctx,
		`UPDATE event_outbox SET published_at = now() WHERE id = ANY($1)`, seqIDs)
	if err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return nil
}

func (r *outboxRepo) ListDeadLetters(ctx context.Context, db DBTX, limit int) ([]DeadLetter, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := db.Query(ctx, `
		SELECT id, event_id, event_type, aggregate_id, version, failure, attempts, failed_at
		FROM event_deadletter ORDER BY failed_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var letters []DeadLetter
	for rows.Next() {
		var d DeadLetter
		if err := rows.Scan(&d.ID, &d.EventID, &d.EventType, &d.AggregateID, &d.Version,
			&d.Failure, &d.Attempts, &d.FailedAt); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		letters = append(letters, d)
	}
	return letters, rows.Err()
}
