package domain

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates all domain event types.
type EventType string

const (
	EventResultConfirmed EventType = "contest.result.confirmed"
	EventResultAmended   EventType = "contest.result.amended"
	EventResultVoided    EventType = "contest.result.voided"
	EventDeadlineClosed  EventType = "contest.deadline.closed"
)

// AggregateType enumerates the aggregate root types for outbox events.
type AggregateType string

const (
	AggregateMatch  AggregateType = "match"
	AggregateResult AggregateType = "result"
)

// OutboxDraft is the envelope written to the event_outbox table in the same
// transaction as the state change that produces it. Consumers deduplicate
// by (EventType, AggregateID, Version).
type OutboxDraft struct {
	EventID       uuid.UUID       `json:"event_id"`
	AggregateType AggregateType   `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     EventType       `json:"event_type"`
	Version       int             `json:"version"`
	PartitionKey  string          `json:"partition_key"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// DedupeKey identifies an event for at-least-once consumer deduplication.
func (d *OutboxDraft) DedupeKey() string {
	return string(d.EventType) + ":" + d.AggregateID + ":" + strconv.Itoa(d.Version)
}

// OutboxRow is a stored outbox event with the poller's bookkeeping columns.
type OutboxRow struct {
	SeqID         int64
	Draft         OutboxDraft
	Attempts      int
	NextAttemptAt *time.Time
	ProcessedAt   *time.Time
	PublishedAt   *time.Time
}
