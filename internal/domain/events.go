package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ResultConfirmedPayload is carried by contest.result.confirmed events.
type ResultConfirmedPayload struct {
	ResultID  uuid.UUID `json:"result_id"`
	MatchID   uuid.UUID `json:"match_id"`
	Version   int       `json:"version"`
	HomeScore int       `json:"home_score"`
	AwayScore int       `json:"away_score"`
}

// ResultAmendedPayload is carried by contest.result.amended events.
type ResultAmendedPayload struct {
	ResultID     uuid.UUID `json:"result_id"`
	MatchID      uuid.UUID `json:"match_id"`
	PriorVersion int       `json:"prior_version"`
	NewVersion   int       `json:"new_version"`
	HomeScore    int       `json:"home_score"`
	AwayScore    int       `json:"away_score"`
}

// ResultVoidedPayload is carried by contest.result.voided events.
type ResultVoidedPayload struct {
	ResultID    uuid.UUID `json:"result_id"`
	MatchID     uuid.UUID `json:"match_id"`
	LastVersion int       `json:"last_version"`
}

// DeadlineClosedPayload is carried by contest.deadline.closed events.
type DeadlineClosedPayload struct {
	MatchID  uuid.UUID `json:"match_id"`
	ClosedAt time.Time `json:"closed_at"`
}

// NewResultConfirmedEvent builds the outbox draft emitted when a result is
// confirmed. Events for the same match serialize on the match partition key.
func NewResultConfirmedEvent(r *Result) OutboxDraft {
	payload, _ := json.Marshal(ResultConfirmedPayload{
		ResultID:  r.ID,
		MatchID:   r.MatchID,
		Version:   r.Version,
		HomeScore: r.HomeScore,
		AwayScore: r.AwayScore,
	})
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateResult,
		AggregateID:   r.ID.String(),
		EventType:     EventResultConfirmed,
		Version:       r.Version,
		PartitionKey:  r.MatchID.String(),
		Payload:       payload,
		OccurredAt:    time.Now().UTC(),
	}
}

// NewResultAmendedEvent builds the outbox draft for an amendment superseding
// priorVersion with the new row.
func NewResultAmendedEvent(newRow *Result, priorVersion int) OutboxDraft {
	payload, _ := json.Marshal(ResultAmendedPayload{
		ResultID:     newRow.ID,
		MatchID:      newRow.MatchID,
		PriorVersion: priorVersion,
		NewVersion:   newRow.Version,
		HomeScore:    newRow.HomeScore,
		AwayScore:    newRow.AwayScore,
	})
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateResult,
		AggregateID:   newRow.ID.String(),
		EventType:     EventResultAmended,
		Version:       newRow.Version,
		PartitionKey:  newRow.MatchID.String(),
		Payload:       payload,
		OccurredAt:    time.Now().UTC(),
	}
}

// NewResultVoidedEvent builds the outbox draft emitted when a result is
// voided.
func NewResultVoidedEvent(r *Result) OutboxDraft {
	payload, _ := json.Marshal(ResultVoidedPayload{
		ResultID:    r.ID,
		MatchID:     r.MatchID,
		LastVersion: r.Version,
	})
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateResult,
		AggregateID:   r.ID.String(),
		EventType:     EventResultVoided,
		Version:       r.Version,
		PartitionKey:  r.MatchID.String(),
		Payload:       payload,
		OccurredAt:    time.Now().UTC(),
	}
}

// NewDeadlineClosedEvent builds the outbox draft emitted when a match's
// betting window closes. Version is always 1: a window closes once.
func NewDeadlineClosedEvent(matchID uuid.UUID, closedAt time.Time) OutboxDraft {
	payload, _ := json.Marshal(DeadlineClosedPayload{
		MatchID:  matchID,
		ClosedAt: closedAt,
	})
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateMatch,
		AggregateID:   matchID.String(),
		EventType:     EventDeadlineClosed,
		Version:       1,
		PartitionKey:  matchID.String(),
		Payload:       payload,
		OccurredAt:    time.Now().UTC(),
	}
}
