package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ResultType distinguishes the phase a recorded scoreline covers. Only the
// final result drives settlement.
type ResultType string

const (
	ResultFullTime  ResultType = "full_time"
	ResultHalfTime  ResultType = "half_time"
	ResultExtraTime ResultType = "extra_time"
	ResultPenalties ResultType = "penalties"
	ResultFinal     ResultType = "final"
)

// ValidResultTypes enumerates the accepted result types.
var ValidResultTypes = map[ResultType]bool{
	ResultFullTime:  true,
	ResultHalfTime:  true,
	ResultExtraTime: true,
	ResultPenalties: true,
	ResultFinal:     true,
}

// ResultStatus is the confirmation state of a recorded result.
type ResultStatus string

const (
	ResultPending   ResultStatus = "pending"
	ResultConfirmed ResultStatus = "confirmed"
	ResultDisputed  ResultStatus = "disputed"
	ResultAmended   ResultStatus = "amended"
	ResultVoided    ResultStatus = "voided"
)

// ValidResultStatuses enumerates the accepted result states.
var ValidResultStatuses = map[ResultStatus]bool{
	ResultPending:   true,
	ResultConfirmed: true,
	ResultDisputed:  true,
	ResultAmended:   true,
	ResultVoided:    true,
}

// Result is a recorded outcome for a match. Amendments create a new row with
// the next version; (MatchID, ResultType, Version) is unique.
type Result struct {
	ID             uuid.UUID       `json:"id"`
	MatchID        uuid.UUID       `json:"match_id"`
	ResultType     ResultType      `json:"result_type"`
	Version        int             `json:"version"`
	HomeScore      int             `json:"home_score"`
	AwayScore      int             `json:"away_score"`
	Status         ResultStatus    `json:"status"`
	RecordedBy     uuid.UUID       `json:"recorded_by"`
	RecordedAt     time.Time       `json:"recorded_at"`
	ConfirmedAt    *time.Time      `json:"confirmed_at,omitempty"`
	AdditionalData json.RawMessage `json:"additional_data,omitempty"`
}

// Validate checks the structural invariants of a result.
func (r *Result) Validate() error {
	if r.HomeScore < 0 || r.AwayScore < 0 {
		return ErrInvalidScores("result scores must be non-negative")
	}
	if !ValidResultTypes[r.ResultType] {
		return ErrValidation("unknown result type: " + string(r.ResultType))
	}
	if !ValidResultStatuses[r.Status] {
		return ErrValidation("unknown result status: " + string(r.Status))
	}
	if r.Version < 1 {
		return ErrValidation("result version must be >= 1")
	}
	if len(r.AdditionalData) > 0 && !json.Valid(r.AdditionalData) {
		return ErrValidation("additional data must be valid JSON")
	}
	return nil
}

// Winner derives the outcome of the recorded scoreline.
func (r *Result) Winner() Winner {
	return WinnerFromScores(r.HomeScore, r.AwayScore)
}

// Confirmation state machine guards. Side effects (outbox events, new
// version rows) are the result service's concern; these answer only whether
// the transition is legal.

// CanConfirm reports whether the result may move to confirmed. Both fresh
// pending results and disputed results being upheld confirm.
func (r *Result) CanConfirm() bool {
	return r.Status == ResultPending || r.Status == ResultDisputed
}

// CanDispute reports whether a dispute may be attached.
func (r *Result) CanDispute() bool {
	return r.Status == ResultPending || r.Status == ResultConfirmed
}

// CanAmend reports whether a superseding version may be created.
func (r *Result) CanAmend() bool {
	return r.Status == ResultConfirmed || r.Status == ResultDisputed
}

// CanVoid reports whether the result may be voided. Amended rows are
// terminal per version and cannot be voided; their successor can.
func (r *Result) CanVoid() bool {
	return r.Status != ResultAmended && r.Status != ResultVoided
}

// Dispute is an objection raised against a recorded result.
type Dispute struct {
	ID        uuid.UUID       `json:"id"`
	ResultID  uuid.UUID       `json:"result_id"`
	Disputer  uuid.UUID       `json:"disputer"`
	Reason    string          `json:"reason"`
	Evidence  json.RawMessage `json:"evidence,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Validate checks the dispute fields.
func (d *Dispute) Validate() error {
	if d.Reason == "" {
		return ErrValidation("dispute reason is required")
	}
	if len(d.Evidence) > 0 && !json.Valid(d.Evidence) {
		return ErrValidation("dispute evidence must be valid JSON")
	}
	return nil
}
