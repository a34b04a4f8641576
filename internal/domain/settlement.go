package domain

import (
	"time"

	"github.com/google/uuid"
)

// RuleApplied records which scoring branch produced a settlement.
type RuleApplied string

const (
	RuleExactScore RuleApplied = "exact_score"
	RuleWinnerOnly RuleApplied = "winner_only"
	RuleMiss       RuleApplied = "miss"
	RuleReversal   RuleApplied = "reversal"
)

// VoidReversalVersion is the reserved result version used for the reversal
// row written when a confirmed result is voided. Real result versions start
// at 1, so (predictionID, 0) is free and its uniqueness caps the void at
// one reversal per prediction.
const VoidReversalVersion = 0

// Settlement is the write-once record that a prediction was scored against
// a specific result version. (PredictionID, ResultVersion) is unique; that
// constraint is the engine's idempotence primitive.
type Settlement struct {
	ID            uuid.UUID   `json:"id"`
	PredictionID  uuid.UUID   `json:"prediction_id"`
	ResultVersion int         `json:"result_version"`
	PointsAwarded int         `json:"points_awarded"`
	RuleApplied   RuleApplied `json:"rule_applied"`
	ScoredAt      time.Time   `json:"scored_at"`
}

// AggregateDelta is the additive update a settlement applies to a
// leaderboard entry. Negative values compensate amendments and voids.
type AggregateDelta struct {
	Points       int
	ExactScore   int
	WinnerOnly   int
	SettledCount int
}

// IsZero reports whether the delta changes nothing.
func (d AggregateDelta) IsZero() bool {
	return d.Points == 0 && d.ExactScore == 0 && d.WinnerOnly == 0 && d.SettledCount == 0
}

// Negate returns the compensating delta.
func (d AggregateDelta) Negate() AggregateDelta {
	return AggregateDelta{
		Points:       -d.Points,
		ExactScore:   -d.ExactScore,
		WinnerOnly:   -d.WinnerOnly,
		SettledCount: -d.SettledCount,
	}
}

// Add combines two deltas.
func (d AggregateDelta) Add(o AggregateDelta) AggregateDelta {
	return AggregateDelta{
		Points:       d.Points + o.Points,
		ExactScore:   d.ExactScore + o.ExactScore,
		WinnerOnly:   d.WinnerOnly + o.WinnerOnly,
		SettledCount: d.SettledCount + o.SettledCount,
	}
}

// SettlementApplication is one atomic unit of settlement work: the
// settlement row to insert, the prediction update, and the leaderboard
// delta, all committed in a single transaction.
type SettlementApplication struct {
	Settlement Settlement
	GroupID    uuid.UUID
	SeasonID   uuid.UUID
	UserID     uuid.UUID
	NewPoints  int
	NewStatus  PredictionStatus
	Delta      AggregateDelta
}

// DeltaForRule maps a scoring outcome to its aggregate contribution.
func DeltaForRule(rule RuleApplied, points int) AggregateDelta {
	d := AggregateDelta{Points: points, SettledCount: 1}
	switch rule {
	case RuleExactScore:
		d.ExactScore = 1
	case RuleWinnerOnly:
		d.WinnerOnly = 1
	}
	return d
}
