package domain

import (
	"time"

	"github.com/google/uuid"
)

// Winner is the predicted or actual outcome of a match.
type Winner string

const (
	WinnerHome Winner = "HOME"
	WinnerDraw Winner = "DRAW"
	WinnerAway Winner = "AWAY"
)

// ValidWinners enumerates the accepted outcome values.
var ValidWinners = map[Winner]bool{
	WinnerHome: true,
	WinnerDraw: true,
	WinnerAway: true,
}

// WinnerFromScores derives the outcome implied by a scoreline.
func WinnerFromScores(home, away int) Winner {
	switch {
	case home > away:
		return WinnerHome
	case home < away:
		return WinnerAway
	default:
		return WinnerDraw
	}
}

// PredictionStatus is the lifecycle state of a prediction.
type PredictionStatus string

const (
	PredictionPending   PredictionStatus = "pending"
	PredictionSettled   PredictionStatus = "settled"
	PredictionVoided    PredictionStatus = "voided"
	PredictionCancelled PredictionStatus = "cancelled"
)

// ValidPredictionStatuses enumerates the accepted prediction states.
var ValidPredictionStatuses = map[PredictionStatus]bool{
	PredictionPending:   true,
	PredictionSettled:   true,
	PredictionVoided:    true,
	PredictionCancelled: true,
}

// Prediction is a user's forecast for one match within one group.
// (UserID, GroupID, MatchID) is unique.
type Prediction struct {
	ID                 uuid.UUID        `json:"id"`
	UserID             uuid.UUID        `json:"user_id"`
	GroupID            uuid.UUID        `json:"group_id"`
	MatchID            uuid.UUID        `json:"match_id"`
	PredictedWinner    *Winner          `json:"predicted_winner,omitempty"`
	PredictedHomeScore *int             `json:"predicted_home_score,omitempty"`
	PredictedAwayScore *int             `json:"predicted_away_score,omitempty"`
	Status             PredictionStatus `json:"status"`
	PointsEarned       int              `json:"points_earned"`
	Notes              *string          `json:"notes,omitempty"`
	PlacedAt           time.Time        `json:"placed_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// HasExactScore reports whether both predicted scores are present.
func (p *Prediction) HasExactScore() bool {
	return p.PredictedHomeScore != nil && p.PredictedAwayScore != nil
}

// EffectiveWinner is the outcome the prediction commits to: derived from the
// scoreline when present, else the explicit winner.
func (p *Prediction) EffectiveWinner() (Winner, bool) {
	if p.HasExactScore() {
		return WinnerFromScores(*p.PredictedHomeScore, *p.PredictedAwayScore), true
	}
	if p.PredictedWinner != nil {
		return *p.PredictedWinner, true
	}
	return "", false
}

// PredictionPayload is the mutable part of a prediction carried by submit
// and update requests.
type PredictionPayload struct {
	Winner    *Winner `json:"winner,omitempty"`
	HomeScore *int    `json:"home_score,omitempty"`
	AwayScore *int    `json:"away_score,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

// Validate enforces the payload invariants: at least one of winner or exact
// score, both scores set together and non-negative, and no contradiction
// between an explicit winner and the winner implied by the scores.
func (pl *PredictionPayload) Validate() error {
	hasScore := pl.HomeScore != nil || pl.AwayScore != nil
	if pl.Winner == nil && !hasScore {
		return ErrInvalidPayload("prediction requires a winner or an exact score")
	}
	if hasScore {
		if pl.HomeScore == nil || pl.AwayScore == nil {
			return ErrInvalidPayload("both home and away scores must be provided together")
		}
		if *pl.HomeScore < 0 || *pl.AwayScore < 0 {
			return ErrInvalidPayload("predicted scores must be non-negative")
		}
	}
	if pl.Winner != nil {
		if !ValidWinners[*pl.Winner] {
			return ErrInvalidPayload("unknown winner value: " + string(*pl.Winner))
		}
		if pl.HomeScore != nil && pl.AwayScore != nil {
			implied := WinnerFromScores(*pl.HomeScore, *pl.AwayScore)
			if implied != *pl.Winner {
				return ErrInvalidPayload("predicted winner contradicts the predicted scoreline")
			}
		}
	}
	return nil
}

// Normalize fills the winner from the scoreline when the caller supplied
// scores only. Validate must have passed first.
func (pl *PredictionPayload) Normalize() {
	if pl.Winner == nil && pl.HomeScore != nil && pl.AwayScore != nil {
		w := WinnerFromScores(*pl.HomeScore, *pl.AwayScore)
		pl.Winner = &w
	}
}
