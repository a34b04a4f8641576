package domain

import (
	"time"

	"github.com/google/uuid"
)

// MatchStatus is the single source of truth for match lifecycle states.
// The schema enum and all validation derive from these constants.
type MatchStatus string

const (
	MatchScheduled MatchStatus = "scheduled"
	MatchLive      MatchStatus = "live"
	MatchHalftime  MatchStatus = "halftime"
	MatchExtraTime MatchStatus = "extra_time"
	MatchPenalties MatchStatus = "penalties"
	MatchFinished  MatchStatus = "finished"
	MatchPostponed MatchStatus = "postponed"
	MatchCancelled MatchStatus = "cancelled"
)

// ValidMatchStatuses enumerates every accepted status value.
var ValidMatchStatuses = map[MatchStatus]bool{
	MatchScheduled: true,
	MatchLive:      true,
	MatchHalftime:  true,
	MatchExtraTime: true,
	MatchPenalties: true,
	MatchFinished:  true,
	MatchPostponed: true,
	MatchCancelled: true,
}

// IsTerminal reports whether the status ends the match for scoring purposes.
func (s MatchStatus) IsTerminal() bool {
	return s == MatchFinished || s == MatchCancelled
}

// IsScorable reports whether a final result may be confirmed while the match
// is in this status.
func (s MatchStatus) IsScorable() bool {
	switch s {
	case MatchFinished, MatchLive, MatchExtraTime, MatchPenalties:
		return true
	}
	return false
}

// Match is a scheduled contest between two participants with a betting window.
type Match struct {
	ID                uuid.UUID   `json:"id"`
	CompetitionID     uuid.UUID   `json:"competition_id"`
	SeasonID          uuid.UUID   `json:"season_id"`
	HomeParticipantID uuid.UUID   `json:"home_participant_id"`
	AwayParticipantID uuid.UUID   `json:"away_participant_id"`
	ScheduledAt       time.Time   `json:"scheduled_at"`
	BettingClosesAt   time.Time   `json:"betting_closes_at"`
	Status            MatchStatus `json:"status"`
	HomeScore         *int        `json:"home_score,omitempty"`
	AwayScore         *int        `json:"away_score,omitempty"`
	RoundNumber       int         `json:"round_number"`
	MatchDay          int         `json:"match_day"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// Validate checks the structural invariants of a match.
func (m *Match) Validate() error {
	if m.HomeParticipantID == m.AwayParticipantID {
		return ErrValidation("home and away participants must differ")
	}
	if m.BettingClosesAt.After(m.ScheduledAt) {
		return ErrValidation("betting must close at or before the scheduled kickoff")
	}
	if !ValidMatchStatuses[m.Status] {
		return ErrValidation("unknown match status: " + string(m.Status))
	}
	if m.HomeScore != nil && *m.HomeScore < 0 {
		return ErrInvalidScores("home score must be non-negative")
	}
	if m.AwayScore != nil && *m.AwayScore < 0 {
		return ErrInvalidScores("away score must be non-negative")
	}
	return nil
}

// CanTransition reports whether the match status may move from -> to.
// Terminal statuses never transition.
func (m *Match) CanTransition(to MatchStatus) bool {
	if !ValidMatchStatuses[to] || m.Status == to {
		return false
	}
	if m.Status.IsTerminal() {
		return false
	}
	switch m.Status {
	case MatchScheduled:
		return to == MatchLive || to == MatchPostponed || to == MatchCancelled
	case MatchLive:
		return to == MatchHalftime || to == MatchExtraTime || to == MatchPenalties ||
			to == MatchFinished || to == MatchCancelled
	case MatchHalftime:
		return to == MatchLive || to == MatchCancelled
	case MatchExtraTime:
		return to == MatchPenalties || to == MatchFinished || to == MatchCancelled
	case MatchPenalties:
		return to == MatchFinished || to == MatchCancelled
	case MatchPostponed:
		return to == MatchScheduled || to == MatchCancelled
	}
	return false
}

// WindowClosurePolicy controls how a match's default betting close is derived
// from its kickoff when no explicit close is supplied.
type WindowClosurePolicy struct {
	// MinutesBefore shifts the close earlier than kickoff. Zero means the
	// window closes exactly at kickoff.
	MinutesBefore int
}

// DefaultClose computes the betting close instant for the given kickoff.
func (p WindowClosurePolicy) DefaultClose(scheduledAt time.Time) time.Time {
	return scheduledAt.Add(-time.Duration(p.MinutesBefore) * time.Minute)
}
