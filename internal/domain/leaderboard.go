package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TieBreak selects the direction of the settled-count tie-break between
// entries with equal points and exact-score counts. The rule is fixed per
// deployment (and therefore per season).
type TieBreak string

const (
	// TieBreakFewerHigher ranks the user with fewer settled predictions
	// higher for the same points (efficiency).
	TieBreakFewerHigher TieBreak = "fewerPredictionsHigher"
	TieBreakMoreHigher  TieBreak = "morePredictionsHigher"
)

// ValidTieBreaks enumerates the accepted tie-break modes.
var ValidTieBreaks = map[TieBreak]bool{
	TieBreakFewerHigher: true,
	TieBreakMoreHigher:  true,
}

// LeaderboardEntry is the per-(group, season, user) aggregate of settled
// predictions. It is derived state, rebuildable from settlements.
type LeaderboardEntry struct {
	GroupID       uuid.UUID `json:"group_id"`
	SeasonID      uuid.UUID `json:"season_id"`
	UserID        uuid.UUID `json:"user_id"`
	TotalPoints   int       `json:"total_points"`
	ExactScore    int       `json:"exact_score_count"`
	WinnerOnly    int       `json:"winner_only_count"`
	SettledCount  int       `json:"settled_prediction_count"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	Rank          int       `json:"rank,omitempty"`
}

// RanksBefore is the deterministic ordering key for leaderboard ranking:
// points desc, exact-score count desc, settled count per tie-break, user id
// ascending as the stable terminal tie-break.
func (e *LeaderboardEntry) RanksBefore(o *LeaderboardEntry, tb TieBreak) bool {
	if e.TotalPoints != o.TotalPoints {
		return e.TotalPoints > o.TotalPoints
	}
	if e.ExactScore != o.ExactScore {
		return e.ExactScore > o.ExactScore
	}
	if e.SettledCount != o.SettledCount {
		if tb == TieBreakMoreHigher {
			return e.SettledCount > o.SettledCount
		}
		return e.SettledCount < o.SettledCount
	}
	return strings.Compare(e.UserID.String(), o.UserID.String()) < 0
}

// RankOrderSQL is the ORDER BY clause matching RanksBefore, used by the
// window queries so SQL and in-process ordering can never diverge.
func RankOrderSQL(tb TieBreak) string {
	settledDir := "ASC"
	if tb == TieBreakMoreHigher {
		settledDir = "DESC"
	}
	return "total_points DESC, exact_score_count DESC, settled_prediction_count " + settledDir + ", user_id ASC"
}
