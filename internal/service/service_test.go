package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/pitchside/contest/internal/domain"
	"github.com/pitchside/contest/internal/repository"
	"github.com/stretchr/testify/assert"
)

func rebuildRow(userID, predictionID uuid.UUID, version, points int, rule domain.RuleApplied) repository.RebuildRow {
	return repository.RebuildRow{
		Settlement: domain.Settlement{
			ID:            uuid.New(),
			PredictionID:  predictionID,
			ResultVersion: version,
			PointsAwarded: points,
			RuleApplied:   rule,
		},
		UserID: userID,
	}
}

func TestFoldRebuildRowsSimple(t *testing.T) {
	user := uuid.New()
	p1, p2 := uuid.New(), uuid.New()

	deltas := foldRebuildRows([]repository.RebuildRow{
		rebuildRow(user, p1, 1, 3, domain.RuleExactScore),
		rebuildRow(user, p2, 1, 0, domain.RuleMiss),
	})

	assert.Equal(t, domain.AggregateDelta{
		Points:       3,
		ExactScore:   1,
		SettledCount: 2,
	}, deltas[user])
}

func TestFoldRebuildRowsAmendmentTakesLatestVersion(t *testing.T) {
	user := uuid.New()
	p := uuid.New()

	// Exact at v1, amended to a winner-only hit at v2. The rebuilt board
	// must match what the incremental compensation left behind.
	deltas := foldRebuildRows([]repository.RebuildRow{
		rebuildRow(user, p, 1, 3, domain.RuleExactScore),
		rebuildRow(user, p, 2, 1, domain.RuleWinnerOnly),
	})

	assert.Equal(t, domain.AggregateDelta{
		Points:       1,
		WinnerOnly:   1,
		SettledCount: 1,
	}, deltas[user])
}

func TestFoldRebuildRowsReversalZeroesPrediction(t *testing.T) {
	user := uuid.New()
	voided, kept := uuid.New(), uuid.New()

	deltas := foldRebuildRows([]repository.RebuildRow{
		rebuildRow(user, voided, 1, 3, domain.RuleExactScore),
		rebuildRow(user, voided, domain.VoidReversalVersion, -3, domain.RuleReversal),
		rebuildRow(user, kept, 1, 1, domain.RuleWinnerOnly),
	})

	assert.Equal(t, domain.AggregateDelta{
		Points:       1,
		WinnerOnly:   1,
		SettledCount: 1,
	}, deltas[user])
}

func TestFoldRebuildRowsReversalBeforeSettlementRow(t *testing.T) {
	user := uuid.New()
	p := uuid.New()

	// Log order is scored_at; a reversal scanning before its settlement row
	// must still cancel the prediction's contribution.
	deltas := foldRebuildRows([]repository.RebuildRow{
		rebuildRow(user, p, domain.VoidReversalVersion, -3, domain.RuleReversal),
		rebuildRow(user, p, 1, 3, domain.RuleExactScore),
	})

	assert.Empty(t, deltas)
}

func TestFoldRebuildRowsMultipleUsers(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()

	deltas := foldRebuildRows([]repository.RebuildRow{
		rebuildRow(alice, uuid.New(), 1, 3, domain.RuleExactScore),
		rebuildRow(bob, uuid.New(), 1, 0, domain.RuleMiss),
		rebuildRow(alice, uuid.New(), 1, 1, domain.RuleWinnerOnly),
	})

	assert.Equal(t, domain.AggregateDelta{Points: 4, ExactScore: 1, WinnerOnly: 1, SettledCount: 2}, deltas[alice])
	assert.Equal(t, domain.AggregateDelta{SettledCount: 1}, deltas[bob])
}

func TestFoldRebuildRowsEmpty(t *testing.T) {
	assert.Empty(t, foldRebuildRows(nil))
}
