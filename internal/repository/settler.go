package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pitchside/contest/internal/domain"
)

// SettlementWriter is the core settlement write primitive. Apply commits one
// prediction's settlement in a single transaction:
//
//  1. Insert the settlement row (ON CONFLICT DO NOTHING on the
//     (prediction, result version) key)
//  2. Update the prediction's points and status
//  3. Apply the additive delta to the leaderboard entry
//
// Step 1 losing the insert means another consumer already settled this
// (prediction, version); the transaction rolls back with no effect, which is
// what makes event redelivery harmless.
type SettlementWriter struct {
	pool        *pgxpool.Pool
	predictions PredictionRepository
	settlements SettlementRepository
	leaderboard LeaderboardRepository
}

// NewSettlementWriter creates the writer over the given pool and repositories.
func NewSettlementWriter(
	pool *pgxpool.Pool,
	predictions PredictionRepository,
	settlements SettlementRepository,
	leaderboard LeaderboardRepository,
) *SettlementWriter {
	return &SettlementWriter{
		pool:        pool,
		predictions: predictions,
		settlements: settlements,
		leaderboard: leaderboard,
	}
}

// Apply runs one settlement application. Returns whether this call had the
// effect (false means an earlier delivery already did).
func (w *SettlementWriter) Apply(ctx context.Context, app domain.SettlementApplication) (bool, error) {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin settlement tx: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted, err := w.settlements.Insert(ctx, tx, &app.Settlement)
	if err != nil {
		return false, fmt.Errorf("insert settlement: %w", err)
	}
	if !inserted {
		return false, nil
	}

	if err := w.predictions.SetSettled(ctx, tx, app.Settlement.PredictionID, app.NewPoints, app.NewStatus); err != nil {
		return false, fmt.Errorf("update prediction: %w", err)
	}

	if !app.Delta.IsZero() {
		if err := w.leaderboard.ApplyDelta(ctx, tx, app.GroupID, app.SeasonID, app.UserID, app.Delta); err != nil {
			return false, fmt.Errorf("apply aggregate delta: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit settlement tx: %w", err)
	}
	return true, nil
}
