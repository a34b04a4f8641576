package scoring

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/pitchside/contest/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore mimics the database semantics the engine relies on: settlement
// writes are unique per (prediction, version) and aggregate deltas are
// additive.
type fakeStore struct {
	match       *domain.Match
	predictions []domain.Prediction
	settlements map[string]domain.Settlement
	aggregates  map[uuid.UUID]domain.AggregateDelta
	applies     int
}

func newFakeStore(m *domain.Match, preds ...domain.Prediction) *fakeStore {
	return &fakeStore{
		match:       m,
		predictions: preds,
		settlements: make(map[string]domain.Settlement),
		aggregates:  make(map[uuid.UUID]domain.AggregateDelta),
	}
}

func settlementKey(predictionID uuid.UUID, version int) string {
	return fmt.Sprintf("%s:%d", predictionID, version)
}

func (f *fakeStore) Match(_ context.Context, id uuid.UUID) (*domain.Match, error) {
	if f.match == nil || f.match.ID != id {
		return nil, nil
	}
	return f.match, nil
}

func (f *fakeStore) PredictionsForMatch(_ context.Context, matchID uuid.UUID) ([]domain.Prediction, error) {
	var out []domain.Prediction
	for _, p := range f.predictions {
		if p.MatchID == matchID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) SettlementFor(_ context.Context, predictionID uuid.UUID, version int) (*domain.Settlement, error) {
	s, ok := f.settlements[settlementKey(predictionID, version)]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeStore) Apply(_ context.Context, app domain.SettlementApplication) (bool, error) {
	key := settlementKey(app.Settlement.PredictionID, app.Settlement.ResultVersion)
	if _, exists := f.settlements[key]; exists {
		return false, nil
	}
	f.settlements[key] = app.Settlement
	f.aggregates[app.UserID] = f.aggregates[app.UserID].Add(app.Delta)
	for i := range f.predictions {
		if f.predictions[i].ID == app.Settlement.PredictionID {
			f.predictions[i].PointsEarned = app.NewPoints
			f.predictions[i].Status = app.NewStatus
		}
	}
	f.applies++
	return true, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMatch() *domain.Match {
	return &domain.Match{ID: uuid.New(), SeasonID: uuid.New()}
}

func prediction(matchID uuid.UUID, home, away int) domain.Prediction {
	return domain.Prediction{
		ID:                 uuid.New(),
		UserID:             uuid.New(),
		GroupID:            uuid.New(),
		MatchID:            matchID,
		PredictedHomeScore: &home,
		PredictedAwayScore: &away,
		Status:             domain.PredictionPending,
	}
}

func winnerPrediction(matchID uuid.UUID, w domain.Winner) domain.Prediction {
	return domain.Prediction{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		GroupID:         uuid.New(),
		MatchID:         matchID,
		PredictedWinner: &w,
		Status:          domain.PredictionPending,
	}
}

func TestSettleConfirmed(t *testing.T) {
	m := testMatch()
	exact := prediction(m.ID, 2, 1)
	winner := prediction(m.ID, 1, 0)
	miss := winnerPrediction(m.ID, domain.WinnerAway)
	cancelled := prediction(m.ID, 2, 1)
	cancelled.Status = domain.PredictionCancelled

	store := newFakeStore(m, exact, winner, miss, cancelled)
	engine := NewEngine(store, DefaultRules(), testLogger())

	err := engine.SettleConfirmed(context.Background(), domain.ResultConfirmedPayload{
		ResultID: uuid.New(), MatchID: m.ID, Version: 1, HomeScore: 2, AwayScore: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, store.applies, "cancelled prediction must not be settled")
	assert.Equal(t, domain.AggregateDelta{Points: 3, ExactScore: 1, SettledCount: 1}, store.aggregates[exact.UserID])
	assert.Equal(t, domain.AggregateDelta{Points: 1, WinnerOnly: 1, SettledCount: 1}, store.aggregates[winner.UserID])
	assert.Equal(t, domain.AggregateDelta{SettledCount: 1}, store.aggregates[miss.UserID])
	assert.NotContains(t, store.aggregates, cancelled.UserID)

	s, ok := store.settlements[settlementKey(exact.ID, 1)]
	require.True(t, ok)
	assert.Equal(t, domain.RuleExactScore, s.RuleApplied)
	assert.Equal(t, 3, s.PointsAwarded)
}

func TestSettleConfirmedRedelivery(t *testing.T) {
	m := testMatch()
	p := prediction(m.ID, 1, 1)
	store := newFakeStore(m, p)
	engine := NewEngine(store, DefaultRules(), testLogger())

	payload := domain.ResultConfirmedPayload{
		ResultID: uuid.New(), MatchID: m.ID, Version: 1, HomeScore: 1, AwayScore: 1,
	}
	require.NoError(t, engine.SettleConfirmed(context.Background(), payload))
	require.NoError(t, engine.SettleConfirmed(context.Background(), payload))
	require.NoError(t, engine.SettleConfirmed(context.Background(), payload))

	assert.Equal(t, 1, store.applies)
	assert.Equal(t, domain.AggregateDelta{Points: 3, ExactScore: 1, SettledCount: 1}, store.aggregates[p.UserID])
}

func TestSettleConfirmedUnknownMatch(t *testing.T) {
	store := newFakeStore(testMatch())
	engine := NewEngine(store, DefaultRules(), testLogger())

	err := engine.SettleConfirmed(context.Background(), domain.ResultConfirmedPayload{
		ResultID: uuid.New(), MatchID: uuid.New(), Version: 1,
	})
	assert.Error(t, err)
}

func TestSettleAmendedCompensates(t *testing.T) {
	m := testMatch()
	// Exact at v1 (2-1), becomes a miss at v2 (1-1).
	flips := prediction(m.ID, 2, 1)
	// Miss at v1, exact at v2.
	gains := prediction(m.ID, 1, 1)

	store := newFakeStore(m, flips, gains)
	engine := NewEngine(store, DefaultRules(), testLogger())
	ctx := context.Background()

	require.NoError(t, engine.SettleConfirmed(ctx, domain.ResultConfirmedPayload{
		ResultID: uuid.New(), MatchID: m.ID, Version: 1, HomeScore: 2, AwayScore: 1,
	}))
	require.NoError(t, engine.SettleAmended(ctx, domain.ResultAmendedPayload{
		ResultID: uuid.New(), MatchID: m.ID, PriorVersion: 1, NewVersion: 2,
		HomeScore: 1, AwayScore: 1,
	}))

	// Aggregates must read as if only the amended scoreline was ever
	// confirmed: settled count stays 1 per user.
	assert.Equal(t, domain.AggregateDelta{SettledCount: 1}, store.aggregates[flips.UserID])
	assert.Equal(t, domain.AggregateDelta{Points: 3, ExactScore: 1, SettledCount: 1}, store.aggregates[gains.UserID])

	s, ok := store.settlements[settlementKey(flips.ID, 2)]
	require.True(t, ok)
	assert.Equal(t, domain.RuleMiss, s.RuleApplied)
	assert.Equal(t, 0, s.PointsAwarded)
}

func TestSettleAmendedRedelivery(t *testing.T) {
	m := testMatch()
	p := prediction(m.ID, 0, 2)
	store := newFakeStore(m, p)
	engine := NewEngine(store, DefaultRules(), testLogger())
	ctx := context.Background()

	require.NoError(t, engine.SettleConfirmed(ctx, domain.ResultConfirmedPayload{
		ResultID: uuid.New(), MatchID: m.ID, Version: 1, HomeScore: 0, AwayScore: 2,
	}))

	amended := domain.ResultAmendedPayload{
		ResultID: uuid.New(), MatchID: m.ID, PriorVersion: 1, NewVersion: 2,
		HomeScore: 0, AwayScore: 1,
	}
	require.NoError(t, engine.SettleAmended(ctx, amended))
	require.NoError(t, engine.SettleAmended(ctx, amended))

	// 0-2 exact at v1 (+3 exact), away win at v2 (+1 winner).
	assert.Equal(t, domain.AggregateDelta{Points: 1, WinnerOnly: 1, SettledCount: 1}, store.aggregates[p.UserID])
}

func TestSettleAmendedWithoutPriorSettlement(t *testing.T) {
	m := testMatch()
	p := prediction(m.ID, 1, 0)
	store := newFakeStore(m, p)
	engine := NewEngine(store, DefaultRules(), testLogger())

	// The confirmation delivery was lost; the amendment alone must still
	// leave the aggregate where a clean v2 settlement would.
	err := engine.SettleAmended(context.Background(), domain.ResultAmendedPayload{
		ResultID: uuid.New(), MatchID: m.ID, PriorVersion: 1, NewVersion: 2,
		HomeScore: 1, AwayScore: 0,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.AggregateDelta{Points: 3, ExactScore: 1, SettledCount: 1}, store.aggregates[p.UserID])
}

func TestSettleVoidedReverses(t *testing.T) {
	m := testMatch()
	exact := prediction(m.ID, 2, 0)
	unsettled := prediction(m.ID, 1, 1)

	store := newFakeStore(m, exact, unsettled)
	engine := NewEngine(store, DefaultRules(), testLogger())
	ctx := context.Background()

	require.NoError(t, engine.SettleConfirmed(ctx, domain.ResultConfirmedPayload{
		ResultID: uuid.New(), MatchID: m.ID, Version: 1, HomeScore: 2, AwayScore: 0,
	}))

	// Drop the unsettled prediction's settlement to simulate a void racing a
	// half-finished confirmation.
	delete(store.settlements, settlementKey(unsettled.ID, 1))

	voided := domain.ResultVoidedPayload{ResultID: uuid.New(), MatchID: m.ID, LastVersion: 1}
	require.NoError(t, engine.SettleVoided(ctx, voided))

	assert.Equal(t, domain.AggregateDelta{}, store.aggregates[exact.UserID])

	rev, ok := store.settlements[settlementKey(exact.ID, domain.VoidReversalVersion)]
	require.True(t, ok)
	assert.Equal(t, domain.RuleReversal, rev.RuleApplied)
	assert.Equal(t, -3, rev.PointsAwarded)

	_, ok = store.settlements[settlementKey(unsettled.ID, domain.VoidReversalVersion)]
	assert.False(t, ok, "prediction without a settlement has nothing to reverse")

	for _, p := range store.predictions {
		if p.ID == exact.ID {
			assert.Equal(t, domain.PredictionVoided, p.Status)
			assert.Equal(t, 0, p.PointsEarned)
		}
	}

	// Redelivered void is a no-op: the reversal row already exists.
	before := store.applies
	require.NoError(t, engine.SettleVoided(ctx, voided))
	assert.Equal(t, before, store.applies)
	assert.Equal(t, domain.AggregateDelta{}, store.aggregates[exact.UserID])
}

func TestHandleEventDispatch(t *testing.T) {
	m := testMatch()
	p := prediction(m.ID, 1, 0)
	store := newFakeStore(m, p)
	engine := NewEngine(store, DefaultRules(), testLogger())
	ctx := context.Background()

	confirmed := domain.NewResultConfirmedEvent(&domain.Result{
		ID: uuid.New(), MatchID: m.ID, Version: 1, HomeScore: 1, AwayScore: 0,
	})
	require.NoError(t, engine.HandleEvent(ctx, confirmed))
	assert.Equal(t, 1, store.applies)

	closed := domain.NewDeadlineClosedEvent(m.ID, store.match.ScheduledAt)
	require.NoError(t, engine.HandleEvent(ctx, closed))
	assert.Equal(t, 1, store.applies, "deadline events carry no settlement work")

	unknown := confirmed
	unknown.EventType = "contest.result.unknown"
	require.NoError(t, engine.HandleEvent(ctx, unknown))

	garbage := confirmed
	garbage.Payload = []byte("{")
	assert.Error(t, engine.HandleEvent(ctx, garbage))
}
