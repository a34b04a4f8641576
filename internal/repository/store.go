package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pitchside/contest/internal/domain"
)

// ScoringStore adapts the pool-backed repositories to the read-and-apply
// surface the settlement engine works against.
type ScoringStore struct {
	pool        *pgxpool.Pool
	matches     MatchRepository
	predictions PredictionRepository
	settlements SettlementRepository
	writer      *SettlementWriter
}

// NewScoringStore wires the repositories behind the engine's store interface.
func NewScoringStore(
	pool *pgxpool.Pool,
	matches MatchRepository,
	predictions PredictionRepository,
	settlements SettlementRepository,
	writer *SettlementWriter,
) *ScoringStore {
	return &ScoringStore{
		pool:        pool,
		matches:     matches,
		predictions: predictions,
		settlements: settlements,
		writer:      writer,
	}
}

func (s *ScoringStore) Match(ctx context.Context, id uuid.UUID) (*domain.Match, error) {
	return s.matches.FindByID(ctx, s.pool, id)
}

func (s *ScoringStore) PredictionsForMatch(ctx context.Context, matchID uuid.UUID) ([]domain.Prediction, error) {
	return s.predictions.ListForMatch(ctx, s.pool, matchID)
}

func (s *ScoringStore) SettlementFor(ctx context.Context, predictionID uuid.UUID, version int) (*domain.Settlement, error) {
	return s.settlements.FindByPredictionVersion(ctx, s.pool, predictionID, version)
}

func (s *ScoringStore) Apply(ctx context.Context, app domain.SettlementApplication) (bool, error) {
	return s.writer.Apply(ctx, app)
}
