package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pitchside/contest/internal/domain"
	"github.com/pitchside/contest/internal/guard"
	"github.com/pitchside/contest/internal/repository"
)

// PredictionService handles the prediction lifecycle: submit, update, cancel.
// Window enforcement happens twice: a fast in-process check for a clean
// error, then the database admission predicate, which is authoritative and
// immune to app-clock skew.
type PredictionService struct {
	pool        *pgxpool.Pool
	groups      repository.GroupRepository
	matches     repository.MatchRepository
	predictions repository.PredictionRepository
	limiter     *guard.RateLimiter
	logger      *slog.Logger
}

// NewPredictionService creates a PredictionService.
func NewPredictionService(
	pool *pgxpool.Pool,
	groups repository.GroupRepository,
	matches repository.MatchRepository,
	predictions repository.PredictionRepository,
	limiter *guard.RateLimiter,
	logger *slog.Logger,
) *PredictionService {
	return &PredictionService{
		pool:        pool,
		groups:      groups,
		matches:     matches,
		predictions: predictions,
		limiter:     limiter,
		logger:      logger,
	}
}

// SubmitPredictionInput holds a new prediction request.
type SubmitPredictionInput struct {
	GroupID uuid.UUID                `json:"group_id"`
	MatchID uuid.UUID                `json:"match_id"`
	Payload domain.PredictionPayload `json:"payload"`
}

// Submit places a new prediction for the caller.
func (s *PredictionService) Submit(ctx context.Context, userID uuid.UUID, input SubmitPredictionInput) (*domain.Prediction, error) {
	if s.limiter != nil {
		if res := s.limiter.Check(ctx, userID.String()); !res.Allowed {
			return nil, domain.ErrConflict(res.Reason)
		}
	}

	if err := input.Payload.Validate(); err != nil {
		return nil, err
	}
	input.Payload.Normalize()

	member, err := s.groups.IsActiveMember(ctx, s.pool, input.GroupID, userID)
	if err != nil {
		return nil, domain.ErrInternal("check membership", err)
	}
	if !member {
		return nil, domain.ErrNotGroupMember(userID.String(), input.GroupID.String())
	}

	m, err := s.matches.FindByID(ctx, s.pool, input.MatchID)
	if err != nil {
		return nil, domain.ErrInternal("load match", err)
	}
	if m == nil {
		return nil, domain.ErrNotFound("match", input.MatchID.String())
	}
	if m.Status != domain.MatchScheduled || !time.Now().Before(m.BettingClosesAt) {
		return nil, domain.ErrMatchClosed(m.ID.String())
	}

	p := &domain.Prediction{
		ID:                 uuid.New(),
		UserID:             userID,
		GroupID:            input.GroupID,
		MatchID:            input.MatchID,
		PredictedWinner:    input.Payload.Winner,
		PredictedHomeScore: input.Payload.HomeScore,
		PredictedAwayScore: input.Payload.AwayScore,
		Notes:              input.Payload.Notes,
		Status:             domain.PredictionPending,
	}

	admitted, err := s.predictions.InsertAdmitted(ctx, s.pool, p)
	if err != nil {
		return nil, err
	}
	if !admitted {
		// The in-process check passed but the database clock disagreed;
		// the database wins.
		return nil, domain.ErrMatchClosed(m.ID.String())
	}

	s.logger.Info("prediction submitted",
		slog.String("prediction_id", p.ID.String()),
		slog.String("user_id", userID.String()),
		slog.String("match_id", input.MatchID.String()))
	return p, nil
}

// UpdatePredictionInput holds the replacement payload for a prediction.
type UpdatePredictionInput struct {
	Payload domain.PredictionPayload `json:"payload"`
}

// Update replaces a pending prediction's payload while the window is open.
func (s *PredictionService) Update(ctx context.Context, userID, predictionID uuid.UUID, input UpdatePredictionInput) (*domain.Prediction, error) {
	if err := input.Payload.Validate(); err != nil {
		return nil, err
	}
	input.Payload.Normalize()

	existing, err := s.loadOwned(ctx, userID, predictionID)
	if err != nil {
		return nil, err
	}

	updated, err := s.predictions.UpdateAdmitted(ctx, s.pool, predictionID, input.Payload)
	if err != nil {
		return nil, domain.ErrInternal("update prediction", err)
	}
	if updated == nil {
		return nil, s.rejectionReason(ctx, existing)
	}

	s.logger.Info("prediction updated",
		slog.String("prediction_id", predictionID.String()),
		slog.String("user_id", userID.String()))
	return updated, nil
}

// Cancel withdraws a pending prediction while the window is open. A
// cancelled prediction is never scored and its slot stays taken: the unique
// owner key keeps a second submission for the same match out.
func (s *PredictionService) Cancel(ctx context.Context, userID, predictionID uuid.UUID) (*domain.Prediction, error) {
	existing, err := s.loadOwned(ctx, userID, predictionID)
	if err != nil {
		return nil, err
	}

	cancelled, err := s.predictions.CancelAdmitted(ctx, s.pool, predictionID)
	if err != nil {
		return nil, domain.ErrInternal("cancel prediction", err)
	}
	if cancelled == nil {
		return nil, s.rejectionReason(ctx, existing)
	}

	s.logger.Info("prediction cancelled",
		slog.String("prediction_id", predictionID.String()),
		slog.String("user_id", userID.String()))
	return cancelled, nil
}

// Get returns a prediction visible to the caller.
func (s *PredictionService) Get(ctx context.Context, userID, predictionID uuid.UUID) (*domain.Prediction, error) {
	return s.loadOwned(ctx, userID, predictionID)
}

// ListForUser returns the caller's predictions, newest first.
func (s *PredictionService) ListForUser(ctx context.Context, userID uuid.UUID, f repository.PredictionFilters) ([]domain.Prediction, error) {
	preds, err := s.predictions.ListForUser(ctx, s.pool, userID, f)
	if err != nil {
		return nil, domain.ErrInternal("list predictions", err)
	}
	return preds, nil
}

func (s *PredictionService) loadOwned(ctx context.Context, userID, predictionID uuid.UUID) (*domain.Prediction, error) {
	p, err := s.predictions.FindByID(ctx, s.pool, predictionID)
	if err != nil {
		return nil, domain.ErrInternal("load prediction", err)
	}
	if p == nil {
		return nil, domain.ErrNotFound("prediction", predictionID.String())
	}
	if p.UserID != userID {
		return nil, domain.ErrNotOwner(predictionID.String())
	}
	return p, nil
}

// rejectionReason disambiguates a gated write that affected no rows: either
// the prediction left the pending state or the window closed underneath the
// caller.
func (s *PredictionService) rejectionReason(ctx context.Context, p *domain.Prediction) error {
	fresh, err := s.predictions.FindByID(ctx, s.pool, p.ID)
	if err == nil && fresh != nil && fresh.Status != domain.PredictionPending {
		return domain.ErrNotPending(p.ID.String())
	}
	return domain.ErrMatchClosed(p.MatchID.String())
}
