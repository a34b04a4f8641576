package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pitchside/contest/internal/domain"
	"github.com/pitchside/contest/internal/repository"
)

// DeadlineScheduler is the in-process gate the match service keeps in sync
// with schedule changes.
type DeadlineScheduler interface {
	Upsert(matchID uuid.UUID, closesAt time.Time)
	Remove(matchID uuid.UUID)
}

// MatchService manages the match fixture list and its lifecycle transitions.
type MatchService struct {
	pool    *pgxpool.Pool
	matches repository.MatchRepository
	gate    DeadlineScheduler
	policy  domain.WindowClosurePolicy
	logger  *slog.Logger
}

// NewMatchService creates a MatchService.
func NewMatchService(
	pool *pgxpool.Pool,
	matches repository.MatchRepository,
	gate DeadlineScheduler,
	policy domain.WindowClosurePolicy,
	logger *slog.Logger,
) *MatchService {
	return &MatchService{
		pool:    pool,
		matches: matches,
		gate:    gate,
		policy:  policy,
		logger:  logger,
	}
}

// CreateMatchInput holds a new fixture.
type CreateMatchInput struct {
	CompetitionID     uuid.UUID  `json:"competition_id"`
	SeasonID          uuid.UUID  `json:"season_id"`
	HomeParticipantID uuid.UUID  `json:"home_participant_id"`
	AwayParticipantID uuid.UUID  `json:"away_participant_id"`
	ScheduledAt       time.Time  `json:"scheduled_at"`
	BettingClosesAt   *time.Time `json:"betting_closes_at,omitempty"`
	RoundNumber       int        `json:"round_number"`
	MatchDay          int        `json:"match_day"`
}

// Create registers a fixture and schedules its window closure. An omitted
// betting close falls back to the configured policy.
func (s *MatchService) Create(ctx context.Context, input CreateMatchInput) (*domain.Match, error) {
	closesAt := s.policy.DefaultClose(input.ScheduledAt)
	if input.BettingClosesAt != nil {
		closesAt = *input.BettingClosesAt
	}

	m := &domain.Match{
		ID:                uuid.New(),
		CompetitionID:     input.CompetitionID,
		SeasonID:          input.SeasonID,
		HomeParticipantID: input.HomeParticipantID,
		AwayParticipantID: input.AwayParticipantID,
		ScheduledAt:       input.ScheduledAt,
		BettingClosesAt:   closesAt,
		Status:            domain.MatchScheduled,
		RoundNumber:       input.RoundNumber,
		MatchDay:          input.MatchDay,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	if err := s.matches.Create(ctx, s.pool, m); err != nil {
		return nil, domain.ErrInternal("create match", err)
	}
	s.gate.Upsert(m.ID, m.BettingClosesAt)

	s.logger.Info("match created",
		slog.String("match_id", m.ID.String()),
		slog.Time("scheduled_at", m.ScheduledAt),
		slog.Time("betting_closes_at", m.BettingClosesAt))
	return m, nil
}

// Get returns a match by id.
func (s *MatchService) Get(ctx context.Context, matchID uuid.UUID) (*domain.Match, error) {
	m, err := s.matches.FindByID(ctx, s.pool, matchID)
	if err != nil {
		return nil, domain.ErrInternal("load match", err)
	}
	if m == nil {
		return nil, domain.ErrNotFound("match", matchID.String())
	}
	return m, nil
}

// RescheduleMatchInput moves a fixture.
type RescheduleMatchInput struct {
	ScheduledAt     time.Time  `json:"scheduled_at"`
	BettingClosesAt *time.Time `json:"betting_closes_at,omitempty"`
}

// Reschedule moves a fixture's kickoff and betting close. Moving the close
// forward reopens the window: the database clears the closure stamp and the
// gate is rescheduled to the new instant.
func (s *MatchService) Reschedule(ctx context.Context, matchID uuid.UUID, input RescheduleMatchInput) (*domain.Match, error) {
	closesAt := s.policy.DefaultClose(input.ScheduledAt)
	if input.BettingClosesAt != nil {
		closesAt = *input.BettingClosesAt
	}
	if closesAt.After(input.ScheduledAt) {
		return nil, domain.ErrValidation("betting must close at or before the scheduled kickoff")
	}

	m, err := s.matches.UpdateSchedule(ctx, s.pool, matchID, input.ScheduledAt, closesAt)
	if err != nil {
		return nil, domain.ErrInternal("reschedule match", err)
	}
	if m == nil {
		return nil, domain.ErrNotFound("match", matchID.String())
	}
	s.gate.Upsert(m.ID, m.BettingClosesAt)

	s.logger.Info("match rescheduled",
		slog.String("match_id", matchID.String()),
		slog.Time("betting_closes_at", m.BettingClosesAt))
	return m, nil
}

// Transition moves a match's lifecycle status. Postponing or cancelling
// drops the match from the deadline gate.
func (s *MatchService) Transition(ctx context.Context, matchID uuid.UUID, to domain.MatchStatus) (*domain.Match, error) {
	m, err := s.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.CanTransition(to) {
		return nil, domain.ErrConflict("match " + matchID.String() + " cannot move from " + string(m.Status) + " to " + string(to))
	}

	if err := s.matches.UpdateStatus(ctx, s.pool, matchID, to); err != nil {
		return nil, domain.ErrInternal("update match status", err)
	}
	m.Status = to

	switch to {
	case domain.MatchPostponed, domain.MatchCancelled:
		s.gate.Remove(matchID)
	}

	s.logger.Info("match status changed",
		slog.String("match_id", matchID.String()),
		slog.String("status", string(to)))
	return m, nil
}
