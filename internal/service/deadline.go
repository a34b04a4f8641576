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

// DeadlineService turns window closures into durable facts. The gate (or a
// sweep) says "this window should be closed now"; this service claims the
// closure in the database and emits the closure event in the same
// transaction. The claim is a single conditional UPDATE, so exactly one of
// any number of racing closers wins and exactly one event is emitted.
type DeadlineService struct {
	pool    *pgxpool.Pool
	matches repository.MatchRepository
	outbox  repository.OutboxRepository
	logger  *slog.Logger
}

// NewDeadlineService creates a DeadlineService.
func NewDeadlineService(
	pool *pgxpool.Pool,
	matches repository.MatchRepository,
	outbox repository.OutboxRepository,
	logger *slog.Logger,
) *DeadlineService {
	return &DeadlineService{
		pool:    pool,
		matches: matches,
		outbox:  outbox,
		logger:  logger,
	}
}

// CloseWindow claims a match's window closure. Losing the claim is the
// normal outcome for every closer but one; a deadline moved into the future
// also loses, because the database only stamps a window that is genuinely
// past its close.
func (s *DeadlineService) CloseWindow(ctx context.Context, matchID uuid.UUID, closesAt time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.ErrInternal("begin closure", err)
	}
	defer tx.Rollback(ctx)

	claimed, err := s.matches.MarkWindowClosed(ctx, tx, matchID)
	if err != nil {
		return domain.ErrInternal("claim window closure", err)
	}
	if !claimed {
		return tx.Commit(ctx)
	}

	if err := s.outbox.Insert(ctx, tx, domain.NewDeadlineClosedEvent(matchID, closesAt)); err != nil {
		return domain.ErrInternal("enqueue closure event", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.ErrInternal("commit closure", err)
	}

	s.logger.Info("betting window closed",
		slog.String("match_id", matchID.String()),
		slog.Time("closes_at", closesAt))
	return nil
}

// Sweep closes every overdue window. It backstops the in-process gate: a
// restarted or partitioned instance misses timer fires, the sweep catches
// them on the next cron tick.
func (s *DeadlineService) Sweep(ctx context.Context, limit int) error {
	overdue, err := s.matches.ListClosingWindows(ctx, s.pool, time.Now(), limit)
	if err != nil {
		return domain.ErrInternal("list overdue windows", err)
	}
	for _, c := range overdue {
		if err := s.CloseWindow(ctx, c.MatchID, c.ClosesAt); err != nil {
			return err
		}
	}
	if len(overdue) > 0 {
		s.logger.Info("deadline sweep closed windows", slog.Int("count", len(overdue)))
	}
	return nil
}

// Seed loads upcoming closures into the gate at startup and immediately
// closes anything already overdue.
func (s *DeadlineService) Seed(ctx context.Context, gate DeadlineScheduler, horizon time.Duration, limit int) error {
	now := time.Now()
	closures, err := s.matches.ListClosingWindows(ctx, s.pool, now.Add(horizon), limit)
	if err != nil {
		return domain.ErrInternal("list upcoming windows", err)
	}

	var overdue, scheduled int
	for _, c := range closures {
		if c.ClosesAt.After(now) {
			gate.Upsert(c.MatchID, c.ClosesAt)
			scheduled++
			continue
		}
		if err := s.CloseWindow(ctx, c.MatchID, c.ClosesAt); err != nil {
			return err
		}
		overdue++
	}

	s.logger.Info("deadline gate seeded",
		slog.Int("scheduled", scheduled),
		slog.Int("overdue_closed", overdue))
	return nil
}
