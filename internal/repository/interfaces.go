package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pitchside/contest/internal/domain"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// MatchClosure pairs a match with its betting close instant for the
// deadline gate scheduler.
type MatchClosure struct {
	MatchID  uuid.UUID
	ClosesAt time.Time
}

// MatchRepository provides access to matches.
type MatchRepository interface {
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Match, error)

	Create(ctx context.Context, db DBTX, m *domain.Match) error

	// UpdateSchedule moves the kickoff and betting close. Rejected by the
	// database once the match is terminal.
	UpdateSchedule(ctx context.Context, db DBTX, id uuid.UUID, scheduledAt, closesAt time.Time) (*domain.Match, error)

	UpdateStatus(ctx context.Context, db DBTX, id uuid.UUID, status domain.MatchStatus) error

	SetScores(ctx context.Context, db DBTX, id uuid.UUID, home, away int) error

	// ListClosingWindows returns scheduled matches whose window closes
	// before the given instant and has not been marked closed, ordered by
	// close time.
	ListClosingWindows(ctx context.Context, db DBTX, before time.Time, limit int) ([]MatchClosure, error)

	// MarkWindowClosed stamps window_closed_at once. Returns false when a
	// concurrent gate already claimed the closure.
	MarkWindowClosed(ctx context.Context, db DBTX, id uuid.UUID) (bool, error)
}

// PredictionFilters narrows ListForUser.
type PredictionFilters struct {
	GroupID *uuid.UUID
	MatchID *uuid.UUID
	Status  *domain.PredictionStatus
	Limit   int
}

// PredictionRepository provides access to predictions. The admission
// variants compare against the database clock so that window enforcement is
// skew-free at commit time.
type PredictionRepository interface {
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Prediction, error)

	// FindByOwner returns the prediction for the unique
	// (userID, groupID, matchID) triple, or nil.
	FindByOwner(ctx context.Context, db DBTX, userID, groupID, matchID uuid.UUID) (*domain.Prediction, error)

	// InsertAdmitted inserts only while the match is scheduled and its
	// window is open per the database clock. Returns false when the window
	// gate rejected the write; a unique violation surfaces as
	// domain.ErrAlreadyExists.
	InsertAdmitted(ctx context.Context, db DBTX, p *domain.Prediction) (bool, error)

	// UpdateAdmitted mutates payload fields under the same window gate and
	// only while the prediction is pending. Returns the updated row or nil
	// when the gate rejected the write.
	UpdateAdmitted(ctx context.Context, db DBTX, id uuid.UUID, payload domain.PredictionPayload) (*domain.Prediction, error)

	// CancelAdmitted sets status=cancelled under the window gate.
	CancelAdmitted(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Prediction, error)

	// ListForMatch returns all predictions on a match ordered by id; the
	// ordering makes settlement scans stable and restartable.
	ListForMatch(ctx context.Context, db DBTX, matchID uuid.UUID) ([]domain.Prediction, error)

	ListForUser(ctx context.Context, db DBTX, userID uuid.UUID, f PredictionFilters) ([]domain.Prediction, error)

	// SetSettled records the settlement outcome on the prediction row.
	SetSettled(ctx context.Context, db DBTX, id uuid.UUID, points int, status domain.PredictionStatus) error
}

// ResultRepository provides access to results and their disputes.
type ResultRepository interface {
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Result, error)

	// LockForUpdate acquires a row-level lock for an FSM transition.
	LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Result, error)

	// Insert creates a new result row. A duplicate
	// (matchID, resultType, version) surfaces as domain.ErrDuplicateResult.
	Insert(ctx context.Context, db DBTX, r *domain.Result) error

	// HasConfirmed reports whether a confirmed result of the given type
	// already exists for the match.
	HasConfirmed(ctx context.Context, db DBTX, matchID uuid.UUID, resultType domain.ResultType) (bool, error)

	MarkConfirmed(ctx context.Context, db DBTX, id uuid.UUID, at time.Time) error

	MarkStatus(ctx context.Context, db DBTX, id uuid.UUID, status domain.ResultStatus) error

	// NextVersion returns 1 + the highest existing version for the
	// (matchID, resultType) pair.
	NextVersion(ctx context.Context, db DBTX, matchID uuid.UUID, resultType domain.ResultType) (int, error)

	InsertDispute(ctx context.Context, db DBTX, d *domain.Dispute) error

	ListDisputes(ctx context.Context, db DBTX, resultID uuid.UUID) ([]domain.Dispute, error)
}

// SettlementRepository provides access to settlements.
type SettlementRepository interface {
	// Insert writes a settlement with ON CONFLICT DO NOTHING on
	// (prediction_id, result_version). Returns whether the row was inserted.
	Insert(ctx context.Context, db DBTX, s *domain.Settlement) (bool, error)

	FindByPredictionVersion(ctx context.Context, db DBTX, predictionID uuid.UUID, version int) (*domain.Settlement, error)

	ListByPrediction(ctx context.Context, db DBTX, predictionID uuid.UUID) ([]domain.Settlement, error)

	// ListForRebuild streams all settlements contributing to a
	// (group, season) leaderboard in scored-at order.
	ListForRebuild(ctx context.Context, db DBTX, groupID, seasonID uuid.UUID) ([]RebuildRow, error)
}

// RebuildRow joins a settlement with the owning prediction's aggregate keys.
type RebuildRow struct {
	Settlement domain.Settlement
	UserID     uuid.UUID
	GroupID    uuid.UUID
	SeasonID   uuid.UUID
}

// LeaderboardRepository provides access to leaderboard entries.
type LeaderboardRepository interface {
	// ApplyDelta upserts the entry and adds the delta under row lock.
	ApplyDelta(ctx context.Context, db DBTX, groupID, seasonID, userID uuid.UUID, delta domain.AggregateDelta) error

	Get(ctx context.Context, db DBTX, groupID, seasonID, userID uuid.UUID) (*domain.LeaderboardEntry, error)

	// TopN returns entries ordered and ranked by the tie-break rule.
	TopN(ctx context.Context, db DBTX, groupID, seasonID uuid.UUID, tb domain.TieBreak, limit, offset int) ([]domain.LeaderboardEntry, error)

	// RankFor computes a single user's entry with its dense rank, or nil
	// when the user has no entry.
	RankFor(ctx context.Context, db DBTX, groupID, seasonID, userID uuid.UUID, tb domain.TieBreak) (*domain.LeaderboardEntry, error)

	// Around returns up to 2k+1 entries centered on the user.
	Around(ctx context.Context, db DBTX, groupID, seasonID, userID uuid.UUID, tb domain.TieBreak, k int) ([]domain.LeaderboardEntry, error)

	// ZeroSeason resets all entries for a (group, season) ahead of a rebuild.
	ZeroSeason(ctx context.Context, db DBTX, groupID, seasonID uuid.UUID) error

	CacheRank(ctx context.Context, db DBTX, groupID, seasonID, userID uuid.UUID, rank int) error
}

// GroupRepository provides access to groups and memberships.
type GroupRepository interface {
	Create(ctx context.Context, db DBTX, g *domain.Group) error

	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Group, error)

	// Join activates (or re-activates) a membership.
	Join(ctx context.Context, db DBTX, groupID, userID uuid.UUID) error

	Leave(ctx context.Context, db DBTX, groupID, userID uuid.UUID) error

	IsActiveMember(ctx context.Context, db DBTX, groupID, userID uuid.UUID) (bool, error)
}

// OutboxRepository provides access to the event_outbox table and the
// dead-letter queue.
type OutboxRepository interface {
	// Insert writes an outbox event within the caller's transaction.
	Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error

	// FetchDue returns unprocessed events whose retry backoff has elapsed,
	// in sequence order.
	FetchDue(ctx context.Context, db DBTX, now time.Time, limit int) ([]domain.OutboxRow, error)

	MarkProcessed(ctx context.Context, db DBTX, seqID int64) error

	// RecordFailure bumps the attempt counter and schedules the next retry.
	RecordFailure(ctx context.Context, db DBTX, seqID int64, nextAttempt time.Time) error

	// MoveToDeadLetter parks the event and removes it from the outbox.
	MoveToDeadLetter(ctx context.Context, db DBTX, row domain.OutboxRow, failure string) error

	// FetchUnpublished returns events not yet pushed to the broker.
	FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]domain.OutboxRow, error)

	MarkPublished(ctx context.Context, db DBTX, seqIDs []int64) error

	ListDeadLetters(ctx context.Context, db DBTX, limit int) ([]DeadLetter, error)
}

// DeadLetter is a parked event with its failure context.
type DeadLetter struct {
	ID          int64     `json:"id"`
	EventID     uuid.UUID `json:"event_id"`
	EventType   string    `json:"event_type"`
	AggregateID string    `json:"aggregate_id"`
	Version     int       `json:"version"`
	Failure     string    `json:"failure"`
	Attempts    int       `json:"attempts"`
	FailedAt    time.Time `json:"failed_at"`
}
