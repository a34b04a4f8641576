package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pitchside/contest/internal/domain"
)

type matchRepo struct{}

// NewMatchRepository returns a pgx-backed MatchRepository.
func NewMatchRepository() MatchRepository {
	return &matchRepo{}
}

const matchColumns = `id, competition_id, season_id, home_participant_id, away_participant_id,
	scheduled_at, betting_closes_at, status, home_score, away_score,
	round_number, match_day, created_at, updated_at`

func (r *matchRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Match, error) {
	row := db.QueryRow(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id)
	return scanMatch(row)
}

func (r *matchRepo) Create(ctx context.Context, db DBTX, m *domain.Match) error {
	_, err := db.Exec(ctx, `
		INSERT INTO matches (id, competition_id, season_id, home_participant_id, away_participant_id,
			scheduled_at, betting_closes_at, status, round_number, match_day, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())`,
		m.ID, m.CompetitionID, m.SeasonID, m.HomeParticipantID, m.AwayParticipantID,
		m.ScheduledAt, m.BettingClosesAt, string(m.Status), m.RoundNumber, m.MatchDay,
	)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

// UpdateSchedule refuses to move terminal matches; the WHERE clause is the
// guard so racing status changes cannot slip a reschedule past it.
func (r *matchRepo) UpdateSchedule(ctx context.Context, db DBTX, id uuid.UUID, scheduledAt, closesAt time.Time) (*domain.Match, error) {
	row := db.QueryRow(ctx, `
		UPDATE matches
		SET scheduled_at = $2, betting_closes_at = $3, window_closed_at = NULL, updated_at = now()
		WHERE id = $1 AND status NOT IN ('finished', 'cancelled')
		RETURNING `+matchColumns, id, scheduledAt, closesAt)
	return scanMatch(row)
}

func (r *matchRepo) UpdateStatus(ctx context.Context, db DBTX, id uuid.UUID, status domain.MatchStatus) error {
	tag, err := db.Exec(ctx,
		`UPDATE matches SET status = $2, updated_at = now() WHERE id = $1`,
		id, string(status))
	if err != nil {
		return fmt.Errorf("update match status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("match", id.String())
	}
	return nil
}

func (r *matchRepo) SetScores(ctx context.Context, db DBTX, id uuid.UUID, home, away int) error {
	tag, err := db.Exec(ctx,
		`UPDATE matches SET home_score = $2, away_score = $3, updated_at = now() WHERE id = $1`,
		id, home, away)
	if err != nil {
		return fmt.Errorf("set match scores: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("match", id.String())
	}
	return nil
}

func (r *matchRepo) ListClosingWindows(ctx context.Context, db DBTX, before time.Time, limit int) ([]MatchClosure, error) {
	rows, err := db.Query(ctx, `
		SELECT id, betting_closes_at FROM matches
		WHERE status = 'scheduled' AND window_closed_at IS NULL AND betting_closes_at < $1
		ORDER BY betting_closes_at ASC
		LIMIT $2`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list closing windows: %w", err)
	}
	defer rows.Close()

	var closures []MatchClosure
	for rows.Next() {
		var c MatchClosure
		if err := rows.Scan(&c.MatchID, &c.ClosesAt); err != nil {
			return nil, fmt.Errorf("scan closing window: %w", err)
		}
		closures = append(closures, c)
	}
	return closures, rows.Err()
}

// MarkWindowClosed claims the closure exactly once: the IS NULL guard makes
// concurrent gates race safely, only one sees RowsAffected = 1. The stamp
// is also refused while the persisted deadline is still in the future, which
// covers deadlines moved forward after the timer was armed.
func (r *matchRepo) MarkWindowClosed(ctx context.Context, db DBTX, id uuid.UUID) (bool, error) {
	tag, err := db.Exec(ctx, `
		UPDATE matches SET window_closed_at = now(), updated_at = now()
		WHERE id = $1 AND window_closed_at IS NULL AND betting_closes_at <= now()`, id)
	if err != nil {
		return false, fmt.Errorf("mark window closed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanMatch(row pgx.Row) (*domain.Match, error) {
	var m domain.Match
	var status string
	err := row.Scan(&m.ID, &m.CompetitionID, &m.SeasonID, &m.HomeParticipantID, &m.AwayParticipantID,
		&m.ScheduledAt, &m.BettingClosesAt, &status, &m.HomeScore, &m.AwayScore,
		&m.RoundNumber, &m.MatchDay, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan match: %w", err)
	}
	m.Status = domain.MatchStatus(status)
	return &m, nil
}
