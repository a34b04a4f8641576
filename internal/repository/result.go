package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pitchside/contest/internal/domain"
)

type resultRepo struct{}

// NewResultRepository returns a pgx-backed ResultRepository.
func NewResultRepository() ResultRepository {
	return &resultRepo{}
}

const resultColumns = `id, match_id, result_type, version, home_score, away_score,
	status, recorded_by, recorded_at, confirmed_at, additional_data`

func (r *resultRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Result, error) {
	row := db.QueryRow(ctx, `SELECT `+resultColumns+` FROM results WHERE id = $1`, id)
	return scanResult(row)
}

func (r *resultRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Result, error) {
	row := tx.QueryRow(ctx, `SELECT `+resultColumns+` FROM results WHERE id = $1 FOR UPDATE`, id)
	return scanResult(row)
}

func (r *resultRepo) Insert(ctx context.Context, db DBTX, res *domain.Result) error {
	_, err := db.Exec(ctx, `
		INSERT INTO results (id, match_id, result_type, version, home_score, away_score,
			status, recorded_by, recorded_at, additional_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), $9)`,
		res.ID, res.MatchID, string(res.ResultType), res.Version, res.HomeScore, res.AwayScore,
		string(res.Status), res.RecordedBy, res.AdditionalData,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrDuplicateResult(res.MatchID.String(), res.ResultType)
		}
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (r *resultRepo) HasConfirmed(ctx context.Context, db DBTX, matchID uuid.UUID, resultType domain.ResultType) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM results
			WHERE match_id = $1 AND result_type = $2 AND status = 'confirmed'
		)`, matchID, string(resultType)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check confirmed result: %w", err)
	}
	return exists, nil
}

func (r *resultRepo) MarkConfirmed(ctx context.Context, db DBTX, id uuid.UUID, at time.Time) error {
	tag, err := db.Exec(ctx,
		`UPDATE results SET status = 'confirmed', confirmed_at = $2 WHERE id = $1`,
		id, at)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			// uq_result_confirmed_final: another final result is confirmed.
			return domain.ErrConflict("another final result is already confirmed for this match")
		}
		return fmt.Errorf("mark result confirmed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("result", id.String())
	}
	return nil
}

func (r *resultRepo) MarkStatus(ctx context.Context, db DBTX, id uuid.UUID, status domain.ResultStatus) error {
	tag, err := db.Exec(ctx,
		`UPDATE results SET status = $2 WHERE id = $1`,
		id, string(status))
	if err != nil {
		return fmt.Errorf("mark result status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("result", id.String())
	}
	return nil
}

func (r *resultRepo) NextVersion(ctx context.Context, db DBTX, matchID uuid.UUID, resultType domain.ResultType) (int, error) {
	var next int
	err := db.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM results WHERE match_id = $1 AND result_type = $2`,
		matchID, string(resultType)).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next result version: %w", err)
	}
	return next, nil
}

func (r *resultRepo) InsertDispute(ctx context.Context, db DBTX, d *domain.Dispute) error {
	_, err := db.Exec(ctx, `
		INSERT INTO result_disputes (id, result_id, disputer, reason, evidence, created_at)
		VALUES ($1, $2, $3, $4, $5, now())`,
		d.ID, d.ResultID, d.Disputer, d.Reason, d.Evidence)
	if err != nil {
		return fmt.Errorf("insert dispute: %w", err)
	}
	return nil
}

func (r *resultRepo) ListDisputes(ctx context.Context, db DBTX, resultID uuid.UUID) ([]domain.Dispute, error) {
	rows, err := db.Query(ctx, `
		SELECT id, result_id, disputer, reason, evidence, created_at
		FROM result_disputes WHERE result_id = $1 ORDER BY created_at ASC`, resultID)
	if err != nil {
		return nil, fmt.Errorf("list disputes: %w", err)
	}
	defer rows.Close()

	var disputes []domain.Dispute
	for rows.Next() {
		var d domain.Dispute
		if err := rows.Scan(&d.ID, &d.ResultID, &d.Disputer, &d.Reason, &d.Evidence, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dispute: %w", err)
		}
		disputes = append(disputes, d)
	}
	return disputes, rows.Err()
}

func scanResult(row pgx.Row) (*domain.Result, error) {
	var res domain.Result
	var resultType, status string
	err := row.Scan(&res.ID, &res.MatchID, &resultType, &res.Version, &res.HomeScore, &res.AwayScore,
		&status, &res.RecordedBy, &res.RecordedAt, &res.ConfirmedAt, &res.AdditionalData)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan result: %w", err)
	}
	res.ResultType = domain.ResultType(resultType)
	res.Status = domain.ResultStatus(status)
	return &res, nil
}
