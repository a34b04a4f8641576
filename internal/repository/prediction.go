package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pitchside/contest/internal/domain"
)

type predictionRepo struct{}

// NewPredictionRepository returns a pgx-backed PredictionRepository.
func NewPredictionRepository() PredictionRepository {
	return &predictionRepo{}
}

const predictionColumns = `id, user_id, group_id, match_id, predicted_winner,
	predicted_home_score, predicted_away_score, status, points_earned, notes,
	placed_at, updated_at`

const uniqueViolation = "23505"

func (r *predictionRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Prediction, error) {
	row := db.QueryRow(ctx, `SELECT `+predictionColumns+` FROM predictions WHERE id = $1`, id)
	return scanPrediction(row)
}

func (r *predictionRepo) FindByOwner(ctx context.Context, db DBTX, userID, groupID, matchID uuid.UUID) (*domain.Prediction, error) {
	row := db.QueryRow(ctx,
		`SELECT `+predictionColumns+` FROM predictions WHERE user_id = $1 AND group_id = $2 AND match_id = $3`,
		userID, groupID, matchID)
	return scanPrediction(row)
}

// InsertAdmitted performs the window-gated insert. The guard subquery runs
// against the database clock, so admission is decided at commit time with no
// dependence on application clock skew.
func (r *predictionRepo) InsertAdmitted(ctx context.Context, db DBTX, p *domain.Prediction) (bool, error) {
	var winner *string
	if p.PredictedWinner != nil {
		w := string(*p.PredictedWinner)
		winner = &w
	}
	tag, err := db.Exec(ctx, `
		INSERT INTO predictions (id, user_id, group_id, match_id, predicted_winner,
			predicted_home_score, predicted_away_score, status, notes, placed_at, updated_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, 'pending', $8, now(), now()
		WHERE EXISTS (
			SELECT 1 FROM matches m
			WHERE m.id = $4 AND m.status = 'scheduled' AND now() < m.betting_closes_at
		)`,
		p.ID, p.UserID, p.GroupID, p.MatchID, winner,
		p.PredictedHomeScore, p.PredictedAwayScore, p.Notes,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			existing, findErr := r.FindByOwner(ctx, db, p.UserID, p.GroupID, p.MatchID)
			if findErr == nil && existing != nil {
				return false, domain.ErrAlreadyExists(existing.ID.String())
			}
			return false, domain.ErrAlreadyExists("")
		}
		return false, fmt.Errorf("insert prediction: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateAdmitted mutates the payload under the same commit-time window gate.
// A nil return with no error means the gate rejected the write; the caller
// disambiguates closed-window from not-pending by re-reading.
func (r *predictionRepo) UpdateAdmitted(ctx context.Context, db DBTX, id uuid.UUID, payload domain.PredictionPayload) (*domain.Prediction, error) {
	var winner *string
	if payload.Winner != nil {
		w := string(*payload.Winner)
		winner = &w
	}
	row := db.QueryRow(ctx, `
		UPDATE predictions p
		SET predicted_winner = $2, predicted_home_score = $3, predicted_away_score = $4,
		    notes = $5, updated_at = now()
		FROM matches m
		WHERE p.id = $1 AND p.status = 'pending'
		  AND m.id = p.match_id AND m.status = 'scheduled' AND now() < m.betting_closes_at
		RETURNING p.id, p.user_id, p.group_id, p.match_id, p.predicted_winner,
			p.predicted_home_score, p.predicted_away_score, p.status, p.points_earned, p.notes,
			p.placed_at, p.updated_at`,
		id, winner, payload.HomeScore, payload.AwayScore, payload.Notes)
	return scanPrediction(row)
}

func (r *predictionRepo) CancelAdmitted(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Prediction, error) {
	row := db.QueryRow(ctx, `
		UPDATE predictions p
		SET status = 'cancelled', updated_at = now()
		FROM matches m
		WHERE p.id = $1 AND p.status = 'pending'
		  AND m.id = p.match_id AND m.status = 'scheduled' AND now() < m.betting_closes_at
		RETURNING p.id, p.user_id, p.group_id, p.match_id, p.predicted_winner,
			p.predicted_home_score, p.predicted_away_score, p.status, p.points_earned, p.notes,
			p.placed_at, p.updated_at`, id)
	return scanPrediction(row)
}

func (r *predictionRepo) ListForMatch(ctx context.Context, db DBTX, matchID uuid.UUID) ([]domain.Prediction, error) {
	rows, err := db.Query(ctx,
		`SELECT `+predictionColumns+` FROM predictions WHERE match_id = $1 ORDER BY id ASC`,
		matchID)
	if err != nil {
		return nil, fmt.Errorf("list predictions for match: %w", err)
	}
	return collectPredictions(rows)
}

func (r *predictionRepo) ListForUser(ctx context.Context, db DBTX, userID uuid.UUID, f PredictionFilters) ([]domain.Prediction, error) {
	where := []string{"user_id = $1"}
	args := []interface{}{userID}
	argIdx := 2

	if f.GroupID != nil {
		where = append(where, "group_id = $"+strconv.Itoa(argIdx))
		args = append(args, *f.GroupID)
		argIdx++
	}
	if f.MatchID != nil {
		where = append(where, "match_id = $"+strconv.Itoa(argIdx))
		args = append(args, *f.MatchID)
		argIdx++
	}
	if f.Status != nil {
		where = append(where, "status = $"+strconv.Itoa(argIdx))
		args = append(args, string(*f.Status))
		argIdx++
	}

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)

	query := fmt.Sprintf(`SELECT `+predictionColumns+` FROM predictions
		WHERE %s ORDER BY placed_at DESC LIMIT $%d`,
		strings.Join(where, " AND "), argIdx)

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list predictions for user: %w", err)
	}
	return collectPredictions(rows)
}

func (r *predictionRepo) SetSettled(ctx context.Context, db DBTX, id uuid.UUID, points int, status domain.PredictionStatus) error {
	tag, err := db.Exec(ctx,
		`UPDATE predictions SET points_earned = $2, status = $3, updated_at = now() WHERE id = $1`,
		id, points, string(status))
	if err != nil {
		return fmt.Errorf("set prediction settled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("prediction", id.String())
	}
	return nil
}

func collectPredictions(rows pgx.Rows) ([]domain.Prediction, error) {
	defer rows.Close()
	var preds []domain.Prediction
	for rows.Next() {
		p, err := scanPredictionRow(rows)
		if err != nil {
			return nil, err
		}
		preds = append(preds, *p)
	}
	return preds, rows.Err()
}

func scanPrediction(row pgx.Row) (*domain.Prediction, error) {
	p, err := scanPredictionRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func scanPredictionRow(row pgx.Row) (*domain.Prediction, error) {
	var p domain.Prediction
	var winner *string
	var status string
	err := row.Scan(&p.ID, &p.UserID, &p.GroupID, &p.MatchID, &winner,
		&p.PredictedHomeScore, &p.PredictedAwayScore, &status, &p.PointsEarned, &p.Notes,
		&p.PlacedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if winner != nil {
		w := domain.Winner(*winner)
		p.PredictedWinner = &w
	}
	p.Status = domain.PredictionStatus(status)
	return &p, nil
}
