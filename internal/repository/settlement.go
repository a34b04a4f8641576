package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pitchside/contest/internal/domain"
)

type settlementRepo struct{}

// NewSettlementRepository returns a pgx-backed SettlementRepository.
func NewSettlementRepository() SettlementRepository {
	return &settlementRepo{}
}

func (r *settlementRepo) Insert(ctx context.Context, db DBTX, s *domain.Settlement) (bool, error) {
	tag, err := db.Exec(ctx, `
		INSERT INTO settlements (id, prediction_id, result_version, points_awarded, rule_applied, scored_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (prediction_id, result_version) DO NOTHING`,
		s.ID, s.PredictionID, s.ResultVersion, s.PointsAwarded, string(s.RuleApplied))
	if err != nil {
		return false, fmt.Errorf("insert settlement: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *settlementRepo) FindByPredictionVersion(ctx context.Context, db DBTX, predictionID uuid.UUID, version int) (*domain.Settlement, error) {
	row := db.QueryRow(ctx, `
		SELECT id, prediction_id, result_version, points_awarded, rule_applied, scored_at
		FROM settlements WHERE prediction_id = $1 AND result_version = $2`,
		predictionID, version)
	return scanSettlement(row)
}

func (r *settlementRepo) ListByPrediction(ctx context.Context, db DBTX, predictionID uuid.UUID) ([]domain.Settlement, error) {
	rows, err := db.Query(ctx, `
		SELECT id, prediction_id, result_version, points_awarded, rule_applied, scored_at
		FROM settlements WHERE prediction_id = $1 ORDER BY scored_at ASC`, predictionID)
	if err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	defer rows.Close()

	var settlements []domain.Settlement
	for rows.Next() {
		s, err := scanSettlementRow(rows)
		if err != nil {
			return nil, err
		}
		settlements = append(settlements, *s)
	}
	return settlements, rows.Err()
}

func (r *settlementRepo) ListForRebuild(ctx context.Context, db DBTX, groupID, seasonID uuid.UUID) ([]RebuildRow, error) {
	rows, err := db.Query(ctx, `
		SELECT s.id, s.prediction_id, s.result_version, s.points_awarded, s.rule_applied, s.scored_at,
		       p.user_id, p.group_id, m.season_id
		FROM settlements s
		JOIN predictions p ON p.id = s.prediction_id
		JOIN matches m ON m.id = p.match_id
		WHERE p.group_id = $1 AND m.season_id = $2
		ORDER BY s.scored_at ASC, s.id ASC`, groupID, seasonID)
	if err != nil {
		return nil, fmt.Errorf("list settlements for rebuild: %w", err)
	}
	defer rows.Close()

	var result []RebuildRow
	for rows.Next() {
		var rr RebuildRow
		var rule string
		err := rows.Scan(&rr.Settlement.ID, &rr.Settlement.PredictionID, &rr.Settlement.ResultVersion,
			&rr.Settlement.PointsAwarded, &rule, &rr.Settlement.ScoredAt,
			&rr.UserID, &rr.GroupID, &rr.SeasonID)
		if err != nil {
			return nil, fmt.Errorf("scan rebuild row: %w", err)
		}
		rr.Settlement.RuleApplied = domain.RuleApplied(rule)
		result = append(result, rr)
	}
	return result, rows.Err()
}

func scanSettlement(row pgx.Row) (*domain.Settlement, error) {
	s, err := scanSettlementRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func scanSettlementRow(row pgx.Row) (*domain.Settlement, error) {
	var s domain.Settlement
	var rule string
	err := row.Scan(&s.ID, &s.PredictionID, &s.ResultVersion, &s.PointsAwarded, &rule, &s.ScoredAt)
	if err != nil {
		return nil, err
	}
	s.RuleApplied = domain.RuleApplied(rule)
	return &s, nil
}
