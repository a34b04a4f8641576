package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pitchside/contest/internal/domain"
)

type leaderboardRepo struct{}

// NewLeaderboardRepository returns a pgx-backed LeaderboardRepository.
func NewLeaderboardRepository() LeaderboardRepository {
	return &leaderboardRepo{}
}

// ApplyDelta upserts with server-side arithmetic; the row lock taken by
// UPDATE serializes concurrent settlement deltas for the same entry.
func (r *leaderboardRepo) ApplyDelta(ctx context.Context, db DBTX, groupID, seasonID, userID uuid.UUID, delta domain.AggregateDelta) error {
	_, err := db.Exec(ctx, `
		INSERT INTO leaderboard_entries
			(group_id, season_id, user_id, total_points, exact_score_count,
			 winner_only_count, settled_prediction_count, last_updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (group_id, season_id, user_id) DO UPDATE SET
			total_points = leaderboard_entries.total_points + EXCLUDED.total_points,
			exact_score_count = leaderboard_entries.exact_score_count + EXCLUDED.exact_score_count,
			winner_only_count = leaderboard_entries.winner_only_count + EXCLUDED.winner_only_count,
			settled_prediction_count = leaderboard_entries.settled_prediction_count + EXCLUDED.settled_prediction_count,
			last_updated_at = now()`,
		groupID, seasonID, userID,
		delta.Points, delta.ExactScore, delta.WinnerOnly, delta.SettledCount)
	if err != nil {
		return fmt.Errorf("apply leaderboard delta: %w", err)
	}
	return nil
}

const entryColumns = `group_id, season_id, user_id, total_points, exact_score_count,
	winner_only_count, settled_prediction_count, last_updated_at`

func (r *leaderboardRepo) Get(ctx context.Context, db DBTX, groupID, seasonID, userID uuid.UUID) (*domain.LeaderboardEntry, error) {
	row := db.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM leaderboard_entries
		 WHERE group_id = $1 AND season_id = $2 AND user_id = $3`,
		groupID, seasonID, userID)
	e, err := scanEntry(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

// TopN computes ranks with a window query at read time; rank_cached is only
// a hint and never consulted here. domain.RankOrderSQL keeps the SQL
// ordering aligned with the in-process comparator.
func (r *leaderboardRepo) TopN(ctx context.Context, db DBTX, groupID, seasonID uuid.UUID, tb domain.TieBreak, limit, offset int) ([]domain.LeaderboardEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s, DENSE_RANK() OVER (ORDER BY %s) AS rank
		FROM leaderboard_entries
		WHERE group_id = $1 AND season_id = $2
		ORDER BY %s
		LIMIT $3 OFFSET $4`, entryColumns, domain.RankOrderSQL(tb), domain.RankOrderSQL(tb))

	rows, err := db.Query(ctx, query, groupID, seasonID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("leaderboard top-n: %w", err)
	}
	return collectRankedEntries(rows)
}

func (r *leaderboardRepo) RankFor(ctx context.Context, db DBTX, groupID, seasonID, userID uuid.UUID, tb domain.TieBreak) (*domain.LeaderboardEntry, error) {
	query := fmt.Sprintf(`
		SELECT * FROM (
			SELECT %s, DENSE_RANK() OVER (ORDER BY %s) AS rank
			FROM leaderboard_entries
			WHERE group_id = $1 AND season_id = $2
		) ranked
		WHERE user_id = $3`, entryColumns, domain.RankOrderSQL(tb))

	row := db.QueryRow(ctx, query, groupID, seasonID, userID)
	e, err := scanRankedEntry(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

func (r *leaderboardRepo) Around(ctx context.Context, db DBTX, groupID, seasonID, userID uuid.UUID, tb domain.TieBreak, k int) ([]domain.LeaderboardEntry, error) {
	// Position (not dense rank) locates the window so ties do not collapse
	// the neighborhood; displayed rank stays dense.
	query := fmt.Sprintf(`
		WITH ranked AS (
			SELECT %s,
			       DENSE_RANK() OVER (ORDER BY %s) AS rank,
			       ROW_NUMBER() OVER (ORDER BY %s) AS pos
			FROM leaderboard_entries
			WHERE group_id = $1 AND season_id = $2
		)
		SELECT group_id, season_id, user_id, total_points, exact_score_count,
		       winner_only_count, settled_prediction_count, last_updated_at, rank
		FROM ranked
		WHERE pos BETWEEN
			(SELECT pos FROM ranked WHERE user_id = $3) - $4
			AND (SELECT pos FROM ranked WHERE user_id = $3) + $4
		ORDER BY pos`, entryColumns, domain.RankOrderSQL(tb), domain.RankOrderSQL(tb))

	rows, err := db.Query(ctx, query, groupID, seasonID, userID, k)
	if err != nil {
		return nil, fmt.Errorf("leaderboard around user: %w", err)
	}
	return collectRankedEntries(rows)
}

func (r *leaderboardRepo) ZeroSeason(ctx context.Context, db DBTX, groupID, seasonID uuid.UUID) error {
	_, err := db.Exec(ctx, `
		UPDATE leaderboard_entries
		SET total_points = 0, exact_score_count = 0, winner_only_count = 0,
		    settled_prediction_count = 0, rank_cached = NULL, last_updated_at = now()
		WHERE group_id = $1 AND season_id = $2`, groupID, seasonID)
	if err != nil {
		return fmt.Errorf("zero leaderboard season: %w", err)
	}
	return nil
}

func (r *leaderboardRepo) CacheRank(ctx context.Context, db DBTX, groupID, seasonID, userID uuid.UUID, rank int) error {
	_, err := db.Exec(ctx, `
		UPDATE leaderboard_entries SET rank_cached = $4
		WHERE group_id = $1 AND season_id = $2 AND user_id = $3`,
		groupID, seasonID, userID, rank)
	if err != nil {
		return fmt.Errorf("cache rank: %w", err)
	}
	return nil
}

func collectRankedEntries(rows pgx.Rows) ([]domain.LeaderboardEntry, error) {
	defer rows.Close()
	var entries []domain.LeaderboardEntry
	for rows.Next() {
		e, err := scanRankedEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func scanEntry(row pgx.Row) (*domain.LeaderboardEntry, error) {
	var e domain.LeaderboardEntry
	err := row.Scan(&e.GroupID, &e.SeasonID, &e.UserID, &e.TotalPoints, &e.ExactScore,
		&e.WinnerOnly, &e.SettledCount, &e.LastUpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanRankedEntry(row pgx.Row) (*domain.LeaderboardEntry, error) {
	var e domain.LeaderboardEntry
	var rank int64
	err := row.Scan(&e.GroupID, &e.SeasonID, &e.UserID, &e.TotalPoints, &e.ExactScore,
		&e.WinnerOnly, &e.SettledCount, &e.LastUpdatedAt, &rank)
	if err != nil {
		return nil, err
	}
	e.Rank = int(rank)
	return &e, nil
}
