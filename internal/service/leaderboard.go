package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pitchside/contest/internal/domain"
	"github.com/pitchside/contest/internal/projection"
	"github.com/pitchside/contest/internal/repository"
)

// LeaderboardService serves ranked standings and rebuilds aggregates from
// the settlement log. Reads go through the projection cache; the database
// window query is the source of truth on a miss.
type LeaderboardService struct {
	pool        *pgxpool.Pool
	leaderboard repository.LeaderboardRepository
	settlements repository.SettlementRepository
	cache       projection.Store
	tieBreak    domain.TieBreak
	cacheTTL    time.Duration
	logger      *slog.Logger
}

// NewLeaderboardService creates a LeaderboardService.
func NewLeaderboardService(
	pool *pgxpool.Pool,
	leaderboard repository.LeaderboardRepository,
	settlements repository.SettlementRepository,
	cache projection.Store,
	tieBreak domain.TieBreak,
	cacheTTL time.Duration,
	logger *slog.Logger,
) *LeaderboardService {
	return &LeaderboardService{
		pool:        pool,
		leaderboard: leaderboard,
		settlements: settlements,
		cache:       cache,
		tieBreak:    tieBreak,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

// Top returns a leaderboard page. Pages may be up to cacheTTL stale.
func (s *LeaderboardService) Top(ctx context.Context, groupID, seasonID uuid.UUID, limit, offset int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	if page, err := projection.GetPage(ctx, s.cache, groupID, seasonID, limit, offset); err == nil {
		return page.Entries, nil
	}

	entries, err := s.leaderboard.TopN(ctx, s.pool, groupID, seasonID, s.tieBreak, limit, offset)
	if err != nil {
		return nil, domain.ErrInternal("load leaderboard", err)
	}

	if err := projection.CachePage(ctx, s.cache, projection.RankPage{
		GroupID:   groupID,
		SeasonID:  seasonID,
		Entries:   entries,
		PageLimit: limit,
		Offset:    offset,
	}, s.cacheTTL); err != nil {
		s.logger.Warn("leaderboard page cache write failed", slog.String("error", err.Error()))
	}
	return entries, nil
}

// UserRank returns one user's ranked entry.
func (s *LeaderboardService) UserRank(ctx context.Context, groupID, seasonID, userID uuid.UUID) (*domain.LeaderboardEntry, error) {
	if e, err := projection.GetUserRank(ctx, s.cache, groupID, seasonID, userID); err == nil {
		return e, nil
	}

	e, err := s.leaderboard.RankFor(ctx, s.pool, groupID, seasonID, userID, s.tieBreak)
	if err != nil {
		return nil, domain.ErrInternal("compute rank", err)
	}
	if e == nil {
		return nil, domain.ErrNotRanked(userID.String())
	}

	if err := projection.CacheUserRank(ctx, s.cache, *e, s.cacheTTL); err != nil {
		s.logger.Warn("user rank cache write failed", slog.String("error", err.Error()))
	}
	if err := s.leaderboard.CacheRank(ctx, s.pool, groupID, seasonID, userID, e.Rank); err != nil {
		s.logger.Warn("rank hint write failed", slog.String("error", err.Error()))
	}
	return e, nil
}

// Around returns up to 2k+1 entries centered on the user.
func (s *LeaderboardService) Around(ctx context.Context, groupID, seasonID, userID uuid.UUID, k int) ([]domain.LeaderboardEntry, error) {
	if k <= 0 || k > 25 {
		k = 5
	}
	entries, err := s.leaderboard.Around(ctx, s.pool, groupID, seasonID, userID, s.tieBreak, k)
	if err != nil {
		return nil, domain.ErrInternal("load leaderboard neighborhood", err)
	}
	if len(entries) == 0 {
		return nil, domain.ErrNotRanked(userID.String())
	}
	return entries, nil
}

// Rebuild recomputes a (group, season) leaderboard from the settlement log.
// It zeroes the entries and replays every settlement's net contribution in
// one transaction, so readers never observe a half-rebuilt board.
func (s *LeaderboardService) Rebuild(ctx context.Context, groupID, seasonID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.ErrInternal("begin rebuild", err)
	}
	defer tx.Rollback(ctx)

	if err := s.leaderboard.ZeroSeason(ctx, tx, groupID, seasonID); err != nil {
		return domain.ErrInternal("zero leaderboard", err)
	}

	rows, err := s.settlements.ListForRebuild(ctx, tx, groupID, seasonID)
	if err != nil {
		return domain.ErrInternal("load settlement log", err)
	}

	affected := make(map[uuid.UUID]struct{}, len(rows))
	for i := range rows {
		affected[rows[i].UserID] = struct{}{}
	}

	for userID, delta := range foldRebuildRows(rows) {
		if delta.IsZero() {
			continue
		}
		if err := s.leaderboard.ApplyDelta(ctx, tx, groupID, seasonID, userID, delta); err != nil {
			return domain.ErrInternal("apply rebuilt delta", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.ErrInternal("commit rebuild", err)
	}

	// Cached per-user entries now describe the pre-rebuild board; drop them
	// so the next read reflects the rebuilt aggregates. Page caches age out
	// on their TTL.
	for userID := range affected {
		if err := projection.InvalidateUserRank(ctx, s.cache, groupID, seasonID, userID); err != nil {
			s.logger.Warn("user rank invalidation failed",
				slog.String("user_id", userID.String()),
				slog.String("error", err.Error()))
		}
	}

	s.logger.Info("leaderboard rebuilt",
		slog.String("group_id", groupID.String()),
		slog.String("season_id", seasonID.String()),
		slog.Int("settlements", len(rows)))
	return nil
}

// foldRebuildRows reduces the settlement log to one net delta per user.
// Per prediction, the highest result version wins and a reversal row zeroes
// the contribution; that mirrors what the incremental deltas summed to.
func foldRebuildRows(rows []repository.RebuildRow) map[uuid.UUID]domain.AggregateDelta {
	type netState struct {
		userID   uuid.UUID
		latest   *domain.Settlement
		reversed bool
	}

	byPrediction := make(map[uuid.UUID]*netState)
	order := make([]uuid.UUID, 0, len(rows))

	for i := range rows {
		row := &rows[i]
		st, ok := byPrediction[row.Settlement.PredictionID]
		if !ok {
			st = &netState{userID: row.UserID}
			byPrediction[row.Settlement.PredictionID] = st
			order = append(order, row.Settlement.PredictionID)
		}

		if row.Settlement.RuleApplied == domain.RuleReversal {
			st.reversed = true
			continue
		}
		if st.latest == nil || row.Settlement.ResultVersion > st.latest.ResultVersion {
			s := row.Settlement
			st.latest = &s
		}
	}

	deltas := make(map[uuid.UUID]domain.AggregateDelta)
	for _, predictionID := range order {
		st := byPrediction[predictionID]
		if st.reversed || st.latest == nil {
			continue
		}
		delta := domain.DeltaForRule(st.latest.RuleApplied, st.latest.PointsAwarded)
		deltas[st.userID] = deltas[st.userID].Add(delta)
	}
	return deltas
}
