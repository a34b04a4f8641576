package projection

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pitchside/contest/internal/domain"
)

// RankPage is a cached leaderboard page. Eventual consistency is acceptable
// here: the TTL bounds how stale a served page can be. Per-user entries are
// additionally dropped when a rebuild rewrites the aggregates beneath them.
type RankPage struct {
	GroupID   uuid.UUID                 `json:"group_id"`
	SeasonID  uuid.UUID                 `json:"season_id"`
	Entries   []domain.LeaderboardEntry `json:"entries"`
	CachedAt  time.Time                 `json:"cached_at"`
	PageLimit int                       `json:"page_limit"`
	Offset    int                       `json:"offset"`
}

func pageKey(groupID, seasonID uuid.UUID, limit, offset int) string {
	return fmt.Sprintf("rank:page:%s:%s:%d:%d", groupID, seasonID, limit, offset)
}

func userKey(groupID, seasonID, userID uuid.UUID) string {
	return fmt.Sprintf("rank:user:%s:%s:%s", groupID, seasonID, userID)
}

// CachePage stores a leaderboard page.
func CachePage(ctx context.Context, store Store, page RankPage, ttl time.Duration) error {
	page.CachedAt = time.Now().UTC()
	return SetJSON(ctx, store, pageKey(page.GroupID, page.SeasonID, page.PageLimit, page.Offset), page, ttl)
}

// GetPage retrieves a cached leaderboard page; ErrMiss when absent.
func GetPage(ctx context.Context, store Store, groupID, seasonID uuid.UUID, limit, offset int) (*RankPage, error) {
	var page RankPage
	if err := GetJSON(ctx, store, pageKey(groupID, seasonID, limit, offset), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CacheUserRank stores one user's ranked entry.
func CacheUserRank(ctx context.Context, store Store, e domain.LeaderboardEntry, ttl time.Duration) error {
	return SetJSON(ctx, store, userKey(e.GroupID, e.SeasonID, e.UserID), e, ttl)
}

// GetUserRank retrieves a user's cached entry; ErrMiss when absent.
func GetUserRank(ctx context.Context, store Store, groupID, seasonID, userID uuid.UUID) (*domain.LeaderboardEntry, error) {
	var e domain.LeaderboardEntry
	if err := GetJSON(ctx, store, userKey(groupID, seasonID, userID), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// InvalidateUserRank drops a user's cached entry after a rewrite of the
// aggregates behind it.
func InvalidateUserRank(ctx context.Context, store Store, groupID, seasonID, userID uuid.UUID) error {
	return store.Delete(ctx, userKey(groupID, seasonID, userID))
}
