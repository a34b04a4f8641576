//go:build integration

package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pitchside/contest/internal/auth"
	"github.com/pitchside/contest/internal/domain"
	"github.com/pitchside/contest/internal/projection"
	"github.com/pitchside/contest/internal/repository"
	"github.com/pitchside/contest/internal/service"
	"github.com/pitchside/contest/test/integration/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type boardEntry struct {
	UserID       uuid.UUID `json:"user_id"`
	TotalPoints  int       `json:"total_points"`
	ExactScore   int       `json:"exact_score_count"`
	SettledCount int       `json:"settled_prediction_count"`
	Rank         int       `json:"rank"`
}

func boardPath(groupID, seasonID uuid.UUID) string {
	return fmt.Sprintf("/groups/%s/seasons/%s/leaderboard", groupID, seasonID)
}

func TestLeaderboard_TopOrdering(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, adminToken := env.NewAdmin(auth.RoleAdmin)
	match := env.SeedMatch(testutil.MatchSpec{KickoffIn: time.Hour, ClosesIn: time.Hour})

	exactUser, exactToken := env.NewUser()
	groupID := env.CreateGroup(exactToken, "Ranked League")
	winnerUser, winnerToken := env.NewUser()
	env.JoinGroup(winnerToken, groupID)
	missUser, missToken := env.NewUser()
	env.JoinGroup(missToken, groupID)

	env.SubmitExact(exactToken, groupID, match.ID, 2, 1)
	env.SubmitWinner(winnerToken, groupID, match.ID, domain.WinnerHome)
	env.SubmitExact(missToken, groupID, match.ID, 0, 3)

	env.SetMatchStatus(match.ID, domain.MatchFinished)
	env.RecordAndConfirmFinal(adminToken, match.ID, 2, 1)
	env.Settle()

	resp := env.AuthGET(boardPath(groupID, match.SeasonID), exactToken)
	testutil.AssertStatus(t, resp, http.StatusOK)
	var board []boardEntry
	testutil.DecodeJSON(t, resp, &board)

	require.Len(t, board, 3)
	assert.Equal(t, exactUser, board[0].UserID)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, 3, board[0].TotalPoints)
	assert.Equal(t, winnerUser, board[1].UserID)
	assert.Equal(t, 2, board[1].Rank)
	assert.Equal(t, missUser, board[2].UserID)
	assert.Equal(t, 3, board[2].Rank)
}

func TestLeaderboard_TieBreakFewerSettled(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, adminToken := env.NewAdmin(auth.RoleAdmin)
	m1 := env.SeedMatch(testutil.MatchSpec{KickoffIn: time.Hour, ClosesIn: time.Hour})
	m2 := env.SeedMatch(testutil.MatchSpec{KickoffIn: 2 * time.Hour, ClosesIn: 2 * time.Hour})

	// Same season for both fixtures so they feed one board.
	_, err := env.Pool.Exec(context.Background(),
		`UPDATE matches SET season_id = $2 WHERE id = $1`, m2.ID, m1.SeasonID)
	require.NoError(t, err)

	lean, leanToken := env.NewUser()
	groupID := env.CreateGroup(leanToken, "Efficiency Contest")
	busy, busyToken := env.NewUser()
	env.JoinGroup(busyToken, groupID)

	// Both end on 3 points with one exact hit; busy also settled a miss.
	env.SubmitExact(leanToken, groupID, m1.ID, 2, 1)
	env.SubmitExact(busyToken, groupID, m1.ID, 2, 1)
	env.SubmitExact(busyToken, groupID, m2.ID, 5, 5)

	env.SetMatchStatus(m1.ID, domain.MatchFinished)
	env.RecordAndConfirmFinal(adminToken, m1.ID, 2, 1)
	env.SetMatchStatus(m2.ID, domain.MatchFinished)
	env.RecordAndConfirmFinal(adminToken, m2.ID, 1, 0)
	env.Settle()

	resp := env.AuthGET(boardPath(groupID, m1.SeasonID), leanToken)
	testutil.AssertStatus(t, resp, http.StatusOK)
	var board []boardEntry
	testutil.DecodeJSON(t, resp, &board)

	require.Len(t, board, 2)
	assert.Equal(t, board[0].TotalPoints, board[1].TotalPoints)
	assert.Equal(t, lean, board[0].UserID, "fewer settled predictions ranks higher on equal points")
	assert.Equal(t, busy, board[1].UserID)
}

func TestLeaderboard_Me(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, adminToken := env.NewAdmin(auth.RoleAdmin)
	match := env.SeedMatch(testutil.MatchSpec{KickoffIn: time.Hour, ClosesIn: time.Hour})

	_, exactToken := env.NewUser()
	groupID := env.CreateGroup(exactToken, "Where Am I")
	winnerUser, winnerToken := env.NewUser()
	env.JoinGroup(winnerToken, groupID)

	env.SubmitExact(exactToken, groupID, match.ID, 2, 1)
	env.SubmitWinner(winnerToken, groupID, match.ID, domain.WinnerHome)

	env.SetMatchStatus(match.ID, domain.MatchFinished)
	env.RecordAndConfirmFinal(adminToken, match.ID, 2, 1)
	env.Settle()

	resp := env.AuthGET(boardPath(groupID, match.SeasonID)+"/me", winnerToken)
	testutil.AssertStatus(t, resp, http.StatusOK)
	var me boardEntry
	testutil.DecodeJSON(t, resp, &me)
	assert.Equal(t, winnerUser, me.UserID)
	assert.Equal(t, 2, me.Rank)
	assert.Equal(t, 1, me.TotalPoints)
}

func TestLeaderboard_MeUnranked(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, ownerToken := env.NewUser()
	groupID := env.CreateGroup(ownerToken, "Empty Board")
	seasonID := uuid.New()

	resp := env.AuthGET(boardPath(groupID, seasonID)+"/me", ownerToken)
	testutil.AssertStatus(t, resp, http.StatusNotFound)
	testutil.AssertErrorCode(t, resp, "NOT_RANKED")
}

func TestLeaderboard_Around(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, adminToken := env.NewAdmin(auth.RoleAdmin)
	match := env.SeedMatch(testutil.MatchSpec{KickoffIn: time.Hour, ClosesIn: time.Hour})

	_, exactToken := env.NewUser()
	groupID := env.CreateGroup(exactToken, "Neighborhood Watch")
	winnerUser, winnerToken := env.NewUser()
	env.JoinGroup(winnerToken, groupID)
	_, missToken := env.NewUser()
	env.JoinGroup(missToken, groupID)

	env.SubmitExact(exactToken, groupID, match.ID, 2, 1)
	env.SubmitWinner(winnerToken, groupID, match.ID, domain.WinnerHome)
	env.SubmitExact(missToken, groupID, match.ID, 0, 3)

	env.SetMatchStatus(match.ID, domain.MatchFinished)
	env.RecordAndConfirmFinal(adminToken, match.ID, 2, 1)
	env.Settle()

	resp := env.AuthGET(boardPath(groupID, match.SeasonID)+"/around?k=1", winnerToken)
	testutil.AssertStatus(t, resp, http.StatusOK)
	var around []boardEntry
	testutil.DecodeJSON(t, resp, &around)

	require.Len(t, around, 3)
	assert.Equal(t, winnerUser, around[1].UserID)
	assert.Equal(t, []int{1, 2, 3}, []int{around[0].Rank, around[1].Rank, around[2].Rank})
}

func TestLeaderboard_PaginationClamp(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, token := env.NewUser()
	groupID := env.CreateGroup(token, "Edge Cases")
	seasonID := uuid.New()

	// Absurd limits are clamped, not rejected.
	resp := env.AuthGET(boardPath(groupID, seasonID)+"?limit=100000", token)
	testutil.AssertStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}

func TestLeaderboard_RebuildDropsCachedUserRanks(t *testing.T) {
	env := testutil.NewTestEnv(t)
	f := seedContest(t, env)

	resultID := f.confirmFinal(t, env, 2, 1)
	env.Settle()

	// A long-TTL cache would otherwise pin pre-rebuild entries.
	svc := service.NewLeaderboardService(env.Pool,
		repository.NewLeaderboardRepository(), repository.NewSettlementRepository(),
		projection.NewInMemoryStore(), domain.TieBreakFewerHigher, time.Hour,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx := context.Background()
	warm, err := svc.UserRank(ctx, f.groupID, f.match.SeasonID, f.exactUser)
	require.NoError(t, err)
	assert.Equal(t, 3, warm.TotalPoints)

	// Amend 2-1 to 1-1; the warmed entry keeps serving the stale score.
	resp := env.POST(fmt.Sprintf("/admin/results/%s/amend", resultID), map[string]interface{}{
		"home_score": 1,
		"away_score": 1,
	}, f.adminToken)
	testutil.AssertStatus(t, resp, http.StatusOK)
	resp.Body.Close()
	env.Settle()

	stale, err := svc.UserRank(ctx, f.groupID, f.match.SeasonID, f.exactUser)
	require.NoError(t, err)
	assert.Equal(t, 3, stale.TotalPoints)

	// Rebuild invalidates the cached entry; the next read is fresh.
	require.NoError(t, svc.Rebuild(ctx, f.groupID, f.match.SeasonID))

	fresh, err := svc.UserRank(ctx, f.groupID, f.match.SeasonID, f.exactUser)
	require.NoError(t, err)
	assert.Equal(t, 0, fresh.TotalPoints)
}
