//go:build integration

package integration

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pitchside/contest/internal/auth"
	"github.com/pitchside/contest/internal/domain"
	"github.com/pitchside/contest/test/integration/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordResult(env *testutil.TestEnv, t *testing.T, adminToken string, matchID uuid.UUID, resultType string, home, away int) uuid.UUID {
	t.Helper()
	resp := env.POST("/admin/results", map[string]interface{}{
		"match_id":    matchID,
		"result_type": resultType,
		"home_score":  home,
		"away_score":  away,
	}, adminToken)
	testutil.AssertStatus(t, resp, http.StatusCreated)

	var result struct {
		ID uuid.UUID `json:"id"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.ID
}

func TestResult_RecordRequiresAdminRealm(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, userToken := env.NewUser()
	match := env.SeedMatch(testutil.MatchSpec{KickoffIn: time.Hour, ClosesIn: time.Hour})

	resp := env.POST("/admin/results", map[string]interface{}{
		"match_id":    match.ID,
		"result_type": "final",
		"home_score":  1,
		"away_score":  0,
	}, userToken)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestResult_FinalNeedsScorableMatch(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, adminToken := env.NewAdmin(auth.RoleAdmin)
	match := env.SeedMatch(testutil.MatchSpec{KickoffIn: time.Hour, ClosesIn: time.Hour})

	resp := env.POST("/admin/results", map[string]interface{}{
		"match_id":    match.ID,
		"result_type": "final",
		"home_score":  1,
		"away_score":  0,
	}, adminToken)

	testutil.AssertStatus(t, resp, http.StatusConflict)
	testutil.AssertErrorCode(t, resp, "CONFLICT")
}

func TestResult_RecordAfterConfirmedRejected(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, adminToken := env.NewAdmin(auth.RoleAdmin)
	match := env.SeedMatch(testutil.MatchSpec{KickoffIn: -2 * time.Hour, ClosesIn: -2 * time.Hour, Status: domain.MatchFinished})

	resultID := env.RecordAndConfirmFinal(adminToken, match.ID, 2, 1)

	// A confirmed final must be amended or voided; re-recording is rejected
	// up front rather than leaving a pending row that can never confirm.
	resp := env.POST("/admin/results", map[string]interface{}{
		"match_id":    match.ID,
		"result_type": "final",
		"home_score":  3,
		"away_score":  0,
	}, adminToken)
	testutil.AssertStatus(t, resp, http.StatusConflict)
	testutil.AssertErrorCode(t, resp, "DUPLICATE_RESULT")

	// Another type is an independent track.
	recordResult(env, t, adminToken, match.ID, "half_time", 1, 0)

	// Voiding the confirmed final reopens recording.
	void := env.POST(fmt.Sprintf("/admin/results/%s/void", resultID), nil, adminToken)
	testutil.AssertStatus(t, void, http.StatusOK)
	void.Body.Close()
	recordResult(env, t, adminToken, match.ID, "final", 3, 0)
}

func TestResult_ConfirmFinal(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, adminToken := env.NewAdmin(auth.RoleAdmin)
	match := env.SeedMatch(testutil.MatchSpec{KickoffIn: -2 * time.Hour, ClosesIn: -2 * time.Hour, Status: domain.MatchLive})

	resultID := recordResult(env, t, adminToken, match.ID, "final", 2, 1)

	resp := env.POST(fmt.Sprintf("/admin/results/%s/confirm", resultID), nil, adminToken)
	testutil.AssertStatus(t, resp, http.StatusOK)
	var confirmed struct {
		Status      string `json:"status"`
		ConfirmedAt *time.Time `json:"confirmed_at"`
	}
	testutil.DecodeJSON(t, resp, &confirmed)
	assert.Equal(t, "confirmed", confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)

	// Confirmation finalizes the match and emits exactly one settlement event.
	var status string
	err := env.Pool.QueryRow(context.Background(),
		`SELECT status FROM matches WHERE id = $1`, match.ID).Scan(&status)
	require.NoError(t, err)
	assert.Equal(t, "finished", status)
	assert.Equal(t, 1, testutil.CountOutboxEvents(t, env, string(domain.EventResultConfirmed)))
}

func TestResult_ConfirmTwiceRejected(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, adminToken := env.NewAdmin(auth.RoleAdmin)
	match := env.SeedMatch(testutil.MatchSpec{KickoffIn: -2 * time.Hour, ClosesIn: -2 * time.Hour, Status: domain.MatchFinished})

	resultID := env.RecordAndConfirmFinal(adminToken, match.ID, 2, 1)

	resp := env.POST(fmt.Sprintf("/admin/results/%s/confirm", resultID), nil, adminToken)
	testutil.AssertStatus(t, resp, http.StatusConflict)
	testutil.AssertErrorCode(t, resp, "NOT_CONFIRMABLE")
	assert.Equal(t, 1, testutil.CountOutboxEvents(t, env, string(domain.EventResultConfirmed)))
}

func TestResult_NonFinalConfirmEmitsNothing(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, adminToken := env.NewAdmin(auth.RoleAdmin)
	match := env.SeedMatch(testutil.MatchSpec{KickoffIn: -time.Hour, ClosesIn: -time.Hour, Status: domain.MatchHalftime})

	resultID := recordResult(env, t, adminToken, match.ID, "half_time", 1, 0)

	resp := env.POST(fmt.Sprintf("/admin/results/%s/confirm", resultID), nil, adminToken)
	testutil.AssertStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	assert.Equal(t, 0, testutil.CountOutboxEvents(t, env, string(domain.EventResultConfirmed)))
}

func TestResult_DisputeAndReject(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, adminToken := env.NewAdmin(auth.RoleAdmin)
	_, userToken := env.NewUser()
	match := env.SeedMatch(testutil.MatchSpec{KickoffIn: -2 * time.Hour, ClosesIn: -2 * time.Hour, Status: domain.MatchFinished})
	resultID := env.RecordAndConfirmFinal(adminToken, match.ID, 2, 1)

	dispute := env.POST(fmt.Sprintf("/results/%s/dispute", resultID), map[string]interface{}{
		"reason": "away goal in the 93rd was disallowed",
	}, userToken)
	testutil.AssertStatus(t, dispute, http.StatusCreated)
	dispute.Body.Close()

	get := env.AuthGET(fmt.Sprintf("/admin/results/%s", resultID), adminToken)
	var r struct {
		Status string `json:"status"`
	}
	testutil.DecodeJSON(t, get, &r)
	assert.Equal(t, "disputed", r.Status)

	// Rejecting the dispute re-confirms the result as it stands.
	resolve := env.POST(fmt.Sprintf("/admin/results/%s/resolve", resultID), map[string]interface{}{
		"uphold": false,
	}, adminToken)
	testutil.AssertStatus(t, resolve, http.StatusOK)
	var resolved struct {
		Status  string `json:"status"`
		Version int    `json:"version"`
	}
	testutil.DecodeJSON(t, resolve, &resolved)
	assert.Equal(t, "confirmed", resolved.Status)
	assert.Equal(t, 1, resolved.Version)
}

func TestResult_DisputeAndUphold(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, adminToken := env.NewAdmin(auth.RoleAdmin)
	_, userToken := env.NewUser()
	match := env.SeedMatch(testutil.MatchSpec{KickoffIn: -2 * time.Hour, ClosesIn: -2 * time.Hour, Status: domain.MatchFinished})
	resultID := env.RecordAndConfirmFinal(adminToken, match.ID, 2, 1)

	dispute := env.POST(fmt.Sprintf("/results/%s/dispute", resultID), map[string]interface{}{
		"reason": "final score was 2-2",
	}, userToken)
	testutil.AssertStatus(t, dispute, http.StatusCreated)
	dispute.Body.Close()

	resolve := env.POST(fmt.Sprintf("/admin/results/%s/resolve", resultID), map[string]interface{}{
		"uphold":     true,
		"home_score": 2,
		"away_score": 2,
	}, adminToken)
	testutil.AssertStatus(t, resolve, http.StatusOK)
	var amended struct {
		ID        uuid.UUID `json:"id"`
		Status    string    `json:"status"`
		Version   int       `json:"version"`
		HomeScore int       `json:"home_score"`
		AwayScore int       `json:"away_score"`
	}
	testutil.DecodeJSON(t, resolve, &amended)
	assert.NotEqual(t, resultID, amended.ID)
	assert.Equal(t, "confirmed", amended.Status)
	assert.Equal(t, 2, amended.Version)
	assert.Equal(t, 2, amended.AwayScore)

	// The superseded row is marked amended.
	get := env.AuthGET(fmt.Sprintf("/admin/results/%s", resultID), adminToken)
	var old struct {
		Status string `json:"status"`
	}
	testutil.DecodeJSON(t, get, &old)
	assert.Equal(t, "amended", old.Status)

	assert.Equal(t, 1, testutil.CountOutboxEvents(t, env, string(domain.EventResultAmended)))
}

func TestResult_VoidConfirmed(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, adminToken := env.NewAdmin(auth.RoleAdmin)
	match := env.SeedMatch(testutil.MatchSpec{KickoffIn: -2 * time.Hour, ClosesIn: -2 * time.Hour, Status: domain.MatchFinished})
	resultID := env.RecordAndConfirmFinal(adminToken, match.ID, 2, 1)

	resp := env.POST(fmt.Sprintf("/admin/results/%s/void", resultID), nil, adminToken)
	testutil.AssertStatus(t, resp, http.StatusOK)
	var voided struct {
		Status string `json:"status"`
	}
	testutil.DecodeJSON(t, resp, &voided)
	assert.Equal(t, "voided", voided.Status)

	assert.Equal(t, 1, testutil.CountOutboxEvents(t, env, string(domain.EventResultVoided)))

	// A voided result stays voided.
	again := env.POST(fmt.Sprintf("/admin/results/%s/void", resultID), nil, adminToken)
	testutil.AssertStatus(t, again, http.StatusConflict)
	again.Body.Close()
}

func TestResult_VoidPendingEmitsNothing(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, adminToken := env.NewAdmin(auth.RoleAdmin)
	match := env.SeedMatch(testutil.MatchSpec{KickoffIn: -2 * time.Hour, ClosesIn: -2 * time.Hour, Status: domain.MatchFinished})
	resultID := recordResult(env, t, adminToken, match.ID, "final", 2, 1)

	resp := env.POST(fmt.Sprintf("/admin/results/%s/void", resultID), nil, adminToken)
	testutil.AssertStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	// Nothing was ever confirmed, so there is nothing to unwind downstream.
	assert.Equal(t, 0, testutil.CountOutboxEvents(t, env, string(domain.EventResultVoided)))
}

func TestResult_AmendNeedsAdminRole(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, adminToken := env.NewAdmin(auth.RoleAdmin)
	_, operatorToken := env.NewAdmin(auth.RoleOperator)
	match := env.SeedMatch(testutil.MatchSpec{KickoffIn: -2 * time.Hour, ClosesIn: -2 * time.Hour, Status: domain.MatchFinished})
	resultID := env.RecordAndConfirmFinal(adminToken, match.ID, 2, 1)

	resp := env.POST(fmt.Sprintf("/admin/results/%s/amend", resultID), map[string]interface{}{
		"home_score": 3,
		"away_score": 1,
	}, operatorToken)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestResult_ListDisputes(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, adminToken := env.NewAdmin(auth.RoleAdmin)
	_, userToken := env.NewUser()
	match := env.SeedMatch(testutil.MatchSpec{KickoffIn: -2 * time.Hour, ClosesIn: -2 * time.Hour, Status: domain.MatchFinished})
	resultID := env.RecordAndConfirmFinal(adminToken, match.ID, 2, 1)

	dispute := env.POST(fmt.Sprintf("/results/%s/dispute", resultID), map[string]interface{}{
		"reason": "offside",
	}, userToken)
	testutil.AssertStatus(t, dispute, http.StatusCreated)
	dispute.Body.Close()

	resp := env.AuthGET(fmt.Sprintf("/admin/results/%s/disputes", resultID), adminToken)
	testutil.AssertStatus(t, resp, http.StatusOK)
	var disputes []struct {
		Reason string `json:"reason"`
	}
	testutil.DecodeJSON(t, resp, &disputes)
	require.Len(t, disputes, 1)
	assert.Equal(t, "offside", disputes[0].Reason)
}
