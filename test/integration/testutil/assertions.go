//go:build integration

package testutil

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
)

// DecodeJSON reads and decodes a JSON response body into dst.
func DecodeJSON(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
}

// AssertStatus checks that the response has the expected HTTP status code.
func AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// AssertErrorCode checks that the response body contains the expected error code.
func AssertErrorCode(t *testing.T, resp *http.Response, expectedCode string) {
	t.Helper()
	var errResp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	DecodeJSON(t, resp, &errResp)
	if errResp.Code != expectedCode {
		t.Errorf("expected error code %q, got %q (message: %s)", expectedCode, errResp.Code, errResp.Message)
	}
}

// AssertStanding queries the leaderboard_entries table and asserts a user's
// aggregate for the (group, season).
func AssertStanding(t *testing.T, env *TestEnv, groupID, seasonID, userID uuid.UUID, points, exact, settled int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var gotPoints, gotExact, gotSettled int
	err := env.Pool.QueryRow(ctx, `
		SELECT total_points, exact_score_count, settled_prediction_count
		FROM leaderboard_entries
		WHERE group_id = $1 AND season_id = $2 AND user_id = $3`,
		groupID, seasonID, userID).Scan(&gotPoints, &gotExact, &gotSettled)
	if err != nil {
		t.Fatalf("AssertStanding: query: %v", err)
	}
	if gotPoints != points {
		t.Errorf("total_points: expected %d, got %d", points, gotPoints)
	}
	if gotExact != exact {
		t.Errorf("exact_score_count: expected %d, got %d", exact, gotExact)
	}
	if gotSettled != settled {
		t.Errorf("settled_prediction_count: expected %d, got %d", settled, gotSettled)
	}
}

// CountSettlements returns the number of settlement rows for a prediction.
func CountSettlements(t *testing.T, env *TestEnv, predictionID uuid.UUID) int {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var count int
	err := env.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM settlements WHERE prediction_id = $1", predictionID).Scan(&count)
	if err != nil {
		t.Fatalf("CountSettlements: %v", err)
	}
	return count
}

// CountOutboxEvents returns the number of outbox events of the given type.
func CountOutboxEvents(t *testing.T, env *TestEnv, eventType string) int {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var count int
	err := env.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM event_outbox WHERE event_type = $1", eventType).Scan(&count)
	if err != nil {
		t.Fatalf("CountOutboxEvents: %v", err)
	}
	return count
}

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
