//go:build integration

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pitchside/contest/internal/auth"
	"github.com/pitchside/contest/internal/domain"
	"github.com/pitchside/contest/internal/repository"
	"github.com/pitchside/contest/internal/scoring"
)

// NewUser mints a user-realm identity and token.
func (env *TestEnv) NewUser() (uuid.UUID, string) {
	env.t.Helper()
	id := uuid.New()
	token, err := env.JWTMgr.GenerateToken(auth.RealmUser, id, fmt.Sprintf("%s@test.com", id.String()[:8]), "")
	if err != nil {
		env.t.Fatalf("NewUser: generate token: %v", err)
	}
	return id, token
}

// NewAdmin mints an admin-realm identity and token with the given role.
func (env *TestEnv) NewAdmin(role string) (uuid.UUID, string) {
	env.t.Helper()
	id := uuid.New()
	token, err := env.JWTMgr.GenerateToken(auth.RealmAdmin, id, fmt.Sprintf("%s@ops.test.com", id.String()[:8]), role)
	if err != nil {
		env.t.Fatalf("NewAdmin: generate token: %v", err)
	}
	return id, token
}

// GET performs an unauthenticated GET request.
func (env *TestEnv) GET(path string) *http.Response {
	env.t.Helper()
	resp, err := http.Get(env.Server.URL + path)
	if err != nil {
		env.t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

// AuthGET performs an authenticated GET request.
func (env *TestEnv) AuthGET(path, token string) *http.Response {
	env.t.Helper()
	return env.do(http.MethodGet, path, nil, token)
}

// POST performs a POST request with optional auth token.
func (env *TestEnv) POST(path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	return env.do(http.MethodPost, path, body, token)
}

// PUT performs an authenticated PUT request.
func (env *TestEnv) PUT(path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	return env.do(http.MethodPut, path, body, token)
}

// DELETE performs an authenticated DELETE request.
func (env *TestEnv) DELETE(path, token string) *http.Response {
	env.t.Helper()
	return env.do(http.MethodDelete, path, nil, token)
}

func (env *TestEnv) do(method, path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			env.t.Fatalf("%s %s: encode: %v", method, path, err)
		}
	}
	req, err := http.NewRequest(method, env.Server.URL+path, &buf)
	if err != nil {
		env.t.Fatalf("%s %s: new request: %v", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// MatchSpec drives SeedMatch. Durations are offsets from now; a negative
// ClosesIn seeds an already-closed betting window.
type MatchSpec struct {
	KickoffIn time.Duration
	ClosesIn  time.Duration
	Status    domain.MatchStatus
}

// SeedMatch inserts a match directly, bypassing the admin API so tests can
// control the betting window freely.
func (env *TestEnv) SeedMatch(spec MatchSpec) *domain.Match {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if spec.Status == "" {
		spec.Status = domain.MatchScheduled
	}
	now := time.Now().UTC()
	m := &domain.Match{
		ID:                uuid.New(),
		CompetitionID:     uuid.New(),
		SeasonID:          uuid.New(),
		HomeParticipantID: uuid.New(),
		AwayParticipantID: uuid.New(),
		ScheduledAt:       now.Add(spec.KickoffIn),
		BettingClosesAt:   now.Add(spec.ClosesIn),
		Status:            spec.Status,
	}

	_, err := env.Pool.Exec(ctx, `
		INSERT INTO matches (id, competition_id, season_id, home_participant_id, away_participant_id,
			scheduled_at, betting_closes_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.CompetitionID, m.SeasonID, m.HomeParticipantID, m.AwayParticipantID,
		m.ScheduledAt, m.BettingClosesAt, string(m.Status))
	if err != nil {
		env.t.Fatalf("SeedMatch: %v", err)
	}
	return m
}

// SetMatchStatus flips a match's status directly, skipping transition rules.
func (env *TestEnv) SetMatchStatus(matchID uuid.UUID, status domain.MatchStatus) {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := env.Pool.Exec(ctx,
		`UPDATE matches SET status = $2, updated_at = now() WHERE id = $1`,
		matchID, string(status))
	if err != nil {
		env.t.Fatalf("SetMatchStatus: %v", err)
	}
}

// CreateGroup creates a group through the API; the creator becomes its first
// active member.
func (env *TestEnv) CreateGroup(token, name string) uuid.UUID {
	env.t.Helper()
	resp := env.POST("/groups", map[string]string{"name": name}, token)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		env.t.Fatalf("CreateGroup: expected 201, got %d", resp.StatusCode)
	}
	var group struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&group); err != nil {
		env.t.Fatalf("CreateGroup: decode: %v", err)
	}
	return group.ID
}

// JoinGroup enrolls the token's user in the group.
func (env *TestEnv) JoinGroup(token string, groupID uuid.UUID) {
	env.t.Helper()
	resp := env.POST(fmt.Sprintf("/groups/%s/join", groupID), nil, token)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		env.t.Fatalf("JoinGroup: expected 200, got %d", resp.StatusCode)
	}
}

// SubmitExact places an exact-score prediction and returns its id.
func (env *TestEnv) SubmitExact(token string, groupID, matchID uuid.UUID, home, away int) uuid.UUID {
	env.t.Helper()
	resp := env.POST("/predictions", map[string]interface{}{
		"group_id":   groupID,
		"match_id":   matchID,
		"home_score": home,
		"away_score": away,
	}, token)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		env.t.Fatalf("SubmitExact: expected 201, got %d", resp.StatusCode)
	}
	var p struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		env.t.Fatalf("SubmitExact: decode: %v", err)
	}
	return p.ID
}

// SubmitWinner places a winner-only prediction and returns its id.
func (env *TestEnv) SubmitWinner(token string, groupID, matchID uuid.UUID, winner domain.Winner) uuid.UUID {
	env.t.Helper()
	resp := env.POST("/predictions", map[string]interface{}{
		"group_id": groupID,
		"match_id": matchID,
		"winner":   winner,
	}, token)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		env.t.Fatalf("SubmitWinner: expected 201, got %d", resp.StatusCode)
	}
	var p struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		env.t.Fatalf("SubmitWinner: decode: %v", err)
	}
	return p.ID
}

// RecordAndConfirmFinal records a final result via the admin API and confirms
// it, returning the result id.
func (env *TestEnv) RecordAndConfirmFinal(adminToken string, matchID uuid.UUID, home, away int) uuid.UUID {
	env.t.Helper()
	resp := env.POST("/admin/results", map[string]interface{}{
		"match_id":    matchID,
		"result_type": "final",
		"home_score":  home,
		"away_score":  away,
	}, adminToken)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		env.t.Fatalf("RecordAndConfirmFinal: record: expected 201, got %d", resp.StatusCode)
	}
	var result struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		env.t.Fatalf("RecordAndConfirmFinal: decode: %v", err)
	}

	confirm := env.POST(fmt.Sprintf("/admin/results/%s/confirm", result.ID), nil, adminToken)
	defer confirm.Body.Close()
	if confirm.StatusCode != http.StatusOK {
		env.t.Fatalf("RecordAndConfirmFinal: confirm: expected 200, got %d", confirm.StatusCode)
	}
	return result.ID
}

// newEngine builds a settlement engine over the real repositories.
func (env *TestEnv) newEngine() *scoring.Engine {
	matchRepo := repository.NewMatchRepository()
	predictionRepo := repository.NewPredictionRepository()
	settlementRepo := repository.NewSettlementRepository()
	leaderboardRepo := repository.NewLeaderboardRepository()

	writer := repository.NewSettlementWriter(env.Pool, predictionRepo, settlementRepo, leaderboardRepo)
	store := repository.NewScoringStore(env.Pool, matchRepo, predictionRepo, settlementRepo, writer)
	logger := noopLogger()
	return scoring.NewEngine(store, scoring.DefaultRules(), logger)
}

// Settle drains every due outbox event through the settlement engine, the
// way the settler binary does between polls.
func (env *TestEnv) Settle() {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	engine := env.newEngine()
	outboxRepo := repository.NewOutboxRepository()

	rows, err := outboxRepo.FetchDue(ctx, env.Pool, time.Now(), 100)
	if err != nil {
		env.t.Fatalf("Settle: fetch due: %v", err)
	}
	for _, row := range rows {
		if err := engine.HandleEvent(ctx, row.Draft); err != nil {
			env.t.Fatalf("Settle: handle %s: %v", row.Draft.EventType, err)
		}
		if err := outboxRepo.MarkProcessed(ctx, env.Pool, row.SeqID); err != nil {
			env.t.Fatalf("Settle: mark processed: %v", err)
		}
	}
}

// ReplayLastEvent re-delivers the most recent outbox event to the engine.
// The settlement layer must absorb it without double-counting.
func (env *TestEnv) ReplayLastEvent() {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var payload []byte
	var eventType string
	err := env.Pool.QueryRow(ctx,
		`SELECT event_type, payload FROM event_outbox ORDER BY id DESC LIMIT 1`).
		Scan(&eventType, &payload)
	if err != nil {
		env.t.Fatalf("ReplayLastEvent: %v", err)
	}

	engine := env.newEngine()
	draft := domain.OutboxDraft{
		EventID:   uuid.New(),
		EventType: domain.EventType(eventType),
		Payload:   payload,
	}
	if err := engine.HandleEvent(ctx, draft); err != nil {
		env.t.Fatalf("ReplayLastEvent: handle: %v", err)
	}
}
