package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func winPtr(w Winner) *Winner { return &w }

// --- Winner Tests ---

func TestWinnerFromScores(t *testing.T) {
	tests := []struct {
		name       string
		home, away int
		want       Winner
	}{
		{"home win", 2, 1, WinnerHome},
		{"away win", 0, 3, WinnerAway},
		{"draw", 1, 1, WinnerDraw},
		{"scoreless draw", 0, 0, WinnerDraw},
		{"big home win", 7, 0, WinnerHome},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WinnerFromScores(tt.home, tt.away))
		})
	}
}

// --- PredictionPayload Tests ---

func TestPredictionPayload_Validate(t *testing.T) {
	tests := []struct {
		name    string
		payload PredictionPayload
		wantErr string
	}{
		{"winner only", PredictionPayload{Winner: winPtr(WinnerHome)}, ""},
		{"exact score only", PredictionPayload{HomeScore: intPtr(2), AwayScore: intPtr(1)}, ""},
		{"winner and matching score", PredictionPayload{Winner: winPtr(WinnerHome), HomeScore: intPtr(2), AwayScore: intPtr(1)}, ""},
		{"draw score with draw winner", PredictionPayload{Winner: winPtr(WinnerDraw), HomeScore: intPtr(1), AwayScore: intPtr(1)}, ""},
		{"empty payload", PredictionPayload{}, "winner or an exact score"},
		{"home score without away", PredictionPayload{HomeScore: intPtr(2)}, "together"},
		{"away score without home", PredictionPayload{AwayScore: intPtr(1)}, "together"},
		{"negative home score", PredictionPayload{HomeScore: intPtr(-1), AwayScore: intPtr(0)}, "non-negative"},
		{"negative away score", PredictionPayload{HomeScore: intPtr(0), AwayScore: intPtr(-2)}, "non-negative"},
		{"winner contradicts score", PredictionPayload{Winner: winPtr(WinnerAway), HomeScore: intPtr(2), AwayScore: intPtr(1)}, "contradicts"},
		{"unknown winner", PredictionPayload{Winner: winPtr(Winner("BOTH"))}, "unknown winner"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestPredictionPayload_Normalize(t *testing.T) {
	t.Run("derives winner from scoreline", func(t *testing.T) {
		pl := PredictionPayload{HomeScore: intPtr(0), AwayScore: intPtr(2)}
		require.NoError(t, pl.Validate())
		pl.Normalize()
		require.NotNil(t, pl.Winner)
		assert.Equal(t, WinnerAway, *pl.Winner)
	})

	t.Run("keeps explicit winner", func(t *testing.T) {
		pl := PredictionPayload{Winner: winPtr(WinnerDraw)}
		pl.Normalize()
		assert.Equal(t, WinnerDraw, *pl.Winner)
	})
}

func TestPrediction_EffectiveWinner(t *testing.T) {
	t.Run("scoreline takes precedence", func(t *testing.T) {
		p := Prediction{
			PredictedWinner:    winPtr(WinnerHome),
			PredictedHomeScore: intPtr(1),
			PredictedAwayScore: intPtr(1),
		}
		w, ok := p.EffectiveWinner()
		require.True(t, ok)
		assert.Equal(t, WinnerDraw, w)
	})

	t.Run("falls back to explicit winner", func(t *testing.T) {
		p := Prediction{PredictedWinner: winPtr(WinnerAway)}
		w, ok := p.EffectiveWinner()
		require.True(t, ok)
		assert.Equal(t, WinnerAway, w)
	})

	t.Run("nothing set", func(t *testing.T) {
		p := Prediction{}
		_, ok := p.EffectiveWinner()
		assert.False(t, ok)
	})
}

// --- Match Tests ---

func TestMatch_Validate(t *testing.T) {
	kickoff := time.Date(2025, 11, 20, 16, 0, 0, 0, time.UTC)
	base := func() Match {
		return Match{
			ID:                uuid.New(),
			HomeParticipantID: uuid.New(),
			AwayParticipantID: uuid.New(),
			ScheduledAt:       kickoff,
			BettingClosesAt:   kickoff,
			Status:            MatchScheduled,
		}
	}

	t.Run("valid", func(t *testing.T) {
		m := base()
		require.NoError(t, m.Validate())
	})

	t.Run("same participants", func(t *testing.T) {
		m := base()
		m.AwayParticipantID = m.HomeParticipantID
		err := m.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must differ")
	})

	t.Run("window closes after kickoff", func(t *testing.T) {
		m := base()
		m.BettingClosesAt = kickoff.Add(time.Minute)
		require.Error(t, m.Validate())
	})

	t.Run("window closes before kickoff", func(t *testing.T) {
		m := base()
		m.BettingClosesAt = kickoff.Add(-time.Hour)
		require.NoError(t, m.Validate())
	})

	t.Run("unknown status", func(t *testing.T) {
		m := base()
		m.Status = "warming_up"
		require.Error(t, m.Validate())
	})

	t.Run("negative score", func(t *testing.T) {
		m := base()
		m.HomeScore = intPtr(-1)
		require.Error(t, m.Validate())
	})
}

func TestMatch_CanTransition(t *testing.T) {
	tests := []struct {
		from MatchStatus
		to   MatchStatus
		want bool
	}{
		{MatchScheduled, MatchLive, true},
		{MatchScheduled, MatchPostponed, true},
		{MatchScheduled, MatchCancelled, true},
		{MatchScheduled, MatchFinished, false},
		{MatchLive, MatchHalftime, true},
		{MatchLive, MatchFinished, true},
		{MatchHalftime, MatchLive, true},
		{MatchExtraTime, MatchPenalties, true},
		{MatchPenalties, MatchFinished, true},
		{MatchPostponed, MatchScheduled, true},
		{MatchFinished, MatchLive, false},
		{MatchCancelled, MatchScheduled, false},
		{MatchLive, MatchLive, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := Match{Status: tt.from}
			assert.Equal(t, tt.want, m.CanTransition(tt.to))
		})
	}
}

func TestWindowClosurePolicy(t *testing.T) {
	kickoff := time.Date(2025, 11, 20, 16, 0, 0, 0, time.UTC)

	t.Run("match start default", func(t *testing.T) {
		p := WindowClosurePolicy{}
		assert.Equal(t, kickoff, p.DefaultClose(kickoff))
	})

	t.Run("minutes before start", func(t *testing.T) {
		p := WindowClosurePolicy{MinutesBefore: 15}
		assert.Equal(t, kickoff.Add(-15*time.Minute), p.DefaultClose(kickoff))
	})
}

// --- Result FSM Tests ---

func TestResult_Guards(t *testing.T) {
	tests := []struct {
		status     ResultStatus
		canConfirm bool
		canDispute bool
		canAmend   bool
		canVoid    bool
	}{
		{ResultPending, true, true, false, true},
		{ResultConfirmed, false, true, true, true},
		{ResultDisputed, true, false, true, true},
		{ResultAmended, false, false, false, false},
		{ResultVoided, false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			r := Result{Status: tt.status}
			assert.Equal(t, tt.canConfirm, r.CanConfirm(), "CanConfirm")
			assert.Equal(t, tt.canDispute, r.CanDispute(), "CanDispute")
			assert.Equal(t, tt.canAmend, r.CanAmend(), "CanAmend")
			assert.Equal(t, tt.canVoid, r.CanVoid(), "CanVoid")
		})
	}
}

func TestResult_Validate(t *testing.T) {
	base := func() Result {
		return Result{
			ID:         uuid.New(),
			MatchID:    uuid.New(),
			ResultType: ResultFinal,
			Version:    1,
			HomeScore:  2,
			AwayScore:  1,
			Status:     ResultPending,
		}
	}

	t.Run("valid", func(t *testing.T) {
		r := base()
		require.NoError(t, r.Validate())
	})

	t.Run("negative score", func(t *testing.T) {
		r := base()
		r.AwayScore = -1
		require.Error(t, r.Validate())
	})

	t.Run("unknown type", func(t *testing.T) {
		r := base()
		r.ResultType = "overtime"
		require.Error(t, r.Validate())
	})

	t.Run("zero version", func(t *testing.T) {
		r := base()
		r.Version = 0
		require.Error(t, r.Validate())
	})

	t.Run("invalid additional data", func(t *testing.T) {
		r := base()
		r.AdditionalData = json.RawMessage(`{not json`)
		require.Error(t, r.Validate())
	})

	t.Run("winner derivation", func(t *testing.T) {
		r := base()
		assert.Equal(t, WinnerHome, r.Winner())
	})
}

func TestDispute_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		d := Dispute{Reason: "wrong final score"}
		require.NoError(t, d.Validate())
	})

	t.Run("missing reason", func(t *testing.T) {
		d := Dispute{}
		require.Error(t, d.Validate())
	})

	t.Run("bad evidence json", func(t *testing.T) {
		d := Dispute{Reason: "x", Evidence: json.RawMessage(`<xml/>`)}
		require.Error(t, d.Validate())
	})
}

// --- AggregateDelta Tests ---

func TestAggregateDelta(t *testing.T) {
	d := AggregateDelta{Points: 3, ExactScore: 1, SettledCount: 1}

	t.Run("negate", func(t *testing.T) {
		n := d.Negate()
		assert.Equal(t, -3, n.Points)
		assert.Equal(t, -1, n.ExactScore)
		assert.Equal(t, -1, n.SettledCount)
	})

	t.Run("negate cancels out", func(t *testing.T) {
		assert.True(t, d.Add(d.Negate()).IsZero())
	})

	t.Run("zero", func(t *testing.T) {
		assert.True(t, AggregateDelta{}.IsZero())
		assert.False(t, d.IsZero())
	})
}

func TestDeltaForRule(t *testing.T) {
	tests := []struct {
		rule       RuleApplied
		points     int
		wantExact  int
		wantWinner int
	}{
		{RuleExactScore, 3, 1, 0},
		{RuleWinnerOnly, 1, 0, 1},
		{RuleMiss, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.rule), func(t *testing.T) {
			d := DeltaForRule(tt.rule, tt.points)
			assert.Equal(t, tt.points, d.Points)
			assert.Equal(t, tt.wantExact, d.ExactScore)
			assert.Equal(t, tt.wantWinner, d.WinnerOnly)
			assert.Equal(t, 1, d.SettledCount)
		})
	}
}

// --- Leaderboard Ordering Tests ---

func TestLeaderboardEntry_RanksBefore(t *testing.T) {
	u1 := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	u2 := uuid.MustParse("00000000-0000-0000-0000-000000000002")

	t.Run("more points ranks first", func(t *testing.T) {
		a := LeaderboardEntry{UserID: u1, TotalPoints: 10}
		b := LeaderboardEntry{UserID: u2, TotalPoints: 8}
		assert.True(t, a.RanksBefore(&b, TieBreakFewerHigher))
		assert.False(t, b.RanksBefore(&a, TieBreakFewerHigher))
	})

	t.Run("exact count breaks points tie", func(t *testing.T) {
		a := LeaderboardEntry{UserID: u1, TotalPoints: 10, ExactScore: 3}
		b := LeaderboardEntry{UserID: u2, TotalPoints: 10, ExactScore: 2}
		assert.True(t, a.RanksBefore(&b, TieBreakFewerHigher))
	})

	t.Run("fewer settled ranks first by default", func(t *testing.T) {
		a := LeaderboardEntry{UserID: u1, TotalPoints: 10, SettledCount: 5}
		b := LeaderboardEntry{UserID: u2, TotalPoints: 10, SettledCount: 8}
		assert.True(t, a.RanksBefore(&b, TieBreakFewerHigher))
		assert.False(t, a.RanksBefore(&b, TieBreakMoreHigher))
	})

	t.Run("user id is the terminal tie-break", func(t *testing.T) {
		a := LeaderboardEntry{UserID: u1, TotalPoints: 10}
		b := LeaderboardEntry{UserID: u2, TotalPoints: 10}
		assert.True(t, a.RanksBefore(&b, TieBreakFewerHigher))
		assert.False(t, b.RanksBefore(&a, TieBreakFewerHigher))
	})
}

func TestRankOrderSQL(t *testing.T) {
	assert.Contains(t, RankOrderSQL(TieBreakFewerHigher), "settled_prediction_count ASC")
	assert.Contains(t, RankOrderSQL(TieBreakMoreHigher), "settled_prediction_count DESC")
	assert.Contains(t, RankOrderSQL(TieBreakFewerHigher), "total_points DESC")
}

// --- AppError Tests ---

func TestAppError_Error(t *testing.T) {
	t.Run("without cause", func(t *testing.T) {
		err := ErrNotFound("match", "abc-123")
		assert.Equal(t, "NOT_FOUND: match abc-123 not found", err.Error())
	})

	t.Run("with cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := ErrInternal("database error", cause)
		assert.Contains(t, err.Error(), "INTERNAL_ERROR")
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := ErrInternal("wrapped", cause)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestErrorFactories(t *testing.T) {
	matchID := uuid.New().String()
	tests := []struct {
		name       string
		err        *AppError
		wantCode   string
		wantStatus int
	}{
		{"ErrMatchClosed", ErrMatchClosed(matchID), "MATCH_CLOSED", 409},
		{"ErrNotGroupMember", ErrNotGroupMember("u", "g"), "NOT_GROUP_MEMBER", 403},
		{"ErrInvalidPayload", ErrInvalidPayload("bad"), "INVALID_PAYLOAD", 400},
		{"ErrAlreadyExists", ErrAlreadyExists("p-1"), "ALREADY_EXISTS", 409},
		{"ErrNotOwner", ErrNotOwner("p-1"), "NOT_OWNER", 403},
		{"ErrNotPending", ErrNotPending("p-1"), "NOT_PENDING", 409},
		{"ErrInvalidScores", ErrInvalidScores("neg"), "INVALID_SCORES", 400},
		{"ErrDuplicateResult", ErrDuplicateResult(matchID, ResultFinal), "DUPLICATE_RESULT", 409},
		{"ErrNotConfirmable", ErrNotConfirmable("r-1", "amended"), "NOT_CONFIRMABLE", 409},
		{"ErrNotAmendable", ErrNotAmendable("r-1", "voided"), "NOT_AMENDABLE", 409},
		{"ErrNotRanked", ErrNotRanked("u-1"), "NOT_RANKED", 404},
		{"ErrDeadlineExceeded", ErrDeadlineExceeded("submit"), "DEADLINE_EXCEEDED", 504},
		{"ErrNotFound", ErrNotFound("match", "123"), "NOT_FOUND", 404},
		{"ErrConflict", ErrConflict("dup"), "CONFLICT", 409},
		{"ErrValidation", ErrValidation("bad"), "VALIDATION_ERROR", 400},
		{"ErrForbidden", ErrForbidden("no"), "FORBIDDEN", 403},
		{"ErrInternal", ErrInternal("oops", nil), "INTERNAL_ERROR", 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.Equal(t, tt.wantStatus, tt.err.Status)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

// --- Event Factory Tests ---

func TestNewResultConfirmedEvent(t *testing.T) {
	r := &Result{
		ID:         uuid.New(),
		MatchID:    uuid.New(),
		ResultType: ResultFinal,
		Version:    1,
		HomeScore:  2,
		AwayScore:  1,
		Status:     ResultConfirmed,
	}

	event := NewResultConfirmedEvent(r)

	assert.NotEqual(t, uuid.Nil, event.EventID)
	assert.Equal(t, AggregateResult, event.AggregateType)
	assert.Equal(t, r.ID.String(), event.AggregateID)
	assert.Equal(t, EventResultConfirmed, event.EventType)
	assert.Equal(t, 1, event.Version)
	assert.Equal(t, r.MatchID.String(), event.PartitionKey)
	assert.False(t, event.OccurredAt.IsZero())

	var payload ResultConfirmedPayload
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, 2, payload.HomeScore)
	assert.Equal(t, 1, payload.AwayScore)
	assert.Equal(t, r.MatchID, payload.MatchID)
}

func TestNewResultAmendedEvent(t *testing.T) {
	newRow := &Result{
		ID:        uuid.New(),
		MatchID:   uuid.New(),
		Version:   2,
		HomeScore: 1,
		AwayScore: 1,
	}

	event := NewResultAmendedEvent(newRow, 1)
	assert.Equal(t, EventResultAmended, event.EventType)
	assert.Equal(t, 2, event.Version)

	var payload ResultAmendedPayload
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, 1, payload.PriorVersion)
	assert.Equal(t, 2, payload.NewVersion)
}

func TestNewDeadlineClosedEvent(t *testing.T) {
	matchID := uuid.New()
	closedAt := time.Now().UTC()

	event := NewDeadlineClosedEvent(matchID, closedAt)
	assert.Equal(t, EventDeadlineClosed, event.EventType)
	assert.Equal(t, AggregateMatch, event.AggregateType)
	assert.Equal(t, matchID.String(), event.AggregateID)
	assert.Equal(t, 1, event.Version)
}

func TestOutboxDraft_DedupeKey(t *testing.T) {
	r := &Result{ID: uuid.New(), MatchID: uuid.New(), Version: 3, Status: ResultConfirmed}
	a := NewResultConfirmedEvent(r)
	b := NewResultConfirmedEvent(r)

	// Same semantic event, distinct event IDs, identical dedupe key.
	assert.NotEqual(t, a.EventID, b.EventID)
	assert.Equal(t, a.DedupeKey(), b.DedupeKey())
	assert.Contains(t, a.DedupeKey(), "contest.result.confirmed")
	assert.Contains(t, a.DedupeKey(), ":3")
}
