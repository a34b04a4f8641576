package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pitchside/contest/internal/domain"
)

// Store is the storage surface the engine settles through. The production
// implementation lives in the repository package; tests substitute fakes.
type Store interface {
	// Match loads the match a result refers to, or nil when unknown.
	Match(ctx context.Context, id uuid.UUID) (*domain.Match, error)

	// PredictionsForMatch returns every prediction placed on the match, in
	// stable id order.
	PredictionsForMatch(ctx context.Context, matchID uuid.UUID) ([]domain.Prediction, error)

	// SettlementFor returns the settlement written for the prediction at the
	// given result version, or nil when none exists.
	SettlementFor(ctx context.Context, predictionID uuid.UUID, version int) (*domain.Settlement, error)

	// Apply commits one settlement application atomically. False means a
	// previous delivery already settled this (prediction, version).
	Apply(ctx context.Context, app domain.SettlementApplication) (bool, error)
}

// Engine consumes result lifecycle events and turns them into settlements
// and leaderboard deltas. Every path is idempotent: the settlement row's
// (prediction, result version) uniqueness absorbs redeliveries, so the engine
// never needs to know whether an event is a duplicate.
type Engine struct {
	store  Store
	rules  Rules
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine creates a settlement engine.
func NewEngine(store Store, rules Rules, logger *slog.Logger) *Engine {
	return &Engine{
		store:  store,
		rules:  rules,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// HandleEvent dispatches one outbox event to the matching settlement routine.
// Events carrying no settlement work are acknowledged by returning nil.
func (e *Engine) HandleEvent(ctx context.Context, draft domain.OutboxDraft) error {
	switch draft.EventType {
	case domain.EventResultConfirmed:
		var p domain.ResultConfirmedPayload
		if err := json.Unmarshal(draft.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", draft.EventType, err)
		}
		return e.SettleConfirmed(ctx, p)

	case domain.EventResultAmended:
		var p domain.ResultAmendedPayload
		if err := json.Unmarshal(draft.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", draft.EventType, err)
		}
		return e.SettleAmended(ctx, p)

	case domain.EventResultVoided:
		var p domain.ResultVoidedPayload
		if err := json.Unmarshal(draft.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", draft.EventType, err)
		}
		return e.SettleVoided(ctx, p)

	case domain.EventDeadlineClosed:
		// Window closure carries no settlement work; the publisher relays it
		// to downstream consumers.
		return nil

	default:
		e.logger.Warn("ignoring unknown event type",
			slog.String("event_type", string(draft.EventType)),
			slog.String("event_id", draft.EventID.String()))
		return nil
	}
}

// SettleConfirmed scores every non-cancelled prediction on the match against
// the confirmed scoreline. A mid-batch failure is safe: the retry re-scans
// the match and already-settled predictions no-op on the unique key.
func (e *Engine) SettleConfirmed(ctx context.Context, p domain.ResultConfirmedPayload) error {
	m, err := e.store.Match(ctx, p.MatchID)
	if err != nil {
		return fmt.Errorf("load match %s: %w", p.MatchID, err)
	}
	if m == nil {
		return fmt.Errorf("settle confirmed result %s: match %s not found", p.ResultID, p.MatchID)
	}

	preds, err := e.store.PredictionsForMatch(ctx, p.MatchID)
	if err != nil {
		return fmt.Errorf("list predictions for match %s: %w", p.MatchID, err)
	}

	var settled int
	for i := range preds {
		pred := &preds[i]
		if pred.Status == domain.PredictionCancelled {
			continue
		}

		points, rule := e.rules.Score(pred, p.HomeScore, p.AwayScore)
		applied, err := e.store.Apply(ctx, domain.SettlementApplication{
			Settlement: domain.Settlement{
				ID:            uuid.New(),
				PredictionID:  pred.ID,
				ResultVersion: p.Version,
				PointsAwarded: points,
				RuleApplied:   rule,
				ScoredAt:      e.now(),
			},
			GroupID:   pred.GroupID,
			SeasonID:  m.SeasonID,
			UserID:    pred.UserID,
			NewPoints: points,
			NewStatus: domain.PredictionSettled,
			Delta:     domain.DeltaForRule(rule, points),
		})
		if err != nil {
			return fmt.Errorf("settle prediction %s: %w", pred.ID, err)
		}
		if applied {
			settled++
		}
	}

	e.logger.Info("result settled",
		slog.String("match_id", p.MatchID.String()),
		slog.Int("result_version", p.Version),
		slog.Int("predictions", len(preds)),
		slog.Int("settled", settled))
	return nil
}

// SettleAmended re-scores the match at the new result version and writes
// compensating deltas so each aggregate ends up exactly where a single
// confirmation of the new scoreline would have put it. Predictions that
// never got a settlement at the prior version (a lost confirmation delivery)
// receive the full delta.
func (e *Engine) SettleAmended(ctx context.Context, p domain.ResultAmendedPayload) error {
	m, err := e.store.Match(ctx, p.MatchID)
	if err != nil {
		return fmt.Errorf("load match %s: %w", p.MatchID, err)
	}
	if m == nil {
		return fmt.Errorf("settle amended result %s: match %s not found", p.ResultID, p.MatchID)
	}

	preds, err := e.store.PredictionsForMatch(ctx, p.MatchID)
	if err != nil {
		return fmt.Errorf("list predictions for match %s: %w", p.MatchID, err)
	}

	var resettled int
	for i := range preds {
		pred := &preds[i]
		if pred.Status == domain.PredictionCancelled {
			continue
		}

		prior, err := e.store.SettlementFor(ctx, pred.ID, p.PriorVersion)
		if err != nil {
			return fmt.Errorf("load prior settlement for prediction %s: %w", pred.ID, err)
		}

		points, rule := e.rules.Score(pred, p.HomeScore, p.AwayScore)
		delta := domain.DeltaForRule(rule, points)
		if prior != nil {
			delta = delta.Add(domain.DeltaForRule(prior.RuleApplied, prior.PointsAwarded).Negate())
		}

		applied, err := e.store.Apply(ctx, domain.SettlementApplication{
			Settlement: domain.Settlement{
				ID:            uuid.New(),
				PredictionID:  pred.ID,
				ResultVersion: p.NewVersion,
				PointsAwarded: points,
				RuleApplied:   rule,
				ScoredAt:      e.now(),
			},
			GroupID:   pred.GroupID,
			SeasonID:  m.SeasonID,
			UserID:    pred.UserID,
			NewPoints: points,
			NewStatus: domain.PredictionSettled,
			Delta:     delta,
		})
		if err != nil {
			return fmt.Errorf("resettle prediction %s: %w", pred.ID, err)
		}
		if applied {
			resettled++
		}
	}

	e.logger.Info("amendment settled",
		slog.String("match_id", p.MatchID.String()),
		slog.Int("prior_version", p.PriorVersion),
		slog.Int("new_version", p.NewVersion),
		slog.Int("resettled", resettled))
	return nil
}

// SettleVoided reverses the last settlement of every affected prediction.
// The reversal row is written at the reserved version 0, so a redelivered
// void finds the row already present and changes nothing.
func (e *Engine) SettleVoided(ctx context.Context, p domain.ResultVoidedPayload) error {
	m, err := e.store.Match(ctx, p.MatchID)
	if err != nil {
		return fmt.Errorf("load match %s: %w", p.MatchID, err)
	}
	if m == nil {
		return fmt.Errorf("settle voided result %s: match %s not found", p.ResultID, p.MatchID)
	}

	preds, err := e.store.PredictionsForMatch(ctx, p.MatchID)
	if err != nil {
		return fmt.Errorf("list predictions for match %s: %w", p.MatchID, err)
	}

	var reversed int
	for i := range preds {
		pred := &preds[i]
		if pred.Status == domain.PredictionCancelled {
			continue
		}

		prior, err := e.store.SettlementFor(ctx, pred.ID, p.LastVersion)
		if err != nil {
			return fmt.Errorf("load settlement for prediction %s: %w", pred.ID, err)
		}
		if prior == nil {
			// Never settled against the voided result; nothing to reverse.
			continue
		}

		applied, err := e.store.Apply(ctx, domain.SettlementApplication{
			Settlement: domain.Settlement{
				ID:            uuid.New(),
				PredictionID:  pred.ID,
				ResultVersion: domain.VoidReversalVersion,
				PointsAwarded: -prior.PointsAwarded,
				RuleApplied:   domain.RuleReversal,
				ScoredAt:      e.now(),
			},
			GroupID:   pred.GroupID,
			SeasonID:  m.SeasonID,
			UserID:    pred.UserID,
			NewPoints: 0,
			NewStatus: domain.PredictionVoided,
			Delta:     domain.DeltaForRule(prior.RuleApplied, prior.PointsAwarded).Negate(),
		})
		if err != nil {
			return fmt.Errorf("reverse prediction %s: %w", pred.ID, err)
		}
		if applied {
			reversed++
		}
	}

	e.logger.Info("result voided",
		slog.String("match_id", p.MatchID.String()),
		slog.Int("last_version", p.LastVersion),
		slog.Int("reversed", reversed))
	return nil
}
