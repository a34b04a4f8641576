package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pitchside/contest/internal/domain"
	"github.com/pitchside/contest/internal/repository"
)

// ResultService drives the result confirmation state machine. Every
// transition locks the result row, checks the guard, applies the change and
// writes the outbox event in the same transaction, so an event exists if and
// only if the transition committed.
type ResultService struct {
	pool    *pgxpool.Pool
	matches repository.MatchRepository
	results repository.ResultRepository
	outbox  repository.OutboxRepository
	logger  *slog.Logger
}

// NewResultService creates a ResultService.
func NewResultService(
	pool *pgxpool.Pool,
	matches repository.MatchRepository,
	results repository.ResultRepository,
	outbox repository.OutboxRepository,
	logger *slog.Logger,
) *ResultService {
	return &ResultService{
		pool:    pool,
		matches: matches,
		results: results,
		outbox:  outbox,
		logger:  logger,
	}
}

// RecordResultInput holds a new result submission.
type RecordResultInput struct {
	MatchID        uuid.UUID         `json:"match_id"`
	ResultType     domain.ResultType `json:"result_type"`
	HomeScore      int               `json:"home_score"`
	AwayScore      int               `json:"away_score"`
	AdditionalData json.RawMessage   `json:"additional_data,omitempty"`
}

// Record creates a pending result. Confirmation is a separate step; nothing
// is scored yet.
func (s *ResultService) Record(ctx context.Context, recordedBy uuid.UUID, input RecordResultInput) (*domain.Result, error) {
	m, err := s.matches.FindByID(ctx, s.pool, input.MatchID)
	if err != nil {
		return nil, domain.ErrInternal("load match", err)
	}
	if m == nil {
		return nil, domain.ErrNotFound("match", input.MatchID.String())
	}
	if input.ResultType == domain.ResultFinal && !m.Status.IsScorable() {
		return nil, domain.ErrConflict("match " + m.ID.String() + " is not in a scorable state")
	}

	// A confirmed result of this type must be amended or voided, not
	// re-recorded; a fresh pending row behind it could never confirm.
	confirmed, err := s.results.HasConfirmed(ctx, s.pool, input.MatchID, input.ResultType)
	if err != nil {
		return nil, domain.ErrInternal("check for confirmed result", err)
	}
	if confirmed {
		return nil, domain.ErrDuplicateResult(input.MatchID.String(), input.ResultType)
	}

	version, err := s.results.NextVersion(ctx, s.pool, input.MatchID, input.ResultType)
	if err != nil {
		return nil, domain.ErrInternal("allocate result version", err)
	}

	r := &domain.Result{
		ID:             uuid.New(),
		MatchID:        input.MatchID,
		ResultType:     input.ResultType,
		Version:        version,
		HomeScore:      input.HomeScore,
		AwayScore:      input.AwayScore,
		Status:         domain.ResultPending,
		RecordedBy:     recordedBy,
		AdditionalData: input.AdditionalData,
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	if err := s.results.Insert(ctx, s.pool, r); err != nil {
		return nil, err
	}

	s.logger.Info("result recorded",
		slog.String("result_id", r.ID.String()),
		slog.String("match_id", r.MatchID.String()),
		slog.String("result_type", string(r.ResultType)),
		slog.Int("version", r.Version))
	return r, nil
}

// Confirm moves a result to confirmed and, for a final result, emits the
// settlement-driving event.
func (s *ResultService) Confirm(ctx context.Context, resultID uuid.UUID) (*domain.Result, error) {
	var confirmed *domain.Result
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		r, err := s.results.LockForUpdate(ctx, tx, resultID)
		if err != nil {
			return domain.ErrInternal("lock result", err)
		}
		if r == nil {
			return domain.ErrNotFound("result", resultID.String())
		}
		if !r.CanConfirm() {
			return domain.ErrNotConfirmable(resultID.String(), string(r.Status))
		}

		now := time.Now().UTC()
		if err := s.results.MarkConfirmed(ctx, tx, resultID, now); err != nil {
			return err
		}
		r.Status = domain.ResultConfirmed
		r.ConfirmedAt = &now

		if r.ResultType == domain.ResultFinal {
			if err := s.finalizeMatch(ctx, tx, r); err != nil {
				return err
			}
			if err := s.outbox.Insert(ctx, tx, domain.NewResultConfirmedEvent(r)); err != nil {
				return domain.ErrInternal("enqueue confirmation event", err)
			}
		}

		confirmed = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("result confirmed",
		slog.String("result_id", resultID.String()),
		slog.Int("version", confirmed.Version))
	return confirmed, nil
}

// DisputeResultInput holds an objection against a result.
type DisputeResultInput struct {
	Reason   string          `json:"reason"`
	Evidence json.RawMessage `json:"evidence,omitempty"`
}

// Dispute attaches an objection and parks the result in the disputed state.
// Already-applied settlements stay in place until the dispute resolves.
func (s *ResultService) Dispute(ctx context.Context, disputer, resultID uuid.UUID, input DisputeResultInput) (*domain.Dispute, error) {
	d := &domain.Dispute{
		ID:       uuid.New(),
		ResultID: resultID,
		Disputer: disputer,
		Reason:   input.Reason,
		Evidence: input.Evidence,
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		r, err := s.results.LockForUpdate(ctx, tx, resultID)
		if err != nil {
			return domain.ErrInternal("lock result", err)
		}
		if r == nil {
			return domain.ErrNotFound("result", resultID.String())
		}
		if !r.CanDispute() {
			return domain.ErrConflict("result " + resultID.String() + " cannot be disputed from state " + string(r.Status))
		}

		if err := s.results.InsertDispute(ctx, tx, d); err != nil {
			return domain.ErrInternal("insert dispute", err)
		}
		return s.results.MarkStatus(ctx, tx, resultID, domain.ResultDisputed)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("result disputed",
		slog.String("result_id", resultID.String()),
		slog.String("disputer", disputer.String()))
	return d, nil
}

// ResolveDisputeInput decides a dispute: reject it and let the result stand,
// or uphold it and supply the corrected scoreline.
type ResolveDisputeInput struct {
	Uphold    bool `json:"uphold"`
	HomeScore *int `json:"home_score,omitempty"`
	AwayScore *int `json:"away_score,omitempty"`
}

// ResolveDispute closes a dispute. Rejecting re-confirms the result as it
// stands; upholding amends it to the corrected scoreline.
func (s *ResultService) ResolveDispute(ctx context.Context, resultID uuid.UUID, input ResolveDisputeInput) (*domain.Result, error) {
	if !input.Uphold {
		return s.Confirm(ctx, resultID)
	}
	if input.HomeScore == nil || input.AwayScore == nil {
		return nil, domain.ErrValidation("upholding a dispute requires the corrected scoreline")
	}
	return s.Amend(ctx, resultID, *input.HomeScore, *input.AwayScore)
}

// Amend supersedes a confirmed result with a corrected scoreline. The old
// row becomes terminal, a new confirmed row takes the next version, and the
// amendment event triggers compensating resettlement.
func (s *ResultService) Amend(ctx context.Context, resultID uuid.UUID, homeScore, awayScore int) (*domain.Result, error) {
	var successor *domain.Result
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		prior, err := s.results.LockForUpdate(ctx, tx, resultID)
		if err != nil {
			return domain.ErrInternal("lock result", err)
		}
		if prior == nil {
			return domain.ErrNotFound("result", resultID.String())
		}
		if !prior.CanAmend() {
			return domain.ErrNotAmendable(resultID.String(), string(prior.Status))
		}

		version, err := s.results.NextVersion(ctx, tx, prior.MatchID, prior.ResultType)
		if err != nil {
			return domain.ErrInternal("allocate result version", err)
		}

		now := time.Now().UTC()
		next := &domain.Result{
			ID:          uuid.New(),
			MatchID:     prior.MatchID,
			ResultType:  prior.ResultType,
			Version:     version,
			HomeScore:   homeScore,
			AwayScore:   awayScore,
			Status:      domain.ResultConfirmed,
			RecordedBy:  prior.RecordedBy,
			ConfirmedAt: &now,
		}
		if err := next.Validate(); err != nil {
			return err
		}
		if err := s.results.Insert(ctx, tx, next); err != nil {
			return err
		}
		if err := s.results.MarkStatus(ctx, tx, resultID, domain.ResultAmended); err != nil {
			return err
		}

		if next.ResultType == domain.ResultFinal {
			if err := s.finalizeMatch(ctx, tx, next); err != nil {
				return err
			}
			if err := s.outbox.Insert(ctx, tx, domain.NewResultAmendedEvent(next, prior.Version)); err != nil {
				return domain.ErrInternal("enqueue amendment event", err)
			}
		}

		successor = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("result amended",
		slog.String("result_id", resultID.String()),
		slog.String("successor_id", successor.ID.String()),
		slog.Int("new_version", successor.Version))
	return successor, nil
}

// Void retracts a result entirely. For a final result the void event
// reverses every settlement it produced.
func (s *ResultService) Void(ctx context.Context, resultID uuid.UUID) (*domain.Result, error) {
	var voided *domain.Result
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		r, err := s.results.LockForUpdate(ctx, tx, resultID)
		if err != nil {
			return domain.ErrInternal("lock result", err)
		}
		if r == nil {
			return domain.ErrNotFound("result", resultID.String())
		}
		if !r.CanVoid() {
			return domain.ErrConflict("result " + resultID.String() + " cannot be voided from state " + string(r.Status))
		}
		wasConfirmed := r.Status == domain.ResultConfirmed

		if err := s.results.MarkStatus(ctx, tx, resultID, domain.ResultVoided); err != nil {
			return err
		}
		r.Status = domain.ResultVoided

		// Unconfirmed results never settled anything; no reversal needed.
		if r.ResultType == domain.ResultFinal && wasConfirmed {
			if err := s.outbox.Insert(ctx, tx, domain.NewResultVoidedEvent(r)); err != nil {
				return domain.ErrInternal("enqueue void event", err)
			}
		}

		voided = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("result voided",
		slog.String("result_id", resultID.String()),
		slog.Int("version", voided.Version))
	return voided, nil
}

// Get returns a result by id.
func (s *ResultService) Get(ctx context.Context, resultID uuid.UUID) (*domain.Result, error) {
	r, err := s.results.FindByID(ctx, s.pool, resultID)
	if err != nil {
		return nil, domain.ErrInternal("load result", err)
	}
	if r == nil {
		return nil, domain.ErrNotFound("result", resultID.String())
	}
	return r, nil
}

// ListDisputes returns the disputes raised against a result.
func (s *ResultService) ListDisputes(ctx context.Context, resultID uuid.UUID) ([]domain.Dispute, error) {
	disputes, err := s.results.ListDisputes(ctx, s.pool, resultID)
	if err != nil {
		return nil, domain.ErrInternal("list disputes", err)
	}
	return disputes, nil
}

// finalizeMatch copies the confirmed final scoreline onto the match and
// closes it out.
func (s *ResultService) finalizeMatch(ctx context.Context, tx pgx.Tx, r *domain.Result) error {
	if err := s.matches.SetScores(ctx, tx, r.MatchID, r.HomeScore, r.AwayScore); err != nil {
		return domain.ErrInternal("set match scores", err)
	}
	m, err := s.matches.FindByID(ctx, tx, r.MatchID)
	if err != nil {
		return domain.ErrInternal("load match", err)
	}
	if m != nil && m.CanTransition(domain.MatchFinished) {
		if err := s.matches.UpdateStatus(ctx, tx, r.MatchID, domain.MatchFinished); err != nil {
			return domain.ErrInternal("finish match", err)
		}
	}
	return nil
}

func (s *ResultService) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.ErrInternal("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.ErrInternal("commit transaction", err)
	}
	return nil
}
