package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/hearthledger/hearthledger/internal/ledger"
	"github.com/hearthledger/hearthledger/internal/obligation"
	"github.com/hearthledger/hearthledger/internal/shared"
)

// ObligationCreatedJob runs the historical spending backfill for a freshly
// created obligation: every approved expense matching its categories is
// bucketed into the generated period instances.
type ObligationCreatedJob struct {
	Obligations *obligation.Service
	Propagator  *ledger.Propagator
	Logger      *slog.Logger
}

// NewObligationCreatedJob constructs the job handler.
func NewObligationCreatedJob(obligations *obligation.Service, propagator *ledger.Propagator, logger *slog.Logger) *ObligationCreatedJob {
	return &ObligationCreatedJob{Obligations: obligations, Propagator: propagator, Logger: logger}
}

// Handle executes the backfill. The backfill recomputes per-period totals
// from the full transaction history, so redelivery converges.
func (j *ObligationCreatedJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload ObligationCreatedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		j.Logger.Error("obligation created payload", slog.Any("error", err))
		return asynq.SkipRetry
	}

	ob, err := j.Obligations.Get(ctx, payload.OwnerID, payload.ObligationID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Deleted before the backfill ran; nothing to do.
			j.Logger.Warn("backfill target gone", slog.String("obligation_id", payload.ObligationID))
			return asynq.SkipRetry
		}
		return err
	}
	if len(ob.Categories) == 0 {
		return nil
	}
	if err := j.Propagator.Backfill(ctx, ob.Spec(), ob.Categories); err != nil {
		return err
	}
	j.Logger.Info("historical backfill complete",
		slog.String("obligation_id", ob.ID), slog.String("owner_id", ob.OwnerID))
	return nil
}
