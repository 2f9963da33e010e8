package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/hearthledger/hearthledger/internal/ledger"
	"github.com/hearthledger/hearthledger/internal/period"
)

// TransactionChangedJob applies spending deltas for a mutated transaction and
// fans out one instance-changed notification per touched period instance.
type TransactionChangedJob struct {
	Propagator *ledger.Propagator
	Notifier   period.ChangeNotifier
	Logger     *slog.Logger
}

// NewTransactionChangedJob constructs the job handler.
func NewTransactionChangedJob(propagator *ledger.Propagator, notifier period.ChangeNotifier, logger *slog.Logger) *TransactionChangedJob {
	return &TransactionChangedJob{Propagator: propagator, Notifier: notifier, Logger: logger}
}

// Handle executes the transaction changed job. The delta is derived from the
// before/after snapshots, so redelivery with unchanged state applies zero.
func (j *TransactionChangedJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload TransactionChangedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		j.Logger.Error("transaction changed payload", slog.Any("error", err))
		return asynq.SkipRetry
	}

	changed, err := j.Propagator.Propagate(ctx, payload.Before, payload.After)
	if err != nil {
		return err
	}

	// Fan-out is downstream bookkeeping: a failed enqueue leaves occurrence
	// stats and summaries stale until the next change or an explicit
	// recalculation, it never rolls back the applied deltas.
	for i := range changed {
		before := changed[i].Before
		after := changed[i].After
		if err := j.Notifier.PeriodInstanceChanged(ctx, &before, &after); err != nil {
			j.Logger.Error("enqueue instance changed",
				slog.String("instance_id", after.ID), slog.Any("error", err))
		}
	}
	return nil
}
