package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/hearthledger/hearthledger/internal/period"
	"github.com/hearthledger/hearthledger/internal/summary"
)

// InstanceChangedJob recomputes occurrence matching and status for a mutated
// period instance, then refreshes the owning summary. Both recomputes rebuild
// from the full current state, so duplicate and out-of-order deliveries
// converge.
type InstanceChangedJob struct {
	Periods   *period.Service
	Summaries *summary.Service
	Logger    *slog.Logger
	clock     func() time.Time
}

// NewInstanceChangedJob constructs the job handler.
func NewInstanceChangedJob(periods *period.Service, summaries *summary.Service, logger *slog.Logger) *InstanceChangedJob {
	return &InstanceChangedJob{
		Periods:   periods,
		Summaries: summaries,
		Logger:    logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the instance changed job.
func (j *InstanceChangedJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload InstanceChangedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		j.Logger.Error("instance changed payload", slog.Any("error", err))
		return asynq.SkipRetry
	}

	// Guard against feedback loops: when the only difference between the
	// snapshots is recompute-owned bookkeeping, the previous pass already
	// converged and re-matching would just re-emit the same state.
	if period.BookkeepingOnlyChange(payload.Before, payload.After) {
		j.Logger.Debug("instance change is bookkeeping only",
			slog.String("instance_id", payload.InstanceID))
		return nil
	}

	snapshot := payload.After
	if snapshot == nil {
		snapshot = payload.Before
	}
	if snapshot == nil {
		return asynq.SkipRetry
	}

	if payload.After != nil {
		if _, _, err := j.Periods.Recompute(ctx, payload.Kind, payload.InstanceID, j.clock()); err != nil {
			return err
		}
	}

	// Summary refresh is non-critical: a failure here leaves the rollup
	// stale and recoverable via the explicit recalculation endpoint.
	if err := j.Summaries.Rebuild(ctx, snapshot.OwnerID, snapshot.PeriodType, snapshot.SourcePeriodID); err != nil {
		j.Logger.Error("summary rebuild",
			slog.String("owner_id", snapshot.OwnerID),
			slog.String("source_period_id", snapshot.SourcePeriodID),
			slog.Any("error", err))
	}
	return nil
}
