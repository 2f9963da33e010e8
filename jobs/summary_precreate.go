package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/hearthledger/hearthledger/internal/summary"
)

// SummaryPreCreateJob eagerly materializes the summary window around the
// current period for a new owner so first reads never compute on demand.
type SummaryPreCreateJob struct {
	Summaries *summary.Service
	Logger    *slog.Logger
}

// NewSummaryPreCreateJob constructs the job handler.
func NewSummaryPreCreateJob(summaries *summary.Service, logger *slog.Logger) *SummaryPreCreateJob {
	return &SummaryPreCreateJob{Summaries: summaries, Logger: logger}
}

// Handle executes the pre-creation. Upserts converge, so redelivery is safe.
func (j *SummaryPreCreateJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload SummaryPreCreatePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		j.Logger.Error("summary precreate payload", slog.Any("error", err))
		return asynq.SkipRetry
	}

	written, err := j.Summaries.PreCreate(ctx, payload.OwnerID)
	if err != nil {
		return err
	}
	j.Logger.Info("summary window warmed",
		slog.String("owner_id", payload.OwnerID), slog.Int("documents", written))
	return nil
}
