package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/hearthledger/hearthledger/internal/obligation"
)

// DefaultGenerationExtendSpec runs the generation top-up nightly at 02:30 UTC.
const DefaultGenerationExtendSpec = "30 2 * * *"

// GenerationExtendJob tops up period instance generation for open-ended
// obligations whose horizon has drifted too close.
type GenerationExtendJob struct {
	Obligations *obligation.Service
	Logger      *slog.Logger
	clock       func() time.Time
}

// NewGenerationExtendJob constructs the job handler.
func NewGenerationExtendJob(obligations *obligation.Service, logger *slog.Logger) *GenerationExtendJob {
	return &GenerationExtendJob{
		Obligations: obligations,
		Logger:      logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the nightly top-up.
func (j *GenerationExtendJob) Handle(ctx context.Context, task *asynq.Task) error {
	started := j.clock()
	extended, err := j.Obligations.ExtendGenerations(ctx)
	if err != nil {
		return err
	}
	j.Logger.Info("generation top-up complete",
		slog.Int("obligations", extended),
		slog.Duration("elapsed", j.clock().Sub(started)))
	return nil
}
