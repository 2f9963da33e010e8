package period

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hearthledger/hearthledger/internal/calendar"
	"github.com/hearthledger/hearthledger/internal/observability"
)

// GenerationResult carries the bookkeeping an obligation records after its
// instances were generated.
type GenerationResult struct {
	FirstPeriodID  string
	LastPeriodID   string
	GeneratedUntil time.Time
	NeedsExtension bool
	InstanceCount  int
}

// ChangeNotifier publishes instance change notifications. Delivery is
// at-least-once and unordered; handlers must be idempotent.
type ChangeNotifier interface {
	PeriodInstanceChanged(ctx context.Context, before, after *PeriodInstance) error
}

// Service orchestrates allocation generation and instance recomputation.
type Service struct {
	calendar  *calendar.Service
	repo      Repository
	logger    *slog.Logger
	metrics   *observability.Metrics
	tolerance time.Duration
}

// NewService builds Service instance.
func NewService(cal *calendar.Service, repo Repository, logger *slog.Logger, metrics *observability.Metrics, tolerance time.Duration) *Service {
	if tolerance <= 0 {
		tolerance = DefaultOccurrenceTolerance
	}
	return &Service{calendar: cal, repo: repo, logger: logger, metrics: metrics, tolerance: tolerance}
}

// Repo exposes the instance repository for collaborating services.
func (s *Service) Repo() Repository {
	return s.repo
}

// Generate creates one instance per source period overlapping [from, to] for
// every granularity, persisting them in chunked batches. An empty calendar
// range is fatal: the caller must populate the calendar first.
func (s *Service) Generate(ctx context.Context, ob ObligationSpec, from, to time.Time) (*GenerationResult, error) {
	if err := ob.Validate(); err != nil {
		return nil, err
	}
	if ob.FixedEndDate != nil && ob.FixedEndDate.Before(to) {
		to = *ob.FixedEndDate
	}

	now := time.Now().UTC()
	result := &GenerationResult{
		GeneratedUntil: to,
		NeedsExtension: ob.FixedEndDate == nil,
	}

	var all []PeriodInstance
	for _, periodType := range calendar.AllPeriodTypes() {
		periods, err := s.calendar.Overlapping(ctx, periodType, from, to)
		if err != nil {
			return nil, fmt.Errorf("period: generate %s instances for obligation %s: %w", periodType, ob.ID, err)
		}
		instances := GenerateInstances(ob, periods, now)
		all = append(all, instances...)

		if periodType == calendar.PeriodTypeMonthly && len(periods) > 0 {
			result.FirstPeriodID = periods[0].ID
			result.LastPeriodID = periods[len(periods)-1].ID
		}
	}

	written, err := s.repo.UpsertAllocations(ctx, all)
	if err != nil {
		// Chunks already committed stay committed; the upsert is idempotent
		// so a redelivered generation converges.
		return nil, fmt.Errorf("period: persist %d of %d instances: %w", written, len(all), err)
	}
	result.InstanceCount = written

	s.logger.Info("generated period instances",
		slog.String("obligation_id", ob.ID),
		slog.String("kind", string(ob.Kind)),
		slog.Int("instances", written),
		slog.Time("generated_until", to))
	return result, nil
}

// Recompute rebuilds the occurrence arrays and status of one instance from
// its current split refs, persisting only when something changed. The rebuild
// is a pure function of current state, so duplicate deliveries are harmless.
func (s *Service) Recompute(ctx context.Context, kind Kind, instanceID string, now time.Time) (*PeriodInstance, bool, error) {
	inst, err := s.repo.GetByID(ctx, kind, instanceID)
	if err != nil {
		return nil, false, err
	}

	occChanged := RebuildOccurrences(inst, s.tolerance)
	if occChanged && s.metrics != nil {
		s.metrics.OccurrenceRebuilds.Inc()
	}

	status := ComputeStatus(StatusInput{
		IsDuePeriod: inst.IsDuePeriod,
		DueDate:     inst.DueDate,
		AmountDue:   inst.Allocated,
		Splits:      inst.SplitRefs,
		Now:         now,
	})
	statusChanged := status != inst.Status
	inst.Status = status

	if !occChanged && !statusChanged {
		return inst, false, nil
	}

	inst.LastCalculated = now
	if _, err := s.repo.SaveMutable(ctx, []PeriodInstance{*inst}); err != nil {
		return nil, false, fmt.Errorf("period: save recompute of %s: %w", instanceID, err)
	}
	return inst, true, nil
}

// Deactivate soft-deactivates every instance of an obligation, preserving
// historical payment data.
func (s *Service) Deactivate(ctx context.Context, kind Kind, obligationID string) error {
	return s.repo.Deactivate(ctx, kind, obligationID)
}
