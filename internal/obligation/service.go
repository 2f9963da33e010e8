package obligation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hearthledger/hearthledger/internal/period"
)

// Notifier publishes obligation lifecycle events: the creation event drives
// the historical backfill and the eager summary warm-up.
type Notifier interface {
	ObligationCreated(ctx context.Context, ob *Obligation) error
}

// Service manages recurring obligations and their instance generation.
type Service struct {
	repo     Repository
	periods  *period.Service
	notifier Notifier
	logger   *slog.Logger
	horizon  time.Duration
}

// NewService builds Service instance.
func NewService(repo Repository, periods *period.Service, notifier Notifier, logger *slog.Logger, horizon time.Duration) *Service {
	return &Service{repo: repo, periods: periods, notifier: notifier, logger: logger, horizon: horizon}
}

// Create persists the obligation and generates its period instances from the
// first date through the generation horizon, recording the bookkeeping
// markers. The historical backfill runs asynchronously off the creation event.
func (s *Service) Create(ctx context.Context, ob *Obligation) (*Obligation, error) {
	if ob.ID == "" {
		ob.ID = uuid.NewString()
	}
	ob.NeedsExtension = ob.FixedEndDate == nil

	spec := ob.Spec()
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, ob); err != nil {
		return nil, err
	}

	result, err := s.periods.Generate(ctx, spec, ob.FirstDate, time.Now().UTC().Add(s.horizon))
	if err != nil {
		return nil, fmt.Errorf("obligation: generate instances for %s: %w", ob.ID, err)
	}
	ob.FirstGeneratedPeriodID = result.FirstPeriodID
	ob.LastGeneratedPeriodID = result.LastPeriodID
	ob.GeneratedUntil = result.GeneratedUntil
	ob.NeedsExtension = result.NeedsExtension
	if err := s.repo.UpdateBookkeeping(ctx, ob.ID, *result); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		if err := s.notifier.ObligationCreated(ctx, ob); err != nil {
			s.logger.Error("enqueue obligation created",
				slog.String("obligation_id", ob.ID), slog.Any("error", err))
		}
	}
	return ob, nil
}

// Get fetches one obligation scoped to its owner.
func (s *Service) Get(ctx context.Context, ownerID, id string) (*Obligation, error) {
	return s.repo.GetByID(ctx, ownerID, id)
}

// List returns the owner's active obligations.
func (s *Service) List(ctx context.Context, ownerID string) ([]Obligation, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// NameIndex maps the owner's obligation ids to display names, used when
// denormalizing summary entries.
func (s *Service) NameIndex(ctx context.Context, ownerID string) (map[string]string, error) {
	obs, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(obs))
	for i := range obs {
		names[obs[i].ID] = obs[i].Name
	}
	return names, nil
}

// Deactivate retires the obligation and soft-deactivates its instances,
// keeping historical payment data queryable.
func (s *Service) Deactivate(ctx context.Context, ownerID, id string) error {
	ob, err := s.repo.GetByID(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, ownerID, id); err != nil {
		return err
	}
	return s.periods.Deactivate(ctx, ob.Kind, ob.ID)
}

// ExtendGenerations tops up instance generation for open-ended obligations
// whose generated-until marker has fallen inside the horizon. Driven by the
// nightly cron; idempotent because generation upserts converge.
func (s *Service) ExtendGenerations(ctx context.Context) (int, error) {
	until := time.Now().UTC().Add(s.horizon)
	obs, err := s.repo.ListNeedingExtension(ctx, until)
	if err != nil {
		return 0, err
	}
	extended := 0
	for i := range obs {
		ob := &obs[i]
		from := ob.GeneratedUntil
		if from.IsZero() {
			from = ob.FirstDate
		}
		result, err := s.periods.Generate(ctx, ob.Spec(), from, until)
		if err != nil {
			s.logger.Error("extend generation",
				slog.String("obligation_id", ob.ID), slog.Any("error", err))
			continue
		}
		if err := s.repo.UpdateBookkeeping(ctx, ob.ID, *result); err != nil {
			s.logger.Error("extend bookkeeping",
				slog.String("obligation_id", ob.ID), slog.Any("error", err))
			continue
		}
		extended++
	}
	return extended, nil
}
