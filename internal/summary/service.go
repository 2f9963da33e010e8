package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/hearthledger/hearthledger/internal/calendar"
	"github.com/hearthledger/hearthledger/internal/observability"
	"github.com/hearthledger/hearthledger/internal/period"
	"github.com/hearthledger/hearthledger/internal/shared"
)

// DefaultDebounce is the window inside which repeated rebuild requests for
// the same summary are skipped.
const DefaultDebounce = 5 * time.Second

// preCreateSpan is the number of source periods selected on each side of the
// current one when warming a new account, per granularity.
const preCreateSpan = 12

// NameResolver supplies obligation display names for denormalized entries.
type NameResolver interface {
	NameIndex(ctx context.Context, ownerID string) (map[string]string, error)
}

// Service builds and maintains the per-owner-per-period rollups. Every
// rebuild recomputes the document from the full active instance set, so
// duplicate or out-of-order change notifications converge to the same state.
type Service struct {
	repo     Repository
	periods  period.Repository
	calendar *calendar.Service
	names    NameResolver
	cache    *Cache
	metrics  *observability.Metrics
	logger   *slog.Logger
	debounce time.Duration
	group    singleflight.Group
	now      func() time.Time
}

// NewService builds Service instance.
func NewService(repo Repository, periods period.Repository, cal *calendar.Service, names NameResolver, cache *Cache, metrics *observability.Metrics, logger *slog.Logger, debounce time.Duration) *Service {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Service{
		repo:     repo,
		periods:  periods,
		calendar: cal,
		names:    names,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		debounce: debounce,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the summary, synthesizing and persisting it on first read.
// Concurrent misses for the same key collapse into one build.
func (s *Service) Get(ctx context.Context, ownerID string, periodType calendar.PeriodType, sourcePeriodID string, includeEntries bool) (*UserPeriodSummary, error) {
	if !periodType.Valid() {
		return nil, fmt.Errorf("summary: invalid period type %q: %w", periodType, shared.ErrValidation)
	}
	id := SummaryID(ownerID, periodType, sourcePeriodID)
	var out UserPeriodSummary
	err := s.cache.FetchJSON(ctx, id, &out, func(ctx context.Context) (interface{}, error) {
		v, err, _ := s.group.Do(id, func() (interface{}, error) {
			existing, err := s.repo.GetByID(ctx, id)
			if err == nil {
				return existing, nil
			}
			if !errors.Is(err, shared.ErrNotFound) {
				return nil, err
			}
			sp, err := s.calendar.GetByID(ctx, sourcePeriodID)
			if err != nil {
				return nil, err
			}
			built, err := s.build(ctx, ownerID, sp)
			if err != nil {
				return nil, err
			}
			if err := s.repo.Upsert(ctx, built); err != nil {
				return nil, err
			}
			return built, nil
		})
		if err != nil {
			return nil, err
		}
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	if !includeEntries {
		out = out.WithoutEntries()
	}
	return &out, nil
}

// Rebuild recomputes the summary after a constituent instance changed.
// Rebuilds inside the debounce window are skipped; the debounce is a
// performance heuristic and the recompute itself stays idempotent, so a
// lost race costs duplicate work, not correctness.
func (s *Service) Rebuild(ctx context.Context, ownerID string, periodType calendar.PeriodType, sourcePeriodID string) error {
	if !periodType.Valid() {
		return fmt.Errorf("summary: invalid period type %q: %w", periodType, shared.ErrValidation)
	}
	id := SummaryID(ownerID, periodType, sourcePeriodID)
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return err
	}
	if existing != nil && s.now().Sub(existing.LastRecalculated) < s.debounce {
		if s.metrics != nil {
			s.metrics.DebounceSkips.Inc()
		}
		s.logger.Debug("summary rebuild debounced", slog.String("summary_id", id))
		return nil
	}
	_, err = s.recompute(ctx, ownerID, sourcePeriodID)
	return err
}

// Recalculate forces a recompute regardless of the debounce window.
func (s *Service) Recalculate(ctx context.Context, ownerID string, periodType calendar.PeriodType, sourcePeriodID string, includeEntries bool) (*UserPeriodSummary, error) {
	if !periodType.Valid() {
		return nil, fmt.Errorf("summary: invalid period type %q: %w", periodType, shared.ErrValidation)
	}
	built, err := s.recompute(ctx, ownerID, sourcePeriodID)
	if err != nil {
		return nil, err
	}
	if !includeEntries {
		stripped := built.WithoutEntries()
		return &stripped, nil
	}
	return built, nil
}

// PreCreate warms the ±preCreateSpan index window around the current period
// of every granularity for a new owner, persisting all documents in chunked
// batches so first reads never compute. Returns the number of documents
// written.
func (s *Service) PreCreate(ctx context.Context, ownerID string) (int, error) {
	types := calendar.AllPeriodTypes()
	built := make([][]UserPeriodSummary, len(types))

	g, gctx := errgroup.WithContext(ctx)
	for i, periodType := range types {
		i, periodType := i, periodType
		g.Go(func() error {
			sps, err := s.calendar.Window(gctx, periodType, preCreateSpan, preCreateSpan)
			if err != nil {
				return err
			}
			docs := make([]UserPeriodSummary, 0, len(sps))
			for _, sp := range sps {
				doc, err := s.build(gctx, ownerID, sp)
				if err != nil {
					return err
				}
				docs = append(docs, *doc)
			}
			built[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var all []UserPeriodSummary
	for _, docs := range built {
		all = append(all, docs...)
	}
	written, err := s.repo.UpsertBatch(ctx, all)
	if err != nil {
		return written, fmt.Errorf("summary: precreate for %s: %w", ownerID, err)
	}
	return written, nil
}

func (s *Service) recompute(ctx context.Context, ownerID, sourcePeriodID string) (*UserPeriodSummary, error) {
	sp, err := s.calendar.GetByID(ctx, sourcePeriodID)
	if err != nil {
		return nil, err
	}
	built, err := s.build(ctx, ownerID, sp)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(ctx, built); err != nil {
		return nil, err
	}
	if err := s.cache.Invalidate(ctx, built.ID); err != nil {
		s.logger.Warn("summary cache invalidate", slog.String("summary_id", built.ID), slog.Any("error", err))
	}
	if s.metrics != nil {
		s.metrics.SummaryRecomputes.Inc()
	}
	return built, nil
}

// build assembles the document from every active instance across the three
// obligation kinds for the (owner, period) key.
func (s *Service) build(ctx context.Context, ownerID string, sp calendar.SourcePeriod) (*UserPeriodSummary, error) {
	names, err := s.names.NameIndex(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	doc := &UserPeriodSummary{
		ID:             SummaryID(ownerID, sp.Type, sp.ID),
		OwnerID:        ownerID,
		PeriodType:     sp.Type,
		SourcePeriodID: sp.ID,
		PeriodStart:    sp.StartDate,
		PeriodEnd:      sp.EndDate,
	}
	for _, kind := range period.AllKinds() {
		instances, err := s.periods.ListActiveForOwnerPeriod(ctx, kind, ownerID, sp.Type, sp.ID)
		if err != nil {
			return nil, err
		}
		entries, totals := buildEntries(instances, names)
		switch kind {
		case period.KindBudget:
			doc.BudgetEntries, doc.BudgetTotals = entries, totals
		case period.KindOutflow:
			doc.OutflowEntries, doc.OutflowTotals = entries, totals
		case period.KindInflow:
			doc.InflowEntries, doc.InflowTotals = entries, totals
		}
	}

	income := doc.InflowTotals.Paid
	expenses := doc.BudgetTotals.Paid + doc.OutflowTotals.Paid
	doc.CrossMetrics = CrossMetrics{
		TotalIncome:   income,
		TotalExpenses: expenses,
		NetCashFlow:   income - expenses,
	}
	if income > 0 {
		doc.CrossMetrics.SavingsRate = (income - expenses) / income * 100
	}
	doc.LastRecalculated = s.now()
	return doc, nil
}

func buildEntries(instances []period.PeriodInstance, names map[string]string) ([]Entry, KindTotals) {
	entries := make([]Entry, 0, len(instances))
	var totals KindTotals
	for i := range instances {
		inst := &instances[i]
		entry := Entry{
			ObligationID: inst.ObligationID,
			Name:         names[inst.ObligationID],
			Allocated:    inst.Allocated,
			Paid:         inst.Paid,
			Remaining:    inst.Remaining,
			Status:       inst.Status,
			IsDuePeriod:  inst.IsDuePeriod,
		}
		if !inst.DueDate.IsZero() {
			due := inst.DueDate
			entry.DueDate = &due
		}
		if inst.Occurrences != nil {
			pct := inst.Occurrences.PaymentPercentage()
			entry.OccurrencePct = &pct
		}
		entries = append(entries, entry)
		totals.Allocated += inst.Allocated
		totals.Paid += inst.Paid
		totals.Remaining += inst.Remaining
	}
	return entries, totals
}
