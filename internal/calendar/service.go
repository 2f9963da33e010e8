package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/hearthledger/hearthledger/internal/shared"
)

// Service answers calendar lookups for the allocation and matching paths.
// The calendar is read-only here; absence of a needed range is fatal for the
// requesting operation and is never papered over with synthesized periods.
type Service struct {
	repo Repository
}

// NewService builds Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetByID fetches one source period.
func (s *Service) GetByID(ctx context.Context, id string) (SourcePeriod, error) {
	return s.repo.GetByID(ctx, id)
}

// Current returns the period flagged current for the granularity.
func (s *Service) Current(ctx context.Context, periodType PeriodType) (SourcePeriod, error) {
	return s.repo.Current(ctx, periodType)
}

// Window returns the periods with index in [current-before, current+after],
// used for eager summary pre-creation.
func (s *Service) Window(ctx context.Context, periodType PeriodType, before, after int64) ([]SourcePeriod, error) {
	current, err := s.repo.Current(ctx, periodType)
	if err != nil {
		return nil, err
	}
	periods, err := s.repo.ByIndexRange(ctx, periodType, current.Index-before, current.Index+after)
	if err != nil {
		return nil, err
	}
	if len(periods) == 0 {
		return nil, fmt.Errorf("calendar: empty %s window around index %d: %w",
			periodType, current.Index, shared.ErrPreconditionNotMet)
	}
	return periods, nil
}

// Overlapping returns the periods of the granularity intersecting [start, end].
// An empty result is a fatal precondition failure: downstream allocation
// cannot proceed without calendar coverage.
func (s *Service) Overlapping(ctx context.Context, periodType PeriodType, start, end time.Time) ([]SourcePeriod, error) {
	periods, err := s.repo.OverlappingRange(ctx, periodType, start, end)
	if err != nil {
		return nil, err
	}
	if len(periods) == 0 {
		return nil, fmt.Errorf("calendar: no %s periods cover %s..%s: %w",
			periodType, start.Format("2006-01-02"), end.Format("2006-01-02"), shared.ErrPreconditionNotMet)
	}
	return periods, nil
}

// ContainingDate returns the single period of the granularity covering date.
func (s *Service) ContainingDate(ctx context.Context, periodType PeriodType, date time.Time) (SourcePeriod, error) {
	return s.repo.ContainingDate(ctx, periodType, date)
}
