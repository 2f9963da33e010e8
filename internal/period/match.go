package period

import (
	"context"
	"fmt"
	"time"

	"github.com/hearthledger/hearthledger/internal/calendar"
	"github.com/hearthledger/hearthledger/internal/shared"
)

// MatchResult holds at most one period-instance id per granularity.
type MatchResult struct {
	MonthlyID   string
	BiMonthlyID string
	WeeklyID    string
	Found       int
}

// IDForType returns the matched instance id for the granularity.
func (m MatchResult) IDForType(t calendar.PeriodType) string {
	switch t {
	case calendar.PeriodTypeMonthly:
		return m.MonthlyID
	case calendar.PeriodTypeBiMonthly:
		return m.BiMonthlyID
	case calendar.PeriodTypeWeekly:
		return m.WeeklyID
	}
	return ""
}

func (m *MatchResult) set(t calendar.PeriodType, id string) {
	switch t {
	case calendar.PeriodTypeMonthly:
		if m.MonthlyID == "" {
			m.MonthlyID = id
			m.Found++
		}
	case calendar.PeriodTypeBiMonthly:
		if m.BiMonthlyID == "" {
			m.BiMonthlyID = id
			m.Found++
		}
	case calendar.PeriodTypeWeekly:
		if m.WeeklyID == "" {
			m.WeeklyID = id
			m.Found++
		}
	}
}

// Matcher resolves which period instances a transaction belongs to.
type Matcher struct {
	repo     Repository
	calendar CalendarPort
}

// CalendarPort is the slice of the calendar service the matcher needs.
type CalendarPort interface {
	GetByID(ctx context.Context, id string) (calendar.SourcePeriod, error)
}

// NewMatcher builds Matcher instance.
func NewMatcher(repo Repository, cal CalendarPort) *Matcher {
	return &Matcher{repo: repo, calendar: cal}
}

// MatchByDate finds, per granularity, the instance whose range contains the
// transaction date. Zero matches means the obligation's periods were never
// generated, which is fatal for the operation rather than silently skipped.
func (m *Matcher) MatchByDate(ctx context.Context, kind Kind, obligationID string, date time.Time) (MatchResult, error) {
	candidates, err := m.repo.FindContaining(ctx, kind, obligationID, date)
	if err != nil {
		return MatchResult{}, err
	}
	var result MatchResult
	for _, c := range candidates {
		result.set(c.PeriodType, c.ID)
	}
	if result.Found == 0 {
		return MatchResult{}, fmt.Errorf("period: no instances of obligation %s contain %s: %w",
			obligationID, date.Format("2006-01-02"), shared.ErrPreconditionNotMet)
	}
	return result, nil
}

// MatchByTargetPeriod resolves instances for an advance payment aimed at an
// explicit source period, independent of the transaction's actual payment
// date. Candidates overlap the target's range; a candidate sitting exactly on
// the target period wins for its granularity.
func (m *Matcher) MatchByTargetPeriod(ctx context.Context, kind Kind, obligationID, targetPeriodID string) (MatchResult, error) {
	target, err := m.calendar.GetByID(ctx, targetPeriodID)
	if err != nil {
		return MatchResult{}, err
	}
	candidates, err := m.repo.FindOverlapping(ctx, kind, obligationID, target.StartDate, target.EndDate)
	if err != nil {
		return MatchResult{}, err
	}

	var result MatchResult
	for _, c := range candidates {
		if c.SourcePeriodID == targetPeriodID {
			result.set(c.PeriodType, c.ID)
		}
	}
	for _, c := range candidates {
		result.set(c.PeriodType, c.ID)
	}
	if result.Found == 0 {
		return MatchResult{}, fmt.Errorf("period: no instances of obligation %s overlap target period %s: %w",
			obligationID, targetPeriodID, shared.ErrPreconditionNotMet)
	}
	return result, nil
}
