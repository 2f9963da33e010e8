package calendar

import "time"

// PeriodType enumerates the calendar granularities.
type PeriodType string

const (
	PeriodTypeWeekly    PeriodType = "weekly"
	PeriodTypeBiMonthly PeriodType = "bi_monthly"
	PeriodTypeMonthly   PeriodType = "monthly"
)

// AllPeriodTypes lists the three granularities in coarse-to-fine order.
func AllPeriodTypes() []PeriodType {
	return []PeriodType{PeriodTypeMonthly, PeriodTypeBiMonthly, PeriodTypeWeekly}
}

// Valid reports whether the period type is one of the known granularities.
func (t PeriodType) Valid() bool {
	switch t {
	case PeriodTypeWeekly, PeriodTypeBiMonthly, PeriodTypeMonthly:
		return true
	}
	return false
}

// SourcePeriod is one canonical calendar slot. Periods are pre-generated and
// immutable; every date-range boundary in the engine comes from here.
type SourcePeriod struct {
	ID         string
	Type       PeriodType
	StartDate  time.Time
	EndDate    time.Time
	Index      int64
	IsCurrent  bool
	Year       int
	Month      int
	WeekNumber int
}

// Contains reports whether the date falls inside the period, inclusive on
// both ends. Comparison is at day resolution.
func (p SourcePeriod) Contains(date time.Time) bool {
	d := truncateDay(date)
	return !d.Before(truncateDay(p.StartDate)) && !d.After(truncateDay(p.EndDate))
}

// Overlaps reports whether the period's range intersects [start, end].
func (p SourcePeriod) Overlaps(start, end time.Time) bool {
	return !truncateDay(p.EndDate).Before(truncateDay(start)) && !truncateDay(p.StartDate).After(truncateDay(end))
}

// Days returns the inclusive day count of the period.
func (p SourcePeriod) Days() int {
	return int(truncateDay(p.EndDate).Sub(truncateDay(p.StartDate)).Hours()/24) + 1
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
