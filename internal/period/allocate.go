package period

import (
	"fmt"
	"time"

	"github.com/hearthledger/hearthledger/internal/calendar"
	"github.com/hearthledger/hearthledger/internal/shared"
)

// ObligationSpec is the allocation input: the recurring obligation record as
// the generator needs it.
type ObligationSpec struct {
	ID           string
	OwnerID      string
	Kind         Kind
	Name         string
	Amount       float64
	Frequency    Frequency
	FirstDate    time.Time
	FixedEndDate *time.Time
}

// Validate rejects malformed allocation input.
func (ob ObligationSpec) Validate() error {
	if ob.ID == "" || ob.OwnerID == "" {
		return fmt.Errorf("obligation id and owner required: %w", shared.ErrValidation)
	}
	if !ob.Kind.Valid() {
		return fmt.Errorf("unknown obligation kind %q: %w", ob.Kind, shared.ErrValidation)
	}
	if !ob.Frequency.Valid() {
		return fmt.Errorf("unknown frequency %q: %w", ob.Frequency, shared.ErrValidation)
	}
	if ob.Amount <= 0 {
		return fmt.Errorf("amount must be positive: %w", shared.ErrValidation)
	}
	if ob.FirstDate.IsZero() {
		return fmt.Errorf("first date required: %w", shared.ErrValidation)
	}
	return nil
}

// AllocatedAmount computes the share of the obligation withheld in one source
// period. A monthly obligation maps to the full amount in a monthly period and
// half in a bi-monthly one; across granularities it accrues day by day at
// amount/daysInMonth(day), which handles periods spanning a month boundary.
// Non-monthly frequencies prorate by cycle length instead.
func AllocatedAmount(ob ObligationSpec, p calendar.SourcePeriod) float64 {
	if ob.Frequency == FrequencyMonthly {
		switch p.Type {
		case calendar.PeriodTypeMonthly:
			return ob.Amount
		case calendar.PeriodTypeBiMonthly:
			return ob.Amount * 0.5
		default:
			return dayWeightedMonthly(ob.Amount, p.StartDate, p.EndDate)
		}
	}
	return float64(p.Days()) / ob.Frequency.CycleDays() * ob.Amount
}

func dayWeightedMonthly(amount float64, start, end time.Time) float64 {
	total := 0.0
	for d := dayOf(start); !d.After(dayOf(end)); d = d.AddDate(0, 0, 1) {
		total += amount / float64(daysInMonth(d))
	}
	return total
}

func daysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DueDatesWithin returns the obligation's scheduled due dates inside
// [start, end], derived from FirstDate and the recurrence cycle. A fixed end
// date truncates the schedule.
func DueDatesWithin(ob ObligationSpec, start, end time.Time) []time.Time {
	var dates []time.Time
	limit := dayOf(end)
	if ob.FixedEndDate != nil && dayOf(*ob.FixedEndDate).Before(limit) {
		limit = dayOf(*ob.FixedEndDate)
	}
	from := dayOf(start)

	appendIf := func(d time.Time) {
		if !d.Before(from) && !d.After(limit) && !d.Before(dayOf(ob.FirstDate)) {
			dates = append(dates, d)
		}
	}

	switch ob.Frequency {
	case FrequencyWeekly, FrequencyBiweekly:
		step := 7
		if ob.Frequency == FrequencyBiweekly {
			step = 14
		}
		d := dayOf(ob.FirstDate)
		// Jump close to the window start instead of walking from FirstDate.
		if from.After(d) {
			gap := int(from.Sub(d).Hours() / 24)
			d = d.AddDate(0, 0, gap/step*step)
		}
		for ; !d.After(limit); d = d.AddDate(0, 0, step) {
			appendIf(d)
		}
	case FrequencySemiMonthly:
		// Two due dates per month: the anchor day and fifteen days later,
		// clamped to month length.
		first := dayOf(ob.FirstDate)
		for m := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC); !m.After(limit); m = m.AddDate(0, 1, 0) {
			appendIf(clampDay(m, first.Day()))
			appendIf(clampDay(m, first.Day()+15))
		}
	case FrequencyMonthly:
		first := dayOf(ob.FirstDate)
		for m := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC); !m.After(limit); m = m.AddDate(0, 1, 0) {
			appendIf(clampDay(m, first.Day()))
		}
	case FrequencyAnnually:
		first := dayOf(ob.FirstDate)
		for y := from.Year(); y <= limit.Year(); y++ {
			appendIf(time.Date(y, first.Month(), first.Day(), 0, 0, 0, 0, time.UTC))
		}
	}
	return dates
}

func clampDay(monthStart time.Time, day int) time.Time {
	max := daysInMonth(monthStart)
	if day > max {
		day = max
	}
	return time.Date(monthStart.Year(), monthStart.Month(), day, 0, 0, 0, 0, time.UTC)
}

// BuildInstance assembles one period instance for the obligation and source
// period. When the obligation recurs faster than the period an occurrence set
// is attached with one slot per scheduled due date.
func BuildInstance(ob ObligationSpec, p calendar.SourcePeriod, now time.Time) PeriodInstance {
	allocated := AllocatedAmount(ob, p)
	dueDates := DueDatesWithin(ob, p.StartDate, p.EndDate)

	inst := PeriodInstance{
		ID:             InstanceID(ob.ID, p.ID),
		ObligationID:   ob.ID,
		OwnerID:        ob.OwnerID,
		Kind:           ob.Kind,
		PeriodType:     p.Type,
		SourcePeriodID: p.ID,
		PeriodStart:    dayOf(p.StartDate),
		PeriodEnd:      dayOf(p.EndDate),
		Allocated:      allocated,
		Paid:           0,
		Remaining:      allocated,
		Status:         StatusPending,
		IsActive:       true,
		IsDuePeriod:    len(dueDates) > 0,
		LastCalculated: now,
	}
	if len(dueDates) > 0 {
		inst.DueDate = dueDates[len(dueDates)-1]
	}
	// More than one scheduled due date means the obligation recurs faster
	// than this granularity and needs per-occurrence tracking.
	if len(dueDates) > 1 {
		inst.Occurrences = &OccurrenceSet{
			DueDates:       dueDates,
			PaidFlags:      make([]bool, len(dueDates)),
			TransactionIDs: make([]string, len(dueDates)),
			NumberUnpaid:   len(dueDates),
		}
	}
	return inst
}

// GenerateInstances builds one instance per source period overlapping the
// target range, for every supplied period.
func GenerateInstances(ob ObligationSpec, periods []calendar.SourcePeriod, now time.Time) []PeriodInstance {
	instances := make([]PeriodInstance, 0, len(periods))
	for _, p := range periods {
		instances = append(instances, BuildInstance(ob, p, now))
	}
	return instances
}
