package period

import (
	"fmt"
	"time"

	"github.com/hearthledger/hearthledger/internal/calendar"
)

// Kind enumerates the obligation kinds sharing the period-instance model.
type Kind string

const (
	KindBudget  Kind = "budget"
	KindOutflow Kind = "outflow"
	KindInflow  Kind = "inflow"
)

// AllKinds lists every obligation kind.
func AllKinds() []Kind {
	return []Kind{KindBudget, KindOutflow, KindInflow}
}

// Valid reports whether the kind is known.
func (k Kind) Valid() bool {
	switch k {
	case KindBudget, KindOutflow, KindInflow:
		return true
	}
	return false
}

// Frequency enumerates obligation recurrence cycles.
type Frequency string

const (
	FrequencyWeekly      Frequency = "WEEKLY"
	FrequencyBiweekly    Frequency = "BIWEEKLY"
	FrequencySemiMonthly Frequency = "SEMI_MONTHLY"
	FrequencyMonthly     Frequency = "MONTHLY"
	FrequencyAnnually    Frequency = "ANNUALLY"
)

// CycleDays returns the average length of one recurrence cycle in days.
func (f Frequency) CycleDays() float64 {
	switch f {
	case FrequencyWeekly:
		return 7
	case FrequencyBiweekly:
		return 14
	case FrequencySemiMonthly:
		return 365.25 / 24
	case FrequencyMonthly:
		return 365.25 / 12
	case FrequencyAnnually:
		return 365.25
	}
	return 0
}

// Valid reports whether the frequency is known.
func (f Frequency) Valid() bool {
	return f.CycleDays() > 0
}

// Unit returns the human-readable occurrence unit for status labels.
func (f Frequency) Unit() string {
	switch f {
	case FrequencyWeekly:
		return "weeks"
	case FrequencyMonthly:
		return "months"
	case FrequencyAnnually:
		return "years"
	default:
		return "payments"
	}
}

// Status enumerates payment states of a period instance.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusDueSoon   Status = "DUE_SOON"
	StatusPartial   Status = "PARTIAL"
	StatusPaid      Status = "PAID"
	StatusPaidEarly Status = "PAID_EARLY"
	StatusOverdue   Status = "OVERDUE"
)

// PaymentType classifies a transaction split.
type PaymentType string

const (
	PaymentRegular        PaymentType = "regular"
	PaymentCatchUp        PaymentType = "catch_up"
	PaymentAdvance        PaymentType = "advance"
	PaymentExtraPrincipal PaymentType = "extra_principal"
)

// SplitRef is the portion of a ledger transaction attributed to a period
// instance. The propagator maintains these; the occurrence tracker and status
// calculator read them.
type SplitRef struct {
	TransactionID string      `json:"transactionId"`
	Amount        float64     `json:"amount"`
	PaymentType   PaymentType `json:"paymentType"`
	PaymentDate   time.Time   `json:"paymentDate"`
}

// OccurrenceSet tracks discrete due dates inside an instance whose obligation
// recurs faster than the containing period. The three slices are parallel:
// PaidFlags[i] is true exactly when TransactionIDs[i] is non-empty.
type OccurrenceSet struct {
	DueDates       []time.Time `json:"dueDates"`
	PaidFlags      []bool      `json:"paidFlags"`
	TransactionIDs []string    `json:"transactionIds"`
	NumberPaid     int         `json:"numberPaid"`
	NumberUnpaid   int         `json:"numberUnpaid"`
}

// Validate checks the parallel-array invariant.
func (o *OccurrenceSet) Validate() error {
	if o == nil {
		return nil
	}
	if len(o.DueDates) != len(o.PaidFlags) || len(o.DueDates) != len(o.TransactionIDs) {
		return fmt.Errorf("occurrence arrays out of sync: %d due dates, %d flags, %d transaction ids",
			len(o.DueDates), len(o.PaidFlags), len(o.TransactionIDs))
	}
	for i := range o.PaidFlags {
		if o.PaidFlags[i] != (o.TransactionIDs[i] != "") {
			return fmt.Errorf("occurrence %d: paid flag and transaction id disagree", i)
		}
	}
	return nil
}

// PaymentPercentage returns NumberPaid over the total as a percentage.
func (o *OccurrenceSet) PaymentPercentage() float64 {
	if o == nil || len(o.DueDates) == 0 {
		return 0
	}
	return float64(o.NumberPaid) / float64(len(o.DueDates)) * 100
}

// PeriodInstance is one obligation's allocation for one source period. Exactly
// one exists per (obligation, period type, source period). Instances are
// soft-deactivated rather than deleted to preserve payment history.
type PeriodInstance struct {
	ID             string
	ObligationID   string
	OwnerID        string
	Kind           Kind
	PeriodType     calendar.PeriodType
	SourcePeriodID string
	PeriodStart    time.Time
	PeriodEnd      time.Time
	Allocated      float64
	Paid           float64
	Remaining      float64
	Status         Status
	IsActive       bool
	IsDuePeriod    bool
	DueDate        time.Time
	SplitRefs      []SplitRef
	Occurrences    *OccurrenceSet
	LastCalculated time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// InstanceID derives the deterministic instance identifier.
func InstanceID(obligationID, sourcePeriodID string) string {
	return obligationID + "_" + sourcePeriodID
}

// ContainsDate reports whether the instance's range covers the date,
// inclusive on both ends at day resolution.
func (p *PeriodInstance) ContainsDate(date time.Time) bool {
	d := dayOf(date)
	return !d.Before(dayOf(p.PeriodStart)) && !d.After(dayOf(p.PeriodEnd))
}

// OverlapsRange reports whether the instance's range intersects [start, end].
func (p *PeriodInstance) OverlapsRange(start, end time.Time) bool {
	return !dayOf(p.PeriodEnd).Before(dayOf(start)) && !dayOf(p.PeriodStart).After(dayOf(end))
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
