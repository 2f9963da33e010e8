package summary

import (
	"time"

	"github.com/hearthledger/hearthledger/internal/calendar"
	"github.com/hearthledger/hearthledger/internal/period"
)

// Entry is one obligation's denormalized line inside a summary document.
type Entry struct {
	ObligationID string        `json:"obligationId"`
	Name         string        `json:"name"`
	Allocated    float64       `json:"allocated"`
	Paid         float64       `json:"paid"`
	Remaining    float64       `json:"remaining"`
	Status       period.Status `json:"status"`
	IsDuePeriod  bool          `json:"isDuePeriod"`
	DueDate      *time.Time    `json:"dueDate,omitempty"`
	// OccurrencePct is present only for instances tracking intra-period
	// occurrences.
	OccurrencePct *float64 `json:"occurrencePaymentPercentage,omitempty"`
}

// KindTotals aggregates one obligation kind's entries.
type KindTotals struct {
	Allocated float64 `json:"allocated"`
	Paid      float64 `json:"paid"`
	Remaining float64 `json:"remaining"`
}

// CrossMetrics rolls the three kinds into owner-level cash-flow figures.
// Income and expenses are actuals (paid amounts), not plan.
type CrossMetrics struct {
	TotalIncome   float64 `json:"totalIncome"`
	TotalExpenses float64 `json:"totalExpenses"`
	NetCashFlow   float64 `json:"netCashFlow"`
	SavingsRate   float64 `json:"savingsRate"`
}

// UserPeriodSummary is the per-owner-per-period rollup document. It is always
// rebuilt from the full active instance set, never patched incrementally.
type UserPeriodSummary struct {
	ID               string              `json:"id"`
	OwnerID          string              `json:"ownerId"`
	PeriodType       calendar.PeriodType `json:"periodType"`
	SourcePeriodID   string              `json:"sourcePeriodId"`
	PeriodStart      time.Time           `json:"periodStart"`
	PeriodEnd        time.Time           `json:"periodEnd"`
	BudgetEntries    []Entry             `json:"budgetEntries,omitempty"`
	OutflowEntries   []Entry             `json:"outflowEntries,omitempty"`
	InflowEntries    []Entry             `json:"inflowEntries,omitempty"`
	BudgetTotals     KindTotals          `json:"budgetTotals"`
	OutflowTotals    KindTotals          `json:"outflowTotals"`
	InflowTotals     KindTotals          `json:"inflowTotals"`
	CrossMetrics     CrossMetrics        `json:"crossMetrics"`
	LastRecalculated time.Time           `json:"lastRecalculated"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// SummaryID derives the deterministic document identifier.
func SummaryID(ownerID string, periodType calendar.PeriodType, sourcePeriodID string) string {
	return ownerID + "_" + string(periodType) + "_" + sourcePeriodID
}

// WithoutEntries returns a copy stripped of the per-obligation entry arrays,
// keeping totals and cross metrics.
func (s UserPeriodSummary) WithoutEntries() UserPeriodSummary {
	s.BudgetEntries = nil
	s.OutflowEntries = nil
	s.InflowEntries = nil
	return s
}
