package period

import (
	"fmt"
	"time"
)

// dueSoonWindow is how close a due date has to be before an unpaid instance
// reports DUE_SOON instead of PENDING.
const dueSoonWindow = 3 * 24 * time.Hour

// StatusInput collects everything the status calculation reads. The function
// is pure: identical inputs always yield the identical status.
type StatusInput struct {
	IsDuePeriod     bool
	DueDate         time.Time
	ExpectedDueDate time.Time
	AmountDue       float64
	Splits          []SplitRef
	Now             time.Time
}

// PaidTotal sums split amounts that satisfy the due amount. Extra-principal
// splits are retained for reporting but never count toward due satisfaction.
func PaidTotal(splits []SplitRef) float64 {
	total := 0.0
	for _, s := range splits {
		if s.PaymentType == PaymentExtraPrincipal {
			continue
		}
		total += s.Amount
	}
	return total
}

// ComputeStatus derives the payment status of a period instance.
func ComputeStatus(in StatusInput) Status {
	totalPaid := PaidTotal(in.Splits)

	if in.IsDuePeriod && in.AmountDue > 0 {
		switch {
		case totalPaid >= in.AmountDue:
			if in.Now.Before(in.DueDate) {
				return StatusPaidEarly
			}
			return StatusPaid
		case totalPaid > 0:
			if in.Now.After(in.DueDate) {
				return StatusOverdue
			}
			return StatusPartial
		default:
			if in.Now.After(in.DueDate) {
				return StatusOverdue
			}
			if in.DueDate.Sub(in.Now) < dueSoonWindow {
				return StatusDueSoon
			}
			return StatusPending
		}
	}

	// Advance payments can land on a non-due period.
	if !in.IsDuePeriod && totalPaid > 0 {
		return StatusPaid
	}

	return StatusPending
}

// EnhancedStatus augments the plain status with occurrence progress.
type EnhancedStatus struct {
	Status            Status
	OccurrencesPaid   int
	OccurrencesTotal  int
	PaymentPercentage float64
	Display           string
}

// ComputeEnhancedStatus reports occurrence counts and a human-readable
// progress string alongside the base status.
func ComputeEnhancedStatus(in StatusInput, occ *OccurrenceSet, freq Frequency) EnhancedStatus {
	out := EnhancedStatus{Status: ComputeStatus(in)}
	if occ == nil || len(occ.DueDates) == 0 {
		return out
	}
	out.OccurrencesPaid = occ.NumberPaid
	out.OccurrencesTotal = len(occ.DueDates)
	out.PaymentPercentage = occ.PaymentPercentage()
	out.Display = fmt.Sprintf("%d of %d %s paid", occ.NumberPaid, len(occ.DueDates), freq.Unit())
	return out
}
