package period

import (
	"time"
)

// DefaultOccurrenceTolerance is the widest gap between a split's payment date
// and an occurrence due date for the two to be matched.
const DefaultOccurrenceTolerance = 3 * 24 * time.Hour

// RebuildOccurrences re-derives the occurrence arrays from the instance's
// current split refs. It always rebuilds from scratch rather than patching
// incrementally, so redelivered or removed splits converge to the same state.
// Splits with no occurrence within tolerance stay counted in the paid amount
// but out of the occurrence stats. Returns whether anything changed.
func RebuildOccurrences(inst *PeriodInstance, tolerance time.Duration) bool {
	occ := inst.Occurrences
	if occ == nil || len(occ.DueDates) == 0 {
		return false
	}
	if tolerance <= 0 {
		tolerance = DefaultOccurrenceTolerance
	}

	prevFlags := append([]bool(nil), occ.PaidFlags...)
	prevIDs := append([]string(nil), occ.TransactionIDs...)

	flags := make([]bool, len(occ.DueDates))
	ids := make([]string, len(occ.DueDates))

	for _, split := range inst.SplitRefs {
		best := -1
		bestDist := tolerance + 1
		for i, due := range occ.DueDates {
			if flags[i] {
				continue
			}
			dist := split.PaymentDate.Sub(due)
			if dist < 0 {
				dist = -dist
			}
			if dist <= tolerance && dist < bestDist {
				best = i
				bestDist = dist
			}
		}
		if best >= 0 {
			flags[best] = true
			ids[best] = split.TransactionID
		}
	}

	occ.PaidFlags = flags
	occ.TransactionIDs = ids
	occ.NumberPaid = 0
	for _, f := range flags {
		if f {
			occ.NumberPaid++
		}
	}
	occ.NumberUnpaid = len(flags) - occ.NumberPaid

	for i := range flags {
		if flags[i] != prevFlags[i] || ids[i] != prevIDs[i] {
			return true
		}
	}
	return false
}

// BookkeepingOnlyChange reports whether the delta between two snapshots of the
// same instance is confined to occurrence/status bookkeeping. Change handlers
// use this to break the feedback loop where their own recompute writes would
// otherwise trigger another round of matching.
func BookkeepingOnlyChange(before, after *PeriodInstance) bool {
	if before == nil || after == nil {
		return false
	}
	if before.Allocated != after.Allocated ||
		before.Paid != after.Paid ||
		before.Remaining != after.Remaining ||
		before.IsActive != after.IsActive ||
		!before.PeriodStart.Equal(after.PeriodStart) ||
		!before.PeriodEnd.Equal(after.PeriodEnd) {
		return false
	}
	if len(before.SplitRefs) != len(after.SplitRefs) {
		return false
	}
	for i := range before.SplitRefs {
		b, a := before.SplitRefs[i], after.SplitRefs[i]
		if b.TransactionID != a.TransactionID || b.Amount != a.Amount ||
			b.PaymentType != a.PaymentType || !b.PaymentDate.Equal(a.PaymentDate) {
			return false
		}
	}
	return true
}
