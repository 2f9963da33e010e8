package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hearthledger/hearthledger/internal/calendar"
)

func weeklyBillInstance() *PeriodInstance {
	return &PeriodInstance{
		ID:             "ob-1_2025-M03",
		ObligationID:   "ob-1",
		OwnerID:        "owner-1",
		Kind:           KindOutflow,
		PeriodType:     calendar.PeriodTypeMonthly,
		SourcePeriodID: "2025-M03",
		PeriodStart:    day(2025, time.March, 1),
		PeriodEnd:      day(2025, time.March, 31),
		Allocated:      100,
		IsActive:       true,
		IsDuePeriod:    true,
		Occurrences: &OccurrenceSet{
			DueDates: []time.Time{
				day(2025, time.March, 3), day(2025, time.March, 10),
				day(2025, time.March, 17), day(2025, time.March, 24),
			},
			PaidFlags:      make([]bool, 4),
			TransactionIDs: make([]string, 4),
			NumberUnpaid:   4,
		},
	}
}

// A weekly bill with four occurrences and two matched payments reports half
// paid.
func TestRebuildOccurrencesTwoOfFourPaid(t *testing.T) {
	inst := weeklyBillInstance()
	inst.SplitRefs = []SplitRef{
		{TransactionID: "tx-1", Amount: 25, PaymentType: PaymentRegular, PaymentDate: day(2025, time.March, 3)},
		{TransactionID: "tx-2", Amount: 25, PaymentType: PaymentRegular, PaymentDate: day(2025, time.March, 11)},
	}

	changed := RebuildOccurrences(inst, DefaultOccurrenceTolerance)
	require.True(t, changed)

	occ := inst.Occurrences
	require.Equal(t, 2, occ.NumberPaid)
	require.Equal(t, 2, occ.NumberUnpaid)
	require.Equal(t, []bool{true, true, false, false}, occ.PaidFlags)
	require.Equal(t, []string{"tx-1", "tx-2", "", ""}, occ.TransactionIDs)
	require.InDelta(t, 50.0, occ.PaymentPercentage(), 1e-9)

	enhanced := ComputeEnhancedStatus(StatusInput{
		IsDuePeriod: true,
		DueDate:     day(2025, time.March, 24),
		AmountDue:   inst.Allocated,
		Splits:      inst.SplitRefs,
		Now:         day(2025, time.March, 12),
	}, occ, FrequencyWeekly)
	require.Equal(t, "2 of 4 weeks paid", enhanced.Display)
}

func TestRebuildOccurrencesRespectsTolerance(t *testing.T) {
	inst := weeklyBillInstance()
	// Five days from the nearest due date: outside the three-day window.
	inst.SplitRefs = []SplitRef{
		{TransactionID: "tx-1", Amount: 25, PaymentType: PaymentRegular, PaymentDate: day(2025, time.March, 29)},
	}

	changed := RebuildOccurrences(inst, DefaultOccurrenceTolerance)
	require.False(t, changed)
	require.Zero(t, inst.Occurrences.NumberPaid)

	// A wider window lets the same split match.
	changed = RebuildOccurrences(inst, 6*24*time.Hour)
	require.True(t, changed)
	require.Equal(t, 1, inst.Occurrences.NumberPaid)
	require.Equal(t, []bool{false, false, false, true}, inst.Occurrences.PaidFlags)
}

func TestRebuildOccurrencesPrefersNearestDueDate(t *testing.T) {
	inst := weeklyBillInstance()
	inst.SplitRefs = []SplitRef{
		{TransactionID: "tx-1", Amount: 25, PaymentType: PaymentRegular, PaymentDate: day(2025, time.March, 12)},
	}

	RebuildOccurrences(inst, DefaultOccurrenceTolerance)
	require.Equal(t, []bool{false, true, false, false}, inst.Occurrences.PaidFlags)
}

func TestRebuildOccurrencesDoesNotDoubleBook(t *testing.T) {
	inst := weeklyBillInstance()
	// Both splits land nearest to March 10; the second must spill to the
	// next unoccupied occurrence within tolerance.
	inst.SplitRefs = []SplitRef{
		{TransactionID: "tx-1", Amount: 25, PaymentType: PaymentRegular, PaymentDate: day(2025, time.March, 10)},
		{TransactionID: "tx-2", Amount: 25, PaymentType: PaymentRegular, PaymentDate: day(2025, time.March, 10)},
	}

	RebuildOccurrences(inst, 10*24*time.Hour)
	occ := inst.Occurrences
	require.Equal(t, 2, occ.NumberPaid)
	require.Equal(t, "tx-1", occ.TransactionIDs[1])
	require.NotEqual(t, occ.TransactionIDs[0], occ.TransactionIDs[1])
}

func TestRebuildOccurrencesIdempotent(t *testing.T) {
	inst := weeklyBillInstance()
	inst.SplitRefs = []SplitRef{
		{TransactionID: "tx-1", Amount: 25, PaymentType: PaymentRegular, PaymentDate: day(2025, time.March, 3)},
	}

	require.True(t, RebuildOccurrences(inst, DefaultOccurrenceTolerance))
	// Redelivery of the same state converges without reporting a change.
	require.False(t, RebuildOccurrences(inst, DefaultOccurrenceTolerance))
}

func TestRebuildOccurrencesClearsRemovedSplits(t *testing.T) {
	inst := weeklyBillInstance()
	inst.SplitRefs = []SplitRef{
		{TransactionID: "tx-1", Amount: 25, PaymentType: PaymentRegular, PaymentDate: day(2025, time.March, 3)},
	}
	RebuildOccurrences(inst, DefaultOccurrenceTolerance)
	require.Equal(t, 1, inst.Occurrences.NumberPaid)

	// Transaction deleted: the full rebuild drops its occurrence.
	inst.SplitRefs = nil
	require.True(t, RebuildOccurrences(inst, DefaultOccurrenceTolerance))
	require.Zero(t, inst.Occurrences.NumberPaid)
	require.Equal(t, 4, inst.Occurrences.NumberUnpaid)
}

func TestBookkeepingOnlyChange(t *testing.T) {
	before := weeklyBillInstance()
	after := weeklyBillInstance()

	// Occurrence bookkeeping differs, semantic fields match.
	after.Occurrences.PaidFlags = []bool{true, false, false, false}
	after.Occurrences.NumberPaid = 1
	after.Status = StatusPartial
	after.LastCalculated = day(2025, time.March, 12)
	require.True(t, BookkeepingOnlyChange(before, after))

	after.Paid = 25
	require.False(t, BookkeepingOnlyChange(before, after))

	require.False(t, BookkeepingOnlyChange(nil, after))
	require.False(t, BookkeepingOnlyChange(before, nil))
}

func TestBookkeepingOnlyChangeDetectsSplitEdits(t *testing.T) {
	before := weeklyBillInstance()
	after := weeklyBillInstance()
	before.SplitRefs = []SplitRef{{TransactionID: "tx-1", Amount: 25, PaymentType: PaymentRegular, PaymentDate: day(2025, time.March, 3)}}
	after.SplitRefs = []SplitRef{{TransactionID: "tx-1", Amount: 30, PaymentType: PaymentRegular, PaymentDate: day(2025, time.March, 3)}}
	require.False(t, BookkeepingOnlyChange(before, after))
}
