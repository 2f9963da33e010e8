package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hearthledger/hearthledger/internal/calendar"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func monthlyObligation(amount float64) ObligationSpec {
	return ObligationSpec{
		ID:        "ob-1",
		OwnerID:   "owner-1",
		Kind:      KindOutflow,
		Name:      "Mortgage",
		Amount:    amount,
		Frequency: FrequencyMonthly,
		FirstDate: day(2024, time.January, 15),
	}
}

func sourcePeriod(id string, t calendar.PeriodType, start, end time.Time) calendar.SourcePeriod {
	return calendar.SourcePeriod{ID: id, Type: t, StartDate: start, EndDate: end}
}

func TestAllocatedAmountMonthlyIntoMonthly(t *testing.T) {
	ob := monthlyObligation(90)
	p := sourcePeriod("2025-M03", calendar.PeriodTypeMonthly, day(2025, time.March, 1), day(2025, time.March, 31))
	require.Equal(t, 90.0, AllocatedAmount(ob, p))
}

func TestAllocatedAmountMonthlyIntoBiMonthly(t *testing.T) {
	ob := monthlyObligation(90)
	p := sourcePeriod("2025-B05", calendar.PeriodTypeBiMonthly, day(2025, time.March, 1), day(2025, time.March, 15))
	require.Equal(t, 45.0, AllocatedAmount(ob, p))
}

// A $90 monthly obligation withheld over the week Feb 26 - Mar 4: three
// February days at 90/28 plus four March days at 90/31.
func TestAllocatedAmountWeekSpanningMonthBoundary(t *testing.T) {
	ob := monthlyObligation(90)
	p := sourcePeriod("2025-W09", calendar.PeriodTypeWeekly, day(2025, time.February, 26), day(2025, time.March, 4))

	want := 3*(90.0/28) + 4*(90.0/31)
	got := AllocatedAmount(ob, p)
	require.InDelta(t, want, got, 1e-9)
	require.InDelta(t, 21.25, got, 0.01)
}

// Weekly allocations tiling a full calendar month must sum to the obligation
// amount.
func TestWeeklyAllocationsSumToMonthlyAmount(t *testing.T) {
	ob := monthlyObligation(90)
	weeks := []calendar.SourcePeriod{
		sourcePeriod("w1", calendar.PeriodTypeWeekly, day(2025, time.March, 1), day(2025, time.March, 7)),
		sourcePeriod("w2", calendar.PeriodTypeWeekly, day(2025, time.March, 8), day(2025, time.March, 14)),
		sourcePeriod("w3", calendar.PeriodTypeWeekly, day(2025, time.March, 15), day(2025, time.March, 21)),
		sourcePeriod("w4", calendar.PeriodTypeWeekly, day(2025, time.March, 22), day(2025, time.March, 28)),
		sourcePeriod("w5", calendar.PeriodTypeWeekly, day(2025, time.March, 29), day(2025, time.March, 31)),
	}
	total := 0.0
	for _, w := range weeks {
		total += AllocatedAmount(ob, w)
	}
	require.InDelta(t, 90.0, total, 1e-9)
}

func TestAllocatedAmountProratesOtherFrequencies(t *testing.T) {
	ob := monthlyObligation(70)
	ob.Frequency = FrequencyWeekly
	p := sourcePeriod("2025-M03", calendar.PeriodTypeMonthly, day(2025, time.March, 1), day(2025, time.March, 31))
	require.InDelta(t, 31.0/7*70, AllocatedAmount(ob, p), 1e-9)
}

func TestDueDatesWithinWeekly(t *testing.T) {
	ob := monthlyObligation(25)
	ob.Frequency = FrequencyWeekly
	ob.FirstDate = day(2025, time.March, 3)

	dates := DueDatesWithin(ob, day(2025, time.March, 1), day(2025, time.March, 31))
	require.Equal(t, []time.Time{
		day(2025, time.March, 3),
		day(2025, time.March, 10),
		day(2025, time.March, 17),
		day(2025, time.March, 24),
		day(2025, time.March, 31),
	}, dates)
}

func TestDueDatesWithinMonthlyClampsShortMonths(t *testing.T) {
	ob := monthlyObligation(1200)
	ob.FirstDate = day(2025, time.January, 31)

	dates := DueDatesWithin(ob, day(2025, time.February, 1), day(2025, time.February, 28))
	require.Equal(t, []time.Time{day(2025, time.February, 28)}, dates)
}

func TestDueDatesWithinSemiMonthly(t *testing.T) {
	ob := monthlyObligation(500)
	ob.Frequency = FrequencySemiMonthly
	ob.FirstDate = day(2025, time.January, 1)

	dates := DueDatesWithin(ob, day(2025, time.March, 1), day(2025, time.March, 31))
	require.Equal(t, []time.Time{
		day(2025, time.March, 1),
		day(2025, time.March, 16),
	}, dates)
}

func TestDueDatesRespectFixedEndDate(t *testing.T) {
	end := day(2025, time.March, 15)
	ob := monthlyObligation(25)
	ob.Frequency = FrequencyWeekly
	ob.FirstDate = day(2025, time.March, 3)
	ob.FixedEndDate = &end

	dates := DueDatesWithin(ob, day(2025, time.March, 1), day(2025, time.March, 31))
	require.Equal(t, []time.Time{
		day(2025, time.March, 3),
		day(2025, time.March, 10),
	}, dates)
}

func TestBuildInstanceAttachesOccurrences(t *testing.T) {
	ob := monthlyObligation(25)
	ob.Frequency = FrequencyWeekly
	ob.FirstDate = day(2025, time.March, 3)
	p := sourcePeriod("2025-M03", calendar.PeriodTypeMonthly, day(2025, time.March, 1), day(2025, time.March, 31))
	now := day(2025, time.March, 1)

	inst := BuildInstance(ob, p, now)
	require.Equal(t, "ob-1_2025-M03", inst.ID)
	require.True(t, inst.IsDuePeriod)
	require.Equal(t, day(2025, time.March, 31), inst.DueDate)
	require.NotNil(t, inst.Occurrences)
	require.Len(t, inst.Occurrences.DueDates, 5)
	require.Equal(t, 5, inst.Occurrences.NumberUnpaid)
	require.Zero(t, inst.Occurrences.NumberPaid)
	require.NoError(t, inst.Occurrences.Validate())
	require.Equal(t, inst.Allocated, inst.Remaining)
}

func TestBuildInstanceNoOccurrencesForSameGranularity(t *testing.T) {
	ob := monthlyObligation(90)
	p := sourcePeriod("2025-M03", calendar.PeriodTypeMonthly, day(2025, time.March, 1), day(2025, time.March, 31))

	inst := BuildInstance(ob, p, day(2025, time.March, 1))
	require.Nil(t, inst.Occurrences)
	require.True(t, inst.IsDuePeriod)
	require.Equal(t, day(2025, time.March, 15), inst.DueDate)
}

func TestObligationSpecValidate(t *testing.T) {
	ob := monthlyObligation(90)
	require.NoError(t, ob.Validate())

	bad := ob
	bad.Amount = 0
	require.Error(t, bad.Validate())

	bad = ob
	bad.Frequency = "SOMETIMES"
	require.Error(t, bad.Validate())

	bad = ob
	bad.OwnerID = ""
	require.Error(t, bad.Validate())
}
