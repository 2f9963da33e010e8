package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func statusInput(due time.Time, amountDue float64, now time.Time, splits ...SplitRef) StatusInput {
	return StatusInput{
		IsDuePeriod: true,
		DueDate:     due,
		AmountDue:   amountDue,
		Splits:      splits,
		Now:         now,
	}
}

func split(amount float64, pt PaymentType) SplitRef {
	return SplitRef{TransactionID: "tx-1", Amount: amount, PaymentType: pt, PaymentDate: day(2025, time.March, 10)}
}

func TestComputeStatusDecisionOrder(t *testing.T) {
	due := day(2025, time.March, 15)

	cases := []struct {
		name string
		in   StatusInput
		want Status
	}{
		{"paid before due date", statusInput(due, 100, day(2025, time.March, 10), split(100, PaymentRegular)), StatusPaidEarly},
		{"paid after due date", statusInput(due, 100, day(2025, time.March, 16), split(100, PaymentRegular)), StatusPaid},
		{"overpaid", statusInput(due, 100, day(2025, time.March, 16), split(150, PaymentRegular)), StatusPaid},
		{"partial before due", statusInput(due, 100, day(2025, time.March, 10), split(40, PaymentRegular)), StatusPartial},
		{"partial after due", statusInput(due, 100, day(2025, time.March, 16), split(40, PaymentRegular)), StatusOverdue},
		{"unpaid after due", statusInput(due, 100, day(2025, time.March, 16)), StatusOverdue},
		{"unpaid approaching due", statusInput(due, 100, day(2025, time.March, 13)), StatusDueSoon},
		{"unpaid far from due", statusInput(due, 100, day(2025, time.March, 1)), StatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ComputeStatus(tc.in))
		})
	}
}

func TestComputeStatusIsPure(t *testing.T) {
	in := statusInput(day(2025, time.March, 15), 100, day(2025, time.March, 10), split(40, PaymentRegular))
	first := ComputeStatus(in)
	for i := 0; i < 5; i++ {
		require.Equal(t, first, ComputeStatus(in))
	}
}

func TestPaidEarlyRequiresFutureDueDate(t *testing.T) {
	due := day(2025, time.March, 15)
	in := statusInput(due, 100, due, split(100, PaymentRegular))
	// Now equal to the due date is not strictly before it.
	require.Equal(t, StatusPaid, ComputeStatus(in))

	in.Now = due.Add(-time.Hour)
	require.Equal(t, StatusPaidEarly, ComputeStatus(in))
}

func TestExtraPrincipalExcludedFromDueSatisfaction(t *testing.T) {
	due := day(2025, time.March, 15)
	in := statusInput(due, 100, day(2025, time.March, 10),
		split(60, PaymentRegular),
		split(500, PaymentExtraPrincipal),
	)
	require.Equal(t, 60.0, PaidTotal(in.Splits))
	require.Equal(t, StatusPartial, ComputeStatus(in))
}

func TestAdvancePaymentOnNonDuePeriod(t *testing.T) {
	in := StatusInput{
		IsDuePeriod: false,
		AmountDue:   0,
		Splits:      []SplitRef{split(100, PaymentAdvance)},
		Now:         day(2025, time.March, 1),
	}
	require.Equal(t, StatusPaid, ComputeStatus(in))

	in.Splits = nil
	require.Equal(t, StatusPending, ComputeStatus(in))
}

func TestComputeEnhancedStatusDisplay(t *testing.T) {
	occ := &OccurrenceSet{
		DueDates: []time.Time{
			day(2025, time.March, 3), day(2025, time.March, 10),
			day(2025, time.March, 17), day(2025, time.March, 24),
		},
		PaidFlags:      []bool{true, true, false, false},
		TransactionIDs: []string{"tx-1", "tx-2", "", ""},
		NumberPaid:     2,
		NumberUnpaid:   2,
	}
	in := statusInput(day(2025, time.March, 24), 100, day(2025, time.March, 12), split(50, PaymentRegular))

	enhanced := ComputeEnhancedStatus(in, occ, FrequencyWeekly)
	require.Equal(t, StatusPartial, enhanced.Status)
	require.Equal(t, 2, enhanced.OccurrencesPaid)
	require.Equal(t, 4, enhanced.OccurrencesTotal)
	require.InDelta(t, 50.0, enhanced.PaymentPercentage, 1e-9)
	require.Equal(t, "2 of 4 weeks paid", enhanced.Display)
}

func TestComputeEnhancedStatusWithoutOccurrences(t *testing.T) {
	in := statusInput(day(2025, time.March, 15), 100, day(2025, time.March, 1))
	enhanced := ComputeEnhancedStatus(in, nil, FrequencyMonthly)
	require.Equal(t, StatusPending, enhanced.Status)
	require.Empty(t, enhanced.Display)
}
