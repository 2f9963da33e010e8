package calendar

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestContainsInclusiveBounds(t *testing.T) {
	p := SourcePeriod{
		ID:        "2025-M10",
		Type:      PeriodTypeMonthly,
		StartDate: day(2025, time.October, 1),
		EndDate:   day(2025, time.October, 31),
	}
	if !p.Contains(day(2025, time.October, 1)) {
		t.Fatal("start date should be contained")
	}
	if !p.Contains(day(2025, time.October, 31)) {
		t.Fatal("end date should be contained")
	}
	if p.Contains(day(2025, time.September, 30)) {
		t.Fatal("day before start should not be contained")
	}
	// Time-of-day must not matter.
	if !p.Contains(time.Date(2025, time.October, 31, 23, 59, 0, 0, time.UTC)) {
		t.Fatal("containment should work at day resolution")
	}
}

func TestOverlaps(t *testing.T) {
	p := SourcePeriod{
		StartDate: day(2025, time.February, 26),
		EndDate:   day(2025, time.March, 4),
	}
	if !p.Overlaps(day(2025, time.March, 1), day(2025, time.March, 31)) {
		t.Fatal("week crossing into March should overlap March")
	}
	if !p.Overlaps(day(2025, time.February, 1), day(2025, time.February, 28)) {
		t.Fatal("week starting in February should overlap February")
	}
	if p.Overlaps(day(2025, time.March, 5), day(2025, time.March, 11)) {
		t.Fatal("adjacent ranges should not overlap")
	}
}

func TestDaysInclusive(t *testing.T) {
	week := SourcePeriod{StartDate: day(2025, time.February, 26), EndDate: day(2025, time.March, 4)}
	if got := week.Days(); got != 7 {
		t.Fatalf("expected 7 days, got %d", got)
	}
	month := SourcePeriod{StartDate: day(2025, time.February, 1), EndDate: day(2025, time.February, 28)}
	if got := month.Days(); got != 28 {
		t.Fatalf("expected 28 days, got %d", got)
	}
}
