package obligation

import (
	"time"

	"github.com/hearthledger/hearthledger/internal/period"
)

// Obligation is a recurring budget, bill, or income source. Its period
// instances are generated ahead of time; the bookkeeping fields record how
// far generation has reached so the nightly top-up can extend open-ended
// obligations.
type Obligation struct {
	ID           string
	OwnerID      string
	Kind         period.Kind
	Name         string
	Amount       float64
	Frequency    period.Frequency
	FirstDate    time.Time
	FixedEndDate *time.Time
	Categories   []string

	FirstGeneratedPeriodID string
	LastGeneratedPeriodID  string
	GeneratedUntil         time.Time
	NeedsExtension         bool

	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Spec converts the record into the allocation generator's input shape.
func (o *Obligation) Spec() period.ObligationSpec {
	return period.ObligationSpec{
		ID:           o.ID,
		OwnerID:      o.OwnerID,
		Kind:         o.Kind,
		Name:         o.Name,
		Amount:       o.Amount,
		Frequency:    o.Frequency,
		FirstDate:    o.FirstDate,
		FixedEndDate: o.FixedEndDate,
	}
}
