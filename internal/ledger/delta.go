package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hearthledger/hearthledger/internal/calendar"
	"github.com/hearthledger/hearthledger/internal/observability"
	"github.com/hearthledger/hearthledger/internal/period"
)

// ChangedInstance pairs before/after snapshots of a mutated period instance,
// handed to the change-notification pipeline.
type ChangedInstance struct {
	Before period.PeriodInstance
	After  period.PeriodInstance
}

// Propagator applies incremental paid/spent changes from transaction
// mutations to the period instances whose range contains the transaction.
// The delta is derived from a diff of the full old and new transaction
// states, so a redelivered event with unchanged state yields delta zero and
// the whole operation becomes a no-op.
type Propagator struct {
	periods period.Repository
	ledger  Repository
	matcher *period.Matcher
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewPropagator builds Propagator instance.
func NewPropagator(periods period.Repository, ledger Repository, cal period.CalendarPort, metrics *observability.Metrics, logger *slog.Logger) *Propagator {
	return &Propagator{
		periods: periods,
		ledger:  ledger,
		matcher: period.NewMatcher(periods, cal),
		metrics: metrics,
		logger:  logger,
	}
}

// contributionKey identifies one bucket of splits: an obligation plus an
// optional explicit target period (advance payments).
type contributionKey struct {
	ObligationID string
	Kind         period.Kind
	Target       string
}

func contributions(tx *Transaction) map[contributionKey]float64 {
	amounts := make(map[contributionKey]float64)
	if !tx.Contributes() {
		return amounts
	}
	for _, s := range tx.Splits {
		key := contributionKey{ObligationID: s.ObligationID, Kind: s.Kind, Target: s.TargetPeriodID()}
		amounts[key] += s.Amount
	}
	return amounts
}

// Propagate diffs the old and new transaction states and applies the
// resulting deltas. Absence of new means deletion; absence of old means
// creation. Returns the instances whose state changed.
func (p *Propagator) Propagate(ctx context.Context, before, after *Transaction) ([]ChangedInstance, error) {
	oldAmounts := contributions(before)
	newAmounts := contributions(after)
	if len(oldAmounts) == 0 && len(newAmounts) == 0 {
		return nil, nil
	}

	effective := after
	if effective == nil {
		effective = before
	}

	union := make(map[contributionKey]struct{}, len(oldAmounts)+len(newAmounts))
	for k := range oldAmounts {
		union[k] = struct{}{}
	}
	for k := range newAmounts {
		union[k] = struct{}{}
	}

	now := time.Now().UTC()
	instances := make(map[string]*period.PeriodInstance)
	snapshots := make(map[string]period.PeriodInstance)
	deltas := make(map[string]float64)
	located := make(map[contributionKey][]string)

	for key := range union {
		delta := newAmounts[key] - oldAmounts[key]

		found, err := p.locate(ctx, key, effective.Date)
		if err != nil {
			return nil, err
		}

		for i := range found {
			k := instanceKey(&found[i])
			if _, ok := instances[k]; !ok {
				copied := found[i]
				instances[k] = &copied
				snapshots[k] = snapshot(&copied)
			}
			deltas[k] += delta
			located[key] = append(located[key], k)
		}
	}

	// A transaction may carry several splits landing on the same instance
	// through different buckets, so each instance's refs are rebuilt once
	// from all of the transaction's splits bound to it.
	refs := make(map[string][]period.SplitRef)
	if after.Contributes() {
		for _, s := range after.Splits {
			key := contributionKey{ObligationID: s.ObligationID, Kind: s.Kind, Target: s.TargetPeriodID()}
			for _, k := range located[key] {
				refs[k] = append(refs[k], period.SplitRef{
					TransactionID: after.ID,
					Amount:        s.Amount,
					PaymentType:   s.PaymentType,
					PaymentDate:   after.Date,
				})
			}
		}
	}

	toSave := make([]period.PeriodInstance, 0, len(instances))
	changed := make([]ChangedInstance, 0, len(instances))
	for k, inst := range instances {
		refsChanged := p.refresh(inst, effective.ID, refs[k])
		delta := deltas[k]
		if delta != 0 {
			inst.Paid += delta
			inst.Remaining = inst.Allocated - inst.Paid
		}
		if delta == 0 && !refsChanged {
			continue
		}
		inst.Status = period.ComputeStatus(period.StatusInput{
			IsDuePeriod: inst.IsDuePeriod,
			DueDate:     inst.DueDate,
			AmountDue:   inst.Allocated,
			Splits:      inst.SplitRefs,
			Now:         now,
		})
		inst.LastCalculated = now
		toSave = append(toSave, *inst)
		changed = append(changed, ChangedInstance{Before: snapshots[k], After: *inst})
	}

	if len(toSave) == 0 {
		return nil, nil
	}
	if _, err := p.periods.SaveMutable(ctx, toSave); err != nil {
		return nil, fmt.Errorf("ledger: apply spending deltas: %w", err)
	}
	if p.metrics != nil {
		p.metrics.DeltasApplied.Add(float64(len(toSave)))
	}
	p.logger.Info("propagated spending deltas",
		slog.String("transaction_id", effective.ID),
		slog.Int("instances", len(toSave)))
	return changed, nil
}

// locate resolves the instances a contribution bucket lands on, at most one
// per granularity. An explicit target period takes precedence over the
// transaction date, so advance payments bind to future periods regardless of
// when they were paid; a candidate sitting exactly on the target wins over
// merely overlapping ones.
func (p *Propagator) locate(ctx context.Context, key contributionKey, txDate time.Time) ([]period.PeriodInstance, error) {
	var match period.MatchResult
	var err error
	if key.Target != "" {
		match, err = p.matcher.MatchByTargetPeriod(ctx, key.Kind, key.ObligationID, key.Target)
	} else {
		match, err = p.matcher.MatchByDate(ctx, key.Kind, key.ObligationID, txDate)
	}
	if err != nil {
		return nil, err
	}

	instances := make([]period.PeriodInstance, 0, match.Found)
	for _, t := range calendar.AllPeriodTypes() {
		id := match.IDForType(t)
		if id == "" {
			continue
		}
		inst, err := p.periods.GetByID(ctx, key.Kind, id)
		if err != nil {
			return nil, err
		}
		instances = append(instances, *inst)
	}
	return instances, nil
}

// refresh rebuilds the instance's split refs for one transaction: drop all
// refs carrying the transaction id, then append the rebuilt set. Reports
// whether the result differs from the original, so a redelivered unchanged
// transaction registers as a no-op.
func (p *Propagator) refresh(inst *period.PeriodInstance, txID string, rebuilt []period.SplitRef) bool {
	next := make([]period.SplitRef, 0, len(inst.SplitRefs)+len(rebuilt))
	for _, ref := range inst.SplitRefs {
		if ref.TransactionID != txID {
			next = append(next, ref)
		}
	}
	next = append(next, rebuilt...)
	changed := !refsEqual(inst.SplitRefs, next)
	inst.SplitRefs = next
	return changed
}

func refsEqual(a, b []period.SplitRef) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].TransactionID != b[i].TransactionID || a[i].Amount != b[i].Amount ||
			a[i].PaymentType != b[i].PaymentType || !a[i].PaymentDate.Equal(b[i].PaymentDate) {
			return false
		}
	}
	return true
}

// Backfill seeds an obligation's freshly generated instances from historical
// approved expense transactions in the obligation's categories. It runs once
// at obligation creation and is independent of the incremental path.
func (p *Propagator) Backfill(ctx context.Context, ob period.ObligationSpec, categories []string) error {
	if len(categories) == 0 {
		return nil
	}
	now := time.Now().UTC()
	txs, err := p.ledger.ListApprovedExpenseByCategories(ctx, ob.OwnerID, categories, now)
	if err != nil {
		return fmt.Errorf("ledger: backfill scan for obligation %s: %w", ob.ID, err)
	}
	if len(txs) == 0 {
		return nil
	}

	instances, err := p.periods.ListByObligation(ctx, ob.Kind, ob.ID)
	if err != nil {
		return err
	}

	mutatedCount := 0
	var toSave []period.PeriodInstance
	for i := range instances {
		inst := &instances[i]
		total := 0.0
		var refs []period.SplitRef
		for _, tx := range txs {
			if !inst.ContainsDate(tx.Date) {
				continue
			}
			total += tx.Amount
			refs = append(refs, period.SplitRef{
				TransactionID: tx.ID,
				Amount:        tx.Amount,
				PaymentType:   period.PaymentRegular,
				PaymentDate:   tx.Date,
			})
		}
		if total == 0 {
			continue
		}
		inst.Paid = total
		inst.Remaining = inst.Allocated - total
		inst.SplitRefs = refs
		inst.Status = period.ComputeStatus(period.StatusInput{
			IsDuePeriod: inst.IsDuePeriod,
			DueDate:     inst.DueDate,
			AmountDue:   inst.Allocated,
			Splits:      refs,
			Now:         now,
		})
		inst.LastCalculated = now
		toSave = append(toSave, *inst)
		mutatedCount++
	}
	if len(toSave) == 0 {
		return nil
	}
	if _, err := p.periods.SaveMutable(ctx, toSave); err != nil {
		return fmt.Errorf("ledger: backfill write for obligation %s: %w", ob.ID, err)
	}
	p.logger.Info("backfilled obligation from history",
		slog.String("obligation_id", ob.ID),
		slog.Int("transactions", len(txs)),
		slog.Int("instances", mutatedCount))
	return nil
}

func instanceKey(inst *period.PeriodInstance) string {
	return string(inst.Kind) + ":" + inst.ID
}

func snapshot(inst *period.PeriodInstance) period.PeriodInstance {
	copied := *inst
	copied.SplitRefs = append([]period.SplitRef(nil), inst.SplitRefs...)
	return copied
}
