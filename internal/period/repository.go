package period

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hearthledger/hearthledger/internal/calendar"
	"github.com/hearthledger/hearthledger/internal/platform/db"
	"github.com/hearthledger/hearthledger/internal/shared"
)

// Repository persists period instances, one table per obligation kind.
type Repository interface {
	GetByID(ctx context.Context, kind Kind, id string) (*PeriodInstance, error)
	FindContaining(ctx context.Context, kind Kind, obligationID string, date time.Time) ([]PeriodInstance, error)
	FindOverlapping(ctx context.Context, kind Kind, obligationID string, start, end time.Time) ([]PeriodInstance, error)
	ListByObligation(ctx context.Context, kind Kind, obligationID string) ([]PeriodInstance, error)
	ListActiveForOwnerPeriod(ctx context.Context, kind Kind, ownerID string, periodType calendar.PeriodType, sourcePeriodID string) ([]PeriodInstance, error)
	UpsertAllocations(ctx context.Context, instances []PeriodInstance) (int, error)
	SaveMutable(ctx context.Context, instances []PeriodInstance) (int, error)
	Deactivate(ctx context.Context, kind Kind, obligationID string) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func tableFor(kind Kind) (string, error) {
	switch kind {
	case KindBudget:
		return "budget_periods", nil
	case KindOutflow:
		return "outflow_periods", nil
	case KindInflow:
		return "inflow_periods", nil
	}
	return "", fmt.Errorf("period: unknown kind %q: %w", kind, shared.ErrValidation)
}

const instanceColumns = `id, obligation_id, owner_id, period_type, source_period_id,
period_start, period_end, allocated, paid, remaining, status, is_active,
is_due_period, due_date, split_refs, occurrences, last_calculated, created_at, updated_at`

func scanInstance(row pgx.Row, kind Kind) (*PeriodInstance, error) {
	var inst PeriodInstance
	var dueDate pgtype.Date
	var splitRefs, occurrences []byte

	err := row.Scan(
		&inst.ID, &inst.ObligationID, &inst.OwnerID, &inst.PeriodType, &inst.SourcePeriodID,
		&inst.PeriodStart, &inst.PeriodEnd, &inst.Allocated, &inst.Paid, &inst.Remaining,
		&inst.Status, &inst.IsActive, &inst.IsDuePeriod, &dueDate, &splitRefs, &occurrences,
		&inst.LastCalculated, &inst.CreatedAt, &inst.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inst.Kind = kind
	if dueDate.Valid {
		inst.DueDate = dueDate.Time
	}
	if len(splitRefs) > 0 {
		if err := json.Unmarshal(splitRefs, &inst.SplitRefs); err != nil {
			return nil, fmt.Errorf("period: decode split refs for %s: %w", inst.ID, err)
		}
	}
	if len(occurrences) > 0 && string(occurrences) != "null" {
		var occ OccurrenceSet
		if err := json.Unmarshal(occurrences, &occ); err != nil {
			return nil, fmt.Errorf("period: decode occurrences for %s: %w", inst.ID, err)
		}
		inst.Occurrences = &occ
	}
	return &inst, nil
}

func (r *repository) GetByID(ctx context.Context, kind Kind, id string) (*PeriodInstance, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	row := r.pool.QueryRow(ctx, `SELECT `+instanceColumns+` FROM `+table+` WHERE id = $1`, id)
	inst, err := scanInstance(row, kind)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("period: instance %s: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("period: get instance %s: %w", id, err)
	}
	return inst, nil
}

func (r *repository) FindContaining(ctx context.Context, kind Kind, obligationID string, date time.Time) ([]PeriodInstance, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+instanceColumns+` FROM `+table+`
		 WHERE obligation_id = $1 AND is_active AND $2 BETWEEN period_start AND period_end
		 ORDER BY period_type, period_start`,
		obligationID, date)
	if err != nil {
		return nil, fmt.Errorf("period: find containing: %w", err)
	}
	defer rows.Close()
	return collectInstances(rows, kind)
}

func (r *repository) FindOverlapping(ctx context.Context, kind Kind, obligationID string, start, end time.Time) ([]PeriodInstance, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+instanceColumns+` FROM `+table+`
		 WHERE obligation_id = $1 AND is_active AND period_end >= $2 AND period_start <= $3
		 ORDER BY period_type, period_start`,
		obligationID, start, end)
	if err != nil {
		return nil, fmt.Errorf("period: find overlapping: %w", err)
	}
	defer rows.Close()
	return collectInstances(rows, kind)
}

func (r *repository) ListByObligation(ctx context.Context, kind Kind, obligationID string) ([]PeriodInstance, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+instanceColumns+` FROM `+table+` WHERE obligation_id = $1 AND is_active ORDER BY period_type, period_start`,
		obligationID)
	if err != nil {
		return nil, fmt.Errorf("period: list by obligation: %w", err)
	}
	defer rows.Close()
	return collectInstances(rows, kind)
}

func (r *repository) ListActiveForOwnerPeriod(ctx context.Context, kind Kind, ownerID string, periodType calendar.PeriodType, sourcePeriodID string) ([]PeriodInstance, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+instanceColumns+` FROM `+table+`
		 WHERE owner_id = $1 AND period_type = $2 AND source_period_id = $3 AND is_active
		 ORDER BY obligation_id`,
		ownerID, periodType, sourcePeriodID)
	if err != nil {
		return nil, fmt.Errorf("period: list for owner period: %w", err)
	}
	defer rows.Close()
	return collectInstances(rows, kind)
}

// UpsertAllocations writes generated instances in chunked batches. Conflicting
// rows keep their payment state: generation is re-runnable without clobbering
// what the propagator has already applied.
func (r *repository) UpsertAllocations(ctx context.Context, instances []PeriodInstance) (int, error) {
	var batch db.BatchWrite
	for i := range instances {
		inst := &instances[i]
		table, err := tableFor(inst.Kind)
		if err != nil {
			return 0, err
		}
		occJSON, splitJSON, err := encodeJSONFields(inst)
		if err != nil {
			return 0, err
		}
		batch.Queue(`INSERT INTO `+table+` (
			id, obligation_id, owner_id, period_type, source_period_id,
			period_start, period_end, allocated, paid, remaining, status, is_active,
			is_due_period, due_date, split_refs, occurrences, last_calculated, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,NOW(),NOW())
		ON CONFLICT (id) DO UPDATE SET
			allocated = EXCLUDED.allocated,
			remaining = EXCLUDED.allocated - `+table+`.paid,
			is_due_period = EXCLUDED.is_due_period,
			due_date = EXCLUDED.due_date,
			is_active = TRUE,
			updated_at = NOW()`,
			inst.ID, inst.ObligationID, inst.OwnerID, inst.PeriodType, inst.SourcePeriodID,
			inst.PeriodStart, inst.PeriodEnd, inst.Allocated, inst.Paid, inst.Remaining,
			inst.Status, inst.IsActive, inst.IsDuePeriod, nullableDate(inst.DueDate),
			splitJSON, occJSON, inst.LastCalculated)
	}
	return batch.Flush(ctx, db.PoolSender{Pool: r.pool})
}

// SaveMutable persists the propagator/tracker-owned fields in one chunked batch.
func (r *repository) SaveMutable(ctx context.Context, instances []PeriodInstance) (int, error) {
	var batch db.BatchWrite
	for i := range instances {
		inst := &instances[i]
		table, err := tableFor(inst.Kind)
		if err != nil {
			return 0, err
		}
		occJSON, splitJSON, err := encodeJSONFields(inst)
		if err != nil {
			return 0, err
		}
		batch.Queue(`UPDATE `+table+` SET
			paid = $2, remaining = $3, status = $4, split_refs = $5,
			occurrences = $6, last_calculated = $7, updated_at = NOW()
		WHERE id = $1`,
			inst.ID, inst.Paid, inst.Remaining, inst.Status, splitJSON, occJSON, inst.LastCalculated)
	}
	return batch.Flush(ctx, db.PoolSender{Pool: r.pool})
}

func (r *repository) Deactivate(ctx context.Context, kind Kind, obligationID string) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE `+table+` SET is_active = FALSE, updated_at = NOW() WHERE obligation_id = $1`,
		obligationID)
	if err != nil {
		return fmt.Errorf("period: deactivate obligation %s: %w", obligationID, err)
	}
	return nil
}

func encodeJSONFields(inst *PeriodInstance) (occJSON, splitJSON []byte, err error) {
	if inst.Occurrences != nil {
		if err := inst.Occurrences.Validate(); err != nil {
			return nil, nil, fmt.Errorf("period: %s: %w", inst.ID, err)
		}
		occJSON, err = json.Marshal(inst.Occurrences)
		if err != nil {
			return nil, nil, fmt.Errorf("period: encode occurrences for %s: %w", inst.ID, err)
		}
	}
	refs := inst.SplitRefs
	if refs == nil {
		refs = []SplitRef{}
	}
	splitJSON, err = json.Marshal(refs)
	if err != nil {
		return nil, nil, fmt.Errorf("period: encode split refs for %s: %w", inst.ID, err)
	}
	return occJSON, splitJSON, nil
}

func nullableDate(t time.Time) pgtype.Date {
	if t.IsZero() {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: t, Valid: true}
}

func collectInstances(rows pgx.Rows, kind Kind) ([]PeriodInstance, error) {
	var instances []PeriodInstance
	for rows.Next() {
		inst, err := scanInstance(rows, kind)
		if err != nil {
			return nil, err
		}
		instances = append(instances, *inst)
	}
	return instances, rows.Err()
}
