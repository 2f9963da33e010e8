package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hearthledger/hearthledger/internal/platform/db"
	"github.com/hearthledger/hearthledger/internal/shared"
)

// Repository persists rollup summary documents.
type Repository interface {
	GetByID(ctx context.Context, id string) (*UserPeriodSummary, error)
	Upsert(ctx context.Context, s *UserPeriodSummary) error
	UpsertBatch(ctx context.Context, summaries []UserPeriodSummary) (int, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const summaryColumns = `id, owner_id, period_type, source_period_id, period_start, period_end,
budget_entries, outflow_entries, inflow_entries, totals, cross_metrics,
last_recalculated, created_at, updated_at`

type totalsDoc struct {
	Budget  KindTotals `json:"budget"`
	Outflow KindTotals `json:"outflow"`
	Inflow  KindTotals `json:"inflow"`
}

func (r *repository) GetByID(ctx context.Context, id string) (*UserPeriodSummary, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+summaryColumns+` FROM user_summaries WHERE id = $1`, id)
	s, err := scanSummary(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("summary: %s: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("summary: get %s: %w", id, err)
	}
	return s, nil
}

func (r *repository) Upsert(ctx context.Context, s *UserPeriodSummary) error {
	sql, args, err := upsertStatement(s)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("summary: upsert %s: %w", s.ID, err)
	}
	return nil
}

// UpsertBatch persists many summaries in chunked batches, used by eager
// pre-creation. Returns the number of committed writes.
func (r *repository) UpsertBatch(ctx context.Context, summaries []UserPeriodSummary) (int, error) {
	var batch db.BatchWrite
	for i := range summaries {
		sql, args, err := upsertStatement(&summaries[i])
		if err != nil {
			return 0, err
		}
		batch.Queue(sql, args...)
	}
	return batch.Flush(ctx, db.PoolSender{Pool: r.pool})
}

func upsertStatement(s *UserPeriodSummary) (string, []any, error) {
	budget, err := json.Marshal(orEmpty(s.BudgetEntries))
	if err != nil {
		return "", nil, fmt.Errorf("summary: encode budget entries for %s: %w", s.ID, err)
	}
	outflow, err := json.Marshal(orEmpty(s.OutflowEntries))
	if err != nil {
		return "", nil, fmt.Errorf("summary: encode outflow entries for %s: %w", s.ID, err)
	}
	inflow, err := json.Marshal(orEmpty(s.InflowEntries))
	if err != nil {
		return "", nil, fmt.Errorf("summary: encode inflow entries for %s: %w", s.ID, err)
	}
	totals, err := json.Marshal(totalsDoc{Budget: s.BudgetTotals, Outflow: s.OutflowTotals, Inflow: s.InflowTotals})
	if err != nil {
		return "", nil, fmt.Errorf("summary: encode totals for %s: %w", s.ID, err)
	}
	cross, err := json.Marshal(s.CrossMetrics)
	if err != nil {
		return "", nil, fmt.Errorf("summary: encode cross metrics for %s: %w", s.ID, err)
	}
	sql := `INSERT INTO user_summaries (
		id, owner_id, period_type, source_period_id, period_start, period_end,
		budget_entries, outflow_entries, inflow_entries, totals, cross_metrics,
		last_recalculated, created_at, updated_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW(),NOW())
	ON CONFLICT (id) DO UPDATE SET
		budget_entries = EXCLUDED.budget_entries,
		outflow_entries = EXCLUDED.outflow_entries,
		inflow_entries = EXCLUDED.inflow_entries,
		totals = EXCLUDED.totals,
		cross_metrics = EXCLUDED.cross_metrics,
		last_recalculated = EXCLUDED.last_recalculated,
		updated_at = NOW()`
	args := []any{
		s.ID, s.OwnerID, s.PeriodType, s.SourcePeriodID, s.PeriodStart, s.PeriodEnd,
		budget, outflow, inflow, totals, cross, s.LastRecalculated,
	}
	return sql, args, nil
}

func scanSummary(row pgx.Row) (*UserPeriodSummary, error) {
	var s UserPeriodSummary
	var budget, outflow, inflow, totals, cross []byte
	err := row.Scan(
		&s.ID, &s.OwnerID, &s.PeriodType, &s.SourcePeriodID, &s.PeriodStart, &s.PeriodEnd,
		&budget, &outflow, &inflow, &totals, &cross,
		&s.LastRecalculated, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(budget, &s.BudgetEntries); err != nil {
		return nil, fmt.Errorf("decode budget entries: %w", err)
	}
	if err := json.Unmarshal(outflow, &s.OutflowEntries); err != nil {
		return nil, fmt.Errorf("decode outflow entries: %w", err)
	}
	if err := json.Unmarshal(inflow, &s.InflowEntries); err != nil {
		return nil, fmt.Errorf("decode inflow entries: %w", err)
	}
	var td totalsDoc
	if err := json.Unmarshal(totals, &td); err != nil {
		return nil, fmt.Errorf("decode totals: %w", err)
	}
	s.BudgetTotals, s.OutflowTotals, s.InflowTotals = td.Budget, td.Outflow, td.Inflow
	if err := json.Unmarshal(cross, &s.CrossMetrics); err != nil {
		return nil, fmt.Errorf("decode cross metrics: %w", err)
	}
	return &s, nil
}

func orEmpty(entries []Entry) []Entry {
	if entries == nil {
		return []Entry{}
	}
	return entries
}
