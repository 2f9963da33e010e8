package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hearthledger/hearthledger/internal/shared"
)

// Repository provides read-only access to the source period calendar.
type Repository interface {
	GetByID(ctx context.Context, id string) (SourcePeriod, error)
	Current(ctx context.Context, periodType PeriodType) (SourcePeriod, error)
	ByIndexRange(ctx context.Context, periodType PeriodType, fromIndex, toIndex int64) ([]SourcePeriod, error)
	OverlappingRange(ctx context.Context, periodType PeriodType, start, end time.Time) ([]SourcePeriod, error)
	ContainingDate(ctx context.Context, periodType PeriodType, date time.Time) (SourcePeriod, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const periodColumns = `id, type, start_date, end_date, idx, is_current, year, month, week_number`

func scanPeriod(row pgx.Row) (SourcePeriod, error) {
	var p SourcePeriod
	err := row.Scan(&p.ID, &p.Type, &p.StartDate, &p.EndDate, &p.Index, &p.IsCurrent, &p.Year, &p.Month, &p.WeekNumber)
	return p, err
}

func (r *repository) GetByID(ctx context.Context, id string) (SourcePeriod, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM source_periods WHERE id = $1`, id)
	p, err := scanPeriod(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return SourcePeriod{}, fmt.Errorf("calendar: source period %s: %w", id, shared.ErrPreconditionNotMet)
	}
	if err != nil {
		return SourcePeriod{}, fmt.Errorf("calendar: get period %s: %w", id, err)
	}
	return p, nil
}

func (r *repository) Current(ctx context.Context, periodType PeriodType) (SourcePeriod, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+periodColumns+` FROM source_periods WHERE type = $1 AND is_current ORDER BY idx LIMIT 1`,
		periodType)
	p, err := scanPeriod(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return SourcePeriod{}, fmt.Errorf("calendar: no current %s period: %w", periodType, shared.ErrPreconditionNotMet)
	}
	if err != nil {
		return SourcePeriod{}, fmt.Errorf("calendar: current %s period: %w", periodType, err)
	}
	return p, nil
}

func (r *repository) ByIndexRange(ctx context.Context, periodType PeriodType, fromIndex, toIndex int64) ([]SourcePeriod, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+periodColumns+` FROM source_periods WHERE type = $1 AND idx BETWEEN $2 AND $3 ORDER BY idx`,
		periodType, fromIndex, toIndex)
	if err != nil {
		return nil, fmt.Errorf("calendar: index range: %w", err)
	}
	defer rows.Close()
	return collectPeriods(rows)
}

func (r *repository) OverlappingRange(ctx context.Context, periodType PeriodType, start, end time.Time) ([]SourcePeriod, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+periodColumns+` FROM source_periods WHERE type = $1 AND end_date >= $2 AND start_date <= $3 ORDER BY idx`,
		periodType, start, end)
	if err != nil {
		return nil, fmt.Errorf("calendar: overlapping range: %w", err)
	}
	defer rows.Close()
	return collectPeriods(rows)
}

func (r *repository) ContainingDate(ctx context.Context, periodType PeriodType, date time.Time) (SourcePeriod, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+periodColumns+` FROM source_periods WHERE type = $1 AND $2 BETWEEN start_date AND end_date ORDER BY idx LIMIT 1`,
		periodType, date)
	p, err := scanPeriod(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return SourcePeriod{}, fmt.Errorf("calendar: no %s period contains %s: %w",
			periodType, date.Format("2006-01-02"), shared.ErrPreconditionNotMet)
	}
	if err != nil {
		return SourcePeriod{}, fmt.Errorf("calendar: containing date: %w", err)
	}
	return p, nil
}

func collectPeriods(rows pgx.Rows) ([]SourcePeriod, error) {
	var periods []SourcePeriod
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}
