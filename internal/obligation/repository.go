package obligation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hearthledger/hearthledger/internal/period"
	"github.com/hearthledger/hearthledger/internal/shared"
)

// Repository persists obligations.
type Repository interface {
	Create(ctx context.Context, ob *Obligation) error
	GetByID(ctx context.Context, ownerID, id string) (*Obligation, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Obligation, error)
	ListNeedingExtension(ctx context.Context, generatedBefore time.Time) ([]Obligation, error)
	UpdateBookkeeping(ctx context.Context, id string, result period.GenerationResult) error
	Deactivate(ctx context.Context, ownerID, id string) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const obligationColumns = `id, owner_id, kind, name, amount, frequency, first_date, fixed_end_date,
categories, first_generated_period_id, last_generated_period_id, generated_until,
needs_extension, is_active, created_at, updated_at`

func (r *repository) Create(ctx context.Context, ob *Obligation) error {
	var fixedEnd pgtype.Date
	if ob.FixedEndDate != nil {
		fixedEnd = pgtype.Date{Time: *ob.FixedEndDate, Valid: true}
	}
	categories := ob.Categories
	if categories == nil {
		categories = []string{}
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO obligations (id, owner_id, kind, name, amount, frequency, first_date, fixed_end_date,
			categories, needs_extension, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,TRUE,NOW(),NOW())
		RETURNING created_at, updated_at`,
		ob.ID, ob.OwnerID, ob.Kind, ob.Name, ob.Amount, ob.Frequency, ob.FirstDate, fixedEnd,
		categories, ob.NeedsExtension,
	).Scan(&ob.CreatedAt, &ob.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("obligation: %s: %w", ob.ID, shared.ErrConflict)
		}
		return fmt.Errorf("obligation: create: %w", err)
	}
	ob.IsActive = true
	return nil
}

func (r *repository) GetByID(ctx context.Context, ownerID, id string) (*Obligation, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+obligationColumns+` FROM obligations WHERE id = $1 AND owner_id = $2`, id, ownerID)
	ob, err := scanObligation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("obligation: %s: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("obligation: get %s: %w", id, err)
	}
	return ob, nil
}

func (r *repository) ListByOwner(ctx context.Context, ownerID string) ([]Obligation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+obligationColumns+` FROM obligations WHERE owner_id = $1 AND is_active ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("obligation: list by owner: %w", err)
	}
	defer rows.Close()
	return collectObligations(rows)
}

func (r *repository) ListNeedingExtension(ctx context.Context, generatedBefore time.Time) ([]Obligation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+obligationColumns+` FROM obligations
		 WHERE is_active AND needs_extension AND generated_until < $1
		 ORDER BY generated_until`, generatedBefore)
	if err != nil {
		return nil, fmt.Errorf("obligation: list needing extension: %w", err)
	}
	defer rows.Close()
	return collectObligations(rows)
}

func (r *repository) UpdateBookkeeping(ctx context.Context, id string, result period.GenerationResult) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE obligations SET
			first_generated_period_id = COALESCE(NULLIF(first_generated_period_id, ''), $2),
			last_generated_period_id = $3,
			generated_until = $4,
			needs_extension = $5,
			updated_at = NOW()
		WHERE id = $1`,
		id, result.FirstPeriodID, result.LastPeriodID, result.GeneratedUntil, result.NeedsExtension)
	if err != nil {
		return fmt.Errorf("obligation: update bookkeeping for %s: %w", id, err)
	}
	return nil
}

func (r *repository) Deactivate(ctx context.Context, ownerID, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE obligations SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND owner_id = $2`,
		id, ownerID)
	if err != nil {
		return fmt.Errorf("obligation: deactivate %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("obligation: %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

func scanObligation(row pgx.Row) (*Obligation, error) {
	var ob Obligation
	var fixedEnd, generatedUntil pgtype.Date
	var firstID, lastID pgtype.Text
	err := row.Scan(&ob.ID, &ob.OwnerID, &ob.Kind, &ob.Name, &ob.Amount, &ob.Frequency,
		&ob.FirstDate, &fixedEnd, &ob.Categories, &firstID, &lastID, &generatedUntil,
		&ob.NeedsExtension, &ob.IsActive, &ob.CreatedAt, &ob.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if fixedEnd.Valid {
		t := fixedEnd.Time
		ob.FixedEndDate = &t
	}
	if generatedUntil.Valid {
		ob.GeneratedUntil = generatedUntil.Time
	}
	ob.FirstGeneratedPeriodID = firstID.String
	ob.LastGeneratedPeriodID = lastID.String
	return &ob, nil
}

func collectObligations(rows pgx.Rows) ([]Obligation, error) {
	var obs []Obligation
	for rows.Next() {
		ob, err := scanObligation(rows)
		if err != nil {
			return nil, err
		}
		obs = append(obs, *ob)
	}
	return obs, rows.Err()
}
