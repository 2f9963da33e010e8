package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hearthledger/hearthledger/internal/shared"
)

// Repository persists ledger transactions.
type Repository interface {
	Create(ctx context.Context, tx *Transaction) error
	Update(ctx context.Context, tx *Transaction) error
	Delete(ctx context.Context, ownerID, id string) error
	GetByID(ctx context.Context, ownerID, id string) (*Transaction, error)
	ListApprovedExpenseByCategories(ctx context.Context, ownerID string, categories []string, until time.Time) ([]Transaction, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const txColumns = `id, owner_id, type, status, amount, date, description, category, splits, created_at, updated_at`

func (r *repository) Create(ctx context.Context, tx *Transaction) error {
	splits, err := encodeSplits(tx.Splits)
	if err != nil {
		return err
	}
	err = r.pool.QueryRow(ctx, `
		INSERT INTO transactions (id, owner_id, type, status, amount, date, description, category, splits, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW())
		RETURNING created_at, updated_at`,
		tx.ID, tx.OwnerID, tx.Type, tx.Status, tx.Amount, tx.Date, tx.Description, tx.Category, splits,
	).Scan(&tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ledger: create transaction: %w", err)
	}
	return nil
}

func (r *repository) Update(ctx context.Context, tx *Transaction) error {
	splits, err := encodeSplits(tx.Splits)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE transactions
		SET type = $3, status = $4, amount = $5, date = $6, description = $7, category = $8, splits = $9, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2`,
		tx.ID, tx.OwnerID, tx.Type, tx.Status, tx.Amount, tx.Date, tx.Description, tx.Category, splits)
	if err != nil {
		return fmt.Errorf("ledger: update transaction %s: %w", tx.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ledger: transaction %s: %w", tx.ID, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, ownerID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("ledger: delete transaction %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ledger: transaction %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, ownerID, id string) (*Transaction, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE id = $1 AND owner_id = $2`, id, ownerID)
	tx, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("ledger: transaction %s: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: get transaction %s: %w", id, err)
	}
	return tx, nil
}

func (r *repository) ListApprovedExpenseByCategories(ctx context.Context, ownerID string, categories []string, until time.Time) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+txColumns+` FROM transactions
		WHERE owner_id = $1 AND status = $2 AND type = $3 AND category = ANY($4) AND date <= $5
		ORDER BY date`,
		ownerID, StatusApproved, TypeExpense, categories, until)
	if err != nil {
		return nil, fmt.Errorf("ledger: list by categories: %w", err)
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
	}
	return txs, rows.Err()
}

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var tx Transaction
	var splits []byte
	err := row.Scan(&tx.ID, &tx.OwnerID, &tx.Type, &tx.Status, &tx.Amount, &tx.Date,
		&tx.Description, &tx.Category, &splits, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(splits) > 0 {
		if err := json.Unmarshal(splits, &tx.Splits); err != nil {
			return nil, fmt.Errorf("ledger: decode splits for %s: %w", tx.ID, err)
		}
	}
	return &tx, nil
}

func encodeSplits(splits []Split) ([]byte, error) {
	if splits == nil {
		splits = []Split{}
	}
	data, err := json.Marshal(splits)
	if err != nil {
		return nil, fmt.Errorf("ledger: encode splits: %w", err)
	}
	return data, nil
}
