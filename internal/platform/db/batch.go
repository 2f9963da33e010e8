package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MaxBatchDocs is the per-chunk statement ceiling for a single atomic write.
// Larger writes are split into sequential chunks; a failed chunk does not roll
// back chunks that already committed, so callers must keep the statements
// idempotent and rely on retry.
const MaxBatchDocs = 500

// Sender commits one chunk of n queued statements atomically.
type Sender interface {
	SendChunk(ctx context.Context, batch *pgx.Batch, n int) error
}

// PoolSender runs each chunk in its own RepeatableRead transaction.
type PoolSender struct {
	Pool *pgxpool.Pool
}

func (s PoolSender) SendChunk(ctx context.Context, batch *pgx.Batch, n int) error {
	return WithTx(ctx, s.Pool, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, batch)
		defer results.Close()
		for i := 0; i < n; i++ {
			if _, err := results.Exec(); err != nil {
				return err
			}
		}
		return nil
	})
}

// BatchWrite accumulates statements for a chunked multi-document write.
type BatchWrite struct {
	statements []statement
}

type statement struct {
	sql  string
	args []any
}

// Queue appends a statement to the pending write set.
func (b *BatchWrite) Queue(sql string, args ...any) {
	b.statements = append(b.statements, statement{sql: sql, args: args})
}

// Len reports the number of queued statements.
func (b *BatchWrite) Len() int {
	return len(b.statements)
}

// Flush commits the queued statements in chunks of at most MaxBatchDocs.
// It returns the number of statements that reached a committed chunk; on
// chunk failure prior chunks stay committed and the pending set is kept.
func (b *BatchWrite) Flush(ctx context.Context, sender Sender) (int, error) {
	committed := 0
	for start := 0; start < len(b.statements); start += MaxBatchDocs {
		end := start + MaxBatchDocs
		if end > len(b.statements) {
			end = len(b.statements)
		}
		chunk := b.statements[start:end]

		batch := &pgx.Batch{}
		for _, st := range chunk {
			batch.Queue(st.sql, st.args...)
		}

		if err := sender.SendChunk(ctx, batch, len(chunk)); err != nil {
			return committed, fmt.Errorf("platform/db: batch chunk %d-%d: %w", start, end, err)
		}
		committed += len(chunk)
	}
	b.statements = nil
	return committed, nil
}
