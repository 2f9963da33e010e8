package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	chunks  []int
	failAt  int
	failErr error
}

func (s *recordingSender) SendChunk(ctx context.Context, batch *pgx.Batch, n int) error {
	if s.failErr != nil && len(s.chunks) == s.failAt {
		return s.failErr
	}
	s.chunks = append(s.chunks, n)
	return nil
}

func queueN(b *BatchWrite, n int) {
	for i := 0; i < n; i++ {
		b.Queue("UPDATE budget_period_instances SET paid = $2 WHERE id = $1", fmt.Sprintf("inst-%d", i), float64(i))
	}
}

func TestFlushChunksAtCeiling(t *testing.T) {
	var b BatchWrite
	queueN(&b, 2*MaxBatchDocs+203)

	sender := &recordingSender{}
	committed, err := b.Flush(context.Background(), sender)
	require.NoError(t, err)
	require.Equal(t, 2*MaxBatchDocs+203, committed)
	require.Equal(t, []int{MaxBatchDocs, MaxBatchDocs, 203}, sender.chunks)
	require.Zero(t, b.Len())
}

func TestFlushReportsCommittedOnChunkFailure(t *testing.T) {
	var b BatchWrite
	queueN(&b, MaxBatchDocs+50)

	boom := errors.New("deadlock detected")
	sender := &recordingSender{failAt: 1, failErr: boom}
	committed, err := b.Flush(context.Background(), sender)
	require.ErrorIs(t, err, boom)
	require.Equal(t, MaxBatchDocs, committed)
	require.Equal(t, []int{MaxBatchDocs}, sender.chunks)

	// The failed tail stays queued for a retry.
	require.Equal(t, MaxBatchDocs+50, b.Len())
}

func TestFlushEmptyIsNoop(t *testing.T) {
	var b BatchWrite
	sender := &recordingSender{}
	committed, err := b.Flush(context.Background(), sender)
	require.NoError(t, err)
	require.Zero(t, committed)
	require.Empty(t, sender.chunks)
}
