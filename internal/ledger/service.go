package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Notifier publishes transaction change notifications with full before/after
// snapshots. Delivery is at-least-once; consumers diff the snapshots, so a
// duplicate delivery produces a zero delta.
type Notifier interface {
	TransactionChanged(ctx context.Context, before, after *Transaction) error
}

// Service handles ledger transaction mutations and emits change
// notifications for the propagation pipeline.
type Service struct {
	repo     Repository
	notifier Notifier
	logger   *slog.Logger
}

// NewService builds Service instance.
func NewService(repo Repository, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{repo: repo, notifier: notifier, logger: logger}
}

// Create persists a new transaction and notifies the pipeline.
func (s *Service) Create(ctx context.Context, tx *Transaction) (*Transaction, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Status == "" {
		tx.Status = StatusPending
	}
	tx.Date = tx.Date.UTC().Truncate(24 * time.Hour)
	if err := s.repo.Create(ctx, tx); err != nil {
		return nil, err
	}
	s.notify(ctx, nil, tx)
	return tx, nil
}

// Update replaces a transaction. The notification carries both states so the
// propagator can diff them.
func (s *Service) Update(ctx context.Context, tx *Transaction) (*Transaction, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	old, err := s.repo.GetByID(ctx, tx.OwnerID, tx.ID)
	if err != nil {
		return nil, err
	}
	tx.Date = tx.Date.UTC().Truncate(24 * time.Hour)
	if err := s.repo.Update(ctx, tx); err != nil {
		return nil, err
	}
	s.notify(ctx, old, tx)
	return tx, nil
}

// Delete removes a transaction; the notification carries only the old state.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	old, err := s.repo.GetByID(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, ownerID, id); err != nil {
		return err
	}
	s.notify(ctx, old, nil)
	return nil
}

// Get fetches one transaction scoped to its owner.
func (s *Service) Get(ctx context.Context, ownerID, id string) (*Transaction, error) {
	return s.repo.GetByID(ctx, ownerID, id)
}

// notify enqueues the change event. Failure leaves period instances stale
// until the explicit recalculation entry point runs; the committed mutation
// itself is never rolled back for it.
func (s *Service) notify(ctx context.Context, before, after *Transaction) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.TransactionChanged(ctx, before, after); err != nil {
		id := ""
		if after != nil {
			id = after.ID
		} else if before != nil {
			id = before.ID
		}
		s.logger.Error("enqueue transaction change",
			slog.String("transaction_id", id), slog.Any("error", err))
	}
}
