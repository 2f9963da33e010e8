package ledger

import (
	"fmt"
	"time"

	"github.com/hearthledger/hearthledger/internal/period"
	"github.com/hearthledger/hearthledger/internal/shared"
)

// TransactionType separates money leaving and entering the household.
type TransactionType string

const (
	TypeExpense TransactionType = "expense"
	TypeIncome  TransactionType = "income"
)

// TransactionStatus enumerates ledger transaction review states.
type TransactionStatus string

const (
	StatusPending  TransactionStatus = "PENDING"
	StatusApproved TransactionStatus = "APPROVED"
	StatusRejected TransactionStatus = "REJECTED"
)

// Split attributes part of a transaction to one obligation. Advance payments
// carry explicit target period ids instead of relying on the payment date.
type Split struct {
	ObligationID            string             `json:"obligationId"`
	Kind                    period.Kind        `json:"kind"`
	Amount                  float64            `json:"amount"`
	PaymentType             period.PaymentType `json:"paymentType"`
	TargetMonthlyPeriodID   string             `json:"targetMonthlyPeriodId,omitempty"`
	TargetBiMonthlyPeriodID string             `json:"targetBiMonthlyPeriodId,omitempty"`
	TargetWeeklyPeriodID    string             `json:"targetWeeklyPeriodId,omitempty"`
}

// TargetPeriodID returns the split's explicit target, preferring the
// monthly id. Empty when the split matches by payment date.
func (s Split) TargetPeriodID() string {
	switch {
	case s.TargetMonthlyPeriodID != "":
		return s.TargetMonthlyPeriodID
	case s.TargetBiMonthlyPeriodID != "":
		return s.TargetBiMonthlyPeriodID
	case s.TargetWeeklyPeriodID != "":
		return s.TargetWeeklyPeriodID
	}
	return ""
}

// Transaction is one ledger entry, already normalized by the ingestion layer.
type Transaction struct {
	ID          string
	OwnerID     string
	Type        TransactionType
	Status      TransactionStatus
	Amount      float64
	Date        time.Time
	Description string
	Category    string
	Splits      []Split
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Contributes reports whether the transaction participates in spending
// propagation: only approved expenses do.
func (t *Transaction) Contributes() bool {
	return t != nil && t.Status == StatusApproved && t.Type == TypeExpense
}

// Validate rejects malformed transactions before persistence.
func (t *Transaction) Validate() error {
	if t.OwnerID == "" {
		return fmt.Errorf("owner required: %w", shared.ErrValidation)
	}
	if t.Type != TypeExpense && t.Type != TypeIncome {
		return fmt.Errorf("unknown transaction type %q: %w", t.Type, shared.ErrValidation)
	}
	if t.Amount <= 0 {
		return fmt.Errorf("amount must be positive: %w", shared.ErrValidation)
	}
	if t.Date.IsZero() {
		return fmt.Errorf("date required: %w", shared.ErrValidation)
	}
	for i, s := range t.Splits {
		if s.ObligationID == "" {
			return fmt.Errorf("split %d: obligation required: %w", i, shared.ErrValidation)
		}
		if !s.Kind.Valid() {
			return fmt.Errorf("split %d: unknown kind %q: %w", i, s.Kind, shared.ErrValidation)
		}
		if s.Amount <= 0 {
			return fmt.Errorf("split %d: amount must be positive: %w", i, shared.ErrValidation)
		}
	}
	return nil
}
