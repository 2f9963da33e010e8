package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/hearthledger/hearthledger/internal/ledger"
	"github.com/hearthledger/hearthledger/internal/period"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskTransactionChanged carries a ledger transaction mutation with full
	// before/after snapshots.
	TaskTransactionChanged = "ledger:transaction_changed"
	// TaskInstanceChanged carries a period instance mutation with full
	// before/after snapshots.
	TaskInstanceChanged = "period:instance_changed"
	// TaskObligationCreated triggers the historical backfill for a freshly
	// created obligation.
	TaskObligationCreated = "obligation:created"
	// TaskSummaryPreCreate warms the summary window for a new owner.
	TaskSummaryPreCreate = "summary:precreate"
	// TaskGenerationExtend is the nightly top-up of instance generation for
	// open-ended obligations.
	TaskGenerationExtend = "period:generation_extend"
)

// TransactionChangedPayload snapshots a transaction before and after a
// mutation. A nil After means deletion, a nil Before means creation.
type TransactionChangedPayload struct {
	OwnerID string              `json:"owner_id"`
	Before  *ledger.Transaction `json:"before,omitempty"`
	After   *ledger.Transaction `json:"after,omitempty"`
}

// InstanceChangedPayload snapshots a period instance before and after a
// mutation.
type InstanceChangedPayload struct {
	Kind       period.Kind            `json:"kind"`
	InstanceID string                 `json:"instance_id"`
	Before     *period.PeriodInstance `json:"before,omitempty"`
	After      *period.PeriodInstance `json:"after,omitempty"`
}

// ObligationCreatedPayload identifies the obligation to backfill.
type ObligationCreatedPayload struct {
	OwnerID      string `json:"owner_id"`
	ObligationID string `json:"obligation_id"`
}

// SummaryPreCreatePayload identifies the owner whose summary window to warm.
type SummaryPreCreatePayload struct {
	OwnerID string `json:"owner_id"`
}

// NewTransactionChangedTask constructs an Asynq task.
func NewTransactionChangedTask(payload TransactionChangedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTransactionChanged, data, asynq.Queue(QueueDefault)), nil
}

// NewInstanceChangedTask constructs an Asynq task.
func NewInstanceChangedTask(payload InstanceChangedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInstanceChanged, data, asynq.Queue(QueueDefault)), nil
}

// NewObligationCreatedTask constructs an Asynq task.
func NewObligationCreatedTask(payload ObligationCreatedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskObligationCreated, data, asynq.Queue(QueueDefault)), nil
}

// NewSummaryPreCreateTask constructs an Asynq task.
func NewSummaryPreCreateTask(payload SummaryPreCreatePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSummaryPreCreate, data, asynq.Queue(QueueDefault)), nil
}

// NewGenerationExtendTask constructs the nightly top-up task.
func NewGenerationExtendTask() *asynq.Task {
	return asynq.NewTask(TaskGenerationExtend, nil, asynq.Queue(QueueDefault))
}
