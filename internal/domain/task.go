package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReconciliationTaskStatus is the lifecycle of a queued reconciliation
// retry.
type ReconciliationTaskStatus string

const (
	// TaskStatusPending tasks are picked up by the retry worker.
	TaskStatusPending ReconciliationTaskStatus = "pending"

	// TaskStatusDone tasks were reconciled on a later attempt.
	TaskStatusDone ReconciliationTaskStatus = "done"

	// TaskStatusManual tasks exhausted their retries and need an operator.
	TaskStatusManual ReconciliationTaskStatus = "manual"
)

// ReconciliationTask records a verified charge whose Payment/Order update
// failed. The charge is real, so the failure is never dropped: the task
// carries everything needed to re-apply the reconciliation later.
type ReconciliationTask struct {
	ID               int64
	OrderID          int64
	GatewayReference string
	PaidAmount       decimal.Decimal
	Method           string
	Status           ReconciliationTaskStatus
	Attempts         int32
	LastError        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
