package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/verdandi/internal/domain"
)

const taskColumns = `id, order_id, gateway_reference, paid_amount::text, method, status, attempts, last_error, created_at, updated_at`

// EnqueueReconciliationTask inserts a pending retry task for a verified
// charge that could not be recorded.
func (s *Store) EnqueueReconciliationTask(ctx context.Context, task *domain.ReconciliationTask) error {
	err := s.q.QueryRow(ctx,
		`INSERT INTO reconciliation_tasks
		   (order_id, gateway_reference, paid_amount, method, status, attempts, last_error)
		 VALUES ($1, $2, $3::numeric, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		task.OrderID, task.GatewayReference, task.PaidAmount.String(),
		task.Method, task.Status, task.Attempts, task.LastError,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return domain.Internal(err, "postgres.task", "failed to enqueue reconciliation task")
	}
	return nil
}

// ClaimPendingReconciliationTask returns the oldest pending task, row
// locked until the enclosing transaction ends. Callers must claim inside
// WithTx; SKIP LOCKED sends a concurrent claimer to the next task
// instead of blocking on (or re-claiming) this one. Returns (nil, nil)
// when the queue is empty.
func (s *Store) ClaimPendingReconciliationTask(ctx context.Context) (*domain.ReconciliationTask, error) {
	var (
		t      domain.ReconciliationTask
		amount string
	)
	err := s.q.QueryRow(ctx,
		`SELECT `+taskColumns+`
		 FROM reconciliation_tasks
		 WHERE status = 'pending'
		 ORDER BY id
		 LIMIT 1
		 FOR UPDATE SKIP LOCKED`,
	).Scan(&t.ID, &t.OrderID, &t.GatewayReference, &amount, &t.Method,
		&t.Status, &t.Attempts, &t.LastError, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.Internal(err, "postgres.task", "failed to claim reconciliation task")
	}
	t.PaidAmount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, domain.Internal(err, "postgres.task", "invalid stored paid amount")
	}
	return &t, nil
}

// SaveReconciliationTask persists a task's retry progress.
func (s *Store) SaveReconciliationTask(ctx context.Context, task *domain.ReconciliationTask) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE reconciliation_tasks
		 SET status = $2, attempts = $3, last_error = $4, updated_at = now()
		 WHERE id = $1`,
		task.ID, task.Status, task.Attempts, task.LastError)
	if err != nil {
		return domain.Internal(err, "postgres.task", "failed to save reconciliation task")
	}
	return rowsAffected(tag, "postgres.task", nil)
}
