// Package worker drains the reconciliation retry queue. Each pending
// task is a gateway-confirmed charge whose order/payment update failed;
// the worker re-applies it until it succeeds or its attempts run out.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/dukerupert/verdandi/internal/service"
	"github.com/dukerupert/verdandi/internal/telemetry"
)

// Config holds worker configuration
type Config struct {
	// PollInterval is how often to check for pending tasks
	PollInterval time.Duration

	// MaxAttempts is how many times a task is retried before it is
	// parked for manual intervention
	MaxAttempts int32
}

// Worker retries failed reconciliations in the background.
type Worker struct {
	config Config
	store  service.Store
	recon  *service.ReconciliationService
	logger *slog.Logger
}

// NewWorker creates a reconciliation retry worker.
func NewWorker(store service.Store, recon *service.ReconciliationService, config Config, logger *slog.Logger) *Worker {
	// Set defaults
	if config.PollInterval == 0 {
		config.PollInterval = 15 * time.Second
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = 5
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		config: config,
		store:  store,
		recon:  recon,
		logger: logger,
	}
}

// Start processes tasks until the context is cancelled. Each tick drains
// the queue completely so a burst of failures does not wait one poll
// interval per task.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("reconciliation worker starting",
		"poll_interval", w.config.PollInterval,
		"max_attempts", w.config.MaxAttempts,
	)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reconciliation worker shutting down")
			return ctx.Err()
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain processes pending tasks until the queue is empty, a retry fails,
// or the context is cancelled. Stopping on the first failure keeps a
// stuck task from burning through all its attempts in one tick.
func (w *Worker) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		task, err := w.ProcessOne(ctx)
		if err != nil {
			w.logger.Error("failed to process reconciliation task", "error", err)
			return
		}
		if task == nil || task.Status == domain.TaskStatusPending {
			return
		}
	}
}

// ProcessOne claims and retries a single pending task, returning the
// task in its post-attempt state, or nil when the queue is empty.
// Claim, retry, and the attempt bookkeeping run in one transaction, so
// the claimed row stays locked until the outcome is committed and a
// second worker instance can never double-count an attempt.
func (w *Worker) ProcessOne(ctx context.Context) (*domain.ReconciliationTask, error) {
	var claimed *domain.ReconciliationTask
	err := w.store.WithTx(ctx, func(tx service.Store) error {
		task, err := tx.ClaimPendingReconciliationTask(ctx)
		if err != nil || task == nil {
			return err
		}
		claimed = task
		return w.retry(ctx, tx, task)
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// retry re-applies the task's reconciliation and records the outcome.
// The reconciliation runs under its own savepoint, so a failed attempt
// rolls back its partial writes while the attempt count still commits.
func (w *Worker) retry(ctx context.Context, tx service.Store, task *domain.ReconciliationTask) error {
	applyErr := w.recon.ApplyTx(ctx, tx, service.ReconcileParams{
		OrderID:          task.OrderID,
		GatewayReference: task.GatewayReference,
		PaidAmount:       task.PaidAmount,
		Method:           task.Method,
	})

	task.Attempts++
	if applyErr == nil {
		task.Status = domain.TaskStatusDone
		task.LastError = ""
		if telemetry.Business != nil {
			telemetry.Business.ReconciliationRetried.Inc()
		}
		w.logger.Info("reconciliation retry succeeded",
			"task_id", task.ID,
			"order_id", task.OrderID,
			"attempts", task.Attempts,
		)
	} else {
		task.LastError = applyErr.Error()
		if task.Attempts >= w.config.MaxAttempts {
			task.Status = domain.TaskStatusManual
			if telemetry.Business != nil {
				telemetry.Business.ReconciliationManual.Inc()
			}
			w.logger.Error("reconciliation task needs manual intervention",
				"task_id", task.ID,
				"order_id", task.OrderID,
				"gateway_reference", task.GatewayReference,
				"attempts", task.Attempts,
				"error", applyErr,
			)
		} else {
			w.logger.Warn("reconciliation retry failed",
				"task_id", task.ID,
				"order_id", task.OrderID,
				"attempts", task.Attempts,
				"error", applyErr,
			)
		}
	}

	return tx.SaveReconciliationTask(ctx, task)
}
