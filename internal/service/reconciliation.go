package service

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/dukerupert/verdandi/internal/telemetry"
)

// ReconcileParams carries a verified charge into the reconciliation step.
type ReconcileParams struct {
	OrderID          int64
	GatewayReference string
	PaidAmount       decimal.Decimal

	// Method is the payment instrument from the gateway payload. Optional;
	// empty leaves the payment's method unset.
	Method string
}

// ReconciliationService atomically updates Payment and Order state after a
// verification has passed. It is the only writer of post-payment state.
type ReconciliationService struct {
	store  Store
	logger *slog.Logger
}

// NewReconciliationService creates a new ReconciliationService.
func NewReconciliationService(store Store, logger *slog.Logger) *ReconciliationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconciliationService{store: store, logger: logger}
}

// Reconcile persists the verified charge: payment lookup-or-create,
// CompletePayment, then the order's transition to COMPLETED, all in one
// transaction with the order row locked so concurrent completions of the
// same order serialize.
//
// Failure handling follows the money. A missing order is a precondition
// violation (ENOTFOUND) - a server-side data-integrity fault, not a
// payment mismatch. Any other failure happens after the gateway confirmed
// a real charge, so it is escalated as ERECONCILE and a retry task is
// enqueued; it is never folded into a quiet "verification failed".
func (s *ReconciliationService) Reconcile(ctx context.Context, params ReconcileParams) error {
	err := s.applyIn(ctx, s.store, params)
	if err == nil {
		return nil
	}

	if domain.IsCode(err, domain.ENOTFOUND) {
		// The order was never created; nothing to retry against.
		return err
	}

	s.logger.Error("reconciliation failed after confirmed charge",
		"order_id", params.OrderID,
		"gateway_reference", params.GatewayReference,
		"paid_amount", params.PaidAmount.String(),
		"error", err,
	)
	if telemetry.Business != nil {
		telemetry.Business.ReconciliationFailed.Inc()
	}

	task := &domain.ReconciliationTask{
		OrderID:          params.OrderID,
		GatewayReference: params.GatewayReference,
		PaidAmount:       params.PaidAmount,
		Method:           params.Method,
		Status:           domain.TaskStatusPending,
		LastError:        err.Error(),
	}
	if enqueueErr := s.store.EnqueueReconciliationTask(ctx, task); enqueueErr != nil {
		// Both the update and the queue write failed. Log loudly; the
		// charge still exists at the gateway and an operator has to act.
		s.logger.Error("failed to enqueue reconciliation retry; manual intervention required",
			"order_id", params.OrderID,
			"gateway_reference", params.GatewayReference,
			"error", enqueueErr,
		)
	}

	return domain.Reconciliation(err, "reconciliation.reconcile", "failed to persist verified payment")
}

// Apply re-runs the reconciliation without escalation or re-enqueueing.
// The semantics are identical to Reconcile's transactional body and
// remain idempotent across attempts.
func (s *ReconciliationService) Apply(ctx context.Context, params ReconcileParams) error {
	return s.applyIn(ctx, s.store, params)
}

// ApplyTx is Apply scoped to the caller's transaction. The retry worker
// uses it so a claimed task stays locked while it is re-applied; the
// inner work runs under its own savepoint, so its failure does not take
// the caller's transaction down with it.
func (s *ReconciliationService) ApplyTx(ctx context.Context, tx Store, params ReconcileParams) error {
	return s.applyIn(ctx, tx, params)
}

func (s *ReconciliationService) applyIn(ctx context.Context, store Store, params ReconcileParams) error {
	const op = "reconciliation.apply"

	return store.WithTx(ctx, func(tx Store) error {
		order, err := tx.GetOrderForUpdate(ctx, params.OrderID)
		if err != nil {
			return err
		}

		payment, err := tx.GetPaymentByOrder(ctx, order.ID)
		if err != nil {
			if !domain.IsCode(err, domain.ENOTFOUND) {
				return domain.Internal(err, op, "failed to look up payment")
			}
			payment = domain.NewPayment(order.ID, params.PaidAmount, params.GatewayReference)
		}

		payment.CompletePayment(params.PaidAmount, params.Method)
		if err := tx.SavePayment(ctx, payment); err != nil {
			return domain.Internal(err, op, "failed to save payment")
		}

		if err := order.Complete(); err != nil {
			return err
		}
		if err := tx.SaveOrder(ctx, order); err != nil {
			return domain.Internal(err, op, "failed to save order")
		}

		return nil
	})
}
