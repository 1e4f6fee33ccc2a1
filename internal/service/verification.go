package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/dukerupert/verdandi/internal/gateway"
	"github.com/dukerupert/verdandi/internal/telemetry"
)

// VerificationService confirms gateway-reported payments against expected
// orders and amounts. Verification is total over its input domain: wrong
// status, mismatched amount, an unreachable gateway, or a malformed
// payload all resolve to false - only the mutation step after a confirmed
// charge may surface an error.
type VerificationService struct {
	gateway gateway.Client
	recon   *ReconciliationService
	logger  *slog.Logger
}

// NewVerificationService creates a new VerificationService.
func NewVerificationService(gw gateway.Client, recon *ReconciliationService, logger *slog.Logger) *VerificationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &VerificationService{
		gateway: gw,
		recon:   recon,
		logger:  logger,
	}
}

// VerifyPayment checks with the gateway that the referenced payment
// succeeded for exactly the expected amount, and on success reconciles
// Payment and Order state.
//
// Returns (true, nil) only when the mapped status is PAID and the paid
// total exactly equals expected (decimal equality, so 15000 matches
// 15000.00). Gateway and parsing failures return (false, nil) with no
// state mutation. A reconciliation failure after a confirmed charge
// returns (false, err) with an ERECONCILE or ENOTFOUND error - the one
// path that must stay observable, because the money movement is real.
//
// Calling VerifyPayment again for an already-completed order with a
// still-valid PAID record is safe: reconciliation re-applies as a no-op
// and no duplicate payment is created.
func (s *VerificationService) VerifyPayment(ctx context.Context, paymentRef string, orderID int64, expected decimal.Decimal) (bool, error) {
	start := time.Now()
	defer func() {
		if telemetry.Business != nil {
			telemetry.Business.VerificationLatency.Observe(time.Since(start).Seconds())
		}
	}()

	token, err := s.gateway.GetAccessToken(ctx)
	if err != nil {
		s.logger.Warn("gateway authentication failed",
			"payment_reference", paymentRef,
			"order_id", orderID,
			"error", err,
		)
		return s.fail("gateway_error"), nil
	}

	details, err := s.gateway.GetPaymentDetails(ctx, paymentRef, token)
	if err != nil {
		s.logger.Warn("gateway payment lookup failed",
			"payment_reference", paymentRef,
			"order_id", orderID,
			"error", err,
		)
		return s.fail("gateway_error"), nil
	}

	status := gateway.MapStatus(details.Status)
	if status != domain.PaymentStatusPaid {
		s.logger.Info("payment status did not verify",
			"payment_reference", paymentRef,
			"order_id", orderID,
			"gateway_status", details.Status,
			"mapped_status", string(status),
		)
		return s.fail("status"), nil
	}

	paid, ok := gateway.ExtractTotal(details.Amount)
	if !ok {
		s.logger.Warn("gateway payload missing paid total",
			"payment_reference", paymentRef,
			"order_id", orderID,
		)
		return s.fail("amount_missing"), nil
	}
	if !paid.Equal(expected) {
		s.logger.Info("paid amount did not match expected",
			"payment_reference", paymentRef,
			"order_id", orderID,
			"expected", expected.String(),
			"paid", paid.String(),
		)
		return s.fail("amount_mismatch"), nil
	}

	err = s.recon.Reconcile(ctx, ReconcileParams{
		OrderID:          orderID,
		GatewayReference: paymentRef,
		PaidAmount:       paid,
		Method:           details.PayMethod,
	})
	if err != nil {
		if telemetry.Business != nil {
			telemetry.Business.VerificationAttempts.WithLabelValues("escalated").Inc()
		}
		return false, err
	}

	s.logger.Info("payment verified",
		"payment_reference", paymentRef,
		"order_id", orderID,
		"amount", paid.String(),
		"method", details.PayMethod,
	)
	if telemetry.Business != nil {
		telemetry.Business.VerificationAttempts.WithLabelValues("passed").Inc()
		telemetry.Business.VerificationPassed.Inc()
	}
	return true, nil
}

// fail records a failed verification outcome and returns false.
func (s *VerificationService) fail(reason string) bool {
	if telemetry.Business != nil {
		telemetry.Business.VerificationAttempts.WithLabelValues("failed").Inc()
		telemetry.Business.VerificationFailed.WithLabelValues(reason).Inc()
	}
	return false
}
