package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for business-level
// observability of the payment pipeline.
type BusinessMetrics struct {
	// Verification outcomes
	VerificationAttempts *prometheus.CounterVec
	VerificationPassed   prometheus.Counter
	VerificationFailed   *prometheus.CounterVec
	VerificationLatency  prometheus.Histogram

	// Reconciliation
	ReconciliationFailed  prometheus.Counter
	ReconciliationRetried prometheus.Counter
	ReconciliationManual  prometheus.Counter

	// Stock
	StockDecremented *prometheus.CounterVec
	StockRolledBack  *prometheus.CounterVec
	StockRejected    *prometheus.CounterVec

	// Orders
	OrdersCreated   prometheus.Counter
	OrdersCancelled prometheus.Counter

	// External gateway performance
	GatewayLatency *prometheus.HistogramVec
}

// NewBusinessMetrics creates and registers all business metrics.
func NewBusinessMetrics(namespace string) *BusinessMetrics {
	if namespace == "" {
		namespace = "verdandi"
	}

	subsystem := "business"

	m := &BusinessMetrics{
		VerificationAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "verification_attempts_total",
				Help:      "Total payment verification attempts",
			},
			[]string{"outcome"}, // outcome: passed, failed, escalated
		),
		VerificationPassed: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "verification_passed_total",
				Help:      "Total verifications that confirmed a matching charge",
			},
		),
		VerificationFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "verification_failed_total",
				Help:      "Total verifications resolved as failure",
			},
			[]string{"reason"}, // reason: gateway_error, status, amount_missing, amount_mismatch
		),
		VerificationLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "verification_duration_seconds",
				Help:      "Verification pipeline duration including gateway round trips",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		ReconciliationFailed: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "reconciliation_failed_total",
				Help:      "Total post-charge persistence failures (charge confirmed, records lag)",
			},
		),
		ReconciliationRetried: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "reconciliation_retried_total",
				Help:      "Total reconciliation retry attempts by the worker",
			},
		),
		ReconciliationManual: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "reconciliation_manual_total",
				Help:      "Total reconciliation tasks parked for manual review",
			},
		),
		StockDecremented: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "stock_decremented_total",
				Help:      "Total units decremented from stock",
			},
			[]string{"product_id"},
		),
		StockRolledBack: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "stock_rolled_back_total",
				Help:      "Total units restored to stock on cancellation",
			},
			[]string{"product_id"},
		),
		StockRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "stock_rejected_total",
				Help:      "Total stock operations aborted (insufficient stock, missing product)",
			},
			[]string{"reason"},
		),
		OrdersCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_created_total",
				Help:      "Total orders created",
			},
		),
		OrdersCancelled: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_cancelled_total",
				Help:      "Total orders cancelled",
			},
		),
		GatewayLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "gateway_api_duration_seconds",
				Help:      "Gateway API call duration (differentiates app slowness from gateway issues)",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation"}, // operation: get_token, get_payment_details
		),
	}

	return m
}

// Global instance for easy access from services and handlers
var Business *BusinessMetrics

// InitBusinessMetrics initializes the global business metrics instance
func InitBusinessMetrics(namespace string) *BusinessMetrics {
	Business = NewBusinessMetrics(namespace)
	return Business
}
