package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the internal payment state vocabulary. Gateway-specific
// status strings are collapsed into these values before any decision is
// made on them.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Payment records a single charge against an order (1:1). It is created
// lazily on the first successful verification and mutated in place after
// that, never deleted.
type Payment struct {
	ID int64

	// OrderID is the owning order. At most one live payment per order.
	OrderID int64

	// Amount is the verified charge amount. Set only by CompletePayment.
	Amount decimal.Decimal

	// GatewayReference is the external payment id at the gateway.
	GatewayReference string

	Status PaymentStatus

	// Method is the payment instrument reported by the gateway ("card",
	// "vbank", ...). Empty when the gateway omitted it.
	Method string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPayment seeds a payment for an order from a verified gateway charge.
func NewPayment(orderID int64, amount decimal.Decimal, gatewayRef string) *Payment {
	return &Payment{
		OrderID:          orderID,
		Amount:           amount,
		GatewayReference: gatewayRef,
		Status:           PaymentStatusPaid,
	}
}

// CompletePayment marks the payment PAID and records the verified amount
// and instrument. This is the single place a payment is mutated after
// creation; callers must only invoke it once verification has passed.
func (p *Payment) CompletePayment(amount decimal.Decimal, method string) {
	p.Amount = amount
	p.Status = PaymentStatusPaid
	if method != "" {
		p.Method = method
	}
}

// Refund marks the payment refunded after a cancellation.
func (p *Payment) Refund() {
	p.Status = PaymentStatusRefunded
}
