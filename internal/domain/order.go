package domain

import (
	"time"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order-related domain errors.
var (
	ErrOrderNotFound     = &Error{Code: ENOTFOUND, Message: "Order not found"}
	ErrOrderCancelled    = &Error{Code: ECONFLICT, Message: "Order has been cancelled"}
	ErrEmptyOrder        = &Error{Code: EINVALID, Message: "Order has no items"}
	ErrPaymentMismatch   = &Error{Code: EPAYMENT, Message: "Payment did not match the expected amount"}
	ErrInsufficientStock = &Error{Code: ECONFLICT, Message: "Insufficient stock for one or more items"}
)

// Order is the purchase aggregate. It owns its items; the associated
// Payment is looked up through the order (at most one live Payment per
// order).
type Order struct {
	ID        int64
	Status    OrderStatus
	Items     []OrderItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderItem links an order to a product with a quantity. Items are
// immutable once the order is placed.
type OrderItem struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int32
}

// Complete transitions the order to COMPLETED. Completing an
// already-completed order is a no-op so that duplicate verification
// attempts stay idempotent. A cancelled order never regresses.
func (o *Order) Complete() error {
	switch o.Status {
	case OrderStatusCompleted:
		return nil
	case OrderStatusCancelled:
		return WrapError(ErrOrderCancelled, ECONFLICT, "order.complete", "cannot complete a cancelled order")
	default:
		o.Status = OrderStatusCompleted
		return nil
	}
}

// Cancel transitions the order to CANCELLED. Both pending and completed
// orders may be cancelled; cancelling twice is a no-op.
func (o *Order) Cancel() {
	o.Status = OrderStatusCancelled
}
