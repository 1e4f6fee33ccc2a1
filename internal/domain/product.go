package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product-related domain errors.
var (
	ErrProductNotFound = &Error{Code: ENOTFOUND, Message: "Product not found"}
)

// Product is a shared resource referenced by order items across many
// orders. Only its stock counter mutates; everything else is read-only
// after creation.
type Product struct {
	ID        int64
	Name      string
	Price     decimal.Decimal
	Stock     int32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DecreaseStock removes quantity units from stock. Stock never goes
// negative; an insufficient balance fails the whole call without
// mutating anything.
func (p *Product) DecreaseStock(quantity int32) error {
	if quantity <= 0 {
		return Invalid("product.decrease_stock", "quantity must be positive")
	}
	if p.Stock < quantity {
		return WrapError(ErrInsufficientStock, ECONFLICT, "product.decrease_stock", p.Name)
	}
	p.Stock -= quantity
	return nil
}

// RestoreStock returns quantity units to stock. It reverses a previously
// applied decrement; callers track which decrements were actually applied
// (see StockAdjustment) since the counter alone cannot.
func (p *Product) RestoreStock(quantity int32) error {
	if quantity <= 0 {
		return Invalid("product.restore_stock", "quantity must be positive")
	}
	p.Stock += quantity
	return nil
}

// StockAdjustmentStatus tracks whether an order's stock decrement is
// currently applied.
type StockAdjustmentStatus string

const (
	StockAdjustmentApplied    StockAdjustmentStatus = "applied"
	StockAdjustmentRolledBack StockAdjustmentStatus = "rolled_back"
)

// StockAdjustment is the per-order decrement ledger entry. It is written
// in the same transaction as the decrement itself, which is what lets a
// rollback distinguish "never decremented" from "already rolled back".
type StockAdjustment struct {
	OrderID   int64
	Status    StockAdjustmentStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
