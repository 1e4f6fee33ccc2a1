package service

import (
	"context"
	"log/slog"
	"sort"
	"strconv"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/dukerupert/verdandi/internal/telemetry"
)

// StockService applies and reverses the stock effects of an order. Both
// operations run as one transaction across all of the order's items: a
// partial decrement is never observable.
type StockService struct {
	store  Store
	logger *slog.Logger
}

// NewStockService creates a new StockService.
func NewStockService(store Store, logger *slog.Logger) *StockService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StockService{store: store, logger: logger}
}

// DecreaseStockForOrder decrements every item's product stock by the item
// quantity. The order must be COMPLETED - stock only moves for paid
// orders. A missing product or an insufficient balance aborts the whole
// operation and leaves all stock unchanged.
//
// The decrement is recorded in the stock adjustment ledger inside the
// same transaction, which makes the call idempotent: an already-applied
// order is a no-op, and a rolled-back order may be re-applied.
func (s *StockService) DecreaseStockForOrder(ctx context.Context, orderID int64) error {
	const op = "stock.decrease"

	applied := false
	err := s.store.WithTx(ctx, func(tx Store) error {
		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.OrderStatusCompleted {
			return domain.Conflict(op, "stock is only decremented for completed orders")
		}

		adj, err := tx.GetStockAdjustment(ctx, orderID)
		if err != nil && !domain.IsCode(err, domain.ENOTFOUND) {
			return domain.Internal(err, op, "failed to read stock adjustment")
		}
		if adj != nil && adj.Status == domain.StockAdjustmentApplied {
			return nil
		}

		items, err := tx.GetOrderItems(ctx, orderID)
		if err != nil {
			return domain.Internal(err, op, "failed to load order items")
		}

		// Stable lock order across orders sharing products.
		sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

		for _, item := range items {
			product, err := tx.GetProductForUpdate(ctx, item.ProductID)
			if err != nil {
				return err
			}
			if err := product.DecreaseStock(item.Quantity); err != nil {
				return err
			}
			if err := tx.SaveProduct(ctx, product); err != nil {
				return domain.Internal(err, op, "failed to save product stock")
			}
		}

		if adj == nil {
			adj = &domain.StockAdjustment{OrderID: orderID}
		}
		adj.Status = domain.StockAdjustmentApplied
		if err := tx.SaveStockAdjustment(ctx, adj); err != nil {
			return domain.Internal(err, op, "failed to record stock adjustment")
		}

		applied = true
		return nil
	})
	if err != nil {
		s.recordRejection(err)
		return err
	}

	// Idempotent no-ops (already applied) do not move the counters.
	if applied {
		s.recordApplied(ctx, orderID, true)
	}
	return nil
}

// RollbackStockForOrder restores every item's product stock by the item
// quantity. It is the compensating action for cancellation or refund and
// only reverses a decrement the ledger shows as applied, so calling it
// when nothing was decremented (or twice) is a safe no-op.
func (s *StockService) RollbackStockForOrder(ctx context.Context, orderID int64) error {
	const op = "stock.rollback"

	rolledBack := false
	err := s.store.WithTx(ctx, func(tx Store) error {
		if _, err := tx.GetOrder(ctx, orderID); err != nil {
			return err
		}

		adj, err := tx.GetStockAdjustment(ctx, orderID)
		if err != nil {
			if domain.IsCode(err, domain.ENOTFOUND) {
				// Never decremented; nothing to restore.
				return nil
			}
			return domain.Internal(err, op, "failed to read stock adjustment")
		}
		if adj.Status != domain.StockAdjustmentApplied {
			return nil
		}

		items, err := tx.GetOrderItems(ctx, orderID)
		if err != nil {
			return domain.Internal(err, op, "failed to load order items")
		}

		sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

		for _, item := range items {
			product, err := tx.GetProductForUpdate(ctx, item.ProductID)
			if err != nil {
				return err
			}
			if err := product.RestoreStock(item.Quantity); err != nil {
				return err
			}
			if err := tx.SaveProduct(ctx, product); err != nil {
				return domain.Internal(err, op, "failed to save product stock")
			}
		}

		adj.Status = domain.StockAdjustmentRolledBack
		if err := tx.SaveStockAdjustment(ctx, adj); err != nil {
			return domain.Internal(err, op, "failed to record stock rollback")
		}

		rolledBack = true
		return nil
	})
	if err != nil {
		s.recordRejection(err)
		return err
	}

	if rolledBack {
		s.recordApplied(ctx, orderID, false)
	}
	return nil
}

// recordApplied emits per-product counters after a committed adjustment.
func (s *StockService) recordApplied(ctx context.Context, orderID int64, decrement bool) {
	if telemetry.Business == nil {
		return
	}
	items, err := s.store.GetOrderItems(ctx, orderID)
	if err != nil {
		return
	}
	for _, item := range items {
		label := strconv.FormatInt(item.ProductID, 10)
		if decrement {
			telemetry.Business.StockDecremented.WithLabelValues(label).Add(float64(item.Quantity))
		} else {
			telemetry.Business.StockRolledBack.WithLabelValues(label).Add(float64(item.Quantity))
		}
	}
}

func (s *StockService) recordRejection(err error) {
	if telemetry.Business == nil {
		return
	}
	switch domain.ErrorCode(err) {
	case domain.ECONFLICT:
		telemetry.Business.StockRejected.WithLabelValues("insufficient_stock").Inc()
	case domain.ENOTFOUND:
		telemetry.Business.StockRejected.WithLabelValues("not_found").Inc()
	default:
		telemetry.Business.StockRejected.WithLabelValues("internal").Inc()
	}
}
