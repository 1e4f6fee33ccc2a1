package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/dukerupert/verdandi/internal/telemetry"
)

// NewOrderItem is one requested line of a new order.
type NewOrderItem struct {
	ProductID int64
	Quantity  int32
}

// OrderService provides order placement and cancellation around the
// payment pipeline. Orders are created PENDING; verification completes
// them, cancellation reverses their stock effects.
type OrderService struct {
	store  Store
	stock  *StockService
	logger *slog.Logger
}

// NewOrderService creates a new OrderService.
func NewOrderService(store Store, stock *StockService, logger *slog.Logger) *OrderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderService{store: store, stock: stock, logger: logger}
}

// CreateOrder places a new pending order. Every referenced product must
// exist; the order and all its items are written in one transaction.
func (s *OrderService) CreateOrder(ctx context.Context, items []NewOrderItem) (*domain.Order, error) {
	const op = "order.create"

	if len(items) == 0 {
		return nil, domain.WrapError(domain.ErrEmptyOrder, domain.EINVALID, op, "order must contain at least one item")
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, domain.Errorf(domain.EINVALID, op, "invalid quantity %d for product %d", item.Quantity, item.ProductID)
		}
	}

	order := &domain.Order{Status: domain.OrderStatusPending}

	err := s.store.WithTx(ctx, func(tx Store) error {
		for _, item := range items {
			if _, err := tx.GetProduct(ctx, item.ProductID); err != nil {
				return err
			}
		}

		order.Items = make([]domain.OrderItem, len(items))
		for i, item := range items {
			order.Items[i] = domain.OrderItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
			}
		}
		return tx.CreateOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order created", "order_id", order.ID, "items", len(order.Items))
	if telemetry.Business != nil {
		telemetry.Business.OrdersCreated.Inc()
	}
	return order, nil
}

// GetOrder retrieves a single order with its items.
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, domain.Internal(err, "order.get", "failed to load order items")
	}
	order.Items = items
	return order, nil
}

// ListOrders returns all orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.store.ListOrders(ctx)
}

// CancelOrder transitions the order to CANCELLED, marks a paid payment
// refunded, and restores whatever stock the order had decremented.
// Cancelling an already-cancelled order is a no-op.
func (s *OrderService) CancelOrder(ctx context.Context, orderID int64) error {
	const op = "order.cancel"

	err := s.store.WithTx(ctx, func(tx Store) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status == domain.OrderStatusCancelled {
			return nil
		}

		order.Cancel()
		if err := tx.SaveOrder(ctx, order); err != nil {
			return domain.Internal(err, op, "failed to save order")
		}

		payment, err := tx.GetPaymentByOrder(ctx, orderID)
		if err != nil {
			if domain.IsCode(err, domain.ENOTFOUND) {
				return nil
			}
			return domain.Internal(err, op, "failed to look up payment")
		}
		if payment.Status == domain.PaymentStatusPaid {
			payment.Refund()
			if err := tx.SavePayment(ctx, payment); err != nil {
				return domain.Internal(err, op, "failed to save payment")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Compensating stock action. Safe even when the decrement never ran:
	// the ledger makes rollback a no-op in that case.
	if err := s.stock.RollbackStockForOrder(ctx, orderID); err != nil {
		return fmt.Errorf("order cancelled but stock rollback failed: %w", err)
	}

	s.logger.Info("order cancelled", "order_id", orderID)
	if telemetry.Business != nil {
		telemetry.Business.OrdersCancelled.Inc()
	}
	return nil
}
