package service

import (
	"context"

	"github.com/dukerupert/verdandi/internal/domain"
)

// Store is the persistence boundary the services compose into larger
// transactional units. Single-record operations are atomic on their own;
// anything that must update several records together runs inside WithTx.
//
// The *ForUpdate variants acquire an exclusive per-row update scope
// (row-level lock in the Postgres implementation, a per-key mutex in the
// in-memory one) and are only meaningful inside WithTx. They are what
// serializes two concurrent completions of the same order, and two
// concurrent decrements of the same product.
type Store interface {
	// WithTx runs fn against a transactional view of the store. fn
	// returning an error rolls back every write made through tx.
	WithTx(ctx context.Context, fn func(tx Store) error) error

	// Orders
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	GetOrderForUpdate(ctx context.Context, orderID int64) (*domain.Order, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
	CreateOrder(ctx context.Context, order *domain.Order) error
	SaveOrder(ctx context.Context, order *domain.Order) error
	GetOrderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error)

	// Payments (looked up through their order; at most one per order)
	GetPaymentByOrder(ctx context.Context, orderID int64) (*domain.Payment, error)
	GetPaymentByReference(ctx context.Context, gatewayRef string) (*domain.Payment, error)
	SavePayment(ctx context.Context, payment *domain.Payment) error

	// Products
	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)
	GetProductForUpdate(ctx context.Context, productID int64) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product *domain.Product) error
	SaveProduct(ctx context.Context, product *domain.Product) error

	// Stock adjustment ledger
	GetStockAdjustment(ctx context.Context, orderID int64) (*domain.StockAdjustment, error)
	SaveStockAdjustment(ctx context.Context, adj *domain.StockAdjustment) error

	// Reconciliation retry queue
	EnqueueReconciliationTask(ctx context.Context, task *domain.ReconciliationTask) error
	ClaimPendingReconciliationTask(ctx context.Context) (*domain.ReconciliationTask, error)
	SaveReconciliationTask(ctx context.Context, task *domain.ReconciliationTask) error
}
