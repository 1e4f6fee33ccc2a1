package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/dukerupert/verdandi/internal/memstore"
	"github.com/dukerupert/verdandi/internal/service"
)

func seedPendingOrder(t *testing.T, store *memstore.Store) int64 {
	t.Helper()
	ctx := context.Background()

	p := &domain.Product{Name: "Widget", Price: decimal.NewFromInt(5000), Stock: 5}
	require.NoError(t, store.CreateProduct(ctx, p))

	order := &domain.Order{
		Status: domain.OrderStatusPending,
		Items:  []domain.OrderItem{{ProductID: p.ID, Quantity: 1}},
	}
	require.NoError(t, store.CreateOrder(ctx, order))
	return order.ID
}

func Test_Reconcile_CreatesPaymentAndCompletesOrder(t *testing.T) {
	store := memstore.New()
	recon := service.NewReconciliationService(store, nil)
	ctx := context.Background()
	orderID := seedPendingOrder(t, store)

	err := recon.Reconcile(ctx, service.ReconcileParams{
		OrderID:          orderID,
		GatewayReference: "imp_abc",
		PaidAmount:       decimal.NewFromInt(5000),
		Method:           "card",
	})
	require.NoError(t, err)

	order, err := store.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, order.Status)

	payment, err := store.GetPaymentByOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, payment.Status)
	assert.Equal(t, "card", payment.Method)
	assert.Equal(t, "imp_abc", payment.GatewayReference)
}

func Test_Reconcile_UpdatesExistingPayment(t *testing.T) {
	store := memstore.New()
	recon := service.NewReconciliationService(store, nil)
	ctx := context.Background()
	orderID := seedPendingOrder(t, store)

	existing := &domain.Payment{
		OrderID:          orderID,
		Amount:           decimal.Zero,
		GatewayReference: "imp_pre",
		Status:           domain.PaymentStatusPending,
	}
	require.NoError(t, store.SavePayment(ctx, existing))

	err := recon.Reconcile(ctx, service.ReconcileParams{
		OrderID:          orderID,
		GatewayReference: "imp_pre",
		PaidAmount:       decimal.NewFromInt(5000),
	})
	require.NoError(t, err)

	payment, err := store.GetPaymentByOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, payment.ID, "existing payment mutated, not replaced")
	assert.Equal(t, domain.PaymentStatusPaid, payment.Status)
	assert.True(t, decimal.NewFromInt(5000).Equal(payment.Amount))
}

func Test_Reconcile_MissingOrderPassesThrough(t *testing.T) {
	store := memstore.New()
	recon := service.NewReconciliationService(store, nil)

	err := recon.Reconcile(context.Background(), service.ReconcileParams{
		OrderID:          12345,
		GatewayReference: "imp_none",
		PaidAmount:       decimal.NewFromInt(100),
	})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ENOTFOUND))

	task, err := store.ClaimPendingReconciliationTask(context.Background())
	require.NoError(t, err)
	assert.Nil(t, task)
}

func Test_Reconcile_PersistenceFailureEnqueuesRetry(t *testing.T) {
	store := memstore.New()
	recon := service.NewReconciliationService(store, nil)
	ctx := context.Background()
	orderID := seedPendingOrder(t, store)

	store.FailSavePayment = errors.New("disk full")

	err := recon.Reconcile(ctx, service.ReconcileParams{
		OrderID:          orderID,
		GatewayReference: "imp_fail",
		PaidAmount:       decimal.NewFromInt(5000),
		Method:           "card",
	})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ERECONCILE))

	// The failed transaction left nothing behind...
	order, err := store.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, order.Status)

	// ...except the retry task carrying the full charge.
	task, err := store.ClaimPendingReconciliationTask(ctx)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, orderID, task.OrderID)
	assert.Equal(t, "imp_fail", task.GatewayReference)
	assert.Equal(t, "card", task.Method)
	assert.Equal(t, domain.TaskStatusPending, task.Status)
	assert.NotEmpty(t, task.LastError)
}

// When even the queue write fails the caller still gets ERECONCILE; the
// failure is never converted into a quiet verification failure.
func Test_Reconcile_EnqueueFailureStillEscalates(t *testing.T) {
	store := memstore.New()
	recon := service.NewReconciliationService(store, nil)
	ctx := context.Background()
	orderID := seedPendingOrder(t, store)

	store.FailSavePayment = errors.New("disk full")
	store.FailEnqueueTask = errors.New("disk still full")

	err := recon.Reconcile(ctx, service.ReconcileParams{
		OrderID:          orderID,
		GatewayReference: "imp_worse",
		PaidAmount:       decimal.NewFromInt(5000),
	})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ERECONCILE))
}

func Test_Apply_IsIdempotent(t *testing.T) {
	store := memstore.New()
	recon := service.NewReconciliationService(store, nil)
	ctx := context.Background()
	orderID := seedPendingOrder(t, store)

	params := service.ReconcileParams{
		OrderID:          orderID,
		GatewayReference: "imp_twice",
		PaidAmount:       decimal.NewFromInt(5000),
	}
	require.NoError(t, recon.Apply(ctx, params))
	require.NoError(t, recon.Apply(ctx, params))

	first, err := store.GetPaymentByOrder(ctx, orderID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(5000).Equal(first.Amount))
}

func Test_Apply_CancelledOrderConflicts(t *testing.T) {
	store := memstore.New()
	recon := service.NewReconciliationService(store, nil)
	ctx := context.Background()
	orderID := seedPendingOrder(t, store)

	order, err := store.GetOrder(ctx, orderID)
	require.NoError(t, err)
	order.Cancel()
	require.NoError(t, store.SaveOrder(ctx, order))

	err = recon.Apply(ctx, service.ReconcileParams{
		OrderID:          orderID,
		GatewayReference: "imp_late",
		PaidAmount:       decimal.NewFromInt(5000),
	})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ECONFLICT))

	// The payment write inside the failed transaction must not survive.
	_, err = store.GetPaymentByOrder(ctx, orderID)
	assert.True(t, domain.IsCode(err, domain.ENOTFOUND))
}
