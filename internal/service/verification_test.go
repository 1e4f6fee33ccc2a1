package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/dukerupert/verdandi/internal/gateway"
	"github.com/dukerupert/verdandi/internal/memstore"
	"github.com/dukerupert/verdandi/internal/service"
)

type verifyFixture struct {
	store    *memstore.Store
	mock     *gateway.MockClient
	recon    *service.ReconciliationService
	verifier *service.VerificationService
}

func newVerifyFixture(t *testing.T) *verifyFixture {
	t.Helper()
	store := memstore.New()
	mock := gateway.NewMockClient()
	recon := service.NewReconciliationService(store, nil)
	return &verifyFixture{
		store:    store,
		mock:     mock,
		recon:    recon,
		verifier: service.NewVerificationService(mock, recon, nil),
	}
}

// seedOrder creates a product and a pending order for it, returning the
// order id.
func (f *verifyFixture) seedOrder(t *testing.T, qty int32) int64 {
	t.Helper()
	ctx := context.Background()

	product := &domain.Product{Name: "Widget", Price: decimal.NewFromInt(7500), Stock: 10}
	require.NoError(t, f.store.CreateProduct(ctx, product))

	order := &domain.Order{
		Status: domain.OrderStatusPending,
		Items:  []domain.OrderItem{{ProductID: product.ID, Quantity: qty}},
	}
	require.NoError(t, f.store.CreateOrder(ctx, order))
	return order.ID
}

func Test_VerifyPayment_Passes(t *testing.T) {
	f := newVerifyFixture(t)
	ctx := context.Background()
	orderID := f.seedOrder(t, 2)

	// Gateway reports a string total; the expected amount carries a scale.
	f.mock.AddPayment("imp_42", "PAID", `"15000"`, "card")

	ok, err := f.verifier.VerifyPayment(ctx, "imp_42", orderID, decimal.RequireFromString("15000.00"))
	require.NoError(t, err)
	assert.True(t, ok)

	order, err := f.store.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, order.Status)

	payment, err := f.store.GetPaymentByOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, payment.Status)
	assert.Equal(t, "imp_42", payment.GatewayReference)
	assert.Equal(t, "card", payment.Method)
	assert.True(t, decimal.NewFromInt(15000).Equal(payment.Amount))
}

func Test_VerifyPayment_FailedStatus(t *testing.T) {
	f := newVerifyFixture(t)
	ctx := context.Background()
	orderID := f.seedOrder(t, 1)

	f.mock.AddPayment("imp_43", "FAILED", `15000`, "card")

	ok, err := f.verifier.VerifyPayment(ctx, "imp_43", orderID, decimal.NewFromInt(15000))
	require.NoError(t, err)
	assert.False(t, ok)

	// Nothing was mutated.
	order, err := f.store.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, order.Status)

	_, err = f.store.GetPaymentByOrder(ctx, orderID)
	assert.True(t, domain.IsCode(err, domain.ENOTFOUND))
}

func Test_VerifyPayment_RefundedStatusDoesNotVerify(t *testing.T) {
	f := newVerifyFixture(t)
	ctx := context.Background()
	orderID := f.seedOrder(t, 1)

	f.mock.AddPayment("imp_ref", "CANCELLED", `15000`, "card")

	ok, err := f.verifier.VerifyPayment(ctx, "imp_ref", orderID, decimal.NewFromInt(15000))
	require.NoError(t, err)
	assert.False(t, ok)
}

func Test_VerifyPayment_AmountMismatch(t *testing.T) {
	f := newVerifyFixture(t)
	ctx := context.Background()
	orderID := f.seedOrder(t, 1)

	f.mock.AddPayment("imp_44", "PAID", `"2999"`, "card")

	ok, err := f.verifier.VerifyPayment(ctx, "imp_44", orderID, decimal.NewFromInt(3000))
	require.NoError(t, err)
	assert.False(t, ok)

	order, err := f.store.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
}

func Test_VerifyPayment_AmountMissing(t *testing.T) {
	f := newVerifyFixture(t)
	ctx := context.Background()
	orderID := f.seedOrder(t, 1)

	f.mock.Payments["imp_nil"] = &gateway.PaymentDetails{Status: "PAID", Amount: nil}

	ok, err := f.verifier.VerifyPayment(ctx, "imp_nil", orderID, decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.False(t, ok)
}

func Test_VerifyPayment_GatewayErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(m *gateway.MockClient)
	}{
		{
			name: "token fetch fails",
			setup: func(m *gateway.MockClient) {
				m.GetAccessTokenFunc = func(ctx context.Context) (string, error) {
					return "", errors.New("gateway unreachable")
				}
			},
		},
		{
			name: "payment lookup fails",
			setup: func(m *gateway.MockClient) {
				m.GetPaymentDetailsFunc = func(ctx context.Context, paymentRef, accessToken string) (*gateway.PaymentDetails, error) {
					return nil, errors.New("gateway timeout")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newVerifyFixture(t)
			orderID := f.seedOrder(t, 1)
			tt.setup(f.mock)

			ok, err := f.verifier.VerifyPayment(context.Background(), "imp_x", orderID, decimal.NewFromInt(100))
			require.NoError(t, err, "gateway faults resolve to false, not error")
			assert.False(t, ok)
		})
	}
}

// Verifying the same paid order twice must not create a second payment
// or disturb the completed order.
func Test_VerifyPayment_Idempotent(t *testing.T) {
	f := newVerifyFixture(t)
	ctx := context.Background()
	orderID := f.seedOrder(t, 1)

	f.mock.AddPayment("imp_dup", "PAID", `5000`, "vbank")
	expected := decimal.NewFromInt(5000)

	ok, err := f.verifier.VerifyPayment(ctx, "imp_dup", orderID, expected)
	require.NoError(t, err)
	require.True(t, ok)

	first, err := f.store.GetPaymentByOrder(ctx, orderID)
	require.NoError(t, err)

	ok, err = f.verifier.VerifyPayment(ctx, "imp_dup", orderID, expected)
	require.NoError(t, err)
	assert.True(t, ok)

	second, err := f.store.GetPaymentByOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "no duplicate payment row")

	order, err := f.store.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, order.Status)
}

// A verified charge whose persistence fails must surface an error and
// leave a retry task behind - never a quiet false.
func Test_VerifyPayment_EscalatesReconciliationFailure(t *testing.T) {
	f := newVerifyFixture(t)
	ctx := context.Background()
	orderID := f.seedOrder(t, 1)

	f.mock.AddPayment("imp_esc", "PAID", `8000`, "card")
	f.store.FailSaveOrder = errors.New("connection reset")

	ok, err := f.verifier.VerifyPayment(ctx, "imp_esc", orderID, decimal.NewFromInt(8000))
	assert.False(t, ok)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ERECONCILE))

	task, err := f.store.ClaimPendingReconciliationTask(ctx)
	require.NoError(t, err)
	require.NotNil(t, task, "retry task enqueued")
	assert.Equal(t, orderID, task.OrderID)
	assert.Equal(t, "imp_esc", task.GatewayReference)
	assert.True(t, decimal.NewFromInt(8000).Equal(task.PaidAmount))
}

// A charge verified against an order that does not exist is a data
// integrity fault, not something a retry can fix.
func Test_VerifyPayment_MissingOrderIsNotRetried(t *testing.T) {
	f := newVerifyFixture(t)
	ctx := context.Background()

	f.mock.AddPayment("imp_ghost", "PAID", `8000`, "card")

	ok, err := f.verifier.VerifyPayment(ctx, "imp_ghost", 9999, decimal.NewFromInt(8000))
	assert.False(t, ok)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ENOTFOUND))

	task, err := f.store.ClaimPendingReconciliationTask(ctx)
	require.NoError(t, err)
	assert.Nil(t, task, "no retry task for a missing order")
}
