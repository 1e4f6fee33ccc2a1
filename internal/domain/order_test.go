package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/dukerupert/verdandi/internal/domain"
)

func Test_Order_Complete(t *testing.T) {
	tests := []struct {
		name      string
		status    domain.OrderStatus
		wantErr   bool
		wantState domain.OrderStatus
	}{
		{
			name:      "pending completes",
			status:    domain.OrderStatusPending,
			wantState: domain.OrderStatusCompleted,
		},
		{
			name:      "completed is a no-op",
			status:    domain.OrderStatusCompleted,
			wantState: domain.OrderStatusCompleted,
		},
		{
			name:      "cancelled never regresses",
			status:    domain.OrderStatusCancelled,
			wantErr:   true,
			wantState: domain.OrderStatusCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := &domain.Order{ID: 1, Status: tt.status}
			err := order.Complete()
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, domain.IsCode(err, domain.ECONFLICT))
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantState, order.Status)
		})
	}
}

func Test_Order_Cancel(t *testing.T) {
	order := &domain.Order{ID: 1, Status: domain.OrderStatusCompleted}
	order.Cancel()
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)

	// Cancelling again stays put.
	order.Cancel()
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)
}

func Test_Payment_CompletePayment(t *testing.T) {
	p := &domain.Payment{OrderID: 1, Status: domain.PaymentStatusPending, Method: "vbank"}

	p.CompletePayment(decimal.NewFromInt(9900), "card")
	assert.Equal(t, domain.PaymentStatusPaid, p.Status)
	assert.Equal(t, "card", p.Method)
	assert.True(t, decimal.NewFromInt(9900).Equal(p.Amount))

	// An empty method leaves the recorded instrument alone.
	p.CompletePayment(decimal.NewFromInt(9900), "")
	assert.Equal(t, "card", p.Method)
}

func Test_Product_DecreaseStock(t *testing.T) {
	tests := []struct {
		name      string
		stock     int32
		quantity  int32
		wantErr   string
		wantStock int32
	}{
		{
			name:      "normal decrement",
			stock:     10,
			quantity:  2,
			wantStock: 8,
		},
		{
			name:      "exact depletion",
			stock:     2,
			quantity:  2,
			wantStock: 0,
		},
		{
			name:      "insufficient stock",
			stock:     1,
			quantity:  2,
			wantErr:   domain.ECONFLICT,
			wantStock: 1,
		},
		{
			name:      "zero quantity rejected",
			stock:     10,
			quantity:  0,
			wantErr:   domain.EINVALID,
			wantStock: 10,
		},
		{
			name:      "negative quantity rejected",
			stock:     10,
			quantity:  -3,
			wantErr:   domain.EINVALID,
			wantStock: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &domain.Product{ID: 7, Name: "Widget", Stock: tt.stock}
			err := p.DecreaseStock(tt.quantity)
			if tt.wantErr != "" {
				assert.Error(t, err)
				assert.True(t, domain.IsCode(err, tt.wantErr))
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantStock, p.Stock)
		})
	}
}

func Test_Product_RestoreStock(t *testing.T) {
	p := &domain.Product{ID: 7, Stock: 8}
	assert.NoError(t, p.RestoreStock(2))
	assert.Equal(t, int32(10), p.Stock)

	err := p.RestoreStock(0)
	assert.Error(t, err)
	assert.Equal(t, int32(10), p.Stock)
}
