package postgres

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/verdandi/internal/domain"
)

// Amounts are stored as NUMERIC and moved through the wire as text so
// no float conversion ever touches a money value.
const paymentColumns = `id, order_id, amount::text, gateway_reference, status, method, created_at, updated_at`

func scanPayment(row pgx.Row, notFound error) (*domain.Payment, error) {
	var (
		p      domain.Payment
		amount string
	)
	err := row.Scan(&p.ID, &p.OrderID, &amount, &p.GatewayReference,
		&p.Status, &p.Method, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound
		}
		return nil, domain.Internal(err, "postgres.payment", "failed to scan payment")
	}
	p.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, domain.Internal(err, "postgres.payment", "invalid stored amount")
	}
	return &p, nil
}

// GetPaymentByOrder retrieves the payment attached to an order.
func (s *Store) GetPaymentByOrder(ctx context.Context, orderID int64) (*domain.Payment, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE order_id = $1`, orderID)
	return scanPayment(row,
		domain.NotFound("postgres.payment", "payment for order", strconv.FormatInt(orderID, 10)))
}

// GetPaymentByReference retrieves a payment by its gateway payment id.
func (s *Store) GetPaymentByReference(ctx context.Context, gatewayRef string) (*domain.Payment, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE gateway_reference = $1`, gatewayRef)
	return scanPayment(row,
		domain.NotFound("postgres.payment", "payment", gatewayRef))
}

// SavePayment inserts the payment when it has no id yet, otherwise
// updates it in place.
func (s *Store) SavePayment(ctx context.Context, payment *domain.Payment) error {
	if payment.ID == 0 {
		err := s.q.QueryRow(ctx,
			`INSERT INTO payments (order_id, amount, gateway_reference, status, method)
			 VALUES ($1, $2::numeric, $3, $4, $5)
			 RETURNING id, created_at, updated_at`,
			payment.OrderID, payment.Amount.String(), payment.GatewayReference,
			payment.Status, payment.Method,
		).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
		if err != nil {
			return domain.Internal(err, "postgres.payment", "failed to create payment")
		}
		return nil
	}

	tag, err := s.q.Exec(ctx,
		`UPDATE payments
		 SET amount = $2::numeric, status = $3, method = $4, updated_at = now()
		 WHERE id = $1`,
		payment.ID, payment.Amount.String(), payment.Status, payment.Method)
	if err != nil {
		return domain.Internal(err, "postgres.payment", "failed to save payment")
	}
	return rowsAffected(tag, "postgres.payment", nil)
}
