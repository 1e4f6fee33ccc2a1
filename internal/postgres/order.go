package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/dukerupert/verdandi/internal/domain"
)

const orderColumns = `id, status, created_at, updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, domain.Internal(err, "postgres.order", "failed to scan order")
	}
	return &o, nil
}

// GetOrder retrieves an order by id, without its items.
func (s *Store) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	return scanOrder(row)
}

// GetOrderForUpdate retrieves an order and takes a row lock on it for the
// remainder of the enclosing transaction.
func (s *Store) GetOrderForUpdate(ctx context.Context, orderID int64) (*domain.Order, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID)
	return scanOrder(row)
}

// ListOrders returns all orders with their items, newest first.
func (s *Store) ListOrders(ctx context.Context) ([]domain.Order, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY id DESC`)
	if err != nil {
		return nil, domain.Internal(err, "postgres.order", "failed to list orders")
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, domain.Internal(err, "postgres.order", "failed to scan order")
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "postgres.order", "failed to list orders")
	}

	for i := range orders {
		items, err := s.GetOrderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

// CreateOrder inserts an order and its items, assigning their ids.
func (s *Store) CreateOrder(ctx context.Context, order *domain.Order) error {
	err := s.q.QueryRow(ctx,
		`INSERT INTO orders (status) VALUES ($1)
		 RETURNING id, created_at, updated_at`,
		order.Status,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return domain.Internal(err, "postgres.order", "failed to create order")
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err := s.q.QueryRow(ctx,
			`INSERT INTO order_items (order_id, product_id, quantity)
			 VALUES ($1, $2, $3)
			 RETURNING id`,
			item.OrderID, item.ProductID, item.Quantity,
		).Scan(&item.ID)
		if err != nil {
			return domain.Internal(err, "postgres.order", "failed to create order item")
		}
	}
	return nil
}

// SaveOrder persists the order's mutable state.
func (s *Store) SaveOrder(ctx context.Context, order *domain.Order) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`,
		order.ID, order.Status)
	if err != nil {
		return domain.Internal(err, "postgres.order", "failed to save order")
	}
	return rowsAffected(tag, "postgres.order", domain.ErrOrderNotFound)
}

// GetOrderItems returns the items of an order in insertion order.
func (s *Store) GetOrderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, order_id, product_id, quantity
		 FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, domain.Internal(err, "postgres.order", "failed to list order items")
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity); err != nil {
			return nil, domain.Internal(err, "postgres.order", "failed to scan order item")
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "postgres.order", "failed to list order items")
	}
	return items, nil
}
