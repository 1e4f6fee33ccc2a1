package postgres

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/verdandi/internal/domain"
)

const productColumns = `id, name, price::text, stock, created_at, updated_at`

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		p     domain.Product
		price string
	)
	err := row.Scan(&p.ID, &p.Name, &price, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, domain.Internal(err, "postgres.product", "failed to scan product")
	}
	p.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, domain.Internal(err, "postgres.product", "invalid stored price")
	}
	return &p, nil
}

// GetProduct retrieves a product by id.
func (s *Store) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, productID)
	return scanProduct(row)
}

// GetProductForUpdate retrieves a product and takes a row lock on it,
// which is what serializes concurrent stock decrements of one product.
func (s *Store) GetProductForUpdate(ctx context.Context, productID int64) (*domain.Product, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, productID)
	return scanProduct(row)
}

// ListProducts returns all products, oldest first.
func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, domain.Internal(err, "postgres.product", "failed to list products")
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var (
			p     domain.Product
			price string
		)
		if err := rows.Scan(&p.ID, &p.Name, &price, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, domain.Internal(err, "postgres.product", "failed to scan product")
		}
		p.Price, err = decimal.NewFromString(price)
		if err != nil {
			return nil, domain.Internal(err, "postgres.product", "invalid stored price")
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "postgres.product", "failed to list products")
	}
	return products, nil
}

// CreateProduct inserts a product and assigns its id.
func (s *Store) CreateProduct(ctx context.Context, product *domain.Product) error {
	err := s.q.QueryRow(ctx,
		`INSERT INTO products (name, price, stock)
		 VALUES ($1, $2::numeric, $3)
		 RETURNING id, created_at, updated_at`,
		product.Name, product.Price.String(), product.Stock,
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return domain.Internal(err, "postgres.product", "failed to create product")
	}
	return nil
}

// SaveProduct persists the product's mutable state. The stock CHECK
// constraint backs up the domain-level guard against negative stock.
func (s *Store) SaveProduct(ctx context.Context, product *domain.Product) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE products
		 SET name = $2, price = $3::numeric, stock = $4, updated_at = now()
		 WHERE id = $1`,
		product.ID, product.Name, product.Price.String(), product.Stock)
	if err != nil {
		return domain.Internal(err, "postgres.product", "failed to save product")
	}
	return rowsAffected(tag, "postgres.product", domain.ErrProductNotFound)
}

// GetStockAdjustment retrieves the stock ledger entry for an order.
func (s *Store) GetStockAdjustment(ctx context.Context, orderID int64) (*domain.StockAdjustment, error) {
	var a domain.StockAdjustment
	err := s.q.QueryRow(ctx,
		`SELECT order_id, status, created_at, updated_at
		 FROM stock_adjustments WHERE order_id = $1`, orderID,
	).Scan(&a.OrderID, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("postgres.stock", "stock adjustment",
				strconv.FormatInt(orderID, 10))
		}
		return nil, domain.Internal(err, "postgres.stock", "failed to scan stock adjustment")
	}
	return &a, nil
}

// SaveStockAdjustment upserts the ledger entry for an order. There is at
// most one entry per order; repeated saves only flip its status.
func (s *Store) SaveStockAdjustment(ctx context.Context, adj *domain.StockAdjustment) error {
	err := s.q.QueryRow(ctx,
		`INSERT INTO stock_adjustments (order_id, status)
		 VALUES ($1, $2)
		 ON CONFLICT (order_id)
		 DO UPDATE SET status = EXCLUDED.status, updated_at = now()
		 RETURNING created_at, updated_at`,
		adj.OrderID, adj.Status,
	).Scan(&adj.CreatedAt, &adj.UpdatedAt)
	if err != nil {
		return domain.Internal(err, "postgres.stock", "failed to save stock adjustment")
	}
	return nil
}
