package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/verdandi/internal/domain"
)

// ProductService provides the minimal product surface needed to observe
// stock end to end.
type ProductService struct {
	store Store
}

// NewProductService creates a new ProductService.
func NewProductService(store Store) *ProductService {
	return &ProductService{store: store}
}

// CreateProduct registers a product with an initial stock level.
func (s *ProductService) CreateProduct(ctx context.Context, name string, price decimal.Decimal, stock int32) (*domain.Product, error) {
	const op = "product.create"

	if name == "" {
		return nil, domain.Invalid(op, "product name is required")
	}
	if price.IsNegative() {
		return nil, domain.Invalid(op, "price must not be negative")
	}
	if stock < 0 {
		return nil, domain.Invalid(op, "stock must not be negative")
	}

	product := &domain.Product{Name: name, Price: price, Stock: stock}
	if err := s.store.CreateProduct(ctx, product); err != nil {
		return nil, domain.Internal(err, op, "failed to create product")
	}
	return product, nil
}

// GetProduct retrieves a product by id.
func (s *ProductService) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	return s.store.GetProduct(ctx, productID)
}

// ListProducts returns all products.
func (s *ProductService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.store.ListProducts(ctx)
}
