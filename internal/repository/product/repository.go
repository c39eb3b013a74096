package product

import (
	"context"

	"storefront/internal/domain"
)

// Filter narrows a product listing. Empty fields match everything.
type Filter struct {
	Query    string // case-insensitive match on name or description
	Category string
}

// Repository persists and fetches catalog products.
type Repository interface {
	List(ctx context.Context, f Filter) ([]domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
	Categories(ctx context.Context) ([]string, error)
	Create(ctx context.Context, p domain.Product) (*domain.Product, error)
	Update(ctx context.Context, p domain.Product) (*domain.Product, error)
	Delete(ctx context.Context, id string) error
}
