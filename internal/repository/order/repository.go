package order

import (
	"context"

	"storefront/internal/domain"
)

// Repository persists orders together with their line items.
type Repository interface {
	// Create writes the order and all of its items in one transaction.
	Create(ctx context.Context, o domain.Order) (*domain.Order, error)
	Get(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListAll(ctx context.Context) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id, status string) (*domain.Order, error)
}
