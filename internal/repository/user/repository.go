package user

import (
	"context"

	"storefront/internal/domain"
)

// Repository persists and fetches identity-provider users.
type Repository interface {
	Create(ctx context.Context, u domain.User) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	UpdateRole(ctx context.Context, id, role string) (*domain.User, error)
}
