// Package cartsession keeps browser-session state in Redis so a session
// survives process restarts and can be served by any API instance.
package cartsession

import (
	"context"
	"errors"
	"time"

	"storefront/internal/cart"
)

// ErrCacheMiss is returned when no record exists for a session.
var ErrCacheMiss = errors.New("cache miss")

// Record is the persisted state of one browser session.
type Record struct {
	Lines        []cart.Line `json:"lines"`
	RefreshToken string      `json:"refresh_token,omitempty"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

type Repository interface {
	Load(ctx context.Context, sessionID string) (*Record, error)
	Save(ctx context.Context, sessionID string, rec Record) error
	Delete(ctx context.Context, sessionID string) error
}
