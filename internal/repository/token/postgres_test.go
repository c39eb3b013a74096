package token

import (
	"context"
	"testing"
	"time"

	"storefront/internal/dbtest"
	"storefront/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgres_RefreshTokenLifecycle(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	repo := NewPostgres(pool)
	userID := dbtest.InsertUser(t, pool, "tok@example.com")

	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.Create(ctx, RefreshToken{Token: "r1", UserID: userID, ExpiresAt: exp}))
	require.NoError(t, repo.Create(ctx, RefreshToken{Token: "r2", UserID: userID, ExpiresAt: exp}))
	assert.ErrorIs(t, repo.Create(ctx, RefreshToken{Token: "r1", UserID: userID, ExpiresAt: exp}), domain.ErrAlreadyExists)

	got, err := repo.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, userID, got.UserID)
	assert.True(t, got.ExpiresAt.Equal(exp))
	assert.False(t, got.Expired(time.Now()))

	require.NoError(t, repo.Delete(ctx, "r1"))
	assert.ErrorIs(t, repo.Delete(ctx, "r1"), domain.ErrNotFound)

	require.NoError(t, repo.DeleteForUser(ctx, userID))
	_, err = repo.Get(ctx, "r2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
