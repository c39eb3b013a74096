package user

import (
	"context"
	"testing"

	"storefront/internal/dbtest"
	"storefront/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgres_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgres(dbtest.Pool(t), nil)

	created, err := repo.Create(ctx, domain.User{Email: "Shopper@Example.com", PasswordHash: "hash"})
	require.NoError(t, err)
	assert.Equal(t, "shopper@example.com", created.Email)
	assert.Equal(t, domain.RoleUser, created.MetadataRole)

	byEmail, err := repo.GetByEmail(ctx, "SHOPPER@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	byID, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash", byID.PasswordHash)

	_, err = repo.Create(ctx, domain.User{Email: "shopper@example.com", PasswordHash: "other"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	_, err = repo.GetByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgres_UpdateRole(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgres(dbtest.Pool(t), nil)

	created, err := repo.Create(ctx, domain.User{Email: "boss@example.com", PasswordHash: "hash"})
	require.NoError(t, err)

	updated, err := repo.UpdateRole(ctx, created.ID, domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, updated.MetadataRole)

	_, err = repo.UpdateRole(ctx, "00000000-0000-0000-0000-000000000000", domain.RoleAdmin)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
