package user

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const userColumns = `id::text, email, password_hash, metadata_role, created_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgres returns a Repository backed by Postgres.
func NewPostgres(pool *pgxpool.Pool, log *zerolog.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logger.OrNop(log).With().Str("repo", "user").Logger()}
}

func (r *postgresRepo) Create(ctx context.Context, u domain.User) (*domain.User, error) {
	role := u.MetadataRole
	if role == "" {
		role = domain.RoleUser
	}
	q := `
INSERT INTO users (email, password_hash, metadata_role)
VALUES ($1, $2, $3)
RETURNING ` + userColumns
	return r.scanUser(r.pool.QueryRow(ctx, q, strings.ToLower(u.Email), u.PasswordHash, role))
}

func (r *postgresRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1) LIMIT 1`
	return r.scanUser(r.pool.QueryRow(ctx, q, email))
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id::text = $1 LIMIT 1`
	return r.scanUser(r.pool.QueryRow(ctx, q, id))
}

func (r *postgresRepo) UpdateRole(ctx context.Context, id, role string) (*domain.User, error) {
	q := `UPDATE users SET metadata_role = $2 WHERE id::text = $1 RETURNING ` + userColumns
	u, err := r.scanUser(r.pool.QueryRow(ctx, q, id, role))
	if err != nil {
		return nil, err
	}
	r.logger.Info().Str("id", id).Str("role", role).Msg("updated user role")
	return u, nil
}

func (r *postgresRepo) scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.MetadataRole, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrAlreadyExists
		}
		r.logger.Error().Err(err).Msg("scan user")
		return nil, err
	}
	return &u, nil
}
