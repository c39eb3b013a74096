package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const productColumns = `id::text, name, description, price, category, stock, image_url, created_at, updated_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func NewPostgres(pool *pgxpool.Pool, log *zerolog.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logger.OrNop(log).With().Str("repo", "product").Logger()}
}

func (r *postgresRepo) List(ctx context.Context, f Filter) ([]domain.Product, error) {
	var (
		where []string
		args  []any
	)
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}

	q := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, id`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		r.logger.Error().Err(err).Str("query", f.Query).Str("category", f.Category).Msg("list products")
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("list products rows")
		return nil, err
	}
	r.logger.Debug().Str("query", f.Query).Str("category", f.Category).Int("count", len(result)).Msg("listed products")
	return result, nil
}

func (r *postgresRepo) Get(ctx context.Context, id string) (*domain.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE id::text = $1`
	p, err := scanProduct(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.Error().Err(err).Str("id", id).Msg("get product")
		}
		return nil, err
	}
	return p, nil
}

func (r *postgresRepo) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT category FROM products WHERE category <> '' ORDER BY category`)
	if err != nil {
		r.logger.Error().Err(err).Msg("list categories")
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *postgresRepo) Create(ctx context.Context, p domain.Product) (*domain.Product, error) {
	q := `
INSERT INTO products (id, name, description, price, category, stock, image_url)
VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7)
RETURNING ` + productColumns
	created, err := scanProduct(r.pool.QueryRow(ctx, q,
		p.ID,
		p.Name,
		p.Description,
		p.Price,
		p.Category,
		p.Stock,
		p.ImageURL,
	))
	if err != nil {
		r.logger.Error().Err(err).Str("name", p.Name).Msg("create product")
		return nil, err
	}
	r.logger.Info().Str("id", created.ID).Str("name", created.Name).Msg("created product")
	return created, nil
}

func (r *postgresRepo) Update(ctx context.Context, p domain.Product) (*domain.Product, error) {
	q := `
UPDATE products SET
    name = $2,
    description = $3,
    price = $4,
    category = $5,
    stock = $6,
    image_url = $7,
    updated_at = now()
WHERE id::text = $1
RETURNING ` + productColumns
	updated, err := scanProduct(r.pool.QueryRow(ctx, q,
		p.ID,
		p.Name,
		p.Description,
		p.Price,
		p.Category,
		p.Stock,
		p.ImageURL,
	))
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.Error().Err(err).Str("id", p.ID).Msg("update product")
		}
		return nil, err
	}
	r.logger.Info().Str("id", updated.ID).Msg("updated product")
	return updated, nil
}

func (r *postgresRepo) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id::text = $1`, id)
	if err != nil {
		r.logger.Error().Err(err).Str("id", id).Msg("delete product")
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	r.logger.Info().Str("id", id).Msg("deleted product")
	return nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Category,
		&p.Stock,
		&p.ImageURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrAlreadyExists
		}
		return nil, err
	}
	return &p, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
