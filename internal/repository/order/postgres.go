package order

import (
	"context"
	"errors"

	"storefront/internal/domain"
	"storefront/internal/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const orderColumns = `id::text, user_id::text, total_amount, status, payment_method,
       full_name, email, phone, address, city, state, zip_code, created_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func NewPostgres(pool *pgxpool.Pool, log *zerolog.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logger.OrNop(log).With().Str("repo", "order").Logger()}
}

func (r *postgresRepo) Create(ctx context.Context, o domain.Order) (*domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	s := o.Shipping
	created, err := scanOrder(tx.QueryRow(ctx, `
INSERT INTO orders (user_id, total_amount, status, payment_method, full_name, email, phone, address, city, state, zip_code)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING `+orderColumns,
		o.UserID, o.TotalAmount, o.Status, o.PaymentMethod,
		s.FullName, s.Email, s.Phone, s.Address, s.City, s.State, s.ZipCode,
	))
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", o.UserID).Msg("insert order")
		return nil, err
	}

	created.Items = make([]domain.OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		item := domain.OrderItem{OrderID: created.ID, ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price}
		if err := tx.QueryRow(ctx, `
INSERT INTO order_items (order_id, product_id, quantity, price)
VALUES ($1, $2, $3, $4)
RETURNING id::text
`, created.ID, it.ProductID, it.Quantity, it.Price).Scan(&item.ID); err != nil {
			r.logger.Error().Err(err).Str("order_id", created.ID).Str("product_id", it.ProductID).Msg("insert order item")
			return nil, err
		}
		item.Product = it.Product
		created.Items = append(created.Items, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	r.logger.Info().
		Str("order_id", created.ID).
		Str("user_id", created.UserID).
		Int("items", len(created.Items)).
		Str("total", created.TotalAmount.StringFixed(2)).
		Msg("order placed")
	return created, nil
}

func (r *postgresRepo) Get(ctx context.Context, id string) (*domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id::text = $1`, id))
	if err != nil {
		return nil, err
	}
	list := []domain.Order{*o}
	if err := r.attachItems(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func (r *postgresRepo) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id::text = $1 ORDER BY created_at DESC, id`, userID)
}

func (r *postgresRepo) ListAll(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id`)
}

func (r *postgresRepo) UpdateStatus(ctx context.Context, id, status string) (*domain.Order, error) {
	cmd, err := r.pool.Exec(ctx, `UPDATE orders SET status = $2 WHERE id::text = $1`, id, status)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", id).Msg("update order status")
		return nil, err
	}
	if cmd.RowsAffected() == 0 {
		return nil, domain.ErrNotFound
	}
	r.logger.Info().Str("order_id", id).Str("status", status).Msg("order status changed")
	return r.Get(ctx, id)
}

func (r *postgresRepo) list(ctx context.Context, q string, args ...any) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		r.logger.Error().Err(err).Msg("list orders")
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// attachItems loads the items of every order in one query, each joined with
// the current product summary. Items whose product was deleted keep their
// purchase price and carry no summary.
func (r *postgresRepo) attachItems(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		index[orders[i].ID] = i
		orders[i].Items = make([]domain.OrderItem, 0)
	}

	rows, err := r.pool.Query(ctx, `
SELECT oi.id::text, oi.order_id::text, oi.product_id::text, oi.quantity, oi.price,
       p.name, p.image_url, p.price
FROM order_items oi
LEFT JOIN products p ON p.id = oi.product_id
WHERE oi.order_id::text = ANY($1)
ORDER BY oi.created_at, oi.id
`, ids)
	if err != nil {
		r.logger.Error().Err(err).Int("orders", len(ids)).Msg("load order items")
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			it           domain.OrderItem
			productID    *string
			name, image  *string
			currentPrice decimal.NullDecimal
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &productID, &it.Quantity, &it.Price, &name, &image, &currentPrice); err != nil {
			return err
		}
		if productID != nil {
			it.ProductID = *productID
		}
		if name != nil {
			summary := &domain.ProductSummary{ID: it.ProductID, Name: *name, Price: currentPrice.Decimal}
			if image != nil {
				summary.ImageURL = *image
			}
			it.Product = summary
		}
		i := index[it.OrderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	return rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	s := &o.Shipping
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.TotalAmount,
		&o.Status,
		&o.PaymentMethod,
		&s.FullName,
		&s.Email,
		&s.Phone,
		&s.Address,
		&s.City,
		&s.State,
		&s.ZipCode,
		&o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}
