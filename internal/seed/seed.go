package seed

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// Options name the accounts created for manual testing. Empty emails are skipped.
type Options struct {
	AdminEmail    string
	AdminPassword string
	UserEmail     string
	UserPassword  string
}

type productSeed struct {
	ID          string
	Name        string
	Description string
	Price       string
	Category    string
	Stock       int
	ImageURL    string
}

var demoProducts = []productSeed{
	{
		ID:          "6b7c1f2e-0000-4000-8000-000000000001",
		Name:        "Demo T-Shirt",
		Description: "Soft cotton tee for demo purposes",
		Price:       "19.99",
		Category:    "Apparel",
		Stock:       25,
	},
	{
		ID:          "6b7c1f2e-0000-4000-8000-000000000002",
		Name:        "Demo Mug",
		Description: "Ceramic mug with demo logo",
		Price:       "12.99",
		Category:    "Kitchen",
		Stock:       40,
	},
	{
		ID:          "6b7c1f2e-0000-4000-8000-000000000003",
		Name:        "Desk Lamp",
		Description: "Adjustable lamp with warm light",
		Price:       "34.50",
		Category:    "Home",
		Stock:       8,
	},
	{
		ID:          "6b7c1f2e-0000-4000-8000-000000000004",
		Name:        "Limited Poster",
		Description: "Sold out print, useful for testing stock handling",
		Price:       "9.00",
		Category:    "Home",
		Stock:       0,
	},
}

// Apply inserts demo products and accounts. It is idempotent via ON CONFLICT.
func Apply(ctx context.Context, pool *pgxpool.Pool, opts Options) error {
	for _, p := range demoProducts {
		if err := upsertProduct(ctx, pool, p); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.Name, err)
		}
	}
	if opts.AdminEmail != "" {
		if err := upsertUser(ctx, pool, opts.AdminEmail, opts.AdminPassword, "admin"); err != nil {
			return fmt.Errorf("upsert admin: %w", err)
		}
	}
	if opts.UserEmail != "" {
		if err := upsertUser(ctx, pool, opts.UserEmail, opts.UserPassword, "user"); err != nil {
			return fmt.Errorf("upsert user: %w", err)
		}
	}
	return nil
}

func upsertProduct(ctx context.Context, pool *pgxpool.Pool, p productSeed) error {
	const q = `
INSERT INTO products (id, name, description, price, category, stock, image_url)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name,
    description = EXCLUDED.description,
    price = EXCLUDED.price,
    category = EXCLUDED.category,
    stock = EXCLUDED.stock,
    image_url = EXCLUDED.image_url,
    updated_at = now()
`
	price, err := decimal.NewFromString(p.Price)
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, q, p.ID, p.Name, p.Description, price, p.Category, p.Stock, p.ImageURL)
	return err
}

func upsertUser(ctx context.Context, pool *pgxpool.Pool, email, password, role string) error {
	if len(password) < 8 {
		return fmt.Errorf("password for %s must be at least 8 characters", email)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO users (email, password_hash, metadata_role)
VALUES ($1, $2, $3)
ON CONFLICT (email) DO UPDATE
SET password_hash = EXCLUDED.password_hash,
    metadata_role = EXCLUDED.metadata_role
`
	_, err = pool.Exec(ctx, q, strings.ToLower(strings.TrimSpace(email)), string(hash), role)
	return err
}
