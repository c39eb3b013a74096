// Package catalog serves product queries for shoppers and product
// management for admins.
package catalog

import (
	"context"
	"io"
	"path"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/logger"
	productrepo "storefront/internal/repository/product"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// AllCategories selects every category in Filter.
const AllCategories = "all"

// ImageStore persists uploaded product images.
type ImageStore interface {
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
	PublicURL(key string) string
}

// ProductInput is the admin product form. Pointer fields distinguish a
// missing value from zero.
type ProductInput struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Category    string           `json:"category"`
	Stock       *int             `json:"stock"`
	ImageURL    string           `json:"image_url"`
}

// Browse is the first load of the product list page.
type Browse struct {
	Products   []domain.Product `json:"products"`
	Categories []string         `json:"categories"`
}

type Service struct {
	repo   productrepo.Repository
	images ImageStore
	logger zerolog.Logger
}

func New(repo productrepo.Repository, images ImageStore, log *zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		images: images,
		logger: logger.OrNop(log).With().Str("service", "catalog").Logger(),
	}
}

// List returns every product, newest first. Store errors are logged and
// yield an empty list.
func (s *Service) List(ctx context.Context) []domain.Product {
	return s.list(ctx, productrepo.Filter{})
}

// Search matches q against name and description. A blank query lists everything.
func (s *Service) Search(ctx context.Context, q string) []domain.Product {
	return s.list(ctx, productrepo.Filter{Query: strings.TrimSpace(q)})
}

func (s *Service) ByCategory(ctx context.Context, category string) []domain.Product {
	return s.list(ctx, productrepo.Filter{Category: category})
}

// Filter applies the product list controls: a non-blank search wins over the
// category, and the category "all" or "" lists everything.
func (s *Service) Filter(ctx context.Context, q, category string) []domain.Product {
	if strings.TrimSpace(q) != "" {
		return s.Search(ctx, q)
	}
	if category == "" || category == AllCategories {
		return s.List(ctx)
	}
	return s.ByCategory(ctx, category)
}

// Categories returns the distinct non-empty categories.
func (s *Service) Categories(ctx context.Context) []string {
	cats, err := s.repo.Categories(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("list categories")
		return []string{}
	}
	return cats
}

// Browse loads the filtered products and the category list concurrently.
func (s *Service) Browse(ctx context.Context, q, category string) Browse {
	var out Browse
	var g errgroup.Group
	g.Go(func() error {
		out.Products = s.Filter(ctx, q, category)
		return nil
	})
	g.Go(func() error {
		out.Categories = s.Categories(ctx)
		return nil
	})
	_ = g.Wait()
	return out
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.Invalid("id", "Invalid product ID")
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, in ProductInput) (*domain.Product, error) {
	p, err := in.validate()
	if err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, p)
}

// Update replaces every editable field of product id.
func (s *Service) Update(ctx context.Context, id string, in ProductInput) (*domain.Product, error) {
	p, err := in.validate()
	if err != nil {
		return nil, err
	}
	p.ID = id
	return s.repo.Update(ctx, p)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}

// UploadImage stores an image under a fresh key and returns its public URL.
func (s *Service) UploadImage(ctx context.Context, filename string, r io.Reader) (string, error) {
	if !imageExts[strings.ToLower(path.Ext(filename))] {
		return "", domain.Invalid("file", "file must be a jpg, png, gif or webp image")
	}
	key, err := s.images.Save(ctx, filename, r)
	if err != nil {
		s.logger.Error().Err(err).Str("filename", filename).Msg("upload image")
		return "", err
	}
	url := s.images.PublicURL(key)
	s.logger.Info().Str("key", key).Msg("image uploaded")
	return url, nil
}

func (s *Service) list(ctx context.Context, f productrepo.Filter) []domain.Product {
	products, err := s.repo.List(ctx, f)
	if err != nil {
		s.logger.Error().Err(err).Str("query", f.Query).Str("category", f.Category).Msg("list products")
		return []domain.Product{}
	}
	return products
}

func (in ProductInput) validate() (domain.Product, error) {
	p := domain.Product{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		ImageURL:    strings.TrimSpace(in.ImageURL),
	}
	if p.Name == "" || p.Description == "" || p.Category == "" || in.Price == nil || in.Stock == nil {
		return p, domain.Invalid("product", "Please fill in all required fields")
	}
	if !in.Price.IsPositive() {
		return p, domain.Invalid("price", "Price must be a positive number")
	}
	if *in.Stock < 0 {
		return p, domain.Invalid("stock", "Stock must be a non-negative number")
	}
	p.Price = in.Price.Round(2)
	p.Stock = *in.Stock
	return p, nil
}
