// Package order turns a cart into an order and serves order history.
package order

import (
	"context"
	"strings"

	"storefront/internal/cart"
	"storefront/internal/domain"
	"storefront/internal/logger"
	orderrepo "storefront/internal/repository/order"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CheckoutInput is the checkout form.
type CheckoutInput struct {
	domain.ShippingInfo
	PaymentMethod string `json:"payment_method"`
}

type Service struct {
	repo   orderrepo.Repository
	logger zerolog.Logger
}

func New(repo orderrepo.Repository, log *zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.OrNop(log).With().Str("service", "order").Logger()}
}

// Checkout places an order for the cart lines. The order and its items are
// written atomically; the caller clears the cart on success.
func (s *Service) Checkout(ctx context.Context, buyer domain.Identity, lines []cart.Line, in CheckoutInput) (*domain.Order, error) {
	if len(lines) == 0 {
		return nil, domain.Invalid("cart", "Your cart is empty")
	}
	ship, err := normalizeShipping(in.ShippingInfo, buyer.Email)
	if err != nil {
		return nil, err
	}
	method := strings.TrimSpace(in.PaymentMethod)
	if method == "" {
		method = domain.PaymentCashOnDelivery
	}
	if method != domain.PaymentCashOnDelivery {
		return nil, domain.Invalid("payment_method", "Only cash on delivery is supported")
	}

	total := decimal.Zero
	items := make([]domain.OrderItem, 0, len(lines))
	for _, l := range lines {
		total = total.Add(l.Subtotal())
		items = append(items, domain.OrderItem{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     l.UnitPrice,
			Product:   &domain.ProductSummary{ID: l.ProductID, Name: l.Name, ImageURL: l.ImageRef, Price: l.UnitPrice},
		})
	}

	o, err := s.repo.Create(ctx, domain.Order{
		UserID:        buyer.SubjectID,
		TotalAmount:   total.Round(2),
		Status:        domain.OrderPending,
		PaymentMethod: method,
		Shipping:      ship,
		Items:         items,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", buyer.SubjectID).Msg("checkout failed")
		return nil, err
	}
	return o, nil
}

func (s *Service) ListForUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Get returns an order visible to caller: its owner or any admin. Orders of
// other users are reported as not found.
func (s *Service) Get(ctx context.Context, caller domain.Identity, id string) (*domain.Order, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != caller.SubjectID && !caller.IsAdmin() {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

func (s *Service) ListAll(ctx context.Context) ([]domain.Order, error) {
	return s.repo.ListAll(ctx)
}

func (s *Service) UpdateStatus(ctx context.Context, id, status string) (*domain.Order, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !domain.ValidOrderStatus(status) {
		return nil, domain.Invalid("status", "status must be one of pending, processing, shipped, delivered, cancelled")
	}
	return s.repo.UpdateStatus(ctx, id, status)
}

func normalizeShipping(in domain.ShippingInfo, fallbackEmail string) (domain.ShippingInfo, error) {
	out := domain.ShippingInfo{
		FullName: strings.TrimSpace(in.FullName),
		Email:    strings.TrimSpace(in.Email),
		Phone:    strings.TrimSpace(in.Phone),
		Address:  strings.TrimSpace(in.Address),
		City:     strings.TrimSpace(in.City),
		State:    strings.TrimSpace(in.State),
		ZipCode:  strings.TrimSpace(in.ZipCode),
	}
	if out.Email == "" {
		out.Email = fallbackEmail
	}
	required := []struct{ field, value string }{
		{"full_name", out.FullName},
		{"email", out.Email},
		{"phone", out.Phone},
		{"address", out.Address},
		{"city", out.City},
		{"state", out.State},
		{"zip_code", out.ZipCode},
	}
	for _, r := range required {
		if r.value == "" {
			return out, domain.Invalid(r.field, "Please fill in all shipping fields")
		}
	}
	return out, nil
}
