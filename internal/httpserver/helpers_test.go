package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"storefront/internal/cart"
	"storefront/internal/domain"
	"storefront/internal/service/catalog"
	"storefront/internal/service/identity"
	ordersvc "storefront/internal/service/order"
	"storefront/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	shopper = domain.Identity{SubjectID: "u1", Email: "shopper@example.com", Role: domain.RoleUser}
	admin   = domain.Identity{SubjectID: "a1", Email: "admin@example.com", Role: domain.RoleAdmin}
)

// stubIdentity signs in the two fixture identities with password "secret123"
// and accepts "token-<subject id>" as their bearer tokens.
type stubIdentity struct {
	mu       sync.Mutex
	signOuts []string
	revoked  []string
	roles    map[string]string
}

func (s *stubIdentity) lookup(email string) (domain.Identity, bool) {
	switch email {
	case shopper.Email:
		return shopper, true
	case admin.Email:
		return admin, true
	}
	return domain.Identity{}, false
}

func (s *stubIdentity) session(id domain.Identity) *identity.Session {
	return &identity.Session{
		AccessToken:  "token-" + id.SubjectID,
		RefreshToken: "refresh-" + id.SubjectID,
		ExpiresAt:    time.Now().Add(time.Hour),
		Identity:     id,
	}
}

func (s *stubIdentity) SignUp(_ context.Context, email, password, _ string) (*identity.Session, error) {
	if len(password) < 8 {
		return nil, domain.Invalid("password", "Password must be at least 8 characters")
	}
	if _, ok := s.lookup(email); ok {
		return nil, domain.Invalid("email", "user already registered")
	}
	return s.session(domain.Identity{SubjectID: "new", Email: email, Role: domain.RoleUser}), nil
}

func (s *stubIdentity) SignIn(_ context.Context, email, password, _ string) (*identity.Session, error) {
	id, ok := s.lookup(email)
	if !ok || password != "secret123" {
		return nil, identity.ErrInvalidCredentials
	}
	return s.session(id), nil
}

func (s *stubIdentity) Refresh(_ context.Context, token string) (*identity.Session, error) {
	switch token {
	case "refresh-" + shopper.SubjectID:
		return s.session(shopper), nil
	case "refresh-" + admin.SubjectID:
		return s.session(admin), nil
	}
	return nil, identity.ErrInvalidToken
}

func (s *stubIdentity) SignOut(_ context.Context, userID, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signOuts = append(s.signOuts, userID)
	return nil
}

func (s *stubIdentity) SignOutEverywhere(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked = append(s.revoked, userID)
	return nil
}

func (s *stubIdentity) CurrentSession(_ context.Context, token string) (*domain.Identity, error) {
	switch token {
	case "token-" + shopper.SubjectID:
		id := shopper
		return &id, nil
	case "token-" + admin.SubjectID:
		id := admin
		return &id, nil
	}
	return nil, identity.ErrInvalidToken
}

func (s *stubIdentity) UpdateProfileRole(_ context.Context, userID, role string) (*domain.Identity, error) {
	if role != domain.RoleAdmin && role != domain.RoleUser {
		return nil, domain.Invalid("role", "role must be admin or user")
	}
	if userID != shopper.SubjectID {
		return nil, domain.ErrNotFound
	}
	s.mu.Lock()
	if s.roles == nil {
		s.roles = map[string]string{}
	}
	s.roles[userID] = role
	s.mu.Unlock()
	id := shopper
	id.Role = role
	return &id, nil
}

type stubCatalog struct {
	products []domain.Product
	created  []catalog.ProductInput
	deleted  []string
	uploads  []string
}

func (s *stubCatalog) Filter(_ context.Context, q, category string) []domain.Product {
	out := []domain.Product{}
	for _, p := range s.products {
		if q != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q)) {
			continue
		}
		if q == "" && category != "" && category != catalog.AllCategories && p.Category != category {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (s *stubCatalog) Browse(ctx context.Context, q, category string) catalog.Browse {
	return catalog.Browse{Products: s.Filter(ctx, q, category), Categories: s.Categories(ctx)}
}

func (s *stubCatalog) Categories(context.Context) []string {
	return []string{"Home", "Kitchen"}
}

func (s *stubCatalog) Get(_ context.Context, id string) (*domain.Product, error) {
	for _, p := range s.products {
		if p.ID == id {
			clone := p
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *stubCatalog) Create(_ context.Context, in catalog.ProductInput) (*domain.Product, error) {
	if in.Name == "" || in.Price == nil {
		return nil, domain.Invalid("name", "Please fill in all required fields")
	}
	s.created = append(s.created, in)
	return &domain.Product{ID: "new", Name: in.Name, Price: *in.Price}, nil
}

func (s *stubCatalog) Update(ctx context.Context, id string, in catalog.ProductInput) (*domain.Product, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Name = in.Name
	return p, nil
}

func (s *stubCatalog) Delete(_ context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubCatalog) UploadImage(_ context.Context, filename string, r io.Reader) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	s.uploads = append(s.uploads, filename)
	return "http://files.test/files/product-images/" + filename, nil
}

type stubOrders struct {
	placed []ordersvc.CheckoutInput
	lines  [][]cart.Line
	err    error
	during func()
}

func (s *stubOrders) Checkout(_ context.Context, buyer domain.Identity, lines []cart.Line, in ordersvc.CheckoutInput) (*domain.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(lines) == 0 {
		return nil, domain.Invalid("cart", "Your cart is empty")
	}
	if s.during != nil {
		s.during()
	}
	s.placed = append(s.placed, in)
	s.lines = append(s.lines, lines)
	return &domain.Order{ID: "o1", UserID: buyer.SubjectID, Status: domain.OrderPending, TotalAmount: decimal.RequireFromString("19.98")}, nil
}

func (s *stubOrders) ListForUser(_ context.Context, userID string) ([]domain.Order, error) {
	return []domain.Order{{ID: "o1", UserID: userID}}, nil
}

func (s *stubOrders) Get(_ context.Context, caller domain.Identity, id string) (*domain.Order, error) {
	if id != "o1" || (caller.SubjectID != shopper.SubjectID && !caller.IsAdmin()) {
		return nil, domain.ErrNotFound
	}
	return &domain.Order{ID: "o1", UserID: shopper.SubjectID}, nil
}

func (s *stubOrders) ListAll(context.Context) ([]domain.Order, error) {
	return []domain.Order{{ID: "o1", UserID: shopper.SubjectID}, {ID: "o2", UserID: "u2"}}, nil
}

func (s *stubOrders) UpdateStatus(_ context.Context, id, status string) (*domain.Order, error) {
	if !domain.ValidOrderStatus(status) {
		return nil, domain.Invalid("status", "unknown status")
	}
	return &domain.Order{ID: id, Status: status}, nil
}

type testEnv struct {
	router   *gin.Engine
	identity *stubIdentity
	catalog  *stubCatalog
	orders   *stubOrders
	sessions *session.Manager
}

var (
	mug    = domain.Product{ID: "p1", Name: "Mug", Price: decimal.RequireFromString("9.99"), Category: "Kitchen", Stock: 3}
	lamp   = domain.Product{ID: "p2", Name: "Lamp", Price: decimal.RequireFromString("24.50"), Category: "Home", Stock: 1}
	sofa   = domain.Product{ID: "p3", Name: "Sofa", Price: decimal.RequireFromString("499.00"), Category: "Home", Stock: 0}
	stocks = []domain.Product{mug, lamp, sofa}
)

func newTestEnv(t *testing.T, mutate ...func(*Deps)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		identity: &stubIdentity{},
		catalog:  &stubCatalog{products: stocks},
		orders:   &stubOrders{},
	}
	env.sessions = session.NewManager(session.Config{Catalog: env.catalog}, nil)
	deps := Deps{
		IdentitySvc: env.identity,
		CatalogSvc:  env.catalog,
		OrderSvc:    env.orders,
		Sessions:    env.sessions,
	}
	for _, fn := range mutate {
		fn(&deps)
	}
	router, err := buildRouter(zerolog.Nop(), deps, Options{})
	require.NoError(t, err)
	env.router = router
	return env
}

// client replays the session cookie the way a browser does.
type client struct {
	t      *testing.T
	env    *testEnv
	cookie *http.Cookie
	bearer string
}

func (e *testEnv) client(t *testing.T) *client {
	return &client{t: t, env: e}
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	rec := httptest.NewRecorder()
	c.env.router.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.Name == SessionCookie {
			c.cookie = ck
		}
	}
	return rec
}

func (c *client) signIn(email string) {
	c.t.Helper()
	rec := c.do(http.MethodPost, "/api/auth/signin", map[string]string{"email": email, "password": "secret123"})
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
