package httpserver

import (
	"context"
	"errors"
	"io"
	"time"

	"storefront/internal/cart"
	"storefront/internal/domain"
	"storefront/internal/navigation"
	"storefront/internal/service/catalog"
	"storefront/internal/service/identity"
	ordersvc "storefront/internal/service/order"
	"storefront/internal/session"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type identityService interface {
	SignUp(ctx context.Context, email, password, roleHint string) (*identity.Session, error)
	SignIn(ctx context.Context, email, password, userType string) (*identity.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*identity.Session, error)
	SignOut(ctx context.Context, userID, refreshToken string) error
	SignOutEverywhere(ctx context.Context, userID string) error
	CurrentSession(ctx context.Context, accessToken string) (*domain.Identity, error)
	UpdateProfileRole(ctx context.Context, userID, role string) (*domain.Identity, error)
}

type catalogService interface {
	Browse(ctx context.Context, q, category string) catalog.Browse
	Categories(ctx context.Context) []string
	Get(ctx context.Context, id string) (*domain.Product, error)
	Create(ctx context.Context, in catalog.ProductInput) (*domain.Product, error)
	Update(ctx context.Context, id string, in catalog.ProductInput) (*domain.Product, error)
	Delete(ctx context.Context, id string) error
	UploadImage(ctx context.Context, filename string, r io.Reader) (string, error)
}

type orderService interface {
	Checkout(ctx context.Context, buyer domain.Identity, lines []cart.Line, in ordersvc.CheckoutInput) (*domain.Order, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Order, error)
	Get(ctx context.Context, caller domain.Identity, id string) (*domain.Order, error)
	ListAll(ctx context.Context) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id, status string) (*domain.Order, error)
}

type sessionManager interface {
	Get(ctx context.Context, id string) (*session.Session, error)
	Start(ctx context.Context) (*session.Session, error)
}

type fileStore interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Deps are the services the router dispatches to.
type Deps struct {
	IdentitySvc identityService
	CatalogSvc  catalogService
	OrderSvc    orderService
	Sessions    sessionManager
	Files       fileStore
	Ready       map[string]ReadyCheck
}

type Options struct {
	CORSOrigins  []string
	SecureCookie bool
	SessionTTL   time.Duration
}

// buildRouter wires routes for the API.
func buildRouter(logger zerolog.Logger, deps Deps, opts Options) (*gin.Engine, error) {
	if deps.IdentitySvc == nil || deps.CatalogSvc == nil || deps.OrderSvc == nil || deps.Sessions == nil {
		return nil, errors.New("httpserver: identity, catalog, order and session dependencies are required")
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(RequestLogger(logger), gin.Recovery())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	if len(opts.CORSOrigins) == 0 || (len(opts.CORSOrigins) == 1 && opts.CORSOrigins[0] == "*") {
		corsCfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		corsCfg.AllowOrigins = opts.CORSOrigins
	}
	router.Use(cors.New(corsCfg))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.Ready))

	if deps.Files != nil {
		router.GET("/files/*key", fileHandler(deps.Files))
	}

	h := &handlers{deps: deps, logger: logger}
	api := router.Group("/api")
	api.Use(sessionMiddleware(deps.Sessions, opts), identifyMiddleware(deps.IdentitySvc))

	// routes below keep per-browser state and open a session on first use
	stateful := api.Group("", withSession(deps.Sessions, opts))

	stateful.GET("/navigation", h.navigate)
	stateful.GET("/navigation/events", h.navigationEvents)

	auth := stateful.Group("/auth")
	auth.POST("/signup", h.signUp)
	auth.POST("/signin", h.signIn)
	auth.POST("/refresh", h.refresh)
	auth.POST("/signout", h.signOut)
	api.GET("/me", requireAudience(navigation.Authenticated), h.me)

	stateful.GET("/products", h.listProducts)
	api.GET("/products/:id", h.getProduct)
	api.GET("/categories", h.categories)
	api.GET("/browse", h.browse)

	stateful.GET("/cart", h.getCart)
	stateful.POST("/cart/items", h.addCartItem)
	stateful.PUT("/cart/items/:productId", h.setCartQuantity)
	stateful.DELETE("/cart/items/:productId", h.removeCartItem)
	stateful.DELETE("/cart", h.clearCart)

	user := api.Group("", requireAudience(navigation.UserOnly))
	user.POST("/checkout", withSession(deps.Sessions, opts), h.checkout)
	user.GET("/orders", h.listOrders)
	api.GET("/orders/:id", requireAudience(navigation.Authenticated), h.getOrder)

	admin := api.Group("/admin", requireAudience(navigation.AdminOnly))
	admin.POST("/products", h.createProduct)
	admin.PUT("/products/:id", h.updateProduct)
	admin.DELETE("/products/:id", h.deleteProduct)
	admin.POST("/uploads", h.uploadImage)
	admin.GET("/orders", h.listAllOrders)
	admin.PUT("/orders/:id/status", h.updateOrderStatus)
	admin.PUT("/users/:id/role", h.updateUserRole)

	return router, nil
}

type handlers struct {
	deps   Deps
	logger zerolog.Logger
}
