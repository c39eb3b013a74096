// Package verifier is the auxiliary token-verification server: a health probe,
// verification of an access token and a self-only user lookup.
package verifier

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/httpserver"
	"storefront/internal/service/identity"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// TokenVerifier resolves an access token to the identity it was issued for.
type TokenVerifier interface {
	CurrentSession(ctx context.Context, accessToken string) (*domain.Identity, error)
}

type Server struct {
	httpServer *http.Server
}

// New builds the verification server listening on addr.
func New(addr string, logger zerolog.Logger, tokens TokenVerifier, corsOrigins []string) (*Server, error) {
	if tokens == nil {
		return nil, errors.New("verifier: token verifier is required")
	}
	return &Server{httpServer: &http.Server{
		Addr:              addr,
		Handler:           newRouter(logger, tokens, corsOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}}, nil
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type verifyRequest struct {
	Token string `json:"token"`
}

func newRouter(logger zerolog.Logger, tokens TokenVerifier, corsOrigins []string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(httpserver.RequestLogger(logger), gin.Recovery())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	if len(corsOrigins) == 0 || (len(corsOrigins) == 1 && corsOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = corsOrigins
	}
	router.Use(cors.New(corsCfg))

	api := router.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "message": "Server is running"})
	})

	api.POST("/verify-user", func(c *gin.Context) {
		var req verifyRequest
		_ = c.ShouldBindJSON(&req)
		if strings.TrimSpace(req.Token) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Token is required"})
			return
		}
		id, err := tokens.CurrentSession(c.Request.Context(), req.Token)
		if err != nil {
			verifyFailed(c, logger, err, "Invalid token")
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": id, "message": "Token verified successfully"})
	})

	api.GET("/user/:userId", func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		id, err := tokens.CurrentSession(c.Request.Context(), token)
		if err != nil {
			verifyFailed(c, logger, err, "Unauthorized")
			return
		}
		if id.SubjectID != c.Param("userId") {
			c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": id})
	})

	return router
}

// verifyFailed answers 401 for rejected tokens and 500 for anything else.
func verifyFailed(c *gin.Context, logger zerolog.Logger, err error, msg string) {
	if errors.Is(err, identity.ErrInvalidToken) || errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrUnauthorized) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": msg})
		return
	}
	logger.Error().Err(err).Str("path", c.FullPath()).Msg("token verification failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}
