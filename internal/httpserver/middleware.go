package httpserver

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/navigation"
	"storefront/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SessionCookie names the cookie carrying the browser session id.
const SessionCookie = "sf_session"

const (
	sessionKey  = "session"
	identityKey = "identity"
)

// RequestLogger logs one line per request, at warn for 4xx and error for 5xx.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := logger.Info()
		switch {
		case status >= http.StatusInternalServerError:
			ev = logger.Error()
		case status >= http.StatusBadRequest:
			ev = logger.Warn()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("error", c.Errors.String())
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}

// sessionMiddleware attaches the live browser session named by the session
// cookie, if any. Sessions are only opened by withSession.
func sessionMiddleware(sessions sessionManager, opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := c.Cookie(SessionCookie)
		if id == "" {
			c.Next()
			return
		}
		s, err := sessions.Get(c.Request.Context(), id)
		switch {
		case err == nil:
			attachSession(c, s, opts)
		case !errors.Is(err, domain.ErrNotFound):
			abortError(c, err)
			return
		}
		c.Next()
	}
}

// withSession opens a session for routes that keep per-browser state when the
// request did not bring a live one.
func withSession(sessions sessionManager, opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(sessionKey); !ok {
			s, err := sessions.Start(c.Request.Context())
			if err != nil {
				abortError(c, err)
				return
			}
			attachSession(c, s, opts)
		}
		c.Next()
	}
}

func attachSession(c *gin.Context, s *session.Session, opts Options) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, s.ID, int(opts.SessionTTL.Seconds()), "/", "", opts.SecureCookie, true)
	c.Set(sessionKey, s)
}

// identifyMiddleware resolves the caller. A bearer token wins over the
// session's identity; an invalid bearer token is rejected outright.
func identifyMiddleware(svc identityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c.GetHeader("Authorization")); ok {
			id, err := svc.CurrentSession(c.Request.Context(), token)
			if err != nil {
				abortError(c, err)
				return
			}
			c.Set(identityKey, id)
			c.Next()
			return
		}
		if s, ok := c.Get(sessionKey); ok {
			if id := s.(*session.Session).Identity(); id != nil {
				c.Set(identityKey, id)
			}
		}
		c.Next()
	}
}

// requireAudience enforces the same audience table the navigation guard uses:
// a redirect to the login page becomes 401, any other redirect 403.
func requireAudience(aud navigation.Audience) gin.HandlerFunc {
	return func(c *gin.Context) {
		st := navigation.State{Status: navigation.Resolved, Identity: currentIdentity(c)}
		d := navigation.Decide(aud, st, navigation.DefaultPaths)
		switch {
		case d.Outcome == navigation.Render:
			c.Next()
		case d.RedirectTo == navigation.DefaultPaths.Login:
			abortError(c, domain.ErrUnauthorized)
		default:
			abortError(c, domain.ErrForbidden)
		}
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

func currentSession(c *gin.Context) *session.Session {
	return c.MustGet(sessionKey).(*session.Session)
}

func currentIdentity(c *gin.Context) *domain.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*domain.Identity)
	return id
}
