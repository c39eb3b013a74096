package httpserver

import (
	"net/http"
	"time"

	"storefront/internal/domain"
	"storefront/internal/service/identity"
	"storefront/internal/session"

	"github.com/gin-gonic/gin"
)

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	// UserType is the role hint: "admin" or "user".
	UserType string `json:"user_type"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type authResponse struct {
	Session    *identity.Session `json:"session"`
	Navigation navigationState   `json:"navigation"`
}

func (h *handlers) signUp(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	h.authenticate(c, http.StatusCreated, func(s *session.Session) (*identity.Session, error) {
		return h.deps.IdentitySvc.SignUp(c.Request.Context(), req.Email, req.Password, req.UserType)
	})
}

func (h *handlers) signIn(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	h.authenticate(c, http.StatusOK, func(s *session.Session) (*identity.Session, error) {
		return h.deps.IdentitySvc.SignIn(c.Request.Context(), req.Email, req.Password, req.UserType)
	})
}

func (h *handlers) refresh(c *gin.Context) {
	var req refreshRequest
	_ = c.ShouldBindJSON(&req)
	h.authenticate(c, http.StatusOK, func(s *session.Session) (*identity.Session, error) {
		token := req.RefreshToken
		if token == "" {
			_, token = s.Tokens()
		}
		if token == "" {
			return nil, identity.ErrInvalidToken
		}
		return h.deps.IdentitySvc.Refresh(c.Request.Context(), token)
	})
}

// authenticate runs one auth event against the session: resolution goes
// pending, then resolves to the new identity, or back to the previous one
// when the event fails.
func (h *handlers) authenticate(c *gin.Context, status int, run func(*session.Session) (*identity.Session, error)) {
	s := currentSession(c)
	previous := s.Identity()
	ticket := s.Auth.Begin()

	res, err := run(s)
	if err != nil {
		s.Auth.Resolve(ticket, previous)
		writeError(c, err)
		return
	}
	s.SetTokens(res.AccessToken, res.RefreshToken, res.ExpiresAt)
	s.Auth.Resolve(ticket, &res.Identity)
	c.JSON(status, authResponse{Session: res, Navigation: navigationOf(s)})
}

// signOut ends the session's sign-in. With ?scope=global every refresh token
// of the user is revoked as well.
func (h *handlers) signOut(c *gin.Context) {
	s := currentSession(c)
	var userID string
	if id := currentIdentity(c); id != nil {
		userID = id.SubjectID
	}
	_, refresh := s.Tokens()
	var err error
	if c.Query("scope") == "global" {
		if userID == "" {
			writeError(c, domain.ErrUnauthorized)
			return
		}
		err = h.deps.IdentitySvc.SignOutEverywhere(c.Request.Context(), userID)
	} else {
		err = h.deps.IdentitySvc.SignOut(c.Request.Context(), userID, refresh)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	s.SetTokens("", "", time.Time{})
	s.Auth.Set(nil)
	c.JSON(http.StatusOK, gin.H{"navigation": navigationOf(s)})
}

func (h *handlers) me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": currentIdentity(c)})
}
