package httpserver

import (
	"context"
	"net/http"
	"testing"

	"storefront/internal/cart"
	"storefront/internal/domain"
	"storefront/internal/navigation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authBody struct {
	Session struct {
		AccessToken  string          `json:"access_token"`
		RefreshToken string          `json:"refresh_token"`
		User         domain.Identity `json:"user"`
	} `json:"session"`
	Navigation navigationState `json:"navigation"`
}

func TestSignIn_ResolvesSessionIdentity(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	rec := c.do(http.MethodPost, "/api/auth/signin", map[string]string{"email": shopper.Email, "password": "secret123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[authBody](t, rec)
	assert.Equal(t, "token-u1", body.Session.AccessToken)
	assert.Equal(t, shopper, body.Session.User)
	assert.Equal(t, navigation.Resolved, body.Navigation.Auth)

	me := c.do(http.MethodGet, "/api/me", nil)
	require.Equal(t, http.StatusOK, me.Code)
	got := decode[map[string]domain.Identity](t, me)
	assert.Equal(t, shopper, got["user"])

	s, err := env.sessions.Get(context.Background(), c.cookie.Value)
	require.NoError(t, err)
	access, refresh := s.Tokens()
	assert.Equal(t, "token-u1", access)
	assert.Equal(t, "refresh-u1", refresh)
}

func TestSignIn_BadCredentialsKeepsPreviousIdentity(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	rec := c.do(http.MethodPost, "/api/auth/signin", map[string]string{"email": shopper.Email, "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid login credentials", decode[map[string]string](t, rec)["error"])
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/api/me", nil).Code)

	c.signIn(shopper.Email)
	rec = c.do(http.MethodPost, "/api/auth/signin", map[string]string{"email": admin.Email, "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	me := decode[map[string]domain.Identity](t, c.do(http.MethodGet, "/api/me", nil))
	assert.Equal(t, shopper, me["user"])
}

func TestSignIn_MissingFields(t *testing.T) {
	env := newTestEnv(t)
	rec := env.client(t).do(http.MethodPost, "/api/auth/signin", map[string]string{"email": shopper.Email})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignUp(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	rec := c.do(http.MethodPost, "/api/auth/signup", map[string]string{"email": "new@example.com", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "password", decode[map[string]string](t, rec)["field"])

	rec = c.do(http.MethodPost, "/api/auth/signup", map[string]string{"email": "new@example.com", "password": "longenough"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "new@example.com", decode[authBody](t, rec).Session.User.Email)
}

func TestSignIn_MovesNavigatorOffLoginPage(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	nav := decode[navigationState](t, c.do(http.MethodGet, "/api/navigation?path=/checkout", nil))
	assert.Equal(t, navigation.Redirect, nav.Decision.Outcome)
	assert.Equal(t, "/login", nav.Location)

	rec := c.do(http.MethodPost, "/api/auth/signin", map[string]string{"email": admin.Email, "password": "secret123"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/admin/dashboard", decode[authBody](t, rec).Navigation.Location)
}

func TestSignOut_ClearsIdentityKeepsCart(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	c.signIn(shopper.Email)
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/cart/items", map[string]any{"product_id": mug.ID}).Code)

	rec := c.do(http.MethodPost, "/api/auth/signout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{shopper.SubjectID}, env.identity.signOuts)
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/api/me", nil).Code)

	snap := decode[cart.Snapshot](t, c.do(http.MethodGet, "/api/cart", nil))
	assert.Equal(t, 1, snap.ItemCount)
}

func TestSignOut_GlobalScopeRevokesEverywhere(t *testing.T) {
	env := newTestEnv(t)

	anon := env.client(t)
	assert.Equal(t, http.StatusUnauthorized, anon.do(http.MethodPost, "/api/auth/signout?scope=global", nil).Code)

	c := env.client(t)
	c.signIn(shopper.Email)
	rec := c.do(http.MethodPost, "/api/auth/signout?scope=global", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{shopper.SubjectID}, env.identity.revoked)
	assert.Empty(t, env.identity.signOuts)
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/api/me", nil).Code)
}

func TestRefresh(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodPost, "/api/auth/refresh", nil).Code)

	c.signIn(shopper.Email)
	rec := c.do(http.MethodPost, "/api/auth/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, shopper, decode[authBody](t, rec).Session.User)

	rec = c.do(http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": "bogus"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	me := decode[map[string]domain.Identity](t, c.do(http.MethodGet, "/api/me", nil))
	assert.Equal(t, shopper, me["user"])
}

func TestBearerTokenIdentifiesCaller(t *testing.T) {
	env := newTestEnv(t)

	c := env.client(t)
	c.bearer = "token-a1"
	me := decode[map[string]domain.Identity](t, c.do(http.MethodGet, "/api/me", nil))
	assert.Equal(t, admin, me["user"])

	bad := env.client(t)
	bad.bearer = "forged"
	assert.Equal(t, http.StatusUnauthorized, bad.do(http.MethodGet, "/api/products", nil).Code)
}
