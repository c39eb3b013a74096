package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/internal/navigation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNavigate(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodGet, "/api/navigation", nil).Code)

	nav := decode[navigationState](t, c.do(http.MethodGet, "/api/navigation?path=/products", nil))
	assert.Equal(t, navigation.Render, nav.Decision.Outcome)
	assert.Equal(t, "/products", nav.Location)

	nav = decode[navigationState](t, c.do(http.MethodGet, "/api/navigation?path=/admin/orders", nil))
	assert.Equal(t, navigation.Redirect, nav.Decision.Outcome)
	assert.Equal(t, "/login", nav.Decision.RedirectTo)

	c.signIn(shopper.Email)
	nav = decode[navigationState](t, c.do(http.MethodGet, "/api/navigation?path=/admin/orders", nil))
	assert.Equal(t, "/home", nav.Decision.RedirectTo)
	nav = decode[navigationState](t, c.do(http.MethodGet, "/api/navigation?path=/checkout", nil))
	assert.Equal(t, navigation.Render, nav.Decision.Outcome)
}

// streamRecorder adds the CloseNotify gin's Stream expects from a live
// connection.
type streamRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *streamRecorder) CloseNotify() <-chan bool {
	return r.closed
}

func TestNavigationEvents_SendsCurrentDecision(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	c.do(http.MethodGet, "/api/navigation?path=/cart", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/navigation/events", nil).WithContext(ctx)
	req.AddCookie(c.cookie)
	rec := &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}

	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")
	assert.Contains(t, rec.Body.String(), "event:navigation")
	assert.Contains(t, rec.Body.String(), `"location":"/cart"`)
}
