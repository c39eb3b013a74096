package navigation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNavigator() (*Navigator, *AuthState) {
	auth := NewAuthState()
	return NewNavigator(NewGuard(StorefrontRoutes(), DefaultPaths), auth), auth
}

func TestNavigatorRedirectsWhenIdentityResolvesToAdmin(t *testing.T) {
	nav, auth := newNavigator()
	defer nav.Close()

	var published []Decision
	nav.Subscribe(func(d Decision) { published = append(published, d) })

	ticket := auth.Begin()
	d := nav.Navigate("/checkout")
	assert.Equal(t, Loading, d.Outcome)
	assert.Equal(t, "/checkout", nav.Location())

	require.True(t, auth.Resolve(ticket, adminID))

	require.NotEmpty(t, published)
	last := published[len(published)-1]
	assert.Equal(t, Redirect, last.Outcome)
	assert.Equal(t, "/admin/dashboard", last.RedirectTo)
	assert.Equal(t, "/admin/dashboard", nav.Location())
	assert.Equal(t, last, nav.Current())
}

func TestNavigatorRoleChangeOnUserRoute(t *testing.T) {
	nav, auth := newNavigator()
	defer nav.Close()

	auth.Set(userID)
	d := nav.Navigate("/orders")
	require.Equal(t, Render, d.Outcome)

	auth.Set(adminID)

	assert.Equal(t, Redirect, nav.Current().Outcome)
	assert.Equal(t, "/admin/dashboard", nav.Location())
}

func TestNavigatorSignOutLeavesAdminArea(t *testing.T) {
	nav, auth := newNavigator()
	defer nav.Close()

	auth.Set(adminID)
	require.Equal(t, Render, nav.Navigate("/admin/orders").Outcome)

	auth.Set(nil)

	assert.Equal(t, "/admin/orders", nav.Current().Path)
	assert.Equal(t, "/login", nav.Current().RedirectTo)
	assert.Equal(t, "/login", nav.Location())
}

func TestNavigatorLoginPageAfterSignIn(t *testing.T) {
	nav, auth := newNavigator()
	defer nav.Close()

	auth.Set(nil)
	require.Equal(t, Render, nav.Navigate("/login").Outcome)

	auth.Set(userID)

	assert.Equal(t, "/home", nav.Location())
}

func TestAuthStateDropsStaleResolution(t *testing.T) {
	auth := NewAuthState()
	older := auth.Begin()
	newer := auth.Begin()

	assert.False(t, auth.Resolve(older, adminID))
	assert.Equal(t, Pending, auth.Current().Status)

	assert.True(t, auth.Resolve(newer, userID))
	assert.False(t, auth.Resolve(newer, adminID), "resolved once per event")
	assert.Equal(t, "u1", auth.Current().Identity.SubjectID)
}

func TestNavigatorCloseStopsUpdates(t *testing.T) {
	nav, auth := newNavigator()
	auth.Set(userID)
	nav.Navigate("/profile")
	nav.Close()

	auth.Set(nil)

	assert.Equal(t, "/profile", nav.Location())
}

func TestNavigatorConcurrentNavigateAndResolve(t *testing.T) {
	for i := 0; i < 2000; i++ {
		nav, auth := newNavigator()

		var wg sync.WaitGroup
		ticket := auth.Begin()
		wg.Add(2)
		go func() {
			defer wg.Done()
			nav.Navigate("/checkout")
		}()
		go func() {
			defer wg.Done()
			auth.Resolve(ticket, userID)
		}()
		wg.Wait()

		require.Equal(t, Render, nav.Current().Outcome, "iteration %d", i)
		assert.Equal(t, "/checkout", nav.Location())
		nav.Close()
	}
}

func TestNavigatorPublishesLatestAuthState(t *testing.T) {
	nav, auth := newNavigator()
	defer nav.Close()
	auth.Set(userID)
	require.Equal(t, Render, nav.Navigate("/orders").Outcome)

	var (
		mu   sync.Mutex
		last Decision
	)
	nav.Subscribe(func(d Decision) {
		mu.Lock()
		last = d
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			auth.Set(userID)
		}()
	}
	wg.Wait()
	auth.Set(adminID)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, Redirect, last.Outcome)
	assert.Equal(t, "/admin/dashboard", last.RedirectTo)
	assert.Equal(t, last, nav.Current())
}
