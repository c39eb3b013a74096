// Package session holds the per-browser-session context objects: the cart,
// the auth state, the navigator that follows it and the catalog feed.
package session

import (
	"sync"
	"time"

	"storefront/internal/cart"
	"storefront/internal/domain"
	"storefront/internal/navigation"
	"storefront/internal/service/catalog"
)

// Session is the state of one browser session. It is safe for concurrent use.
type Session struct {
	ID        string
	Cart      *cart.Store
	Auth      *navigation.AuthState
	Navigator *navigation.Navigator
	Feed      *catalog.Feed

	// saveMu orders write-backs so the store never ends on an older state.
	saveMu sync.Mutex

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	accessExpiry time.Time
	lastSeen     time.Time
	persist      func()
	stops        []func()
}

func newSession(id string, guard *navigation.Guard, feed catalog.Filterer, now time.Time) *Session {
	auth := navigation.NewAuthState()
	return &Session{
		ID:        id,
		Cart:      cart.NewStore(),
		Auth:      auth,
		Navigator: navigation.NewNavigator(guard, auth),
		Feed:      catalog.NewFeed(feed),
		lastSeen:  now,
	}
}

// Identity returns the resolved identity, or nil while anonymous or pending.
func (s *Session) Identity() *domain.Identity {
	st := s.Auth.Current()
	if st.Status != navigation.Resolved {
		return nil
	}
	return st.Identity
}

// Tokens returns the stored access and refresh tokens.
func (s *Session) Tokens() (access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken, s.refreshToken
}

// SetTokens stores the tokens and writes the session back to the store.
// Empty strings clear them; a zero expiresAt never expires.
func (s *Session) SetTokens(access, refresh string, expiresAt time.Time) {
	s.storeTokens(access, refresh, expiresAt)
	s.mu.Lock()
	persist := s.persist
	s.mu.Unlock()
	if persist != nil {
		persist()
	}
}

func (s *Session) storeTokens(access, refresh string, expiresAt time.Time) {
	s.mu.Lock()
	s.accessToken, s.refreshToken, s.accessExpiry = access, refresh, expiresAt
	s.mu.Unlock()
}

// accessExpired reports a stored access token past its expiry.
func (s *Session) accessExpired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken != "" && !s.accessExpiry.IsZero() && now.After(s.accessExpiry)
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) close() {
	s.mu.Lock()
	stops := s.stops
	s.stops = nil
	s.persist = nil
	s.mu.Unlock()
	for _, stop := range stops {
		stop()
	}
	s.Navigator.Close()
}
