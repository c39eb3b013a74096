package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"storefront/internal/cart"
	"storefront/internal/domain"
	"storefront/internal/logger"
	"storefront/internal/navigation"
	"storefront/internal/repository/cartsession"
	"storefront/internal/service/catalog"
	"storefront/internal/service/identity"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const persistTimeout = 2 * time.Second

// Refresher exchanges a stored refresh token for a new identity session.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*identity.Session, error)
}

type Config struct {
	Guard     *navigation.Guard
	Catalog   catalog.Filterer
	Store     cartsession.Repository // nil keeps sessions in memory only
	Refresher Refresher              // nil restores hydrated sessions as anonymous
	IdleTTL   time.Duration
}

// Manager owns the live sessions of this process. Sessions not in memory are
// hydrated from the store; idle sessions are dropped lazily on lookup and by
// Sweep.
type Manager struct {
	guard     *navigation.Guard
	catalog   catalog.Filterer
	store     cartsession.Repository
	refresher Refresher
	idleTTL   time.Duration
	now       func() time.Time
	logger    zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	group    singleflight.Group
}

func NewManager(cfg Config, log *zerolog.Logger) *Manager {
	if cfg.Guard == nil {
		cfg.Guard = navigation.NewGuard(navigation.StorefrontRoutes(), navigation.DefaultPaths)
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 24 * time.Hour
	}
	return &Manager{
		guard:     cfg.Guard,
		catalog:   cfg.Catalog,
		store:     cfg.Store,
		refresher: cfg.Refresher,
		idleTTL:   cfg.IdleTTL,
		now:       time.Now,
		logger:    logger.OrNop(log).With().Str("component", "session").Logger(),
		sessions:  make(map[string]*Session),
	}
}

// Start opens a new anonymous session.
func (m *Manager) Start(ctx context.Context) (*Session, error) {
	s := newSession(uuid.NewString(), m.guard, m.catalog, m.now())
	s.Auth.Set(nil)
	m.attach(s)
	if err := m.save(ctx, s); err != nil {
		s.close()
		return nil, err
	}
	m.logger.Debug().Str("session_id", s.ID).Msg("session started")
	return s, nil
}

// Get returns the live session id, hydrating it from the store when needed.
// Unknown or expired sessions yield domain.ErrNotFound.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, domain.ErrNotFound
	}
	if s, ok := m.live(id); ok {
		m.revalidate(ctx, s)
		return s, nil
	}
	if m.store == nil {
		return nil, domain.ErrNotFound
	}

	v, err, _ := m.group.Do(id, func() (any, error) {
		if s, ok := m.live(id); ok {
			return s, nil
		}
		return m.hydrate(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// End tears the session down and removes its stored state.
func (m *Manager) End(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.close()
	}
	if m.store != nil {
		return m.store.Delete(ctx, id)
	}
	return nil
}

// HandleAuthChange pushes a role update to every live session of that user.
func (m *Manager) HandleAuthChange(c identity.Change) {
	if c.Event != identity.EventRoleUpdated || c.Identity == nil {
		return
	}
	for _, s := range m.snapshot() {
		if id := s.Identity(); id != nil && id.SubjectID == c.UserID {
			s.Auth.Set(c.Identity)
		}
	}
}

// Sweep drops sessions idle for longer than the idle TTL and returns how many
// were dropped. Their stored state expires on its own.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.idleTTL)
	var dropped []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			dropped = append(dropped, s)
		}
	}
	m.mu.Unlock()
	for _, s := range dropped {
		s.close()
	}
	return len(dropped)
}

// Run sweeps idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Debug().Int("dropped", n).Msg("swept idle sessions")
			}
		}
	}
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) live(id string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	now := m.now()
	if now.Sub(s.idleSince()) > m.idleTTL {
		m.mu.Lock()
		if m.sessions[id] == s {
			delete(m.sessions, id)
		}
		m.mu.Unlock()
		s.close()
		return nil, false
	}
	s.touch(now)
	return s, true
}

func (m *Manager) hydrate(ctx context.Context, id string) (*Session, error) {
	rec, err := m.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, cartsession.ErrCacheMiss) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	s := newSession(id, m.guard, m.catalog, m.now())
	s.Cart.Restore(rec.Lines)
	m.restoreAuth(ctx, s, rec.RefreshToken)
	m.attach(s)
	if _, refresh := s.Tokens(); refresh != rec.RefreshToken {
		// the stored token was consumed by the refresh
		if err := m.save(ctx, s); err != nil {
			m.logger.Error().Err(err).Str("session_id", id).Msg("persist rotated refresh token")
		}
	}
	m.logger.Debug().Str("session_id", id).Int("lines", s.Cart.Len()).Msg("session hydrated")
	return s, nil
}

func (m *Manager) restoreAuth(ctx context.Context, s *Session, refreshToken string) {
	ticket := s.Auth.Begin()
	if refreshToken == "" || m.refresher == nil {
		s.Auth.Resolve(ticket, nil)
		return
	}
	restored, err := m.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		m.logger.Debug().Err(err).Str("session_id", s.ID).Msg("stored refresh token rejected")
		s.Auth.Resolve(ticket, nil)
		return
	}
	s.storeTokens(restored.AccessToken, restored.RefreshToken, restored.ExpiresAt)
	s.Auth.Resolve(ticket, &restored.Identity)
}

// revalidate re-resolves a live session's identity once its access token has
// expired. A rejected refresh token signs the session out; other refresh
// failures keep the current identity until the next request.
func (m *Manager) revalidate(ctx context.Context, s *Session) {
	if m.refresher == nil || !s.accessExpired(m.now()) {
		return
	}
	_, _, _ = m.group.Do("auth:"+s.ID, func() (any, error) {
		if !s.accessExpired(m.now()) {
			return nil, nil
		}
		_, refresh := s.Tokens()
		restored, err := m.refresher.Refresh(ctx, refresh)
		switch {
		case err == nil:
			s.storeTokens(restored.AccessToken, restored.RefreshToken, restored.ExpiresAt)
			s.Auth.Set(&restored.Identity)
		case errors.Is(err, identity.ErrInvalidToken):
			m.logger.Debug().Str("session_id", s.ID).Msg("refresh token revoked, signing session out")
			s.storeTokens("", "", time.Time{})
			s.Auth.Set(nil)
		default:
			m.logger.Warn().Err(err).Str("session_id", s.ID).Msg("revalidate session")
			return nil, nil
		}
		if err := m.save(ctx, s); err != nil {
			m.logger.Error().Err(err).Str("session_id", s.ID).Msg("persist revalidated session")
		}
		return nil, nil
	})
}

// attach registers s as live and wires its write-back to the store.
func (m *Manager) attach(s *Session) {
	persist := func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := m.save(ctx, s); err != nil {
			m.logger.Error().Err(err).Str("session_id", s.ID).Msg("persist session")
		}
	}
	stopCart := s.Cart.Subscribe(func(_ cart.Snapshot) { persist() })

	s.mu.Lock()
	s.persist = persist
	s.stops = append(s.stops, stopCart)
	s.mu.Unlock()

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
}

func (m *Manager) save(ctx context.Context, s *Session) error {
	if m.store == nil {
		return nil
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	_, refresh := s.Tokens()
	return m.store.Save(ctx, s.ID, cartsession.Record{Lines: s.Cart.Lines(), RefreshToken: refresh})
}

func (m *Manager) snapshot() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}
