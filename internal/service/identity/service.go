// Package identity is the identity provider: password sign-up and sign-in,
// JWT access tokens with rotating refresh tokens, role resolution and
// auth-state change events.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"storefront/internal/domain"
	"storefront/internal/logger"
	tokenrepo "storefront/internal/repository/token"
	userrepo "storefront/internal/repository/user"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned when email/password do not match.
	ErrInvalidCredentials = errors.New("invalid login credentials")
	// ErrInvalidToken indicates the provided token could not be validated.
	ErrInvalidToken = errors.New("invalid token")
)

// Event names an auth-state transition.
type Event string

const (
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedUp       Event = "SIGNED_UP"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
	EventSignedOut      Event = "SIGNED_OUT"
	EventRoleUpdated    Event = "ROLE_UPDATED"
)

// Change is delivered to OnAuthStateChange listeners. Identity is nil on
// sign-out.
type Change struct {
	Event    Event
	UserID   string
	Identity *domain.Identity
}

// Session is an authenticated session as handed to clients.
type Session struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresAt    time.Time       `json:"expires_at"`
	Identity     domain.Identity `json:"user"`
}

type Options struct {
	Secret           string
	Issuer           string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	AdminEmails      []string
	// SelfServiceAdmin lets a sign-up role hint or an admin sign-in write the
	// admin flag into the user's profile metadata.
	SelfServiceAdmin bool
}

// Service handles identity flows.
type Service struct {
	users            userrepo.Repository
	tokens           *tokenManager
	roles            RoleResolver
	selfServiceAdmin bool
	passwordMin      int
	logger           zerolog.Logger

	mu        sync.Mutex
	listeners map[int]func(Change)
	nextID    int
}

// New creates a Service. Zero TTLs fall back to one hour for access tokens and
// thirty days for refresh tokens.
func New(users userrepo.Repository, tokens tokenrepo.Repository, opts Options, log *zerolog.Logger) *Service {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = time.Hour
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 30 * 24 * time.Hour
	}
	if opts.AdminEmails == nil {
		opts.AdminEmails = DefaultAdminEmails
	}
	return &Service{
		users: users,
		tokens: &tokenManager{
			repo:       tokens,
			secret:     []byte(opts.Secret),
			issuer:     opts.Issuer,
			accessTTL:  opts.AccessTTL,
			refreshTTL: opts.RefreshTTL,
			now:        time.Now,
		},
		roles:            NewRoleResolver(opts.AdminEmails),
		selfServiceAdmin: opts.SelfServiceAdmin,
		passwordMin:      8,
		logger:           logger.OrNop(log).With().Str("service", "identity").Logger(),
		listeners:        make(map[int]func(Change)),
	}
}

// SignUp registers a new user and signs them in. roleHint "admin" is only
// honored when self-service admin is enabled.
func (s *Service) SignUp(ctx context.Context, email, password, roleHint string) (*Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.Invalid("email", "a valid email is required")
	}
	password = strings.TrimSpace(password)
	if len(password) < s.passwordMin {
		return nil, domain.Invalid("password", fmt.Sprintf("password must be at least %d characters", s.passwordMin))
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	role := domain.RoleUser
	if roleHint == domain.RoleAdmin && s.selfServiceAdmin {
		role = domain.RoleAdmin
	}
	u, err := s.users.Create(ctx, domain.User{Email: email, PasswordHash: string(hashed), MetadataRole: role})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, domain.Invalid("email", "user already registered")
		}
		return nil, err
	}
	s.logger.Info().Str("user_id", u.ID).Str("metadata_role", role).Msg("user signed up")
	return s.startSession(ctx, *u, EventSignedUp)
}

// SignIn validates credentials. userType "admin" writes the admin flag into
// profile metadata when self-service admin is enabled; otherwise it is ignored
// and the role comes from metadata or the allow-list.
func (s *Service) SignIn(ctx context.Context, email, password, userType string) (*Session, error) {
	password = strings.TrimSpace(password)
	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if userType == domain.RoleAdmin && s.selfServiceAdmin && u.MetadataRole != domain.RoleAdmin {
		u, err = s.users.UpdateRole(ctx, u.ID, domain.RoleAdmin)
		if err != nil {
			return nil, err
		}
	}
	return s.startSession(ctx, *u, EventSignedIn)
}

// Refresh rotates a refresh token and re-resolves the role.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	userID, err := s.tokens.Consume(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return s.startSession(ctx, *u, EventTokenRefreshed)
}

// SignOut revokes the refresh token. Unknown tokens are not an error.
func (s *Service) SignOut(ctx context.Context, userID, refreshToken string) error {
	if refreshToken != "" {
		if err := s.tokens.Revoke(ctx, refreshToken); err != nil {
			return err
		}
	}
	s.logger.Info().Str("user_id", userID).Msg("user signed out")
	s.emit(Change{Event: EventSignedOut, UserID: userID})
	return nil
}

// SignOutEverywhere revokes every refresh token of the user. Sessions on other
// devices lose their identity once their access token expires.
func (s *Service) SignOutEverywhere(ctx context.Context, userID string) error {
	if err := s.tokens.RevokeAll(ctx, userID); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", userID).Msg("user signed out everywhere")
	s.emit(Change{Event: EventSignedOut, UserID: userID})
	return nil
}

// CurrentSession resolves a bearer access token to the identity it belongs to.
// The role is re-read from the user record, so a role change is visible
// before the token expires.
func (s *Service) CurrentSession(ctx context.Context, accessToken string) (*domain.Identity, error) {
	claims, err := s.tokens.ParseAccess(accessToken)
	if err != nil {
		s.logger.Debug().Err(err).Msg("reject access token")
		return nil, ErrInvalidToken
	}
	u, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	id := s.roles.Identity(*u)
	return &id, nil
}

// UpdateProfileRole writes the role flag in a user's profile metadata.
func (s *Service) UpdateProfileRole(ctx context.Context, userID, role string) (*domain.Identity, error) {
	if role != domain.RoleAdmin && role != domain.RoleUser {
		return nil, domain.Invalid("role", "role must be user or admin")
	}
	u, err := s.users.UpdateRole(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	id := s.roles.Identity(*u)
	s.emit(Change{Event: EventRoleUpdated, UserID: u.ID, Identity: &id})
	return &id, nil
}

// OnAuthStateChange registers fn for every auth-state change and returns a
// function that removes it.
func (s *Service) OnAuthStateChange(fn func(Change)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Service) startSession(ctx context.Context, u domain.User, ev Event) (*Session, error) {
	id := s.roles.Identity(u)
	access, exp, err := s.tokens.IssueAccess(id)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefresh(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Str("user_id", u.ID).Str("event", string(ev)).Str("role", id.Role).Msg("session issued")
	s.emit(Change{Event: ev, UserID: u.ID, Identity: &id})
	return &Session{AccessToken: access, RefreshToken: refresh, ExpiresAt: exp, Identity: id}, nil
}

func (s *Service) emit(c Change) {
	s.mu.Lock()
	fns := make([]func(Change), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}
