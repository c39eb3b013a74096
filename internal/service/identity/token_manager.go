package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain"
	tokenrepo "storefront/internal/repository/token"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the access-token claims. Role mirrors the resolved role at issue
// time so the verification server can answer without a database round trip.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

type tokenManager struct {
	repo       tokenrepo.Repository
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func (m *tokenManager) IssueAccess(id domain.Identity) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.accessTTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   id.SubjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: id.Email,
		Role:  id.Role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, exp, nil
}

func (m *tokenManager) ParseAccess(raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

func (m *tokenManager) IssueRefresh(ctx context.Context, userID string) (string, error) {
	expiresAt := m.now().Add(m.refreshTTL)
	for i := 0; i < 5; i++ {
		token := uuid.NewString()
		err := m.repo.Create(ctx, tokenrepo.RefreshToken{Token: token, UserID: userID, ExpiresAt: expiresAt})
		if err == nil {
			return token, nil
		}
		if errors.Is(err, domain.ErrAlreadyExists) {
			continue
		}
		return "", err
	}
	return "", errors.New("token collision")
}

// Consume validates a refresh token and deletes it so it cannot be reused.
func (m *tokenManager) Consume(ctx context.Context, token string) (string, error) {
	rt, err := m.repo.Get(ctx, token)
	if err != nil {
		return "", err
	}
	if err := m.repo.Delete(ctx, token); err != nil {
		return "", err
	}
	if rt.Expired(m.now()) {
		return "", domain.ErrNotFound
	}
	return rt.UserID, nil
}

// RevokeAll deletes every refresh token issued to userID.
func (m *tokenManager) RevokeAll(ctx context.Context, userID string) error {
	return m.repo.DeleteForUser(ctx, userID)
}

func (m *tokenManager) Revoke(ctx context.Context, token string) error {
	err := m.repo.Delete(ctx, token)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}
