// Package auth issues and verifies access tokens and tracks live
// sessions in Redis. Tokens are HS256 JWTs carrying the user id as
// subject and a session id; a token is only as alive as its session
// record, so sign-out takes effect immediately.
package auth

import (
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/errandly/backend/internal/domain"
)

// DefaultAccessTTL bounds how long a token is honored even while its
// session record exists.
const DefaultAccessTTL = 24 * time.Hour

// Claims is the verified content of an access token.
type Claims struct {
	UserID    uuid.UUID
	SessionID string
	ExpiresAt time.Time
}

type tokenClaims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

// JWTManager signs and parses access tokens. The clock is injectable
// for expiry tests.
type JWTManager struct {
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
}

// NewJWTManager builds a manager for the given signing secret.
// A non-positive ttl falls back to DefaultAccessTTL.
func NewJWTManager(secret string, accessTTL time.Duration) *JWTManager {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	return &JWTManager{
		secret:    []byte(secret),
		accessTTL: accessTTL,
		now:       time.Now,
	}
}

// Generate signs an access token for userID bound to session sid.
func (m *JWTManager) Generate(userID uuid.UUID, sid string) (string, time.Time, error) {
	if len(m.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("auth.JWTManager.Generate: jwt secret is empty")
	}
	if userID == uuid.Nil || strings.TrimSpace(sid) == "" {
		return "", time.Time{}, fmt.Errorf("auth.JWTManager.Generate: invalid token payload")
	}

	now := m.now().UTC()
	expiresAt := now.Add(m.accessTTL)
	claims := tokenClaims{
		SID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth.JWTManager.Generate: sign: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies raw and returns its claims.
// Any malformed, mis-signed, or expired token maps to domain.ErrUnauthorized.
func (m *JWTManager) Parse(raw string) (Claims, error) {
	if strings.TrimSpace(raw) == "" {
		return Claims{}, domain.ErrUnauthorized
	}

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(_ *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}), jwt.WithTimeFunc(m.now))
	if err != nil || token == nil || !token.Valid {
		return Claims{}, domain.ErrUnauthorized
	}

	userID, parseErr := uuid.Parse(claims.Subject)
	if parseErr != nil || userID == uuid.Nil {
		return Claims{}, domain.ErrUnauthorized
	}
	if strings.TrimSpace(claims.SID) == "" || claims.ExpiresAt == nil {
		return Claims{}, domain.ErrUnauthorized
	}

	return Claims{
		UserID:    userID,
		SessionID: claims.SID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
