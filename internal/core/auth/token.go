package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/artpar/formdesk/internal/core/domain"
)

// =============================================================================
// Session Tokens
// =============================================================================

// DefaultTokenTTL is how long a session token stays valid.
const DefaultTokenTTL = 7 * 24 * time.Hour

// ErrInvalidToken is returned for tokens that are malformed, expired or
// signed with another key.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the JWT claims of a session token.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 session tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an issuer. A zero ttl uses DefaultTokenTTL.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL returns the lifetime of issued tokens.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token for u and returns it with its expiry.
func (i *Issuer) Issue(u domain.PublicUser) (string, time.Time, error) {
	now := i.now()
	expires := now.Add(i.ttl)
	claims := Claims{
		Email: u.Email,
		Name:  u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return token, expires, nil
}

// Verify parses a token and checks its signature and expiry.
func (i *Issuer) Verify(token string) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
