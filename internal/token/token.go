// Package token mints and verifies the signed bearer credentials that carry
// identity between services. Verification is pure: it never touches the
// credential store, which is what lets downstream services authorize every
// request without a network round trip.
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"agriconnect.org/internal/account"
)

// DefaultTTL matches the auth cookie lifetime.
const DefaultTTL = 30 * 24 * time.Hour

var (
	ErrTokenMissing        = errors.New("token: no token provided")
	ErrTokenMalformed      = errors.New("token: invalid or failed verification")
	ErrTokenExpired        = errors.New("token: expired")
	ErrInvalidAccountState = errors.New("token: account missing id or role")
)

// Claims is the payload embedded in every issued token.
type Claims struct {
	ID    string `json:"id"`
	Role  string `json:"userType"`
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// Projection converts verified claims back into the public account shape.
func (c *Claims) Projection() account.Projection {
	return account.Projection{
		ID:    c.ID,
		Name:  c.Name,
		Email: c.Email,
		Role:  c.Role,
	}
}

// Issuer signs and verifies tokens with a process-wide shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithTTL overrides the token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(i *Issuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(i *Issuer) {
		if fn != nil {
			i.now = fn
		}
	}
}

// NewIssuer constructs an Issuer. The secret must be non-empty; starting
// without one is a configuration error the caller should treat as fatal.
func NewIssuer(secret string, opts ...Option) (*Issuer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("token: signing secret is not configured")
	}
	iss := &Issuer{
		secret: []byte(secret),
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(iss)
	}
	return iss, nil
}

// Issue signs a token for the account. The id and role are mandatory; an
// account record without them cannot be trusted downstream.
func (i *Issuer) Issue(a *account.Account) (string, error) {
	if a == nil || a.ID == "" || !a.Role.Valid() {
		return "", ErrInvalidAccountState
	}
	now := i.now().UTC()
	claims := Claims{
		ID:    a.ID,
		Role:  string(a.Role),
		Email: a.Email,
		Name:  a.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Verify checks signature, structure and expiry, and returns the embedded
// claims. Failures are terminal for the request; they are never retried.
func (i *Issuer) Verify(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrTokenMissing
	}
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrTokenMalformed
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.ID == "" || claims.Role == "" {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}
