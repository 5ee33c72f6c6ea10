// Package identity orchestrates signup, login, logout and token
// verification over the credential store, the resilient cache and the token
// issuer.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"agriconnect.org/internal/account"
	"agriconnect.org/internal/cache"
	"agriconnect.org/internal/token"
)

const (
	// bcrypt cost matching the original deployment; high enough to resist
	// offline brute force at interactive-login latency.
	bcryptCost = 12

	minPasswordLength = 6

	// Cached login projections live for an hour.
	cacheTTL = time.Hour
)

// Service composes the credential store, the resilient cache and the token
// issuer behind the auth HTTP surface.
type Service struct {
	accounts account.Store
	cache    *cache.Cache
	tokens   *token.Issuer
}

// NewService wires the identity service. All three collaborators are
// required.
func NewService(accounts account.Store, c *cache.Cache, tokens *token.Issuer) (*Service, error) {
	if accounts == nil || c == nil || tokens == nil {
		return nil, errors.New("identity: store, cache and issuer are required")
	}
	return &Service{accounts: accounts, cache: c, tokens: tokens}, nil
}

// Session is the result of a successful authentication path: the public
// account projection plus a freshly issued bearer token.
type Session struct {
	Account account.Projection
	Token   string
}

func cacheKey(email string) string {
	return "user:" + account.NormalizeEmail(email)
}

// Signup registers a password account and issues its first token.
func (s *Service) Signup(ctx context.Context, name, email, password string, role account.Role) (Session, error) {
	name = strings.TrimSpace(name)
	email = account.NormalizeEmail(email)
	if name == "" || email == "" || password == "" || role == "" {
		return Session{}, ErrMissingFields
	}
	if !account.ValidEmail(email) {
		return Session{}, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return Session{}, ErrPasswordTooShort
	}
	if !role.Valid() {
		return Session{}, ErrInvalidRole
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	acc := &account.Account{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.accounts.Create(ctx, acc); err != nil {
		if errors.Is(err, account.ErrAlreadyExists) {
			return Session{}, ErrDuplicateEmail
		}
		return Session{}, fmt.Errorf("create account: %w", err)
	}

	// Defensive clear: a stale entry for this email could shadow the new
	// record on the next login.
	s.cache.Delete(ctx, cacheKey(email))

	tok, err := s.tokens.Issue(acc)
	if err != nil {
		return Session{}, err
	}
	return Session{Account: acc.Project(), Token: tok}, nil
}

// Login authenticates an email/password pair, consulting the cache first.
// The cache never stores the password hash, so even on a hit the
// authoritative hash is re-fetched from the store by id.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = account.NormalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, ErrMissingFields
	}
	key := cacheKey(email)

	if raw, ok := s.cache.Get(ctx, key); ok {
		var proj account.Projection
		if err := json.Unmarshal([]byte(raw), &proj); err == nil && proj.ID != "" {
			acc, err := s.accounts.FindByID(ctx, proj.ID)
			if err != nil {
				if errors.Is(err, account.ErrNotFound) {
					// Cache and store disagree: drop the entry and fail
					// the same way a bad password would.
					s.cache.Delete(ctx, key)
					return Session{}, ErrInvalidCredentials
				}
				return Session{}, fmt.Errorf("find account: %w", err)
			}
			return s.finishLogin(acc, password)
		}
		// Unparseable entry; treat as a miss.
		s.cache.Delete(ctx, key)
	}

	acc, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("find account: %w", err)
	}
	sess, err := s.finishLogin(acc, password)
	if err != nil {
		return Session{}, err
	}
	if data, err := json.Marshal(sess.Account); err == nil {
		s.cache.Set(ctx, key, string(data), cacheTTL)
	}
	return sess, nil
}

func (s *Service) finishLogin(acc *account.Account, password string) (Session, error) {
	if acc.Suspended || acc.PasswordHash == "" {
		return Session{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	tok, err := s.tokens.Issue(acc)
	if err != nil {
		return Session{}, err
	}
	return Session{Account: acc.Project(), Token: tok}, nil
}

// Logout clears the cache entry for the caller, recovered from the
// presented token. Decoding failures are non-fatal: logout always succeeds.
func (s *Service) Logout(ctx context.Context, rawToken string) {
	claims, err := s.tokens.Verify(rawToken)
	if err != nil || claims.Email == "" {
		return
	}
	s.cache.Delete(ctx, cacheKey(claims.Email))
}

// Verify validates a bearer token and returns the embedded projection. The
// failure reason is the token package's specific error.
func (s *Service) Verify(rawToken string) (account.Projection, error) {
	claims, err := s.tokens.Verify(rawToken)
	if err != nil {
		return account.Projection{}, err
	}
	return claims.Projection(), nil
}
