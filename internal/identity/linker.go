package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"agriconnect.org/internal/account"
)

// federatedRole is the role every Google-federated account ends up with,
// whether created fresh or linked onto an existing password account.
const federatedRole = account.RoleFarmer

// FederatedLogin reconciles a provider profile and issues a session for the
// resulting account. This is the tail end of the OAuth callback.
func (s *Service) FederatedLogin(ctx context.Context, p Profile) (Session, error) {
	acc, err := s.LinkGoogleProfile(ctx, p)
	if err != nil {
		return Session{}, err
	}
	tok, err := s.tokens.Issue(acc)
	if err != nil {
		return Session{}, err
	}
	return Session{Account: acc.Project(), Token: tok}, nil
}

// Profile is the subset of a provider profile the linker needs.
type Profile struct {
	ID    string
	Email string
	Name  string
}

// LinkGoogleProfile reconciles a provider profile into exactly one account.
// Precedence, first match wins: existing account by google id, existing
// account by email (link), fresh account. The store's unique constraints
// settle the concurrent-first-login race; on a create conflict the linker
// re-runs the lookup chain once.
func (s *Service) LinkGoogleProfile(ctx context.Context, p Profile) (*account.Account, error) {
	if strings.TrimSpace(p.ID) == "" {
		return nil, fmt.Errorf("%w: provider id", ErrInvalidInput)
	}
	email := account.NormalizeEmail(p.Email)
	if email == "" {
		return nil, ErrMissingGoogleEmail
	}
	p.Email = email

	acc, err := s.link(ctx, p)
	if errors.Is(err, account.ErrAlreadyExists) {
		acc, err = s.link(ctx, p)
	}
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *Service) link(ctx context.Context, p Profile) (*account.Account, error) {
	acc, err := s.accounts.FindByGoogleID(ctx, p.ID)
	switch {
	case err == nil:
		return s.refresh(ctx, acc, p)
	case !errors.Is(err, account.ErrNotFound):
		return nil, fmt.Errorf("find by google id: %w", err)
	}

	acc, err = s.accounts.FindByEmail(ctx, p.Email)
	switch {
	case err == nil:
		// refresh links the provider id onto the existing password account.
		return s.refresh(ctx, acc, p)
	case !errors.Is(err, account.ErrNotFound):
		return nil, fmt.Errorf("find by email: %w", err)
	}

	acc = &account.Account{
		GoogleID: p.ID,
		Name:     displayName(p),
		Email:    p.Email,
		Role:     federatedRole,
	}
	if err := s.accounts.Create(ctx, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// refresh applies the federated update rules (mandated role, current display
// name) and persists only when something changed.
func (s *Service) refresh(ctx context.Context, acc *account.Account, p Profile) (*account.Account, error) {
	changed := acc.GoogleID != p.ID
	acc.GoogleID = p.ID
	if acc.Role != federatedRole {
		acc.Role = federatedRole
		changed = true
	}
	if name := displayName(p); acc.Name != name && strings.TrimSpace(p.Name) != "" {
		acc.Name = name
		changed = true
	}
	if changed {
		if err := s.accounts.Update(ctx, acc); err != nil {
			return nil, fmt.Errorf("update linked account: %w", err)
		}
	}
	return acc, nil
}

func displayName(p Profile) string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	suffix := p.ID
	if len(suffix) > 5 {
		suffix = suffix[len(suffix)-5:]
	}
	return "User " + suffix
}
