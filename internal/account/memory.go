package account

import (
	"context"
	"sync"
	"time"

	"agriconnect.org/internal/ids"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory Store with the same uniqueness semantics as the
// Postgres store. Used in tests and cache-less local development.
type MemStore struct {
	mu       sync.RWMutex
	byID     map[string]*Account
	byEmail  map[string]string
	byGoogle map[string]string
}

func NewMemStore() *MemStore {
	return &MemStore{
		byID:     make(map[string]*Account),
		byEmail:  make(map[string]string),
		byGoogle: make(map[string]string),
	}
}

func clone(a *Account) *Account {
	cp := *a
	return &cp
}

func (s *MemStore) Create(_ context.Context, a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = ids.New()
	}
	if _, ok := s.byEmail[a.Email]; ok {
		return ErrAlreadyExists
	}
	if a.GoogleID != "" {
		if _, ok := s.byGoogle[a.GoogleID]; ok {
			return ErrAlreadyExists
		}
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	s.byID[a.ID] = clone(a)
	s.byEmail[a.Email] = a.ID
	if a.GoogleID != "" {
		s.byGoogle[a.GoogleID] = a.ID
	}
	return nil
}

func (s *MemStore) FindByID(_ context.Context, id string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(a), nil
}

func (s *MemStore) FindByEmail(_ context.Context, email string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s.byID[id]), nil
}

func (s *MemStore) FindByGoogleID(_ context.Context, googleID string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byGoogle[googleID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s.byID[id]), nil
}

func (s *MemStore) Update(_ context.Context, a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.byID[a.ID]
	if !ok {
		return ErrNotFound
	}
	if a.Email != prev.Email {
		if _, taken := s.byEmail[a.Email]; taken {
			return ErrAlreadyExists
		}
		delete(s.byEmail, prev.Email)
		s.byEmail[a.Email] = a.ID
	}
	if a.GoogleID != prev.GoogleID {
		if a.GoogleID != "" {
			if owner, taken := s.byGoogle[a.GoogleID]; taken && owner != a.ID {
				return ErrAlreadyExists
			}
			s.byGoogle[a.GoogleID] = a.ID
		}
		if prev.GoogleID != "" {
			delete(s.byGoogle, prev.GoogleID)
		}
	}
	a.UpdatedAt = time.Now().UTC()
	s.byID[a.ID] = clone(a)
	return nil
}

// Delete removes an account. Only exercised by tests that simulate a
// cache/store desync during login.
func (s *MemStore) Delete(_ context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byID, id)
	delete(s.byEmail, a.Email)
	if a.GoogleID != "" {
		delete(s.byGoogle, a.GoogleID)
	}
}
