package account

import (
	"context"
	"sync"
)

// MemoryStore is a process-local Repository keyed by id with an email index.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]Account
	byEmail map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]Account),
		byEmail: make(map[string]string),
	}
}

func (s *MemoryStore) GetByEmail(_ context.Context, email string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return Account{}, ErrNotFound
	}
	return clone(s.byID[id]), nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return clone(a), nil
}

func (s *MemoryStore) Create(_ context.Context, a Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := NormalizeEmail(a.Email)
	if _, ok := s.byEmail[email]; ok {
		return ErrExists
	}
	if _, ok := s.byID[a.ID]; ok {
		return ErrExists
	}
	a.Email = email
	s.byID[a.ID] = clone(a)
	s.byEmail[email] = a.ID
	return nil
}

func (s *MemoryStore) Update(_ context.Context, id string, patch Patch) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	patch.Apply(&a)
	s.byID[id] = a
	return clone(a), nil
}

func clone(a Account) Account {
	a.Permissions = append([]string(nil), a.Permissions...)
	return a
}
