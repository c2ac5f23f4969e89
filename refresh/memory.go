package refresh

import (
	"context"
	"crypto/subtle"
	"sync"
)

// MemoryStore is a process-local Repository.
type MemoryStore struct {
	mu     sync.Mutex
	byID   map[string]Record
	byUser map[string]map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]Record),
		byUser: make(map[string]map[string]struct{}),
	}
}

func (s *MemoryStore) Get(_ context.Context, tokenID string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[tokenID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Put(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID[record.TokenID] = record
	ids, ok := s.byUser[record.UserID]
	if !ok {
		ids = make(map[string]struct{})
		s.byUser[record.UserID] = ids
	}
	ids[record.TokenID] = struct{}{}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[tokenID]
	if !ok {
		return nil
	}
	delete(s.byID, tokenID)
	if ids := s.byUser[rec.UserID]; ids != nil {
		delete(ids, tokenID)
		if len(ids) == 0 {
			delete(s.byUser, rec.UserID)
		}
	}
	return nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byUser[userID]
	out := make([]Record, 0, len(ids))
	for id := range ids {
		out = append(out, s.byID[id])
	}
	return out, nil
}

func (s *MemoryStore) Claim(_ context.Context, req ClaimRequest) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[req.TokenID]
	if !ok {
		return Record{}, ErrNotFound
	}
	if rec.IsRevoked {
		return rec, ErrRevoked
	}
	if rec.Expired(req.Now) {
		return Record{}, ErrExpired
	}
	if subtle.ConstantTimeCompare([]byte(rec.HashedToken), []byte(req.HashedToken)) != 1 {
		return Record{}, ErrHashMismatch
	}

	rec.LastUsedAt = req.Now
	if req.Rotate {
		rec.IsRevoked = true
		rec.RotatedAt = req.Now
	}
	s.byID[req.TokenID] = rec
	return rec, nil
}

func (s *MemoryStore) Revoke(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[tokenID]
	if !ok || rec.IsRevoked {
		return false, nil
	}
	rec.IsRevoked = true
	s.byID[tokenID] = rec
	return true, nil
}
