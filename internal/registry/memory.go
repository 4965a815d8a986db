package registry

import (
	"context"
	"sync"
	"time"

	"github.com/altavia-air/altavia-api/internal/models"
)

// MemoryStore is the default single-instance registry: a bounded map keyed by
// token ID with a janitor that evicts records past ExpiresAt. All operations
// are O(1) map accesses under one mutex, so nothing here blocks the request
// path.
type MemoryStore struct {
	mu         sync.Mutex
	records    map[string]*models.RefreshTokenRecord
	maxEntries int
	now        func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore creates a store bounded at maxEntries, sweeping expired
// records every cleanupInterval.
func NewMemoryStore(maxEntries int, cleanupInterval time.Duration) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 100000
	}
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}

	s := &MemoryStore{
		records:    make(map[string]*models.RefreshTokenRecord),
		maxEntries: maxEntries,
		now:        time.Now,
		stop:       make(chan struct{}),
	}

	go s.janitor(cleanupInterval)
	return s
}

func (s *MemoryStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictExpired()
		case <-s.stop:
			return
		}
	}
}

func (s *MemoryStore) evictExpired() {
	now := s.now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.records {
		if rec.Expired(now) {
			delete(s.records, id)
		}
	}
}

// Register inserts the record, failing closed when the store is full.
func (s *MemoryStore) Register(_ context.Context, record *models.RefreshTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.TokenID]; exists {
		return ErrDuplicateID
	}
	if len(s.records) >= s.maxEntries {
		return ErrStoreFull
	}

	stored := *record
	s.records[record.TokenID] = &stored
	return nil
}

// Consume validates the record and retires it in the same critical section,
// so exactly one caller wins a rotation race; everyone else sees ErrRevoked.
func (s *MemoryStore) Consume(_ context.Context, tokenID string) (*models.RefreshTokenRecord, error) {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[tokenID]
	if !ok {
		return nil, ErrNotFound
	}
	if rec.Revoked() {
		return nil, ErrRevoked
	}
	if rec.Expired(now) {
		delete(s.records, tokenID)
		return nil, ErrExpired
	}

	rec.LastUsedAt = &now
	rec.RevokedAt = &now
	copied := *rec
	return &copied, nil
}

// Revoke marks the record revoked; idempotent, keeps the record until expiry.
func (s *MemoryStore) Revoke(_ context.Context, tokenID string) error {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[tokenID]
	if !ok || rec.Revoked() {
		return nil
	}
	rec.RevokedAt = &now
	return nil
}

// RevokeAllForSubject revokes every live record owned by the subject.
func (s *MemoryStore) RevokeAllForSubject(_ context.Context, subjectID string) (int, error) {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	revoked := 0
	for _, rec := range s.records {
		if rec.SubjectID == subjectID && !rec.Revoked() {
			rec.RevokedAt = &now
			revoked++
		}
	}
	return revoked, nil
}

// Len reports the current number of records, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Close stops the janitor.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}
