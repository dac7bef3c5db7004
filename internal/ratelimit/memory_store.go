package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/linkedreach/backend/internal/models"
)

// MemoryStore keeps windows in process memory. Used by tests and the CLI.
type MemoryStore struct {
	mu      sync.Mutex
	records map[Key]models.RateLimitRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[Key]models.RateLimitRecord)}
}

func (s *MemoryStore) Hit(ctx context.Context, key Key, now time.Time, cfg Config) (Result, error) {
	return hitUpdate(ctx, s.Update, key, now, cfg)
}

func (s *MemoryStore) Update(_ context.Context, key Key, fn func(cur *models.RateLimitRecord) *models.RateLimitRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cur *models.RateLimitRecord
	if rec, ok := s.records[key]; ok {
		cur = &rec
	}
	if next := fn(cur); next != nil {
		s.records[key] = *next
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key Key) (*models.RateLimitRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemoryStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, rec := range s.records {
		if rec.WindowStart.Before(cutoff) {
			delete(s.records, k)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
