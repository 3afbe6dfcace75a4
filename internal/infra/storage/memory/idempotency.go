package memory

import (
	"context"
	"sync"
	"time"

	"staykeeper/internal/app/middleware"
)

// IdempotencyStore keeps command outcomes in process memory. Expired
// records read as absent and are pruned on the next Save.
type IdempotencyStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	records map[string]middleware.IdempotencyRecord
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		ttl:     ttl,
		now:     time.Now,
		records: make(map[string]middleware.IdempotencyRecord),
	}
}

func (s *IdempotencyStore) Get(_ context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok || s.expired(rec, s.now()) {
		return middleware.IdempotencyRecord{}, false, nil
	}
	return rec, true, nil
}

func (s *IdempotencyStore) Save(_ context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for key, old := range s.records {
		if s.expired(old, now) {
			delete(s.records, key)
		}
	}
	rec.Payload = append([]byte(nil), rec.Payload...)
	s.records[rec.Key] = rec
	return nil
}

func (s *IdempotencyStore) expired(rec middleware.IdempotencyRecord, now time.Time) bool {
	return s.ttl > 0 && now.Sub(rec.OccurredAt) > s.ttl
}
