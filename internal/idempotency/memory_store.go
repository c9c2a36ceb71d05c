package idempotency

import (
    "context"
    "sync"
    "time"

    "github.com/ridehub/bus-booking/internal/model"
)

// MemoryStore is a process-local Store used when Redis is unavailable and in
// tests.  Expired records are dropped lazily on access; there is no janitor
// goroutine.  Deduplication only covers a single process.
type MemoryStore struct {
    mu   sync.Mutex
    recs map[string]model.IdempotencyRecord
    now  func() time.Time
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
    return &MemoryStore{
        recs: make(map[string]model.IdempotencyRecord),
        now:  func() time.Time { return time.Now().UTC() },
    }
}

func (s *MemoryStore) PutIfAbsent(_ context.Context, key string, rec model.IdempotencyRecord) (*model.IdempotencyRecord, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    if existing, ok := s.recs[key]; ok && existing.ExpiresAt.After(s.now()) {
        out := existing
        return &out, nil
    }
    s.recs[key] = rec
    return nil, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, rec model.IdempotencyRecord) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.recs[key] = rec
    return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    delete(s.recs, key)
    return nil
}
