// Package idempotency deduplicates booking-creation requests by the
// client-supplied idempotency key.  Creating a booking holds seats and emits
// events, so a replayed request must return the first outcome instead of
// reserving twice.
package idempotency

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/ridehub/bus-booking/internal/model"
)

// ErrDuplicateInFlight is returned when a key is seen again while the
// original request is still executing.  The caller should retry after a
// backoff; silently proceeding would risk a double reservation.
var ErrDuplicateInFlight = errors.New("duplicate request in flight")

// Store persists idempotency records.  PutIfAbsent must be atomic: when two
// handlers race on the same key, exactly one observes absence.
type Store interface {
    // PutIfAbsent inserts rec when the key is unseen (or its previous
    // record has expired) and returns nil.  Otherwise it returns the live
    // existing record and inserts nothing.
    PutIfAbsent(ctx context.Context, key string, rec model.IdempotencyRecord) (*model.IdempotencyRecord, error)
    // Put overwrites the record for the key.
    Put(ctx context.Context, key string, rec model.IdempotencyRecord) error
    // Delete drops the record, allowing the key to be reused.
    Delete(ctx context.Context, key string) error
}

// BeginResult reports what Begin found for the key.
type BeginResult struct {
    IsNew    bool                  // true when the caller owns the first request
    Snapshot model.BookingSnapshot // cached outcome when IsNew is false
}

// Guard wraps a Store with the begin/complete protocol.
type Guard struct {
    store     Store
    retention time.Duration
    now       func() time.Time
}

// NewGuard returns a Guard keeping completed records for the given
// retention window.
func NewGuard(store Store, retention time.Duration) *Guard {
    return &Guard{store: store, retention: retention, now: func() time.Time { return time.Now().UTC() }}
}

// Begin claims the key.  The first caller gets IsNew=true and must later
// call Complete or Fail.  A duplicate of a finished request gets the cached
// snapshot; a duplicate of a still-running request gets
// ErrDuplicateInFlight.
func (g *Guard) Begin(ctx context.Context, key string) (BeginResult, error) {
    if key == "" {
        return BeginResult{}, fmt.Errorf("idempotency key is required")
    }
    rec := model.IdempotencyRecord{
        Key:       key,
        InFlight:  true,
        ExpiresAt: g.now().Add(g.retention),
    }
    existing, err := g.store.PutIfAbsent(ctx, key, rec)
    if err != nil {
        return BeginResult{}, fmt.Errorf("idempotency begin: %w", err)
    }
    if existing == nil {
        return BeginResult{IsNew: true}, nil
    }
    if existing.InFlight {
        return BeginResult{}, ErrDuplicateInFlight
    }
    return BeginResult{IsNew: false, Snapshot: existing.Snapshot}, nil
}

// Complete stores the final snapshot against the key.  Duplicates arriving
// within the retention window replay this snapshot.
func (g *Guard) Complete(ctx context.Context, key string, snap model.BookingSnapshot) error {
    rec := model.IdempotencyRecord{
        Key:       key,
        InFlight:  false,
        Snapshot:  snap,
        ExpiresAt: g.now().Add(g.retention),
    }
    if err := g.store.Put(ctx, key, rec); err != nil {
        return fmt.Errorf("idempotency complete: %w", err)
    }
    return nil
}

// Fail releases the key after an attempt that produced no durable outcome
// (storage failure before any side effect), so the client may retry with
// the same key.
func (g *Guard) Fail(ctx context.Context, key string) error {
    if err := g.store.Delete(ctx, key); err != nil {
        return fmt.Errorf("idempotency fail: %w", err)
    }
    return nil
}
