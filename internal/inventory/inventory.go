// Package inventory owns seat state.  Every hold, confirmation, release and
// expiry sweep funnels through the Inventory engine; no other component is
// allowed to mutate seat status.  Mutations serialize on striped per-seat
// locks acquired in sorted order, which keeps overlapping hold attempts from
// deadlocking or interleaving partially.
package inventory

import (
    "context"
    "errors"
    "fmt"
    "sort"
    "sync"
    "time"

    "github.com/ridehub/bus-booking/internal/model"
)

// ErrSeatUnavailable is returned by TryHold when one or more requested seats
// are not currently AVAILABLE.  The caller receives the conflicting seat ids
// and must re-select; retrying the same set is pointless until a hold lapses.
var ErrSeatUnavailable = errors.New("seat unavailable")

// ErrSeatNotHeld is returned by Confirm when any requested seat is no
// longer held by the booking: the hold was swept or taken over, or the seat
// belongs to a different booking.  The caller has lost the race and must
// not treat the hold as confirmed.  Aliased from model so the event layer
// can match it without importing this package.
var ErrSeatNotHeld = model.ErrSeatNotHeld

// SeatStore is the persistence surface the engine drives.  Implementations
// do not need to provide atomicity across seats; the engine's locks do that.
type SeatStore interface {
    // SeatsByIDs loads the listed seats.  Unknown ids are simply absent
    // from the result.
    SeatsByIDs(ctx context.Context, seatIDs []uint64) ([]model.Seat, error)
    // SaveSeatState persists status, hold expiry and hold owner for one seat.
    SaveSeatState(ctx context.Context, seatID uint64, status string, reservedUntil *time.Time, heldBy string) error
    // ExpiredHolds returns all seats whose hold lapsed before now.
    ExpiredHolds(ctx context.Context, now time.Time) ([]model.Seat, error)
    // CountByStatus counts seats of a schedule in the given status.
    CountByStatus(ctx context.Context, scheduleID uint64, status string) (int, error)
}

const lockStripes = 128

// Inventory is the seat ledger.  Safe for concurrent use.
type Inventory struct {
    store SeatStore
    locks [lockStripes]sync.Mutex
    now   func() time.Time
}

// New returns an Inventory over the given store.
func New(store SeatStore) *Inventory {
    return &Inventory{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// lockFor acquires the lock stripes covering the given seats, in ascending
// stripe order, and returns the matching unlock function.  Sorted acquisition
// is what makes concurrent TryHold calls on overlapping seat sets safe.
func (inv *Inventory) lockFor(seatIDs []uint64) func() {
    seen := make(map[uint64]struct{}, len(seatIDs))
    stripes := make([]uint64, 0, len(seatIDs))
    for _, id := range seatIDs {
        s := id % lockStripes
        if _, ok := seen[s]; !ok {
            seen[s] = struct{}{}
            stripes = append(stripes, s)
        }
    }
    sort.Slice(stripes, func(i, j int) bool { return stripes[i] < stripes[j] })
    for _, s := range stripes {
        inv.locks[s].Lock()
    }
    return func() {
        for i := len(stripes) - 1; i >= 0; i-- {
            inv.locks[stripes[i]].Unlock()
        }
    }
}

// TryHold atomically moves every listed seat from AVAILABLE to BOOKED with a
// hold expiring after ttl, owned by bookingID.  The operation is
// all-or-nothing: when any seat is unknown, belongs to another schedule or is
// not AVAILABLE, no seat is mutated and the conflicting ids are returned
// together with ErrSeatUnavailable.  Seats whose previous hold has already
// lapsed count as available and are taken over; the stale owner's later
// release becomes a no-op because ownership has moved on.
func (inv *Inventory) TryHold(ctx context.Context, scheduleID uint64, seatIDs []uint64, bookingID string, ttl time.Duration) ([]uint64, error) {
    if len(seatIDs) == 0 {
        return nil, fmt.Errorf("tryhold: empty seat list")
    }
    ids := dedupeSorted(seatIDs)

    unlock := inv.lockFor(ids)
    defer unlock()

    seats, err := inv.store.SeatsByIDs(ctx, ids)
    if err != nil {
        return nil, fmt.Errorf("tryhold: load seats: %w", err)
    }
    now := inv.now()
    byID := make(map[uint64]model.Seat, len(seats))
    for _, s := range seats {
        byID[s.ID] = s
    }

    var conflicts []uint64
    for _, id := range ids {
        s, ok := byID[id]
        if !ok || s.ScheduleID != scheduleID {
            conflicts = append(conflicts, id)
            continue
        }
        if s.Status != model.SeatAvailable && !s.HoldExpired(now) {
            conflicts = append(conflicts, id)
        }
    }
    if len(conflicts) > 0 {
        return conflicts, ErrSeatUnavailable
    }

    until := now.Add(ttl)
    for i, id := range ids {
        if err := inv.store.SaveSeatState(ctx, id, model.SeatBooked, &until, bookingID); err != nil {
            // Undo the holds already written so the all-or-nothing
            // contract survives a mid-flight storage failure.
            for j := 0; j < i; j++ {
                _ = inv.store.SaveSeatState(ctx, ids[j], model.SeatAvailable, nil, "")
            }
            return nil, fmt.Errorf("tryhold: save seat %d: %w", id, err)
        }
    }
    return nil, nil
}

// Confirm makes the hold permanent for seats BOOKED by the given booking:
// ReservedUntil is cleared so the reaper can no longer reclaim them.
// Every requested seat must still be BOOKED with this booking as the hold
// owner; a seat that is missing, back to AVAILABLE or held by another
// booking fails the whole call with ErrSeatNotHeld before anything is
// written.  Confirming an already-permanent hold again is a no-op.
func (inv *Inventory) Confirm(ctx context.Context, seatIDs []uint64, bookingID string) error {
    ids := dedupeSorted(seatIDs)
    unlock := inv.lockFor(ids)
    defer unlock()

    seats, err := inv.store.SeatsByIDs(ctx, ids)
    if err != nil {
        return fmt.Errorf("confirm: load seats: %w", err)
    }
    byID := make(map[uint64]model.Seat, len(seats))
    for _, s := range seats {
        byID[s.ID] = s
    }
    // Validate ownership of the full set first so a partially reclaimed
    // hold never gets partially confirmed.
    for _, id := range ids {
        s, ok := byID[id]
        if !ok || s.Status != model.SeatBooked || s.HeldBy != bookingID {
            return fmt.Errorf("confirm seat %d: %w", id, ErrSeatNotHeld)
        }
    }
    for _, id := range ids {
        if byID[id].ReservedUntil == nil {
            continue // already permanent
        }
        if err := inv.store.SaveSeatState(ctx, id, model.SeatBooked, nil, bookingID); err != nil {
            return fmt.Errorf("confirm: save seat %d: %w", id, err)
        }
    }
    return nil
}

// Release returns seats held by the given booking to AVAILABLE, clearing the
// hold.  Seats not held by the booking are skipped, which makes Release
// idempotent and safe to call on the losing side of a payment/expiry race.
// The expired flag only distinguishes the reaper path in logs and history;
// the observable outcome is the same.
func (inv *Inventory) Release(ctx context.Context, seatIDs []uint64, bookingID string, expired bool) error {
    ids := dedupeSorted(seatIDs)
    unlock := inv.lockFor(ids)
    defer unlock()

    seats, err := inv.store.SeatsByIDs(ctx, ids)
    if err != nil {
        return fmt.Errorf("release: load seats: %w", err)
    }
    for _, s := range seats {
        if s.Status != model.SeatBooked || s.HeldBy != bookingID {
            continue
        }
        if err := inv.store.SaveSeatState(ctx, s.ID, model.SeatAvailable, nil, ""); err != nil {
            return fmt.Errorf("release: save seat %d: %w", s.ID, err)
        }
    }
    return nil
}

// SweepExpired releases every seat whose hold lapsed before now and returns
// the released seat ids grouped by the booking that owned them, so the
// caller can cascade-cancel those bookings.  Each seat is re-checked under
// its lock before mutation: a payment confirmation that slips in between the
// scan and the sweep wins and the seat is left alone.
func (inv *Inventory) SweepExpired(ctx context.Context, now time.Time) (map[string][]uint64, error) {
    stale, err := inv.store.ExpiredHolds(ctx, now)
    if err != nil {
        return nil, fmt.Errorf("sweep: scan: %w", err)
    }
    released := make(map[string][]uint64)
    for _, cand := range stale {
        unlock := inv.lockFor([]uint64{cand.ID})
        seats, err := inv.store.SeatsByIDs(ctx, []uint64{cand.ID})
        if err != nil {
            unlock()
            return released, fmt.Errorf("sweep: reload seat %d: %w", cand.ID, err)
        }
        if len(seats) == 1 && seats[0].HoldExpired(now) {
            s := seats[0]
            if err := inv.store.SaveSeatState(ctx, s.ID, model.SeatAvailable, nil, ""); err != nil {
                unlock()
                return released, fmt.Errorf("sweep: save seat %d: %w", s.ID, err)
            }
            released[s.HeldBy] = append(released[s.HeldBy], s.ID)
        }
        unlock()
    }
    return released, nil
}

// AvailableCount derives the number of AVAILABLE seats on a schedule.  The
// count is informational; hold decisions always go through TryHold.
func (inv *Inventory) AvailableCount(ctx context.Context, scheduleID uint64) (int, error) {
    return inv.store.CountByStatus(ctx, scheduleID, model.SeatAvailable)
}

func dedupeSorted(ids []uint64) []uint64 {
    out := make([]uint64, 0, len(ids))
    seen := make(map[uint64]struct{}, len(ids))
    for _, id := range ids {
        if _, ok := seen[id]; !ok {
            seen[id] = struct{}{}
            out = append(out, id)
        }
    }
    sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
    return out
}
