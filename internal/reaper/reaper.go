// Package reaper reclaims seats whose hold lapsed without a payment result
// and cascade-cancels the bookings that owned them.  A booking stuck in
// AWAITING_PAYMENT is therefore guaranteed to resolve within one sweep
// interval plus processing latency.
package reaper

import (
    "context"
    "log"
    "sync"
    "time"
)

// SeatSweeper is the inventory slice the reaper drives.
type SeatSweeper interface {
    SweepExpired(ctx context.Context, now time.Time) (map[string][]uint64, error)
}

// BookingExpirer cancels bookings whose hold lapsed.  StaleBookingIDs
// exists because the seat sweep alone cannot see every stuck booking: a
// lapsed hold taken over by a newer booking leaves no seat pointing back at
// the old one.
type BookingExpirer interface {
    Expire(ctx context.Context, bookingID string) error
    StaleBookingIDs(ctx context.Context, now time.Time) ([]string, error)
}

// Reaper periodically sweeps expired seat holds.
type Reaper struct {
    sweeper  SeatSweeper
    expirer  BookingExpirer
    interval time.Duration

    running sync.Mutex // held while a sweep is in flight
    now     func() time.Time
}

// New returns a Reaper sweeping at the given interval.
func New(sweeper SeatSweeper, expirer BookingExpirer, interval time.Duration) *Reaper {
    return &Reaper{
        sweeper:  sweeper,
        expirer:  expirer,
        interval: interval,
        now:      func() time.Time { return time.Now().UTC() },
    }
}

// Start runs the sweep loop until ctx is cancelled.
func (r *Reaper) Start(ctx context.Context) {
    ticker := time.NewTicker(r.interval)
    defer ticker.Stop()

    log.Printf("reaper: started (interval %s)", r.interval)
    for {
        select {
        case <-ctx.Done():
            log.Printf("reaper: stopped")
            return
        case <-ticker.C:
            r.Sweep(ctx)
        }
    }
}

// Sweep runs one pass.  Only one sweep runs at a time; a tick that fires
// while the previous pass is still working is skipped.
func (r *Reaper) Sweep(ctx context.Context) {
    if !r.running.TryLock() {
        return
    }
    defer r.running.Unlock()

    now := r.now()
    released, err := r.sweeper.SweepExpired(ctx, now)
    if err != nil {
        log.Printf("reaper: sweep failed: %v", err)
        return
    }
    for bookingID, seatIDs := range released {
        if bookingID == "" {
            continue
        }
        log.Printf("reaper: released %d expired seat(s) of booking %s", len(seatIDs), bookingID)
        if err := r.expirer.Expire(ctx, bookingID); err != nil {
            log.Printf("reaper: expire booking %s: %v", bookingID, err)
        }
    }

    // Second pass: bookings still AWAITING_PAYMENT past their hold window
    // whose seats the sweep never saw, because a newer hold took them over.
    stale, err := r.expirer.StaleBookingIDs(ctx, now)
    if err != nil {
        log.Printf("reaper: stale scan failed: %v", err)
        return
    }
    for _, bookingID := range stale {
        if _, done := released[bookingID]; done {
            continue
        }
        log.Printf("reaper: expiring stranded booking %s", bookingID)
        if err := r.expirer.Expire(ctx, bookingID); err != nil {
            log.Printf("reaper: expire booking %s: %v", bookingID, err)
        }
    }
}
