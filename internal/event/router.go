package event

import (
    "context"
    "errors"
    "log"
    "sync"

    "github.com/ridehub/bus-booking/internal/model"
)

// PaymentSink is the orchestrator surface the router dispatches inbound
// payment results to.
type PaymentSink interface {
    OnPaymentResult(ctx context.Context, bookingID, status, gatewayTxnID string) error
}

// Router dispatches inbound payment events into the orchestrator.  The
// broker delivers at least once, so the router drops duplicates and stale
// deliveries by booking version before they reach the state machine; the
// orchestrator's own state check is the second line of defense.
type Router struct {
    sink PaymentSink

    mu   sync.Mutex
    seen map[string]uint64 // booking id -> highest version handled
}

// NewRouter returns a Router over the given sink.
func NewRouter(sink PaymentSink) *Router {
    return &Router{sink: sink, seen: make(map[string]uint64)}
}

// HandleInbound processes one delivery.  A nil return means the message is
// settled (handled, duplicate, stale or semantically dead) and must be
// acked.  A non-nil return means a transient failure; the caller should
// redeliver.
func (r *Router) HandleInbound(ctx context.Context, env Envelope) error {
    var status string
    switch env.Kind {
    case KindPaymentCompleted:
        status = model.PaymentSuccess
    case KindPaymentFailed:
        status = model.PaymentFailed
    default:
        log.Printf("event-router: dropping unexpected kind %q", env.Kind)
        return nil
    }
    if env.BookingID == "" {
        log.Printf("event-router: dropping %s without booking id", env.Kind)
        return nil
    }
    if r.stale(env.BookingID, env.Version) {
        log.Printf("event-router: dropping stale %s for %s (version %d)", env.Kind, env.BookingID, env.Version)
        return nil
    }

    err := r.sink.OnPaymentResult(ctx, env.BookingID, status, env.GatewayTxnID)
    switch {
    case err == nil:
    case errors.Is(err, model.ErrInvalidTransition):
        // Expected under at-least-once delivery and expiry races.
        log.Printf("event-router: dropping %s for %s: %v", env.Kind, env.BookingID, err)
    case errors.Is(err, model.ErrBookingNotFound):
        // Acking avoids a poison-message loop on events for foreign or
        // purged bookings.
        log.Printf("event-router: dropping %s for unknown booking %s", env.Kind, env.BookingID)
    case errors.Is(err, model.ErrSeatNotHeld):
        // The hold is gone for good; redelivery cannot bring it back.
        log.Printf("event-router: dropping %s for %s: %v", env.Kind, env.BookingID, err)
    default:
        return err
    }
    r.markSeen(env.BookingID, env.Version)
    return nil
}

func (r *Router) stale(bookingID string, version uint64) bool {
    if version == 0 {
        return false // unversioned producers get no dedupe
    }
    r.mu.Lock()
    defer r.mu.Unlock()
    return version <= r.seen[bookingID]
}

func (r *Router) markSeen(bookingID string, version uint64) {
    if version == 0 {
        return
    }
    r.mu.Lock()
    defer r.mu.Unlock()
    if version > r.seen[bookingID] {
        r.seen[bookingID] = version
    }
}
