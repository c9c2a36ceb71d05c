// Package booking owns the booking state machine and drives the saga: hold
// seats, request payment, then confirm or compensate.  Every transition is
// made under a per-booking lock with the current state re-read first, so
// racing signals (late payment vs. expiry, duplicate events, concurrent
// cancels) resolve to exactly one winner and a harmless no-op loser.
package booking

import (
    "context"
    "errors"
    "fmt"
    "hash/fnv"
    "log"
    "sort"
    "sync"
    "time"

    "github.com/google/uuid"

    "github.com/ridehub/bus-booking/internal/event"
    "github.com/ridehub/bus-booking/internal/idempotency"
    "github.com/ridehub/bus-booking/internal/inventory"
    "github.com/ridehub/bus-booking/internal/model"
)

// ErrBookingNotFound is returned when no booking exists for the given id.
// Aliased from model so the event layer can match it without importing
// this package.
var ErrBookingNotFound = model.ErrBookingNotFound

// ErrInvalidTransition is returned when an operation arrives for a booking
// that is not in a state the operation applies to.  Event-driven callers
// log and drop it; it is expected under at-least-once delivery and races.
var ErrInvalidTransition = model.ErrInvalidTransition

// ErrEmptySeatList is returned when booking creation carries no seats.
var ErrEmptySeatList = errors.New("seat list is empty")

// ErrTripNotFound is returned when the trip has no schedule.
var ErrTripNotFound = errors.New("trip not found")

// ErrSeatsOutsideSchedule is returned when a requested seat does not belong
// to the trip's schedule.
var ErrSeatsOutsideSchedule = errors.New("seat does not belong to schedule")

// Store persists bookings, their audit history and payment transaction
// records.
type Store interface {
    CreateBooking(ctx context.Context, b *model.Booking) error
    UpdateBooking(ctx context.Context, b *model.Booking) error
    BookingByID(ctx context.Context, id string) (*model.Booking, error)
    BookingByCode(ctx context.Context, code string) (*model.Booking, error)
    BookingCodeExists(ctx context.Context, code string) (bool, error)
    AppendHistory(ctx context.Context, h model.BookingHistory) error
    SavePaymentTxn(ctx context.Context, txn *model.PaymentTransaction) error
    // StaleBookingIDs lists bookings still AWAITING_PAYMENT created before
    // the cutoff.
    StaleBookingIDs(ctx context.Context, cutoff time.Time) ([]string, error)
}

// ScheduleStore resolves trips to schedules.  Schedules are owned by the
// route service; this is a read-only collaborator.
type ScheduleStore interface {
    ScheduleByTripID(ctx context.Context, tripID uint64) (*model.Schedule, error)
}

// SeatCatalog reads seat rows for validation and pricing.  Mutations never
// go through here; they belong to the inventory engine.
type SeatCatalog interface {
    SeatsByIDs(ctx context.Context, seatIDs []uint64) ([]model.Seat, error)
}

// SeatLedger is the slice of the inventory engine the orchestrator drives.
type SeatLedger interface {
    TryHold(ctx context.Context, scheduleID uint64, seatIDs []uint64, bookingID string, ttl time.Duration) ([]uint64, error)
    Confirm(ctx context.Context, seatIDs []uint64, bookingID string) error
    Release(ctx context.Context, seatIDs []uint64, bookingID string, expired bool) error
}

// Guard is the idempotency guard protocol.
type Guard interface {
    Begin(ctx context.Context, key string) (idempotency.BeginResult, error)
    Complete(ctx context.Context, key string, snap model.BookingSnapshot) error
    Fail(ctx context.Context, key string) error
}

// Pricer validates promo codes and quotes booking amounts.
type Pricer interface {
    Validate(ctx context.Context, code string) error
    Quote(ctx context.Context, seats []model.Seat, code string) (uint32, error)
}

// Notifier receives fire-and-forget notifications on booking outcomes.
type Notifier interface {
    BookingConfirmed(ctx context.Context, b *model.Booking)
    BookingCancelled(ctx context.Context, b *model.Booking, reason string)
}

const lockStripes = 128

// Orchestrator drives the booking saga.  Safe for concurrent use.
type Orchestrator struct {
    store     Store
    schedules ScheduleStore
    catalog   SeatCatalog
    ledger    SeatLedger
    guard     Guard
    pricer    Pricer
    pub       event.Publisher
    notifier  Notifier
    holdTTL   time.Duration

    locks [lockStripes]sync.Mutex
    now   func() time.Time
}

// New wires an Orchestrator.  notifier may be nil; pub may be a
// NopPublisher when no broker is configured.
func New(store Store, schedules ScheduleStore, catalog SeatCatalog, ledger SeatLedger, guard Guard, pricer Pricer, pub event.Publisher, notifier Notifier, holdTTL time.Duration) *Orchestrator {
    return &Orchestrator{
        store:     store,
        schedules: schedules,
        catalog:   catalog,
        ledger:    ledger,
        guard:     guard,
        pricer:    pricer,
        pub:       pub,
        notifier:  notifier,
        holdTTL:   holdTTL,
        now:       func() time.Time { return time.Now().UTC() },
    }
}

// CreateBookingInput is the creation request after HTTP binding and auth.
type CreateBookingInput struct {
    TripID       uint64
    SeatIDs      []uint64
    PromoCode    string
    IdemKey      string
    UserID       string
    ContactName  string
    ContactEmail string
    ContactPhone string
}

// CreateBooking runs the entry step of the saga.  Replayed requests (same
// idempotency key) return the cached snapshot without holding seats again.
// A seat conflict cancels the draft booking, caches that outcome and
// returns inventory.ErrSeatUnavailable with the conflicting seats recorded
// in the snapshot.
func (o *Orchestrator) CreateBooking(ctx context.Context, in CreateBookingInput) (model.BookingSnapshot, error) {
    begin, err := o.guard.Begin(ctx, in.IdemKey)
    if err != nil {
        return model.BookingSnapshot{}, err
    }
    if !begin.IsNew {
        if len(begin.Snapshot.UnavailableSeatIDs) > 0 {
            return begin.Snapshot, inventory.ErrSeatUnavailable
        }
        return begin.Snapshot, nil
    }

    snap, err := o.createBooking(ctx, in)
    if err != nil && !errors.Is(err, inventory.ErrSeatUnavailable) {
        // No durable outcome: free the key so the client may retry.
        if ferr := o.guard.Fail(ctx, in.IdemKey); ferr != nil {
            log.Printf("orchestrator: release idem key %q: %v", in.IdemKey, ferr)
        }
        return model.BookingSnapshot{}, err
    }
    if cerr := o.guard.Complete(ctx, in.IdemKey, snap); cerr != nil {
        log.Printf("orchestrator: cache idem key %q: %v", in.IdemKey, cerr)
    }
    return snap, err
}

func (o *Orchestrator) createBooking(ctx context.Context, in CreateBookingInput) (model.BookingSnapshot, error) {
    if len(in.SeatIDs) == 0 {
        return model.BookingSnapshot{}, ErrEmptySeatList
    }
    schedule, err := o.schedules.ScheduleByTripID(ctx, in.TripID)
    if err != nil {
        return model.BookingSnapshot{}, fmt.Errorf("resolve trip %d: %w", in.TripID, err)
    }
    if schedule == nil {
        return model.BookingSnapshot{}, fmt.Errorf("trip %d: %w", in.TripID, ErrTripNotFound)
    }

    seatIDs := dedupeSorted(in.SeatIDs)
    seats, err := o.catalog.SeatsByIDs(ctx, seatIDs)
    if err != nil {
        return model.BookingSnapshot{}, fmt.Errorf("load seats: %w", err)
    }
    if len(seats) != len(seatIDs) {
        return model.BookingSnapshot{}, ErrSeatsOutsideSchedule
    }
    for _, s := range seats {
        if s.ScheduleID != schedule.ID {
            return model.BookingSnapshot{}, fmt.Errorf("seat %d: %w", s.ID, ErrSeatsOutsideSchedule)
        }
    }
    // Reject bad promo codes before any seat is held.
    if err := o.pricer.Validate(ctx, in.PromoCode); err != nil {
        return model.BookingSnapshot{}, err
    }

    code, err := o.uniqueCode(ctx)
    if err != nil {
        return model.BookingSnapshot{}, err
    }
    now := o.now()
    b := &model.Booking{
        ID:             uuid.NewString(),
        UserID:         in.UserID,
        ScheduleID:     schedule.ID,
        SeatIDs:        seatIDs,
        Status:         model.BookingDraft,
        BookingCode:    code,
        ContactName:    in.ContactName,
        ContactEmail:   in.ContactEmail,
        ContactPhone:   in.ContactPhone,
        PromoCode:      in.PromoCode,
        IdempotencyKey: in.IdemKey,
        Version:        1,
        CreatedAt:      now,
        UpdatedAt:      now,
    }
    if err := o.store.CreateBooking(ctx, b); err != nil {
        return model.BookingSnapshot{}, fmt.Errorf("create booking: %w", err)
    }
    o.appendHistory(ctx, b.ID, "", model.BookingDraft, "booking created")

    conflicts, err := o.ledger.TryHold(ctx, schedule.ID, seatIDs, b.ID, o.holdTTL)
    if err != nil {
        if errors.Is(err, inventory.ErrSeatUnavailable) {
            if terr := o.transition(ctx, b, model.BookingCancelled, "seat conflict"); terr != nil {
                log.Printf("orchestrator: cancel draft %s: %v", b.ID, terr)
            }
            return model.BookingSnapshot{
                BookingID:          b.ID,
                BookingCode:        b.BookingCode,
                Status:             model.BookingCancelled,
                UnavailableSeatIDs: conflicts,
            }, err
        }
        return model.BookingSnapshot{}, fmt.Errorf("hold seats: %w", err)
    }

    amount, err := o.pricer.Quote(ctx, seats, in.PromoCode)
    if err != nil {
        // Lost the promo to a concurrent redemption; undo the hold.
        if rerr := o.ledger.Release(ctx, seatIDs, b.ID, false); rerr != nil {
            log.Printf("orchestrator: release after quote failure %s: %v", b.ID, rerr)
        }
        if terr := o.transition(ctx, b, model.BookingCancelled, "pricing failed"); terr != nil {
            log.Printf("orchestrator: cancel draft %s: %v", b.ID, terr)
        }
        return model.BookingSnapshot{}, err
    }
    b.AmountCents = amount

    if err := o.transition(ctx, b, model.BookingAwaitingPayment, "seats held"); err != nil {
        return model.BookingSnapshot{}, err
    }
    o.publish(ctx, event.KindBookingCreated, b, "")
    o.requestPayment(ctx, b)

    return model.BookingSnapshot{
        BookingID:   b.ID,
        BookingCode: b.BookingCode,
        Status:      b.Status,
        AmountCents: b.AmountCents,
    }, nil
}

// requestPayment records the INITIATED payment transaction and emits the
// payment-requested event the gateway listens for.
func (o *Orchestrator) requestPayment(ctx context.Context, b *model.Booking) {
    now := o.now()
    txn := &model.PaymentTransaction{
        ID:          uuid.NewString(),
        BookingID:   b.ID,
        AmountCents: b.AmountCents,
        Status:      model.PaymentInitiated,
        CreatedAt:   now,
        UpdatedAt:   now,
    }
    if err := o.store.SavePaymentTxn(ctx, txn); err != nil {
        log.Printf("orchestrator: save payment txn for %s: %v", b.ID, err)
    }
    o.publish(ctx, event.KindPaymentRequested, b, "")
}

// OnPaymentResult applies an inbound payment outcome.  status is one of the
// model.Payment* constants.  The operation is idempotent: a booking no
// longer AWAITING_PAYMENT returns ErrInvalidTransition, which event-driven
// callers log and drop.
func (o *Orchestrator) OnPaymentResult(ctx context.Context, bookingID, status, gatewayTxnID string) error {
    unlock := o.lockBooking(bookingID)
    defer unlock()

    b, err := o.store.BookingByID(ctx, bookingID)
    if err != nil {
        return fmt.Errorf("load booking %s: %w", bookingID, err)
    }
    if b == nil {
        return fmt.Errorf("booking %s: %w", bookingID, ErrBookingNotFound)
    }
    if b.Status != model.BookingAwaitingPayment {
        return fmt.Errorf("payment result for %s in %s: %w", bookingID, b.Status, ErrInvalidTransition)
    }

    switch status {
    case model.PaymentSuccess:
        if err := o.ledger.Confirm(ctx, b.SeatIDs, b.ID); err != nil {
            if errors.Is(err, inventory.ErrSeatNotHeld) {
                return o.settleLostHold(ctx, b, gatewayTxnID)
            }
            return fmt.Errorf("confirm seats: %w", err)
        }
        o.savePaymentResult(ctx, b, model.PaymentSuccess, gatewayTxnID)
        if err := o.transition(ctx, b, model.BookingPaid, "payment succeeded"); err != nil {
            return err
        }
        if err := o.transition(ctx, b, model.BookingConfirmed, "seats confirmed"); err != nil {
            return err
        }
        o.publish(ctx, event.KindBookingConfirmed, b, "")
        o.notifyConfirmed(ctx, b)
        return nil
    case model.PaymentFailed:
        if err := o.ledger.Release(ctx, b.SeatIDs, b.ID, false); err != nil {
            return fmt.Errorf("release seats: %w", err)
        }
        o.savePaymentResult(ctx, b, model.PaymentFailed, gatewayTxnID)
        if err := o.transition(ctx, b, model.BookingCancelled, "payment failed"); err != nil {
            return err
        }
        o.publish(ctx, event.KindBookingCancelled, b, "payment failed")
        o.notifyCancelled(ctx, b, "payment failed")
        return nil
    default:
        return fmt.Errorf("payment status %q: %w", status, ErrInvalidTransition)
    }
}

// settleLostHold handles a payment success whose seats were reclaimed
// before it landed: the sweep released them or a new hold took them over,
// so they may already belong to someone else.  The charge is refunded and
// the booking cancelled instead of confirming a booking with no seats.
// Caller holds the booking lock.
func (o *Orchestrator) settleLostHold(ctx context.Context, b *model.Booking, gatewayTxnID string) error {
    // Mop up any seats this booking still owns; Release skips the rest.
    if err := o.ledger.Release(ctx, b.SeatIDs, b.ID, true); err != nil {
        return fmt.Errorf("release seats: %w", err)
    }
    o.savePaymentResult(ctx, b, model.PaymentRefunded, gatewayTxnID)
    if err := o.transition(ctx, b, model.BookingCancelled, "hold lost before payment"); err != nil {
        return err
    }
    o.publish(ctx, event.KindBookingCancelled, b, "hold lost before payment")
    o.notifyCancelled(ctx, b, "hold lost before payment")
    return nil
}

// StaleBookingIDs lists bookings still AWAITING_PAYMENT whose hold window
// lapsed before now.  The reaper calls it after the seat sweep: a booking
// whose lapsed seats were taken over by a newer hold never shows up in the
// sweep's cascade, and this scan is what still gets it expired.
func (o *Orchestrator) StaleBookingIDs(ctx context.Context, now time.Time) ([]string, error) {
    return o.store.StaleBookingIDs(ctx, now.Add(-o.holdTTL))
}

// Expire cancels a booking whose hold lapsed.  Invoked by the reaper, via
// the sweep cascade or the stale scan; Release here mops up any seats the
// sweep missed and skips seats that moved on to another booking.
// Rechecking the status under the lock means a payment success that landed
// first wins and this call becomes a no-op.
func (o *Orchestrator) Expire(ctx context.Context, bookingID string) error {
    unlock := o.lockBooking(bookingID)
    defer unlock()

    b, err := o.store.BookingByID(ctx, bookingID)
    if err != nil {
        return fmt.Errorf("load booking %s: %w", bookingID, err)
    }
    if b == nil {
        return fmt.Errorf("booking %s: %w", bookingID, ErrBookingNotFound)
    }
    if b.Status != model.BookingAwaitingPayment {
        return nil // lost the race, nothing to do
    }
    if o.now().Before(b.CreatedAt.Add(o.holdTTL)) {
        return nil // hold has not actually lapsed
    }
    if err := o.ledger.Release(ctx, b.SeatIDs, b.ID, true); err != nil {
        return fmt.Errorf("release seats: %w", err)
    }
    if err := o.transition(ctx, b, model.BookingCancelled, "hold expired"); err != nil {
        return err
    }
    o.publish(ctx, event.KindBookingCancelled, b, "hold expired")
    o.notifyCancelled(ctx, b, "hold expired")
    return nil
}

// Cancel applies an explicit cancellation request.  Valid from any
// non-terminal state; held or confirmed seats return to AVAILABLE.
func (o *Orchestrator) Cancel(ctx context.Context, bookingID string) error {
    unlock := o.lockBooking(bookingID)
    defer unlock()

    b, err := o.store.BookingByID(ctx, bookingID)
    if err != nil {
        return fmt.Errorf("load booking %s: %w", bookingID, err)
    }
    if b == nil {
        return fmt.Errorf("booking %s: %w", bookingID, ErrBookingNotFound)
    }
    if b.Terminal() {
        return fmt.Errorf("cancel %s in %s: %w", bookingID, b.Status, ErrInvalidTransition)
    }
    if err := o.ledger.Release(ctx, b.SeatIDs, b.ID, false); err != nil {
        return fmt.Errorf("release seats: %w", err)
    }
    if err := o.transition(ctx, b, model.BookingCancelled, "cancelled by user"); err != nil {
        return err
    }
    o.publish(ctx, event.KindBookingCancelled, b, "cancelled by user")
    o.notifyCancelled(ctx, b, "cancelled by user")
    return nil
}

// CheckIn moves a paid booking to CHECKED_IN when the passenger boards.
func (o *Orchestrator) CheckIn(ctx context.Context, bookingID string) error {
    return o.step(ctx, bookingID, "check-in", func(b *model.Booking) bool {
        return b.Status == model.BookingPaid || b.Status == model.BookingConfirmed
    }, model.BookingCheckedIn)
}

// Complete marks a checked-in booking COMPLETED once the trip finishes.
func (o *Orchestrator) Complete(ctx context.Context, bookingID string) error {
    return o.step(ctx, bookingID, "trip completed", func(b *model.Booking) bool {
        return b.Status == model.BookingCheckedIn
    }, model.BookingCompleted)
}

// Refund compensates a paid booking: seats go back on sale, the payment
// transaction is marked REFUNDED and the booking ends in REFUNDED.
func (o *Orchestrator) Refund(ctx context.Context, bookingID string) error {
    unlock := o.lockBooking(bookingID)
    defer unlock()

    b, err := o.store.BookingByID(ctx, bookingID)
    if err != nil {
        return fmt.Errorf("load booking %s: %w", bookingID, err)
    }
    if b == nil {
        return fmt.Errorf("booking %s: %w", bookingID, ErrBookingNotFound)
    }
    switch b.Status {
    case model.BookingPaid, model.BookingConfirmed, model.BookingCompleted:
    default:
        return fmt.Errorf("refund %s in %s: %w", bookingID, b.Status, ErrInvalidTransition)
    }
    if err := o.ledger.Release(ctx, b.SeatIDs, b.ID, false); err != nil {
        return fmt.Errorf("release seats: %w", err)
    }
    o.savePaymentResult(ctx, b, model.PaymentRefunded, "")
    if err := o.transition(ctx, b, model.BookingRefunded, "refunded"); err != nil {
        return err
    }
    o.publish(ctx, event.KindBookingCancelled, b, "refunded")
    o.notifyCancelled(ctx, b, "refunded")
    return nil
}

// Get returns a booking by id.
func (o *Orchestrator) Get(ctx context.Context, bookingID string) (*model.Booking, error) {
    b, err := o.store.BookingByID(ctx, bookingID)
    if err != nil {
        return nil, fmt.Errorf("load booking %s: %w", bookingID, err)
    }
    if b == nil {
        return nil, fmt.Errorf("booking %s: %w", bookingID, ErrBookingNotFound)
    }
    return b, nil
}

// GetByCode returns a booking by its customer-facing code.
func (o *Orchestrator) GetByCode(ctx context.Context, code string) (*model.Booking, error) {
    b, err := o.store.BookingByCode(ctx, code)
    if err != nil {
        return nil, fmt.Errorf("load booking %s: %w", code, err)
    }
    if b == nil {
        return nil, fmt.Errorf("booking %s: %w", code, ErrBookingNotFound)
    }
    return b, nil
}

// step is the shared shape of the simple forward transitions.
func (o *Orchestrator) step(ctx context.Context, bookingID, reason string, ok func(*model.Booking) bool, to string) error {
    unlock := o.lockBooking(bookingID)
    defer unlock()

    b, err := o.store.BookingByID(ctx, bookingID)
    if err != nil {
        return fmt.Errorf("load booking %s: %w", bookingID, err)
    }
    if b == nil {
        return fmt.Errorf("booking %s: %w", bookingID, ErrBookingNotFound)
    }
    if !ok(b) {
        return fmt.Errorf("%s for %s in %s: %w", reason, bookingID, b.Status, ErrInvalidTransition)
    }
    return o.transition(ctx, b, to, reason)
}

// transition persists a status change, bumping the version and appending
// the audit row.  Caller holds the booking lock.
func (o *Orchestrator) transition(ctx context.Context, b *model.Booking, to, reason string) error {
    from := b.Status
    b.Status = to
    b.Version++
    b.UpdatedAt = o.now()
    if err := o.store.UpdateBooking(ctx, b); err != nil {
        b.Status = from
        b.Version--
        return fmt.Errorf("update booking %s: %w", b.ID, err)
    }
    o.appendHistory(ctx, b.ID, from, to, reason)
    return nil
}

func (o *Orchestrator) uniqueCode(ctx context.Context) (string, error) {
    for attempt := 0; attempt < 5; attempt++ {
        code, err := newBookingCode()
        if err != nil {
            return "", fmt.Errorf("generate booking code: %w", err)
        }
        taken, err := o.store.BookingCodeExists(ctx, code)
        if err != nil {
            return "", fmt.Errorf("check booking code: %w", err)
        }
        if !taken {
            return code, nil
        }
    }
    return "", fmt.Errorf("generate booking code: exhausted attempts")
}

func (o *Orchestrator) savePaymentResult(ctx context.Context, b *model.Booking, status, gatewayTxnID string) {
    txn := &model.PaymentTransaction{
        ID:           uuid.NewString(),
        BookingID:    b.ID,
        AmountCents:  b.AmountCents,
        Status:       status,
        GatewayTxnID: gatewayTxnID,
        CreatedAt:    o.now(),
        UpdatedAt:    o.now(),
    }
    if err := o.store.SavePaymentTxn(ctx, txn); err != nil {
        log.Printf("orchestrator: save payment txn for %s: %v", b.ID, err)
    }
}

func (o *Orchestrator) appendHistory(ctx context.Context, bookingID, from, to, reason string) {
    h := model.BookingHistory{
        BookingID:  bookingID,
        FromStatus: from,
        ToStatus:   to,
        Reason:     reason,
        CreatedAt:  o.now(),
    }
    if err := o.store.AppendHistory(ctx, h); err != nil {
        log.Printf("orchestrator: append history for %s: %v", bookingID, err)
    }
}

func (o *Orchestrator) publish(ctx context.Context, kind string, b *model.Booking, reason string) {
    env := event.Envelope{
        Kind:        kind,
        BookingID:   b.ID,
        ScheduleID:  b.ScheduleID,
        SeatIDs:     b.SeatIDs,
        Version:     b.Version,
        AmountCents: b.AmountCents,
        Reason:      reason,
        OccurredAt:  o.now(),
    }
    if err := o.pub.Publish(ctx, env); err != nil {
        log.Printf("orchestrator: publish %s for %s: %v", kind, b.ID, err)
    }
}

func (o *Orchestrator) notifyConfirmed(ctx context.Context, b *model.Booking) {
    if o.notifier == nil {
        return
    }
    c := *b
    go o.notifier.BookingConfirmed(context.WithoutCancel(ctx), &c)
}

func (o *Orchestrator) notifyCancelled(ctx context.Context, b *model.Booking, reason string) {
    if o.notifier == nil {
        return
    }
    c := *b
    go o.notifier.BookingCancelled(context.WithoutCancel(ctx), &c, reason)
}

// lockBooking serializes transitions per booking id.
func (o *Orchestrator) lockBooking(bookingID string) func() {
    h := fnv.New32a()
    _, _ = h.Write([]byte(bookingID))
    idx := h.Sum32() % lockStripes
    o.locks[idx].Lock()
    return o.locks[idx].Unlock
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
