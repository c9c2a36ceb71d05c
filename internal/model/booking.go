package model

import "time"

// Booking statuses.  DRAFT is the entry state; COMPLETED, CANCELLED and
// REFUNDED are terminal.  Divergent spellings that existed across the old
// service copies (PENDING_PAYMENT vs AWAITING_PAYMENT) are reconciled here
// into a single canonical set.
const (
    BookingDraft           = "DRAFT"
    BookingAwaitingPayment = "AWAITING_PAYMENT"
    BookingPaid            = "PAID"
    BookingConfirmed       = "CONFIRMED"
    BookingCheckedIn       = "CHECKED_IN"
    BookingCompleted       = "COMPLETED"
    BookingCancelled       = "CANCELLED"
    BookingRefunded        = "REFUNDED"
)

// Booking aggregates the seats a customer reserved on one schedule under a
// single saga.  Bookings are never deleted; terminal rows are retained for
// audit.  Version increases by one on every status transition so event
// consumers can discard stale or duplicate deliveries.
//
// Fields:
//  ID             – uuid primary key.
//  UserID         – customer who created the booking (JWT subject).
//  ScheduleID     – schedule being booked.
//  SeatIDs        – seats reserved, always kept sorted ascending.
//  Status         – saga state (see constants above).
//  BookingCode    – customer-facing reference, unique base32 token.
//  ContactName    – passenger contact name.
//  ContactEmail   – passenger contact email.
//  ContactPhone   – passenger contact phone.
//  AmountCents    – total charge after promo adjustment.
//  PromoCode      – promo code applied at creation, empty when none.
//  IdempotencyKey – client-supplied dedupe key from booking creation.
//  Version        – monotonic transition counter, starts at 1 on creation.
type Booking struct {
    ID             string    // bookings.id (uuid)
    UserID         string    // bookings.user_id
    ScheduleID     uint64    // bookings.schedule_id
    SeatIDs        []uint64  // booking_seats rows, sorted
    Status         string    // bookings.status
    BookingCode    string    // bookings.booking_code (unique)
    ContactName    string    // bookings.contact_name
    ContactEmail   string    // bookings.contact_email
    ContactPhone   string    // bookings.contact_phone
    AmountCents    uint32    // bookings.amount_cents
    PromoCode      string    // bookings.promo_code (empty when none)
    IdempotencyKey string    // bookings.idempotency_key
    Version        uint64    // bookings.version
    CreatedAt      time.Time // bookings.created_at
    UpdatedAt      time.Time // bookings.updated_at
}

// Terminal reports whether the booking has reached a state that no event,
// timer or user action may move it out of.
func (b *Booking) Terminal() bool {
    switch b.Status {
    case BookingCompleted, BookingCancelled, BookingRefunded:
        return true
    }
    return false
}

// BookingHistory is one row of the booking audit trail.  A row is appended
// for every status transition, including the ones triggered by the reaper
// and by inbound payment events.
type BookingHistory struct {
    ID         uint64    // booking_history.id
    BookingID  string    // booking_history.booking_id
    FromStatus string    // booking_history.from_status ("" for creation)
    ToStatus   string    // booking_history.to_status
    Reason     string    // booking_history.reason (e.g. "payment failed")
    CreatedAt  time.Time // booking_history.created_at
}
