package model

import "time"

// Seat statuses.  A seat transitions AVAILABLE -> BOOKED when a hold is
// taken, back to AVAILABLE when the hold is released or confirmed away,
// and passes through EXPIRED on the reaper path.  CANCELLED marks seats
// withdrawn from sale by the operator.
const (
    SeatAvailable = "AVAILABLE"
    SeatBooked    = "BOOKED"
    SeatCancelled = "CANCELLED"
    SeatExpired   = "EXPIRED"
)

// Seat represents one sellable seat on a schedule.  Seat state is owned
// exclusively by the inventory engine; nothing else mutates Status,
// ReservedUntil or HeldBy.
//
// Fields:
//  ID            – primary key identifier.
//  ScheduleID    – schedule this seat belongs to.
//  SeatNo        – seat label unique within the schedule (e.g. "A1").
//  SeatType      – seat class (STANDARD, VIP, SLEEPER).
//  PriceCents    – price in cents for this seat.
//  Status        – availability status (see constants above).
//  ReservedUntil – hold expiry; set only while a hold is pending payment.
//  HeldBy        – booking id owning the current hold, empty otherwise.
type Seat struct {
    ID            uint64     // seats.id
    ScheduleID    uint64     // seats.schedule_id
    SeatNo        string     // seats.seat_no
    SeatType      string     // seats.seat_type
    PriceCents    uint32     // seats.price_cents
    Status        string     // seats.status
    ReservedUntil *time.Time // seats.reserved_until (nullable)
    HeldBy        string     // seats.held_by (empty when not held)
    CreatedAt     time.Time  // seats.created_at
    UpdatedAt     time.Time  // seats.updated_at
}

// HoldExpired reports whether the seat carries a hold that has lapsed at
// the given instant.  Seats without a hold never report as expired.
func (s *Seat) HoldExpired(now time.Time) bool {
    return s.Status == SeatBooked && s.ReservedUntil != nil && s.ReservedUntil.Before(now)
}
