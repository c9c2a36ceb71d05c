package model

import "time"

// BookingSnapshot is the immutable result of a booking-creation attempt,
// cached against the client's idempotency key.  Replayed requests receive
// this snapshot instead of re-running seat holds and events.  A rejected
// attempt is cached too: Status is CANCELLED and UnavailableSeatIDs lists
// the conflicting seats, so a retried duplicate does not grab seats the
// first attempt was denied.
type BookingSnapshot struct {
    BookingID          string   `json:"booking_id"`
    BookingCode        string   `json:"booking_code"`
    Status             string   `json:"status"`
    AmountCents        uint32   `json:"amount_cents"`
    UnavailableSeatIDs []uint64 `json:"unavailable_seat_ids,omitempty"`
}

// IdempotencyRecord maps a client key to the outcome of the request that
// first carried it.  While InFlight is true the original request is still
// executing and duplicates must back off.  Records expire after the
// retention window and are garbage-collected by the store.
type IdempotencyRecord struct {
    Key       string          // idempotency key supplied by the client
    InFlight  bool            // true until Complete or Fail is called
    Snapshot  BookingSnapshot // final result, zero value while in flight
    ExpiresAt time.Time       // eviction deadline for the record
}
