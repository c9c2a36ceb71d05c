package model

import "errors"

// Shared booking sentinels.  They live here rather than in the booking
// package because both the saga and the inbound event layer match on them
// with errors.Is.

// ErrBookingNotFound is returned when a booking id resolves to nothing.
var ErrBookingNotFound = errors.New("booking not found")

// ErrInvalidTransition is returned when an operation arrives for a booking
// that is not in a state the operation applies to.  Event-driven callers
// treat it as settled: under at-least-once delivery it usually means the
// work already happened.
var ErrInvalidTransition = errors.New("invalid booking transition")

// ErrSeatNotHeld is returned when a seat confirmation finds the hold gone:
// the seat is back on sale or belongs to another booking.  Redelivering the
// triggering event cannot change that, so event-driven callers settle it.
var ErrSeatNotHeld = errors.New("seat not held by booking")
