package model

import "time"

// Schedule is one departure of a trip: a vehicle leaving an origin for a
// destination at a fixed time, with a fixed seat map.  The number of
// available seats is always derived by counting AVAILABLE seat rows –
// the column is never stored, so it cannot drift from the seat ledger.
//
// Fields:
//  ID          – primary key identifier.
//  TripID      – trip (route + operator pairing) this departure serves.
//  Origin      – departure station name.
//  Destination – arrival station name.
//  DepartsAt   – scheduled departure time (UTC).
//  SeatCount   – total seats in the vehicle layout.
type Schedule struct {
    ID          uint64    // schedules.id
    TripID      uint64    // schedules.trip_id
    Origin      string    // schedules.origin
    Destination string    // schedules.destination
    DepartsAt   time.Time // schedules.departs_at
    SeatCount   int       // schedules.seat_count
    CreatedAt   time.Time // schedules.created_at
}
