package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/ridehub/bus-booking/internal/model"
)

// ScheduleRepo provides read access to the schedules table.  Schedules are
// owned by the route service; this service only resolves trips and reads
// seat maps.
type ScheduleRepo struct {
    db *sql.DB
}

// NewScheduleRepo returns a new ScheduleRepo bound to the provided database.
func NewScheduleRepo(db *sql.DB) *ScheduleRepo { return &ScheduleRepo{db: db} }

// ScheduleByTripID resolves a trip to its schedule.  Returns nil when the
// trip has no schedule.
func (r *ScheduleRepo) ScheduleByTripID(ctx context.Context, tripID uint64) (*model.Schedule, error) {
    var s model.Schedule
    err := r.db.QueryRowContext(ctx,
        `SELECT id, trip_id, origin, destination, departs_at, seat_count, created_at
         FROM schedules WHERE trip_id = ?`, tripID,
    ).Scan(&s.ID, &s.TripID, &s.Origin, &s.Destination, &s.DepartsAt, &s.SeatCount, &s.CreatedAt)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, nil
    }
    if err != nil {
        return nil, err
    }
    return &s, nil
}
