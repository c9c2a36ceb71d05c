package repository

import (
    "context"
    "database/sql"
    "fmt"
    "strings"
    "time"

    "github.com/ridehub/bus-booking/internal/model"
)

// SeatRepo provides data access to the seats table.  All writes to seat
// state flow through the inventory engine, which serializes them; this
// layer is plain reads and single-row updates.  Timestamps are UTC.
type SeatRepo struct {
    db *sql.DB
}

// NewSeatRepo returns a new SeatRepo bound to the provided database.
func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

const seatColumns = `id, schedule_id, seat_no, seat_type, price_cents, status, reserved_until, held_by, created_at, updated_at`

// SeatsByIDs loads the listed seats.  Unknown ids are absent from the
// result; callers compare lengths when they need to detect them.
func (r *SeatRepo) SeatsByIDs(ctx context.Context, seatIDs []uint64) ([]model.Seat, error) {
    if len(seatIDs) == 0 {
        return []model.Seat{}, nil
    }
    placeholders := strings.TrimSuffix(strings.Repeat("?,", len(seatIDs)), ",")
    args := make([]interface{}, 0, len(seatIDs))
    for _, id := range seatIDs {
        args = append(args, id)
    }
    q := fmt.Sprintf(`SELECT %s FROM seats WHERE id IN (%s)`, seatColumns, placeholders)
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    return scanSeats(rows)
}

// SaveSeatState persists status, hold expiry and hold owner for one seat.
func (r *SeatRepo) SaveSeatState(ctx context.Context, seatID uint64, status string, reservedUntil *time.Time, heldBy string) error {
    var until interface{}
    if reservedUntil != nil {
        until = reservedUntil.UTC().Format("2006-01-02 15:04:05")
    }
    _, err := r.db.ExecContext(ctx,
        `UPDATE seats SET status = ?, reserved_until = ?, held_by = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`,
        status, until, heldBy, seatID,
    )
    return err
}

// ExpiredHolds returns all seats whose hold lapsed before now.
func (r *SeatRepo) ExpiredHolds(ctx context.Context, now time.Time) ([]model.Seat, error) {
    q := fmt.Sprintf(`SELECT %s FROM seats WHERE status = ? AND reserved_until IS NOT NULL AND reserved_until < ?`, seatColumns)
    rows, err := r.db.QueryContext(ctx, q, model.SeatBooked, now.UTC().Format("2006-01-02 15:04:05"))
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    return scanSeats(rows)
}

// CountByStatus counts seats of a schedule in the given status.  Used to
// derive the available-seat figure; it is never stored.
func (r *SeatRepo) CountByStatus(ctx context.Context, scheduleID uint64, status string) (int, error) {
    var n int
    err := r.db.QueryRowContext(ctx,
        `SELECT COUNT(*) FROM seats WHERE schedule_id = ? AND status = ?`,
        scheduleID, status,
    ).Scan(&n)
    return n, err
}

func scanSeats(rows *sql.Rows) ([]model.Seat, error) {
    var seats []model.Seat
    for rows.Next() {
        var s model.Seat
        var until sql.NullTime
        var heldBy sql.NullString
        if err := rows.Scan(&s.ID, &s.ScheduleID, &s.SeatNo, &s.SeatType, &s.PriceCents, &s.Status, &until, &heldBy, &s.CreatedAt, &s.UpdatedAt); err != nil {
            return nil, err
        }
        if until.Valid {
            t := until.Time
            s.ReservedUntil = &t
        }
        if heldBy.Valid {
            s.HeldBy = heldBy.String
        }
        seats = append(seats, s)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return seats, nil
}
