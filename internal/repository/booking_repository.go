package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/ridehub/bus-booking/internal/model"
)

// BookingRepo provides data access to the bookings, booking_seats,
// booking_history and payment_transactions tables.  Booking rows are never
// deleted; terminal states are retained for audit.
type BookingRepo struct {
    db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the provided database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, user_id, schedule_id, status, booking_code, contact_name, contact_email, contact_phone, amount_cents, promo_code, idempotency_key, version, created_at, updated_at`

// CreateBooking inserts the booking and its seat rows in one transaction.
func (r *BookingRepo) CreateBooking(ctx context.Context, b *model.Booking) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return fmt.Errorf("begin tx: %w", err)
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    _, err = tx.ExecContext(ctx,
        `INSERT INTO bookings (`+bookingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
        b.ID, b.UserID, b.ScheduleID, b.Status, b.BookingCode, b.ContactName, b.ContactEmail,
        b.ContactPhone, b.AmountCents, b.PromoCode, b.IdempotencyKey, b.Version,
        b.CreatedAt.UTC(), b.UpdatedAt.UTC(),
    )
    if err != nil {
        return fmt.Errorf("insert booking: %w", err)
    }
    if len(b.SeatIDs) > 0 {
        q := `INSERT INTO booking_seats (booking_id, seat_id) VALUES ` +
            strings.TrimSuffix(strings.Repeat("(?, ?),", len(b.SeatIDs)), ",")
        args := make([]interface{}, 0, len(b.SeatIDs)*2)
        for _, sid := range b.SeatIDs {
            args = append(args, b.ID, sid)
        }
        if _, err := tx.ExecContext(ctx, q, args...); err != nil {
            return fmt.Errorf("insert booking seats: %w", err)
        }
    }
    if err := tx.Commit(); err != nil {
        return fmt.Errorf("commit: %w", err)
    }
    committed = true
    return nil
}

// UpdateBooking persists status, amount, version and updated_at.
func (r *BookingRepo) UpdateBooking(ctx context.Context, b *model.Booking) error {
    _, err := r.db.ExecContext(ctx,
        `UPDATE bookings SET status = ?, amount_cents = ?, version = ?, updated_at = ? WHERE id = ?`,
        b.Status, b.AmountCents, b.Version, b.UpdatedAt.UTC(), b.ID,
    )
    return err
}

// BookingByID loads one booking with its seat ids.  Returns nil when the
// booking does not exist.
func (r *BookingRepo) BookingByID(ctx context.Context, id string) (*model.Booking, error) {
    return r.bookingBy(ctx, `id = ?`, id)
}

// BookingByCode loads one booking by its customer-facing code.  Returns nil
// when the code is unknown.
func (r *BookingRepo) BookingByCode(ctx context.Context, code string) (*model.Booking, error) {
    return r.bookingBy(ctx, `booking_code = ?`, code)
}

// BookingCodeExists reports whether a booking code is already taken.
func (r *BookingRepo) BookingCodeExists(ctx context.Context, code string) (bool, error) {
    var one int
    err := r.db.QueryRowContext(ctx, `SELECT 1 FROM bookings WHERE booking_code = ?`, code).Scan(&one)
    if errors.Is(err, sql.ErrNoRows) {
        return false, nil
    }
    if err != nil {
        return false, err
    }
    return true, nil
}

// AppendHistory writes one audit row.
func (r *BookingRepo) AppendHistory(ctx context.Context, h model.BookingHistory) error {
    _, err := r.db.ExecContext(ctx,
        `INSERT INTO booking_history (booking_id, from_status, to_status, reason, created_at) VALUES (?, ?, ?, ?, ?)`,
        h.BookingID, h.FromStatus, h.ToStatus, h.Reason, h.CreatedAt.UTC(),
    )
    return err
}

// SavePaymentTxn upserts the payment transaction attached to a booking.
// At most one row exists per booking; later results overwrite the earlier
// INITIATED record.
func (r *BookingRepo) SavePaymentTxn(ctx context.Context, txn *model.PaymentTransaction) error {
    _, err := r.db.ExecContext(ctx,
        `INSERT INTO payment_transactions (id, booking_id, amount_cents, status, gateway_txn_id, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON DUPLICATE KEY UPDATE status = VALUES(status), gateway_txn_id = VALUES(gateway_txn_id), updated_at = VALUES(updated_at)`,
        txn.ID, txn.BookingID, txn.AmountCents, txn.Status, txn.GatewayTxnID,
        txn.CreatedAt.UTC(), txn.UpdatedAt.UTC(),
    )
    return err
}

// StaleBookingIDs lists bookings still AWAITING_PAYMENT created before the
// cutoff.  The reaper uses it to catch bookings whose lapsed seats were
// taken over by a newer hold and therefore never surface in a seat sweep.
func (r *BookingRepo) StaleBookingIDs(ctx context.Context, cutoff time.Time) ([]string, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT id FROM bookings WHERE status = ? AND created_at < ?`,
        model.BookingAwaitingPayment, cutoff.UTC(),
    )
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var ids []string
    for rows.Next() {
        var id string
        if err := rows.Scan(&id); err != nil {
            return nil, err
        }
        ids = append(ids, id)
    }
    return ids, rows.Err()
}

func (r *BookingRepo) bookingBy(ctx context.Context, where string, arg interface{}) (*model.Booking, error) {
    var b model.Booking
    err := r.db.QueryRowContext(ctx,
        `SELECT `+bookingColumns+` FROM bookings WHERE `+where, arg,
    ).Scan(&b.ID, &b.UserID, &b.ScheduleID, &b.Status, &b.BookingCode, &b.ContactName,
        &b.ContactEmail, &b.ContactPhone, &b.AmountCents, &b.PromoCode, &b.IdempotencyKey,
        &b.Version, &b.CreatedAt, &b.UpdatedAt)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, nil
    }
    if err != nil {
        return nil, err
    }
    rows, err := r.db.QueryContext(ctx,
        `SELECT seat_id FROM booking_seats WHERE booking_id = ? ORDER BY seat_id`, b.ID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    for rows.Next() {
        var sid uint64
        if err := rows.Scan(&sid); err != nil {
            return nil, err
        }
        b.SeatIDs = append(b.SeatIDs, sid)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return &b, nil
}
