// Package event carries booking domain events between the orchestrator and
// the message broker: outbound lifecycle events published to a durable queue
// per kind, and inbound payment results dispatched back into the
// orchestrator.
package event

import "time"

// Event kinds.  Each outbound kind maps to a durable queue of the same name.
const (
    KindBookingCreated   = "booking.created"
    KindPaymentRequested = "booking.payment.requested"
    KindBookingCancelled = "booking.cancelled"
    KindBookingConfirmed = "booking.confirmed"

    KindPaymentCompleted = "payment.completed"
    KindPaymentFailed    = "payment.failed"
)

// Envelope is the wire format shared by all booking events.  Version is the
// booking's monotonic transition counter at publish time; consumers use it
// to detect and discard stale or duplicate deliveries under at-least-once
// semantics.
type Envelope struct {
    Kind         string    `json:"kind"`
    BookingID    string    `json:"booking_id"`
    ScheduleID   uint64    `json:"schedule_id"`
    SeatIDs      []uint64  `json:"seat_ids"`
    Version      uint64    `json:"version"`
    AmountCents  uint32    `json:"amount_cents,omitempty"`
    Reason       string    `json:"reason,omitempty"`
    GatewayTxnID string    `json:"gateway_txn_id,omitempty"`
    OccurredAt   time.Time `json:"occurred_at"`
}
