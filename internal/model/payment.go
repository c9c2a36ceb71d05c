package model

import "time"

// Payment statuses reported by the external gateway.
const (
    PaymentInitiated  = "INITIATED"
    PaymentProcessing = "PROCESSING"
    PaymentSuccess    = "SUCCESS"
    PaymentFailed     = "FAILED"
    PaymentRefunded   = "REFUNDED"
)

// PaymentTransaction records the payment lifecycle attached to a booking.
// The record is owned by the external payment gateway; the booking
// orchestrator only reads it and reacts to status changes delivered as
// events.  At most one transaction exists per booking.
type PaymentTransaction struct {
    ID           string    // payment_transactions.id (uuid)
    BookingID    string    // payment_transactions.booking_id
    AmountCents  uint32    // payment_transactions.amount_cents
    Status       string    // payment_transactions.status
    GatewayTxnID string    // payment_transactions.gateway_txn_id
    CreatedAt    time.Time // payment_transactions.created_at
    UpdatedAt    time.Time // payment_transactions.updated_at
}
