package model

import "time"

// Transaction status values mirroring the gateway attempt lifecycle.
const (
	TxInitiated = "INITIATED" // order created, awaiting outcome
	TxSuccess   = "SUCCESS"   // payment captured and verified
	TxFailed    = "FAILED"    // payment rejected, invalid or late
	TxPending   = "PENDING"   // gateway reported an in-between state
)

// Transaction is one append-only row per gateway attempt or outcome,
// linked to a booking.  Rows are never mutated after insert; they exist
// for audit and reconciliation, carrying the raw gateway response.
//
// Fields:
//  ID              – primary key identifier.
//  BookingID       – booking this attempt belongs to.
//  TransactionID   – gateway payment/transaction identifier (unique).
//  AmountCents     – amount of the attempt in cents.
//  Status          – one of the Tx* constants.
//  Gateway         – gateway name (e.g. RAZORPAY, MOCK).
//  GatewayResponse – raw gateway payload as JSON for audit.
//  CreatedAt       – insertion timestamp.
type Transaction struct {
	ID              uint64    // transactions.id
	BookingID       uint64    // transactions.booking_id
	TransactionID   string    // transactions.transaction_id
	AmountCents     int64     // transactions.amount_cents
	Status          string    // transactions.status
	Gateway         string    // transactions.gateway
	GatewayResponse []byte    // transactions.gateway_response (JSON)
	CreatedAt       time.Time // transactions.created_at
}
