package model

import "time"

// Booking status values.  PENDING is the only non-terminal state; every
// other status is final and no transition ever leaves it.
const (
	BookingPending   = "PENDING"   // created, awaiting payment within the expires_at window
	BookingConfirmed = "CONFIRMED" // payment verified in time, seats permanently taken
	BookingCancelled = "CANCELLED" // explicitly cancelled by the user while PENDING
	BookingExpired   = "EXPIRED"   // deadline passed without payment, reclaimed by the reaper
	BookingFailed    = "FAILED"    // payment failed, arrived late, or seats were lost to a rival
)

// Booking is the durable record of a seat-purchase attempt and its
// outcome.  It owns the seat set, the frozen price snapshot and the
// payment linkage.  Seat locks and reservations are ephemeral; once a
// booking is CONFIRMED its seats are excluded from availability purely
// through this record, independent of any lock TTL.
//
// Fields:
//  ID                   – primary key identifier.
//  BookingNumber        – unique human-displayable number (BOOK-YYYYMMDD-NNNNN).
//  UserID               – user who made the booking.
//  ShowtimeID           – showtime being booked.
//  Seats                – ordered seat identifiers (stored as JSON).
//  TotalSeats           – seat count; always equals len(Seats).
//  BasePriceCents       – seat price sum before fees, in cents.
//  ConvenienceFeeCents  – flat booking fee in cents.
//  TaxCents             – tax on (base + fee), computed once at creation.
//  TotalCents           – base + fee + tax, frozen at creation.
//  Status               – one of the Booking* status constants.
//  PaymentMethod        – gateway name once a payment is linked.
//  PaymentID            – gateway payment identifier.
//  OrderID              – gateway order identifier (unique, nullable).
//  PaymentInitiatedAt   – when the gateway order was created.
//  PaymentReceivedAt    – when a payment actually arrived; write-once.
//  ConfirmationNotified – latch: confirmation notification already sent.
//  FailureNotified      – latch: failure notification already sent.
//  RefundNotified       – latch: late-payment refund notification already sent.
//  CreatedAt            – creation timestamp.
//  ConfirmedAt          – when the booking reached CONFIRMED.
//  ExpiresAt            – payment deadline; set once while PENDING, never changed.
type Booking struct {
	ID                   uint64     // bookings.id
	BookingNumber        string     // bookings.booking_number
	UserID               uint64     // bookings.user_id
	ShowtimeID           uint64     // bookings.showtime_id
	Seats                []string   // bookings.seats (JSON array)
	TotalSeats           int        // bookings.total_seats
	BasePriceCents       int64      // bookings.base_price_cents
	ConvenienceFeeCents  int64      // bookings.convenience_fee_cents
	TaxCents             int64      // bookings.tax_cents
	TotalCents           int64      // bookings.total_cents
	Status               string     // bookings.status
	PaymentMethod        string     // bookings.payment_method
	PaymentID            string     // bookings.payment_id
	OrderID              *string    // bookings.order_id (nullable, unique)
	PaymentInitiatedAt   *time.Time // bookings.payment_initiated_at (nullable)
	PaymentReceivedAt    *time.Time // bookings.payment_received_at (nullable, write-once)
	ConfirmationNotified bool       // bookings.confirmation_notified
	FailureNotified      bool       // bookings.failure_notified
	RefundNotified       bool       // bookings.refund_notified
	CreatedAt            time.Time  // bookings.created_at
	ConfirmedAt          *time.Time // bookings.confirmed_at (nullable)
	ExpiresAt            time.Time  // bookings.expires_at
}

// IsTerminal reports whether the booking status admits no further
// transitions.  Everything except PENDING is terminal.
func (b *Booking) IsTerminal() bool {
	return b.Status != BookingPending
}

// IsExpired reports whether a PENDING booking has outlived its payment
// window at the supplied instant.  Terminal bookings are never expired;
// they already reached their outcome.
func (b *Booking) IsExpired(now time.Time) bool {
	return b.Status == BookingPending && now.After(b.ExpiresAt)
}
