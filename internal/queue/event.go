// Package queue defines message payloads exchanged over the message broker
// and the publisher/consumer plumbing around them.
package queue

// Queue names.  One durable queue per event kind; the routing key equals
// the queue name on the default exchange.
const (
	QueueBookingConfirmed = "booking.confirmed"
	QueuePaymentFailed    = "booking.payment_failed"
	QueueRefundDue        = "booking.refund_due"
)

// BookingConfirmedEvent is published when a booking reaches CONFIRMED.
// It contains enough information for downstream consumers to log, notify,
// or trigger analytics without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID     uint64   `json:"booking_id"`
	BookingNumber string   `json:"booking_number"`
	UserID        uint64   `json:"user_id"`
	ShowtimeID    uint64   `json:"showtime_id"`
	Seats         []string `json:"seats"`
	TotalCents    int64    `json:"total_cents"`
	PaymentID     string   `json:"payment_id"`
	ConfirmedAt   string   `json:"confirmed_at"`
}

// PaymentFailedEvent is published once when a booking fails or expires
// without a captured payment.  Reason is one of "payment_failed" or
// "expired".
type PaymentFailedEvent struct {
	BookingID     uint64 `json:"booking_id"`
	BookingNumber string `json:"booking_number"`
	UserID        uint64 `json:"user_id"`
	ShowtimeID    uint64 `json:"showtime_id"`
	Reason        string `json:"reason"`
	FailedAt      string `json:"failed_at"`
}

// RefundDueEvent is published once when a captured payment could not be
// honoured (the booking expired before the payment landed, or a rival
// confirmed the seats first) and the amount must be returned.  Reason
// is one of "late_payment" or "seats_taken".
type RefundDueEvent struct {
	BookingID     uint64 `json:"booking_id"`
	BookingNumber string `json:"booking_number"`
	UserID        uint64 `json:"user_id"`
	PaymentID     string `json:"payment_id"`
	AmountCents   int64  `json:"amount_cents"`
	Reason        string `json:"reason"`
	RecordedAt    string `json:"recorded_at"`
}
