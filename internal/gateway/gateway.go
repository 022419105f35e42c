// Package gateway abstracts the payment provider behind a small
// interface: create an order, verify signatures, fetch a payment.  Two
// implementations exist, the real Razorpay client and a deterministic
// mock, selected explicitly at construction time.  The core never
// implements the provider's own protocol beyond these three
// operations; everything else about payments is the provider's
// business.
package gateway

import (
	"context"
	"errors"
)

// Order is the provider-side order created for a booking.  Amounts are
// integer cents (paise) exactly as the provider expects them.
type Order struct {
	ID          string // provider order identifier
	AmountCents int64  // order amount in cents
	Currency    string // ISO currency code
	Receipt     string // caller-supplied receipt reference
}

// Payment mirrors the provider's payment entity, reduced to the fields
// this service consumes.
type Payment struct {
	ID          string // provider payment identifier
	OrderID     string // order the payment belongs to
	AmountCents int64  // captured amount in cents
	Status      string // provider status string (e.g. "captured")
	Method      string // instrument used, informational
}

// Gateway is the contract both implementations satisfy.  Signature
// checks are pure functions of their inputs and never touch the
// network; CreateOrder and FetchPayment may, and honour ctx.
type Gateway interface {
	// CreateOrder registers an order for the given amount and returns
	// the provider's order id.  Implementations retry transient
	// failures internally with bounded backoff; when retries are
	// exhausted the returned error wraps ErrUnavailable.
	CreateOrder(ctx context.Context, amountCents int64, currency, receipt string, notes map[string]string) (*Order, error)

	// VerifySignature checks the signature a client echoes back after
	// checkout, binding (orderID, paymentID) together.
	VerifySignature(orderID, paymentID, signature string) bool

	// VerifyWebhookSignature checks the signature on a raw webhook
	// payload.
	VerifyWebhookSignature(payload []byte, signature string) bool

	// FetchPayment retrieves the provider's view of a payment.
	FetchPayment(ctx context.Context, paymentID string) (*Payment, error)

	// Name identifies the implementation for payment_method and audit
	// columns.
	Name() string
}

// ErrUnavailable signals that the provider could not be reached after
// bounded retries.  The booking stays PENDING and the caller surfaces a
// retryable error to the user.
var ErrUnavailable = errors.New("payment gateway unavailable")
