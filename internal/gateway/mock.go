package gateway

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Mock is the development and test implementation.  It never touches
// the network: orders get deterministic synthetic ids, every signature
// verifies, and FetchPayment fabricates a captured payment.  The rest
// of the booking flow runs unchanged against it, so local environments
// exercise the full confirmation path without provider credentials.
type Mock struct{}

// NewMock returns the mock gateway.
func NewMock() *Mock { return &Mock{} }

// Name identifies this implementation in payment_method and audit rows.
func (m *Mock) Name() string { return "MOCK" }

// CreateOrder fabricates an order with a unique mock id.
func (m *Mock) CreateOrder(ctx context.Context, amountCents int64, currency, receipt string, notes map[string]string) (*Order, error) {
	return &Order{
		ID:          "order_mock_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14],
		AmountCents: amountCents,
		Currency:    currency,
		Receipt:     receipt,
	}, nil
}

// VerifySignature accepts any non-empty signature.
func (m *Mock) VerifySignature(orderID, paymentID, signature string) bool {
	return orderID != "" && paymentID != "" && signature != ""
}

// VerifyWebhookSignature accepts any non-empty signature.
func (m *Mock) VerifyWebhookSignature(payload []byte, signature string) bool {
	return len(payload) > 0 && signature != ""
}

// FetchPayment fabricates a captured payment for the given id.
func (m *Mock) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	return &Payment{
		ID:     paymentID,
		Status: "captured",
		Method: "mock",
	}, nil
}
