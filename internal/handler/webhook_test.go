package handler_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/movie-booking-core/internal/gateway"
	"github.com/iliyamo/movie-booking-core/internal/handler"
	"github.com/iliyamo/movie-booking-core/internal/model"
	"github.com/iliyamo/movie-booking-core/internal/repository"
	"github.com/iliyamo/movie-booking-core/internal/service"
)

const hookSecret = "hook_secret"

// fakeApplier records which service methods the webhook handler drove.
type fakeApplier struct {
	booking    *model.Booking
	confirmErr error
	failErr    error

	confirmed []string
	failed    []string
}

func (f *fakeApplier) GetByOrderID(ctx context.Context, orderID string) (*model.Booking, error) {
	if f.booking == nil || f.booking.OrderID == nil || *f.booking.OrderID != orderID {
		return nil, repository.ErrBookingNotFound
	}
	return f.booking, nil
}

func (f *fakeApplier) ConfirmFromWebhook(ctx context.Context, bookingID uint64, paymentID string, payload []byte) (*model.Booking, error) {
	f.confirmed = append(f.confirmed, paymentID)
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	return f.booking, nil
}

func (f *fakeApplier) FailFromWebhook(ctx context.Context, bookingID uint64, paymentID string, payload []byte) error {
	f.failed = append(f.failed, paymentID)
	return f.failErr
}

func webhookSign(payload string) string {
	mac := hmac.New(sha256.New, []byte(hookSecret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func capturedPayload(orderID, paymentID string) string {
	return fmt.Sprintf(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":%q,"order_id":%q,"status":"captured"}}}}`,
		paymentID, orderID)
}

func deliver(t *testing.T, applier *fakeApplier, payload, signature string) *httptest.ResponseRecorder {
	t.Helper()
	gw := gateway.NewRazorpay("key", "secret", hookSecret, nil, gateway.RetryPolicy{Attempts: 1})
	h := handler.NewWebhookHandler(applier, gw)

	e := echo.New()
	e.POST("/v1/webhooks/payment", h.Receive)
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/payment", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if signature != "" {
		req.Header.Set("X-Razorpay-Signature", signature)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func pendingBooking(orderID string) *model.Booking {
	return &model.Booking{ID: 9, UserID: 42, ShowtimeID: 7, OrderID: &orderID, Status: model.BookingPending}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	applier := &fakeApplier{booking: pendingBooking("order_1")}
	payload := capturedPayload("order_1", "pay_1")

	rec := deliver(t, applier, payload, "deadbeef")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, applier.confirmed)

	rec = deliver(t, applier, payload, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, applier.confirmed)
}

func TestWebhookUnknownOrderIs404(t *testing.T) {
	applier := &fakeApplier{booking: pendingBooking("order_1")}
	payload := capturedPayload("order_other", "pay_1")

	rec := deliver(t, applier, payload, webhookSign(payload))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, applier.confirmed)
}

func TestWebhookCapturedConfirms(t *testing.T) {
	applier := &fakeApplier{booking: pendingBooking("order_1")}
	payload := capturedPayload("order_1", "pay_1")

	rec := deliver(t, applier, payload, webhookSign(payload))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"pay_1"}, applier.confirmed)
}

func TestWebhookAlreadyDecidedOutcomeStillAcks(t *testing.T) {
	// A redelivered capture for a booking that already failed late must
	// return 200 so the gateway stops retrying.
	for _, outcome := range []error{service.ErrLatePayment, service.ErrSeatsTaken, service.ErrInvalidTransition} {
		applier := &fakeApplier{booking: pendingBooking("order_1"), confirmErr: outcome}
		payload := capturedPayload("order_1", "pay_1")

		rec := deliver(t, applier, payload, webhookSign(payload))
		assert.Equal(t, http.StatusOK, rec.Code, "outcome %v must ack", outcome)
	}
}

func TestWebhookFailedEventFailsBooking(t *testing.T) {
	applier := &fakeApplier{booking: pendingBooking("order_1")}
	payload := `{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1","status":"failed"}}}}`

	rec := deliver(t, applier, payload, webhookSign(payload))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"pay_1"}, applier.failed)
	assert.Empty(t, applier.confirmed)
}

func TestWebhookAuthorizedAndUnknownEventsAreAcked(t *testing.T) {
	for _, event := range []string{"payment.authorized", "order.paid"} {
		applier := &fakeApplier{booking: pendingBooking("order_1")}
		payload := fmt.Sprintf(`{"event":%q,"payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1"}}}}`, event)

		rec := deliver(t, applier, payload, webhookSign(payload))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, applier.confirmed)
		assert.Empty(t, applier.failed)
	}
}

func TestWebhookMissingOrderIdIs400(t *testing.T) {
	applier := &fakeApplier{booking: pendingBooking("order_1")}
	payload := `{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1"}}}}`

	rec := deliver(t, applier, payload, webhookSign(payload))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
