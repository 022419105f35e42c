package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-booking-core/internal/gateway"
	"github.com/iliyamo/movie-booking-core/internal/model"
	"github.com/iliyamo/movie-booking-core/internal/repository"
	"github.com/iliyamo/movie-booking-core/internal/service"
)

// signatureHeader carries the gateway's webhook signature.
const signatureHeader = "X-Razorpay-Signature"

// PaymentApplier is the slice of the booking service the webhook
// handler drives: resolving the booking behind an order and applying a
// payment outcome to it.
type PaymentApplier interface {
	GetByOrderID(ctx context.Context, orderID string) (*model.Booking, error)
	ConfirmFromWebhook(ctx context.Context, bookingID uint64, paymentID string, payload []byte) (*model.Booking, error)
	FailFromWebhook(ctx context.Context, bookingID uint64, paymentID string, payload []byte) error
}

// WebhookHandler receives payment webhooks from the gateway.  The
// response code is the contract with the gateway's redelivery machinery:
// 400 for a bad signature (never redeliver), 404 for an unknown order
// (redeliver later; the order may not be recorded yet), 200 for
// everything processed, including events that turn out to be stale or
// already handled, which must not be redelivered forever.
type WebhookHandler struct {
	Bookings PaymentApplier
	Gateway  gateway.Gateway
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(bookings PaymentApplier, gw gateway.Gateway) *WebhookHandler {
	if bookings == nil || gw == nil {
		panic("nil dependency passed to NewWebhookHandler")
	}
	return &WebhookHandler{Bookings: bookings, Gateway: gw}
}

// webhookEnvelope is the slice of the gateway's webhook payload this
// service consumes.
type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// Receive handles POST /v1/webhooks/payment.  The raw body is read
// first because the signature covers the exact bytes on the wire, not
// the re-marshalled JSON.
func (h *WebhookHandler) Receive(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}
	sig := c.Request().Header.Get(signatureHeader)
	if !h.Gateway.VerifyWebhookSignature(body, sig) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid signature"})
	}

	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}
	entity := env.Payload.Payment.Entity
	if entity.OrderID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing order id"})
	}

	ctx := c.Request().Context()
	b, err := h.Bookings.GetByOrderID(ctx, entity.OrderID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown order"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}

	switch env.Event {
	case "payment.captured":
		_, err := h.Bookings.ConfirmFromWebhook(ctx, b.ID, entity.ID, body)
		switch {
		case err == nil:
		case errors.Is(err, service.ErrLatePayment),
			errors.Is(err, service.ErrSeatsTaken),
			errors.Is(err, service.ErrInvalidTransition):
			// Outcome already decided; acknowledge so the gateway
			// stops redelivering.
			log.Printf("[WEBHOOK] captured payment for booking %d resolved as: %v", b.ID, err)
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "processing failed"})
		}
	case "payment.failed":
		if err := h.Bookings.FailFromWebhook(ctx, b.ID, entity.ID, body); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "processing failed"})
		}
	case "payment.authorized":
		// Authorization precedes capture; nothing to do until the
		// captured event arrives.
		log.Printf("[WEBHOOK] payment %s authorized for booking %d", entity.ID, b.ID)
	default:
		log.Printf("[WEBHOOK] ignoring event %q for booking %d", env.Event, b.ID)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "processed"})
}
