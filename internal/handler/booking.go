package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-booking-core/internal/gateway"
	"github.com/iliyamo/movie-booking-core/internal/model"
	"github.com/iliyamo/movie-booking-core/internal/repository"
	"github.com/iliyamo/movie-booking-core/internal/service"
)

// BookingHandler exposes the booking lifecycle endpoints.  All routes
// here sit behind JWT authentication; ownership of the booking is
// enforced again in the service layer.
type BookingHandler struct {
	Bookings *service.BookingService
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(bookings *service.BookingService) *BookingHandler {
	if bookings == nil {
		panic("nil booking service passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: bookings}
}

// bookingResponse is the JSON shape returned for a booking.  Amounts
// are integer cents; timestamps are RFC 3339 UTC.
type bookingResponse struct {
	ID                  uint64   `json:"id"`
	BookingNumber       string   `json:"booking_number"`
	ShowtimeID          uint64   `json:"showtime_id"`
	Seats               []string `json:"seats"`
	TotalSeats          int      `json:"total_seats"`
	BasePriceCents      int64    `json:"base_price_cents"`
	ConvenienceFeeCents int64    `json:"convenience_fee_cents"`
	TaxCents            int64    `json:"tax_cents"`
	TotalCents          int64    `json:"total_cents"`
	Status              string   `json:"status"`
	PaymentMethod       string   `json:"payment_method,omitempty"`
	OrderID             string   `json:"order_id,omitempty"`
	CreatedAt           string   `json:"created_at"`
	ConfirmedAt         string   `json:"confirmed_at,omitempty"`
	ExpiresAt           string   `json:"expires_at"`
}

func toBookingResponse(b *model.Booking) bookingResponse {
	resp := bookingResponse{
		ID:                  b.ID,
		BookingNumber:       b.BookingNumber,
		ShowtimeID:          b.ShowtimeID,
		Seats:               b.Seats,
		TotalSeats:          b.TotalSeats,
		BasePriceCents:      b.BasePriceCents,
		ConvenienceFeeCents: b.ConvenienceFeeCents,
		TaxCents:            b.TaxCents,
		TotalCents:          b.TotalCents,
		Status:              b.Status,
		PaymentMethod:       b.PaymentMethod,
		CreatedAt:           b.CreatedAt.UTC().Format(time.RFC3339),
		ExpiresAt:           b.ExpiresAt.UTC().Format(time.RFC3339),
	}
	if b.OrderID != nil {
		resp.OrderID = *b.OrderID
	}
	if b.ConfirmedAt != nil {
		resp.ConfirmedAt = b.ConfirmedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// Create handles POST /v1/bookings.  The body names a showtime and the
// seats the caller already holds; the service freezes the price and
// creates the PENDING booking with its payment deadline.  Returns 201.
func (h *BookingHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		ShowtimeID uint64   `json:"showtime_id"`
		SeatIDs    []string `json:"seat_ids"`
	}
	if err := c.Bind(&body); err != nil || body.ShowtimeID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	b, err := h.Bookings.CreateBooking(c.Request().Context(), userID, body.ShowtimeID, body.SeatIDs)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrShowtimeNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
		case errors.Is(err, service.ErrSeatsNotHeld):
			return c.JSON(http.StatusConflict, echo.Map{"error": "reserve the seats before booking"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create booking"})
		}
	}
	return c.JSON(http.StatusCreated, toBookingResponse(b))
}

// List handles GET /v1/bookings: the caller's bookings, newest first.
func (h *BookingHandler) List(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookings, err := h.Bookings.ListBookings(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list bookings"})
	}
	out := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingResponse(b))
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out})
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := h.Bookings.GetBooking(c.Request().Context(), userID, bookingID)
	if err != nil {
		return bookingError(c, err, "failed to load booking")
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// Order handles POST /v1/bookings/:id/order.  It returns the gateway
// order for the booking, creating one on first call; retries return the
// same order id.  503 signals the gateway could not be reached and the
// client should retry; the booking stays PENDING until its deadline.
func (h *BookingHandler) Order(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, orderID, err := h.Bookings.GetOrCreateOrder(c.Request().Context(), userID, bookingID)
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrUnavailable):
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "payment gateway unavailable, try again"})
		case errors.Is(err, service.ErrLatePayment):
			return c.JSON(http.StatusConflict, echo.Map{"error": "booking expired"})
		case errors.Is(err, service.ErrInvalidTransition):
			return c.JSON(http.StatusConflict, echo.Map{"error": "booking is not payable"})
		default:
			return bookingError(c, err, "failed to create payment order")
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"order_id":     orderID,
		"amount_cents": b.TotalCents,
		"currency":     "INR",
		"booking":      toBookingResponse(b),
	})
}

// Confirm handles POST /v1/bookings/:id/confirm, the browser checkout
// callback carrying order id, payment id and signature.  Success and
// the already-confirmed replay both return 200; a failed signature is
// 400 and leaves the booking payable.
func (h *BookingHandler) Confirm(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var body struct {
		OrderID   string `json:"order_id"`
		PaymentID string `json:"payment_id"`
		Signature string `json:"signature"`
	}
	if err := c.Bind(&body); err != nil || body.OrderID == "" || body.PaymentID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	b, err := h.Bookings.ConfirmPayment(c.Request().Context(), userID, bookingID,
		body.OrderID, body.PaymentID, body.Signature)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSignatureInvalid):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment verification failed"})
		case errors.Is(err, service.ErrLatePayment):
			return c.JSON(http.StatusConflict, echo.Map{"error": "payment arrived after the booking expired; a refund has been initiated"})
		case errors.Is(err, service.ErrSeatsTaken):
			return c.JSON(http.StatusConflict, echo.Map{"error": "seats were taken by another booking; a refund has been initiated"})
		case errors.Is(err, service.ErrInvalidTransition):
			return c.JSON(http.StatusConflict, echo.Map{"error": "booking cannot be confirmed"})
		default:
			return bookingError(c, err, "failed to confirm booking")
		}
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// Cancel handles POST /v1/bookings/:id/cancel.  Only PENDING bookings
// can be cancelled; the seats free up immediately.
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := h.Bookings.CancelBooking(c.Request().Context(), userID, bookingID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidTransition) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "only pending bookings can be cancelled"})
		}
		return bookingError(c, err, "failed to cancel booking")
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// ReleaseBeacon handles POST /v1/bookings/:id/release-beacon, fired by
// the browser when the user leaves the checkout page.  It force-expires
// the booking and any other pending bookings the user holds for the
// same showtime, freeing seats without waiting for the reaper.  The
// response is always 204 on success; beacons carry no body either way.
func (h *BookingHandler) ReleaseBeacon(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	if err := h.Bookings.ForceExpire(c.Request().Context(), userID, bookingID); err != nil {
		return bookingError(c, err, "failed to release booking")
	}
	return c.NoContent(http.StatusNoContent)
}

// Transactions handles GET /v1/bookings/:id/transactions: the audit
// trail of gateway attempts for an owned booking.
func (h *BookingHandler) Transactions(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	txns, err := h.Bookings.ListTransactions(c.Request().Context(), userID, bookingID)
	if err != nil {
		return bookingError(c, err, "failed to list transactions")
	}
	type txResponse struct {
		TransactionID string `json:"transaction_id"`
		AmountCents   int64  `json:"amount_cents"`
		Status        string `json:"status"`
		Gateway       string `json:"gateway"`
		CreatedAt     string `json:"created_at"`
	}
	out := make([]txResponse, 0, len(txns))
	for _, t := range txns {
		out = append(out, txResponse{
			TransactionID: t.TransactionID,
			AmountCents:   t.AmountCents,
			Status:        t.Status,
			Gateway:       t.Gateway,
			CreatedAt:     t.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"transactions": out})
}

// bookingError maps the shared not-found/forbidden cases; anything else
// becomes a 500 with the supplied message.
func bookingError(c echo.Context, err error, msg string) error {
	switch {
	case errors.Is(err, repository.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": msg})
	}
}
