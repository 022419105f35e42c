package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-booking-core/internal/repository"
	"github.com/iliyamo/movie-booking-core/internal/service"
)

// SeatHandler exposes the seat-selection endpoints: the live seat map
// for a showtime plus reserve and release.  JWT authentication has
// already run for reserve/release; the seat map itself is public.
type SeatHandler struct {
	Seats *service.SeatManager
}

// NewSeatHandler constructs a SeatHandler.
func NewSeatHandler(seats *service.SeatManager) *SeatHandler {
	if seats == nil {
		panic("nil seat manager passed to NewSeatHandler")
	}
	return &SeatHandler{Seats: seats}
}

// Status handles GET /v1/showtimes/:id/seats.  It returns the layout
// grid and the booked/reserved/available partition.  The response is
// marked uncacheable: seat state changes every second during a rush and
// a browser-cached map would show stale holds.
func (h *SeatHandler) Status(c echo.Context) error {
	showtimeID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	st, err := h.Seats.Status(c.Request().Context(), showtimeID)
	if err != nil {
		if errors.Is(err, repository.ErrShowtimeNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load seat status"})
	}
	c.Response().Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	c.Response().Header().Set("Pragma", "no-cache")
	return c.JSON(http.StatusOK, st)
}

// Reserve handles POST /v1/showtimes/:id/reserve.  The body carries a
// "seat_ids" array of seat identifiers like "A1".  On success the holds
// are taken atomically and 200 is returned with the reserved set; on a
// conflict 409 names the contested seats so the client can redraw.
func (h *SeatHandler) Reserve(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showtimeID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	var body struct {
		SeatIDs []string `json:"seat_ids"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	seats, err := h.Seats.Reserve(c.Request().Context(), showtimeID, userID, body.SeatIDs)
	if err != nil {
		var conflict *repository.SeatConflictError
		switch {
		case errors.As(err, &conflict):
			return c.JSON(http.StatusConflict, echo.Map{
				"error":             "seats unavailable",
				"unavailable_seats": conflict.Seats,
			})
		case errors.Is(err, service.ErrInvalidSeats):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		case errors.Is(err, repository.ErrShowtimeNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to reserve seats"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"reserved_seats": seats,
		"showtime_id":    showtimeID,
	})
}

// Release handles POST /v1/showtimes/:id/release.  An explicit
// "seat_ids" array releases those seats; an empty body releases every
// seat the user holds for the showtime.  Always returns 200: releasing
// an already-free seat is not an error.
func (h *SeatHandler) Release(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showtimeID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	var body struct {
		SeatIDs []string `json:"seat_ids"`
	}
	// Body is optional; a bind failure on an empty body is ignored.
	_ = c.Bind(&body)

	if err := h.Seats.Release(c.Request().Context(), showtimeID, userID, body.SeatIDs); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to release seats"})
	}
	return c.JSON(http.StatusOK, echo.Map{"released": true})
}
