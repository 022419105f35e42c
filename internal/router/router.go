// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-booking-core/internal/handler"
	"github.com/iliyamo/movie-booking-core/internal/middleware"
)

// RegisterHealth registers the liveness and readiness probes.  These
// routes carry no authentication: load balancers and orchestrators call
// them anonymously.
func RegisterHealth(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Live)
	e.GET("/readyz", h.Ready)
}

// RegisterSeats registers the seat map and reservation routes.  The
// seat map is public so browsing users see availability before logging
// in; reserve and release require a valid access token.
func RegisterSeats(e *echo.Echo, s *handler.SeatHandler, jwtSecret string) {
	e.GET("/v1/showtimes/:id/seats", s.Status)

	auth := e.Group("/v1/showtimes")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.POST("/:id/reserve", s.Reserve)
	auth.POST("/:id/release", s.Release)
}

// RegisterBookings registers the booking lifecycle routes under JWT
// authentication.  Ownership checks run again in the service layer, so
// a token for one user can never operate on another user's booking.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, jwtSecret string) {
	auth := e.Group("/v1/bookings")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.POST("", b.Create)
	auth.GET("", b.List)
	auth.GET("/:id", b.Get)
	auth.GET("/:id/transactions", b.Transactions)
	auth.POST("/:id/order", b.Order)
	auth.POST("/:id/confirm", b.Confirm)
	auth.POST("/:id/cancel", b.Cancel)
	auth.POST("/:id/release-beacon", b.ReleaseBeacon)
}

// RegisterWebhooks registers the gateway callback route.  No JWT here:
// the gateway authenticates itself with the webhook signature, which
// the handler verifies against the raw body before touching anything.
func RegisterWebhooks(e *echo.Echo, w *handler.WebhookHandler) {
	e.POST("/v1/webhooks/payment", w.Receive)
}
