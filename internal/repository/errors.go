// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios. For example, ErrBookingNotFound maps to a 404 while
// ErrForbidden indicates that the current user is not authorized to
// operate on a booking owned by someone else.
package repository

import "errors"

// ErrBookingNotFound is returned when no booking matches the requested
// identifier or gateway order id. Handlers should translate this into
// an HTTP 404 response.
var ErrBookingNotFound = errors.New("booking not found")

// ErrShowtimeNotFound is returned when the referenced showtime does not
// exist. Handlers should translate this into an HTTP 404 response.
var ErrShowtimeNotFound = errors.New("showtime not found")

// ErrForbidden is returned when the caller attempts an operation on a
// booking they do not own. Handlers should translate this into an HTTP
// 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrSeatConflict is returned when a requested seat is not available or
// a lock acquisition lost a race. Callers should re-poll availability
// and retry; handlers translate this into an HTTP 409 response. The
// concrete *SeatConflictError carries the contested seat ids.
var ErrSeatConflict = errors.New("seat conflict")
