package model

import "time"

// Showtime represents a scheduled screening and is read-only to this
// service: the catalog that creates and edits showtimes lives elsewhere.
// Seat capacity and layout are generated deterministically from the
// Rows/Cols parameters, so the layout is a display and availability
// concern rather than mutable state.
//
// Fields:
//  ID             – primary key identifier.
//  MovieTitle     – title of the movie being screened.
//  Screen         – screen or hall name.
//  StartsAt       – when the screening begins.
//  SeatPriceCents – price in cents for one standard seat.
//  Rows           – number of seat rows in the layout.
//  Cols           – number of seat columns including the aisle gap.
type Showtime struct {
	ID             uint64    // showtimes.id
	MovieTitle     string    // showtimes.movie_title
	Screen         string    // showtimes.screen
	StartsAt       time.Time // showtimes.starts_at
	SeatPriceCents int64     // showtimes.seat_price_cents
	Rows           int       // showtimes.seat_rows
	Cols           int       // showtimes.seat_cols
}
