// Package service implements the booking lifecycle on top of the
// repositories: seat reservation and release, booking creation with a
// frozen price snapshot, payment confirmation, cancellation and expiry.
// Handlers stay thin; every business rule lives here.
package service

import "github.com/iliyamo/movie-booking-core/internal/model"

// Pricing constants.  Money is integer cents throughout; no floats ever
// touch an amount.
const (
	// ConvenienceFeeCents is the flat per-booking fee, independent of
	// seat count.
	ConvenienceFeeCents int64 = 3000

	// Tax is applied to (base + fee) as taxNumer/taxDenom, truncated
	// toward zero.
	taxNumer int64 = 18
	taxDenom int64 = 100
)

// PriceQuote is the immutable amount breakdown computed once at booking
// creation.  The booking stores these four numbers and never recomputes
// them, so later catalog price changes cannot alter what an existing
// booking owes.
type PriceQuote struct {
	BaseCents  int64 // seat price * seat count
	FeeCents   int64 // flat convenience fee
	TaxCents   int64 // tax on base + fee
	TotalCents int64 // base + fee + tax
}

// Quote computes the price snapshot for seatCount seats at the given
// per-seat price.
func Quote(seatPriceCents int64, seatCount int) PriceQuote {
	base := seatPriceCents * int64(seatCount)
	fee := ConvenienceFeeCents
	tax := (base + fee) * taxNumer / taxDenom
	return PriceQuote{
		BaseCents:  base,
		FeeCents:   fee,
		TaxCents:   tax,
		TotalCents: base + fee + tax,
	}
}

// QuoteFor is a convenience wrapper quoting a showtime's standard seat
// price.
func QuoteFor(st *model.Showtime, seatCount int) PriceQuote {
	return Quote(st.SeatPriceCents, seatCount)
}
