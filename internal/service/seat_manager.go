package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/iliyamo/movie-booking-core/internal/model"
	"github.com/iliyamo/movie-booking-core/internal/repository"
)

// MaxSeatsPerReservation bounds one reservation request.  Larger groups
// must book in parts; the limit keeps a single user from holding a
// whole row hostage for the payment window.
const MaxSeatsPerReservation = 10

// ErrInvalidSeats reports a request naming seats that do not exist in
// the showtime's layout, an empty seat list, or a list over the limit.
var ErrInvalidSeats = errors.New("invalid seat selection")

// SeatManager handles the ephemeral side of the lifecycle: acquiring
// and releasing seat holds and answering seat-status queries.  It
// validates requests against the generated layout before touching the
// lock store, so lock keys only ever exist for real seats.
type SeatManager struct {
	locks        *repository.SeatLockRepo
	availability *repository.AvailabilityRepo
}

// NewSeatManager wires the seat manager to its stores.
func NewSeatManager(locks *repository.SeatLockRepo, availability *repository.AvailabilityRepo) *SeatManager {
	return &SeatManager{locks: locks, availability: availability}
}

// Reserve validates and acquires holds on the requested seats for a
// user.  Duplicates in the request are collapsed; the deduplicated set
// must be non-empty, within the per-reservation limit and fully present
// in the showtime layout.  Before any lock is taken the request is
// checked against the availability set: seats of CONFIRMED bookings
// (whose locks were released at confirmation) and of unexpired PENDING
// bookings (whose lock TTL may lapse before the payment window does)
// are contested even when no live lock protects them.  Acquisition is
// all-or-nothing: on conflict a *repository.SeatConflictError names the
// contested seats and nothing stays held.  The normalized seat list
// actually reserved is returned.
func (m *SeatManager) Reserve(ctx context.Context, showtimeID, userID uint64, seatIDs []string) ([]string, error) {
	seats, err := m.normalize(ctx, showtimeID, seatIDs)
	if err != nil {
		return nil, err
	}
	available, err := m.availability.Available(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	availSet := toSet(available)
	var taken []string
	for _, s := range seats {
		if !member(availSet, s) {
			taken = append(taken, s)
		}
	}
	if len(taken) > 0 {
		return nil, &repository.SeatConflictError{Seats: taken}
	}
	if err := m.locks.Reserve(ctx, showtimeID, seats, userID); err != nil {
		return nil, err
	}
	return seats, nil
}

// Release drops the user's holds.  With an explicit seat list only
// those locks are released; with an empty list everything the user's
// reservation record names is released.  Always idempotent.
func (m *SeatManager) Release(ctx context.Context, showtimeID, userID uint64, seatIDs []string) error {
	return m.locks.Release(ctx, showtimeID, seatIDs, userID)
}

// SeatStatus is the full picture for the seat-selection page: the
// layout grid plus the partition of every seat into exactly one of
// booked, reserved or available.
type SeatStatus struct {
	Layout    [][]*model.Seat `json:"layout"`
	Booked    []string        `json:"booked_seats"`
	Reserved  []string        `json:"reserved_seats"`
	Available []string        `json:"available_seats"`
}

// Status builds the seat partition for a showtime from the cached sets
// and the live lock holds.  Booked comes from CONFIRMED bookings and
// wins over everything; reserved covers live holds plus any seat
// missing from the available set without being booked, which is exactly
// the unexpired PENDING bookings; whatever remains is available.  The
// three sets are disjoint and together cover the layout.
func (m *SeatManager) Status(ctx context.Context, showtimeID uint64) (*SeatStatus, error) {
	layout, err := m.availability.Layout(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	available, err := m.availability.Available(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	booked, err := m.availability.BookedSeats(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	held, err := m.locks.ReservedSeats(ctx, showtimeID)
	if err != nil {
		return nil, err
	}

	availSet := toSet(available)
	bookedSet := toSet(booked)
	heldSet := toSet(held)

	st := &SeatStatus{Layout: layout}
	for _, id := range model.LayoutSeatIDs(layout) {
		switch {
		case member(bookedSet, id):
			st.Booked = append(st.Booked, id)
		case member(heldSet, id), !member(availSet, id):
			st.Reserved = append(st.Reserved, id)
		default:
			st.Available = append(st.Available, id)
		}
	}
	return st, nil
}

// normalize dedupes and validates a seat request against the layout.
func (m *SeatManager) normalize(ctx context.Context, showtimeID uint64, seatIDs []string) ([]string, error) {
	if len(seatIDs) == 0 {
		return nil, fmt.Errorf("%w: no seats requested", ErrInvalidSeats)
	}
	dedup := make(map[string]struct{}, len(seatIDs))
	seats := make([]string, 0, len(seatIDs))
	for _, s := range seatIDs {
		if _, ok := dedup[s]; ok {
			continue
		}
		dedup[s] = struct{}{}
		seats = append(seats, s)
	}
	if len(seats) > MaxSeatsPerReservation {
		return nil, fmt.Errorf("%w: at most %d seats per reservation", ErrInvalidSeats, MaxSeatsPerReservation)
	}
	layout, err := m.availability.Layout(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	valid := toSet(model.LayoutSeatIDs(layout))
	var unknown []string
	for _, s := range seats {
		if _, ok := valid[s]; !ok {
			unknown = append(unknown, s)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: unknown seats %v", ErrInvalidSeats, unknown)
	}
	return seats, nil
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, s := range items {
		set[s] = struct{}{}
	}
	return set
}

func member(set map[string]struct{}, s string) bool {
	_, ok := set[s]
	return ok
}
