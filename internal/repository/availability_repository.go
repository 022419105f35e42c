package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/movie-booking-core/internal/model"
)

// AvailabilityRepo computes and caches the set of seats that can still
// be reserved for a showtime: the full layout minus seats of CONFIRMED
// bookings minus seats of PENDING bookings whose window is still open.
// The available set and the booked set are cached side by side with the
// same short TTL, so the reserve-time check and seat-status polling
// never scan MySQL inside the cache window; both keys must be
// explicitly invalidated whenever a booking reaches a terminal state,
// so stale availability is visible for at most one TTL window.  The
// static layout is cached far longer; it is generated deterministically
// from the showtime's dimensions and never changes.
type AvailabilityRepo struct {
	rdb       *redis.Client
	bookings  *BookingRepo
	showtimes *ShowtimeRepo
	availTTL  time.Duration
	layoutTTL time.Duration
}

// NewAvailabilityRepo wires the availability cache to its backing
// stores.  availTTL should be seconds-to-minutes; layoutTTL can be an
// hour or more.
func NewAvailabilityRepo(rdb *redis.Client, bookings *BookingRepo, showtimes *ShowtimeRepo, availTTL, layoutTTL time.Duration) *AvailabilityRepo {
	return &AvailabilityRepo{
		rdb:       rdb,
		bookings:  bookings,
		showtimes: showtimes,
		availTTL:  availTTL,
		layoutTTL: layoutTTL,
	}
}

func availableKey(showtimeID uint64) string {
	return fmt.Sprintf("available_seats:%d", showtimeID)
}

func bookedKey(showtimeID uint64) string {
	return fmt.Sprintf("booked_seats:%d", showtimeID)
}

func layoutKey(showtimeID uint64) string {
	return fmt.Sprintf("seat_layout:%d", showtimeID)
}

// Layout returns the seat grid for a showtime, from cache when
// possible.  Layouts need no invalidation because the generation is
// deterministic.
func (a *AvailabilityRepo) Layout(ctx context.Context, showtimeID uint64) ([][]*model.Seat, error) {
	if raw, err := a.rdb.Get(ctx, layoutKey(showtimeID)).Bytes(); err == nil {
		var layout [][]*model.Seat
		if err := json.Unmarshal(raw, &layout); err == nil {
			return layout, nil
		}
		// Corrupt cache entry: fall through and rebuild.
	}
	st, err := a.showtimes.GetByID(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	layout := model.GenerateLayout(st.Rows, st.Cols)
	if raw, err := json.Marshal(layout); err == nil {
		_ = a.rdb.Set(ctx, layoutKey(showtimeID), raw, a.layoutTTL).Err()
	}
	return layout, nil
}

// Available returns the seat ids currently open for reservation.  The
// result is served from cache within the short TTL window; on a miss
// both sets are recomputed from the durable booking records, so the
// cache is always rebuildable after a flush.
func (a *AvailabilityRepo) Available(ctx context.Context, showtimeID uint64) ([]string, error) {
	if raw, err := a.rdb.Get(ctx, availableKey(showtimeID)).Bytes(); err == nil {
		var seats []string
		if err := json.Unmarshal(raw, &seats); err == nil {
			return seats, nil
		}
	}
	available, _, err := a.compute(ctx, showtimeID)
	return available, err
}

// BookedSeats returns the seats permanently taken by CONFIRMED
// bookings, from cache when possible.  The seat-status endpoint uses it
// to partition the layout.
func (a *AvailabilityRepo) BookedSeats(ctx context.Context, showtimeID uint64) ([]string, error) {
	if raw, err := a.rdb.Get(ctx, bookedKey(showtimeID)).Bytes(); err == nil {
		var seats []string
		if err := json.Unmarshal(raw, &seats); err == nil {
			return seats, nil
		}
	}
	_, booked, err := a.compute(ctx, showtimeID)
	return booked, err
}

// compute rebuilds both cached sets from the booking records in one
// scan and rewrites the cache keys.
func (a *AvailabilityRepo) compute(ctx context.Context, showtimeID uint64) ([]string, []string, error) {
	layout, err := a.Layout(ctx, showtimeID)
	if err != nil {
		return nil, nil, err
	}
	booked, reserved, err := a.bookings.UnavailableSeats(ctx, showtimeID, time.Now().UTC())
	if err != nil {
		return nil, nil, err
	}
	gone := make(map[string]struct{}, len(booked)+len(reserved))
	for _, s := range booked {
		gone[s] = struct{}{}
	}
	for _, s := range reserved {
		gone[s] = struct{}{}
	}
	all := model.LayoutSeatIDs(layout)
	available := make([]string, 0, len(all))
	for _, s := range all {
		if _, taken := gone[s]; !taken {
			available = append(available, s)
		}
	}
	if raw, err := json.Marshal(available); err == nil {
		_ = a.rdb.Set(ctx, availableKey(showtimeID), raw, a.availTTL).Err()
	}
	if raw, err := json.Marshal(booked); err == nil {
		_ = a.rdb.Set(ctx, bookedKey(showtimeID), raw, a.availTTL).Err()
	}
	return available, booked, nil
}

// Invalidate drops both cached seat sets for a showtime.  It is called
// on every CONFIRMED, EXPIRED, FAILED and CANCELLED transition; the
// next read recomputes from the booking records.
func (a *AvailabilityRepo) Invalidate(ctx context.Context, showtimeID uint64) error {
	err := a.rdb.Del(ctx, availableKey(showtimeID), bookedKey(showtimeID)).Err()
	if err == redis.Nil {
		return nil
	}
	return err
}
