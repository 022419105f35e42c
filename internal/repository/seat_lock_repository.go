package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// SeatLockRepo manages ephemeral, per-seat exclusive holds in Redis.
// Each lock is one key (showtime, seat) -> holder user id with a TTL,
// acquired with SETNX so the check-and-set is a single atomic operation
// against the shared store; there is never a read-then-write window.
// Alongside the locks it maintains two advisory structures:
//
//   - a per-user reservation record listing the seats that user holds
//     for a showtime, which makes repeated reservation calls idempotent
//     and supports "release everything for this user";
//   - a per-showtime reserved set aggregating all held seats, used for
//     seat-status display without scanning the keyspace.
//
// None of these are the source of truth for "permanently taken"; a
// CONFIRMED booking row is.  The TTL on every key equals the booking
// payment window, so a hold can never outlive the booking deadline it
// protects (and the reverse), even if a release call is never made.
type SeatLockRepo struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSeatLockRepo returns a SeatLockRepo using the given client and
// lock TTL.  The TTL must be the configured reservation timeout; the
// booking service derives expires_at from the same value.
func NewSeatLockRepo(rdb *redis.Client, ttl time.Duration) *SeatLockRepo {
	return &SeatLockRepo{rdb: rdb, ttl: ttl}
}

// TTL returns the configured hold duration.
func (r *SeatLockRepo) TTL() time.Duration { return r.ttl }

func lockKey(showtimeID uint64, seatID string) string {
	return fmt.Sprintf("seatlock:%d:%s", showtimeID, seatID)
}

func reservationKey(showtimeID, userID uint64) string {
	return fmt.Sprintf("seat_reservation:%d:%d", showtimeID, userID)
}

func reservedSetKey(showtimeID uint64) string {
	return fmt.Sprintf("reserved_seats:%d", showtimeID)
}

// reservationRecord is the JSON payload stored per (showtime, user).
type reservationRecord struct {
	SeatIDs    []string `json:"seat_ids"`
	ReservedAt int64    `json:"reserved_at"`
}

// SeatConflictError reports which seats could not be locked.  It
// unwraps to ErrSeatConflict so callers can match with errors.Is while
// handlers surface the contested seat ids to the client.
type SeatConflictError struct {
	Seats []string
}

func (e *SeatConflictError) Error() string {
	return fmt.Sprintf("seats unavailable: %v", e.Seats)
}

// Unwrap lets errors.Is(err, ErrSeatConflict) succeed.
func (e *SeatConflictError) Unwrap() error { return ErrSeatConflict }

// Reserve attempts to acquire all requested seats for userID with
// all-or-nothing semantics.  Each seat is acquired with an atomic
// SETNX; a seat already held by userID counts as acquired (re-entrant,
// so page refreshes and retries are idempotent) and gets its TTL
// refreshed so every lock in the set shares one deadline.  If any seat
// is held by someone else, every lock acquired earlier in this call is
// rolled back before a SeatConflictError naming every contested seat is
// returned; partial holds are never left outstanding.  After the first
// conflict the remaining seats are only classified, not acquired, so
// the client learns the full contested set in one round-trip.  On
// success the user's reservation record is rewritten with the full seat
// set and a fresh timestamp.
func (r *SeatLockRepo) Reserve(ctx context.Context, showtimeID uint64, seatIDs []string, userID uint64) error {
	if len(seatIDs) == 0 {
		return &SeatConflictError{}
	}
	uid := strconv.FormatUint(userID, 10)
	acquired := make([]string, 0, len(seatIDs))
	var conflicts []string
	for _, seat := range seatIDs {
		key := lockKey(showtimeID, seat)
		if len(conflicts) > 0 {
			// The request already failed; just record who else holds
			// what so the error names every contested seat.
			holder, err := r.rdb.Get(ctx, key).Result()
			if err == redis.Nil {
				continue
			}
			if err != nil {
				r.rollback(ctx, showtimeID, acquired)
				return err
			}
			if holder != uid {
				conflicts = append(conflicts, seat)
			}
			continue
		}
		ok, err := r.rdb.SetNX(ctx, key, uid, r.ttl).Result()
		if err != nil {
			r.rollback(ctx, showtimeID, acquired)
			return err
		}
		if ok {
			acquired = append(acquired, seat)
			continue
		}
		holder, err := r.rdb.Get(ctx, key).Result()
		if err == redis.Nil {
			// Holder expired between SETNX and GET; retry the acquire once.
			ok, err = r.rdb.SetNX(ctx, key, uid, r.ttl).Result()
			if err != nil {
				r.rollback(ctx, showtimeID, acquired)
				return err
			}
			if !ok {
				conflicts = append(conflicts, seat)
				continue
			}
			acquired = append(acquired, seat)
			continue
		}
		if err != nil {
			r.rollback(ctx, showtimeID, acquired)
			return err
		}
		if holder == uid {
			// Re-entrant: refresh so all locks in this call expire together.
			if err := r.rdb.Expire(ctx, key, r.ttl).Err(); err != nil {
				r.rollback(ctx, showtimeID, acquired)
				return err
			}
			continue
		}
		conflicts = append(conflicts, seat)
	}
	if len(conflicts) > 0 {
		r.rollback(ctx, showtimeID, acquired)
		return &SeatConflictError{Seats: conflicts}
	}

	// Advisory reserved set for status display.
	if err := r.rdb.SAdd(ctx, reservedSetKey(showtimeID), toMembers(seatIDs)...).Err(); err != nil {
		return err
	}
	if err := r.rdb.Expire(ctx, reservedSetKey(showtimeID), r.ttl).Err(); err != nil {
		return err
	}

	rec := reservationRecord{SeatIDs: seatIDs, ReservedAt: time.Now().UTC().Unix()}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, reservationKey(showtimeID, userID), string(raw), r.ttl).Err()
}

// rollback removes locks taken earlier in a failed Reserve call.  Only
// freshly acquired seats are rolled back; seats the user already held
// before the call keep their locks.
func (r *SeatLockRepo) rollback(ctx context.Context, showtimeID uint64, acquired []string) {
	for _, seat := range acquired {
		_ = r.rdb.Del(ctx, lockKey(showtimeID, seat)).Err()
	}
}

// releaseOwnedScript deletes a seat lock only while it still carries
// the releasing user's id.  A plain DEL would let a release that raced
// TTL expiry drop a lock a rival has since acquired.
const releaseOwnedScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) end return 0`

// Release frees seat locks.  When seatIDs is non-empty exactly those
// locks are removed.  When seatIDs is empty and userID is set, the
// user's reservation record is consulted and every seat it lists is
// released, then the record itself is deleted.  Each lock is deleted
// through a compare-and-delete guarded by the holder id, so only locks
// the user still owns are dropped.  Releasing a lock that no longer
// exists, or that someone else now holds, is a no-op, never an error:
// TTL expiry, retries and crashed clients all funnel through here
// safely.
func (r *SeatLockRepo) Release(ctx context.Context, showtimeID uint64, seatIDs []string, userID uint64) error {
	if len(seatIDs) == 0 && userID != 0 {
		held, err := r.HeldBy(ctx, showtimeID, userID)
		if err != nil {
			return err
		}
		seatIDs = held
	}
	if userID != 0 {
		if err := r.rdb.Del(ctx, reservationKey(showtimeID, userID)).Err(); err != nil && err != redis.Nil {
			return err
		}
	}
	if len(seatIDs) == 0 {
		return nil
	}
	uid := strconv.FormatUint(userID, 10)
	released := make([]string, 0, len(seatIDs))
	for _, seat := range seatIDs {
		n, err := r.rdb.Eval(ctx, releaseOwnedScript, []string{lockKey(showtimeID, seat)}, uid).Int()
		if err != nil && err != redis.Nil {
			return err
		}
		if n > 0 {
			released = append(released, seat)
		}
	}
	if len(released) == 0 {
		return nil
	}
	if err := r.rdb.SRem(ctx, reservedSetKey(showtimeID), toMembers(released)...).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

// HeldBy returns the seat set the user currently has reserved for the
// showtime, or nil when no reservation record exists.
func (r *SeatLockRepo) HeldBy(ctx context.Context, showtimeID, userID uint64) ([]string, error) {
	raw, err := r.rdb.Get(ctx, reservationKey(showtimeID, userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec reservationRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return rec.SeatIDs, nil
}

// ReservedSeats returns the advisory set of all currently held seats
// for a showtime.  Display only; the per-seat locks remain the
// authority for mutual exclusion.
func (r *SeatLockRepo) ReservedSeats(ctx context.Context, showtimeID uint64) ([]string, error) {
	seats, err := r.rdb.SMembers(ctx, reservedSetKey(showtimeID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	return seats, err
}

// DropReservedSet deletes the advisory reserved set outright.  Force
// expiry uses this when, after releasing a booking's seats, stale
// entries are still present in the set.
func (r *SeatLockRepo) DropReservedSet(ctx context.Context, showtimeID uint64) error {
	err := r.rdb.Del(ctx, reservedSetKey(showtimeID)).Err()
	if err == redis.Nil {
		return nil
	}
	return err
}

// TryLock acquires a named mutex with SETNX, used by the reaper so
// only one replica sweeps at a time.  Returns true when this caller
// won the lock.
func (r *SeatLockRepo) TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	return r.rdb.SetNX(ctx, "mutex:"+name, "locked", ttl).Result()
}

// Unlock releases a named mutex taken with TryLock.
func (r *SeatLockRepo) Unlock(ctx context.Context, name string) error {
	err := r.rdb.Del(ctx, "mutex:"+name).Err()
	if err == redis.Nil {
		return nil
	}
	return err
}

func toMembers(seats []string) []interface{} {
	out := make([]interface{}, len(seats))
	for i, s := range seats {
		out[i] = s
	}
	return out
}
