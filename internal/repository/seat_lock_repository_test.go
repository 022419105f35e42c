package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-booking-core/internal/repository"
)

const lockTTL = 10 * time.Minute

// ownedDelete mirrors the holder-guarded delete Release runs per seat.
const ownedDelete = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) end return 0`

func TestReserveAllSeatsAcquired(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	repo := repository.NewSeatLockRepo(rdb, lockTTL)
	ctx := context.Background()

	mock.ExpectSetNX("seatlock:7:A1", "42", lockTTL).SetVal(true)
	mock.ExpectSetNX("seatlock:7:A2", "42", lockTTL).SetVal(true)
	mock.ExpectSAdd("reserved_seats:7", "A1", "A2").SetVal(2)
	mock.ExpectExpire("reserved_seats:7", lockTTL).SetVal(true)
	mock.Regexp().ExpectSet("seat_reservation:7:42", `\{"seat_ids":\["A1","A2"\],"reserved_at":\d+\}`, lockTTL).SetVal("OK")

	err := repo.Reserve(ctx, 7, []string{"A1", "A2"}, 42)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveConflictRollsBackAcquiredLocks(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	repo := repository.NewSeatLockRepo(rdb, lockTTL)
	ctx := context.Background()

	// A1 is acquired, A2 belongs to user 99: the A1 lock must be rolled
	// back and the error must name A2.
	mock.ExpectSetNX("seatlock:7:A1", "42", lockTTL).SetVal(true)
	mock.ExpectSetNX("seatlock:7:A2", "42", lockTTL).SetVal(false)
	mock.ExpectGet("seatlock:7:A2").SetVal("99")
	mock.ExpectDel("seatlock:7:A1").SetVal(1)

	err := repo.Reserve(ctx, 7, []string{"A1", "A2"}, 42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, repository.ErrSeatConflict))

	var conflict *repository.SeatConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, []string{"A2"}, conflict.Seats)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveNamesEveryContestedSeat(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	repo := repository.NewSeatLockRepo(rdb, lockTTL)
	ctx := context.Background()

	// After the first conflict the remaining seats are classified
	// without being acquired, so the error lists both rivals' seats.
	mock.ExpectSetNX("seatlock:7:A1", "42", lockTTL).SetVal(true)
	mock.ExpectSetNX("seatlock:7:A2", "42", lockTTL).SetVal(false)
	mock.ExpectGet("seatlock:7:A2").SetVal("99")
	mock.ExpectGet("seatlock:7:A3").SetVal("77")
	mock.ExpectDel("seatlock:7:A1").SetVal(1)

	err := repo.Reserve(ctx, 7, []string{"A1", "A2", "A3"}, 42)
	require.Error(t, err)

	var conflict *repository.SeatConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, []string{"A2", "A3"}, conflict.Seats)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveReentrantRefreshesTTL(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	repo := repository.NewSeatLockRepo(rdb, lockTTL)
	ctx := context.Background()

	// The user already holds A1; a repeat reserve refreshes the lock
	// instead of failing, so page refreshes are idempotent.
	mock.ExpectSetNX("seatlock:7:A1", "42", lockTTL).SetVal(false)
	mock.ExpectGet("seatlock:7:A1").SetVal("42")
	mock.ExpectExpire("seatlock:7:A1", lockTTL).SetVal(true)
	mock.ExpectSAdd("reserved_seats:7", "A1").SetVal(0)
	mock.ExpectExpire("reserved_seats:7", lockTTL).SetVal(true)
	mock.Regexp().ExpectSet("seat_reservation:7:42", `\{"seat_ids":\["A1"\],"reserved_at":\d+\}`, lockTTL).SetVal("OK")

	err := repo.Reserve(ctx, 7, []string{"A1"}, 42)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveRetriesWhenHolderExpiresMidCall(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	repo := repository.NewSeatLockRepo(rdb, lockTTL)
	ctx := context.Background()

	// SETNX loses, but the holder's key vanishes before the GET: the
	// acquire is retried once and wins.
	mock.ExpectSetNX("seatlock:7:A1", "42", lockTTL).SetVal(false)
	mock.ExpectGet("seatlock:7:A1").RedisNil()
	mock.ExpectSetNX("seatlock:7:A1", "42", lockTTL).SetVal(true)
	mock.ExpectSAdd("reserved_seats:7", "A1").SetVal(1)
	mock.ExpectExpire("reserved_seats:7", lockTTL).SetVal(true)
	mock.Regexp().ExpectSet("seat_reservation:7:42", `\{"seat_ids":\["A1"\],"reserved_at":\d+\}`, lockTTL).SetVal("OK")

	err := repo.Reserve(ctx, 7, []string{"A1"}, 42)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseExplicitSeats(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	repo := repository.NewSeatLockRepo(rdb, lockTTL)
	ctx := context.Background()

	mock.ExpectDel("seat_reservation:7:42").SetVal(1)
	mock.ExpectEval(ownedDelete, []string{"seatlock:7:A1"}, "42").SetVal(int64(1))
	mock.ExpectEval(ownedDelete, []string{"seatlock:7:A2"}, "42").SetVal(int64(1))
	mock.ExpectSRem("reserved_seats:7", "A1", "A2").SetVal(2)

	err := repo.Release(ctx, 7, []string{"A1", "A2"}, 42)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseLeavesRivalsLockAlone(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	repo := repository.NewSeatLockRepo(rdb, lockTTL)
	ctx := context.Background()

	// A2's lock expired and user 99 re-acquired it; the stale release
	// from user 42 must only drop A1 and only unadvertise A1.
	mock.ExpectDel("seat_reservation:7:42").SetVal(0)
	mock.ExpectEval(ownedDelete, []string{"seatlock:7:A1"}, "42").SetVal(int64(1))
	mock.ExpectEval(ownedDelete, []string{"seatlock:7:A2"}, "42").SetVal(int64(0))
	mock.ExpectSRem("reserved_seats:7", "A1").SetVal(1)

	err := repo.Release(ctx, 7, []string{"A1", "A2"}, 42)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseFromReservationRecord(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	repo := repository.NewSeatLockRepo(rdb, lockTTL)
	ctx := context.Background()

	// No explicit seats: the user's reservation record drives the release.
	mock.ExpectGet("seat_reservation:7:42").SetVal(`{"seat_ids":["B3","B4"],"reserved_at":1700000000}`)
	mock.ExpectDel("seat_reservation:7:42").SetVal(1)
	mock.ExpectEval(ownedDelete, []string{"seatlock:7:B3"}, "42").SetVal(int64(1))
	mock.ExpectEval(ownedDelete, []string{"seatlock:7:B4"}, "42").SetVal(int64(1))
	mock.ExpectSRem("reserved_seats:7", "B3", "B4").SetVal(2)

	err := repo.Release(ctx, 7, nil, 42)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseWithNothingHeldIsNoop(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	repo := repository.NewSeatLockRepo(rdb, lockTTL)
	ctx := context.Background()

	mock.ExpectGet("seat_reservation:7:42").RedisNil()
	mock.ExpectDel("seat_reservation:7:42").SetVal(0)

	err := repo.Release(ctx, 7, nil, 42)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHeldBy(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	repo := repository.NewSeatLockRepo(rdb, lockTTL)
	ctx := context.Background()

	mock.ExpectGet("seat_reservation:7:42").SetVal(`{"seat_ids":["A1"],"reserved_at":1700000000}`)
	seats, err := repo.HeldBy(ctx, 7, 42)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1"}, seats)

	mock.ExpectGet("seat_reservation:7:43").RedisNil()
	seats, err = repo.HeldBy(ctx, 7, 43)
	require.NoError(t, err)
	assert.Nil(t, seats)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTryLockAndUnlock(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	repo := repository.NewSeatLockRepo(rdb, lockTTL)
	ctx := context.Background()

	mock.ExpectSetNX("mutex:release_expired_bookings", "locked", 300*time.Second).SetVal(true)
	won, err := repo.TryLock(ctx, "release_expired_bookings", 300*time.Second)
	require.NoError(t, err)
	assert.True(t, won)

	mock.ExpectSetNX("mutex:release_expired_bookings", "locked", 300*time.Second).SetVal(false)
	won, err = repo.TryLock(ctx, "release_expired_bookings", 300*time.Second)
	require.NoError(t, err)
	assert.False(t, won)

	mock.ExpectDel("mutex:release_expired_bookings").SetVal(1)
	require.NoError(t, repo.Unlock(ctx, "release_expired_bookings"))
	require.NoError(t, mock.ExpectationsWereMet())
}
