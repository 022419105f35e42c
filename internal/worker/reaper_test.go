package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExpirer struct {
	mu      sync.Mutex
	expired []uint64
	fail    map[uint64]error
}

func (f *fakeExpirer) ExpireBooking(ctx context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[id]; err != nil {
		return err
	}
	f.expired = append(f.expired, id)
	return nil
}

func (f *fakeExpirer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.expired)
}

type fakeLocker struct {
	mu       sync.Mutex
	won      bool
	err      error
	locked   int
	unlocked int
}

func (f *fakeLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locked++
	return f.won, f.err
}

func (f *fakeLocker) Unlock(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unlocked++
	return nil
}

func (f *fakeLocker) lockCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.locked
}

func listOf(ids ...uint64) func(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	return func(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
		return ids, nil
	}
}

func TestSweepExpiresEveryOverdueBooking(t *testing.T) {
	svc := &fakeExpirer{}
	locks := &fakeLocker{won: true}
	r := NewReaper(svc, listOf(3, 1, 2), locks, time.Second)

	r.Sweep(context.Background())

	assert.Equal(t, []uint64{3, 1, 2}, svc.expired)
	assert.Equal(t, 1, locks.locked)
	assert.Equal(t, 1, locks.unlocked, "sweep mutex must be released")
}

func TestSweepSkipsWhenAnotherReplicaHoldsTheMutex(t *testing.T) {
	svc := &fakeExpirer{}
	locks := &fakeLocker{won: false}
	r := NewReaper(svc, listOf(1), locks, time.Second)

	r.Sweep(context.Background())

	assert.Empty(t, svc.expired)
	assert.Zero(t, locks.unlocked, "a lock we did not take must not be released")
}

func TestSweepContinuesPastFailingBooking(t *testing.T) {
	svc := &fakeExpirer{fail: map[uint64]error{2: errors.New("deadlock")}}
	locks := &fakeLocker{won: true}
	r := NewReaper(svc, listOf(1, 2, 3), locks, time.Second)

	r.Sweep(context.Background())

	// 2 fails but 3 is still processed.
	assert.Equal(t, []uint64{1, 3}, svc.expired)
}

func TestStartStop(t *testing.T) {
	svc := &fakeExpirer{}
	locks := &fakeLocker{won: true}
	r := NewReaper(svc, listOf(7), locks, 10*time.Millisecond)

	r.Start()
	require.Eventually(t, func() bool { return locks.lockCount() >= 2 }, time.Second, 5*time.Millisecond)
	r.Stop()

	swept := svc.count()
	assert.GreaterOrEqual(t, swept, 1)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, swept, svc.count(), "no sweeps after Stop")
}
