// Package worker contains the background expiry reaper.  The reaper is
// the safety net of the booking lifecycle: whatever clients and
// webhooks fail to clean up, a sweep eventually moves every overdue
// PENDING booking to EXPIRED and frees its seats.
package worker

import (
	"context"
	"log"
	"time"
)

// sweepMutex is the named lock that keeps sweeps single-flight across
// replicas.  Its TTL caps how long a crashed sweeper can block others.
const (
	sweepMutex    = "release_expired_bookings"
	sweepMutexTTL = 300 * time.Second
	sweepBatch    = 100
)

// BookingExpirer is the slice of the booking service the reaper needs.
type BookingExpirer interface {
	ExpireBooking(ctx context.Context, bookingID uint64) error
}

// Locker is the Redis-backed mutex used to single-flight sweeps.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, name string) error
}

// Reaper periodically expires overdue PENDING bookings.  Every interval
// it tries to take the sweep mutex; the replica that wins lists overdue
// bookings and drives each through the expiry transition one at a time,
// so one poisoned booking cannot stall the rest of the batch.
type Reaper struct {
	svc      BookingExpirer
	list     func(ctx context.Context, now time.Time, limit int) ([]uint64, error)
	locks    Locker
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewReaper builds a reaper.  list must return the ids of PENDING
// bookings whose deadline has passed, oldest first.
func NewReaper(svc BookingExpirer, list func(ctx context.Context, now time.Time, limit int) ([]uint64, error), locks Locker, interval time.Duration) *Reaper {
	return &Reaper{
		svc:      svc,
		list:     list,
		locks:    locks,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the sweep loop in its own goroutine and returns
// immediately.  One sweep runs right away so a restarted server clears
// backlog without waiting out the first interval.
func (r *Reaper) Start() {
	go func() {
		defer close(r.doneCh)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		r.sweep()
		for {
			select {
			case <-r.stopCh:
				return
			case <-ticker.C:
				r.sweep()
			}
		}
	}()
}

// Stop signals the loop to exit and waits for the in-flight sweep to
// finish.
func (r *Reaper) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

// Sweep runs one pass synchronously.  Exposed so tests and operational
// tooling can trigger a sweep without the ticker.
func (r *Reaper) Sweep(ctx context.Context) {
	won, err := r.locks.TryLock(ctx, sweepMutex, sweepMutexTTL)
	if err != nil {
		log.Printf("[REAPER] sweep mutex: %v", err)
		return
	}
	if !won {
		return // another replica is sweeping
	}
	defer func() {
		if err := r.locks.Unlock(ctx, sweepMutex); err != nil {
			log.Printf("[REAPER] sweep mutex release: %v", err)
		}
	}()

	ids, err := r.list(ctx, time.Now().UTC(), sweepBatch)
	if err != nil {
		log.Printf("[REAPER] list expired bookings: %v", err)
		return
	}
	for _, id := range ids {
		if err := r.svc.ExpireBooking(ctx, id); err != nil {
			log.Printf("[REAPER] expire booking %d: %v", id, err)
		}
	}
	if len(ids) > 0 {
		log.Printf("[REAPER] swept %d expired bookings", len(ids))
	}
}

func (r *Reaper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), r.interval*4)
	defer cancel()
	r.Sweep(ctx)
}
