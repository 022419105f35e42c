package gateway

import (
	"context"
	"time"
)

// RetryPolicy is a bounded retry with exponential backoff: attempt n
// (zero-based) sleeps Base<<n before running.  It exists as its own
// value rather than inline loops so the same policy can wrap any
// provider call and so tests can inject a recording sleep func instead
// of waiting out real backoff.
type RetryPolicy struct {
	Attempts int                                       // total attempts, including the first
	Base     time.Duration                             // backoff before the second attempt
	Sleep    func(ctx context.Context, d time.Duration) error // injectable; nil means real sleep
}

// DefaultRetryPolicy matches the production gateway configuration:
// five attempts backing off 1s, 2s, 4s, 8s between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 5, Base: time.Second}
}

// Do runs fn until it succeeds, attempts are exhausted, or the context
// is cancelled mid-backoff.  The last error is returned when all
// attempts fail.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = realSleep
	}
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var last error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if err := sleep(ctx, p.Base<<(i-1)); err != nil {
				return err
			}
		}
		if last = fn(); last == nil {
			return nil
		}
	}
	return last
}

func realSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
