package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// busyPolicy bounds retries of writes that hit a locked database.
type busyPolicy struct {
	attempts int
	base     time.Duration
	maxDelay time.Duration
}

var defaultBusyPolicy = busyPolicy{attempts: 5, base: 10 * time.Millisecond, maxDelay: 250 * time.Millisecond}

// isBusy reports whether err is SQLite lock contention worth retrying.
// Cancellation never is.
func isBusy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range []string{"database is locked", "sqlite_busy", "database table is locked", "unique constraint failed: builds.partition, builds.revision"} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// backoff returns 2^attempt * base, capped at maxDelay.
func (p busyPolicy) backoff(attempt int) time.Duration {
	delay := p.base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= p.maxDelay {
			return p.maxDelay
		}
	}
	return delay
}

// waitForBackoff sleeps for delay or returns early if ctx is cancelled.
func waitForBackoff(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// withBusyRetry runs fn until it succeeds, fails with a non-busy error, or
// the policy runs out of attempts.
func withBusyRetry(ctx context.Context, p busyPolicy, fn func() error) error {
	var err error
	for attempt := 0; attempt < p.attempts; attempt++ {
		if err = fn(); !isBusy(err) {
			return err
		}
		if werr := waitForBackoff(ctx, p.backoff(attempt)); werr != nil {
			return werr
		}
	}
	return err
}
