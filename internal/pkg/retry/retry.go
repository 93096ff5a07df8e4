package retry

import (
	"context"
	"errors"
	"time"
)

// Policy bounds the retry loop around an external call site.
type Policy struct {
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.MinBackoff <= 0 {
		p.MinBackoff = 200 * time.Millisecond
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 5 * time.Second
	}
	return p
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent marks an error as non-transient so Do surfaces it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Do runs fn with exponential backoff until it succeeds, returns a
// permanent error, the context is cancelled, or attempts are exhausted.
// The last underlying cause is returned.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	policy = policy.withDefaults()
	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, backoff(policy, attempt-1)); err != nil {
				return lastErr
			}
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		var pe *permanentError
		if errors.As(err, &pe) {
			return pe.err
		}
		lastErr = err
	}
	return lastErr
}

func backoff(policy Policy, attempt int) time.Duration {
	d := policy.MinBackoff << uint(attempt)
	if d > policy.MaxBackoff || d <= 0 {
		d = policy.MaxBackoff
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
