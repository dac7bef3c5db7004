// Package retry runs calls to external collaborators with bounded attempts,
// a per-attempt timeout and capped exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Policy struct {
	Attempts int
	Timeout  time.Duration // per attempt; 0 disables
	Base     time.Duration
	Max      time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Attempts: 3,
		Timeout:  30 * time.Second,
		Base:     time.Second,
		Max:      10 * time.Second,
	}
}

// Backoff is the wait after the given 1-based attempt: min(Base*2^attempt, Max).
func (p Policy) Backoff(attempt int) time.Duration {
	d := p.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.Max > 0 && d >= p.Max {
			return p.Max
		}
	}
	return d
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
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

// ExhaustedError is returned after the last attempt failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do calls fn until it succeeds, returns a Permanent error, the attempts run
// out, or ctx is done. Each attempt gets its own timeout context.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := max(1, p.Attempts)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = runAttempt(ctx, p.Timeout, fn)
		if lastErr == nil {
			return nil
		}
		if pe, ok := lastErr.(*permanentError); ok {
			return pe.err
		}
		if IsPermanent(lastErr) {
			return lastErr
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(p.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return &ExhaustedError{Attempts: attempts, Err: lastErr}
}

func runAttempt(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}
