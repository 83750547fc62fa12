// Package retry runs fallible operations under a bounded exponential
// backoff policy. Policies are plain values; nothing is kept between
// calls.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Policy describes how an operation is retried.
//
// The delay before retry n (n starting at 1) is
// min(Base * Factor^(n-1), Cap) plus a random duration in [0, Jitter).
type Policy struct {
	MaxAttempts int
	Base        time.Duration
	Factor      float64
	Cap         time.Duration
	Jitter      time.Duration

	// Retryable classifies failures. A nil Retryable retries everything.
	Retryable func(error) bool
	// OnRetry is called before each sleep.
	OnRetry func(attempt, remaining int, delay time.Duration, err error)

	// Sleep and Rand are replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
	Rand  func() float64
}

// Default is the backoff used when nothing is configured.
func Default() Policy {
	return Policy{
		MaxAttempts: 5,
		Base:        500 * time.Millisecond,
		Factor:      2.0,
		Cap:         30 * time.Second,
		Jitter:      100 * time.Millisecond,
	}
}

// ExhaustedError is returned when every attempt failed with a
// retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Delay returns the backoff before retry number attempt, without jitter.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.Base) * math.Pow(p.Factor, float64(attempt-1))
	if p.Cap > 0 && d > float64(p.Cap) {
		return p.Cap
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

func (p Policy) jitter() time.Duration {
	if p.Jitter <= 0 {
		return 0
	}
	r := rand.Float64
	if p.Rand != nil {
		r = p.Rand
	}
	return time.Duration(r() * float64(p.Jitter))
}

// Do runs op until it succeeds, fails with a non-retryable error, or
// MaxAttempts is reached.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	_, err := DoValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, err
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		delay := p.Delay(attempt) + p.jitter()
		if p.OnRetry != nil {
			p.OnRetry(attempt, attempts-attempt, delay, err)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return zero, errors.Join(lastErr, serr)
		}
	}
	return zero, &ExhaustedError{Attempts: attempts, Err: lastErr}
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
