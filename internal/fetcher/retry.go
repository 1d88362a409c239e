package fetcher

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// SleepFunc waits for d or until the context is cancelled. Injectable so
// tests run retry schedules instantly.
type SleepFunc func(ctx context.Context, d time.Duration) error

func realSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryPolicy bounds retries of transport-level failures with exponential
// backoff. A permanent error stops the schedule immediately; a 4xx status is
// retried at most once regardless of the attempt budget.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Sleep       SleepFunc
}

// DefaultRetry matches the upstream request-shaping defaults: three attempts
// with a doubling one-second base delay.
func DefaultRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}
}

// Do invokes fn until it succeeds or the attempt budget is spent.
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	delay := p.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = realSleep
	}

	var lastErr error
	clientErrs := 0
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if IsPermanent(lastErr) {
			return lastErr
		}

		var se *StatusError
		if errors.As(lastErr, &se) && se.ClientError() {
			clientErrs++
			if clientErrs > 1 {
				break
			}
		}

		if attempt == attempts-1 {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
		delay *= 2
	}

	return fmt.Errorf("giving up after retries: %w", lastErr)
}

// JitterDelay is the randomized pause inserted before each scrape request to
// space out upstream load.
type JitterDelay struct {
	Min   time.Duration
	Max   time.Duration
	Rand  *rand.Rand
	Sleep SleepFunc
}

// DefaultJitter waits between two and five seconds.
func DefaultJitter() JitterDelay {
	return JitterDelay{Min: 2 * time.Second, Max: 5 * time.Second}
}

// Wait blocks for a pseudo-random duration in [Min, Max].
func (j JitterDelay) Wait(ctx context.Context) error {
	if j.Max <= 0 || j.Max < j.Min {
		return nil
	}
	sleep := j.Sleep
	if sleep == nil {
		sleep = realSleep
	}

	d := j.Min
	if span := j.Max - j.Min; span > 0 {
		if j.Rand != nil {
			d += time.Duration(j.Rand.Int63n(int64(span) + 1))
		} else {
			d += time.Duration(rand.Int63n(int64(span) + 1))
		}
	}
	return sleep(ctx, d)
}
