package retry

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"list-scheduler/internal/core/domain"
)

// Policy controls how a call is retried. Policies are cheap values built at
// the call site; they are never persisted.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// RetryableStatusCodes is the set of HTTP statuses worth retrying. A
	// failure carrying any other status, or no status at all, propagates
	// immediately without consuming further attempts.
	RetryableStatusCodes map[int]bool

	// BaseDelay and MaxDelay bound the exponential backoff between attempts.
	// Full jitter is applied: the actual delay is uniform in (0, backoff].
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultPolicy retries transient server and overload errors. Client errors
// other than 408/429 indicate a programming problem and fail fast.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		RetryableStatusCodes: map[int]bool{
			408: true,
			429: true,
			500: true,
			502: true,
			503: true,
			504: true,
		},
		BaseDelay: time.Second,
		MaxDelay:  30 * time.Second,
	}
}

// Do runs op up to policy.MaxAttempts times, backing off between retryable
// failures. Exhausting every attempt wraps the last failure in
// domain.ErrRetriesExhausted so callers can tell "gave up" apart from
// "not retryable".
func Do[T any](ctx context.Context, policy Policy, name string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = time.Second
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 30 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		status, ok := domain.StatusCode(err)
		if !ok || !policy.RetryableStatusCodes[status] {
			return zero, err
		}

		if attempt == policy.MaxAttempts {
			break
		}

		delay := backoffDelay(policy, attempt)
		log.Printf("Retrying %s after status %d (attempt %d/%d, waiting %v)",
			name, status, attempt, policy.MaxAttempts, delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	return zero, fmt.Errorf("%w for %s after %d attempts: %v",
		domain.ErrRetriesExhausted, name, policy.MaxAttempts, lastErr)
}

// backoffDelay computes the exponential delay for the given attempt with full
// jitter. Attempts are 1-based.
func backoffDelay(policy Policy, attempt int) time.Duration {
	backoff := policy.BaseDelay << uint(attempt-1)
	if backoff > policy.MaxDelay || backoff <= 0 {
		backoff = policy.MaxDelay
	}
	return time.Duration(rand.Int63n(int64(backoff))) + 1
}
