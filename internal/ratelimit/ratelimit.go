package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a minimum spacing between outbound calls to each protected
// external service. State is keyed by service name, created lazily on first
// use, and lives for the process lifetime.
//
// Each key is backed by a golang.org/x/time/rate limiter with burst 1, so the
// reserve-then-wait step is atomic: concurrent callers against the same key
// serialize through the limiter instead of racing past a check-then-update.
type Limiter struct {
	mu        sync.Mutex
	services  map[string]*service
	intervals map[string]time.Duration
	fallback  time.Duration
}

type service struct {
	limiter *rate.Limiter

	mu       sync.Mutex
	lastCall time.Time
}

// New creates a limiter with a fallback minimum spacing applied to keys that
// have no explicit interval configured.
func New(fallback time.Duration) *Limiter {
	return &Limiter{
		services:  make(map[string]*service),
		intervals: make(map[string]time.Duration),
		fallback:  fallback,
	}
}

// SetInterval configures the minimum spacing for a service key. It must be
// called before the key's first Wait; later calls do not retune the existing
// limiter.
func (l *Limiter) SetInterval(key string, interval time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.intervals[key] = interval
}

// Wait blocks until at least the configured interval has elapsed since the
// previous call start for the given key, then records the call. The context
// cancels the wait.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	svc := l.serviceFor(key)

	if err := svc.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", key, err)
	}

	svc.mu.Lock()
	svc.lastCall = time.Now()
	svc.mu.Unlock()

	return nil
}

// LastCall reports when the key's most recent call was admitted. The zero
// time and false mean the key has not been used yet.
func (l *Limiter) LastCall(key string) (time.Time, bool) {
	l.mu.Lock()
	svc, exists := l.services[key]
	l.mu.Unlock()

	if !exists {
		return time.Time{}, false
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.lastCall, !svc.lastCall.IsZero()
}

func (l *Limiter) serviceFor(key string) *service {
	l.mu.Lock()
	defer l.mu.Unlock()

	if svc, exists := l.services[key]; exists {
		return svc
	}

	interval, exists := l.intervals[key]
	if !exists {
		interval = l.fallback
	}

	svc := &service{limiter: rate.NewLimiter(rate.Every(interval), 1)}
	l.services[key] = svc
	return svc
}
