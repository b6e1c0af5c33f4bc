package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"device-loan-backend/internal/clock"
	"device-loan-backend/internal/logger"
)

// RateLimitExceededError is returned to callers that used up their window.
type RateLimitExceededError struct {
	RetryAfter time.Duration
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Err returns a *RateLimitExceededError for rejected decisions, nil otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &RateLimitExceededError{RetryAfter: d.RetryAfter}
}

type counter struct {
	count   int
	resetAt time.Time
}

// Limiter counts requests per key in fixed windows.
type Limiter struct {
	maxRequests int
	window      time.Duration
	clock       clock.Clock

	mu       sync.Mutex
	counters map[string]*counter
}

func NewLimiter(maxRequests int, window time.Duration, c clock.Clock) *Limiter {
	if c == nil {
		c = clock.NewSystem()
	}
	return &Limiter{
		maxRequests: maxRequests,
		window:      window,
		clock:       c,
		counters:    make(map[string]*counter),
	}
}

func (l *Limiter) MaxRequests() int {
	return l.maxRequests
}

// Allow counts one request against key.
func (l *Limiter) Allow(key string) Decision {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[key]
	if !ok || !now.Before(c.resetAt) {
		c = &counter{count: 1, resetAt: now.Add(l.window)}
		l.counters[key] = c
		return l.decision(c, true, now)
	}

	if c.count >= l.maxRequests {
		return l.decision(c, false, now)
	}

	c.count++
	return l.decision(c, true, now)
}

func (l *Limiter) decision(c *counter, allowed bool, now time.Time) Decision {
	d := Decision{
		Allowed:   allowed,
		Limit:     l.maxRequests,
		Remaining: max(l.maxRequests-c.count, 0),
		ResetAt:   c.resetAt,
	}
	if !allowed {
		d.RetryAfter = c.resetAt.Sub(now)
	}
	return d
}

// Release gives back one request for key in the window that ends at resetAt,
// the ResetAt of the Decision that counted it. It never drops below zero and
// ignores windows that already ended or were replaced.
func (l *Limiter) Release(key string, resetAt time.Time) {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[key]
	if !ok || !now.Before(c.resetAt) || !c.resetAt.Equal(resetAt) {
		return
	}
	if c.count > 0 {
		c.count--
	}
}

// Count reports the live count for key, zero when there is none.
func (l *Limiter) Count(key string) int {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[key]
	if !ok || !now.Before(c.resetAt) {
		return 0
	}
	return c.count
}

// Sweep drops counters whose window ended before now and returns how many
// were removed.
func (l *Limiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, c := range l.counters {
		if !now.Before(c.resetAt) {
			delete(l.counters, key)
			removed++
		}
	}
	return removed
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counters)
}

// StartSweeper runs Sweep every interval until ctx is cancelled.
func (l *Limiter) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Debug("Rate limit sweeper stopped")
				return
			case <-ticker.C:
				if n := l.Sweep(l.clock.Now()); n > 0 {
					logger.Debug("Swept expired rate limit counters", "removed", n)
				}
			}
		}
	}()
}
