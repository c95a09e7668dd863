package ratelimiter

import (
	"sync"
	"time"
)

// RateLimiter limits both tokens and requests per minute. A request passes
// only when both buckets have room.
type RateLimiter struct {
	TokensBucket   *TokenBucket
	RequestsBucket *TokenBucket
}

// Ensure RateLimiter implements Limiter.
var _ Limiter = (*RateLimiter)(nil)

// Option configures a RateLimiter.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New creates a limiter refilled every minute. A zero limit disables that
// dimension.
func New(tokensPerMinute, requestsPerMinute int, opts ...Option) *RateLimiter {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	return &RateLimiter{
		TokensBucket:   newTokenBucket(tokensPerMinute, time.Minute, o.now),
		RequestsBucket: newTokenBucket(requestsPerMinute, time.Minute, o.now),
	}
}

// TryConsume atomically checks capacity and consumes tokens if available.
// Nothing is consumed when either bucket is short.
func (rl *RateLimiter) TryConsume(numTokens int) bool {
	rl.TokensBucket.mu.Lock()
	defer rl.TokensBucket.mu.Unlock()
	rl.RequestsBucket.mu.Lock()
	defer rl.RequestsBucket.mu.Unlock()

	if !rl.TokensBucket.hasLocked(numTokens) || !rl.RequestsBucket.hasLocked(1) {
		return false
	}
	rl.TokensBucket.takeLocked(numTokens)
	rl.RequestsBucket.takeLocked(1)
	return true
}

// TimeUntilAvailable returns how long until the specified tokens would be available.
// This does not modify state - use for informational purposes.
func (rl *RateLimiter) TimeUntilAvailable(tokens int) time.Duration {
	tokenWait := rl.TokensBucket.TimeUntilAvailable(tokens)
	requestWait := rl.RequestsBucket.TimeUntilAvailable(1)
	if tokenWait > requestWait {
		return tokenWait
	}
	return requestWait
}

// TokenBucket implements a token bucket rate limit algorithm with a full
// refill at the end of each interval.
type TokenBucket struct {
	mu             sync.Mutex
	capacity       int
	remaining      int
	refillInterval time.Duration
	lastRefill     time.Time
	now            func() time.Time
}

func newTokenBucket(capacity int, refillInterval time.Duration, now func() time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:       capacity,
		remaining:      capacity,
		refillInterval: refillInterval,
		lastRefill:     now(),
		now:            now,
	}
}

func (tb *TokenBucket) refillLocked() {
	now := tb.now()
	if now.Sub(tb.lastRefill) >= tb.refillInterval {
		tb.remaining = tb.capacity
		tb.lastRefill = now
	}
}

func (tb *TokenBucket) hasLocked(tokens int) bool {
	if tb.capacity <= 0 {
		return true
	}
	tb.refillLocked()
	return tokens <= tb.remaining
}

func (tb *TokenBucket) takeLocked(tokens int) {
	if tb.capacity <= 0 {
		return
	}
	tb.remaining -= tokens
}

// TimeUntilAvailable returns how long until tokens would be available (read-only).
func (tb *TokenBucket) TimeUntilAvailable(tokens int) time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if tb.capacity <= 0 {
		return 0
	}

	elapsed := tb.now().Sub(tb.lastRefill)
	if elapsed >= tb.refillInterval || tokens <= tb.remaining {
		return 0
	}
	return tb.refillInterval - elapsed
}
