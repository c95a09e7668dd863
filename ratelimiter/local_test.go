package ratelimiter

import (
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTokenBucket_RefillsAfterInterval(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	bucket := newTokenBucket(10, time.Minute, clock.Now)

	if !bucket.hasLocked(5) {
		t.Fatal("full bucket should have room for 5")
	}
	bucket.takeLocked(5)
	if bucket.remaining != 5 {
		t.Errorf("expected 5 remaining tokens, got %d", bucket.remaining)
	}
	if bucket.hasLocked(6) {
		t.Error("should not have room for more than remaining")
	}

	clock.Advance(time.Minute)
	if !bucket.hasLocked(10) {
		t.Error("bucket should be full again after the interval")
	}
}

func TestRateLimiter_TryConsume(t *testing.T) {
	rl := New(100, 10)

	if !rl.TryConsume(10) {
		t.Error("should be able to proceed with valid request")
	}

	smallTokenRL := New(10, 100)
	if !smallTokenRL.TryConsume(10) {
		t.Error("should be able to consume exactly available tokens")
	}
	if smallTokenRL.TryConsume(1) {
		t.Error("should not proceed when tokens exhausted")
	}

	smallReqRL := New(100, 1)
	if !smallReqRL.TryConsume(1) {
		t.Error("should be able to proceed with 1st request")
	}
	if smallReqRL.TryConsume(1) {
		t.Error("should not proceed when requests exhausted")
	}
}

func TestRateLimiter_FailedConsumeTakesNothing(t *testing.T) {
	rl := New(100, 1)

	if rl.TryConsume(500) {
		t.Fatal("token-heavy request should be refused")
	}
	if got := rl.RequestsBucket.remaining; got != 1 {
		t.Errorf("request bucket remaining = %d, want 1", got)
	}
	if got := rl.TokensBucket.remaining; got != 100 {
		t.Errorf("token bucket remaining = %d, want 100", got)
	}
}

func TestRateLimiter_ZeroLimitDisabled(t *testing.T) {
	rl := New(0, 2)

	for i := 0; i < 2; i++ {
		if !rl.TryConsume(1_000_000) {
			t.Fatalf("request %d refused with unlimited tokens", i)
		}
	}
	if rl.TryConsume(1) {
		t.Error("third request should hit the request limit")
	}
}

func TestRateLimiter_RefillWithClock(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := New(0, 1, WithClock(clock.Now))

	if !rl.TryConsume(1) {
		t.Fatal("first request should pass")
	}
	if rl.TryConsume(1) {
		t.Fatal("second request in the same minute should fail")
	}

	clock.Advance(45 * time.Second)
	if wait := rl.TimeUntilAvailable(1); wait != 15*time.Second {
		t.Errorf("TimeUntilAvailable = %v, want 15s", wait)
	}

	clock.Advance(15 * time.Second)
	if wait := rl.TimeUntilAvailable(1); wait != 0 {
		t.Errorf("TimeUntilAvailable after refill = %v, want 0", wait)
	}
	if !rl.TryConsume(1) {
		t.Error("request after a full minute should pass")
	}
}
