package agent

import (
	"testing"
	"time"
)

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("actor-1") {
			t.Fatalf("Request %d should be allowed", i)
		}
	}
	if rl.Allow("actor-1") {
		t.Errorf("Request over the limit should be rejected")
	}
}

func TestRateLimiterIsolatesKeys(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)

	if !rl.Allow("actor-1") {
		t.Fatalf("First request for actor-1 should pass")
	}
	if rl.Allow("actor-1") {
		t.Errorf("Second request for actor-1 should be rejected")
	}
	if !rl.Allow("actor-2") {
		t.Errorf("actor-2 must not be throttled by actor-1's usage")
	}
}

func TestRateLimiterWindowSlides(t *testing.T) {
	rl := NewRateLimiter(1, 50*time.Millisecond)

	if !rl.Allow("actor-1") {
		t.Fatalf("First request should pass")
	}
	if rl.Allow("actor-1") {
		t.Fatalf("Second immediate request should be rejected")
	}

	time.Sleep(60 * time.Millisecond)
	if !rl.Allow("actor-1") {
		t.Errorf("Request after the window should pass")
	}
}
