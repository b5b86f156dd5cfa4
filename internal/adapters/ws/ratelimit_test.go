package ws

import (
	"testing"
	"time"
)

func TestRateLimiterBlocksOverLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("c1") {
			t.Fatalf("attempt %d blocked; want allowed", i+1)
		}
	}
	if rl.Allow("c1") {
		t.Error("attempt over limit allowed; want blocked")
	}

	// Other connections have their own window.
	if !rl.Allow("c2") {
		t.Error("fresh connection blocked")
	}
}

func TestRateLimiterWindowExpires(t *testing.T) {
	rl := NewRateLimiter(1, 10*time.Millisecond)

	if !rl.Allow("c1") {
		t.Fatal("first attempt blocked")
	}
	if rl.Allow("c1") {
		t.Fatal("second attempt inside window allowed")
	}
	time.Sleep(15 * time.Millisecond)
	if !rl.Allow("c1") {
		t.Error("attempt after window expiry blocked")
	}
}

func TestRateLimiterForget(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	rl.Allow("c1")
	rl.Forget("c1")
	if !rl.Allow("c1") {
		t.Error("attempt after Forget blocked")
	}
}
