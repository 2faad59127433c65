package handlers

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRateLimiter(t *testing.T) {
	limiter := newRateLimiter(5, time.Hour)
	ip := "127.0.0.1"

	// 1. The whole burst is available up front
	for i := 0; i < 5; i++ {
		if !limiter.Allow(ip) {
			t.Fatalf("Expected request %d to be allowed", i+1)
		}
	}

	// 2. The 6th within the period is refused
	if limiter.Allow(ip) {
		t.Errorf("Expected IP to be limited after 5 requests")
	}

	// 3. Other keys are independent
	if !limiter.Allow("10.0.0.5") {
		t.Errorf("Expected a different IP to be allowed")
	}
}

func TestRateLimiterParallel(t *testing.T) {
	limiter := newRateLimiter(10, time.Hour)
	ip := "10.0.0.1"

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow(ip) {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != 10 {
		t.Errorf("Expected exactly 10 allowed requests, got %d", got)
	}
}
