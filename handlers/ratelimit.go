package handlers

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const maxTrackedKeys = 10000

// rateLimiter hands out one token bucket per key (client IP or username).
type rateLimiter struct {
	sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// newRateLimiter allows n events per period per key, all of them usable at
// once.
func newRateLimiter(n int, period time.Duration) *rateLimiter {
	return &rateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Every(period / time.Duration(n)),
		burst:    n,
	}
}

// Allow consumes one event for key and reports whether it was permitted.
func (r *rateLimiter) Allow(key string) bool {
	r.Lock()
	defer r.Unlock()

	l, ok := r.limiters[key]
	if !ok {
		// Full reset bounds memory; a reset key just gets a fresh bucket.
		if len(r.limiters) >= maxTrackedKeys {
			r.limiters = make(map[string]*rate.Limiter)
		}
		l = rate.NewLimiter(r.limit, r.burst)
		r.limiters[key] = l
	}
	return l.Allow()
}

func getClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
