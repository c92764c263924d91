package server

import (
	"sync"
	"time"
)

const rateWindow = time.Minute

// RateLimiter implements per-client rate limiting with a sliding one minute window
type RateLimiter struct {
	limits            map[string][]time.Time
	maxRequestsPerMin int
	mu                sync.Mutex
	cleanupInterval   time.Duration
	stopCleanup       chan struct{}
	stopOnce          sync.Once
	now               func() time.Time
}

// NewRateLimiter creates a new rate limiter and starts its cleanup loop
func NewRateLimiter(maxRequestsPerMinute int) *RateLimiter {
	rl := &RateLimiter{
		limits:            make(map[string][]time.Time),
		maxRequestsPerMin: maxRequestsPerMinute,
		cleanupInterval:   5 * time.Minute,
		stopCleanup:       make(chan struct{}),
		now:               time.Now,
	}

	go rl.startCleanup()

	return rl
}

// CheckLimit reports whether a request from client is allowed and records it if so
func (rl *RateLimiter) CheckLimit(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	requests := prune(rl.limits[client], now)

	if len(requests) >= rl.maxRequestsPerMin {
		rl.limits[client] = requests
		return false
	}

	rl.limits[client] = append(requests, now)
	return true
}

// RetryAfter returns the number of seconds until client may send again
func (rl *RateLimiter) RetryAfter(client string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	requests := rl.limits[client]
	if len(requests) == 0 {
		return 0
	}

	wait := rateWindow - rl.now().Sub(requests[0])
	if wait <= 0 {
		return 0
	}
	// Round up to whole seconds
	return int((wait + time.Second - 1) / time.Second)
}

func (rl *RateLimiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanup drops clients without requests in the current window
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for client, requests := range rl.limits {
		requests = prune(requests, now)
		if len(requests) == 0 {
			delete(rl.limits, client)
		} else {
			rl.limits[client] = requests
		}
	}
}

// Stop stops the cleanup goroutine. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}

func prune(requests []time.Time, now time.Time) []time.Time {
	valid := requests[:0]
	for _, t := range requests {
		if now.Sub(t) < rateWindow {
			valid = append(valid, t)
		}
	}
	return valid
}
