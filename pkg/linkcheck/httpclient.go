package linkcheck

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// HTTPClient matches the Do method of *http.Client so tests can inject a
// double.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// hostLimiter spaces requests to one host at least interval apart.
type hostLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

// wait blocks until the next request slot or until ctx is done.
func (limiter *hostLimiter) wait(ctx context.Context) error {
	limiter.mu.Lock()
	now := time.Now()
	slot := limiter.next
	if slot.Before(now) {
		slot = now
	}
	limiter.next = slot.Add(limiter.interval)
	limiter.mu.Unlock()

	delay := time.Until(slot)
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// hostLimiters hands out one limiter per host.
type hostLimiters struct {
	mu       sync.Mutex
	interval time.Duration
	limiters map[string]*hostLimiter
}

func newHostLimiters(interval time.Duration) *hostLimiters {
	return &hostLimiters{
		interval: interval,
		limiters: make(map[string]*hostLimiter),
	}
}

func (limiters *hostLimiters) get(host string) *hostLimiter {
	limiters.mu.Lock()
	defer limiters.mu.Unlock()

	if limiter, ok := limiters.limiters[host]; ok {
		return limiter
	}
	limiter := &hostLimiter{interval: limiters.interval}
	limiters.limiters[host] = limiter
	return limiter
}
