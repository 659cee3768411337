package providers

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Admission enforces a token bucket per (source, indicator) pair. Callers
// check Allow before issuing an upstream request; a false result maps to an
// immediate RateLimitError, no waiting.
type Admission struct {
	source   string
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewAdmission(source string, perMinute, burst int) *Admission {
	if perMinute <= 0 {
		perMinute = 30
	}
	if burst <= 0 {
		burst = 5
	}
	return &Admission{
		source:   source,
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow returns nil when a token is available for the indicator, or a
// *RateLimitError with a retry hint when the bucket is empty.
func (a *Admission) Allow(indicatorID string) error {
	a.mu.Lock()
	limiter, ok := a.limiters[indicatorID]
	if !ok {
		limiter = rate.NewLimiter(a.limit, a.burst)
		a.limiters[indicatorID] = limiter
	}
	a.mu.Unlock()

	if limiter.Allow() {
		return nil
	}
	reservation := limiter.Reserve()
	retryAfter := reservation.Delay()
	reservation.Cancel()
	if retryAfter <= 0 {
		retryAfter = time.Second
	}
	return &RateLimitError{Source: a.source, RetryAfter: retryAfter}
}
