package providers

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket refilled continuously at
// requestsPerMinute. NewRateLimiter allows a burst of one minute's worth
// of tokens; NewIntervalLimiter allows none.
type RateLimiter struct {
	mu sync.Mutex

	perMinute  int
	rate       float64 // tokens per minute
	burst      float64
	tokens     float64
	lastUpdate time.Time

	consumed    int64
	waited      time.Duration
	last429Time time.Time
}

// RateLimiterStatus reports current limiter state.
type RateLimiterStatus struct {
	TokensAvailable int           `json:"tokens_available"`
	TokensLimit     int           `json:"tokens_limit"`
	TotalConsumed   int64         `json:"total_consumed"`
	TotalWaited     time.Duration `json:"total_waited"`
	Last429Time     time.Time     `json:"last_429_time,omitempty"`
}

// NewRateLimiter creates a limiter. Non-positive rates default to 150/min.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 150
	}
	return &RateLimiter{
		perMinute:  requestsPerMinute,
		rate:       float64(requestsPerMinute),
		burst:      float64(requestsPerMinute),
		tokens:     float64(requestsPerMinute),
		lastUpdate: time.Now(),
	}
}

// NewIntervalLimiter spaces calls at least interval apart. The first call
// does not wait. A non-positive interval returns nil, which never waits.
func NewIntervalLimiter(interval time.Duration) *RateLimiter {
	if interval <= 0 {
		return nil
	}
	rate := float64(time.Minute) / float64(interval)
	return &RateLimiter{
		perMinute:  int(rate),
		rate:       rate,
		burst:      1,
		tokens:     1,
		lastUpdate: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is done. A nil limiter
// never waits.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return nil
	}
	for {
		r.mu.Lock()
		r.refill()
		if r.tokens >= 1 {
			r.tokens--
			r.consumed++
			r.mu.Unlock()
			return nil
		}
		wait := r.untilNextToken()
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			r.mu.Lock()
			r.waited += wait
			r.mu.Unlock()
		}
	}
}

// TryConsume takes a token if one is available.
func (r *RateLimiter) TryConsume() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refill()
	if r.tokens >= 1 {
		r.tokens--
		r.consumed++
		return true
	}
	return false
}

// Record429 notes a rate-limit response. A positive retryAfter drains the
// bucket so the next Wait backs off.
func (r *RateLimiter) Record429(retryAfter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last429Time = time.Now()
	if retryAfter > 0 {
		r.tokens = 0
	}
}

// Status returns current limiter state.
func (r *RateLimiter) Status() RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refill()
	return RateLimiterStatus{
		TokensAvailable: int(r.tokens),
		TokensLimit:     r.perMinute,
		TotalConsumed:   r.consumed,
		TotalWaited:     r.waited,
		Last429Time:     r.last429Time,
	}
}

// refill must be called with mu held.
func (r *RateLimiter) refill() {
	now := time.Now()
	r.tokens += now.Sub(r.lastUpdate).Minutes() * r.rate
	r.lastUpdate = now
	if r.tokens > r.burst {
		r.tokens = r.burst
	}
}

// untilNextToken must be called with mu held.
func (r *RateLimiter) untilNextToken() time.Duration {
	perToken := float64(time.Minute) / r.rate
	return time.Duration((1 - r.tokens) * perToken)
}
