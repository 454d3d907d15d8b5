package resilience

import (
	"errors"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// ErrRateLimited is returned when a request exceeds the window quota.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateWindow is the fixed length of the rate limiting window.
const RateWindow = 60 * time.Second

// RateLimiterConfig configures a rate limiter.
type RateLimiterConfig struct {
	// Name identifies this rate limiter for metrics/logging.
	Name string
	// Quota is the number of requests allowed per window.
	// Zero or negative means unlimited.
	Quota int
	// OnLimit is called when a request is rate limited.
	OnLimit func(name string)
	// Clock supplies time; defaults to the real clock.
	Clock clock.Clock
}

// Decision is the outcome of a single admission check.
type Decision struct {
	// Allowed reports whether the request was admitted.
	Allowed bool
	// Unlimited reports whether the limiter has no quota configured.
	Unlimited bool
	// Limit is the configured window quota. Meaningless when Unlimited.
	Limit int
	// Remaining is the number of admissions left in the current window.
	Remaining int
	// RetryAfter is the time until the window rolls over. Set only on
	// rejection.
	RetryAfter time.Duration
}

// RateLimiter implements a fixed-window request counter. Admissions are
// counted against a 60-second window; when the window elapses the count
// resets and the window restarts at the observing call's time.
type RateLimiter struct {
	config RateLimiterConfig
	clock  clock.Clock

	mu          sync.Mutex
	windowStart time.Time
	count       int
}

// NewRateLimiter creates a new rate limiter. The first window starts at
// construction time.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Clock == nil {
		config.Clock = clock.RealClock{}
	}

	return &RateLimiter{
		config:      config,
		clock:       config.Clock,
		windowStart: config.Clock.Now(),
	}
}

// Allow performs one admission check. An admitted request is counted against
// the window before the decision is returned; a rejected request mutates
// nothing.
func (rl *RateLimiter) Allow() Decision {
	if rl.config.Quota <= 0 {
		return Decision{Allowed: true, Unlimited: true}
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	if now.Sub(rl.windowStart) >= RateWindow {
		rl.windowStart = now
		rl.count = 0
	}

	if rl.count >= rl.config.Quota {
		if rl.config.OnLimit != nil {
			rl.config.OnLimit(rl.config.Name)
		}
		return Decision{
			Limit:      rl.config.Quota,
			RetryAfter: rl.windowStart.Add(RateWindow).Sub(now),
		}
	}

	rl.count++
	return Decision{
		Allowed:   true,
		Limit:     rl.config.Quota,
		Remaining: rl.config.Quota - rl.count,
	}
}

// Execute runs fn if the window quota allows, returning ErrRateLimited
// otherwise.
func (rl *RateLimiter) Execute(fn func() error) error {
	if d := rl.Allow(); !d.Allowed {
		return ErrRateLimited
	}
	return fn()
}

// Quota returns the configured window quota.
func (rl *RateLimiter) Quota() int {
	return rl.config.Quota
}
