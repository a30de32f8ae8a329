package labels

import (
	"errors"
	"math"
	"time"
)

// RetryPolicy decides how a single resource is retried.
type RetryPolicy struct {
	// MaxAttempts is the number of attempts consumed by generic errors before
	// the resource is marked Failed. Default: 3
	MaxAttempts int `yaml:"max_attempts"`

	// BaseDelay is the first backoff; attempt i waits BaseDelay * 2^i.
	// Default: 1s
	BaseDelay time.Duration `yaml:"base_delay"`

	// DefaultRateLimitWait is used when a rate limit signal carries no duration.
	// Default: 60s
	DefaultRateLimitWait time.Duration `yaml:"default_rate_limit_wait"`

	// MaxRateLimitWaits caps rate limit waits per resource. Zero means unlimited.
	MaxRateLimitWaits int `yaml:"max_rate_limit_waits"`
}

// DefaultRetryPolicy returns the standard policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:          3,
		BaseDelay:            time.Second,
		DefaultRateLimitWait: 60 * time.Second,
	}
}

// Validate checks the policy.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return errors.New("retry policy: MaxAttempts must be at least 1")
	}
	if p.BaseDelay < 0 {
		return errors.New("retry policy: BaseDelay must not be negative")
	}
	if p.DefaultRateLimitWait <= 0 {
		return errors.New("retry policy: DefaultRateLimitWait must be positive")
	}
	if p.MaxRateLimitWaits < 0 {
		return errors.New("retry policy: MaxRateLimitWaits must not be negative")
	}
	return nil
}

// Backoff returns the wait after the attempt with the given zero-based index
// failed. It saturates at the largest representable duration.
func (p RetryPolicy) Backoff(attemptIndex int) time.Duration {
	delay := p.BaseDelay
	for i := 0; i < attemptIndex && delay > 0; i++ {
		if delay > math.MaxInt64/2 {
			return math.MaxInt64
		}
		delay *= 2
	}
	return delay
}

// RateLimitWait returns how long to wait on a rate limit signal. A server
// wait is used whenever one was given, including zero.
func (p RetryPolicy) RateLimitWait(retryAfter time.Duration, set bool) time.Duration {
	if set || retryAfter > 0 {
		return max(retryAfter, 0)
	}
	return p.DefaultRateLimitWait
}

// rateLimitCapReached reports whether no further rate limit waits are allowed.
func (p RetryPolicy) rateLimitCapReached(waits int) bool {
	return p.MaxRateLimitWaits > 0 && waits >= p.MaxRateLimitWaits
}
