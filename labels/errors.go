package labels

import (
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/horus/core"
)

var (
	// ErrNotFound is returned by a Source when the feature does not exist upstream.
	ErrNotFound = errors.New("feature not found")

	// ErrSourceRequired is returned when a fetcher is constructed without a source.
	ErrSourceRequired = errors.New("label source required")

	// ErrLimiterRequired is returned when a fetcher is constructed without a rate limiter.
	ErrLimiterRequired = errors.New("rate limiter required")

	// ErrFetcherRequired is returned when a batch fetcher is constructed without a fetcher.
	ErrFetcherRequired = errors.New("fetcher required")

	// ErrResolverRequired is returned when an HTTP source has no resolver.
	ErrResolverRequired = errors.New("source resolver required")
)

// RateLimitedError is returned by a Source when the upstream asks the caller to slow down.
type RateLimitedError struct {
	// RetryAfter is the server-indicated wait.
	RetryAfter time.Duration
	// RetryAfterSet distinguishes an explicit zero wait from a missing one.
	RetryAfterSet bool
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfterSet || e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// Is makes a RateLimitedError match core.ErrUpstreamRateLimited.
func (e *RateLimitedError) Is(target error) bool {
	return target == core.ErrUpstreamRateLimited
}

// StatusError reports an unexpected HTTP status from the label service.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}
