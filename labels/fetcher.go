// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package labels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/horus/core"
	"github.com/poiesic/horus/metrics"
	"github.com/poiesic/horus/ratelimit"
)

// TaskState is the lifecycle state of a single feature fetch.
type TaskState int

const (
	TaskPending TaskState = iota
	TaskInFlight
	TaskFound
	TaskNotFound
	TaskFailed
)

func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskInFlight:
		return "in_flight"
	case TaskFound:
		return "found"
	case TaskNotFound:
		return "not_found"
	case TaskFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Terminal reports whether no further attempts will be made.
func (s TaskState) Terminal() bool {
	return s == TaskFound || s == TaskNotFound || s == TaskFailed
}

// Task tracks one resource through the fetcher.
type Task struct {
	ResourceID int
	// Attempts counts attempts consumed; rate limited calls do not consume one.
	Attempts int
	State    TaskState
}

// Result is the terminal outcome of Fetch.
type Result struct {
	Task
	Payload        *Payload // set when State is TaskFound
	RateLimitWaits int
	Err            error // set when State is TaskFailed
}

// Limiter gates each attempt. *ratelimit.SlidingWindow satisfies it.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// Fetcher resolves one feature to a terminal outcome under a RetryPolicy.
type Fetcher struct {
	source  Source
	limiter Limiter
	policy  RetryPolicy
	clock   ratelimit.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithPolicy sets the retry policy. Default is DefaultRetryPolicy().
func WithPolicy(policy RetryPolicy) FetcherOption {
	return func(f *Fetcher) {
		f.policy = policy
	}
}

// WithClock sets the clock used for backoff waits.
func WithClock(clock ratelimit.Clock) FetcherOption {
	return func(f *Fetcher) {
		if clock != nil {
			f.clock = clock
		}
	}
}

// WithMetrics enables fetch instrumentation.
func WithMetrics(m *metrics.Metrics) FetcherOption {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFetcher creates a Fetcher. Every attempt passes through limiter first.
func NewFetcher(source Source, limiter Limiter, opts ...FetcherOption) (*Fetcher, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	if limiter == nil {
		return nil, ErrLimiterRequired
	}

	f := &Fetcher{
		source:  source,
		limiter: limiter,
		policy:  DefaultRetryPolicy(),
		clock:   ratelimit.RealClock{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if err := f.policy.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Fetch resolves one feature. It never returns an error of its own: failures,
// including context cancellation, come back as a TaskFailed result.
func (f *Fetcher) Fetch(ctx context.Context, datasetID string, unit, index int) Result {
	result := Result{Task: Task{ResourceID: index, State: TaskInFlight}}

	for {
		if err := f.limiter.Acquire(ctx); err != nil {
			return f.finish(ctx, result, TaskFailed, nil, err)
		}

		payload, err := f.source.FetchFeature(ctx, datasetID, unit, index)

		var rateLimited *RateLimitedError
		switch {
		case err == nil:
			result.Attempts++
			return f.finish(ctx, result, TaskFound, payload, nil)

		case errors.Is(err, ErrNotFound):
			result.Attempts++
			return f.finish(ctx, result, TaskNotFound, nil, nil)

		case ctx.Err() != nil:
			return f.finish(ctx, result, TaskFailed, nil, ctx.Err())

		case errors.As(err, &rateLimited):
			if f.policy.rateLimitCapReached(result.RateLimitWaits) {
				return f.finish(ctx, result, TaskFailed, nil, fmt.Errorf("%w: feature %d still rate limited after %d waits",
					core.ErrUpstreamUnavailable, index, result.RateLimitWaits))
			}
			result.RateLimitWaits++
			f.metrics.IncRateLimitWait()
			if err := f.sleep(ctx, f.policy.RateLimitWait(rateLimited.RetryAfter, rateLimited.RetryAfterSet)); err != nil {
				return f.finish(ctx, result, TaskFailed, nil, err)
			}

		default:
			result.Attempts++
			if result.Attempts >= f.policy.MaxAttempts {
				return f.finish(ctx, result, TaskFailed, nil, fmt.Errorf("%w: feature %d after %d attempts: %w",
					core.ErrUpstreamUnavailable, index, result.Attempts, err))
			}
			f.metrics.IncRetry()
			f.logger.Debug("fetch failed, will retry",
				"feature", index, "attempt", result.Attempts, "maxAttempts", f.policy.MaxAttempts, "err", err)
			if err := f.sleep(ctx, f.policy.Backoff(result.Attempts-1)); err != nil {
				return f.finish(ctx, result, TaskFailed, nil, err)
			}
		}
	}
}

func (f *Fetcher) finish(ctx context.Context, result Result, state TaskState, payload *Payload, err error) Result {
	result.State = state
	result.Payload = payload
	result.Err = err
	f.metrics.ObserveFetch(state.String())
	if state == TaskFailed && ctx.Err() == nil {
		f.logger.Warn("feature fetch failed", "feature", result.ResourceID, "attempts", result.Attempts, "err", err)
	}
	return result
}

func (f *Fetcher) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.clock.After(d):
		return nil
	}
}
