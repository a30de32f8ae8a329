package labels

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/horus/core"
	"github.com/poiesic/horus/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errServer = &StatusError{StatusCode: 500}

func newTestFetcher(t *testing.T, source Source, limiter Limiter, clock *ratelimit.FakeClock, opts ...FetcherOption) *Fetcher {
	t.Helper()
	opts = append([]FetcherOption{WithClock(clock)}, opts...)
	f, err := NewFetcher(source, limiter, opts...)
	require.NoError(t, err)
	return f
}

func TestNewFetcher_Validation(t *testing.T) {
	_, err := NewFetcher(nil, &countingLimiter{})
	assert.ErrorIs(t, err, ErrSourceRequired)

	_, err = NewFetcher(newFakeSource(nil), nil)
	assert.ErrorIs(t, err, ErrLimiterRequired)

	_, err = NewFetcher(newFakeSource(nil), &countingLimiter{}, WithPolicy(RetryPolicy{}))
	assert.Error(t, err)
}

func TestFetch_Found(t *testing.T) {
	source := newFakeSource(func(ctx context.Context, ds string, unit, index, call int) (*Payload, error) {
		assert.Equal(t, "gemma-2-2b", ds)
		assert.Equal(t, 12, unit)
		return labeled("dogs"), nil
	})
	limiter := &countingLimiter{}
	f := newTestFetcher(t, source, limiter, newTestClock())

	result := f.Fetch(context.Background(), "gemma-2-2b", 12, 7)
	assert.Equal(t, TaskFound, result.State)
	assert.Equal(t, 7, result.ResourceID)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, "dogs", result.Payload.Explanations[0].Description)
	assert.NoError(t, result.Err)
	assert.Equal(t, int64(1), limiter.acquired.Load())
}

func TestFetch_NotFoundIsNeverRetried(t *testing.T) {
	source := newFakeSource(func(ctx context.Context, ds string, unit, index, call int) (*Payload, error) {
		return nil, ErrNotFound
	})
	clock := newTestClock()
	f := newTestFetcher(t, source, &countingLimiter{}, clock)

	result := f.Fetch(context.Background(), "ds", 0, 1)
	assert.Equal(t, TaskNotFound, result.State)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 1, source.callCount(1))
	assert.Nil(t, result.Payload)
	assert.Empty(t, clock.Waits())
}

func TestFetch_ServerErrorExhaustsAttempts(t *testing.T) {
	source := newFakeSource(func(ctx context.Context, ds string, unit, index, call int) (*Payload, error) {
		return nil, errServer
	})
	clock := newTestClock()
	limiter := &countingLimiter{}
	f := newTestFetcher(t, source, limiter, clock)

	result := f.Fetch(context.Background(), "ds", 0, 1)
	assert.Equal(t, TaskFailed, result.State)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, 3, source.callCount(1))
	assert.Equal(t, int64(3), limiter.acquired.Load())
	assert.ErrorIs(t, result.Err, core.ErrUpstreamUnavailable)

	var statusErr *StatusError
	require.ErrorAs(t, result.Err, &statusErr)
	assert.Equal(t, 500, statusErr.StatusCode)

	// Backoff doubles and nothing is waited after the last attempt.
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.Waits())
}

func TestFetch_RecoversAfterTransientError(t *testing.T) {
	source := newFakeSource(func(ctx context.Context, ds string, unit, index, call int) (*Payload, error) {
		if call == 1 {
			return nil, errors.New("connection reset")
		}
		return labeled("recovered"), nil
	})
	f := newTestFetcher(t, source, &countingLimiter{}, newTestClock())

	result := f.Fetch(context.Background(), "ds", 0, 1)
	assert.Equal(t, TaskFound, result.State)
	assert.Equal(t, 2, result.Attempts)
}

func TestFetch_RateLimitDoesNotConsumeAttempts(t *testing.T) {
	source := newFakeSource(func(ctx context.Context, ds string, unit, index, call int) (*Payload, error) {
		switch call {
		case 1:
			return nil, &RateLimitedError{RetryAfter: 7 * time.Second}
		case 2, 3, 4:
			return nil, &RateLimitedError{}
		default:
			return labeled("eventually"), nil
		}
	})
	clock := newTestClock()
	limiter := &countingLimiter{}
	f := newTestFetcher(t, source, limiter, clock, WithPolicy(RetryPolicy{
		MaxAttempts:          1,
		BaseDelay:            time.Second,
		DefaultRateLimitWait: 60 * time.Second,
	}))

	result := f.Fetch(context.Background(), "ds", 0, 1)
	assert.Equal(t, TaskFound, result.State)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 4, result.RateLimitWaits)
	assert.Equal(t, int64(5), limiter.acquired.Load())
	assert.Equal(t, []time.Duration{
		7 * time.Second, 60 * time.Second, 60 * time.Second, 60 * time.Second,
	}, clock.Waits())
}

func TestFetch_ZeroRetryAfterRetriesImmediately(t *testing.T) {
	source := newFakeSource(func(ctx context.Context, ds string, unit, index, call int) (*Payload, error) {
		if call == 1 {
			return nil, &RateLimitedError{RetryAfterSet: true}
		}
		return labeled("right away"), nil
	})
	clock := newTestClock()
	f := newTestFetcher(t, source, &countingLimiter{}, clock, WithPolicy(DefaultRetryPolicy()))

	result := f.Fetch(context.Background(), "ds", 0, 1)
	assert.Equal(t, TaskFound, result.State)
	assert.Equal(t, 1, result.RateLimitWaits)
	assert.Empty(t, clock.Waits())
}

func TestFetch_RateLimitCap(t *testing.T) {
	source := newFakeSource(func(ctx context.Context, ds string, unit, index, call int) (*Payload, error) {
		return nil, &RateLimitedError{RetryAfter: time.Second}
	})
	policy := DefaultRetryPolicy()
	policy.MaxRateLimitWaits = 2
	f := newTestFetcher(t, source, &countingLimiter{}, newTestClock(), WithPolicy(policy))

	result := f.Fetch(context.Background(), "ds", 0, 1)
	assert.Equal(t, TaskFailed, result.State)
	assert.Equal(t, 2, result.RateLimitWaits)
	assert.Equal(t, 3, source.callCount(1))
	assert.ErrorIs(t, result.Err, core.ErrUpstreamUnavailable)
}

func TestFetch_ContextCanceled(t *testing.T) {
	source := newFakeSource(func(ctx context.Context, ds string, unit, index, call int) (*Payload, error) {
		return labeled("never"), nil
	})
	f := newTestFetcher(t, source, &countingLimiter{}, newTestClock())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := f.Fetch(ctx, "ds", 0, 1)
	assert.Equal(t, TaskFailed, result.State)
	assert.ErrorIs(t, result.Err, context.Canceled)
	assert.Equal(t, 0, source.callCount(1))
}

func TestFetch_SharedSlidingWindow(t *testing.T) {
	clock := newTestClock()
	limiter, err := ratelimit.NewSlidingWindow(2, ratelimit.WithClock(clock))
	require.NoError(t, err)

	source := newFakeSource(func(ctx context.Context, ds string, unit, index, call int) (*Payload, error) {
		return labeled("x"), nil
	})
	f := newTestFetcher(t, source, limiter, clock)

	for i := range 3 {
		assert.Equal(t, TaskFound, f.Fetch(context.Background(), "ds", 0, i).State)
	}
	// The third fetch waited for the window to slide.
	require.Len(t, clock.Waits(), 1)
	assert.GreaterOrEqual(t, clock.Waits()[0], 60*time.Second)
}

func TestTaskState(t *testing.T) {
	tests := []struct {
		state    TaskState
		name     string
		terminal bool
	}{
		{TaskPending, "pending", false},
		{TaskInFlight, "in_flight", false},
		{TaskFound, "found", true},
		{TaskNotFound, "not_found", true},
		{TaskFailed, "failed", true},
		{TaskState(42), "unknown(42)", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.state.String())
		assert.Equal(t, tt.terminal, tt.state.Terminal())
	}
}
