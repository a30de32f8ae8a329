package labels

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poiesic/horus/ratelimit"
)

// fakeSource is a Source driven by a function field.
type fakeSource struct {
	FetchFunc func(ctx context.Context, datasetID string, unit, index int, call int) (*Payload, error)

	mu    sync.Mutex
	calls map[int]int
}

func newFakeSource(fn func(ctx context.Context, datasetID string, unit, index int, call int) (*Payload, error)) *fakeSource {
	return &fakeSource{FetchFunc: fn, calls: make(map[int]int)}
}

func (s *fakeSource) FetchFeature(ctx context.Context, datasetID string, unit, index int) (*Payload, error) {
	s.mu.Lock()
	s.calls[index]++
	call := s.calls[index]
	s.mu.Unlock()
	return s.FetchFunc(ctx, datasetID, unit, index, call)
}

func (s *fakeSource) callCount(index int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[index]
}

func (s *fakeSource) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// countingLimiter admits everything and counts admissions.
type countingLimiter struct {
	acquired atomic.Int64
}

func (l *countingLimiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.acquired.Add(1)
	return nil
}

func labeled(description string) *Payload {
	return &Payload{Explanations: []Explanation{{Description: description, Score: 1}}}
}

func newTestClock() *ratelimit.FakeClock {
	return ratelimit.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
}
