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
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

// Stats summarizes one FetchAll call.
type Stats struct {
	Requested      int
	Found          int
	NotFound       int
	Failed         int
	RateLimited    int // resources that waited on at least one rate limit signal
	RateLimitWaits int
	Retries        int
	MaxInFlight    int
	Elapsed        time.Duration
}

// OnResult receives each terminal result as soon as it is known.
// It is called from worker goroutines and must be safe for concurrent use.
type OnResult func(datasetID string, unit int, result Result)

// BatchFetcher resolves many features with at most Concurrency fetches in flight.
// The bound composes with the Fetcher's rate limiter; a fetch must clear both.
type BatchFetcher struct {
	fetcher     *Fetcher
	pool        *ants.Pool
	concurrency int
	progress    io.Writer
}

// BatchOption configures a BatchFetcher.
type BatchOption func(*BatchFetcher)

// WithConcurrency sets the in-flight bound. Default is 10.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchFetcher) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithProgress writes a progress line to w while a batch runs.
func WithProgress(w io.Writer) BatchOption {
	return func(b *BatchFetcher) {
		b.progress = w
	}
}

// NewBatchFetcher creates a BatchFetcher backed by a worker pool.
// Call Release when done.
func NewBatchFetcher(fetcher *Fetcher, opts ...BatchOption) (*BatchFetcher, error) {
	if fetcher == nil {
		return nil, ErrFetcherRequired
	}

	b := &BatchFetcher{
		fetcher:     fetcher,
		concurrency: DefaultConfig().Concurrency,
	}
	for _, opt := range opts {
		opt(b)
	}

	pool, err := ants.NewPool(b.concurrency)
	if err != nil {
		return nil, err
	}
	b.pool = pool
	return b, nil
}

// Release releases the worker pool.
// The fetcher should not be used after calling Release.
func (b *BatchFetcher) Release() {
	if b.pool != nil {
		b.pool.Release()
	}
}

// FetchAll fetches every index and returns the payloads of Found features.
// NotFound and Failed features are absent from the map but counted in Stats.
// It returns only after every submitted task is terminal. The error is
// non-nil only when ctx ended or the pool rejected work; the payloads
// gathered so far are still returned.
func (b *BatchFetcher) FetchAll(ctx context.Context, datasetID string, unit int, indices []int, onResult OnResult) (map[int]*Payload, Stats, error) {
	start := time.Now()
	stats := Stats{Requested: len(indices)}
	payloads := make(map[int]*Payload)

	var tracker *ProgressTracker
	if b.progress != nil {
		tracker = NewProgressTracker(b.progress, fmt.Sprintf("Labels %s/%d", datasetID, unit), len(indices), max(1, len(indices)/100))
		tracker.Start()
		defer tracker.Finish()
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		inFlight int
	)

	var submitErr error
	for _, index := range indices {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		err := b.pool.Submit(func() {
			defer wg.Done()

			mu.Lock()
			inFlight++
			stats.MaxInFlight = max(stats.MaxInFlight, inFlight)
			mu.Unlock()
			b.fetcher.metrics.FetchStarted()

			result := b.fetcher.Fetch(ctx, datasetID, unit, index)

			b.fetcher.metrics.FetchDone()
			mu.Lock()
			inFlight--
			stats.record(result)
			if result.State == TaskFound {
				payloads[index] = result.Payload
			}
			mu.Unlock()

			if tracker != nil {
				tracker.Record(result.State == TaskFound)
			}
			if onResult != nil {
				onResult(datasetID, unit, result)
			}
		})
		if err != nil {
			wg.Done()
			submitErr = fmt.Errorf("submit feature %d: %w", index, err)
			break
		}
	}
	wg.Wait()

	stats.Elapsed = time.Since(start)
	b.fetcher.logger.Info("label batch finished",
		"dataset", datasetID, "unit", unit,
		"requested", stats.Requested, "found", stats.Found,
		"notFound", stats.NotFound, "failed", stats.Failed,
		"rateLimitWaits", stats.RateLimitWaits, "elapsed", stats.Elapsed)

	if submitErr != nil {
		return payloads, stats, submitErr
	}
	if err := ctx.Err(); err != nil {
		return payloads, stats, err
	}
	return payloads, stats, nil
}

func (s *Stats) record(result Result) {
	switch result.State {
	case TaskFound:
		s.Found++
	case TaskNotFound:
		s.NotFound++
	case TaskFailed:
		s.Failed++
	}
	if result.RateLimitWaits > 0 {
		s.RateLimited++
		s.RateLimitWaits += result.RateLimitWaits
	}
	if result.Attempts > 1 {
		s.Retries += result.Attempts - 1
	}
}
