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


// Package ratelimit provides a sliding window admission gate shared by
// concurrent callers of one upstream client.
package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultWindow is the trailing interval over which admissions are counted.
	DefaultWindow = 60 * time.Second

	// DefaultBuffer is added to computed waits to avoid waking exactly on the window edge.
	DefaultBuffer = 100 * time.Millisecond
)

// ErrInvalidLimit is returned when the admission limit is not positive.
var ErrInvalidLimit = errors.New("rate limit must be positive")

// SlidingWindow admits at most limit requests within any trailing window.
type SlidingWindow struct {
	mu         sync.Mutex
	timestamps []time.Time // admissions within the window, oldest first
	limit      int
	window     time.Duration
	buffer     time.Duration
	clock      Clock
	logger     *slog.Logger
}

// Option configures a SlidingWindow.
type Option func(*SlidingWindow)

// WithWindow sets the window duration. Default is 60 seconds.
func WithWindow(d time.Duration) Option {
	return func(sw *SlidingWindow) {
		if d > 0 {
			sw.window = d
		}
	}
}

// WithBuffer sets the extra wait added past the window edge. Default is 100ms.
func WithBuffer(d time.Duration) Option {
	return func(sw *SlidingWindow) {
		if d >= 0 {
			sw.buffer = d
		}
	}
}

// WithClock sets the time source, mostly useful in tests.
func WithClock(clock Clock) Option {
	return func(sw *SlidingWindow) {
		if clock != nil {
			sw.clock = clock
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(sw *SlidingWindow) {
		if logger != nil {
			sw.logger = logger
		}
	}
}

// NewSlidingWindow creates a limiter admitting limit requests per window.
func NewSlidingWindow(limit int, opts ...Option) (*SlidingWindow, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	sw := &SlidingWindow{
		timestamps: make([]time.Time, 0, limit),
		limit:      limit,
		window:     DefaultWindow,
		buffer:     DefaultBuffer,
		clock:      RealClock{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(sw)
	}
	return sw, nil
}

// Acquire blocks until a request may be issued, then records it.
// Returns the context error if ctx ends while waiting.
func (sw *SlidingWindow) Acquire(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		wait, admitted := sw.tryAdmit()
		if admitted {
			return nil
		}

		sw.logger.Debug("rate limit reached, waiting", "wait", wait, "limit", sw.limit)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sw.clock.After(wait):
		}
	}
}

// tryAdmit runs the trim-check-record critical section.
// When the window is full it returns how long until the oldest admission expires.
func (sw *SlidingWindow) tryAdmit() (time.Duration, bool) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.clock.Now()
	sw.trim(now)

	if len(sw.timestamps) < sw.limit {
		sw.timestamps = append(sw.timestamps, now)
		return 0, true
	}

	wait := sw.window - now.Sub(sw.timestamps[0]) + sw.buffer
	if wait <= 0 {
		wait = sw.buffer
	}
	return wait, false
}

// trim drops admissions that are no longer inside the window.
func (sw *SlidingWindow) trim(now time.Time) {
	cutoff := now.Add(-sw.window)
	valid := 0
	for valid < len(sw.timestamps) && !sw.timestamps[valid].After(cutoff) {
		valid++
	}
	if valid > 0 {
		// Shift in place; the slice never grows past limit.
		n := copy(sw.timestamps, sw.timestamps[valid:])
		sw.timestamps = sw.timestamps[:n]
	}
}

// Stats returns a snapshot of the limiter.
func (sw *SlidingWindow) Stats() Stats {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.trim(sw.clock.Now())
	return Stats{
		InWindow:       len(sw.timestamps),
		Limit:          sw.limit,
		WindowDuration: sw.window,
	}
}

// Stats contains statistics about the rate limiter
type Stats struct {
	InWindow       int           // Admissions currently inside the window
	Limit          int           // Admission limit per window
	WindowDuration time.Duration // Window duration
}
