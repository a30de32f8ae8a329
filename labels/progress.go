package labels

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker writes a single self-overwriting progress line for a batch.
type ProgressTracker struct {
	writer         io.Writer
	prefix         string
	total          int
	current        int
	found          int
	reportInterval int
	lastReported   int
	startTime      time.Time
	started        bool
	mu             sync.Mutex
}

// NewProgressTracker creates a tracker that reports every reportInterval results.
func NewProgressTracker(writer io.Writer, prefix string, total, reportInterval int) *ProgressTracker {
	if reportInterval < 1 {
		reportInterval = 1
	}
	return &ProgressTracker{
		writer:         writer,
		prefix:         prefix,
		total:          total,
		reportInterval: reportInterval,
	}
}

// Start resets the counters and starts the clock.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.current = 0
	p.found = 0
	p.lastReported = 0
}

// Record counts one terminal result.
func (p *ProgressTracker) Record(found bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.current = min(p.current+1, p.total)
	if found {
		p.found++
	}

	if p.current-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.current
	}
}

// Finish writes the final line.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.report()
	fmt.Fprintln(p.writer)
	p.started = false
}

func (p *ProgressTracker) report() {
	elapsed := time.Since(p.startTime)
	rate := 0.0
	if elapsed > 0 {
		rate = float64(p.current) / elapsed.Seconds()
	}

	percentage := 100.0
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100.0
	}

	fmt.Fprintf(p.writer, "\r%s: %d/%d (%.1f%%) - %d labeled - %.1f req/s",
		p.prefix, p.current, p.total, percentage, p.found, rate)
}
