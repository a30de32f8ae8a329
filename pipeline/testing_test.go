package pipeline

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/horus/core"
	"github.com/poiesic/horus/dataset"
	embedmock "github.com/poiesic/horus/embed/mock"
	"github.com/poiesic/horus/export"
	"github.com/poiesic/horus/graph"
	"github.com/poiesic/horus/labels"
	"github.com/poiesic/horus/ratelimit"
	sourcemock "github.com/poiesic/horus/source/mock"
	"github.com/poiesic/horus/storage"
	"github.com/poiesic/horus/storage/badger"
	"github.com/stretchr/testify/require"
)

// angleVectors returns 2D unit vectors at the given angles in degrees.
func angleVectors(degrees ...float64) [][]float32 {
	vectors := make([][]float32, len(degrees))
	for i, d := range degrees {
		rad := d * math.Pi / 180
		vectors[i] = []float32{float32(math.Cos(rad)), float32(math.Sin(rad))}
	}
	return vectors
}

// fakeLabelSource answers label requests from a function and counts calls.
type fakeLabelSource struct {
	mu        sync.Mutex
	calls     map[int]int
	total     atomic.Int64
	FetchFunc func(index int) (*labels.Payload, error)
}

func newFakeLabelSource() *fakeLabelSource {
	return &fakeLabelSource{calls: make(map[int]int)}
}

func (s *fakeLabelSource) FetchFeature(ctx context.Context, datasetID string, unit, index int) (*labels.Payload, error) {
	s.total.Add(1)
	s.mu.Lock()
	s.calls[index]++
	s.mu.Unlock()
	if s.FetchFunc != nil {
		return s.FetchFunc(index)
	}
	return labeled(fmt.Sprintf("feature %d", index)), nil
}

func (s *fakeLabelSource) Calls() int {
	return int(s.total.Load())
}

func (s *fakeLabelSource) CallsFor(index int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[index]
}

func labeled(description string) *labels.Payload {
	return &labels.Payload{Explanations: []labels.Explanation{{Description: description, Score: 1}}}
}

// flakyJournal fails LoadLabels while failures remain.
type flakyJournal struct {
	storage.LabelJournal
	failures atomic.Int64
}

func (j *flakyJournal) LoadLabels(ctx context.Context, datasetID string, unit int) (core.LabelRecord, error) {
	if j.failures.Add(-1) >= 0 {
		return nil, fmt.Errorf("journal unavailable")
	}
	return j.LabelJournal.LoadLabels(ctx, datasetID, unit)
}

// harness wires a pipeline to in-memory stores and fakes.
type harness struct {
	model    *dataset.Model
	cache    *badger.CacheStore
	journal  storage.LabelJournal
	backend  *badger.Backend
	source   *sourcemock.MockSource
	embedder *embedmock.MockEmbedder
	labels   *fakeLabelSource
	exporter *export.Exporter
	batch    *labels.BatchFetcher
	outDir   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cache, journal, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	model, err := dataset.Lookup("gemma-2-2b")
	require.NoError(t, err)

	outDir := t.TempDir()
	exporter, err := export.NewExporter(export.NewConfig(export.WithOutputDir(outDir), export.WithCompress(false)))
	require.NoError(t, err)

	h := &harness{
		model:    model,
		cache:    cache,
		journal:  journal,
		backend:  backend,
		source:   sourcemock.NewMockSource(),
		embedder: embedmock.NewMockEmbedder(),
		labels:   newFakeLabelSource(),
		exporter: exporter,
		outDir:   outDir,
	}

	limiter, err := ratelimit.NewSlidingWindow(10000)
	require.NoError(t, err)
	fetcher, err := labels.NewFetcher(h.labels, limiter, labels.WithPolicy(labels.RetryPolicy{
		MaxAttempts:          2,
		BaseDelay:            time.Millisecond,
		DefaultRateLimitWait: time.Millisecond,
	}))
	require.NoError(t, err)
	h.batch, err = labels.NewBatchFetcher(fetcher, labels.WithConcurrency(4))
	require.NoError(t, err)
	t.Cleanup(h.batch.Release)

	return h
}

func (h *harness) pipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	defaults := []Option{
		WithEmbedder(h.embedder),
		WithGraphParams(graph.Params{K: 1, MinSimilarity: 0.5, Dedupe: true}),
		WithLabels(h.batch, 3),
		WithClock(func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }),
	}
	p, err := New(h.model, h.cache, h.journal, h.source, h.exporter, append(defaults, opts...)...)
	require.NoError(t, err)
	return p
}

// snapshot returns every key and value in the backend.
func (h *harness) snapshot(t *testing.T) map[string]string {
	t.Helper()
	contents := make(map[string]string)
	require.NoError(t, h.backend.ScanPrefix(nil, func(key, value []byte) error {
		contents[string(key)] = string(value)
		return nil
	}))
	return contents
}

func (h *harness) state(t *testing.T, unit int, stage core.StageName) core.StageState {
	t.Helper()
	record, err := h.cache.State(context.Background(), core.CacheKey{DatasetID: h.model.ID, Unit: unit, Stage: stage})
	require.NoError(t, err)
	return record.State
}
