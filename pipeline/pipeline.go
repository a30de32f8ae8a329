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


package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/horus/dataset"
	"github.com/poiesic/horus/embed"
	"github.com/poiesic/horus/export"
	"github.com/poiesic/horus/graph"
	"github.com/poiesic/horus/labels"
	"github.com/poiesic/horus/metrics"
	"github.com/poiesic/horus/source"
	"github.com/poiesic/horus/storage"
)

// Pipeline runs the stage sequence for the units of one dataset.
type Pipeline struct {
	model    *dataset.Model
	cache    storage.CacheStore
	journal  storage.LabelJournal
	source   source.VectorSource
	exporter *export.Exporter
	embedder embed.Embedder
	batch    *labels.BatchFetcher

	graphParams  graph.Params
	embedParams  embed.Params
	labelTopK    int
	graphWorkers int

	stages  []stage
	metrics *metrics.Metrics
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithEmbedder replaces the default projection embedder.
func WithEmbedder(embedder embed.Embedder) Option {
	return func(p *Pipeline) error {
		if embedder != nil {
			p.embedder = embedder
		}
		return nil
	}
}

// WithGraphParams sets the neighbor graph parameters.
func WithGraphParams(params graph.Params) Option {
	return func(p *Pipeline) error {
		if err := params.Validate(); err != nil {
			return err
		}
		p.graphParams = params
		return nil
	}
}

// WithGraphWorkers bounds the goroutines searching neighbor rows.
// Default is runtime.NumCPU().
func WithGraphWorkers(n int) Option {
	return func(p *Pipeline) error {
		p.graphWorkers = n
		return nil
	}
}

// WithEmbedParams sets the embedding parameters.
func WithEmbedParams(params embed.Params) Option {
	return func(p *Pipeline) error {
		if err := params.Validate(); err != nil {
			return err
		}
		p.embedParams = params
		return nil
	}
}

// WithLabels enables the labels stage. The first topK feature indices of
// every unit are labeled. Without this option the labels stage never runs.
func WithLabels(batch *labels.BatchFetcher, topK int) Option {
	return func(p *Pipeline) error {
		if batch == nil {
			return labels.ErrFetcherRequired
		}
		p.batch = batch
		p.labelTopK = max(0, topK)
		return nil
	}
}

// WithMetrics records stage and unit outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) error {
		p.metrics = m
		return nil
	}
}

// WithClock sets the time source used for document timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) error {
		if now != nil {
			p.now = now
		}
		return nil
	}
}

// New creates a pipeline for one dataset.
func New(
	model *dataset.Model,
	cache storage.CacheStore,
	journal storage.LabelJournal,
	src source.VectorSource,
	exporter *export.Exporter,
	opts ...Option,
) (*Pipeline, error) {
	if model == nil {
		return nil, ErrModelRequired
	}
	if cache == nil {
		return nil, ErrCacheRequired
	}
	if journal == nil {
		return nil, ErrJournalRequired
	}
	if src == nil {
		return nil, ErrSourceRequired
	}
	if exporter == nil {
		return nil, ErrExporterRequired
	}

	p := &Pipeline{
		model:       model,
		cache:       cache,
		journal:     journal,
		source:      src,
		exporter:    exporter,
		graphParams: graph.DefaultParams(),
		embedParams: embed.DefaultParams(),
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	if p.embedder == nil {
		p.embedder = embed.NewProjectionEmbedder(embed.WithLogger(p.logger))
	}

	p.stages = []stage{
		&vectorsStage{},
		&graphStage{},
		&labelsStage{},
		&exportStage{},
	}
	return p, nil
}

// Model returns the dataset the pipeline processes.
func (p *Pipeline) Model() *dataset.Model {
	return p.model
}

// RunSummary is the outcome of Run.
type RunSummary struct {
	RunID      uuid.UUID
	DatasetID  string
	Successful []int
	Failed     []int
	Results    []UnitResult
	Manifest   *export.Manifest
	// ManifestErr is set when the manifest could not be written.
	ManifestErr error
	Elapsed     time.Duration
}

// ExitCode returns 1 if any unit failed or the manifest could not be
// written, otherwise 0.
func (s *RunSummary) ExitCode() int {
	if len(s.Failed) > 0 || s.ManifestErr != nil {
		return 1
	}
	return 0
}

// Run processes units sequentially in the given order. A failed unit does not
// stop later units. Once every unit has been attempted, the manifest is
// written for the successful ones.
func (p *Pipeline) Run(ctx context.Context, units []int, opts RunOptions) *RunSummary {
	start := time.Now()
	summary := &RunSummary{
		RunID:     uuid.New(),
		DatasetID: p.model.ID,
	}
	logger := p.logger.With("run_id", summary.RunID, "dataset", p.model.ID)
	logger.Info("pipeline started",
		"units", len(units),
		"force", opts.Force,
		"skip_labels", opts.SkipLabels || p.batch == nil)

	for i, unit := range units {
		logger.Info("processing unit", "unit", unit, "position", i+1, "of", len(units))
		result := p.RunUnit(ctx, unit, opts)
		summary.Results = append(summary.Results, result)
		if result.Succeeded() {
			summary.Successful = append(summary.Successful, unit)
		} else {
			summary.Failed = append(summary.Failed, unit)
		}
	}

	if len(summary.Successful) > 0 {
		// The manifest describes finished output and is written even when the run was canceled.
		manifest, err := p.exporter.WriteManifest(context.WithoutCancel(ctx), p.model, summary.RunID, summary.Successful, p.now())
		if err != nil {
			logger.Error("failed to write manifest", "error", err)
			summary.ManifestErr = err
		}
		summary.Manifest = manifest
	}

	summary.Elapsed = time.Since(start)
	logger.Info("pipeline finished",
		"successful", len(summary.Successful),
		"failed", summary.Failed,
		"elapsed", summary.Elapsed.Round(time.Millisecond))
	return summary
}
