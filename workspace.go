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


// Package horus wires the stage cache, vector source, label fetcher, and
// exporter described by a dataset.Config into a ready-to-run pipeline.
//
//	cfg, err := dataset.LoadConfig("horus.yaml")
//	ws, err := horus.Open(cfg)
//	defer ws.Close()
//	summary, err := ws.Run(ctx, pipeline.RunOptions{})
package horus

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/horus/core"
	"github.com/poiesic/horus/dataset"
	"github.com/poiesic/horus/export"
	"github.com/poiesic/horus/labels"
	"github.com/poiesic/horus/metrics"
	"github.com/poiesic/horus/pipeline"
	"github.com/poiesic/horus/ratelimit"
	"github.com/poiesic/horus/source"
	"github.com/poiesic/horus/storage"
	"github.com/poiesic/horus/storage/badger"
)

// Workspace owns the resources of one configured dataset run.
type Workspace struct {
	cfg      *dataset.Config
	model    *dataset.Model
	backend  *badger.Backend
	cache    *badger.CacheStore
	journal  *badger.LabelJournal
	source   source.VectorSource
	exporter *export.Exporter
	batch    *labels.BatchFetcher
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// WorkspaceOption configures a Workspace.
type WorkspaceOption func(*workspaceOptions)

type workspaceOptions struct {
	logger      *slog.Logger
	metrics     *metrics.Metrics
	source      source.VectorSource
	labelSource labels.Source
	progress    io.Writer
	inMemory    bool
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) WorkspaceOption {
	return func(o *workspaceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) WorkspaceOption {
	return func(o *workspaceOptions) {
		o.metrics = m
	}
}

// WithVectorSource replaces the file-backed vector source.
func WithVectorSource(src source.VectorSource) WorkspaceOption {
	return func(o *workspaceOptions) {
		o.source = src
	}
}

// WithLabelSource replaces the HTTP label source.
func WithLabelSource(src labels.Source) WorkspaceOption {
	return func(o *workspaceOptions) {
		o.labelSource = src
	}
}

// WithProgress writes label batch progress to w.
func WithProgress(w io.Writer) WorkspaceOption {
	return func(o *workspaceOptions) {
		o.progress = w
	}
}

// WithInMemoryCache keeps the stage cache in memory instead of CacheDir.
func WithInMemoryCache() WorkspaceOption {
	return func(o *workspaceOptions) {
		o.inMemory = true
	}
}

// Open validates cfg and opens every resource it names.
// A nil cfg uses dataset.DefaultConfig().
func Open(cfg *dataset.Config, opts ...WorkspaceOption) (*Workspace, error) {
	if cfg == nil {
		cfg = dataset.DefaultConfig()
	}
	options := &workspaceOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	model, err := cfg.Model()
	if err != nil {
		return nil, err
	}

	exporter, err := export.NewExporter(
		export.NewConfig(export.WithOutputDir(cfg.OutputDir), export.WithCompress(cfg.Compress)),
		export.WithLogger(options.logger),
	)
	if err != nil {
		return nil, err
	}

	backend, err := badger.OpenBackend(cfg.CacheDir, options.inMemory)
	if err != nil {
		return nil, fmt.Errorf("failed to open stage cache: %w", err)
	}

	cache, err := badger.NewCacheStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	journal, err := badger.NewLabelJournal(backend)
	if err != nil {
		cache.Close()
		backend.Close()
		return nil, err
	}

	src := options.source
	if src == nil {
		src = source.NewFileSource(cfg.InputDir, source.WithLogger(options.logger))
	}

	ws := &Workspace{
		cfg:      cfg,
		model:    model,
		backend:  backend,
		cache:    cache,
		journal:  journal,
		source:   src,
		exporter: exporter,
		metrics:  options.metrics,
		logger:   options.logger,
	}

	if !cfg.SkipLabels {
		ws.batch, err = newBatchFetcher(cfg, options)
		if err != nil {
			cache.Close()
			backend.Close()
			return nil, err
		}
	}
	return ws, nil
}

func newBatchFetcher(cfg *dataset.Config, options *workspaceOptions) (*labels.BatchFetcher, error) {
	labelSource := options.labelSource
	if labelSource == nil {
		httpSource, err := labels.NewHTTPSource(&cfg.Labels, dataset.ResolveLabelSource, labels.WithHTTPLogger(options.logger))
		if err != nil {
			return nil, err
		}
		labelSource = httpSource
	}

	limiter, err := ratelimit.NewSlidingWindow(cfg.Labels.RequestsPerMinute, ratelimit.WithLogger(options.logger))
	if err != nil {
		return nil, err
	}

	fetcher, err := labels.NewFetcher(labelSource, limiter,
		labels.WithPolicy(cfg.Labels.Retry),
		labels.WithMetrics(options.metrics),
		labels.WithLogger(options.logger),
	)
	if err != nil {
		return nil, err
	}

	batchOpts := []labels.BatchOption{labels.WithConcurrency(cfg.Labels.Concurrency)}
	if options.progress != nil {
		batchOpts = append(batchOpts, labels.WithProgress(options.progress))
	}
	return labels.NewBatchFetcher(fetcher, batchOpts...)
}

// Close releases the label workers and the stage cache.
func (ws *Workspace) Close() error {
	if ws.batch != nil {
		ws.batch.Release()
	}
	if err := ws.cache.Close(); err != nil {
		ws.logger.Error("error closing stage cache", "err", err)
	}
	if err := ws.backend.Close(); err != nil {
		ws.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// Config returns the configuration the workspace was opened with.
func (ws *Workspace) Config() *dataset.Config {
	return ws.cfg
}

// Model returns the configured dataset.
func (ws *Workspace) Model() *dataset.Model {
	return ws.model
}

func (ws *Workspace) CacheStore() storage.CacheStore {
	return ws.cache
}

func (ws *Workspace) LabelJournal() storage.LabelJournal {
	return ws.journal
}

func (ws *Workspace) Exporter() *export.Exporter {
	return ws.exporter
}

// NewPipeline creates a pipeline from the workspace configuration.
// opts are applied after the configured settings and can override them.
func (ws *Workspace) NewPipeline(opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	base := []pipeline.Option{
		pipeline.WithLogger(ws.logger),
		pipeline.WithGraphParams(ws.cfg.Graph),
		pipeline.WithEmbedParams(ws.cfg.Embed),
		pipeline.WithMetrics(ws.metrics),
	}
	if ws.batch != nil {
		base = append(base, pipeline.WithLabels(ws.batch, ws.cfg.Labels.TopK))
	}
	return pipeline.New(ws.model, ws.cache, ws.journal, ws.source, ws.exporter, append(base, opts...)...)
}

// Run processes the configured unit selection.
func (ws *Workspace) Run(ctx context.Context, opts pipeline.RunOptions, pipelineOpts ...pipeline.Option) (*pipeline.RunSummary, error) {
	units, err := ws.cfg.SelectedUnits()
	if err != nil {
		return nil, err
	}
	p, err := ws.NewPipeline(pipelineOpts...)
	if err != nil {
		return nil, err
	}
	opts.SkipLabels = opts.SkipLabels || ws.cfg.SkipLabels
	return p.Run(ctx, units, opts), nil
}

// UnitStatus reports the cached state of one unit.
type UnitStatus struct {
	Unit   int
	Stages map[core.StageName]*core.StageRecord
	// JournaledLabels counts features with a journaled label, including empty ones.
	JournaledLabels int
}

// Complete reports whether every stage of the unit is Completed.
// A skipped labels stage is not required.
func (s UnitStatus) Complete() bool {
	for _, name := range core.Stages {
		if name == core.StageLabels {
			continue
		}
		if record := s.Stages[name]; record == nil || record.State != core.StateCompleted {
			return false
		}
	}
	return true
}

// Status returns the cache state of units. No units means the configured selection.
func (ws *Workspace) Status(ctx context.Context, units ...int) ([]UnitStatus, error) {
	if len(units) == 0 {
		selected, err := ws.cfg.SelectedUnits()
		if err != nil {
			return nil, err
		}
		units = selected
	}

	statuses := make([]UnitStatus, 0, len(units))
	for _, unit := range units {
		if err := ws.model.ValidateUnit(unit); err != nil {
			return nil, err
		}
		status := UnitStatus{Unit: unit, Stages: make(map[core.StageName]*core.StageRecord, len(core.Stages))}
		for _, name := range core.Stages {
			record, err := ws.cache.State(ctx, core.CacheKey{DatasetID: ws.model.ID, Unit: unit, Stage: name})
			if err != nil {
				return nil, fmt.Errorf("failed to read state of unit %d stage %s: %w", unit, name, err)
			}
			status.Stages[name] = record
		}
		journaled, err := ws.journal.LoadLabels(ctx, ws.model.ID, unit)
		if err != nil {
			return nil, fmt.Errorf("failed to read label journal of unit %d: %w", unit, err)
		}
		status.JournaledLabels = len(journaled)
		statuses = append(statuses, status)
	}
	return statuses, nil
}
