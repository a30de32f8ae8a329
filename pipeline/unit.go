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
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/poiesic/horus/core"
	"github.com/poiesic/horus/labels"
	"github.com/poiesic/horus/metrics"
	"github.com/poiesic/horus/storage"
)

// RunOptions controls one invocation of RunUnit or Run.
type RunOptions struct {
	// Force recomputes every stage and overwrites cached artifacts.
	Force bool

	// SkipLabels leaves the labels stage out. A previously cached labels
	// artifact is still used by export.
	SkipLabels bool
}

// UnitResult is the outcome of one unit.
type UnitResult struct {
	Unit int

	// CompletedStages ran and were published during this invocation.
	CompletedStages []core.StageName

	// SkippedStages were already Completed in the cache.
	SkippedStages []core.StageName

	// FailedStage is empty when the unit succeeded.
	FailedStage core.StageName
	Err         error
	Class       core.ErrorClass

	// Export is the unit's output file, when the export stage ran.
	Export *core.ExportRecord

	// LabelStats is set when the labels stage fetched during this invocation.
	LabelStats *labels.Stats

	Elapsed time.Duration
}

// Succeeded reports whether every stage of the unit completed.
func (r *UnitResult) Succeeded() bool {
	return r.Err == nil
}

// unitRun carries one unit through its stages. Artifacts of earlier stages
// are loaded from the cache on first use.
type unitRun struct {
	p      *Pipeline
	unit   int
	opts   RunOptions
	logger *slog.Logger

	vectors *core.FeatureVectorSet
	graph   *core.GraphArtifact
	labels  core.LabelRecord
	export  *core.ExportRecord
	stats   *labels.Stats
}

func (u *unitRun) key(stage core.StageName) core.CacheKey {
	return core.CacheKey{DatasetID: u.p.model.ID, Unit: u.unit, Stage: stage}
}

// Vectors returns the unit's vectors, loading them from the cache if needed.
func (u *unitRun) Vectors(ctx context.Context) (*core.FeatureVectorSet, error) {
	if u.vectors != nil {
		return u.vectors, nil
	}
	data, err := u.p.cache.Get(ctx, u.key(core.StageVectors))
	if err != nil {
		return nil, fmt.Errorf("load cached vectors: %w", err)
	}
	set, err := storage.UnmarshalVectorSet(data)
	if err != nil {
		return nil, fmt.Errorf("load cached vectors: %w", err)
	}
	u.vectors = set
	return set, nil
}

// Graph returns the unit's positions and edges, loading them from the cache if needed.
func (u *unitRun) Graph(ctx context.Context) (*core.GraphArtifact, error) {
	if u.graph != nil {
		return u.graph, nil
	}
	data, err := u.p.cache.Get(ctx, u.key(core.StageGraph))
	if err != nil {
		return nil, fmt.Errorf("load cached graph: %w", err)
	}
	artifact, err := storage.UnmarshalGraphArtifact(data)
	if err != nil {
		return nil, fmt.Errorf("load cached graph: %w", err)
	}
	u.graph = artifact
	return artifact, nil
}

// Labels returns the unit's labels. A unit whose labels stage never
// completed has no labels, which is not an error.
func (u *unitRun) Labels(ctx context.Context) (core.LabelRecord, error) {
	if u.labels != nil {
		return u.labels, nil
	}
	data, err := u.p.cache.Get(ctx, u.key(core.StageLabels))
	if errors.Is(err, storage.ErrNotFound) {
		return core.LabelRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cached labels: %w", err)
	}
	record, err := storage.UnmarshalLabels(data)
	if err != nil {
		return nil, fmt.Errorf("load cached labels: %w", err)
	}
	u.labels = record
	return record, nil
}

// FeatureCount returns the number of features in the unit, preferring
// whatever is already in memory.
func (u *unitRun) FeatureCount(ctx context.Context) (int, error) {
	switch {
	case u.vectors != nil:
		return u.vectors.Len(), nil
	case u.graph != nil:
		return len(u.graph.Positions), nil
	}
	artifact, err := u.Graph(ctx)
	if err != nil {
		return 0, err
	}
	return len(artifact.Positions), nil
}

// RunUnit runs every stage of one unit. It never panics and never returns an
// error; failures are reported in the result.
func (p *Pipeline) RunUnit(ctx context.Context, unit int, opts RunOptions) UnitResult {
	start := time.Now()
	u := &unitRun{
		p:      p,
		unit:   unit,
		opts:   opts,
		logger: p.logger.With("dataset", p.model.ID, "unit", unit),
	}
	result := UnitResult{Unit: unit}

	for _, s := range p.stages {
		name := s.name()
		if name == core.StageLabels && (opts.SkipLabels || p.batch == nil) {
			u.logger.Debug("labels stage disabled")
			continue
		}

		skipped, err := p.runStage(ctx, u, s)
		if err != nil {
			result.FailedStage = name
			result.Err = classifyStageError(name, err)
			result.Class = core.Classify(result.Err)
			break
		}
		if skipped {
			result.SkippedStages = append(result.SkippedStages, name)
		} else {
			result.CompletedStages = append(result.CompletedStages, name)
		}
	}

	result.Export = u.export
	result.LabelStats = u.stats
	result.Elapsed = time.Since(start)
	p.metrics.ObserveUnit(p.model.ID, result.Succeeded())

	if result.Succeeded() {
		u.logger.Info("unit complete",
			"completed", result.CompletedStages,
			"skipped", result.SkippedStages,
			"elapsed", result.Elapsed.Round(time.Millisecond))
	} else {
		u.logger.Error("unit failed",
			"stage", result.FailedStage,
			"class", result.Class,
			"error", result.Err,
			"elapsed", result.Elapsed.Round(time.Millisecond))
	}
	return result
}

// runStage executes one stage under the cache protocol and reports whether
// it was skipped because a Completed artifact already existed.
func (p *Pipeline) runStage(ctx context.Context, u *unitRun, s stage) (skipped bool, err error) {
	name := s.name()
	key := u.key(name)
	logger := u.logger.With("stage", name)

	if err := ctx.Err(); err != nil {
		return false, err
	}

	if !u.opts.Force {
		done, err := p.cache.Exists(ctx, key)
		if err != nil {
			return false, fmt.Errorf("check cache: %w", err)
		}
		if done {
			logger.Info("stage cached, skipping")
			p.metrics.ObserveStage(p.model.ID, string(name), metrics.OutcomeSkipped, 0)
			return true, nil
		}
	}

	if err := p.cache.MarkInProgress(ctx, key, u.opts.Force); err != nil {
		return false, fmt.Errorf("mark in progress: %w", err)
	}

	start := time.Now()
	defer func() {
		outcome := metrics.OutcomeCompleted
		if err != nil {
			outcome = metrics.OutcomeFailed
			if markErr := p.cache.MarkFailed(ctx, key, err); markErr != nil {
				logger.Warn("failed to record stage failure", "error", markErr)
			}
		}
		p.metrics.ObserveStage(p.model.ID, string(name), outcome, time.Since(start))
	}()

	logger.Info("stage started")
	artifact, err := safeRun(ctx, u, s)
	if err != nil {
		return false, err
	}
	if err := p.cache.Put(ctx, key, artifact, u.opts.Force); err != nil {
		return false, fmt.Errorf("publish artifact: %w", err)
	}
	logger.Info("stage complete",
		"bytes", len(artifact),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return false, nil
}

// safeRun converts a panic inside a stage into a stage failure.
func safeRun(ctx context.Context, u *unitRun, s stage) (artifact []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			u.logger.Error("stage panicked", "stage", s.name(), "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: panic: %v", core.ErrStageFailure, r)
		}
	}()
	return s.run(ctx, u)
}

// classifyStageError makes sure errors outside the taxonomy wrap ErrStageFailure.
func classifyStageError(name core.StageName, err error) error {
	if core.Classify(err) == core.ClassStageFailure && !errors.Is(err, core.ErrStageFailure) {
		return fmt.Errorf("%w: %s: %w", core.ErrStageFailure, name, err)
	}
	return fmt.Errorf("%s: %w", name, err)
}
