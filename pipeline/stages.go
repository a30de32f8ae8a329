package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/poiesic/horus/core"
	"github.com/poiesic/horus/export"
	"github.com/poiesic/horus/graph"
	"github.com/poiesic/horus/labels"
	"github.com/poiesic/horus/storage"
)

// vectorsStage acquires the unit's normalized feature vectors.
type vectorsStage struct{}

func (*vectorsStage) name() core.StageName { return core.StageVectors }

func (*vectorsStage) run(ctx context.Context, u *unitRun) ([]byte, error) {
	p := u.p
	set, err := p.source.Acquire(ctx, p.model.ID, u.unit)
	if err != nil {
		return nil, err
	}
	if err := core.ValidateVectorSet(set); err != nil {
		return nil, err
	}
	if err := core.CheckShape(set, p.model.FeaturesPerUnit, p.model.VectorDim); err != nil {
		u.logger.Warn("unexpected vector shape, continuing with actual shape", "error", err)
	}

	u.vectors = set
	u.logger.Info("acquired vectors", "count", set.Len(), "dim", set.Dim)
	return storage.MarshalVectorSet(set), nil
}

// graphStage embeds the vectors in 3D and builds the neighbor graph.
type graphStage struct{}

func (*graphStage) name() core.StageName { return core.StageGraph }

func (*graphStage) run(ctx context.Context, u *unitRun) ([]byte, error) {
	p := u.p
	set, err := u.Vectors(ctx)
	if err != nil {
		return nil, err
	}

	positions, err := p.embedder.Embed(ctx, set, p.embedParams)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	edges, err := graph.Build(ctx, set, p.graphParams,
		graph.WithWorkers(p.graphWorkers),
		graph.WithLogger(u.logger))
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	artifact := &core.GraphArtifact{Positions: positions, Edges: edges}
	if err := core.ValidateGraphArtifact(artifact, set.Len()); err != nil {
		return nil, err
	}

	u.graph = artifact
	u.logger.Info("built graph", "nodes", len(positions), "edges", len(edges))
	return storage.MarshalGraphArtifact(artifact), nil
}

// labelsStage labels the leading features of the unit. Each resolved feature
// is journaled as soon as it is known, so a rerun only fetches the rest.
type labelsStage struct{}

func (*labelsStage) name() core.StageName { return core.StageLabels }

func (*labelsStage) run(ctx context.Context, u *unitRun) ([]byte, error) {
	p := u.p
	n, err := u.FeatureCount(ctx)
	if err != nil {
		return nil, err
	}
	topK := min(p.labelTopK, n)

	if u.opts.Force {
		if err := p.journal.ClearLabels(ctx, p.model.ID, u.unit); err != nil {
			return nil, fmt.Errorf("clear label journal: %w", err)
		}
	}
	journaled, err := p.journal.LoadLabels(ctx, p.model.ID, u.unit)
	if err != nil {
		return nil, fmt.Errorf("load label journal: %w", err)
	}

	pending := make([]int, 0, topK)
	for i := range topK {
		if _, ok := journaled[i]; !ok {
			pending = append(pending, i)
		}
	}
	u.logger.Info("fetching labels", "requested", topK, "journaled", topK-len(pending), "pending", len(pending))

	// Finished fetches are journaled even if ctx ends mid-batch.
	journalCtx := context.WithoutCancel(ctx)
	var (
		mu         sync.Mutex
		journalErr error
	)
	onResult := func(datasetID string, unit int, result labels.Result) {
		var label string
		switch result.State {
		case labels.TaskFound:
			label = labels.ExtractLabel(result.Payload)
		case labels.TaskNotFound:
		default:
			return
		}
		if err := p.journal.AppendLabel(journalCtx, datasetID, unit, result.ResourceID, label); err != nil {
			mu.Lock()
			if journalErr == nil {
				journalErr = err
			}
			mu.Unlock()
		}
	}

	_, stats, err := p.batch.FetchAll(ctx, p.model.ID, u.unit, pending, onResult)
	u.stats = &stats
	if err != nil {
		return nil, err
	}
	if journalErr != nil {
		return nil, fmt.Errorf("append label journal: %w", journalErr)
	}
	if stats.Failed > 0 {
		u.logger.Warn("some features could not be labeled", "failed", stats.Failed, "requested", stats.Requested)
	}

	journaled, err = p.journal.LoadLabels(ctx, p.model.ID, u.unit)
	if err != nil {
		return nil, fmt.Errorf("load label journal: %w", err)
	}
	record := make(core.LabelRecord, len(journaled))
	for idx, label := range journaled {
		if idx < topK && label != "" {
			record[idx] = label
		}
	}

	u.labels = record
	u.logger.Info("labels complete",
		"labeled", len(record),
		"found", stats.Found,
		"not_found", stats.NotFound,
		"failed", stats.Failed,
		"rate_limit_waits", stats.RateLimitWaits)
	return storage.MarshalLabels(record), nil
}

// exportStage writes the unit's layer document.
type exportStage struct{}

func (*exportStage) name() core.StageName { return core.StageExport }

func (*exportStage) run(ctx context.Context, u *unitRun) ([]byte, error) {
	p := u.p
	artifact, err := u.Graph(ctx)
	if err != nil {
		return nil, err
	}
	record, err := u.Labels(ctx)
	if err != nil {
		return nil, err
	}

	doc, err := export.BuildLayerDocument(p.model, u.unit, artifact, record, p.embedParams, p.now())
	if err != nil {
		return nil, err
	}
	written, err := p.exporter.WriteLayer(ctx, p.model.ID, u.unit, doc)
	if err != nil {
		return nil, err
	}

	u.export = written
	return storage.MarshalExportRecord(written), nil
}
