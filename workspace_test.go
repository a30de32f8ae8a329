package horus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/poiesic/horus/core"
	"github.com/poiesic/horus/dataset"
	"github.com/poiesic/horus/export"
	"github.com/poiesic/horus/labels"
	"github.com/poiesic/horus/pipeline"
	sourcemock "github.com/poiesic/horus/source/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLabelSource struct {
	calls atomic.Int64
}

func (s *countingLabelSource) FetchFeature(ctx context.Context, datasetID string, unit, index int) (*labels.Payload, error) {
	s.calls.Add(1)
	if index == 1 {
		return nil, labels.ErrNotFound
	}
	return &labels.Payload{Explanations: []labels.Explanation{{Description: fmt.Sprintf("feature %d", index), Score: 1}}}, nil
}

func testConfig(t *testing.T, opts ...dataset.ConfigOption) *dataset.Config {
	t.Helper()
	dir := t.TempDir()
	defaults := []dataset.ConfigOption{
		dataset.WithUnits("0-1"),
		dataset.WithInputDir(filepath.Join(dir, "input")),
		dataset.WithCacheDir(filepath.Join(dir, "cache")),
		dataset.WithOutputDir(filepath.Join(dir, "output")),
		dataset.WithCompress(false),
	}
	cfg := dataset.NewConfig(append(defaults, opts...)...)
	cfg.Labels.TopK = 3
	return cfg
}

func testSource() *sourcemock.MockSource {
	src := sourcemock.NewMockSource()
	for unit := range 2 {
		src.Add("gemma-2-2b", unit, [][]float32{
			{1, 0, 0},
			{0.9, 0.1, 0},
			{0, 1, 0},
			{0, 0, 1},
		})
	}
	return src
}

func TestOpen(t *testing.T) {
	t.Run("opens configured resources", func(t *testing.T) {
		ws, err := Open(testConfig(t), WithLabelSource(&countingLabelSource{}))
		require.NoError(t, err)
		defer ws.Close()

		assert.Equal(t, "gemma-2-2b", ws.Model().ID)
		assert.NotNil(t, ws.CacheStore())
		assert.NotNil(t, ws.LabelJournal())
		assert.NotNil(t, ws.Exporter())
		assert.NotNil(t, ws.batch)
	})

	t.Run("skip labels leaves fetcher unset", func(t *testing.T) {
		ws, err := Open(testConfig(t, dataset.WithSkipLabels(true)))
		require.NoError(t, err)
		defer ws.Close()

		assert.Nil(t, ws.batch)
	})

	t.Run("invalid config", func(t *testing.T) {
		ws, err := Open(testConfig(t, dataset.WithDataset("unknown")))
		require.Error(t, err)
		assert.ErrorIs(t, err, dataset.ErrUnknownDataset)
		assert.Nil(t, ws)
	})

	t.Run("cache path is a file", func(t *testing.T) {
		cfg := testConfig(t)
		file := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(file, []byte("test"), 0644))
		cfg.CacheDir = file

		ws, err := Open(cfg)
		assert.Error(t, err)
		assert.Nil(t, ws)
	})
}

func TestWorkspace_Close(t *testing.T) {
	ws, err := Open(testConfig(t), WithLabelSource(&countingLabelSource{}))
	require.NoError(t, err)

	assert.NoError(t, ws.Close())
}

func TestWorkspace_Run(t *testing.T) {
	labelSource := &countingLabelSource{}
	cfg := testConfig(t)
	ws, err := Open(cfg, WithVectorSource(testSource()), WithLabelSource(labelSource))
	require.NoError(t, err)
	defer ws.Close()

	ctx := context.Background()
	summary, err := ws.Run(ctx, pipeline.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ExitCode())
	assert.Equal(t, []int{0, 1}, summary.Successful)
	require.NotNil(t, summary.Manifest)
	assert.Len(t, summary.Manifest.Layers, 2)
	assert.Equal(t, int64(6), labelSource.calls.Load())

	doc, err := export.ReadLayer(filepath.Join(cfg.OutputDir, "gemma-2-2b", "layer-00.json"))
	require.NoError(t, err)
	assert.Len(t, doc.Nodes, 4)
	assert.Equal(t, 2, doc.Metadata.LabeledCount)

	t.Run("second run is served from cache", func(t *testing.T) {
		summary, err := ws.Run(ctx, pipeline.RunOptions{})
		require.NoError(t, err)
		assert.Equal(t, 0, summary.ExitCode())
		assert.Equal(t, int64(6), labelSource.calls.Load())
		for _, result := range summary.Results {
			assert.Len(t, result.SkippedStages, len(core.Stages))
		}
	})

	t.Run("status reports completed stages", func(t *testing.T) {
		statuses, err := ws.Status(ctx)
		require.NoError(t, err)
		require.Len(t, statuses, 2)
		for _, status := range statuses {
			assert.True(t, status.Complete())
			assert.Equal(t, 3, status.JournaledLabels)
			for _, name := range core.Stages {
				assert.Equal(t, core.StateCompleted, status.Stages[name].State, name)
			}
		}
	})
}

func TestWorkspace_Status(t *testing.T) {
	ws, err := Open(testConfig(t, dataset.WithSkipLabels(true)), WithVectorSource(testSource()))
	require.NoError(t, err)
	defer ws.Close()

	ctx := context.Background()

	t.Run("untouched unit", func(t *testing.T) {
		statuses, err := ws.Status(ctx, 7)
		require.NoError(t, err)
		require.Len(t, statuses, 1)
		assert.Equal(t, 7, statuses[0].Unit)
		assert.False(t, statuses[0].Complete())
		assert.Equal(t, core.StateNotStarted, statuses[0].Stages[core.StageVectors].State)
		assert.Zero(t, statuses[0].JournaledLabels)
	})

	t.Run("unit out of range", func(t *testing.T) {
		_, err := ws.Status(ctx, 99)
		assert.ErrorIs(t, err, dataset.ErrUnitOutOfRange)
	})

	t.Run("skipped labels still complete", func(t *testing.T) {
		summary, err := ws.Run(ctx, pipeline.RunOptions{})
		require.NoError(t, err)
		assert.Equal(t, 0, summary.ExitCode())

		statuses, err := ws.Status(ctx, 0)
		require.NoError(t, err)
		assert.True(t, statuses[0].Complete())
		assert.Equal(t, core.StateNotStarted, statuses[0].Stages[core.StageLabels].State)
	})
}

func TestWorkspace_InMemoryCache(t *testing.T) {
	cfg := testConfig(t, dataset.WithSkipLabels(true))
	ws, err := Open(cfg, WithInMemoryCache(), WithVectorSource(testSource()))
	require.NoError(t, err)
	defer ws.Close()

	summary, err := ws.Run(context.Background(), pipeline.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ExitCode())

	_, err = os.Stat(cfg.CacheDir)
	assert.True(t, os.IsNotExist(err))
}
