package export

import (
	"testing"
	"time"

	"github.com/poiesic/horus/core"
	"github.com/poiesic/horus/dataset"
	"github.com/poiesic/horus/embed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testModel(t *testing.T) *dataset.Model {
	t.Helper()
	m, err := dataset.Lookup("gemma-2-2b")
	require.NoError(t, err)
	return m
}

func testArtifact() *core.GraphArtifact {
	return &core.GraphArtifact{
		Positions: core.PositionSet{
			{-50, 0.123456, 3},
			{50, -0.00004, 1.99996},
			{0, 25, -12.5},
		},
		Edges: core.EdgeSet{
			{Source: 0, Target: 1, Weight: 0.987654},
			{Source: 2, Target: 0, Weight: -0.25},
		},
	}
}

func TestBuildLayerDocument(t *testing.T) {
	computedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	labels := core.LabelRecord{0: "cats", 2: ""}

	doc, err := BuildLayerDocument(testModel(t), 7, testArtifact(), labels, embed.DefaultParams(), computedAt)
	require.NoError(t, err)

	require.Len(t, doc.Nodes, 3)
	assert.Equal(t, "gemma-2-2b:7:0", doc.Nodes[0].ID)
	assert.Equal(t, FeatureID{ModelID: "gemma-2-2b", Layer: 7, Index: 2}, doc.Nodes[2].FeatureID)
	assert.Equal(t, [3]float64{-50, 0.1235, 3}, doc.Nodes[0].Position)
	assert.Equal(t, [3]float64{50, -0, 2}, doc.Nodes[1].Position)
	assert.Equal(t, "cats", doc.Nodes[0].Label)
	assert.Empty(t, doc.Nodes[2].Label, "empty labels are not exported")

	require.Len(t, doc.Edges, 2)
	assert.Equal(t, Edge{
		ID:     "edge-7-0",
		Source: "gemma-2-2b:7:0",
		Target: "gemma-2-2b:7:1",
		Weight: 0.9877,
		Type:   EdgeType,
	}, doc.Edges[0])
	assert.Equal(t, "edge-7-1", doc.Edges[1].ID)
	assert.Equal(t, -0.25, doc.Edges[1].Weight)

	meta := doc.Metadata
	assert.Equal(t, "gemma-2-2b", meta.ModelID)
	assert.Equal(t, []int{7}, meta.Layers)
	assert.Equal(t, "7-gemmascope-res-16k", meta.SourceID)
	assert.Equal(t, 3, meta.FeatureCount)
	assert.Equal(t, 2, meta.EdgeCount)
	assert.Equal(t, 1, meta.LabeledCount)
	assert.Equal(t, [3]float64{-50, float64(float32(-0.00004)), -12.5}, meta.Bounds.Min)
	assert.Equal(t, [3]float64{50, 25, 3}, meta.Bounds.Max)
	assert.Equal(t, embed.DefaultParams(), meta.EmbedParams)
	assert.Equal(t, PipelineVersion, meta.PipelineVersion)
	assert.Equal(t, time.UTC, meta.ComputedAt.Location())
	assert.True(t, computedAt.Equal(meta.ComputedAt))
}

func TestBuildLayerDocument_Invalid(t *testing.T) {
	_, err := BuildLayerDocument(nil, 0, testArtifact(), nil, embed.DefaultParams(), time.Now())
	assert.ErrorIs(t, err, ErrModelRequired)

	artifact := testArtifact()
	artifact.Edges = append(artifact.Edges, core.Edge{Source: 0, Target: 3, Weight: 1})
	_, err = BuildLayerDocument(testModel(t), 0, artifact, nil, embed.DefaultParams(), time.Now())
	assert.ErrorIs(t, err, core.ErrCardinalityMismatch)
}

func TestNodeID(t *testing.T) {
	assert.Equal(t, "gemma-2-9b:41:16383", NodeID("gemma-2-9b", 41, 16383))
}
