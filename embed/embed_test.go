package embed

import (
	"context"
	"math"
	"testing"

	"github.com/poiesic/horus/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSet() *core.FeatureVectorSet {
	return &core.FeatureVectorSet{
		Vectors: [][]float32{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
			{0, 0, 1, 0},
			{0, 0, 0, 1},
			{0.5, 0.5, 0.5, 0.5},
		},
		Dim: 4,
	}
}

func maxAbs(positions core.PositionSet) float64 {
	var m float64
	for _, p := range positions {
		for _, c := range p {
			m = math.Max(m, math.Abs(float64(c)))
		}
	}
	return m
}

func TestProjectionEmbedder_Deterministic(t *testing.T) {
	e := NewProjectionEmbedder()
	params := DefaultParams()

	first, err := e.Embed(context.Background(), sampleSet(), params)
	require.NoError(t, err)
	second, err := e.Embed(context.Background(), sampleSet(), params)
	require.NoError(t, err)

	assert.Len(t, first, 5)
	assert.Equal(t, first, second)

	params.RandomState = 7
	other, err := e.Embed(context.Background(), sampleSet(), params)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestProjectionEmbedder_Normalized(t *testing.T) {
	positions, err := NewProjectionEmbedder().Embed(context.Background(), sampleSet(), DefaultParams())
	require.NoError(t, err)
	assert.InDelta(t, PositionExtent, maxAbs(positions), 1e-3)
}

func TestProjectionEmbedder_Errors(t *testing.T) {
	e := NewProjectionEmbedder()

	_, err := e.Embed(context.Background(), &core.FeatureVectorSet{}, DefaultParams())
	assert.ErrorIs(t, err, core.ErrEmptyVectorSet)

	params := DefaultParams()
	params.NComponents = 2
	_, err = e.Embed(context.Background(), sampleSet(), params)
	assert.ErrorIs(t, err, ErrInvalidParams)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Embed(ctx, sampleSet(), DefaultParams())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalizePositions(t *testing.T) {
	positions := core.PositionSet{
		{0, 0, 0},
		{2, 4, 6},
	}
	NormalizePositions(positions)

	// Mean (1,2,3) is subtracted; the largest offset (3) is scaled to 50.
	assert.InDeltaSlice(t, []float32{-50.0 / 3, -100.0 / 3, -50}, positions[0][:], 1e-4)
	assert.InDeltaSlice(t, []float32{50.0 / 3, 100.0 / 3, 50}, positions[1][:], 1e-4)
}

func TestNormalizePositions_Degenerate(t *testing.T) {
	positions := core.PositionSet{{3, 3, 3}, {3, 3, 3}}
	NormalizePositions(positions)
	assert.Equal(t, core.PositionSet{{0, 0, 0}, {0, 0, 0}}, positions)

	NormalizePositions(nil)
}

func TestParams(t *testing.T) {
	p := DefaultParams()
	require.NoError(t, p.Validate())
	assert.Equal(t, 40, p.NNeighbors)
	assert.Equal(t, 0.02, p.MinDist)
	assert.Equal(t, uint64(42), p.RandomState)

	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"components", func(p *Params) { p.NComponents = 2 }},
		{"neighbors", func(p *Params) { p.NNeighbors = 1 }},
		{"min dist", func(p *Params) { p.MinDist = -0.1 }},
		{"spread", func(p *Params) { p.Spread = 0 }},
		{"metric", func(p *Params) { p.Metric = "manhattan" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidParams)
		})
	}
}
