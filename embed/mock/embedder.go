package mock

import (
	"context"
	"sync/atomic"

	"github.com/poiesic/horus/core"
	"github.com/poiesic/horus/embed"
)

// MockEmbedder is a test double for embed.Embedder.
// It allows custom behavior injection via a function field.
type MockEmbedder struct {
	// EmbedFunc is called by Embed if set.
	// If nil, uses default deterministic behavior.
	EmbedFunc func(ctx context.Context, set *core.FeatureVectorSet, params embed.Params) (core.PositionSet, error)

	callCount atomic.Int64
}

var _ embed.Embedder = (*MockEmbedder)(nil)

// NewMockEmbedder creates a mock embedder with default deterministic behavior.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{}
}

// Embed returns a deterministic diagonal layout unless EmbedFunc is set.
func (m *MockEmbedder) Embed(ctx context.Context, set *core.FeatureVectorSet, params embed.Params) (core.PositionSet, error) {
	m.callCount.Add(1)

	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, set, params)
	}

	positions := make(core.PositionSet, set.Len())
	for i := range positions {
		f := float32(i)
		positions[i] = core.Position{f, f, f}
	}
	embed.NormalizePositions(positions)
	return positions, nil
}

// CallCount returns the number of times Embed was called.
func (m *MockEmbedder) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and any injected behavior.
func (m *MockEmbedder) Reset() {
	m.callCount.Store(0)
	m.EmbedFunc = nil
}
