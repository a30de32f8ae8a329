package mock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/poiesic/horus/core"
	"github.com/poiesic/horus/source"
)

// MockSource is a test double for source.VectorSource backed by a map of
// unit vectors. Units that were never added report core.ErrInputNotFound.
type MockSource struct {
	// AcquireFunc is called by Acquire if set.
	AcquireFunc func(ctx context.Context, datasetID string, unit int) (*core.FeatureVectorSet, error)

	mu        sync.RWMutex
	units     map[string]*core.FeatureVectorSet
	callCount atomic.Int64
}

var _ source.VectorSource = (*MockSource)(nil)

// NewMockSource creates an empty mock source.
func NewMockSource() *MockSource {
	return &MockSource{units: make(map[string]*core.FeatureVectorSet)}
}

// Add registers raw vectors for a unit. They are normalized on Acquire.
func (m *MockSource) Add(datasetID string, unit int, vectors [][]float32) {
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units[unitKey(datasetID, unit)] = &core.FeatureVectorSet{Vectors: vectors, Dim: dim}
}

// Acquire returns a normalized copy of the registered vectors.
func (m *MockSource) Acquire(ctx context.Context, datasetID string, unit int) (*core.FeatureVectorSet, error) {
	m.callCount.Add(1)

	if m.AcquireFunc != nil {
		return m.AcquireFunc(ctx, datasetID, unit)
	}

	m.mu.RLock()
	set, ok := m.units[unitKey(datasetID, unit)]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s unit %d", core.ErrInputNotFound, datasetID, unit)
	}

	vectors := make([][]float32, len(set.Vectors))
	for i, v := range set.Vectors {
		vectors[i] = append([]float32(nil), v...)
	}
	source.NormalizeSet(vectors)
	return &core.FeatureVectorSet{Vectors: vectors, Dim: set.Dim}, nil
}

// CallCount returns the number of times Acquire was called.
func (m *MockSource) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and any injected behavior.
func (m *MockSource) Reset() {
	m.callCount.Store(0)
	m.AcquireFunc = nil
}

func unitKey(datasetID string, unit int) string {
	return fmt.Sprintf("%s:%d", datasetID, unit)
}
