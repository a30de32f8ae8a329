package source

import (
	"context"

	"github.com/poiesic/horus/core"
)

// VectorSource supplies the raw feature vectors of one unit.
// Implementations must be thread-safe for concurrent use.
type VectorSource interface {
	// Acquire returns the unit's vectors, L2-normalized.
	// Returns an error wrapping core.ErrInputNotFound if the unit has no input.
	Acquire(ctx context.Context, datasetID string, unit int) (*core.FeatureVectorSet, error)
}
