package embed

import (
	"context"

	"github.com/poiesic/horus/core"
)

// Embedder maps high-dimensional feature vectors to 3D positions.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// Embed returns one position per input vector, in input order.
	// The result must be deterministic for a fixed Params.RandomState.
	Embed(ctx context.Context, set *core.FeatureVectorSet, params Params) (core.PositionSet, error)
}
