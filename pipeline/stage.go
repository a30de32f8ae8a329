package pipeline

import (
	"context"

	"github.com/poiesic/horus/core"
)

// stage is one cacheable step of a unit.
type stage interface {
	// name identifies the stage and its cache key.
	name() core.StageName

	// run does the stage's work and returns the artifact to publish.
	run(ctx context.Context, u *unitRun) ([]byte, error)
}
