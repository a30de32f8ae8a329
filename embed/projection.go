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


// Package embed defines the Embedder capability and ships a deterministic
// projection embedder.
package embed

import (
	"context"
	"log/slog"
	"math/rand/v2"

	"github.com/hupe1980/vecgo/distance"
	"github.com/poiesic/horus/core"
)

// ProjectionEmbedder embeds vectors with a seeded Gaussian random projection
// onto three axes, then normalizes the result. It is linear and fast, and the
// same RandomState always yields the same layout.
type ProjectionEmbedder struct {
	logger *slog.Logger
}

var _ Embedder = (*ProjectionEmbedder)(nil)

// Option configures a ProjectionEmbedder.
type Option func(*ProjectionEmbedder)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *ProjectionEmbedder) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewProjectionEmbedder creates a ProjectionEmbedder.
func NewProjectionEmbedder(opts ...Option) *ProjectionEmbedder {
	e := &ProjectionEmbedder{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Embed projects every vector onto three seeded random directions.
func (e *ProjectionEmbedder) Embed(ctx context.Context, set *core.FeatureVectorSet, params Params) (core.PositionSet, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := core.ValidateVectorSet(set); err != nil {
		return nil, err
	}

	axes := projectionAxes(params.RandomState, set.Dim)
	positions := make(core.PositionSet, set.Len())
	for i, v := range set.Vectors {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for axis := range 3 {
			positions[i][axis] = distance.Dot(axes[axis], v)
		}
	}

	NormalizePositions(positions)
	e.logger.Debug("projected vectors", "count", len(positions), "dim", set.Dim, "seed", params.RandomState)
	return positions, nil
}

// projectionAxes draws three unit-length Gaussian directions from seed.
func projectionAxes(seed uint64, dim int) [3][]float32 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	var axes [3][]float32
	for axis := range axes {
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32(rng.NormFloat64())
		}
		distance.NormalizeL2InPlace(v)
		axes[axis] = v
	}
	return axes
}
