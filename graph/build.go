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


// Package graph builds deterministic top-K cosine similarity graphs over
// unit-normalized feature vectors.
package graph

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/poiesic/horus/core"
	"golang.org/x/sync/errgroup"
)

// rowsPerTask is how many rows one errgroup task searches before yielding.
const rowsPerTask = 64

type buildOptions struct {
	workers int
	logger  *slog.Logger
}

// Option configures Build.
type Option func(*buildOptions)

// WithWorkers sets how many rows are searched in parallel.
// Default is runtime.NumCPU(). The result does not depend on it.
func WithWorkers(n int) Option {
	return func(o *buildOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *buildOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Build computes the neighbor graph for set.
//
// Every row i is searched exhaustively for its K most similar other rows,
// ties broken by ascending index. Neighbors below MinSimilarity are dropped.
// Edges are emitted in (i ascending, rank ascending) order; with Dedupe the
// first edge seen for an unordered pair wins. The output is identical for
// identical input regardless of worker count. Memory beyond the result is
// O(K) per worker; no N×N matrix is formed.
func Build(ctx context.Context, set *core.FeatureVectorSet, params Params, opts ...Option) (core.EdgeSet, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := core.ValidateVectorSet(set); err != nil {
		return nil, err
	}

	o := buildOptions{
		workers: runtime.NumCPU(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	n := set.Len()
	k := min(params.K, n-1)
	if k == 0 {
		return core.EdgeSet{}, nil
	}

	start := time.Now()
	rows := make([][]neighbor, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for lo := 0; lo < n; lo += rowsPerTask {
		hi := min(lo+rowsPerTask, n)
		g.Go(func() error {
			s := newSearcher(set.Vectors, k)
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				rows[i] = s.search(i, params.MinSimilarity)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	edges := merge(rows, params.Dedupe)
	o.logger.Debug("neighbor graph built",
		"features", n, "k", k, "edges", len(edges), "elapsed", time.Since(start))
	return edges, nil
}

// merge flattens per-row neighbors into edges in row order.
func merge(rows [][]neighbor, dedupe bool) core.EdgeSet {
	total := 0
	for _, r := range rows {
		total += len(r)
	}
	edges := make(core.EdgeSet, 0, total)

	var seen map[[2]int]struct{}
	if dedupe {
		seen = make(map[[2]int]struct{}, total)
	}

	for i, r := range rows {
		for _, nb := range r {
			if dedupe {
				pair := [2]int{min(i, nb.index), max(i, nb.index)}
				if _, dup := seen[pair]; dup {
					continue
				}
				seen[pair] = struct{}{}
			}
			edges = append(edges, core.Edge{Source: i, Target: nb.index, Weight: nb.similarity})
		}
	}
	return edges
}
