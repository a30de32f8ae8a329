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


// Package labels fetches human-readable feature labels from an external
// label service.
//
// The package is layered:
//
//   - Source performs one request for one feature (HTTPSource talks to a
//     Neuronpedia-compatible API).
//   - Fetcher drives a Source to a terminal outcome (Found, NotFound or
//     Failed) under a RetryPolicy, gating every attempt on a shared Limiter.
//   - BatchFetcher runs many Fetcher calls on a bounded worker pool.
//
// Rate limit signals from the upstream are waited out without consuming an
// attempt. Generic errors back off exponentially and consume one attempt
// each; once MaxAttempts is spent the feature is Failed. A Failed feature
// never fails the batch.
//
// # Usage
//
//	limiter, _ := ratelimit.NewSlidingWindow(cfg.RequestsPerMinute)
//	source, _ := labels.NewHTTPSource(cfg, catalog.LabelSource)
//	fetcher, _ := labels.NewFetcher(source, limiter, labels.WithPolicy(cfg.Retry))
//	batch, _ := labels.NewBatchFetcher(fetcher, labels.WithConcurrency(cfg.Concurrency))
//	defer batch.Release()
//
//	payloads, stats, err := batch.FetchAll(ctx, "gemma-2-2b", 12, indices, nil)
package labels
