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


package graph

import (
	"errors"
	"fmt"
)

// ErrInvalidParams is returned when graph parameters are out of range.
var ErrInvalidParams = errors.New("invalid graph parameters")

// Params controls neighbor graph construction.
type Params struct {
	// K is the number of nearest neighbors searched per feature.
	// Default: 25
	K int `yaml:"k"`

	// MinSimilarity drops neighbors whose cosine similarity is below it.
	// Default: 0.25
	MinSimilarity float32 `yaml:"min_similarity"`

	// Dedupe keeps a single edge per unordered feature pair.
	// Default: true
	Dedupe bool `yaml:"dedupe"`
}

// DefaultParams returns the standard co-activation graph parameters.
func DefaultParams() Params {
	return Params{
		K:             25,
		MinSimilarity: 0.25,
		Dedupe:        true,
	}
}

// Validate checks that the parameters are usable.
func (p Params) Validate() error {
	if p.K < 1 {
		return fmt.Errorf("%w: K must be at least 1, got %d", ErrInvalidParams, p.K)
	}
	if p.MinSimilarity < -1 || p.MinSimilarity > 1 {
		return fmt.Errorf("%w: MinSimilarity must be within [-1, 1], got %g", ErrInvalidParams, p.MinSimilarity)
	}
	return nil
}
