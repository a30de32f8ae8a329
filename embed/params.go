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


package embed

import (
	"errors"
	"fmt"
)

// ErrInvalidParams is returned when embedding parameters are out of range.
var ErrInvalidParams = errors.New("invalid embedding parameters")

// Params configures an Embedder. The field set mirrors common UMAP knobs so
// they can be recorded with exported layouts; embedders ignore what they do not use.
type Params struct {
	NNeighbors        int     `yaml:"n_neighbors" json:"n_neighbors"`
	MinDist           float64 `yaml:"min_dist" json:"min_dist"`
	Metric            string  `yaml:"metric" json:"metric"`
	NComponents       int     `yaml:"n_components" json:"n_components"`
	Spread            float64 `yaml:"spread" json:"spread"`
	RepulsionStrength float64 `yaml:"repulsion_strength" json:"repulsion_strength"`
	RandomState       uint64  `yaml:"random_state" json:"random_state"`
}

// DefaultParams returns parameters tuned for tight, well-separated clusters.
func DefaultParams() Params {
	return Params{
		NNeighbors:        40,
		MinDist:           0.02,
		Metric:            "cosine",
		NComponents:       3,
		Spread:            1.0,
		RepulsionStrength: 1.5,
		RandomState:       42,
	}
}

// Validate checks that the parameters are usable.
func (p Params) Validate() error {
	if p.NComponents != 3 {
		return fmt.Errorf("%w: NComponents must be 3, got %d", ErrInvalidParams, p.NComponents)
	}
	if p.NNeighbors < 2 {
		return fmt.Errorf("%w: NNeighbors must be at least 2, got %d", ErrInvalidParams, p.NNeighbors)
	}
	if p.MinDist < 0 {
		return fmt.Errorf("%w: MinDist must not be negative", ErrInvalidParams)
	}
	if p.Spread <= 0 {
		return fmt.Errorf("%w: Spread must be positive", ErrInvalidParams)
	}
	if p.Metric != "cosine" && p.Metric != "euclidean" {
		return fmt.Errorf("%w: unsupported metric %q", ErrInvalidParams, p.Metric)
	}
	return nil
}
