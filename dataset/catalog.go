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


// Package dataset describes the datasets horus can process and the
// configuration of a processing run.
//
// A dataset is one model's family of sparse autoencoders. Each unit is one
// model layer holding FeaturesPerUnit decoder vectors of dimension VectorDim.
package dataset

import (
	"fmt"
	"maps"
	"slices"
)

// Model describes one dataset in the catalog.
type Model struct {
	ID          string
	DisplayName string

	// Repository is where the raw SAE parameters are published.
	Repository string

	// LabelModelID and LabelSourceSet address the dataset at the label service.
	LabelModelID   string
	LabelSourceSet string

	Units           int
	FeaturesPerUnit int
	VectorDim       int
}

var catalog = map[string]*Model{
	"gemma-2-2b": {
		ID:              "gemma-2-2b",
		DisplayName:     "Gemma 2 2B",
		Repository:      "google/gemma-scope-2b-pt-res",
		LabelModelID:    "gemma-2-2b",
		LabelSourceSet:  "gemmascope-res-16k",
		Units:           26,
		FeaturesPerUnit: 16384,
		VectorDim:       2304,
	},
	"gemma-2-9b": {
		ID:              "gemma-2-9b",
		DisplayName:     "Gemma 2 9B",
		Repository:      "google/gemma-scope-9b-pt-res",
		LabelModelID:    "gemma-2-9b",
		LabelSourceSet:  "gemmascope-9b-res-16k",
		Units:           42,
		FeaturesPerUnit: 16384,
		VectorDim:       3584,
	},
}

// Lookup returns the catalog entry for id.
func Lookup(id string) (*Model, error) {
	m, ok := catalog[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownDataset, id, IDs())
	}
	return m, nil
}

// IDs returns the catalog's dataset ids in sorted order.
func IDs() []string {
	return slices.Sorted(maps.Keys(catalog))
}

// SourceID returns the label service source id of a unit, e.g. "12-gemmascope-res-16k".
func (m *Model) SourceID(unit int) string {
	return fmt.Sprintf("%d-%s", unit, m.LabelSourceSet)
}

// ValidateUnit checks that unit exists in the dataset.
func (m *Model) ValidateUnit(unit int) error {
	if unit < 0 || unit >= m.Units {
		return fmt.Errorf("%w: %d not in 0-%d for %s", ErrUnitOutOfRange, unit, m.Units-1, m.ID)
	}
	return nil
}

// AllUnits returns every unit of the dataset in ascending order.
func (m *Model) AllUnits() []int {
	units := make([]int, m.Units)
	for i := range units {
		units[i] = i
	}
	return units
}

// ResolveLabelSource maps a dataset unit to its label service coordinates.
// It satisfies labels.Resolver.
func ResolveLabelSource(datasetID string, unit int) (modelID, sourceID string, err error) {
	m, err := Lookup(datasetID)
	if err != nil {
		return "", "", err
	}
	if err := m.ValidateUnit(unit); err != nil {
		return "", "", err
	}
	return m.LabelModelID, m.SourceID(unit), nil
}
