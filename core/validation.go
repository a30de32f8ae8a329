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


package core

import (
	"errors"
	"fmt"
)

// ValidateVectorSet checks the structural invariants of a vector set.
//
// Validation rules:
//   - the set must contain at least one vector
//   - every vector must have exactly Dim components
//
// NOT validated:
//   - unit norm (dead features normalize to the zero vector)
func ValidateVectorSet(set *FeatureVectorSet) error {
	if set == nil || len(set.Vectors) == 0 {
		return ErrEmptyVectorSet
	}
	for i, v := range set.Vectors {
		if len(v) != set.Dim {
			return fmt.Errorf("%w: vector %d has %d components, expected %d", ErrRaggedVectorSet, i, len(v), set.Dim)
		}
	}
	return nil
}

// CheckShape compares a vector set against the expected shape.
// A zero expectation is not checked. All mismatches are joined into a single
// error wrapping ErrValidationMismatch; callers treat it as a warning.
func CheckShape(set *FeatureVectorSet, expectedCount, expectedDim int) error {
	var errs []error
	if expectedCount > 0 && set.Len() != expectedCount {
		errs = append(errs, fmt.Errorf("%w: expected %d vectors, got %d", ErrValidationMismatch, expectedCount, set.Len()))
	}
	if expectedDim > 0 && set != nil && set.Dim != expectedDim {
		errs = append(errs, fmt.Errorf("%w: expected dimension %d, got %d", ErrValidationMismatch, expectedDim, set.Dim))
	}
	return errors.Join(errs...)
}

// ValidateGraphArtifact checks that positions are parallel to a set of n vectors
// and that every edge references a valid index.
func ValidateGraphArtifact(artifact *GraphArtifact, n int) error {
	if artifact == nil {
		return fmt.Errorf("%w: graph artifact is nil", ErrCardinalityMismatch)
	}
	if len(artifact.Positions) != n {
		return fmt.Errorf("%w: %d positions for %d vectors", ErrCardinalityMismatch, len(artifact.Positions), n)
	}
	for i, e := range artifact.Edges {
		if e.Source < 0 || e.Source >= n || e.Target < 0 || e.Target >= n {
			return fmt.Errorf("%w: edge %d (%d->%d) out of range", ErrCardinalityMismatch, i, e.Source, e.Target)
		}
	}
	return nil
}
