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
	"context"
	"errors"
)

// Pipeline error taxonomy
var (
	// ErrInputNotFound indicates the source vectors for a unit do not exist.
	// Fatal for the unit; the pipeline advances to the next unit.
	ErrInputNotFound = errors.New("input not found")

	// ErrValidationMismatch indicates an unexpected vector count or dimension.
	// It is reported as a warning and processing continues with the actual shape.
	ErrValidationMismatch = errors.New("validation mismatch")

	// ErrUpstreamRateLimited indicates the label source asked us to slow down.
	// It is retried and never surfaced as a failure on its own.
	ErrUpstreamRateLimited = errors.New("upstream rate limited")

	// ErrUpstreamUnavailable indicates retries were exhausted for one resource.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrStageFailure wraps any other unhandled error raised inside a stage.
	ErrStageFailure = errors.New("stage failure")
)

// Domain validation errors
var (
	// ErrEmptyVectorSet indicates a vector set with no vectors.
	ErrEmptyVectorSet = errors.New("vector set is empty")

	// ErrRaggedVectorSet indicates vectors of differing dimension in one set.
	ErrRaggedVectorSet = errors.New("vectors have inconsistent dimensions")

	// ErrCardinalityMismatch indicates a derived set does not match its source set.
	ErrCardinalityMismatch = errors.New("cardinality mismatch")

	// ErrInvalidStage indicates an unknown stage name.
	ErrInvalidStage = errors.New("invalid stage")
)

// ErrorClass is the coarse classification of a unit failure.
type ErrorClass string

const (
	ClassNone          ErrorClass = ""
	ClassInputNotFound ErrorClass = "input_not_found"
	ClassUnavailable   ErrorClass = "upstream_unavailable"
	ClassCanceled      ErrorClass = "canceled"
	ClassStageFailure  ErrorClass = "stage_failure"
)

// Classify maps an error onto the pipeline taxonomy.
// Anything not recognized is a stage failure.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrInputNotFound):
		return ClassInputNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ClassCanceled
	case errors.Is(err, ErrUpstreamUnavailable):
		return ClassUnavailable
	default:
		return ClassStageFailure
	}
}
