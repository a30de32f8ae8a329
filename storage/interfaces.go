package storage

import (
	"context"

	"github.com/poiesic/horus/core"
)

// CacheStore persists stage artifacts keyed by (dataset, unit, stage).
// Implementations must be thread-safe and support concurrent access.
//
// An artifact is visible only once its completion record is Completed, and
// the artifact and record are published together. Completed entries are
// write-once unless the caller forces an overwrite.
type CacheStore interface {
	// Exists reports whether the stage has a Completed artifact.
	Exists(ctx context.Context, key core.CacheKey) (bool, error)

	// Get returns the Completed artifact for key.
	// Returns ErrNotFound if the stage has not completed.
	// Returns ErrChecksumMismatch if the stored bytes do not match the record.
	Get(ctx context.Context, key core.CacheKey) ([]byte, error)

	// Put stores the artifact and marks the stage Completed in one transaction.
	// Returns ErrAlreadyCompleted if the stage is Completed and force is false.
	Put(ctx context.Context, key core.CacheKey, data []byte, force bool) error

	// State returns the completion record for key.
	// A key that was never touched yields a NotStarted record, not an error.
	State(ctx context.Context, key core.CacheKey) (*core.StageRecord, error)

	// MarkInProgress records that the stage is running.
	// Returns ErrAlreadyCompleted if the stage is Completed and force is false.
	MarkInProgress(ctx context.Context, key core.CacheKey, force bool) error

	// MarkFailed records a stage failure. Any previous artifact is discarded.
	MarkFailed(ctx context.Context, key core.CacheKey, cause error) error

	// Delete removes the artifact and record for key.
	Delete(ctx context.Context, key core.CacheKey) error

	// Close releases resources held by the store.
	Close() error
}

// LabelJournal persists labels one feature at a time while a label batch is
// still running, so an interrupted batch does not lose finished fetches.
// Implementations must be safe for concurrent AppendLabel calls.
type LabelJournal interface {
	// AppendLabel records the label for one feature. An empty label marks the
	// feature as resolved without text.
	AppendLabel(ctx context.Context, datasetID string, unit, index int, label string) error

	// LoadLabels returns every journaled feature for the unit, including empty labels.
	LoadLabels(ctx context.Context, datasetID string, unit int) (core.LabelRecord, error)

	// ClearLabels removes the unit's journal.
	ClearLabels(ctx context.Context, datasetID string, unit int) error
}
