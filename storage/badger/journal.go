package badger

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/horus/core"
	"github.com/poiesic/horus/storage"
)

// LabelJournal implements storage.LabelJournal for BadgerDB.
// Each label is its own key, so concurrent appends never conflict.
type LabelJournal struct {
	backend *Backend
}

var _ storage.LabelJournal = (*LabelJournal)(nil)

// NewLabelJournal creates a new LabelJournal.
func NewLabelJournal(backend *Backend) (*LabelJournal, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}
	return &LabelJournal{backend: backend}, nil
}

// AppendLabel records the label for one feature.
func (j *LabelJournal) AppendLabel(ctx context.Context, datasetID string, unit, index int, label string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if j.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	return j.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeLabelKey(datasetID, unit, index), []byte(label)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LoadLabels returns every journaled feature for the unit.
func (j *LabelJournal) LoadLabels(ctx context.Context, datasetID string, unit int) (core.LabelRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if j.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	labels := make(core.LabelRecord)
	err := j.backend.ScanPrefix(makePartialLabelKey(datasetID, unit), func(key, value []byte) error {
		index, err := parseLabelIndex(key)
		if err != nil {
			return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
		}
		labels[index] = string(value)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return labels, nil
}

// ClearLabels removes the unit's journal.
func (j *LabelJournal) ClearLabels(ctx context.Context, datasetID string, unit int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if j.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return j.backend.DeletePrefix(makePartialLabelKey(datasetID, unit))
}
