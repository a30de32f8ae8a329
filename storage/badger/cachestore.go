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


package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-crypt/x/blake2b"
	"github.com/poiesic/horus/core"
	"github.com/poiesic/horus/storage"
)

// checksumSize is the blake2b digest width used for artifacts.
const checksumSize = 32

// CacheStore implements storage.CacheStore for BadgerDB.
type CacheStore struct {
	backend *Backend
	now     func() time.Time
}

var _ storage.CacheStore = (*CacheStore)(nil)

// NewCacheStore creates a new CacheStore.
func NewCacheStore(backend *Backend) (*CacheStore, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}
	return &CacheStore{
		backend: backend,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close is a no-op; the backend is owned by the caller.
func (s *CacheStore) Close() error {
	return nil
}

// Exists reports whether the stage has a Completed artifact.
func (s *CacheStore) Exists(ctx context.Context, key core.CacheKey) (bool, error) {
	record, err := s.State(ctx, key)
	if err != nil {
		return false, err
	}
	return record.State == core.StateCompleted, nil
}

// Get returns the Completed artifact for key.
func (s *CacheStore) Get(ctx context.Context, key core.CacheKey) ([]byte, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var data []byte
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		record, err := readRecord(tx, key)
		if err != nil {
			return err
		}
		if record.State != core.StateCompleted {
			return fmt.Errorf("%w: %s", storage.ErrNotFound, key)
		}

		item, err := tx.Get(makeArtifactKey(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", storage.ErrNotFound, key)
			}
			return err
		}
		data, err = item.ValueCopy(nil)
		if err != nil {
			return err
		}

		sum, err := checksum(data)
		if err != nil {
			return err
		}
		if len(data) != record.Size || !bytes.Equal(sum, record.Checksum) {
			return fmt.Errorf("%w: %s", storage.ErrChecksumMismatch, key)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Put stores the artifact and its Completed record in one transaction.
func (s *CacheStore) Put(ctx context.Context, key core.CacheKey, data []byte, force bool) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	sum, err := checksum(data)
	if err != nil {
		return err
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		current, err := readRecord(tx, key)
		if err != nil {
			return err
		}
		if current.State == core.StateCompleted && !force {
			return fmt.Errorf("%w: %s", storage.ErrAlreadyCompleted, key)
		}

		record := &core.StageRecord{
			State:     core.StateCompleted,
			Checksum:  sum,
			Size:      len(data),
			UpdatedAt: s.now(),
		}
		if err := tx.Set(makeArtifactKey(key), data); err != nil {
			return err
		}
		if err := tx.Set(makeRecordKey(key), storage.MarshalStageRecord(record)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// State returns the completion record for key.
func (s *CacheStore) State(ctx context.Context, key core.CacheKey) (*core.StageRecord, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var record *core.StageRecord
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		record, err = readRecord(tx, key)
		return err
	}, false)
	return record, err
}

// MarkInProgress records that the stage is running.
// Forcing a Completed stage back to InProgress discards its artifact.
func (s *CacheStore) MarkInProgress(ctx context.Context, key core.CacheKey, force bool) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		current, err := readRecord(tx, key)
		if err != nil {
			return err
		}
		if current.State == core.StateCompleted && !force {
			return fmt.Errorf("%w: %s", storage.ErrAlreadyCompleted, key)
		}

		record := &core.StageRecord{State: core.StateInProgress, UpdatedAt: s.now()}
		if err := tx.Delete(makeArtifactKey(key)); err != nil {
			return err
		}
		if err := tx.Set(makeRecordKey(key), storage.MarshalStageRecord(record)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// MarkFailed records a stage failure and discards any artifact.
func (s *CacheStore) MarkFailed(ctx context.Context, key core.CacheKey, cause error) error {
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	record := &core.StageRecord{State: core.StateFailed, UpdatedAt: s.now()}
	if cause != nil {
		record.Error = cause.Error()
	}

	// Failures are recorded even when ctx is already canceled; that is
	// usually why the stage failed.
	return s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeArtifactKey(key)); err != nil {
			return err
		}
		if err := tx.Set(makeRecordKey(key), storage.MarshalStageRecord(record)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Delete removes the artifact and record for key.
func (s *CacheStore) Delete(ctx context.Context, key core.CacheKey) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeArtifactKey(key)); err != nil {
			return err
		}
		if err := tx.Delete(makeRecordKey(key)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

func (s *CacheStore) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return nil
}

// readRecord loads the record for key, defaulting to NotStarted.
func readRecord(tx *badger.Txn, key core.CacheKey) (*core.StageRecord, error) {
	item, err := tx.Get(makeRecordKey(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return &core.StageRecord{State: core.StateNotStarted}, nil
		}
		return nil, err
	}

	var record *core.StageRecord
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		record, unmarshalErr = storage.UnmarshalStageRecord(val)
		return unmarshalErr
	})
	return record, err
}

func checksum(data []byte) ([]byte, error) {
	h, err := blake2b.New(checksumSize, nil)
	if err != nil {
		return nil, err
	}
	h.Write(data)
	return h.Sum(nil), nil
}
