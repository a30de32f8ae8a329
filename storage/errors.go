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


package storage

import "errors"

var (
	// ErrNotFound indicates that the requested artifact was not found or has not completed.
	ErrNotFound = errors.New("artifact not found")

	// ErrAlreadyCompleted indicates a write-once violation on a completed stage.
	ErrAlreadyCompleted = errors.New("stage already completed")

	// ErrChecksumMismatch indicates stored artifact bytes do not match their record.
	ErrChecksumMismatch = errors.New("artifact checksum mismatch")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrTruncatedData indicates that data was truncated during reading.
	ErrTruncatedData = errors.New("truncated data")

	// ErrUnsupportedVersion indicates an artifact written by an incompatible codec.
	ErrUnsupportedVersion = errors.New("unsupported artifact version")
)
