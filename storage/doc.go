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


// Package storage provides the cache abstraction used by the horus pipeline.
//
// A CacheStore holds one artifact per (dataset, unit, stage) key together with
// a completion record. The record follows a small state machine:
//
//	NotStarted -> InProgress -> Completed
//	                         -> Failed -> InProgress -> ...
//
// Only Completed records expose their artifact, and an artifact is always
// written in the same transaction that marks it Completed. A process that
// dies mid-stage leaves an InProgress record behind, which is treated exactly
// like NotStarted on the next run.
//
// # Constructor Return Type Pattern
//
// Backend constructors return concrete types that satisfy the storage interfaces:
//
//	cache, err := badger.NewCacheStore(backend)  // *badger.CacheStore, a storage.CacheStore
//
// # Serialization
//
// Artifacts are encoded with mus-go primitives behind the Marshal*/Unmarshal*
// helpers in this package. Each artifact starts with a codec version so a
// cache written by an incompatible build fails loudly instead of decoding garbage.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/cache", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	cache, err := badger.NewCacheStore(backend)
//
// Use in tests with in-memory storage:
//
//	cache, journal, backend, err := badger.NewMemoryStores()
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access
// from multiple goroutines.
package storage
