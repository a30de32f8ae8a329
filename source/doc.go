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


// Package source acquires the feature vectors a unit is built from.
//
// FileSource reads SAE decoder matrices stored as NumPy arrays, either a
// plain decoder_vectors.npy or the W_dec member of a params.npz archive.
// Every vector is L2-normalized on load so cosine similarity reduces to a
// dot product downstream. Dead features normalize to the zero vector.
package source
