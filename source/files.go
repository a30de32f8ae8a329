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


package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/poiesic/horus/core"
)

const (
	// VectorsFile is the cached, already extracted decoder matrix.
	VectorsFile = "decoder_vectors.npy"
	// ArchiveFile is the raw SAE parameter archive.
	ArchiveFile = "params.npz"
)

// Option configures a FileSource.
type Option func(*FileSource)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *FileSource) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// FileSource reads decoder matrices from a directory tree laid out as
//
//	<root>/<dataset>/layer_<unit>/decoder_vectors.npy
//	<root>/<dataset>/layer_<unit>/params.npz
//
// The .npy file is preferred when both exist.
type FileSource struct {
	root   string
	logger *slog.Logger
}

var _ VectorSource = (*FileSource)(nil)

// NewFileSource creates a source rooted at dir.
func NewFileSource(root string, opts ...Option) *FileSource {
	s := &FileSource{root: root, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UnitDir returns the directory holding a unit's input files.
func (s *FileSource) UnitDir(datasetID string, unit int) string {
	return filepath.Join(s.root, datasetID, fmt.Sprintf("layer_%d", unit))
}

// Acquire loads and normalizes the unit's decoder vectors.
func (s *FileSource) Acquire(ctx context.Context, datasetID string, unit int) (*core.FeatureVectorSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := s.UnitDir(datasetID, unit)
	set, path, err := s.load(dir)
	if err != nil {
		return nil, err
	}
	if err := core.ValidateVectorSet(set); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	NormalizeSet(set.Vectors)
	s.logger.Debug("loaded decoder vectors", "path", path, "count", set.Len(), "dim", set.Dim)
	return set, nil
}

func (s *FileSource) load(dir string) (*core.FeatureVectorSet, string, error) {
	path := filepath.Join(dir, VectorsFile)
	f, err := os.Open(path)
	if err == nil {
		defer f.Close()
		set, err := ReadNPY(f)
		if err != nil {
			return nil, path, fmt.Errorf("%s: %w", path, err)
		}
		return set, path, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, path, err
	}

	path = filepath.Join(dir, ArchiveFile)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, path, fmt.Errorf("%w: no %s or %s in %s", core.ErrInputNotFound, VectorsFile, ArchiveFile, dir)
		}
		return nil, path, err
	}
	set, err := ReadNPZ(path)
	if err != nil {
		return nil, path, fmt.Errorf("%s: %w", path, err)
	}
	return set, path, nil
}
