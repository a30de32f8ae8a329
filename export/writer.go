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


package export

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/poiesic/horus/core"
	"github.com/poiesic/horus/dataset"
)

// Manifest lists the exported layers of one dataset.
type Manifest struct {
	RunID            uuid.UUID       `json:"runId"`
	ModelID          string          `json:"modelId"`
	DisplayName      string          `json:"displayName"`
	TotalLayers      int             `json:"totalLayers"`
	FeaturesPerLayer int             `json:"featuresPerLayer"`
	Layers           []ManifestLayer `json:"layers"`
	LabelModelID     string          `json:"neuronpediaModelId"`
	LabelSourceSet   string          `json:"neuronpediaSourceSet"`
	PipelineVersion  string          `json:"pipelineVersion"`
	GeneratedAt      time.Time       `json:"generatedAt"`
}

// ManifestLayer describes one exported layer file.
type ManifestLayer struct {
	Layer    int    `json:"layer"`
	FilePath string `json:"filePath"`
	FileSize int64  `json:"fileSize"`
	SourceID string `json:"sourceId"`
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Exporter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Exporter writes layer documents and manifests. Every file is written to a
// temporary sibling and renamed into place, so readers never observe a
// partially written document.
type Exporter struct {
	cfg    *Config
	logger *slog.Logger
}

// NewExporter creates an exporter.
func NewExporter(cfg *Config, opts ...Option) (*Exporter, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Exporter{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// LayerPath returns the output file of a unit.
func (e *Exporter) LayerPath(datasetID string, unit int) string {
	return filepath.Join(e.cfg.DatasetDir(datasetID), e.cfg.LayerFilename(unit))
}

// ManifestPath returns the manifest file of a dataset.
func (e *Exporter) ManifestPath(datasetID string) string {
	return filepath.Join(e.cfg.DatasetDir(datasetID), ManifestFile)
}

// WriteLayer writes a unit's document and reports where it landed.
func (e *Exporter) WriteLayer(ctx context.Context, datasetID string, unit int, doc *LayerDocument) (*core.ExportRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := e.LayerPath(datasetID, unit)
	size, err := writeAtomic(path, func(w io.Writer) error {
		if !e.cfg.Compress {
			return e.encode(w, doc)
		}
		zw := gzip.NewWriter(w)
		if err := e.encode(zw, doc); err != nil {
			return err
		}
		return zw.Close()
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("exported layer",
		"path", path,
		"nodes", len(doc.Nodes),
		"edges", len(doc.Edges),
		"size_mb", fmt.Sprintf("%.2f", float64(size)/(1<<20)))
	return &core.ExportRecord{Path: path, Size: size}, nil
}

// WriteManifest lists the given units of a dataset. Units whose layer file
// does not exist are left out.
func (e *Exporter) WriteManifest(ctx context.Context, model *dataset.Model, runID uuid.UUID, units []int, generatedAt time.Time) (*Manifest, error) {
	if model == nil {
		return nil, ErrModelRequired
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	manifest := &Manifest{
		RunID:            runID,
		ModelID:          model.ID,
		DisplayName:      model.DisplayName,
		TotalLayers:      model.Units,
		FeaturesPerLayer: model.FeaturesPerUnit,
		Layers:           []ManifestLayer{},
		LabelModelID:     model.LabelModelID,
		LabelSourceSet:   model.LabelSourceSet,
		PipelineVersion:  PipelineVersion,
		GeneratedAt:      generatedAt.UTC(),
	}

	sorted := slices.Clone(units)
	slices.Sort(sorted)
	for _, unit := range slices.Compact(sorted) {
		info, err := os.Stat(e.LayerPath(model.ID, unit))
		if err != nil {
			e.logger.Warn("layer file missing from manifest", "unit", unit, "error", err)
			continue
		}
		manifest.Layers = append(manifest.Layers, ManifestLayer{
			Layer:    unit,
			FilePath: e.cfg.LayerFilename(unit),
			FileSize: info.Size(),
			SourceID: model.SourceID(unit),
		})
	}

	path := e.ManifestPath(model.ID)
	if _, err := writeAtomic(path, func(w io.Writer) error {
		return e.encode(w, manifest)
	}); err != nil {
		return nil, err
	}
	e.logger.Info("exported manifest", "path", path, "layers", len(manifest.Layers))
	return manifest, nil
}

func (e *Exporter) encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	if e.cfg.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// ReadLayer decodes a layer document, transparently gunzipping ".gz" files.
func ReadLayer(path string) (*LayerDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}

	var doc LayerDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &doc, nil
}

// writeAtomic writes path through a temporary file in the same directory
// and returns the final file size.
func writeAtomic(path string, write func(io.Writer) error) (size int64, err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriterSize(tmp, 1<<16)
	if err = write(bw); err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrWriteFailed, path, err)
	}
	if err = bw.Flush(); err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrWriteFailed, path, err)
	}
	if err = tmp.Chmod(0o644); err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrWriteFailed, path, err)
	}
	if err = tmp.Sync(); err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrWriteFailed, path, err)
	}
	info, err := tmp.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrWriteFailed, path, err)
	}
	if err = tmp.Close(); err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrWriteFailed, path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrWriteFailed, path, err)
	}
	return info.Size(), nil
}
