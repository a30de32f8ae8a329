package export

import (
	"errors"
	"fmt"
	"path/filepath"
)

// PipelineVersion is recorded in every layer document and manifest.
const PipelineVersion = "1.0.0"

// ManifestFile is the manifest name inside a dataset's output directory.
const ManifestFile = "manifest.json"

// Config holds configuration for document export.
type Config struct {
	// OutputDir is the root output directory. Files land in OutputDir/<dataset>/.
	OutputDir string

	// Compress gzips layer documents and appends ".gz" to their names.
	// Default: true
	Compress bool

	// Indent pretty-prints documents with two-space indentation.
	// Default: true
	Indent bool
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithOutputDir sets the output root.
func WithOutputDir(dir string) ConfigOption {
	return func(c *Config) {
		c.OutputDir = dir
	}
}

// WithCompress enables or disables gzip.
func WithCompress(compress bool) ConfigOption {
	return func(c *Config) {
		c.Compress = compress
	}
}

// WithIndent enables or disables pretty printing.
func WithIndent(indent bool) ConfigOption {
	return func(c *Config) {
		c.Indent = indent
	}
}

// DefaultConfig returns a Config writing compressed, indented documents to ./output.
func DefaultConfig() *Config {
	return &Config{
		OutputDir: "./output",
		Compress:  true,
		Indent:    true,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Validate checks that the configuration is valid and complete.
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("export config: OutputDir is required")
	}
	return nil
}

// LayerFilename returns "layer-NN.json" or "layer-NN.json.gz".
func (c *Config) LayerFilename(unit int) string {
	name := fmt.Sprintf("layer-%02d.json", unit)
	if c.Compress {
		name += ".gz"
	}
	return name
}

// DatasetDir returns the output directory of one dataset.
func (c *Config) DatasetDir(datasetID string) string {
	return filepath.Join(c.OutputDir, datasetID)
}
