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


package dataset

import (
	"errors"
	"fmt"
	"os"

	"github.com/poiesic/horus/embed"
	"github.com/poiesic/horus/graph"
	"github.com/poiesic/horus/labels"
	"gopkg.in/yaml.v3"
)

// Config describes one processing run. It can be loaded from a YAML file
// and then overridden field by field.
type Config struct {
	// Dataset is the catalog id to process.
	// Default: "gemma-2-2b"
	Dataset string `yaml:"dataset"`

	// Units selects units, e.g. "12", "0-5", "0,5,12". Empty means all.
	Units string `yaml:"units"`

	// InputDir holds <dataset>/layer_<unit>/ decoder matrices.
	// Default: "./cache"
	InputDir string `yaml:"input_dir"`

	// CacheDir holds the stage cache database.
	// Default: "./cache/horus.db"
	CacheDir string `yaml:"cache_dir"`

	// OutputDir receives <dataset>/layer-NN.json[.gz] and manifest.json.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// Compress gzips layer documents.
	// Default: true
	Compress bool `yaml:"compress"`

	// SkipLabels leaves the labels stage out of every unit.
	SkipLabels bool `yaml:"skip_labels"`

	Graph  graph.Params  `yaml:"graph"`
	Embed  embed.Params  `yaml:"embed"`
	Labels labels.Config `yaml:"labels"`
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithDataset sets the dataset id.
func WithDataset(id string) ConfigOption {
	return func(c *Config) {
		c.Dataset = id
	}
}

// WithUnits sets the unit selection.
func WithUnits(spec string) ConfigOption {
	return func(c *Config) {
		c.Units = spec
	}
}

// WithInputDir sets the input directory.
func WithInputDir(dir string) ConfigOption {
	return func(c *Config) {
		c.InputDir = dir
	}
}

// WithCacheDir sets the stage cache directory.
func WithCacheDir(dir string) ConfigOption {
	return func(c *Config) {
		c.CacheDir = dir
	}
}

// WithOutputDir sets the output directory.
func WithOutputDir(dir string) ConfigOption {
	return func(c *Config) {
		c.OutputDir = dir
	}
}

// WithCompress enables or disables gzip output.
func WithCompress(compress bool) ConfigOption {
	return func(c *Config) {
		c.Compress = compress
	}
}

// WithSkipLabels enables or disables the labels stage.
func WithSkipLabels(skip bool) ConfigOption {
	return func(c *Config) {
		c.SkipLabels = skip
	}
}

// DefaultConfig returns a Config with the standard pipeline settings.
func DefaultConfig() *Config {
	return &Config{
		Dataset:   "gemma-2-2b",
		InputDir:  "./cache",
		CacheDir:  "./cache/horus.db",
		OutputDir: "./output",
		Compress:  true,
		Graph:     graph.DefaultParams(),
		Embed:     embed.DefaultParams(),
		Labels:    *labels.DefaultConfig(),
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

// LoadConfig reads a YAML file over the defaults. Keys missing from the
// file keep their default values. ${VAR} references in paths and the API key
// are expanded from the environment. The result is not validated so callers
// can apply overrides first.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.InputDir = os.ExpandEnv(cfg.InputDir)
	cfg.CacheDir = os.ExpandEnv(cfg.CacheDir)
	cfg.OutputDir = os.ExpandEnv(cfg.OutputDir)
	cfg.Labels.APIKey = os.ExpandEnv(cfg.Labels.APIKey)
	return cfg, nil
}

// Model returns the catalog entry of the configured dataset.
func (c *Config) Model() (*Model, error) {
	return Lookup(c.Dataset)
}

// SelectedUnits resolves the configured unit selection against the catalog.
func (c *Config) SelectedUnits() ([]int, error) {
	m, err := c.Model()
	if err != nil {
		return nil, err
	}
	return m.ParseUnits(c.Units)
}

// Validate checks that the configuration is valid and complete.
func (c *Config) Validate() error {
	if _, err := c.SelectedUnits(); err != nil {
		return fmt.Errorf("dataset config: %w", err)
	}
	if c.InputDir == "" {
		return errors.New("dataset config: InputDir is required")
	}
	if c.CacheDir == "" {
		return errors.New("dataset config: CacheDir is required")
	}
	if c.OutputDir == "" {
		return errors.New("dataset config: OutputDir is required")
	}
	if err := c.Graph.Validate(); err != nil {
		return fmt.Errorf("dataset config: %w", err)
	}
	if err := c.Embed.Validate(); err != nil {
		return fmt.Errorf("dataset config: %w", err)
	}
	if err := c.Labels.Validate(); err != nil {
		return fmt.Errorf("dataset config: %w", err)
	}
	return nil
}
