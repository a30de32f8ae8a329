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


package labels

import (
	"errors"
	"strings"
	"time"
)

// Config holds configuration for the label fetch subsystem.
type Config struct {
	// BaseURL is the root of the label service.
	// Example: "https://www.neuronpedia.org"
	BaseURL string `yaml:"base_url"`

	// APIKey is sent with every request as the x-api-key header.
	APIKey string `yaml:"api_key"`

	// RequestsPerMinute bounds admissions across all concurrent fetches.
	// Default: 100
	RequestsPerMinute int `yaml:"requests_per_minute"`

	// Concurrency is the maximum number of fetches in flight.
	// Default: 10
	Concurrency int `yaml:"concurrency"`

	// TopK is the number of leading feature indices labeled per unit.
	// Default: 1000
	TopK int `yaml:"top_k"`

	// RequestTimeout bounds a single HTTP request.
	// Default: 30s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Retry is the per-resource retry policy.
	Retry RetryPolicy `yaml:"retry"`
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithBaseURL sets the label service base URL.
func WithBaseURL(url string) ConfigOption {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithRequestsPerMinute sets the sliding window admission limit.
func WithRequestsPerMinute(n int) ConfigOption {
	return func(c *Config) {
		c.RequestsPerMinute = n
	}
}

// WithLabelConcurrency sets the maximum number of fetches in flight.
func WithLabelConcurrency(n int) ConfigOption {
	return func(c *Config) {
		c.Concurrency = n
	}
}

// WithTopK sets how many leading features are labeled per unit.
func WithTopK(k int) ConfigOption {
	return func(c *Config) {
		c.TopK = k
	}
}

// WithRetryPolicy replaces the retry policy.
func WithRetryPolicy(policy RetryPolicy) ConfigOption {
	return func(c *Config) {
		c.Retry = policy
	}
}

// DefaultConfig returns a Config with the public Neuronpedia defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           "https://www.neuronpedia.org",
		RequestsPerMinute: 100,
		Concurrency:       10,
		TopK:              1000,
		RequestTimeout:    30 * time.Second,
		Retry:             DefaultRetryPolicy(),
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
// An empty APIKey is allowed; the source decides whether it needs one.
func (c *Config) Validate() error {
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")

	if c.BaseURL == "" {
		return errors.New("labels config: BaseURL is required")
	}
	if c.RequestsPerMinute < 1 {
		return errors.New("labels config: RequestsPerMinute must be at least 1")
	}
	if c.Concurrency < 1 {
		return errors.New("labels config: Concurrency must be at least 1")
	}
	if c.TopK < 0 {
		return errors.New("labels config: TopK must not be negative")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("labels config: RequestTimeout must be positive")
	}
	return c.Retry.Validate()
}
