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
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// HTTPSource fetches feature payloads from a Neuronpedia-compatible API:
//
//	GET {base}/api/feature/{model}/{source}/{index}
type HTTPSource struct {
	baseURL string
	apiKey  string
	client  *http.Client
	resolve Resolver
	logger  *slog.Logger
	now     func() time.Time
}

var _ Source = (*HTTPSource)(nil)

// HTTPOption configures an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		if client != nil {
			s.client = client
		}
	}
}

// WithHTTPLogger sets a custom logger.
// Default is slog.Default().
func WithHTTPLogger(logger *slog.Logger) HTTPOption {
	return func(s *HTTPSource) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewHTTPSource creates an HTTPSource from cfg.
func NewHTTPSource(cfg *Config, resolve Resolver, opts ...HTTPOption) (*HTTPSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if resolve == nil {
		return nil, ErrResolverRequired
	}

	s := &HTTPSource{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		resolve: resolve,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// FetchFeature requests one feature document.
func (s *HTTPSource) FetchFeature(ctx context.Context, datasetID string, unit, index int) (*Payload, error) {
	modelID, sourceID, err := s.resolve(datasetID, unit)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/api/feature/%s/%s/%d",
		s.baseURL, url.PathEscape(modelID), url.PathEscape(sourceID), index)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("x-api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
		var payload Payload
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, fmt.Errorf("decode feature %d: %w", index, err)
		}
		return &payload, nil
	case http.StatusNotFound:
		return nil, ErrNotFound
	case http.StatusTooManyRequests:
		retryAfter, set := parseRetryAfter(resp.Header.Get("Retry-After"), s.now())
		s.logger.Debug("label service rate limited", "feature", index, "retryAfter", retryAfter, "retryAfterSet", set)
		return nil, &RateLimitedError{RetryAfter: retryAfter, RetryAfterSet: set}
	default:
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}
}

// parseRetryAfter accepts delta-seconds or an HTTP date. The flag is false
// when the header is missing or unparseable. A date in the past means no wait.
func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		return max(at.Sub(now), 0), true
	}
	return 0, false
}
