package labels

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://www.neuronpedia.org", cfg.BaseURL)
	assert.Equal(t, 100, cfg.RequestsPerMinute)
	assert.Equal(t, 10, cfg.Concurrency)
	assert.Equal(t, 1000, cfg.TopK)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, 60*time.Second, cfg.Retry.DefaultRateLimitWait)
	assert.Zero(t, cfg.Retry.MaxRateLimitWaits)
	require.NoError(t, cfg.Validate())
}

func TestNewConfig_Options(t *testing.T) {
	policy := DefaultRetryPolicy()
	policy.MaxAttempts = 5

	cfg := NewConfig(
		WithBaseURL("http://localhost:3000/"),
		WithAPIKey("key"),
		WithRequestsPerMinute(30),
		WithLabelConcurrency(2),
		WithTopK(50),
		WithRetryPolicy(policy),
	)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "http://localhost:3000", cfg.BaseURL)
	assert.Equal(t, "key", cfg.APIKey)
	assert.Equal(t, 30, cfg.RequestsPerMinute)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, 50, cfg.TopK)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base url", func(c *Config) { c.BaseURL = "" }},
		{"zero rpm", func(c *Config) { c.RequestsPerMinute = 0 }},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }},
		{"negative top k", func(c *Config) { c.TopK = -1 }},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{"negative delay", func(c *Config) { c.Retry.BaseDelay = -time.Second }},
		{"zero rate limit wait", func(c *Config) { c.Retry.DefaultRateLimitWait = 0 }},
		{"negative rate limit cap", func(c *Config) { c.Retry.MaxRateLimitWaits = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRetryPolicy_Waits(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 4, BaseDelay: 500 * time.Millisecond, DefaultRateLimitWait: time.Minute}

	assert.Equal(t, 500*time.Millisecond, p.Backoff(0))
	assert.Equal(t, time.Second, p.Backoff(1))
	assert.Equal(t, 4*time.Second, p.Backoff(3))
	assert.Equal(t, time.Duration(math.MaxInt64), p.Backoff(40))
	assert.Equal(t, time.Duration(math.MaxInt64), p.Backoff(1000))
	assert.Zero(t, RetryPolicy{}.Backoff(50))

	assert.Equal(t, 3*time.Second, p.RateLimitWait(3*time.Second, true))
	assert.Equal(t, time.Duration(0), p.RateLimitWait(0, true))
	assert.Equal(t, time.Minute, p.RateLimitWait(0, false))
}

func TestRateLimitedError(t *testing.T) {
	err := &RateLimitedError{RetryAfter: 2 * time.Second}
	assert.Equal(t, "rate limited, retry after 2s", err.Error())
	assert.Equal(t, "rate limited, retry after 0s", (&RateLimitedError{RetryAfterSet: true}).Error())
	assert.Equal(t, "rate limited", (&RateLimitedError{}).Error())
}
