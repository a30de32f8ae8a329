package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/horus/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// testApp returns the app with captured output and no os.Exit on failure.
func testApp() (*cli.App, *bytes.Buffer) {
	app := newApp()
	out := &bytes.Buffer{}
	app.Writer = out
	app.ErrWriter = &bytes.Buffer{}
	app.ExitErrHandler = func(*cli.Context, error) {}
	return app, out
}

func findCommand(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %q not found", name)
	return nil
}

func TestSetupLogger(t *testing.T) {
	t.Run("invalid level", func(t *testing.T) {
		app, _ := testApp()
		err := app.Run([]string{"horus", "--log-level", "verbose", "datasets"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("level is case insensitive", func(t *testing.T) {
		app, _ := testApp()
		assert.NoError(t, app.Run([]string{"horus", "--log-level", "DEBUG", "datasets"}))
	})
}

func TestDatasetsCommand(t *testing.T) {
	app, out := testApp()
	require.NoError(t, app.Run([]string{"horus", "datasets"}))

	for _, id := range dataset.IDs() {
		assert.Contains(t, out.String(), id)
	}
}

func TestRunCommandFlags(t *testing.T) {
	app, _ := testApp()
	run := findCommand(t, app, "run")

	t.Run("api-key reads the environment", func(t *testing.T) {
		for _, flag := range run.Flags {
			if f, ok := flag.(*cli.StringFlag); ok && f.Name == "api-key" {
				assert.Equal(t, []string{"HORUS_LABELS_API_KEY"}, f.EnvVars)
				return
			}
		}
		t.Fatal("api-key flag not found")
	})

	t.Run("force has short alias", func(t *testing.T) {
		for _, flag := range run.Flags {
			if f, ok := flag.(*cli.BoolFlag); ok && f.Name == "force" {
				assert.Equal(t, []string{"f"}, f.Aliases)
				return
			}
		}
		t.Fatal("force flag not found")
	})
}

func TestLoadConfig(t *testing.T) {
	// captureConfig runs the run command with an action that only loads the config.
	captureConfig := func(t *testing.T, args ...string) (*dataset.Config, error) {
		t.Helper()
		app, _ := testApp()
		var cfg *dataset.Config
		var loadErr error
		findCommand(t, app, "run").Action = func(c *cli.Context) error {
			cfg, loadErr = loadConfig(c)
			return nil
		}
		require.NoError(t, app.Run(append([]string{"horus", "run"}, args...)))
		return cfg, loadErr
	}

	t.Run("defaults", func(t *testing.T) {
		cfg, err := captureConfig(t)
		require.NoError(t, err)
		assert.Equal(t, dataset.DefaultConfig(), cfg)
	})

	t.Run("flags override defaults", func(t *testing.T) {
		cfg, err := captureConfig(t,
			"--dataset", "gemma-2-9b",
			"--units", "0-3",
			"--output-dir", "/tmp/out",
			"--no-compress",
			"--skip-labels",
			"--top-k-labels", "50",
			"--requests-per-minute", "30",
		)
		require.NoError(t, err)
		assert.Equal(t, "gemma-2-9b", cfg.Dataset)
		assert.Equal(t, "0-3", cfg.Units)
		assert.Equal(t, "/tmp/out", cfg.OutputDir)
		assert.False(t, cfg.Compress)
		assert.True(t, cfg.SkipLabels)
		assert.Equal(t, 50, cfg.Labels.TopK)
		assert.Equal(t, 30, cfg.Labels.RequestsPerMinute)
		assert.Equal(t, 10, cfg.Labels.Concurrency)
	})

	t.Run("flags override config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "horus.yaml")
		require.NoError(t, os.WriteFile(path, []byte("dataset: gemma-2-9b\nunits: \"1\"\nlabels:\n  top_k: 20\n"), 0644))

		cfg, err := captureConfig(t, "--config", path, "--units", "2")
		require.NoError(t, err)
		assert.Equal(t, "gemma-2-9b", cfg.Dataset)
		assert.Equal(t, "2", cfg.Units)
		assert.Equal(t, 20, cfg.Labels.TopK)
	})

	t.Run("api key from environment", func(t *testing.T) {
		t.Setenv("HORUS_LABELS_API_KEY", "secret")
		cfg, err := captureConfig(t)
		require.NoError(t, err)
		assert.Equal(t, "secret", cfg.Labels.APIKey)
	})

	t.Run("missing config file", func(t *testing.T) {
		_, err := captureConfig(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestRunCommand_MissingInput(t *testing.T) {
	dir := t.TempDir()
	app, out := testApp()

	err := app.Run([]string{"horus", "run",
		"--units", "0,1",
		"--input-dir", filepath.Join(dir, "input"),
		"--cache-dir", filepath.Join(dir, "cache"),
		"--output-dir", filepath.Join(dir, "output"),
		"--skip-labels",
	})
	require.Error(t, err)

	var exitErr cli.ExitCoder
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.ExitCode())
	assert.Contains(t, out.String(), "failed: 2")

	_, statErr := os.Stat(filepath.Join(dir, "output", "gemma-2-2b", "manifest.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestStatusCommand(t *testing.T) {
	dir := t.TempDir()
	app, out := testApp()

	require.NoError(t, app.Run([]string{"horus", "status",
		"--units", "3",
		"--cache-dir", filepath.Join(dir, "cache"),
	}))
	assert.Contains(t, out.String(), "VECTORS")
	assert.Contains(t, out.String(), "not_started")
}

func TestStatusCommand_BadUnits(t *testing.T) {
	app, _ := testApp()
	err := app.Run([]string{"horus", "status", "--units", "5-2", "--cache-dir", filepath.Join(t.TempDir(), "cache")})
	assert.Error(t, err)
}
