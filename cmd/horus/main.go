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


package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/poiesic/horus"
	"github.com/poiesic/horus/core"
	"github.com/poiesic/horus/dataset"
	"github.com/poiesic/horus/metrics"
	"github.com/poiesic/horus/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "horus",
		Usage: "Precompute 3D feature layouts, co-activation graphs, and labels",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run the pipeline for the selected units",
				Action: runCommand,
				Flags: append(datasetFlags(),
					&cli.StringFlag{
						Name:  "input-dir",
						Usage: "Directory holding <dataset>/layer_<unit>/ decoder matrices",
					},
					&cli.StringFlag{
						Name:  "output-dir",
						Usage: "Directory receiving layer documents and the manifest",
					},
					&cli.BoolFlag{
						Name:  "no-compress",
						Usage: "Write plain JSON instead of gzip",
					},
					&cli.BoolFlag{
						Name:  "skip-labels",
						Usage: "Leave the labels stage out",
					},
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Recompute every stage even if cached",
					},
					&cli.IntFlag{
						Name:  "top-k-labels",
						Usage: "Number of leading features to label per unit",
					},
					&cli.IntFlag{
						Name:  "requests-per-minute",
						Usage: "Label service request budget",
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Maximum label fetches in flight",
					},
					&cli.StringFlag{
						Name:  "base-url",
						Usage: "Label service base URL",
					},
					&cli.StringFlag{
						Name:    "api-key",
						Usage:   "Label service API key",
						EnvVars: []string{"HORUS_LABELS_API_KEY"},
					},
					&cli.StringFlag{
						Name:  "metrics-addr",
						Usage: "Serve Prometheus metrics on this address, e.g. :2112",
					},
				),
			},
			{
				Name:   "status",
				Usage:  "Show cached stage state for the selected units",
				Action: statusCommand,
				Flags:  datasetFlags(),
			},
			{
				Name:   "datasets",
				Usage:  "List known datasets",
				Action: datasetsCommand,
			},
		},
	}
}

// datasetFlags are shared by every command that opens the stage cache.
func datasetFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML configuration file",
		},
		&cli.StringFlag{
			Name:    "dataset",
			Aliases: []string{"d"},
			Usage:   "Dataset id (see the datasets command)",
		},
		&cli.StringFlag{
			Name:    "units",
			Aliases: []string{"u"},
			Usage:   "Units to process, e.g. 12, 0-5, 0,5,12 (default: all)",
		},
		&cli.StringFlag{
			Name:  "cache-dir",
			Usage: "Stage cache database directory",
		},
	}
}

// loadConfig reads --config if given and applies explicitly set flags over it.
func loadConfig(c *cli.Context) (*dataset.Config, error) {
	cfg := dataset.DefaultConfig()
	if path := c.String("config"); path != "" {
		loaded, err := dataset.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	stringFlags := map[string]*string{
		"dataset":    &cfg.Dataset,
		"units":      &cfg.Units,
		"cache-dir":  &cfg.CacheDir,
		"input-dir":  &cfg.InputDir,
		"output-dir": &cfg.OutputDir,
		"base-url":   &cfg.Labels.BaseURL,
		"api-key":    &cfg.Labels.APIKey,
	}
	for name, field := range stringFlags {
		if c.IsSet(name) {
			*field = c.String(name)
		}
	}

	intFlags := map[string]*int{
		"top-k-labels":        &cfg.Labels.TopK,
		"requests-per-minute": &cfg.Labels.RequestsPerMinute,
		"concurrency":         &cfg.Labels.Concurrency,
	}
	for name, field := range intFlags {
		if c.IsSet(name) {
			*field = c.Int(name)
		}
	}

	if c.Bool("no-compress") {
		cfg.Compress = false
	}
	if c.Bool("skip-labels") {
		cfg.SkipLabels = true
	}
	return cfg, nil
}

func runCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	opts := []horus.WorkspaceOption{
		horus.WithLogger(slog.Default()),
		horus.WithProgress(c.App.ErrWriter),
	}
	if addr := c.String("metrics-addr"); addr != "" {
		reg := prometheus.NewRegistry()
		m, err := metrics.New(reg)
		if err != nil {
			return fmt.Errorf("failed to create metrics: %w", err)
		}
		shutdown := serveMetrics(addr, reg)
		defer shutdown()
		opts = append(opts, horus.WithMetrics(m))
	}

	ws, err := horus.Open(cfg, opts...)
	if err != nil {
		return fmt.Errorf("failed to open workspace: %w", err)
	}
	defer ws.Close()

	fmt.Fprintf(c.App.ErrWriter, "Dataset: %s\n", cfg.Dataset)
	fmt.Fprintf(c.App.ErrWriter, "Input: %s\n", cfg.InputDir)
	fmt.Fprintf(c.App.ErrWriter, "Output: %s\n", cfg.OutputDir)
	fmt.Fprintln(c.App.ErrWriter)

	summary, err := ws.Run(ctx, pipeline.RunOptions{Force: c.Bool("force")})
	if err != nil {
		return err
	}
	printSummary(c, summary)

	if code := summary.ExitCode(); code != 0 {
		return cli.Exit(fmt.Sprintf("%d of %d units failed", len(summary.Failed), len(summary.Results)), code)
	}
	return nil
}

func printSummary(c *cli.Context, summary *pipeline.RunSummary) {
	w := c.App.Writer
	fmt.Fprintf(w, "Run %s finished in %s\n", summary.RunID, summary.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Successful: %d, failed: %d\n", len(summary.Successful), len(summary.Failed))
	for _, result := range summary.Results {
		if result.Succeeded() {
			continue
		}
		fmt.Fprintf(w, "  unit %d: %s failed (%s): %v\n", result.Unit, result.FailedStage, result.Class, result.Err)
	}
	if summary.ManifestErr != nil {
		fmt.Fprintf(w, "Manifest not written: %v\n", summary.ManifestErr)
	}
}

// serveMetrics exposes reg over HTTP until the returned shutdown func is called.
func serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		slog.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func statusCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	// Status never fetches labels.
	cfg.SkipLabels = true

	ws, err := horus.Open(cfg, horus.WithLogger(slog.Default()))
	if err != nil {
		return fmt.Errorf("failed to open workspace: %w", err)
	}
	defer ws.Close()

	statuses, err := ws.Status(c.Context)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	header := []string{"UNIT"}
	for _, name := range core.Stages {
		header = append(header, strings.ToUpper(string(name)))
	}
	header = append(header, "JOURNALED")
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, status := range statuses {
		row := []string{fmt.Sprint(status.Unit)}
		for _, name := range core.Stages {
			row = append(row, status.Stages[name].State.String())
		}
		row = append(row, fmt.Sprint(status.JournaledLabels))
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func datasetsCommand(c *cli.Context) error {
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tUNITS\tFEATURES\tDIM")
	for _, id := range dataset.IDs() {
		m, err := dataset.Lookup(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", m.ID, m.DisplayName, m.Units, m.FeaturesPerUnit, m.VectorDim)
	}
	return tw.Flush()
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
