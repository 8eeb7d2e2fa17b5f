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
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/wikigraph"
	"github.com/poiesic/wikigraph/config"
	"github.com/poiesic/wikigraph/source"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "wikigraph",
		Usage: "Load a line-delimited Wikidata dump into a graph store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "load",
				Usage:  "Run the load stages against the configured store",
				Action: loadCommand,
				Flags:  append(storeFlags(), loadFlags()...),
			},
			{
				Name:      "count-lines",
				Usage:     "Count the lines of a corpus file",
				ArgsUsage: "<corpus>",
				Action:    countLinesCommand,
			},
			{
				Name:   "generate",
				Usage:  "Write a synthetic corpus for trial loads",
				Action: generateCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Output file (stdout when omitted)",
					},
					&cli.IntFlag{
						Name:  "items",
						Usage: "Number of items",
						Value: 1000,
					},
					&cli.IntFlag{
						Name:  "properties",
						Usage: "Number of properties",
						Value: 24,
					},
					&cli.IntFlag{
						Name:  "claims",
						Usage: "Claims per item",
						Value: 5,
					},
					&cli.Uint64Flag{
						Name:  "seed",
						Usage: "Random seed",
						Value: 1,
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Print node and edge counts of an embedded store",
				Action: statsCommand,
				Flags:  storeFlags(),
			},
		},
	}
}

func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "backend",
			Usage: "Graph store backend (badger, neo4j)",
		},
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			Usage:   "Path to BadgerDB database directory",
		},
		&cli.BoolFlag{
			Name:  "in-memory",
			Usage: "Use an in-memory BadgerDB store",
		},
		&cli.StringFlag{
			Name:  "neo4j-uri",
			Usage: "Neo4j connection URI",
		},
		&cli.StringFlag{
			Name:  "neo4j-user",
			Usage: "Neo4j user",
		},
		&cli.StringFlag{
			Name:    "neo4j-password",
			Usage:   "Neo4j password",
			EnvVars: []string{"WIKIGRAPH_NEO4J_PASSWORD"},
		},
		&cli.StringFlag{
			Name:  "neo4j-database",
			Usage: "Neo4j database name",
		},
	}
}

func loadFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "corpus",
			Usage: "Path to the line-delimited JSON corpus",
		},
		&cli.Int64Flag{
			Name:  "skip",
			Usage: "Skip the first N corpus lines",
		},
		&cli.Int64Flag{
			Name:  "total",
			Usage: "Total corpus lines (counted when omitted)",
		},
		&cli.IntFlag{
			Name:  "bucket",
			Usage: "Records per batch and stash flush threshold",
		},
		&cli.IntFlag{
			Name:  "concurrency",
			Usage: "Number of workers per streaming stage",
		},
		&cli.IntFlag{
			Name:  "group-concurrency",
			Usage: "Concurrent claim group writes per batch",
		},
		&cli.DurationFlag{
			Name:  "start-jitter",
			Usage: "Maximum stagger between worker start times",
		},
		&cli.StringSliceFlag{
			Name:  "stages",
			Usage: "Stages to run (clear, entities, claims, derive)",
		},
		&cli.BoolFlag{
			Name:  "verbose-timing",
			Usage: "Log per-batch and per-update durations",
		},
		&cli.IntFlag{
			Name:  "max-retries",
			Usage: "Maximum write attempts on transient store conflicts",
		},
		&cli.DurationFlag{
			Name:  "retry-delay",
			Usage: "Base delay for exponential backoff",
		},
		&cli.StringFlag{
			Name:  "metrics-addr",
			Usage: "Serve Prometheus metrics on this address during the load",
		},
	}
}

// loadConfig reads the config file, if any, and applies explicitly set flags over it.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if c.IsSet("backend") {
		cfg.Store.Backend = c.String("backend")
	}
	if c.IsSet("db") {
		cfg.Store.Badger.Path = c.String("db")
	}
	if c.IsSet("in-memory") {
		cfg.Store.Badger.InMemory = c.Bool("in-memory")
	}
	if c.IsSet("neo4j-uri") {
		cfg.Store.Backend = config.BackendNeo4j
		cfg.Store.Neo4j.URI = c.String("neo4j-uri")
	}
	if c.IsSet("neo4j-user") {
		cfg.Store.Neo4j.User = c.String("neo4j-user")
	}
	if c.IsSet("neo4j-password") {
		cfg.Store.Neo4j.Password = c.String("neo4j-password")
	}
	if c.IsSet("neo4j-database") {
		cfg.Store.Neo4j.Database = c.String("neo4j-database")
	}

	if c.IsSet("corpus") {
		cfg.Corpus.File = c.String("corpus")
	}
	if c.IsSet("skip") {
		cfg.Corpus.Skip = c.Int64("skip")
	}
	if c.IsSet("total") {
		cfg.Corpus.Total = c.Int64("total")
	}
	if c.IsSet("bucket") {
		cfg.Bucket = c.Int("bucket")
	}
	if c.IsSet("concurrency") {
		cfg.Concurrency = c.Int("concurrency")
	}
	if c.IsSet("group-concurrency") {
		cfg.GroupWriteConcurrency = c.Int("group-concurrency")
	}
	if c.IsSet("start-jitter") {
		cfg.StartJitter = c.Duration("start-jitter")
	}
	if c.IsSet("stages") {
		stages, err := parseStages(c.StringSlice("stages"))
		if err != nil {
			return nil, err
		}
		cfg.Stages = stages
	}
	if c.IsSet("verbose-timing") {
		cfg.VerboseTiming = c.Bool("verbose-timing")
	}
	if c.IsSet("max-retries") {
		cfg.Retry.MaxAttempts = c.Int("max-retries")
	}
	if c.IsSet("retry-delay") {
		cfg.Retry.BaseDelay = c.Duration("retry-delay")
		cfg.Retry.MaxDelay = max(cfg.Retry.MaxDelay, cfg.Retry.BaseDelay)
	}
	if c.IsSet("metrics-addr") {
		cfg.MetricsAddr = c.String("metrics-addr")
	}
	return cfg, nil
}

func parseStages(names []string) (config.StagesConfig, error) {
	var stages config.StagesConfig
	for _, raw := range names {
		for name := range strings.SplitSeq(raw, ",") {
			switch strings.ToLower(strings.TrimSpace(name)) {
			case "clear":
				stages.Clear = true
			case "entities":
				stages.Entities = true
			case "claims":
				stages.Claims = true
			case "derive":
				stages.Derive = true
			case "":
			default:
				return stages, fmt.Errorf("unknown stage %q: must be one of clear, entities, claims, derive", name)
			}
		}
	}
	return stages, nil
}

func loadCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("metrics server shutdown failed", "err", err)
			}
		}()
	}

	loader, err := wikigraph.NewLoader(ctx, cfg,
		wikigraph.WithLogger(slog.Default()),
		wikigraph.WithRegisterer(reg),
		wikigraph.WithProgress(c.App.ErrWriter),
	)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer loader.Close()

	slog.Info("load started",
		"corpus", cfg.Corpus.File,
		"backend", cfg.Store.Backend,
		"bucket", cfg.Bucket,
		"concurrency", cfg.Concurrency)

	start := time.Now()
	if err := loader.Run(ctx); err != nil {
		return fmt.Errorf("load failed: %w", err)
	}
	slog.Info("load finished", "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "addr", addr, "err", err)
		}
	}()
	slog.Info("serving metrics", "addr", addr)
	return srv
}

func countLinesCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("corpus path is required")
	}

	start := time.Now()
	n, err := source.CountLines(c.Context, path)
	if err != nil {
		return fmt.Errorf("failed to count lines: %w", err)
	}
	slog.Debug("counted lines", "lines", humanize.Comma(n), "elapsed", time.Since(start).Round(time.Millisecond))
	fmt.Fprintln(c.App.Writer, n)
	return nil
}

func statsCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	cfg.Stages = config.StagesConfig{}

	loader, err := wikigraph.NewLoader(c.Context, cfg, wikigraph.WithLogger(slog.Default()))
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer loader.Close()

	stats, err := loader.Stats(c.Context)
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Nodes: %s\n", humanize.Comma(int64(stats.Nodes)))
	for _, label := range sortedKeys(stats.Labels) {
		fmt.Fprintf(w, "  %s: %s\n", label, humanize.Comma(int64(stats.Labels[label])))
	}
	fmt.Fprintf(w, "Edges: %s\n", humanize.Comma(int64(stats.Edges)))
	for _, rel := range sortedKeys(stats.Relations) {
		fmt.Fprintf(w, "  %s: %s\n", rel, humanize.Comma(int64(stats.Relations[rel])))
	}
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
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
	slog.SetDefault(logger.With("run_id", uuid.NewString()))

	return nil
}
