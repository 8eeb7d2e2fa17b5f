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

// Package wikigraph loads a line-delimited Wikidata-style corpus into a graph store.
package wikigraph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/poiesic/wikigraph/config"
	"github.com/poiesic/wikigraph/ingestion"
	"github.com/poiesic/wikigraph/metrics"
	"github.com/poiesic/wikigraph/storage"
	"github.com/poiesic/wikigraph/storage/badger"
	"github.com/poiesic/wikigraph/storage/neo4j"
)

// ErrStatsUnsupported is returned by Stats when the store cannot summarize itself.
var ErrStatsUnsupported = errors.New("store does not support stats")

// Loader owns an open graph store and builds pipelines against it.
type Loader struct {
	cfg      *config.Config
	store    storage.GraphStore
	logger   *slog.Logger
	metrics  *metrics.Metrics
	progress io.Writer
}

// LoaderOption configures a Loader.
type LoaderOption func(*loaderOptions)

type loaderOptions struct {
	logger     *slog.Logger
	registerer prometheus.Registerer
	progress   io.Writer
}

// WithLogger sets the logger handed to the store and the pipeline.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(o *loaderOptions) {
		o.logger = logger
	}
}

// WithRegisterer registers pipeline metrics with reg.
func WithRegisterer(reg prometheus.Registerer) LoaderOption {
	return func(o *loaderOptions) {
		o.registerer = reg
	}
}

// WithProgress sets where progress lines are written. Nil disables them.
func WithProgress(w io.Writer) LoaderOption {
	return func(o *loaderOptions) {
		o.progress = w
	}
}

// NewLoader validates cfg and opens the configured store.
func NewLoader(ctx context.Context, cfg *config.Config, opts ...LoaderOption) (*Loader, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	options := &loaderOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := OpenStore(ctx, cfg.Store, options.logger)
	if err != nil {
		return nil, err
	}

	return &Loader{
		cfg:      cfg,
		store:    store,
		logger:   options.logger,
		metrics:  metrics.New(options.registerer),
		progress: options.progress,
	}, nil
}

// OpenStore opens the store selected by cfg.Backend.
func OpenStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (storage.GraphStore, error) {
	switch cfg.Backend {
	case config.BackendBadger, "":
		if cfg.Badger.InMemory {
			store, err := badger.NewMemoryStore()
			if err != nil {
				return nil, fmt.Errorf("open in-memory badger store: %w", err)
			}
			return store, nil
		}
		store, err := badger.OpenStore(cfg.Badger.Path)
		if err != nil {
			return nil, fmt.Errorf("open badger store at %s: %w", cfg.Badger.Path, err)
		}
		return store, nil
	case config.BackendNeo4j:
		store, err := neo4j.Open(ctx, neo4j.Config{
			URI:            cfg.Neo4j.URI,
			User:           cfg.Neo4j.User,
			Password:       cfg.Neo4j.Password,
			Database:       cfg.Neo4j.Database,
			MaxPoolSize:    cfg.Neo4j.MaxPoolSize,
			ConnectTimeout: cfg.Neo4j.ConnectTimeout,
			ClearBatchSize: cfg.Neo4j.ClearBatchSize,
		}, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", config.ErrInvalid, cfg.Backend)
	}
}

// Store returns the open graph store.
func (l *Loader) Store() storage.GraphStore {
	return l.store
}

// NewPipeline builds a pipeline from the loader's config. Extra options are applied last.
func (l *Loader) NewPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	cfg := l.cfg
	base := []ingestion.Option{
		ingestion.WithSkip(cfg.Corpus.Skip),
		ingestion.WithTotal(cfg.Corpus.Total),
		ingestion.WithBucket(cfg.Bucket),
		ingestion.WithConcurrency(cfg.Concurrency),
		ingestion.WithGroupConcurrency(cfg.GroupWriteConcurrency),
		ingestion.WithWorkerJitter(cfg.StartJitter),
		ingestion.WithStages(ingestion.StageSet{
			Clear:    cfg.Stages.Clear,
			Entities: cfg.Stages.Entities,
			Claims:   cfg.Stages.Claims,
			Derive:   cfg.Stages.Derive,
		}),
		ingestion.WithVerboseTiming(cfg.VerboseTiming),
		ingestion.WithRetryPolicy(ingestion.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
		}),
		ingestion.WithProgressWriter(l.progress),
		ingestion.WithLogger(l.logger),
		ingestion.WithMetrics(l.metrics),
	}
	if cfg.Corpus.File != "" {
		base = append(base, ingestion.WithCorpus(cfg.Corpus.File))
	}
	return ingestion.NewPipeline(l.store, append(base, opts...)...)
}

// Run builds a pipeline from the config and runs it to completion.
func (l *Loader) Run(ctx context.Context) error {
	pipeline, err := l.NewPipeline()
	if err != nil {
		return err
	}
	return pipeline.Run(ctx)
}

// Stats summarizes the store contents when the backend supports it.
func (l *Loader) Stats(ctx context.Context) (*badger.Stats, error) {
	s, ok := l.store.(interface {
		Stats(context.Context) (*badger.Stats, error)
	})
	if !ok {
		return nil, ErrStatsUnsupported
	}
	return s.Stats(ctx)
}

// Close releases the store.
func (l *Loader) Close() error {
	if err := l.store.Close(); err != nil {
		l.logger.Error("error closing graph store", "err", err)
		return err
	}
	return nil
}
