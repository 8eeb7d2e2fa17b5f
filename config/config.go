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

// Package config holds the load configuration, its defaults and YAML loading.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Store backends.
const (
	BackendBadger = "badger"
	BackendNeo4j  = "neo4j"
)

// Config holds everything a load needs.
type Config struct {
	Corpus CorpusConfig `yaml:"corpus"`

	// Bucket is the number of records per batch and the stash flush threshold.
	// Default: 1000
	Bucket int `yaml:"bucket"`

	// Concurrency is the number of workers per streaming stage.
	// Default: runtime.NumCPU()
	Concurrency int `yaml:"concurrency"`

	// StartJitter staggers worker start times.
	// Default: 100ms
	StartJitter time.Duration `yaml:"start_jitter"`

	// GroupWriteConcurrency bounds concurrent generated-node group writes per batch.
	// Default: 2
	GroupWriteConcurrency int `yaml:"group_write_concurrency"`

	Stages StagesConfig `yaml:"stages"`

	// VerboseTiming logs per-batch and per-update durations.
	VerboseTiming bool `yaml:"verbose_timing"`

	Retry RetryConfig `yaml:"retry"`
	Store StoreConfig `yaml:"store"`

	// MetricsAddr is the listen address of the /metrics endpoint. Empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`
}

// CorpusConfig locates the corpus.
type CorpusConfig struct {
	File  string `yaml:"file"`
	Skip  int64  `yaml:"skip"`
	Total int64  `yaml:"total"` // 0 means count before loading
}

// StagesConfig enables individual stages.
type StagesConfig struct {
	Clear    bool `yaml:"clear"`
	Entities bool `yaml:"entities"`
	Claims   bool `yaml:"claims"`
	Derive   bool `yaml:"derive"`
}

// RetryConfig bounds write retries on transient store conflicts.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// StoreConfig selects and configures the graph store.
type StoreConfig struct {
	Backend string       `yaml:"backend"`
	Badger  BadgerConfig `yaml:"badger"`
	Neo4j   Neo4jConfig  `yaml:"neo4j"`
}

// BadgerConfig configures the embedded store.
type BadgerConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// Neo4jConfig configures the server store.
type Neo4jConfig struct {
	URI            string        `yaml:"uri"`
	User           string        `yaml:"user"`
	Password       string        `yaml:"password"`
	Database       string        `yaml:"database"`
	MaxPoolSize    int           `yaml:"max_pool_size"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ClearBatchSize int           `yaml:"clear_batch_size"`
}

// Option is a functional option for configuring a Config.
type Option func(*Config)

// WithCorpus sets the corpus file.
func WithCorpus(file string) Option {
	return func(c *Config) {
		c.Corpus.File = file
	}
}

// WithBucket sets the batch size.
func WithBucket(n int) Option {
	return func(c *Config) {
		c.Bucket = n
	}
}

// WithConcurrency sets the worker count.
func WithConcurrency(n int) Option {
	return func(c *Config) {
		c.Concurrency = n
	}
}

// WithBadger selects the embedded store at path.
func WithBadger(path string) Option {
	return func(c *Config) {
		c.Store.Backend = BackendBadger
		c.Store.Badger.Path = path
	}
}

// WithNeo4j selects the server store at uri.
func WithNeo4j(uri, user, password string) Option {
	return func(c *Config) {
		c.Store.Backend = BackendNeo4j
		c.Store.Neo4j.URI = uri
		c.Store.Neo4j.User = user
		c.Store.Neo4j.Password = password
	}
}

// Default returns a Config with every stage enabled and an embedded store in ./graph.
func Default() *Config {
	return &Config{
		Bucket:                1000,
		Concurrency:           max(runtime.NumCPU(), 1),
		StartJitter:           100 * time.Millisecond,
		GroupWriteConcurrency: 2,
		Stages: StagesConfig{
			Clear:    true,
			Entities: true,
			Claims:   true,
			Derive:   true,
		},
		Retry: RetryConfig{
			MaxAttempts: 5,
			BaseDelay:   50 * time.Millisecond,
			MaxDelay:    2 * time.Second,
		},
		Store: StoreConfig{
			Backend: BackendBadger,
			Badger:  BadgerConfig{Path: "graph"},
			Neo4j: Neo4jConfig{
				User:           "neo4j",
				MaxPoolSize:    50,
				ConnectTimeout: 10 * time.Second,
				ClearBatchSize: 10000,
			},
		},
	}
}

// New creates a Config with the default values and applies the provided options.
func New(opts ...Option) *Config {
	cfg := Default()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Load reads the YAML file at path over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return cfg, nil
}

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))

	needsCorpus := c.Stages.Entities || c.Stages.Claims
	switch {
	case needsCorpus && c.Corpus.File == "":
		return fmt.Errorf("%w: corpus file is required", ErrInvalid)
	case c.Corpus.Skip < 0:
		return fmt.Errorf("%w: skip must not be negative", ErrInvalid)
	case c.Corpus.Total < 0:
		return fmt.Errorf("%w: total must not be negative", ErrInvalid)
	case c.Bucket < 1:
		return fmt.Errorf("%w: bucket must be at least 1", ErrInvalid)
	case c.Concurrency < 1:
		return fmt.Errorf("%w: concurrency must be at least 1", ErrInvalid)
	case c.GroupWriteConcurrency < 1:
		return fmt.Errorf("%w: group write concurrency must be at least 1", ErrInvalid)
	case c.StartJitter < 0:
		return fmt.Errorf("%w: start jitter must not be negative", ErrInvalid)
	case c.Retry.MaxAttempts < 1:
		return fmt.Errorf("%w: retry max attempts must be at least 1", ErrInvalid)
	case c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < c.Retry.BaseDelay:
		return fmt.Errorf("%w: retry delays must satisfy 0 <= base <= max", ErrInvalid)
	}

	switch c.Store.Backend {
	case BackendBadger:
		if !c.Store.Badger.InMemory && c.Store.Badger.Path == "" {
			return fmt.Errorf("%w: badger path is required", ErrInvalid)
		}
	case BackendNeo4j:
		if c.Store.Neo4j.URI == "" {
			return fmt.Errorf("%w: neo4j uri is required", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalid, c.Store.Backend)
	}
	return nil
}
