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

// Package neo4j implements storage.GraphStore on a Neo4j server through Cypher.
package neo4j

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/poiesic/wikigraph/storage"
)

const (
	DefaultMaxPoolSize    = 50
	DefaultConnectTimeout = 10 * time.Second
	DefaultClearBatchSize = 10000
)

// Config holds the connection settings of a Store.
type Config struct {
	URI            string
	User           string
	Password       string
	Database       string
	MaxPoolSize    int
	ConnectTimeout time.Duration
	ClearBatchSize int
}

// Store is a storage.GraphStore backed by a Neo4j driver.
// Every call opens its own session; the driver is safe for concurrent use.
type Store struct {
	driver    neo4j.DriverWithContext
	database  string
	clearSize int
	logger    *slog.Logger
}

var _ storage.GraphStore = (*Store)(nil)

// Open connects to the server described by cfg and verifies connectivity.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	uri := strings.TrimSpace(cfg.URI)
	if uri == "" {
		return nil, fmt.Errorf("neo4j: uri required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	user := cfg.User
	if user == "" {
		user = "neo4j"
	}
	maxPool := cfg.MaxPoolSize
	if maxPool <= 0 {
		maxPool = DefaultMaxPoolSize
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	clearSize := cfg.ClearBatchSize
	if clearSize <= 0 {
		clearSize = DefaultClearBatchSize
	}

	auth := neo4j.BasicAuth(user, cfg.Password, "")
	driver, err := neo4j.NewDriverWithContext(uri, auth, func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = maxPool
		c.SocketConnectTimeout = timeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: init driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}

	return &Store{
		driver:    driver,
		database:  cfg.Database,
		clearSize: clearSize,
		logger:    logger.With("component", "neo4j"),
	}, nil
}

// Close closes the driver.
func (s *Store) Close() error {
	if s.driver == nil {
		return nil
	}
	err := s.driver.Close(context.Background())
	s.driver = nil
	return err
}

func (s *Store) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.database,
	})
}

// write runs one auto-commit write statement and drains its result.
func (s *Store) write(ctx context.Context, cypher string, params map[string]any) error {
	if s.driver == nil {
		return storage.ErrStorageClosed
	}
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	res, err := session.Run(ctx, cypher, params)
	if err != nil {
		return translateError(err)
	}
	_, err = res.Consume(ctx)
	return translateError(err)
}

// EnsureSchema creates the uniqueness constraints on Entity.id and Claim.id.
// Failures are logged and ignored since restricted users may lack schema rights.
func (s *Store) EnsureSchema(ctx context.Context) {
	for _, q := range schemaQueries {
		if err := s.write(ctx, q, nil); err != nil {
			s.logger.Warn("neo4j schema init failed (continuing)", "error", err)
		}
	}
}

// Clear deletes every node in batches of the configured clear size.
func (s *Store) Clear(ctx context.Context) error {
	if s.driver == nil {
		return storage.ErrStorageClosed
	}
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	total := int64(0)
	for {
		res, err := session.Run(ctx, clearQuery, map[string]any{"limit": int64(s.clearSize)})
		if err != nil {
			return translateError(err)
		}
		record, err := res.Single(ctx)
		if err != nil {
			return translateError(err)
		}
		deleted, _ := record.Get("deleted")
		n, _ := deleted.(int64)
		total += n
		if n == 0 {
			break
		}
		s.logger.Debug("cleared nodes", "batch", n, "total", total)
	}
	return nil
}

// UpsertNodes merges nodes by key under the given labels.
func (s *Store) UpsertNodes(ctx context.Context, mode storage.UpsertMode, labels []string, nodes []storage.Node) error {
	cypher, err := upsertNodesQuery(mode, labels)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return nil
	}
	rows, err := nodeRows(nodes)
	if err != nil {
		return err
	}
	return s.write(ctx, cypher, map[string]any{"rows": rows})
}

// MergeEdges merges edges between existing nodes.
func (s *Store) MergeEdges(ctx context.Context, relation, startLabel, endLabel string, edges []storage.Edge) error {
	cypher, err := mergeEdgesQuery(relation, startLabel, endLabel)
	if err != nil {
		return err
	}
	if len(edges) == 0 {
		return nil
	}
	return s.write(ctx, cypher, map[string]any{"rows": edgeRows(edges)})
}

// MatchAll streams id and label of every node carrying all labels.
func (s *Store) MatchAll(ctx context.Context, labels []string, fn func(storage.NodeRef) error) error {
	cypher, err := matchAllQuery(labels)
	if err != nil {
		return err
	}
	if s.driver == nil {
		return storage.ErrStorageClosed
	}
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	res, err := session.Run(ctx, cypher, nil)
	if err != nil {
		return translateError(err)
	}
	for res.Next(ctx) {
		record := res.Record()
		id, _ := record.Get("id")
		label, _ := record.Get("label")
		ref := storage.NodeRef{}
		ref.Id, _ = id.(string)
		ref.Label, _ = label.(string)
		if ref.Id == "" {
			continue
		}
		if err := fn(ref); err != nil {
			return err
		}
	}
	return translateError(res.Err())
}

// RunStructuralUpdate applies rewire as a single Cypher statement.
func (s *Store) RunStructuralUpdate(ctx context.Context, rewire storage.Rewire) (int, error) {
	cypher, err := rewireQuery(rewire)
	if err != nil {
		return 0, err
	}
	if s.driver == nil {
		return 0, storage.ErrStorageClosed
	}
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	res, err := session.Run(ctx, cypher, map[string]any{"prefix": rewire.Prefix})
	if err != nil {
		return 0, translateError(err)
	}
	record, err := res.Single(ctx)
	if err != nil {
		return 0, translateError(err)
	}
	rewired, _ := record.Get("rewired")
	n, _ := rewired.(int64)
	return int(n), nil
}

// contentionCodes are the server codes that signal lock contention between
// concurrent writers. Only these are retried.
var contentionCodes = map[string]bool{
	"Neo.TransientError.Transaction.DeadlockDetected":       true,
	"Neo.TransientError.Transaction.LockClientStopped":      true,
	"Neo.ClientError.Transaction.LockClientStopped":         true,
	"Neo.TransientError.Transaction.LockAcquisitionTimeout": true,
	"Neo.TransientError.Transaction.Outdated":               true,
}

// translateError marks lock contention as storage.ErrConflict. Connectivity
// and every other failure are returned as is and are not retried.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var serverErr *neo4j.Neo4jError
	if errors.As(err, &serverErr) && contentionCodes[serverErr.Code] {
		return fmt.Errorf("%w: %w", storage.ErrConflict, err)
	}
	var usage *neo4j.UsageError
	if errors.As(err, &usage) {
		return fmt.Errorf("%w: %w", storage.ErrInvalidQuery, err)
	}
	return err
}
