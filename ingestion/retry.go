package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/poiesic/wikigraph/metrics"
	"github.com/poiesic/wikigraph/storage"
)

// RetryPolicy bounds the retries of one store write.
type RetryPolicy struct {
	MaxAttempts int           // total attempts, first one included
	BaseDelay   time.Duration // delay before the first retry, doubling afterwards
	MaxDelay    time.Duration // cap on a single delay
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   50 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

// RetryingWriter issues store writes, retrying transient conflicts.
// Every write is an upsert keyed by a stable id, so resubmitting the whole
// batch is idempotent.
type RetryingWriter struct {
	store   storage.GraphStore
	policy  RetryPolicy
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewRetryingWriter creates a writer over store.
func NewRetryingWriter(store storage.GraphStore, policy RetryPolicy, logger *slog.Logger, m *metrics.Metrics) (*RetryingWriter, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if policy.MaxAttempts <= 0 {
		return nil, ErrInvalidMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryingWriter{
		store:   store,
		policy:  policy,
		logger:  logger,
		metrics: m,
	}, nil
}

// Do runs write until it succeeds, fails with a non-transient error, or
// the retry budget is spent. Exhaustion is reported as ErrRetriesExhausted
// wrapping the last failure.
func (w *RetryingWriter) Do(ctx context.Context, operation string, write func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.policy.BaseDelay
	b.MaxInterval = w.policy.MaxDelay
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(w.policy.MaxAttempts-1)), ctx)

	attempts := 0
	err := backoff.RetryNotify(func() error {
		attempts++
		err := write(ctx)
		if err != nil && !storage.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, delay time.Duration) {
		w.metrics.WriteRetried(operation)
		w.logger.Debug("transient write failure, retrying",
			"operation", operation, "attempt", attempts, "delay", delay, "error", err)
	})
	w.metrics.StoreWrite(operation, err)

	if err != nil && storage.IsTransient(err) {
		return fmt.Errorf("%w: %s after %d attempts: %w", ErrRetriesExhausted, operation, attempts, err)
	}
	return err
}

// UpsertNodes upserts nodes with retries.
func (w *RetryingWriter) UpsertNodes(ctx context.Context, mode storage.UpsertMode, labels []string, nodes []storage.Node) error {
	if len(nodes) == 0 {
		return nil
	}
	return w.Do(ctx, "upsert_nodes", func(ctx context.Context) error {
		return w.store.UpsertNodes(ctx, mode, labels, nodes)
	})
}

// MergeEdges merges edges with retries.
func (w *RetryingWriter) MergeEdges(ctx context.Context, relation, startLabel, endLabel string, edges []storage.Edge) error {
	if len(edges) == 0 {
		return nil
	}
	return w.Do(ctx, "merge_edges", func(ctx context.Context) error {
		return w.store.MergeEdges(ctx, relation, startLabel, endLabel, edges)
	})
}

// RunStructuralUpdate applies rewire with retries and returns the rewired count.
func (w *RetryingWriter) RunStructuralUpdate(ctx context.Context, rewire storage.Rewire) (int, error) {
	var rewired int
	err := w.Do(ctx, "structural_update", func(ctx context.Context) error {
		var err error
		rewired, err = w.store.RunStructuralUpdate(ctx, rewire)
		return err
	})
	return rewired, err
}
