package ingestion

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreRequired is returned when a graph store is not provided.
	ErrStoreRequired = errors.New("graph store required")

	// ErrSourceRequired is returned when a stage needs a corpus but none is configured.
	ErrSourceRequired = errors.New("corpus source required")

	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrInvalidConcurrency is returned when a pool is created with fewer than one worker.
	ErrInvalidConcurrency = errors.New("concurrency must be greater than 0")

	// ErrInvalidBucket is returned when the bucket size is < 1.
	ErrInvalidBucket = errors.New("bucket size must be greater than 0")

	// ErrRetriesExhausted wraps the last transient failure once the retry budget is spent.
	ErrRetriesExhausted = errors.New("write retries exhausted")
)

// StageError identifies the stage that aborted the pipeline.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
