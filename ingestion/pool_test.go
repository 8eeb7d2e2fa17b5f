package ingestion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkerPool_InvalidConcurrency(t *testing.T) {
	_, err := NewWorkerPool(0)
	assert.ErrorIs(t, err, ErrInvalidConcurrency)
}

func TestWorkerPool_AllWorkersFinish(t *testing.T) {
	const workers, perWorker = 4, 3

	pool, err := NewWorkerPool(workers, WithStartJitter(time.Millisecond))
	require.NoError(t, err)

	var mu sync.Mutex
	calls := map[int]int{}
	err = pool.Run(context.Background(), func(ctx context.Context, worker int) (bool, error) {
		mu.Lock()
		defer mu.Unlock()
		calls[worker]++
		return calls[worker] == perWorker, nil
	})
	require.NoError(t, err)

	assert.Len(t, calls, workers)
	for worker, n := range calls {
		assert.Equal(t, perWorker, n, "worker %d", worker)
	}
}

func TestWorkerPool_FirstErrorShortCircuits(t *testing.T) {
	pool, err := NewWorkerPool(3)
	require.NoError(t, err)

	boom := errors.New("boom")
	release := make(chan struct{})
	defer close(release)

	done := make(chan error, 1)
	go func() {
		done <- pool.Run(context.Background(), func(ctx context.Context, worker int) (bool, error) {
			if worker == 1 {
				return false, boom
			}
			// The other workers hang in a store call that ignores cancellation.
			<-release
			return true, nil
		})
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, boom)
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not return on first error")
	}
}

func TestWorkerPool_ParentCancelled(t *testing.T) {
	pool, err := NewWorkerPool(2)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = pool.Run(ctx, func(ctx context.Context, worker int) (bool, error) {
		return false, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWorkerPool_RecoversPanic(t *testing.T) {
	pool, err := NewWorkerPool(1)
	require.NoError(t, err)

	err = pool.Run(context.Background(), func(ctx context.Context, worker int) (bool, error) {
		panic("bad batch")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad batch")
}
