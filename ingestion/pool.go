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

package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"
)

// WorkFunc performs one unit of work for the given worker. It returns
// finished once that worker has nothing left to do.
type WorkFunc func(ctx context.Context, worker int) (finished bool, err error)

// WorkerPool runs a fixed number of logical workers, each calling a WorkFunc
// in a loop until it reports finished or fails.
type WorkerPool struct {
	concurrency int
	jitter      time.Duration
	logger      *slog.Logger
}

// PoolOption configures a WorkerPool.
type PoolOption func(*WorkerPool)

// WithStartJitter staggers worker start times: worker i starts after
// (rand + i) * jitter. Zero starts every worker at once.
func WithStartJitter(jitter time.Duration) PoolOption {
	return func(p *WorkerPool) {
		if jitter < 0 {
			jitter = 0
		}
		p.jitter = jitter
	}
}

// WithPoolLogger sets a custom logger.
// Default is slog.Default().
func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(p *WorkerPool) {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
	}
}

// NewWorkerPool creates a pool of concurrency workers.
func NewWorkerPool(concurrency int, opts ...PoolOption) (*WorkerPool, error) {
	if concurrency < 1 {
		return nil, ErrInvalidConcurrency
	}
	p := &WorkerPool{
		concurrency: concurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run starts the workers and blocks until every worker has finished, or
// until the first worker error. On error the remaining workers are cancelled
// and Run returns at once; work already in flight settles in the background
// and its results are ignored.
func (p *WorkerPool) Run(ctx context.Context, work WorkFunc) error {
	pool, err := ants.NewPool(p.concurrency)
	if err != nil {
		return err
	}
	defer pool.Release()

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Each worker sends exactly one message, so neither channel blocks.
	errCh := make(chan error, p.concurrency)
	doneCh := make(chan int, p.concurrency)

	for i := range p.concurrency {
		worker := i
		if err := pool.Submit(func() {
			p.runWorker(workCtx, worker, work, errCh, doneCh)
		}); err != nil {
			return fmt.Errorf("submit worker %d: %w", worker, err)
		}
	}

	finished := 0
	for finished < p.concurrency {
		select {
		case err := <-errCh:
			return err
		case worker := <-doneCh:
			finished++
			p.logger.Debug("worker finished", "worker", worker, "finished", finished, "of", p.concurrency)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (p *WorkerPool) runWorker(ctx context.Context, worker int, work WorkFunc, errCh chan<- error, doneCh chan<- int) {
	defer func() {
		if r := recover(); r != nil {
			errCh <- fmt.Errorf("worker %d panicked: %v", worker, r)
		}
	}()

	if delay := p.startDelay(worker); delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			errCh <- ctx.Err()
			return
		case <-timer.C:
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			errCh <- err
			return
		}
		finished, err := work(ctx, worker)
		if err != nil {
			errCh <- err
			return
		}
		if finished {
			doneCh <- worker
			return
		}
		// Back of the run queue before the next unit of work.
		runtime.Gosched()
	}
}

func (p *WorkerPool) startDelay(worker int) time.Duration {
	if p.jitter == 0 {
		return 0
	}
	return time.Duration((rand.Float64() + float64(worker)) * float64(p.jitter))
}
