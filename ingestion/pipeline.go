package ingestion

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/poiesic/wikigraph/metrics"
	"github.com/poiesic/wikigraph/source"
	"github.com/poiesic/wikigraph/storage"
)

// Stage names, as reported in StageError and logs.
const (
	StageClear    = "clear"
	StageEntities = "entities"
	StageClaims   = "claims"
	StageDerive   = "derive"
)

// StageSet selects the stages a pipeline runs.
type StageSet struct {
	Clear    bool
	Entities bool
	Claims   bool
	Derive   bool
}

// AllStages enables every stage.
func AllStages() StageSet {
	return StageSet{Clear: true, Entities: true, Claims: true, Derive: true}
}

// Pipeline sequences the load stages against one store.
type Pipeline struct {
	store            storage.GraphStore
	writer           *RetryingWriter
	corpusPath       string
	skip             int64
	total            int64
	bucket           int
	concurrency      int
	groupConcurrency int
	jitter           time.Duration
	stages           StageSet
	verbose          bool
	retry            RetryPolicy
	progress         io.Writer
	logger           *slog.Logger
	metrics          *metrics.Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithCorpus sets the path of the line-delimited corpus.
func WithCorpus(path string) Option {
	return func(p *Pipeline) error {
		p.corpusPath = path
		return nil
	}
}

// WithSkip skips the first n corpus lines in every streaming stage.
func WithSkip(n int64) Option {
	return func(p *Pipeline) error {
		p.skip = max(n, 0)
		return nil
	}
}

// WithTotal sets the corpus line count. When unset it is counted before the
// first streaming stage.
func WithTotal(n int64) Option {
	return func(p *Pipeline) error {
		p.total = max(n, 0)
		return nil
	}
}

// WithBucket sets the number of records per batch and the stash flush threshold.
// Default is 1000.
func WithBucket(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return ErrInvalidBucket
		}
		p.bucket = n
		return nil
	}
}

// WithConcurrency sets the number of workers per streaming stage.
// Default is runtime.NumCPU(), with a minimum of 1.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return ErrInvalidConcurrency
		}
		p.concurrency = n
		return nil
	}
}

// WithGroupConcurrency bounds the concurrent group writes of one claims batch.
// Default is 2.
func WithGroupConcurrency(n int) Option {
	return func(p *Pipeline) error {
		p.groupConcurrency = max(n, 1)
		return nil
	}
}

// WithWorkerJitter sets the worker start stagger. Default is 100ms.
func WithWorkerJitter(d time.Duration) Option {
	return func(p *Pipeline) error {
		p.jitter = max(d, 0)
		return nil
	}
}

// WithStages selects the stages to run. Default is AllStages().
func WithStages(stages StageSet) Option {
	return func(p *Pipeline) error {
		p.stages = stages
		return nil
	}
}

// WithVerboseTiming logs per-batch and per-update durations at info level.
func WithVerboseTiming(verbose bool) Option {
	return func(p *Pipeline) error {
		p.verbose = verbose
		return nil
	}
}

// WithRetryPolicy sets the write retry policy. Default is DefaultRetryPolicy().
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(p *Pipeline) error {
		if policy.MaxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		p.retry = policy
		return nil
	}
}

// WithProgressWriter sets where progress lines go. nil disables them.
func WithProgressWriter(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.progress = w
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics sink. Default is none.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) error {
		p.metrics = m
		return nil
	}
}

// NewPipeline creates a pipeline writing to store.
func NewPipeline(store storage.GraphStore, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	p := &Pipeline{
		store:            store,
		bucket:           1000,
		concurrency:      max(runtime.NumCPU(), 1),
		groupConcurrency: 2,
		jitter:           100 * time.Millisecond,
		stages:           AllStages(),
		retry:            DefaultRetryPolicy(),
		logger:           slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	writer, err := NewRetryingWriter(store, p.retry, p.logger, p.metrics)
	if err != nil {
		return nil, err
	}
	p.writer = writer

	return p, nil
}

// Run executes the enabled stages in order. The first failing stage aborts
// the run and is reported as a *StageError.
func (p *Pipeline) Run(ctx context.Context) error {
	stages := []struct {
		name    string
		enabled bool
		run     func(context.Context) error
	}{
		{StageClear, p.stages.Clear, p.runClear},
		{StageEntities, p.stages.Entities, p.runEntities},
		{StageClaims, p.stages.Claims, p.runClaims},
		{StageDerive, p.stages.Derive, p.runDerive},
	}

	for _, st := range stages {
		if !st.enabled {
			p.logger.Debug("stage disabled", "stage", st.name)
			continue
		}
		p.logger.Info("stage started", "stage", st.name)
		start := time.Now()
		if err := st.run(ctx); err != nil {
			p.logger.Error("stage failed", "stage", st.name, "err", err)
			return &StageError{Stage: st.name, Err: err}
		}
		elapsed := time.Since(start)
		p.metrics.StageFinished(st.name, elapsed)
		p.logger.Info("stage finished", "stage", st.name, "elapsed", elapsed.Round(time.Millisecond))
	}
	return nil
}

// openSource opens a fresh, never-rewinding cursor positioned after the skip offset.
func (p *Pipeline) openSource(ctx context.Context) (*source.Reader, error) {
	if p.corpusPath == "" {
		return nil, ErrSourceRequired
	}
	if p.total == 0 {
		total, err := source.CountLines(ctx, p.corpusPath)
		if err != nil {
			return nil, err
		}
		p.total = total
		p.logger.Info("counted corpus lines", "total", total)
	}

	reader, err := source.Open(p.corpusPath, source.WithTotal(p.total))
	if err != nil {
		return nil, err
	}
	if p.skip > 0 {
		skipped, err := reader.Skip(p.skip)
		if err != nil {
			reader.Close()
			return nil, err
		}
		p.logger.Info("skipped corpus lines", "skipped", skipped)
	}
	return reader, nil
}

// stream drives the worker pool over a fresh cursor, handing every batch to handle.
func (p *Pipeline) stream(ctx context.Context, stage string, handle func(context.Context, *Batch) error) error {
	reader, err := p.openSource(ctx)
	if err != nil {
		return err
	}
	defer reader.Close()

	builder, err := NewBatchBuilder(reader, p.bucket)
	if err != nil {
		return err
	}
	pool, err := NewWorkerPool(p.concurrency, WithStartJitter(p.jitter), WithPoolLogger(p.logger))
	if err != nil {
		return err
	}
	progress := NewProgressReporter(p.progress, reader.Total())

	return pool.Run(ctx, func(ctx context.Context, worker int) (bool, error) {
		start := time.Now()
		batch, err := builder.Pull(ctx)
		if err != nil {
			return false, err
		}
		if batch.Empty() {
			return true, nil
		}
		pulled := time.Now()

		if err := handle(ctx, batch); err != nil {
			return false, err
		}

		elapsed := time.Since(start)
		p.metrics.BatchProcessed(stage, batch.Records, elapsed)
		progress.Report(reader.Consumed())
		if p.verbose {
			p.logger.Info("batch written",
				"stage", stage,
				"worker", worker,
				"records", batch.Records,
				"pull", pulled.Sub(start).Round(time.Microsecond),
				"write", time.Since(pulled).Round(time.Microsecond))
		}
		return false, nil
	})
}
