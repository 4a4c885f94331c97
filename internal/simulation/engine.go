package simulation

import (
	"context"
	"runtime"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/qdlab/nanolume/internal/errors"
	"github.com/qdlab/nanolume/internal/logger"
	"github.com/qdlab/nanolume/internal/model"
	"github.com/qdlab/nanolume/internal/observability/metrics"
	"github.com/qdlab/nanolume/internal/spectrum"
)

// Config controls the engine's memo cache and sweep parallelism.
type Config struct {
	// CacheTTL is how long a result stays memoised. Zero disables caching.
	CacheTTL time.Duration
	// SweepWorkers is the default parallelism for Sweep; ≤ 0 means GOMAXPROCS.
	SweepWorkers int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		CacheTTL:     10 * time.Minute,
		SweepWorkers: runtime.GOMAXPROCS(0),
	}
}

// sweepObserver is implemented by recorders that track sweep sizes.
type sweepObserver interface {
	ObserveSweepPoints(points int)
}

// Engine runs the pipeline with memoisation and metrics. It is safe for
// concurrent use.
type Engine struct {
	consts  model.Constants
	builder *spectrum.Builder
	config  Config
	cache   *cache.Cache
	flight  singleflight.Group
	metrics metrics.Recorder
	log     logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.metrics = r
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine validates the constant set and builds an engine around it.
func NewEngine(c model.Constants, cfg Config, opts ...Option) (*Engine, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if cfg.SweepWorkers <= 0 {
		cfg.SweepWorkers = runtime.GOMAXPROCS(0)
	}

	e := &Engine{
		consts:  c,
		builder: spectrum.NewBuilder(c),
		config:  cfg,
		metrics: metrics.NoopRecorder{},
	}
	if cfg.CacheTTL > 0 {
		e.cache = cache.New(cfg.CacheTTL, cfg.CacheTTL*2)
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = GetLogger()
	}

	e.log.Debug("simulation engine initialized",
		logger.Duration("cache_ttl", cfg.CacheTTL),
		logger.Int("sweep_workers", cfg.SweepWorkers))

	return e, nil
}

// Constants returns the engine's constant set.
func (e *Engine) Constants() model.Constants {
	return e.consts
}

// Builder returns the spectrum builder bound to the engine's constants.
func (e *Engine) Builder() *spectrum.Builder {
	return e.builder
}

// Simulate defaults and validates in, then runs the pipeline. Results are
// memoised per exact input tuple; callers always receive their own copy.
func (e *Engine) Simulate(ctx context.Context, in Inputs) (Result, error) {
	if err := ctx.Err(); err != nil {
		e.metrics.RecordOperation(metrics.OpSimulate, metrics.StatusCancelled)
		return Result{}, cancelled(err, metrics.OpSimulate)
	}

	in = in.WithDefaults(e.consts)
	if err := in.Validate(); err != nil {
		e.metrics.RecordError(metrics.OpSimulate, string(errors.CategoryValidation))
		e.metrics.RecordOperation(metrics.OpSimulate, metrics.StatusError)
		return Result{}, err
	}

	start := time.Now()
	result := e.run(in)
	e.metrics.RecordOperation(metrics.OpSimulate, metrics.StatusSuccess)
	e.metrics.RecordDuration(metrics.OpSimulate, time.Since(start).Seconds())

	return result, nil
}

func (e *Engine) run(in Inputs) Result {
	if e.cache == nil {
		return Run(e.consts, e.builder, in)
	}

	key := in.Key()
	if v, found := e.cache.Get(key); found {
		if r, ok := v.(Result); ok {
			e.metrics.RecordOperation(metrics.OpCacheGet, metrics.StatusHit)
			return r.Clone()
		}
	}
	e.metrics.RecordOperation(metrics.OpCacheGet, metrics.StatusMiss)

	// Concurrent misses on one key compute once.
	v, _, _ := e.flight.Do(key, func() (any, error) {
		r := Run(e.consts, e.builder, in)
		e.cache.Set(key, r, cache.DefaultExpiration)
		return r, nil
	})
	return v.(Result).Clone()
}

// Sweep simulates every input with at most workers goroutines (the
// configured default when workers ≤ 0). Results keep input order. All
// inputs are validated before any work starts; the first failure, or
// context cancellation, aborts the sweep.
func (e *Engine) Sweep(ctx context.Context, inputs []Inputs, workers int) ([]Result, error) {
	start := time.Now()
	if workers <= 0 {
		workers = e.config.SweepWorkers
	}

	for i, in := range inputs {
		if err := in.WithDefaults(e.consts).Validate(); err != nil {
			e.metrics.RecordError(metrics.OpSweep, string(errors.CategoryValidation))
			e.metrics.RecordOperation(metrics.OpSweep, metrics.StatusError)
			return nil, errors.New(err).
				Component("simulation").
				Category(errors.CategoryValidation).
				Context("index", i).
				Build()
		}
	}

	if o, ok := e.metrics.(sweepObserver); ok {
		o.ObserveSweepPoints(len(inputs))
	}

	results := make([]Result, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, in := range inputs {
		g.Go(func() error {
			r, err := e.Simulate(gctx, in)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		status := metrics.StatusError
		if errors.IsCategory(err, errors.CategoryCancellation) {
			status = metrics.StatusCancelled
		}
		e.metrics.RecordOperation(metrics.OpSweep, status)
		e.log.Warn("sweep aborted",
			logger.Int("points", len(inputs)),
			logger.Error(err))
		return nil, err
	}

	elapsed := time.Since(start)
	e.metrics.RecordOperation(metrics.OpSweep, metrics.StatusSuccess)
	e.metrics.RecordDuration(metrics.OpSweep, elapsed.Seconds())
	e.log.Debug("sweep completed",
		logger.Int("points", len(inputs)),
		logger.Int("workers", workers),
		logger.Duration("elapsed", elapsed))

	return results, nil
}

// CachedResults returns the number of memoised results.
func (e *Engine) CachedResults() int {
	if e.cache == nil {
		return 0
	}
	return e.cache.ItemCount()
}

// FlushCache drops every memoised result.
func (e *Engine) FlushCache() {
	if e.cache != nil {
		e.cache.Flush()
	}
}

func cancelled(err error, operation string) error {
	return errors.New(err).
		Component("simulation").
		Category(errors.CategoryCancellation).
		Context("operation", operation).
		Build()
}
