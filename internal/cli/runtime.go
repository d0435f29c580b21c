package cli

import (
	"context"
	"errors"

	"bankcal/internal/backend"
	"bankcal/internal/cache"
	"bankcal/internal/config"
	applog "bankcal/internal/log"
	"bankcal/internal/recurrence"
	"bankcal/internal/services"
	"bankcal/internal/worker"
)

// Runtime is the detection stack both binaries run: backend resources, the
// worker pool, the result cache and the service on top.
type Runtime struct {
	Resources *backend.Resources
	Pool      *worker.Pool
	Results   *cache.LRUCache[recurrence.Result]
	Service   *services.DetectionService

	caches *cache.Manager
	logger *applog.Logger
}

// RuntimeOptions selects which optional integrations the service uses.
type RuntimeOptions struct {
	// PublishImports sends a detection request over AMQP after each import.
	PublishImports bool

	// Factory overrides backend.NewFactory, mainly for tests.
	Factory backend.Factory
}

// NewRuntime builds the stack and starts the pool and cache sweeper. Call
// Close when done.
func NewRuntime(ctx context.Context, cfg *config.Config, logger *applog.Logger, opts RuntimeOptions) (*Runtime, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	factory := opts.Factory
	if factory == nil {
		factory = backend.NewFactory(logger)
	}
	res, err := factory.Create(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	// The pool outlives ctx so requests still draining at shutdown finish;
	// Close stops it.
	pool := worker.NewPool(cfg.DetectWorkers, cfg.DetectQueueSize, logger)
	pool.Start(context.WithoutCancel(ctx))

	results := cache.NewLRUCache[recurrence.Result](cfg.DetectCacheSize, cfg.DetectCacheTTL)
	caches := cache.NewManager(logger)
	caches.Register(results)
	caches.StartCleanup(context.WithoutCancel(ctx), cfg.DetectCacheTTL)

	var svcOpts []services.Option
	if opts.PublishImports && res.Messaging != nil {
		svcOpts = append(svcOpts, services.WithPublisher(res.Messaging))
	}
	if res.Exporter != nil {
		svcOpts = append(svcOpts, services.WithExporter(res.Exporter))
	}

	return &Runtime{
		Resources: res,
		Pool:      pool,
		Results:   results,
		Service:   services.NewDetectionService(res.Repository, pool, results, svcOpts...),
		caches:    caches,
		logger:    logger,
	}, nil
}

// Close stops the sweeper and the pool, then releases backend resources.
func (r *Runtime) Close() error {
	r.caches.Stop()
	errs := []error{r.Pool.Stop()}
	if r.Resources.Cleanup != nil {
		errs = append(errs, r.Resources.Cleanup())
	}
	err := errors.Join(errs...)
	if err != nil {
		r.logger.Error("Shutdown finished with errors", applog.FieldError, err)
	}
	return err
}
