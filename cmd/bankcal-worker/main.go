package main

import (
	"context"
	"errors"
	"os"

	"bankcal/internal/backend"
	"bankcal/internal/cli"
	"bankcal/internal/config"
	applog "bankcal/internal/log"
	"bankcal/internal/scheduler"
	"bankcal/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentWorker)

	logger.Info("Starting bankcal-worker")
	if cfg.DataBackend == string(backend.MemoryBackend) {
		logger.Warn("Worker running on the memory backend sees no transactions imported by the server")
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}

func run(cfg *config.Config, logger *applog.Logger) error {
	ctx, stop := cli.ShutdownContext()
	defer stop()

	// The worker consumes requests; it never publishes them.
	rt, err := cli.NewRuntime(ctx, cfg, logger, cli.RuntimeOptions{PublishImports: false})
	if err != nil {
		return err
	}
	defer rt.Close()

	svc := rt.Service
	messaging := rt.Resources.Messaging

	// A nil *amqp.Client must not become a non-nil interface.
	var publisher worker.ResultPublisher
	if messaging != nil {
		publisher = messaging
	}
	consumer := worker.NewConsumer(svc, publisher, svc.Defaults())

	logger.Info("Performing startup detection...", applog.FieldOperation, applog.OpStartup)
	if err := consumer.StartupDetection(ctx); err != nil {
		logger.Error("Startup detection failed", applog.FieldError, err)
	}

	sched := scheduler.New(logger)
	if err := sched.AddJob(cfg.DetectSchedule, scheduler.NewDetectionJob(svc, svc.Defaults())); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	consumeErr := make(chan error, 1)
	if messaging != nil {
		go func() {
			consumeErr <- messaging.ConsumeDetectionRequests(ctx, consumer.HandleDetectionRequest)
		}()
	} else {
		logger.Info("Skipping AMQP message consumption - no AMQP client available")
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received", applog.FieldOperation, applog.OpShutdown)
		return nil
	case err := <-consumeErr:
		if err == nil || errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}
