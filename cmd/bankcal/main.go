package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"bankcal/internal/cli"
	"bankcal/internal/config"
	apphttp "bankcal/internal/http"
	applog "bankcal/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentApp)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *applog.Logger) error {
	ctx, stop := cli.ShutdownContext()
	defer stop()

	rt, err := cli.NewRuntime(ctx, cfg, logger, cli.RuntimeOptions{PublishImports: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	srvOpts := []apphttp.Option{apphttp.WithCacheStats(rt.Results.Stats)}
	if pinger, ok := rt.Resources.Repository.(interface{ Ping(context.Context) error }); ok {
		srvOpts = append(srvOpts, apphttp.WithReadinessCheck("storage", pinger.Ping))
	}
	srv := apphttp.NewServer(":"+cfg.Port, rt.Service, logger, srvOpts...)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting bankcal server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"amqp_enabled", rt.Resources.Messaging != nil,
			"export_enabled", rt.Resources.Exporter != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
		logger.Info("Shutdown signal received", applog.FieldOperation, applog.OpShutdown)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-serveErr
}
