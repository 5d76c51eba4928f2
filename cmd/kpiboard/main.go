package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"kpiboard/internal/cache"
	"kpiboard/internal/cli"
	apphttp "kpiboard/internal/http"
	"kpiboard/internal/log"
	"kpiboard/internal/services"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentApp)

	res, err := cli.OpenBackend(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	// Only hand a notifier to the service when one exists; a nil *amqp.Client
	// stored in the interface would not compare equal to nil.
	var notifier services.Notifier
	if res.Notifier != nil {
		notifier = res.Notifier
	}

	caches := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	if res.Cache != nil {
		caches.Register(res.Cache.Cleaner())
		caches.StartCleanup(time.Minute)
	}

	tables := services.NewTableService(res.Store, notifier, logger.WithComponent(log.ComponentTable))
	reports := services.NewReportService(res.Store, logger.WithComponent(log.ComponentReport))

	ready := map[string]apphttp.ReadyCheck{}
	if res.Repository != nil {
		ready["database"] = func(ctx context.Context) error {
			_, err := res.Repository.Tables(ctx)
			return err
		}
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:        ":" + cfg.Port,
		Tables:      tables,
		Reports:     reports,
		Cache:       res.Cache,
		CORSOrigins: cfg.CORSOrigins,
		ReadyChecks: ready,
		Logger:      logger.WithComponent(log.ComponentHTTP),
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		caches.Stop()
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting kpiboard server", "port", cfg.Port, log.FieldBackend, cfg.DataBackend,
		"cache_ttl", cfg.CacheTTL, "notifications", notifier != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
