// Command kpiboard-worker mirrors the KPI tables from the SQL store into
// Google Sheets: once at startup, on every SYNC_INTERVAL and, when AMQP_URL
// is set, whenever a table-changed message arrives.
package main

import (
	"context"
	"errors"
	"os"
	"time"

	"kpiboard/internal/amqp"
	"kpiboard/internal/cli"
	"kpiboard/internal/log"
	"kpiboard/internal/services"
	gsheet "kpiboard/internal/sheets/google"
	"kpiboard/internal/worker"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentWorker)
	if err := cfg.ValidateMirror(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Starting kpiboard-worker", log.FieldBackend, cfg.DataBackend, "interval", cfg.SyncInterval)

	// The worker reads straight from the database and owns its own consumer,
	// so neither the read cache nor the publisher is needed here.
	cfg.CacheTTL = 0
	amqpURL := cfg.AMQPURL
	cfg.AMQPURL = ""

	res, err := cli.OpenBackend(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	target, err := gsheet.NewFromEnv(context.Background())
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	var consumer *amqp.Client
	if amqpURL != "" {
		consumer, err = amqp.NewClient(amqpURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// Periodic mirroring still converges without messages.
			logger.Warn("Failed to initialize AMQP client, falling back to periodic mirroring only", "error", err)
			consumer = nil
		}
	}

	mirror := worker.NewMirrorWorker(res.Store, target)
	processor := services.NewMirrorProcessor(mirror, services.MirrorProcessorConfig{Interval: cfg.SyncInterval})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Error("Mirror processor stop error", "error", err)
		}
		if consumer != nil {
			_ = consumer.Close()
		}
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start mirror processor", "error", err)
		os.Exit(1)
	}

	if consumer != nil {
		go func() {
			err := consumer.ConsumeTableChanged(ctx, mirror.HandleTableChanged)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
			}
		}()
		logger.Info("Consuming table changed messages", "queue", cfg.AMQPQueue)
	} else {
		logger.Info("Skipping AMQP message consumption - no AMQP_URL configured")
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
