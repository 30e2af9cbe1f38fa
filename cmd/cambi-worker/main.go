package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"cambi/internal/amqp"
	"cambi/internal/cli"
	applog "cambi/internal/log"
	"cambi/internal/metrics"
	gsheet "cambi/internal/sheets/google"
	"cambi/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig("cambi-worker")
	if err := cfg.ValidateExport(); err != nil {
		logger.Error("Export configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	store, err := cli.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open store", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer store.Close()

	exporter, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:       cfg.GoogleSpreadsheetID,
		SheetName:           cfg.GoogleSheetName,
		CredentialsJSON:     cfg.GoogleServiceAccountJSON,
		CredentialsFile:     cfg.GoogleServiceAccountFile,
		PrimaryCurrency:     cfg.PrimaryCurrency,
		SecondaryCurrency:   cfg.SecondaryCurrency,
		BreakerMaxFailures:  cfg.ExportBreakerMaxFailures,
		BreakerOpenInterval: cfg.ExportBreakerOpenInterval,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets exporter", applog.FieldError, err)
		os.Exit(1)
	}

	reg := metrics.NewRegistry()
	w := worker.NewExportWorker(store.Store, exporter, reg, logger)

	// A failed startup export is repaired by the next event or schedule tick.
	_ = w.ExportAll(ctx, worker.TriggerStartup)

	sched, err := worker.NewScheduler(cfg.ExportSchedule, w, logger)
	if err != nil {
		logger.Error("Failed to create export scheduler", applog.FieldError, err)
		os.Exit(1)
	}
	sched.Start()

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           reg.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		g.Go(func() error {
			return client.Run(gctx, w.HandleEvent)
		})
	} else {
		logger.Info("AMQP disabled, exporting on schedule only", "schedule", cfg.ExportSchedule)
	}

	g.Go(func() error {
		logger.Info("Serving worker metrics", "port", cfg.WorkerMetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := sched.Stop(stopCtx); err != nil {
			logger.Warn("Scheduler did not stop in time", applog.FieldError, err)
		}
		return metricsSrv.Shutdown(stopCtx)
	})

	logger.Info("Starting cambi-worker",
		"backend", cfg.DataBackend,
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"schedule", cfg.ExportSchedule)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}

	<-done
	logger.Info("Worker stopped gracefully")
}
