package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"cambi/internal/amqp"
	"cambi/internal/cli"
	apphttp "cambi/internal/http"
	"cambi/internal/ledger"
	applog "cambi/internal/log"
	"cambi/internal/metrics"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig("cambi")
	ctx := context.Background()

	var opts []ledger.Option
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			// Events only feed the spreadsheet mirror; the app works without them.
			logger.Warn("Failed to initialize AMQP client, continuing without ledger events", applog.FieldError, err)
		} else {
			amqpClient = client
			opts = append(opts, ledger.WithPublisher(client))
			logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	l, closeStore, err := cli.OpenLedger(ctx, cfg, logger, opts...)
	if err != nil {
		logger.Error("Failed to open ledger", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	srv, err := apphttp.NewServer(l, apphttp.Options{
		Addr:               cfg.Addr(),
		FilterYears:        cfg.FilterYears,
		PrimaryCurrency:    cfg.PrimaryCurrency,
		SecondaryCurrency:  cfg.SecondaryCurrency,
		CacheTTL:           cfg.CacheTTL,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Logger:             logger,
		Metrics:            metrics.NewRegistry(),
	})
	if err != nil {
		logger.Error("Failed to create server", applog.FieldError, err)
		os.Exit(1)
	}

	_, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", applog.FieldError, err)
			}
		}
		if err := closeStore(); err != nil {
			logger.Warn("Store close error", applog.FieldError, err)
		}
	})

	logger.Info("Starting cambi server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"entries", l.Len(),
		"events", amqpClient != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
