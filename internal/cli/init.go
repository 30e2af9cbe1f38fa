// Package cli provides common initialization shared by cmd/cambi,
// cmd/cambi-worker and cmd/cambictl.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cambi/internal/backend"
	"cambi/internal/config"
	"cambi/internal/ledger"
	applog "cambi/internal/log"
	"cambi/internal/storage"
)

// SetupLogger initializes structured logging and installs it as the slog
// default.
func SetupLogger(service, level, format string) *applog.Logger {
	return applog.Init(service, level, format)
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration, sets up logging from it and
// validates it. It exits the process on failure.
func LoadAndValidateConfig(service string) (*config.Config, *applog.Logger) {
	cfg, err := config.Load()
	if err != nil {
		SetupLogger(service, "info", "text").Error("Failed to load configuration", applog.FieldError, err)
		os.Exit(1)
	}
	logger := SetupLogger(service, cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// OpenStore opens the backend selected by cfg.
func OpenStore(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*backend.Result, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger).CreateStore(ctx, bcfg)
}

// OpenLedger opens the configured store and loads the ledger from it. The
// returned cleanup closes the store.
func OpenLedger(ctx context.Context, cfg *config.Config, logger *applog.Logger, opts ...ledger.Option) (*ledger.Ledger, backend.CleanupFunc, error) {
	res, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	opts = append([]ledger.Option{ledger.WithMalformedPolicy(storage.MalformedPolicy(cfg.MalformedSlotPolicy))}, opts...)
	l, err := ledger.Open(ctx, res.Store, opts...)
	if err != nil {
		_ = res.Close()
		return nil, nil, fmt.Errorf("open ledger: %w", err)
	}
	return l, res.Close, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that is closed once cleanup has returned.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

