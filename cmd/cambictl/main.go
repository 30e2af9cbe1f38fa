package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"cambi/internal/amqp"
	"cambi/internal/cli"
	"cambi/internal/config"
	"cambi/internal/ledger"
	applog "cambi/internal/log"
)

func main() {
	cli.LoadEnvFile()
	if err := newRootCmd(&app{}, setupFromEnv).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setupFromEnv loads the server configuration. Logs go to stderr so command
// output stays clean.
func setupFromEnv(a *app) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	// Edits must land in the store the server reads.
	if err := cfg.ValidateSharedStore(); err != nil {
		return err
	}

	level := slog.LevelWarn
	if applog.ParseLevel(cfg.LogLevel) == slog.LevelDebug {
		level = slog.LevelDebug
	}
	logger := applog.New(applog.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: applog.ComponentCLI,
		Output:    os.Stderr,
	})
	applog.SetDefault(logger)

	a.primary = cfg.PrimaryCurrency
	a.secondary = cfg.SecondaryCurrency
	a.openLedger = func(ctx context.Context) (*ledger.Ledger, func() error, error) {
		var opts []ledger.Option
		var client *amqp.Client
		if cfg.AMQPURL != "" {
			// Keep the spreadsheet mirror in step with edits made here.
			c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
			if err != nil {
				logger.WarnContext(ctx, "AMQP unavailable, ledger events will not be published", applog.FieldError, err)
			} else {
				client = c
				opts = append(opts, ledger.WithPublisher(c))
			}
		}
		l, closeStore, err := cli.OpenLedger(ctx, cfg, logger, opts...)
		if err != nil {
			if client != nil {
				client.Close()
			}
			return nil, nil, err
		}
		return l, func() error {
			if client != nil {
				client.Close()
			}
			return closeStore()
		}, nil
	}
	return nil
}
