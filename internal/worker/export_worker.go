// Package worker keeps the spreadsheet mirror up to date from ledger events
// and on a schedule.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cambi/internal/amqp"
	applog "cambi/internal/log"
	"cambi/internal/metrics"
	"cambi/internal/sheets"
	"cambi/internal/storage"
)

// Export triggers, used as the metrics label.
const (
	TriggerEvent    = "event"
	TriggerSchedule = "schedule"
	TriggerStartup  = "startup"
)

// ExportWorker re-exports the whole collection read from the store. Every
// export is a full snapshot, so a skipped one is repaired by the next.
type ExportWorker struct {
	store    storage.EntryStore
	exporter sheets.LedgerExporter
	metrics  *metrics.Registry
	logger   *applog.Logger

	// mu serializes exports so two snapshots never interleave on the sheet.
	mu sync.Mutex
}

func NewExportWorker(store storage.EntryStore, exporter sheets.LedgerExporter, reg *metrics.Registry, logger *applog.Logger) *ExportWorker {
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	return &ExportWorker{
		store:    store,
		exporter: exporter,
		metrics:  reg,
		logger:   logger.WithComponent(applog.ComponentWorker),
	}
}

// ExportAll loads the slot and hands every entry to the exporter.
func (w *ExportWorker) ExportAll(ctx context.Context, trigger string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := time.Now()
	err := w.export(ctx)
	w.metrics.ObserveExport(trigger, err, time.Since(start))
	if err != nil {
		w.logger.ErrorContext(ctx, "Export failed",
			applog.FieldOperation, applog.OpExport,
			"trigger", trigger,
			applog.FieldError, err)
		return err
	}
	w.logger.InfoContext(ctx, "Export completed",
		applog.FieldOperation, applog.OpExport,
		"trigger", trigger,
		"duration", time.Since(start).String())
	return nil
}

func (w *ExportWorker) export(ctx context.Context) error {
	entries, err := w.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load entries: %w", err)
	}
	if err := w.exporter.Export(ctx, entries); err != nil {
		return fmt.Errorf("export entries: %w", err)
	}
	return nil
}

// HandleEvent exports after a ledger mutation. Failures that a retry of the
// same delivery cannot fix are acknowledged; the schedule catches up.
func (w *ExportWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	w.logger.DebugContext(ctx, "Processing ledger event",
		"type", ev.Type,
		applog.FieldEntryID, ev.EntryID)

	err := w.ExportAll(ctx, TriggerEvent)
	if errors.Is(err, sheets.ErrExportUnavailable) || errors.Is(err, storage.ErrMalformedSlot) {
		w.logger.WarnContext(ctx, "Dropping ledger event, waiting for the next scheduled export",
			"type", ev.Type,
			applog.FieldEntryID, ev.EntryID,
			applog.FieldError, err)
		return nil
	}
	return err
}
