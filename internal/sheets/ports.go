// Package sheets mirrors the ledger into tabular outputs: a spreadsheet
// export and CSV.
package sheets

import (
	"context"
	"errors"

	"cambi/internal/core"
)

// ErrExportUnavailable is returned by exporters that are refusing work for
// a while, e.g. behind an open circuit breaker. A later full export catches
// up, so callers should not retry immediately.
var ErrExportUnavailable = errors.New("spreadsheet export unavailable")

// Ports for outbound adapters.
type (
	// LedgerExporter replaces the exported copy with entries. The export is
	// one-way; the storage slot stays the source of truth.
	LedgerExporter interface {
		Export(ctx context.Context, entries []core.Entry) error
	}
)
