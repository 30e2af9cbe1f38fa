// Package google mirrors the ledger into one Google Sheets tab.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"cambi/internal/core"
	applog "cambi/internal/log"
	"cambi/internal/sheets"
)

// ErrUnavailable is returned while the circuit breaker refuses exports.
var ErrUnavailable = sheets.ErrExportUnavailable

// Config describes the target sheet and how to reach it.
type Config struct {
	SpreadsheetID     string
	SheetName         string
	CredentialsJSON   string
	CredentialsFile   string
	PrimaryCurrency   string
	SecondaryCurrency string

	// BreakerMaxFailures consecutive failures open the breaker for
	// BreakerOpenInterval.
	BreakerMaxFailures  uint32
	BreakerOpenInterval time.Duration
}

// valuesAPI is the slice of the Sheets values service the exporter needs.
type valuesAPI interface {
	Clear(ctx context.Context, spreadsheetID, rng string) error
	Update(ctx context.Context, spreadsheetID, rng string, values [][]any) error
}

type sheetsValues struct {
	svc *gsheet.Service
}

func (v sheetsValues) Clear(ctx context.Context, spreadsheetID, rng string) error {
	_, err := v.svc.Spreadsheets.Values.Clear(spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	return err
}

func (v sheetsValues) Update(ctx context.Context, spreadsheetID, rng string, values [][]any) error {
	// RAW keeps descriptions starting with "=" from being evaluated as formulas.
	_, err := v.svc.Spreadsheets.Values.Update(spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// Exporter rewrites the configured tab with a header and every entry.
type Exporter struct {
	values        valuesAPI
	breaker       *gobreaker.CircuitBreaker
	logger        *applog.Logger
	spreadsheetID string
	sheet         string
	primary       string
	secondary     string
}

var _ sheets.LedgerExporter = (*Exporter)(nil)

// New creates an Exporter backed by the Sheets API using service account
// credentials.
func New(ctx context.Context, cfg Config, logger *applog.Logger) (*Exporter, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newExporter(sheetsValues{svc: svc}, cfg, logger), nil
}

func newExporter(values valuesAPI, cfg Config, logger *applog.Logger) *Exporter {
	if cfg.SheetName == "" {
		cfg.SheetName = "Entries"
	}
	if cfg.PrimaryCurrency == "" {
		cfg.PrimaryCurrency = "PLN"
	}
	if cfg.SecondaryCurrency == "" {
		cfg.SecondaryCurrency = "INR"
	}
	if cfg.BreakerMaxFailures == 0 {
		cfg.BreakerMaxFailures = 3
	}
	if cfg.BreakerOpenInterval <= 0 {
		cfg.BreakerOpenInterval = time.Minute
	}
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	logger = logger.WithComponent(applog.ComponentSheets)

	maxFailures := cfg.BreakerMaxFailures
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sheets-export",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenInterval,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Log(context.Background(), stateLevel(to), "Circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Exporter{
		values:        values,
		breaker:       breaker,
		logger:        logger,
		spreadsheetID: cfg.SpreadsheetID,
		sheet:         cfg.SheetName,
		primary:       cfg.PrimaryCurrency,
		secondary:     cfg.SecondaryCurrency,
	}
}

// Export writes the header plus one row per entry, then clears the rows
// below them.
func (e *Exporter) Export(ctx context.Context, entries []core.Entry) error {
	table := sheets.Table(entries, e.primary, e.secondary)
	values := make([][]any, len(table))
	for i, row := range table {
		cells := make([]any, len(row))
		for j, c := range row {
			cells[j] = c
		}
		values[i] = cells
	}

	writeRange := fmt.Sprintf("%s!A1", quoteSheet(e.sheet))
	// Rows left over from a longer previous export.
	staleRange := fmt.Sprintf("%s!A%d:%c", quoteSheet(e.sheet), len(values)+1, 'A'+sheets.Columns-1)

	// A failed write must leave the previous export in place, so clear last.
	_, err := e.breaker.Execute(func() (interface{}, error) {
		if err := e.values.Update(ctx, e.spreadsheetID, writeRange, values); err != nil {
			return nil, fmt.Errorf("write %s: %w", writeRange, err)
		}
		if err := e.values.Clear(ctx, e.spreadsheetID, staleRange); err != nil {
			return nil, fmt.Errorf("clear %s: %w", staleRange, err)
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "Ledger exported to spreadsheet",
		applog.FieldOperation, applog.OpExport,
		"sheet", e.sheet,
		"rows", len(entries))
	return nil
}

// State reports the breaker state, for readiness output and tests.
func (e *Exporter) State() gobreaker.State {
	return e.breaker.State()
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func stateLevel(to gobreaker.State) slog.Level {
	if to == gobreaker.StateOpen {
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// newSheetsService initializes a Sheets service from inline JSON, a file, or
// GOOGLE_APPLICATION_CREDENTIALS, in that order.
func newSheetsService(ctx context.Context, cfg Config, logger *applog.Logger) (*gsheet.Service, error) {
	credentialsJSON := strings.TrimSpace(cfg.CredentialsJSON)
	credentialsFile := strings.TrimSpace(cfg.CredentialsFile)
	if credentialsJSON == "" && credentialsFile == "" {
		credentialsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var raw []byte
	switch {
	case credentialsJSON != "":
		raw = []byte(credentialsJSON)
	case credentialsFile != "":
		b, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		raw = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	if logger != nil {
		logger.DebugContext(ctx, "Creating Google Sheets service",
			"credentials_size", len(raw),
			"scope", gsheet.SpreadsheetsScope)
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(raw),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}
