//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cambi/internal/core"
)

// Integration tests require real Google Sheets credentials
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_ExportLedger(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}
	cfg := Config{
		SpreadsheetID:   spreadsheetID,
		SheetName:       os.Getenv("GOOGLE_SHEET_NAME"),
		CredentialsJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		CredentialsFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
	}
	if cfg.CredentialsJSON == "" && cfg.CredentialsFile == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		t.Skip("service account credentials not configured, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	exp, err := New(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("Failed to create exporter: %v", err)
	}

	now := time.Now()
	entries := []core.Entry{{
		ID:              "integration-test",
		Date:            core.NewDate(now.Year(), int(now.Month()), now.Day()),
		Description:     "Integration Test Entry",
		AmountPrimary:   decimal.NewNullDecimal(decimal.RequireFromString("12.34")),
		AmountSecondary: decimal.NewNullDecimal(decimal.RequireFromString("250.00")),
	}}
	if err := exp.Export(ctx, entries); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if err := exp.Export(ctx, entries); err != nil {
		t.Fatalf("second Export failed: %v", err)
	}
}
