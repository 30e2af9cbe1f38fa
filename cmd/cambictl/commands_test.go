package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"cambi/internal/config"
	"cambi/internal/core"
	"cambi/internal/ledger"
	"cambi/internal/storage/memory"
)

func newTestApp(store *memory.Store) *app {
	return &app{
		primary:   "PLN",
		secondary: "INR",
		openLedger: func(ctx context.Context) (*ledger.Ledger, func() error, error) {
			l, err := ledger.Open(ctx, store)
			if err != nil {
				return nil, nil, err
			}
			return l, func() error { return nil }, nil
		},
	}
}

func run(t *testing.T, a *app, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd(a, nil)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func seededStore() *memory.Store {
	return memory.New(
		core.Entry{
			ID:              "a",
			Date:            core.NewDate(2025, 1, 5),
			Description:     "Alpha",
			AmountPrimary:   decimal.NewNullDecimal(decimal.NewFromInt(10)),
			AmountSecondary: decimal.NewNullDecimal(decimal.NewFromInt(40)),
		},
		core.Entry{
			ID:              "b",
			Date:            core.NewDate(2025, 2, 1),
			Description:     "Bravo",
			AmountPrimary:   decimal.NewNullDecimal(decimal.NewFromInt(5)),
			AmountSecondary: decimal.NewNullDecimal(decimal.NewFromInt(25)),
		},
	)
}

func TestListFiltersByMonth(t *testing.T) {
	out, _, err := run(t, newTestApp(seededStore()), "list", "--filter", "2025-January")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "Alpha") || strings.Contains(out, "Bravo") {
		t.Errorf("unexpected list output:\n%s", out)
	}
	if !strings.Contains(out, "PLN") || !strings.Contains(out, "10.00") {
		t.Errorf("list output missing header or amount:\n%s", out)
	}

	if _, _, err := run(t, newTestApp(seededStore()), "list", "--filter", "January"); err == nil {
		t.Error("expected error for malformed filter")
	}
}

func TestAddAndDelete(t *testing.T) {
	store := memory.New()
	a := newTestApp(store)

	out, _, err := run(t, a, "add", "--date", "2025-03-01", "--desc", "Train", "--primary", "12,5", "--secondary", "270")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.HasPrefix(out, "Added ") {
		t.Fatalf("unexpected add output: %q", out)
	}
	id := strings.TrimSpace(strings.TrimPrefix(out, "Added "))
	if store.Saves() != 1 {
		t.Fatalf("saves = %d, want 1", store.Saves())
	}

	out, _, err = run(t, a, "delete", "missing")
	if err != nil || !strings.Contains(out, "No entry with id missing") {
		t.Fatalf("delete unknown: out=%q err=%v", out, err)
	}
	if store.Saves() != 1 {
		t.Errorf("unknown delete wrote the slot")
	}

	out, _, err = run(t, a, "delete", id)
	if err != nil || !strings.Contains(out, "Deleted "+id) {
		t.Fatalf("delete: out=%q err=%v", out, err)
	}
	if store.Saves() != 2 {
		t.Errorf("saves = %d, want 2", store.Saves())
	}
}

func TestAddRejectsInvalidAmounts(t *testing.T) {
	store := memory.New()
	_, errOut, err := run(t, newTestApp(store), "add", "--desc", "Lunch", "--primary", "abc", "--secondary", "1")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(errOut, "amountPrimary:") {
		t.Errorf("stderr missing field message: %q", errOut)
	}
	if store.Saves() != 0 {
		t.Errorf("rejected entry was saved")
	}
}

func TestSummary(t *testing.T) {
	out, _, err := run(t, newTestApp(seededStore()), "summary")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	for _, want := range []string{"all", "15.00", "65.00", "4.33"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary output missing %q:\n%s", want, out)
		}
	}
}

func TestExportCSV(t *testing.T) {
	out, _, err := run(t, newTestApp(seededStore()), "export", "csv", "--filter", "2025-February")
	if err != nil {
		t.Fatalf("export csv: %v", err)
	}
	want := "id,date,description,amount_pln,amount_inr\nb,2025-02-01,Bravo,5.00,25.00\n"
	if out != want {
		t.Errorf("csv = %q, want %q", out, want)
	}
}

func TestSetupRejectsMemoryBackend(t *testing.T) {
	t.Setenv("DATA_BACKEND", "memory")

	var errOut bytes.Buffer
	root := newRootCmd(&app{}, setupFromEnv)
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&errOut)
	root.SetArgs([]string{"list"})
	if err := root.Execute(); !errors.Is(err, config.ErrProcessLocalBackend) {
		t.Fatalf("list with memory backend: err = %v, want ErrProcessLocalBackend", err)
	}
}
