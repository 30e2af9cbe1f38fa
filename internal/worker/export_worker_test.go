package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"cambi/internal/amqp"
	"cambi/internal/core"
	applog "cambi/internal/log"
	"cambi/internal/metrics"
	"cambi/internal/sheets"
	"cambi/internal/storage/memory"
)

type fakeExporter struct {
	mu    sync.Mutex
	calls [][]core.Entry
	err   error
}

func (f *fakeExporter) Export(_ context.Context, entries []core.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, entries)
	return f.err
}

func (f *fakeExporter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Output: io.Discard})
}

func seeded() *memory.Store {
	return memory.New(
		core.Entry{
			ID:              "a",
			Date:            core.NewDate(2025, 1, 5),
			Description:     "A",
			AmountPrimary:   decimal.NewNullDecimal(decimal.NewFromInt(10)),
			AmountSecondary: decimal.NewNullDecimal(decimal.NewFromInt(40)),
		},
		core.Entry{
			ID:              "b",
			Date:            core.NewDate(2025, 2, 1),
			Description:     "B",
			AmountPrimary:   decimal.NewNullDecimal(decimal.NewFromInt(5)),
			AmountSecondary: decimal.NewNullDecimal(decimal.NewFromInt(25)),
		},
	)
}

func TestExportAllExportsFullSnapshot(t *testing.T) {
	exp := &fakeExporter{}
	reg := metrics.NewRegistry()
	w := NewExportWorker(seeded(), exp, reg, quietLogger())

	if err := w.ExportAll(context.Background(), TriggerStartup); err != nil {
		t.Fatalf("ExportAll: %v", err)
	}
	if exp.count() != 1 || len(exp.calls[0]) != 2 {
		t.Fatalf("expected one export of 2 entries, got %v", exp.calls)
	}
	if got := testutil.ToFloat64(reg.Exports.WithLabelValues(TriggerStartup, "ok")); got != 1 {
		t.Errorf("exports{startup,ok} = %v, want 1", got)
	}
}

func TestExportAllLoadFailure(t *testing.T) {
	store := seeded()
	store.FailLoad(errors.New("redis down"))
	exp := &fakeExporter{}
	reg := metrics.NewRegistry()
	w := NewExportWorker(store, exp, reg, quietLogger())

	if err := w.ExportAll(context.Background(), TriggerSchedule); err == nil {
		t.Fatal("expected load error")
	}
	if exp.count() != 0 {
		t.Errorf("exporter called after failed load")
	}
	if got := testutil.ToFloat64(reg.Exports.WithLabelValues(TriggerSchedule, "error")); got != 1 {
		t.Errorf("exports{schedule,error} = %v, want 1", got)
	}
}

func TestHandleEvent(t *testing.T) {
	ev := amqp.NewLedgerEvent("entry.created", "a")

	tests := []struct {
		name    string
		store   *memory.Store
		err     error
		wantErr bool
	}{
		{"exports", seeded(), nil, false},
		{"transient error requeues", seeded(), errors.New("timeout"), true},
		{"open breaker is dropped", seeded(), fmt.Errorf("wrapped: %w", sheets.ErrExportUnavailable), false},
		{"malformed slot is dropped", memory.NewRaw([]byte(`{not json`)), nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewExportWorker(tt.store, &fakeExporter{err: tt.err}, nil, quietLogger())
			err := w.HandleEvent(context.Background(), ev)
			if (err != nil) != tt.wantErr {
				t.Fatalf("HandleEvent() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExportAllSerializesExports(t *testing.T) {
	exp := &slowExporter{}
	w := NewExportWorker(seeded(), exp, nil, quietLogger())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.ExportAll(context.Background(), TriggerEvent)
		}()
	}
	wg.Wait()
	if exp.maxInFlight != 1 {
		t.Errorf("max concurrent exports = %d, want 1", exp.maxInFlight)
	}
}

type slowExporter struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
}

func (s *slowExporter) Export(context.Context, []core.Entry) error {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	s.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
	return nil
}
